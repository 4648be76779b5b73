package compensation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BUSINESS CONSTANTS
// =============================================================================

// ContributionRate is applied to the sum of normalized signed and due portions.
var ContributionRate = decimal.RequireFromString("0.35")

// SalaryBudgetRate is applied to contribution for case-attributed departments.
var SalaryBudgetRate = decimal.RequireFromString("0.40")

// =============================================================================
// REPORTING SETTINGS
// =============================================================================

// ReportingSettings are the scalar normalization inputs.
type ReportingSettings struct {
	// TargetIncome scales signed amounts down when below the period's total.
	// Zero means unset.
	TargetIncome decimal.Decimal
	// DueNormalizedPercentage (0-100) scales due amounts.
	DueNormalizedPercentage decimal.Decimal
}

func (s ReportingSettings) Validate() error {
	if s.TargetIncome.IsNegative() {
		return &ConfigError{Field: "target_income", Value: s.TargetIncome.String(), Reason: ErrInvalidSettings}
	}
	if s.DueNormalizedPercentage.IsNegative() || s.DueNormalizedPercentage.GreaterThan(hundred) {
		return &ConfigError{Field: "due_normalized_percentage", Value: s.DueNormalizedPercentage.String(), Reason: ErrInvalidPercentage}
	}
	return nil
}

// =============================================================================
// DEPARTMENTS
// =============================================================================

type Department string

const (
	DeptSales     Department = "Sales"
	DeptHandlers  Department = "Handlers"
	DeptPartners  Department = "Partners"
	DeptMarketing Department = "Marketing"
	DeptFinance   Department = "Finance"
	DeptOther     Department = "Other"
)

// Departments lists the rollup departments in display order.
func Departments() []Department {
	return []Department{DeptSales, DeptHandlers, DeptPartners, DeptMarketing, DeptFinance}
}

// CostBasedBudget reports departments whose salary budget equals their salary
// cost instead of being derived from case attribution.
func (d Department) CostBasedBudget() bool {
	return d == DeptMarketing || d == DeptFinance
}

// DepartmentRules are role-code allow-lists per department.
type DepartmentRules map[Department][]string

func DefaultDepartmentRules() DepartmentRules {
	return DepartmentRules{
		DeptSales:     {"s", "z", "c", "sales", "closer", "scheduler"},
		DeptHandlers:  {"h", "e", "handler", "expert", "lawyer"},
		DeptPartners:  {"p", "partner"},
		DeptMarketing: {"ma", "marketing"},
		DeptFinance:   {"f", "finance", "accounting"},
	}
}

// Classify buckets an employee by role code. Unlisted codes fall into DeptOther.
func (dr DepartmentRules) Classify(e Employee) Department {
	code := strings.ToLower(strings.TrimSpace(e.RoleCode))
	if code == "" {
		return DeptOther
	}
	for _, d := range Departments() {
		for _, c := range dr[d] {
			if strings.ToLower(strings.TrimSpace(c)) == code {
				return d
			}
		}
	}
	return DeptOther
}

// =============================================================================
// CONFIG - immutable parameter object threaded into every calculation
// =============================================================================

// GeneralField is the field-view bucket for main categories not displayed separately.
const GeneralField = "General"

type Config struct {
	Roles       RolePercentages
	Settings    ReportingSettings
	Departments DepartmentRules
	// SeparateFields lists main categories shown as their own field.
	SeparateFields []string
}

func DefaultConfig() Config {
	return Config{
		Roles:       RolePercentages{},
		Departments: DefaultDepartmentRules(),
		Settings:    ReportingSettings{DueNormalizedPercentage: hundred},
	}
}

func (c Config) Validate() error {
	if err := c.Roles.Validate(); err != nil {
		return err
	}
	return c.Settings.Validate()
}

// FieldFor maps a main category to its field-view bucket.
func (c Config) FieldFor(mainCategory string) string {
	for _, f := range c.SeparateFields {
		if strings.EqualFold(strings.TrimSpace(f), strings.TrimSpace(mainCategory)) {
			return f
		}
	}
	return GeneralField
}
