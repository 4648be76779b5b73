/*
Package compensation provides the sales contribution and compensation engine.

PURPOSE:
  This package turns raw case ("lead") records and payment-plan installments into
  per-employee revenue attribution, normalized against company-wide targets, and
  derives contribution, salary budget and incentive ceilings. Everything in this
  package is pure: no I/O, no clocks, no package-level mutable state. Fetching
  is the job of the report package; persistence lives under store/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: a staff member with a numeric ID, display name and role code
  - CaseRef: identifies a case in either the current or the legacy schema
  - RoleAssignment: a resolved role slot (by display name, by numeric id, or both)
  - SalaryRow: optional salary data for one employee and month

DESIGN PRINCIPLES:
  1. Precision: every monetary value is a decimal.Decimal in the base currency (NIS)
  2. Explicit configuration: percentages and settings are passed in, never read globally
  3. Determinism: same inputs and config produce bit-identical results

SEE ALSO:
  - cases.go: Dual-schema case records and normalisation
  - roles.go: Role classification and percentage accumulation
  - engine.go: Normalization and contribution
*/
package compensation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID int64

// Schema tells which case table a record came from.
type Schema string

const (
	SchemaCurrent Schema = "current"
	SchemaLegacy  Schema = "legacy"
)

// CaseRef identifies a case. Current and legacy schemas have separate id spaces,
// so the schema is part of the identity.
type CaseRef struct {
	Schema Schema
	ID     string
}

func (r CaseRef) String() string { return string(r.Schema) + ":" + r.ID }

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID         EmployeeID
	Name       string
	RoleCode   string
	Department string
	Active     bool
}

// =============================================================================
// ROLE ASSIGNMENT - a role slot on a case, resolved at the schema boundary
// =============================================================================

// RoleAssignment holds who occupies a role slot. ByID zero means no id is known.
// Handler slots on current-schema cases may carry both a name and an id, and
// AltID holds the numeric case_handler_id when the text field is itself an id.
type RoleAssignment struct {
	ByName string
	ByID   EmployeeID
	AltID  EmployeeID
}

// IsAssigned reports whether anyone occupies the slot.
func (ra RoleAssignment) IsAssigned() bool {
	return strings.TrimSpace(ra.ByName) != "" || ra.ByID != 0 || ra.AltID != 0
}

// Matches reports whether the employee occupies the slot, by either id or by
// case-insensitive display name.
func (ra RoleAssignment) Matches(e Employee) bool {
	if e.ID != 0 && (ra.ByID == e.ID || ra.AltID == e.ID) {
		return true
	}
	name := strings.TrimSpace(ra.ByName)
	return name != "" && strings.EqualFold(name, strings.TrimSpace(e.Name))
}

// =============================================================================
// SALARY
// =============================================================================

// SalaryRow is one employee's salary for the salary-lookup month.
// TotalCost is the employer's full cost; when zero the gross salary is used.
type SalaryRow struct {
	EmployeeID  EmployeeID
	NetSalary   decimal.Decimal
	GrossSalary decimal.Decimal
	TotalCost   decimal.Decimal
}

// SalaryCost returns the total salary cost used for incentive ceilings.
func (s SalaryRow) SalaryCost() decimal.Decimal {
	if s.TotalCost.IsPositive() {
		return s.TotalCost
	}
	return s.GrossSalary
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Percent converts a 0-100 percentage into a fraction.
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}
