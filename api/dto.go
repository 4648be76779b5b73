/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's decimal-based model from the external API contract. Money is
  rounded to 2 decimals and ratios to 6 only here, at the edge; the engine
  never rounds.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Report:
    SnapshotDTO, EmployeeReportDTO, AttributionLineDTO, RoleCombinationDTO

  Rollups:
    DepartmentDTO, FieldDTO

  Config:
    factory.RolePercentagesJSON, factory.SettingsJSON, ConfigDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: Config JSON types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/factory"
	"github.com/warp/contribution-engine/report"
)

// =============================================================================
// REPORT
// =============================================================================

// PeriodDTO is an inclusive date range.
type PeriodDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SnapshotDTO is a full published report.
type SnapshotDTO struct {
	RunID         string    `json:"run_id"`
	Generation    uint64    `json:"generation"`
	ConfigVersion uint64    `json:"config_version"`
	ComputedAt    string    `json:"computed_at"`
	Period        PeriodDTO `json:"period"`
	DueWindow     PeriodDTO `json:"due_window"`
	Degraded      []string  `json:"degraded,omitempty"`

	SignedRatio      float64 `json:"signed_ratio"`
	DueRatio         float64 `json:"due_ratio"`
	TotalSignedValue float64 `json:"total_signed_value"`
	TotalSignedNet   float64 `json:"total_signed_net"`
	TotalDue         float64 `json:"total_due"`
	SignedCaseCount  int     `json:"signed_case_count"`

	Employees   []EmployeeReportDTO `json:"employees"`
	Departments []DepartmentDTO     `json:"departments"`
	Fields      []FieldDTO          `json:"fields"`
}

// EmployeeReportDTO is one employee's figures.
type EmployeeReportDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`

	SignedTotal             float64 `json:"signed_total"`
	DueTotal                float64 `json:"due_total"`
	SignedNormalized        float64 `json:"signed_normalized"`
	DueNormalized           float64 `json:"due_normalized"`
	SignedPortion           float64 `json:"signed_portion"`
	SignedPortionNormalized float64 `json:"signed_portion_normalized"`
	DuePercentage           float64 `json:"due_percentage"`
	DuePortion              float64 `json:"due_portion"`
	Contribution            float64 `json:"contribution"`
	SalaryBudget            float64 `json:"salary_budget"`

	HasSalary       bool    `json:"has_salary"`
	NetSalary       float64 `json:"net_salary"`
	SalaryBrutto    float64 `json:"salary_brutto"`
	TotalSalaryCost float64 `json:"total_salary_cost"`
	MaxIncentive    float64 `json:"max_incentive"`

	Combinations []RoleCombinationDTO `json:"role_combinations"`
	Lines        []AttributionLineDTO `json:"lines,omitempty"`
}

// RoleCombinationDTO groups cases by the exact set of roles held.
type RoleCombinationDTO struct {
	Roles       string  `json:"roles"`
	Cases       int     `json:"cases"`
	SignedTotal float64 `json:"signed_total"`
	DueTotal    float64 `json:"due_total"`
}

// AttributionLineDTO is one employee's share of one case.
type AttributionLineDTO struct {
	Case                    string  `json:"case"`
	CaseNumber              string  `json:"case_number"`
	MainCategory            string  `json:"main_category"`
	Roles                   string  `json:"roles"`
	Signed                  float64 `json:"signed"`
	SignedPercentage        float64 `json:"signed_percentage"`
	SignedPortion           float64 `json:"signed_portion"`
	Due                     float64 `json:"due"`
	SignedPortionNormalized float64 `json:"signed_portion_normalized"`
	DuePortion              float64 `json:"due_portion"`
	Contribution            float64 `json:"contribution"`
}

// DepartmentDTO is a department rollup.
type DepartmentDTO struct {
	Department              string  `json:"department"`
	Headcount               int     `json:"headcount"`
	SignedTotal             float64 `json:"signed_total"`
	DueTotal                float64 `json:"due_total"`
	SignedNormalized        float64 `json:"signed_normalized"`
	DueNormalized           float64 `json:"due_normalized"`
	SignedPortionNormalized float64 `json:"signed_portion_normalized"`
	DuePortion              float64 `json:"due_portion"`
	Contribution            float64 `json:"contribution"`
	SalaryBudget            float64 `json:"salary_budget"`
	NetSalary               float64 `json:"net_salary"`
	SalaryBrutto            float64 `json:"salary_brutto"`
	TotalSalaryCost         float64 `json:"total_salary_cost"`
	MaxIncentive            float64 `json:"max_incentive"`
}

// FieldDTO is a field (main category) rollup.
type FieldDTO struct {
	Field                   string   `json:"field"`
	MainCategories          []string `json:"main_categories"`
	Cases                   int      `json:"cases"`
	SignedTotal             float64  `json:"signed_total"`
	DueTotal                float64  `json:"due_total"`
	SignedNormalized        float64  `json:"signed_normalized"`
	DueNormalized           float64  `json:"due_normalized"`
	SignedPortionNormalized float64  `json:"signed_portion_normalized"`
	DuePortion              float64  `json:"due_portion"`
	Contribution            float64  `json:"contribution"`
	SalaryBudget            float64  `json:"salary_budget"`
}

// =============================================================================
// EMPLOYEES / CONFIG / SCENARIOS
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RoleCode   string `json:"role_code"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
}

// ConfigDTO is the configuration currently in effect. Report is set after a
// write when a previous request was recomputed.
type ConfigDTO struct {
	Version uint64             `json:"version"`
	Config  factory.ConfigJSON `json:"config"`
	Report  *SnapshotDTO       `json:"report,omitempty"`
}

// RefreshStatusDTO describes the periodic refresh.
type RefreshStatusDTO struct {
	Enabled   bool   `json:"enabled"`
	Interval  string `json:"interval"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
	NextRun   string `json:"next_run"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }
func ratio(d decimal.Decimal) float64 { return d.Round(6).InexactFloat64() }

func toPeriodDTO(p compensation.Period) PeriodDTO {
	return PeriodDTO{
		From: p.From.Format(compensation.DateLayout),
		To:   p.To.Format(compensation.DateLayout),
	}
}

func toSnapshotDTO(snap *report.Snapshot, withLines bool) SnapshotDTO {
	due := snap.Request.DueWindow
	if due.IsZero() {
		due = snap.Request.Period
	}
	dto := SnapshotDTO{
		RunID:            snap.RunID.String(),
		Generation:       snap.Generation,
		ConfigVersion:    snap.ConfigVersion,
		ComputedAt:       snap.ComputedAt.UTC().Format(time.RFC3339),
		Period:           toPeriodDTO(snap.Request.Period),
		DueWindow:        toPeriodDTO(due),
		Degraded:         snap.Degraded,
		SignedRatio:      ratio(snap.Ratios.Signed),
		DueRatio:         ratio(snap.Ratios.Due),
		TotalSignedValue: money(snap.TotalSignedValue),
		TotalSignedNet:   money(snap.TotalSignedNet),
		TotalDue:         money(snap.TotalDue),
		SignedCaseCount:  snap.SignedCaseCount,
		Employees:        make([]EmployeeReportDTO, len(snap.Employees)),
		Departments:      toDepartmentDTOs(snap.Departments),
		Fields:           toFieldDTOs(snap.Fields),
	}
	for i, e := range snap.Employees {
		dto.Employees[i] = toEmployeeReportDTO(e, withLines)
	}
	return dto
}

func toEmployeeReportDTO(e compensation.EmployeeResult, withLines bool) EmployeeReportDTO {
	dto := EmployeeReportDTO{
		ID:                      int64(e.EmployeeID),
		Name:                    e.Name,
		Department:              string(e.Department),
		SignedTotal:             money(e.SignedTotal),
		DueTotal:                money(e.DueTotal),
		SignedNormalized:        money(e.SignedNormalized),
		DueNormalized:           money(e.DueNormalized),
		SignedPortion:           money(e.SignedPortion),
		SignedPortionNormalized: money(e.SignedPortionNormalized),
		DuePercentage:           ratio(e.DuePercentage),
		DuePortion:              money(e.DuePortion),
		Contribution:            money(e.Contribution),
		SalaryBudget:            money(e.SalaryBudget),
		HasSalary:               e.HasSalary,
		NetSalary:               money(e.NetSalary),
		SalaryBrutto:            money(e.SalaryBrutto),
		TotalSalaryCost:         money(e.TotalSalaryCost),
		MaxIncentive:            money(e.MaxIncentive),
		Combinations:            make([]RoleCombinationDTO, len(e.Combinations)),
	}
	for i, c := range e.Combinations {
		dto.Combinations[i] = RoleCombinationDTO{
			Roles:       c.Label,
			Cases:       c.Cases,
			SignedTotal: money(c.SignedTotal),
			DueTotal:    money(c.DueTotal),
		}
	}
	if withLines {
		dto.Lines = make([]AttributionLineDTO, len(e.Lines))
		for i, l := range e.Lines {
			dto.Lines[i] = AttributionLineDTO{
				Case:                    l.Case.String(),
				CaseNumber:              l.CaseNumber,
				MainCategory:            l.MainCategory,
				Roles:                   l.Roles.String(),
				Signed:                  money(l.Signed),
				SignedPercentage:        ratio(l.SignedPercentage),
				SignedPortion:           money(l.SignedPortion),
				Due:                     money(l.Due),
				SignedPortionNormalized: money(l.SignedPortionNormalized),
				DuePortion:              money(l.DuePortion),
				Contribution:            money(l.Contribution),
			}
		}
	}
	return dto
}

func toDepartmentDTOs(totals []compensation.DepartmentTotal) []DepartmentDTO {
	out := make([]DepartmentDTO, len(totals))
	for i, t := range totals {
		out[i] = DepartmentDTO{
			Department:              string(t.Department),
			Headcount:               t.Headcount,
			SignedTotal:             money(t.SignedTotal),
			DueTotal:                money(t.DueTotal),
			SignedNormalized:        money(t.SignedNormalized),
			DueNormalized:           money(t.DueNormalized),
			SignedPortionNormalized: money(t.SignedPortionNormalized),
			DuePortion:              money(t.DuePortion),
			Contribution:            money(t.Contribution),
			SalaryBudget:            money(t.SalaryBudget),
			NetSalary:               money(t.NetSalary),
			SalaryBrutto:            money(t.SalaryBrutto),
			TotalSalaryCost:         money(t.TotalSalaryCost),
			MaxIncentive:            money(t.MaxIncentive),
		}
	}
	return out
}

func toFieldDTOs(totals []compensation.FieldTotal) []FieldDTO {
	out := make([]FieldDTO, len(totals))
	for i, t := range totals {
		out[i] = FieldDTO{
			Field:                   t.Field,
			MainCategories:          t.MainCategories,
			Cases:                   t.Cases,
			SignedTotal:             money(t.SignedTotal),
			DueTotal:                money(t.DueTotal),
			SignedNormalized:        money(t.SignedNormalized),
			DueNormalized:           money(t.DueNormalized),
			SignedPortionNormalized: money(t.SignedPortionNormalized),
			DuePortion:              money(t.DuePortion),
			Contribution:            money(t.Contribution),
			SalaryBudget:            money(t.SalaryBudget),
		}
	}
	return out
}

func toEmployeeDTO(e compensation.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         int64(e.ID),
		Name:       e.Name,
		RoleCode:   e.RoleCode,
		Department: e.Department,
		Active:     e.Active,
	}
}
