/*
store.go - Record-store and configuration-store interfaces

PURPOSE:
  Defines the boundary between the engine and the hosted relational backend.
  The engine never queries directly; the report package fetches through these
  interfaces, then hands fully materialised Inputs to Calculate.

KEY INTERFACES:
  RecordSource: read-only case, installment, employee, category and salary queries
  ConfigStore:  role percentages and reporting settings (read + admin write)

SCHEMA SPLIT:
  Case and installment queries take a Schema so each schema is its own
  sub-query. A failing legacy installment query degrades only legacy due
  amounts; it does not blank the report.

IMPLEMENTATIONS:
  - compensation/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: Embedded SQLite
  - store/postgres/postgres.go: Hosted Postgres via pgx
*/
package compensation

import (
	"context"
	"time"
)

// StageEvent is a case's transition to signed status.
type StageEvent struct {
	Case     CaseRef
	SignedAt time.Time
}

// RecordSource is the read side of the record store.
type RecordSource interface {
	// SignedCases returns one event per case signed within the period, both schemas.
	SignedCases(ctx context.Context, period Period) ([]StageEvent, error)

	// CaseDetails returns full rows, with category and currency joins, for the ids.
	CaseDetails(ctx context.Context, schema Schema, ids []string) ([]CaseRecord, error)

	// HandlerCases returns every case whose handler is one of the employees,
	// by name or by case_handler_id, regardless of when it was signed.
	HandlerCases(ctx context.Context, schema Schema, employees []Employee) ([]CaseRecord, error)

	// Installments returns ready, uncancelled, unpaid installments of the cases
	// due within the window.
	Installments(ctx context.Context, schema Schema, caseIDs []string, window Period) ([]Installment, error)

	// Employees returns active employees.
	Employees(ctx context.Context) ([]Employee, error)

	// Categories returns all sub-categories with their main category.
	Categories(ctx context.Context) ([]Category, error)

	// Salaries returns salary rows for the month. Missing rows are not an error.
	Salaries(ctx context.Context, year int, month time.Month, ids []EmployeeID) ([]SalaryRow, error)
}

// ConfigStore persists the mutable business configuration.
type ConfigStore interface {
	RolePercentages(ctx context.Context) (RolePercentages, error)
	ReportingSettings(ctx context.Context) (ReportingSettings, error)

	// SaveRolePercentages replaces the stored percentages. Callers validate first.
	SaveRolePercentages(ctx context.Context, rp RolePercentages) error
	SaveReportingSettings(ctx context.Context, s ReportingSettings) error
}

// Store is a record source that also holds configuration.
type Store interface {
	RecordSource
	ConfigStore
}
