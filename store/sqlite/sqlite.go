/*
Package sqlite provides a SQLite-backed implementation of the record source
and config store.

PURPOSE:
  Implements compensation.Store using SQLite. Both case schemas live side by
  side with their original column shapes (current leads with free-text role
  fields, legacy leads with numeric ids and a pre-converted total_base), so the
  dual-schema normalisation in the engine is exercised end to end. The hosted
  deployment uses store/postgres with the same table layout.

KEY TABLES:
  current_leads / legacy_leads: Case records, one per schema
  stage_history:                Stage transitions ("signed" drives the report)
  installments:                 Payment plans for both schemas (schema column)
  employees:                    Active and inactive staff
  categories / main_categories: Category hierarchy
  currencies:                   Joined by currency_id
  salaries:                     Monthly salary rows
  role_percentages:             Role -> percentage configuration
  reporting_settings:           Single row: target income, due normalization

MONEY:
  Amounts are stored as TEXT and scanned straight into decimal.Decimal, so no
  value passes through float64.

INDEXES:
  - idx_stage_history_stage_date: Signed-case lookup by period (hot path)
  - idx_installments_lead: Due aggregation per case
  - idx_current_leads_handler / idx_legacy_leads_handler: Handler superset

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to a
  single connection so every query sees the same database.

USAGE:
  store, err := sqlite.New("./data/contribution.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  service := report.NewService(store, store, report.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - compensation/store.go: Interface definitions
  - compensation/store/memory.go: In-memory implementation for testing
  - store/postgres: Hosted implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/compensation"
)

// StageSigned is the stage_history value that marks a signed case.
const StageSigned = "signed"

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05Z"

// Store implements compensation.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS currencies (
		id INTEGER PRIMARY KEY,
		iso_code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS main_categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		main_category_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		role_code TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- Current schema: role fields hold a display name or a numeric id as text
	CREATE TABLE IF NOT EXISTS current_leads (
		id TEXT PRIMARY KEY,
		lead_number TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL DEFAULT '0',
		proposal_total TEXT NOT NULL DEFAULT '0',
		balance_currency TEXT NOT NULL DEFAULT '',
		proposal_currency TEXT NOT NULL DEFAULT '',
		currency_id INTEGER,
		subcontractor_fee TEXT NOT NULL DEFAULT '0',
		category TEXT NOT NULL DEFAULT '',
		category_id INTEGER,
		closer TEXT NOT NULL DEFAULT '',
		scheduler TEXT NOT NULL DEFAULT '',
		helper_closer TEXT NOT NULL DEFAULT '',
		handler TEXT NOT NULL DEFAULT '',
		expert TEXT NOT NULL DEFAULT '',
		manager TEXT NOT NULL DEFAULT '',
		case_handler_id INTEGER,
		meeting_manager_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_current_leads_handler
		ON current_leads(case_handler_id);

	-- Legacy schema: numeric role ids, pre-converted total_base
	CREATE TABLE IF NOT EXISTS legacy_leads (
		id INTEGER PRIMARY KEY,
		lead_number TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL DEFAULT '0',
		total_base TEXT NOT NULL DEFAULT '0',
		currency_id INTEGER,
		subcontractor_fee TEXT NOT NULL DEFAULT '0',
		category TEXT NOT NULL DEFAULT '',
		category_id INTEGER,
		closer_id INTEGER,
		scheduler_id INTEGER,
		helper_closer_id INTEGER,
		case_handler_id INTEGER,
		meeting_manager_id INTEGER,
		expert_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_legacy_leads_handler
		ON legacy_leads(case_handler_id);

	CREATE TABLE IF NOT EXISTS stage_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lead_schema TEXT NOT NULL,
		lead_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		changed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stage_history_stage_date
		ON stage_history(stage, changed_at);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		lead_schema TEXT NOT NULL,
		lead_id TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		amount_base TEXT NOT NULL DEFAULT '0',
		currency_id INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL,
		ready_to_pay BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		cancel_date TEXT,
		actual_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_installments_lead
		ON installments(lead_schema, lead_id, due_date);

	CREATE TABLE IF NOT EXISTS salaries (
		employee_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		net_salary TEXT NOT NULL DEFAULT '0',
		gross_salary TEXT NOT NULL DEFAULT '0',
		total_cost TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (employee_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS role_percentages (
		role TEXT PRIMARY KEY,
		percentage TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reporting_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		target_income TEXT NOT NULL DEFAULT '0',
		due_normalized_percentage TEXT NOT NULL DEFAULT '100',
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD SOURCE (compensation.RecordSource interface)
// =============================================================================

// SignedCases returns the first signed transition of each case inside the period.
func (s *Store) SignedCases(ctx context.Context, period compensation.Period) ([]compensation.StageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT lead_schema, lead_id, MIN(changed_at)
		FROM stage_history
		WHERE stage = ? AND changed_at >= ? AND changed_at <= ?
		GROUP BY lead_schema, lead_id
		ORDER BY lead_schema, lead_id
	`

	rows, err := s.db.QueryContext(ctx, query, StageSigned, formatTime(period.From), formatTime(period.To))
	if err != nil {
		return nil, fmt.Errorf("failed to query stage history: %w", err)
	}
	defer rows.Close()

	var events []compensation.StageEvent
	for rows.Next() {
		var schema, leadID, changedAt string
		if err := rows.Scan(&schema, &leadID, &changedAt); err != nil {
			return nil, err
		}
		events = append(events, compensation.StageEvent{
			Case:     compensation.CaseRef{Schema: compensation.Schema(schema), ID: leadID},
			SignedAt: parseTime(changedAt),
		})
	}
	return events, rows.Err()
}

// CaseDetails loads full case rows, with currency and category joins.
func (s *Store) CaseDetails(ctx context.Context, schema compensation.Schema, ids []string) ([]compensation.CaseRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch schema {
	case compensation.SchemaCurrent:
		return s.queryCurrent(ctx, "l.id IN ("+placeholders(len(ids))+")", stringArgs(ids)...)
	case compensation.SchemaLegacy:
		args := make([]any, 0, len(ids))
		for _, id := range ids {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			args = append(args, n)
		}
		if len(args) == 0 {
			return nil, nil
		}
		return s.queryLegacy(ctx, "l.id IN ("+placeholders(len(args))+")", args...)
	}
	return nil, fmt.Errorf("unknown schema %q", schema)
}

// HandlerCases returns every case, signed or not, whose handler is one of the
// employees.
func (s *Store) HandlerCases(ctx context.Context, schema compensation.Schema, employees []compensation.Employee) ([]compensation.CaseRecord, error) {
	if len(employees) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]any, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, int64(e.ID))
	}

	var (
		recs []compensation.CaseRecord
		err  error
	)
	switch schema {
	case compensation.SchemaCurrent:
		// Free-text handlers are matched in Go: SQLite LOWER is ASCII only.
		where := "l.case_handler_id IN (" + placeholders(len(ids)) + ") OR TRIM(l.handler) <> ''"
		recs, err = s.queryCurrent(ctx, where, ids...)
	case compensation.SchemaLegacy:
		recs, err = s.queryLegacy(ctx, "l.case_handler_id IN ("+placeholders(len(ids))+")", ids...)
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
	if err != nil {
		return nil, err
	}

	out := recs[:0]
	for _, rec := range recs {
		handler := rec.Normalize(compensation.RateTable{}).Roles.Handler
		for _, e := range employees {
			if handler.Matches(e) {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

const currentColumns = `
	l.id, l.lead_number, l.balance, l.proposal_total, l.balance_currency, l.proposal_currency,
	cur.id, cur.iso_code, cur.name, l.subcontractor_fee,
	l.category, l.category_id, c.id, c.name, m.id, m.name,
	l.closer, l.scheduler, l.helper_closer, l.handler, l.expert, l.manager,
	l.case_handler_id, l.meeting_manager_id`

func (s *Store) queryCurrent(ctx context.Context, where string, args ...any) ([]compensation.CaseRecord, error) {
	query := `SELECT ` + currentColumns + `
		FROM current_leads l
		LEFT JOIN currencies cur ON cur.id = l.currency_id
		LEFT JOIN categories c ON c.id = l.category_id
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		WHERE ` + where + `
		ORDER BY l.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query current leads: %w", err)
	}
	defer rows.Close()

	var out []compensation.CaseRecord
	for rows.Next() {
		var (
			c                             compensation.CurrentCase
			curID                         sql.NullInt64
			curISO, curName               sql.NullString
			categoryID, catID, mainID     sql.NullInt64
			catName, mainName             sql.NullString
			closer, scheduler, helper     string
			handler, expert, manager      string
			caseHandlerID, meetingManager sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.LeadNumber, &c.Balance, &c.ProposalTotal, &c.BalanceCurrency, &c.ProposalCurrency,
			&curID, &curISO, &curName, &c.SubcontractorFee,
			&c.Category, &categoryID, &catID, &catName, &mainID, &mainName,
			&closer, &scheduler, &helper, &handler, &expert, &manager,
			&caseHandlerID, &meetingManager,
		); err != nil {
			return nil, err
		}
		c.Currency = currencyJoin(curID, curISO, curName)
		c.CategoryID = categoryID.Int64
		c.CategoryJoin = categoryJoin(catID, catName, mainID, mainName)
		c.Closer = compensation.RawRole(closer)
		c.Scheduler = compensation.RawRole(scheduler)
		c.HelperCloser = compensation.RawRole(helper)
		c.Handler = compensation.RawRole(handler)
		c.Expert = compensation.RawRole(expert)
		c.Manager = compensation.RawRole(manager)
		c.CaseHandlerID = compensation.EmployeeID(caseHandlerID.Int64)
		c.MeetingManagerID = compensation.EmployeeID(meetingManager.Int64)
		out = append(out, compensation.FromCurrent(c))
	}
	return out, rows.Err()
}

const legacyColumns = `
	l.id, l.lead_number, l.total, l.total_base, l.currency_id,
	cur.id, cur.iso_code, cur.name, l.subcontractor_fee,
	l.category, l.category_id, c.id, c.name, m.id, m.name,
	l.closer_id, l.scheduler_id, l.helper_closer_id, l.case_handler_id,
	l.meeting_manager_id, l.expert_id`

func (s *Store) queryLegacy(ctx context.Context, where string, args ...any) ([]compensation.CaseRecord, error) {
	query := `SELECT ` + legacyColumns + `
		FROM legacy_leads l
		LEFT JOIN currencies cur ON cur.id = l.currency_id
		LEFT JOIN categories c ON c.id = l.category_id
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		WHERE ` + where + `
		ORDER BY l.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy leads: %w", err)
	}
	defer rows.Close()

	var out []compensation.CaseRecord
	for rows.Next() {
		var (
			c                         compensation.LegacyCase
			currencyID, curID         sql.NullInt64
			curISO, curName           sql.NullString
			categoryID, catID, mainID sql.NullInt64
			catName, mainName         sql.NullString
			roles                     [6]sql.NullInt64
		)
		if err := rows.Scan(
			&c.ID, &c.LeadNumber, &c.Total, &c.TotalBase, &currencyID,
			&curID, &curISO, &curName, &c.SubcontractorFee,
			&c.Category, &categoryID, &catID, &catName, &mainID, &mainName,
			&roles[0], &roles[1], &roles[2], &roles[3], &roles[4], &roles[5],
		); err != nil {
			return nil, err
		}
		c.CurrencyID = int(currencyID.Int64)
		c.Currency = currencyJoin(curID, curISO, curName)
		c.CategoryID = categoryID.Int64
		c.CategoryJoin = categoryJoin(catID, catName, mainID, mainName)
		c.CloserID = compensation.EmployeeID(roles[0].Int64)
		c.SchedulerID = compensation.EmployeeID(roles[1].Int64)
		c.HelperCloserID = compensation.EmployeeID(roles[2].Int64)
		c.CaseHandlerID = compensation.EmployeeID(roles[3].Int64)
		c.MeetingManagerID = compensation.EmployeeID(roles[4].Int64)
		c.ExpertID = compensation.EmployeeID(roles[5].Int64)
		out = append(out, compensation.FromLegacy(c))
	}
	return out, rows.Err()
}

// Installments returns the due-eligible installments of the given cases.
func (s *Store) Installments(ctx context.Context, schema compensation.Schema, caseIDs []string, window compensation.Period) ([]compensation.Installment, error) {
	if len(caseIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	unpaid := "paid = 0"
	if schema == compensation.SchemaLegacy {
		unpaid = "actual_date IS NULL"
	}
	query := `
		SELECT id, lead_schema, lead_id, amount, amount_base, currency_id, currency,
		       due_date, ready_to_pay, paid, cancel_date, actual_date
		FROM installments
		WHERE lead_schema = ? AND lead_id IN (` + placeholders(len(caseIDs)) + `)
		  AND ready_to_pay = 1 AND cancel_date IS NULL AND ` + unpaid + `
		  AND due_date >= ? AND due_date <= ?
		ORDER BY lead_id, due_date, id
	`
	args := append([]any{string(schema)}, stringArgs(caseIDs)...)
	args = append(args, formatTime(window.From), formatTime(window.To))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var out []compensation.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstallment(rows *sql.Rows) (compensation.Installment, error) {
	var (
		inst                   compensation.Installment
		schema, leadID, due    string
		cancelDate, actualDate sql.NullString
	)
	err := rows.Scan(&inst.ID, &schema, &leadID, &inst.Amount, &inst.AmountBase, &inst.CurrencyID, &inst.Currency,
		&due, &inst.ReadyToPay, &inst.Paid, &cancelDate, &actualDate)
	if err != nil {
		return inst, err
	}
	inst.Case = compensation.CaseRef{Schema: compensation.Schema(schema), ID: leadID}
	inst.DueDate = parseTime(due)
	inst.CancelDate = parseNullTime(cancelDate)
	inst.ActualDate = parseNullTime(actualDate)
	return inst, nil
}

// Employees returns active employees.
func (s *Store) Employees(ctx context.Context) ([]compensation.Employee, error) {
	return s.queryEmployees(ctx, "WHERE active = 1")
}

// ListEmployees returns all employees, including inactive ones.
func (s *Store) ListEmployees(ctx context.Context) ([]compensation.Employee, error) {
	return s.queryEmployees(ctx, "")
}

func (s *Store) queryEmployees(ctx context.Context, where string) ([]compensation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, role_code, department, active FROM employees "+where+" ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []compensation.Employee
	for rows.Next() {
		var e compensation.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.RoleCode, &e.Department, &e.Active); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// Categories returns every sub-category with its main category.
func (s *Store) Categories(ctx context.Context) ([]compensation.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, m.id, m.name
		FROM categories c
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []compensation.Category
	for rows.Next() {
		var (
			c        compensation.Category
			mainID   sql.NullInt64
			mainName sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &mainID, &mainName); err != nil {
			return nil, err
		}
		if mainID.Valid {
			c.Main = &compensation.MainCategory{ID: mainID.Int64, Name: mainName.String}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Salaries returns the salary rows of the month for the given employees.
func (s *Store) Salaries(ctx context.Context, year int, month time.Month, ids []compensation.EmployeeID) ([]compensation.SalaryRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := []any{year, int(month)}
	for _, id := range ids {
		args = append(args, int64(id))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, net_salary, gross_salary, total_cost
		FROM salaries
		WHERE year = ? AND month = ? AND employee_id IN (`+placeholders(len(ids))+`)
		ORDER BY employee_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query salaries: %w", err)
	}
	defer rows.Close()

	var out []compensation.SalaryRow
	for rows.Next() {
		var row compensation.SalaryRow
		if err := rows.Scan(&row.EmployeeID, &row.NetSalary, &row.GrossSalary, &row.TotalCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// =============================================================================
// CONFIG STORE (compensation.ConfigStore interface)
// =============================================================================

// RolePercentages returns the stored role percentages.
func (s *Store) RolePercentages(ctx context.Context) (compensation.RolePercentages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT role, percentage FROM role_percentages ORDER BY role")
	if err != nil {
		return nil, fmt.Errorf("failed to query role percentages: %w", err)
	}
	defer rows.Close()

	rp := compensation.RolePercentages{}
	for rows.Next() {
		var (
			role string
			pct  decimal.Decimal
		)
		if err := rows.Scan(&role, &pct); err != nil {
			return nil, err
		}
		rp[compensation.PercentageKey(role)] = pct
	}
	return rp, rows.Err()
}

// SaveRolePercentages replaces the stored role percentages atomically.
func (s *Store) SaveRolePercentages(ctx context.Context, rp compensation.RolePercentages) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_percentages"); err != nil {
		return err
	}
	now := formatTime(time.Now())
	for k, v := range rp {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO role_percentages (role, percentage, updated_at) VALUES (?, ?, ?)",
			string(k), v.String(), now,
		); err != nil {
			return fmt.Errorf("failed to save role %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// ReportingSettings returns the stored settings, or the defaults when unset.
func (s *Store) ReportingSettings(ctx context.Context) (compensation.ReportingSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st compensation.ReportingSettings
	err := s.db.QueryRowContext(ctx,
		"SELECT target_income, due_normalized_percentage FROM reporting_settings WHERE id = 1",
	).Scan(&st.TargetIncome, &st.DueNormalizedPercentage)
	if errors.Is(err, sql.ErrNoRows) {
		return compensation.DefaultConfig().Settings, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to query reporting settings: %w", err)
	}
	return st, nil
}

// SaveReportingSettings upserts the settings row.
func (s *Store) SaveReportingSettings(ctx context.Context, st compensation.ReportingSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reporting_settings (id, target_income, due_normalized_percentage, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_income = excluded.target_income,
			due_normalized_percentage = excluded.due_normalized_percentage,
			updated_at = excluded.updated_at
	`, st.TargetIncome.String(), st.DueNormalizedPercentage.String(), formatTime(time.Now()))
	return err
}

// =============================================================================
// SEEDING
// =============================================================================

// SaveCurrency upserts a currency row.
func (s *Store) SaveCurrency(ctx context.Context, c compensation.CurrencyJoin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO currencies (id, iso_code, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET iso_code = excluded.iso_code, name = excluded.name
	`, c.ID, c.ISOCode, c.Name)
	return err
}

// SaveCategory upserts a category and its main category.
func (s *Store) SaveCategory(ctx context.Context, c compensation.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mainID sql.NullInt64
	if c.Main != nil {
		mainID = sql.NullInt64{Int64: c.Main.ID, Valid: true}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO main_categories (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name
		`, c.Main.ID, c.Main.Name); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, main_category_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, main_category_id = excluded.main_category_id
	`, c.ID, c.Name, mainID)
	return err
}

// SaveEmployee upserts an employee.
func (s *Store) SaveEmployee(ctx context.Context, e compensation.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, role_code, department, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role_code = excluded.role_code,
			department = excluded.department,
			active = excluded.active
	`, int64(e.ID), e.Name, e.RoleCode, e.Department, e.Active)
	return err
}

// SaveCurrentCase upserts a current-schema case. Joined rows are not written;
// the join is resolved on read from currency_id / category_id.
func (s *Store) SaveCurrentCase(ctx context.Context, c compensation.CurrentCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var currencyID sql.NullInt64
	if c.Currency != nil {
		currencyID = sql.NullInt64{Int64: int64(c.Currency.ID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO current_leads
		(id, lead_number, balance, proposal_total, balance_currency, proposal_currency, currency_id,
		 subcontractor_fee, category, category_id, closer, scheduler, helper_closer, handler,
		 expert, manager, case_handler_id, meeting_manager_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.LeadNumber, c.Balance.String(), c.ProposalTotal.String(), c.BalanceCurrency, c.ProposalCurrency, currencyID,
		c.SubcontractorFee.String(), c.Category, nullID(c.CategoryID),
		string(c.Closer), string(c.Scheduler), string(c.HelperCloser), string(c.Handler),
		string(c.Expert), string(c.Manager), nullID(int64(c.CaseHandlerID)), nullID(int64(c.MeetingManagerID)),
	)
	return err
}

// SaveLegacyCase upserts a legacy-schema case.
func (s *Store) SaveLegacyCase(ctx context.Context, c compensation.LegacyCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO legacy_leads
		(id, lead_number, total, total_base, currency_id, subcontractor_fee, category, category_id,
		 closer_id, scheduler_id, helper_closer_id, case_handler_id, meeting_manager_id, expert_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.LeadNumber, c.Total.String(), c.TotalBase.String(), nullID(int64(c.CurrencyID)),
		c.SubcontractorFee.String(), c.Category, nullID(c.CategoryID),
		nullID(int64(c.CloserID)), nullID(int64(c.SchedulerID)), nullID(int64(c.HelperCloserID)),
		nullID(int64(c.CaseHandlerID)), nullID(int64(c.MeetingManagerID)), nullID(int64(c.ExpertID)),
	)
	return err
}

// RecordStage appends a stage transition.
func (s *Store) RecordStage(ctx context.Context, ref compensation.CaseRef, stage string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO stage_history (lead_schema, lead_id, stage, changed_at) VALUES (?, ?, ?, ?)",
		string(ref.Schema), ref.ID, stage, formatTime(at),
	)
	return err
}

// MarkSigned records the case's transition to signed.
func (s *Store) MarkSigned(ctx context.Context, ref compensation.CaseRef, at time.Time) error {
	return s.RecordStage(ctx, ref, StageSigned, at)
}

// SaveInstallment upserts an installment.
func (s *Store) SaveInstallment(ctx context.Context, i compensation.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO installments
		(id, lead_schema, lead_id, amount, amount_base, currency_id, currency, due_date,
		 ready_to_pay, paid, cancel_date, actual_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		i.ID, string(i.Case.Schema), i.Case.ID, i.Amount.String(), i.AmountBase.String(), i.CurrencyID, i.Currency,
		formatTime(i.DueDate), i.ReadyToPay, i.Paid, nullTime(i.CancelDate), nullTime(i.ActualDate),
	)
	return err
}

// SaveSalary upserts a monthly salary row.
func (s *Store) SaveSalary(ctx context.Context, year int, month time.Month, row compensation.SalaryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO salaries (employee_id, year, month, net_salary, gross_salary, total_cost)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			net_salary = excluded.net_salary,
			gross_salary = excluded.gross_salary,
			total_cost = excluded.total_cost
	`, int64(row.EmployeeID), year, int(month), row.NetSalary.String(), row.GrossSalary.String(), row.TotalCost.String())
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Configuration is kept.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"installments", "stage_history", "current_leads", "legacy_leads",
		"salaries", "employees", "categories", "main_categories", "currencies",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func currencyJoin(id sql.NullInt64, iso, name sql.NullString) *compensation.CurrencyJoin {
	if !id.Valid {
		return nil
	}
	return &compensation.CurrencyJoin{ID: int(id.Int64), ISOCode: iso.String, Name: name.String}
}

func categoryJoin(id sql.NullInt64, name sql.NullString, mainID sql.NullInt64, mainName sql.NullString) *compensation.Category {
	if !id.Valid {
		return nil
	}
	c := &compensation.Category{ID: id.Int64, Name: name.String}
	if mainID.Valid {
		c.Main = &compensation.MainCategory{ID: mainID.Int64, Name: mainName.String}
	}
	return c
}
