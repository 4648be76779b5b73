/*
Package postgres implements the record source and config store over the hosted
PostgreSQL database with a pgx connection pool.

The table layout matches store/sqlite. Amounts are NUMERIC and travel as text
(::text on read, ::numeric on write) so they reach decimal.Decimal without
passing through float64. Set lists use = ANY($n) with Go slices.

SEE ALSO:
  - store/sqlite: Embedded implementation and the schema reference
  - compensation/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/compensation"
)

// StageSigned is the stage_history value that marks a signed case.
const StageSigned = "signed"

// NewPool opens a pool from DATABASE_URL and pings it.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return Connect(ctx, connStr)
}

// Connect opens a pool for the given connection string and pings it.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// Store implements compensation.Store over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS currencies (
		id INTEGER PRIMARY KEY,
		iso_code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS main_categories (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS categories (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		main_category_id BIGINT REFERENCES main_categories(id)
	);
	CREATE TABLE IF NOT EXISTS employees (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		role_code TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE IF NOT EXISTS current_leads (
		id TEXT PRIMARY KEY,
		lead_number TEXT NOT NULL DEFAULT '',
		balance NUMERIC NOT NULL DEFAULT 0,
		proposal_total NUMERIC NOT NULL DEFAULT 0,
		balance_currency TEXT NOT NULL DEFAULT '',
		proposal_currency TEXT NOT NULL DEFAULT '',
		currency_id INTEGER,
		subcontractor_fee NUMERIC NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		category_id BIGINT,
		closer TEXT NOT NULL DEFAULT '',
		scheduler TEXT NOT NULL DEFAULT '',
		helper_closer TEXT NOT NULL DEFAULT '',
		handler TEXT NOT NULL DEFAULT '',
		expert TEXT NOT NULL DEFAULT '',
		manager TEXT NOT NULL DEFAULT '',
		case_handler_id BIGINT,
		meeting_manager_id BIGINT
	);
	CREATE TABLE IF NOT EXISTS legacy_leads (
		id BIGINT PRIMARY KEY,
		lead_number TEXT NOT NULL DEFAULT '',
		total NUMERIC NOT NULL DEFAULT 0,
		total_base NUMERIC NOT NULL DEFAULT 0,
		currency_id INTEGER,
		subcontractor_fee NUMERIC NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		category_id BIGINT,
		closer_id BIGINT,
		scheduler_id BIGINT,
		helper_closer_id BIGINT,
		case_handler_id BIGINT,
		meeting_manager_id BIGINT,
		expert_id BIGINT
	);
	CREATE TABLE IF NOT EXISTS stage_history (
		id BIGSERIAL PRIMARY KEY,
		lead_schema TEXT NOT NULL,
		lead_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stage_history_stage_date ON stage_history(stage, changed_at);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		lead_schema TEXT NOT NULL,
		lead_id TEXT NOT NULL,
		amount NUMERIC NOT NULL DEFAULT 0,
		amount_base NUMERIC NOT NULL DEFAULT 0,
		currency_id INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		due_date TIMESTAMPTZ NOT NULL,
		ready_to_pay BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		cancel_date TIMESTAMPTZ,
		actual_date TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_installments_lead ON installments(lead_schema, lead_id, due_date);
	CREATE TABLE IF NOT EXISTS salaries (
		employee_id BIGINT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		net_salary NUMERIC NOT NULL DEFAULT 0,
		gross_salary NUMERIC NOT NULL DEFAULT 0,
		total_cost NUMERIC NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, year, month)
	);
	CREATE TABLE IF NOT EXISTS role_percentages (
		role TEXT PRIMARY KEY,
		percentage NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS reporting_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		target_income NUMERIC NOT NULL DEFAULT 0,
		due_normalized_percentage NUMERIC NOT NULL DEFAULT 100,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// =============================================================================
// RECORD SOURCE
// =============================================================================

func (s *Store) SignedCases(ctx context.Context, period compensation.Period) ([]compensation.StageEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lead_schema, lead_id, MIN(changed_at)
		FROM stage_history
		WHERE stage = $1 AND changed_at >= $2 AND changed_at <= $3
		GROUP BY lead_schema, lead_id
		ORDER BY lead_schema, lead_id
	`, StageSigned, period.From, period.To)
	if err != nil {
		return nil, fmt.Errorf("query stage history: %w", err)
	}
	defer rows.Close()

	var events []compensation.StageEvent
	for rows.Next() {
		var (
			schema, leadID string
			at             time.Time
		)
		if err := rows.Scan(&schema, &leadID, &at); err != nil {
			return nil, err
		}
		events = append(events, compensation.StageEvent{
			Case:     compensation.CaseRef{Schema: compensation.Schema(schema), ID: leadID},
			SignedAt: at.UTC(),
		})
	}
	return events, rows.Err()
}

func (s *Store) CaseDetails(ctx context.Context, schema compensation.Schema, ids []string) ([]compensation.CaseRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	switch schema {
	case compensation.SchemaCurrent:
		return s.queryCurrent(ctx, "l.id = ANY($1)", ids)
	case compensation.SchemaLegacy:
		nums := make([]int64, 0, len(ids))
		for _, id := range ids {
			if n, err := strconv.ParseInt(id, 10, 64); err == nil {
				nums = append(nums, n)
			}
		}
		if len(nums) == 0 {
			return nil, nil
		}
		return s.queryLegacy(ctx, "l.id = ANY($1)", nums)
	}
	return nil, fmt.Errorf("unknown schema %q", schema)
}

func (s *Store) HandlerCases(ctx context.Context, schema compensation.Schema, employees []compensation.Employee) ([]compensation.CaseRecord, error) {
	if len(employees) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(employees))
	names := make([]string, 0, 2*len(employees))
	for i, e := range employees {
		ids[i] = int64(e.ID)
		names = append(names, e.Name, strconv.FormatInt(int64(e.ID), 10))
	}

	var (
		recs []compensation.CaseRecord
		err  error
	)
	switch schema {
	case compensation.SchemaCurrent:
		recs, err = s.queryCurrent(ctx,
			"l.case_handler_id = ANY($1) OR LOWER(TRIM(l.handler)) = ANY(SELECT LOWER(TRIM(n)) FROM UNNEST($2::text[]) n)",
			ids, names)
	case compensation.SchemaLegacy:
		recs, err = s.queryLegacy(ctx, "l.case_handler_id = ANY($1)", ids)
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

func (s *Store) queryCurrent(ctx context.Context, where string, args ...any) ([]compensation.CaseRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.lead_number, l.balance::text, l.proposal_total::text,
		       l.balance_currency, l.proposal_currency,
		       cur.id, cur.iso_code, cur.name, l.subcontractor_fee::text,
		       l.category, l.category_id, c.id, c.name, m.id, m.name,
		       l.closer, l.scheduler, l.helper_closer, l.handler, l.expert, l.manager,
		       l.case_handler_id, l.meeting_manager_id
		FROM current_leads l
		LEFT JOIN currencies cur ON cur.id = l.currency_id
		LEFT JOIN categories c ON c.id = l.category_id
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		WHERE `+where+`
		ORDER BY l.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query current leads: %w", err)
	}
	defer rows.Close()

	var out []compensation.CaseRecord
	for rows.Next() {
		var (
			c                           compensation.CurrentCase
			balance, proposal, fee      string
			curID                       *int32
			curISO, curName             *string
			categoryID, catID, mainID   *int64
			catName, mainName           *string
			closer, scheduler, helper   string
			handler, expert, manager    string
			caseHandler, meetingManager *int64
		)
		if err := rows.Scan(
			&c.ID, &c.LeadNumber, &balance, &proposal,
			&c.BalanceCurrency, &c.ProposalCurrency,
			&curID, &curISO, &curName, &fee,
			&c.Category, &categoryID, &catID, &catName, &mainID, &mainName,
			&closer, &scheduler, &helper, &handler, &expert, &manager,
			&caseHandler, &meetingManager,
		); err != nil {
			return nil, err
		}
		c.Balance = parseDecimal(balance)
		c.ProposalTotal = parseDecimal(proposal)
		c.SubcontractorFee = parseDecimal(fee)
		c.Currency = currencyJoin(curID, curISO, curName)
		c.CategoryID = deref(categoryID)
		c.CategoryJoin = categoryJoin(catID, catName, mainID, mainName)
		c.Closer = compensation.RawRole(closer)
		c.Scheduler = compensation.RawRole(scheduler)
		c.HelperCloser = compensation.RawRole(helper)
		c.Handler = compensation.RawRole(handler)
		c.Expert = compensation.RawRole(expert)
		c.Manager = compensation.RawRole(manager)
		c.CaseHandlerID = compensation.EmployeeID(deref(caseHandler))
		c.MeetingManagerID = compensation.EmployeeID(deref(meetingManager))
		out = append(out, compensation.FromCurrent(c))
	}
	return out, rows.Err()
}

func (s *Store) queryLegacy(ctx context.Context, where string, args ...any) ([]compensation.CaseRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.lead_number, l.total::text, l.total_base::text, l.currency_id,
		       cur.id, cur.iso_code, cur.name, l.subcontractor_fee::text,
		       l.category, l.category_id, c.id, c.name, m.id, m.name,
		       l.closer_id, l.scheduler_id, l.helper_closer_id, l.case_handler_id,
		       l.meeting_manager_id, l.expert_id
		FROM legacy_leads l
		LEFT JOIN currencies cur ON cur.id = l.currency_id
		LEFT JOIN categories c ON c.id = l.category_id
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		WHERE `+where+`
		ORDER BY l.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query legacy leads: %w", err)
	}
	defer rows.Close()

	var out []compensation.CaseRecord
	for rows.Next() {
		var (
			c                         compensation.LegacyCase
			total, totalBase, fee     string
			currencyID, curID         *int32
			curISO, curName           *string
			categoryID, catID, mainID *int64
			catName, mainName         *string
			roles                     [6]*int64
		)
		if err := rows.Scan(
			&c.ID, &c.LeadNumber, &total, &totalBase, &currencyID,
			&curID, &curISO, &curName, &fee,
			&c.Category, &categoryID, &catID, &catName, &mainID, &mainName,
			&roles[0], &roles[1], &roles[2], &roles[3], &roles[4], &roles[5],
		); err != nil {
			return nil, err
		}
		c.Total = parseDecimal(total)
		c.TotalBase = parseDecimal(totalBase)
		c.SubcontractorFee = parseDecimal(fee)
		if currencyID != nil {
			c.CurrencyID = int(*currencyID)
		}
		c.Currency = currencyJoin(curID, curISO, curName)
		c.CategoryID = deref(categoryID)
		c.CategoryJoin = categoryJoin(catID, catName, mainID, mainName)
		c.CloserID = compensation.EmployeeID(deref(roles[0]))
		c.SchedulerID = compensation.EmployeeID(deref(roles[1]))
		c.HelperCloserID = compensation.EmployeeID(deref(roles[2]))
		c.CaseHandlerID = compensation.EmployeeID(deref(roles[3]))
		c.MeetingManagerID = compensation.EmployeeID(deref(roles[4]))
		c.ExpertID = compensation.EmployeeID(deref(roles[5]))
		out = append(out, compensation.FromLegacy(c))
	}
	return out, rows.Err()
}

func (s *Store) Installments(ctx context.Context, schema compensation.Schema, caseIDs []string, window compensation.Period) ([]compensation.Installment, error) {
	if len(caseIDs) == 0 {
		return nil, nil
	}
	unpaid := "NOT paid"
	if schema == compensation.SchemaLegacy {
		unpaid = "actual_date IS NULL"
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, lead_schema, lead_id, amount::text, amount_base::text, currency_id, currency,
		       due_date, ready_to_pay, paid, cancel_date, actual_date
		FROM installments
		WHERE lead_schema = $1 AND lead_id = ANY($2)
		  AND ready_to_pay AND cancel_date IS NULL AND `+unpaid+`
		  AND due_date >= $3 AND due_date <= $4
		ORDER BY lead_id, due_date, id
	`, string(schema), caseIDs, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}
	defer rows.Close()

	var out []compensation.Installment
	for rows.Next() {
		var (
			inst                   compensation.Installment
			leadSchema, leadID     string
			amount, amountBase     string
			currencyID             int32
			due                    time.Time
			cancelDate, actualDate *time.Time
		)
		if err := rows.Scan(&inst.ID, &leadSchema, &leadID, &amount, &amountBase, &currencyID, &inst.Currency,
			&due, &inst.ReadyToPay, &inst.Paid, &cancelDate, &actualDate); err != nil {
			return nil, err
		}
		inst.Case = compensation.CaseRef{Schema: compensation.Schema(leadSchema), ID: leadID}
		inst.Amount = parseDecimal(amount)
		inst.AmountBase = parseDecimal(amountBase)
		inst.CurrencyID = int(currencyID)
		inst.DueDate = due.UTC()
		inst.CancelDate = cancelDate
		inst.ActualDate = actualDate
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *Store) Employees(ctx context.Context) ([]compensation.Employee, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, role_code, department, active
		FROM employees
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []compensation.Employee
	for rows.Next() {
		var (
			e  compensation.Employee
			id int64
		)
		if err := rows.Scan(&id, &e.Name, &e.RoleCode, &e.Department, &e.Active); err != nil {
			return nil, err
		}
		e.ID = compensation.EmployeeID(id)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Categories(ctx context.Context) ([]compensation.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, m.id, m.name
		FROM categories c
		LEFT JOIN main_categories m ON m.id = c.main_category_id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []compensation.Category
	for rows.Next() {
		var (
			c        compensation.Category
			mainID   *int64
			mainName *string
		)
		if err := rows.Scan(&c.ID, &c.Name, &mainID, &mainName); err != nil {
			return nil, err
		}
		if mainID != nil {
			c.Main = &compensation.MainCategory{ID: *mainID, Name: derefString(mainName)}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) Salaries(ctx context.Context, year int, month time.Month, ids []compensation.EmployeeID) ([]compensation.SalaryRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	nums := make([]int64, len(ids))
	for i, id := range ids {
		nums[i] = int64(id)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT employee_id, net_salary::text, gross_salary::text, total_cost::text
		FROM salaries
		WHERE year = $1 AND month = $2 AND employee_id = ANY($3)
		ORDER BY employee_id
	`, year, int(month), nums)
	if err != nil {
		return nil, fmt.Errorf("query salaries: %w", err)
	}
	defer rows.Close()

	var out []compensation.SalaryRow
	for rows.Next() {
		var (
			id              int64
			net, gross, tot string
		)
		if err := rows.Scan(&id, &net, &gross, &tot); err != nil {
			return nil, err
		}
		out = append(out, compensation.SalaryRow{
			EmployeeID:  compensation.EmployeeID(id),
			NetSalary:   parseDecimal(net),
			GrossSalary: parseDecimal(gross),
			TotalCost:   parseDecimal(tot),
		})
	}
	return out, rows.Err()
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (s *Store) RolePercentages(ctx context.Context) (compensation.RolePercentages, error) {
	rows, err := s.pool.Query(ctx, "SELECT role, percentage::text FROM role_percentages ORDER BY role")
	if err != nil {
		return nil, fmt.Errorf("query role percentages: %w", err)
	}
	defer rows.Close()

	rp := compensation.RolePercentages{}
	for rows.Next() {
		var role, pct string
		if err := rows.Scan(&role, &pct); err != nil {
			return nil, err
		}
		rp[compensation.PercentageKey(role)] = parseDecimal(pct)
	}
	return rp, rows.Err()
}

func (s *Store) SaveRolePercentages(ctx context.Context, rp compensation.RolePercentages) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM role_percentages"); err != nil {
		return err
	}
	for k, v := range rp {
		if _, err := tx.Exec(ctx,
			"INSERT INTO role_percentages (role, percentage) VALUES ($1, $2::numeric)",
			string(k), v.String(),
		); err != nil {
			return fmt.Errorf("save role %s: %w", k, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ReportingSettings(ctx context.Context) (compensation.ReportingSettings, error) {
	var target, due string
	err := s.pool.QueryRow(ctx,
		"SELECT target_income::text, due_normalized_percentage::text FROM reporting_settings WHERE id = 1",
	).Scan(&target, &due)
	if errors.Is(err, pgx.ErrNoRows) {
		return compensation.DefaultConfig().Settings, nil
	}
	if err != nil {
		return compensation.ReportingSettings{}, fmt.Errorf("query reporting settings: %w", err)
	}
	return compensation.ReportingSettings{
		TargetIncome:            parseDecimal(target),
		DueNormalizedPercentage: parseDecimal(due),
	}, nil
}

func (s *Store) SaveReportingSettings(ctx context.Context, st compensation.ReportingSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reporting_settings (id, target_income, due_normalized_percentage, updated_at)
		VALUES (1, $1::numeric, $2::numeric, NOW())
		ON CONFLICT (id) DO UPDATE SET
			target_income = EXCLUDED.target_income,
			due_normalized_percentage = EXCLUDED.due_normalized_percentage,
			updated_at = EXCLUDED.updated_at
	`, st.TargetIncome.String(), st.DueNormalizedPercentage.String())
	return err
}

// =============================================================================
// SEEDING (integration tests)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e compensation.Employee) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (id, name, role_code, department, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, role_code = EXCLUDED.role_code,
			department = EXCLUDED.department, active = EXCLUDED.active
	`, int64(e.ID), e.Name, e.RoleCode, e.Department, e.Active)
	return err
}

func (s *Store) SaveLegacyCase(ctx context.Context, c compensation.LegacyCase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO legacy_leads
		(id, lead_number, total, total_base, currency_id, subcontractor_fee, category, category_id,
		 closer_id, scheduler_id, helper_closer_id, case_handler_id, meeting_manager_id, expert_id)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`,
		c.ID, c.LeadNumber, c.Total.String(), c.TotalBase.String(), nullInt(int64(c.CurrencyID)),
		c.SubcontractorFee.String(), c.Category, nullInt(c.CategoryID),
		nullInt(int64(c.CloserID)), nullInt(int64(c.SchedulerID)), nullInt(int64(c.HelperCloserID)),
		nullInt(int64(c.CaseHandlerID)), nullInt(int64(c.MeetingManagerID)), nullInt(int64(c.ExpertID)),
	)
	return err
}

func (s *Store) MarkSigned(ctx context.Context, ref compensation.CaseRef, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO stage_history (lead_schema, lead_id, stage, changed_at) VALUES ($1, $2, $3, $4)",
		string(ref.Schema), ref.ID, StageSigned, at,
	)
	return err
}

func (s *Store) SaveInstallment(ctx context.Context, i compensation.Installment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO installments
		(id, lead_schema, lead_id, amount, amount_base, currency_id, currency, due_date,
		 ready_to_pay, paid, cancel_date, actual_date)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`,
		i.ID, string(i.Case.Schema), i.Case.ID, i.Amount.String(), i.AmountBase.String(), i.CurrencyID, i.Currency,
		i.DueDate, i.ReadyToPay, i.Paid, i.CancelDate, i.ActualDate,
	)
	return err
}

// Helper functions

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nullInt(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}

func currencyJoin(id *int32, iso, name *string) *compensation.CurrencyJoin {
	if id == nil {
		return nil
	}
	return &compensation.CurrencyJoin{ID: int(*id), ISOCode: derefString(iso), Name: derefString(name)}
}

func categoryJoin(id *int64, name *string, mainID *int64, mainName *string) *compensation.Category {
	if id == nil {
		return nil
	}
	c := &compensation.Category{ID: *id, Name: derefString(name)}
	if mainID != nil {
		c.Main = &compensation.MainCategory{ID: *mainID, Name: derefString(mainName)}
	}
	return c
}
