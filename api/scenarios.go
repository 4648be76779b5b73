/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the record store with realistic
	data for testing and demos. Each scenario creates employees, cases, stage
	history, installments and salaries, then applies its own configuration.

AVAILABLE SCENARIOS:

	usd-helper-close:   One USD case closed with a helper closer
	legacy-handler-due: Legacy handler with due installments, one cancelled
	full-firm:          Both schemas, every department, salaries, fields

HOW SCENARIOS WORK:
 1. Reset record tables (configuration is kept)
 2. Seed currencies, categories and employees
 3. Seed cases, sign events and installments
 4. Write the scenario's configuration document via the factory
 5. Reload configuration and refresh the latest report

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "usd-helper-close"}

	GET /api/report?from=2025-03-01&to=2025-03-31

NOTE:

	Scenarios reset the record store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Report endpoints
  - factory/config.go: Configuration JSON
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/contribution-engine/compensation"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "usd-helper-close",
		Name:        "USD Close With Helper",
		Description: "10,000 USD case, 1,000 USD fee, closer and helper closer at 20% each",
		From:        "2025-03-01",
		To:          "2025-03-31",
	},
	{
		ID:          "legacy-handler-due",
		Name:        "Legacy Handler Due",
		Description: "Handler on three legacy cases, one installment cancelled, due normalized at 50%",
		From:        "2025-03-01",
		To:          "2025-03-31",
	},
	{
		ID:          "full-firm",
		Name:        "Full Firm",
		Description: "Current and legacy cases across every department with salaries and separate fields",
		From:        "2025-03-01",
		To:          "2025-03-31",
	},
}

var scenarioMonth = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Seeds == nil {
		writeError(w, http.StatusConflict, "Scenarios require the SQLite store", nil)
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "scenario_id is required", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context) (string, error)
	switch id {
	case "usd-helper-close":
		load = h.loadUSDHelperCloseScenario
	case "legacy-handler-due":
		load = h.loadLegacyHandlerDueScenario
	case "full-firm":
		load = h.loadFullFirmScenario
	default:
		return errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Seeds.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	if err := h.seedReferenceData(ctx); err != nil {
		return err
	}
	configJSON, err := load(ctx)
	if err != nil {
		return err
	}
	if err := h.applyScenarioConfig(ctx, configJSON); err != nil {
		return err
	}

	if _, err := h.Service.ReloadConfig(ctx); err != nil {
		return err
	}
	if _, err := h.Service.Refresh(ctx); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// applyScenarioConfig parses a configuration document and stores its role
// percentages and settings.
func (h *Handler) applyScenarioConfig(ctx context.Context, configJSON string) error {
	cfg, err := h.Factory.ParseConfig([]byte(configJSON))
	if err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}
	if err := h.Seeds.SaveRolePercentages(ctx, cfg.Roles); err != nil {
		return err
	}
	return h.Seeds.SaveReportingSettings(ctx, cfg.Settings)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (h *Handler) seedReferenceData(ctx context.Context) error {
	currencies := []compensation.CurrencyJoin{
		{ID: 1, ISOCode: "ILS", Name: "NIS"},
		{ID: 2, ISOCode: "EUR", Name: "Euro"},
		{ID: 3, ISOCode: "USD", Name: "US Dollar"},
		{ID: 4, ISOCode: "GBP", Name: "Pound Sterling"},
	}
	for _, c := range currencies {
		if err := h.Seeds.SaveCurrency(ctx, c); err != nil {
			return err
		}
	}

	immigration := &compensation.MainCategory{ID: 1, Name: "Immigration Israel"}
	german := &compensation.MainCategory{ID: 2, Name: "German Citizenship"}
	austrian := &compensation.MainCategory{ID: 3, Name: "Austrian Citizenship"}
	categories := []compensation.Category{
		{ID: 10, Name: "Small Without Meeting", Main: immigration},
		{ID: 11, Name: "Work Visa", Main: immigration},
		{ID: 20, Name: "German Citizenship - Descendants", Main: german},
		{ID: 30, Name: "Austrian Citizenship - Section 58c", Main: austrian},
	}
	for _, c := range categories {
		if err := h.Seeds.SaveCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) saveEmployees(ctx context.Context, employees ...compensation.Employee) error {
	for _, e := range employees {
		e.Active = true
		if err := h.Seeds.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time { return scenarioMonth.AddDate(0, 0, d-1) }

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadUSDHelperCloseScenario(ctx context.Context) (string, error) {
	if err := h.saveEmployees(ctx,
		compensation.Employee{ID: 1, Name: "Dana Levi", RoleCode: "c"},
		compensation.Employee{ID: 2, Name: "Yossi Cohen", RoleCode: "s"},
	); err != nil {
		return "", err
	}

	caseA := compensation.CurrentCase{
		ID:               "a1f0c2d4-0000-4000-8000-000000000001",
		LeadNumber:       "L-1001",
		Balance:          dec("10000"),
		BalanceCurrency:  "USD",
		SubcontractorFee: dec("1000"),
		Category:         "Work Visa",
		CategoryID:       11,
		Closer:           "Dana Levi",
		HelperCloser:     "2",
	}
	if err := h.Seeds.SaveCurrentCase(ctx, caseA); err != nil {
		return "", err
	}
	ref := compensation.CaseRef{Schema: compensation.SchemaCurrent, ID: caseA.ID}
	if err := h.Seeds.MarkSigned(ctx, ref, day(10)); err != nil {
		return "", err
	}

	return `{
		"role_percentages": {"CLOSER_WITH_HELPER": 20, "HELPER_CLOSER": 20},
		"settings": {"target_income": 0, "due_normalized_percentage": 100}
	}`, nil
}

func (h *Handler) loadLegacyHandlerDueScenario(ctx context.Context) (string, error) {
	if err := h.saveEmployees(ctx,
		compensation.Employee{ID: 7, Name: "Miriam Katz", RoleCode: "h"},
	); err != nil {
		return "", err
	}

	for i, id := range []int64{501, 502, 503} {
		c := compensation.LegacyCase{
			ID:            id,
			LeadNumber:    fmt.Sprintf("%d", 9000+i),
			Total:         dec("5000"),
			TotalBase:     dec("5000"),
			CurrencyID:    compensation.BaseCurrencyID,
			Category:      "Small without meetin",
			CaseHandlerID: 7,
		}
		if err := h.Seeds.SaveLegacyCase(ctx, c); err != nil {
			return "", err
		}
	}

	cancelled := day(2)
	installments := []compensation.Installment{
		{ID: "p-501", Case: legacyRef(501), Amount: dec("500"), AmountBase: dec("500"), CurrencyID: 1, DueDate: day(5), ReadyToPay: true},
		{ID: "p-502", Case: legacyRef(502), Amount: dec("800"), AmountBase: dec("800"), CurrencyID: 1, DueDate: day(12), ReadyToPay: true, CancelDate: &cancelled},
		{ID: "p-503", Case: legacyRef(503), Amount: dec("1200"), AmountBase: dec("1200"), CurrencyID: 1, DueDate: day(20), ReadyToPay: true},
	}
	for _, inst := range installments {
		if err := h.Seeds.SaveInstallment(ctx, inst); err != nil {
			return "", err
		}
	}

	return `{
		"role_percentages": {"HANDLER": 10},
		"settings": {"target_income": 0, "due_normalized_percentage": 50}
	}`, nil
}

func (h *Handler) loadFullFirmScenario(ctx context.Context) (string, error) {
	if err := h.saveEmployees(ctx,
		compensation.Employee{ID: 1, Name: "Dana Levi", RoleCode: "c"},
		compensation.Employee{ID: 2, Name: "Yossi Cohen", RoleCode: "s"},
		compensation.Employee{ID: 3, Name: "Noa Friedman", RoleCode: "z"},
		compensation.Employee{ID: 4, Name: "Avi Mizrahi", RoleCode: "h"},
		compensation.Employee{ID: 5, Name: "Ruth Klein", RoleCode: "e"},
		compensation.Employee{ID: 6, Name: "Eli Shapiro", RoleCode: "p"},
		compensation.Employee{ID: 7, Name: "Tamar Ben-David", RoleCode: "ma"},
		compensation.Employee{ID: 8, Name: "Omer Golan", RoleCode: "f"},
	); err != nil {
		return "", err
	}

	current := []compensation.CurrentCase{
		{
			ID: "c0000000-0000-4000-8000-000000000101", LeadNumber: "L-2001",
			Balance: dec("120000"), BalanceCurrency: "₪", Category: "Work Visa", CategoryID: 11,
			Closer: "Dana Levi", Scheduler: "Noa Friedman", Manager: "Eli Shapiro",
			Handler: "Avi Mizrahi", Expert: "5",
		},
		{
			ID: "c0000000-0000-4000-8000-000000000102", LeadNumber: "L-2002",
			Balance: dec("8000"), BalanceCurrency: "EUR", SubcontractorFee: dec("500"),
			Category: "German Citizenship - Descendants", CategoryID: 20,
			Closer: "1", HelperCloser: "Yossi Cohen", Handler: "4",
		},
		{
			ID: "c0000000-0000-4000-8000-000000000103", LeadNumber: "L-2003",
			ProposalTotal: dec("6000"), ProposalCurrency: "GBP", Category: "austrian citizenship 58c",
			Closer: "Yossi Cohen", Scheduler: "3", CaseHandlerID: 5,
		},
	}
	for i, c := range current {
		if err := h.Seeds.SaveCurrentCase(ctx, c); err != nil {
			return "", err
		}
		ref := compensation.CaseRef{Schema: compensation.SchemaCurrent, ID: c.ID}
		if err := h.Seeds.MarkSigned(ctx, ref, day(3+7*i)); err != nil {
			return "", err
		}
	}

	legacy := []compensation.LegacyCase{
		{
			ID: 3001, LeadNumber: "3001", Total: dec("45000"), TotalBase: dec("45000"), CurrencyID: 1,
			CategoryID: 10, CloserID: 1, SchedulerID: 3, CaseHandlerID: 4, MeetingManagerID: 6,
		},
		{
			ID: 3002, LeadNumber: "3002", Total: dec("3000"), CurrencyID: 3,
			Category: "Work visa", CloserID: 2, CaseHandlerID: 5, ExpertID: 4,
		},
		{
			// signed last year, still collecting
			ID: 2900, LeadNumber: "2900", Total: dec("60000"), TotalBase: dec("60000"), CurrencyID: 1,
			CategoryID: 20, CloserID: 1, CaseHandlerID: 4,
		},
	}
	for _, c := range legacy {
		if err := h.Seeds.SaveLegacyCase(ctx, c); err != nil {
			return "", err
		}
	}
	if err := h.Seeds.MarkSigned(ctx, legacyRef(3001), day(4)); err != nil {
		return "", err
	}
	if err := h.Seeds.MarkSigned(ctx, legacyRef(3002), day(18)); err != nil {
		return "", err
	}
	if err := h.Seeds.MarkSigned(ctx, legacyRef(2900), scenarioMonth.AddDate(-1, 0, 0)); err != nil {
		return "", err
	}

	paid := day(6)
	currentRef := func(id string) compensation.CaseRef {
		return compensation.CaseRef{Schema: compensation.SchemaCurrent, ID: id}
	}
	installments := []compensation.Installment{
		{ID: "i-1", Case: currentRef(current[0].ID), Amount: dec("40000"), Currency: "NIS", DueDate: day(15), ReadyToPay: true},
		{ID: "i-2", Case: currentRef(current[0].ID), Amount: dec("40000"), Currency: "NIS", DueDate: day(45), ReadyToPay: true},
		{ID: "i-3", Case: currentRef(current[1].ID), Amount: dec("2000"), CurrencyID: 2, DueDate: day(20), ReadyToPay: true},
		{ID: "i-4", Case: currentRef(current[1].ID), Amount: dec("2000"), CurrencyID: 2, DueDate: day(8), ReadyToPay: true, Paid: true},
		{ID: "i-5", Case: legacyRef(3001), Amount: dec("15000"), AmountBase: dec("15000"), CurrencyID: 1, DueDate: day(25), ReadyToPay: true},
		{ID: "i-6", Case: legacyRef(2900), Amount: dec("20000"), AmountBase: dec("20000"), CurrencyID: 1, DueDate: day(10), ReadyToPay: true},
		{ID: "i-7", Case: legacyRef(2900), Amount: dec("20000"), AmountBase: dec("20000"), CurrencyID: 1, DueDate: day(2), ReadyToPay: true, ActualDate: &paid},
		{ID: "i-8", Case: legacyRef(3002), Amount: dec("1000"), CurrencyID: 3, DueDate: day(28), ReadyToPay: false},
	}
	for _, inst := range installments {
		if err := h.Seeds.SaveInstallment(ctx, inst); err != nil {
			return "", err
		}
	}

	salaries := []compensation.SalaryRow{
		{EmployeeID: 1, NetSalary: dec("14000"), GrossSalary: dec("20000"), TotalCost: dec("25000")},
		{EmployeeID: 2, NetSalary: dec("11000"), GrossSalary: dec("15000")},
		{EmployeeID: 4, NetSalary: dec("16000"), GrossSalary: dec("23000"), TotalCost: dec("28000")},
		{EmployeeID: 7, NetSalary: dec("12000"), GrossSalary: dec("17000"), TotalCost: dec("21000")},
		{EmployeeID: 8, NetSalary: dec("13000"), GrossSalary: dec("18000"), TotalCost: dec("22000")},
	}
	for _, s := range salaries {
		if err := h.Seeds.SaveSalary(ctx, scenarioMonth.Year(), scenarioMonth.Month(), s); err != nil {
			return "", err
		}
	}

	return `{
		"role_percentages": {
			"CLOSER": 40, "CLOSER_WITH_HELPER": 25, "HELPER_CLOSER": 15,
			"SCHEDULER": 10, "MANAGER": 5, "EXPERT": 5,
			"HANDLER": 10, "HELPER_HANDLER": 5, "DEPARTMENT_MANAGER": 2
		},
		"settings": {"target_income": 150000, "due_normalized_percentage": 60}
	}`, nil
}

func legacyRef(id int64) compensation.CaseRef {
	return compensation.CaseRef{Schema: compensation.SchemaLegacy, ID: fmt.Sprintf("%d", id)}
}
