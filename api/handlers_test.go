/*
handlers_test.go - HTTP tests for report, config and admin endpoints

Tests run the full router against an in-memory SQLite store seeded through
the demo scenarios, so every request exercises the batch end to end.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/report"
	"github.com/warp/contribution-engine/store/sqlite"
)

var testRates = compensation.RateTable{
	compensation.USD: decimal.RequireFromString("3.7"),
	compensation.EUR: decimal.RequireFromString("4.0"),
	compensation.GBP: decimal.RequireFromString("4.6"),
}

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := report.NewService(store, store, report.Options{Converter: testRates})
	h := NewHandler(svc, store)
	h.Seeds = store
	return h, NewRouter(h, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

const marchQuery = "/api/report?from=2025-03-01&to=2025-03-31"

// =============================================================================
// REPORT
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestGetReport_HelperClose(t *testing.T) {
	// GIVEN: A 10,000 USD case with a 1,000 USD fee, closer and helper at 20%
	// WHEN: Requesting the March report
	// THEN: Each gets 6,660 attributed and a 2,331 contribution

	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")

	rec := do(t, router, http.MethodGet, marchQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decode[SnapshotDTO](t, rec)
	assert.Equal(t, 1, snap.SignedCaseCount)
	assert.Equal(t, 33300.0, snap.TotalSignedNet)
	assert.Equal(t, 37000.0, snap.TotalSignedValue)
	assert.Equal(t, 1.0, snap.SignedRatio)
	assert.Equal(t, PeriodDTO{From: "2025-03-01", To: "2025-03-31"}, snap.DueWindow)
	assert.NotEmpty(t, snap.RunID)

	require.Len(t, snap.Employees, 2)
	for _, e := range snap.Employees {
		assert.Equal(t, 6660.0, e.SignedPortionNormalized, e.Name)
		assert.Equal(t, 2331.0, e.Contribution, e.Name)
		assert.Equal(t, 932.4, e.SalaryBudget, e.Name)
		assert.Empty(t, e.Lines, "lines are opt-in")
	}
	assert.Equal(t, "Sales", snap.Employees[0].Department)
}

func TestGetReport_WithLines(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")

	rec := do(t, router, http.MethodGet, "/api/report?month=3&year=2025&lines=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decode[SnapshotDTO](t, rec)
	require.Len(t, snap.Employees, 2)
	require.Len(t, snap.Employees[1].Lines, 1)
	line := snap.Employees[1].Lines[0]
	assert.Equal(t, "Immigration Israel", line.MainCategory)
	assert.Equal(t, "Helper Closer", line.Roles)
	assert.Equal(t, 20.0, line.SignedPercentage)
}

func TestGetReport_InvalidRequests(t *testing.T) {
	_, router := setupTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"no period", "/api/report"},
		{"bad date", "/api/report?from=2025-13-01&to=2025-03-31"},
		{"end before start", "/api/report?from=2025-03-31&to=2025-03-01"},
		{"bad month", "/api/report?month=13&year=2025"},
		{"bad salary month", marchQuery + "&salary_year=2025&salary_month=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestGetLatestReport_BeforeAnyRun(t *testing.T) {
	_, router := setupTestServer(t)

	for _, path := range []string{"/api/report/latest", "/api/report/departments", "/api/report/fields", "/api/report/employees/1"} {
		rec := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "no_report", decode[ErrorResponse](t, rec).Code, path)
	}
}

func TestGetEmployeeReport(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, marchQuery, nil).Code)

	rec := do(t, router, http.MethodGet, "/api/report/employees/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	emp := decode[EmployeeReportDTO](t, rec)
	assert.Equal(t, "Yossi Cohen", emp.Name)
	assert.Len(t, emp.Lines, 1)
	require.Len(t, emp.Combinations, 1)
	assert.Equal(t, 1, emp.Combinations[0].Cases)

	rec = do(t, router, http.MethodGet, "/api/report/employees/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/report/employees/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDepartmentsAndFields(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, marchQuery, nil).Code)

	rec := do(t, router, http.MethodGet, "/api/report/departments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	depts := decode[[]DepartmentDTO](t, rec)
	require.Len(t, depts, len(compensation.Departments()))
	assert.Equal(t, "Sales", depts[0].Department)
	assert.Equal(t, 2, depts[0].Headcount)
	assert.Equal(t, 4662.0, depts[0].Contribution)

	rec = do(t, router, http.MethodGet, "/api/report/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode[[]FieldDTO](t, rec)
	require.Len(t, fields, 1)
	assert.Equal(t, compensation.GeneralField, fields[0].Field)
	assert.Equal(t, 1, fields[0].Cases)
}

func TestGetReport_LegacyHandlerDue(t *testing.T) {
	// GIVEN: A legacy handler with 500 and 1,200 due and a cancelled 800
	// WHEN: Requesting March with due normalized at 50% and HANDLER at 10%
	// THEN: Due total 1,700, normalized 850, portion 85

	_, router := setupTestServer(t)
	loadScenario(t, router, "legacy-handler-due")

	rec := do(t, router, http.MethodGet, marchQuery, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[SnapshotDTO](t, rec)

	assert.Equal(t, 0, snap.SignedCaseCount)
	assert.Equal(t, 1700.0, snap.TotalDue)
	assert.Equal(t, 0.5, snap.DueRatio)
	require.Len(t, snap.Employees, 1)
	e := snap.Employees[0]
	assert.Equal(t, 1700.0, e.DueTotal)
	assert.Equal(t, 850.0, e.DueNormalized)
	assert.Equal(t, 85.0, e.DuePortion)
	assert.Equal(t, 29.75, e.Contribution)
	assert.Equal(t, "Handlers", e.Department)
}

func TestGetReport_CustomDueWindow(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "legacy-handler-due")

	rec := do(t, router, http.MethodGet, marchQuery+"&due_from=2025-03-01&due_to=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[SnapshotDTO](t, rec)

	assert.Equal(t, PeriodDTO{From: "2025-03-01", To: "2025-03-10"}, snap.DueWindow)
	assert.Equal(t, 500.0, snap.TotalDue)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestPutRolePercentages_RecomputesLastReport(t *testing.T) {
	// GIVEN: A computed March report
	// WHEN: CLOSER_WITH_HELPER drops to 10
	// THEN: The response carries the new version and the recomputed report

	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")
	first := decode[SnapshotDTO](t, do(t, router, http.MethodGet, marchQuery, nil))

	rec := do(t, router, http.MethodPut, "/api/config/role-percentages", map[string]float64{
		"CLOSER_WITH_HELPER": 10,
		"HELPER_CLOSER":      20,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg := decode[ConfigDTO](t, rec)
	assert.Greater(t, cfg.Version, first.ConfigVersion)
	assert.Equal(t, 10.0, cfg.Config.RolePercentages["CLOSER_WITH_HELPER"])
	require.NotNil(t, cfg.Report)
	require.Len(t, cfg.Report.Employees, 2)
	assert.Equal(t, 3330.0, cfg.Report.Employees[0].SignedPortionNormalized)
	assert.Equal(t, 6660.0, cfg.Report.Employees[1].SignedPortionNormalized)

	latest := decode[SnapshotDTO](t, do(t, router, http.MethodGet, "/api/report/latest", nil))
	assert.Equal(t, cfg.Report.RunID, latest.RunID)
}

func TestPutRolePercentages_RejectedKeepsPrevious(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")

	for _, body := range []string{
		`{"CLOSER": 150}`,
		`{"JANITOR": 5}`,
		`{"CLOSER": "forty"}`,
	} {
		rec := do(t, router, http.MethodPut, "/api/config/role-percentages", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_input", decode[ErrorResponse](t, rec).Code, body)
	}

	rec := do(t, router, http.MethodGet, "/api/config/role-percentages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roles := decode[map[string]float64](t, rec)
	assert.Equal(t, 20.0, roles["CLOSER_WITH_HELPER"])
	assert.Equal(t, 0.0, roles["CLOSER"])
}

func TestPutSettings(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, marchQuery, nil).Code)

	rec := do(t, router, http.MethodPut, "/api/config/settings", `{"target_income": 16650}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg := decode[ConfigDTO](t, rec)
	require.NotNil(t, cfg.Report)
	assert.Equal(t, 0.5, cfg.Report.SignedRatio)
	assert.Equal(t, 3330.0, cfg.Report.Employees[0].SignedPortionNormalized)

	rec = do(t, router, http.MethodGet, "/api/config/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decode[map[string]float64](t, rec)
	assert.Equal(t, 16650.0, settings["target_income"])
	assert.Equal(t, 100.0, settings["due_normalized_percentage"])

	rec = do(t, router, http.MethodPut, "/api/config/settings", `{"target_income": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConfig(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[ConfigDTO](t, rec)
	assert.Len(t, cfg.Config.RolePercentages, len(compensation.PercentageKeys()))
	assert.Contains(t, cfg.Config.Departments, "Sales")
	assert.Nil(t, cfg.Report)
}

// =============================================================================
// EMPLOYEES AND ADMIN
// =============================================================================

func TestListEmployees(t *testing.T) {
	_, router := setupTestServer(t)
	loadScenario(t, router, "full-firm")

	rec := do(t, router, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	employees := decode[[]EmployeeDTO](t, rec)
	assert.Len(t, employees, 8)
	assert.Equal(t, "Dana Levi", employees[0].Name)
	assert.True(t, employees[0].Active)
}

func TestTriggerRefresh(t *testing.T) {
	h, router := setupTestServer(t)
	loadScenario(t, router, "usd-helper-close")

	// nothing requested yet
	rec := do(t, router, http.MethodPost, "/api/admin/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode[map[string]string](t, rec)["status"])

	first := decode[SnapshotDTO](t, do(t, router, http.MethodGet, marchQuery, nil))

	h.Scheduler = report.NewRefreshScheduler(h.Service)
	rec = do(t, router, http.MethodPost, "/api/admin/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decode[SnapshotDTO](t, rec)
	assert.Greater(t, refreshed.Generation, first.Generation)
	assert.NotEqual(t, first.RunID, refreshed.RunID)
	assert.Equal(t, first.TotalSignedNet, refreshed.TotalSignedNet)

	rec = do(t, router, http.MethodGet, "/api/admin/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[RefreshStatusDTO](t, rec)
	assert.True(t, status.Enabled)
	assert.Equal(t, "15m0s", status.Interval)
	assert.NotEmpty(t, status.LastRun)
	assert.Empty(t, status.LastError)
}
