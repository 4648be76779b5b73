/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario seeds the record store and configuration it
	describes, and that loading one scenario replaces the previous one.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/report"
)

func TestScenarios_List(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "usd-helper-close", list[0].ID)
}

func TestScenarios_CurrentTracksLoad(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	loadScenario(t, router, "legacy-handler-due")

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "legacy-handler-due", decode[ScenarioDTO](t, rec).ID)
}

func TestScenarios_LoadRejections(t *testing.T) {
	h, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.Seeds = nil
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "full-firm"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScenario_USDHelperCloseSeedsStore(t *testing.T) {
	// GIVEN: The usd-helper-close scenario
	// WHEN: Loading it
	// THEN: Two sales employees, one signed current case and its configuration

	h, _ := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, h.loadScenario(ctx, "usd-helper-close"))

	employees, err := h.Seeds.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 2)

	events, err := h.Seeds.SignedCases(ctx, compensation.MonthPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, compensation.SchemaCurrent, events[0].Case.Schema)

	cfg, _, err := h.Service.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Roles.Get(compensation.PctHelperCloser).Equal(dec("20")))
	assert.True(t, cfg.Settings.DueNormalizedPercentage.Equal(dec("100")))
}

func TestScenario_ReloadReplacesPreviousData(t *testing.T) {
	h, _ := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, h.loadScenario(ctx, "full-firm"))
	require.NoError(t, h.loadScenario(ctx, "legacy-handler-due"))

	employees, err := h.Seeds.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "Miriam Katz", employees[0].Name)

	cfg, _, err := h.Service.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Roles.Get(compensation.PctCloser).IsZero(), "full-firm percentages are replaced")
	assert.True(t, cfg.Settings.DueNormalizedPercentage.Equal(dec("50")))
}

func TestScenario_FullFirm(t *testing.T) {
	// GIVEN: The full-firm scenario
	// WHEN: Running March
	// THEN: Every department is populated, last year's legacy case only
	//       contributes due, and no sub-query degraded

	h, _ := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "full-firm"))

	snap, err := h.Service.Run(ctx, report.Request{
		Period:      compensation.MonthPeriod(2025, time.March),
		SalaryYear:  2025,
		SalaryMonth: time.March,
	})
	require.NoError(t, err)

	assert.Empty(t, snap.Degraded)
	assert.Equal(t, 5, snap.SignedCaseCount)
	assert.Len(t, snap.Employees, 8)
	assert.True(t, snap.Ratios.Signed.LessThan(dec("1")), "target income scales signed figures down")
	assert.True(t, snap.Ratios.Due.Equal(dec("0.6")))

	for _, dt := range snap.Departments {
		assert.Positive(t, dt.Headcount, dt.Department)
	}

	handler, ok := snap.Employee(4)
	require.True(t, ok)
	assert.True(t, handler.DueTotal.IsPositive())
	assert.True(t, handler.HasSalary)

	marketing, ok := snap.Employee(7)
	require.True(t, ok)
	assert.Equal(t, compensation.DeptMarketing, marketing.Department)
	assert.True(t, marketing.SignedTotal.IsZero())
}
