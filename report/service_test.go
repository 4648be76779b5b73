package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/compensation/store"
	"github.com/warp/contribution-engine/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func march(day int) time.Time {
	return time.Date(2025, time.March, day, 9, 0, 0, 0, time.UTC)
}

var marchRequest = report.Request{
	Period:      compensation.MonthPeriod(2025, time.March),
	SalaryYear:  2025,
	SalaryMonth: time.March,
}

// newFirm seeds a closer, a helper closer and a legacy handler:
//   - case-a: 10,000 USD signed March 10, fee 1,000 USD, closer + helper
//   - legacy 501/503: handled by employee 7, 500 and 1,200 due in March
//   - legacy 502: handled by employee 7, installment cancelled
func newFirm(t *testing.T) (*store.Memory, *report.Service) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	mem.AddEmployee(compensation.Employee{ID: 1, Name: "Dana Levi", RoleCode: "c", Active: true})
	mem.AddEmployee(compensation.Employee{ID: 2, Name: "Yossi Cohen", RoleCode: "s", Active: true})
	mem.AddEmployee(compensation.Employee{ID: 7, Name: "Miriam Katz", RoleCode: "h", Active: true})
	mem.AddEmployee(compensation.Employee{ID: 9, Name: "Former Employee", RoleCode: "c", Active: false})

	mem.AddCategory(compensation.Category{ID: 11, Name: "Work Visa", Main: &compensation.MainCategory{ID: 1, Name: "Immigration Israel"}})

	mem.AddCurrentCase(compensation.CurrentCase{
		ID:               "case-a",
		Balance:          d("10000"),
		BalanceCurrency:  "USD",
		SubcontractorFee: d("1000"),
		Category:         "Work Visa",
		Closer:           "Dana Levi",
		HelperCloser:     "2",
	})
	mem.MarkSigned(compensation.CaseRef{Schema: compensation.SchemaCurrent, ID: "case-a"}, march(10))

	cancelled := march(1)
	for i, amount := range []string{"500", "800", "1200"} {
		id := int64(501 + i)
		mem.AddLegacyCase(compensation.LegacyCase{
			ID: id, Total: d("5000"), TotalBase: d("5000"), CurrencyID: 1, CaseHandlerID: 7,
		})
		inst := compensation.Installment{
			ID:         amount,
			Case:       compensation.CaseRef{Schema: compensation.SchemaLegacy, ID: []string{"501", "502", "503"}[i]},
			Amount:     d(amount),
			AmountBase: d(amount),
			CurrencyID: 1,
			DueDate:    march(5 + i),
			ReadyToPay: true,
		}
		if amount == "800" {
			inst.CancelDate = &cancelled
		}
		mem.AddInstallment(inst)
	}

	mem.SetSalary(2025, time.March, compensation.SalaryRow{EmployeeID: 1, NetSalary: d("500"), GrossSalary: d("700"), TotalCost: d("900")})

	require.NoError(t, mem.SaveRolePercentages(ctx, compensation.RolePercentages{
		compensation.PctCloserWithHelper: d("20"),
		compensation.PctHelperCloser:     d("20"),
		compensation.PctHandler:          d("10"),
	}))
	require.NoError(t, mem.SaveReportingSettings(ctx, compensation.ReportingSettings{
		TargetIncome:            d("0"),
		DueNormalizedPercentage: d("50"),
	}))

	svc := report.NewService(mem, mem, report.Options{
		Converter: compensation.RateTable{compensation.USD: d("3.7")},
		Now:       func() time.Time { return march(31) },
	})
	return mem, svc
}

// =============================================================================
// BATCH
// =============================================================================

func TestService_Run(t *testing.T) {
	// GIVEN: A firm with one signed USD case and a legacy handler
	// WHEN: Running March
	// THEN: Signed and due attribution match the hand-computed figures

	_, svc := newFirm(t)

	snap, err := svc.Run(context.Background(), marchRequest)
	require.NoError(t, err)

	assert.Len(t, snap.Employees, 3, "inactive employees are excluded")
	assertDecimal(t, "33300", snap.TotalSignedNet)
	assertDecimal(t, "1700", snap.TotalDue)
	assert.Empty(t, snap.Degraded)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", snap.RunID.String())

	closer, ok := snap.Employee(1)
	require.True(t, ok)
	assertDecimal(t, "6660", closer.SignedPortionNormalized)
	assert.True(t, closer.HasSalary)
	assertDecimal(t, "900", closer.TotalSalaryCost)

	helper, _ := snap.Employee(2)
	assertDecimal(t, "6660", helper.SignedPortionNormalized)
	assert.False(t, helper.HasSalary)

	handler, _ := snap.Employee(7)
	assertDecimal(t, "1700", handler.DueTotal)
	assertDecimal(t, "850", handler.DueNormalized)
	assertDecimal(t, "85", handler.DuePortion)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Same(t, snap, latest)
}

func TestService_FetchesEachQueryOnce(t *testing.T) {
	// GIVEN: A firm with cases in both schemas
	// WHEN: Running one batch
	// THEN: Each list query runs once; per-schema queries once per schema

	mem, svc := newFirm(t)

	_, err := svc.Run(context.Background(), marchRequest)
	require.NoError(t, err)

	assert.Equal(t, 1, mem.Calls(store.OpEmployees))
	assert.Equal(t, 1, mem.Calls(store.OpCategories))
	assert.Equal(t, 1, mem.Calls(store.OpSignedCases))
	assert.Equal(t, 1, mem.Calls(store.OpCaseDetails), "only the current schema has signed cases")
	assert.Equal(t, 2, mem.Calls(store.OpHandlerCases))
	assert.Equal(t, 2, mem.Calls(store.OpInstallments))
	assert.Equal(t, 1, mem.Calls(store.OpSalaries))
}

func TestService_RunIsIdempotentAndCached(t *testing.T) {
	mem, svc := newFirm(t)
	ctx := context.Background()

	first, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)
	second, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, mem.Calls(store.OpEmployees))
	assert.Equal(t, 1, svc.CacheSize())
}

func TestService_SameInputsSameFigures(t *testing.T) {
	mem, svc := newFirm(t)
	ctx := context.Background()

	first, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)
	second, err := svc.Refresh(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, mem.Calls(store.OpEmployees))
	require.Len(t, second.Employees, len(first.Employees))
	for i := range first.Employees {
		assert.True(t, first.Employees[i].Contribution.Equal(second.Employees[i].Contribution))
	}
}

func TestService_InvalidRequest(t *testing.T) {
	_, svc := newFirm(t)

	bad := report.Request{Period: compensation.Period{From: march(10), To: march(1)}}
	_, err := svc.Run(context.Background(), bad)
	assert.True(t, errors.Is(err, compensation.ErrInvalidPeriod))

	_, err = svc.Run(context.Background(), report.Request{})
	assert.True(t, compensation.IsClientError(err))
}

func TestService_LatestBeforeAnyRun(t *testing.T) {
	_, svc := newFirm(t)

	_, err := svc.Latest()
	assert.True(t, errors.Is(err, compensation.ErrNoSnapshot))

	_, err = svc.Employee(1)
	assert.True(t, errors.Is(err, compensation.ErrNoSnapshot))

	snap, err := svc.Refresh(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestService_EmployeeLookup(t *testing.T) {
	_, svc := newFirm(t)
	_, err := svc.Run(context.Background(), marchRequest)
	require.NoError(t, err)

	er, err := svc.Employee(7)
	require.NoError(t, err)
	assert.Equal(t, "Miriam Katz", er.Name)

	_, err = svc.Employee(9)
	assert.True(t, errors.Is(err, report.ErrEmployeeNotInReport))
}

// =============================================================================
// FAILURES
// =============================================================================

func TestService_FatalQueriesAbortTheBatch(t *testing.T) {
	tests := []struct {
		name string
		op   string
		want error
	}{
		{"employees", store.OpEmployees, compensation.ErrEmployeesUnavailable},
		{"signed cases", store.OpSignedCases, compensation.ErrSignedCasesUnavailable},
		{"signed case details", store.OpCaseDetails, compensation.ErrSignedCasesUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, svc := newFirm(t)
			mem.FailOn(tt.op, errors.New("connection reset"))

			snap, err := svc.Run(context.Background(), marchRequest)
			assert.Nil(t, snap)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, compensation.IsFatal(err))

			var fe *compensation.FetchError
			assert.True(t, errors.As(err, &fe))

			_, err = svc.Latest()
			assert.True(t, errors.Is(err, compensation.ErrNoSnapshot), "nothing is published on failure")
		})
	}
}

func TestService_DegradedSubQueriesCountAsZero(t *testing.T) {
	// GIVEN: Legacy installments and categories fail
	// WHEN: Running
	// THEN: The batch completes, legacy due is zero, the case is uncategorized,
	//       and the failures are listed

	mem, svc := newFirm(t)
	mem.FailOn(store.OpInstallments+":"+string(compensation.SchemaLegacy), errors.New("timeout"))
	mem.FailOn(store.OpCategories, errors.New("timeout"))

	snap, err := svc.Run(context.Background(), marchRequest)
	require.NoError(t, err)

	assert.Equal(t, []string{"categories", "installments:legacy"}, snap.Degraded)
	assertDecimal(t, "0", snap.TotalDue)
	assertDecimal(t, "33300", snap.TotalSignedNet)

	closer, _ := snap.Employee(1)
	require.Len(t, closer.Lines, 1)
	assert.Equal(t, compensation.Uncategorized, closer.Lines[0].MainCategory)
}

func TestService_SalaryFailureDegrades(t *testing.T) {
	mem, svc := newFirm(t)
	mem.FailOn(store.OpSalaries, errors.New("permission denied"))

	snap, err := svc.Run(context.Background(), marchRequest)
	require.NoError(t, err)

	closer, _ := snap.Employee(1)
	assert.False(t, closer.HasSalary)
	assert.Contains(t, snap.Degraded, "salaries")
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestService_ConfigWriteInvalidatesAndRecomputes(t *testing.T) {
	// GIVEN: A computed March report
	// WHEN: HELPER_CLOSER changes from 20 to 30
	// THEN: The config version is bumped, the cache dropped, the report
	//       recomputed in full and only the helper's figures change

	mem, svc := newFirm(t)
	ctx := context.Background()

	before, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)

	cfg, version, err := svc.Config(ctx)
	require.NoError(t, err)
	rp := cfg.Roles.Clone()
	rp[compensation.PctHelperCloser] = d("30")

	after, err := svc.UpdateRolePercentages(ctx, rp)
	require.NoError(t, err)
	require.NotNil(t, after)

	assert.Greater(t, after.ConfigVersion, before.ConfigVersion)
	assert.Greater(t, after.Generation, before.Generation)
	assert.Equal(t, 2, mem.Calls(store.OpEmployees))

	helper, _ := after.Employee(2)
	assertDecimal(t, "9990", helper.SignedPortionNormalized)
	closer, _ := after.Employee(1)
	assertDecimal(t, "6660", closer.SignedPortionNormalized)

	stored, err := mem.RolePercentages(ctx)
	require.NoError(t, err)
	assertDecimal(t, "30", stored.Get(compensation.PctHelperCloser))

	_, newVersion, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, version+1, newVersion)
}

func TestService_RejectedConfigKeepsPrevious(t *testing.T) {
	mem, svc := newFirm(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)
	_, version, err := svc.Config(ctx)
	require.NoError(t, err)

	_, err = svc.UpdateRolePercentages(ctx, compensation.RolePercentages{compensation.PctCloser: d("101")})
	assert.True(t, errors.Is(err, compensation.ErrInvalidPercentage))

	_, err = svc.UpdateSettings(ctx, compensation.ReportingSettings{TargetIncome: d("-5"), DueNormalizedPercentage: d("50")})
	assert.True(t, errors.Is(err, compensation.ErrInvalidSettings))

	cfg, sameVersion, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, sameVersion)
	assertDecimal(t, "20", cfg.Roles.Get(compensation.PctHelperCloser))
	assert.Equal(t, 1, svc.CacheSize())

	stored, _ := mem.RolePercentages(ctx)
	assertDecimal(t, "0", stored.Get(compensation.PctCloser))
}

func TestService_SettingsWriteRenormalizes(t *testing.T) {
	_, svc := newFirm(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)

	snap, err := svc.UpdateSettings(ctx, compensation.ReportingSettings{
		TargetIncome:            d("16650"),
		DueNormalizedPercentage: d("100"),
	})
	require.NoError(t, err)

	assertDecimal(t, "0.5", snap.Ratios.Signed)
	closer, _ := snap.Employee(1)
	assertDecimal(t, "3330", closer.SignedPortionNormalized)
	handler, _ := snap.Employee(7)
	assertDecimal(t, "170", handler.DuePortion)
}

func TestService_ConfigWriteWithoutRequestDoesNotCompute(t *testing.T) {
	mem, svc := newFirm(t)

	snap, err := svc.UpdateSettings(context.Background(), compensation.ReportingSettings{DueNormalizedPercentage: d("80")})
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 0, mem.Calls(store.OpEmployees))
}

func TestService_RefreshPicksUpNewRecords(t *testing.T) {
	mem, svc := newFirm(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)

	mem.AddCurrentCase(compensation.CurrentCase{ID: "case-b", Balance: d("700"), Closer: "1"})
	mem.MarkSigned(compensation.CaseRef{Schema: compensation.SchemaCurrent, ID: "case-b"}, march(20))

	snap, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assertDecimal(t, "34000", snap.TotalSignedNet)
	assert.Equal(t, 2, snap.SignedCaseCount)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestRefreshScheduler_RunNowReloadsConfig(t *testing.T) {
	// GIVEN: A computed report, then role percentages changed directly in the store
	// WHEN: The scheduler runs
	// THEN: The new percentages are loaded and the report recomputed

	mem, svc := newFirm(t)
	ctx := context.Background()

	before, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)

	require.NoError(t, mem.SaveRolePercentages(ctx, compensation.RolePercentages{
		compensation.PctCloserWithHelper: d("10"),
		compensation.PctHelperCloser:     d("20"),
		compensation.PctHandler:          d("10"),
	}))

	scheduler := report.NewRefreshScheduler(svc)
	require.NoError(t, scheduler.RunNow(ctx))

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Greater(t, latest.ConfigVersion, before.ConfigVersion)
	closer, _ := latest.Employee(1)
	assertDecimal(t, "3330", closer.SignedPortionNormalized)

	lastRun, lastErr := scheduler.Status()
	assert.False(t, lastRun.IsZero())
	assert.NoError(t, lastErr)
	assert.True(t, scheduler.NextRunTime().After(lastRun))
}

func TestRefreshScheduler_RecordsFailure(t *testing.T) {
	mem, svc := newFirm(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, marchRequest)
	require.NoError(t, err)
	mem.FailOn(store.OpEmployees, errors.New("down"))

	scheduler := report.NewRefreshScheduler(svc)
	err = scheduler.RunNow(ctx)
	assert.True(t, compensation.IsFatal(err))

	_, lastErr := scheduler.Status()
	assert.Error(t, lastErr)
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	_, svc := newFirm(t)

	scheduler := report.NewRefreshScheduler(svc)
	scheduler.Interval = time.Hour
	scheduler.Start()
	scheduler.Stop()
	scheduler.Stop()

	disabled := report.NewRefreshScheduler(svc)
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()
}

func TestRefreshScheduler_RestartKeepsTicking(t *testing.T) {
	// GIVEN: A scheduler that was started and stopped immediately
	// WHEN: Starting it again with a short interval
	// THEN: Ticks still reach RunNow

	_, svc := newFirm(t)

	scheduler := report.NewRefreshScheduler(svc)
	scheduler.Interval = time.Hour
	for i := 0; i < 20; i++ {
		scheduler.Start()
		scheduler.Stop()
	}

	scheduler.Interval = 5 * time.Millisecond
	scheduler.Start()
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		lastRun, _ := scheduler.Status()
		return !lastRun.IsZero()
	}, 2*time.Second, 5*time.Millisecond)
}
