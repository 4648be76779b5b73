package compensation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/contribution-engine/compensation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

// =============================================================================
// CURRENCY RESOLUTION
// =============================================================================

func TestBuildCurrencyMeta_FirstResolvableHintWins(t *testing.T) {
	// GIVEN: A joined row with an ISO code and a conflicting raw field
	// WHEN: Resolving
	// THEN: The joined ISO code wins

	join := &compensation.CurrencyJoin{ID: 2, ISOCode: "USD", Name: "Euro"}
	meta := compensation.BuildCurrencyMeta(join.Hint(), compensation.CurrencyHint{Raw: "GBP"})

	assert.Equal(t, compensation.USD, meta.Code)
	assert.Equal(t, "$", meta.Symbol)
}

func TestBuildCurrencyMeta_SymbolsAliasesAndIDs(t *testing.T) {
	tests := []struct {
		name string
		hint compensation.CurrencyHint
		want compensation.CurrencyCode
	}{
		{"shekel symbol", compensation.CurrencyHint{Raw: "₪"}, compensation.NIS},
		{"ILS alias", compensation.CurrencyHint{ISOCode: "ils"}, compensation.NIS},
		{"euro symbol", compensation.CurrencyHint{Raw: "€"}, compensation.EUR},
		{"lowercase code", compensation.CurrencyHint{Raw: " usd "}, compensation.USD},
		{"numeric id", compensation.CurrencyHint{ID: 4}, compensation.GBP},
		{"numeric raw", compensation.CurrencyHint{Raw: "3"}, compensation.USD},
		{"name", compensation.CurrencyHint{Name: "EUR"}, compensation.EUR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compensation.BuildCurrencyMeta(tt.hint).Code)
		})
	}
}

func TestBuildCurrencyMeta_UnresolvedDefaultsToBase(t *testing.T) {
	// GIVEN: Only unknown or empty hints
	// WHEN: Resolving
	// THEN: NIS with id 1

	meta := compensation.BuildCurrencyMeta(
		compensation.CurrencyHint{Raw: "XYZ"},
		compensation.CurrencyHint{ID: 99},
		compensation.CurrencyHint{},
	)
	assert.Equal(t, compensation.NIS, meta.Code)
	assert.Equal(t, compensation.BaseCurrencyID, meta.ID)

	var nilJoin *compensation.CurrencyJoin
	assert.Equal(t, compensation.NIS, compensation.BuildCurrencyMeta(nilJoin.Hint()).Code)
}

// =============================================================================
// RATES
// =============================================================================

func TestParseRates(t *testing.T) {
	rt, err := compensation.ParseRates("USD=3.7, EUR=4.0,gbp=4.6")
	require.NoError(t, err)

	assertDecimal(t, "37000", rt.ToBase(d("10000"), compensation.USD))
	assertDecimal(t, "400", rt.ToBase(d("100"), compensation.EUR))
	assertDecimal(t, "46", rt.ToBase(d("10"), compensation.GBP))
	assertDecimal(t, "123.45", rt.ToBase(d("123.45"), compensation.NIS))
	assert.Equal(t, "EUR=4,GBP=4.6,USD=3.7", rt.String())
}

func TestParseRates_Rejects(t *testing.T) {
	for _, spec := range []string{"USD", "XYZ=2", "USD=abc", "USD=-1", "USD=0"} {
		_, err := compensation.ParseRates(spec)
		assert.Error(t, err, spec)
	}
}

func TestRateTable_MissingRateConvertsAtOne(t *testing.T) {
	rt := compensation.RateTable{}
	assertDecimal(t, "500", rt.ToBase(d("500"), compensation.USD))
}
