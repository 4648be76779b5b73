/*
currency.go - Currency identification and conversion to the base currency

PURPOSE:
  Case and installment rows identify their currency in several ways: a joined
  currency row (iso_code / name), a small integer id, or a raw string that may be
  a code or a symbol. BuildCurrencyMeta resolves the first usable hint into a
  canonical code. Conversion itself is an external concern modelled by the
  Converter interface; RateTable is the static implementation used by the server.

CANONICAL TABLE:
  ₪ / 1 / NIS / ILS -> NIS
  € / 2 / EUR       -> EUR
  $ / 3 / USD       -> USD
  £ / 4 / GBP       -> GBP
  anything else     -> unresolved (NIS if no hint resolves)
*/
package compensation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type CurrencyCode string

const (
	NIS CurrencyCode = "NIS"
	EUR CurrencyCode = "EUR"
	USD CurrencyCode = "USD"
	GBP CurrencyCode = "GBP"
)

// BaseCurrency is the reporting currency.
const BaseCurrency = NIS

// BaseCurrencyID is the legacy schema's currency id for NIS.
const BaseCurrencyID = 1

// CurrencyMeta is a resolved currency.
type CurrencyMeta struct {
	Code   CurrencyCode
	Symbol string
	ID     int
}

var currencyTable = []CurrencyMeta{
	{Code: NIS, Symbol: "₪", ID: 1},
	{Code: EUR, Symbol: "€", ID: 2},
	{Code: USD, Symbol: "$", ID: 3},
	{Code: GBP, Symbol: "£", ID: 4},
}

// CurrencyHint is one candidate source of a currency. Fields are tried in the
// order ISOCode, Name, ID, Raw; the zero value resolves to nothing.
type CurrencyHint struct {
	ISOCode string
	Name    string
	ID      int
	Raw     string
}

// CurrencyJoin is a joined currency row as returned by the record store.
type CurrencyJoin struct {
	ID      int
	ISOCode string
	Name    string
}

// Hint turns a joined currency row into a candidate.
func (j *CurrencyJoin) Hint() CurrencyHint {
	if j == nil {
		return CurrencyHint{}
	}
	return CurrencyHint{ISOCode: j.ISOCode, Name: j.Name, ID: j.ID}
}

// BuildCurrencyMeta returns the first resolvable hint, defaulting to NIS.
func BuildCurrencyMeta(hints ...CurrencyHint) CurrencyMeta {
	for _, h := range hints {
		if m, ok := h.resolve(); ok {
			return m
		}
	}
	return currencyTable[0]
}

func (h CurrencyHint) resolve() (CurrencyMeta, bool) {
	for _, s := range []string{h.ISOCode, h.Name} {
		if m, ok := lookupCurrency(s); ok {
			return m, true
		}
	}
	if m, ok := currencyByID(h.ID); ok {
		return m, true
	}
	return lookupCurrency(h.Raw)
}

func lookupCurrency(s string) (CurrencyMeta, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CurrencyMeta{}, false
	}
	if id, err := strconv.Atoi(s); err == nil {
		return currencyByID(id)
	}
	upper := strings.ToUpper(s)
	if upper == "ILS" {
		upper = string(NIS)
	}
	for _, m := range currencyTable {
		if upper == string(m.Code) || s == m.Symbol {
			return m, true
		}
	}
	return CurrencyMeta{}, false
}

func currencyByID(id int) (CurrencyMeta, bool) {
	for _, m := range currencyTable {
		if m.ID == id {
			return m, true
		}
	}
	return CurrencyMeta{}, false
}

// =============================================================================
// CONVERTER
// =============================================================================

// Converter converts an amount in the given currency into the base currency.
// Implementations must be pure.
type Converter interface {
	ToBase(amount decimal.Decimal, code CurrencyCode) decimal.Decimal
}

// RateTable converts with fixed rates (units of base currency per unit).
// Unknown codes and the base currency convert at 1.
type RateTable map[CurrencyCode]decimal.Decimal

func (rt RateTable) ToBase(amount decimal.Decimal, code CurrencyCode) decimal.Decimal {
	if code == BaseCurrency {
		return amount
	}
	rate, ok := rt[code]
	if !ok || !rate.IsPositive() {
		return amount
	}
	return amount.Mul(rate)
}

// ParseRates parses "USD=3.7,EUR=4.0" into a RateTable.
func ParseRates(s string) (RateTable, error) {
	rt := RateTable{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q", part)
		}
		meta, ok := lookupCurrency(code)
		if !ok {
			return nil, fmt.Errorf("unknown currency %q", code)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid rate for %s: %q", code, value)
		}
		rt[meta.Code] = rate
	}
	return rt, nil
}

// String renders the table in ParseRates format, sorted by code.
func (rt RateTable) String() string {
	codes := make([]string, 0, len(rt))
	for c := range rt {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c + "=" + rt[CurrencyCode(c)].String()
	}
	return strings.Join(parts, ",")
}
