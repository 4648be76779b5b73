package compensation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INSTALLMENT - one payment-plan row against a case
// =============================================================================

// Installment is a scheduled payment. Its currency is resolved on its own and may
// differ from the case's signed currency.
type Installment struct {
	ID         string
	Case       CaseRef
	Amount     decimal.Decimal
	AmountBase decimal.Decimal // legacy only: pre-converted value
	CurrencyID int
	Currency   string
	DueDate    time.Time
	ReadyToPay bool
	Paid       bool       // current schema
	CancelDate *time.Time
	ActualDate *time.Time // legacy schema: set once paid
}

// CountsAsDue reports whether the installment counts toward due totals in the
// window: ready to pay, not cancelled, not yet paid, due inside the window.
func (i Installment) CountsAsDue(window Period) bool {
	if !i.ReadyToPay || i.CancelDate != nil || !window.Contains(i.DueDate) {
		return false
	}
	if i.Case.Schema == SchemaLegacy {
		return i.ActualDate == nil
	}
	return !i.Paid
}

// BaseAmount converts the installment into the base currency.
func (i Installment) BaseAmount(conv Converter) decimal.Decimal {
	meta := BuildCurrencyMeta(CurrencyHint{ID: i.CurrencyID}, CurrencyHint{Raw: i.Currency})
	if i.Case.Schema == SchemaLegacy && meta.ID == BaseCurrencyID && !i.AmountBase.IsZero() {
		return i.AmountBase
	}
	return conv.ToBase(i.Amount, meta.Code)
}

// DueByCase sums counting installments per case.
type DueByCase map[CaseRef]decimal.Decimal

// AggregateDue sums the due installments in the window per case.
// Installments that do not count are skipped, so callers may pass unfiltered rows.
func AggregateDue(installments []Installment, window Period, conv Converter) DueByCase {
	due := make(DueByCase)
	for _, inst := range installments {
		if !inst.CountsAsDue(window) {
			continue
		}
		due[inst.Case] = due[inst.Case].Add(inst.BaseAmount(conv))
	}
	return due
}

// Merge adds other into d.
func (d DueByCase) Merge(other DueByCase) {
	for ref, amount := range other {
		d[ref] = d[ref].Add(amount)
	}
}

// Total sums all cases, in sorted order so the result is reproducible.
func (d DueByCase) Total() decimal.Decimal {
	refs := make([]CaseRef, 0, len(d))
	for ref := range d {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	total := decimal.Zero
	for _, ref := range refs {
		total = total.Add(d[ref])
	}
	return total
}
