package compensation

import "github.com/shopspring/decimal"

// =============================================================================
// LEAD AMOUNT - net signed-deal value in the base currency
// =============================================================================

// LeadAmount is the fee-adjusted value of a case: the converted deal value minus
// the converted subcontractor fee. It may be negative and is not clamped.
// This is the only amount fed into per-employee and per-category attribution.
func LeadAmount(r CaseRecord, conv Converter) decimal.Decimal {
	gross := FullLeadAmount(r, conv)
	meta := r.currency()
	switch r.Kind {
	case SchemaCurrent:
		return gross.Sub(conv.ToBase(r.Current.SubcontractorFee, meta.Code))
	case SchemaLegacy:
		return gross.Sub(conv.ToBase(r.Legacy.SubcontractorFee, meta.Code))
	}
	return decimal.Zero
}

// FullLeadAmount is the deal value without the fee adjustment. It only feeds the
// period's total signed value KPI.
func FullLeadAmount(r CaseRecord, conv Converter) decimal.Decimal {
	meta := r.currency()
	switch r.Kind {
	case SchemaCurrent:
		raw := r.Current.ProposalTotal
		if r.Current.Balance.IsPositive() {
			raw = r.Current.Balance
		}
		return conv.ToBase(raw, meta.Code)
	case SchemaLegacy:
		// Base-currency rows use the stored total_base verbatim.
		if meta.ID == BaseCurrencyID {
			return r.Legacy.TotalBase
		}
		return conv.ToBase(r.Legacy.Total, meta.Code)
	}
	return decimal.Zero
}
