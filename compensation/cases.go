/*
cases.go - Dual-schema case records and their canonical shape

PURPOSE:
  Cases ("leads") come from two tables with different field names for the same
  concepts. CaseRecord is a tagged variant holding exactly one of them;
  Normalize maps either variant into Case, the only shape the attribution
  engine sees. Ambiguous role fields are resolved here, once.

CURRENT SCHEMA:
  Role fields hold free text that may be a display name or a numeric id
  ("17", 17, "Dana Levi"). The handler slot has both a text field and a numeric
  case_handler_id. The meeting manager falls back to meeting_manager_id.

LEGACY SCHEMA:
  Role fields are numeric employee ids. Amounts carry a pre-converted total_base.
*/
package compensation

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW ROLE - a role field that may hold a name, a number, or a number as text
// =============================================================================

type RawRole string

// UnmarshalJSON accepts strings, numbers and null.
func (r *RawRole) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*r = ""
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*r = RawRole(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RawRole(n.String())
	return nil
}

// Assignment resolves the field. A value is an id only when it parses as an
// integer and formats back to the same text, so "007" and "12 Main" stay names.
func (r RawRole) Assignment() RoleAssignment {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return RoleAssignment{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s && n > 0 {
		return RoleAssignment{ByID: EmployeeID(n)}
	}
	return RoleAssignment{ByName: s}
}

// =============================================================================
// SCHEMA VARIANTS
// =============================================================================

// CurrentCase is a row of the current leads table.
type CurrentCase struct {
	ID               string
	LeadNumber       string
	Balance          decimal.Decimal
	ProposalTotal    decimal.Decimal
	BalanceCurrency  string
	ProposalCurrency string
	Currency         *CurrencyJoin
	SubcontractorFee decimal.Decimal

	Category     string
	CategoryID   int64
	CategoryJoin *Category

	Closer           RawRole
	Scheduler        RawRole
	HelperCloser     RawRole
	Handler          RawRole
	Expert           RawRole
	Manager          RawRole
	CaseHandlerID    EmployeeID
	MeetingManagerID EmployeeID
}

// LegacyCase is a row of the legacy leads table.
type LegacyCase struct {
	ID               int64
	LeadNumber       string
	Total            decimal.Decimal
	TotalBase        decimal.Decimal
	CurrencyID       int
	Currency         *CurrencyJoin
	SubcontractorFee decimal.Decimal

	Category     string
	CategoryID   int64
	CategoryJoin *Category

	CloserID         EmployeeID
	SchedulerID      EmployeeID
	HelperCloserID   EmployeeID
	CaseHandlerID    EmployeeID
	MeetingManagerID EmployeeID
	ExpertID         EmployeeID
}

// CaseRecord holds exactly one schema variant.
type CaseRecord struct {
	Kind    Schema
	Current *CurrentCase
	Legacy  *LegacyCase
}

func FromCurrent(c CurrentCase) CaseRecord { return CaseRecord{Kind: SchemaCurrent, Current: &c} }
func FromLegacy(c LegacyCase) CaseRecord   { return CaseRecord{Kind: SchemaLegacy, Legacy: &c} }

// Ref returns the record's identity.
func (r CaseRecord) Ref() CaseRef {
	switch r.Kind {
	case SchemaCurrent:
		return CaseRef{Schema: SchemaCurrent, ID: r.Current.ID}
	case SchemaLegacy:
		return CaseRef{Schema: SchemaLegacy, ID: strconv.FormatInt(r.Legacy.ID, 10)}
	}
	return CaseRef{}
}

// =============================================================================
// CANONICAL CASE
// =============================================================================

// CategoryRef is everything a case knows about its category.
type CategoryRef struct {
	Text string
	ID   int64
	Join *Category
}

// CaseRoles are the resolved role slots of a case.
// There is no helper-handler field in either schema.
type CaseRoles struct {
	Closer       RoleAssignment
	Scheduler    RoleAssignment
	HelperCloser RoleAssignment
	Handler      RoleAssignment
	Manager      RoleAssignment
	Expert       RoleAssignment
}

// Case is the canonical shape consumed by attribution.
type Case struct {
	Ref      CaseRef
	Number   string
	Currency CurrencyMeta

	// NetAmount is fee-adjusted and is the only amount used for attribution.
	NetAmount decimal.Decimal
	// FullAmount is not fee-adjusted and only feeds the signed-value KPI.
	FullAmount decimal.Decimal

	Category CategoryRef
	Roles    CaseRoles

	// SignedAt is set for cases that transitioned to signed in the report period.
	SignedAt time.Time
}

// IsSigned reports whether the case was signed in the report period.
func (c Case) IsSigned() bool { return !c.SignedAt.IsZero() }

// Normalize maps either schema variant into a Case.
func (r CaseRecord) Normalize(conv Converter) Case {
	c := Case{
		Ref:        r.Ref(),
		NetAmount:  LeadAmount(r, conv),
		FullAmount: FullLeadAmount(r, conv),
		Currency:   r.currency(),
	}
	switch r.Kind {
	case SchemaCurrent:
		cur := r.Current
		c.Number = cur.LeadNumber
		c.Category = CategoryRef{Text: cur.Category, ID: cur.CategoryID, Join: cur.CategoryJoin}

		handler := cur.Handler.Assignment()
		switch {
		case handler.ByID == 0:
			handler.ByID = cur.CaseHandlerID
		case handler.ByID != cur.CaseHandlerID:
			handler.AltID = cur.CaseHandlerID
		}
		manager := cur.Manager.Assignment()
		if !manager.IsAssigned() {
			manager = RoleAssignment{ByID: cur.MeetingManagerID}
		}
		c.Roles = CaseRoles{
			Closer:       cur.Closer.Assignment(),
			Scheduler:    cur.Scheduler.Assignment(),
			HelperCloser: cur.HelperCloser.Assignment(),
			Handler:      handler,
			Manager:      manager,
			Expert:       cur.Expert.Assignment(),
		}
	case SchemaLegacy:
		leg := r.Legacy
		c.Number = leg.LeadNumber
		c.Category = CategoryRef{Text: leg.Category, ID: leg.CategoryID, Join: leg.CategoryJoin}
		c.Roles = CaseRoles{
			Closer:       RoleAssignment{ByID: leg.CloserID},
			Scheduler:    RoleAssignment{ByID: leg.SchedulerID},
			HelperCloser: RoleAssignment{ByID: leg.HelperCloserID},
			Handler:      RoleAssignment{ByID: leg.CaseHandlerID},
			Manager:      RoleAssignment{ByID: leg.MeetingManagerID},
			Expert:       RoleAssignment{ByID: leg.ExpertID},
		}
	}
	return c
}

func (r CaseRecord) currency() CurrencyMeta {
	switch r.Kind {
	case SchemaCurrent:
		cur := r.Current
		raw := cur.ProposalCurrency
		if cur.Balance.IsPositive() && strings.TrimSpace(cur.BalanceCurrency) != "" {
			raw = cur.BalanceCurrency
		}
		return BuildCurrencyMeta(cur.Currency.Hint(), CurrencyHint{Raw: raw}, CurrencyHint{Raw: cur.BalanceCurrency})
	case SchemaLegacy:
		return BuildCurrencyMeta(r.Legacy.Currency.Hint(), CurrencyHint{ID: r.Legacy.CurrencyID})
	}
	return BuildCurrencyMeta()
}
