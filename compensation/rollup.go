package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEPARTMENT ROLLUP
// =============================================================================

// DepartmentTotal sums the employee results of one department.
type DepartmentTotal struct {
	Department Department
	Headcount  int

	SignedTotal             decimal.Decimal
	DueTotal                decimal.Decimal
	SignedNormalized        decimal.Decimal
	DueNormalized           decimal.Decimal
	SignedPortionNormalized decimal.Decimal
	DuePortion              decimal.Decimal
	Contribution            decimal.Decimal
	SalaryBudget            decimal.Decimal
	NetSalary               decimal.Decimal
	SalaryBrutto            decimal.Decimal
	TotalSalaryCost         decimal.Decimal
	MaxIncentive            decimal.Decimal
}

// DepartmentTotals sums employee results per department. Marketing and Finance
// take their salary budget from their salary cost; every other department sums
// the employees' computed budgets. Employees outside the rollup departments are
// not counted.
func DepartmentTotals(employees []EmployeeResult) []DepartmentTotal {
	totals := make(map[Department]*DepartmentTotal)
	for _, d := range Departments() {
		totals[d] = &DepartmentTotal{
			Department:              d,
			SignedTotal:             decimal.Zero,
			DueTotal:                decimal.Zero,
			SignedNormalized:        decimal.Zero,
			DueNormalized:           decimal.Zero,
			SignedPortionNormalized: decimal.Zero,
			DuePortion:              decimal.Zero,
			Contribution:            decimal.Zero,
			SalaryBudget:            decimal.Zero,
			NetSalary:               decimal.Zero,
			SalaryBrutto:            decimal.Zero,
			TotalSalaryCost:         decimal.Zero,
		}
	}

	for _, e := range employees {
		t, ok := totals[e.Department]
		if !ok {
			continue
		}
		t.Headcount++
		t.SignedTotal = t.SignedTotal.Add(e.SignedTotal)
		t.DueTotal = t.DueTotal.Add(e.DueTotal)
		t.SignedNormalized = t.SignedNormalized.Add(e.SignedNormalized)
		t.DueNormalized = t.DueNormalized.Add(e.DueNormalized)
		t.SignedPortionNormalized = t.SignedPortionNormalized.Add(e.SignedPortionNormalized)
		t.DuePortion = t.DuePortion.Add(e.DuePortion)
		t.Contribution = t.Contribution.Add(e.Contribution)
		t.SalaryBudget = t.SalaryBudget.Add(e.SalaryBudget)
		t.NetSalary = t.NetSalary.Add(e.NetSalary)
		t.SalaryBrutto = t.SalaryBrutto.Add(e.SalaryBrutto)
		t.TotalSalaryCost = t.TotalSalaryCost.Add(e.TotalSalaryCost)
	}

	out := make([]DepartmentTotal, 0, len(totals))
	for _, d := range Departments() {
		t := totals[d]
		if d.CostBasedBudget() {
			t.SalaryBudget = t.TotalSalaryCost
		}
		t.MaxIncentive = t.SalaryBudget.Sub(t.TotalSalaryCost)
		out = append(out, *t)
	}
	return out
}

// =============================================================================
// FIELD ROLLUP - per main category
// =============================================================================

// FieldTotal sums case amounts and attribution lines of one field. A field is a
// separately displayed main category or the General bucket.
type FieldTotal struct {
	Field          string
	MainCategories []string
	Cases          int

	SignedTotal             decimal.Decimal
	DueTotal                decimal.Decimal
	SignedNormalized        decimal.Decimal
	DueNormalized           decimal.Decimal
	SignedPortionNormalized decimal.Decimal
	DuePortion              decimal.Decimal
	Contribution            decimal.Decimal
	SalaryBudget            decimal.Decimal
}

// FieldTotals groups cases by main category into fields. Case amounts are
// counted once per case; portions and contribution are the sum of every
// employee's attribution lines on the field's cases.
func FieldTotals(universe []Case, due DueByCase, mainCategory map[CaseRef]string, employees []EmployeeResult, ratios Ratios, cfg Config) []FieldTotal {
	fields := make(map[string]*FieldTotal)
	mains := make(map[string]map[string]bool)
	get := func(main string) *FieldTotal {
		name := cfg.FieldFor(main)
		f, ok := fields[name]
		if !ok {
			f = &FieldTotal{
				Field:                   name,
				SignedTotal:             decimal.Zero,
				DueTotal:                decimal.Zero,
				SignedPortionNormalized: decimal.Zero,
				DuePortion:              decimal.Zero,
				Contribution:            decimal.Zero,
			}
			fields[name] = f
			mains[name] = make(map[string]bool)
		}
		mains[name][main] = true
		return f
	}

	for _, c := range universe {
		caseDue := dueOf(due, c.Ref)
		if !c.IsSigned() && caseDue.IsZero() {
			continue
		}
		f := get(mainCategory[c.Ref])
		f.Cases++
		if c.IsSigned() {
			f.SignedTotal = f.SignedTotal.Add(c.NetAmount)
		}
		f.DueTotal = f.DueTotal.Add(caseDue)
	}

	for _, e := range employees {
		for _, l := range e.Lines {
			f := get(l.MainCategory)
			f.SignedPortionNormalized = f.SignedPortionNormalized.Add(l.SignedPortionNormalized)
			f.DuePortion = f.DuePortion.Add(l.DuePortion)
			f.Contribution = f.Contribution.Add(l.Contribution)
		}
	}

	out := make([]FieldTotal, 0, len(fields))
	for name, f := range fields {
		f.SignedNormalized = f.SignedTotal.Mul(ratios.Signed)
		f.DueNormalized = f.DueTotal.Mul(ratios.Due)
		f.SalaryBudget = f.Contribution.Mul(SalaryBudgetRate)
		for m := range mains[name] {
			f.MainCategories = append(f.MainCategories, m)
		}
		sort.Strings(f.MainCategories)
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		// General sorts last.
		if (out[i].Field == GeneralField) != (out[j].Field == GeneralField) {
			return out[j].Field == GeneralField
		}
		return out[i].Field < out[j].Field
	})
	return out
}
