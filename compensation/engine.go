/*
engine.go - Normalization and contribution

PURPOSE:
  Calculate runs attribution and normalization for the whole employee universe
  in one synchronous pass. It performs no I/O: everything it needs is in Inputs
  and Config. The signed normalization ratio depends on the period's grand
  total, so results for one employee are only correct once every case is known;
  there is deliberately no per-employee entry point.

PIPELINE:
  1. Merge signed cases and handler cases into one case universe
  2. For each employee and case: classify roles, attribute signed and due amounts
  3. Ratios:
       signed = min(1, targetIncome / totalSignedNet), 1 when target unset or total <= 0
       due    = dueNormalizedPercentage / 100
  4. Per employee:
       signedNormalized        = signedTotal * signedRatio
       signedPortionNormalized = signedPortion / signedTotal * signedNormalized (0 if signedTotal = 0)
       dueNormalized           = dueTotal * dueRatio
       duePortion              = dueNormalized * duePercentage / 100
       contribution            = (signedPortionNormalized + duePortion) * ContributionRate
       salaryBudget            = contribution * SalaryBudgetRate
       maxIncentive            = salaryBudget - totalSalaryCost (0 without a salary row)
  5. Department and field rollups sum the employee and line figures

SEE ALSO:
  - roles.go: Role classification and percentages
  - rollup.go: Department and field totals
*/
package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Inputs is the fully fetched universe for one reporting period.
type Inputs struct {
	Employees []Employee
	// SignedCases were signed in the period; SignedAt is set on each.
	SignedCases []Case
	// HandlerCases are all cases with a handler among the employees, signed or not.
	HandlerCases []Case
	// Due holds due totals per case for the due window.
	Due        DueByCase
	Salaries   map[EmployeeID]SalaryRow
	Categories *CategoryIndex
}

// Ratios are the two independent normalization factors.
type Ratios struct {
	Signed decimal.Decimal
	Due    decimal.Decimal
}

// AttributionLine is one employee's share of one case.
type AttributionLine struct {
	Case         CaseRef
	CaseNumber   string
	MainCategory string
	Roles        RoleSet

	// Signed is the case's net amount counted in the employee's signed total.
	// Zero for handler-only role sets and cases not signed in the period.
	Signed           decimal.Decimal
	SignedPercentage decimal.Decimal
	SignedPortion    decimal.Decimal
	Due              decimal.Decimal

	SignedPortionNormalized decimal.Decimal
	DuePortion              decimal.Decimal
	Contribution            decimal.Decimal
}

// RoleCombination groups an employee's cases by the exact role set held.
type RoleCombination struct {
	Roles       RoleSet
	Label       string
	Cases       int
	SignedTotal decimal.Decimal
	DueTotal    decimal.Decimal
}

// EmployeeResult is the derived per-employee output of a batch.
type EmployeeResult struct {
	EmployeeID EmployeeID
	Name       string
	Department Department

	SignedTotal             decimal.Decimal
	DueTotal                decimal.Decimal
	SignedNormalized        decimal.Decimal
	DueNormalized           decimal.Decimal
	SignedPortion           decimal.Decimal
	SignedPortionNormalized decimal.Decimal
	DuePercentage           decimal.Decimal
	DuePortion              decimal.Decimal
	Contribution            decimal.Decimal
	SalaryBudget            decimal.Decimal

	HasSalary       bool
	NetSalary       decimal.Decimal
	SalaryBrutto    decimal.Decimal
	TotalSalaryCost decimal.Decimal
	MaxIncentive    decimal.Decimal

	Combinations []RoleCombination
	Lines        []AttributionLine
}

// Result is one consistent snapshot of every figure for the period.
type Result struct {
	Ratios Ratios

	// TotalSignedValue is the unadjusted signed value KPI.
	TotalSignedValue decimal.Decimal
	// TotalSignedNet is the fee-adjusted total of distinct signed cases; the
	// signed ratio denominator.
	TotalSignedNet  decimal.Decimal
	TotalDue        decimal.Decimal
	SignedCaseCount int

	Employees   []EmployeeResult
	Departments []DepartmentTotal
	Fields      []FieldTotal
}

// Employee returns one employee's result.
func (r Result) Employee(id EmployeeID) (EmployeeResult, bool) {
	i := sort.Search(len(r.Employees), func(i int) bool { return r.Employees[i].EmployeeID >= id })
	if i < len(r.Employees) && r.Employees[i].EmployeeID == id {
		return r.Employees[i], true
	}
	return EmployeeResult{}, false
}

// =============================================================================
// RATIOS
// =============================================================================

// SignedRatio scales signed figures down to the target income. It never scales up.
func SignedRatio(targetIncome, totalSigned decimal.Decimal) decimal.Decimal {
	if !targetIncome.IsPositive() || !totalSigned.IsPositive() {
		return decimal.NewFromInt(1)
	}
	if targetIncome.GreaterThanOrEqual(totalSigned) {
		return decimal.NewFromInt(1)
	}
	return targetIncome.Div(totalSigned)
}

// DueRatio is the configured due normalization percentage as a fraction.
func DueRatio(dueNormalizedPercentage decimal.Decimal) decimal.Decimal {
	return Percent(dueNormalizedPercentage)
}

// =============================================================================
// CALCULATE
// =============================================================================

// Calculate computes every employee, department and field figure in one pass.
func Calculate(in Inputs, cfg Config) Result {
	categories := in.Categories
	if categories == nil {
		categories = NewCategoryIndex(nil)
	}
	rules := cfg.Departments
	if rules == nil {
		rules = DefaultDepartmentRules()
	}

	universe := mergeCases(in.SignedCases, in.HandlerCases)

	res := Result{
		TotalSignedValue: decimal.Zero,
		TotalSignedNet:   decimal.Zero,
		TotalDue:         decimal.Zero,
	}
	mainCategory := make(map[CaseRef]string, len(universe))
	for _, c := range universe {
		mainCategory[c.Ref] = categories.MainCategoryName(c.Category)
		if c.IsSigned() {
			res.SignedCaseCount++
			res.TotalSignedValue = res.TotalSignedValue.Add(c.FullAmount)
			res.TotalSignedNet = res.TotalSignedNet.Add(c.NetAmount)
		}
		res.TotalDue = res.TotalDue.Add(dueOf(in.Due, c.Ref))
	}

	res.Ratios = Ratios{
		Signed: SignedRatio(cfg.Settings.TargetIncome, res.TotalSignedNet),
		Due:    DueRatio(cfg.Settings.DueNormalizedPercentage),
	}

	employees := append([]Employee(nil), in.Employees...)
	sort.SliceStable(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	res.Employees = make([]EmployeeResult, 0, len(employees))
	for _, e := range employees {
		er := attribute(e, universe, in.Due, mainCategory, cfg.Roles)
		er.Department = rules.Classify(e)
		normalize(&er, res.Ratios, cfg.Roles)
		applySalary(&er, in.Salaries)
		res.Employees = append(res.Employees, er)
	}

	res.Departments = DepartmentTotals(res.Employees)
	res.Fields = FieldTotals(universe, in.Due, mainCategory, res.Employees, res.Ratios, cfg)
	return res
}

// mergeCases returns the case universe sorted by ref. A case present in both
// lists keeps its signed version.
func mergeCases(signed, handler []Case) []Case {
	byRef := make(map[CaseRef]Case, len(signed)+len(handler))
	for _, c := range handler {
		byRef[c.Ref] = c
	}
	for _, c := range signed {
		byRef[c.Ref] = c
	}
	out := make([]Case, 0, len(byRef))
	for _, c := range byRef {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.String() < out[j].Ref.String() })
	return out
}

func dueOf(due DueByCase, ref CaseRef) decimal.Decimal {
	if due == nil {
		return decimal.Zero
	}
	if v, ok := due[ref]; ok {
		return v
	}
	return decimal.Zero
}

// attribute classifies the employee on every case and accumulates raw totals.
func attribute(e Employee, universe []Case, due DueByCase, mainCategory map[CaseRef]string, rp RolePercentages) EmployeeResult {
	er := EmployeeResult{
		EmployeeID:    e.ID,
		Name:          e.Name,
		SignedTotal:   decimal.Zero,
		DueTotal:      decimal.Zero,
		SignedPortion: decimal.Zero,
	}
	combos := make(map[RoleSet]*RoleCombination)

	for _, c := range universe {
		set := ClassifyRoles(c, e)
		if set.IsEmpty() {
			continue
		}
		line := AttributionLine{
			Case:             c.Ref,
			CaseNumber:       c.Number,
			MainCategory:     mainCategory[c.Ref],
			Roles:            set,
			Signed:           decimal.Zero,
			SignedPercentage: decimal.Zero,
			SignedPortion:    decimal.Zero,
			Due:              decimal.Zero,
		}
		if c.IsSigned() && !set.IsHandlerOnly() {
			line.Signed = c.NetAmount
			line.SignedPercentage = SignedPercentage(set, c, rp)
			line.SignedPortion = c.NetAmount.Mul(Percent(line.SignedPercentage))
		}
		if set.Has(RoleHandler) {
			line.Due = dueOf(due, c.Ref)
		}
		if !c.IsSigned() && line.Due.IsZero() {
			// Handler case outside the signed period with nothing due: no trace.
			continue
		}

		er.SignedTotal = er.SignedTotal.Add(line.Signed)
		er.SignedPortion = er.SignedPortion.Add(line.SignedPortion)
		er.DueTotal = er.DueTotal.Add(line.Due)

		combo, ok := combos[set]
		if !ok {
			combo = &RoleCombination{Roles: set, Label: set.String(), SignedTotal: decimal.Zero, DueTotal: decimal.Zero}
			combos[set] = combo
		}
		combo.Cases++
		combo.SignedTotal = combo.SignedTotal.Add(line.Signed)
		combo.DueTotal = combo.DueTotal.Add(line.Due)

		er.Lines = append(er.Lines, line)
	}

	er.Combinations = make([]RoleCombination, 0, len(combos))
	for _, combo := range combos {
		er.Combinations = append(er.Combinations, *combo)
	}
	sort.Slice(er.Combinations, func(i, j int) bool { return er.Combinations[i].Roles < er.Combinations[j].Roles })
	return er
}

// heldRoles is the union of every role set the employee held.
func (er EmployeeResult) heldRoles() RoleSet {
	var held RoleSet
	for _, l := range er.Lines {
		held |= l.Roles
	}
	return held
}

func normalize(er *EmployeeResult, ratios Ratios, rp RolePercentages) {
	er.SignedNormalized = er.SignedTotal.Mul(ratios.Signed)
	// Equals signedPortion / signedTotal * signedNormalized.
	er.SignedPortionNormalized = decimal.Zero
	if !er.SignedTotal.IsZero() {
		er.SignedPortionNormalized = er.SignedPortion.Mul(ratios.Signed)
	}

	er.DueNormalized = er.DueTotal.Mul(ratios.Due)
	er.DuePercentage = DuePercentage(er.heldRoles(), rp)
	er.DuePortion = er.DueNormalized.Mul(Percent(er.DuePercentage))

	er.Contribution = er.SignedPortionNormalized.Add(er.DuePortion).Mul(ContributionRate)
	er.SalaryBudget = er.Contribution.Mul(SalaryBudgetRate)

	for i := range er.Lines {
		l := &er.Lines[i]
		l.SignedPortionNormalized = decimal.Zero
		if !er.SignedTotal.IsZero() {
			l.SignedPortionNormalized = l.SignedPortion.Mul(ratios.Signed)
		}
		l.DuePortion = l.Due.Mul(ratios.Due).Mul(Percent(er.DuePercentage))
		l.Contribution = l.SignedPortionNormalized.Add(l.DuePortion).Mul(ContributionRate)
	}
}

func applySalary(er *EmployeeResult, salaries map[EmployeeID]SalaryRow) {
	er.NetSalary = decimal.Zero
	er.SalaryBrutto = decimal.Zero
	er.TotalSalaryCost = decimal.Zero
	er.MaxIncentive = decimal.Zero

	row, ok := salaries[er.EmployeeID]
	if !ok {
		return
	}
	er.HasSalary = true
	er.NetSalary = row.NetSalary
	er.SalaryBrutto = row.GrossSalary
	er.TotalSalaryCost = row.SalaryCost()
	er.MaxIncentive = er.SalaryBudget.Sub(er.TotalSalaryCost)
}
