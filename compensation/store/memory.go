// Package store provides in-memory RecordSource and ConfigStore implementations.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/warp/contribution-engine/compensation"
)

// Operation names, used for call counting and failure injection.
const (
	OpSignedCases  = "signed_cases"
	OpCaseDetails  = "case_details"
	OpHandlerCases = "handler_cases"
	OpInstallments = "installments"
	OpEmployees    = "employees"
	OpCategories   = "categories"
	OpSalaries     = "salaries"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	current      map[string]compensation.CurrentCase
	legacy       map[int64]compensation.LegacyCase
	stages       []compensation.StageEvent
	installments []compensation.Installment
	employees    []compensation.Employee
	categories   []compensation.Category
	salaries     map[salaryKey]compensation.SalaryRow
	roles        compensation.RolePercentages
	settings     compensation.ReportingSettings

	failures map[string]error
	calls    map[string]int
}

type salaryKey struct {
	year     int
	month    time.Month
	employee compensation.EmployeeID
}

func NewMemory() *Memory {
	return &Memory{
		current:  make(map[string]compensation.CurrentCase),
		legacy:   make(map[int64]compensation.LegacyCase),
		salaries: make(map[salaryKey]compensation.SalaryRow),
		roles:    compensation.RolePercentages{},
		settings: compensation.DefaultConfig().Settings,
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddCurrentCase(c compensation.CurrentCase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[c.ID] = c
}

func (m *Memory) AddLegacyCase(c compensation.LegacyCase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy[c.ID] = c
}

// MarkSigned records the case's transition to signed status.
func (m *Memory) MarkSigned(ref compensation.CaseRef, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, compensation.StageEvent{Case: ref, SignedAt: at})
}

func (m *Memory) AddInstallment(i compensation.Installment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installments = append(m.installments, i)
}

func (m *Memory) AddEmployee(e compensation.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e)
}

func (m *Memory) AddCategory(c compensation.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append(m.categories, c)
}

func (m *Memory) SetSalary(year int, month time.Month, row compensation.SalaryRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.salaries[salaryKey{year: year, month: month, employee: row.EmployeeID}] = row
}

// FailOn makes an operation return err. The key is an operation name, optionally
// suffixed with ":" and a schema (e.g. "installments:legacy").
func (m *Memory) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

// Calls returns how many times an operation ran.
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

func (m *Memory) enter(op string, schema compensation.Schema) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return err
	}
	if schema != "" {
		if err, ok := m.failures[op+":"+string(schema)]; ok {
			return err
		}
	}
	return nil
}

// =============================================================================
// RECORD SOURCE
// =============================================================================

func (m *Memory) SignedCases(_ context.Context, period compensation.Period) ([]compensation.StageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSignedCases, ""); err != nil {
		return nil, err
	}

	seen := make(map[compensation.CaseRef]bool)
	var out []compensation.StageEvent
	for _, ev := range m.stages {
		if !period.Contains(ev.SignedAt) || seen[ev.Case] {
			continue
		}
		seen[ev.Case] = true
		out = append(out, ev)
	}
	return out, nil
}

func (m *Memory) CaseDetails(_ context.Context, schema compensation.Schema, ids []string) ([]compensation.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCaseDetails, schema); err != nil {
		return nil, err
	}

	var out []compensation.CaseRecord
	for _, id := range ids {
		switch schema {
		case compensation.SchemaCurrent:
			if c, ok := m.current[id]; ok {
				out = append(out, compensation.FromCurrent(c))
			}
		case compensation.SchemaLegacy:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				continue
			}
			if c, ok := m.legacy[n]; ok {
				out = append(out, compensation.FromLegacy(c))
			}
		}
	}
	return out, nil
}

func (m *Memory) HandlerCases(_ context.Context, schema compensation.Schema, employees []compensation.Employee) ([]compensation.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpHandlerCases, schema); err != nil {
		return nil, err
	}

	handles := func(ra compensation.RoleAssignment) bool {
		for _, e := range employees {
			if ra.Matches(e) {
				return true
			}
		}
		return false
	}

	var out []compensation.CaseRecord
	switch schema {
	case compensation.SchemaCurrent:
		for _, c := range m.current {
			rec := compensation.FromCurrent(c)
			if handles(rec.Normalize(compensation.RateTable{}).Roles.Handler) {
				out = append(out, rec)
			}
		}
	case compensation.SchemaLegacy:
		for _, c := range m.legacy {
			if handles(compensation.RoleAssignment{ByID: c.CaseHandlerID}) {
				out = append(out, compensation.FromLegacy(c))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().ID < out[j].Ref().ID })
	return out, nil
}

func (m *Memory) Installments(_ context.Context, schema compensation.Schema, caseIDs []string, window compensation.Period) ([]compensation.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpInstallments, schema); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(caseIDs))
	for _, id := range caseIDs {
		wanted[id] = true
	}
	var out []compensation.Installment
	for _, inst := range m.installments {
		if inst.Case.Schema != schema || !wanted[inst.Case.ID] || !inst.CountsAsDue(window) {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

func (m *Memory) Employees(_ context.Context) ([]compensation.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpEmployees, ""); err != nil {
		return nil, err
	}

	var out []compensation.Employee
	for _, e := range m.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) Categories(_ context.Context) ([]compensation.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCategories, ""); err != nil {
		return nil, err
	}
	return append([]compensation.Category(nil), m.categories...), nil
}

func (m *Memory) Salaries(_ context.Context, year int, month time.Month, ids []compensation.EmployeeID) ([]compensation.SalaryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSalaries, ""); err != nil {
		return nil, err
	}

	var out []compensation.SalaryRow
	for _, id := range ids {
		if row, ok := m.salaries[salaryKey{year: year, month: month, employee: id}]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func (m *Memory) RolePercentages(_ context.Context) (compensation.RolePercentages, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles.Clone(), nil
}

func (m *Memory) ReportingSettings(_ context.Context) (compensation.ReportingSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *Memory) SaveRolePercentages(_ context.Context, rp compensation.RolePercentages) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = rp.Clone()
	return nil
}

func (m *Memory) SaveReportingSettings(_ context.Context, s compensation.ReportingSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}
