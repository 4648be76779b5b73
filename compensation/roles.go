/*
roles.go - Role classification and percentage accumulation

PURPOSE:
  For one (employee, case) pair, decide which of the seven compensable role
  slots the employee occupies, then sum the configured percentages of every
  role held. This is a combinatorial classification, not a state machine: each
  slot is tested independently and an employee may hold several at once.

PERCENTAGE RULES (signed pool):
  Closer        CLOSER, or CLOSER_WITH_HELPER when any helper closer is assigned
  HelperCloser  HELPER_CLOSER, always
  Scheduler     SCHEDULER
  Manager       MANAGER
  Expert        EXPERT
  Handler       never added to the signed pool (due pool only)

  Percentages across all employees of a case may exceed 100%. They model
  parallel commission pools, not a split of one pool.

HANDLER-ONLY:
  A role set of exactly {Handler} contributes nothing to signed totals but its
  due amount still counts.
*/
package compensation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLE SLOTS
// =============================================================================

type Role uint8

const (
	RoleCloser Role = iota
	RoleScheduler
	RoleHelperCloser
	RoleHandler
	RoleManager
	RoleExpert
	RoleHelperHandler
	roleCount
)

var roleNames = [roleCount]string{
	"Closer", "Scheduler", "Helper Closer", "Handler", "Meeting Manager", "Expert", "Helper Handler",
}

func (r Role) String() string {
	if r >= roleCount {
		return fmt.Sprintf("Role(%d)", r)
	}
	return roleNames[r]
}

// AllRoles lists the slots in display order.
func AllRoles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}

// RoleSet is the set of roles one employee holds on one case.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

func (s RoleSet) With(r Role) RoleSet { return s | 1<<r }
func (s RoleSet) Has(r Role) bool     { return s&(1<<r) != 0 }
func (s RoleSet) IsEmpty() bool       { return s == 0 }

// IsHandlerOnly reports a role set of exactly {Handler}.
func (s RoleSet) IsHandlerOnly() bool { return s == NewRoleSet(RoleHandler) }

// Roles returns the members in display order.
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range AllRoles() {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	roles := s.Roles()
	if len(roles) == 0 {
		return "None"
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, " + ")
}

// ClassifyRoles tests every slot of the case against the employee.
func ClassifyRoles(c Case, e Employee) RoleSet {
	var s RoleSet
	slots := []struct {
		role Role
		ra   RoleAssignment
	}{
		{RoleCloser, c.Roles.Closer},
		{RoleScheduler, c.Roles.Scheduler},
		{RoleHelperCloser, c.Roles.HelperCloser},
		{RoleHandler, c.Roles.Handler},
		{RoleManager, c.Roles.Manager},
		{RoleExpert, c.Roles.Expert},
	}
	for _, slot := range slots {
		if slot.ra.Matches(e) {
			s = s.With(slot.role)
		}
	}
	return s
}

// =============================================================================
// ROLE PERCENTAGES
// =============================================================================

type PercentageKey string

const (
	PctCloser            PercentageKey = "CLOSER"
	PctScheduler         PercentageKey = "SCHEDULER"
	PctManager           PercentageKey = "MANAGER"
	PctExpert            PercentageKey = "EXPERT"
	PctHandler           PercentageKey = "HANDLER"
	PctCloserWithHelper  PercentageKey = "CLOSER_WITH_HELPER"
	PctHelperCloser      PercentageKey = "HELPER_CLOSER"
	PctHelperHandler     PercentageKey = "HELPER_HANDLER"
	PctDepartmentManager PercentageKey = "DEPARTMENT_MANAGER"
)

// PercentageKeys lists every configurable key.
func PercentageKeys() []PercentageKey {
	return []PercentageKey{
		PctCloser, PctScheduler, PctManager, PctExpert, PctHandler,
		PctCloserWithHelper, PctHelperCloser, PctHelperHandler, PctDepartmentManager,
	}
}

// RolePercentages maps a role key to a 0-100 percentage. Keys are independent
// and need not sum to 100. Missing keys read as zero.
type RolePercentages map[PercentageKey]decimal.Decimal

func (rp RolePercentages) Get(k PercentageKey) decimal.Decimal {
	if v, ok := rp[k]; ok {
		return v
	}
	return decimal.Zero
}

// Clone returns an independent copy.
func (rp RolePercentages) Clone() RolePercentages {
	out := make(RolePercentages, len(rp))
	for k, v := range rp {
		out[k] = v
	}
	return out
}

// Validate rejects unknown keys and values outside 0-100.
func (rp RolePercentages) Validate() error {
	known := make(map[PercentageKey]bool)
	for _, k := range PercentageKeys() {
		known[k] = true
	}
	keys := make([]string, 0, len(rp))
	for k := range rp {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := rp[PercentageKey(k)]
		if !known[PercentageKey(k)] {
			return &ConfigError{Field: k, Value: v.String(), Reason: ErrUnknownRole}
		}
		if v.IsNegative() || v.GreaterThan(hundred) {
			return &ConfigError{Field: k, Value: v.String(), Reason: ErrInvalidPercentage}
		}
	}
	return nil
}

// Equal reports whether both maps hold the same values for every key.
func (rp RolePercentages) Equal(other RolePercentages) bool {
	for _, k := range PercentageKeys() {
		if !rp.Get(k).Equal(other.Get(k)) {
			return false
		}
	}
	return true
}

// SignedPercentage sums the signed-pool percentages of every role in the set.
// Returned as 0-100 (may exceed 100 for stacked roles).
func SignedPercentage(set RoleSet, c Case, rp RolePercentages) decimal.Decimal {
	pct := decimal.Zero
	if set.Has(RoleCloser) {
		if c.Roles.HelperCloser.IsAssigned() {
			pct = pct.Add(rp.Get(PctCloserWithHelper))
		} else {
			pct = pct.Add(rp.Get(PctCloser))
		}
	}
	if set.Has(RoleHelperCloser) {
		pct = pct.Add(rp.Get(PctHelperCloser))
	}
	if set.Has(RoleScheduler) {
		pct = pct.Add(rp.Get(PctScheduler))
	}
	if set.Has(RoleManager) {
		pct = pct.Add(rp.Get(PctManager))
	}
	if set.Has(RoleExpert) {
		pct = pct.Add(rp.Get(PctExpert))
	}
	return pct
}

// DuePercentage is the due-pool percentage of an employee given every role they
// held across their cases: handler, helper handler, and the expert percentage
// when they were expert on at least one case. Expert is the only role drawing
// from both pools.
func DuePercentage(held RoleSet, rp RolePercentages) decimal.Decimal {
	pct := decimal.Zero
	if held.Has(RoleHandler) {
		pct = pct.Add(rp.Get(PctHandler))
	}
	if held.Has(RoleHelperHandler) {
		pct = pct.Add(rp.Get(PctHelperHandler))
	}
	if held.Has(RoleExpert) {
		pct = pct.Add(rp.Get(PctExpert))
	}
	return pct
}
