package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/warp/contribution-engine/compensation"
)

// =============================================================================
// FETCH PHASE - everything the calculation needs, fetched once
// =============================================================================

// fetchResult is the materialised universe plus the sub-queries that degraded.
type fetchResult struct {
	inputs   compensation.Inputs
	degraded []string
}

var schemas = []compensation.Schema{compensation.SchemaCurrent, compensation.SchemaLegacy}

// fetch runs three fan-out phases. Fatal queries (employees, signed cases and
// their details) abort the batch; every other failing sub-query is logged and
// contributes nothing.
func (s *Service) fetch(ctx context.Context, req Request) (*fetchResult, error) {
	fr := &fetchResult{}
	var mu sync.Mutex
	degrade := func(source string, err error) {
		log.Printf("[Report] degraded: %s: %v", source, err)
		mu.Lock()
		fr.degraded = append(fr.degraded, source)
		mu.Unlock()
	}

	// Phase 1: independent base lists.
	var (
		employees  []compensation.Employee
		categories []compensation.Category
		events     []compensation.StageEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = s.source.Employees(gctx)
		if err != nil {
			return fmt.Errorf("%w: %w", compensation.ErrEmployeesUnavailable, &compensation.FetchError{Source: "employees", Err: err})
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.source.Categories(gctx)
		if err != nil {
			degrade("categories", err)
			categories = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		events, err = s.source.SignedCases(gctx, req.Period)
		if err != nil {
			return fmt.Errorf("%w: %w", compensation.ErrSignedCasesUnavailable, &compensation.FetchError{Source: "signed_cases", Err: err})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Category lookup tables are complete before any amount is attributed.
	fr.inputs.Categories = compensation.NewCategoryIndex(categories)
	fr.inputs.Employees = employees

	signedAt := make(map[compensation.CaseRef]compensation.StageEvent, len(events))
	signedIDs := make(map[compensation.Schema][]string)
	for _, ev := range events {
		if _, dup := signedAt[ev.Case]; dup {
			continue
		}
		signedAt[ev.Case] = ev
		signedIDs[ev.Case.Schema] = append(signedIDs[ev.Case.Schema], ev.Case.ID)
	}

	// Phase 2: signed case details, handler superset, salaries.
	var (
		detailMu sync.Mutex
		signed   []compensation.CaseRecord
		handled  []compensation.CaseRecord
		salaries []compensation.SalaryRow
	)
	g, gctx = errgroup.WithContext(ctx)
	for _, schema := range schemas {
		schema := schema
		if ids := signedIDs[schema]; len(ids) > 0 {
			g.Go(func() error {
				recs, err := s.source.CaseDetails(gctx, schema, ids)
				if err != nil {
					return fmt.Errorf("%w: %w", compensation.ErrSignedCasesUnavailable,
						&compensation.FetchError{Source: "case_details:" + string(schema), Err: err})
				}
				detailMu.Lock()
				signed = append(signed, recs...)
				detailMu.Unlock()
				return nil
			})
		}
		if len(employees) > 0 {
			g.Go(func() error {
				recs, err := s.source.HandlerCases(gctx, schema, employees)
				if err != nil {
					degrade("handler_cases:"+string(schema), err)
					return nil
				}
				detailMu.Lock()
				handled = append(handled, recs...)
				detailMu.Unlock()
				return nil
			})
		}
	}
	if req.SalaryYear != 0 && len(employees) > 0 {
		ids := make([]compensation.EmployeeID, len(employees))
		for i, e := range employees {
			ids[i] = e.ID
		}
		g.Go(func() error {
			rows, err := s.source.Salaries(gctx, req.SalaryYear, req.SalaryMonth, ids)
			if err != nil {
				degrade("salaries", err)
				return nil
			}
			salaries = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fr.inputs.Salaries = make(map[compensation.EmployeeID]compensation.SalaryRow, len(salaries))
	for _, row := range salaries {
		fr.inputs.Salaries[row.EmployeeID] = row
	}

	for _, rec := range signed {
		c := rec.Normalize(s.conv)
		ev, ok := signedAt[c.Ref]
		if !ok {
			continue
		}
		c.SignedAt = ev.SignedAt
		fr.inputs.SignedCases = append(fr.inputs.SignedCases, c)
	}
	if missing := len(signedAt) - len(fr.inputs.SignedCases); missing > 0 {
		log.Printf("[Report] %d signed cases have no detail row", missing)
	}
	for _, rec := range handled {
		fr.inputs.HandlerCases = append(fr.inputs.HandlerCases, rec.Normalize(s.conv))
	}

	// Phase 3: installments of every case in the universe, per schema.
	caseIDs := make(map[compensation.Schema]map[string]bool)
	for _, list := range [][]compensation.Case{fr.inputs.SignedCases, fr.inputs.HandlerCases} {
		for _, c := range list {
			if caseIDs[c.Ref.Schema] == nil {
				caseIDs[c.Ref.Schema] = make(map[string]bool)
			}
			caseIDs[c.Ref.Schema][c.Ref.ID] = true
		}
	}

	window := req.dueWindow()
	fr.inputs.Due = make(compensation.DueByCase)
	var dueMu sync.Mutex
	g, gctx = errgroup.WithContext(ctx)
	for _, schema := range schemas {
		schema := schema
		ids := sortedKeys(caseIDs[schema])
		if len(ids) == 0 {
			continue
		}
		g.Go(func() error {
			insts, err := s.source.Installments(gctx, schema, ids, window)
			if err != nil {
				degrade("installments:"+string(schema), err)
				return nil
			}
			due := compensation.AggregateDue(insts, window, s.conv)
			dueMu.Lock()
			fr.inputs.Due.Merge(due)
			dueMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(fr.degraded)
	return fr, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
