/*
Package report drives the compensation engine for a reporting period.

PURPOSE:
  Service is the batch orchestrator. For one request it fetches the whole
  universe once (concurrently where queries are independent), runs
  compensation.Calculate in memory with no further fetches, and publishes the
  result as one snapshot. There is no per-employee or incremental path.

BATCH SEQUENCE:
  1. Employees, categories and signed-case events in parallel
  2. Build the category index (before any attribution)
  3. Signed case details, handler cases (all schemas) and salaries in parallel
  4. Installments of every case in the universe, per schema, in parallel
  5. Calculate, then publish

GENERATIONS:
  Each Run takes a generation number. A snapshot is published only if no newer
  generation has published already, so a slow superseded request never
  overwrites a faster newer one.

CACHE:
  Snapshots are cached by (request, config version). Any configuration write
  bumps the version, drops the cache and recomputes the last request in full.

SEE ALSO:
  - fetch.go: Fan-out fetch phase
  - scheduler.go: Periodic refresh
  - compensation/engine.go: The calculation
*/
package report

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/warp/contribution-engine/compensation"
)

// Request identifies one report.
type Request struct {
	// Period windows signed amounts by sign date.
	Period compensation.Period
	// DueWindow windows due amounts by installment due date. Defaults to Period.
	DueWindow compensation.Period
	// SalaryYear and SalaryMonth select salary rows. Zero year skips salaries.
	SalaryYear  int
	SalaryMonth time.Month
}

func (r Request) dueWindow() compensation.Period {
	if r.DueWindow.IsZero() {
		return r.Period
	}
	return r.DueWindow
}

func (r Request) Validate() error {
	if r.Period.IsZero() || r.Period.To.Before(r.Period.From) {
		return fmt.Errorf("%w: %s", compensation.ErrInvalidPeriod, r.Period)
	}
	if !r.DueWindow.IsZero() && r.DueWindow.To.Before(r.DueWindow.From) {
		return fmt.Errorf("%w: due window %s", compensation.ErrInvalidPeriod, r.DueWindow)
	}
	if r.SalaryYear != 0 && (r.SalaryMonth < time.January || r.SalaryMonth > time.December) {
		return fmt.Errorf("%w: salary month %d", compensation.ErrInvalidPeriod, r.SalaryMonth)
	}
	return nil
}

// Snapshot is one published, internally consistent report.
type Snapshot struct {
	RunID         uuid.UUID
	Generation    uint64
	ConfigVersion uint64
	Request       Request
	ComputedAt    time.Time
	// Degraded lists sub-queries that failed and were counted as zero.
	Degraded []string

	compensation.Result
}

// Options configure a Service.
type Options struct {
	Converter      compensation.Converter
	Departments    compensation.DepartmentRules
	SeparateFields []string
	Now            func() time.Time
}

// Service is the batch orchestrator.
type Service struct {
	source compensation.RecordSource
	config compensation.ConfigStore
	conv   compensation.Converter
	now    func() time.Time

	generation atomic.Uint64

	mu          sync.Mutex
	cfg         compensation.Config
	cfgVersion  uint64
	cfgLoaded   bool
	published   uint64
	latest      *Snapshot
	lastRequest *Request
	cache       map[cacheKey]*Snapshot
}

// NewService creates a Service. Configuration is loaded from the config store
// on first use.
func NewService(source compensation.RecordSource, config compensation.ConfigStore, opts Options) *Service {
	s := &Service{
		source: source,
		config: config,
		conv:   opts.Converter,
		now:    opts.Now,
		cfg:    compensation.DefaultConfig(),
		cache:  make(map[cacheKey]*Snapshot),
	}
	if s.conv == nil {
		s.conv = compensation.RateTable{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Departments != nil {
		s.cfg.Departments = opts.Departments
	}
	s.cfg.SeparateFields = append([]string(nil), opts.SeparateFields...)
	return s
}

// =============================================================================
// RUN
// =============================================================================

// Run computes (or serves from cache) the report for req.
func (s *Service) Run(ctx context.Context, req Request) (*Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	gen := s.generation.Add(1)

	cfg, version, err := s.currentConfig(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastRequest = &req
	key := newCacheKey(req, version)
	if cached, ok := s.cache[key]; ok {
		s.publishLocked(gen, cached)
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	started := s.now()
	log.Printf("[Report] generation %d: computing %s (config v%d)", gen, req.Period, version)

	fr, err := s.fetch(ctx, req)
	if err != nil {
		log.Printf("[Report] generation %d failed: %v", gen, err)
		return nil, err
	}

	// Pure, synchronous, single pass.
	result := compensation.Calculate(fr.inputs, cfg)

	snap := &Snapshot{
		RunID:         uuid.New(),
		Generation:    gen,
		ConfigVersion: version,
		Request:       req,
		ComputedAt:    s.now(),
		Degraded:      fr.degraded,
		Result:        result,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgVersion == version {
		s.cache[key] = snap
	}
	s.publishLocked(gen, snap)
	log.Printf("[Report] generation %d: %d employees, %d signed cases in %v",
		gen, len(result.Employees), result.SignedCaseCount, s.now().Sub(started))
	return snap, nil
}

// publishLocked replaces the latest snapshot unless a newer generation already
// published.
func (s *Service) publishLocked(gen uint64, snap *Snapshot) bool {
	if gen < s.published {
		log.Printf("[Report] discarding stale generation %d (published %d)", gen, s.published)
		return false
	}
	s.published = gen
	s.latest = snap
	return true
}

// Latest returns the most recently published snapshot.
func (s *Service) Latest() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, compensation.ErrNoSnapshot
	}
	return s.latest, nil
}

// Employee returns one employee's result from the latest snapshot.
func (s *Service) Employee(id compensation.EmployeeID) (compensation.EmployeeResult, error) {
	snap, err := s.Latest()
	if err != nil {
		return compensation.EmployeeResult{}, err
	}
	er, ok := snap.Employee(id)
	if !ok {
		return compensation.EmployeeResult{}, fmt.Errorf("employee %d: %w", id, ErrEmployeeNotInReport)
	}
	return er, nil
}

// Refresh drops the cache and recomputes the last request, picking up record
// store changes. It returns nil, nil when nothing has been requested yet.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	s.invalidateLocked()
	last := s.lastRequest
	s.mu.Unlock()
	if last == nil {
		return nil, nil
	}
	return s.Run(ctx, *last)
}
