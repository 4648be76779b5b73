/*
scheduler.go - Periodic report refresh

PURPOSE:
  Record-store data changes (new signed cases, paid installments, reassigned
  handlers) without any config write. The scheduler periodically reloads the
  configuration and recomputes the most recent request in full so the latest
  snapshot tracks the store.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Each tick: ReloadConfig, then Refresh (full batch, cache dropped)
  - Does nothing until a first request has been made

USAGE:
  scheduler := NewRefreshScheduler(service)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package report

import (
	"context"
	"log"
	"sync"
	"time"
)

// RefreshScheduler recomputes the latest report on a fixed interval.
type RefreshScheduler struct {
	Service  *Service
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun   time.Time
	lastError error
}

// NewRefreshScheduler creates a scheduler with a 15 minute interval.
func NewRefreshScheduler(service *Service) *RefreshScheduler {
	return &RefreshScheduler{
		Service:  service,
		Interval: 15 * time.Minute,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.Interval <= 0 {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker.C, rs.stop)

	log.Printf("[Scheduler] Started with refresh interval: %v", rs.Interval)
}

// Stop stops the scheduler and waits for an in-flight refresh.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	ticker, stop := rs.ticker, rs.stop
	rs.ticker, rs.stop = nil, nil
	rs.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RefreshScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-tick:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow reloads configuration and refreshes the latest report immediately.
func (rs *RefreshScheduler) RunNow(ctx context.Context) error {
	start := time.Now()

	changed, err := rs.Service.ReloadConfig(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error reloading config: %v", err)
		rs.record(start, err)
		return err
	}
	if changed {
		log.Println("[Scheduler] Configuration changed in store")
	}

	snap, err := rs.Service.Refresh(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error refreshing report: %v", err)
		rs.record(start, err)
		return err
	}
	if snap != nil {
		log.Printf("[Scheduler] Refreshed generation %d in %v", snap.Generation, time.Since(start))
	}
	rs.record(start, nil)
	return nil
}

func (rs *RefreshScheduler) record(at time.Time, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.lastRun = at
	rs.lastError = err
}

// Status returns the time and outcome of the last refresh.
func (rs *RefreshScheduler) Status() (time.Time, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastRun, rs.lastError
}

// NextRunTime returns when the next scheduled refresh will occur.
func (rs *RefreshScheduler) NextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.Interval)
	}
	return rs.lastRun.Add(rs.Interval)
}
