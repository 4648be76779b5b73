package report

import "time"

// cacheKey identifies a snapshot. The config version replaces hashing the
// percentages and settings: any config write bumps it.
type cacheKey struct {
	from, to       int64
	dueFrom, dueTo int64
	salaryYear     int
	salaryMonth    time.Month
	configVersion  uint64
}

func newCacheKey(req Request, version uint64) cacheKey {
	due := req.dueWindow()
	return cacheKey{
		from:          req.Period.From.UnixNano(),
		to:            req.Period.To.UnixNano(),
		dueFrom:       due.From.UnixNano(),
		dueTo:         due.To.UnixNano(),
		salaryYear:    req.SalaryYear,
		salaryMonth:   req.SalaryMonth,
		configVersion: version,
	}
}

func (s *Service) invalidateLocked() {
	s.cache = make(map[cacheKey]*Snapshot)
}

// CacheSize returns the number of cached snapshots.
func (s *Service) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
