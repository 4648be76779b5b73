package report

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/contribution-engine/compensation"
)

// ErrEmployeeNotInReport is returned when the latest snapshot has no such employee.
var ErrEmployeeNotInReport = errors.New("employee not in report")

// =============================================================================
// CONFIGURATION - shared mutable state, versioned
// =============================================================================

// currentConfig returns an immutable copy of the configuration and its version,
// loading it from the config store on first use.
func (s *Service) currentConfig(ctx context.Context) (compensation.Config, uint64, error) {
	s.mu.Lock()
	loaded := s.cfgLoaded
	s.mu.Unlock()
	if !loaded {
		if _, err := s.ReloadConfig(ctx); err != nil {
			return compensation.Config{}, 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyConfigLocked(), s.cfgVersion, nil
}

func (s *Service) copyConfigLocked() compensation.Config {
	cfg := s.cfg
	cfg.Roles = s.cfg.Roles.Clone()
	cfg.SeparateFields = append([]string(nil), s.cfg.SeparateFields...)
	return cfg
}

// Config returns the configuration currently in effect.
func (s *Service) Config(ctx context.Context) (compensation.Config, uint64, error) {
	return s.currentConfig(ctx)
}

// ReloadConfig reads role percentages and settings from the config store. The
// version is bumped, and the cache dropped, only when the values changed.
func (s *Service) ReloadConfig(ctx context.Context) (bool, error) {
	rp, err := s.config.RolePercentages(ctx)
	if err != nil {
		return false, fmt.Errorf("load role percentages: %w", err)
	}
	settings, err := s.config.ReportingSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("load reporting settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.cfgLoaded || !s.cfg.Roles.Equal(rp) ||
		!s.cfg.Settings.TargetIncome.Equal(settings.TargetIncome) ||
		!s.cfg.Settings.DueNormalizedPercentage.Equal(settings.DueNormalizedPercentage)
	s.cfgLoaded = true
	if changed {
		s.cfg.Roles = rp.Clone()
		s.cfg.Settings = settings
		s.bumpLocked()
	}
	return changed, nil
}

// UpdateRolePercentages validates, persists and applies new role percentages,
// then recomputes the last request in full. Invalid input leaves the previous
// configuration in effect.
func (s *Service) UpdateRolePercentages(ctx context.Context, rp compensation.RolePercentages) (*Snapshot, error) {
	if err := rp.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := s.currentConfig(ctx); err != nil {
		return nil, err
	}
	if err := s.config.SaveRolePercentages(ctx, rp); err != nil {
		return nil, fmt.Errorf("save role percentages: %w", err)
	}

	s.mu.Lock()
	s.cfg.Roles = rp.Clone()
	s.bumpLocked()
	s.mu.Unlock()

	return s.recomputeLast(ctx)
}

// UpdateSettings validates, persists and applies new reporting settings, then
// recomputes the last request in full.
func (s *Service) UpdateSettings(ctx context.Context, settings compensation.ReportingSettings) (*Snapshot, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := s.currentConfig(ctx); err != nil {
		return nil, err
	}
	if err := s.config.SaveReportingSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save reporting settings: %w", err)
	}

	s.mu.Lock()
	s.cfg.Settings = settings
	s.bumpLocked()
	s.mu.Unlock()

	return s.recomputeLast(ctx)
}

func (s *Service) recomputeLast(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	last := s.lastRequest
	s.mu.Unlock()
	if last == nil {
		return nil, nil
	}
	return s.Run(ctx, *last)
}

func (s *Service) bumpLocked() {
	s.cfgVersion++
	s.invalidateLocked()
	log.Printf("[Report] config version %d, cache invalidated", s.cfgVersion)
}
