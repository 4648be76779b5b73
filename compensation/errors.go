/*
errors.go - Centralized error types for the compensation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Most data problems are not errors here: an unresolvable category becomes
  "Uncategorized", a missing salary row becomes zero, a failed due-amount
  sub-query contributes zero. Only the conditions below surface to callers.

ERROR CATEGORIES:
  1. Fatal fetch errors - the employee list or the signed-case list is unavailable
  2. Configuration errors - rejected writes (percentage outside 0-100, unknown role)
  3. Request errors - malformed reporting period

SEE ALSO:
  - report/service.go: Wraps fetch failures
  - config.go: Produces ConfigError
*/
package compensation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeesUnavailable aborts a batch: there is no partial employee universe.
	ErrEmployeesUnavailable = errors.New("employee list unavailable")

	// ErrSignedCasesUnavailable aborts a batch: there is no partial case universe.
	ErrSignedCasesUnavailable = errors.New("signed case list unavailable")

	// ErrInvalidPercentage is returned for a percentage outside 0-100.
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")

	// ErrUnknownRole is returned when a role percentage names an unknown role.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidSettings is returned for negative target income or similar.
	ErrInvalidSettings = errors.New("invalid reporting settings")

	// ErrNoSnapshot is returned when no batch has completed yet.
	ErrNoSnapshot = errors.New("no report computed yet")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError records which record-store query failed.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigError describes a rejected configuration write.
type ConfigError struct {
	Field  string
	Value  string
	Reason error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s=%q: %v", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Reason }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPercentage) ||
		errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidSettings)
}

// IsFatal returns true if the batch could not produce any report.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmployeesUnavailable) ||
		errors.Is(err, ErrSignedCasesUnavailable)
}
