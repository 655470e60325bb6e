/*
errors.go - Centralized error types for the attendance pipeline

PURPOSE:

	All error types in one place for consistency and discoverability.
	Services wrap these errors with additional context.

ERROR CATEGORIES:
 1. Lookup errors - missing employees, schedules, punches, events
 2. Classification errors - states the pipeline records as data
 3. Store errors - persistence-level failures

PROPAGATION POLICY:

	The pipeline never lets an error escape a single employee-day or
	event-group boundary. Failures are recorded on the affected rows
	(status fields, processing_error strings) and the batch continues,
	so a scheduled run always completes and reports aggregate stats.
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when a referenced employee does
	// not exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrPunchNotFound is returned when a referenced punch does not exist.
	ErrPunchNotFound = errors.New("punch not found")

	// ErrEventNotFound is returned when a referenced clock event does
	// not exist.
	ErrEventNotFound = errors.New("clock event not found")

	// ErrNoSchedule is returned when schedule resolution finds neither
	// an employee-specific nor a department-level schedule.
	ErrNoSchedule = errors.New("no shift schedule found")

	// ErrInsufficientTrainingData is returned when the predictor has
	// too few classified punches to train on. The predictor fails soft
	// on it: no verdicts, never a crash.
	ErrInsufficientTrainingData = errors.New("insufficient training data")

	// ErrDuplicateEvent is returned when a device reports the same
	// credential within the duplicate suppression window.
	ErrDuplicateEvent = errors.New("duplicate clock event within window")

	// ErrStoreRequired is returned when an operation needs an extended
	// store capability the configured store does not provide.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// GroupProcessingError reports the failure of one (employee, shift-day)
// ingestion group. It is recorded on every event in the group; the rest
// of the batch is unaffected.
type GroupProcessingError struct {
	EmployeeID EmployeeID
	ShiftDate  string
	EventCount int
	Cause      error
}

func (e *GroupProcessingError) Error() string {
	return fmt.Sprintf("event group %s/%s (%d events) failed: %v",
		e.EmployeeID, e.ShiftDate, e.EventCount, e.Cause)
}

func (e *GroupProcessingError) Unwrap() error { return e.Cause }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrPunchNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsClientError reports whether the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrDuplicateEvent)
}
