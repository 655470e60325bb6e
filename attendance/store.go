/*
store.go - Persistence interfaces for punches and clock events

PURPOSE:

	Defines the interface between the pipeline and the database. Different
	implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:

	PunchStore:   Punch create/update/query operations
	EventStore:   Clock event ingestion queries and processing markers
	IngestStore:  Both of the above plus WithTx group transactions

GROUP ATOMICITY:

	Ingestion writes one (employee, shift-day) group per transaction: all
	of the group's draft punches plus the processed-markers on its events,
	or none of them. WithTx is how implementations expose that boundary.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - store/memory: in-memory store for tests and development
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// PUNCH STORE
// =============================================================================

type PunchStore interface {
	// CreatePunches persists a batch of draft punches, assigning IDs.
	CreatePunches(ctx context.Context, punches []*Punch) error

	// UpdatePunch persists a punch's classification fields (type,
	// state, status, issue notes).
	UpdatePunch(ctx context.Context, punch *Punch) error

	// GetPunch returns a punch by id, or ErrPunchNotFound.
	GetPunch(ctx context.Context, id PunchID) (*Punch, error)

	// PunchesForEmployee returns an employee's punches with PunchTime
	// in [from, to], ordered by punch time ascending.
	PunchesForEmployee(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]*Punch, error)

	// UnresolvedPunches returns punches with status Incomplete or
	// NeedsReview in [from, to] across all employees, ordered by
	// employee then punch time.
	UnresolvedPunches(ctx context.Context, from, to time.Time) ([]*Punch, error)

	// TrainingPunches returns the most recent classified Complete
	// punches, up to limit, for predictor training.
	TrainingPunches(ctx context.Context, limit int) ([]*Punch, error)
}

// =============================================================================
// EVENT STORE
// =============================================================================

// EventStats summarizes the clock event table for dashboards.
type EventStats struct {
	Total       int `json:"total_events"`
	Processed   int `json:"processed_events"`
	Unprocessed int `json:"unprocessed_events"`
	WithErrors  int `json:"events_with_errors"`
	Ready       int `json:"ready_for_processing"`
}

type EventStore interface {
	// CreateEvent persists a raw device event.
	CreateEvent(ctx context.Context, event *ClockEvent) error

	// ReadyEvents returns up to limit unprocessed events without a
	// standing error, ordered by event time ascending. The ingestion
	// service handles attribution: events with no employee are marked
	// errored rather than silently skipped.
	ReadyEvents(ctx context.Context, limit int) ([]*ClockEvent, error)

	// EventsForEmployee returns an employee's events with ShiftDate in
	// [from, to], ordered by event time.
	EventsForEmployee(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]*ClockEvent, error)

	// MarkProcessed records a successful ingestion: processed flag,
	// timestamp, attendance link, and batch id.
	MarkProcessed(ctx context.Context, eventID EventID, attendanceID PunchID, batchID string, at time.Time) error

	// MarkError records a processing failure, leaving the event
	// unprocessed and ineligible until the error is cleared.
	MarkError(ctx context.Context, eventID EventID, message, batchID string) error

	// ClearErrors wipes processing_error and batch_id from all errored
	// events, returning how many were cleared.
	ClearErrors(ctx context.Context) (int, error)

	// HasDuplicateWithin reports whether the device already reported an
	// event for the employee inside the suppression window.
	HasDuplicateWithin(ctx context.Context, employeeID EmployeeID, deviceID string, at time.Time, window time.Duration) (bool, error)

	// Stats summarizes the event table.
	Stats(ctx context.Context) (EventStats, error)
}

// =============================================================================
// INGEST STORE - Transactional composition
// =============================================================================

// IngestStore is the full surface the ingestion service needs. WithTx
// executes fn against a store view whose writes commit or roll back as
// one unit; it is the group-atomicity boundary.
type IngestStore interface {
	PunchStore
	EventStore

	WithTx(ctx context.Context, fn func(IngestStore) error) error
}
