/*
Package ingest converts raw clock events into draft attendance punches.

PURPOSE:

	Devices report bare timestamps. This service selects unprocessed
	events in batches, groups them by (employee, shift-day), and creates
	one draft Incomplete punch per event, linking each event to the punch
	it produced and marking it processed.

FAILURE ISOLATION:

	The unit of atomicity is the group, not the batch. Each group's punch
	creation and event markers run in one store transaction; a failure
	marks every event in that group with the error and the batch id and
	leaves them unprocessed (eligible for retry once the error is
	cleared), while the remaining groups proceed untouched.

IDEMPOTENCE:

	An event already marked processed is never re-selected; selection
	takes unprocessed events without a standing error, nothing else.
	Events with no employee attribution are marked errored on sight.
	Retrying is explicit: RetryFailedEvents clears errors and batch ids,
	nothing more. There is no backoff.
*/
package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridian/attendance-engine/attendance"
)

// Stats reports one processing run.
type Stats struct {
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
	BatchID   string `json:"batch_id"`
}

// RetryStats reports a retry sweep.
type RetryStats struct {
	ClearedErrors int `json:"cleared_errors"`
	ReadyForRetry int `json:"ready_for_retry"`
}

// Service ingests clock events into draft punches.
type Service struct {
	Store attendance.IngestStore
}

func New(store attendance.IngestStore) *Service {
	return &Service{Store: store}
}

// groupKey identifies one employee-day of events.
type groupKey struct {
	EmployeeID attendance.EmployeeID
	ShiftDate  string // YYYY-MM-DD
}

// ProcessUnprocessedEvents selects up to batchSize ready events ordered
// by event time, groups them by employee-day, and ingests each group in
// its own transaction. The run always completes; failures are recorded
// on the affected events and counted in the returned stats.
func (s *Service) ProcessUnprocessedEvents(ctx context.Context, batchSize int) (Stats, error) {
	batchID := uuid.NewString()
	stats := Stats{BatchID: batchID}

	log.Printf("[Ingest] Starting batch %s (size %d)", batchID, batchSize)

	events, err := s.Store.ReadyEvents(ctx, batchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to select ready events: %w", err)
	}
	if len(events) == 0 {
		log.Printf("[Ingest] No unprocessed events found")
		return stats, nil
	}

	// Events the device layer could not attribute to an employee are a
	// data problem, not a retry problem: mark them errored so they stop
	// being selected until attribution is fixed and errors are cleared.
	attributed := events[:0]
	for _, e := range events {
		if e.EmployeeID == "" {
			if err := s.Store.MarkError(ctx, e.ID, "no employee assigned", batchID); err != nil {
				log.Printf("[Ingest] Failed to mark event %s errored: %v", e.ID, err)
			}
			stats.Errors++
			continue
		}
		attributed = append(attributed, e)
	}

	for _, group := range groupEvents(attributed) {
		s.processGroup(ctx, group, batchID, &stats)
	}

	log.Printf("[Ingest] Batch %s completed: processed=%d errors=%d skipped=%d",
		batchID, stats.Processed, stats.Errors, stats.Skipped)
	return stats, nil
}

// ProcessEmployeeEvents is the targeted variant: all of one employee's
// ready events with shift dates in [from, to].
func (s *Service) ProcessEmployeeEvents(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) (Stats, error) {
	batchID := uuid.NewString()
	stats := Stats{BatchID: batchID}

	events, err := s.Store.EventsForEmployee(ctx, employeeID, from, to)
	if err != nil {
		return stats, fmt.Errorf("failed to load events for employee %s: %w", employeeID, err)
	}

	ready := events[:0]
	for _, e := range events {
		if e.ReadyForProcessing() {
			ready = append(ready, e)
		} else {
			stats.Skipped++
		}
	}
	if len(ready) == 0 {
		return stats, nil
	}

	for _, group := range groupEvents(ready) {
		s.processGroup(ctx, group, batchID, &stats)
	}
	return stats, nil
}

// RetryFailedEvents clears processing errors and batch ids so the next
// processing run picks the events up again.
func (s *Service) RetryFailedEvents(ctx context.Context) (RetryStats, error) {
	cleared, err := s.Store.ClearErrors(ctx)
	if err != nil {
		return RetryStats{}, fmt.Errorf("failed to clear event errors: %w", err)
	}

	st, err := s.Store.Stats(ctx)
	if err != nil {
		return RetryStats{ClearedErrors: cleared}, err
	}

	log.Printf("[Ingest] Cleared %d errored events, %d ready for retry", cleared, st.Ready)
	return RetryStats{ClearedErrors: cleared, ReadyForRetry: st.Ready}, nil
}

// ProcessingStats summarizes the event table for dashboards.
func (s *Service) ProcessingStats(ctx context.Context) (attendance.EventStats, error) {
	return s.Store.Stats(ctx)
}

// processGroup ingests one employee-day of events atomically. On
// failure every event in the group is marked with the error outside the
// rolled-back transaction.
func (s *Service) processGroup(ctx context.Context, events []*attendance.ClockEvent, batchID string, stats *Stats) {
	err := s.Store.WithTx(ctx, func(tx attendance.IngestStore) error {
		now := time.Now().UTC()

		punches := make([]*attendance.Punch, len(events))
		for i, e := range events {
			punches[i] = &attendance.Punch{
				EmployeeID: e.EmployeeID,
				DeviceID:   e.DeviceID,
				PunchTime:  e.EventTime,
				ShiftDate:  e.ShiftDate,
				Type:       attendance.Unclassified,
				State:      attendance.StateUnknown,
				Status:     attendance.StatusIncomplete,
				IsManual:   false,
				Source:     "device",
				IssueNotes: fmt.Sprintf("Auto-generated from ClockEvent ID: %s", e.ID),
			}
		}

		if err := tx.CreatePunches(ctx, punches); err != nil {
			return err
		}

		for i, e := range events {
			if err := tx.MarkProcessed(ctx, e.ID, punches[i].ID, batchID, now); err != nil {
				return err
			}
		}
		return nil
	})

	if err == nil {
		stats.Processed += len(events)
		return
	}

	groupErr := &attendance.GroupProcessingError{
		EmployeeID: events[0].EmployeeID,
		ShiftDate:  events[0].ShiftDate.Format("2006-01-02"),
		EventCount: len(events),
		Cause:      err,
	}
	log.Printf("[Ingest] %v", groupErr)

	for _, e := range events {
		if markErr := s.Store.MarkError(ctx, e.ID, truncate(err.Error(), 500), batchID); markErr != nil {
			log.Printf("[Ingest] Failed to mark event %s errored: %v", e.ID, markErr)
		}
	}
	stats.Errors += len(events)
}

// groupEvents splits events into (employee, shift-day) groups, each
// group's events ordered by event time, and the groups themselves
// ordered by their earliest event for a stable processing order.
func groupEvents(events []*attendance.ClockEvent) [][]*attendance.ClockEvent {
	byKey := make(map[groupKey][]*attendance.ClockEvent)
	for _, e := range events {
		key := groupKey{EmployeeID: e.EmployeeID, ShiftDate: e.ShiftDate.Format("2006-01-02")}
		byKey[key] = append(byKey[key], e)
	}

	groups := make([][]*attendance.ClockEvent, 0, len(byKey))
	for _, group := range byKey {
		sort.Slice(group, func(i, j int) bool { return group[i].EventTime.Before(group[j].EventTime) })
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0].EventTime.Before(groups[j][0].EventTime) })
	return groups
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
