package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/ingest"
	"github.com/meridian/attendance-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	dayEnd  = testDay.Add(24*time.Hour - time.Second)
)

func eventAt(id string, employee attendance.EmployeeID, hour, minute int) *attendance.ClockEvent {
	return &attendance.ClockEvent{
		ID:         attendance.EventID(id),
		EmployeeID: employee,
		DeviceID:   "device-1",
		EventTime:  testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		ShiftDate:  testDay,
	}
}

func seedEvents(t *testing.T, store *memory.Store, events ...*attendance.ClockEvent) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, store.CreateEvent(context.Background(), e))
	}
}

// failingStore wraps the memory store and fails punch creation inside a
// transaction for one employee, simulating a per-group storage fault.
type failingStore struct {
	*memory.Store
	failEmployee attendance.EmployeeID
}

func (s *failingStore) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	return s.Store.WithTx(ctx, func(tx attendance.IngestStore) error {
		return fn(&failingTx{IngestStore: tx, failEmployee: s.failEmployee})
	})
}

type failingTx struct {
	attendance.IngestStore
	failEmployee attendance.EmployeeID
}

func (t *failingTx) CreatePunches(ctx context.Context, punches []*attendance.Punch) error {
	for _, p := range punches {
		if p.EmployeeID == t.failEmployee {
			return errors.New("simulated storage failure")
		}
	}
	return t.IngestStore.CreatePunches(ctx, punches)
}

// =============================================================================
// PROCESSING
// =============================================================================

func TestProcessUnprocessedEvents_CreatesDraftPunches(t *testing.T) {
	// GIVEN: Two ready events for one employee-day
	store := memory.New()
	seedEvents(t, store,
		eventAt("ev-1", "emp-1", 8, 0),
		eventAt("ev-2", "emp-1", 17, 0))

	svc := ingest.New(store)

	// WHEN: The batch processor runs
	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)

	// THEN: Both events became draft punches and were marked processed
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.Errors)
	assert.NotEmpty(t, stats.BatchID)

	punches, err := store.PunchesForEmployee(context.Background(), "emp-1", testDay, dayEnd)
	require.NoError(t, err)
	require.Len(t, punches, 2)
	for _, p := range punches {
		assert.Equal(t, attendance.Unclassified, p.Type)
		assert.Equal(t, attendance.StateUnknown, p.State)
		assert.Equal(t, attendance.StatusIncomplete, p.Status)
		assert.Equal(t, "device", p.Source)
		assert.Contains(t, p.IssueNotes, "Auto-generated from ClockEvent ID: ev-")
	}

	events, err := store.EventsForEmployee(context.Background(), "emp-1", testDay, testDay)
	require.NoError(t, err)
	for _, e := range events {
		assert.True(t, e.Processed)
		assert.Equal(t, stats.BatchID, e.BatchID)
		assert.NotEmpty(t, e.AttendanceID)
	}
}

func TestProcessUnprocessedEvents_Idempotent(t *testing.T) {
	// Processed events are never re-selected: a second run is a no-op.

	store := memory.New()
	seedEvents(t, store, eventAt("ev-1", "emp-1", 8, 0))
	svc := ingest.New(store)

	first, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)

	punches, err := store.PunchesForEmployee(context.Background(), "emp-1", testDay, dayEnd)
	require.NoError(t, err)
	assert.Len(t, punches, 1)
}

func TestProcessUnprocessedEvents_GroupFailureIsolated(t *testing.T) {
	// GIVEN: Two employee-days where one group's storage write fails
	mem := memory.New()
	seedEvents(t, mem,
		eventAt("ev-1", "emp-good", 8, 0),
		eventAt("ev-2", "emp-good", 17, 0),
		eventAt("ev-3", "emp-bad", 9, 0),
		eventAt("ev-4", "emp-bad", 18, 0))

	svc := ingest.New(&failingStore{Store: mem, failEmployee: "emp-bad"})

	// WHEN: The batch processor runs
	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)

	// THEN: The healthy group was ingested, the failed one recorded
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Errors)

	good, err := mem.PunchesForEmployee(context.Background(), "emp-good", testDay, dayEnd)
	require.NoError(t, err)
	assert.Len(t, good, 2)

	bad, err := mem.PunchesForEmployee(context.Background(), "emp-bad", testDay, dayEnd)
	require.NoError(t, err)
	assert.Empty(t, bad)

	badEvents, err := mem.EventsForEmployee(context.Background(), "emp-bad", testDay, testDay)
	require.NoError(t, err)
	for _, e := range badEvents {
		assert.False(t, e.Processed)
		assert.Equal(t, "simulated storage failure", e.ProcessingError)
		assert.Equal(t, stats.BatchID, e.BatchID)
	}
}

func TestProcessUnprocessedEvents_ErroredEventsNotReselected(t *testing.T) {
	mem := memory.New()
	seedEvents(t, mem, eventAt("ev-1", "emp-bad", 8, 0))
	svc := ingest.New(&failingStore{Store: mem, failEmployee: "emp-bad"})

	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)

	// The error blocks re-selection until an explicit retry clears it.
	again, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 0, again.Errors)
}

func TestProcessUnprocessedEvents_UnattributedEventMarkedErrored(t *testing.T) {
	// A scan whose credential resolved to no employee cannot become a
	// punch; it is marked errored instead of being silently skipped.

	store := memory.New()
	seedEvents(t, store,
		eventAt("ev-1", "", 8, 0),
		eventAt("ev-2", "emp-1", 9, 0))

	svc := ingest.New(store)
	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Errors)

	orphanStats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, orphanStats.WithErrors)
}

func TestProcessUnprocessedEvents_LongErrorTruncated(t *testing.T) {
	mem := memory.New()
	seedEvents(t, mem, eventAt("ev-1", "emp-bad", 8, 0))

	long := strings.Repeat("x", 600)
	svc := ingest.New(&verboseFailStore{Store: mem, message: long})

	_, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)

	events, err := mem.EventsForEmployee(context.Background(), "emp-bad", testDay, testDay)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, events[0].ProcessingError, 500)
}

// verboseFailStore fails every transaction with a fixed long message.
type verboseFailStore struct {
	*memory.Store
	message string
}

func (s *verboseFailStore) WithTx(ctx context.Context, fn func(attendance.IngestStore) error) error {
	return errors.New(s.message)
}

// =============================================================================
// TARGETED AND RETRY PATHS
// =============================================================================

func TestProcessEmployeeEvents_SkipsUnready(t *testing.T) {
	store := memory.New()
	processed := eventAt("ev-2", "emp-1", 12, 0)
	processed.Processed = true
	errored := eventAt("ev-3", "emp-1", 13, 0)
	errored.ProcessingError = "boom"
	seedEvents(t, store, eventAt("ev-1", "emp-1", 8, 0), processed, errored)

	svc := ingest.New(store)
	stats, err := svc.ProcessEmployeeEvents(context.Background(), "emp-1", testDay, testDay)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 2, stats.Skipped)
}

func TestRetryFailedEvents_ClearsErrorsAndReports(t *testing.T) {
	store := memory.New()
	errored := eventAt("ev-1", "emp-1", 8, 0)
	errored.ProcessingError = "boom"
	errored.BatchID = "old-batch"
	seedEvents(t, store, errored, eventAt("ev-2", "emp-1", 17, 0))

	svc := ingest.New(store)
	retry, err := svc.RetryFailedEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, retry.ClearedErrors)
	assert.Equal(t, 2, retry.ReadyForRetry)

	// The next run now picks both events up.
	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
}

func TestProcessingStats(t *testing.T) {
	store := memory.New()
	processed := eventAt("ev-2", "emp-1", 12, 0)
	processed.Processed = true
	errored := eventAt("ev-3", "emp-1", 13, 0)
	errored.ProcessingError = "boom"
	seedEvents(t, store, eventAt("ev-1", "emp-1", 8, 0), processed, errored)

	svc := ingest.New(store)
	st, err := svc.ProcessingStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 2, st.Unprocessed)
	assert.Equal(t, 1, st.WithErrors)
	assert.Equal(t, 1, st.Ready)
}

func TestGroupingOrder_TwoEmployeesSameDay(t *testing.T) {
	// Interleaved events split cleanly into per-employee groups; punch
	// counts per employee confirm the grouping.

	store := memory.New()
	var events []*attendance.ClockEvent
	for i := 0; i < 3; i++ {
		events = append(events,
			eventAt(fmt.Sprintf("a-%d", i), "emp-a", 8+i*4, 0),
			eventAt(fmt.Sprintf("b-%d", i), "emp-b", 8+i*4, 30))
	}
	seedEvents(t, store, events...)

	svc := ingest.New(store)
	stats, err := svc.ProcessUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Processed)

	for _, emp := range []attendance.EmployeeID{"emp-a", "emp-b"} {
		punches, err := store.PunchesForEmployee(context.Background(), emp, testDay, dayEnd)
		require.NoError(t, err)
		assert.Len(t, punches, 3)
	}
}
