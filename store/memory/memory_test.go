package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/store/memory"
)

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func draftPunch(id string, hour int) *attendance.Punch {
	return &attendance.Punch{
		ID:         attendance.PunchID(id),
		EmployeeID: "emp-1",
		PunchTime:  testDay.Add(time.Duration(hour) * time.Hour),
		ShiftDate:  testDay,
		Type:       attendance.Unclassified,
		State:      attendance.StateUnknown,
		Status:     attendance.StatusIncomplete,
	}
}

func TestWithTx_ErrorRollsBackPunchesAndEvents(t *testing.T) {
	// GIVEN: A store with one event
	store := memory.New()
	ctx := context.Background()
	event := &attendance.ClockEvent{
		ID: "ev-1", EmployeeID: "emp-1", DeviceID: "device-1",
		EventTime: testDay.Add(8 * time.Hour), ShiftDate: testDay,
	}
	require.NoError(t, store.CreateEvent(ctx, event))

	// WHEN: A transaction creates a punch, marks the event, then fails
	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx attendance.IngestStore) error {
		if err := tx.CreatePunches(ctx, []*attendance.Punch{draftPunch("p-1", 8)}); err != nil {
			return err
		}
		if err := tx.MarkProcessed(ctx, "ev-1", "p-1", "batch-1", time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: Neither write survives
	_, err = store.GetPunch(ctx, "p-1")
	assert.ErrorIs(t, err, attendance.ErrPunchNotFound)

	events, err := store.EventsForEmployee(ctx, "emp-1", testDay, testDay)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Processed)
	assert.Empty(t, events[0].BatchID)
}

func TestWithTx_SuccessKeepsWrites(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx attendance.IngestStore) error {
		return tx.CreatePunches(ctx, []*attendance.Punch{draftPunch("p-1", 8)})
	})
	require.NoError(t, err)

	punch, err := store.GetPunch(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIncomplete, punch.Status)
}

func TestWithTx_RollbackRestoresIDSequence(t *testing.T) {
	// Generated ids must not skip after a rolled-back transaction.
	store := memory.New()
	ctx := context.Background()

	_ = store.WithTx(ctx, func(tx attendance.IngestStore) error {
		if err := tx.CreatePunches(ctx, []*attendance.Punch{draftPunch("", 8)}); err != nil {
			return err
		}
		return errors.New("boom")
	})

	generated := draftPunch("", 9)
	require.NoError(t, store.CreatePunches(ctx, []*attendance.Punch{generated}))
	assert.Equal(t, attendance.PunchID("punch-1"), generated.ID)
}

func TestGetPunch_ReturnsCopy(t *testing.T) {
	// Mutating a returned punch must not leak back into the store.
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreatePunches(ctx, []*attendance.Punch{draftPunch("p-1", 8)}))

	first, err := store.GetPunch(ctx, "p-1")
	require.NoError(t, err)
	first.Status = attendance.StatusComplete

	second, err := store.GetPunch(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIncomplete, second.Status)
}

func TestScheduleFor_EmployeeThenDepartment(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	own := &attendance.ShiftSchedule{StartTime: attendance.NewClockTime(7, 0)}
	dept := &attendance.ShiftSchedule{StartTime: attendance.NewClockTime(9, 0)}
	store.SetSchedule("emp-own", own)
	store.SetDepartment("emp-dept", "dept-1")
	store.SetDepartmentSchedule("dept-1", dept)

	got, err := store.ScheduleFor(ctx, "emp-own")
	require.NoError(t, err)
	assert.Equal(t, own, got)

	got, err = store.ScheduleFor(ctx, "emp-dept")
	require.NoError(t, err)
	assert.Equal(t, dept, got)

	got, err = store.ScheduleFor(ctx, "emp-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScheduleFor_ReturnsCopy(t *testing.T) {
	// Mutating a resolved schedule must not corrupt the registered one.
	store := memory.New()
	ctx := context.Background()

	store.SetSchedule("emp-1", &attendance.ShiftSchedule{
		StartTime: attendance.NewClockTime(8, 0),
	})

	first, err := store.ScheduleFor(ctx, "emp-1")
	require.NoError(t, err)
	first.StartTime = attendance.NewClockTime(6, 0)

	second, err := store.ScheduleFor(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.NewClockTime(8, 0), second.StartTime)
}
