package summary_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/store/memory"
	"github.com/meridian/attendance-engine/summary"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func classifiedPunch(id string, day time.Time, hour, minute int, typ attendance.PunchType) *attendance.Punch {
	return &attendance.Punch{
		ID:         attendance.PunchID(id),
		EmployeeID: "emp-1",
		PunchTime:  day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		ShiftDate:  day,
		Type:       typ,
		State:      attendance.StateFor(typ),
		Status:     attendance.StatusComplete,
	}
}

// fullDay is a complete lunch-and-break workday: 8h45m on the clock,
// 30m lunch, 15m break, 8h worked.
func fullDay(day time.Time) []*attendance.Punch {
	return []*attendance.Punch{
		classifiedPunch("p-1", day, 8, 0, attendance.ClockIn),
		classifiedPunch("p-2", day, 10, 0, attendance.BreakStart),
		classifiedPunch("p-3", day, 10, 15, attendance.BreakEnd),
		classifiedPunch("p-4", day, 12, 0, attendance.LunchStart),
		classifiedPunch("p-5", day, 12, 30, attendance.LunchStop),
		classifiedPunch("p-6", day, 16, 45, attendance.ClockOut),
	}
}

func assertHours(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"want %s hours, got %s", want, got)
}

// =============================================================================
// DAY SUMMARIES
// =============================================================================

func TestSummarizeDay_FullDay(t *testing.T) {
	day := summary.SummarizeDay(fullDay(testDay))

	assert.True(t, day.Complete)
	assert.False(t, day.ReviewNeeded)
	assert.Equal(t, 6, day.PunchCount)
	assert.Equal(t, "2025-03-10", day.ShiftDate)
	assertHours(t, "8", day.WorkedHours)
	assertHours(t, "0.5", day.LunchHours)
	assertHours(t, "0.25", day.BreakHours)
}

func TestSummarizeDay_SimpleInOut(t *testing.T) {
	day := summary.SummarizeDay([]*attendance.Punch{
		classifiedPunch("p-1", testDay, 9, 0, attendance.ClockIn),
		classifiedPunch("p-2", testDay, 17, 20, attendance.ClockOut),
	})

	assert.True(t, day.Complete)
	assertHours(t, "8.33", day.WorkedHours)
	assertHours(t, "0", day.LunchHours)
}

func TestSummarizeDay_IncompleteStatus_ZeroHours(t *testing.T) {
	punches := fullDay(testDay)
	punches[3].Status = attendance.StatusIncomplete

	day := summary.SummarizeDay(punches)

	assert.False(t, day.Complete)
	assert.False(t, day.ReviewNeeded)
	assertHours(t, "0", day.WorkedHours)
}

func TestSummarizeDay_ReviewStatus_Flagged(t *testing.T) {
	for _, status := range []attendance.Status{
		attendance.StatusNeedsReview, attendance.StatusDiscrepancy} {
		punches := fullDay(testDay)
		punches[0].Status = status

		day := summary.SummarizeDay(punches)

		assert.False(t, day.Complete)
		assert.True(t, day.ReviewNeeded, "status %s", status)
		assertHours(t, "0", day.WorkedHours)
	}
}

func TestSummarizeDay_UnmatchedPair_Flagged(t *testing.T) {
	// A lunch start with no stop cannot produce a trustworthy total.
	day := summary.SummarizeDay([]*attendance.Punch{
		classifiedPunch("p-1", testDay, 8, 0, attendance.ClockIn),
		classifiedPunch("p-2", testDay, 12, 0, attendance.LunchStart),
		classifiedPunch("p-3", testDay, 17, 0, attendance.ClockOut),
	})

	assert.False(t, day.Complete)
	assert.True(t, day.ReviewNeeded)
	assertHours(t, "0", day.WorkedHours)
}

func TestSummarizeDay_MissingClockIn_Flagged(t *testing.T) {
	day := summary.SummarizeDay([]*attendance.Punch{
		classifiedPunch("p-1", testDay, 17, 0, attendance.ClockOut),
	})

	assert.False(t, day.Complete)
	assert.True(t, day.ReviewNeeded)
}

func TestSummarizeDay_Empty(t *testing.T) {
	day := summary.SummarizeDay(nil)
	assert.False(t, day.Complete)
	assert.Equal(t, 0, day.PunchCount)
	assertHours(t, "0", day.WorkedHours)
}

// =============================================================================
// RANGE SUMMARIES
// =============================================================================

func TestForEmployee_AccumulatesAcrossDays(t *testing.T) {
	// GIVEN: Three stored full days and one incomplete day
	store := memory.New()
	ctx := context.Background()
	for d := 0; d < 3; d++ {
		day := testDay.AddDate(0, 0, d)
		punches := fullDay(day)
		for i, p := range punches {
			p.ID = attendance.PunchID(fmt.Sprintf("d%d-p-%d", d, i))
		}
		require.NoError(t, store.CreatePunches(ctx, punches))
	}
	incomplete := classifiedPunch("lone", testDay.AddDate(0, 0, 3), 8, 0, attendance.Unclassified)
	incomplete.Status = attendance.StatusIncomplete
	require.NoError(t, store.CreatePunches(ctx, []*attendance.Punch{incomplete}))

	svc := summary.New(store)

	// WHEN: The range covering all four days is summarized
	result, err := svc.ForEmployee(ctx, "emp-1", testDay, testDay.AddDate(0, 0, 4))
	require.NoError(t, err)

	// THEN: Totals cover the complete days only
	require.Len(t, result.Days, 4)
	assertHours(t, "24", result.TotalWorked)
	assertHours(t, "1.5", result.TotalLunch)
	assertHours(t, "0.75", result.TotalBreaks)
	assert.Equal(t, "2025-03-10", result.From)

	last := result.Days[3]
	assert.False(t, last.Complete)
	assertHours(t, "0", last.WorkedHours)
}

func TestForEmployee_NoPunches(t *testing.T) {
	svc := summary.New(memory.New())
	result, err := svc.ForEmployee(context.Background(), "emp-1", testDay, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Empty(t, result.Days)
	assertHours(t, "0", result.TotalWorked)
}
