package heuristic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/heuristic"
)

// =============================================================================
// SCORE COMPONENTS
// =============================================================================

func TestScoreLunchPair_PerfectMatch(t *testing.T) {
	// Exact schedule times, exact duration, midday start:
	// 10 + 10 + 15 + 5 = 40

	score := heuristic.ScoreLunchPair(
		punchAt("start", 12, 0), punchAt("stop", 12, 30),
		standardSchedule(), 30)
	assert.Equal(t, 40, score)
}

func TestScoreLunchPair_ProximityWindowIsInclusive(t *testing.T) {
	// Exactly flex minutes away still counts as a match.

	score := heuristic.ScoreLunchPair(
		punchAt("start", 12, 15), punchAt("stop", 12, 45),
		standardSchedule(), 15)
	// 10 + 10 + 15 (duration 30) + 5 (hour 12)
	assert.Equal(t, 40, score)

	// One minute past the window loses proximity for both edges.
	score = heuristic.ScoreLunchPair(
		punchAt("start", 12, 16), punchAt("stop", 12, 46),
		standardSchedule(), 15)
	// 0 + 0 + 15 + 5
	assert.Equal(t, 20, score)
}

func TestScoreLunchPair_DurationLadder(t *testing.T) {
	// Schedule lunch at 02:00 and punches at 16:00+ so neither
	// proximity nor the start-hour bonus contributes; only the
	// duration ladder (plus the viability floor on weak scores) shows.
	schedule := &attendance.ShiftSchedule{
		StartTime:            attendance.NewClockTime(2, 0),
		EndTime:              attendance.NewClockTime(10, 0),
		LunchStartTime:       attendance.NewClockTime(2, 0),
		LunchStopTime:        attendance.NewClockTime(2, 30),
		LunchDurationMinutes: 30,
	}

	cases := []struct {
		name         string
		stopH, stopM int
		want         int
	}{
		{"diff 0 scores 15", 16, 30, 15},
		{"diff 5 scores 15", 16, 35, 15},
		{"diff 15 scores 10", 16, 45, 10},
		{"diff 30 scores 5", 17, 0, 5},
		{"diff 60 but plausible scores 2 plus floor", 17, 30, 3},
		{"diff beyond plausible scores 0", 20, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := heuristic.ScoreLunchPair(
				punchAt("start", 16, 0), punchAt("stop", tc.stopH, tc.stopM),
				schedule, 15)
			assert.Equal(t, tc.want, score)
		})
	}
}

func TestScoreLunchPair_MinimumViabilityFloor(t *testing.T) {
	// A pair with no schedule match and no duration-ladder score, but a
	// plausible lunch-length gap, still edges out nothing at all.

	schedule := standardSchedule()
	// 06:00 -> 08:45: 165 minutes. diff 135 > 30, actual > 120, so the
	// ladder scores 0; actual is within [10, 180] so the floor adds 1.
	score := heuristic.ScoreLunchPair(
		punchAt("start", 6, 0), punchAt("stop", 8, 45), schedule, 15)
	assert.Equal(t, 1, score)
}

// =============================================================================
// BEST-PAIR SEARCH
// =============================================================================

func TestFindBestLunchPair_ZeroMaxMeansNoLunch(t *testing.T) {
	interior := punches([2]int{4, 0}, [2]int{23, 0})
	assert.Nil(t, heuristic.FindBestLunchPair(interior, standardSchedule(), 30))
}

func TestFindBestLunchPair_FirstFoundWinsTies(t *testing.T) {
	// Two identical candidate windows; the earlier pair (smallest i,
	// then smallest j) must win.

	interior := punches(
		[2]int{12, 0}, [2]int{12, 30},
		[2]int{12, 0}, [2]int{12, 30})

	pair := heuristic.FindBestLunchPair(interior, standardSchedule(), 30)
	require.NotNil(t, pair)
	assert.Equal(t, attendance.PunchID("p-0"), pair.Start.ID)
	assert.Equal(t, attendance.PunchID("p-1"), pair.Stop.ID)
}

func TestFindBestLunchPair_CloserPairNeverLoses(t *testing.T) {
	// Monotonicity: moving a candidate closer to the scheduled window
	// never produces a lower score.

	schedule := standardSchedule()
	far := heuristic.ScoreLunchPair(
		punchAt("a", 13, 0), punchAt("b", 13, 40), schedule, 15)
	near := heuristic.ScoreLunchPair(
		punchAt("a", 12, 5), punchAt("b", 12, 35), schedule, 15)
	assert.GreaterOrEqual(t, near, far)
}
