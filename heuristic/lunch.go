/*
lunch.go - Best-pair search and scoring for lunch candidates

PURPOSE:

	Among the interior punches of a large day, every unordered pair (i, j)
	with i < j is a candidate (lunch start, lunch stop). Each candidate is
	scored independently against the shift schedule; the single
	highest-scoring pair with a positive score wins. A maximum score of
	zero means the day has no recognizable lunch and all interior punches
	pair off as breaks.

SCORING (additive, components independent):

	+10  start punch within flexibility of the scheduled lunch start
	+10  stop punch within flexibility of the scheduled lunch stop
	Duration vs expected lunch length (actual elapsed minutes):
	  diff <= 5  -> +15
	  diff <= 15 -> +10
	  diff <= 30 -> +5
	  otherwise, actual within [15, 120] minutes -> +2
	Start hour bonus: hour in [11, 14] -> +5; hour in [10, 15] -> +2
	Minimum viability: score so far < 5 and actual within [10, 180] -> +1

	Each component is monotonic: a pair closer to the scheduled window and
	closer to the expected duration never scores lower than a farther one.

TIE-BREAKING:

	Strict maximum wins. Equal scores resolve to the first pair found in
	iteration order (smallest i, then smallest j).
*/
package heuristic

import (
	"github.com/meridian/attendance-engine/attendance"
)

// LunchPair is a winning (start, stop) candidate with its score.
type LunchPair struct {
	Start *attendance.Punch
	Stop  *attendance.Punch
	Score int
}

// FindBestLunchPair searches all interior pairs and returns the best
// positively scored candidate, or nil when no pair scores above zero.
// The interior slice must be sorted by punch time.
func FindBestLunchPair(interior []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) *LunchPair {
	if schedule == nil || len(interior) < 2 {
		return nil
	}

	var best *LunchPair
	bestScore := -1

	for i := 0; i < len(interior)-1; i++ {
		for j := i + 1; j < len(interior); j++ {
			score := ScoreLunchPair(interior[i], interior[j], schedule, flexibilityMinutes)
			if score > bestScore {
				bestScore = score
				best = &LunchPair{Start: interior[i], Stop: interior[j], Score: score}
			}
		}
	}

	if bestScore > 0 {
		return best
	}
	return nil
}

// ScoreLunchPair rates one candidate (start, stop) pair. Components are
// independent so the score is monotonic in schedule proximity and
// duration accuracy.
func ScoreLunchPair(start, stop *attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) int {
	score := 0

	startClock := attendance.ClockTimeOf(start.PunchTime)
	stopClock := attendance.ClockTimeOf(stop.PunchTime)

	if startClock.WithinFlexibility(schedule.LunchStartTime, flexibilityMinutes) {
		score += 10
	}
	if stopClock.WithinFlexibility(schedule.LunchStopTime, flexibilityMinutes) {
		score += 10
	}

	score += durationScore(start, stop, schedule.ExpectedLunchMinutes())

	switch hour := start.PunchTime.Hour(); {
	case hour >= 11 && hour <= 14:
		score += 5
	case hour >= 10 && hour <= 15:
		score += 2
	}

	// Weak-signal floor: a plausible lunch-length gap beats nothing at
	// all even when the schedule match failed entirely.
	if score < 5 {
		actual := attendance.MinutesBetween(start.PunchTime, stop.PunchTime)
		if actual >= 10 && actual <= 180 {
			score++
		}
	}

	return score
}

func durationScore(start, stop *attendance.Punch, expectedMinutes int) int {
	actual := attendance.MinutesBetween(start.PunchTime, stop.PunchTime)
	diff := actual - expectedMinutes
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= 5:
		return 15
	case diff <= 15:
		return 10
	case diff <= 30:
		return 5
	case actual >= 15 && actual <= 120:
		return 2
	default:
		return 0
	}
}
