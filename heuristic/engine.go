/*
Package heuristic implements the rule-based punch classification engine.

PURPOSE:

	Given all punches for one employee on one shift-day plus the resolved
	shift schedule, assign each punch a semantic type from the shape of
	the day: fixed fast paths for small punch counts, and a scored
	lunch-pair search with alternating break pairing for larger days.

CONTRACT:
  - Input punches are sorted internally; classification of any
    permutation of the same punch set is identical.
  - Never fails for any punch count >= 0. A missing schedule produces
    review verdicts, not an error.
  - Every emitted (type, state) pair satisfies the state-type mapping.

DAY SHAPES:

	0 punches:  nothing to do.
	1 punch:    review (no direction can be inferred from one timestamp).
	2 punches:  Clock In, Clock Out.
	3, 5:       flagged for mandatory review. The historical fast paths
	            for these counts produced unpaired break/lunch punches;
	            they are rejected rather than reproduced.
	4 punches:  Clock In, Lunch Start, Lunch Stop, Clock Out.
	>= 6:       first Clock In, last Clock Out; the best-scoring interior
	            pair becomes the lunch; remaining interiors alternate
	            Break Start / Break End in chronological order.

SEE ALSO:
  - lunch.go: the lunch-pair scoring function
  - attendance/types.go: Verdict and the state-type mapping
*/
package heuristic

import (
	"fmt"

	"github.com/meridian/attendance-engine/attendance"
)

// Engine is stateless; the schedule and flexibility window travel with
// each call so one engine serves concurrent employee-day groups.
type Engine struct{}

func New() *Engine {
	return &Engine{}
}

// Classify produces one verdict per punch for a single employee-day.
// The returned slice is ordered by punch time, matching the sorted
// input order.
func (e *Engine) Classify(punches []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) []attendance.Verdict {
	if len(punches) == 0 {
		return nil
	}

	sorted := make([]*attendance.Punch, len(punches))
	copy(sorted, punches)
	attendance.SortPunches(sorted)

	if schedule == nil {
		return reviewAll(sorted, "no shift schedule found for employee")
	}

	switch len(sorted) {
	case 1:
		return reviewAll(sorted, "single punch on shift-day, direction cannot be inferred")
	case 2:
		return []attendance.Verdict{
			verdict(sorted[0], attendance.ClockIn),
			verdict(sorted[1], attendance.ClockOut),
		}
	case 3, 5:
		note := fmt.Sprintf("%d punches on shift-day, odd day shape requires manual review", len(sorted))
		return reviewAll(sorted, note)
	case 4:
		return []attendance.Verdict{
			verdict(sorted[0], attendance.ClockIn),
			verdict(sorted[1], attendance.LunchStart),
			verdict(sorted[2], attendance.LunchStop),
			verdict(sorted[3], attendance.ClockOut),
		}
	default:
		return e.classifyLargeDay(sorted, schedule, flexibilityMinutes)
	}
}

// classifyLargeDay handles >= 6 punches: fixed endpoints, best lunch
// pair among the interior punches, alternating breaks for the rest.
func (e *Engine) classifyLargeDay(sorted []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) []attendance.Verdict {
	n := len(sorted)
	types := make([]attendance.PunchType, n)
	types[0] = attendance.ClockIn
	types[n-1] = attendance.ClockOut

	interior := sorted[1 : n-1]
	pair := FindBestLunchPair(interior, schedule, flexibilityMinutes)

	// Interior indexes not claimed by the lunch pair, in chronological
	// order, alternate Break Start / Break End.
	breakToggle := 0
	for i, p := range interior {
		idx := i + 1
		if pair != nil && (p == pair.Start || p == pair.Stop) {
			if p == pair.Start {
				types[idx] = attendance.LunchStart
			} else {
				types[idx] = attendance.LunchStop
			}
			continue
		}
		if breakToggle%2 == 0 {
			types[idx] = attendance.BreakStart
		} else {
			types[idx] = attendance.BreakEnd
		}
		breakToggle++
	}

	verdicts := make([]attendance.Verdict, n)
	for i, p := range sorted {
		verdicts[i] = verdict(p, types[i])
	}
	return verdicts
}

// FindUnpairedPunch picks, from an odd-count sorted day, the punch whose
// removal leaves the tightest consecutive pairing: for each candidate,
// sum the gaps between neighbors of the remaining punches and keep the
// candidate with the smallest sum. The pipeline isolates that punch for
// review so the rest of the day classifies as an even shape.
func FindUnpairedPunch(sorted []*attendance.Punch) *attendance.Punch {
	if len(sorted)%2 == 0 || len(sorted) == 0 {
		return nil
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	var best *attendance.Punch
	bestGapSum := int64(-1)

	for i := range sorted {
		var gapSum int64
		var prev *attendance.Punch
		for j, p := range sorted {
			if j == i {
				continue
			}
			if prev != nil {
				gap := p.PunchTime.Sub(prev.PunchTime)
				if gap < 0 {
					gap = -gap
				}
				gapSum += int64(gap)
			}
			prev = p
		}
		if bestGapSum < 0 || gapSum < bestGapSum {
			bestGapSum = gapSum
			best = sorted[i]
		}
	}
	return best
}

func verdict(p *attendance.Punch, t attendance.PunchType) attendance.Verdict {
	return attendance.Verdict{
		PunchID: p.ID,
		Type:    t,
		State:   attendance.StateFor(t),
		Source:  attendance.SourceHeuristic,
	}
}

func reviewAll(punches []*attendance.Punch, note string) []attendance.Verdict {
	verdicts := make([]attendance.Verdict, len(punches))
	for i, p := range punches {
		verdicts[i] = attendance.Verdict{
			PunchID:     p.ID,
			Type:        attendance.Unclassified,
			State:       attendance.StateUnknown,
			Source:      attendance.SourceHeuristic,
			NeedsReview: true,
			Note:        note,
		}
	}
	return verdicts
}
