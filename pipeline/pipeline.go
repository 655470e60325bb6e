/*
Package pipeline orchestrates the full classification flow.

PURPOSE:

	Ties the stages together for a date range: find employees with
	unresolved punches, resolve each employee's schedule once, split the
	punches into shift-day groups, run whichever engines are enabled, and
	finalize the outcomes (consensus when both engines run, direct
	finalization when only one does).

CONCURRENCY:

	Employee-days are independent; the runner fans them out across a
	bounded worker pool. Schedule lookups are memoized per run, punch
	writes go through the store, and each worker touches only its own
	group's punches.

FAILURE ISOLATION:

	An employee-day that fails (schedule resolution error, store write
	error) is logged and counted; the run continues with the remaining
	groups and always returns aggregate stats.
*/
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/consensus"
	"github.com/meridian/attendance-engine/heuristic"
	"github.com/meridian/attendance-engine/predictor"
)

// defaultWorkers bounds employee-day parallelism.
const defaultWorkers = 4

// Stats aggregates one ProcessRange run.
type Stats struct {
	EmployeeDays  int `json:"employee_days"`
	Punches       int `json:"punches"`
	Classified    int `json:"classified"`
	Discrepancies int `json:"discrepancies"`
	NeedsReview   int `json:"needs_review"`
	Failures      int `json:"failures"`
}

// Runner drives classification over unresolved punches.
type Runner struct {
	Punches   attendance.PunchStore
	Schedules attendance.ScheduleProvider
	Heuristic *heuristic.Engine
	Predictor *predictor.Engine
	Config    attendance.Config

	// Workers overrides the worker pool size; zero means the default.
	Workers int
}

func NewRunner(punches attendance.PunchStore, schedules attendance.ScheduleProvider, pred *predictor.Engine, cfg attendance.Config) *Runner {
	return &Runner{
		Punches:   punches,
		Schedules: schedules,
		Heuristic: heuristic.New(),
		Predictor: pred,
		Config:    cfg,
	}
}

// dayGroup is one employee's punches on one shift-day.
type dayGroup struct {
	employeeID attendance.EmployeeID
	punches    []*attendance.Punch
}

// ProcessRange classifies every unresolved punch with ShiftDate in
// [from, to]. The predictor is retrained once at the start of the run
// when enabled; a training failure degrades the run to heuristic-only
// rather than aborting it.
func (r *Runner) ProcessRange(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats

	if r.Config.PredictorEnabled && r.Predictor != nil {
		if err := r.Predictor.Train(ctx); err != nil {
			log.Printf("[Pipeline] Predictor training failed, continuing without it: %v", err)
		}
	}

	unresolved, err := r.Punches.UnresolvedPunches(ctx, from, to)
	if err != nil {
		return stats, err
	}
	if len(unresolved) == 0 {
		log.Printf("[Pipeline] No unresolved punches in range")
		return stats, nil
	}

	groups := groupByEmployeeDay(unresolved)
	stats.EmployeeDays = len(groups)

	// Memoize schedule lookups for the run so each employee resolves
	// exactly once regardless of day count.
	schedules := attendance.NewCachingScheduleProvider(r.Schedules)

	workers := r.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	jobs := make(chan dayGroup)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range jobs {
				dayStats := r.processDay(ctx, group, schedules)
				mu.Lock()
				stats.Punches += dayStats.Punches
				stats.Classified += dayStats.Classified
				stats.Discrepancies += dayStats.Discrepancies
				stats.NeedsReview += dayStats.NeedsReview
				stats.Failures += dayStats.Failures
				mu.Unlock()
			}
		}()
	}

	for _, group := range groups {
		jobs <- group
	}
	close(jobs)
	wg.Wait()

	log.Printf("[Pipeline] Processed %d employee-days: classified=%d discrepancies=%d review=%d failures=%d",
		stats.EmployeeDays, stats.Classified, stats.Discrepancies, stats.NeedsReview, stats.Failures)
	return stats, nil
}

// ProcessEmployee classifies one employee's unresolved punches in the
// range, through the same per-day path as a full run.
func (r *Runner) ProcessEmployee(ctx context.Context, employeeID attendance.EmployeeID, from, to time.Time) (Stats, error) {
	var stats Stats

	if r.Config.PredictorEnabled && r.Predictor != nil {
		if err := r.Predictor.Train(ctx); err != nil {
			log.Printf("[Pipeline] Predictor training failed, continuing without it: %v", err)
		}
	}

	punches, err := r.Punches.PunchesForEmployee(ctx, employeeID, from, to)
	if err != nil {
		return stats, err
	}

	unresolved := punches[:0]
	for _, p := range punches {
		if p.Status == attendance.StatusIncomplete || p.Status == attendance.StatusNeedsReview {
			unresolved = append(unresolved, p)
		}
	}
	if len(unresolved) == 0 {
		return stats, nil
	}

	schedules := attendance.NewCachingScheduleProvider(r.Schedules)
	for _, group := range groupByEmployeeDay(unresolved) {
		dayStats := r.processDay(ctx, group, schedules)
		stats.EmployeeDays++
		stats.Punches += dayStats.Punches
		stats.Classified += dayStats.Classified
		stats.Discrepancies += dayStats.Discrepancies
		stats.NeedsReview += dayStats.NeedsReview
		stats.Failures += dayStats.Failures
	}
	return stats, nil
}

// processDay classifies one employee-day group end to end.
func (r *Runner) processDay(ctx context.Context, group dayGroup, schedules attendance.ScheduleProvider) Stats {
	stats := Stats{Punches: len(group.punches)}

	schedule, err := schedules.ScheduleFor(ctx, group.employeeID)
	if err != nil {
		log.Printf("[Pipeline] Schedule lookup failed for employee %s: %v", group.employeeID, err)
		stats.Failures += len(group.punches)
		return stats
	}

	punches := make([]*attendance.Punch, len(group.punches))
	copy(punches, group.punches)
	attendance.SortPunches(punches)

	// Odd days of 7 or more punches: isolate the punch whose removal
	// leaves the tightest pairing, flag it, classify the even remainder.
	if len(punches) >= 7 && len(punches)%2 == 1 {
		unpaired := heuristic.FindUnpairedPunch(punches)
		if unpaired != nil {
			if err := r.finalizeReview(ctx, unpaired, "unpaired punch isolated from odd-count shift-day"); err != nil {
				stats.Failures++
			} else {
				stats.NeedsReview++
			}
			remaining := make([]*attendance.Punch, 0, len(punches)-1)
			for _, p := range punches {
				if p != unpaired {
					remaining = append(remaining, p)
				}
			}
			punches = remaining
		}
	}
	if len(punches) == 0 {
		return stats
	}

	flex := r.Config.Flexibility()

	var heuristicVerdicts, predictorVerdicts []attendance.Verdict
	if r.Config.HeuristicEnabled {
		heuristicVerdicts = r.Heuristic.Classify(punches, schedule, flex)
	}
	if r.Config.PredictorEnabled && r.Predictor != nil {
		predictorVerdicts = r.Predictor.Classify(punches, schedule, flex)
	}

	switch {
	case r.Config.HeuristicEnabled && r.Config.PredictorEnabled:
		r.applyConsensus(ctx, punches, heuristicVerdicts, predictorVerdicts, &stats)
	case r.Config.HeuristicEnabled:
		r.applySingleEngine(ctx, punches, heuristicVerdicts, &stats)
	case r.Config.PredictorEnabled:
		r.applySingleEngine(ctx, punches, predictorVerdicts, &stats)
	default:
		log.Printf("[Pipeline] Both engines disabled, skipping employee %s", group.employeeID)
	}

	return stats
}

// applyConsensus runs the two-engine arbitration path. Review flags
// from the rule engine (missing schedule, unclassifiable day shapes)
// are mandatory outcomes, not verdicts to arbitrate: those punches
// finalize as NeedsReview directly and consensus only sees punches the
// rule engine actually classified.
func (r *Runner) applyConsensus(ctx context.Context, punches []*attendance.Punch, hv, pv []attendance.Verdict, stats *Stats) {
	heuristicByID := verdictMap(hv)

	arbitrate := make([]*attendance.Punch, 0, len(punches))
	for _, punch := range punches {
		if v, ok := heuristicByID[punch.ID]; ok && v.NeedsReview {
			if err := r.finalizeReview(ctx, punch, v.Note); err != nil {
				stats.Failures++
			} else {
				stats.NeedsReview++
			}
			continue
		}
		arbitrate = append(arbitrate, punch)
	}
	if len(arbitrate) == 0 {
		return
	}

	engine := consensus.New(r.Punches, r.Config)

	results, err := engine.ProcessConsensus(ctx, arbitrate, heuristicByID, verdictMap(pv))
	if err != nil {
		log.Printf("[Pipeline] Consensus persistence failed: %v", err)
		stats.Failures += len(arbitrate) - len(results)
	}
	for _, result := range results {
		if result.HasDisagreement {
			stats.Discrepancies++
		} else {
			stats.Classified++
		}
	}
}

// applySingleEngine finalizes one engine's verdicts directly: its
// classifications become Complete, its review flags NeedsReview, and
// punches it produced no verdict for are flagged for review too.
func (r *Runner) applySingleEngine(ctx context.Context, punches []*attendance.Punch, verdicts []attendance.Verdict, stats *Stats) {
	byID := verdictMap(verdicts)

	for _, punch := range punches {
		v, ok := byID[punch.ID]
		if !ok || v.NeedsReview {
			note := v.Note
			if note == "" {
				note = "engine produced no classification"
			}
			if err := r.finalizeReview(ctx, punch, note); err != nil {
				stats.Failures++
			} else {
				stats.NeedsReview++
			}
			continue
		}

		punch.Type = v.Type
		punch.State = v.State
		punch.Status = attendance.StatusComplete
		punch.IssueNotes = ""
		if err := r.Punches.UpdatePunch(ctx, punch); err != nil {
			log.Printf("[Pipeline] Failed to persist punch %s: %v", punch.ID, err)
			stats.Failures++
			continue
		}
		stats.Classified++
	}
}

func (r *Runner) finalizeReview(ctx context.Context, punch *attendance.Punch, note string) error {
	punch.Type = attendance.Unclassified
	punch.State = attendance.StateUnknown
	punch.Status = attendance.StatusNeedsReview
	punch.IssueNotes = note
	if err := r.Punches.UpdatePunch(ctx, punch); err != nil {
		log.Printf("[Pipeline] Failed to flag punch %s for review: %v", punch.ID, err)
		return err
	}
	return nil
}

func verdictMap(verdicts []attendance.Verdict) map[attendance.PunchID]attendance.Verdict {
	m := make(map[attendance.PunchID]attendance.Verdict, len(verdicts))
	for _, v := range verdicts {
		m[v.PunchID] = v
	}
	return m
}

// groupByEmployeeDay splits punches into employee-day groups, preserving
// the store's employee-then-time ordering for a deterministic group
// sequence.
func groupByEmployeeDay(punches []*attendance.Punch) []dayGroup {
	type key struct {
		employee attendance.EmployeeID
		day      string
	}

	index := make(map[key]int)
	var groups []dayGroup

	for _, p := range punches {
		k := key{employee: p.EmployeeID, day: p.ShiftDate.Format("2006-01-02")}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, dayGroup{employeeID: p.EmployeeID})
		}
		groups[i].punches = append(groups[i].punches, p)
	}
	return groups
}
