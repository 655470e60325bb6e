/*
Package predictor implements the statistical punch classification engine.

PURPOSE:

	An independently trained predictor proposing punch types from
	historical punch-time distributions per employee. It shares the
	heuristic engine's verdict-per-punch contract but none of its rules:
	the consensus engine treats it as a black box that either emits a
	confident (type, state) verdict or explicitly no verdict.

TRAINING:

	Train loads the most recent classified Complete punches (bounded to
	MaxTrainingRecords) and fits the k-NN model. Fewer than
	MinTrainingRecords samples means the model is not trustworthy:
	Classify then emits no verdicts at all, which the consensus engine
	surfaces as a missing-engine disagreement. Failing soft here is a
	contract requirement, not an optimization.

CLASSIFICATION:

	Day shapes 2 and 4 are deterministic. Days of 6 or more punches pin
	the endpoints and search the interior for the lunch pair, scored by
	the schedule components plus a prediction bonus when the model itself
	recognizes the candidate punches as lunch edges. Without a schedule
	the engine falls back to raw per-punch predictions.
*/
package predictor

import (
	"context"
	"log"
	"sync"

	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/heuristic"
)

const (
	// MinTrainingRecords is the floor below which the model refuses to
	// emit verdicts.
	MinTrainingRecords = 50

	// MaxTrainingRecords bounds the training set to the most recent
	// classified punches.
	MaxTrainingRecords = 1000

	// defaultK is the neighbor count for the k-NN model.
	defaultK = 3
)

// TrainingSource supplies historically classified punches. Satisfied by
// attendance.PunchStore.
type TrainingSource interface {
	TrainingPunches(ctx context.Context, limit int) ([]*attendance.Punch, error)
}

// Engine is the statistical classification engine. Safe for concurrent
// Classify calls; Train swaps the model under a lock.
type Engine struct {
	source TrainingSource

	mu      sync.RWMutex
	model   *knn
	trained int // sample count from the last Train
}

func New(source TrainingSource) *Engine {
	return &Engine{source: source, model: newKNN(defaultK)}
}

// Train refits the model from the training source. Insufficient data is
// not an error: the engine records it and Classify fails soft.
func (e *Engine) Train(ctx context.Context) error {
	punches, err := e.source.TrainingPunches(ctx, MaxTrainingRecords)
	if err != nil {
		return err
	}

	samples := make([]sample, 0, len(punches))
	for _, p := range punches {
		if !p.Classified() {
			continue
		}
		samples = append(samples, sample{
			features: featuresFor(p.EmployeeID, p),
			label:    p.Type,
		})
	}

	model := newKNN(defaultK)
	model.train(samples)

	e.mu.Lock()
	e.model = model
	e.trained = len(samples)
	e.mu.Unlock()

	log.Printf("[Predictor] Model trained with %d samples", len(samples))
	return nil
}

// Ready reports whether the model has enough training data to emit
// verdicts.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained >= MinTrainingRecords
}

// Classify produces verdicts for one employee-day. With insufficient
// training data it returns nil: no verdicts, never an error.
func (e *Engine) Classify(punches []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) []attendance.Verdict {
	if !e.Ready() || len(punches) == 0 {
		return nil
	}

	sorted := make([]*attendance.Punch, len(punches))
	copy(sorted, punches)
	attendance.SortPunches(sorted)

	if schedule == nil {
		return e.individualPredictions(sorted)
	}

	switch len(sorted) {
	case 1:
		return nil
	case 2:
		return []attendance.Verdict{
			e.verdict(sorted[0], attendance.ClockIn, 1),
			e.verdict(sorted[1], attendance.ClockOut, 1),
		}
	case 4:
		return []attendance.Verdict{
			e.verdict(sorted[0], attendance.ClockIn, 1),
			e.verdict(sorted[1], attendance.LunchStart, 1),
			e.verdict(sorted[2], attendance.LunchStop, 1),
			e.verdict(sorted[3], attendance.ClockOut, 1),
		}
	case 3, 5:
		// Odd small shapes are flagged upstream; emitting nothing keeps
		// this engine's verdicts unambiguous.
		return nil
	default:
		return e.classifyLargeDay(sorted, schedule, flexibilityMinutes)
	}
}

func (e *Engine) classifyLargeDay(sorted []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) []attendance.Verdict {
	n := len(sorted)
	types := make([]attendance.PunchType, n)
	types[0] = attendance.ClockIn
	types[n-1] = attendance.ClockOut

	interior := sorted[1 : n-1]
	pair := e.findBestLunchPair(interior, schedule, flexibilityMinutes)

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
		verdicts[i] = e.verdict(p, types[i], 1)
	}
	return verdicts
}

// findBestLunchPair mirrors the heuristic search but folds the model's
// own recognition of the candidate punches into the score: +20 when
// both edges predict as lunch, +10 when one does.
func (e *Engine) findBestLunchPair(interior []*attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) *heuristic.LunchPair {
	if len(interior) < 2 {
		return nil
	}

	var best *heuristic.LunchPair
	bestScore := -1

	for i := 0; i < len(interior)-1; i++ {
		for j := i + 1; j < len(interior); j++ {
			score := e.scoreLunchPair(interior[i], interior[j], schedule, flexibilityMinutes)
			if score > bestScore {
				bestScore = score
				best = &heuristic.LunchPair{Start: interior[i], Stop: interior[j], Score: score}
			}
		}
	}

	if bestScore > 0 {
		return best
	}
	return nil
}

func (e *Engine) scoreLunchPair(start, stop *attendance.Punch, schedule *attendance.ShiftSchedule, flexibilityMinutes int) int {
	score := 0

	startPrediction, _ := e.predict(start)
	stopPrediction, _ := e.predict(stop)

	switch {
	case startPrediction == attendance.LunchStart && stopPrediction == attendance.LunchStop:
		score += 20
	case startPrediction == attendance.LunchStart || stopPrediction == attendance.LunchStop:
		score += 10
	}

	return score + heuristic.ScoreLunchPair(start, stop, schedule, flexibilityMinutes)
}

// individualPredictions is the no-schedule fallback: raw per-punch
// model output, emitted only when the neighbors actually agreed.
func (e *Engine) individualPredictions(sorted []*attendance.Punch) []attendance.Verdict {
	var verdicts []attendance.Verdict
	for _, p := range sorted {
		t, confidence := e.predict(p)
		if t == attendance.Unclassified {
			continue
		}
		verdicts = append(verdicts, e.verdict(p, t, confidence))
	}
	return verdicts
}

func (e *Engine) predict(p *attendance.Punch) (attendance.PunchType, float64) {
	e.mu.RLock()
	model := e.model
	e.mu.RUnlock()

	t, confidence, ok := model.predict(featuresFor(p.EmployeeID, p))
	if !ok {
		return attendance.Unclassified, 0
	}
	return t, confidence
}

func (e *Engine) verdict(p *attendance.Punch, t attendance.PunchType, confidence float64) attendance.Verdict {
	return attendance.Verdict{
		PunchID:    p.ID,
		Type:       t,
		State:      attendance.StateFor(t),
		Source:     attendance.SourcePredictor,
		Confidence: confidence,
	}
}
