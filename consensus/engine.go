/*
Package consensus reconciles the two classification engines' verdicts.

PURPOSE:

	For each punch with verdicts from both engines, produce exactly one
	ConsensusResult and apply it as the authoritative terminal write of
	the punch's type, state, status, and issue notes. No other component
	may overwrite those fields once consensus has run; only a manual
	human correction (out of scope) can.

RECONCILIATION RULES (priority order, first match wins):

 1. Either verdict missing        -> Disagreement, status Discrepancy,
    detail records which engine(s) were absent.

 2. Exact (type, state) agreement -> PerfectAgreement, status Complete.

 3. Type agreement, state differs -> the configured tiebreak engine's
    state is authoritative (heuristic by default), status Complete.

 4. Types differ                  -> Disagreement, status Discrepancy,
    detail carries both display names and a requires-review flag.

    Full type disagreement is never auto-resolved by any scoring
    mechanism; it always goes to human review.

ORDERING:

	Punches reconcile independently of each other. All cross-punch
	dependency was resolved inside the engines, so per-punch resolution
	is embarrassingly parallel and trivially idempotent.
*/
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/meridian/attendance-engine/attendance"
)

// Engine applies consensus outcomes to punches through the store.
type Engine struct {
	Punches attendance.PunchStore
	Config  attendance.Config
}

func New(punches attendance.PunchStore, cfg attendance.Config) *Engine {
	return &Engine{Punches: punches, Config: cfg}
}

// Reconcile is the pure arbitration function: two optional verdicts in,
// one ConsensusResult out. Nil represents a missing verdict.
func Reconcile(punchID attendance.PunchID, h, p *attendance.Verdict, tiebreak attendance.EngineSource) attendance.ConsensusResult {
	// Review-flagged verdicts carry no type; treat them as absent.
	if h != nil && h.NeedsReview {
		h = nil
	}
	if p != nil && p.NeedsReview {
		p = nil
	}

	if h == nil || p == nil {
		return attendance.ConsensusResult{
			PunchID:         punchID,
			HasDisagreement: true,
			Method:          attendance.Disagreement,
			Detail: attendance.DisagreementDetail{
				Issue:              "incomplete_evaluation",
				HeuristicAvailable: h != nil,
				PredictorAvailable: p != nil,
				RequiresReview:     true,
				Summary:            "missing engine result",
			},
		}
	}

	if h.Type == p.Type && h.State == p.State {
		return attendance.ConsensusResult{
			PunchID:     punchID,
			AgreedType:  h.Type,
			AgreedState: h.State,
			Method:      attendance.PerfectAgreement,
		}
	}

	if h.Type == p.Type {
		winner := h
		if tiebreak == attendance.SourcePredictor {
			winner = p
		}
		return attendance.ConsensusResult{
			PunchID:     punchID,
			AgreedType:  winner.Type,
			AgreedState: winner.State,
			Method:      attendance.TypeAgreementStateTiebreak,
		}
	}

	return attendance.ConsensusResult{
		PunchID:         punchID,
		HasDisagreement: true,
		Method:          attendance.Disagreement,
		Detail: attendance.DisagreementDetail{
			Issue:              "engine_mismatch",
			HeuristicAvailable: true,
			PredictorAvailable: true,
			HeuristicType:      h.Type.DisplayName(),
			PredictorType:      p.Type.DisplayName(),
			HeuristicState:     string(h.State),
			PredictorState:     string(p.State),
			RequiresReview:     true,
			Summary:            fmt.Sprintf("Heuristic: %s vs Predictor: %s", h.Type.DisplayName(), p.Type.DisplayName()),
		},
	}
}

// ProcessConsensus reconciles both engines' verdicts for an
// employee-day's punches and persists the outcome on each punch. The
// verdict maps are keyed by punch id; a punch absent from a map counts
// as a missing verdict for that engine.
func (e *Engine) ProcessConsensus(ctx context.Context, punches []*attendance.Punch, heuristicVerdicts, predictorVerdicts map[attendance.PunchID]attendance.Verdict) ([]attendance.ConsensusResult, error) {
	results := make([]attendance.ConsensusResult, 0, len(punches))

	for _, punch := range punches {
		var h, p *attendance.Verdict
		if v, ok := heuristicVerdicts[punch.ID]; ok {
			h = &v
		}
		if v, ok := predictorVerdicts[punch.ID]; ok {
			p = &v
		}

		result := Reconcile(punch.ID, h, p, e.Config.TiebreakEngine)
		if err := e.apply(ctx, punch, result); err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// apply mutates and persists one punch from its consensus result. This
// is the terminal write for the punch's classification.
func (e *Engine) apply(ctx context.Context, punch *attendance.Punch, result attendance.ConsensusResult) error {
	if result.HasDisagreement {
		detail, err := json.Marshal(result.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode disagreement detail: %w", err)
		}
		punch.Status = attendance.StatusDiscrepancy
		punch.IssueNotes = string(detail)
	} else {
		punch.Type = result.AgreedType
		punch.State = result.AgreedState
		punch.Status = attendance.StatusComplete
		punch.IssueNotes = "Consensus achieved: " + string(result.Method)
	}

	if err := e.Punches.UpdatePunch(ctx, punch); err != nil {
		log.Printf("[Consensus] Failed to persist punch %s: %v", punch.ID, err)
		return err
	}
	return nil
}
