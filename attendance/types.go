/*
Package attendance provides the core punch classification domain.

PURPOSE:

	This package contains the domain types and invariants shared by every
	stage of the punch-to-attendance pipeline: raw clock events, draft and
	classified punches, engine verdicts, and the consensus outcome that
	reconciles them.

KEY CONCEPTS IN THIS FILE (types.go):
  - PunchType/PunchState: The closed semantic vocabulary for a punch
  - Punch: One observed timestamp for an employee on a shift-day
  - ClockEvent: A raw device-reported time signal prior to ingestion
  - Verdict: One engine's opinion about one punch
  - ConsensusResult: The reconciled, authoritative outcome per punch

DESIGN PRINCIPLES:
 1. State is a function of type: PunchState is always derived from
    PunchType via StateFor. A classified punch can never carry a state
    that contradicts its type.
 2. Closed enums: punch types are compile-time constants; external
    storage identifiers are mapped through the TypeResolver interface
    rather than runtime name lookups.
 3. Failures are data: classification problems surface as Status values
    (NeedsReview, Discrepancy) and issue notes, never as panics.

SEE ALSO:
  - clock.go: time-of-day window matching
  - schedule.go: shift schedule contract and provider fallback
  - store.go: persistence interfaces
  - errors.go: sentinel and structured errors
*/
package attendance

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PunchID string
type EventID string
type EmployeeID string

// =============================================================================
// PUNCH TYPE - Closed semantic vocabulary
// =============================================================================

type PunchType string

const (
	ClockIn      PunchType = "clock_in"
	ClockOut     PunchType = "clock_out"
	LunchStart   PunchType = "lunch_start"
	LunchStop    PunchType = "lunch_stop"
	BreakStart   PunchType = "break_start"
	BreakEnd     PunchType = "break_end"
	Unclassified PunchType = "unclassified"
)

// AllPunchTypes lists the classifiable types in reference-data order.
// Unclassified is deliberately excluded: it is a lifecycle state, not a
// reference row.
func AllPunchTypes() []PunchType {
	return []PunchType{ClockIn, ClockOut, LunchStart, LunchStop, BreakStart, BreakEnd}
}

// DisplayName returns the human-readable name used in reference data,
// audit notes, and discrepancy summaries.
func (t PunchType) DisplayName() string {
	switch t {
	case ClockIn:
		return "Clock In"
	case ClockOut:
		return "Clock Out"
	case LunchStart:
		return "Lunch Start"
	case LunchStop:
		return "Lunch Stop"
	case BreakStart:
		return "Break Start"
	case BreakEnd:
		return "Break End"
	default:
		return "Unclassified"
	}
}

// =============================================================================
// PUNCH STATE - Direction of a punch, always derived from its type
// =============================================================================

type PunchState string

const (
	StateStart   PunchState = "start"
	StateStop    PunchState = "stop"
	StateUnknown PunchState = "unknown"
)

// StateFor returns the direction implied by a punch type. Start types
// open an interval of presence (back at work), stop types close one
// (leaving work). This mapping is the state-type invariant: engine
// outputs and persisted punches must always satisfy it.
func StateFor(t PunchType) PunchState {
	switch t {
	case ClockIn, LunchStop, BreakEnd:
		return StateStart
	case ClockOut, LunchStart, BreakStart:
		return StateStop
	default:
		return StateUnknown
	}
}

// =============================================================================
// STATUS - Punch lifecycle
// =============================================================================

type Status string

const (
	// StatusIncomplete marks a freshly ingested draft punch with no
	// type or state assigned yet.
	StatusIncomplete Status = "Incomplete"

	// StatusComplete marks a punch whose classification is final.
	StatusComplete Status = "Complete"

	// StatusDiscrepancy marks a punch the engines could not agree on.
	// Terminal until a human corrects it.
	StatusDiscrepancy Status = "Discrepancy"

	// StatusNeedsReview marks a punch the pipeline could not classify
	// at all (no schedule, unpaired punch, odd day shape).
	StatusNeedsReview Status = "NeedsReview"
)

// =============================================================================
// PUNCH - One observed timestamp for an employee on a shift-day
// =============================================================================

type Punch struct {
	ID         PunchID
	EmployeeID EmployeeID
	DeviceID   string // empty for manual entries
	PunchTime  time.Time

	// ShiftDate is the logical day the punch belongs to. It may differ
	// from the calendar date of PunchTime for overnight shifts.
	ShiftDate time.Time

	Type       PunchType
	State      PunchState
	Status     Status
	IssueNotes string
	IsManual   bool
	Source     string // "device", "manual", "import"
}

// Classified reports whether the punch carries a final semantic type.
func (p *Punch) Classified() bool {
	return p.Type != "" && p.Type != Unclassified
}

// SortPunches orders punches by punch time ascending, the precondition
// for every fixed-count fast path and pairing step in the engines.
func SortPunches(punches []*Punch) {
	for i := 1; i < len(punches); i++ {
		for j := i; j > 0 && punches[j].PunchTime.Before(punches[j-1].PunchTime); j-- {
			punches[j], punches[j-1] = punches[j-1], punches[j]
		}
	}
}

// =============================================================================
// CLOCK EVENT - Raw device signal, the unit of ingestion
// =============================================================================

type ClockEvent struct {
	ID         EventID
	EmployeeID EmployeeID // empty when the credential resolved to no employee
	DeviceID   string
	EventTime  time.Time
	ShiftDate  time.Time

	Processed    bool
	ProcessedAt  *time.Time
	AttendanceID PunchID // punch created from this event

	BatchID         string // uuid of the processing run that touched it
	ProcessingError string // non-empty implies Processed == false
}

// ReadyForProcessing reports whether the event is eligible for the next
// ingestion run: not yet processed, no standing error, and attributable
// to an employee.
func (e *ClockEvent) ReadyForProcessing() bool {
	return !e.Processed && e.ProcessingError == "" && e.EmployeeID != ""
}

// =============================================================================
// VERDICT - One engine's opinion about one punch (ephemeral)
// =============================================================================

// EngineSource labels which engine produced a verdict.
type EngineSource string

const (
	SourceHeuristic EngineSource = "heuristic"
	SourcePredictor EngineSource = "predictor"
)

type Verdict struct {
	PunchID PunchID
	Type    PunchType
	State   PunchState
	Source  EngineSource

	// Confidence is engine-specific and optional; the heuristic engine
	// leaves it zero, the predictor reports neighbor agreement.
	Confidence float64

	// NeedsReview flags a punch the engine could observe but not
	// classify (missing schedule, flagged day shape). A review verdict
	// carries no type.
	NeedsReview bool
	Note        string
}

// =============================================================================
// CONSENSUS RESULT - Reconciled outcome for one punch (ephemeral)
// =============================================================================

type ConsensusMethod string

const (
	// PerfectAgreement: both engines produced the same (type, state).
	PerfectAgreement ConsensusMethod = "perfect_agreement"

	// TypeAgreementStateTiebreak: types matched, states did not; the
	// configured tiebreak engine's state was taken.
	TypeAgreementStateTiebreak ConsensusMethod = "type_agreement_state_tiebreak"

	// Disagreement: a verdict was missing or the types conflicted.
	// Always requires human review.
	Disagreement ConsensusMethod = "disagreement"
)

type ConsensusResult struct {
	PunchID         PunchID
	HasDisagreement bool
	AgreedType      PunchType
	AgreedState     PunchState
	Method          ConsensusMethod
	Detail          DisagreementDetail
}

// DisagreementDetail is the machine-readable audit payload persisted in
// a punch's issue notes on Discrepancy. It always records both engines'
// raw positions so review tooling can display them.
type DisagreementDetail struct {
	Issue              string `json:"issue"` // "incomplete_evaluation" | "engine_mismatch"
	HeuristicAvailable bool   `json:"heuristic_available"`
	PredictorAvailable bool   `json:"predictor_available"`
	HeuristicType      string `json:"heuristic_type,omitempty"`
	PredictorType      string `json:"predictor_type,omitempty"`
	HeuristicState     string `json:"heuristic_state,omitempty"`
	PredictorState     string `json:"predictor_state,omitempty"`
	RequiresReview     bool   `json:"requires_review"`
	Summary            string `json:"summary,omitempty"`
}

// =============================================================================
// TYPE RESOLVER - Maps the closed enum to deployment-specific ids
// =============================================================================

// TypeResolver translates between the closed PunchType enum and the
// external storage identifiers of the punch_types reference table.
// Implemented by the persistence adapter so external ids can vary per
// deployment while the enum stays compiler-checked.
type TypeResolver interface {
	IDFor(t PunchType) (int64, bool)
	TypeFor(id int64) (PunchType, bool)
}
