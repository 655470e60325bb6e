package attendance

// =============================================================================
// CONFIG - Explicit per-run configuration (no global mutable settings)
// =============================================================================

// Config carries the company-wide knobs for a classification run. The
// caller loads it once and passes it into each engine and service, so
// every run is deterministic and tests never depend on hidden state.
type Config struct {
	// FlexibilityMinutes is how far a punch may deviate from a
	// scheduled time and still be considered a match.
	FlexibilityMinutes int

	// Engine enablement. With both enabled the consensus engine
	// arbitrates; with one enabled its verdicts are finalized directly.
	HeuristicEnabled bool
	PredictorEnabled bool

	// TiebreakEngine decides whose state wins when the engines agree on
	// type but not state. The default matches the historical behavior:
	// the heuristic engine is authoritative.
	TiebreakEngine EngineSource
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FlexibilityMinutes: 30,
		HeuristicEnabled:   true,
		PredictorEnabled:   true,
		TiebreakEngine:     SourceHeuristic,
	}
}

// Flexibility returns FlexibilityMinutes guarded against zero/negative
// values from partially populated configs.
func (c Config) Flexibility() int {
	if c.FlexibilityMinutes <= 0 {
		return 30
	}
	return c.FlexibilityMinutes
}
