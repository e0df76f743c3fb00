package model

// Decision is the only oracle output the task state machine reacts to.
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionStop     Decision = "stop"
)

// CoverageFacts are computed solely by the engine from counters on the
// task's accumulated state. The oracle consumes them and never recomputes
// or authors them.
type CoverageFacts struct {
	ResultsNew             int     `json:"results_new"`
	ResultsDuplicate       int     `json:"results_duplicate"`
	IncrementalGainLastPct float64 `json:"incremental_gain_last_pct"`
	EntitiesNew            int     `json:"entities_new"`
	HypothesesExecuted     int     `json:"hypotheses_executed"`
	HypothesesRemaining    int     `json:"hypotheses_remaining"`
	TimeElapsedSeconds     float64 `json:"time_elapsed_seconds"`
	TimeRemainingSeconds   float64 `json:"time_remaining_seconds"`
}

// CoverageAssessment is one round's continue/stop verdict plus the facts it
// was rendered from.
type CoverageAssessment struct {
	TaskID         string        `json:"task_id"`
	Facts          CoverageFacts `json:"facts"`
	Assessment     string        `json:"assessment"`
	GapsIdentified []string      `json:"gaps_identified"`
	Decision       Decision      `json:"decision"`
	Forced         bool          `json:"forced"`
}
