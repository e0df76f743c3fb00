package model

// Hypothesis is a candidate angle for finding evidence on a task, bound to
// the subset of sources believed most likely to surface it. Executed once,
// then retained read-only for assessment and reporting.
type Hypothesis struct {
	ID               string           `json:"id"`
	Statement        string           `json:"statement"`
	CandidateSources []string         `json:"candidate_sources"`
	Summary          ExecutionSummary `json:"execution_summary"`
}

// ExecutionSummary records what happened when the hypothesis ran. A
// hypothesis with zero results across all its sources is failed, not fatal.
type ExecutionSummary struct {
	ResultsCount int      `json:"results_count"`
	SourcesUsed  []string `json:"sources_used"`
	Failed       bool     `json:"failed"`
}
