package model

import "time"

// Query is the source-specific query parameter object. Each source adapter
// documents the keys it understands; the core only passes it through.
type Query map[string]string

// AttemptOutcome classifies a single (source, query-variant) trial.
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "success"
	AttemptEmpty   AttemptOutcome = "empty"
	AttemptError   AttemptOutcome = "error"
)

// SearchAttempt is one entry in a unit's retry/reformulation history.
// Attempts are append-only and never mutated after creation.
type SearchAttempt struct {
	TaskID       string         `json:"task_id"`
	HypothesisID string         `json:"hypothesis_id"`
	SourceID     string         `json:"source_id"`
	Query        Query          `json:"query_params"`
	Phase        int            `json:"phase"`
	Outcome      AttemptOutcome `json:"outcome"`
	Error        string         `json:"error,omitempty"`
	ResultIDs    []string       `json:"result_ids,omitempty"`
	At           time.Time      `json:"at"`
}

// QueryRequest carries everything the oracle needs to generate or reformulate
// a query for one source. Phase 1 requests have no previous attempt context.
type QueryRequest struct {
	SourceID        string
	SourceName      string
	SyntaxHint      string
	TaskDescription string
	Hypothesis      string
	Phase           int
	PreviousQuery   Query
	PreviousFailure string
}
