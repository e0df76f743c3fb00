package model

import (
	"sync"

	"github.com/google/uuid"
)

// TaskState is the task controller's state machine position.
type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskDecomposing TaskState = "decomposing"
	TaskExecuting   TaskState = "executing"
	TaskAssessing   TaskState = "assessing"
	TaskDone        TaskState = "done"
)

// Task is one decomposed sub-question of the root research question. The
// controller is the only writer, but session status and HTTP handlers read
// while a round is in flight, so the round-mutated fields live behind the
// mutex and are reached through accessors. Identity fields are immutable
// after construction.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	FollowUpOf  string `json:"follow_up_of,omitempty"`
	Results     *ResultSet

	mu         sync.Mutex
	state      TaskState
	hypotheses []*Hypothesis
	coverage   []CoverageAssessment
	attempts   []SearchAttempt
}

func NewTask(description string, priority int) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		Priority:    priority,
		state:       TaskPending,
		Results:     NewResultSet(),
	}
}

// NewFollowUpTask creates a task spawned from an identified gap of a parent.
func NewFollowUpTask(description string, parent *Task) *Task {
	t := NewTask(description, parent.Priority+1)
	t.FollowUpOf = parent.ID
	return t
}

func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) SetState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// AppendHypotheses publishes a finished round of hypotheses. Summaries must
// be final before the call; readers treat published hypotheses as frozen.
func (t *Task) AppendHypotheses(hyps ...*Hypothesis) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hypotheses = append(t.hypotheses, hyps...)
}

// Hypotheses returns a copy of the published hypothesis list.
func (t *Task) Hypotheses() []*Hypothesis {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Hypothesis, len(t.hypotheses))
	copy(out, t.hypotheses)
	return out
}

// AppendAssessment records one round's coverage verdict.
func (t *Task) AppendAssessment(a CoverageAssessment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.coverage = append(t.coverage, a)
}

// CoverageHistory returns a copy of the per-round assessments in order.
func (t *Task) CoverageHistory() []CoverageAssessment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CoverageAssessment, len(t.coverage))
	copy(out, t.coverage)
	return out
}

// LastAssessment returns the most recent coverage verdict, if any.
func (t *Task) LastAssessment() (CoverageAssessment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.coverage) == 0 {
		return CoverageAssessment{}, false
	}
	return t.coverage[len(t.coverage)-1], true
}

// RecordAttempt appends to the task's audit trail.
func (t *Task) RecordAttempt(a SearchAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = append(t.attempts, a)
}

// Attempts returns a copy of the audit trail.
func (t *Task) Attempts() []SearchAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SearchAttempt, len(t.attempts))
	copy(out, t.attempts)
	return out
}

// TaskSeed is a decomposition output before it becomes an owned Task.
type TaskSeed struct {
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}
