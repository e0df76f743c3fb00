package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/core/entity"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Session is one investigation: the root question, its budget, the tasks it
// spawned, and the session-wide entity tracker. On completion the full task
// and entity state is what gets handed to the report synthesizer.
type Session struct {
	ID       string
	Question string
	Budget   *model.Budget
	Tracker  *entity.Tracker
	Started  time.Time

	done chan struct{}

	mu       sync.RWMutex
	state    State
	tasks    []*model.Task
	err      error
	report   string
	finished time.Time
}

// New creates a running session. Callers other than the orchestrator exist
// only in tests.
func New(question string, budget *model.Budget, tracker *entity.Tracker) *Session {
	return &Session{
		ID:       uuid.New().String(),
		Question: question,
		Budget:   budget,
		Tracker:  tracker,
		Started:  time.Now(),
		done:     make(chan struct{}),
		state:    StateRunning,
	}
}

// Done is closed when the session leaves the running state.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) addTask(t *model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = time.Now()
	s.err = err
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateDone
	}
	close(s.done)
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// SetReport attaches the synthesized report. Called once, after the
// session leaves the running state.
func (s *Session) SetReport(report string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
}

// Report returns the synthesized report, empty while synthesis is still
// pending.
func (s *Session) Report() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Tasks returns the session's tasks in admission order.
func (s *Session) Tasks() []*model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// TaskStatus is the per-task view exposed over the API.
type TaskStatus struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Priority     int             `json:"priority"`
	FollowUpOf   string          `json:"follow_up_of,omitempty"`
	State        model.TaskState `json:"state"`
	Hypotheses   int             `json:"hypotheses"`
	Results      int             `json:"results"`
	Rounds       int             `json:"rounds"`
	LastDecision model.Decision  `json:"last_decision,omitempty"`
}

// Status is the session view exposed over the API.
type Status struct {
	ID                string                  `json:"id"`
	Question          string                  `json:"question"`
	State             State                   `json:"state"`
	Error             string                  `json:"error,omitempty"`
	TasksAdmitted     int                     `json:"tasks_admitted"`
	MaxTasks          int                     `json:"max_tasks"`
	ElapsedSeconds    float64                 `json:"elapsed_seconds"`
	RemainingSeconds  float64                 `json:"remaining_seconds"`
	Entities          int                     `json:"entities"`
	ReportReady       bool                    `json:"report_ready"`
	Tasks             []TaskStatus            `json:"tasks"`
	SourceReliability map[string]source.Stats `json:"source_reliability"`
}

func (s *Session) Status(reliability map[string]source.Stats) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ID:                s.ID,
		Question:          s.Question,
		State:             s.state,
		TasksAdmitted:     s.Budget.TasksAdmitted(),
		MaxTasks:          s.Budget.MaxTasks,
		ElapsedSeconds:    s.Budget.Elapsed().Seconds(),
		RemainingSeconds:  s.Budget.TimeRemaining().Seconds(),
		Entities:          s.Tracker.Count(),
		ReportReady:       s.report != "",
		SourceReliability: reliability,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	for _, t := range s.tasks {
		history := t.CoverageHistory()
		ts := TaskStatus{
			ID:          t.ID,
			Description: t.Description,
			Priority:    t.Priority,
			FollowUpOf:  t.FollowUpOf,
			State:       t.State(),
			Hypotheses:  len(t.Hypotheses()),
			Results:     t.Results.Len(),
			Rounds:      len(history),
		}
		if n := len(history); n > 0 {
			ts.LastDecision = history[n-1].Decision
		}
		st.Tasks = append(st.Tasks, ts)
	}
	return st
}
