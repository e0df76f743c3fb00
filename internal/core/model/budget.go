package model

import (
	"sync/atomic"
	"time"
)

// ResearchQuestion is the root question plus its budget. Immutable after
// session start.
type ResearchQuestion struct {
	Question string  `json:"question"`
	Budget   *Budget `json:"budget"`
}

// Budget is the session-wide ceiling value object. It is owned by the
// session orchestrator and consulted, never owned, by task controllers.
// Admission is an atomic reserve so concurrent task completion cannot
// over-admit follow-ups.
type Budget struct {
	MaxTasks             int           `json:"max_tasks"`
	MaxTime              time.Duration `json:"max_time"`
	MaxConcurrentTasks   int           `json:"max_concurrent_tasks"`
	MaxHypothesesPerTask int           `json:"max_hypotheses_per_task"`
	AllowSaturationStop  bool          `json:"allow_saturation_stop"`

	started  time.Time
	deadline time.Time
	admitted atomic.Int64
}

func NewBudget(maxTasks int, maxTime time.Duration, maxConcurrent, maxHypotheses int, allowSaturationStop bool) *Budget {
	now := time.Now()
	return &Budget{
		MaxTasks:             maxTasks,
		MaxTime:              maxTime,
		MaxConcurrentTasks:   maxConcurrent,
		MaxHypothesesPerTask: maxHypotheses,
		AllowSaturationStop:  allowSaturationStop,
		started:              now,
		deadline:             now.Add(maxTime),
	}
}

// AdmitTask atomically reserves one task slot. Once either ceiling is
// reached no task, follow-ups included, is admitted.
func (b *Budget) AdmitTask() bool {
	if b.TimeRemaining() <= 0 {
		return false
	}
	for {
		n := b.admitted.Load()
		if int(n) >= b.MaxTasks {
			return false
		}
		if b.admitted.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (b *Budget) TasksAdmitted() int {
	return int(b.admitted.Load())
}

func (b *Budget) Elapsed() time.Duration {
	return time.Since(b.started)
}

// TimeRemaining never goes negative; 0 means exhausted.
func (b *Budget) TimeRemaining() time.Duration {
	rem := time.Until(b.deadline)
	if rem < 0 {
		return 0
	}
	return rem
}

func (b *Budget) Deadline() time.Time {
	return b.deadline
}
