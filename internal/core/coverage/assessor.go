// Package coverage computes objective per-round facts about a task's
// progress and obtains the qualitative continue/stop verdict. Decision
// policy is entirely delegated to the oracle; the engine enforces no
// numeric thresholds of its own. Its only overrides are the hard budget
// ceiling and the deterministic stop when the oracle call itself fails.
package coverage

import (
	"context"

	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/oracle"
)

// Oracle is the assessment capability. A failed call is never retried; the
// assessor falls back to a deterministic stop instead.
type Oracle interface {
	Assess(ctx context.Context, req oracle.AssessRequest) (*oracle.Verdict, error)
}

// RoundStats are the counters the task controller gathers while one round's
// results flow in.
type RoundStats struct {
	ResultsNew       int
	ResultsDuplicate int
	EntitiesNew      int
	// TotalBefore is the task's deduplicated result count before the round.
	TotalBefore int
	// Digest holds one compact line per new result for the oracle.
	Digest []string
}

type Assessor struct {
	oracle Oracle
	budget *model.Budget
	log    *zap.Logger
}

func NewAssessor(o Oracle, budget *model.Budget, log *zap.Logger) *Assessor {
	return &Assessor{oracle: o, budget: budget, log: log}
}

// ComputeFacts derives the round's facts purely from engine counters. The
// oracle consumes these; it never authors or recomputes them.
func (a *Assessor) ComputeFacts(round RoundStats, hypothesesExecuted int) model.CoverageFacts {
	gain := 0.0
	if round.TotalBefore > 0 {
		gain = float64(round.ResultsNew) / float64(round.TotalBefore) * 100
	} else if round.ResultsNew > 0 {
		gain = 100
	}

	remaining := a.budget.MaxHypothesesPerTask - hypothesesExecuted
	if remaining < 0 {
		remaining = 0
	}

	return model.CoverageFacts{
		ResultsNew:             round.ResultsNew,
		ResultsDuplicate:       round.ResultsDuplicate,
		IncrementalGainLastPct: gain,
		EntitiesNew:            round.EntitiesNew,
		HypothesesExecuted:     hypothesesExecuted,
		HypothesesRemaining:    remaining,
		TimeElapsedSeconds:     a.budget.Elapsed().Seconds(),
		TimeRemainingSeconds:   a.budget.TimeRemaining().Seconds(),
	}
}

// Assess renders the round's verdict. The hard budget ceiling forces a stop
// without consulting the oracle at all; with saturation stops disabled the
// decision degenerates to continue until that ceiling fires.
func (a *Assessor) Assess(ctx context.Context, task *model.Task, facts model.CoverageFacts, digest []string) model.CoverageAssessment {
	out := model.CoverageAssessment{TaskID: task.ID, Facts: facts}

	if facts.TimeRemainingSeconds <= 0 || facts.HypothesesRemaining <= 0 {
		out.Decision = model.DecisionStop
		out.Forced = true
		out.Assessment = "budget ceiling reached; stopping regardless of saturation"
		return out
	}

	verdict, err := a.oracle.Assess(ctx, oracle.AssessRequest{
		TaskID:          task.ID,
		TaskDescription: task.Description,
		Facts:           facts,
		Digest:          digest,
	})

	if !a.budget.AllowSaturationStop {
		// Run-to-the-limit mode: the oracle's gaps still seed the next
		// round, but its decision is ignored.
		out.Decision = model.DecisionContinue
		if err != nil {
			a.log.Warn("assessment oracle failed in run-to-limit mode, continuing without gaps",
				zap.String("task", task.ID), zap.Error(err))
			return out
		}
		out.Assessment = verdict.Assessment
		out.GapsIdentified = verdict.Gaps
		return out
	}

	if err != nil {
		// Fail-fast: one malformed response means a deterministic stop,
		// not a blocked task.
		a.log.Warn("assessment oracle failed, forcing stop",
			zap.String("task", task.ID), zap.Error(err))
		out.Decision = model.DecisionStop
		out.Forced = true
		out.Assessment = "assessment call failed: " + err.Error()
		return out
	}

	out.Decision = verdict.Decision
	out.Assessment = verdict.Assessment
	out.GapsIdentified = verdict.Gaps
	return out
}
