// Package task owns one sub-question's state machine: generate hypotheses,
// execute them as a round, assess coverage, then loop or finish. A task is
// mutated only by its own controller; the result set and attempt log are
// the only state written concurrently, by the round's search units.
package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/core/coverage"
	"github.com/agenthands/sleuth/internal/core/entity"
	"github.com/agenthands/sleuth/internal/core/hypothesis"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

// followUpCap bounds how many follow-up tasks one finished task may
// propose, whatever the gap list's length.
const followUpCap = 3

type Controller struct {
	task     *model.Task
	engine   *hypothesis.Engine
	assessor *coverage.Assessor
	tracker  *entity.Tracker
	registry *source.Registry
	budget   *model.Budget
	log      *zap.Logger
}

func NewController(t *model.Task, engine *hypothesis.Engine, assessor *coverage.Assessor, tracker *entity.Tracker, registry *source.Registry, budget *model.Budget, log *zap.Logger) *Controller {
	return &Controller{
		task:     t,
		engine:   engine,
		assessor: assessor,
		tracker:  tracker,
		registry: registry,
		budget:   budget,
		log:      log.With(zap.String("task", t.ID)),
	}
}

// Run drives the task to DONE and returns the follow-up tasks its terminal
// gaps propose. Failures below this level are absorbed; Run itself never
// fails.
func (c *Controller) Run(ctx context.Context) []*model.Task {
	relevant := c.registry.ListRelevant(c.task.Description)
	c.log.Info("task started",
		zap.String("description", c.task.Description),
		zap.Strings("relevant_sources", relevant))

	var gaps []string
	executed := 0

	for {
		c.task.SetState(model.TaskDecomposing)
		remaining := c.budget.MaxHypothesesPerTask - executed
		hyps, err := c.engine.Generate(ctx, c.task, relevant, gaps, remaining)
		if err != nil {
			// Without hypotheses there is no round to run; record a
			// terminal assessment so the audit trail explains the stop.
			c.log.Warn("hypothesis generation failed, stopping task", zap.Error(err))
			c.task.SetState(model.TaskAssessing)
			facts := c.assessor.ComputeFacts(coverage.RoundStats{TotalBefore: c.task.Results.Len()}, executed)
			c.task.AppendAssessment(model.CoverageAssessment{
				TaskID:     c.task.ID,
				Facts:      facts,
				Decision:   model.DecisionStop,
				Forced:     true,
				Assessment: "hypothesis generation failed: " + err.Error(),
			})
			break
		}

		c.task.SetState(model.TaskExecuting)
		sink := newRoundSink(c.task, c.tracker)
		c.engine.Execute(ctx, c.task, hyps, sink)
		executed += len(hyps)

		// Round barrier: Execute has returned, so no unit of this round
		// is still in flight.
		c.task.SetState(model.TaskAssessing)
		round := sink.stats()
		facts := c.assessor.ComputeFacts(round, executed)
		assessment := c.assessor.Assess(ctx, c.task, facts, round.Digest)
		c.task.AppendAssessment(assessment)

		c.log.Info("round assessed",
			zap.Int("results_new", facts.ResultsNew),
			zap.Int("results_duplicate", facts.ResultsDuplicate),
			zap.String("decision", string(assessment.Decision)),
			zap.Bool("forced", assessment.Forced))

		if assessment.Decision == model.DecisionContinue {
			gaps = assessment.GapsIdentified
			continue
		}
		break
	}

	c.task.SetState(model.TaskDone)
	return c.proposeFollowUps()
}

// proposeFollowUps turns the terminal assessment's unfilled gaps into new
// task candidates. Admission is the orchestrator's call, not ours.
func (c *Controller) proposeFollowUps() []*model.Task {
	last, ok := c.task.LastAssessment()
	if !ok || last.Decision != model.DecisionStop {
		return nil
	}

	var followUps []*model.Task
	for _, gap := range last.GapsIdentified {
		if len(followUps) >= followUpCap {
			break
		}
		followUps = append(followUps, model.NewFollowUpTask(gap, c.task))
	}
	return followUps
}

// roundSink receives a round's results as units emit them: deduplicated
// insertion into the task's result set, immediate entity ingestion, and the
// round counters the assessor's facts are computed from.
type roundSink struct {
	task    *model.Task
	tracker *entity.Tracker

	mu          sync.Mutex
	totalBefore int
	newCount    int
	dupCount    int
	entitiesNew int
	digest      []string
}

func newRoundSink(t *model.Task, tracker *entity.Tracker) *roundSink {
	return &roundSink{
		task:        t,
		tracker:     tracker,
		totalBefore: t.Results.Len(),
	}
}

func (s *roundSink) Ingest(ctx context.Context, res model.Result) {
	if !s.task.Results.Add(res) {
		s.mu.Lock()
		s.dupCount++
		s.mu.Unlock()
		return
	}

	entities := s.tracker.Ingest(ctx, res)

	s.mu.Lock()
	s.newCount++
	s.entitiesNew += entities
	s.digest = append(s.digest, digestLine(res))
	s.mu.Unlock()
}

func (s *roundSink) stats() coverage.RoundStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return coverage.RoundStats{
		ResultsNew:       s.newCount,
		ResultsDuplicate: s.dupCount,
		EntitiesNew:      s.entitiesNew,
		TotalBefore:      s.totalBefore,
		Digest:           append([]string(nil), s.digest...),
	}
}

const digestContentRunes = 160

func digestLine(res model.Result) string {
	content := res.Content
	if runes := []rune(content); len(runes) > digestContentRunes {
		content = string(runes[:digestContentRunes]) + "…"
	}
	return "[" + res.Source + "] " + res.Title + ": " + content
}
