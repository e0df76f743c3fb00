// Package session runs whole investigations: decompose the root question,
// dispatch task controllers under the concurrency and time/task budget,
// admit follow-ups while budget remains, and hand the terminal state to the
// report synthesizer.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/coverage"
	"github.com/agenthands/sleuth/internal/core/entity"
	"github.com/agenthands/sleuth/internal/core/hypothesis"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/core/task"
	"github.com/agenthands/sleuth/internal/oracle"
	"github.com/agenthands/sleuth/internal/source"
)

// Oracle is the full capability surface one investigation needs.
type Oracle interface {
	Decompose(ctx context.Context, question string, maxTasks int) ([]model.TaskSeed, error)
	Hypotheses(ctx context.Context, taskDescription string, sources []oracle.SourceInfo, gaps []string, max int) ([]oracle.HypothesisSeed, error)
	Assess(ctx context.Context, req oracle.AssessRequest) (*oracle.Verdict, error)
	Entities(ctx context.Context, text string) ([]model.Mention, error)
}

// Synthesizer consumes the terminal task set and entity graph. Report
// rendering itself is an external collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, s *Session)
}

type Orchestrator struct {
	oracle   Oracle
	registry *source.Registry
	cfg      *config.Config
	log      *zap.Logger
	synth    Synthesizer
}

func NewOrchestrator(o Oracle, registry *source.Registry, cfg *config.Config, log *zap.Logger) *Orchestrator {
	return &Orchestrator{oracle: o, registry: registry, cfg: cfg, log: log}
}

// SetSynthesizer attaches the out-of-process report collaborator.
func (o *Orchestrator) SetSynthesizer(s Synthesizer) { o.synth = s }

// Run conducts one investigation to completion. It returns an error only
// for unrecoverable configuration problems (no sources registered, failed
// decomposition); per-task and per-source failures are absorbed into the
// session's partial results.
func (o *Orchestrator) Run(ctx context.Context, question string, bc config.BudgetConfig) (*Session, error) {
	sess, err := o.Start(ctx, question, bc)
	if err != nil {
		return nil, err
	}
	o.Wait(ctx, sess)
	return sess, sess.Err()
}

// Start validates the question against the registry, decomposes it, and
// begins dispatching task controllers. The returned session is live; use
// Wait (or poll Status) for completion.
func (o *Orchestrator) Start(ctx context.Context, question string, bc config.BudgetConfig) (*Session, error) {
	if o.registry.Len() == 0 {
		return nil, fmt.Errorf("no sources registered")
	}
	if question == "" {
		return nil, fmt.Errorf("empty research question")
	}

	budget := model.NewBudget(
		bc.MaxTasks,
		time.Duration(bc.MaxTimeMinutes)*time.Minute,
		bc.MaxConcurrentTasks,
		bc.MaxHypothesesPerTask,
		bc.AllowSaturationStop,
	)

	tracker := entity.NewTracker(o.oracle, o.log)
	sess := New(question, budget, tracker)
	log := o.log.With(zap.String("session", sess.ID))

	seeds, err := o.oracle.Decompose(ctx, question, budget.MaxTasks)
	if err != nil {
		sess.finish(fmt.Errorf("decompose research question: %w", err))
		return nil, sess.Err()
	}
	sort.SliceStable(seeds, func(i, j int) bool { return seeds[i].Priority < seeds[j].Priority })

	engine := hypothesis.NewEngine(o.oracle, o.registry, o.cfg.Search, log)
	assessor := coverage.NewAssessor(o.oracle, budget, log)

	sem := semaphore.NewWeighted(int64(budget.MaxConcurrentTasks))
	var wg sync.WaitGroup

	var runTask func(t *model.Task)
	runTask = func(t *model.Task) {
		defer wg.Done()
		if err := sem.Acquire(ctx, 1); err != nil {
			t.SetState(model.TaskDone)
			return
		}
		defer sem.Release(1)

		ctrl := task.NewController(t, engine, assessor, tracker, o.registry, budget, log)
		for _, followUp := range ctrl.Run(ctx) {
			if !budget.AdmitTask() {
				log.Info("follow-up refused, budget exhausted",
					zap.String("parent", t.ID),
					zap.String("description", followUp.Description))
				continue
			}
			log.Info("follow-up admitted",
				zap.String("parent", t.ID),
				zap.String("description", followUp.Description))
			sess.addTask(followUp)
			wg.Add(1)
			go runTask(followUp)
		}
	}

	admitted := 0
	for _, seed := range seeds {
		if !budget.AdmitTask() {
			break
		}
		t := model.NewTask(seed.Description, seed.Priority)
		sess.addTask(t)
		admitted++
		wg.Add(1)
		go runTask(t)
	}
	if admitted == 0 {
		sess.finish(fmt.Errorf("budget admitted no tasks"))
		return nil, sess.Err()
	}
	log.Info("session started",
		zap.String("question", question),
		zap.Int("initial_tasks", admitted))

	go func() {
		wg.Wait()
		sess.finish(nil)
		log.Info("session finished",
			zap.Int("tasks", len(sess.Tasks())),
			zap.Int("entities", tracker.Count()),
			zap.Duration("elapsed", budget.Elapsed()))
		if o.synth != nil {
			o.synth.Synthesize(ctx, sess)
		}
	}()

	return sess, nil
}

// Wait blocks until the session leaves the running state or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, sess *Session) {
	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
}
