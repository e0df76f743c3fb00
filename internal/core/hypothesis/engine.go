// Package hypothesis generates competing evidence-location hypotheses for a
// task and executes them. All hypotheses of a round run concurrently; the
// engine never early-stops one mid-round. Adaptivity happens across rounds,
// by seeding the next generation with the assessor's identified gaps.
package hypothesis

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/core/search"
	"github.com/agenthands/sleuth/internal/oracle"
	"github.com/agenthands/sleuth/internal/source"
)

// A round proposes between minPerRound and maxPerRound hypotheses, budget
// permitting.
const (
	minPerRound = 2
	maxPerRound = 5
)

// Oracle is the hypothesis-generation capability.
type Oracle interface {
	Hypotheses(ctx context.Context, taskDescription string, sources []oracle.SourceInfo, gaps []string, max int) ([]oracle.HypothesisSeed, error)
}

type Engine struct {
	oracle   Oracle
	registry *source.Registry
	cfg      config.SearchConfig
	log      *zap.Logger
}

func NewEngine(o Oracle, registry *source.Registry, cfg config.SearchConfig, log *zap.Logger) *Engine {
	return &Engine{oracle: o, registry: registry, cfg: cfg, log: log}
}

// Generate asks the oracle for this round's hypotheses. relevant is the
// task's relevant source set; gaps seed follow-up rounds; remaining caps
// the round against the task's hypothesis budget.
func (e *Engine) Generate(ctx context.Context, task *model.Task, relevant []string, gaps []string, remaining int) ([]*model.Hypothesis, error) {
	if len(relevant) == 0 {
		return nil, fmt.Errorf("no relevant sources for task %s", task.ID)
	}
	if remaining <= 0 {
		return nil, fmt.Errorf("no hypothesis budget remaining for task %s", task.ID)
	}

	max := maxPerRound
	if remaining < max {
		max = remaining
	}

	infos := make([]oracle.SourceInfo, 0, len(relevant))
	valid := make(map[string]bool, len(relevant))
	for _, id := range relevant {
		src, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		valid[id] = true
		infos = append(infos, oracle.SourceInfo{ID: src.ID(), Name: src.Name(), Hint: src.SyntaxHint()})
	}

	seeds, err := e.oracle.Hypotheses(ctx, task.Description, infos, gaps, max)
	if err != nil {
		return nil, err
	}

	hyps := make([]*model.Hypothesis, 0, len(seeds))
	for _, seed := range seeds {
		var sources []string
		for _, id := range seed.CandidateSources {
			if valid[id] {
				sources = append(sources, id)
			}
		}
		if len(sources) == 0 {
			// Oracle named only unknown sources; fall back to the
			// whole relevant set rather than discarding the angle.
			sources = append(sources, relevant...)
		}
		hyps = append(hyps, &model.Hypothesis{
			ID:               uuid.New().String(),
			Statement:        seed.Statement,
			CandidateSources: sources,
		})
	}

	if len(hyps) > max {
		hyps = selectDiverse(hyps, max)
	}
	return hyps, nil
}

// selectDiverse keeps max hypotheses, greedily preferring source subsets
// that minimize pairwise overlap with those already kept.
func selectDiverse(hyps []*model.Hypothesis, max int) []*model.Hypothesis {
	kept := []*model.Hypothesis{hyps[0]}
	rest := hyps[1:]

	for len(kept) < max && len(rest) > 0 {
		bestIdx, bestScore := 0, -1.0
		for i, h := range rest {
			score := 0.0
			for _, k := range kept {
				score += overlap(h.CandidateSources, k.CandidateSources)
			}
			if bestScore < 0 || score < bestScore {
				bestIdx, bestScore = i, score
			}
		}
		kept = append(kept, rest[bestIdx])
		rest = append(rest[:bestIdx], rest[bestIdx+1:]...)
	}
	return kept
}

// overlap is the Jaccard index of two source ID sets.
func overlap(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	inter := 0
	union := len(set)
	for _, id := range b {
		if set[id] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Execute runs every hypothesis concurrently, one adaptive search unit per
// (hypothesis, source) pair. It returns only when all units have finished,
// which is the round barrier the assessor depends on. Unit failures are
// absorbed into each hypothesis's execution summary.
func (e *Engine) Execute(ctx context.Context, task *model.Task, hyps []*model.Hypothesis, sink search.Sink) {
	g, gctx := errgroup.WithContext(ctx)

	for _, hyp := range hyps {
		hyp := hyp
		g.Go(func() error {
			var (
				mu    sync.Mutex
				total int
				used  []string
				inner errgroup.Group
			)
			for _, sid := range hyp.CandidateSources {
				src, ok := e.registry.Get(sid)
				if !ok {
					continue
				}
				inner.Go(func() error {
					out := search.NewUnit(src, e.registry, e.cfg, e.log).Run(gctx, task, hyp, sink)
					mu.Lock()
					total += out.Results
					if out.Succeeded {
						used = append(used, out.SourceID)
					}
					mu.Unlock()
					return nil
				})
			}
			_ = inner.Wait()

			hyp.Summary = model.ExecutionSummary{
				ResultsCount: total,
				SourcesUsed:  used,
				Failed:       total == 0,
			}
			if hyp.Summary.Failed {
				e.log.Info("hypothesis produced no results",
					zap.String("task", task.ID), zap.String("hypothesis", hyp.ID))
			}
			return nil
		})
	}

	_ = g.Wait()
	task.AppendHypotheses(hyps...)
}
