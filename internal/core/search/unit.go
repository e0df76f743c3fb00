// Package search implements the adaptive search unit: the atomic retry loop
// for one (source, query-intent) pair. A unit issues a query, classifies
// the outcome, and may reformulate and retry up to a fixed phase ceiling.
// Results are emitted to the sink the moment they arrive, never held until
// the unit finishes.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

// Sink receives results as they arrive. Implementations must be safe for
// concurrent use and idempotent per fingerprint.
type Sink interface {
	Ingest(ctx context.Context, res model.Result)
}

// Outcome summarizes a finished unit for the owning hypothesis.
type Outcome struct {
	SourceID  string
	Results   int
	Succeeded bool
}

type Unit struct {
	src      source.Source
	registry *source.Registry
	cfg      config.SearchConfig
	log      *zap.Logger
}

func NewUnit(src source.Source, registry *source.Registry, cfg config.SearchConfig, log *zap.Logger) *Unit {
	return &Unit{src: src, registry: registry, cfg: cfg, log: log}
}

// Run drives the unit to completion. Every trial is appended to the task's
// audit trail. Failures are absorbed into the outcome; Run never returns an
// error to the caller.
func (u *Unit) Run(ctx context.Context, task *model.Task, hyp *model.Hypothesis, sink Sink) Outcome {
	outcome := Outcome{SourceID: u.src.ID()}

	var prevQuery model.Query
	prevFailure := ""

	for phase := 1; phase <= u.cfg.MaxPhases; phase++ {
		if ctx.Err() != nil {
			return outcome
		}

		query, err := u.src.GenerateQuery(ctx, model.QueryRequest{
			TaskDescription: task.Description,
			Hypothesis:      hyp.Statement,
			Phase:           phase,
			PreviousQuery:   prevQuery,
			PreviousFailure: prevFailure,
		})
		if err != nil {
			// The oracle already re-prompted once internally; without a
			// query there is nothing left to retry.
			task.RecordAttempt(model.SearchAttempt{
				TaskID:       task.ID,
				HypothesisID: hyp.ID,
				SourceID:     u.src.ID(),
				Phase:        phase,
				Outcome:      model.AttemptError,
				Error:        "query generation: " + err.Error(),
				At:           time.Now(),
			})
			return outcome
		}

		results, err := u.search(ctx, query)

		attempt := model.SearchAttempt{
			TaskID:       task.ID,
			HypothesisID: hyp.ID,
			SourceID:     u.src.ID(),
			Query:        query,
			Phase:        phase,
			At:           time.Now(),
		}

		switch {
		case err == nil && len(results) > 0:
			for _, res := range results {
				sink.Ingest(ctx, res)
				attempt.ResultIDs = append(attempt.ResultIDs, res.ID)
			}
			attempt.Outcome = model.AttemptSuccess
			task.RecordAttempt(attempt)
			u.registry.RecordOutcome(u.src.ID(), true)
			outcome.Results = len(results)
			outcome.Succeeded = true
			return outcome

		case err == nil:
			attempt.Outcome = model.AttemptEmpty
			task.RecordAttempt(attempt)
			u.registry.RecordOutcome(u.src.ID(), true)
			prevFailure = "query returned no results"

		default:
			attempt.Outcome = model.AttemptError
			attempt.Error = err.Error()
			task.RecordAttempt(attempt)
			u.registry.RecordOutcome(u.src.ID(), false)
			prevFailure = err.Error()

			switch source.Classify(err) {
			case source.ClassPermanent:
				u.log.Debug("permanent source error, unit terminated",
					zap.String("source", u.src.ID()), zap.Error(err))
				return outcome
			case source.ClassRateLimited:
				delay := backoffFor(
					time.Duration(u.cfg.InitialBackoffMillis)*time.Millisecond,
					time.Duration(u.cfg.MaxBackoffMillis)*time.Millisecond,
					phase-1)
				u.log.Debug("rate limited, backing off",
					zap.String("source", u.src.ID()), zap.Duration("delay", delay))
				if sleep(ctx, delay) != nil {
					return outcome
				}
			}
		}

		prevQuery = query
	}

	return outcome
}

// search performs one rate-limited, per-call-timeout query against the
// source.
func (u *Unit) search(ctx context.Context, query model.Query) ([]model.Result, error) {
	release, err := u.registry.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(u.cfg.SourceTimeoutSeconds)*time.Second)
	defer cancel()

	return u.src.Search(callCtx, query, u.cfg.ResultLimit)
}
