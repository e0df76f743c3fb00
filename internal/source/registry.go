package source

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/agenthands/sleuth/internal/config"
)

// Stats is the per-source reliability record. Heuristic signal only; the
// engine never skips a source mid-round because of it.
type Stats struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Registry holds the registered sources. It performs no ranking: relevance
// is each source's own boolean answer. Registration happens at startup;
// after that the source set is read-only. The registry also owns the global
// ceilings on simultaneous and per-second source calls.
type Registry struct {
	log     *zap.Logger
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu      sync.Mutex
	sources map[string]Source
	order   []string
	stats   map[string]*Stats
}

func NewRegistry(cfg config.ConcurrencyConfig, log *zap.Logger) *Registry {
	inFlight := int64(cfg.GlobalSourceCalls)
	if inFlight <= 0 {
		inFlight = 8
	}
	perSecond := cfg.SourceCallsPerSecond
	if perSecond <= 0 {
		perSecond = 4
	}
	return &Registry{
		log:     log,
		sem:     semaphore.NewWeighted(inFlight),
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(inFlight)),
		sources: make(map[string]Source),
		stats:   make(map[string]*Stats),
	}
}

func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[s.ID()]; exists {
		return fmt.Errorf("source %q already registered", s.ID())
	}
	r.sources[s.ID()] = s
	r.order = append(r.order, s.ID())
	r.stats[s.ID()] = &Stats{}
	r.log.Info("registered source", zap.String("source", s.ID()))
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

func (r *Registry) Get(id string) (Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	return s, ok
}

// All returns the sources in registration order.
func (r *Registry) All() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// ListRelevant asks every source whether it can serve the task. Filtering
// only; a source that says yes and later fails is a per-attempt failure.
func (r *Registry) ListRelevant(taskDescription string) []string {
	var ids []string
	for _, s := range r.All() {
		if s.IsRelevant(taskDescription) {
			ids = append(ids, s.ID())
		}
	}
	return ids
}

func (r *Registry) Capabilities(id string) (Capabilities, bool) {
	s, ok := r.Get(id)
	if !ok {
		return Capabilities{}, false
	}
	return s.Capabilities(), true
}

// Acquire blocks until a global source-call slot and a rate token are
// available. The returned release must be called when the call finishes.
func (r *Registry) Acquire(ctx context.Context) (func(), error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.sem.Release(1)
		return nil, err
	}
	return func() { r.sem.Release(1) }, nil
}

// RecordOutcome updates the reliability counters for a source.
func (r *Registry) RecordOutcome(id string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, exists := r.stats[id]
	if !exists {
		return
	}
	if ok {
		st.Succeeded++
	} else {
		st.Failed++
	}
}

// Reliability returns a copy of the per-source counters.
func (r *Registry) Reliability() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.stats))
	for id, st := range r.stats {
		out[id] = *st
	}
	return out
}
