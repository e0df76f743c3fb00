package hypothesis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/oracle"
	"github.com/agenthands/sleuth/internal/source"
)

type mockOracle struct {
	seeds []oracle.HypothesisSeed
	err   error

	gotSources []oracle.SourceInfo
	gotGaps    []string
	gotMax     int
}

func (m *mockOracle) Hypotheses(_ context.Context, _ string, sources []oracle.SourceInfo, gaps []string, max int) ([]oracle.HypothesisSeed, error) {
	m.gotSources = sources
	m.gotGaps = gaps
	m.gotMax = max
	return m.seeds, m.err
}

type stubSource struct {
	id      string
	results []model.Result
	err     error

	mu    sync.Mutex
	calls int
}

func (s *stubSource) ID() string             { return s.id }
func (s *stubSource) Name() string           { return s.id }
func (s *stubSource) SyntaxHint() string     { return "terms" }
func (s *stubSource) IsRelevant(string) bool { return true }
func (s *stubSource) Capabilities() source.Capabilities {
	return source.Capabilities{}
}

func (s *stubSource) GenerateQuery(_ context.Context, _ model.QueryRequest) (model.Query, error) {
	return model.Query{"terms": "anything"}, nil
}

func (s *stubSource) Search(_ context.Context, _ model.Query, _ int) ([]model.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.results, s.err
}

type nullSink struct{}

func (nullSink) Ingest(context.Context, model.Result) {}

func newTestEngine(t *testing.T, o Oracle, sources ...source.Source) (*Engine, *source.Registry) {
	t.Helper()
	reg := source.NewRegistry(config.ConcurrencyConfig{}, zap.NewNop())
	for _, s := range sources {
		require.NoError(t, reg.Register(s))
	}
	cfg := config.SearchConfig{MaxPhases: 1, ResultLimit: 5, SourceTimeoutSeconds: 5, InitialBackoffMillis: 1, MaxBackoffMillis: 1}
	return NewEngine(o, reg, cfg, zap.NewNop()), reg
}

func TestGenerateErrorsWithoutRelevantSources(t *testing.T) {
	engine, _ := newTestEngine(t, &mockOracle{})

	_, err := engine.Generate(context.Background(), model.NewTask("t", 1), nil, nil, 5)

	assert.Error(t, err)
}

func TestGenerateErrorsWithoutHypothesisBudget(t *testing.T) {
	engine, _ := newTestEngine(t, &mockOracle{}, &stubSource{id: "a"})

	_, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, nil, 0)

	assert.Error(t, err)
}

func TestGenerateClampsMaxToRemainingBudget(t *testing.T) {
	mo := &mockOracle{seeds: []oracle.HypothesisSeed{
		{Statement: "h1", CandidateSources: []string{"a"}},
	}}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"})

	_, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, nil, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, mo.gotMax)
}

func TestGeneratePassesGapsToOracle(t *testing.T) {
	mo := &mockOracle{seeds: []oracle.HypothesisSeed{
		{Statement: "h1", CandidateSources: []string{"a"}},
	}}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"})
	gaps := []string{"no coverage of the 2019 filings"}

	_, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, gaps, 5)

	require.NoError(t, err)
	assert.Equal(t, gaps, mo.gotGaps)
}

func TestGenerateFiltersUnknownCandidateSources(t *testing.T) {
	mo := &mockOracle{seeds: []oracle.HypothesisSeed{
		{Statement: "h1", CandidateSources: []string{"a", "made-up"}},
	}}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"})

	hyps, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, nil, 5)

	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.Equal(t, []string{"a"}, hyps[0].CandidateSources)
}

func TestGenerateFallsBackToAllRelevantWhenOracleNamesOnlyUnknowns(t *testing.T) {
	mo := &mockOracle{seeds: []oracle.HypothesisSeed{
		{Statement: "h1", CandidateSources: []string{"made-up"}},
	}}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"}, &stubSource{id: "b"})

	hyps, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a", "b"}, nil, 5)

	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, hyps[0].CandidateSources)
}

func TestGenerateSelectsDiverseSubsetWhenOracleOverProposes(t *testing.T) {
	seeds := make([]oracle.HypothesisSeed, 0, 7)
	for i := 0; i < 7; i++ {
		seeds = append(seeds, oracle.HypothesisSeed{Statement: "h", CandidateSources: []string{"a"}})
	}
	mo := &mockOracle{seeds: seeds}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"})

	hyps, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, nil, 10)

	require.NoError(t, err)
	assert.Len(t, hyps, maxPerRound)
}

func TestGeneratePropagatesOracleError(t *testing.T) {
	mo := &mockOracle{err: errors.New("provider down")}
	engine, _ := newTestEngine(t, mo, &stubSource{id: "a"})

	_, err := engine.Generate(context.Background(), model.NewTask("t", 1), []string{"a"}, nil, 5)

	assert.Error(t, err)
}

func TestExecuteFillsSummariesAndAppendsAfterBarrier(t *testing.T) {
	good := &stubSource{id: "good", results: []model.Result{
		{ID: "r1", Source: "good", Fingerprint: model.NewFingerprint("good", "r1")},
	}}
	dead := &stubSource{id: "dead", err: source.ErrNoCredential}
	engine, _ := newTestEngine(t, &mockOracle{}, good, dead)

	task := model.NewTask("t", 1)
	hyps := []*model.Hypothesis{
		{ID: "h1", Statement: "both sources", CandidateSources: []string{"good", "dead"}},
		{ID: "h2", Statement: "dead only", CandidateSources: []string{"dead"}},
	}

	engine.Execute(context.Background(), task, hyps, nullSink{})

	require.Len(t, task.Hypotheses(), 2)
	assert.Equal(t, 1, hyps[0].Summary.ResultsCount)
	assert.Equal(t, []string{"good"}, hyps[0].Summary.SourcesUsed)
	assert.False(t, hyps[0].Summary.Failed)

	assert.Equal(t, 0, hyps[1].Summary.ResultsCount)
	assert.True(t, hyps[1].Summary.Failed)
}

func TestOverlapIsJaccard(t *testing.T) {
	assert.Equal(t, 1.0, overlap([]string{"a", "b"}, []string{"a", "b"}))
	assert.Equal(t, 0.0, overlap([]string{"a"}, []string{"b"}))
	assert.InDelta(t, 1.0/3.0, overlap([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}
