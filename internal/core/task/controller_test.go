package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/coverage"
	"github.com/agenthands/sleuth/internal/core/entity"
	"github.com/agenthands/sleuth/internal/core/hypothesis"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/oracle"
	"github.com/agenthands/sleuth/internal/source"
)

// scriptedOracle serves both hypothesis generation and assessment with
// canned responses, one per round.
type scriptedOracle struct {
	mu       sync.Mutex
	seeds    [][]oracle.HypothesisSeed
	seedsErr error
	verdicts []*oracle.Verdict

	hypCalls    int
	assessCalls int
	gapsSeen    [][]string
}

func (s *scriptedOracle) Hypotheses(_ context.Context, _ string, _ []oracle.SourceInfo, gaps []string, _ int) ([]oracle.HypothesisSeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gapsSeen = append(s.gapsSeen, gaps)
	if s.seedsErr != nil {
		return nil, s.seedsErr
	}
	out := s.seeds[s.hypCalls]
	s.hypCalls++
	return out, nil
}

func (s *scriptedOracle) Assess(_ context.Context, _ oracle.AssessRequest) (*oracle.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.verdicts[s.assessCalls]
	s.assessCalls++
	return v, nil
}

type fixedSource struct {
	id string

	mu       sync.Mutex
	calls    int
	distinct bool
}

func (f *fixedSource) ID() string             { return f.id }
func (f *fixedSource) Name() string           { return f.id }
func (f *fixedSource) SyntaxHint() string     { return "terms" }
func (f *fixedSource) IsRelevant(string) bool { return true }
func (f *fixedSource) Capabilities() source.Capabilities {
	return source.Capabilities{}
}

func (f *fixedSource) GenerateQuery(_ context.Context, _ model.QueryRequest) (model.Query, error) {
	return model.Query{"terms": "x"}, nil
}

// Search returns the same document on every call unless distinct is set,
// so repeat rounds exercise the duplicate path.
func (f *fixedSource) Search(_ context.Context, _ model.Query, _ int) ([]model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	content := "static finding"
	if f.distinct {
		content = fmt.Sprintf("finding %d", f.calls)
	}
	return []model.Result{{
		ID:          fmt.Sprintf("%s-%d", f.id, f.calls),
		Source:      f.id,
		Title:       "doc",
		Content:     content,
		Fingerprint: model.NewFingerprint(f.id, content),
	}}, nil
}

type noopExtractor struct{}

func (noopExtractor) Entities(context.Context, string) ([]model.Mention, error) {
	return nil, nil
}

func newTestController(t *testing.T, o *scriptedOracle, src source.Source, budget *model.Budget) (*Controller, *model.Task) {
	t.Helper()
	reg := source.NewRegistry(config.ConcurrencyConfig{}, zap.NewNop())
	require.NoError(t, reg.Register(src))
	cfg := config.SearchConfig{MaxPhases: 1, ResultLimit: 5, SourceTimeoutSeconds: 5, InitialBackoffMillis: 1, MaxBackoffMillis: 1}

	engine := hypothesis.NewEngine(o, reg, cfg, zap.NewNop())
	assessor := coverage.NewAssessor(o, budget, zap.NewNop())
	tracker := entity.NewTracker(noopExtractor{}, zap.NewNop())
	task := model.NewTask("who funds the think tank", 1)
	return NewController(task, engine, assessor, tracker, reg, budget, zap.NewNop()), task
}

func seedsFor(n int) []oracle.HypothesisSeed {
	out := make([]oracle.HypothesisSeed, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, oracle.HypothesisSeed{
			Statement:        fmt.Sprintf("angle %d", i),
			CandidateSources: []string{"probe"},
		})
	}
	return out
}

func TestControllerStopsAfterSingleRoundOnStopVerdict(t *testing.T) {
	o := &scriptedOracle{
		seeds:    [][]oracle.HypothesisSeed{seedsFor(2)},
		verdicts: []*oracle.Verdict{{Decision: model.DecisionStop, Assessment: "saturated"}},
	}
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe", distinct: true}, budget)

	followUps := ctrl.Run(context.Background())

	assert.Equal(t, model.TaskDone, task.State())
	assert.Empty(t, followUps)
	history := task.CoverageHistory()
	require.Len(t, history, 1)
	assert.Equal(t, model.DecisionStop, history[0].Decision)
	assert.Len(t, task.Hypotheses(), 2)
	assert.Equal(t, 1, o.assessCalls)
}

func TestControllerContinueFeedsGapsIntoNextRound(t *testing.T) {
	o := &scriptedOracle{
		seeds: [][]oracle.HypothesisSeed{seedsFor(2), seedsFor(2)},
		verdicts: []*oracle.Verdict{
			{Decision: model.DecisionContinue, Gaps: []string{"nothing on the board members"}},
			{Decision: model.DecisionStop},
		},
	}
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe", distinct: true}, budget)

	ctrl.Run(context.Background())

	assert.Equal(t, model.TaskDone, task.State())
	require.Len(t, task.CoverageHistory(), 2)
	require.Len(t, o.gapsSeen, 2)
	assert.Empty(t, o.gapsSeen[0])
	assert.Equal(t, []string{"nothing on the board members"}, o.gapsSeen[1])
}

func TestControllerCountsDuplicatesAcrossRounds(t *testing.T) {
	o := &scriptedOracle{
		seeds: [][]oracle.HypothesisSeed{seedsFor(2), seedsFor(2)},
		verdicts: []*oracle.Verdict{
			{Decision: model.DecisionContinue},
			{Decision: model.DecisionStop},
		},
	}
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	// Same document every call: round one dedups within the round, round
	// two is all duplicates.
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe"}, budget)

	ctrl.Run(context.Background())

	require.Len(t, task.CoverageHistory(), 2)
	history := task.CoverageHistory()
	first := history[0].Facts
	second := history[1].Facts
	assert.Equal(t, 1, first.ResultsNew)
	assert.Equal(t, 1, first.ResultsDuplicate)
	assert.Equal(t, 0, second.ResultsNew)
	assert.Equal(t, 2, second.ResultsDuplicate)
	assert.Equal(t, 1, task.Results.Len())
}

func TestControllerForcedStopWhenHypothesisBudgetExhausted(t *testing.T) {
	o := &scriptedOracle{
		seeds:    [][]oracle.HypothesisSeed{seedsFor(2)},
		verdicts: nil,
	}
	// Two hypotheses per task: the first round consumes the whole budget,
	// so the assessor must stop without an oracle call.
	budget := model.NewBudget(5, time.Hour, 2, 2, true)
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe", distinct: true}, budget)

	ctrl.Run(context.Background())

	assert.Equal(t, model.TaskDone, task.State())
	history := task.CoverageHistory()
	require.Len(t, history, 1)
	assert.True(t, history[0].Forced)
	assert.Equal(t, model.DecisionStop, history[0].Decision)
	assert.Equal(t, 0, o.assessCalls)
}

func TestControllerRecordsForcedStopWhenGenerationFails(t *testing.T) {
	o := &scriptedOracle{seedsErr: errors.New("provider down")}
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe"}, budget)

	followUps := ctrl.Run(context.Background())

	assert.Equal(t, model.TaskDone, task.State())
	assert.Empty(t, followUps)
	history := task.CoverageHistory()
	require.Len(t, history, 1)
	assert.True(t, history[0].Forced)
	assert.Contains(t, history[0].Assessment, "hypothesis generation failed")
}

func TestControllerProposesCappedFollowUpsFromTerminalGaps(t *testing.T) {
	o := &scriptedOracle{
		seeds: [][]oracle.HypothesisSeed{seedsFor(2)},
		verdicts: []*oracle.Verdict{{
			Decision: model.DecisionStop,
			Gaps:     []string{"gap a", "gap b", "gap c", "gap d", "gap e"},
		}},
	}
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	ctrl, task := newTestController(t, o, &fixedSource{id: "probe", distinct: true}, budget)

	followUps := ctrl.Run(context.Background())

	require.Len(t, followUps, followUpCap)
	for _, f := range followUps {
		assert.Equal(t, task.ID, f.FollowUpOf)
		assert.Equal(t, task.Priority+1, f.Priority)
	}
	assert.Equal(t, "gap a", followUps[0].Description)
}

func TestRoundSinkDigestTruncatesLongContent(t *testing.T) {
	tracker := entity.NewTracker(noopExtractor{}, zap.NewNop())
	task := model.NewTask("t", 1)
	sink := newRoundSink(task, tracker)

	long := make([]rune, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, 'x')
	}
	sink.Ingest(context.Background(), model.Result{
		ID:          "r1",
		Source:      "web-search",
		Title:       "doc",
		Content:     string(long),
		Fingerprint: "fp1",
	})

	stats := sink.stats()
	require.Len(t, stats.Digest, 1)
	assert.LessOrEqual(t, len([]rune(stats.Digest[0])), digestContentRunes+len("[web-search] doc: ")+1)
	assert.Contains(t, stats.Digest[0], "…")
}
