package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/core/entity"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/core/session"
)

type stubClient struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (c *stubClient) Generate(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

type noopExtractor struct{}

func (noopExtractor) Entities(context.Context, string) ([]model.Mention, error) {
	return nil, nil
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	budget := model.NewBudget(5, time.Hour, 2, 10, true)
	tracker := entity.NewTracker(noopExtractor{}, zap.NewNop())
	return session.New("who funds the think tank", budget, tracker)
}

func taskWithResult(description string) *model.Task {
	task := model.NewTask(description, 1)
	task.Results.Add(model.Result{
		ID:          "r1",
		Source:      "web-search",
		Title:       "Annual disclosure",
		URL:         "https://example.com/disclosure",
		Fingerprint: "fp1",
	})
	task.AppendAssessment(model.CoverageAssessment{
		TaskID:         task.ID,
		Decision:       model.DecisionStop,
		Assessment:     "funding trail covered",
		GapsIdentified: []string{"no coverage before 2015"},
	})
	return task
}

func TestSynthesizeAttachesParsedReport(t *testing.T) {
	client := &stubClient{response: `{"report": "# Findings\nThe trail leads offshore."}`}
	s := NewSynthesizer(client, "", zap.NewNop())
	sess := testSession(t)

	s.Synthesize(context.Background(), sess)

	assert.Equal(t, "# Findings\nThe trail leads offshore.", sess.Report())
}

func TestSynthesizePromptCarriesFindingsAndGaps(t *testing.T) {
	client := &stubClient{response: `{"report": "ok"}`}
	s := NewSynthesizer(client, "", zap.NewNop())
	sess := testSession(t)
	// Sessions expose no task mutator outside the orchestrator, so the
	// prompt content is asserted through the section builder directly.
	section := taskSection(taskWithResult("trace the funding"))

	assert.Contains(t, section, "trace the funding")
	assert.Contains(t, section, "funding trail covered")
	assert.Contains(t, section, "Unfilled gap: no coverage before 2015")
	assert.Contains(t, section, "Annual disclosure")

	s.Synthesize(context.Background(), sess)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "who funds the think tank")
}

func TestSynthesizeFallsBackToRawMarkdown(t *testing.T) {
	client := &stubClient{response: "# Findings\nPlain markdown, no JSON."}
	s := NewSynthesizer(client, "", zap.NewNop())
	sess := testSession(t)

	s.Synthesize(context.Background(), sess)

	assert.Equal(t, "# Findings\nPlain markdown, no JSON.", sess.Report())
}

func TestSynthesizeLeavesNoReportOnFailure(t *testing.T) {
	client := &stubClient{err: errors.New("provider down")}
	s := NewSynthesizer(client, "", zap.NewNop())
	sess := testSession(t)

	s.Synthesize(context.Background(), sess)

	assert.Empty(t, sess.Report())
}

func TestTaskSectionNotesEmptyTasks(t *testing.T) {
	section := taskSection(model.NewTask("dry angle", 1))

	assert.Contains(t, section, "No results found.")
}
