// Package report turns a finished session into a narrative research report.
// Synthesis is best-effort: a failed generation leaves the session without
// a report but never fails the session.
package report

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/core/common"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/core/session"
	"github.com/agenthands/sleuth/internal/llm"
)

const defaultPrompt = `You are writing the final report of an automated research investigation.

Research question: %s

Findings per investigated sub-question:
%s

Recurring entities and how often they appeared together:
%s

Write a concise report in markdown: answer the research question as far as the findings allow, name the key entities and their relationships, and state explicitly which angles stayed uncovered.

Respond with JSON in this format:
{"report": "<the markdown report>"}`

// chunkSize caps how many task sections go into one generation. Larger
// sessions are reduced map-reduce style, the intermediate summaries fed
// back through the same prompt.
const chunkSize = 8

type reportPayload struct {
	Report string `json:"report"`
}

type Synthesizer struct {
	client llm.Client
	log    *zap.Logger
	prompt string
}

func NewSynthesizer(client llm.Client, prompt string, log *zap.Logger) *Synthesizer {
	if prompt == "" {
		prompt = defaultPrompt
	}
	return &Synthesizer{client: client, log: log, prompt: prompt}
}

// Synthesize renders the report and attaches it to the session.
func (s *Synthesizer) Synthesize(ctx context.Context, sess *session.Session) {
	sections := make([]string, 0, len(sess.Tasks()))
	for _, t := range sess.Tasks() {
		sections = append(sections, taskSection(t))
	}

	entityBlock := entitySection(sess)

	text, err := s.reduce(ctx, sess.Question, sections, entityBlock)
	if err != nil {
		s.log.Warn("report synthesis failed",
			zap.String("session", sess.ID), zap.Error(err))
		return
	}
	sess.SetReport(text)
	s.log.Info("report synthesized",
		zap.String("session", sess.ID), zap.Int("length", len(text)))
}

func (s *Synthesizer) reduce(ctx context.Context, question string, sections []string, entityBlock string) (string, error) {
	if len(sections) <= chunkSize {
		return s.generate(ctx, question, strings.Join(sections, "\n\n"), entityBlock)
	}

	var intermediate []string
	for start := 0; start < len(sections); start += chunkSize {
		end := start + chunkSize
		if end > len(sections) {
			end = len(sections)
		}
		part, err := s.generate(ctx, question, strings.Join(sections[start:end], "\n\n"), entityBlock)
		if err != nil {
			// Partial coverage beats no report.
			continue
		}
		intermediate = append(intermediate, "## Partial findings\n"+part)
	}
	if len(intermediate) == 0 {
		return "", fmt.Errorf("all report chunks failed")
	}
	return s.reduce(ctx, question, intermediate, entityBlock)
}

func (s *Synthesizer) generate(ctx context.Context, question, findings, entityBlock string) (string, error) {
	prompt := fmt.Sprintf(s.prompt, question, findings, entityBlock)
	response, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate report: %w", err)
	}
	payload, err := common.ParseJSON[reportPayload](response)
	if err == nil && payload.Report != "" {
		return payload.Report, nil
	}
	// Some models answer in plain markdown despite the instruction.
	return response, nil
}

const sectionResultCap = 10

func taskSection(t *model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", t.Description)
	if t.FollowUpOf != "" {
		b.WriteString("(follow-up investigation)\n")
	}

	if last, ok := t.LastAssessment(); ok {
		if last.Assessment != "" {
			fmt.Fprintf(&b, "Assessment: %s\n", last.Assessment)
		}
		for _, gap := range last.GapsIdentified {
			fmt.Fprintf(&b, "Unfilled gap: %s\n", gap)
		}
	}

	results := t.Results.Snapshot()
	for i, res := range results {
		if i >= sectionResultCap {
			fmt.Fprintf(&b, "(%d further results omitted)\n", len(results)-sectionResultCap)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", res.Source, res.Title, res.URL)
	}
	if len(results) == 0 {
		b.WriteString("No results found.\n")
	}
	return b.String()
}

const entityCap = 25

func entitySection(sess *session.Session) string {
	var b strings.Builder
	for i, e := range sess.Tracker.Snapshot() {
		if i >= entityCap {
			break
		}
		fmt.Fprintf(&b, "- %s (%s), %d mentions\n", e.CanonicalName, e.Type, e.Mentions)
	}
	for _, c := range sess.Tracker.Clusters() {
		fmt.Fprintf(&b, "- cluster: %s\n", strings.Join(c.Names, ", "))
	}
	if b.Len() == 0 {
		return "(no recurring entities)"
	}
	return b.String()
}
