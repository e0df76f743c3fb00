// Package oracle wraps the LLM client in the fixed-schema calls the engine
// makes: decomposition, hypothesis generation, query generation, and
// coverage assessment. Responses that do not conform to the expected schema
// are errors; generative calls get one stricter re-prompt, the assessment
// call never does.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/common"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/llm"
)

// SourceInfo is the per-source context given to hypothesis generation.
type SourceInfo struct {
	ID   string
	Name string
	Hint string
}

// HypothesisSeed is one oracle-proposed hypothesis before it becomes owned
// engine state.
type HypothesisSeed struct {
	Statement        string   `json:"statement"`
	CandidateSources []string `json:"candidate_sources"`
}

// AssessRequest carries engine-computed facts plus a digest of the round's
// new results. Facts are authored by the engine only.
type AssessRequest struct {
	TaskID          string
	TaskDescription string
	Facts           model.CoverageFacts
	Digest          []string
}

// Verdict is the assessment response the task state machine reacts to.
type Verdict struct {
	Decision   model.Decision
	Assessment string
	Gaps       []string
}

type Oracle struct {
	client        llm.Client
	log           *zap.Logger
	timeout       time.Duration
	assessTimeout time.Duration
	prompts       config.Prompts
}

func New(client llm.Client, cfg config.OracleConfig, prompts config.Prompts, log *zap.Logger) *Oracle {
	return &Oracle{
		client:        client,
		log:           log,
		timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		assessTimeout: time.Duration(cfg.AssessTimeoutSeconds) * time.Second,
		prompts:       prompts,
	}
}

func (o *Oracle) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return o.client.Generate(ctx, prompt)
}

// callJSON runs a generative call and parses the response into T. On a
// parse failure it re-prompts once with a stricter instruction.
func callJSON[T any](o *Oracle, ctx context.Context, prompt string) (T, error) {
	var zero T

	resp, err := o.generate(ctx, prompt, o.timeout)
	if err != nil {
		return zero, err
	}

	result, perr := common.ParseJSON[T](resp)
	if perr == nil {
		return result, nil
	}

	o.log.Warn("oracle response failed schema parse, re-prompting once", zap.Error(perr))
	strict := prompt + "\n\nYour previous reply could not be parsed. Respond with ONLY the JSON object described above. No prose, no code fences."
	resp, err = o.generate(ctx, strict, o.timeout)
	if err != nil {
		return zero, err
	}
	return common.ParseJSON[T](resp)
}

type decomposeResponse struct {
	Tasks []model.TaskSeed `json:"tasks"`
}

// Decompose breaks the root question into independent sub-questions.
func (o *Oracle) Decompose(ctx context.Context, question string, maxTasks int) ([]model.TaskSeed, error) {
	tmpl := o.prompts.Decompose
	if tmpl == "" {
		tmpl = defaultDecomposePrompt
	}
	prompt := fmt.Sprintf(tmpl, question, maxTasks)

	resp, err := callJSON[decomposeResponse](o, ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition failed: %w", err)
	}
	if len(resp.Tasks) == 0 {
		return nil, fmt.Errorf("decomposition returned no tasks")
	}
	if len(resp.Tasks) > maxTasks {
		resp.Tasks = resp.Tasks[:maxTasks]
	}
	return resp.Tasks, nil
}

type hypothesesResponse struct {
	Hypotheses []HypothesisSeed `json:"hypotheses"`
}

// Hypotheses proposes competing evidence-location hypotheses for a task.
// Gaps from a previous assessment, when present, seed the next round.
func (o *Oracle) Hypotheses(ctx context.Context, taskDescription string, sources []SourceInfo, gaps []string, max int) ([]HypothesisSeed, error) {
	var catalog strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&catalog, "%s: %s (%s)\n", s.ID, s.Name, s.Hint)
	}

	gapBlock := ""
	if len(gaps) > 0 {
		gapBlock = "\nA previous round identified these unfilled gaps; target them:\n- " +
			strings.Join(gaps, "\n- ") + "\n"
	}

	tmpl := o.prompts.Hypotheses
	if tmpl == "" {
		tmpl = defaultHypothesesPrompt
	}
	prompt := fmt.Sprintf(tmpl, taskDescription, catalog.String(), gapBlock, max)

	resp, err := callJSON[hypothesesResponse](o, ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("hypothesis generation failed: %w", err)
	}
	if len(resp.Hypotheses) == 0 {
		return nil, fmt.Errorf("hypothesis generation returned no hypotheses")
	}
	return resp.Hypotheses, nil
}

type queryResponse struct {
	Query map[string]json.RawMessage `json:"query"`
}

// SourceQuery generates or reformulates one source-specific query. The
// request carries the previous attempt's failure on phases after the first.
func (o *Oracle) SourceQuery(ctx context.Context, req model.QueryRequest) (model.Query, error) {
	failBlock := ""
	if req.Phase > 1 {
		prev, _ := json.Marshal(req.PreviousQuery)
		failBlock = fmt.Sprintf("\nPhase %d: the previous query %s failed (%s). Reformulate it substantially; do not repeat it.\n",
			req.Phase, prev, req.PreviousFailure)
	}

	tmpl := o.prompts.Query
	if tmpl == "" {
		tmpl = defaultQueryPrompt
	}
	prompt := fmt.Sprintf(tmpl, req.SourceName, req.SyntaxHint, req.TaskDescription, req.Hypothesis, failBlock)

	resp, err := callJSON[queryResponse](o, ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("query generation for %s failed: %w", req.SourceID, err)
	}
	if len(resp.Query) == 0 {
		return nil, fmt.Errorf("query generation for %s returned no parameters", req.SourceID)
	}

	q := make(model.Query, len(resp.Query))
	for k, raw := range resp.Query {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			q[k] = s
		} else {
			q[k] = strings.Trim(string(raw), `"`)
		}
	}
	return q, nil
}

type assessResponse struct {
	Decision       string   `json:"decision"`
	Assessment     string   `json:"assessment"`
	GapsIdentified []string `json:"gaps_identified"`
}

// Assess renders the qualitative continue/stop verdict from engine-supplied
// facts. A schema or provider failure is returned to the caller as-is; the
// assessor falls back to a deterministic stop rather than retrying.
func (o *Oracle) Assess(ctx context.Context, req AssessRequest) (*Verdict, error) {
	factsJSON, err := json.MarshalIndent(req.Facts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal facts: %w", err)
	}

	digest := "(no new results this round)"
	if len(req.Digest) > 0 {
		digest = "- " + strings.Join(req.Digest, "\n- ")
	}

	tmpl := o.prompts.Assess
	if tmpl == "" {
		tmpl = defaultAssessPrompt
	}
	prompt := fmt.Sprintf(tmpl, req.TaskDescription, string(factsJSON), digest)

	resp, err := o.generate(ctx, prompt, o.assessTimeout)
	if err != nil {
		return nil, err
	}

	parsed, err := common.ParseJSON[assessResponse](resp)
	if err != nil {
		return nil, err
	}

	switch model.Decision(strings.ToLower(parsed.Decision)) {
	case model.DecisionContinue, model.DecisionStop:
	default:
		return nil, fmt.Errorf("assessment decision %q is not continue or stop", parsed.Decision)
	}

	return &Verdict{
		Decision:   model.Decision(strings.ToLower(parsed.Decision)),
		Assessment: parsed.Assessment,
		Gaps:       parsed.GapsIdentified,
	}, nil
}

type entitiesResponse struct {
	Entities []model.Mention `json:"entities"`
}

// Entities extracts named entities from result content. Best-effort; the
// entity tracker swallows failures.
func (o *Oracle) Entities(ctx context.Context, text string) ([]model.Mention, error) {
	tmpl := o.prompts.Entities
	if tmpl == "" {
		tmpl = defaultEntitiesPrompt
	}
	const maxRunes = 6000
	if runes := []rune(text); len(runes) > maxRunes {
		text = string(runes[:maxRunes])
	}
	prompt := fmt.Sprintf(tmpl, text)

	resp, err := callJSON[entitiesResponse](o, ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}
	return resp.Entities, nil
}
