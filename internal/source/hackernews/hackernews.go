// Package hackernews adapts the Algolia Hacker News search API to the
// uniform source contract.
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

const (
	sourceID = "hackernews"
	baseURL  = "https://hn.algolia.com/api/v1/search"
)

var relevanceHints = []string{
	"tech", "software", "startup", "internet", "security", "data",
	"company", "platform", "crypto", "ai", "privacy", "leak", "breach",
}

type Source struct {
	httpClient *http.Client
	gen        source.QueryGenerator
}

func New(httpClient *http.Client, gen source.QueryGenerator) *Source {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Source{httpClient: httpClient, gen: gen}
}

func (s *Source) ID() string   { return sourceID }
func (s *Source) Name() string { return "Hacker News (Algolia search)" }

func (s *Source) SyntaxHint() string {
	return `a "query" parameter with plain search words; optionally "tags" set to "story" or "comment"`
}

// IsRelevant self-reports based on a crude topical heuristic: HN surfaces
// evidence for technology-adjacent questions only.
func (s *Source) IsRelevant(taskDescription string) bool {
	desc := strings.ToLower(taskDescription)
	for _, hint := range relevanceHints {
		if strings.Contains(desc, hint) {
			return true
		}
	}
	return false
}

func (s *Source) GenerateQuery(ctx context.Context, req model.QueryRequest) (model.Query, error) {
	req.SourceID = sourceID
	req.SourceName = s.Name()
	req.SyntaxHint = s.SyntaxHint()
	return s.gen.SourceQuery(ctx, req)
}

func (s *Source) Capabilities() source.Capabilities {
	return source.Capabilities{
		RequiresCredential: false,
		CostEstimate:       0,
		TypicalLatency:     time.Second,
	}
}

type algoliaHit struct {
	ObjectID  string `json:"objectID"`
	Title     string `json:"title"`
	StoryText string `json:"story_text"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

func (s *Source) Search(ctx context.Context, q model.Query, limit int) ([]model.Result, error) {
	query := strings.TrimSpace(q["query"])
	if query == "" {
		return nil, fmt.Errorf("%w: hackernews query needs a non-empty \"query\" parameter", source.ErrBadQuery)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("hitsPerPage", fmt.Sprintf("%d", limit))
	if tags := q["tags"]; tags != "" {
		params.Set("tags", tags)
	} else {
		params.Set("tags", "story")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &source.StatusError{Code: resp.StatusCode}
	}

	var parsed algoliaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode hackernews response: %w", err)
	}

	results := make([]model.Result, 0, len(parsed.Hits))
	for _, hit := range parsed.Hits {
		if len(results) >= limit {
			break
		}
		results = append(results, normalize(hit))
	}
	return results, nil
}

func normalize(hit algoliaHit) model.Result {
	link := hit.URL
	if link == "" {
		link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
	}
	content := hit.StoryText
	if content == "" {
		content = hit.Title
	}

	published, _ := time.Parse(time.RFC3339, hit.CreatedAt)

	return model.Result{
		ID:          uuid.New().String(),
		Source:      sourceID,
		URL:         link,
		Title:       hit.Title,
		Content:     content,
		PublishedAt: published,
		Fingerprint: model.NewFingerprint(sourceID, hit.ObjectID+"\n"+content),
	}
}
