// Package web adapts a scraped HTML web search (DuckDuckGo's no-JS results
// page) to the uniform source contract.
package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

const (
	sourceID  = "web-search"
	endpoint  = "https://html.duckduckgo.com/html/"
	userAgent = "sleuth/1.0 (research engine)"
)

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
func (s *Source) Name() string { return "Web search (scraped)" }

func (s *Source) SyntaxHint() string {
	return `a "q" parameter with a web search query; operators like "site:" and quoted phrases are supported`
}

// IsRelevant always answers yes: general web search can serve any task.
func (s *Source) IsRelevant(taskDescription string) bool { return true }

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
		TypicalLatency:     2 * time.Second,
	}
}

func (s *Source) Search(ctx context.Context, q model.Query, limit int) ([]model.Result, error) {
	query := strings.TrimSpace(q["q"])
	if query == "" {
		return nil, fmt.Errorf("%w: web query needs a non-empty \"q\" parameter", source.ErrBadQuery)
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &source.StatusError{Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var results []model.Result
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		link := sel.Find("a.result__a")
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		if title == "" && snippet == "" {
			return true
		}
		results = append(results, model.Result{
			ID:          uuid.New().String(),
			Source:      sourceID,
			URL:         resolveRedirect(href),
			Title:       title,
			Content:     snippet,
			Fingerprint: model.NewFingerprint(sourceID, href+"\n"+snippet),
		})
		return true
	})

	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
