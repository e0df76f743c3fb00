// Package rss adapts a set of RSS/Atom feeds to the uniform source
// contract. Queries are plain keywords matched client-side against fetched
// feed items, since feeds cannot be queried server-side.
package rss

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/source"
)

const sourceID = "rss-news"

type Source struct {
	feeds  []config.FeedConfig
	parser *gofeed.Parser
	gen    source.QueryGenerator
}

func New(feeds []config.FeedConfig, gen source.QueryGenerator) *Source {
	return &Source{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		gen:    gen,
	}
}

func (s *Source) ID() string   { return sourceID }
func (s *Source) Name() string { return "News feeds (RSS/Atom)" }

func (s *Source) SyntaxHint() string {
	return `plain keywords in a "terms" parameter, space separated; matched against headline and summary text`
}

// IsRelevant is true whenever feeds are configured. Press coverage is a
// plausible evidence channel for almost any investigative question.
func (s *Source) IsRelevant(taskDescription string) bool {
	return len(s.feeds) > 0
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
		TypicalLatency:     3 * time.Second,
	}
}

func (s *Source) Search(ctx context.Context, q model.Query, limit int) ([]model.Result, error) {
	terms := strings.Fields(strings.ToLower(q["terms"]))
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: rss query needs a non-empty \"terms\" parameter", source.ErrBadQuery)
	}

	var results []model.Result
	for _, fc := range s.feeds {
		feed, err := s.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			// One dead feed should not sink the others.
			continue
		}
		for _, item := range feed.Items {
			if len(results) >= limit {
				return results, nil
			}
			if !matches(item, terms) {
				continue
			}
			results = append(results, normalize(fc.Name, item))
		}
	}
	return results, nil
}

// matches requires every term to appear in the title or description.
func matches(item *gofeed.Item, terms []string) bool {
	haystack := strings.ToLower(item.Title + " " + item.Description)
	for _, t := range terms {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

func normalize(feedName string, item *gofeed.Item) model.Result {
	content := item.Content
	if content == "" {
		content = item.Description
	}

	published := time.Time{}
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return model.Result{
		ID:          uuid.New().String(),
		Source:      sourceID,
		URL:         item.Link,
		Title:       fmt.Sprintf("[%s] %s", feedName, item.Title),
		Content:     content,
		PublishedAt: published,
		Fingerprint: model.NewFingerprint(sourceID, item.Link+"\n"+content),
	}
}
