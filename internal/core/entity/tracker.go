// Package entity tracks recurring actors across results. Entities are
// merged by case-insensitive canonical name within a session; co-occurrence
// edges accumulate monotonically and are never pruned.
package entity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/sleuth/internal/core/model"
)

// Extractor is the external extraction collaborator. Best-effort: failures
// degrade entity tracking but never fail a result's ingestion.
type Extractor interface {
	Entities(ctx context.Context, text string) ([]model.Mention, error)
}

type record struct {
	id          string
	displayName string
	typ         string
	firstSeen   string
	mentions    int
	co          map[string]struct{}
}

// Tracker is the session-wide co-occurrence index. Tasks share one tracker;
// all graph mutation happens under a single lock so concurrent result
// ingestion cannot race on an entity's edge set.
type Tracker struct {
	log       *zap.Logger
	extractor Extractor

	mu    sync.Mutex
	byKey map[string]*record
}

func NewTracker(extractor Extractor, log *zap.Logger) *Tracker {
	return &Tracker{
		log:       log,
		extractor: extractor,
		byKey:     make(map[string]*record),
	}
}

// Ingest extracts entities from a result and upserts them plus their
// pairwise co-occurrence edges. Returns how many entities were new to the
// session. Extraction failure is logged and swallowed.
func (t *Tracker) Ingest(ctx context.Context, res model.Result) int {
	text := res.Title + "\n" + res.Content
	mentions, err := t.extractor.Entities(ctx, text)
	if err != nil {
		t.log.Debug("entity extraction failed, skipping result",
			zap.String("result", res.ID), zap.Error(err))
		return 0
	}

	// Dedup mentions within the result by canonical key.
	keys := make([]string, 0, len(mentions))
	byKey := make(map[string]model.Mention, len(mentions))
	for _, m := range mentions {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; !dup {
			byKey[key] = m
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	newCount := 0
	for _, key := range keys {
		m := byKey[key]
		rec, exists := t.byKey[key]
		if !exists {
			rec = &record{
				id:          uuid.New().String(),
				displayName: strings.TrimSpace(m.Name),
				typ:         m.Type,
				firstSeen:   res.ID,
				co:          make(map[string]struct{}),
			}
			t.byKey[key] = rec
			newCount++
		}
		rec.mentions++
	}

	// Undirected co-occurrence: every pair appearing in the same result.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := t.byKey[keys[i]], t.byKey[keys[j]]
			a.co[b.id] = struct{}{}
			b.co[a.id] = struct{}{}
		}
	}

	return newCount
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey)
}

// Snapshot returns the entity graph sorted by mention count, descending.
func (t *Tracker) Snapshot() []model.Entity {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.Entity, 0, len(t.byKey))
	for _, rec := range t.byKey {
		co := make([]string, 0, len(rec.co))
		for id := range rec.co {
			co = append(co, id)
		}
		sort.Strings(co)
		out = append(out, model.Entity{
			ID:                rec.id,
			CanonicalName:     rec.displayName,
			Type:              rec.typ,
			FirstSeenResultID: rec.firstSeen,
			Mentions:          rec.mentions,
			CoOccurring:       co,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].CanonicalName < out[j].CanonicalName
	})
	return out
}
