package model

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Result is the normalized record every source adapter produces at its own
// boundary. The core never sees source-specific response shapes.
type Result struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
	Fingerprint string    `json:"fingerprint"`
}

// NewFingerprint hashes content plus source ID. Two results with the same
// fingerprint are the same evidence no matter which hypothesis found them.
func NewFingerprint(source, content string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + content))
	return fmt.Sprintf("%x", sum[:16])
}

// ResultSet is a fingerprint-keyed set of results. Add is idempotent and
// safe for concurrent use, so insertion order across hypotheses does not
// matter within a round.
type ResultSet struct {
	mu      sync.Mutex
	results []Result
	seen    map[string]bool
}

func NewResultSet() *ResultSet {
	return &ResultSet{seen: make(map[string]bool)}
}

// Add inserts a result unless its fingerprint is already present.
// Returns true if the result was new.
func (s *ResultSet) Add(r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[r.Fingerprint] {
		return false
	}
	s.seen[r.Fingerprint] = true
	s.results = append(s.results, r)
	return true
}

func (s *ResultSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Snapshot returns a copy of the accumulated results.
func (s *ResultSet) Snapshot() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}
