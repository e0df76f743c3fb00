package model

// Mention is one entity occurrence found by the extraction collaborator.
type Mention struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Span string `json:"span,omitempty"`
}

// Entity is a tracked actor merged by case-insensitive canonical name within
// a session. Co-occurrence is undirected and accumulates monotonically.
type Entity struct {
	ID                string   `json:"id"`
	CanonicalName     string   `json:"canonical_name"`
	Type              string   `json:"type"`
	FirstSeenResultID string   `json:"first_seen_result_id"`
	Mentions          int      `json:"mentions"`
	CoOccurring       []string `json:"co_occurring_entity_ids"`
}
