// Package source defines the uniform contract every pluggable data source
// implements, and the read-only registry the engine fans out over. Each
// adapter normalizes its backend's response shape into model.Result at its
// own boundary, so the core never branches on source-specific shapes.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agenthands/sleuth/internal/core/model"
)

// Capabilities is the self-reported metadata the registry exposes.
type Capabilities struct {
	RequiresCredential bool          `json:"requires_credential"`
	CostEstimate       float64       `json:"cost_estimate"`
	TypicalLatency     time.Duration `json:"typical_latency"`
}

// QueryGenerator produces source-specific query parameters. In production
// this is the oracle; adapters treat it as opaque.
type QueryGenerator interface {
	SourceQuery(ctx context.Context, req model.QueryRequest) (model.Query, error)
}

// Source is the uniform search contract. Search returns an empty slice with
// a nil error for a well-formed query that matched nothing; errors are
// classified by Classify.
type Source interface {
	ID() string
	Name() string
	SyntaxHint() string
	IsRelevant(taskDescription string) bool
	GenerateQuery(ctx context.Context, req model.QueryRequest) (model.Query, error)
	Search(ctx context.Context, q model.Query, limit int) ([]model.Result, error)
	Capabilities() Capabilities
}

// Sentinel errors for the permanent failure class.
var (
	ErrNoCredential = errors.New("missing credential")
	ErrBadQuery     = errors.New("malformed query parameters")
)

// StatusError wraps a non-2xx HTTP response from a backend.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ErrorClass drives the adaptive search unit's retry decision.
type ErrorClass int

const (
	// ClassRecoverable errors (timeouts, transient 5xx) are eligible for
	// reformulation and retry within the unit's phase ceiling.
	ClassRecoverable ErrorClass = iota
	// ClassRateLimited errors get exponential backoff before the next phase.
	ClassRateLimited
	// ClassPermanent errors terminate the unit without consuming retries.
	ClassPermanent
)

// Classify maps an adapter error onto the retry taxonomy. Rate limiting
// (429/503-class) backs off; any other 4xx is permanent; everything else,
// including timeouts, is recoverable.
func Classify(err error) ErrorClass {
	if errors.Is(err, ErrNoCredential) || errors.Is(err, ErrBadQuery) {
		return ClassPermanent
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable:
			return ClassRateLimited
		case se.Code >= 400 && se.Code < 500:
			return ClassPermanent
		}
		return ClassRecoverable
	}

	return ClassRecoverable
}
