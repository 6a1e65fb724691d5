package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals bad caller input, rejected before any I/O.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration signals an inconsistent fusion configuration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrRetrieval signals a search index failure.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrReranking signals a relevance scorer failure.
	ErrReranking = errors.New("reranking failed")
	// ErrPipeline signals an unexpected failure outside the typed stages.
	ErrPipeline = errors.New("pipeline failed")

	// ErrConnection signals an unreachable collaborator.
	ErrConnection = errors.New("connection failed")
	// ErrAuthentication signals rejected credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrIndexNotFound signals a missing search index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrBadRequest signals a request the collaborator rejected as malformed.
	ErrBadRequest = errors.New("malformed request")
	// ErrTimeout signals an expired collaborator call.
	ErrTimeout = errors.New("request timed out")

	// ErrRateLimited signals a scorer-side rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted scorer quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrScorerAPI signals a scorer server-side failure.
	ErrScorerAPI = errors.New("scorer API error")
)

// RerankingError wraps ErrReranking with the failing stage and the number
// of documents in flight when the scorer call broke.
type RerankingError struct {
	Query         string
	DocumentCount int
	Stage         string
	Err           error
}

func (e *RerankingError) Error() string {
	return fmt.Sprintf("reranking failed at stage %q (%d documents): %v",
		e.Stage, e.DocumentCount, e.Err)
}

func (e *RerankingError) Unwrap() []error { return []error{ErrReranking, e.Err} }

// NewRerankingError creates a reranking error for the scoring stage.
func NewRerankingError(query string, documentCount int, err error) error {
	return &RerankingError{
		Query:         query,
		DocumentCount: documentCount,
		Stage:         "reranking",
		Err:           err,
	}
}

// PipelineError wraps ErrPipeline with the stage a non-typed failure escaped from.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() []error { return []error{ErrPipeline, e.Err} }

// NewPipelineError creates a generic pipeline error for the given stage.
func NewPipelineError(stage string, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
