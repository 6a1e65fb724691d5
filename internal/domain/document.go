package domain

import (
	"fmt"
	"strings"
	"time"
)

// MetadataNativeScore is the metadata key under which gateways expose the
// search engine's own relevance score.
const MetadataNativeScore = "native_score"

// Document is a retrieved document with text content and metadata.
type Document struct {
	id        string
	text      string
	title     string
	metadata  map[string]any
	source    string
	timestamp time.Time
}

// NewDocument creates a document. ID and text are trimmed and must be non-empty.
func NewDocument(id, text, title string, metadata map[string]any) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, fmt.Errorf("document id must not be empty: %w", ErrValidation)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, fmt.Errorf("document text must not be empty: %w", ErrValidation)
	}
	return Document{id: id, text: text, title: title, metadata: metadata}, nil
}

// WithSource returns a copy of the document tagged with its origin.
func (d Document) WithSource(source string) Document {
	d.source = source
	return d
}

// WithTimestamp returns a copy of the document with a creation/index time.
func (d Document) WithTimestamp(ts time.Time) Document {
	d.timestamp = ts
	return d
}

// ID returns the unique document identifier.
func (d *Document) ID() string { return d.id }

// Text returns the document text content.
func (d *Document) Text() string { return d.text }

// Title returns the optional document title ("" when absent).
func (d *Document) Title() string { return d.title }

// Metadata returns the opaque metadata mapping.
func (d *Document) Metadata() map[string]any { return d.metadata }

// Source returns the optional source tag.
func (d *Document) Source() string { return d.source }

// Timestamp returns the document timestamp (zero when absent).
func (d *Document) Timestamp() time.Time { return d.timestamp }

// Candidate is a document under consideration during a pipeline run:
// the document, its native search engine score, and its 0-based position
// in the original retrieval order. Immutable once produced.
type Candidate struct {
	doc         Document
	nativeScore float64
	hasNative   bool
	position    int
}

// NewCandidate creates a retrieval candidate at the given 0-based position.
// hasNativeScore is false when the engine returned no score for the hit.
func NewCandidate(doc Document, nativeScore float64, hasNativeScore bool, position int) Candidate {
	return Candidate{doc: doc, nativeScore: nativeScore, hasNative: hasNativeScore, position: position}
}

// Document returns the candidate's document.
func (c *Candidate) Document() Document { return c.doc }

// NativeScore returns the search engine score and whether one was present.
func (c *Candidate) NativeScore() (float64, bool) { return c.nativeScore, c.hasNative }

// Position returns the 0-based position in the original retrieval order.
func (c *Candidate) Position() int { return c.position }

// ScoredCandidate is a candidate plus its relevance score from the
// semantic scorer (contract-assumed pre-normalized to [0,1]).
type ScoredCandidate struct {
	candidate Candidate
	relevance float64
}

// NewScoredCandidate attaches a relevance score to a candidate.
func NewScoredCandidate(c Candidate, relevance float64) ScoredCandidate {
	return ScoredCandidate{candidate: c, relevance: relevance}
}

// Candidate returns the underlying retrieval candidate.
func (s *ScoredCandidate) Candidate() Candidate { return s.candidate }

// Relevance returns the semantic relevance score.
func (s *ScoredCandidate) Relevance() float64 { return s.relevance }
