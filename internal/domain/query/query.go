// Package query builds native search engine queries for the retrieval stage.
package query

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// Size limits for native queries.
const (
	DefaultSize = 10
	MaxSize     = 1000
)

// Query is a native search request: the engine query DSL body plus
// pagination and response shaping. A caller-supplied Query is sent
// verbatim; its Size takes precedence over the fusion configuration.
type Query struct {
	Body    map[string]any
	Size    int
	From    int
	Source  []string
	Sort    []map[string]any
	Timeout string
}

// Validate checks the query for correctness.
func (q *Query) Validate() error {
	if len(q.Body) == 0 {
		return fmt.Errorf("query body must not be empty: %w", domain.ErrValidation)
	}
	if q.Size < 1 || q.Size > MaxSize {
		return fmt.Errorf("query size must be between 1 and %d, got %d: %w",
			MaxSize, q.Size, domain.ErrValidation)
	}
	if q.From < 0 {
		return fmt.Errorf("query from must not be negative, got %d: %w",
			q.From, domain.ErrValidation)
	}
	return nil
}

// Match builds the default retrieval query: a multi-match over title,
// text, and content with the title weighted double and fuzzy matching.
func Match(text string) map[string]any {
	return map[string]any{
		"multi_match": map[string]any{
			"query":     text,
			"fields":    []string{"title^2", "text", "content"},
			"type":      "best_fields",
			"fuzziness": "AUTO",
		},
	}
}

// WithFilters wraps a base query in a conjunctive bool clause. List values
// become terms clauses (match any of), map values pass through unmodified
// as sub-clauses (ranges, comparisons), scalars become exact-match terms.
func WithFilters(base map[string]any, filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return base
	}

	clauses := make([]map[string]any, 0, len(filters))

	// Deterministic clause order.
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		switch value := filters[field].(type) {
		case []any:
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: value}})
		case []string:
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: value}})
		case map[string]any:
			clauses = append(clauses, map[string]any{field: value})
		default:
			clauses = append(clauses, map[string]any{"term": map[string]any{field: value}})
		}
	}

	return map[string]any{
		"bool": map[string]any{
			"must":   []map[string]any{base},
			"filter": clauses,
		},
	}
}
