package planner

import (
	"fmt"

	"ordergraph/internal/domain"
)

const (
	// DefaultMaxResults caps unpaged root listings.
	DefaultMaxResults = 1000
	// DefaultPageLimit is the page size used when a paged request omits limit.
	DefaultPageLimit = 100
	// DefaultBatchSize bounds the number of ids in one IN clause.
	DefaultBatchSize = 1000
)

// Page selects a window of roots ordered by order id.
type Page struct {
	Offset int
	Limit  int
}

// ValidatePage rejects negative values and limits above maxResults.
// A zero maxResults disables the upper bound.
func ValidatePage(page Page, maxResults int) error {
	if page.Offset < 0 {
		return &domain.InvalidQueryParameterError{Parameter: "offset", Reason: "must be non-negative"}
	}
	if page.Limit < 0 {
		return &domain.InvalidQueryParameterError{Parameter: "limit", Reason: "must be non-negative"}
	}
	if maxResults > 0 && page.Limit > maxResults {
		return &domain.InvalidQueryParameterError{Parameter: "limit", Reason: fmt.Sprintf("must not exceed %d", maxResults)}
	}
	return nil
}
