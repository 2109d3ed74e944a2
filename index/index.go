// Package index defines the contract shared by all vector index strategies.
//
// An index is a disposable cache derived from the vector store: it holds
// identifiers and summary data (centroids, graph edges, hash codes), never
// vector ownership, and is rebuilt wholesale from the store.
package index

import (
	"errors"
	"fmt"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind identifies an index strategy.
type Kind int

// Supported index kinds, in descending preference order for approximate
// queries.
const (
	KindHNSW Kind = iota
	KindIVF
	KindLSH
	KindFlat
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindHNSW:
		return "HNSW"
	case KindIVF:
		return "IVF"
	case KindLSH:
		return "LSH"
	case KindFlat:
		return "Flat"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// SearchResult represents a single ranked match.
type SearchResult struct {
	// ID is the identifier of the matched vector.
	ID string

	// Score is the cosine similarity between the query and the match.
	// Higher is more similar.
	Score float32
}

// Index represents a queryable snapshot of the vector store.
type Index interface {
	// Kind returns the index strategy.
	Kind() Kind

	// Size returns the number of indexed vectors.
	Size() int

	// Search returns the top k matches for q, most similar first.
	// An empty index returns an empty result list, not an error.
	Search(q []float32, k int) ([]SearchResult, error)
}
