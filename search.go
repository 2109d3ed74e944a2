package simvec

import (
	"github.com/hupe1980/simvec/index"
)

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	ef          int
	factor      float64
	approximate bool
	// using is a pointer to distinguish "unset" from index.KindHNSW (0).
	using *index.Kind
}

// WithEF overrides the search breadth for HNSW-backed searches. Larger
// values improve recall at the cost of search time. Ignored by other index
// kinds.
func WithEF(ef int) SearchOption {
	return func(o *searchOptions) {
		o.ef = ef
	}
}

// WithFactor overrides the approximation factor for IVF-backed searches:
// the share of clusters probed, in (0,1]. Ignored by other index kinds.
func WithFactor(f float64) SearchOption {
	return func(o *searchOptions) {
		o.factor = f
	}
}

// Approximate marks the search as approximate. If no index has been built,
// the engine serves the query from a hashing-based fallback instead of an
// exhaustive scan. With an index built this option has no effect.
func Approximate() SearchOption {
	return func(o *searchOptions) {
		o.approximate = true
	}
}

// Using requires the search to run against the given index kind. If that
// kind is not the currently built index the search fails with
// ErrIndexNotBuilt (flat search is always available).
func Using(kind index.Kind) SearchOption {
	return func(o *searchOptions) {
		o.using = &kind
	}
}
