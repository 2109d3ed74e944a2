package simvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/simvec/index"
)

var (
	// ErrServiceUnavailable is returned when the engine was closed (or is
	// closing) while a call was in flight.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrVectorNotFound is returned when a lookup by identifier missed.
	ErrVectorNotFound = errors.New("vector not found")

	// ErrIndexNotBuilt is returned when a search explicitly requests an index
	// kind that has not been built. The engine only surfaces this for
	// explicit requests; implicit searches fall back to exact flat search.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch indicates a query/store dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
