package simvec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simvec/blobstore"
	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/testutil"
)

// newTestEngine creates an engine and registers its shutdown with the test.
func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()

	e, err := New(context.Background(), append([]Option{WithLogger(NoopLogger())}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e
}

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyStoreYieldsEmptyResult", func(t *testing.T) {
		e := newTestEngine(t)

		results, err := e.FindSimilarByVector(ctx, []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("SingleVectorHasNoNeighbors", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "only", []float32{1, 0, 0}))

		results, err := e.FindSimilar(ctx, "only", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("NeighborsAreRankedBySimilarity", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, e.Add(ctx, "b", []float32{0.99, 0.01, 0}))
		require.NoError(t, e.Add(ctx, "c", []float32{0, 1, 0}))

		results, err := e.FindSimilar(ctx, "a", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("QueryVectorIsExcluded", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))
		require.NoError(t, e.Add(ctx, "b", []float32{0, 1}))

		results, err := e.FindSimilar(ctx, "a", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("ZeroLimitYieldsEmptyResult", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))
		require.NoError(t, e.Add(ctx, "b", []float32{0, 1}))

		results, err := e.FindSimilar(ctx, "a", 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("UnknownIdentifier", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))

		_, err := e.FindSimilar(ctx, "missing", 3)
		assert.ErrorIs(t, err, ErrVectorNotFound)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0, 0}))

		_, err := e.FindSimilarByVector(ctx, []float32{1, 0}, 3)
		require.Error(t, err)

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	})

	t.Run("InvalidK", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))

		_, err := e.FindSimilarByVector(ctx, []float32{1, 0}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})
}

func TestIndexSelection(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, e *Engine, n, dim int) ([]string, [][]float32) {
		t.Helper()

		rng := testutil.NewRNG(42)
		ids := testutil.IDs(n)
		vectors := rng.UniformVectors(n, dim)

		entries := make([]Entry, n)
		for i := range entries {
			entries[i] = Entry{ID: ids[i], Vector: vectors[i]}
		}
		require.NoError(t, e.BatchAdd(ctx, entries))
		return ids, vectors
	}

	t.Run("RequestedKindMustBeBuilt", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))

		_, err := e.FindSimilarByVector(ctx, []float32{1, 0}, 1, Using(index.KindHNSW))
		assert.ErrorIs(t, err, ErrIndexNotBuilt)
	})

	t.Run("ExactSearchNeedsNoIndex", func(t *testing.T) {
		e := newTestEngine(t)
		_, vectors := seed(t, e, 50, 8)

		results, err := e.FindSimilarByVector(ctx, vectors[0], 5, Using(index.KindFlat))
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})

	t.Run("EveryKindCanBeBuiltAndSearched", func(t *testing.T) {
		for _, kind := range []index.Kind{index.KindFlat, index.KindIVF, index.KindHNSW, index.KindLSH} {
			t.Run(kind.String(), func(t *testing.T) {
				e := newTestEngine(t)
				_, vectors := seed(t, e, 100, 8)

				require.NoError(t, e.CreateIndex(ctx, kind))

				got, ok, err := e.IndexKind(ctx)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, kind, got)

				// A stored vector is always its own best match.
				results, err := e.FindSimilarByVector(ctx, vectors[7], 3, Using(kind))
				require.NoError(t, err)
				require.NotEmpty(t, results)
				assert.InDelta(t, 1.0, results[0].Score, 1e-6)
			})
		}
	})

	t.Run("ApproximateFallbackWithoutIndex", func(t *testing.T) {
		e := newTestEngine(t)
		ids, vectors := seed(t, e, 200, 8)

		results, err := e.FindSimilarByVector(ctx, vectors[13], 1, Approximate())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ids[13], results[0].ID)
	})

	t.Run("FallbackIsInvalidatedByMutation", func(t *testing.T) {
		e := newTestEngine(t)
		seed(t, e, 100, 8)

		// First approximate query builds and caches the fallback.
		_, err := e.FindSimilarByVector(ctx, make([]float32, 8), 1, Approximate())
		require.NoError(t, err)

		// A mutation invalidates it; the rebuilt fallback must see the new
		// vector, which is its own best match.
		newcomer := []float32{1, 2, 3, 4, 5, 6, 7, 8}
		require.NoError(t, e.Add(ctx, "newcomer", newcomer))

		results, err := e.FindSimilarByVector(ctx, newcomer, 1, Approximate())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "newcomer", results[0].ID)
	})

	t.Run("SearchBreadthOverride", func(t *testing.T) {
		e := newTestEngine(t)
		_, vectors := seed(t, e, 100, 8)
		require.NoError(t, e.CreateIndex(ctx, index.KindHNSW))

		results, err := e.FindSimilarByVector(ctx, vectors[0], 5, WithEF(200))
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})

	t.Run("ProbeFactorOverride", func(t *testing.T) {
		e := newTestEngine(t)
		_, vectors := seed(t, e, 100, 8)
		require.NoError(t, e.CreateIndex(ctx, index.KindIVF))

		results, err := e.FindSimilarByVector(ctx, vectors[0], 5, WithFactor(1.0))
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})
}

func TestAutoRebuild(t *testing.T) {
	ctx := context.Background()

	e := newTestEngine(t, WithRebuildThreshold(2), WithRebuildInterval(0))

	require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, e.CreateIndex(ctx, index.KindFlat))

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Mutations)

	// The first mutation stays below the threshold.
	require.NoError(t, e.Add(ctx, "b", []float32{0, 1}))
	stats, err = e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Mutations)

	// The second one crosses it and triggers a rebuild.
	require.NoError(t, e.Add(ctx, "c", []float32{0.9, 0.1}))
	stats, err = e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Mutations)

	// The rebuilt index must include the new vectors.
	results, err := e.FindSimilarByVector(ctx, []float32{0.9, 0.1}, 1, Using(index.KindFlat))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("GetContainsCount", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 2}))

		v, err := e.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, v)

		_, err = e.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrVectorNotFound)

		ok, err := e.Contains(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := e.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("ClearDropsStoreAndIndex", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))
		require.NoError(t, e.CreateIndex(ctx, index.KindHNSW))

		require.NoError(t, e.Clear(ctx))

		n, err := e.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, ok, err := e.IndexKind(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CloseRejectsFurtherCalls", func(t *testing.T) {
		e, err := New(ctx)
		require.NoError(t, err)

		require.NoError(t, e.Close())
		require.NoError(t, e.Close())

		assert.ErrorIs(t, e.Add(ctx, "a", []float32{1}), ErrServiceUnavailable)

		_, err = e.FindSimilarByVector(ctx, []float32{1}, 1)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("CanceledContextRejectsEnqueue", func(t *testing.T) {
		e := newTestEngine(t)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		// The worker may still accept the task before noticing cancellation;
		// both outcomes are valid, an unrelated error is not.
		if err := e.Add(canceled, "a", []float32{1}); err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	})
}

func TestPersistenceAcrossEngines(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()

	first := newTestEngine(t, WithBlobStore(blobs))
	require.NoError(t, first.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, first.Add(ctx, "b", []float32{0.99, 0.01, 0}))
	require.NoError(t, first.Close())

	second := newTestEngine(t, WithBlobStore(blobs))

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := second.FindSimilar(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestBasicMetricsCollector(t *testing.T) {
	ctx := context.Background()

	metrics := &BasicMetricsCollector{}
	e := newTestEngine(t, WithMetricsCollector(metrics))

	require.NoError(t, e.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, e.Add(ctx, "b", []float32{0, 1}))
	require.NoError(t, e.Remove(ctx, "a"))
	require.NoError(t, e.CreateIndex(ctx, index.KindFlat))

	_, err := e.FindSimilarByVector(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), metrics.AddCount.Load())
	assert.Equal(t, int64(1), metrics.RemoveCount.Load())
	assert.Equal(t, int64(1), metrics.SearchCount.Load())
	assert.Equal(t, int64(1), metrics.RebuildCount.Load())
	assert.Equal(t, int64(0), metrics.SearchErrors.Load())
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	rng := testutil.NewRNG(1)
	vectors := rng.UniformVectors(64, 4)
	ids := testutil.UUIDs(64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range ids {
			_ = e.Add(ctx, ids[i], vectors[i])
		}
	}()

	for i := 0; i < 64; i++ {
		_, err := e.FindSimilarByVector(ctx, vectors[0], 3)
		require.NoError(t, err)
	}
	<-done

	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}
