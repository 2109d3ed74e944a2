package lsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/testutil"
)

func TestBuild(t *testing.T) {
	t.Run("EmptySnapshot", func(t *testing.T) {
		l := Build(nil, nil)
		assert.Equal(t, 0, l.Size())
		assert.Equal(t, index.KindLSH, l.Kind())

		results, err := l.Search([]float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("EveryVectorIsHashedIntoEveryTable", func(t *testing.T) {
		rng := testutil.NewRNG(11)
		l := Build(testutil.IDs(128), rng.UniformVectors(128, 8), func(o *Options) {
			o.NumHashes = 6
		})

		stats := l.Stats()
		assert.Equal(t, 6, stats.Tables)
		assert.Equal(t, 128, stats.Items)
		assert.Greater(t, stats.Buckets, 0)
		assert.LessOrEqual(t, stats.MaxBucketSize, 128)
	})

	t.Run("OutOfRangeBitsFallBackToDefault", func(t *testing.T) {
		rng := testutil.NewRNG(12)
		l := Build(testutil.IDs(10), rng.UniformVectors(10, 4), func(o *Options) {
			o.NumBits = 64
		})
		assert.Equal(t, DefaultOptions.NumBits, l.opts.NumBits)
	})
}

func TestSearch(t *testing.T) {
	t.Run("SelfQueryFindsSelf", func(t *testing.T) {
		// A stored vector hashes into the same buckets as an identical query,
		// so it is always part of the candidate set and scores ~1.
		rng := testutil.NewRNG(13)
		vectors := rng.UniformVectors(200, 8)
		ids := testutil.IDs(200)

		l := Build(ids, vectors)

		results, err := l.Search(vectors[42], 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ids[42], results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("RankingIsDescending", func(t *testing.T) {
		rng := testutil.NewRNG(14)
		vectors := rng.UniformVectors(300, 8)

		l := Build(testutil.IDs(300), vectors)

		results, err := l.Search(vectors[0], 10)
		require.NoError(t, err)
		require.NotEmpty(t, results)

		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("LimitIsRespected", func(t *testing.T) {
		rng := testutil.NewRNG(15)
		vectors := rng.UniformVectors(100, 4)

		l := Build(testutil.IDs(100), vectors)

		results, err := l.Search(vectors[7], 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 3)
	})

	t.Run("InvalidK", func(t *testing.T) {
		l := Build([]string{"a"}, [][]float32{{1, 0}})

		_, err := l.Search([]float32{1, 0}, -1)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})
}
