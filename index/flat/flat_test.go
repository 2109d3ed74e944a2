package flat

import (
	"testing"

	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlat(t *testing.T) {
	t.Run("RankingIsDescending", func(t *testing.T) {
		ids := []string{"a", "b", "c"}
		vectors := [][]float32{
			{1, 0, 0},
			{0.99, 0.01, 0},
			{0, 1, 0},
		}

		f := New(ids, vectors)
		results, err := f.Search([]float32{1, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Equal(t, "c", results[2].ID)

		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("LimitIsRespected", func(t *testing.T) {
		rng := testutil.NewRNG(42)
		vectors := rng.UniformVectors(100, 8)

		f := New(testutil.IDs(100), vectors)
		results, err := f.Search(vectors[0], 5)
		require.NoError(t, err)
		assert.Len(t, results, 5)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		f := New(nil, nil)
		results, err := f.Search([]float32{1, 2, 3}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("InvalidK", func(t *testing.T) {
		f := New([]string{"a"}, [][]float32{{1}})
		_, err := f.Search([]float32{1}, 0)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("ParallelScanMatchesSerial", func(t *testing.T) {
		rng := testutil.NewRNG(7)
		vectors := rng.UniformVectors(4096, 16)
		ids := testutil.IDs(4096)
		q := rng.UniformVectors(1, 16)[0]

		serial := New(ids, vectors, func(o *Options) { o.Parallelism = 1 })
		parallel := New(ids, vectors, func(o *Options) { o.Parallelism = 8 })

		sr, err := serial.Search(q, 10)
		require.NoError(t, err)
		pr, err := parallel.Search(q, 10)
		require.NoError(t, err)

		assert.Equal(t, sr, pr)
	})
}
