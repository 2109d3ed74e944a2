// Package lsh provides a random-hyperplane locality-sensitive hashing index.
//
// It is the engine's fallback when an approximate query arrives before a
// cluster or graph index has been built: hashing every stored vector is
// cheap compared to an HNSW build, and the candidate set is exactly rescored
// so results are never silently wrong - only possibly incomplete.
package lsh

import (
	"container/heap"
	"math/rand"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/metric"
	"github.com/hupe1980/simvec/queue"
)

// Compile-time check to ensure LSH satisfies the index interface.
var _ index.Index = (*LSH)(nil)

// Options contains configuration options for the LSH index.
type Options struct {
	// NumHashes is the number of independent hash tables. More tables widen
	// the candidate set: recall improves, rescoring cost grows.
	NumHashes int

	// NumBits is the number of random hyperplanes per table. More bits make
	// buckets smaller and more selective.
	NumBits int

	// Seed makes hyperplane sampling deterministic.
	Seed int64
}

// DefaultOptions contains the default configuration options for the LSH index.
var DefaultOptions = Options{
	NumHashes: 4,
	NumBits:   8,
	Seed:      1,
}

// table is one independent hash function: a set of random hyperplanes plus
// the bucket map they induce.
type table struct {
	hyperplanes [][]float32
	buckets     map[uint32]*roaring.Bitmap
}

// LSH is a hashing-based candidate-set index over a build-time snapshot of
// the store.
type LSH struct {
	ids     []string
	vectors [][]float32
	tables  []table
	opts    Options
}

// Build creates an LSH index over the given snapshot. Every stored vector is
// hashed into each table's buckets.
func Build(ids []string, vectors [][]float32, optFns ...func(o *Options)) *LSH {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NumHashes < 1 {
		opts.NumHashes = DefaultOptions.NumHashes
	}
	if opts.NumBits < 1 || opts.NumBits > 32 {
		opts.NumBits = DefaultOptions.NumBits
	}

	l := &LSH{
		ids:     ids,
		vectors: vectors,
		opts:    opts,
	}

	if len(vectors) == 0 {
		return l
	}

	dim := len(vectors[0])
	rng := rand.New(rand.NewSource(opts.Seed)) // nolint gosec

	l.tables = make([]table, opts.NumHashes)
	for t := range l.tables {
		hyperplanes := make([][]float32, opts.NumBits)
		for b := range hyperplanes {
			plane := make([]float32, dim)
			for d := range plane {
				plane[d] = float32(rng.NormFloat64())
			}
			hyperplanes[b] = plane
		}
		l.tables[t] = table{
			hyperplanes: hyperplanes,
			buckets:     make(map[uint32]*roaring.Bitmap),
		}
	}

	for i, v := range vectors {
		for t := range l.tables {
			code := l.tables[t].hash(v)
			bucket, ok := l.tables[t].buckets[code]
			if !ok {
				bucket = roaring.New()
				l.tables[t].buckets[code] = bucket
			}
			bucket.Add(uint32(i))
		}
	}

	return l
}

// hash returns the sign-bit pattern of v projected onto the table's
// hyperplanes.
func (t *table) hash(v []float32) uint32 {
	var code uint32
	for b, plane := range t.hyperplanes {
		var dot float32
		for d := 0; d < min(len(v), len(plane)); d++ {
			dot += v[d] * plane[d]
		}
		if dot >= 0 {
			code |= 1 << uint(b)
		}
	}
	return code
}

// Kind returns the index strategy.
func (l *LSH) Kind() index.Kind { return index.KindLSH }

// Size returns the number of indexed vectors.
func (l *LSH) Size() int { return len(l.ids) }

// Search hashes q into every table, unions the matching buckets into a
// candidate set and exactly rescores only the candidates.
func (l *LSH) Search(q []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(l.tables) == 0 {
		return []index.SearchResult{}, nil
	}

	candidates := roaring.New()
	for t := range l.tables {
		if bucket, ok := l.tables[t].buckets[l.tables[t].hash(q)]; ok {
			candidates.Or(bucket)
		}
	}

	top := &queue.PriorityQueue{}
	heap.Init(top)

	it := candidates.Iterator()
	for it.HasNext() {
		ord := it.Next()
		score := metric.CosineSimilarity(q, l.vectors[ord])

		if top.Len() < k {
			heap.Push(top, &queue.PriorityQueueItem{Node: ord, Score: score})
			continue
		}
		if worst, _ := top.Top().(*queue.PriorityQueueItem); score > worst.Score {
			heap.Pop(top)
			heap.Push(top, &queue.PriorityQueueItem{Node: ord, Score: score})
		}
	}

	results := make([]index.SearchResult, 0, top.Len())
	for _, item := range top.Items {
		results = append(results, index.SearchResult{ID: l.ids[item.Node], Score: item.Score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Stats describes the bucket distribution of a built index.
type Stats struct {
	Tables        int
	Items         int
	Buckets       int
	MaxBucketSize int
}

// Stats returns distribution statistics for the built hash tables.
func (l *LSH) Stats() Stats {
	s := Stats{Tables: len(l.tables), Items: len(l.ids)}
	for _, t := range l.tables {
		s.Buckets += len(t.buckets)
		for _, b := range t.buckets {
			s.MaxBucketSize = max(s.MaxBucketSize, int(b.GetCardinality()))
		}
	}
	return s
}
