// Package flat provides exhaustive exact search over a store snapshot.
//
// The flat index is the correctness baseline the approximate indexes are
// validated against, and the engine's default search path when no index has
// been built.
package flat

import (
	"container/heap"
	"runtime"
	"sort"
	"sync"

	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/metric"
	"github.com/hupe1980/simvec/queue"
	"golang.org/x/sync/errgroup"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// minParallelSize is the dataset size below which the scan stays
// single-threaded; goroutine overhead dominates under this.
const minParallelSize = 2048

// Options contains configuration options for the flat index.
type Options struct {
	// Parallelism bounds the number of concurrent scan chunks.
	// Values < 1 fall back to GOMAXPROCS.
	Parallelism int
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Parallelism: 0,
}

// Flat represents an exhaustive exact-search index over a build-time
// snapshot of the store. Mutations after the build are not visible.
type Flat struct {
	ids     []string
	vectors [][]float32
	opts    Options
}

// New creates a flat index over the given snapshot. ids and vectors are
// parallel slices as returned by the store.
func New(ids []string, vectors [][]float32, optFns ...func(o *Options)) *Flat {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Parallelism < 1 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	return &Flat{
		ids:     ids,
		vectors: vectors,
		opts:    opts,
	}
}

// Kind returns the index strategy.
func (f *Flat) Kind() index.Kind { return index.KindFlat }

// Size returns the number of indexed vectors.
func (f *Flat) Size() int { return len(f.ids) }

// Search scores every indexed vector against q and returns the top k,
// most similar first.
func (f *Flat) Search(q []float32, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(f.ids) == 0 {
		return []index.SearchResult{}, nil
	}

	workers := f.opts.Parallelism
	if len(f.vectors) < minParallelSize || workers == 1 {
		top := f.scanRange(q, k, 0, len(f.vectors))
		return f.collect(top, k), nil
	}

	chunk := (len(f.vectors) + workers - 1) / workers

	tops := make([]*queue.PriorityQueue, 0, workers)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(workers)

	for lo := 0; lo < len(f.vectors); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(f.vectors))
		g.Go(func() error {
			top := f.scanRange(q, k, lo, hi)
			mu.Lock()
			tops = append(tops, top)
			mu.Unlock()
			return nil
		})
	}

	// scanRange never fails; errgroup is used for bounded fan-out and join.
	_ = g.Wait()

	merged := &queue.PriorityQueue{}
	heap.Init(merged)
	for _, top := range tops {
		for _, item := range top.Items {
			pushBounded(merged, item, k)
		}
	}

	return f.collect(merged, k), nil
}

// scanRange returns a min-heap holding the k best candidates in [lo, hi).
func (f *Flat) scanRange(q []float32, k, lo, hi int) *queue.PriorityQueue {
	top := &queue.PriorityQueue{}
	heap.Init(top)

	for i := lo; i < hi; i++ {
		score := metric.CosineSimilarity(q, f.vectors[i])
		pushBounded(top, &queue.PriorityQueueItem{Node: uint32(i), Score: score}, k)
	}

	return top
}

// pushBounded keeps pq at most k items, evicting the lowest score.
func pushBounded(pq *queue.PriorityQueue, item *queue.PriorityQueueItem, k int) {
	if pq.Len() < k {
		heap.Push(pq, &queue.PriorityQueueItem{Node: item.Node, Score: item.Score})
		return
	}

	worst, _ := pq.Top().(*queue.PriorityQueueItem)
	if item.Score > worst.Score {
		heap.Pop(pq)
		heap.Push(pq, &queue.PriorityQueueItem{Node: item.Node, Score: item.Score})
	}
}

// collect drains the heap into a ranked result list, most similar first.
// Ties are broken by identifier for deterministic output.
func (f *Flat) collect(top *queue.PriorityQueue, k int) []index.SearchResult {
	results := make([]index.SearchResult, 0, min(k, top.Len()))
	for _, item := range top.Items {
		results = append(results, index.SearchResult{ID: f.ids[item.Node], Score: item.Score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
