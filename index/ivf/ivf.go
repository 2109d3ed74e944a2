// Package ivf provides a one-shot inverted-file clustering index.
//
// The build partitions vectors across sampled centroids in a single
// assignment pass. This is deliberately not iterated Lloyd's k-means: the
// partition is only a coarse pre-filter ahead of exact rescoring, and the
// weaker recall of the one-shot assignment is part of the documented
// trade-off.
package ivf

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/metric"
	"github.com/hupe1980/simvec/queue"
)

// Compile-time check to ensure IVF satisfies the index interface.
var _ index.Index = (*IVF)(nil)

// Options contains configuration options for the IVF index.
type Options struct {
	// NumClusters is the configured cluster count. The effective count is
	// min(NumClusters, number of vectors).
	NumClusters int

	// Factor is the default approximation factor f in (0,1]: the share of
	// clusters probed per search. Higher values improve recall at the cost
	// of scanning more clusters; f=1 approaches exhaustive search.
	Factor float64

	// Seed makes centroid sampling deterministic.
	Seed int64
}

// DefaultOptions contains the default configuration options for the IVF index.
var DefaultOptions = Options{
	NumClusters: 16,
	Factor:      0.25,
	Seed:        1,
}

// Cluster is a centroid plus the member set assigned to it.
type Cluster struct {
	Centroid []float32
	Members  *roaring.Bitmap
}

// IVF is an inverted-file index over a build-time snapshot of the store.
type IVF struct {
	ids      []string
	vectors  [][]float32
	clusters []Cluster
	opts     Options
}

// Build creates an IVF index over the given snapshot.
//
// Centroids are seeded by sampling existing vectors; every vector is then
// assigned to its most-similar centroid in a single pass. An empty snapshot
// yields zero clusters.
func Build(ids []string, vectors [][]float32, optFns ...func(o *Options)) *IVF {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NumClusters < 1 {
		opts.NumClusters = DefaultOptions.NumClusters
	}

	ivf := &IVF{
		ids:     ids,
		vectors: vectors,
		opts:    opts,
	}

	n := len(vectors)
	if n == 0 {
		return ivf
	}

	k := min(opts.NumClusters, n)

	// Seed centroids by sampling existing vectors.
	rng := rand.New(rand.NewSource(opts.Seed)) // nolint gosec
	perm := rng.Perm(n)

	ivf.clusters = make([]Cluster, k)
	for i := range ivf.clusters {
		centroid := make([]float32, len(vectors[perm[i]]))
		copy(centroid, vectors[perm[i]])
		ivf.clusters[i] = Cluster{
			Centroid: centroid,
			Members:  roaring.New(),
		}
	}

	// Single assignment pass; no convergence loop.
	for i, v := range vectors {
		best := 0
		bestScore := float32(math.Inf(-1))
		for j := range ivf.clusters {
			if score := metric.CosineSimilarity(v, ivf.clusters[j].Centroid); score > bestScore {
				bestScore = score
				best = j
			}
		}
		ivf.clusters[best].Members.Add(uint32(i))
	}

	return ivf
}

// Kind returns the index strategy.
func (ivf *IVF) Kind() index.Kind { return index.KindIVF }

// Size returns the number of indexed vectors.
func (ivf *IVF) Size() int { return len(ivf.ids) }

// Clusters returns the built clusters. Exposed for stats and tests.
func (ivf *IVF) Clusters() []Cluster { return ivf.clusters }

// Search probes the default share of clusters and returns the top k matches.
func (ivf *IVF) Search(q []float32, k int) ([]index.SearchResult, error) {
	return ivf.SearchWithFactor(q, k, ivf.opts.Factor)
}

// SearchWithFactor ranks clusters by centroid similarity, probes the top
// ceil(clusterCount*factor) clusters and exhaustively rescores only their
// members. Factors above 1 are clamped to 1 (full probe); non-positive
// factors fall back to the default.
func (ivf *IVF) SearchWithFactor(q []float32, k int, factor float64) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(ivf.clusters) == 0 {
		return []index.SearchResult{}, nil
	}

	if factor <= 0 {
		factor = DefaultOptions.Factor
	}
	if factor > 1 {
		factor = 1
	}

	// Rank clusters by centroid similarity.
	order := make([]int, len(ivf.clusters))
	scores := make([]float32, len(ivf.clusters))
	for i := range ivf.clusters {
		order[i] = i
		scores[i] = metric.CosineSimilarity(q, ivf.clusters[i].Centroid)
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	probe := int(math.Ceil(float64(len(ivf.clusters)) * factor))

	top := &queue.PriorityQueue{}
	heap.Init(top)

	for _, ci := range order[:probe] {
		it := ivf.clusters[ci].Members.Iterator()
		for it.HasNext() {
			ord := it.Next()
			score := metric.CosineSimilarity(q, ivf.vectors[ord])

			if top.Len() < k {
				heap.Push(top, &queue.PriorityQueueItem{Node: ord, Score: score})
				continue
			}
			if worst, _ := top.Top().(*queue.PriorityQueueItem); score > worst.Score {
				heap.Pop(top)
				heap.Push(top, &queue.PriorityQueueItem{Node: ord, Score: score})
			}
		}
	}

	results := make([]index.SearchResult, 0, top.Len())
	for _, item := range top.Items {
		results = append(results, index.SearchResult{ID: ivf.ids[item.Node], Score: item.Score})
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
	return results, nil
}

// Stats describes the cluster distribution of a built index.
type Stats struct {
	Clusters    int
	Items       int
	MinMembers  int
	MaxMembers  int
	MeanMembers float64
}

// Stats returns distribution statistics for the built clusters.
func (ivf *IVF) Stats() Stats {
	s := Stats{Clusters: len(ivf.clusters), Items: len(ivf.ids)}
	if len(ivf.clusters) == 0 {
		return s
	}

	s.MinMembers = math.MaxInt
	total := 0
	for _, c := range ivf.clusters {
		n := int(c.Members.GetCardinality())
		total += n
		s.MinMembers = min(s.MinMembers, n)
		s.MaxMembers = max(s.MaxMembers, n)
	}
	s.MeanMembers = float64(total) / float64(len(ivf.clusters))
	return s
}
