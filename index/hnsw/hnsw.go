// Package hnsw provides a hierarchical navigable small world graph index.
//
// Nodes are assigned an exponentially decaying layer at insertion time and
// connected to their most-similar peers per layer with bidirectional edges.
// Search descends the layer hierarchy greedily, then runs a bounded
// best-first expansion at layer 0. Recall depends on connectivity (M) and
// search breadth (EF); the true top-k set is never guaranteed.
package hnsw

import (
	"container/heap"
	"math/rand"
	"sort"

	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/metric"
	"github.com/hupe1980/simvec/queue"
)

// Compile-time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// Options contains configuration options for the HNSW index.
type Options struct {
	// M specifies the number of established connections for every new element
	// during construction. Higher M improves recall on high-dimensional data
	// at the cost of memory and build time. The range 8-48 is ok for most use
	// cases.
	M int

	// EF specifies the size of the dynamic candidate list during construction
	// and the default search breadth. Larger EF improves recall at the cost
	// of increased search time.
	EF int

	// MaxLayer caps the layer drawn for a node. Layers are drawn by repeated
	// fair coin flips, so layer L is expected to hold ~n/2^L nodes.
	MaxLayer int

	// Seed makes layer draws deterministic.
	Seed int64
}

// DefaultOptions contains the default configuration options for the HNSW index.
var DefaultOptions = Options{
	M:        8,
	EF:       100,
	MaxLayer: 16,
	Seed:     1,
}

// node is a graph node. The vector itself lives in the snapshot slices; the
// node holds only per-layer neighbor lists.
type node struct {
	layer       int
	connections [][]uint32 // neighbor ordinals per layer 0..layer
}

// HNSW is a multi-layer proximity graph over a build-time snapshot of the
// store.
type HNSW struct {
	ids     []string
	vectors [][]float32
	nodes   []*node
	ep      uint32 // entry point: a node on the topmost populated layer
	maxVal  int    // topmost populated layer
	opts    Options
}

// Build creates an HNSW index over the given snapshot by inserting each
// vector in order. An empty snapshot yields an empty graph.
func Build(ids []string, vectors [][]float32, optFns ...func(o *Options)) *HNSW {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		opts.M = 2
	}
	if opts.EF < 1 {
		opts.EF = DefaultOptions.EF
	}
	if opts.MaxLayer < 0 {
		opts.MaxLayer = DefaultOptions.MaxLayer
	}

	h := &HNSW{
		ids:     ids,
		vectors: vectors,
		nodes:   make([]*node, 0, len(ids)),
		opts:    opts,
	}

	rng := rand.New(rand.NewSource(opts.Seed)) // nolint gosec
	for i := range vectors {
		h.insert(uint32(i), rng)
	}

	return h
}

// Kind returns the index strategy.
func (h *HNSW) Kind() index.Kind { return index.KindHNSW }

// Size returns the number of indexed vectors.
func (h *HNSW) Size() int { return len(h.nodes) }

// drawLayer draws a node layer by repeated fair coin flips, capped at
// MaxLayer. Higher layers are exponentially sparser.
func drawLayer(rng *rand.Rand, maxLayer int) int {
	layer := 0
	for layer < maxLayer && rng.Float64() < 0.5 {
		layer++
	}
	return layer
}

func (h *HNSW) insert(ord uint32, rng *rand.Rand) {
	layer := drawLayer(rng, h.opts.MaxLayer)

	n := &node{
		layer:       layer,
		connections: make([][]uint32, layer+1),
	}

	// First node becomes the entry point.
	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, n)
		h.ep = ord
		h.maxVal = layer
		return
	}

	v := h.vectors[ord]

	// Greedily descend from the entry point through layers above the new
	// node's layer to find the closest starting point.
	curr, currScore := h.greedyDescend(v, h.ep, h.maxVal, layer+1)

	// For every layer the node occupies, collect candidates and link to the
	// M most-similar members already present at that layer.
	for level := min(layer, h.maxVal); level >= 0; level-- {
		topCandidates := h.searchLayer(v, curr, currScore, h.opts.EF, level)

		// Keep the M most similar: pop the worst until M remain.
		for topCandidates.Len() > h.opts.M {
			heap.Pop(topCandidates)
		}

		n.connections[level] = make([]uint32, topCandidates.Len())
		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(*queue.PriorityQueueItem)
			n.connections[level][i] = candidate.Node
		}

		if len(n.connections[level]) > 0 {
			// Best candidate seeds the next (lower) layer search.
			best := n.connections[level][0]
			curr, currScore = best, metric.CosineSimilarity(v, h.vectors[best])
		}
	}

	h.nodes = append(h.nodes, n)

	// Make the node visible: edges are bidirectional.
	for level := min(layer, h.maxVal); level >= 0; level-- {
		for _, neighbour := range n.connections[level] {
			h.link(neighbour, ord, level)
		}
	}

	if layer > h.maxVal {
		h.ep = ord
		h.maxVal = layer
	}
}

// greedyDescend walks from entry point down to (and excluding) stopLayer,
// hill-climbing toward higher similarity at each layer.
func (h *HNSW) greedyDescend(q []float32, entry uint32, fromLayer, stopLayer int) (uint32, float32) {
	curr := entry
	currScore := metric.CosineSimilarity(q, h.vectors[curr])

	for level := fromLayer; level >= stopLayer; level-- {
		changed := true
		for changed {
			changed = false

			for _, neighbour := range h.connectionsAt(curr, level) {
				if score := metric.CosineSimilarity(q, h.vectors[neighbour]); score > currScore {
					curr = neighbour
					currScore = score
					changed = true
				}
			}
		}
	}

	return curr, currScore
}

// connectionsAt returns the neighbor list of ord at level, or nil when the
// node does not reach that layer.
func (h *HNSW) connectionsAt(ord uint32, level int) []uint32 {
	n := h.nodes[ord]
	if level > n.layer {
		return nil
	}
	return n.connections[level]
}

// link adds a bidirectional edge endpoint and prunes the neighbor list back
// to the layer's connection budget, keeping the most similar neighbors.
// Layer 0 allows double the connections, matching the usual HNSW shape.
func (h *HNSW) link(from, to uint32, level int) {
	maxConnections := h.opts.M
	if level == 0 {
		maxConnections = 2 * h.opts.M
	}

	n := h.nodes[from]
	n.connections[level] = append(n.connections[level], to)

	if len(n.connections[level]) <= maxConnections {
		return
	}

	top := &queue.PriorityQueue{}
	heap.Init(top)

	v := h.vectors[from]
	for _, neighbour := range n.connections[level] {
		score := metric.CosineSimilarity(v, h.vectors[neighbour])

		if top.Len() < maxConnections {
			heap.Push(top, &queue.PriorityQueueItem{Node: neighbour, Score: score})
			continue
		}
		if worst, _ := top.Top().(*queue.PriorityQueueItem); score > worst.Score {
			heap.Pop(top)
			heap.Push(top, &queue.PriorityQueueItem{Node: neighbour, Score: score})
		}
	}

	// Reorder by best match first.
	n.connections[level] = make([]uint32, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(top).(*queue.PriorityQueueItem)
		n.connections[level][i] = item.Node
	}
}

// searchLayer runs a bounded best-first expansion at a single layer,
// returning a min-heap of up to ef candidates (worst on top).
func (h *HNSW) searchLayer(q []float32, entry uint32, entryScore float32, ef, level int) *queue.PriorityQueue {
	visited := make([]bool, len(h.nodes)+1)
	visited[entry] = true

	candidates := &queue.PriorityQueue{Order: true} // max-heap: best frontier first
	heap.Init(candidates)
	heap.Push(candidates, &queue.PriorityQueueItem{Node: entry, Score: entryScore})

	topCandidates := &queue.PriorityQueue{} // min-heap: worst result on top
	heap.Init(topCandidates)
	heap.Push(topCandidates, &queue.PriorityQueueItem{Node: entry, Score: entryScore})

	for candidates.Len() > 0 {
		lowerBound, _ := topCandidates.Top().(*queue.PriorityQueueItem)

		candidate, _ := heap.Pop(candidates).(*queue.PriorityQueueItem)
		if candidate.Score < lowerBound.Score && topCandidates.Len() >= ef {
			break
		}

		for _, neighbour := range h.connectionsAt(candidate.Node, level) {
			if visited[neighbour] {
				continue
			}
			visited[neighbour] = true

			score := metric.CosineSimilarity(q, h.vectors[neighbour])
			item := &queue.PriorityQueueItem{Node: neighbour, Score: score}

			if topCandidates.Len() < ef {
				heap.Push(topCandidates, item)
				heap.Push(candidates, &queue.PriorityQueueItem{Node: neighbour, Score: score})
				continue
			}

			if worst, _ := topCandidates.Top().(*queue.PriorityQueueItem); score > worst.Score {
				heap.Pop(topCandidates)
				heap.Push(topCandidates, item)
				heap.Push(candidates, &queue.PriorityQueueItem{Node: neighbour, Score: score})
			}
		}
	}

	return topCandidates
}

// Search returns the top k matches for q using the default search breadth.
func (h *HNSW) Search(q []float32, k int) ([]index.SearchResult, error) {
	return h.SearchWithEF(q, k, h.opts.EF)
}

// SearchWithEF returns the top k matches for q with an explicit search
// breadth. ef is raised to k when smaller.
func (h *HNSW) SearchWithEF(q []float32, k, ef int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(h.nodes) == 0 {
		return []index.SearchResult{}, nil
	}
	if ef < k {
		ef = k
	}

	curr, currScore := h.greedyDescend(q, h.ep, h.maxVal, 1)
	top := h.searchLayer(q, curr, currScore, ef, 0)

	for top.Len() > k {
		heap.Pop(top)
	}

	results := make([]index.SearchResult, 0, top.Len())
	for _, item := range top.Items {
		results = append(results, index.SearchResult{ID: h.ids[item.Node], Score: item.Score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Stats describes the layer distribution of a built graph.
type Stats struct {
	Items           int
	MaxLayer        int   // topmost populated layer
	LayerCounts     []int // nodes per layer 0..MaxLayer
	MeanConnections float64
}

// Stats returns distribution statistics for the built graph.
func (h *HNSW) Stats() Stats {
	s := Stats{Items: len(h.nodes), MaxLayer: h.maxVal}
	if len(h.nodes) == 0 {
		return s
	}

	s.LayerCounts = make([]int, h.maxVal+1)
	edges := 0
	for _, n := range h.nodes {
		for l := 0; l <= min(n.layer, h.maxVal); l++ {
			s.LayerCounts[l]++
		}
		for _, conns := range n.connections {
			edges += len(conns)
		}
	}
	s.MeanConnections = float64(edges) / float64(len(h.nodes))
	return s
}
