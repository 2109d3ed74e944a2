package simvec

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/simvec/blobstore"
	"github.com/hupe1980/simvec/index"
	"github.com/hupe1980/simvec/index/flat"
	"github.com/hupe1980/simvec/index/hnsw"
	"github.com/hupe1980/simvec/index/ivf"
	"github.com/hupe1980/simvec/index/lsh"
	"github.com/hupe1980/simvec/vectorstore"
	"golang.org/x/time/rate"
)

// Entry is an identifier/vector pair for batch ingestion.
type Entry struct {
	ID     string
	Vector []float32
}

// Engine is the single entry point external collaborators call.
//
// All store and index access is funneled through one worker goroutine, so no
// two mutations and no mutation-during-read can interleave. Callers block on
// a completion signal per call; internally there is no parallel mutation of
// shared state. Index construction runs on the same worker, so a rebuild
// blocks subsequent calls until it completes - callers must tolerate added
// latency immediately after bulk inserts.
type Engine struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex // guards closed against concurrent submits
	closed bool

	// Worker-owned state. Never touched outside the worker goroutine.
	store    *vectorstore.Store
	idx      index.Index
	fallback *lsh.LSH // cached LSH fallback, invalidated by mutations
	limiter  *rate.Limiter

	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// New creates an Engine, rehydrating the store from a persisted snapshot if
// the configured blob store holds one. A corrupt snapshot is logged and
// treated as an empty store.
func New(ctx context.Context, optFns ...Option) (*Engine, error) {
	opts := options{
		blobs:            blobstore.NewMemoryStore(),
		compression:      vectorstore.DefaultOptions.Compression,
		rebuildThreshold: 64,
		rebuildInterval:  time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = NewLogger(nil)
	}
	if opts.metrics == nil {
		opts.metrics = NoopMetricsCollector{}
	}

	store, err := vectorstore.New(ctx, opts.blobs, func(o *vectorstore.Options) {
		if opts.codec != nil {
			o.Codec = opts.codec
		}
		o.Compression = opts.compression
	})
	if err != nil {
		// The store is usable (empty); surface the decode failure in the log
		// only, matching the availability-over-durability policy.
		opts.logger.WarnContext(ctx, "snapshot rehydration failed, starting empty", "error", err)
	}

	e := &Engine{
		tasks:   make(chan func()),
		done:    make(chan struct{}),
		store:   store,
		limiter: rate.NewLimiter(rate.Every(opts.rebuildInterval), 1),
		opts:    opts,
		logger:  opts.logger,
		metrics: opts.metrics,
	}

	go e.worker()

	return e, nil
}

// worker is the single consumer of the task queue. Every enqueued task runs
// to completion; there is no cancellation of in-flight work.
func (e *Engine) worker() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// submit enqueues fn and waits for it to finish. ctx gates only the enqueue;
// once accepted, fn always runs to completion.
func (e *Engine) submit(ctx context.Context, fn func()) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrServiceUnavailable
	}

	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case e.tasks <- wrapped:
		e.mu.RUnlock()
	case <-ctx.Done():
		e.mu.RUnlock()
		return ctx.Err()
	}

	<-finished
	return nil
}

// Close stops the worker after draining already-enqueued tasks. Calls made
// after Close fail with ErrServiceUnavailable. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()

	<-e.done
	return nil
}

// Add inserts or overwrites the vector for id. The in-memory mutation always
// succeeds; snapshot write failures are logged, never returned.
func (e *Engine) Add(ctx context.Context, id string, vector []float32) error {
	return e.submit(ctx, func() {
		start := time.Now()

		persistErr := e.store.Add(ctx, id, vector)
		e.logger.LogPersist(ctx, persistErr)
		if persistErr != nil {
			e.metrics.RecordPersistError()
		}

		e.logger.LogAdd(ctx, id, len(vector))
		e.metrics.RecordAdd(time.Since(start))
		e.afterMutation(ctx)
	})
}

// BatchAdd inserts or overwrites multiple vectors in one serialized task
// with a single snapshot write at the end.
func (e *Engine) BatchAdd(ctx context.Context, entries []Entry) error {
	return e.submit(ctx, func() {
		start := time.Now()

		ids := make([]string, len(entries))
		vectors := make([][]float32, len(entries))
		for i, entry := range entries {
			ids[i] = entry.ID
			vectors[i] = entry.Vector
		}

		persistErr := e.store.BatchAdd(ctx, ids, vectors)
		e.logger.LogPersist(ctx, persistErr)
		if persistErr != nil {
			e.metrics.RecordPersistError()
		}

		e.metrics.RecordAdd(time.Since(start))
		e.afterMutation(ctx)
	})
}

// Remove deletes the vector for id. Removing an absent id is a no-op.
func (e *Engine) Remove(ctx context.Context, id string) error {
	return e.submit(ctx, func() {
		start := time.Now()

		persistErr := e.store.Remove(ctx, id)
		e.logger.LogPersist(ctx, persistErr)
		if persistErr != nil {
			e.metrics.RecordPersistError()
		}

		e.logger.LogRemove(ctx, id)
		e.metrics.RecordRemove(time.Since(start))
		e.afterMutation(ctx)
	})
}

// Get returns the stored vector for id, or ErrVectorNotFound.
func (e *Engine) Get(ctx context.Context, id string) ([]float32, error) {
	var (
		vector []float32
		ok     bool
	)
	if err := e.submit(ctx, func() {
		vector, ok = e.store.Get(id)
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVectorNotFound
	}
	return vector, nil
}

// Contains reports whether id is present in the store.
func (e *Engine) Contains(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := e.submit(ctx, func() {
		ok = e.store.Contains(id)
	}); err != nil {
		return false, err
	}
	return ok, nil
}

// Count returns the number of stored vectors.
func (e *Engine) Count(ctx context.Context) (int, error) {
	var n int
	if err := e.submit(ctx, func() {
		n = e.store.Count()
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// Clear empties the store, erases the persisted snapshot and drops any built
// index.
func (e *Engine) Clear(ctx context.Context) error {
	return e.submit(ctx, func() {
		if err := e.store.Clear(ctx); err != nil {
			e.logger.LogPersist(ctx, err)
			e.metrics.RecordPersistError()
		}
		e.idx = nil
		e.fallback = nil
		e.store.ResetMutations()
	})
}

// CreateIndex (re)builds the requested index kind from the current store
// contents, replacing any previously built index of a different kind.
func (e *Engine) CreateIndex(ctx context.Context, kind index.Kind) error {
	return e.submit(ctx, func() {
		e.rebuild(ctx, kind)
	})
}

// IndexKind returns the kind of the currently built index, or ok=false when
// only the implicit flat fallback is available.
func (e *Engine) IndexKind(ctx context.Context) (kind index.Kind, ok bool, err error) {
	err = e.submit(ctx, func() {
		if e.idx != nil {
			kind, ok = e.idx.Kind(), true
		}
	})
	return kind, ok, err
}

// FindSimilar returns up to k vectors most similar to the one stored at id,
// excluding id itself. Fails with ErrVectorNotFound when id is absent.
func (e *Engine) FindSimilar(ctx context.Context, id string, k int, optFns ...SearchOption) ([]index.SearchResult, error) {
	var (
		results []index.SearchResult
		err     error
	)
	if submitErr := e.submit(ctx, func() {
		start := time.Now()
		defer func() { e.metrics.RecordSearch(k, time.Since(start), err) }()

		vector, ok := e.store.Get(id)
		if !ok {
			err = ErrVectorNotFound
			return
		}

		// Fetch one extra so dropping the query id still fills k.
		var raw []index.SearchResult
		raw, err = e.search(vector, k+1, optFns)
		if err != nil {
			return
		}

		results = make([]index.SearchResult, 0, k)
		for _, r := range raw {
			if r.ID == id {
				continue
			}
			results = append(results, r)
			if len(results) == k {
				break
			}
		}

		e.logger.LogSearch(ctx, k, len(results), nil)
	}); submitErr != nil {
		return nil, submitErr
	}
	return results, translateError(err)
}

// FindSimilarByVector returns up to k stored vectors most similar to the
// query vector, most similar first. The query dimension must match the
// store's fixed dimension.
func (e *Engine) FindSimilarByVector(ctx context.Context, vector []float32, k int, optFns ...SearchOption) ([]index.SearchResult, error) {
	var (
		results []index.SearchResult
		err     error
	)
	if submitErr := e.submit(ctx, func() {
		start := time.Now()
		defer func() { e.metrics.RecordSearch(k, time.Since(start), err) }()

		results, err = e.search(vector, k, optFns)
		e.logger.LogSearch(ctx, k, len(results), err)
	}); submitErr != nil {
		return nil, submitErr
	}
	return results, translateError(err)
}

// Stats is a point-in-time summary of the engine state.
type Stats struct {
	Count     int
	Dimension int
	IndexKind string // empty when only the implicit flat fallback exists
	Mutations int    // mutations since the last rebuild
}

// Stats returns a point-in-time summary of the engine state.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := e.submit(ctx, func() {
		s = Stats{
			Count:     e.store.Count(),
			Dimension: e.store.Dimension(),
			Mutations: e.store.Mutations(),
		}
		if e.idx != nil {
			s.IndexKind = e.idx.Kind().String()
		}
	})
	return s, err
}

// search runs on the worker. It validates the query, picks the strategy and
// executes it.
func (e *Engine) search(q []float32, k int, optFns []SearchOption) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	var so searchOptions
	for _, fn := range optFns {
		fn(&so)
	}

	// An empty store answers any query with an empty result list.
	if e.store.Count() == 0 {
		return []index.SearchResult{}, nil
	}

	if dim := e.store.Dimension(); len(q) != dim {
		return nil, &index.ErrDimensionMismatch{Expected: dim, Actual: len(q)}
	}

	idx, err := e.pick(so)
	if err != nil {
		return nil, err
	}

	switch typed := idx.(type) {
	case *hnsw.HNSW:
		if so.ef > 0 {
			return typed.SearchWithEF(q, k, so.ef)
		}
	case *ivf.IVF:
		if so.factor > 0 {
			return typed.SearchWithFactor(q, k, so.factor)
		}
	}

	return idx.Search(q, k)
}

// pick selects the index strategy for a search: an explicitly requested
// kind, the built index, the LSH fallback for approximate queries, or exact
// flat search as the degraded-but-correct default.
func (e *Engine) pick(so searchOptions) (index.Index, error) {
	if so.using != nil {
		switch {
		case *so.using == index.KindFlat:
			return e.flatSnapshot(), nil
		case e.idx != nil && e.idx.Kind() == *so.using:
			return e.idx, nil
		default:
			return nil, ErrIndexNotBuilt
		}
	}

	if e.idx != nil {
		return e.idx, nil
	}

	if so.approximate {
		if e.fallback == nil {
			ids, vectors := e.store.All()
			e.fallback = lsh.Build(ids, vectors, e.opts.lshOpts...)
		}
		return e.fallback, nil
	}

	return e.flatSnapshot(), nil
}

// flatSnapshot builds a throwaway exact index over the current contents.
func (e *Engine) flatSnapshot() *flat.Flat {
	ids, vectors := e.store.All()
	return flat.New(ids, vectors, e.opts.flatOpts...)
}

// rebuild runs on the worker and replaces the current index.
func (e *Engine) rebuild(ctx context.Context, kind index.Kind) {
	start := time.Now()
	ids, vectors := e.store.All()

	switch kind {
	case index.KindFlat:
		e.idx = flat.New(ids, vectors, e.opts.flatOpts...)
	case index.KindIVF:
		e.idx = ivf.Build(ids, vectors, e.opts.ivfOpts...)
	case index.KindHNSW:
		e.idx = hnsw.Build(ids, vectors, e.opts.hnswOpts...)
	case index.KindLSH:
		e.idx = lsh.Build(ids, vectors, e.opts.lshOpts...)
	}

	e.fallback = nil
	e.store.ResetMutations()
	e.logger.LogRebuild(ctx, kind, len(ids))
	e.metrics.RecordRebuild(kind, time.Since(start))
}

// afterMutation runs on the worker after every mutating task. It invalidates
// the fallback and rebuilds the current index once enough mutations have
// accumulated, throttled so bulk ingests amortize to one rebuild.
func (e *Engine) afterMutation(ctx context.Context) {
	e.fallback = nil

	if e.idx == nil || e.opts.rebuildThreshold < 1 {
		return
	}
	if e.store.Mutations() < e.opts.rebuildThreshold {
		return
	}
	if !e.limiter.Allow() {
		return
	}

	e.rebuild(ctx, e.idx.Kind())
}
