// Package simvec provides an embedded vector similarity index for Go.
//
// Simvec stores high-dimensional embedding vectors keyed by opaque string
// identifiers and answers nearest-neighbor queries against them using a
// choice of exact and approximate strategies:
//
//   - Flat: exhaustive exact search, the default and the correctness baseline
//   - IVF: one-shot inverted-file clustering to prune the search space
//   - HNSW: hierarchical proximity graph for fast approximate search
//   - LSH: random-hyperplane hashing fallback for approximate queries
//     before any index has been built
//
// # Quick Start
//
//	ctx := context.Background()
//
//	engine, err := simvec.New(ctx)
//	if err != nil {
//	    panic(err)
//	}
//	defer engine.Close()
//
//	_ = engine.Add(ctx, "doc-1", []float32{0.1, 0.2, 0.3})
//	_ = engine.Add(ctx, "doc-2", []float32{0.2, 0.1, 0.3})
//
//	results, err := engine.FindSimilar(ctx, "doc-1", 5)
//
// # Persistence
//
// The identifier-to-vector map is serialized after every mutation to a
// pluggable blob store (in-memory by default; local file system, MinIO and
// S3 backends are provided). Index structures are never persisted - they are
// disposable caches rebuilt from the store on demand:
//
//	bs, err := blobstore.NewLocalStore("./data")
//	if err != nil {
//	    panic(err)
//	}
//	engine, err := simvec.New(ctx, simvec.WithBlobStore(bs))
//
// # Concurrency
//
// All operations are funneled through a single worker goroutine, so callers
// never observe partial mutations. Engine methods are safe for concurrent
// use; each call blocks until its turn on the queue completes. Index builds
// run on the same queue and block subsequent calls until done.
//
// # Index Selection
//
// Build an index explicitly when the dataset is large enough to hurt:
//
//	err = engine.CreateIndex(ctx, index.KindHNSW)
//
// Without a built index, searches run an exact flat scan. Approximate
// queries issued before any build are served from an LSH fallback:
//
//	results, err = engine.FindSimilarByVector(ctx, query, 10, simvec.Approximate())
package simvec
