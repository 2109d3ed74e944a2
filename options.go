package simvec

import (
	"time"

	"github.com/hupe1980/simvec/blobstore"
	"github.com/hupe1980/simvec/codec"
	"github.com/hupe1980/simvec/index/flat"
	"github.com/hupe1980/simvec/index/hnsw"
	"github.com/hupe1980/simvec/index/ivf"
	"github.com/hupe1980/simvec/index/lsh"
	"github.com/hupe1980/simvec/vectorstore"
)

type options struct {
	blobs            blobstore.BlobStore
	codec            codec.Codec
	compression      vectorstore.Compression
	logger           *Logger
	metrics          MetricsCollector
	rebuildThreshold int
	rebuildInterval  time.Duration

	flatOpts []func(o *flat.Options)
	ivfOpts  []func(o *ivf.Options)
	hnswOpts []func(o *hnsw.Options)
	lshOpts  []func(o *lsh.Options)
}

// Option configures Engine construction behavior.
type Option func(*options)

// WithBlobStore configures where snapshots are persisted. The default is an
// in-memory store, which trades durability for zero host requirements; use
// blobstore.NewLocalStore (or the minio/s3 backends) for durable storage.
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		if bs != nil {
			o.blobs = bs
		}
	}
}

// WithCodec configures the codec used for snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures snapshot payload compression.
func WithCompression(c vectorstore.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging. Defaults to a text logger at
// info level.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector configures operational metrics collection.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithRebuildThreshold sets how many mutations accumulate before the engine
// rebuilds the current index automatically. Values < 1 disable automatic
// rebuilds.
func WithRebuildThreshold(n int) Option {
	return func(o *options) {
		o.rebuildThreshold = n
	}
}

// WithRebuildInterval sets the minimum interval between automatic rebuilds,
// so bulk insert storms amortize to one rebuild per interval.
func WithRebuildInterval(d time.Duration) Option {
	return func(o *options) {
		o.rebuildInterval = d
	}
}

// WithFlatOptions configures the flat index built by CreateIndex and used
// for fallback searches.
func WithFlatOptions(optFns ...func(o *flat.Options)) Option {
	return func(o *options) {
		o.flatOpts = append(o.flatOpts, optFns...)
	}
}

// WithIVFOptions configures IVF index builds.
func WithIVFOptions(optFns ...func(o *ivf.Options)) Option {
	return func(o *options) {
		o.ivfOpts = append(o.ivfOpts, optFns...)
	}
}

// WithHNSWOptions configures HNSW index builds.
func WithHNSWOptions(optFns ...func(o *hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOpts = append(o.hnswOpts, optFns...)
	}
}

// WithLSHOptions configures LSH index builds, including the fallback index
// built for approximate searches when no index exists yet.
func WithLSHOptions(optFns ...func(o *lsh.Options)) Option {
	return func(o *options) {
		o.lshOpts = append(o.lshOpts, optFns...)
	}
}

