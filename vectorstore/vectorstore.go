// Package vectorstore owns the canonical identifier-to-vector mapping and
// its persistence lifecycle.
//
// The store is the single source of truth: every index structure holds only
// identifiers and derived summary data and is rebuilt from the store on
// demand. After each mutation the full map is serialized and written as one
// blob; a failed write never rolls back the in-memory mutation (the engine
// favors availability of the live index over per-write durability).
//
// The store is not internally locked. All access is serialized by the
// engine's worker; see the root package for the concurrency discipline.
package vectorstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hupe1980/simvec/blobstore"
	"github.com/hupe1980/simvec/codec"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// DefaultSnapshotName is the blob name used for persisted snapshots.
const DefaultSnapshotName = "vectors.snapshot"

// snapshotMagic identifies the snapshot format. The header records the codec
// and compression by name so snapshots are self-describing.
const snapshotMagic = "simvec-snapshot"

// Compression selects how snapshot payloads are compressed.
type Compression int

// Supported snapshot compressions.
const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the stable name recorded in the snapshot header.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

func compressionByName(name string) (Compression, bool) {
	switch name {
	case "none":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "lz4":
		return CompressionLZ4, true
	default:
		return 0, false
	}
}

// Options contains configuration options for the store.
type Options struct {
	// Codec encodes the identifier-to-vector map. Defaults to codec.Default.
	Codec codec.Codec

	// Compression is applied to the encoded payload before writing.
	Compression Compression

	// SnapshotName is the blob name for persisted snapshots.
	SnapshotName string
}

// DefaultOptions contains the default configuration options for the store.
var DefaultOptions = Options{
	Codec:        codec.Default,
	Compression:  CompressionZstd,
	SnapshotName: DefaultSnapshotName,
}

// Store is a durable mapping from identifier to vector.
//
// The first inserted vector fixes the dimension for the life of the store
// (or until Clear).
type Store struct {
	vectors   map[string][]float32
	dimension int
	mutations int

	blobs blobstore.BlobStore
	opts  Options
}

// New creates a store backed by the given blob store and rehydrates it from
// a persisted snapshot if one exists.
//
// A missing snapshot yields an empty store. An unreadable or undecodable
// snapshot also yields an empty store and returns the decode error so the
// caller can log it; the store itself is fully usable either way.
func New(ctx context.Context, blobs blobstore.BlobStore, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.SnapshotName == "" {
		opts.SnapshotName = DefaultSnapshotName
	}

	s := &Store{
		vectors: make(map[string][]float32),
		blobs:   blobs,
		opts:    opts,
	}

	if err := s.load(ctx); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return s, fmt.Errorf("vectorstore: snapshot load: %w", err)
	}

	return s, nil
}

// Add inserts or overwrites the vector for id and persists the store.
// The in-memory mutation always succeeds; the returned error reports only
// the persistence outcome and must not be treated as a rollback.
func (s *Store) Add(ctx context.Context, id string, vector []float32) error {
	v := make([]float32, len(vector))
	copy(v, vector)

	if len(s.vectors) == 0 {
		s.dimension = len(v)
	}

	s.vectors[id] = v
	s.mutations++

	return s.persist(ctx)
}

// BatchAdd inserts or overwrites multiple vectors and persists the store
// once at the end. ids and vectors are parallel slices.
func (s *Store) BatchAdd(ctx context.Context, ids []string, vectors [][]float32) error {
	for i, id := range ids {
		v := make([]float32, len(vectors[i]))
		copy(v, vectors[i])

		if len(s.vectors) == 0 {
			s.dimension = len(v)
		}

		s.vectors[id] = v
		s.mutations++
	}

	return s.persist(ctx)
}

// Remove deletes the vector for id if present and persists the store.
// Removing an absent id is a no-op and skips the snapshot write.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, ok := s.vectors[id]; !ok {
		return nil
	}

	delete(s.vectors, id)
	s.mutations++

	if len(s.vectors) == 0 {
		s.dimension = 0
	}

	return s.persist(ctx)
}

// Get returns the stored vector for id. The returned slice is a copy.
func (s *Store) Get(id string) ([]float32, bool) {
	v, ok := s.vectors[id]
	if !ok {
		return nil, false
	}

	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Contains reports whether id is present.
func (s *Store) Contains(id string) bool {
	_, ok := s.vectors[id]
	return ok
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	return len(s.vectors)
}

// Dimension returns the fixed vector dimension, or 0 while the store is empty.
func (s *Store) Dimension() int {
	return s.dimension
}

// Clear empties the store and erases the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.vectors = make(map[string][]float32)
	s.dimension = 0
	s.mutations++

	return s.blobs.Delete(ctx, s.opts.SnapshotName)
}

// All returns the current contents in deterministic (sorted-identifier)
// order. Index builds take this snapshot; later mutations are not visible
// to an index built from it.
func (s *Store) All() (ids []string, vectors [][]float32) {
	ids = make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors = make([][]float32, len(ids))
	for i, id := range ids {
		vectors[i] = s.vectors[id]
	}
	return ids, vectors
}

// Mutations returns the number of mutations since the last ResetMutations.
// The engine uses this to amortize index rebuilds.
func (s *Store) Mutations() int {
	return s.mutations
}

// ResetMutations zeroes the mutation counter after an index rebuild.
func (s *Store) ResetMutations() {
	s.mutations = 0
}

func (s *Store) persist(ctx context.Context) error {
	payload, err := s.opts.Codec.Marshal(s.vectors)
	if err != nil {
		return fmt.Errorf("vectorstore: encode snapshot: %w", err)
	}

	compressed, err := compress(payload, s.opts.Compression)
	if err != nil {
		return fmt.Errorf("vectorstore: compress snapshot: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s v1 codec=%s compression=%s\n", snapshotMagic, s.opts.Codec.Name(), s.opts.Compression)
	buf.Write(compressed)

	if err := s.blobs.Put(ctx, s.opts.SnapshotName, buf.Bytes()); err != nil {
		return fmt.Errorf("vectorstore: write snapshot: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	blob, err := s.blobs.Open(ctx, s.opts.SnapshotName)
	if err != nil {
		return err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(blob)
	if err != nil {
		return err
	}

	payload, c, dec, err := parseHeader(data)
	if err != nil {
		return err
	}

	raw, err := decompress(payload, c)
	if err != nil {
		return err
	}

	vectors := make(map[string][]float32)
	if err := dec.Unmarshal(raw, &vectors); err != nil {
		return err
	}

	s.vectors = vectors
	s.dimension = 0
	for _, v := range vectors {
		s.dimension = len(v)
		break
	}
	return nil
}

// parseHeader validates the snapshot header and returns the payload along
// with the codec and compression it was written with.
func parseHeader(data []byte) ([]byte, Compression, codec.Codec, error) {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return nil, 0, nil, errors.New("snapshot header missing")
	}

	fields := strings.Fields(string(data[:nl]))
	if len(fields) != 4 || fields[0] != snapshotMagic || fields[1] != "v1" {
		return nil, 0, nil, fmt.Errorf("unrecognized snapshot header %q", string(data[:nl]))
	}

	codecName := strings.TrimPrefix(fields[2], "codec=")
	dec, ok := codec.ByName(codecName)
	if !ok {
		return nil, 0, nil, fmt.Errorf("unknown snapshot codec %q", codecName)
	}

	compName := strings.TrimPrefix(fields[3], "compression=")
	c, ok := compressionByName(compName)
	if !ok {
		return nil, 0, nil, fmt.Errorf("unknown snapshot compression %q", compName)
	}

	return data[nl+1:], c, dec, nil
}

func compress(payload []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}
}

func decompress(payload []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}
}
