package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	ctx := context.Background()

	stores := map[string]func(t *testing.T) BlobStore{
		"Memory": func(t *testing.T) BlobStore {
			return NewMemoryStore()
		},
		"Local": func(t *testing.T) BlobStore {
			s, err := NewLocalStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("PutOpenRoundTrip", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "blob", []byte("hello world")))

				b, err := s.Open(ctx, "blob")
				require.NoError(t, err)
				defer b.Close()

				assert.Equal(t, int64(11), b.Size())

				data, err := ReadAll(b)
				require.NoError(t, err)
				assert.Equal(t, []byte("hello world"), data)
			})

			t.Run("PutOverwrites", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "blob", []byte("first")))
				require.NoError(t, s.Put(ctx, "blob", []byte("second")))

				b, err := s.Open(ctx, "blob")
				require.NoError(t, err)
				defer b.Close()

				data, err := ReadAll(b)
				require.NoError(t, err)
				assert.Equal(t, []byte("second"), data)
			})

			t.Run("OpenMissing", func(t *testing.T) {
				s := newStore(t)

				_, err := s.Open(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("DeleteMissingIsNoop", func(t *testing.T) {
				s := newStore(t)
				assert.NoError(t, s.Delete(ctx, "missing"))
			})

			t.Run("Delete", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "blob", []byte("data")))
				require.NoError(t, s.Delete(ctx, "blob"))

				_, err := s.Open(ctx, "blob")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("ListByPrefix", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "snapshots-a", []byte("a")))
				require.NoError(t, s.Put(ctx, "snapshots-b", []byte("b")))
				require.NoError(t, s.Put(ctx, "other", []byte("c")))

				names, err := s.List(ctx, "snapshots-")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"snapshots-a", "snapshots-b"}, names)

				all, err := s.List(ctx, "")
				require.NoError(t, err)
				assert.Len(t, all, 3)
			})

			t.Run("EmptyBlob", func(t *testing.T) {
				s := newStore(t)

				require.NoError(t, s.Put(ctx, "empty", nil))

				b, err := s.Open(ctx, "empty")
				require.NoError(t, err)
				defer b.Close()

				assert.Equal(t, int64(0), b.Size())

				data, err := ReadAll(b)
				require.NoError(t, err)
				assert.Empty(t, data)
			})
		})
	}
}
