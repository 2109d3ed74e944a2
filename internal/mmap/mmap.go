// Package mmap provides read-only memory mapping of files for the local
// blob store. On platforms without mmap support the file is read into
// memory instead; callers see the same API either way.
package mmap

// Mapping is a read-only view of a file's contents.
type Mapping struct {
	data   []byte
	mapped bool
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}
