//go:build !unix

package mmap

import "os"

// Open reads the file at path into memory. Platforms without mmap support
// fall back to a plain read; the Mapping API is identical.
func Open(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}

// Close releases the in-memory copy.
func (m *Mapping) Close() error {
	m.data = nil
	return nil
}
