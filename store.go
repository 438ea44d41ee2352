package thinjar

import (
	"github.com/aweris/thinjar/internal/archive"
	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/libindex"
	"github.com/aweris/thinjar/internal/manifest"
	"github.com/aweris/thinjar/internal/store"
)

// Store receives library bytes during a run.
// Re-exported from internal/store for convenience.
type Store = store.Store

// Source reads libraries back out of a cache.
type Source = store.Source

// Address is the content address of a library.
type Address = digest.Address

// IndexEntry is one line of a thin archive's library index.
type IndexEntry = libindex.Entry

// Descriptor holds the layout attributes read from a fat archive's manifest.
type Descriptor = manifest.Descriptor

// IndexPath is where the library index lives inside a thin archive.
const IndexPath = libindex.Path

// AddressOf derives the cache address of a hex SHA-256 hash.
func AddressOf(hash string) (Address, error) {
	return digest.AddressOf(hash)
}

// OpenCache opens an existing library cache for reading.
func OpenCache(path string, dir bool) (Source, error) {
	return store.OpenSource(path, dir)
}

// ReadIndex returns the library index of the thin archive at path.
func ReadIndex(path string) ([]IndexEntry, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Index()
}
