// Package store implements the library cache.
//
// Libraries are kept under their content address, "ab/cdef...jar", in one of
// two forms chosen per run:
//
//   - a directory tree (DirStore), shared safely between concurrent runs;
//   - a single zip archive (ArchiveStore), written once per run.
//
// Writing the same address twice never duplicates stored bytes.
package store

import (
	"context"
	"io"
	"iter"

	"github.com/aweris/thinjar/internal/digest"
)

// Store receives library bytes during a run.
type Store interface {
	// Put stores the bytes read from r under addr. It reports whether bytes
	// were written; false means addr was already present.
	Put(ctx context.Context, addr digest.Address, r io.Reader) (written bool, err error)

	// Close commits everything written during the run.
	Close() error

	// Abort discards uncommitted writes. It is a no-op after Close.
	Abort() error
}

// Source reads libraries back out of a cache.
type Source interface {
	// Open returns the bytes stored at addr.
	Open(addr digest.Address) (io.ReadCloser, error)

	// Addresses yields every stored address.
	Addresses() iter.Seq2[digest.Address, error]

	Close() error
}

// OpenSource opens an existing cache for reading.
func OpenSource(path string, dir bool) (Source, error) {
	if dir {
		return OpenDir(path)
	}
	return OpenArchive(path)
}
