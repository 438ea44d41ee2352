package store

import (
	"context"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/aweris/thinjar/internal/compression"
	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
)

// ArchiveStore writes libraries into a single zip archive:
//
//	ab/                  (shard marker, once per shard)
//	ab/cdef0123...jar
//
// The archive is built in a temporary file and replaces path on Close. It
// must not be shared between concurrent runs.
type ArchiveStore struct {
	path    string
	tmp     *os.File
	zw      *zip.Writer
	shards  *addressSet
	written *addressSet
	done    bool
}

// NewArchiveStore starts a new cache archive for path.
func NewArchiveStore(path string) (*ArchiveStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errdefs.Storage("create cache dir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return nil, errdefs.Storage("create", path, err)
	}

	zw := zip.NewWriter(tmp)
	compression.RegisterDeflate(zw)
	return &ArchiveStore{
		path:    path,
		tmp:     tmp,
		zw:      zw,
		shards:  newAddressSet(),
		written: newAddressSet(),
	}, nil
}

func (s *ArchiveStore) Put(ctx context.Context, addr digest.Address, r io.Reader) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.written.Has(addr.String()) {
		return false, nil
	}

	if s.shards.Add(addr.Shard) {
		if _, err := s.zw.CreateHeader(&zip.FileHeader{Name: addr.Shard + "/", Method: zip.Store}); err != nil {
			return false, errdefs.Storage("write shard", s.path, err)
		}
	}

	w, err := s.zw.CreateHeader(&zip.FileHeader{Name: addr.String(), Method: zip.Deflate})
	if err != nil {
		return false, errdefs.Storage("write", addr.String(), err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return false, errdefs.Storage("write", addr.String(), err)
	}
	s.written.Add(addr.String())
	return true, nil
}

// Len returns the number of libraries written.
func (s *ArchiveStore) Len() int {
	return s.written.Len()
}

// Close finalizes the archive and renames it onto the cache path.
func (s *ArchiveStore) Close() error {
	if s.done {
		return nil
	}
	if err := s.zw.Close(); err != nil {
		return errdefs.Storage("finalize", s.path, err)
	}
	if err := s.tmp.Sync(); err != nil {
		return errdefs.Storage("sync", s.path, err)
	}
	if err := s.tmp.Close(); err != nil {
		return errdefs.Storage("close", s.path, err)
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		return errdefs.Storage("rename", s.path, err)
	}
	s.done = true
	return nil
}

func (s *ArchiveStore) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return errdefs.Storage("abort", s.path, err)
	}
	return nil
}

// ArchiveSource reads a cache archive written by ArchiveStore.
type ArchiveSource struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

// OpenArchive opens the cache archive at path.
func OpenArchive(path string) (*ArchiveSource, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Storage("open cache", path, errdefs.ErrNotFound)
		}
		return nil, errdefs.Storage("open cache", path, err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, dup := files[f.Name]; !dup {
			files[f.Name] = f
		}
	}
	return &ArchiveSource{path: path, zr: zr, files: files}, nil
}

func (s *ArchiveSource) Open(addr digest.Address) (io.ReadCloser, error) {
	f, ok := s.files[addr.String()]
	if !ok {
		return nil, errdefs.Storage("open", addr.String(), errdefs.ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errdefs.Storage("open", addr.String(), err)
	}
	return rc, nil
}

// Addresses yields library addresses in archive order; shard markers and
// foreign entries are skipped.
func (s *ArchiveSource) Addresses() iter.Seq2[digest.Address, error] {
	return func(yield func(digest.Address, error) bool) {
		seen := newAddressSet()
		for _, f := range s.zr.File {
			addr, err := digest.ParseAddress(f.Name)
			if err != nil || !seen.Add(f.Name) {
				continue
			}
			if !yield(addr, nil) {
				return
			}
		}
	}
}

func (s *ArchiveSource) Close() error {
	return s.zr.Close()
}
