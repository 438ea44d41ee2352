package store

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
)

// DirStore keeps libraries in a directory tree:
//
//	root/
//	  ab/
//	    cdef0123...jar
//
// Each file is written to a temporary name in its shard and renamed into
// place, so concurrent runs writing the same address both succeed and the
// file is never observed half-written.
type DirStore struct {
	root   string
	verify bool
}

// DirOption configures a DirStore.
type DirOption func(*DirStore)

// WithVerify makes Put re-hash a library that already exists at its address
// and fail with ErrAddressConflict if the stored bytes differ.
func WithVerify(verify bool) DirOption {
	return func(s *DirStore) { s.verify = verify }
}

// NewDirStore opens root for writing, creating it if needed.
func NewDirStore(root string, opts ...DirOption) (*DirStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errdefs.Storage("create cache dir", root, err)
	}
	s := &DirStore{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OpenDir opens an existing directory cache for reading.
func OpenDir(root string) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Storage("open cache dir", root, errdefs.ErrNotFound)
		}
		return nil, errdefs.Storage("open cache dir", root, err)
	}
	if !info.IsDir() {
		return nil, errdefs.Storage("open cache dir", root, errors.New("not a directory"))
	}
	return &DirStore{root: root}, nil
}

// Root returns the cache directory.
func (s *DirStore) Root() string { return s.root }

func (s *DirStore) Put(ctx context.Context, addr digest.Address, r io.Reader) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path := s.Path(addr)
	if _, err := os.Stat(path); err == nil {
		if s.verify {
			return false, s.verifyExisting(addr)
		}
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errdefs.Storage("create shard", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return false, errdefs.Storage("create", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return false, errdefs.Storage("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return false, errdefs.Storage("write", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		if _, statErr := os.Stat(path); statErr == nil {
			return false, nil
		}
		return false, errdefs.Storage("rename", path, err)
	}
	return true, nil
}

func (s *DirStore) verifyExisting(addr digest.Address) error {
	path := s.Path(addr)
	f, err := os.Open(path)
	if err != nil {
		return errdefs.Storage("verify", path, err)
	}
	defer f.Close()

	hash, err := digest.Hash(f)
	if err != nil {
		return errdefs.Storage("verify", path, err)
	}
	if hash != addr.Hash() {
		return errdefs.Storage("verify", path, errdefs.ErrAddressConflict)
	}
	return nil
}

// Has reports whether addr is stored.
func (s *DirStore) Has(addr digest.Address) bool {
	_, err := os.Stat(s.Path(addr))
	return err == nil
}

// Stat returns the stored size of addr.
func (s *DirStore) Stat(addr digest.Address) (int64, bool) {
	info, err := os.Stat(s.Path(addr))
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// Path returns the file path of addr.
func (s *DirStore) Path(addr digest.Address) string {
	return filepath.Join(s.root, addr.Shard, addr.Name)
}

func (s *DirStore) Open(addr digest.Address) (io.ReadCloser, error) {
	path := s.Path(addr)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Storage("open", path, errdefs.ErrNotFound)
		}
		return nil, errdefs.Storage("open", path, err)
	}
	return f, nil
}

// Addresses yields stored addresses in shard order. Files that are not
// named like a cache entry are skipped.
func (s *DirStore) Addresses() iter.Seq2[digest.Address, error] {
	return func(yield func(digest.Address, error) bool) {
		shards, err := os.ReadDir(s.root)
		if err != nil {
			yield(digest.Address{}, errdefs.Storage("list", s.root, err))
			return
		}
		for _, shard := range shards {
			if !shard.IsDir() || len(shard.Name()) != 2 {
				continue
			}
			dir := filepath.Join(s.root, shard.Name())
			files, err := os.ReadDir(dir)
			if err != nil {
				yield(digest.Address{}, errdefs.Storage("list", dir, err))
				return
			}
			for _, f := range files {
				if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
					continue
				}
				addr, err := digest.ParseAddress(shard.Name() + "/" + f.Name())
				if err != nil {
					continue
				}
				if !yield(addr, nil) {
					return
				}
			}
		}
	}
}

func (s *DirStore) Close() error { return nil }
func (s *DirStore) Abort() error { return nil }
