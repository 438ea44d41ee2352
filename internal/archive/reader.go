// Package archive reads fat archives and writes thin ones.
//
// A Reader exposes the source manifest and a single forward pass over its
// entries in central-directory order. A Writer builds the output in a
// temporary file next to the target and renames it into place only when
// the archive is complete, so a failed run never leaves a truncated archive
// at the target path.
package archive

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/libindex"
	"github.com/aweris/thinjar/internal/manifest"
)

// Entry is one member of an archive.
type Entry struct {
	Name     string
	Modified time.Time
	Method   uint16

	file *zip.File
}

// IsDir reports whether e is a directory marker.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Open returns the entry's uncompressed bytes.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.file == nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, errdefs.ErrNotFound)
	}
	return e.file.Open()
}

// Reader is an open source archive.
type Reader struct {
	path     string
	zr       *zip.ReadCloser
	manifest *manifest.Manifest
	consumed bool
}

// Open opens the archive at path and parses its manifest. A missing file, a
// file that is not a zip container, or an archive without a manifest fails
// with a NotAnArchive error.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errdefs.NotAnArchive("open", path, err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errdefs.NotAnArchive("open", path, err)
	}

	r := &Reader{path: path, zr: zr}
	if err := r.readManifest(); err != nil {
		zr.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readManifest() error {
	f := r.lookup(manifest.Path)
	if f == nil {
		return errdefs.NotAnArchive("open", r.path, errdefs.ErrNoManifest)
	}
	rc, err := f.Open()
	if err != nil {
		return errdefs.NotAnArchive("read manifest", r.path, err)
	}
	defer rc.Close()

	m, err := manifest.Parse(rc)
	if err != nil {
		return errdefs.NotAnArchive("read manifest", r.path, err)
	}
	m.Modified = f.Modified
	r.manifest = m
	return nil
}

func (r *Reader) lookup(name string) *zip.File {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Path returns the path the archive was opened from.
func (r *Reader) Path() string { return r.path }

// Manifest returns the parsed manifest.
func (r *Reader) Manifest() *manifest.Manifest { return r.manifest }

// Entries yields every entry, the manifest included, in archive order. The
// sequence can be ranged over once; a second pass yields ErrConsumed.
func (r *Reader) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if r.consumed {
			yield(Entry{}, errdefs.IO("entries", r.path, errdefs.ErrConsumed))
			return
		}
		r.consumed = true
		for _, f := range r.zr.File {
			e := Entry{
				Name:     f.Name,
				Modified: f.Modified,
				Method:   f.Method,
				file:     f,
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Index reads the library index of a thin archive. An archive without an
// index has no libraries.
func (r *Reader) Index() ([]libindex.Entry, error) {
	f := r.lookup(libindex.Path)
	if f == nil {
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errdefs.IO("read index", r.path, err)
	}
	defer rc.Close()

	entries, err := libindex.Parse(rc)
	if err != nil {
		if errors.Is(err, libindex.ErrMalformed) {
			return nil, errdefs.NotAnArchive("read index", r.path, err)
		}
		return nil, errdefs.IO("read index", r.path, err)
	}
	return entries, nil
}

func (r *Reader) Close() error {
	return r.zr.Close()
}
