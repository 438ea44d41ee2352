package archive

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/aweris/thinjar/internal/compression"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/libindex"
	"github.com/aweris/thinjar/internal/manifest"
)

const copyBufferSize = 4096

// Writer builds an archive at a temporary path and publishes it on Commit.
type Writer struct {
	target string
	tmp    *os.File
	zw     *zip.Writer
	done   bool
}

// Create starts an archive for target whose first entry is m, written with
// its original bytes.
func Create(target string, m *manifest.Manifest) (*Writer, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errdefs.IO("create", target, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return nil, errdefs.IO("create", target, err)
	}

	zw := zip.NewWriter(tmp)
	compression.RegisterDeflate(zw)
	w := &Writer{target: target, tmp: tmp, zw: zw}

	if m != nil {
		e := Entry{Name: manifest.Path, Modified: m.Modified, Method: zip.Deflate}
		if err := w.WriteEntry(e, bytes.NewReader(m.Bytes())); err != nil {
			w.Abort()
			return nil, err
		}
	}
	return w, nil
}

// WriteEntry copies r into the archive under e.Name. The compression method
// and timestamp of e are kept.
func (w *Writer) WriteEntry(e Entry, r io.Reader) error {
	hdr := &zip.FileHeader{
		Name:     e.Name,
		Method:   e.Method,
		Modified: e.Modified,
	}
	switch {
	case e.IsDir():
		hdr.Method = zip.Store
	case hdr.Method != zip.Store:
		hdr.Method = zip.Deflate
	}
	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return errdefs.IO("write entry", e.Name, err)
	}
	if _, err := io.CopyBuffer(dst, r, make([]byte, copyBufferSize)); err != nil {
		return errdefs.IO("write entry", e.Name, err)
	}
	return nil
}

// Finish appends the library index and commits the archive.
func (w *Writer) Finish(index []libindex.Entry) error {
	e := Entry{Name: libindex.Path, Method: zip.Deflate}
	if err := w.WriteEntry(e, bytes.NewReader(libindex.Format(index))); err != nil {
		return err
	}
	return w.Commit()
}

// Commit finalizes the container and renames it onto the target path.
func (w *Writer) Commit() error {
	if err := w.zw.Close(); err != nil {
		return errdefs.IO("finalize", w.target, err)
	}
	if err := w.tmp.Sync(); err != nil {
		return errdefs.IO("sync", w.target, err)
	}
	if err := w.tmp.Close(); err != nil {
		return errdefs.IO("close", w.target, err)
	}
	if err := os.Rename(w.tmp.Name(), w.target); err != nil {
		return errdefs.IO("rename", w.target, err)
	}
	w.done = true
	return nil
}

// Abort discards the temporary archive. It is a no-op after a successful
// Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	if err := os.Remove(w.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return errdefs.IO("abort", w.target, err)
	}
	return nil
}
