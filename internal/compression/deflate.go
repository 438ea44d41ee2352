// Package compression holds the codecs used by thinjar's containers: deflate
// for zip entries and zstd for registry layers.
package compression

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

var flateWriters = sync.Pool{
	New: func() any {
		w, _ := flate.NewWriter(io.Discard, flate.DefaultCompression)
		return w
	},
}

type pooledWriter struct {
	*flate.Writer
}

func (w *pooledWriter) Close() error {
	err := w.Writer.Close()
	flateWriters.Put(w.Writer)
	w.Writer = nil
	return err
}

// RegisterDeflate makes zw compress Deflate entries with pooled encoders.
// An archive with hundreds of entries otherwise allocates one encoder each.
func RegisterDeflate(zw *zip.Writer) {
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		fw := flateWriters.Get().(*flate.Writer)
		fw.Reset(out)
		return &pooledWriter{Writer: fw}, nil
	})
}
