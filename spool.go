package thinjar

import (
	"io"
	"os"

	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
)

// spool holds one library while it is hashed, so the entry stream is read
// once even though its address is only known at the end.
type spool struct {
	f    *os.File
	size int64
}

func newSpool(dir string) (*spool, error) {
	f, err := os.CreateTemp(dir, "thinjar-spool-*")
	if err != nil {
		return nil, errdefs.IO("create spool", dir, err)
	}
	return &spool{f: f}, nil
}

// fill replaces the spool's content with r and returns its hash.
func (s *spool) fill(r io.Reader) (string, error) {
	if err := s.f.Truncate(0); err != nil {
		return "", errdefs.IO("truncate spool", s.f.Name(), err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return "", errdefs.IO("seek spool", s.f.Name(), err)
	}
	h, err := digest.NewHasher()
	if err != nil {
		return "", err
	}
	n, err := io.CopyBuffer(io.MultiWriter(s.f, h), r, make([]byte, digest.ChunkSize))
	if err != nil {
		return "", err
	}
	s.size = n
	return h.Sum(), nil
}

func (s *spool) reader() io.Reader {
	return io.NewSectionReader(s.f, 0, s.size)
}

func (s *spool) Close() error {
	s.f.Close()
	return os.Remove(s.f.Name())
}
