// Package digest hashes library bytes and derives their cache address.
package digest

import (
	_ "crypto/sha256"
	"fmt"
	"io"
	"strings"

	godigest "github.com/opencontainers/go-digest"

	"github.com/aweris/thinjar/internal/errdefs"
)

const (
	// ChunkSize is the read size used while hashing a stream.
	ChunkSize = 4096

	// HexLen is the length of a rendered SHA-256 hash.
	HexLen = 64

	// Ext is appended to every cache entry name.
	Ext = ".jar"
)

var algorithm = godigest.SHA256

// Check fails with a DigestUnavailable error when SHA-256 is not linked into
// the binary. Callers check once before any I/O.
func Check() error {
	if !algorithm.Available() {
		return errdefs.DigestUnavailable(algorithm.String())
	}
	return nil
}

// Hasher is a running SHA-256 digest. It implements io.Writer.
type Hasher struct {
	d godigest.Digester
}

// NewHasher returns an empty Hasher.
func NewHasher() (*Hasher, error) {
	if err := Check(); err != nil {
		return nil, err
	}
	return &Hasher{d: algorithm.Digester()}, nil
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.d.Hash().Write(p)
}

// Sum returns the lowercase hex digest of everything written so far.
func (h *Hasher) Sum() string {
	return h.d.Digest().Encoded()
}

// Hash reads r to EOF in ChunkSize pieces and returns its hex digest.
func Hash(r io.Reader) (string, error) {
	h, err := NewHasher()
	if err != nil {
		return "", err
	}
	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return h.Sum(), nil
}

// Verifier returns a writer that checks its input hashes to hash.
func Verifier(hash string) (godigest.Verifier, error) {
	if err := algorithm.Validate(hash); err != nil {
		return nil, fmt.Errorf("%w: %q", errdefs.ErrInvalidAddress, hash)
	}
	return godigest.NewDigestFromEncoded(algorithm, hash).Verifier(), nil
}

// Address locates a library in the cache: Shard is the first two hex
// characters of its hash, Name the remaining 62 plus Ext.
type Address struct {
	Shard string
	Name  string
}

// AddressOf derives the address of hash. It is a pure function of hash.
func AddressOf(hash string) (Address, error) {
	if err := algorithm.Validate(hash); err != nil {
		return Address{}, fmt.Errorf("%w: %q", errdefs.ErrInvalidAddress, hash)
	}
	return Address{Shard: hash[:2], Name: hash[2:] + Ext}, nil
}

// ParseAddress parses the "ab/cdef...jar" form produced by Address.String.
func ParseAddress(s string) (Address, error) {
	shard, name, ok := strings.Cut(s, "/")
	if !ok || len(shard) != 2 || !strings.HasSuffix(name, Ext) {
		return Address{}, fmt.Errorf("%w: %q", errdefs.ErrInvalidAddress, s)
	}
	return AddressOf(shard + strings.TrimSuffix(name, Ext))
}

func (a Address) String() string {
	return a.Shard + "/" + a.Name
}

// Hash returns the hex digest the address was derived from.
func (a Address) Hash() string {
	return a.Shard + strings.TrimSuffix(a.Name, Ext)
}
