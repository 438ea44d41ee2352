// Package classify decides where each entry of a fat archive goes.
package classify

import (
	"strings"

	"github.com/aweris/thinjar/internal/libindex"
	"github.com/aweris/thinjar/internal/manifest"
)

// Kind is the routing decision for one entry.
type Kind int

const (
	// PassThrough entries are copied into the thin archive unchanged.
	PassThrough Kind = iota
	// Library entries are hashed into the library cache and indexed.
	Library
	// Excluded entries are dropped.
	Excluded
)

func (k Kind) String() string {
	switch k {
	case Library:
		return "library"
	case Excluded:
		return "excluded"
	default:
		return "pass-through"
	}
}

// DefaultExcludedPrefixes lists library paths that are never extracted.
//
// Spring Boot's launcher package is matched here for compatibility with
// archives that ship loader classes below the library prefix. Any
// application package sharing one of these prefixes is excluded too, so
// callers with such packages should pass their own list.
var DefaultExcludedPrefixes = []string{
	"org/springframework/boot/loader/",
}

// Classifier routes entries of one archive.
type Classifier struct {
	libPrefix string
	excluded  []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithExcludedPrefixes replaces the excluded prefix list. Passing no
// prefixes disables exclusion.
func WithExcludedPrefixes(prefixes ...string) Option {
	return func(c *Classifier) {
		c.excluded = append([]string(nil), prefixes...)
	}
}

// New returns a classifier for an archive described by d. When d carries no
// library prefix, nothing is ever classified as a library.
func New(d manifest.Descriptor, opts ...Option) *Classifier {
	c := &Classifier{
		libPrefix: d.LibPrefix,
		excluded:  DefaultExcludedPrefixes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify routes path. The manifest and any existing library index are
// always excluded: the thin archive gets its own copy of each.
func (c *Classifier) Classify(path string) Kind {
	if path == manifest.Path || path == libindex.Path {
		return Excluded
	}
	if c.libPrefix == "" || path == c.libPrefix || !strings.HasPrefix(path, c.libPrefix) {
		return PassThrough
	}
	for _, p := range c.excluded {
		if strings.HasPrefix(path, p) {
			return Excluded
		}
	}
	return Library
}
