package thinjar

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"

	"github.com/aweris/thinjar/internal/classify"
)

// Cache modes
const (
	CacheModeDir     = "dir"
	CacheModeArchive = "archive"
)

// Options configures a run.
type Options struct {
	DirectoryCache   bool
	ExcludedPrefixes []string
	VerifyCache      bool
	TempDir          string
	Logger           zerolog.Logger
}

// Option is a functional option for Thin, Restore and ThinAll.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		ExcludedPrefixes: classify.DefaultExcludedPrefixes,
		Logger:           zerolog.Nop(),
	}
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDirectoryCache selects a directory tree (true) or a single archive
// (false, the default) as the library cache.
func WithDirectoryCache(dir bool) Option {
	return func(o *Options) { o.DirectoryCache = dir }
}

// WithExcludedPrefixes replaces the list of library path prefixes that are
// dropped instead of extracted. See classify.DefaultExcludedPrefixes.
func WithExcludedPrefixes(prefixes ...string) Option {
	return func(o *Options) { o.ExcludedPrefixes = prefixes }
}

// WithVerifyCache re-hashes libraries already present in a directory cache
// and fails on mismatch.
func WithVerifyCache(verify bool) Option {
	return func(o *Options) { o.VerifyCache = verify }
}

// WithTempDir sets where library bytes are spooled while hashing.
func WithTempDir(dir string) Option {
	return func(o *Options) { o.TempDir = dir }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// ParseCacheMode reports whether mode selects a directory cache.
func ParseCacheMode(mode string) (dir bool, err error) {
	switch mode {
	case CacheModeDir:
		return true, nil
	case CacheModeArchive:
		return false, nil
	default:
		return false, fmt.Errorf("unknown cache mode %q (want %q or %q)", mode, CacheModeDir, CacheModeArchive)
	}
}

// DefaultCacheDir is the shared directory cache under the XDG cache home.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "thinjar", "libs")
}
