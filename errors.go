package thinjar

import "github.com/aweris/thinjar/internal/errdefs"

// Failure kinds. Every error returned by this package matches exactly one
// of them through errors.Is.
var (
	ErrNotAnArchive      = errdefs.ErrNotAnArchive
	ErrDigestUnavailable = errdefs.ErrDigestUnavailable
	ErrStorage           = errdefs.ErrStorage
	ErrIO                = errdefs.ErrIO
)

// Details that may be wrapped inside a failure kind.
var (
	ErrNotFound        = errdefs.ErrNotFound
	ErrAddressConflict = errdefs.ErrAddressConflict
	ErrNoManifest      = errdefs.ErrNoManifest
)

// Error is the concrete type behind every failure kind.
type Error = errdefs.Error
