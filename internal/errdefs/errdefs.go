// Package errdefs defines the error kinds shared by every thinjar package.
//
// Each failure carries a Kind so callers can tell an unreadable source
// archive from a cache write failure without parsing messages:
//
//	if errors.Is(err, errdefs.ErrStorage) { ... }
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindIO Kind = iota
	KindNotAnArchive
	KindDigestUnavailable
	KindStorage
)

var (
	ErrIO                = errors.New("thinjar: i/o failure")
	ErrNotAnArchive      = errors.New("thinjar: not an archive")
	ErrDigestUnavailable = errors.New("thinjar: digest algorithm unavailable")
	ErrStorage           = errors.New("thinjar: storage failure")

	// Details wrapped inside one of the kinds above.
	ErrNotFound        = errors.New("not found")
	ErrConsumed        = errors.New("entries already consumed")
	ErrNoManifest      = errors.New("no manifest")
	ErrAddressConflict = errors.New("address holds different content")
	ErrInvalidAddress  = errors.New("invalid content address")
)

func (k Kind) String() string {
	switch k {
	case KindNotAnArchive:
		return "not-an-archive"
	case KindDigestUnavailable:
		return "digest-unavailable"
	case KindStorage:
		return "storage"
	default:
		return "io"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotAnArchive:
		return ErrNotAnArchive
	case KindDigestUnavailable:
		return ErrDigestUnavailable
	case KindStorage:
		return ErrStorage
	default:
		return ErrIO
	}
}

// Error is a kinded failure raised by an operation on a path.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind.sentinel())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// IO wraps err as a generic read/write failure.
func IO(op, path string, err error) error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// NotAnArchive wraps err as an unreadable or malformed source archive.
func NotAnArchive(op, path string, err error) error {
	return &Error{Kind: KindNotAnArchive, Op: op, Path: path, Err: err}
}

// DigestUnavailable reports that the named algorithm is missing from the runtime.
func DigestUnavailable(alg string) error {
	return &Error{Kind: KindDigestUnavailable, Op: "digest", Path: alg}
}

// Storage wraps err as a library cache failure.
func Storage(op, path string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindIO, false
}
