package thinjar

import (
	"context"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/aweris/thinjar/internal/archive"
	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/libindex"
	"github.com/aweris/thinjar/internal/manifest"
	"github.com/aweris/thinjar/internal/store"
)

// RestoreResult summarizes a Restore run.
type RestoreResult struct {
	PassThrough int
	Libraries   int
}

// Restore rebuilds a fat archive at target from the thin archive at thin and
// the library cache at cache. Thin entries are copied in order, then every
// indexed library is read from the cache, checked against its hash and
// stored uncompressed at its original path.
func Restore(ctx context.Context, thin, cache, target string, opts ...Option) (res *RestoreResult, err error) {
	o := applyOptions(opts)
	log := o.Logger.With().Str("thin", thin).Logger()

	if err := digest.Check(); err != nil {
		return nil, err
	}

	src, err := archive.Open(thin)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	index, err := src.Index()
	if err != nil {
		return nil, err
	}

	var libs store.Source
	if len(index) > 0 {
		libs, err = store.OpenSource(cache, o.DirectoryCache)
		if err != nil {
			return nil, err
		}
		defer libs.Close()
	}

	out, err := archive.Create(target, src.Manifest())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			out.Abort()
		}
	}()

	res = &RestoreResult{}
	for e, err := range src.Entries() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Name == manifest.Path || e.Name == libindex.Path {
			continue
		}
		if err := copyEntry(out, e); err != nil {
			return nil, err
		}
		res.PassThrough++
	}

	modified := src.Manifest().Modified
	for _, ie := range index {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := restoreLibrary(out, libs, ie, modified); err != nil {
			return nil, err
		}
		res.Libraries++
		log.Debug().Str("entry", ie.Path).Str("hash", ie.Hash).Msg("restored")
	}

	if err := out.Commit(); err != nil {
		return nil, err
	}
	log.Info().Str("target", target).Int("libraries", res.Libraries).Int("passThrough", res.PassThrough).Msg("restored")
	return res, nil
}

func restoreLibrary(out *archive.Writer, libs store.Source, ie IndexEntry, modified time.Time) error {
	addr, err := ie.Address()
	if err != nil {
		return errdefs.NotAnArchive("read index", ie.Path, err)
	}
	rc, err := libs.Open(addr)
	if err != nil {
		return err
	}
	defer rc.Close()

	v, err := digest.Verifier(ie.Hash)
	if err != nil {
		return errdefs.NotAnArchive("read index", ie.Path, err)
	}
	e := archive.Entry{Name: ie.Path, Method: zip.Store, Modified: modified}
	if err := out.WriteEntry(e, io.TeeReader(rc, v)); err != nil {
		return err
	}
	if !v.Verified() {
		return errdefs.Storage("verify", addr.String(), errdefs.ErrAddressConflict)
	}
	return nil
}
