package thinjar

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aweris/thinjar/internal/archive"
	"github.com/aweris/thinjar/internal/classify"
	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/manifest"
	"github.com/aweris/thinjar/internal/store"
)

// Result summarizes a Thin run.
type Result struct {
	Descriptor Descriptor

	// Index lists every extracted library in encounter order.
	Index []IndexEntry

	PassThrough int
	Excluded    int

	// Stored counts libraries newly written to the cache; the rest were
	// already present.
	Stored int
}

// Libraries returns the number of extracted library entries.
func (r *Result) Libraries() int { return len(r.Index) }

// Thin splits the fat archive at source into a thin archive at target and
// library cache entries under cache.
//
// Entries are read once, in archive order. Libraries (entries under the
// manifest's Spring-Boot-Lib prefix) are hashed, stored at their content
// address and indexed; everything else except the manifest is copied
// unchanged. The thin archive receives the original manifest first and the
// library index last.
//
// On failure neither target nor an archive-backed cache is replaced.
func Thin(ctx context.Context, source, target, cache string, opts ...Option) (res *Result, err error) {
	o := applyOptions(opts)
	log := o.Logger.With().Str("source", source).Logger()

	if err := digest.Check(); err != nil {
		return nil, err
	}

	src, err := archive.Open(source)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	desc := manifest.Describe(src.Manifest())
	if desc.LibPrefix == "" {
		log.Warn().Msgf("manifest has no %s attribute, no libraries will be extracted", manifest.LibAttr)
	}
	cls := classify.New(desc, classify.WithExcludedPrefixes(o.ExcludedPrefixes...))

	libs, err := openStore(cache, o)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			libs.Abort()
		}
	}()

	thin, err := archive.Create(target, src.Manifest())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			thin.Abort()
		}
	}()

	sp, err := newSpool(o.TempDir)
	if err != nil {
		return nil, err
	}
	defer sp.Close()

	res = &Result{Descriptor: desc}
	for e, err := range src.Entries() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		kind := cls.Classify(e.Name)
		log.Trace().Str("entry", e.Name).Stringer("kind", kind).Msg("classified")

		switch kind {
		case classify.Excluded:
			res.Excluded++
		case classify.Library:
			entry, written, err := extract(ctx, libs, sp, e)
			if err != nil {
				return nil, err
			}
			res.Index = append(res.Index, entry)
			if written {
				res.Stored++
			}
			log.Debug().Str("entry", e.Name).Str("hash", entry.Hash).Bool("stored", written).Msg("library")
		default:
			if err := copyEntry(thin, e); err != nil {
				return nil, err
			}
			res.PassThrough++
		}
	}

	// The cache is committed before the thin archive so a published thin
	// archive never references a library that was not stored.
	if err := libs.Close(); err != nil {
		return nil, err
	}
	if err := thin.Finish(res.Index); err != nil {
		return nil, err
	}

	logResult(log, res, target, cache)
	return res, nil
}

func openStore(cache string, o *Options) (store.Store, error) {
	if o.DirectoryCache {
		s, err := store.NewDirStore(cache, store.WithVerify(o.VerifyCache))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := store.NewArchiveStore(cache)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// extract hashes one library entry and hands its bytes to the cache.
func extract(ctx context.Context, libs store.Store, sp *spool, e archive.Entry) (IndexEntry, bool, error) {
	rc, err := e.Open()
	if err != nil {
		return IndexEntry{}, false, errdefs.IO("read", e.Name, err)
	}
	hash, err := sp.fill(rc)
	rc.Close()
	if err != nil {
		return IndexEntry{}, false, errdefs.IO("read", e.Name, err)
	}

	addr, err := digest.AddressOf(hash)
	if err != nil {
		return IndexEntry{}, false, errdefs.IO("address", e.Name, err)
	}
	written, err := libs.Put(ctx, addr, sp.reader())
	if err != nil {
		return IndexEntry{}, false, err
	}
	return IndexEntry{Path: e.Name, Hash: hash}, written, nil
}

func copyEntry(w *archive.Writer, e archive.Entry) error {
	rc, err := e.Open()
	if err != nil {
		return errdefs.IO("read", e.Name, err)
	}
	defer rc.Close()
	return w.WriteEntry(e, rc)
}

func logResult(log zerolog.Logger, res *Result, target, cache string) {
	log.Info().
		Str("target", target).
		Str("cache", cache).
		Int("libraries", res.Libraries()).
		Int("stored", res.Stored).
		Int("passThrough", res.PassThrough).
		Int("excluded", res.Excluded).
		Msg("thinned")
}
