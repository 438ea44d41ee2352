package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/thinjar/internal/compression"
	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/store"
)

const DefaultConcurrency = 4

const (
	labelShards    = "dev.thinjar.shards"
	labelLibraries = "dev.thinjar.libraries"
	imageTitle     = "thinjar library cache"
)

// OCIRemote publishes and fetches a library cache at one image reference.
type OCIRemote struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int
	insecure    bool
	log         zerolog.Logger
	comp        *compression.Compressor
}

// Option configures an OCIRemote.
type Option func(*OCIRemote)

// WithAuth sets the credentials source. The default is the docker keychain.
func WithAuth(auth Authenticator) Option {
	return func(r *OCIRemote) { r.auth = auth }
}

// WithConcurrency sets the number of parallel layer transfers.
func WithConcurrency(n int) Option {
	return func(r *OCIRemote) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithInsecure allows plain HTTP registries.
func WithInsecure() Option {
	return func(r *OCIRemote) { r.insecure = true }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *OCIRemote) { r.log = l }
}

// NewOCIRemote creates a remote from a standard Docker ref (e.g., "ghcr.io/acme/libs:main").
func NewOCIRemote(imageRef string, opts ...Option) (*OCIRemote, error) {
	r := &OCIRemote{concurrency: DefaultConcurrency, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}

	nameOpts := []name.Option{name.WithDefaultTag("latest")}
	if r.insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	ref, err := name.ParseReference(imageRef, nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	r.ref = ref

	comp, err := compression.NewCompressor(2)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	r.comp = comp
	return r, nil
}

func (r *OCIRemote) String() string   { return r.ref.String() }
func (r *OCIRemote) Registry() string { return r.ref.Context().RegistryStr() }
func (r *OCIRemote) Tag() string      { return r.ref.Identifier() }

func (r *OCIRemote) Close() error {
	return r.comp.Close()
}

// blobLayer implements v1.Layer with zstd compression for remote transfer
type blobLayer struct {
	compressed   []byte
	uncompressed []byte
}

func newBlobLayer(comp *compression.Compressor, data []byte) *blobLayer {
	return &blobLayer{
		compressed:   comp.Compress(data),
		uncompressed: data,
	}
}

func (l *blobLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *blobLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *blobLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *blobLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *blobLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *blobLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// PushResult summarizes a push.
type PushResult struct {
	Libraries int
	Shards    int
	Layers    int
	Digest    string
}

// Push publishes every library in src.
func (r *OCIRemote) Push(ctx context.Context, src store.Source) (*PushResult, error) {
	libs, err := readAll(src)
	if err != nil {
		return nil, err
	}

	byShard := GroupByShard(libs)
	r.log.Info().Int("libraries", len(libs)).Int("shards", len(byShard)).Msg("push")

	plan := BuildLayerPlan(ShardSizes(byShard))
	shards := make(map[string]ShardInfo, len(byShard))
	layers := make([]v1.Layer, 0, len(plan))
	var totalRaw, totalCompressed int64

	for _, group := range plan {
		packed := PackLayer(CollectShards(group, byShard))
		layer := newBlobLayer(r.comp, packed)
		d, err := layer.Digest()
		if err != nil {
			return nil, fmt.Errorf("digest layer: %w", err)
		}
		totalRaw += int64(len(packed))
		totalCompressed += int64(len(layer.compressed))

		layers = append(layers, layer)
		for _, shard := range group {
			shards[shard] = ShardInfo{
				Hash:  ShardHash(Sizes(byShard[shard])),
				Layer: d.String(),
			}
		}
	}

	r.log.Debug().
		Int("layers", len(layers)).
		Int64("raw", totalRaw).
		Int64("compressed", totalCompressed).
		Msg("packed layers")

	img, err := r.buildImage(layers, shards, len(libs))
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}
	if err := r.pushImage(ctx, img); err != nil {
		return nil, fmt.Errorf("push image: %w", err)
	}

	d, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest image: %w", err)
	}
	r.log.Info().Str("ref", r.String()).Str("digest", d.String()).Msg("pushed")
	return &PushResult{
		Libraries: len(libs),
		Shards:    len(byShard),
		Layers:    len(layers),
		Digest:    d.String(),
	}, nil
}

func readAll(src store.Source) (map[digest.Address][]byte, error) {
	libs := make(map[digest.Address][]byte)
	for addr, err := range src.Addresses() {
		if err != nil {
			return nil, err
		}
		data, err := readLibrary(src, addr)
		if err != nil {
			return nil, err
		}
		libs[addr] = data
	}
	return libs, nil
}

func readLibrary(src store.Source, addr digest.Address) ([]byte, error) {
	rc, err := src.Open(addr)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errdefs.Storage("read", addr.String(), err)
	}
	if err := verify(addr, data); err != nil {
		return nil, err
	}
	return data, nil
}

func verify(addr digest.Address, data []byte) error {
	hash, err := digest.Hash(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if hash != addr.Hash() {
		return errdefs.Storage("verify", addr.String(), errdefs.ErrAddressConflict)
	}
	return nil
}

func (r *OCIRemote) buildImage(layers []v1.Layer, shards map[string]ShardInfo, libraries int) (v1.Image, error) {
	img := mutate.MediaType(empty.Image, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, types.OCIConfigJSON)

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	shardJSON, err := json.Marshal(shards)
	if err != nil {
		return nil, err
	}

	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{
		labelShards:    string(shardJSON),
		labelLibraries: strconv.Itoa(libraries),
	}

	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return nil, err
	}

	return mutate.Annotations(img, map[string]string{
		ocispec.AnnotationTitle: imageTitle,
	}).(v1.Image), nil
}

func (r *OCIRemote) pushImage(ctx context.Context, img v1.Image) error {
	options := r.remoteOptions(ctx)
	options = append(options, remote.WithJobs(r.concurrency))
	_, err := retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, remote.Write(r.ref, img, options...)
	})
	return err
}

// PullResult summarizes a pull.
type PullResult struct {
	Layers    int
	Libraries int
	Stored    int
}

// Pull downloads the layers holding shards that differ from dst and stores
// their libraries. Every library is checked against its address first.
func (r *OCIRemote) Pull(ctx context.Context, dst Target) (*PullResult, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return remote.Image(r.ref, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	shardJSON, ok := cfg.Config.Labels[labelShards]
	if !ok {
		return nil, fmt.Errorf("%s is not a library cache: missing %s label", r.ref, labelShards)
	}
	var remoteShards map[string]ShardInfo
	if err := json.Unmarshal([]byte(shardJSON), &remoteShards); err != nil {
		return nil, fmt.Errorf("parse shards: %w", err)
	}

	localShards, err := localShardHashes(dst)
	if err != nil {
		return nil, err
	}

	neededLayers := make(map[string]bool)
	for shard, info := range remoteShards {
		if localShards[shard] != info.Hash {
			neededLayers[info.Layer] = true
		}
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("get layers: %w", err)
	}

	var neededLayerList []v1.Layer
	for _, layer := range layers {
		d, err := layer.Digest()
		if err != nil {
			continue
		}
		if neededLayers[d.String()] {
			neededLayerList = append(neededLayerList, layer)
		}
	}

	r.log.Info().Int("layers", len(neededLayerList)).Int("available", len(layers)).Msg("pull")

	var libraries, stored atomic.Int64
	p := pool.New().WithMaxGoroutines(r.concurrency).WithContext(ctx).WithCancelOnError()

	for _, layer := range neededLayerList {
		p.Go(func(ctx context.Context) error {
			libs, err := r.fetchLayer(layer)
			if err != nil {
				return err
			}
			for addr, data := range libs {
				if err := verify(addr, data); err != nil {
					return err
				}
				written, err := dst.Put(ctx, addr, bytes.NewReader(data))
				if err != nil {
					return err
				}
				libraries.Add(1)
				if written {
					stored.Add(1)
				}
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	res := &PullResult{
		Layers:    len(neededLayerList),
		Libraries: int(libraries.Load()),
		Stored:    int(stored.Load()),
	}
	r.log.Info().Int("libraries", res.Libraries).Int("stored", res.Stored).Msg("pulled")
	return res, nil
}

func (r *OCIRemote) fetchLayer(layer v1.Layer) (map[digest.Address][]byte, error) {
	rc, err := layer.Compressed()
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}
	data, err := io.ReadAll(rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}

	raw, err := r.comp.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress layer: %w", err)
	}
	return UnpackLayer(raw)
}

// localShardHashes fingerprints every shard present in dst.
func localShardHashes(dst Target) (map[string]string, error) {
	sizes := make(map[string]map[digest.Address]int64)
	for addr, err := range dst.Addresses() {
		if err != nil {
			return nil, err
		}
		size, ok := dst.Stat(addr)
		if !ok {
			continue
		}
		if sizes[addr.Shard] == nil {
			sizes[addr.Shard] = make(map[digest.Address]int64)
		}
		sizes[addr.Shard][addr] = size
	}

	hashes := make(map[string]string, len(sizes))
	for shard, s := range sizes {
		hashes[shard] = ShardHash(s)
	}
	return hashes, nil
}

func (r *OCIRemote) remoteOptions(ctx context.Context) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx)}
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(options, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

var retryBaseDelay = 500 * time.Millisecond

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * retryBaseDelay // 500ms, 1s, 2s, 4s...
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
