package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/store"
)

func init() {
	retryBaseDelay = 0
}

func newRegistry(t *testing.T) string {
	t.Helper()
	s := httptest.NewServer(registry.New(registry.Logger(log.New(io.Discard, "", 0))))
	t.Cleanup(s.Close)
	return strings.TrimPrefix(s.URL, "http://") + "/libs/cache:main"
}

func newRemote(t *testing.T, ref string) *OCIRemote {
	t.Helper()
	r, err := NewOCIRemote(ref, WithInsecure(), WithConcurrency(2))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func fillDir(t *testing.T, libs map[digest.Address][]byte) *store.DirStore {
	t.Helper()
	s, err := store.NewDirStore(filepath.Join(t.TempDir(), "libs"))
	require.NoError(t, err)
	for addr, data := range libs {
		_, err := s.Put(context.Background(), addr, bytes.NewReader(data))
		require.NoError(t, err)
	}
	return s
}

func contents(t *testing.T, s *store.DirStore) map[digest.Address][]byte {
	t.Helper()
	out := make(map[digest.Address][]byte)
	for addr, err := range s.Addresses() {
		require.NoError(t, err)
		rc, err := s.Open(addr)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[addr] = data
	}
	return out
}

func TestNewOCIRemote(t *testing.T) {
	r, err := NewOCIRemote("ghcr.io/acme/libs:main")
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "ghcr.io", r.Registry())
	assert.Equal(t, "main", r.Tag())
	assert.Equal(t, "ghcr.io/acme/libs:main", r.String())

	r2, err := NewOCIRemote("ghcr.io/acme/libs")
	require.NoError(t, err)
	defer r2.Close()
	assert.Equal(t, "latest", r2.Tag())

	_, err = NewOCIRemote("not a ref!")
	assert.Error(t, err)
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	ref := newRegistry(t)
	libs := libraries(t, 40)

	pushed, err := newRemote(t, ref).Push(ctx, fillDir(t, libs))
	require.NoError(t, err)
	assert.Equal(t, len(libs), pushed.Libraries)
	assert.Equal(t, 1, pushed.Layers)
	assert.True(t, strings.HasPrefix(pushed.Digest, "sha256:"))

	dst := fillDir(t, nil)
	pulled, err := newRemote(t, ref).Pull(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, pulled.Layers)
	assert.Equal(t, len(libs), pulled.Stored)
	assert.Equal(t, libs, contents(t, dst))

	again, err := newRemote(t, ref).Pull(ctx, dst)
	require.NoError(t, err)
	assert.Zero(t, again.Layers, "an up-to-date cache downloads nothing")
	assert.Zero(t, again.Stored)
}

func TestPushIsReproducible(t *testing.T) {
	ctx := context.Background()
	ref := newRegistry(t)
	src := fillDir(t, libraries(t, 5))

	first, err := newRemote(t, ref).Push(ctx, src)
	require.NoError(t, err)
	second, err := newRemote(t, ref).Push(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)
}

func TestPullKeepsLocalLibraries(t *testing.T) {
	ctx := context.Background()
	ref := newRegistry(t)
	libs := libraries(t, 10)

	_, err := newRemote(t, ref).Push(ctx, fillDir(t, libs))
	require.NoError(t, err)

	local := libraries(t, 0)
	extra := []byte("only here")
	local[addrOf(t, extra)] = extra
	dst := fillDir(t, local)

	_, err = newRemote(t, ref).Pull(ctx, dst)
	require.NoError(t, err)

	got := contents(t, dst)
	assert.Len(t, got, len(libs)+1)
	assert.Equal(t, extra, got[addrOf(t, extra)])
}

func TestPushRejectsTamperedLibrary(t *testing.T) {
	ref := newRegistry(t)
	data := []byte("honest")
	addr := addrOf(t, data)

	src := fillDir(t, map[digest.Address][]byte{addr: []byte("tampered")})
	_, err := newRemote(t, ref).Push(context.Background(), src)
	assert.ErrorIs(t, err, errdefs.ErrAddressConflict)
}

func TestPullMissingImage(t *testing.T) {
	ref := newRegistry(t)
	_, err := newRemote(t, ref).Pull(context.Background(), fillDir(t, nil))
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	calls := 0
	got, err := retry(ctx, 3, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)

	_, err = retry(ctx, 2, func() (int, error) { return 0, errors.New("permanent") })
	assert.EqualError(t, err, "permanent")
}
