package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweris/thinjar/internal/digest"
	"github.com/aweris/thinjar/internal/errdefs"
	"github.com/aweris/thinjar/internal/testutil"
)

func addrOf(t *testing.T, data []byte) digest.Address {
	t.Helper()
	hash, err := digest.Hash(bytes.NewReader(data))
	require.NoError(t, err)
	addr, err := digest.AddressOf(hash)
	require.NoError(t, err)
	return addr
}

func readAll(t *testing.T, src Source, addr digest.Address) []byte {
	t.Helper()
	rc, err := src.Open(addr)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func collect(t *testing.T, src Source) []string {
	t.Helper()
	var out []string
	for addr, err := range src.Addresses() {
		require.NoError(t, err)
		out = append(out, addr.String())
	}
	return out
}

func TestDirStorePut(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "libs")

	s, err := NewDirStore(root)
	require.NoError(t, err)

	data := []byte("library one")
	addr := addrOf(t, data)

	written, err := s.Put(ctx, addr, bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.Put(ctx, addr, bytes.NewReader(data))
	require.NoError(t, err)
	assert.False(t, written, "second put of the same address is a no-op")

	got, err := os.ReadFile(filepath.Join(root, testutil.LibPath(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.True(t, s.Has(addr))

	size, ok := s.Stat(addr)
	require.True(t, ok)
	assert.Equal(t, int64(len(data)), size)

	require.NoError(t, s.Close())
}

func TestDirStoreConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	data := bytes.Repeat([]byte("shared library "), 4096)
	addr := addrOf(t, data)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := NewDirStore(root)
			if err != nil {
				errs <- err
				return
			}
			_, err = s.Put(ctx, addr, bytes.NewReader(data))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := os.ReadFile(filepath.Join(root, addr.Shard, addr.Name))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	files, err := os.ReadDir(filepath.Join(root, addr.Shard))
	require.NoError(t, err)
	assert.Len(t, files, 1, "temporary files are cleaned up")
}

func TestDirStoreVerify(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	data := []byte("genuine")
	addr := addrOf(t, data)
	require.NoError(t, os.MkdirAll(filepath.Join(root, addr.Shard), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, addr.Shard, addr.Name), []byte("impostor"), 0644))

	plain, err := NewDirStore(root)
	require.NoError(t, err)
	written, err := plain.Put(ctx, addr, bytes.NewReader(data))
	require.NoError(t, err)
	assert.False(t, written)

	verifying, err := NewDirStore(root, WithVerify(true))
	require.NoError(t, err)
	_, err = verifying.Put(ctx, addr, bytes.NewReader(data))
	assert.ErrorIs(t, err, errdefs.ErrStorage)
	assert.ErrorIs(t, err, errdefs.ErrAddressConflict)
}

func TestDirStoreSurfacesCreateFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := NewDirStore(filepath.Join(blocker, "libs"))
	assert.ErrorIs(t, err, errdefs.ErrStorage)

	s, err := NewDirStore(parent)
	require.NoError(t, err)
	data := []byte("x")
	addr := addrOf(t, data)
	require.NoError(t, os.WriteFile(filepath.Join(parent, addr.Shard), nil, 0644))

	_, err = s.Put(context.Background(), addr, bytes.NewReader(data))
	assert.ErrorIs(t, err, errdefs.ErrStorage)
}

func TestDirStoreHonorsContext(t *testing.T) {
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, addrOf(t, []byte("x")), strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	s, err := NewDirStore(root)
	require.NoError(t, err)
	a, b := []byte("alpha"), []byte("beta")
	for _, data := range [][]byte{a, b} {
		_, err := s.Put(ctx, addrOf(t, data), bytes.NewReader(data))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "zz", "junk"), 0755))

	src, err := OpenSource(root, true)
	require.NoError(t, err)
	defer src.Close()

	assert.ElementsMatch(t, []string{testutil.LibPath(a), testutil.LibPath(b)}, collect(t, src))
	assert.Equal(t, a, readAll(t, src, addrOf(t, a)))

	_, err = src.Open(addrOf(t, []byte("missing")))
	assert.ErrorIs(t, err, errdefs.ErrNotFound)

	_, err = OpenDir(filepath.Join(root, "nope"))
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestArchiveStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "libs.zip")

	s, err := NewArchiveStore(path)
	require.NoError(t, err)

	a, b := []byte("alpha"), []byte("beta")
	for _, data := range [][]byte{a, b, a} {
		_, err := s.Put(ctx, addrOf(t, data), bytes.NewReader(data))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Len())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "cache archive appears only on Close")
	require.NoError(t, s.Close())
	require.NoError(t, s.Abort(), "abort after close is a no-op")

	entries := testutil.ReadJar(t, path)
	names := testutil.Names(entries)

	var libs, markers int
	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
		if strings.HasSuffix(n, "/") {
			markers++
		} else {
			libs++
		}
	}
	assert.Equal(t, 2, libs)
	for n, c := range seen {
		assert.Equal(t, 1, c, "duplicate entry %s", n)
	}
	shardA := testutil.LibPath(a)[:3]
	shardB := testutil.LibPath(b)[:3]
	if shardA == shardB {
		assert.Equal(t, 1, markers)
	} else {
		assert.Equal(t, 2, markers)
	}
	assert.Less(t, indexOf(names, shardA), indexOf(names, testutil.LibPath(a)), "shard marker precedes its entries")

	src, err := OpenSource(path, false)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, []string{testutil.LibPath(a), testutil.LibPath(b)}, collect(t, src))
	assert.Equal(t, b, readAll(t, src, addrOf(t, b)))

	_, err = src.Open(addrOf(t, []byte("missing")))
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestArchiveStoreAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libs.zip")

	s, err := NewArchiveStore(path)
	require.NoError(t, err)
	data := []byte("x")
	_, err = s.Put(context.Background(), addrOf(t, data), bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, s.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = OpenArchive(path)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
