// Package testutil builds and inspects jar fixtures for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// BootManifest is a Spring Boot manifest with the library prefix BOOT-INF/lib/.
const BootManifest = "Manifest-Version: 1.0\r\n" +
	"Main-Class: org.springframework.boot.loader.JarLauncher\r\n" +
	"Start-Class: com.example.App\r\n" +
	"Spring-Boot-Classes: BOOT-INF/classes/\r\n" +
	"Spring-Boot-Lib: BOOT-INF/lib/\r\n" +
	"\r\n"

// PlainManifest has no Spring Boot layout attributes.
const PlainManifest = "Manifest-Version: 1.0\r\nMain-Class: com.example.App\r\n\r\n"

// Entry is a fixture archive member.
type Entry struct {
	Name string
	Data []byte
}

// Modified is the timestamp stamped on every fixture entry.
var Modified = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// WriteJar writes entries, in order, to a new archive at path.
func WriteJar(t testing.TB, path string, entries []Entry) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/' {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method, Modified: Modified})
		require.NoError(t, err)
		_, err = w.Write(e.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// BootJar writes a fat jar with BootManifest followed by entries.
func BootJar(t testing.TB, path string, entries ...Entry) {
	t.Helper()
	WriteJar(t, path, append([]Entry{{Name: "META-INF/MANIFEST.MF", Data: []byte(BootManifest)}}, entries...))
}

// ReadJar returns every member of the archive at path, in order.
func ReadJar(t testing.TB, path string) []Entry {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries = append(entries, Entry{Name: f.Name, Data: data})
	}
	return entries
}

// Names returns the entry names in order.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Find returns the entry called name.
func Find(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// SHA256 returns the lowercase hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LibPath returns the "ab/cdef...jar" cache path of data.
func LibPath(data []byte) string {
	h := SHA256(data)
	return h[:2] + "/" + h[2:] + ".jar"
}
