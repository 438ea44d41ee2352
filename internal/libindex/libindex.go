// Package libindex encodes the library index stored in a thin archive.
//
// Each line maps an original archive path to the hash of the library that
// lived there:
//
//	/BOOT-INF/lib/example-1.0.jar=2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae
//
// Lines keep encounter order and are never deduplicated.
package libindex

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aweris/thinjar/internal/digest"
)

// Path is the fixed location of the index inside a thin archive.
const Path = "META-INF/spring.lib.index"

// ErrMalformed is returned by Parse for a line that is not "/path=hash".
var ErrMalformed = errors.New("libindex: malformed line")

// Entry records one extracted library.
type Entry struct {
	Path string
	Hash string
}

// Line renders e without the trailing newline.
func (e Entry) Line() string {
	return "/" + e.Path + "=" + e.Hash
}

// Address returns the cache address of e's library.
func (e Entry) Address() (digest.Address, error) {
	return digest.AddressOf(e.Hash)
}

// Format renders entries one per line, each terminated by a newline.
func Format(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(e.Line())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Parse reads an index. Blank lines are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		sep := strings.LastIndexByte(line, '=')
		if !strings.HasPrefix(line, "/") || sep < 2 {
			return nil, fmt.Errorf("%w %d: %q", ErrMalformed, n, line)
		}
		e := Entry{Path: line[1:sep], Hash: line[sep+1:]}
		if _, err := e.Address(); err != nil {
			return nil, fmt.Errorf("%w %d: %v", ErrMalformed, n, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
