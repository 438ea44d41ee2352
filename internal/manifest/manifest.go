// Package manifest reads the main section of a JAR manifest and the
// Spring Boot layout attributes carried in it.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Path is where every archive keeps its manifest.
const Path = "META-INF/MANIFEST.MF"

// Attribute names consumed by the splitter.
const (
	StartClassAttr = "Start-Class"
	ClassesAttr    = "Spring-Boot-Classes"
	LibAttr        = "Spring-Boot-Lib"
)

// ErrSyntax is returned for a main-section line that is not "Name: value".
var ErrSyntax = errors.New("manifest: invalid header line")

// Manifest is a parsed manifest. The raw bytes are kept so the manifest can
// be written back unchanged.
type Manifest struct {
	// Modified is the manifest entry's timestamp in its archive, if known.
	Modified time.Time

	raw   []byte
	main  map[string]string
	names []string
}

// Parse reads a manifest. Only the main section (up to the first blank line)
// is interpreted; per-entry sections are kept verbatim in Bytes.
func Parse(r io.Reader) (*Manifest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := &Manifest{raw: raw, main: make(map[string]string)}
	var last string
	for i, line := range splitLines(raw) {
		if line == "" {
			break
		}
		if line[0] == ' ' {
			if last == "" {
				return nil, fmt.Errorf("%w: continuation without header at line %d", ErrSyntax, i+1)
			}
			m.main[last] += line[1:]
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q at line %d", ErrSyntax, line, i+1)
		}
		key := strings.ToLower(name)
		if _, dup := m.main[key]; !dup {
			m.names = append(m.names, name)
		}
		m.main[key] = value
		last = key
	}
	return m, nil
}

// Get looks up a main attribute. Names are case-insensitive.
func (m *Manifest) Get(name string) (string, bool) {
	v, ok := m.main[strings.ToLower(name)]
	return v, ok
}

// Names returns the main attribute names in first-seen order.
func (m *Manifest) Names() []string {
	return append([]string(nil), m.names...)
}

// Bytes returns the manifest exactly as it was read.
func (m *Manifest) Bytes() []byte {
	return m.raw
}

// Descriptor holds the layout attributes of a Spring Boot fat archive.
// An empty field means the attribute was absent.
type Descriptor struct {
	StartClass    string
	ClassesPrefix string
	LibPrefix     string
}

// Describe extracts the layout attributes from m. Missing attributes are
// left empty; values are not validated.
func Describe(m *Manifest) Descriptor {
	var d Descriptor
	if m == nil {
		return d
	}
	d.StartClass, _ = m.Get(StartClassAttr)
	d.ClassesPrefix, _ = m.Get(ClassesAttr)
	d.LibPrefix, _ = m.Get(LibAttr)
	return d
}

// splitLines splits on CRLF, LF or CR.
func splitLines(raw []byte) []string {
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	raw = bytes.ReplaceAll(raw, []byte("\r"), []byte("\n"))
	lines := strings.Split(string(raw), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
