package libindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hashA = strings.Repeat("a", 64)
	hashB = "0b" + strings.Repeat("1", 62)
)

func TestFormat(t *testing.T) {
	entries := []Entry{
		{Path: "BOOT-INF/lib/b.jar", Hash: hashB},
		{Path: "BOOT-INF/lib/a.jar", Hash: hashA},
		{Path: "BOOT-INF/lib/a-copy.jar", Hash: hashA},
	}

	want := "/BOOT-INF/lib/b.jar=" + hashB + "\n" +
		"/BOOT-INF/lib/a.jar=" + hashA + "\n" +
		"/BOOT-INF/lib/a-copy.jar=" + hashA + "\n"
	assert.Equal(t, want, string(Format(entries)))
	assert.Empty(t, Format(nil))
}

func TestParseRoundTrip(t *testing.T) {
	entries := []Entry{
		{Path: "BOOT-INF/lib/x=y.jar", Hash: hashA},
		{Path: "BOOT-INF/lib/b.jar", Hash: hashB},
	}

	got, err := Parse(strings.NewReader(string(Format(entries))))
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	addr, err := got[1].Address()
	require.NoError(t, err)
	assert.Equal(t, "0b/"+strings.Repeat("1", 62)+".jar", addr.String())
}

func TestParseToleratesCRLFAndBlankLines(t *testing.T) {
	got, err := Parse(strings.NewReader("\r\n/lib/a.jar=" + hashA + "\r\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Path: "lib/a.jar", Hash: hashA}}, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"lib/a.jar=" + hashA,
		"/=" + hashA,
		"/lib/a.jar",
		"/lib/a.jar=nothex",
	} {
		_, err := Parse(strings.NewReader(line + "\n"))
		assert.ErrorIs(t, err, ErrMalformed, line)
	}
}
