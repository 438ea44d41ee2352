package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootManifest = "Manifest-Version: 1.0\r\n" +
	"Main-Class: org.springframework.boot.loader.JarLauncher\r\n" +
	"Start-Class: com.example.demo.DemoApplicationWithAVeryLongNameThatWr\r\n" +
	" apsPastSeventyTwoBytes\r\n" +
	"Spring-Boot-Classes: BOOT-INF/classes/\r\n" +
	"Spring-Boot-Lib: BOOT-INF/lib/\r\n" +
	"\r\n" +
	"Name: BOOT-INF/lib/example-1.0.jar\r\n" +
	"Spring-Boot-Lib: ignored/\r\n" +
	"\r\n"

func TestParseMainSection(t *testing.T) {
	m, err := Parse(strings.NewReader(bootManifest))
	require.NoError(t, err)

	v, ok := m.Get("Manifest-Version")
	require.True(t, ok)
	assert.Equal(t, "1.0", v)

	v, ok = m.Get("start-class")
	require.True(t, ok)
	assert.Equal(t, "com.example.demo.DemoApplicationWithAVeryLongNameThatWrapsPastSeventyTwoBytes", v)

	assert.Equal(t, []string{"Manifest-Version", "Main-Class", "Start-Class", "Spring-Boot-Classes", "Spring-Boot-Lib"}, m.Names())
	assert.Equal(t, []byte(bootManifest), m.Bytes())
}

func TestDescribe(t *testing.T) {
	m, err := Parse(strings.NewReader(bootManifest))
	require.NoError(t, err)

	d := Describe(m)
	assert.Equal(t, "com.example.demo.DemoApplicationWithAVeryLongNameThatWrapsPastSeventyTwoBytes", d.StartClass)
	assert.Equal(t, "BOOT-INF/classes/", d.ClassesPrefix)
	assert.Equal(t, "BOOT-INF/lib/", d.LibPrefix)
}

func TestDescribeMissingAttributes(t *testing.T) {
	m, err := Parse(strings.NewReader("Manifest-Version: 1.0\nMain-Class: app.Main\n"))
	require.NoError(t, err)

	assert.Equal(t, Descriptor{}, Describe(m))
	assert.Equal(t, Descriptor{}, Describe(nil))
}

func TestParseLineEndings(t *testing.T) {
	for name, in := range map[string]string{
		"lf":   "Spring-Boot-Lib: lib/\n",
		"cr":   "Spring-Boot-Lib: lib/\r",
		"crlf": "Spring-Boot-Lib: lib/\r\n",
		"none": "Spring-Boot-Lib: lib/",
	} {
		t.Run(name, func(t *testing.T) {
			m, err := Parse(strings.NewReader(in))
			require.NoError(t, err)
			assert.Equal(t, "lib/", Describe(m).LibPrefix)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	m, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, m.Names())
}

func TestParseRejectsBadLines(t *testing.T) {
	for _, in := range []string{
		"no separator here\n",
		" leading continuation\n",
		": empty name\n",
	} {
		_, err := Parse(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrSyntax, in)
	}
}
