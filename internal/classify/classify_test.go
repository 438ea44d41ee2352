package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aweris/thinjar/internal/manifest"
)

func TestClassify(t *testing.T) {
	c := New(manifest.Descriptor{LibPrefix: "BOOT-INF/lib/"})

	tests := []struct {
		path string
		want Kind
	}{
		{"META-INF/MANIFEST.MF", Excluded},
		{"META-INF/", PassThrough},
		{"META-INF/spring.lib.index", Excluded},
		{"BOOT-INF/lib/", PassThrough},
		{"BOOT-INF/lib/example-1.0.jar", Library},
		{"BOOT-INF/lib/nested/dir/", Library},
		{"BOOT-INF/libx/other.jar", PassThrough},
		{"BOOT-INF/classes/App.class", PassThrough},
		{"org/springframework/boot/loader/JarLauncher.class", PassThrough},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.path), tt.path)
	}
}

func TestClassifyExcludedPrefixes(t *testing.T) {
	d := manifest.Descriptor{LibPrefix: "lib/"}

	c := New(d, WithExcludedPrefixes("lib/org/"))
	assert.Equal(t, Excluded, c.Classify("lib/org/loader.jar"))
	assert.Equal(t, Library, c.Classify("lib/com/app.jar"))

	// The default list applies to library candidates only.
	def := New(manifest.Descriptor{LibPrefix: "org/"})
	assert.Equal(t, Excluded, def.Classify("org/springframework/boot/loader/Launcher.class"))
	assert.Equal(t, Library, def.Classify("org/other/lib.jar"))

	none := New(manifest.Descriptor{LibPrefix: "org/"}, WithExcludedPrefixes())
	assert.Equal(t, Library, none.Classify("org/springframework/boot/loader/Launcher.class"))
}

func TestClassifyWithoutLibPrefix(t *testing.T) {
	c := New(manifest.Descriptor{StartClass: "com.example.App"})

	assert.Equal(t, Excluded, c.Classify("META-INF/MANIFEST.MF"))
	for _, p := range []string{"BOOT-INF/lib/example-1.0.jar", "BOOT-INF/lib/", "App.class", ""} {
		assert.Equal(t, PassThrough, c.Classify(p), p)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "library", Library.String())
	assert.Equal(t, "excluded", Excluded.String())
	assert.Equal(t, "pass-through", PassThrough.String())
}
