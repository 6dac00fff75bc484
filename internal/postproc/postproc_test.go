package postproc

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localURL(abs string) string {
	return "/local/" + base64.URLEncoding.EncodeToString([]byte(abs))
}

func TestRewriteImages_RelativePath(t *testing.T) {
	got := RewriteImages(`<p><img src="pics/cat.png" alt="cat"></p>`, "/home/user/doc", Proxy)
	want := `<p><img src="` + localURL("/home/user/doc/pics/cat.png") + `" alt="cat"></p>`
	assert.Equal(t, want, got)
}

func TestRewriteImages_AbsolutePath(t *testing.T) {
	got := RewriteImages(`<img src="/srv/img/cat.png">`, "/home/user/doc", Proxy)
	assert.Equal(t, `<img src="`+localURL("/srv/img/cat.png")+`">`, got)
}

func TestRewriteImages_DotDotResolves(t *testing.T) {
	got := RewriteImages(`<img src="../shared/cat.png">`, "/home/user/doc", Proxy)
	assert.Equal(t, `<img src="`+localURL("/home/user/shared/cat.png")+`">`, got)
}

func TestRewriteImages_RemoteURLsUntouched(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"http", "http://example.com/cat.png"},
		{"https", "https://example.com/cat.png"},
		{"protocol relative", "//example.com/cat.png"},
		{"data URI", "data:image/png;base64,AAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := `<img src="` + tt.src + `">`
			assert.Equal(t, in, RewriteImages(in, "/home/user/doc", Proxy))
		})
	}
}

func TestRewriteImages_FileURL(t *testing.T) {
	got := RewriteImages(`<img src="file:///srv/img/cat.png">`, "/home/user/doc", Proxy)
	assert.Equal(t, `<img src="`+localURL("/srv/img/cat.png")+`">`, got)
}

func TestRewriteImages_EntityDecodedBeforeResolution(t *testing.T) {
	// renderers escape ampersands in attribute values
	got := RewriteImages(`<img src="a&amp;b.png">`, "/d", Proxy)
	assert.Equal(t, `<img src="`+localURL("/d/a&b.png")+`">`, got)
}

func TestRewriteImages_Idempotent(t *testing.T) {
	in := `<p><img src="cat.png"> and <img src="https://x/y.png"></p>`
	once := RewriteImages(in, "/d", Proxy)
	twice := RewriteImages(once, "/d", Proxy)
	assert.Equal(t, once, twice)
}

func TestRewriteImages_EmbedIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))

	in := `<p><img src="cat.png"> <img src="gone.png"> <img src="blob.xyzzy"></p>`
	once := RewriteImages(in, dir, Embed)
	twice := RewriteImages(once, dir, Embed)
	assert.Equal(t, once, twice, "data URIs and placeholders must survive a second pass")
}

func TestRewriteImages_PlaceholderUntouched(t *testing.T) {
	in := `<img src="[Image not found: cat.png]">`
	assert.Equal(t, in, RewriteImages(in, "/d", Proxy))
	assert.Equal(t, in, RewriteImages(in, "/d", Embed))
}

func TestRewriteImages_WindowsDrivePathRewritten(t *testing.T) {
	got := RewriteImages(`<img src="C:\pics\cat.png">`, "/d", Proxy)
	assert.True(t, strings.HasPrefix(got, `<img src="/local/`),
		"a drive letter is a path, not a URL scheme")
}

func TestRewriteImages_AttributeOrderAndCase(t *testing.T) {
	got := RewriteImages(`<IMG alt="x" SRC='cat.png' width="10"/>`, "/d", Proxy)
	assert.Equal(t, `<IMG alt="x" SRC='`+localURL("/d/cat.png")+`' width="10"/>`, got)
}

func TestRewriteImages_MultilineTag(t *testing.T) {
	in := "<img\n  alt=\"x\"\n  src=\"cat.png\"\n>"
	got := RewriteImages(in, "/d", Proxy)
	assert.Contains(t, got, localURL("/d/cat.png"))
}

func TestRewriteImages_SrcOutsideImgUntouched(t *testing.T) {
	in := `<script src="app.js"></script><iframe src="page.html"></iframe>`
	assert.Equal(t, in, RewriteImages(in, "/d", Proxy))
}

func TestRewriteImages_MultipleImages(t *testing.T) {
	in := `<img src="a.png"><img src="b.png">`
	got := RewriteImages(in, "/d", Proxy)
	assert.Equal(t, `<img src="`+localURL("/d/a.png")+`"><img src="`+localURL("/d/b.png")+`">`, got)
}

func TestRewriteImages_EmbedMode(t *testing.T) {
	dir := t.TempDir()
	payload := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cat.png"), payload, 0o644))

	got := RewriteImages(`<img src="cat.png">`, dir, Embed)
	want := `<img src="data:image/png;base64,` + base64.StdEncoding.EncodeToString(payload) + `">`
	assert.Equal(t, want, got)
}

func TestRewriteImages_EmbedMissingFile(t *testing.T) {
	got := RewriteImages(`<img src="gone.png">`, t.TempDir(), Embed)
	assert.Equal(t, `<img src="[Image not found: gone.png]">`, got)
}

func TestRewriteImages_EmbedUnknownMime(t *testing.T) {
	got := RewriteImages(`<img src="blob.xyzzy">`, t.TempDir(), Embed)
	assert.Equal(t, `<img src="[Invalid mime type]">`, got)
}

func TestRewriteImages_EmbedRemoteUntouched(t *testing.T) {
	in := `<img src="https://example.com/cat.png">`
	assert.Equal(t, in, RewriteImages(in, t.TempDir(), Embed))
}

func TestFileURLToPath(t *testing.T) {
	assert.Equal(t, "/srv/img/cat.png", fileURLToPath("file:///srv/img/cat.png"))
	assert.Equal(t, "/srv/with space.png", fileURLToPath("file:///srv/with%20space.png"))
}
