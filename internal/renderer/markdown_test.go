package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRenderer_IsEnabled(t *testing.T) {
	r := newMarkdownRenderer()

	tests := []struct {
		name     string
		filename string
		language string
		want     bool
	}{
		{"md extension", "README.md", "", true},
		{"uppercase extension", "NOTES.MD", "", true},
		{"markdown extension", "doc.markdown", "", true},
		{"language scope", "scratch", "text.html.markdown", true},
		{"go source", "main.go", "source.go", false},
		{"plain text", "notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsEnabled(tt.filename, tt.language))
		})
	}
}

func TestMarkdownRenderer_BasicRendering(t *testing.T) {
	r := newMarkdownRenderer()

	out, err := r.Render([]byte("# Title\n\nsome *emphasis*\n"), "doc.md")
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<h1 id=\"title\">Title</h1>")
	assert.Contains(t, html, "<em>emphasis</em>")
}

func TestMarkdownRenderer_GFMTable(t *testing.T) {
	r := newMarkdownRenderer()

	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	out, err := r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<table>")
}

func TestMarkdownRenderer_FencedCodeHighlighted(t *testing.T) {
	r := newMarkdownRenderer()

	src := "```go\npackage main\n```\n"
	out, err := r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<pre")
	// chroma emits inline styles for the selected theme
	assert.Contains(t, string(out), "style=")
}

func TestMarkdownRenderer_RawHTMLPassesThrough(t *testing.T) {
	r := newMarkdownRenderer()

	out, err := r.Render([]byte(`<img src="pic.png">`), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), `<img src="pic.png">`)
}

func TestMarkdownRenderer_HardWrapsOption(t *testing.T) {
	r := newMarkdownRenderer()
	src := "one\ntwo\n"

	out, err := r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<br")

	r.LoadSettings(map[string]interface{}{"hard_wraps": true})
	out, err = r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<br")
}

func TestMarkdownRenderer_SanitizeOption(t *testing.T) {
	r := newMarkdownRenderer()
	src := "hello <script>alert(1)</script>\n"

	out, err := r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<script>")

	r.LoadSettings(map[string]interface{}{"sanitize": true})
	out, err = r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "hello")
}

func TestMarkdownRenderer_MathjaxToggle(t *testing.T) {
	r := newMarkdownRenderer()
	src := "inline $x^2$ math\n"

	out, err := r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.Contains(t, string(out), `\(x^2\)`, "mathjax delimiters emitted by default")

	r.LoadSettings(map[string]interface{}{"mathjax": false})
	out, err = r.Render([]byte(src), "doc.md")
	require.NoError(t, err)
	assert.NotContains(t, string(out), `\(x^2\)`)
}

func TestPlaintextRenderer(t *testing.T) {
	r := &PlaintextRenderer{}

	assert.True(t, r.IsEnabled("notes.txt", ""))
	assert.True(t, r.IsEnabled("scratch", "text.plain"))
	assert.False(t, r.IsEnabled("doc.md", ""))

	out, err := r.Render([]byte("a < b & c"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "<pre>a &lt; b &amp; c</pre>", string(out))
}

func TestPassthroughRenderer(t *testing.T) {
	r := &PassthroughRenderer{}

	assert.True(t, r.IsEnabled("page.html", ""))
	assert.True(t, r.IsEnabled("page.HTM", ""))
	assert.True(t, r.IsEnabled("scratch", "text.html.basic"))
	assert.False(t, r.IsEnabled("doc.md", ""))

	src := []byte(`<p>already html</p>`)
	out, err := r.Render(src, "page.html")
	require.NoError(t, err)
	assert.Equal(t, src, out)

	// returned slice is a copy, mutating it must not alias the input
	out[1] = 'X'
	assert.Equal(t, byte('p'), src[1])
}
