// Package renderer holds the built-in markup renderers. Each implementation
// registers itself with the registry from an init block; selection order is
// registration order.
package renderer

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmrenderer "github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/markview/markview/internal/registry"
)

func init() {
	registry.Register("markdown", func() (registry.Renderer, error) {
		return newMarkdownRenderer(), nil
	})
}

var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".mdown":    true,
	".mkd":      true,
	".mkdn":     true,
}

// MarkdownRenderer renders CommonMark/GFM documents with goldmark. The
// goldmark instance is immutable once built, so concurrent Render calls
// are safe; LoadSettings swaps the instance under the mutex.
type MarkdownRenderer struct {
	mu       sync.RWMutex
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	sanitize bool
}

func newMarkdownRenderer() *MarkdownRenderer {
	r := &MarkdownRenderer{}
	r.rebuild(true, "github", false)
	return r
}

func (r *MarkdownRenderer) rebuild(mathEnabled bool, style string, hardWraps bool) {
	extensions := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
		highlighting.NewHighlighting(
			highlighting.WithStyle(style),
			highlighting.WithFormatOptions(
				chromahtml.TabWidth(4),
			),
		),
	}
	if mathEnabled {
		extensions = append(extensions, mathjax.MathJax)
	}

	rendererOptions := []gmrenderer.Option{
		html.WithXHTML(),
		// Raw HTML passes through; the post-processor depends on seeing
		// <img> tags intact, and viewers are local by contract.
		html.WithUnsafe(),
	}
	if hardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}

	md := goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOptions...),
	)

	r.mu.Lock()
	r.md = md
	r.policy = bluemonday.UGCPolicy()
	r.mu.Unlock()
}

// Name implements registry.Renderer.
func (r *MarkdownRenderer) Name() string { return "markdown" }

// IsEnabled reports true for markdown file extensions or a markdown
// language scope reported by the editor.
func (r *MarkdownRenderer) IsEnabled(filename, language string) bool {
	if markdownExtensions[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	return strings.Contains(strings.ToLower(language), "markdown")
}

// Render converts markdown text into an HTML body fragment.
func (r *MarkdownRenderer) Render(text []byte, filename string) ([]byte, error) {
	r.mu.RLock()
	md := r.md
	policy := r.policy
	sanitize := r.sanitize
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := md.Convert(text, &buf); err != nil {
		return nil, err
	}
	if sanitize {
		return policy.SanitizeReader(&buf).Bytes(), nil
	}
	return buf.Bytes(), nil
}

// LoadSettings applies renderer options:
//
//	mathjax         bool   enable MathJax delimiters (default true)
//	highlight_style string chroma style name (default "github")
//	hard_wraps      bool   render newlines as <br> (default false)
//	sanitize        bool   run output through a UGC sanitizer (default false)
func (r *MarkdownRenderer) LoadSettings(options map[string]interface{}) {
	mathEnabled := boolOption(options, "mathjax", true)
	style := stringOption(options, "highlight_style", "github")
	hardWraps := boolOption(options, "hard_wraps", false)

	r.rebuild(mathEnabled, style, hardWraps)

	r.mu.Lock()
	r.sanitize = boolOption(options, "sanitize", false)
	r.mu.Unlock()
}

func boolOption(options map[string]interface{}, key string, def bool) bool {
	if v, ok := options[key].(bool); ok {
		return v
	}
	return def
}

func stringOption(options map[string]interface{}, key, def string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return def
}
