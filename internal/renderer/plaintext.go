package renderer

import (
	"html"
	"path/filepath"
	"strings"

	"github.com/markview/markview/internal/registry"
)

func init() {
	registry.Register("plaintext", func() (registry.Renderer, error) {
		return &PlaintextRenderer{}, nil
	})
}

// PlaintextRenderer previews plain text files as an escaped <pre> block.
// Registered after the markup renderers, so it only catches files nothing
// else claims.
type PlaintextRenderer struct{}

func (r *PlaintextRenderer) Name() string { return "plaintext" }

func (r *PlaintextRenderer) IsEnabled(filename, language string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return true
	}
	return strings.Contains(strings.ToLower(language), "text.plain")
}

func (r *PlaintextRenderer) Render(text []byte, filename string) ([]byte, error) {
	return []byte("<pre>" + html.EscapeString(string(text)) + "</pre>"), nil
}

func (r *PlaintextRenderer) LoadSettings(options map[string]interface{}) {}
