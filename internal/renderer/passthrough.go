package renderer

import (
	"path/filepath"
	"strings"

	"github.com/markview/markview/internal/registry"
)

func init() {
	registry.Register("html", func() (registry.Renderer, error) {
		return &PassthroughRenderer{}, nil
	})
}

// PassthroughRenderer handles documents that are already HTML. The text is
// the fragment; the post-processor still rewrites its image references.
type PassthroughRenderer struct{}

func (r *PassthroughRenderer) Name() string { return "html" }

func (r *PassthroughRenderer) IsEnabled(filename, language string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.Contains(strings.ToLower(language), "text.html.basic")
}

func (r *PassthroughRenderer) Render(text []byte, filename string) ([]byte, error) {
	out := make([]byte, len(text))
	copy(out, text)
	return out, nil
}

func (r *PassthroughRenderer) LoadSettings(options map[string]interface{}) {}
