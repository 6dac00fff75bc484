package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
)

//go:embed assets/templates
var templatesFS embed.FS

// ViewData is the input the view shell template receives.
type ViewData struct {
	BufferID            int64
	Filename            string
	Dirname             string
	Timestamp           string
	RevivableKey        string
	HTMLPart            template.HTML
	AjaxPollingInterval int
	MathjaxEnabled      bool
}

// TemplateStore resolves a template name against the user's template
// directory first, falling back to the defaults shipped in the binary.
// User templates are parsed per render so edits apply on refresh.
type TemplateStore struct {
	userDir string
}

// NewTemplateStore creates a store; userDir may be empty.
func NewTemplateStore(userDir string) *TemplateStore {
	return &TemplateStore{userDir: userDir}
}

// Render executes the named template with data.
func (ts *TemplateStore) Render(w io.Writer, name string, data ViewData) error {
	tmpl, err := ts.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, data)
}

func (ts *TemplateStore) lookup(name string) (*template.Template, error) {
	if ts.userDir != "" {
		userPath := filepath.Join(ts.userDir, filepath.Base(name))
		if raw, err := os.ReadFile(userPath); err == nil {
			tmpl, err := template.New(name).Parse(string(raw))
			if err != nil {
				return nil, fmt.Errorf("parsing user template %s: %w", userPath, err)
			}
			return tmpl, nil
		}
	}
	raw, err := templatesFS.ReadFile("assets/templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("unknown template %q: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	return tmpl, nil
}
