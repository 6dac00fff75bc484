package core

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/markview/markview/internal/postproc"
	"github.com/markview/markview/internal/types"
)

// ExportOptions controls Export.
type ExportOptions struct {
	// ClipboardOnly copies the document to the system clipboard instead
	// of writing a file.
	ClipboardOnly bool
	// TargetFolder receives the exported file; default is the source
	// file's own directory.
	TargetFolder string
	// OpenAfter launches the browser on the result.
	OpenAfter bool
}

var exportShell = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { max-width: 880px; margin: 0 auto; padding: 24px 32px; font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; line-height: 1.5; }
img { max-width: 100%; }
pre { padding: 12px; overflow-x: auto; background: #f6f8fa; border-radius: 6px; }
code { font-family: ui-monospace, Consolas, monospace; font-size: 85%; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 5px 12px; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Export renders the buffer synchronously in embed mode and writes a
// self-contained HTML document: every local image is inlined as a data
// URI, so the result needs no running server. The document goes to a file
// (the returned path), or to the system clipboard with ClipboardOnly, in
// which case the returned path is empty.
func (c *Core) Export(ctx context.Context, id types.BufferID, opts ExportOptions) (string, error) {
	snapshot, ok := c.src.Snapshot(id)
	if !ok {
		return "", fmt.Errorf("buffer %d is not live", id)
	}

	fragment, err := c.worker.RenderText(snapshot.WorkItem(), postproc.Embed)
	if err != nil {
		return "", err
	}

	base := filepath.Base(snapshot.Fullpath)
	var doc bytes.Buffer
	err = exportShell.Execute(&doc, struct {
		Title string
		Body  template.HTML
	}{Title: base, Body: template.HTML(fragment)})
	if err != nil {
		return "", fmt.Errorf("rendering export shell for %s: %w", base, err)
	}

	if opts.ClipboardOnly {
		if err := clipboard.WriteAll(doc.String()); err != nil {
			return "", fmt.Errorf("copying to clipboard: %w", err)
		}
		c.logger.Info(ctx, "exported to clipboard", "file", base)
		return "", nil
	}

	dir := opts.TargetFolder
	if dir == "" {
		dir = filepath.Dir(snapshot.Fullpath)
	}
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
	outPath := filepath.Join(dir, name)

	if err := os.WriteFile(outPath, doc.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", outPath, err)
	}

	c.logger.Info(ctx, "exported", "file", outPath)
	if opts.OpenAfter {
		if err := openBrowser(ctx, "file://"+outPath, c.snapshotConfig().Preview.BrowserCommand, c.logger); err != nil {
			c.logger.Warn(ctx, err, "could not open exported file")
		}
	}
	return outPath, nil
}
