// Package postproc rewrites image references embedded in rendered HTML so
// the browser can load them. In proxy mode local images become /local/
// URLs served by the preview server; in embed mode (used by export) they
// become self-contained data URIs.
//
// Matching is deliberately regex-driven and limited to <img> tags: the
// fragment comes out of a renderer, not from untrusted input, and other
// elements with URL attributes are left alone.
package postproc

import (
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// Mode selects the rewriting strategy.
type Mode int

const (
	// Proxy rewrites local images to /local/<base64url(abs_path)>.
	Proxy Mode = iota
	// Embed inlines local images as data:<mime>;base64,<...> URIs.
	Embed
)

const invalidMimePlaceholder = "[Invalid mime type]"

var (
	// Tolerates arbitrary attribute order and multi-line tags.
	imgTagPattern  = regexp.MustCompile(`(?is)<img\b[^>]*>`)
	srcAttrPattern = regexp.MustCompile(`(?is)(\bsrc\s*=\s*)("([^"]*)"|'([^']*)')`)
	// Two or more characters, so a Windows drive letter (C:\...) reads as
	// a path, not a scheme.
	schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+:`)
)

// RewriteImages rewrites every <img src> in fragment whose target is a
// relative path or file: URL, resolving it against dirname. Absolute
// non-file URLs and protocol-relative //... URLs pass through byte for
// byte. If the document has no directory, relative references resolve
// against the process working directory; callers should treat that as
// undefined behavior.
func RewriteImages(fragment, dirname string, mode Mode) string {
	return imgTagPattern.ReplaceAllStringFunc(fragment, func(tag string) string {
		return srcAttrPattern.ReplaceAllStringFunc(tag, func(attr string) string {
			groups := srcAttrPattern.FindStringSubmatch(attr)
			if groups == nil {
				return attr
			}
			prefix := groups[1]
			quoted := groups[2]
			quote := quoted[:1]
			raw := quoted[1 : len(quoted)-1]

			replacement, ok := rewriteURL(raw, dirname, mode)
			if !ok {
				return attr
			}
			return prefix + quote + replacement + quote
		})
	})
}

// rewriteURL returns the replacement src value, or ok=false when the
// original must be left untouched.
func rewriteURL(raw, dirname string, mode Mode) (string, bool) {
	// HTML entity escapes are decoded before path resolution.
	decoded := html.UnescapeString(raw)

	if strings.HasPrefix(decoded, "//") {
		return "", false
	}
	if m := schemePattern.FindString(decoded); m != "" {
		scheme := strings.ToLower(strings.TrimSuffix(m, ":"))
		if scheme != "file" {
			return "", false
		}
		decoded = fileURLToPath(decoded)
	}
	// Already rewritten output; running twice must be a no-op. Covers
	// proxy URLs and the embed-mode placeholders.
	if strings.HasPrefix(decoded, "/local/") || strings.HasPrefix(decoded, "[") {
		return "", false
	}

	abs := decoded
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(dirname, abs)
	}
	abs = filepath.Clean(abs)

	switch mode {
	case Embed:
		return embedURL(abs)
	default:
		return "/local/" + base64.URLEncoding.EncodeToString([]byte(abs)), true
	}
}

func embedURL(abs string) (string, bool) {
	mimeType := mime.TypeByExtension(filepath.Ext(abs))
	if mimeType == "" {
		return invalidMimePlaceholder, true
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("[Image not found: %s]", filepath.Base(abs)), true
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), true
}

// fileURLToPath converts a file: URL into a native filesystem path.
func fileURLToPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimPrefix(raw, "file://")
	}
	// u.Path arrives percent-decoded from url.Parse.
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if runtime.GOOS == "windows" {
		// file:///C:/dir/pic.png parses with a leading slash on the
		// drive letter.
		p = strings.TrimPrefix(p, "/")
		p = filepath.FromSlash(p)
		if u.Host != "" {
			p = `\\` + u.Host + `\` + p
		}
	}
	return p
}
