package server

import (
	"embed"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed assets/public
var publicFS embed.FS

// handlePublic serves static assets. Files in the user's public directory
// shadow the shipped defaults by exact relative path.
func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	rel := path.Clean(chi.URLParam(r, "*"))
	if rel == "." || rel == "/" || strings.Contains(rel, "..") {
		http.NotFound(w, r)
		return
	}

	if userDir := s.config().Server.PublicDir; userDir != "" {
		candidate := filepath.Join(userDir, filepath.FromSlash(rel))
		if within(userDir, candidate) {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				http.ServeFile(w, r, candidate)
				return
			}
		}
	}

	http.ServeFileFS(w, r, publicFS, "assets/public/"+rel)
}

// within reports whether p stays inside dir after resolution.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
