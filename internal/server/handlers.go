package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/metrics"
	"github.com/markview/markview/internal/source"
	"github.com/markview/markview/internal/types"
	"github.com/markview/markview/internal/version"
)

// Poll and revive statuses on the wire.
const (
	statusOK           = "OK"
	statusUnchanged    = "UNCHANGED"
	statusDisconnected = "DISCONNECTED"
	statusNotReady     = "NOT READY"
	statusNotFound     = "NOT FOUND"
)

type queryRequest struct {
	BufferID  int64  `json:"buffer_id"`
	Timestamp string `json:"timestamp"`
}

type queryResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp,omitempty"`
	RevivableKey string `json:"revivable_key,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Dirname      string `json:"dirname,omitempty"`
	HTMLPart     string `json:"html_part,omitempty"`
}

type reviveRequest struct {
	RevivableKey string `json:"revivable_key"`
}

type reviveResponse struct {
	Status   string `json:"status"`
	BufferID *int64 `json:"buffer_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleQuery answers the browser's poll. Status rules, in order: no entry
// for a dead buffer or a disconnected entry means DISCONNECTED; a matching
// timestamp means UNCHANGED; otherwise OK with the full entry. A cache
// miss for a buffer that is still live enqueues a render asynchronously
// and answers NOT READY so the browser polls again.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, queryResponse{Status: statusDisconnected})
		return
	}
	id := types.BufferID(req.BufferID)

	entry, err := s.cache.Get(id)
	if err != nil {
		writeJSON(w, http.StatusOK, queryResponse{Status: statusDisconnected})
		return
	}

	var resp queryResponse
	switch {
	case entry == nil:
		resp.Status = statusDisconnected
		if snapshot, ok := s.src.Snapshot(id); ok {
			if s.worker.Submit(snapshot.WorkItem()) == nil {
				resp.Status = statusNotReady
			}
		}
	case entry.Disconnected:
		resp.Status = statusDisconnected
	case entry.Timestamp == req.Timestamp:
		resp.Status = statusUnchanged
	default:
		resp = queryResponse{
			Status:       statusOK,
			Timestamp:    entry.Timestamp,
			RevivableKey: entry.RevivableKey,
			Filename:     entry.Filename,
			Dirname:      entry.Dirname,
			HTMLPart:     entry.HTMLPart,
		}
	}
	metrics.PollsTotal.WithLabelValues(resp.Status).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// handleRevive resolves a revivable key back to a live buffer after an
// editor restart, enqueueing a render when the cache has nothing yet.
func (s *Server) handleRevive(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusOK, reviveResponse{Status: statusNotFound})
		return
	}

	var req reviveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, reviveResponse{Status: statusNotFound})
		return
	}

	fullpath, err := types.DecodeRevivableKey(req.RevivableKey)
	if err != nil {
		writeJSON(w, http.StatusOK, reviveResponse{Status: statusNotFound})
		return
	}

	id, ok := s.src.ResolveKey(fullpath, source.CaseInsensitiveFS())
	if !ok {
		writeJSON(w, http.StatusOK, reviveResponse{Status: statusNotFound})
		return
	}

	exists, err := s.cache.Exists(id)
	if err != nil || !exists {
		if snapshot, ok := s.src.Snapshot(id); ok {
			_ = s.worker.Submit(snapshot.WorkItem())
		}
		writeJSON(w, http.StatusOK, reviveResponse{Status: statusNotReady})
		return
	}

	bufferID := int64(id)
	writeJSON(w, http.StatusOK, reviveResponse{Status: statusOK, BufferID: &bufferID})
}

// handleView serves the HTML shell for one buffer, rendering synchronously
// first so a browser refresh always reflects the latest live text.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id64, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	id := types.BufferID(id64)

	if snapshot, ok := s.src.Snapshot(id); ok {
		// NoRendererAvailable falls through to the cache check; a stale
		// entry is still better than nothing, and a missing one produces
		// the explanatory 404.
		_, _ = s.worker.RenderNow(snapshot.WorkItem())
	}

	entry, err := s.cache.Get(id)
	if err != nil || entry == nil {
		s.viewNotFound(w, id)
		return
	}

	cfg := s.config()
	data := ViewData{
		BufferID:            int64(id),
		Filename:            entry.Filename,
		Dirname:             entry.Dirname,
		Timestamp:           entry.Timestamp,
		RevivableKey:        entry.RevivableKey,
		HTMLPart:            template.HTML(entry.HTMLPart),
		AjaxPollingInterval: cfg.Preview.AjaxPollingInterval,
		MathjaxEnabled:      cfg.Preview.MathjaxEnabled,
	}
	s.mu.RLock()
	store := s.templates
	s.mu.RUnlock()
	if err := store.Render(w, cfg.Preview.HTMLTemplateName, data); err != nil {
		s.logger.Error(r.Context(), err, "template render failed")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) viewNotFound(w http.ResponseWriter, id types.BufferID) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `No preview is available for buffer %d.

The most likely causes:
 1. The file type has no enabled renderer, so there is nothing to preview.
 2. Another running instance owns this buffer and this one answered the
    port instead.
`, id)
}

// handleLocal serves the file whose absolute path is the base64url
// decoding of the key segment. No further path joining is applied.
func (s *Server) handleLocal(w http.ResponseWriter, r *http.Request) {
	f, info, err := openLocalAsset(chi.URLParam(r, "key"))
	if err != nil {
		s.logger.Debug(r.Context(), "local asset rejected", "reason", err.Error())
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// openLocalAsset decodes a /local/ key and opens the file it names,
// refusing anything that is not a regular file.
func openLocalAsset(key string) (*os.File, os.FileInfo, error) {
	fullpath, err := types.DecodeRevivableKey(key)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(fullpath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %s", errors.ErrLocalAssetNotFound, fullpath)
	}
	f, err := os.Open(fullpath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", errors.ErrLocalAssetNotFound, fullpath)
	}
	return f, info, nil
}

// handleCacheClear empties the preview cache.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	metrics.CacheEntries.Set(0)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "cache cleared",
		"timestamp": time.Now().Unix(),
	})
}

// handleHealthz reports liveness plus a few pipeline numbers.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cache.Len()
	status := "healthy"
	if err != nil {
		status = "shutting down"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"version":   version.GetVersion(),
		"ready":     s.ready(),
		"timestamp": time.Now().UTC(),
		"checks": map[string]interface{}{
			"cache":  map[string]interface{}{"entries": entries},
			"worker": map[string]interface{}{"queued": s.worker.QueueLen()},
		},
	})
}
