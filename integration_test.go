package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/core"
	"github.com/markview/markview/internal/logging"
	_ "github.com/markview/markview/internal/renderer"
	"github.com/markview/markview/internal/source"
	"github.com/markview/markview/internal/types"
)

func integrationConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Preview.RefreshOnModified = true
	cfg.Preview.RefreshOnModifiedDelay = 50
	cfg.Preview.RefreshOnSaved = true
	cfg.Preview.RefreshOnLoaded = true
	cfg.Preview.AjaxPollingInterval = 100
	cfg.Preview.HTMLTemplateName = "index.html"
	return cfg
}

// startSystem brings the whole pipeline up over the given files and
// returns the running core plus its base URL.
func startSystem(t *testing.T, paths []string) (*core.Core, string) {
	t.Helper()
	logger := logging.NewTestLogger()

	fs, err := source.NewFileSource(paths, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := core.New(integrationConfig(), fs, logger)
	fs.OnModified = c.OnModified
	fs.OnRemoved = c.OnClosed
	require.NoError(t, fs.Start(ctx))
	t.Cleanup(fs.Stop)

	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Stop(shutdownCtx)
	})

	require.Eventually(t, c.Ready, 5*time.Second, 10*time.Millisecond,
		"renderer registry must finish building")

	for _, id := range fs.IDs() {
		c.OnLoaded(id)
	}
	return c, "http://" + c.Addr()
}

func pollQuery(t *testing.T, baseURL string, id int64, timestamp string) map[string]interface{} {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"buffer_id": id,
		"timestamp": timestamp,
	})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestIntegration_EndToEndPreview(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("# First\n"), 0o644))

	_, baseURL := startSystem(t, []string{docPath})

	// OnLoaded triggered a preemptive render; the poll converges on OK
	var out map[string]interface{}
	require.Eventually(t, func() bool {
		out = pollQuery(t, baseURL, 1, "")
		return out["status"] == "OK"
	}, 5*time.Second, 20*time.Millisecond)

	html, _ := out["html_part"].(string)
	assert.Contains(t, html, "First")
	timestamp, _ := out["timestamp"].(string)
	require.NotEmpty(t, timestamp)

	// same timestamp: nothing changed
	out = pollQuery(t, baseURL, 1, timestamp)
	assert.Equal(t, "UNCHANGED", out["status"])

	// writing the file flows through the watcher and debouncer
	require.NoError(t, os.WriteFile(docPath, []byte("# Second\n"), 0o644))
	require.Eventually(t, func() bool {
		out = pollQuery(t, baseURL, 1, timestamp)
		return out["status"] == "OK"
	}, 5*time.Second, 20*time.Millisecond)
	html, _ = out["html_part"].(string)
	assert.Contains(t, html, "Second")

	// the view shell serves the same fragment
	resp, err := http.Get(baseURL + "/view/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page bytes.Buffer
	_, err = page.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, page.String(), "Second")
	assert.Contains(t, page.String(), "doc.md")
}

func TestIntegration_ReviveAfterKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("hello\n"), 0o644))

	_, baseURL := startSystem(t, []string{docPath})

	abs, err := filepath.Abs(docPath)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{
		"revivable_key": types.EncodeRevivableKey(abs),
	})
	require.NoError(t, err)

	var out map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := http.Post(baseURL+"/api/revive", "application/json", bytes.NewReader(body))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		out = map[string]interface{}{}
		if json.NewDecoder(resp.Body).Decode(&out) != nil {
			return false
		}
		return out["status"] == "OK"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, float64(1), out["buffer_id"])
}

func TestIntegration_WebSocketNudge(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("start\n"), 0o644))

	c, baseURL := startSystem(t, []string{docPath})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+baseURL[len("http"):]+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// a save-path render must push a nudge to the connected client; the
	// pause keeps the startup render's guard window from swallowing it
	time.Sleep(50 * time.Millisecond)
	c.OnSaved(1)

	_, payload, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "updated", msg["type"])
	assert.Equal(t, float64(1), msg["buffer_id"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestIntegration_HealthAndMetrics(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("x\n"), 0o644))

	_, baseURL := startSystem(t, []string{docPath})

	resp, err := http.Get(baseURL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])

	mresp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	require.Equal(t, http.StatusOK, mresp.StatusCode)
	var metricsBody bytes.Buffer
	_, err = metricsBody.ReadFrom(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, metricsBody.String(), "markview_render_renders_total")
}

func TestIntegration_DisconnectOnRemoval(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("x\n"), 0o644))

	_, baseURL := startSystem(t, []string{docPath})

	require.Eventually(t, func() bool {
		return pollQuery(t, baseURL, 1, "")["status"] == "OK"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(docPath))

	require.Eventually(t, func() bool {
		return pollQuery(t, baseURL, 1, "")["status"] == "DISCONNECTED"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIntegration_UnknownBufferIsDisconnected(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(docPath, []byte("x\n"), 0o644))

	_, baseURL := startSystem(t, []string{docPath})

	out := pollQuery(t, baseURL, 999, "")
	assert.Equal(t, "DISCONNECTED", out["status"])
}
