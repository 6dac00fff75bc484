// Package errors defines the error kinds the preview core distinguishes.
// Single-document failures are values to be logged and skipped; only
// setup-time failures (listener bind, cache construction) may abort the
// process.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRendererAvailable means no registered renderer matched the
	// document. The worker skips such items silently; the buffer simply
	// is not markup.
	ErrNoRendererAvailable = errors.New("no renderer available")

	// ErrCacheClosed is returned by cache operations after shutdown.
	ErrCacheClosed = errors.New("cache closed")

	// ErrUpgradeDeadlock is returned when a read-to-write lock upgrade
	// would deadlock. Callers retry on a later tick instead of blocking.
	ErrUpgradeDeadlock = errors.New("lock upgrade would deadlock")

	// ErrQueueClosed is returned by queue submission after shutdown.
	ErrQueueClosed = errors.New("work queue closed")

	// ErrBadRevivalKey means a revivable key did not decode, or decoded
	// to a path with no live buffer behind it.
	ErrBadRevivalKey = errors.New("bad revival key")

	// ErrLocalAssetNotFound means a /local/ target is missing or not a
	// regular file.
	ErrLocalAssetNotFound = errors.New("local asset not found")
)

// RenderError wraps a failure (or panic) raised by a renderer for one
// document. The worker logs it with the renderer and file attached and
// moves on; any previous cache entry for the buffer is preserved.
type RenderError struct {
	Renderer string
	Filename string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("renderer %s failed on %s: %v", e.Renderer, e.Filename, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// NewRenderError wraps err as a RenderError.
func NewRenderError(renderer, filename string, err error) *RenderError {
	return &RenderError{Renderer: renderer, Filename: filename, Err: err}
}

// ConfigError marks an unparseable or invalid settings load. The caller
// logs it and keeps the previous settings.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid configuration: %v", e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }
