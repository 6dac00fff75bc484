// Package worker consumes render requests, runs the selected renderer plus
// the image post-processor, and publishes the result to the cache. The
// dispatch loop is single-threaded: combined with per-buffer coalescing in
// the queue, at most one render is ever pending per buffer, so a slow
// renderer delays others but never piles up work.
package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markview/markview/internal/cache"
	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/metrics"
	"github.com/markview/markview/internal/postproc"
	"github.com/markview/markview/internal/registry"
	"github.com/markview/markview/internal/types"
)

// Worker is the render dispatch engine.
type Worker struct {
	queue    *Queue
	cache    *cache.Cache
	registry *registry.Registry
	logger   logging.Logger

	// seq drives entry timestamps. A monotonic counter, not wall clock:
	// the poll contract only needs "changes iff replaced", and wall-clock
	// strings collide at sub-second resolution.
	seq atomic.Uint64

	// OnPublish, when set before Start, is invoked after every successful
	// cache write. The HTTP layer uses it to nudge connected browsers.
	OnPublish func(id types.BufferID, entry *types.RenderEntry)

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a worker publishing into c, selecting renderers from reg.
func New(c *cache.Cache, reg *registry.Registry, logger logging.Logger) *Worker {
	return &Worker{
		queue:    NewQueue(),
		cache:    c,
		registry: reg,
		logger:   logger.WithComponent("worker"),
		done:     make(chan struct{}),
	}
}

// Start launches the dispatch loop. Safe to call once.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Stop closes the queue, lets the in-flight item finish, and joins the
// loop. Items still queued are discarded.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.queue.Stop()
		<-w.done
	})
}

// Submit enqueues item asynchronously, coalescing by buffer id.
func (w *Worker) Submit(item types.WorkItem) error {
	return w.queue.Submit(item)
}

// QueueLen reports pending items, for health reporting.
func (w *Worker) QueueLen() int { return w.queue.Len() }

func (w *Worker) loop() {
	defer close(w.done)
	ctx := context.Background()
	for {
		batch, ok := w.queue.waitDrain()
		if !ok {
			return
		}
		for _, item := range batch {
			if w.queue.isStopped() {
				return
			}
			if _, err := w.renderAndPublish(item); err != nil {
				switch {
				case stderrors.Is(err, errors.ErrNoRendererAvailable):
					// Not markup; nothing to preview.
					w.logger.Debug(ctx, "no renderer for buffer",
						"buffer_id", item.BufferID, "file", item.Fullpath)
				default:
					w.logger.Error(ctx, err, "render failed",
						"buffer_id", item.BufferID, "file", item.Fullpath)
				}
			}
		}
	}
}

// RenderNow renders item synchronously on the caller and publishes the
// entry, bypassing the queue. Used by "open preview" and revive paths that
// need a fresh result immediately.
func (w *Worker) RenderNow(item types.WorkItem) (*types.RenderEntry, error) {
	return w.renderAndPublish(item)
}

func (w *Worker) renderAndPublish(item types.WorkItem) (*types.RenderEntry, error) {
	fragment, err := w.RenderText(item, postproc.Proxy)
	if err != nil {
		return nil, err
	}

	entry := &types.RenderEntry{
		RevivableKey: types.EncodeRevivableKey(item.Fullpath),
		Filename:     filepath.Base(item.Fullpath),
		Dirname:      filepath.Dir(item.Fullpath),
		Timestamp:    strconv.FormatUint(w.seq.Add(1), 10),
		HTMLPart:     fragment,
	}
	if err := w.cache.Put(item.BufferID, entry); err != nil {
		return nil, err
	}
	if n, err := w.cache.Len(); err == nil {
		metrics.CacheEntries.Set(float64(n))
	}
	if w.OnPublish != nil {
		w.OnPublish(item.BufferID, entry)
	}
	return entry, nil
}

// RenderText resolves a renderer for item, renders the text, and applies
// image rewriting in the given mode. It does not touch the cache.
func (w *Worker) RenderText(item types.WorkItem, mode postproc.Mode) (string, error) {
	renderer, err := w.registry.Select(filepath.Base(item.Fullpath), item.Language)
	if err != nil {
		return "", err
	}

	start := time.Now()
	fragment, err := renderSafely(renderer, []byte(item.Text), item.Fullpath)
	metrics.RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RendersTotal.WithLabelValues(renderer.Name(), "error").Inc()
		return "", err
	}
	metrics.RendersTotal.WithLabelValues(renderer.Name(), "ok").Inc()

	return postproc.RewriteImages(string(fragment), filepath.Dir(item.Fullpath), mode), nil
}

// renderSafely invokes the renderer with a recover guard: a panicking
// renderer becomes a RenderError for that one document, never a crash.
func renderSafely(r registry.Renderer, text []byte, fullpath string) (fragment []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.NewRenderError(r.Name(), fullpath, fmt.Errorf("panic: %v", rec))
		}
	}()
	fragment, err = r.Render(text, filepath.Base(fullpath))
	if err != nil {
		err = errors.NewRenderError(r.Name(), fullpath, err)
	}
	return fragment, err
}
