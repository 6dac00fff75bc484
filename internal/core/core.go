// Package core wires the preview subsystems together and owns their
// lifecycle: cache, worker, renderer registry, debouncer, and the HTTP
// server, started and stopped in dependency order. There are no package
// globals; tests and editor integrations build their own Core.
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/markview/markview/internal/cache"
	"github.com/markview/markview/internal/config"
	"github.com/markview/markview/internal/debounce"
	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/registry"
	"github.com/markview/markview/internal/server"
	"github.com/markview/markview/internal/source"
	"github.com/markview/markview/internal/types"
	"github.com/markview/markview/internal/worker"
)

// Core is the assembled preview system.
type Core struct {
	mu  sync.RWMutex
	cfg *config.Config

	cache     *cache.Cache
	registry  *registry.Registry
	worker    *worker.Worker
	debouncer *debounce.Debouncer
	server    *server.Server
	src       source.BufferSource
	logger    logging.Logger

	ready    atomic.Bool
	stopOnce sync.Once
}

// New assembles a Core from configuration and a buffer source. Nothing
// runs until Start.
func New(cfg *config.Config, src source.BufferSource, logger logging.Logger) *Core {
	c := &Core{
		cfg:    cfg,
		src:    src,
		logger: logger.WithComponent("core"),
	}
	c.cache = cache.New()
	c.registry = registry.New(logger)
	c.worker = worker.New(c.cache, c.registry, logger)
	c.debouncer = debounce.New(src, c.worker.Submit, cfg.Preview.ModifiedDelay(), logger)
	c.server = server.New(cfg, c.cache, c.worker, src, c.Ready, logger)
	c.worker.OnPublish = c.server.Hub().NotifyUpdate
	return c
}

// Ready reports whether startup, including the registry build, finished.
func (c *Core) Ready() bool { return c.ready.Load() }

// Worker exposes the dispatch engine for editor-side hooks that need the
// immediate path.
func (c *Core) Worker() *worker.Worker { return c.worker }

// Registry exposes the renderer registry.
func (c *Core) Registry() *registry.Registry { return c.registry }

// Start brings the system up: worker first, registry build in the
// background, then debouncer and HTTP listener. Only the listener bind can
// fail.
func (c *Core) Start(ctx context.Context) error {
	cfg := c.snapshotConfig()

	c.worker.Start()

	go func() {
		c.registry.Reload(cfg.Renderers.Ignored, cfg.Renderers.Options)
		c.ready.Store(true)
		c.logger.Info(ctx, "renderers loaded", "renderers", c.registry.Names())
	}()

	c.debouncer.Start()

	if err := c.server.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Stop reverses startup order: listener, debouncer, worker (which finishes
// its in-flight item), registry, cache.
func (c *Core) Stop(ctx context.Context) {
	c.stopOnce.Do(func() {
		if err := c.server.Shutdown(ctx); err != nil {
			c.logger.Warn(ctx, err, "server shutdown")
		}
		c.debouncer.Stop()
		c.worker.Stop()
		c.registry.Clear()
		c.cache.Close()
	})
}

func (c *Core) snapshotConfig() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// ApplySettings installs a new configuration on the running system. The
// listener restarts only when its binding changed; the registry rebuilds
// only when the renderer set or options changed. Cache and worker always
// survive.
func (c *Core) ApplySettings(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	old := c.cfg
	c.cfg = cfg
	c.mu.Unlock()

	changes := config.Diff(old, cfg)

	c.debouncer.SetDelay(cfg.Preview.ModifiedDelay())
	c.server.ApplyConfig(cfg)

	if changes.RebuildRegistry {
		c.registry.Reload(cfg.Renderers.Ignored, cfg.Renderers.Options)
		c.logger.Info(ctx, "renderer registry rebuilt", "renderers", c.registry.Names())
	}
	if changes.RestartServer {
		if err := c.server.Restart(ctx); err != nil {
			return fmt.Errorf("restarting listener: %w", err)
		}
		c.logger.Info(ctx, "listener restarted", "addr", c.server.Addr())
	}
	if changes.RefreshNotice {
		c.logger.Info(ctx, "browser-side settings changed; refresh open previews to apply")
	}
	return nil
}

// OnModified is the keystroke hook: deferred submission when enabled.
func (c *Core) OnModified(id types.BufferID) {
	if c.snapshotConfig().Preview.RefreshOnModified {
		c.debouncer.Defer(id)
	}
}

// OnSaved is the save hook: preemptive submission when enabled.
func (c *Core) OnSaved(id types.BufferID) {
	if c.snapshotConfig().Preview.RefreshOnSaved {
		c.debouncer.Preempt(id)
	}
}

// OnLoaded is the buffer-activation hook.
func (c *Core) OnLoaded(id types.BufferID) {
	if c.snapshotConfig().Preview.RefreshOnLoaded {
		c.debouncer.Preempt(id)
	}
}

// OnClosed marks the buffer's entry disconnected; the browser sees
// DISCONNECTED on its next poll.
func (c *Core) OnClosed(id types.BufferID) {
	if err := c.cache.Disconnect(id); err != nil {
		c.logger.Debug(context.Background(), "disconnect skipped", "buffer_id", id)
	}
}

// Clean clears the whole preview cache.
func (c *Core) Clean() error {
	return c.cache.Clear()
}

// Addr returns the HTTP listener's configured address.
func (c *Core) Addr() string { return c.server.Addr() }

// PreviewURL ensures an entry exists for the buffer and returns the URL a
// browser should open for it.
func (c *Core) PreviewURL(id types.BufferID) (string, error) {
	exists, err := c.cache.Exists(id)
	if err != nil {
		return "", err
	}
	if !exists {
		snapshot, ok := c.src.Snapshot(id)
		if !ok {
			return "", fmt.Errorf("buffer %d is not live", id)
		}
		if _, err := c.worker.RenderNow(snapshot.WorkItem()); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("http://%s/view/%d", c.server.Addr(), id), nil
}

// OpenPreview ensures an entry exists and launches the browser at it.
func (c *Core) OpenPreview(ctx context.Context, id types.BufferID) error {
	url, err := c.PreviewURL(id)
	if err != nil {
		return err
	}
	return openBrowser(ctx, url, c.snapshotConfig().Preview.BrowserCommand, c.logger)
}
