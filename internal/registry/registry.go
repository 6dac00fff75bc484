// Package registry enumerates the available markup renderers and selects
// one per document. Implementations register themselves from an init block;
// the registry is built once at startup (minus any ignored names) and can
// be rebuilt when settings change.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/markview/markview/internal/errors"
	"github.com/markview/markview/internal/logging"
)

// Renderer is one markup backend. Render is CPU-bound and must be safe to
// call from multiple goroutines, or synchronize internally; the dispatch
// worker is single-threaded, but the immediate path runs on the caller.
type Renderer interface {
	// Name is the stable identifier matched against ignored_renderers.
	Name() string
	// IsEnabled reports whether this renderer handles the document.
	IsEnabled(filename, language string) bool
	// Render converts source text into an HTML body fragment.
	Render(text []byte, filename string) ([]byte, error)
	// LoadSettings pushes renderer-specific options to the instance.
	LoadSettings(options map[string]interface{})
}

// Factory constructs a renderer instance. A factory returning an error is
// logged and omitted; one broken renderer never takes down the registry.
type Factory func() (Renderer, error)

type registration struct {
	name    string
	order   int
	factory Factory
}

var (
	factoriesMu sync.Mutex
	factories   []registration
)

// Register records a renderer factory under name. It is meant to be called
// from init functions of renderer implementations; registration order is
// selection order.
func Register(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories = append(factories, registration{
		name:    name,
		order:   len(factories),
		factory: factory,
	})
}

// Options holds per-renderer option maps keyed by renderer name.
type Options map[string]map[string]interface{}

// Registry is the built, ordered renderer list. It is swapped atomically
// on reload; selection takes a snapshot of the list.
type Registry struct {
	mu        sync.RWMutex
	renderers []Renderer
	logger    logging.Logger
}

// New creates an empty registry; Reload populates it. Startup builds the
// registry on a background goroutine so a slow renderer load does not
// block the rest of initialization.
func New(logger logging.Logger) *Registry {
	return &Registry{logger: logger.WithComponent("registry")}
}

// Build instantiates every registered renderer except those named in
// ignored, in registration order.
func Build(ignored []string, options Options, logger logging.Logger) *Registry {
	r := New(logger)
	r.Reload(ignored, options)
	return r
}

// Static builds a registry over a fixed renderer list, bypassing the
// global factories. Embedders and tests use it to control selection order
// exactly.
func Static(renderers []Renderer, logger logging.Logger) *Registry {
	r := New(logger)
	r.mu.Lock()
	r.renderers = renderers
	r.mu.Unlock()
	return r
}

// Clear drops every loaded renderer.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.renderers = nil
	r.mu.Unlock()
}

// Reload rebuilds the renderer list from the registered factories. It is
// write-exclusive with Select.
func (r *Registry) Reload(ignored []string, options Options) {
	skip := make(map[string]bool, len(ignored))
	for _, name := range ignored {
		skip[name] = true
	}

	factoriesMu.Lock()
	regs := make([]registration, len(factories))
	copy(regs, factories)
	factoriesMu.Unlock()
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].order < regs[j].order })

	built := make([]Renderer, 0, len(regs))
	for _, reg := range regs {
		if skip[reg.name] {
			r.logger.Debug(context.Background(), "renderer ignored", "renderer", reg.name)
			continue
		}
		renderer, err := reg.factory()
		if err != nil {
			r.logger.Warn(context.Background(), err, "renderer failed to load", "renderer", reg.name)
			continue
		}
		if opts, ok := options[reg.name]; ok {
			renderer.LoadSettings(opts)
		}
		built = append(built, renderer)
	}

	r.mu.Lock()
	r.renderers = built
	r.mu.Unlock()
}

// Select returns the first renderer, in registration order, that reports
// itself enabled for (filename, language). ErrNoRendererAvailable means
// the document simply is not markup this build understands.
func (r *Registry) Select(filename, language string) (Renderer, error) {
	r.mu.RLock()
	renderers := r.renderers
	r.mu.RUnlock()

	for _, renderer := range renderers {
		if renderer.IsEnabled(filename, language) {
			return renderer, nil
		}
	}
	return nil, errors.ErrNoRendererAvailable
}

// Names returns the loaded renderer names in selection order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.renderers))
	for i, renderer := range r.renderers {
		names[i] = renderer.Name()
	}
	return names
}

// Count returns the number of loaded renderers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.renderers)
}
