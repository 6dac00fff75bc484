package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/types"
)

// FileSource implements BufferSource over a fixed set of files on disk,
// one buffer per file. It is what `markview serve <files...>` runs with:
// writes to a file play the role of keystrokes, so changes flow through
// the deferred submission path just as editor events would.
type FileSource struct {
	mu     sync.RWMutex
	byID   map[types.BufferID]string
	byPath map[string]types.BufferID

	watcher *fsnotify.Watcher
	logger  logging.Logger

	// OnModified fires on a write to a tracked file; the lifecycle
	// controller wires it to the debouncer's deferred path.
	OnModified func(id types.BufferID)
	// OnRemoved fires when a tracked file disappears.
	OnRemoved func(id types.BufferID)

	stopOnce sync.Once
}

// NewFileSource tracks the given paths, assigning buffer ids in argument
// order starting at 1.
func NewFileSource(paths []string, logger logging.Logger) (*FileSource, error) {
	fs := &FileSource{
		byID:   make(map[types.BufferID]string, len(paths)),
		byPath: make(map[string]types.BufferID, len(paths)),
		logger: logger.WithComponent("source"),
	}
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		id := types.BufferID(i + 1)
		fs.byID[id] = abs
		fs.byPath[abs] = id
	}
	return fs, nil
}

// IDs returns every tracked buffer id in ascending order.
func (fs *FileSource) IDs() []types.BufferID {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	ids := make([]types.BufferID, 0, len(fs.byID))
	for id := range fs.byID {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Snapshot implements BufferSource by reading the file.
func (fs *FileSource) Snapshot(id types.BufferID) (types.Snapshot, bool) {
	fs.mu.RLock()
	path, ok := fs.byID[id]
	fs.mu.RUnlock()
	if !ok {
		return types.Snapshot{}, false
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return types.Snapshot{}, false
	}
	return types.Snapshot{
		ID:       id,
		Fullpath: path,
		Text:     string(text),
	}, true
}

// ResolveKey implements BufferSource.
func (fs *FileSource) ResolveKey(fullpath string, foldCase bool) (types.BufferID, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if id, ok := fs.byPath[fullpath]; ok {
		return id, true
	}
	if foldCase {
		for path, id := range fs.byPath {
			if strings.EqualFold(path, fullpath) {
				return id, true
			}
		}
	}
	return 0, false
}

// Start begins watching the parent directories of the tracked files.
// Directories rather than the files themselves: editors that save via
// rename-and-replace would otherwise detach the watch on first save.
func (fs *FileSource) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	fs.watcher = watcher

	dirs := make(map[string]bool)
	fs.mu.RLock()
	for _, path := range fs.byID {
		dirs[filepath.Dir(path)] = true
	}
	fs.mu.RUnlock()
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go fs.watchLoop(ctx)
	return nil
}

// Stop closes the watcher.
func (fs *FileSource) Stop() {
	fs.stopOnce.Do(func() {
		if fs.watcher != nil {
			fs.watcher.Close()
		}
	})
}

func (fs *FileSource) watchLoop(ctx context.Context) {
	foldCase := CaseInsensitiveFS()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			fs.handleEvent(event, foldCase)
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.logger.Warn(ctx, err, "watcher error")
		}
	}
}

func (fs *FileSource) handleEvent(event fsnotify.Event, foldCase bool) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	id, ok := fs.ResolveKey(abs, foldCase)
	if !ok {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if fs.OnModified != nil {
			fs.OnModified(id)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename-and-replace save emits Rename then Create; only treat
		// the file as gone if it stays gone.
		if _, err := os.Stat(abs); err != nil {
			if fs.OnRemoved != nil {
				fs.OnRemoved(id)
			}
		}
	}
}
