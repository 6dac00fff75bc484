// Package source defines how the preview core obtains buffer contents. An
// editor integration implements BufferSource over its live buffers; the
// standalone CLI uses the file-backed implementation in this package.
package source

import (
	"github.com/markview/markview/internal/types"
)

// BufferSource is the editor-side hook the core queries. Implementations
// must be safe for concurrent use: the HTTP handlers, the debouncer, and
// the worker all call in from their own goroutines.
type BufferSource interface {
	// Snapshot returns the current contents of a live buffer. ok is false
	// when the buffer is gone.
	Snapshot(id types.BufferID) (types.Snapshot, bool)

	// ResolveKey finds a live buffer whose full path matches fullpath.
	// With foldCase set the comparison is case-insensitive, matching
	// filesystems that are.
	ResolveKey(fullpath string, foldCase bool) (types.BufferID, bool)
}
