// Package types holds the data model shared by the preview pipeline:
// buffer identifiers, cache entries, work items, and the revivable key
// codec used by the browser to rediscover a buffer across restarts.
package types

// BufferID identifies one live editable document. It is assigned by the
// buffer source (an editor, or the file-backed source in standalone mode)
// and is stable for the lifetime of that buffer. Reuse across sessions is
// not assumed.
type BufferID int64

// RenderEntry is a rendered snapshot of a buffer, stored in the cache.
// HTMLPart has already been through the post-processor: every local image
// reference is rewritten to a /local/ proxy URL before the entry is built.
type RenderEntry struct {
	// RevivableKey is the base64url encoding of the document's absolute
	// path; the browser presents it to /api/revive after an editor restart.
	RevivableKey string
	Filename     string
	Dirname      string
	// Timestamp changes iff the entry has been replaced. Equality with the
	// timestamp a poll carries means "unchanged since last poll"; nothing
	// more is promised about its shape.
	Timestamp string
	HTMLPart  string
	// Disconnected marks a buffer known to be gone. It is terminal for
	// this entry: polls report DISCONNECTED until a fresh render
	// supersedes it.
	Disconnected bool
}

// Clone returns an independent copy of the entry. Cache readers receive
// clones so a later Put can never mutate what a poll handler is
// formatting.
func (e *RenderEntry) Clone() *RenderEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// WorkItem is one render request. Identity for coalescing is BufferID
// alone: two items with the same id collapse, keeping the later payload.
type WorkItem struct {
	BufferID BufferID
	Fullpath string
	Language string
	Text     string
}

// Snapshot is what a buffer source reports for a live buffer: the current
// text plus enough metadata to pick a renderer.
type Snapshot struct {
	ID       BufferID
	Fullpath string
	Language string
	Text     string
}

// WorkItem converts the snapshot into a render request.
func (s Snapshot) WorkItem() WorkItem {
	return WorkItem{
		BufferID: s.ID,
		Fullpath: s.Fullpath,
		Language: s.Language,
		Text:     s.Text,
	}
}
