package trajectory

import "sync"

// Buffer holds the active path used by the control loop and a staging area for the latest
// path produced by ingestion. Producers call Stage; the control loop calls Promote and Active.
// The active path is replaced wholesale and never edited in place, so a Path returned by Active
// stays valid and unchanged for as long as the caller holds it.
type Buffer struct {
	mu      sync.Mutex
	staged  Path
	pending bool
	active  Path
}

// NewBuffer returns a Buffer with an empty active path and nothing staged.
func NewBuffer() *Buffer {
	return &Buffer{active: Path{}}
}

// Stage records path as the latest candidate. Staging again before a Promote replaces the
// previous candidate.
func (b *Buffer) Stage(path Path) {
	staged := path.Clone()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.staged = staged
	b.pending = true
}

// Pending reports whether a staged path is waiting for Promote.
func (b *Buffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Promote consumes the pending staged path. When it differs pointwise from the active path the
// active path is swapped for a copy of it and Promote returns true. It returns false when nothing
// was pending or the staged path equals the active one.
func (b *Buffer) Promote() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return false
	}
	b.pending = false
	if b.staged.Equal(b.active) {
		return false
	}
	b.active = b.staged.Clone()
	return true
}

// Active returns the active path. Callers must treat it as read-only.
func (b *Buffer) Active() Path {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}
