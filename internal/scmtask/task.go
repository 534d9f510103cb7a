// Package scmtask implements the unit of cache work (Task) and the
// pinned upload-buffer ring it travels through: ring -> main -> loader
// -> main -> ring (see SPEC_FULL.md §3, spec.md §4.3).
package scmtask

import (
	"fmt"

	"github.com/rkooima/scm/internal/scmidx"
)

// PinnedBuffer is a single-owner pixel buffer token. At any moment
// exactly one of {the ring, a Task, a loader goroutine} holds it; callers
// must never retain a reference after handing it off via Ring.Return or
// by attaching it to a Task.
type PinnedBuffer struct {
	data []byte
}

// Bytes exposes the buffer's backing storage. It is only valid while the
// caller owns the token.
func (b *PinnedBuffer) Bytes() []byte { return b.data }

// Task names one page-load request and, once a buffer has been attached,
// the destination for its decoded pixels.
type Task struct {
	FileIndex int // negative FileIndex is the loader poison sentinel
	PageID    scmidx.PageId

	Offset uint64
	N      int // page width/height (pages are square)
	C      int // channel count
	B      int // bits per sample

	Buffer *PinnedBuffer
	Dirty  bool // true once a loader has filled Buffer with pixel data
}

// poison returns the sentinel task that tells a loader goroutine to
// exit: a task whose FileIndex is negative carries no real work.
func poison() Task { return Task{FileIndex: -1} }

// IsPoison reports whether t is a loader shutdown sentinel.
func (t Task) IsPoison() bool { return t.FileIndex < 0 }

// Less orders tasks by (PageID, FileIndex), ascending — coarser (lower
// id) pages sort first so loaders always drain the coarsest outstanding
// request, matching the reference's std::set<scm_item> ordering.
func Less(a, b Task) bool {
	if a.PageID != b.PageID {
		return a.PageID < b.PageID
	}
	return a.FileIndex < b.FileIndex
}

// Ring is a fixed pool of pinned buffers sized to outlive the deepest
// plausible in-flight request queue (2x the cache's need-queue capacity,
// per the reference's scm_fifo<GLuint> sizing).
type Ring struct {
	size int
	free chan *PinnedBuffer
}

// NewRing allocates n buffers of bufSize bytes each and seeds the ring
// with all of them.
func NewRing(n, bufSize int) *Ring {
	r := &Ring{size: n, free: make(chan *PinnedBuffer, n)}
	for i := 0; i < n; i++ {
		r.free <- &PinnedBuffer{data: make([]byte, bufSize)}
	}
	return r
}

// Take removes one buffer token from the ring, blocking until one is
// available. The caller becomes the token's sole owner.
func (r *Ring) Take() *PinnedBuffer {
	return <-r.free
}

// TryTake is the non-blocking form of Take, used by the main/render
// thread which must never stall on buffer availability (spec §5 "the
// main thread never blocks on I/O").
func (r *Ring) TryTake() (*PinnedBuffer, bool) {
	select {
	case b := <-r.free:
		return b, true
	default:
		return nil, false
	}
}

// Return hands a buffer token back to the ring. It is a programming
// error to return a token the ring did not allocate, or to return the
// same token twice. Return panics when the ring is already full; a
// foreign or repeated token returned to a ring that still has room is
// accepted without detection.
func (r *Ring) Return(b *PinnedBuffer) {
	select {
	case r.free <- b:
	default:
		panic(fmt.Sprintf("scmtask: ring overfull (capacity %d) — buffer returned twice?", r.size))
	}
}
