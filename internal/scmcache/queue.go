package scmcache

import (
	"sort"
	"sync"

	"github.com/rkooima/scm/internal/scmtask"
)

// queue is a bounded, priority-ordered producer/consumer channel for
// scmtask.Task values. Items are popped in ascending (PageID, FileIndex)
// order regardless of insertion order, so a loader goroutine always picks
// up the coarsest outstanding request first — a requirement plain Go
// channels cannot express, since channels are strictly FIFO. It is built
// from a counting-semaphore pair (free slots / filled slots) guarding a
// mutex-protected sorted slice, the same shape as the reference's
// semaphore-pair bounded ordered set (see SPEC_FULL.md §5, "Bounded
// queues").
type queue struct {
	mu    sync.Mutex
	items []scmtask.Task

	free chan struct{} // one token per open slot
	full chan struct{} // one token per queued item
}

func newQueue(capacity int) *queue {
	q := &queue{
		free: make(chan struct{}, capacity),
		full: make(chan struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		q.free <- struct{}{}
	}
	return q
}

func (q *queue) insertLocked(t scmtask.Task) {
	q.mu.Lock()
	i := sort.Search(len(q.items), func(i int) bool { return !scmtask.Less(q.items[i], t) })
	q.items = append(q.items, scmtask.Task{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = t
	q.mu.Unlock()
}

func (q *queue) popLocked() scmtask.Task {
	q.mu.Lock()
	t := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()
	return t
}

// Insert blocks until a slot is free, then enqueues t.
func (q *queue) Insert(t scmtask.Task) {
	<-q.free
	q.insertLocked(t)
	q.full <- struct{}{}
}

// TryInsert enqueues t without blocking, reporting whether there was
// room.
func (q *queue) TryInsert(t scmtask.Task) bool {
	select {
	case <-q.free:
	default:
		return false
	}
	q.insertLocked(t)
	q.full <- struct{}{}
	return true
}

// Remove blocks until an item is available, then dequeues the smallest.
func (q *queue) Remove() scmtask.Task {
	<-q.full
	t := q.popLocked()
	q.free <- struct{}{}
	return t
}

// TryRemove dequeues the smallest item without blocking, reporting
// whether one was available.
func (q *queue) TryRemove() (scmtask.Task, bool) {
	select {
	case <-q.full:
	default:
		return scmtask.Task{}, false
	}
	t := q.popLocked()
	q.free <- struct{}{}
	return t, true
}
