// Package scmpage tracks which pages currently occupy a cache's atlas
// slots and implements the anti-thrash eviction policy used to free a
// slot when the atlas is full (see SPEC_FULL.md §4, spec.md §4.4).
package scmpage

import (
	"sync"

	"github.com/rkooima/scm/internal/scmidx"
)

// Key identifies one resident page: a page id within one file.
type Key struct {
	FileIndex int
	PageID    scmidx.PageId
}

// Entry records where a resident page's pixels live and when it was last
// touched.
type Entry struct {
	Slot     int
	LastUsed int64
}

// Set is the resident-page table for one Cache. It is safe for
// concurrent use.
type Set struct {
	mu sync.Mutex
	m  map[Key]Entry
}

// NewSet returns an empty page set.
func NewSet() *Set {
	return &Set{m: make(map[Key]Entry)}
}

// Search looks up key and, if present, touches it to frame (marks it
// most-recently-used) before returning its entry.
func (s *Set) Search(key Key, frame int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return Entry{}, false
	}
	e.LastUsed = frame
	s.m[key] = e
	return e, true
}

// Insert adds or replaces key's entry.
func (s *Set) Insert(key Key, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = e
}

// Remove drops key from the set, if present.
func (s *Set) Remove(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Len returns the number of resident pages.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// keyLess orders keys lexicographically by (PageID, FileIndex), the
// ordering spec.md §4.4 requires for deterministic eject tie-breaks.
func keyLess(a, b Key) bool {
	if a.PageID != b.PageID {
		return a.PageID < b.PageID
	}
	return a.FileIndex < b.FileIndex
}

// Eject selects a resident page to evict to make room for incoming, at
// the given frame, and removes it from the set. It implements the
// reference's two-tier "anti-thrash" policy:
//
//  1. If the globally least-recently-touched resident page was last used
//     more than two frames ago (LastUsed < frame-2), evict it — true LRU.
//  2. Otherwise, every resident page is "hot" (touched within the last
//     two frames); only evict if incoming is coarser (a lower page id) than the
//     deepest resident page, in which case that deepest page is evicted
//     to make room for the coarser page that the view currently prefers.
//  3. Otherwise refuse: no eviction is safe without visible thrashing.
func (s *Set) Eject(frame int64, incoming scmidx.PageId) (Key, Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.m) == 0 {
		return Key{}, Entry{}, false
	}

	var lruKey, deepestKey Key
	var lruEntry, deepestEntry Entry
	first := true

	for k, e := range s.m {
		if first {
			lruKey, lruEntry = k, e
			deepestKey, deepestEntry = k, e
			first = false
			continue
		}
		if e.LastUsed < lruEntry.LastUsed || (e.LastUsed == lruEntry.LastUsed && keyLess(k, lruKey)) {
			lruKey, lruEntry = k, e
		}
		if keyLess(deepestKey, k) {
			deepestKey, deepestEntry = k, e
		}
	}

	if lruEntry.LastUsed < frame-2 {
		delete(s.m, lruKey)
		return lruKey, lruEntry, true
	}
	if incoming < deepestKey.PageID {
		delete(s.m, deepestKey)
		return deepestKey, deepestEntry, true
	}
	return Key{}, Entry{}, false
}
