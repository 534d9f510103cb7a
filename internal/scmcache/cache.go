// Package scmcache implements the GPU-side page cache: a fixed atlas
// texture backed by a priority-ordered loader pipeline, anti-thrash
// eviction, and pinned-buffer upload (see SPEC_FULL.md §5, spec.md
// §4.3-§4.5, §5).
package scmcache

import (
	"sync"
	"sync/atomic"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmfile"
	"github.com/rkooima/scm/internal/scmidx"
	"github.com/rkooima/scm/internal/scmlog"
	"github.com/rkooima/scm/internal/scmpage"
	"github.com/rkooima/scm/internal/scmtask"
)

const (
	needQueueSize    = 32
	loadQueueSize    = 8
	maxLoadsPerFrame = 2
	defaultThreads   = 4
)

// FileSource resolves a file index to the *scmfile.File a loader should
// read from. The cache itself is file-agnostic; scmsystem supplies this.
type FileSource interface {
	FileByIndex(i int) *scmfile.File
}

// Cache manages one atlas texture shared by every file of a given
// (pageSize, channels, depth) class.
type Cache struct {
	n, c, b int
	atlas   int // atlas side length in slots
	threads int

	target raster.Target
	tex    raster.TextureHandle
	files  FileSource

	pages *scmpage.Set
	ring  *scmtask.Ring

	needs *queue // requests waiting for a loader
	loads *queue // completed loads waiting for upload

	slotHigh atomic.Int64 // next never-used slot, until the atlas fills

	run    atomic.Bool
	wg     sync.WaitGroup
	waitMu sync.Mutex
	waits  map[scmpage.Key]scmtask.Task // in-flight requests, pending load
}

// New allocates a cache for pages of n x n pixels, c channels at b bits
// each, and starts threads loader goroutines.
func New(target raster.Target, files FileSource, n, c, b, threads int) (*Cache, error) {
	if threads <= 0 {
		threads = defaultThreads
	}
	stride := n + 2 // each page gets a 1-pixel border for seamless filtering
	atlasSlots := 64
	tex, err := target.AllocTexture(stride*atlasSlots, stride)
	if err != nil {
		return nil, err
	}

	bufSize := stride * stride * c * b / 8
	cache := &Cache{
		n: n, c: c, b: b,
		atlas:   atlasSlots,
		threads: threads,
		target:  target,
		tex:     tex,
		files:   files,
		pages:   scmpage.NewSet(),
		ring:    scmtask.NewRing(2*needQueueSize, bufSize),
		needs:   newQueue(needQueueSize),
		loads:   newQueue(loadQueueSize),
		waits:   make(map[scmpage.Key]scmtask.Task),
	}
	cache.slotHigh.Store(1) // slot 0 is the permanent filler

	cache.run.Store(true)
	for i := 0; i < threads; i++ {
		cache.wg.Add(1)
		go cache.loader()
	}
	return cache, nil
}

// GetPage requests page id of file fileIndex. It never blocks: if the
// page is already resident its slot is returned immediately (and touched
// to frame); otherwise a load is kicked off if capacity allows, and the
// caller is told to render the filler slot (0) for this frame.
func (c *Cache) GetPage(fileIndex int, id scmidx.PageId, frame int64) (slot int, resident bool) {
	f := c.files.FileByIndex(fileIndex)
	if f == nil || f.PageOffset(id) == 0 {
		return 0, false
	}

	key := scmpage.Key{FileIndex: fileIndex, PageID: id}
	if e, ok := c.pages.Search(key, frame); ok {
		return e.Slot, true
	}

	c.waitMu.Lock()
	_, waiting := c.waits[key]
	c.waitMu.Unlock()
	if waiting {
		return 0, false
	}

	buf, ok := c.ring.TryTake()
	if !ok {
		return 0, false
	}

	t := scmtask.Task{
		FileIndex: fileIndex,
		PageID:    id,
		Offset:    f.PageOffset(id),
		N:         c.n,
		C:         c.c,
		B:         c.b,
		Buffer:    buf,
	}
	if !c.needs.TryInsert(t) {
		c.ring.Return(buf)
		return 0, false
	}

	c.waitMu.Lock()
	c.waits[key] = t
	c.waitMu.Unlock()
	return 0, false
}

// GridSize returns the atlas side length in slots.
func (c *Cache) GridSize() int { return c.atlas }

// PageSize returns the page content size in pixels (excluding the
// 1-pixel border each atlas slot carries for seamless filtering).
func (c *Cache) PageSize() int { return c.n }

func (c *Cache) getSlot(frame int64, incoming scmidx.PageId) (int, bool) {
	max := int64(c.atlas) * int64(c.atlas)
	if next := c.slotHigh.Load(); next < max {
		c.slotHigh.Add(1)
		return int(next), true
	}
	_, evicted, ok := c.pages.Eject(frame, incoming)
	if !ok {
		return 0, false
	}
	return evicted.Slot, true
}

// Update drains completed loads, uploading each into a free atlas slot
// (or dropping it, if no slot is currently available). If drain is true
// it blocks until every completed load has been processed, the sequence
// Close uses to guarantee no in-flight buffer is leaked.
func (c *Cache) Update(frame int64, drain bool) {
	n := 0
	for {
		if !drain && n >= maxLoadsPerFrame {
			return
		}
		t, ok := c.loads.TryRemove()
		if !ok {
			return
		}
		n++

		key := scmpage.Key{FileIndex: t.FileIndex, PageID: t.PageID}
		c.waitMu.Lock()
		delete(c.waits, key)
		c.waitMu.Unlock()

		if t.Dirty {
			if slot, ok := c.getSlot(frame, t.PageID); ok {
				stride := c.n + 2
				c.target.UploadSubImage(c.tex, slot, stride, t.Buffer.Bytes())
				c.pages.Insert(key, scmpage.Entry{Slot: slot, LastUsed: frame})
			}
		}
		c.ring.Return(t.Buffer)
	}
}

// Close implements the reference teardown sequence: stop accepting new
// loads, drain whatever loaders already finished, send one poison task
// per loader thread, join them all, then release GPU resources.
func (c *Cache) Close() error {
	c.run.Store(false)
	c.Update(0, true)

	for i := 0; i < c.threads; i++ {
		c.needs.Insert(scmtask.Task{FileIndex: -1})
	}
	c.wg.Wait()

	return c.target.ReleaseTexture(c.tex)
}

func (c *Cache) loader() {
	defer c.wg.Done()

	for {
		t := c.needs.Remove()
		if t.IsPoison() {
			return
		}
		if !c.run.Load() {
			c.loads.Insert(t)
			continue
		}

		if f := c.files.FileByIndex(t.FileIndex); f != nil {
			if err := f.ReadPage(t.PageID, t.Buffer.Bytes()); err == nil {
				t.Dirty = true
			} else {
				scmlog.Printf("loader: page %d of file %d: %v", t.PageID, t.FileIndex, err)
			}
		}
		c.loads.Insert(t)
	}
}
