// Package scmsystem is the process-wide registry that deduplicates
// open SCM files and GPU atlas caches across however many scmimage
// layers a caller wires into a scene (see SPEC_FULL.md §10, spec.md
// §4.10 "System"). Two images naming the same pyramid file share one
// mapping; two images requesting the same atlas geometry share one
// cache and one texture.
package scmsystem

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmcache"
	"github.com/rkooima/scm/internal/scmfile"
)

// cacheParam is the atlas geometry that determines whether two Acquire
// calls can share one scmcache.Cache: same page content geometry (n, c,
// b) and the same loader thread count.
type cacheParam struct {
	n, c, b, threads int
}

type fileEntry struct {
	file  *scmfile.File
	uses  int
	index int // this file's slot in the system-wide FileByIndex table
}

type cacheEntry struct {
	cache *scmcache.Cache
	uses  int
}

// System is the shared registry of open files and caches. The zero
// value is not usable; construct with New.
type System struct {
	ctx    scmfile.Context
	target raster.Target

	mu     sync.Mutex
	files  map[string]*fileEntry
	caches map[cacheParam]*cacheEntry
	byIdx  []*scmfile.File // index -> file, for the FileSource contract

	serial atomic.Int64
	frame  atomic.Int64
}

// New returns a registry rooted at ctx's search path, uploading pages
// through target.
func New(ctx scmfile.Context, target raster.Target) *System {
	return &System{
		ctx:    ctx,
		target: target,
		files:  make(map[string]*fileEntry),
		caches: make(map[cacheParam]*cacheEntry),
	}
}

// Handle is one caller's claim on a named pyramid file and the atlas
// cache serving it. Release must be called exactly once to unwind both
// reference counts.
type Handle struct {
	sys   *System
	name  string
	param cacheParam
}

// Acquire opens (or reuses an already-open) file named name, and binds
// it to an atlas cache of the given geometry, starting both if this is
// the first caller to request them. n is the page width/height in
// pixels, c/b the page channel count and bit depth, threads the number
// of loader goroutines a newly created cache should run.
func (s *System) Acquire(name string, n, c, b, threads int) (*Handle, *scmfile.File, *scmcache.Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fe, ok := s.files[name]
	if !ok {
		f, err := scmfile.Open(s.ctx, name)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("scmsystem: %w", err)
		}
		fe = &fileEntry{file: f, uses: 1, index: len(s.byIdx)}
		s.files[name] = fe
		s.byIdx = append(s.byIdx, f)
	} else {
		fe.file.Acquire()
		fe.uses++
	}

	param := cacheParam{n: n, c: c, b: b, threads: threads}
	ce, ok := s.caches[param]
	if !ok {
		cache, err := scmcache.New(s.target, s, n, c, b, threads)
		if err != nil {
			s.releaseFileLocked(name)
			return nil, nil, nil, fmt.Errorf("scmsystem: %w", err)
		}
		ce = &cacheEntry{cache: cache}
		s.caches[param] = ce
	}
	ce.uses++

	return &Handle{sys: s, name: name, param: param}, fe.file, ce.cache, nil
}

// Release unwinds the file and cache reference counts this handle
// holds, closing either resource once its last caller releases it.
func (s *System) Release(h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if ce, ok := s.caches[h.param]; ok {
		ce.uses--
		if ce.uses <= 0 {
			err = ce.cache.Close()
			delete(s.caches, h.param)
		}
	}

	if ferr := s.releaseFileLocked(h.name); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

// releaseFileLocked must be called with s.mu held.
func (s *System) releaseFileLocked(name string) error {
	fe, ok := s.files[name]
	if !ok {
		return nil
	}
	fe.uses--
	if err := fe.file.Release(); err != nil {
		return fmt.Errorf("scmsystem: releasing %s: %w", name, err)
	}
	if fe.uses <= 0 {
		delete(s.files, name)
	}
	return nil
}

// FileByIndex implements scmcache.FileSource: it resolves the stable
// per-file index a Cache was given back to the open *scmfile.File,
// across every file this system has ever opened (not just those still
// referenced), so a Cache never holds a dangling source after some
// other caller's Release.
func (s *System) FileByIndex(i int) *scmfile.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.byIdx) {
		return nil
	}
	return s.byIdx[i]
}

// FileIndex returns name's stable index into FileByIndex, or -1 if name
// has not been acquired through this system.
func (s *System) FileIndex(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fe, ok := s.files[name]; ok {
		return fe.index
	}
	return -1
}

// NextSerial returns a monotonically increasing identifier, used by
// callers that need a stable per-object id independent of map
// iteration order (e.g. assigning scmimage.Image instances a draw
// order).
func (s *System) NextSerial() int64 { return s.serial.Add(1) }

// Tick advances and returns the system's frame counter, the eviction
// clock scmcache and scmscene key page recency against.
func (s *System) Tick() int64 { return s.frame.Add(1) }

// Frame returns the current frame counter without advancing it.
func (s *System) Frame() int64 { return s.frame.Load() }
