package scmsystem

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmfile"
)

// writeTestPyramid writes a minimal BigTIFF-style catalog file that
// scmfile.Open can parse: one IFD holding the four geometry tags and no
// page catalog tags, all short enough to fit inline (no external value
// blocks needed).
func writeTestPyramid(t *testing.T, dir, name string) string {
	t.Helper()
	bo := binary.LittleEndian

	const (
		ifdOffset = 16
		entries   = 4
		ifdSize   = 8 + entries*20 + 8
		dataStart = ifdOffset + ifdSize
	)

	buf := make([]byte, dataStart+4) // 4 bytes of page pixel data

	buf[0], buf[1] = 'I', 'I'
	bo.PutUint16(buf[2:], 43)
	bo.PutUint64(buf[8:], ifdOffset)

	bo.PutUint64(buf[ifdOffset:], entries)

	putEntry := func(i int, tag, dt uint16, count uint64, inline [8]byte) {
		off := ifdOffset + 8 + i*20
		bo.PutUint16(buf[off:], tag)
		bo.PutUint16(buf[off+2:], dt)
		bo.PutUint64(buf[off+4:], count)
		copy(buf[off+12:off+20], inline[:])
	}

	var v [8]byte
	bo.PutUint32(v[:], 4)
	putEntry(0, 256, 4, 1, v) // width = 4

	v = [8]byte{}
	bo.PutUint32(v[:], 4)
	putEntry(1, 257, 4, 1, v) // height = 4

	v = [8]byte{}
	bo.PutUint16(v[:], 8)
	putEntry(2, 258, 3, 1, v) // bits per sample = 8

	v = [8]byte{}
	bo.PutUint16(v[:], 1)
	putEntry(3, 277, 3, 1, v) // samples per pixel = 1

	// The reference catalog tags (page index/offset/min/max) are omitted
	// here: a file with zero catalog pages is enough to exercise
	// scmsystem's open/dedup/close bookkeeping without a real page to
	// read back.
	bo.PutUint64(buf[ifdOffset+8+entries*20:], 0) // next IFD = 0

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing test pyramid: %v", err)
	}
	return path
}

func TestAcquireDedupsFileAndCache(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPyramid(t, dir, "color.scm")

	sys := New(scmfile.Context{}, &raster.Null{})

	h1, f1, c1, err := sys.Acquire(path, 16, 4, 8, 2)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	h2, f2, c2, err := sys.Acquire(path, 16, 4, 8, 2)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	if f1 != f2 {
		t.Errorf("expected the same *scmfile.File to be shared across Acquire calls")
	}
	if c1 != c2 {
		t.Errorf("expected the same *scmcache.Cache to be shared for identical geometry")
	}

	if err := sys.Release(h2); err != nil {
		t.Fatalf("Release h2: %v", err)
	}
	if err := sys.Release(h1); err != nil {
		t.Fatalf("Release h1: %v", err)
	}
}

func TestAcquireSeparatesDifferentGeometry(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPyramid(t, dir, "height.scm")

	sys := New(scmfile.Context{}, &raster.Null{})

	h1, _, c1, err := sys.Acquire(path, 16, 4, 8, 2)
	if err != nil {
		t.Fatalf("Acquire(16): %v", err)
	}
	defer sys.Release(h1)

	h2, _, c2, err := sys.Acquire(path, 32, 4, 8, 2)
	if err != nil {
		t.Fatalf("Acquire(32): %v", err)
	}
	defer sys.Release(h2)

	if c1 == c2 {
		t.Errorf("expected distinct caches for distinct atlas geometry")
	}
}

func TestFileByIndexSurvivesAfterRelease(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPyramid(t, dir, "color.scm")

	sys := New(scmfile.Context{}, &raster.Null{})
	h, f, _, err := sys.Acquire(path, 16, 4, 8, 2)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	idx := sys.FileIndex(path)

	if err := sys.Release(h); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if got := sys.FileByIndex(idx); got != f {
		t.Errorf("FileByIndex(%d) after release = %v, want the same file pointer a live Cache may still reference", idx, got)
	}
}

func TestTickAdvancesMonotonically(t *testing.T) {
	sys := New(scmfile.Context{}, &raster.Null{})
	a := sys.Tick()
	b := sys.Tick()
	if b <= a {
		t.Errorf("Tick() = %d then %d, want strictly increasing", a, b)
	}
	if sys.Frame() != b {
		t.Errorf("Frame() = %d, want %d", sys.Frame(), b)
	}
}
