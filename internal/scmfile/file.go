// Package scmfile reads the sparse, memory-mapped page catalog of a
// single SCM pyramid file (see SPEC_FULL.md §2, spec.md §3 "SCM file"
// and §6 "External Interfaces").
package scmfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"

	"github.com/rkooima/scm/internal/scmidx"
)

// File is a read-only, memory-mapped view of one SCM pyramid container.
// It is safe for concurrent use by multiple goroutines: reads only
// index into the mapped byte slice and never mutate shared state beyond
// the reference count.
type File struct {
	Name string
	Path string

	data []byte
	bo   binary.ByteOrder
	cat  *catalog

	uses atomic.Int32
}

// Open memory-maps the named pyramid (resolved via ctx's SCMPATH-style
// search list) and parses its page catalog.
func Open(ctx Context, name string) (*File, error) {
	path, ok := ctx.resolve(name)
	if !ok {
		return nil, fmt.Errorf("scmfile: %s: not found in search path", name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scmfile: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("scmfile: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("scmfile: %s: empty file", path)
	}

	data, err := mmapFile(f.Fd(), int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("scmfile: mmap %s: %w", path, err)
	}

	cat, bo, err := parseCatalog(data)
	if err != nil {
		munmapFile(data)
		return nil, fmt.Errorf("scmfile: parsing catalog of %s: %w", path, err)
	}

	file := &File{
		Name: name,
		Path: path,
		data: data,
		bo:   bo,
		cat:  cat,
	}
	file.uses.Store(1)
	return file, nil
}

// Width, Height, Channels and Depth describe one page's pixel geometry
// and sample encoding, identical across every page in the file.
func (f *File) Width() int    { return int(f.cat.w) }
func (f *File) Height() int   { return int(f.cat.h) }
func (f *File) Channels() int { return int(f.cat.c) }
func (f *File) Depth() int    { return int(f.cat.b) }

// FormatDescription returns a short human-readable geometry summary,
// useful for the scminfo inspector.
func (f *File) FormatDescription() string {
	return fmt.Sprintf("%dx%d, %dx%d-bit", f.cat.w, f.cat.h, f.cat.c, f.cat.b)
}

// Acquire increments the reference count. Release of the last reference
// unmaps the file.
func (f *File) Acquire() { f.uses.Add(1) }

// Release decrements the reference count, unmapping the file once it
// reaches zero.
func (f *File) Release() error {
	if f.uses.Add(-1) == 0 {
		return munmapFile(f.data)
	}
	return nil
}

// toindex returns the position of id within the sorted catalog index, or
// -1 if id is absent from this file.
func (f *File) toindex(id scmidx.PageId) int {
	xv := f.cat.index
	j := sort.Search(len(xv), func(i int) bool { return xv[i] >= uint64(id) })
	if j < len(xv) && xv[j] == uint64(id) {
		return j
	}
	return -1
}

// PageStatus reports whether this file provides page id.
func (f *File) PageStatus(id scmidx.PageId) bool {
	return f.toindex(id) >= 0
}

// PageOffset returns the byte offset of page id's sub-image, or 0 if the
// page is absent.
func (f *File) PageOffset(id scmidx.PageId) uint64 {
	if j := f.toindex(id); j >= 0 {
		return f.cat.offset[j]
	}
	return 0
}

// PageBounds returns the minimum and maximum sample value recorded for
// page id's first channel, walking up the ancestor chain when id itself
// carries no recorded extrema (mirrors the reference's "parent provides a
// useful bound" fallback).
func (f *File) PageBounds(id scmidx.PageId) (r0, r1 float32) {
	c := f.cat.c
	haveMin, haveMax := false, false

	for {
		j := f.toindex(id)
		if j >= 0 {
			if !haveMin && len(f.cat.min) > 0 {
				r0 = f.tofloat(f.cat.min, uint64(j)*uint64(c))
				haveMin = true
			}
			if !haveMax && len(f.cat.max) > 0 {
				r1 = f.tofloat(f.cat.max, uint64(j)*uint64(c))
				haveMax = true
			}
		}
		if haveMin && haveMax {
			return r0, r1
		}
		if id < 6 {
			break
		}
		id = scmidx.Parent(id)
	}
	if !haveMin {
		r0 = 1
	}
	if !haveMax {
		r1 = 1
	}
	return r0, r1
}

// tofloat decodes sample index i of buf (a packed min/max array) to a
// value normalized by this file's bit depth.
func (f *File) tofloat(buf []byte, i uint64) float32 {
	switch f.cat.b {
	case 8:
		return float32(buf[i]) / 255
	case 16:
		return float32(f.bo.Uint16(buf[i*2:])) / 65535
	case 32:
		return math.Float32frombits(f.bo.Uint32(buf[i*4:]))
	default:
		return 0
	}
}

// pageByteLength returns the decoded buffer size for one page, 24-bit
// samples padded to 32-bit (mirrors scm_file::get_page_length).
func (f *File) pageByteLength() int {
	w, h, c, b := int(f.cat.w), int(f.cat.h), int(f.cat.c), int(f.cat.b)
	if c == 3 && b == 8 {
		return w * h * 4
	}
	return w * h * c * b / 8
}

// ReadPage decodes page id into dst, which must be at least
// pageByteLength() bytes. The page's samples are read contiguously from
// PageOffset(id). 3-channel 8-bit pages are expanded to 4-channel with
// the first and third channels swapped (BGR to RGB) and an opaque alpha
// channel, matching the on-disk-to-texture
// conversion the reference renderer performs at upload time.
func (f *File) ReadPage(id scmidx.PageId, dst []byte) error {
	off := f.PageOffset(id)
	if off == 0 {
		return fmt.Errorf("scmfile: %s: page %d not present", f.Name, id)
	}

	w, h, c, b := int(f.cat.w), int(f.cat.h), int(f.cat.c), int(f.cat.b)
	scan := w * c * b / 8
	need := int(off) + scan*h
	if need > len(f.data) {
		return fmt.Errorf("scmfile: %s: page %d extends past end of file", f.Name, id)
	}
	src := f.data[off : off+uint64(scan*h)]

	if c == 3 && b == 8 {
		if len(dst) < w*h*4 {
			return fmt.Errorf("scmfile: destination buffer too small: %d < %d", len(dst), w*h*4)
		}
		for r := 0; r < h; r++ {
			srow := src[r*scan : r*scan+scan]
			drow := dst[r*w*4 : r*w*4+w*4]
			for j := 0; j < w; j++ {
				s := srow[j*3 : j*3+3]
				d := drow[j*4 : j*4+4]
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xFF
			}
		}
		return nil
	}

	if len(dst) < len(src) {
		return fmt.Errorf("scmfile: destination buffer too small: %d < %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// ScanlineSize returns the byte length of one page scanline, used by Raw
// to size a page's mapped byte window.
func (f *File) ScanlineSize() int {
	return int(f.cat.w) * int(f.cat.c) * int(f.cat.b) / 8
}

// ToFloat decodes sample index i (a channel-interleaved pixel-component
// offset, not a byte offset) of a page's raw bytes, normalized by this
// file's bit depth. Exposed for scmsample's point-query bilinear filter.
func (f *File) ToFloat(raw []byte, i uint64) float32 {
	return f.tofloat(raw, i)
}

// Raw exposes the mapped sub-image bytes for page id, read-only. Callers
// must not hold the slice past a Release().
func (f *File) Raw(id scmidx.PageId) ([]byte, error) {
	off := f.PageOffset(id)
	if off == 0 {
		return nil, fmt.Errorf("scmfile: %s: page %d not present", f.Name, id)
	}
	n := f.ScanlineSize() * int(f.cat.h)
	if int(off)+n > len(f.data) {
		return nil, fmt.Errorf("scmfile: %s: page %d extends past end of file", f.Name, id)
	}
	return f.data[off : int(off)+n], nil
}
