// Package scmsample implements point queries against an SCM pyramid: for
// a unit vector on the sphere, find the deepest covering page and
// bilinear-sample its nearest four texels (see SPEC_FULL.md §6, spec.md
// §4.6). This path is used by a simulation thread independent of the
// cache/render path in internal/scmcache. It reads through the
// *scmfile.File passed to New and does not open a separate handle; the
// file is memory-mapped and read-only, so this does not contend with
// loader goroutines reading the same file.
//
// The reference implementation caches two TIFF scanline strips per
// lookup to avoid re-reading a whole page from disk on every sample.
// Because scmfile.File is memory-mapped, that optimization collapses to
// simply remembering the last page's raw byte window — there is no
// separate strip read to cache, only the cost of re-walking the pyramid
// and re-running the bilinear interpolation, which this cache still
// avoids on a repeated vector.
package scmsample

import (
	"math"

	"github.com/rkooima/scm/internal/scmfile"
	"github.com/rkooima/scm/internal/scmidx"
)

// Sampler answers Get queries against one SCM file.
type Sampler struct {
	file *scmfile.File

	lastV   scmidx.Vec3
	lastSet bool
	lastK   float32

	lastOffset uint64
	lastPage   scmidx.PageId
	lastRaw    []byte
}

// New wraps an already-open file for point sampling.
func New(file *scmfile.File) *Sampler {
	return &Sampler{file: file}
}

// Get returns the file's first-channel value nearest unit vector v,
// bilinear-filtered between the four texels straddling v's projection
// onto the deepest page that covers it.
func (s *Sampler) Get(v scmidx.Vec3) float32 {
	if s.lastSet && v == s.lastV {
		return s.lastK
	}

	a, y, x := scmidx.Locate(v)
	x = 1 - x // height maps are authored inside-out, per the reference convention

	id, ly, lx := s.findDeepest(a, y, x)

	if id != s.lastPage || s.lastRaw == nil {
		raw, err := s.file.Raw(id)
		if err != nil {
			return s.lastK
		}
		s.lastPage = id
		s.lastOffset = s.file.PageOffset(id)
		s.lastRaw = raw
	}

	k := s.bilinear(s.lastRaw, ly, lx)

	s.lastV = v
	s.lastSet = true
	s.lastK = k
	return k
}

// findDeepest walks from root face a toward (y, x) until the catalog no
// longer provides a finer page, returning the deepest present page id
// and the face-local coordinate within it.
func (s *Sampler) findDeepest(a scmidx.Face, y, x float64) (scmidx.PageId, float64, float64) {
	id := scmidx.Index(a, 0, 0, 0)
	l := int64(0)
	n := int64(1)

	for {
		nn := n * 2
		row := clampIndex(int64(y*float64(nn)), nn)
		col := clampIndex(int64(x*float64(nn)), nn)

		child := scmidx.Index(a, l+1, row, col)
		if !s.file.PageStatus(child) {
			break
		}
		id = child
		l++
		n = nn
	}

	ly := y*float64(n) - math.Floor(y*float64(n))
	lx := x*float64(n) - math.Floor(x*float64(n))
	return id, ly, lx
}

func clampIndex(i, n int64) int64 {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// bilinear samples the first channel of a decoded page's raw bytes at
// face-local coordinate (y, x) in [0,1), matching scm_sample's half-texel
// padded lookup (the page carries a 1-texel border on every edge).
func (s *Sampler) bilinear(raw []byte, y, x float64) float32 {
	w, h, c := s.file.Width(), s.file.Height(), s.file.Channels()

	r := y*float64(h-2) + 0.5
	cf := x*float64(w-2) + 0.5

	r0 := int(math.Floor(r))
	c0 := int(math.Floor(cf))
	rr := float32(r - math.Floor(r))
	cc := float32(cf - math.Floor(cf))

	sample := func(row, col int) float32 {
		idx := uint64(row*w+col) * uint64(c)
		return s.file.ToFloat(raw, idx)
	}

	s00 := sample(r0, c0)
	s01 := sample(r0, c0+1)
	s10 := sample(r0+1, c0)
	s11 := sample(r0+1, c0+1)

	top := lerp(s00, s01, cc)
	bot := lerp(s10, s11, cc)
	return lerp(top, bot, rr)
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }
