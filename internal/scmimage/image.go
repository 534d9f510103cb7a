// Package scmimage binds one channel of one SCM pyramid into a
// normalized [K0, K1] value range and forwards page queries to its
// cache and sampler (see SPEC_FULL.md §7, spec.md §4.7).
package scmimage

import (
	"fmt"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmcache"
	"github.com/rkooima/scm/internal/scmfile"
	"github.com/rkooima/scm/internal/scmidx"
	"github.com/rkooima/scm/internal/scmsample"
)

// Image is one scene layer: a named channel of one pyramid, with the
// normalization range that maps its raw samples into real-world units
// (e.g. meters of elevation).
type Image struct {
	Name      string // e.g. "height", "color", "normal"
	FileIndex int
	File      *scmfile.File
	Cache     *scmcache.Cache
	Sampler   *scmsample.Sampler

	K0, K1 float32 // value range: raw [0,1] maps onto [K0, K1]
}

// IsHeight reports whether this image supplies ground elevation, the
// one channel a Scene treats specially.
func (img *Image) IsHeight() bool { return img.Name == "height" }

// Status reports whether page id is present in this image's file.
func (img *Image) Status(id scmidx.PageId) bool {
	return img.File.PageStatus(id)
}

// Bounds returns page id's recorded value range remapped through
// [K0, K1].
func (img *Image) Bounds(id scmidx.PageId) (r0, r1 float32) {
	b0, b1 := img.File.PageBounds(id)
	return img.K0 + b0*(img.K1-img.K0), img.K0 + b1*(img.K1-img.K0)
}

// Sample returns the remapped value nearest unit vector v.
func (img *Image) Sample(v scmidx.Vec3) float32 {
	raw := img.Sampler.Get(v)
	return img.K0 + raw*(img.K1-img.K0)
}

// TouchPage requests page id from the cache at frame and discards the
// returned slot: a resident page is marked used this frame, and a
// missing one has its load started if capacity allows. No uniforms are
// set (used to keep a page's recency fresh when it's only sampled, not
// drawn).
func (img *Image) TouchPage(frame int64, id scmidx.PageId) {
	img.Cache.GetPage(img.FileIndex, id, frame)
}

// BindPage requests page id's atlas slot for drawing at the given
// quadtree depth and sets this image's two per-level GLSL uniforms:
// "<name>.a[depth]" (1 if the page is resident this frame, else 0) and
// "<name>.b[depth]" (the atlas-relative (u, v) of the page's top-left
// pixel, in the border-inclusive atlas texture, normalized to [0,1]).
// Mirrors scm_image::bind_page.
func (img *Image) BindPage(target raster.Target, depth int, frame int64, id scmidx.PageId) error {
	slot, resident := img.Cache.GetPage(img.FileIndex, id, frame)

	age := float32(0)
	if resident {
		age = 1
	}
	if err := target.SetUniform(fmt.Sprintf("%s.a[%d]", img.Name, depth), [4]float32{age, 0, 0, 0}); err != nil {
		return err
	}

	s := img.Cache.GridSize()
	stride := img.Cache.PageSize() + 2
	u := float32((slot%s)*stride+1) / float32(s*stride)
	v := float32((slot/s)*stride+1) / float32(s*stride)
	return target.SetUniform(fmt.Sprintf("%s.b[%d]", img.Name, depth), [4]float32{u, v, 0, 0})
}

// UnbindPage resets this image's per-level uniforms to reference atlas
// slot zero, the permanent blank filler, mirroring
// scm_image::unbind_page.
func (img *Image) UnbindPage(target raster.Target, depth int) error {
	if err := target.SetUniform(fmt.Sprintf("%s.a[%d]", img.Name, depth), [4]float32{0, 0, 0, 0}); err != nil {
		return err
	}
	return target.SetUniform(fmt.Sprintf("%s.b[%d]", img.Name, depth), [4]float32{0, 0, 0, 0})
}
