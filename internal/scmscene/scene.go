// Package scmscene bundles the images that together describe one
// rendered planet: a color layer, a height layer, and any number of
// auxiliary channels (see SPEC_FULL.md §8, spec.md §4.8).
package scmscene

import (
	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmidx"
	"github.com/rkooima/scm/internal/scmimage"
)

// Scene is an ordered set of images sharing one draw pass.
type Scene struct {
	Images []*scmimage.Image
}

// Add appends img to the scene.
func (s *Scene) Add(img *scmimage.Image) {
	s.Images = append(s.Images, img)
}

// Height returns the image tagged as the ground elevation layer, or nil
// if the scene carries none (in which case the sphere is drawn as a
// perfect sphere of radius 1).
func (s *Scene) Height() *scmimage.Image {
	for _, img := range s.Images {
		if img.IsHeight() {
			return img
		}
	}
	return nil
}

// Status reports whether any image in the scene provides page id: a
// page is worth subdividing into as long as at least one layer has data
// for it.
func (s *Scene) Status(id scmidx.PageId) bool {
	for _, img := range s.Images {
		if img.Status(id) {
			return true
		}
	}
	return false
}

// Bounds returns the height image's [r0, r1] range for page id, or
// (1, 1) when the scene has no height image (a unit sphere). The ranges
// of the other images are not included.
func (s *Scene) Bounds(id scmidx.PageId) (r0, r1 float32) {
	h := s.Height()
	if h == nil {
		return 1, 1
	}
	return h.Bounds(id)
}

// Ground samples the height image nearest v, or 1 (the unit sphere's
// radius) if the scene carries no height layer.
func (s *Scene) Ground(v scmidx.Vec3) float64 {
	h := s.Height()
	if h == nil {
		return 1
	}
	return float64(h.Sample(v))
}

// TouchPage marks page id used this frame across every image.
func (s *Scene) TouchPage(frame int64, id scmidx.PageId) {
	for _, img := range s.Images {
		img.TouchPage(frame, id)
	}
}

// BindPage requests page id's atlas slot for every image in the scene
// and sets each image's per-level texture-lookup uniforms at depth.
func (s *Scene) BindPage(target raster.Target, depth int, frame int64, id scmidx.PageId) error {
	for _, img := range s.Images {
		if err := img.BindPage(target, depth, frame, id); err != nil {
			return err
		}
	}
	return nil
}

// UnbindPage resets every image's per-level uniforms at depth to
// reference the blank filler slot.
func (s *Scene) UnbindPage(target raster.Target, depth int) error {
	for _, img := range s.Images {
		if err := img.UnbindPage(target, depth); err != nil {
			return err
		}
	}
	return nil
}
