// Package scmsphere implements view-adaptive quadtree traversal of an
// SCM scene: deciding which pages are visible at a useful level of
// detail, keeping the level-difference invariant across neighbors, and
// drawing the result with crack-free mesh stitching (see SPEC_FULL.md
// §9, spec.md §4.9).
package scmsphere

import (
	"math"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmidx"
	"github.com/rkooima/scm/internal/scmscene"
)

// Sphere holds the traversal's per-frame visible-page set and the
// spherical zoom warp state.
type Sphere struct {
	Detail int // mesh subdivision per page, NxN quads
	Limit  int // subdivide while a page's screen size exceeds this many pixels

	zoomV vec3
	zoomK float64

	pages map[scmidx.PageId]bool
}

// New returns a sphere traversal with the zoom warp centered on -Z and
// disabled (zoomK == 1).
func New(detail, limit int) *Sphere {
	return &Sphere{
		Detail: detail,
		Limit:  limit,
		zoomV:  vec3{X: 0, Y: 0, Z: -1},
		zoomK:  1,
		pages:  make(map[scmidx.PageId]bool),
	}
}

// SetZoom configures the spherical magnification warp: points near v are
// stretched outward (k>1) or compressed inward (k<1) in angular space.
func (s *Sphere) SetZoom(v vec3, k float64) {
	s.zoomV = vnormalize(v)
	s.zoomK = k
}

// isSet reports whether page id was added to this frame's visible set.
func (s *Sphere) isSet(id scmidx.PageId) bool { return s.pages[id] }

// scaleWarp implements the reference's scale(k,t) warp curve: it
// compresses or stretches a normalized parameter t through zoomK without
// discontinuity at t=0 or t=1.
func scaleWarp(k, t float64) float64 {
	if k < 1 {
		return math.Min(t/k, 1-(1-t)*k)
	}
	return math.Max(t/k, 1-(1-t)*k)
}

// zoom warps unit vector v toward zoomV by the configured magnification.
func (s *Sphere) zoom(v vec3) vec3 {
	d := vdot(v, s.zoomV)
	if d <= -1 || d >= 1 {
		return v
	}
	b := scaleWarp(s.zoomK, math.Acos(d)/math.Pi) * math.Pi

	x := vnormalize(vadd(v, vscale(s.zoomV, -d)))
	return vadd(vscale(s.zoomV, math.Cos(b)), vscale(x, math.Sin(b)))
}

// ViewPage computes the longest visible screen-space edge of page id, in
// pixels, after projecting its (possibly zoom-warped) corners through m
// and applying the "bulge" outward radius r1 at its curved mid-surface.
// It returns 0 if the page is entirely clipped, and +Inf if the zoom
// warp has made the page geometrically degenerate (forcing subdivision).
func (s *Sphere) ViewPage(m Mat4, vw, vh int, r0, r1 float64, id scmidx.PageId, zoomActive bool) float64 {
	corners := scmidx.Corners(id)
	v := corners

	if zoomActive && s.zoomK != 1 {
		for i := range v {
			v[i] = s.zoom(v[i])
		}
		if vdot(v[0], v[1]) < 0 || vdot(v[1], v[3]) < 0 ||
			vdot(v[3], v[2]) < 0 || vdot(v[2], v[0]) < 0 {
			return math.Inf(1)
		}
		if determinant(v[1], v[0], v[2]) < 0 || determinant(v[1], v[0], v[3]) < 0 ||
			determinant(v[3], v[1], v[0]) < 0 || determinant(v[3], v[1], v[2]) < 0 ||
			determinant(v[2], v[3], v[0]) < 0 || determinant(v[2], v[3], v[1]) < 0 ||
			determinant(v[0], v[2], v[1]) < 0 || determinant(v[0], v[2], v[3]) < 0 {
			return math.Inf(1)
		}
	}

	u := vsum4(v[0], v[1], v[2], v[3])
	r2 := r1 * vlen(u) / vdot(v[0], u)

	var near, far [4]vec3
	for i := range v {
		near[i] = vscale(v[i], r0)
		far[i] = vscale(v[i], r2)
	}

	pts := make([]Vec4, 0, 8)
	for _, p := range near {
		pts = append(pts, m.MulVec3(p.X, p.Y, p.Z))
	}
	for _, p := range far {
		pts = append(pts, m.MulVec3(p.X, p.Y, p.Z))
	}

	if allTrue(pts, func(p Vec4) bool { return p.W <= 0 }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.Z > p.W }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.Z < -p.W }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.Y > p.W }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.Y < -p.W }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.X > p.W }) {
		return 0
	}
	if allTrue(pts, func(p Vec4) bool { return p.X < -p.W }) {
		return 0
	}

	A, B, C, D := pts[0], pts[1], pts[2], pts[3]
	return max4(
		screenLength(A, B, vw, vh),
		screenLength(C, D, vw, vh),
		screenLength(A, C, vw, vh),
		screenLength(B, D, vw, vh),
	)
}

func allTrue(pts []Vec4, pred func(Vec4) bool) bool {
	for _, p := range pts {
		if !pred(p) {
			return false
		}
	}
	return true
}

func screenLength(a, b Vec4, w, h int) float64 {
	if a.W <= 0 && b.W <= 0 {
		return 0
	}
	if a.W <= 0 || b.W <= 0 {
		return math.Inf(1)
	}
	dx := (a.X/a.W - b.X/b.W) * float64(w) / 2
	dy := (a.Y/a.W - b.Y/b.W) * float64(h) / 2
	return math.Sqrt(dx*dx + dy*dy)
}

func max4(a, b, c, d float64) float64 {
	return math.Max(math.Max(a, b), math.Max(c, d))
}

// AddPage idempotently adds page id to the frame's visible set, then
// recursively ensures its parent and the four neighbors implied by its
// quadrant are present too, preserving the level-difference invariant
// (no two compass-adjacent visible pages differ by more than one level).
func (s *Sphere) AddPage(m Mat4, vw, vh int, r0, r1 float64, id scmidx.PageId, zoomActive bool) {
	if s.isSet(id) {
		return
	}
	if k := s.ViewPage(m, vw, vh, r0, r1, id, zoomActive); k <= 0 {
		return
	}

	s.pages[id] = true
	if id <= 5 {
		return
	}

	p := scmidx.Parent(id)
	s.AddPage(m, vw, vh, r0, r1, p, zoomActive)

	switch scmidx.Order(id) {
	case 0:
		s.AddPage(m, vw, vh, r0, r1, scmidx.North(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.South(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.East(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.West(p), zoomActive)
	case 1:
		s.AddPage(m, vw, vh, r0, r1, scmidx.North(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.South(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.East(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.West(id), zoomActive)
	case 2:
		s.AddPage(m, vw, vh, r0, r1, scmidx.North(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.South(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.East(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.West(p), zoomActive)
	case 3:
		s.AddPage(m, vw, vh, r0, r1, scmidx.North(id), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.South(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.East(p), zoomActive)
		s.AddPage(m, vw, vh, r0, r1, scmidx.West(id), zoomActive)
	}
}

// PrepPage decides whether page id should subdivide further or be added
// to the visible set outright, recursing into its four children when
// its screen size exceeds Limit.
func (s *Sphere) PrepPage(scene *scmscene.Scene, m Mat4, vw, vh int, id scmidx.PageId, zoomActive bool) bool {
	if !scene.Status(id) {
		return false
	}

	r0, r1 := scene.Bounds(id)
	k := s.ViewPage(m, vw, vh, float64(r0), float64(r1), id, zoomActive)
	if k <= 0 {
		return false
	}

	if k > float64(s.Limit) {
		any := false
		for c := int64(0); c < 4; c++ {
			if s.PrepPage(scene, m, vw, vh, scmidx.Child(id, c), zoomActive) {
				any = true
			}
		}
		if any {
			return true
		}
	}

	s.AddPage(m, vw, vh, float64(r0), float64(r1), id, zoomActive)
	return true
}

// Prep clears the visible-page set and repopulates it from the six root
// faces.
func (s *Sphere) Prep(scene *scmscene.Scene, m Mat4, vw, vh int, zoomActive bool) {
	s.pages = make(map[scmidx.PageId]bool)
	for face := scmidx.Face(0); face < 6; face++ {
		s.PrepPage(scene, m, vw, vh, scmidx.Index(face, 0, 0, 0), zoomActive)
	}
}

// neighborMask returns the 4-bit absent-neighbor mesh-variant mask for
// leaf page id: bit 0 north, 1 south, 2 west, 3 east, set when that
// neighbor is NOT in the visible set (so the edge must drop to half
// resolution to avoid a T-junction against a coarser neighbor).
func (s *Sphere) neighborMask(id scmidx.PageId) int {
	if id <= 5 {
		return 0
	}
	j := 0
	if !s.isSet(scmidx.North(id)) {
		j |= 1
	}
	if !s.isSet(scmidx.South(id)) {
		j |= 2
	}
	if !s.isSet(scmidx.West(id)) {
		j |= 4
	}
	if !s.isSet(scmidx.East(id)) {
		j |= 8
	}
	return j
}

// DrawPage binds page id's layers at depth, recurses into any visible
// children, or — at a leaf — sets the per-level texture-coordinate
// transform chain and draws the mesh variant that matches its
// neighbors' resolution, then unbinds depth's layers again.
func (s *Sphere) DrawPage(scene *scmscene.Scene, target raster.Target, depth int, frame int64, id scmidx.PageId) {
	scene.BindPage(target, depth, frame, id)

	c0, c1, c2, c3 := scmidx.Child(id, 0), scmidx.Child(id, 1), scmidx.Child(id, 2), scmidx.Child(id, 3)
	b0, b1, b2, b3 := s.isSet(c0), s.isSet(c1), s.isSet(c2), s.isSet(c3)

	if b0 || b1 || b2 || b3 {
		if b0 {
			s.DrawPage(scene, target, depth+1, frame, c0)
		}
		if b1 {
			s.DrawPage(scene, target, depth+1, frame, c1)
		}
		if b2 {
			s.DrawPage(scene, target, depth+1, frame, c2)
		}
		if b3 {
			s.DrawPage(scene, target, depth+1, frame, c3)
		}
	} else {
		r := scmidx.Row(id)
		c := scmidx.Col(id)
		R, C := r, c

		for l := depth; l >= 0; l-- {
			m := 1.0 / float32(int64(1)<<uint(depth-l))
			x := m*float32(c) - float32(C)
			y := m*float32(r) - float32(R)
			target.SetUniform(uniformName("uA", l), [4]float32{m, m, 0, 0})
			target.SetUniform(uniformName("uB", l), [4]float32{x, y, 0, 0})
			C /= 2
			R /= 2
		}

		target.DrawIndexed(s.neighborMask(id))
	}

	scene.UnbindPage(target, depth)
}

func uniformName(base string, level int) string {
	const digits = "0123456789abcdef"
	if level < 0 || level >= len(digits) {
		return base
	}
	return base + string(digits[level])
}

// Draw runs Prep, touches every visible page (warming the cache, in no
// particular order), then recursively draws the six root faces
// that made the cut.
func (s *Sphere) Draw(scene *scmscene.Scene, target raster.Target, m Mat4, vw, vh int, frame int64) {
	s.Prep(scene, m, vw, vh, s.zoomK != 1)

	for id := range s.pages {
		scene.TouchPage(frame, id)
	}

	for face := scmidx.Face(0); face < 6; face++ {
		root := scmidx.Index(face, 0, 0, 0)
		if s.isSet(root) {
			s.DrawPage(scene, target, 0, frame, root)
		}
	}
}
