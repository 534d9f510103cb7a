package scmsphere

import (
	"math"

	"github.com/rkooima/scm/internal/scmidx"
)

type vec3 = scmidx.Vec3

func vadd(a, b vec3) vec3 { return vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func vsum4(a, b, c, d vec3) vec3 {
	return vec3{a.X + b.X + c.X + d.X, a.Y + b.Y + c.Y + d.Y, a.Z + b.Z + c.Z + d.Z}
}
func vscale(a vec3, k float64) vec3 { return vec3{a.X * k, a.Y * k, a.Z * k} }
func vdot(a, b vec3) float64        { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func vlen(a vec3) float64           { return math.Sqrt(vdot(a, a)) }
func vcross(a, b vec3) vec3 {
	return vec3{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}
func vnormalize(a vec3) vec3 {
	n := vlen(a)
	if n == 0 {
		return a
	}
	return vscale(a, 1/n)
}

// determinant is the scalar triple product a . (b x c), used by the zoom
// warp's inside-out test.
func determinant(a, b, c vec3) float64 { return vdot(a, vcross(b, c)) }
