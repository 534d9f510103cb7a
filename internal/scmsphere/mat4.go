package scmsphere

// Mat4 is a column-major 4x4 matrix, matching the column-major
// convention of the view-projection matrix the host renderer supplies.
type Mat4 [16]float64

// Vec4 is a homogeneous clip-space coordinate.
type Vec4 struct{ X, Y, Z, W float64 }

// MulVec3 transforms a point (implicit W=1) by m.
func (m Mat4) MulVec3(x, y, z float64) Vec4 {
	return Vec4{
		X: m[0]*x + m[4]*y + m[8]*z + m[12],
		Y: m[1]*x + m[5]*y + m[9]*z + m[13],
		Z: m[2]*x + m[6]*y + m[10]*z + m[14],
		W: m[3]*x + m[7]*y + m[11]*z + m[15],
	}
}
