// Package geom carries the small amount of vector and quaternion math the
// collision codecs need, plus the axis conversion between the editor's
// Z-up space and the engine's Y-up space.
package geom

import (
	"math"
	"strconv"
)

// Vec3 is a point or extent in three dimensions.
type Vec3 struct {
	X, Y, Z float64
}

// Quat is a rotation quaternion in x, y, z, w component order.
type Quat struct {
	X, Y, Z, W float64
}

// Mul returns the Hamilton product q*r, the rotation r followed by q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// RotX returns the rotation of deg degrees around the X axis.
func RotX(deg float64) Quat {
	half := deg * math.Pi / 360
	return Quat{X: math.Sin(half), W: math.Cos(half)}
}

// RotY returns the rotation of deg degrees around the Y axis.
func RotY(deg float64) Quat {
	half := deg * math.Pi / 360
	return Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// Round rounds v to the given number of decimal places, going through the
// decimal string form so that 0.1-style values survive exactly the way they
// are later printed.
func Round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// FromSourcePosition converts an engine-space position (Y up) into editor
// space (Z up).
func FromSourcePosition(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: -z, Z: y}
}

// ToSourcePosition converts an editor-space position back into engine space.
func ToSourcePosition(v Vec3) (x, y, z float64) {
	return v.X, v.Z, -v.Y
}
