// Package geom holds the contact geometry used by the force engine: local
// contact frames, the rotation that carries persisted forces from one frame
// to the next, periodic images and the face/edge/vertex checks against
// boundary elements.
//
// All vectors are gonum r3 values. Frame axis 2 is always the contact
// normal and points from the other body towards the particle, so a positive
// normal component of a local force is compressive.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the separation below which contact geometry is undefined.
const Epsilon = 2.220446049250313e-16

// Frame is an orthonormal local coordinate system.
type Frame [3]r3.Vec

// NewContactFrame builds a frame whose axis 2 is the direction of normal.
// The first tangent is chosen from the dominant component of the normal so
// that the construction never degenerates.
func NewContactFrame(normal r3.Vec) Frame {
	n := normal
	if d := r3.Norm(n); d != 0 {
		n = r3.Scale(1/d, n)
	}

	var t r3.Vec
	switch {
	case math.Abs(n.X) >= 0.577:
		t = r3.Vec{X: -n.Y, Y: n.X}
	case math.Abs(n.Y) >= 0.577:
		t = r3.Vec{Y: -n.Z, Z: n.Y}
	default:
		t = r3.Vec{X: n.Z, Z: -n.X}
	}
	if d := r3.Norm(t); d != 0 {
		t = r3.Scale(1/d, t)
	}

	return Frame{t, r3.Cross(n, t), n}
}

// Normal returns axis 2.
func (f *Frame) Normal() r3.Vec { return f[2] }

// ToLocal projects a global vector on the frame axes.
func (f *Frame) ToLocal(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(f[0], v), Y: r3.Dot(f[1], v), Z: r3.Dot(f[2], v)}
}

// ToGlobal expands local components back into global axes.
func (f *Frame) ToGlobal(l r3.Vec) r3.Vec {
	g := r3.Scale(l.X, f[0])
	g = r3.Add(g, r3.Scale(l.Y, f[1]))
	return r3.Add(g, r3.Scale(l.Z, f[2]))
}

// NormalRotation returns the axis and angle of the rotation taking the
// normal of old onto the normal of current. ok is false when the normals
// are parallel and no rotation is needed.
func NormalRotation(old, current *Frame) (axis r3.Vec, angle float64, ok bool) {
	v1, v2 := old.Normal(), current.Normal()
	cross := r3.Cross(v1, v2)
	s := r3.Norm(cross)
	if s < Epsilon {
		return r3.Vec{}, 0, false
	}
	return r3.Scale(1/s, cross), math.Atan2(s, r3.Dot(v1, v2)), true
}

// RotateOldForce carries a persisted global force through the rotation of
// the contact normal between the previous and the current frame.
func RotateOldForce(old, current *Frame, force r3.Vec) r3.Vec {
	axis, angle, ok := NormalRotation(old, current)
	if !ok {
		return force
	}
	return RotateAbout(force, axis, angle)
}

// RotateAbout rotates v by angle around the unit vector axis.
func RotateAbout(v, axis r3.Vec, angle float64) r3.Vec {
	if angle == 0 || r3.Norm2(axis) == 0 {
		return v
	}
	return r3.NewRotation(angle, axis).Rotate(v)
}

// OrientationFromRotation turns an incremental rotation vector (axis times
// angle) into a rotation quaternion.
func OrientationFromRotation(deltaRotation r3.Vec) r3.Rotation {
	angle := r3.Norm(deltaRotation)
	if angle == 0 {
		return r3.Rotation{Real: 1}
	}
	return r3.NewRotation(angle, deltaRotation)
}

// ClosestPeriodicImage moves other to its image nearest to my inside a
// periodic box spanned by min and max.
func ClosestPeriodicImage(my, other, min, max r3.Vec) r3.Vec {
	wrap := func(m, o, period float64) float64 {
		d := o - m
		switch {
		case d > 0.5*period:
			return o - period
		case d < -0.5*period:
			return o + period
		}
		return o
	}
	return r3.Vec{
		X: wrap(my.X, other.X, max.X-min.X),
		Y: wrap(my.Y, other.Y, max.Y-min.Y),
		Z: wrap(my.Z, other.Z, max.Z-min.Z),
	}
}

// Components returns v as an array indexable by axis.
func Components(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// IsFinite reports whether no component is NaN or Inf.
func IsFinite(v r3.Vec) bool {
	for _, c := range Components(v) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
