package geom

import (
	"gonum.org/v1/gonum/spatial/r3"
)

const insideTolerance = 1e-12

// Contact is the outcome of a face, edge or vertex check. Frame normal
// points from the boundary to the sphere centre; Distance is the
// centre-to-boundary gap measured along it.
type Contact struct {
	Exists   bool
	Frame    Frame
	Distance float64
	Weights  [4]float64
}

// FacetCheck tests a sphere against a triangle or quadrilateral. Weights
// are the shape-function values of the projected centre.
func FacetCheck(nodes []r3.Vec, center r3.Vec, radius float64) Contact {
	var c Contact
	if len(nodes) != 3 && len(nodes) != 4 {
		return c
	}

	n := r3.Cross(r3.Sub(nodes[1], nodes[0]), r3.Sub(nodes[2], nodes[0]))
	area2 := r3.Norm(n)
	if area2 < Epsilon {
		return c
	}
	n = r3.Scale(1/area2, n)

	dist := r3.Dot(r3.Sub(center, nodes[0]), n)
	if dist < 0 {
		n = r3.Scale(-1, n)
		dist = -dist
	}
	c.Distance = dist
	c.Frame = NewContactFrame(n)
	if dist > radius {
		return c
	}

	q := r3.Sub(center, r3.Scale(dist, n))
	if w, ok := insideTriangle(q, nodes[0], nodes[1], nodes[2]); ok {
		c.Weights = [4]float64{w[0], w[1], w[2], 0}
		c.Exists = true
		return c
	}
	if len(nodes) == 4 {
		if w, ok := insideTriangle(q, nodes[0], nodes[2], nodes[3]); ok {
			c.Weights = [4]float64{w[0], 0, w[1], w[2]}
			c.Exists = true
		}
	}
	return c
}

// EdgeCheck tests a sphere against the segment a-b. eta is the position of
// the closest point along the segment.
func EdgeCheck(a, b, center r3.Vec, radius float64) (c Contact, eta float64) {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 < Epsilon {
		return c, 0
	}
	eta = r3.Dot(r3.Sub(center, a), ab) / l2
	if eta < 0 || eta > 1 {
		return c, eta
	}
	d := r3.Sub(center, r3.Add(a, r3.Scale(eta, ab)))
	dist := r3.Norm(d)
	c.Distance = dist
	if dist < Epsilon {
		return c, eta
	}
	c.Frame = NewContactFrame(d)
	c.Exists = dist <= radius
	return c, eta
}

// VertexCheck tests a sphere against a single point.
func VertexCheck(p, center r3.Vec, radius float64) Contact {
	var c Contact
	d := r3.Sub(center, p)
	dist := r3.Norm(d)
	c.Distance = dist
	if dist < Epsilon {
		return c
	}
	c.Frame = NewContactFrame(d)
	c.Exists = dist <= radius
	return c
}

// TriangleShapeFunctions returns the linear shape functions of the triangle
// a-b-c evaluated at q (barycentric coordinates of q's projection).
func TriangleShapeFunctions(a, b, c, q r3.Vec) [3]float64 {
	v0, v1, v2 := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(q, a)
	d00, d01, d11 := r3.Dot(v0, v0), r3.Dot(v0, v1), r3.Dot(v1, v1)
	d20, d21 := r3.Dot(v2, v0), r3.Dot(v2, v1)
	denom := d00*d11 - d01*d01
	if denom == 0 {
		return [3]float64{}
	}
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	return [3]float64{1 - v - w, v, w}
}

// LineShapeFunctions returns the linear shape functions of segment a-b at
// the projection of q.
func LineShapeFunctions(a, b, q r3.Vec) [2]float64 {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return [2]float64{}
	}
	t := r3.Dot(r3.Sub(q, a), ab) / l2
	return [2]float64{1 - t, t}
}

func insideTriangle(q, a, b, c r3.Vec) ([3]float64, bool) {
	w := TriangleShapeFunctions(a, b, c, q)
	for _, wi := range w {
		if wi < -insideTolerance {
			return w, false
		}
	}
	return w, true
}
