package boundary

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/material"
)

// ContactType is the boundary feature a particle touches.
type ContactType int

const (
	NoContact ContactType = iota
	Face
	Edge
	Vertex
)

func (c ContactType) String() string {
	switch c {
	case Face:
		return "face"
	case Edge:
		return "edge"
	case Vertex:
		return "vertex"
	}
	return "none"
}

// WeightTolerance is the smallest weight counted as nonzero.
const WeightTolerance = 1e-12

// ClassifyWeights maps the number of nonzero interpolation weights onto a
// contact type: 3 or 4 for a face, 2 for an edge and 1 for a vertex.
func ClassifyWeights(w [4]float64) ContactType {
	n := 0
	for _, wi := range w {
		if math.Abs(wi) > WeightTolerance {
			n++
		}
	}
	switch n {
	case 3, 4:
		return Face
	case 2:
		return Edge
	case 1:
		return Vertex
	}
	return NoContact
}

// Wall is a rigid boundary element with 2, 3 or 4 nodes.
type Wall struct {
	ID       int
	Nodes    []*Node
	Material *material.Material
	// InitialOffset is subtracted from every indentation against the wall.
	InitialOffset float64
	// Phantom walls produce no force; they only count particles crossing.
	Phantom bool

	mu        sync.Mutex
	sides     map[int]int8
	crossings int
}

func NewWall(id int, m *material.Material, nodes ...*Node) (*Wall, error) {
	if len(nodes) < 2 || len(nodes) > 4 {
		return nil, fmt.Errorf("%w: wall %d has %d nodes, want 2 to 4", dynamo.ErrInvalidConfig, id, len(nodes))
	}
	return &Wall{ID: id, Nodes: nodes, Material: m, sides: make(map[int]int8)}, nil
}

func (w *Wall) Positions() []r3.Vec {
	out := make([]r3.Vec, len(w.Nodes))
	for i, n := range w.Nodes {
		out[i] = n.Position
	}
	return out
}

func (w *Wall) IsLine() bool { return len(w.Nodes) == 2 }

func (w *Wall) Center() r3.Vec {
	var c r3.Vec
	for _, n := range w.Nodes {
		c = r3.Add(c, n.Position)
	}
	return r3.Scale(1/float64(len(w.Nodes)), c)
}

func (w *Wall) Length() float64 {
	return r3.Norm(r3.Sub(w.Nodes[1].Position, w.Nodes[0].Position))
}

// Area is the facet area, or the length of a line element.
func (w *Wall) Area() float64 {
	x := w.Positions()
	switch len(x) {
	case 2:
		return w.Length()
	case 3:
		return 0.5 * r3.Norm(r3.Cross(r3.Sub(x[1], x[0]), r3.Sub(x[2], x[0])))
	}
	a := r3.Norm(r3.Cross(r3.Sub(x[1], x[0]), r3.Sub(x[2], x[0])))
	b := r3.Norm(r3.Cross(r3.Sub(x[2], x[0]), r3.Sub(x[3], x[0])))
	return 0.5 * (a + b)
}

// Normal is the unit normal of a facet; zero for lines.
func (w *Wall) Normal() r3.Vec {
	if w.IsLine() {
		return r3.Vec{}
	}
	x := w.Positions()
	n := r3.Cross(r3.Sub(x[1], x[0]), r3.Sub(x[2], x[0]))
	if d := r3.Norm(n); d > 0 {
		return r3.Scale(1/d, n)
	}
	return r3.Vec{}
}

// ShapeFunctions evaluates the element shape functions at the projection
// of q. Quadrilaterals are split along the 0-2 diagonal.
func (w *Wall) ShapeFunctions(q r3.Vec) [4]float64 {
	x := w.Positions()
	switch len(x) {
	case 2:
		l := geom.LineShapeFunctions(x[0], x[1], q)
		return [4]float64{l[0], l[1]}
	case 3:
		t := geom.TriangleShapeFunctions(x[0], x[1], x[2], q)
		return [4]float64{t[0], t[1], t[2]}
	}
	t := geom.TriangleShapeFunctions(x[0], x[1], x[2], q)
	if t[0] >= -WeightTolerance && t[1] >= -WeightTolerance && t[2] >= -WeightTolerance {
		return [4]float64{t[0], t[1], t[2], 0}
	}
	t = geom.TriangleShapeFunctions(x[0], x[2], x[3], q)
	return [4]float64{t[0], 0, t[1], t[2]}
}

// RelativeData resolves the contact of a sphere with the wall. The
// candidate weights supplied by the neighbour search select the feature to
// test; the returned contact carries the weights of the closest point.
func (w *Wall) RelativeData(center r3.Vec, radius float64, candidate [4]float64) (geom.Contact, ContactType) {
	typ := ClassifyWeights(candidate)
	x := w.Positions()
	switch typ {
	case Face:
		if len(x) < 3 {
			break
		}
		return geom.FacetCheck(x, center, radius), Face
	case Edge:
		i, j := -1, -1
		for k := range x {
			if math.Abs(candidate[k]) > WeightTolerance {
				if i < 0 {
					i = k
				} else {
					j = k
				}
			}
		}
		if j < 0 {
			break
		}
		c, eta := geom.EdgeCheck(x[i], x[j], center, radius)
		c.Weights = [4]float64{}
		c.Weights[i] = 1 - eta
		c.Weights[j] = eta
		return c, Edge
	case Vertex:
		for k := range x {
			if math.Abs(candidate[k]) > WeightTolerance {
				c := geom.VertexCheck(x[k], center, radius)
				c.Weights[k] = 1
				return c, Vertex
			}
		}
	}
	return geom.Contact{}, NoContact
}

// Kinematics interpolates node velocity and incremental displacement.
func (w *Wall) Kinematics(weights [4]float64) (velocity, delta r3.Vec) {
	for i, n := range w.Nodes {
		velocity = r3.Add(velocity, r3.Scale(weights[i], n.Velocity))
		delta = r3.Add(delta, r3.Scale(weights[i], n.DeltaDisplacement))
	}
	return velocity, delta
}

// AddContactForce distributes a force applied on the wall over its nodes.
func (w *Wall) AddContactForce(weights [4]float64, f r3.Vec) {
	for i, n := range w.Nodes {
		if weights[i] != 0 {
			n.AddContactForce(r3.Scale(weights[i], f))
		}
	}
}

// TotalContactForce sums the contact force of the wall nodes.
func (w *Wall) TotalContactForce() r3.Vec {
	var f r3.Vec
	for _, n := range w.Nodes {
		f = r3.Add(f, n.ContactForce())
	}
	return f
}

// DepositWear adds wear to the nodes around the projection of center onto
// the wall. Volume and impact wear are per unit of element area.
func (w *Wall) DepositWear(center r3.Vec, volume, impact float64) error {
	area := w.Area()
	if area == 0 {
		if w.IsLine() {
			return fmt.Errorf("%w: wall %d", dynamo.ErrZeroLengthLine, w.ID)
		}
		return fmt.Errorf("%w: wall %d", dynamo.ErrZeroAreaFacet, w.ID)
	}
	volume /= area
	impact /= area

	x := w.Positions()
	var q r3.Vec
	if w.IsLine() {
		ab := r3.Sub(x[1], x[0])
		t := r3.Dot(r3.Sub(center, x[0]), ab) / r3.Norm2(ab)
		q = r3.Add(x[0], r3.Scale(t, ab))
	} else {
		n := w.Normal()
		q = r3.Sub(center, r3.Scale(r3.Dot(r3.Sub(center, x[0]), n), n))
	}

	sf := w.ShapeFunctions(q)
	for i := range w.Nodes {
		if sf[i] < 0 {
			return nil
		}
	}
	for i, n := range w.Nodes {
		n.AddWear(sf[i]*volume, sf[i]*impact)
	}
	return nil
}

// CheckSide records on which side of the wall plane a particle is and
// counts side changes. Lines have no side.
func (w *Wall) CheckSide(particleID int, center r3.Vec) {
	if w.IsLine() {
		return
	}
	d := r3.Dot(r3.Sub(center, w.Nodes[0].Position), w.Normal())
	side := int8(1)
	if d < 0 {
		side = -1
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sides == nil {
		w.sides = make(map[int]int8)
	}
	if prev, ok := w.sides[particleID]; ok && prev != side {
		w.crossings++
	}
	w.sides[particleID] = side
}

// Crossings returns how many times particles changed side of the wall.
func (w *Wall) Crossings() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.crossings
}
