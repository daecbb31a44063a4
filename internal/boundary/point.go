package boundary

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/material"
)

// PointCondition is a boundary reduced to a point, interpolated from its
// nodes with fixed shape-function values.
type PointCondition struct {
	ID       int
	Nodes    []*Node
	N        []float64
	Material *material.Material
	// InitialOffset is subtracted from every indentation against the point.
	InitialOffset float64

	mu            sync.Mutex
	externalForce r3.Vec
}

// NewPointCondition weights the nodes equally.
func NewPointCondition(id int, m *material.Material, nodes ...*Node) *PointCondition {
	n := make([]float64, len(nodes))
	for i := range n {
		n[i] = 1 / float64(len(nodes))
	}
	return &PointCondition{ID: id, Nodes: nodes, N: n, Material: m}
}

func (pc *PointCondition) Center() r3.Vec {
	var c r3.Vec
	for i, n := range pc.Nodes {
		c = r3.Add(c, r3.Scale(pc.N[i], n.Position))
	}
	return c
}

// Kinematics returns the interpolated velocity, incremental displacement
// and incremental rotation.
func (pc *PointCondition) Kinematics() (velocity, delta, rotation r3.Vec) {
	for i, n := range pc.Nodes {
		velocity = r3.Add(velocity, r3.Scale(pc.N[i], n.Velocity))
		delta = r3.Add(delta, r3.Scale(pc.N[i], n.DeltaDisplacement))
		rotation = r3.Add(rotation, r3.Scale(pc.N[i], n.DeltaRotation))
	}
	return velocity, delta, rotation
}

func (pc *PointCondition) AddExternalForce(f r3.Vec) {
	pc.mu.Lock()
	pc.externalForce = r3.Add(pc.externalForce, f)
	pc.mu.Unlock()
}

func (pc *PointCondition) ExternalForce() r3.Vec {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.externalForce
}

func (pc *PointCondition) ResetStep() {
	pc.mu.Lock()
	pc.externalForce = r3.Vec{}
	pc.mu.Unlock()
}
