// Package boundary models rigid boundaries: shared mesh nodes, wall
// elements (lines, triangles, quadrilaterals) and point conditions.
//
// Boundary nodes are shared by every particle touching them, and the
// particle loop runs in parallel. Every accumulation into a node goes
// through the node's mutex, held only for the accumulation itself.
package boundary

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

type Node struct {
	ID                int
	Position          r3.Vec
	Velocity          r3.Vec
	DeltaDisplacement r3.Vec
	// DeltaRotation is the incremental rotation of the node, used by
	// point conditions attached to rotating bodies.
	DeltaRotation r3.Vec

	mu           sync.Mutex
	contactForce r3.Vec
	volumeWear   float64
	impactWear   float64
}

func NewNode(id int, position r3.Vec) *Node {
	return &Node{ID: id, Position: position}
}

func (n *Node) AddContactForce(f r3.Vec) {
	n.mu.Lock()
	n.contactForce = r3.Add(n.contactForce, f)
	n.mu.Unlock()
}

func (n *Node) ContactForce() r3.Vec {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.contactForce
}

// AddWear accumulates non-dimensional volume wear and impact wear.
func (n *Node) AddWear(volume, impact float64) {
	n.mu.Lock()
	n.volumeWear += volume
	n.impactWear += impact
	n.mu.Unlock()
}

func (n *Node) Wear() (volume, impact float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volumeWear, n.impactWear
}

// ResetStep clears the per-step contact force. Wear is cumulative.
func (n *Node) ResetStep() {
	n.mu.Lock()
	n.contactForce = r3.Vec{}
	n.mu.Unlock()
}

// Advance moves the node with its prescribed velocity.
func (n *Node) Advance(dt float64) {
	n.DeltaDisplacement = r3.Scale(dt, n.Velocity)
	n.Position = r3.Add(n.Position, n.DeltaDisplacement)
}
