package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/particle"
)

// GluedToWall moves a particle rigidly with a point of a wall. Forces are
// ignored and the particle does not rotate.
type GluedToWall struct {
	wall    *boundary.Wall
	weights [4]float64
}

func NewGluedToWall(w *boundary.Wall, weights [4]float64) *GluedToWall {
	return &GluedToWall{wall: w, weights: weights}
}

func (g *GluedToWall) Name() string { return "glued_to_wall" }

func (g *GluedToWall) Clone() particle.Scheme {
	c := *g
	return &c
}

func (g *GluedToWall) FollowedWall() int { return g.wall.ID }

func (g *GluedToWall) Move(n *particle.Node, mass, dt float64) {
	n.Velocity, n.DeltaDisplacement = g.wall.Kinematics(g.weights)
	n.Position = r3.Add(n.Position, n.DeltaDisplacement)
}

func (g *GluedToWall) Rotate(n *particle.Node, inertia, dt float64) {
	n.AngularVelocity = r3.Vec{}
	n.DeltaRotation = r3.Vec{}
}
