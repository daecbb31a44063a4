package integrators

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/particle"
)

// SymplecticEuler updates the velocity from the force first and then the
// position from the new velocity.
type SymplecticEuler struct{}

func NewSymplecticEuler() *SymplecticEuler {
	return &SymplecticEuler{}
}

func (e *SymplecticEuler) Name() string { return "symplectic_euler" }

func (e *SymplecticEuler) Clone() particle.Scheme { return &SymplecticEuler{} }

func (e *SymplecticEuler) Move(n *particle.Node, mass, dt float64) {
	if mass > 0 {
		n.Velocity = kick(n.Velocity, r3.Scale(1/mass, n.TotalForce), n.Fixed, dt)
	}
	drift(n, dt)
}

func (e *SymplecticEuler) Rotate(n *particle.Node, inertia, dt float64) {
	if inertia > 0 {
		n.AngularVelocity = kick(n.AngularVelocity, r3.Scale(1/inertia, n.TotalMoment), n.FixedRotation, dt)
	}
	spin(n, dt)
}

// kick adds acc*dt to the free components of v.
func kick(v, acc r3.Vec, fixed [3]bool, dt float64) r3.Vec {
	if !fixed[0] {
		v.X += acc.X * dt
	}
	if !fixed[1] {
		v.Y += acc.Y * dt
	}
	if !fixed[2] {
		v.Z += acc.Z * dt
	}
	return v
}

func drift(n *particle.Node, dt float64) {
	n.DeltaDisplacement = r3.Scale(dt, n.Velocity)
	n.Position = r3.Add(n.Position, n.DeltaDisplacement)
}

// spin turns the orientation by the angular velocity over dt.
func spin(n *particle.Node, dt float64) {
	n.DeltaRotation = r3.Scale(dt, n.AngularVelocity)
	q := quat.Mul(quat.Number(geom.OrientationFromRotation(n.DeltaRotation)), n.Orientation)
	if a := quat.Abs(q); a > 0 {
		q = quat.Scale(1/a, q)
	}
	n.Orientation = q
}
