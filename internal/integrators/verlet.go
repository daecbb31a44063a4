package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/particle"
)

// VelocityVerlet completes the velocity of the previous step with the
// average of the old and new accelerations, then advances the position to
// second order. Each particle needs its own instance.
type VelocityVerlet struct {
	prevAcc    r3.Vec
	prevAngAcc r3.Vec
	started    bool
	spinning   bool
}

func NewVelocityVerlet() *VelocityVerlet {
	return &VelocityVerlet{}
}

func (v *VelocityVerlet) Name() string { return "velocity_verlet" }

func (v *VelocityVerlet) Clone() particle.Scheme { return &VelocityVerlet{} }

func (v *VelocityVerlet) Move(n *particle.Node, mass, dt float64) {
	var acc r3.Vec
	if mass > 0 {
		acc = r3.Scale(1/mass, n.TotalForce)
	}
	if v.started {
		n.Velocity = kick(n.Velocity, r3.Scale(0.5, r3.Add(v.prevAcc, acc)), n.Fixed, dt)
	}
	half := kick(r3.Vec{}, r3.Scale(0.5*dt, acc), n.Fixed, dt)
	n.DeltaDisplacement = r3.Add(r3.Scale(dt, n.Velocity), half)
	n.Position = r3.Add(n.Position, n.DeltaDisplacement)
	v.prevAcc = acc
	v.started = true
}

func (v *VelocityVerlet) Rotate(n *particle.Node, inertia, dt float64) {
	var acc r3.Vec
	if inertia > 0 {
		acc = r3.Scale(1/inertia, n.TotalMoment)
	}
	if v.spinning {
		n.AngularVelocity = kick(n.AngularVelocity, r3.Scale(0.5, r3.Add(v.prevAngAcc, acc)), n.FixedRotation, dt)
	}
	v.prevAngAcc = acc
	v.spinning = true
	spin(n, dt)
}
