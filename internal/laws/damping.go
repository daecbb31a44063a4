package laws

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DampingInput is the particle state a global damping law acts on.
type DampingInput struct {
	Velocity        r3.Vec
	AngularVelocity r3.Vec
	// Fixed marks translational DOFs that must not be damped.
	Fixed [3]bool
}

// GlobalDampingLaw adjusts the final force and moment of a particle.
type GlobalDampingLaw interface {
	Name() string
	Clone() GlobalDampingLaw
	Apply(in DampingInput, force, moment *r3.Vec)
}

// NonViscous is the local non-viscous damping of Cundall: every component
// loses a fraction of its magnitude against the direction of motion.
type NonViscous struct {
	alpha float64
}

func NewNonViscous(alpha float64) *NonViscous { return &NonViscous{alpha: alpha} }

func (n *NonViscous) Name() string { return "non_viscous" }

func (n *NonViscous) Clone() GlobalDampingLaw {
	c := *n
	return &c
}

func (n *NonViscous) Apply(in DampingInput, force, moment *r3.Vec) {
	damp := func(f, v float64) float64 {
		if v == 0 {
			return f
		}
		return f - n.alpha*math.Abs(f)*math.Copysign(1, v)
	}
	if !in.Fixed[0] {
		force.X = damp(force.X, in.Velocity.X)
	}
	if !in.Fixed[1] {
		force.Y = damp(force.Y, in.Velocity.Y)
	}
	if !in.Fixed[2] {
		force.Z = damp(force.Z, in.Velocity.Z)
	}
	moment.X = damp(moment.X, in.AngularVelocity.X)
	moment.Y = damp(moment.Y, in.AngularVelocity.Y)
	moment.Z = damp(moment.Z, in.AngularVelocity.Z)
}

// Viscous subtracts a force proportional to velocity.
type Viscous struct {
	c float64
}

func NewViscous(c float64) *Viscous { return &Viscous{c: c} }

func (v *Viscous) Name() string { return "viscous" }

func (v *Viscous) Clone() GlobalDampingLaw {
	c := *v
	return &c
}

func (v *Viscous) Apply(in DampingInput, force, moment *r3.Vec) {
	if !in.Fixed[0] {
		force.X -= v.c * in.Velocity.X
	}
	if !in.Fixed[1] {
		force.Y -= v.c * in.Velocity.Y
	}
	if !in.Fixed[2] {
		force.Z -= v.c * in.Velocity.Z
	}
	*moment = r3.Sub(*moment, r3.Scale(v.c, in.AngularVelocity))
}
