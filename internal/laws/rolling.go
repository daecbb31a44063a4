package laws

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RollingInput describes one contact to a rolling friction law.
type RollingInput struct {
	NormalForce          float64
	ArmLength            float64
	Normal               r3.Vec
	AngularVelocity      r3.Vec
	OtherAngularVelocity r3.Vec
	Inertia              float64
	Dt                   float64
}

// RollingState is the particle state seen by DoFinalOperations.
type RollingState struct {
	AngularVelocity r3.Vec
	Inertia         float64
}

// RollingFrictionLaw corrects contact moments against rolling.
//
// Laws that need per-pair state declare RequiresRecloningForEachNeighbour
// and correct the moment contact by contact with ComputeRollingFriction.
// The others accumulate with ComputeRollingResistance and correct once per
// step in DoFinalOperations.
type RollingFrictionLaw interface {
	Name() string
	Clone() RollingFrictionLaw
	RequiresRecloningForEachNeighbour() bool
	InitializeSolutionStep()
	ComputeRollingResistance(in *RollingInput)
	ComputeRollingFriction(in *RollingInput, moment *r3.Vec)
	DoFinalOperations(state RollingState, dt float64, moment *r3.Vec)
}

// ConstantTorque opposes the relative rolling of each contact with a torque
// of magnitude mu_r*|Fn|*arm, never larger than what stops the rotation in
// one step.
type ConstantTorque struct {
	coefficient float64
}

func NewConstantTorque(coefficient float64) *ConstantTorque {
	return &ConstantTorque{coefficient: coefficient}
}

func (c *ConstantTorque) Name() string { return "constant_torque" }

func (c *ConstantTorque) Clone() RollingFrictionLaw {
	cp := *c
	return &cp
}

func (c *ConstantTorque) RequiresRecloningForEachNeighbour() bool { return true }

func (c *ConstantTorque) InitializeSolutionStep() {}

func (c *ConstantTorque) ComputeRollingResistance(*RollingInput) {}

func (c *ConstantTorque) ComputeRollingFriction(in *RollingInput, moment *r3.Vec) {
	rel := r3.Sub(in.AngularVelocity, in.OtherAngularVelocity)
	// spin about the normal is not rolling
	rel = r3.Sub(rel, r3.Scale(r3.Dot(rel, in.Normal), in.Normal))
	w := r3.Norm(rel)
	if w == 0 || c.coefficient == 0 {
		return
	}
	torque := c.coefficient * math.Abs(in.NormalForce) * in.ArmLength
	if in.Dt > 0 && in.Inertia > 0 {
		torque = math.Min(torque, in.Inertia*w/in.Dt)
	}
	*moment = r3.Sub(*moment, r3.Scale(torque/w, rel))
}

func (c *ConstantTorque) DoFinalOperations(RollingState, float64, *r3.Vec) {}

// Resistance accumulates the rolling resistance of all contacts and applies
// it once to the total moment.
type Resistance struct {
	coefficient float64
	resistance  float64
}

func NewResistance(coefficient float64) *Resistance {
	return &Resistance{coefficient: coefficient}
}

func (r *Resistance) Name() string { return "resistance" }

func (r *Resistance) Clone() RollingFrictionLaw {
	return &Resistance{coefficient: r.coefficient}
}

func (r *Resistance) RequiresRecloningForEachNeighbour() bool { return false }

func (r *Resistance) InitializeSolutionStep() { r.resistance = 0 }

// Accumulated returns the resistance gathered this step.
func (r *Resistance) Accumulated() float64 { return r.resistance }

func (r *Resistance) ComputeRollingResistance(in *RollingInput) {
	r.resistance += r.coefficient * math.Abs(in.NormalForce) * in.ArmLength
}

func (r *Resistance) ComputeRollingFriction(in *RollingInput, moment *r3.Vec) {}

func (r *Resistance) DoFinalOperations(state RollingState, dt float64, moment *r3.Vec) {
	if r.resistance <= 0 || r3.Norm(state.AngularVelocity) == 0 || dt <= 0 {
		return
	}
	// moment that would stop the particle within one step
	stop := r3.Add(r3.Scale(state.Inertia/dt, state.AngularVelocity), *moment)
	mag := r3.Norm(stop)
	if mag > r.resistance {
		*moment = r3.Sub(*moment, r3.Scale(r.resistance/mag, stop))
		return
	}
	*moment = r3.Scale(-state.Inertia/dt, state.AngularVelocity)
}
