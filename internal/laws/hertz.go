package laws

import (
	"fmt"
	"math"

	"github.com/san-kum/demcontact/internal/dynamo"
)

// Hertz is the Hertz-Mindlin law with viscous damping, Coulomb friction and
// optional DMT cohesion.
type Hertz struct {
	params Params
}

func NewHertz(p Params) *Hertz {
	return &Hertz{params: p}
}

func (h *Hertz) Name() string { return "hertz" }

func (h *Hertz) Clone() ForceLaw {
	c := *h
	return &c
}

func (h *Hertz) CalculateForces(in *Input, out *Output) error {
	*out = Output{}
	if in.Indentation <= 0 {
		return nil
	}

	p := in.Pair
	e, g := p.EffectiveYoung(), p.EffectiveShear()
	r, m := p.EffectiveRadius(), p.EffectiveMass()
	if !(e > 0) || !(g > 0) || !(r > 0) || !(m > 0) {
		return fmt.Errorf("%w: hertz law with E*=%g, G*=%g, R*=%g, m*=%g", dynamo.ErrDegenerateMaterial, e, g, r, m)
	}

	a := math.Sqrt(r * in.Indentation)
	kn := 2 * e * a
	kt := 8 * g * a

	fn := 4.0 / 3.0 * e * a * in.Indentation
	fx, fy, sliding := tangential(in.OldLocalElasticForce, in.LocalDeltaDisplacement, kt, h.params.Friction*fn)
	out.LocalElasticForce.X = fx
	out.LocalElasticForce.Y = fy
	out.LocalElasticForce.Z = fn
	out.Sliding = sliding

	beta := dampingRatio(h.params.Restitution)
	const c = 1.8257418583505538 // 2*sqrt(5/6)
	cn := c * beta * math.Sqrt(m*kn)
	out.ViscousForce.Z = -cn * in.LocalRelativeVelocity.Z
	if !sliding {
		ct := c * beta * math.Sqrt(m*kt)
		out.ViscousForce.X = -ct * in.LocalRelativeVelocity.X
		out.ViscousForce.Y = -ct * in.LocalRelativeVelocity.Y
	}

	if h.params.SurfaceEnergy > 0 {
		out.CohesiveForce = 4 * math.Pi * h.params.SurfaceEnergy * r
	}
	return nil
}
