package laws

import (
	"fmt"
	"math"

	"github.com/san-kum/demcontact/internal/dynamo"
)

// Linear is a linear spring-dashpot with Coulomb friction.
type Linear struct {
	params Params
}

func NewLinear(p Params) *Linear {
	return &Linear{params: p}
}

func (l *Linear) Name() string { return "linear" }

func (l *Linear) Clone() ForceLaw {
	c := *l
	return &c
}

// Stiffnesses returns kn and kt for the pair.
func (l *Linear) Stiffnesses(p Pair) (kn, kt float64) {
	kn = l.params.Stiffness
	if kn == 0 {
		kn = p.EffectiveYoung() * p.EffectiveRadius()
	}
	ratio := l.params.TangentialRatio
	if ratio == 0 {
		nu := p.meanPoisson()
		ratio = 2 * (1 - nu) / (2 - nu)
	}
	return kn, ratio * kn
}

func (l *Linear) CalculateForces(in *Input, out *Output) error {
	*out = Output{}
	if in.Indentation <= 0 {
		return nil
	}

	kn, kt := l.Stiffnesses(in.Pair)
	m := in.Pair.EffectiveMass()
	if !(kn > 0) || !(m > 0) || math.IsInf(kn, 0) {
		return fmt.Errorf("%w: linear law with kn=%g, m*=%g", dynamo.ErrDegenerateMaterial, kn, m)
	}

	fn := kn * in.Indentation
	fx, fy, sliding := tangential(in.OldLocalElasticForce, in.LocalDeltaDisplacement, kt, l.params.Friction*fn)
	out.LocalElasticForce.X = fx
	out.LocalElasticForce.Y = fy
	out.LocalElasticForce.Z = fn
	out.Sliding = sliding

	zeta := dampingRatio(l.params.Restitution)
	cn := 2 * zeta * math.Sqrt(m*kn)
	out.ViscousForce.Z = -cn * in.LocalRelativeVelocity.Z
	if !sliding {
		ct := 2 * zeta * math.Sqrt(m*kt)
		out.ViscousForce.X = -ct * in.LocalRelativeVelocity.X
		out.ViscousForce.Y = -ct * in.LocalRelativeVelocity.Y
	}
	return nil
}
