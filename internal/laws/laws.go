// Package laws provides the pluggable contact laws evaluated per material
// pair: normal/tangential force laws, rolling friction and global damping.
//
// Laws are used through clones. A prototype lives in the material registry
// and every contact (or particle) works on its own copy, so a law may keep
// scratch state between the calls of one evaluation without locking.
//
// Local vectors follow the contact frame convention of package geom: Z is
// the normal, positive Z is compressive on the particle evaluating the
// contact.
package laws

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Params are the per-pair law coefficients.
type Params struct {
	// Stiffness is the linear normal stiffness. Zero derives it from the
	// elastic constants of the pair.
	Stiffness float64 `yaml:"stiffness"`
	// TangentialRatio is kt/kn. Zero derives it from the Poisson ratios.
	TangentialRatio float64 `yaml:"tangential_ratio"`
	Friction        float64 `yaml:"friction"`
	Restitution     float64 `yaml:"restitution"`
	// SurfaceEnergy enables DMT cohesion in the hertz law.
	SurfaceEnergy   float64 `yaml:"surface_energy"`
	RollingFriction float64 `yaml:"rolling_friction"`
}

// Pair holds the properties of the two bodies in contact. For walls,
// RadiusB and MassB are +Inf.
type Pair struct {
	RadiusA, RadiusB   float64
	MassA, MassB       float64
	YoungA, YoungB     float64
	PoissonA, PoissonB float64
}

// WallPair builds the pair of a particle against a rigid boundary.
func WallPair(radius, mass, young, poisson, wallYoung, wallPoisson float64) Pair {
	return Pair{
		RadiusA: radius, RadiusB: math.Inf(1),
		MassA: mass, MassB: math.Inf(1),
		YoungA: young, YoungB: wallYoung,
		PoissonA: poisson, PoissonB: wallPoisson,
	}
}

func harmonic(a, b float64) float64 {
	switch {
	case math.IsInf(b, 1):
		return a
	case math.IsInf(a, 1):
		return b
	}
	return a * b / (a + b)
}

func (p Pair) EffectiveRadius() float64 { return harmonic(p.RadiusA, p.RadiusB) }

func (p Pair) EffectiveMass() float64 { return harmonic(p.MassA, p.MassB) }

// EffectiveYoung is the contact modulus E*.
func (p Pair) EffectiveYoung() float64 {
	s := (1-p.PoissonA*p.PoissonA)/p.YoungA + (1-p.PoissonB*p.PoissonB)/p.YoungB
	if s == 0 {
		return 0
	}
	return 1 / s
}

// EffectiveShear is the contact shear modulus G*.
func (p Pair) EffectiveShear() float64 {
	s := 2*(2-p.PoissonA)*(1+p.PoissonA)/p.YoungA + 2*(2-p.PoissonB)*(1+p.PoissonB)/p.YoungB
	if s == 0 {
		return 0
	}
	return 1 / s
}

func (p Pair) meanPoisson() float64 { return 0.5 * (p.PoissonA + p.PoissonB) }

// Input is the local state of one contact.
type Input struct {
	OldLocalElasticForce   r3.Vec
	LocalDeltaDisplacement r3.Vec
	LocalRelativeVelocity  r3.Vec
	Indentation            float64
	PreviousIndentation    float64
	Dt                     float64
	Pair                   Pair
}

// Output is what a force law returns for one contact.
type Output struct {
	LocalElasticForce r3.Vec
	ViscousForce      r3.Vec
	// CohesiveForce is subtracted from the normal component.
	CohesiveForce float64
	Sliding       bool
}

// ForceLaw computes elastic, viscous and cohesive local forces.
type ForceLaw interface {
	Name() string
	Clone() ForceLaw
	CalculateForces(in *Input, out *Output) error
}

// dampingRatio maps a coefficient of restitution onto the critical
// damping ratio of a linear spring-dashpot.
func dampingRatio(restitution float64) float64 {
	switch {
	case restitution <= 0:
		return 1
	case restitution >= 1:
		return 0
	}
	l := math.Log(restitution)
	return -l / math.Sqrt(math.Pi*math.Pi+l*l)
}

// tangential updates the incremental tangential force and caps it at the
// Coulomb limit. It reports whether the contact slides.
func tangential(old r3.Vec, delta r3.Vec, kt, limit float64) (float64, float64, bool) {
	fx := old.X - kt*delta.X
	fy := old.Y - kt*delta.Y
	ft := math.Hypot(fx, fy)
	if ft > limit && ft > 0 {
		s := limit / ft
		return fx * s, fy * s, true
	}
	return fx, fy, false
}
