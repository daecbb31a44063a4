package laws

import (
	"errors"
	"math"
	"testing"

	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/dynamo"
)

func glassPair() Pair {
	return Pair{
		RadiusA: 0.01, RadiusB: 0.01,
		MassA: 0.01, MassB: 0.01,
		YoungA: 1e7, YoungB: 1e7,
		PoissonA: 0.25, PoissonB: 0.25,
	}
}

func TestLinearNormalForce(t *testing.T) {
	g := NewWithT(t)
	law := NewLinear(Params{Stiffness: 1e5, Restitution: 1})

	var out Output
	err := law.CalculateForces(&Input{Indentation: 0.01, Pair: glassPair()}, &out)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out.LocalElasticForce.Z).To(BeNumerically("~", 1000, 1e-9))
	g.Expect(out.ViscousForce).To(Equal(r3.Vec{}))
	g.Expect(out.CohesiveForce).To(BeZero())
	g.Expect(out.Sliding).To(BeFalse())
}

func TestNoForceWithoutIndentation(t *testing.T) {
	g := NewWithT(t)
	in := Input{
		OldLocalElasticForce:  r3.Vec{X: 3, Z: 5},
		LocalRelativeVelocity: r3.Vec{X: 1, Z: -2},
		Pair:                  glassPair(),
	}
	for _, law := range []ForceLaw{
		NewLinear(Params{Stiffness: 1e5, Restitution: 0.5, Friction: 0.3}),
		NewHertz(Params{Restitution: 0.5, Friction: 0.3, SurfaceEnergy: 0.1}),
	} {
		for _, delta := range []float64{0, -1e-4} {
			in.Indentation = delta
			out := Output{CohesiveForce: 9}
			g.Expect(law.CalculateForces(&in, &out)).To(Succeed())
			g.Expect(out).To(Equal(Output{}), law.Name())
		}
	}
}

func TestElasticBranchMonotone(t *testing.T) {
	g := NewWithT(t)
	for _, law := range []ForceLaw{
		NewLinear(Params{Restitution: 0.7, Friction: 0.5}),
		NewHertz(Params{Restitution: 0.7, Friction: 0.5}),
	} {
		prev := 0.0
		for i := 1; i <= 50; i++ {
			in := Input{
				Indentation:           float64(i) * 1e-5,
				LocalRelativeVelocity: r3.Vec{Z: -0.1},
				Pair:                  glassPair(),
			}
			var out Output
			g.Expect(law.CalculateForces(&in, &out)).To(Succeed())
			f := r3.Norm(out.LocalElasticForce)
			g.Expect(f).To(BeNumerically(">", prev), law.Name())
			prev = f
		}
	}
}

func TestCoulombLimit(t *testing.T) {
	g := NewWithT(t)
	law := NewLinear(Params{Stiffness: 1e5, Friction: 0.5, Restitution: 0.5})

	var out Output
	in := Input{
		Indentation:            0.001,
		LocalDeltaDisplacement: r3.Vec{X: -1},
		LocalRelativeVelocity:  r3.Vec{X: -1},
		Pair:                   glassPair(),
	}
	g.Expect(law.CalculateForces(&in, &out)).To(Succeed())
	g.Expect(out.Sliding).To(BeTrue())
	g.Expect(math.Hypot(out.LocalElasticForce.X, out.LocalElasticForce.Y)).To(BeNumerically("~", 50, 1e-9))
	g.Expect(out.LocalElasticForce.X).To(BeNumerically(">", 0))
	g.Expect(out.ViscousForce.X).To(BeZero())
}

func TestTangentialHistoryCarried(t *testing.T) {
	g := NewWithT(t)
	law := NewLinear(Params{Stiffness: 1e5, TangentialRatio: 0.5, Friction: 10, Restitution: 1})

	var out Output
	in := Input{
		OldLocalElasticForce:   r3.Vec{Y: 2},
		LocalDeltaDisplacement: r3.Vec{Y: 1e-5},
		Indentation:            0.001,
		Pair:                   glassPair(),
	}
	g.Expect(law.CalculateForces(&in, &out)).To(Succeed())
	g.Expect(out.LocalElasticForce.Y).To(BeNumerically("~", 2-0.5e5*1e-5, 1e-12))
}

func TestDegenerateMaterial(t *testing.T) {
	g := NewWithT(t)
	p := glassPair()
	p.YoungA, p.YoungB = 0, 0

	for _, law := range []ForceLaw{NewLinear(Params{}), NewHertz(Params{})} {
		var out Output
		err := law.CalculateForces(&Input{Indentation: 1e-4, Pair: p}, &out)
		g.Expect(errors.Is(err, dynamo.ErrDegenerateMaterial)).To(BeTrue(), law.Name())
	}
}

func TestHertzCohesionAndWall(t *testing.T) {
	g := NewWithT(t)
	law := NewHertz(Params{Restitution: 0.5, SurfaceEnergy: 0.2})
	pair := WallPair(0.01, 0.01, 1e7, 0.25, 2e11, 0.3)

	g.Expect(pair.EffectiveRadius()).To(Equal(0.01))
	g.Expect(pair.EffectiveMass()).To(Equal(0.01))

	var out Output
	g.Expect(law.CalculateForces(&Input{Indentation: 1e-4, Pair: pair}, &out)).To(Succeed())
	g.Expect(out.CohesiveForce).To(BeNumerically("~", 4*math.Pi*0.2*0.01, 1e-12))
	g.Expect(out.LocalElasticForce.Z).To(BeNumerically(">", 0))
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewWithT(t)
	proto := NewResistance(0.1)
	a := proto.Clone()
	b := proto.Clone()
	a.ComputeRollingResistance(&RollingInput{NormalForce: 10, ArmLength: 0.01})

	g.Expect(a.(*Resistance).Accumulated()).To(BeNumerically("~", 0.01, 1e-15))
	g.Expect(b.(*Resistance).Accumulated()).To(BeZero())
	g.Expect(proto.Accumulated()).To(BeZero())

	f := NewLinear(Params{Stiffness: 1})
	g.Expect(f.Clone()).NotTo(BeIdenticalTo(f))
}

func TestConstantTorque(t *testing.T) {
	g := NewWithT(t)
	law := NewConstantTorque(0.1)
	g.Expect(law.RequiresRecloningForEachNeighbour()).To(BeTrue())

	var moment r3.Vec
	law.ComputeRollingFriction(&RollingInput{
		NormalForce:     10,
		ArmLength:       0.01,
		Normal:          r3.Vec{Z: 1},
		AngularVelocity: r3.Vec{X: 1},
		Inertia:         1,
		Dt:              1e-3,
	}, &moment)
	g.Expect(moment.X).To(BeNumerically("~", -0.01, 1e-15))
	g.Expect(moment.Y).To(BeZero())

	// spin about the normal is left alone
	moment = r3.Vec{}
	law.ComputeRollingFriction(&RollingInput{
		NormalForce: 10, ArmLength: 0.01, Normal: r3.Vec{Z: 1},
		AngularVelocity: r3.Vec{Z: 5}, Inertia: 1, Dt: 1e-3,
	}, &moment)
	g.Expect(moment).To(Equal(r3.Vec{}))
}

func TestResistanceFinalOperations(t *testing.T) {
	g := NewWithT(t)
	law := NewResistance(0.1)
	g.Expect(law.RequiresRecloningForEachNeighbour()).To(BeFalse())

	law.InitializeSolutionStep()
	in := RollingInput{NormalForce: 10, ArmLength: 0.01}
	law.ComputeRollingResistance(&in)
	law.ComputeRollingResistance(&in)

	var moment r3.Vec
	law.DoFinalOperations(RollingState{AngularVelocity: r3.Vec{Z: 1}, Inertia: 1}, 1e-3, &moment)
	g.Expect(moment.Z).To(BeNumerically("~", -0.02, 1e-12))

	moment = r3.Vec{}
	law.DoFinalOperations(RollingState{AngularVelocity: r3.Vec{Z: 1}, Inertia: 1e-6}, 1e-3, &moment)
	g.Expect(moment.Z).To(BeNumerically("~", -1e-3, 1e-15))

	law.InitializeSolutionStep()
	g.Expect(law.Accumulated()).To(BeZero())
}

func TestGlobalDamping(t *testing.T) {
	g := NewWithT(t)

	force, moment := r3.Vec{X: 10, Y: -4, Z: 2}, r3.Vec{X: 1}
	NewNonViscous(0.5).Apply(DampingInput{
		Velocity:        r3.Vec{X: 1, Y: 1},
		AngularVelocity: r3.Vec{X: -1},
	}, &force, &moment)
	g.Expect(force).To(Equal(r3.Vec{X: 5, Y: -6, Z: 2}))
	g.Expect(moment).To(Equal(r3.Vec{X: 1.5}))

	force, moment = r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}
	NewViscous(2).Apply(DampingInput{
		Velocity: r3.Vec{X: 1, Y: 1, Z: 1},
		Fixed:    [3]bool{false, true, false},
	}, &force, &moment)
	g.Expect(force).To(Equal(r3.Vec{X: -1, Y: 1, Z: -1}))
}

func TestFactories(t *testing.T) {
	g := NewWithT(t)

	g.Expect(ForceLawNames()).To(Equal([]string{"hertz", "linear"}))
	g.Expect(RollingFrictionNames()).To(Equal([]string{"constant_torque", "resistance"}))
	g.Expect(GlobalDampingNames()).To(Equal([]string{"non_viscous", "viscous"}))

	law, err := NewForceLaw("hertz", Params{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(law.Name()).To(Equal("hertz"))

	_, err = NewForceLaw("jkr", Params{})
	g.Expect(err).To(MatchError(ContainSubstring("unknown force law")))
	_, err = NewRollingFriction("nope", Params{})
	g.Expect(err).To(HaveOccurred())
	_, err = NewGlobalDamping("nope", 0)
	g.Expect(err).To(HaveOccurred())
}
