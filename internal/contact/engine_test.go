package contact_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/particle"
)

const (
	glassID   = 1
	steelID   = 2
	stiffness = 1e5
)

var linearLaw = laws.Params{Stiffness: stiffness, TangentialRatio: 0.5, Friction: 0.5, Restitution: 1}

type fixture struct {
	reg    *material.Registry
	model  *contact.Model
	engine *contact.Engine
	ctx    dynamo.StepContext
}

func newFixture() *fixture {
	reg := material.NewRegistry()
	Expect(reg.AddMaterial(material.Material{ID: glassID, Name: "glass", Young: 1e7, Poisson: 0.25, Density: 1000})).To(Succeed())
	Expect(reg.AddMaterial(material.Material{ID: steelID, Name: "steel", Young: 2e11, Poisson: 0.3, Density: 7800})).To(Succeed())
	Expect(reg.SetPair(glassID, glassID, material.PairProperties{ForceLaw: "linear", Law: linearLaw})).To(Succeed())
	Expect(reg.SetPair(glassID, steelID, material.PairProperties{ForceLaw: "linear", Law: linearLaw})).To(Succeed())

	ctx := dynamo.DefaultStepContext()
	ctx.Gravity = r3.Vec{}
	ctx.Options = dynamo.Options{DebugChecks: true}

	model := contact.NewModel()
	return &fixture{reg: reg, model: model, engine: contact.NewEngine(model, reg), ctx: ctx}
}

func (f *fixture) sphere(id int, pos r3.Vec) *particle.Particle {
	m, ok := f.reg.Material(glassID)
	Expect(ok).To(BeTrue())
	p := particle.New(id, 0.1, m, pos)
	Expect(f.model.AddParticle(p)).To(Succeed())
	return p
}

// pair places two spheres of radius 0.1 a distance d apart along x and
// makes them neighbours of each other.
func (f *fixture) pair(d float64) (*particle.Particle, *particle.Particle) {
	a := f.sphere(1, r3.Vec{})
	b := f.sphere(2, r3.Vec{X: d})
	a.SetNeighbours([]int{2})
	b.SetNeighbours([]int{1})
	return a, b
}

// plate is a 2x2 steel square in the z=0 plane centred on the origin.
func (f *fixture) plate(id int) *boundary.Wall {
	m, ok := f.reg.Material(steelID)
	Expect(ok).To(BeTrue())
	w, err := boundary.NewWall(id, m,
		boundary.NewNode(0, r3.Vec{X: -1, Y: -1}),
		boundary.NewNode(1, r3.Vec{X: 1, Y: -1}),
		boundary.NewNode(2, r3.Vec{X: 1, Y: 1}),
		boundary.NewNode(3, r3.Vec{X: -1, Y: 1}),
	)
	Expect(err).NotTo(HaveOccurred())
	for _, n := range w.Nodes {
		f.model.AddNode(n)
	}
	Expect(f.model.AddWall(w)).To(Succeed())
	return w
}

func onPlate(p *particle.Particle, wallID int) {
	p.SetWalls([]particle.WallSlot{{ID: wallID, Weights: [4]float64{0.25, 0.25, 0.25, 0.25}}})
}

func (f *fixture) initialize() {
	for _, p := range f.model.Particles {
		Expect(f.engine.InitializeParticle(p, &f.ctx)).To(Succeed())
	}
}

func (f *fixture) step() error {
	f.engine.InitializeStep(&f.ctx)
	return f.engine.ComputeForces(&f.ctx)
}

func expectVec(got, want r3.Vec, tol float64) {
	ExpectWithOffset(1, got.X).To(BeNumerically("~", want.X, tol))
	ExpectWithOffset(1, got.Y).To(BeNumerically("~", want.Y, tol))
	ExpectWithOffset(1, got.Z).To(BeNumerically("~", want.Z, tol))
}

// glue is a scheme that keeps a particle on a wall.
type glue struct{ wall int }

func (g glue) Name() string { return "glued_to_wall" }

func (g glue) Clone() particle.Scheme { return g }

func (g glue) Move(*particle.Node, float64, float64) {}

func (g glue) Rotate(*particle.Node, float64, float64) {}

func (g glue) FollowedWall() int { return g.wall }

var _ = Describe("Engine", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("ball to ball contact", func() {
		It("pushes overlapping spheres apart along the centre line", func() {
			a, b := f.pair(0.19)
			f.initialize()
			Expect(f.step()).To(Succeed())

			expectVec(a.Node.TotalForce, r3.Vec{X: -stiffness * 0.01}, 1e-6)
			expectVec(b.Node.TotalForce, r3.Vec{X: stiffness * 0.01}, 1e-6)
			Expect(a.Node.ElasticForce).To(Equal(a.Node.ContactForce))
			Expect(a.Node.RigidElementForce).To(Equal(r3.Vec{}))
		})

		It("applies no force at zero indentation", func() {
			a, b := f.pair(0.2)
			f.initialize()
			Expect(f.step()).To(Succeed())

			Expect(a.Node.TotalForce).To(Equal(r3.Vec{}))
			Expect(b.Node.TotalForce).To(Equal(r3.Vec{}))
			Expect(a.History.Neighbours[0].Elastic).To(Equal(r3.Vec{}))
		})

		It("grows monotonically with the overlap", func() {
			last := 0.0
			for _, d := range []float64{0.199, 0.195, 0.19, 0.18} {
				f = newFixture()
				a, _ := f.pair(d)
				f.initialize()
				Expect(f.step()).To(Succeed())
				got := math.Abs(a.Node.TotalForce.X)
				Expect(got).To(BeNumerically(">", last))
				last = got
			}
		})

		It("carries the tangential history when the frame does not rotate", func() {
			a, b := f.pair(0.19)
			f.initialize()
			a.Node.DeltaDisplacement = r3.Vec{Y: 1e-4}
			Expect(f.step()).To(Succeed())

			// kt * |delta t| with kt = 0.5 * kn
			expectVec(a.Node.ElasticForce, r3.Vec{X: -1000, Y: -5}, 1e-6)
			expectVec(b.Node.ElasticForce, r3.Vec{X: 1000, Y: 5}, 1e-6)
			expectVec(a.History.Neighbours[0].Elastic, r3.Vec{X: -1000, Y: -5}, 1e-6)

			a.Node.DeltaDisplacement = r3.Vec{}
			f.ctx = f.ctx.Advance()
			Expect(f.step()).To(Succeed())
			expectVec(a.Node.ElasticForce, r3.Vec{X: -1000, Y: -5}, 1e-6)
		})

		It("keeps pure spin out of the normal relative velocity while the pair shifts", func() {
			damped := linearLaw
			damped.Restitution = 0.5
			Expect(f.reg.SetPair(glassID, glassID, material.PairProperties{ForceLaw: "linear", Law: damped})).To(Succeed())
			f.ctx.Options.Rotation = true
			a, b := f.pair(0.19)
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{Z: 10}
			b.Node.DeltaDisplacement = r3.Vec{Y: 0.1}
			Expect(f.step()).To(Succeed())

			// any normal relative velocity would add a viscous term to kn * 0.01
			Expect(a.Node.TotalForce.X).To(BeNumerically("~", -1000, 1e-6))
			Expect(b.Node.TotalForce.X).To(BeNumerically("~", 1000, 1e-6))
		})

		It("adds the rotation of the contact arm to the tangential displacement", func() {
			f.ctx.Options.Rotation = true
			a, b := f.pair(0.19)
			f.initialize()
			const angle = 1e-3
			a.Node.DeltaRotation = r3.Vec{Z: angle}
			Expect(f.step()).To(Succeed())

			// arm 0.095 turned by angle moves the contact point 0.095*sin(angle) along y
			ft := 0.5 * stiffness * 0.095 * math.Sin(angle)
			expectVec(a.Node.ElasticForce, r3.Vec{X: -1000, Y: -ft}, 1e-5)
			expectVec(b.Node.ElasticForce, r3.Vec{X: 1000, Y: ft}, 1e-5)
			Expect(a.Node.TotalMoment.Z).To(BeNumerically("~", -0.095*ft, 1e-6))
		})

		It("adds the spin of both bodies to the tangential relative velocity", func() {
			damped := linearLaw
			damped.Restitution = 0.5
			Expect(f.reg.SetPair(glassID, glassID, material.PairProperties{ForceLaw: "linear", Law: damped})).To(Succeed())
			f.ctx.Options.Rotation = true
			a, b := f.pair(0.19)
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{Z: 10}
			b.Node.AngularVelocity = r3.Vec{Z: 10}
			Expect(f.step()).To(Succeed())

			// equal spins move the contact point of each body in opposite
			// directions: 0.95 - (-0.95) along y for a
			Expect(a.Node.ElasticForce.Y).To(BeZero())
			Expect(a.Node.TotalForce.Y).To(BeNumerically("<", 0))
			Expect(b.Node.TotalForce.Y).To(BeNumerically("~", -a.Node.TotalForce.Y, 1e-9))
			Expect(a.Node.TotalForce.X).To(BeNumerically("~", -1000, 1e-6))
		})

		It("skips removed and unknown neighbours", func() {
			a, _ := f.pair(0.19)
			a.SetNeighbours([]int{particle.NoNeighbour, 2, 99})
			f.initialize()
			Expect(f.step()).To(Succeed())
			expectVec(a.Node.TotalForce, r3.Vec{X: -1000}, 1e-6)
		})

		It("skips a freshly injected particle against its injector", func() {
			a, b := f.pair(0.19)
			a.Set(particle.NewEntity, true)
			b.Set(particle.Blocked, true)
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(a.Node.TotalForce).To(Equal(r3.Vec{}))
			Expect(b.Node.TotalForce).To(Equal(r3.Vec{}))
		})

		It("ignores members of the same cluster and their body forces", func() {
			a, b := f.pair(0.19)
			for _, p := range []*particle.Particle{a, b} {
				p.Set(particle.BelongsToCluster, true)
				p.Cluster = 3
			}
			f.ctx.Gravity = r3.Vec{Z: -9.81}
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(a.Node.TotalForce).To(Equal(r3.Vec{}))
		})

		It("finds contacts across periodic boundaries", func() {
			f.ctx.Periodic = true
			f.ctx.DomainMax = r3.Vec{X: 1, Y: 1, Z: 1}
			a := f.sphere(1, r3.Vec{X: 0.05, Y: 0.5, Z: 0.5})
			b := f.sphere(2, r3.Vec{X: 0.86, Y: 0.5, Z: 0.5})
			a.SetNeighbours([]int{2})
			b.SetNeighbours([]int{1})
			f.initialize()
			Expect(f.step()).To(Succeed())

			expectVec(a.Node.TotalForce, r3.Vec{X: 1000}, 1e-6)
			expectVec(b.Node.TotalForce, r3.Vec{X: -1000}, 1e-6)
			Expect(f.engine.MaxBallToBallIndentation(a, &f.ctx)).To(BeNumerically("~", 0.01, 1e-12))
		})

		It("removes the initial overlap when asked to", func() {
			f.ctx.Options.CleanInitialIndentation = true
			a, b := f.pair(0.19)
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(a.Node.TotalForce).To(Equal(r3.Vec{}))

			b.Node.Position.X = 0.189
			f.ctx.Time = 10 * f.ctx.Dt
			Expect(f.step()).To(Succeed())
			expectVec(a.Node.TotalForce, r3.Vec{X: -100}, 1e-6)
		})

		It("reports the maximum indentation", func() {
			a := f.sphere(1, r3.Vec{})
			Expect(f.engine.MaxBallToBallIndentation(a, &f.ctx)).To(Equal(-math.MaxFloat64))

			f.sphere(2, r3.Vec{X: 0.19})
			f.sphere(3, r3.Vec{Y: 0.25})
			a.SetNeighbours([]int{3, 2})
			Expect(f.engine.MaxBallToBallIndentation(a, &f.ctx)).To(BeNumerically("~", 0.01, 1e-12))
		})

		It("tracks elastic energy and the largest normal force", func() {
			f.ctx.Options.EnergyCalculation = true
			a, _ := f.pair(0.19)
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(a.Energy.Elastic).To(BeNumerically("~", 5, 1e-9))
			Expect(a.Energy.MaxNormalForceTimesRadius).To(BeNumerically("~", 100, 1e-9))
		})
	})

	Describe("multi-stage evaluation", func() {
		run := func(multiStage bool) (*particle.Particle, *particle.Particle) {
			f = newFixture()
			f.ctx.Options.Rotation = true
			f.ctx.Options.MultiStage = multiStage
			a, b := f.pair(0.19)
			f.initialize()
			a.Node.DeltaDisplacement = r3.Vec{Y: 1e-4}
			Expect(f.step()).To(Succeed())
			return a, b
		}

		It("delivers equal and opposite forces", func() {
			a, b := run(true)
			expectVec(b.Node.TotalForce, r3.Scale(-1, a.Node.TotalForce), 1e-9)
			expectVec(b.Node.ElasticForce, r3.Scale(-1, a.Node.ElasticForce), 1e-9)
		})

		It("matches the single-stage forces and moments", func() {
			a1, b1 := run(false)
			a2, b2 := run(true)
			expectVec(a2.Node.TotalForce, a1.Node.TotalForce, 1e-9)
			expectVec(b2.Node.TotalForce, b1.Node.TotalForce, 1e-9)
			expectVec(a2.Node.TotalMoment, a1.Node.TotalMoment, 1e-9)
			expectVec(b2.Node.TotalMoment, b1.Node.TotalMoment, 1e-9)
			Expect(b2.Node.TotalMoment.Z).NotTo(BeZero())
		})

		It("leaves the history of the higher id untouched", func() {
			_, b := run(true)
			Expect(b.History.Neighbours[0].Elastic).To(Equal(r3.Vec{}))
		})
	})

	Describe("ball to wall contact", func() {
		var (
			p *particle.Particle
			w *boundary.Wall
		)

		BeforeEach(func() {
			w = f.plate(1)
			p = f.sphere(1, r3.Vec{Z: 0.099})
			onPlate(p, 1)
		})

		It("applies no force to a sphere touching the plate", func() {
			p.Node.Position.Z = 0.1
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(p.Node.TotalForce).To(Equal(r3.Vec{}))
			Expect(p.History.Walls[0].Elastic).To(Equal(r3.Vec{}))
		})

		It("pushes a penetrating sphere out along the normal", func() {
			f.initialize()
			Expect(f.step()).To(Succeed())
			expectVec(p.Node.TotalForce, r3.Vec{Z: 100}, 1e-6)
			expectVec(p.Node.RigidElementForce, r3.Vec{Z: -100}, 1e-6)
			expectVec(w.TotalContactForce(), r3.Vec{Z: -100}, 1e-6)
			Expect(f.engine.MaxBallToWallIndentation(p)).To(BeNumerically("~", 1e-3, 1e-12))
		})

		It("resists spin through friction", func() {
			f.ctx.Options.Rotation = true
			f.initialize()
			p.Node.AngularVelocity = r3.Vec{Y: 1}
			p.Node.DeltaRotation = r3.Vec{Y: 1e-3}
			Expect(f.step()).To(Succeed())
			Expect(p.Node.TotalForce.X).To(BeNumerically(">", 0))
			Expect(r3.Dot(p.Node.TotalMoment, p.Node.AngularVelocity)).To(BeNumerically("<", 0))
		})

		It("does not collide with the wall it is glued to", func() {
			p.SwapSchemeToGluedToWall(glue{wall: 1})
			f.initialize()
			Expect(f.step()).To(Succeed())
			Expect(p.Node.TotalForce).To(Equal(r3.Vec{}))
		})

		It("only counts crossings of a phantom wall", func() {
			w.Phantom = true
			f.initialize()
			Expect(f.step()).To(Succeed())
			p.Node.Position.Z = -0.05
			Expect(f.step()).To(Succeed())
			Expect(p.Node.TotalForce).To(Equal(r3.Vec{}))
			Expect(w.Crossings()).To(Equal(1))
		})

		It("deposits impact wear on the wall nodes", func() {
			wear := material.Wear{Compute: true, ImpactSeverity: 1, BrinellHardness: 1}
			Expect(f.reg.SetPair(glassID, steelID, material.PairProperties{ForceLaw: "linear", Law: linearLaw, Wear: wear})).To(Succeed())
			f.initialize()
			p.Node.Velocity = r3.Vec{Z: -1}
			Expect(f.step()).To(Succeed())

			var impact float64
			for _, n := range w.Nodes {
				_, i := n.Wear()
				impact += i
			}
			// density * radius * |vn| over the element area
			Expect(impact).To(BeNumerically("~", 25, 1e-9))
		})

		It("fails when wear is computed with zero hardness", func() {
			wear := material.Wear{Compute: true, Severity: 1}
			Expect(f.reg.SetPair(glassID, steelID, material.PairProperties{ForceLaw: "linear", Law: linearLaw, Wear: wear})).To(Succeed())
			f.initialize()

			err := f.step()
			Expect(err).To(MatchError(dynamo.ErrZeroHardness))
			Expect(dynamo.Fatal(err)).To(BeTrue())
			var stepErr *dynamo.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.ParticleID).To(Equal(1))
		})
	})

	Describe("point conditions", func() {
		It("act like a rigid point", func() {
			m, _ := f.reg.Material(steelID)
			pc := boundary.NewPointCondition(5, m, boundary.NewNode(0, r3.Vec{}))
			Expect(f.model.AddPointCondition(pc)).To(Succeed())
			p := f.sphere(1, r3.Vec{Z: 0.099})
			p.SetPointConditions([]int{5})
			f.initialize()

			Expect(f.step()).To(Succeed())
			expectVec(p.Node.TotalForce, r3.Vec{Z: 100}, 1e-6)
			expectVec(pc.ExternalForce(), r3.Vec{Z: -100}, 1e-6)
			expectVec(p.History.Points[0].Total, r3.Vec{Z: 100}, 1e-6)
		})

		It("subtract their initial offset from the indentation", func() {
			m, _ := f.reg.Material(steelID)
			pc := boundary.NewPointCondition(5, m, boundary.NewNode(0, r3.Vec{}))
			pc.InitialOffset = 0.0005
			Expect(f.model.AddPointCondition(pc)).To(Succeed())
			p := f.sphere(1, r3.Vec{Z: 0.099})
			p.SetPointConditions([]int{5})
			f.initialize()

			Expect(f.step()).To(Succeed())
			expectVec(p.Node.TotalForce, r3.Vec{Z: 50}, 1e-6)

			pc.InitialOffset = 0.002
			Expect(f.step()).To(Succeed())
			Expect(p.Node.TotalForce).To(Equal(r3.Vec{}))
		})
	})

	Describe("body forces", func() {
		It("adds gravity and the external force", func() {
			f.ctx.Gravity = r3.Vec{Z: -9.81}
			p := f.sphere(1, r3.Vec{})
			p.Node.ExternalForce = r3.Vec{X: 2}
			p.Node.ExternalMoment = r3.Vec{Y: 1}
			f.initialize()
			Expect(f.engine.CalculateRightHandSide(p, &f.ctx)).To(Succeed())
			expectVec(p.Node.TotalForce, r3.Vec{X: 2, Z: -9.81 * p.Mass}, 1e-12)
			Expect(p.Node.TotalMoment).To(Equal(r3.Vec{Y: 1}))
		})

		It("applies global damping to the totals", func() {
			f.ctx.Options.GlobalDamping = true
			f.engine.SetGlobalDamping(laws.NewViscous(2))
			p := f.sphere(1, r3.Vec{})
			f.initialize()
			p.Node.Velocity = r3.Vec{X: 1}
			Expect(f.step()).To(Succeed())
			Expect(p.GlobalDamping).NotTo(BeNil())
			expectVec(p.Node.TotalForce, r3.Vec{X: -2}, 1e-12)
		})

		It("rejects non-finite totals", func() {
			p := f.sphere(4, r3.Vec{})
			p.Node.ExternalForce = r3.Vec{X: math.NaN()}
			f.initialize()
			err := f.step()
			Expect(err).To(MatchError(dynamo.ErrNonFinite))
			var stepErr *dynamo.StepError
			Expect(errors.As(err, &stepErr)).To(BeTrue())
			Expect(stepErr.ParticleID).To(Equal(4))
		})
	})

	Describe("initialization", func() {
		It("gives every particle its own rolling friction law", func() {
			Expect(f.reg.SetPair(glassID, glassID, material.PairProperties{
				ForceLaw: "linear", RollingFriction: "constant_torque", Law: linearLaw,
			})).To(Succeed())
			f.ctx.Options.Rotation = true
			f.ctx.Options.RollingFriction = true
			a, b := f.pair(0.19)
			f.initialize()

			Expect(a.Is(particle.HasRollingFriction)).To(BeTrue())
			Expect(a.RollingFriction).NotTo(BeNil())
			Expect(a.RollingFriction).NotTo(BeIdenticalTo(b.RollingFriction))
			Expect(f.step()).To(Succeed())
		})

		It("leaves rolling friction off without a law for the material", func() {
			f.ctx.Options.Rotation = true
			f.ctx.Options.RollingFriction = true
			a, _ := f.pair(0.19)
			f.initialize()
			Expect(a.Is(particle.HasRollingFriction)).To(BeFalse())
		})
	})

	Describe("rolling friction", func() {
		withRolling := func(law string) {
			params := linearLaw
			params.RollingFriction = 0.01
			Expect(f.reg.SetPair(glassID, glassID, material.PairProperties{
				ForceLaw: "linear", RollingFriction: law, Law: params,
			})).To(Succeed())
			f.ctx.Options.Rotation = true
			f.ctx.Options.RollingFriction = true
		}

		// mu_r * |Fn| * arm for one contact of the 0.19 pair
		const torque = 0.01 * 1000 * 0.095

		It("opposes the relative rolling of each contact with constant_torque", func() {
			withRolling("constant_torque")
			a, b := f.pair(0.19)
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{Y: 1}
			Expect(f.step()).To(Succeed())

			expectVec(a.Node.TotalMoment, r3.Vec{Y: -torque}, 1e-9)
			expectVec(b.Node.TotalMoment, r3.Vec{Y: torque}, 1e-9)
		})

		It("ignores spin about the contact normal with constant_torque", func() {
			withRolling("constant_torque")
			a, _ := f.pair(0.19)
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{X: 1}
			Expect(f.step()).To(Succeed())
			expectVec(a.Node.TotalMoment, r3.Vec{}, 1e-9)
		})

		It("applies the accumulated resistance once per step", func() {
			withRolling("resistance")
			a := f.sphere(1, r3.Vec{})
			f.sphere(2, r3.Vec{X: 0.19})
			f.sphere(3, r3.Vec{X: -0.19})
			a.SetNeighbours([]int{2, 3})
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{Y: 1}
			Expect(f.step()).To(Succeed())

			r, ok := a.RollingFriction.(*laws.Resistance)
			Expect(ok).To(BeTrue())
			Expect(r.Accumulated()).To(BeNumerically("~", 2*torque, 1e-9))
			expectVec(a.Node.TotalMoment, r3.Vec{Y: -2 * torque}, 1e-9)

			Expect(f.step()).To(Succeed())
			Expect(r.Accumulated()).To(BeNumerically("~", 2*torque, 1e-9))
			expectVec(a.Node.TotalMoment, r3.Vec{Y: -2 * torque}, 1e-9)
		})

		It("never reverses the rotation with resistance", func() {
			withRolling("resistance")
			a, _ := f.pair(0.19)
			f.initialize()
			a.Node.AngularVelocity = r3.Vec{Y: 1e-4}
			Expect(f.step()).To(Succeed())

			// the moment that stops the particle in one step is below mu_r*|Fn|*arm
			stop := a.Inertia / f.ctx.Dt * 1e-4
			Expect(stop).To(BeNumerically("<", torque))
			expectVec(a.Node.TotalMoment, r3.Vec{Y: -stop}, 1e-9)
		})
	})

	Describe("step finalization", func() {
		It("clamps the representative volume to the sphere volume", func() {
			p := f.sphere(1, r3.Vec{})
			f.initialize()
			Expect(f.step()).To(Succeed())
			f.engine.FinalizeStep(&f.ctx)
			Expect(p.RepresentativeVolume).To(Equal(p.Volume()))
		})

		It("computes the reactions of fixed DOFs", func() {
			f.ctx.Gravity = r3.Vec{Z: -9.81}
			p := f.sphere(1, r3.Vec{})
			p.Node.Fixed[2] = true
			f.initialize()
			Expect(f.step()).To(Succeed())
			f.engine.FinalizeSolutionStep(p, &f.ctx)
			Expect(p.Node.Reaction.Z).To(BeNumerically("~", 9.81*p.Mass, 1e-12))
		})

		It("averages the contact stress over the representative volume", func() {
			f.ctx.Options.StressTensor = true
			a, _ := f.pair(0.19)
			f.initialize()
			Expect(f.step()).To(Succeed())
			f.engine.FinalizeStep(&f.ctx)

			// branch vector 0.095 along x times the force -1000 along x
			Expect(a.StressTensor.At(0, 0)).To(BeNumerically("~", -95/a.Volume(), 1e-6))
			Expect(a.SymmStressTensor.At(0, 0)).To(Equal(a.StressTensor.At(0, 0)))
			Expect(a.StressTensor.At(0, 1)).To(BeNumerically("~", 0, 1e-12))
		})

		It("fits the strain increment of an affine displacement field", func() {
			f.ctx.Options.StressTensor = true
			p := f.sphere(1, r3.Vec{})
			f.sphere(2, r3.Vec{X: 1}).Node.DeltaDisplacement = r3.Vec{X: 0.01}
			f.sphere(3, r3.Vec{Y: 1})
			f.sphere(4, r3.Vec{Z: 1})
			p.SetNeighbours([]int{2, 3, 4})
			f.initialize()
			Expect(f.step()).To(Succeed())
			f.engine.FinalizeSolutionStep(p, &f.ctx)

			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					want := 0.0
					if i == 0 && j == 0 {
						want = 0.01
					}
					Expect(p.StrainTensor.At(i, j)).To(BeNumerically("~", want, 1e-9))
				}
			}
		})

		It("keeps the strain unchanged with too few neighbours", func() {
			f.ctx.Options.StressTensor = true
			p := f.sphere(1, r3.Vec{})
			f.sphere(2, r3.Vec{X: 1}).Node.DeltaDisplacement = r3.Vec{X: 0.01}
			p.SetNeighbours([]int{2})
			f.initialize()
			Expect(f.step()).To(Succeed())
			f.engine.FinalizeSolutionStep(p, &f.ctx)
			Expect(p.DifferentialStrainTensor.At(0, 0)).To(BeZero())
			Expect(p.StrainTensor.At(0, 0)).To(BeZero())
		})
	})
})
