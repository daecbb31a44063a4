package contact

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/particle"
)

// ballContact is the geometry of one particle pair for the current step.
type ballContact struct {
	other       *particle.Particle
	otherPos    r3.Vec
	otherToMe   r3.Vec
	distance    float64
	radiusSum   float64
	indentation float64

	frame    geom.Frame
	oldFrame geom.Frame
	relVel   r3.Vec
	delta    r3.Vec
}

// skipPair reports pairs that must not interact this step.
func skipPair(p, other *particle.Particle, multiStage bool) bool {
	if p.Is(particle.NewEntity) && other.Is(particle.Blocked) {
		return true
	}
	if p.Is(particle.Blocked) && other.Is(particle.NewEntity) {
		return true
	}
	if multiStage && p.ID > other.ID {
		return true
	}
	return p.Is(particle.BelongsToCluster) && other.Is(particle.BelongsToCluster) && p.Cluster == other.Cluster
}

func (e *Engine) image(ctx *dynamo.StepContext, my, other r3.Vec) r3.Vec {
	if !ctx.Periodic {
		return other
	}
	return geom.ClosestPeriodicImage(my, other, ctx.DomainMin, ctx.DomainMax)
}

// relativePositions fills the pair geometry and reports whether the bodies
// overlap once the initial baseline is removed.
func (e *Engine) relativePositions(p *particle.Particle, ctx *dynamo.StepContext, c *ballContact) bool {
	c.otherPos = e.image(ctx, p.Node.Position, c.other.Node.Position)
	c.otherToMe = r3.Sub(p.Node.Position, c.otherPos)
	c.distance = r3.Norm(c.otherToMe)
	if c.distance < geom.Epsilon {
		e.log.Debug(dynamo.ErrCoincidentBodies.Error(), slog.Int("particle", p.ID), slog.Int("other", c.other.ID))
		return false
	}
	c.radiusSum = p.Radius + c.other.Radius
	c.indentation = c.radiusSum - c.distance

	if ctx.Options.CleanInitialIndentation {
		if ctx.Time < 2*ctx.Dt && c.indentation > 0 {
			p.History.SetNeighbourBaseline(c.other.ID, c.indentation)
		}
		if b, ok := p.History.NeighbourBaseline(c.other.ID); ok {
			c.indentation -= b
		}
	}
	return c.indentation > 0
}

// deltaDisplacement builds the current and previous frames and the relative
// motion of the pair, including the rotational contribution.
func (e *Engine) deltaDisplacement(p *particle.Particle, ctx *dynamo.StepContext, c *ballContact) {
	n, o := &p.Node, &c.other.Node
	c.frame = geom.NewContactFrame(c.otherToMe)

	oldMe := n.PreviousPosition()
	oldOther := e.image(ctx, oldMe, o.PreviousPosition())
	c.oldFrame = geom.NewContactFrame(r3.Sub(oldMe, oldOther))

	c.relVel = r3.Sub(n.Velocity, o.Velocity)
	c.delta = r3.Sub(n.DeltaDisplacement, o.DeltaDisplacement)

	if !p.Is(particle.HasRotation) {
		return
	}
	raw := c.radiusSum - c.distance
	myLen, otherLen := armLengths(p, c.other, raw)
	normal := c.frame.Normal()
	myArm := r3.Scale(-myLen, normal)
	otherArm := r3.Scale(otherLen, normal)

	c.relVel = r3.Add(c.relVel, r3.Sub(r3.Cross(n.AngularVelocity, myArm), r3.Cross(o.AngularVelocity, otherArm)))

	myNew := geom.OrientationFromRotation(n.DeltaRotation).Rotate(myArm)
	otherNew := geom.OrientationFromRotation(o.DeltaRotation).Rotate(otherArm)
	c.delta = r3.Add(c.delta, r3.Add(r3.Sub(myNew, otherNew), r3.Sub(otherArm, myArm)))
}

// armLengths splits the overlap between the two bodies in proportion to
// the compliance of each.
func armLengths(p, other *particle.Particle, indentation float64) (mine, theirs float64) {
	ym, yo := p.Young(), other.Young()
	return p.Radius - indentation*yo/(ym+yo), other.Radius - indentation*ym/(ym+yo)
}

func (e *Engine) ballToBall(p *particle.Particle, ctx *dynamo.StepContext, acc *accumulator) error {
	multiStage := ctx.Options.MultiStage
	for i, id := range p.Neighbours {
		if id == particle.NoNeighbour {
			continue
		}
		other, ok := e.model.Particle(id)
		if !ok {
			continue
		}
		hist := &p.History.Neighbours[i]
		if skipPair(p, other, multiStage) {
			continue
		}

		c := ballContact{other: other}
		if !e.relativePositions(p, ctx, &c) {
			*hist = particle.ContactHistory{}
			continue
		}
		e.deltaDisplacement(p, ctx, &c)

		law, err := e.materials.CloneForceLaw(p.Material.ID, other.Material.ID)
		if err != nil {
			return err
		}
		old := geom.RotateOldForce(&c.oldFrame, &c.frame, hist.Elastic)
		in := laws.Input{
			OldLocalElasticForce:   c.frame.ToLocal(old),
			LocalDeltaDisplacement: c.frame.ToLocal(c.delta),
			LocalRelativeVelocity:  c.frame.ToLocal(c.relVel),
			Indentation:            c.indentation,
			Dt:                     ctx.Dt,
			Pair: laws.Pair{
				RadiusA:  p.Radius,
				RadiusB:  other.Radius,
				MassA:    p.Mass,
				MassB:    other.Mass,
				YoungA:   p.Young(),
				YoungB:   other.Young(),
				PoissonA: p.Material.Poisson,
				PoissonB: other.Material.Poisson,
			},
		}
		in.PreviousIndentation = c.indentation + in.LocalDeltaDisplacement.Z

		var out laws.Output
		if err := law.CalculateForces(&in, &out); err != nil {
			return err
		}

		local, global, globalElastic := addUp(&c.frame, &out)
		hist.Elastic = globalElastic
		hist.ElasticExtra = r3.Vec{}
		acc.elastic = r3.Add(acc.elastic, globalElastic)
		acc.contact = r3.Add(acc.contact, global)

		normal := c.frame.Normal()
		myLen, otherLen := armLengths(p, other, c.indentation)
		if p.Is(particle.HasRotation) {
			arm := r3.Scale(-myLen, normal)
			acc.moment = r3.Add(acc.moment, r3.Cross(arm, global))
			if p.Is(particle.HasRollingFriction) && !multiStage && p.RollingFriction != nil {
				rin := laws.RollingInput{
					NormalForce:          local.Z,
					ArmLength:            myLen,
					Normal:               normal,
					AngularVelocity:      p.Node.AngularVelocity,
					OtherAngularVelocity: other.Node.AngularVelocity,
					Inertia:              p.Inertia,
					Dt:                   ctx.Dt,
				}
				if err := e.rollingFriction(p, other.Material.ID, &rin, &acc.moment); err != nil {
					return err
				}
			}
		}

		gap := c.distance - c.radiusSum
		if p.Is(particle.HasStressTensor) {
			addStress(p.StressTensor, r3.Scale(-(p.Radius+0.5*gap), normal), global)
		}

		if ctx.Options.EnergyCalculation {
			e.addEnergy(p, &in, &out, ctx.Dt)
			if f := p.Radius * local.Z; f > p.Energy.MaxNormalForceTimesRadius {
				p.Energy.MaxNormalForceTimesRadius = f
			}
		}

		if multiStage {
			target, _ := e.model.Index(other.ID)
			t := transfer{
				target:  target,
				force:   r3.Scale(-1, global),
				elastic: r3.Scale(-1, globalElastic),
			}
			if other.Is(particle.HasRotation) {
				t.moment = r3.Cross(r3.Scale(otherLen, normal), t.force)
			}
			if other.Is(particle.HasStressTensor) {
				t.arm = r3.Scale(other.Radius+0.5*gap, normal)
				t.stress = true
			}
			acc.transfers = append(acc.transfers, t)
		}
	}
	return nil
}

// rollingFriction dispatches to a fresh pair law or to the particle's own
// accumulating law.
func (e *Engine) rollingFriction(p *particle.Particle, otherMaterial int, in *laws.RollingInput, moment *r3.Vec) error {
	if !p.RollingFriction.RequiresRecloningForEachNeighbour() {
		p.RollingFriction.ComputeRollingResistance(in)
		return nil
	}
	rf, err := e.materials.CloneRollingFriction(p.Material.ID, otherMaterial)
	if err != nil {
		return err
	}
	if rf != nil {
		rf.ComputeRollingFriction(in, moment)
	}
	return nil
}

func (e *Engine) addEnergy(p *particle.Particle, in *laws.Input, out *laws.Output, dt float64) {
	if in.Indentation > 0 {
		p.Energy.Elastic += 0.5 * out.LocalElasticForce.Z * in.Indentation
	}
	p.Energy.ViscodampingDissipated += math.Abs(r3.Dot(out.ViscousForce, in.LocalRelativeVelocity)) * dt
	if out.Sliding {
		ft := math.Hypot(out.LocalElasticForce.X, out.LocalElasticForce.Y)
		p.Energy.FrictionalDissipated += ft * math.Hypot(in.LocalDeltaDisplacement.X, in.LocalDeltaDisplacement.Y)
	}
}

// MaxBallToBallIndentation is the largest overlap of p with any neighbour,
// negative when none overlap and -MaxFloat64 with no neighbours.
func (e *Engine) MaxBallToBallIndentation(p *particle.Particle, ctx *dynamo.StepContext) float64 {
	maxIndentation := -math.MaxFloat64
	for _, id := range p.Neighbours {
		if id == particle.NoNeighbour {
			continue
		}
		other, ok := e.model.Particle(id)
		if !ok {
			continue
		}
		pos := e.image(ctx, p.Node.Position, other.Node.Position)
		d := r3.Norm(r3.Sub(p.Node.Position, pos))
		if ind := p.Radius + other.Radius - d; ind > maxIndentation {
			maxIndentation = ind
		}
	}
	return maxIndentation
}
