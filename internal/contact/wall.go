package contact

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/particle"
)

// wallContact is the outcome of one particle-boundary interaction.
type wallContact struct {
	frame       geom.Frame
	distance    float64
	indentation float64
	relVel      r3.Vec
	delta       r3.Vec
}

func (e *Engine) ballToWalls(p *particle.Particle, ctx *dynamo.StepContext, acc *accumulator) error {
	n := &p.Node
	glued, sticky := p.FollowedWall()

	for i, slot := range p.Walls {
		w, ok := e.model.Wall(slot.ID)
		if !ok {
			continue
		}
		if sticky && glued == w.ID {
			continue
		}
		if w.Phantom {
			w.CheckSide(p.ID, n.Position)
			continue
		}

		hist := &p.History.Walls[i]
		gc, typ := w.RelativeData(n.Position, p.Radius, slot.Weights)
		if typ == boundary.NoContact || !gc.Exists {
			*hist = particle.WallHistory{}
			continue
		}

		c := wallContact{frame: gc.Frame, distance: gc.Distance}
		c.indentation = p.Radius - gc.Distance - w.InitialOffset
		if ctx.Options.CleanInitialIndentation {
			if ctx.Time < 2*ctx.Dt && c.indentation > 0 {
				p.History.SetWallBaseline(w.ID, c.indentation)
			}
			if b, ok := p.History.WallBaseline(w.ID); ok {
				c.indentation -= b
			}
		}

		vel, delta := w.Kinematics(gc.Weights)
		c.relVel = r3.Sub(n.Velocity, vel)
		c.delta = r3.Sub(n.DeltaDisplacement, delta)
		if p.Is(particle.HasRotation) {
			arm := r3.Scale(-c.distance, c.frame.Normal())
			c.relVel = r3.Add(c.relVel, r3.Cross(n.AngularVelocity, arm))
			before := geom.OrientationFromRotation(r3.Scale(-1, n.DeltaRotation)).Rotate(arm)
			c.delta = r3.Add(c.delta, r3.Sub(arm, before))
		}

		pair, err := e.materials.Pair(p.Material.ID, w.Material.ID)
		if err != nil {
			return err
		}
		in, out, err := e.boundaryForces(p, w.Material, hist.Elastic, &c, ctx)
		if err != nil {
			return err
		}

		local, global, globalElastic := addUp(&c.frame, &out)
		hist.Elastic = globalElastic
		hist.Total = global
		acc.elastic = r3.Add(acc.elastic, globalElastic)
		acc.contact = r3.Add(acc.contact, global)
		acc.rigid = r3.Sub(acc.rigid, global)
		w.AddContactForce(gc.Weights, r3.Scale(-1, global))

		if p.Is(particle.HasRotation) {
			armLen := p.Radius - c.indentation
			acc.moment = r3.Add(acc.moment, r3.Cross(r3.Scale(-armLen, c.frame.Normal()), global))
			if p.Is(particle.HasRollingFriction) && !ctx.Options.MultiStage && p.RollingFriction != nil {
				rin := laws.RollingInput{
					NormalForce:     local.Z,
					ArmLength:       armLen,
					Normal:          c.frame.Normal(),
					AngularVelocity: n.AngularVelocity,
					Inertia:         p.Inertia,
					Dt:              ctx.Dt,
				}
				if err := e.rollingFriction(p, w.Material.ID, &rin, &acc.moment); err != nil {
					return err
				}
			}
		}

		if pair.Wear.Compute {
			if err := computeWear(p, w, &pair.Wear, in.LocalRelativeVelocity, out.LocalElasticForce.Z, out.Sliding, ctx.Dt); err != nil {
				return err
			}
		}

		if p.Is(particle.HasStressTensor) {
			e.addWallStress(p, &c, global)
		}
		if ctx.Options.EnergyCalculation {
			e.addEnergy(p, &in, &out, ctx.Dt)
		}
	}
	return nil
}

// boundaryForces calls the pair law when the particle penetrates the
// boundary. Without penetration the output stays zero so the stored
// history is cleared.
func (e *Engine) boundaryForces(p *particle.Particle, m *material.Material, history r3.Vec, c *wallContact, ctx *dynamo.StepContext) (laws.Input, laws.Output, error) {
	in := laws.Input{
		OldLocalElasticForce:   c.frame.ToLocal(history),
		LocalDeltaDisplacement: c.frame.ToLocal(c.delta),
		Indentation:            c.indentation,
		Dt:                     ctx.Dt,
		Pair:                   laws.WallPair(p.Radius, p.Mass, p.Young(), p.Material.Poisson, m.Young, m.Poisson),
	}
	in.PreviousIndentation = c.indentation + in.LocalDeltaDisplacement.Z
	var out laws.Output
	if c.indentation <= 0 {
		return in, out, nil
	}
	in.LocalRelativeVelocity = c.frame.ToLocal(c.relVel)
	law, err := e.materials.CloneForceLaw(p.Material.ID, m.ID)
	if err != nil {
		return in, out, err
	}
	err = law.CalculateForces(&in, &out)
	return in, out, err
}

func (e *Engine) addWallStress(p *particle.Particle, c *wallContact, global r3.Vec) {
	addStress(p.StressTensor, r3.Scale(-c.distance, c.frame.Normal()), global)
	// Contact area against walls is not tracked.
	const area = 0.0
	p.PartialRepresentativeVolume += c.distance * area / 3
}

// computeWear deposits the abrasive and impact wear of one contact on the
// wall nodes.
func computeWear(p *particle.Particle, w *boundary.Wall, wear *material.Wear, localRelVel r3.Vec, normalElastic float64, sliding bool, dt float64) error {
	if wear.BrinellHardness == 0 {
		return fmt.Errorf("%w: material pair %d-%d", dynamo.ErrZeroHardness, p.Material.ID, w.Material.ID)
	}
	h := wear.BrinellHardness
	impact := wear.ImpactSeverity / h * p.Material.Density * p.Radius * math.Abs(localRelVel.Z)
	var volume float64
	if sliding {
		slip := math.Hypot(localRelVel.X*dt, localRelVel.Y*dt)
		volume = wear.Severity / h * math.Abs(normalElastic) * slip
	}
	return w.DepositWear(p.Node.Position, volume, impact)
}

func (e *Engine) ballToPoints(p *particle.Particle, ctx *dynamo.StepContext, acc *accumulator) error {
	n := &p.Node
	for i, id := range p.PointConditions {
		pc, ok := e.model.Point(id)
		if !ok {
			continue
		}
		hist := &p.History.Points[i]
		toMe := r3.Sub(n.Position, pc.Center())
		dist := r3.Norm(toMe)
		if dist < geom.Epsilon {
			e.log.Debug(dynamo.ErrCoincidentBodies.Error(), slog.Int("particle", p.ID), slog.Int("point_condition", pc.ID))
			*hist = particle.WallHistory{}
			continue
		}

		c := wallContact{
			frame:       geom.NewContactFrame(toMe),
			distance:    dist,
			indentation: p.Radius - dist - pc.InitialOffset,
		}
		vel, delta, _ := pc.Kinematics()
		c.relVel = r3.Sub(n.Velocity, vel)
		c.delta = r3.Sub(n.DeltaDisplacement, delta)
		if p.Is(particle.HasRotation) {
			arm := r3.Scale(-dist, c.frame.Normal())
			c.relVel = r3.Add(c.relVel, r3.Cross(n.AngularVelocity, arm))
			c.delta = r3.Add(c.delta, r3.Cross(n.DeltaRotation, arm))
		}

		in, out, err := e.boundaryForces(p, pc.Material, hist.Elastic, &c, ctx)
		if err != nil {
			return err
		}

		_, global, globalElastic := addUp(&c.frame, &out)
		hist.Elastic = globalElastic
		hist.Total = global
		acc.elastic = r3.Add(acc.elastic, globalElastic)
		acc.contact = r3.Add(acc.contact, global)
		acc.rigid = r3.Sub(acc.rigid, global)
		pc.AddExternalForce(r3.Scale(-1, global))

		if p.Is(particle.HasRotation) {
			arm := r3.Scale(-(p.Radius - c.indentation), c.frame.Normal())
			acc.moment = r3.Add(acc.moment, r3.Cross(arm, global))
		}
		if p.Is(particle.HasStressTensor) {
			e.addWallStress(p, &c, global)
		}
		if ctx.Options.EnergyCalculation {
			e.addEnergy(p, &in, &out, ctx.Dt)
		}
	}
	return nil
}

// MaxBallToWallIndentation is the largest overlap of p with any wall it
// touches, zero without contacts.
func (e *Engine) MaxBallToWallIndentation(p *particle.Particle) float64 {
	var maxIndentation float64
	for _, slot := range p.Walls {
		w, ok := e.model.Wall(slot.ID)
		if !ok || w.Phantom {
			continue
		}
		gc, typ := w.RelativeData(p.Node.Position, p.Radius, slot.Weights)
		if typ == boundary.NoContact || !gc.Exists {
			continue
		}
		if ind := p.Radius - gc.Distance; ind > maxIndentation {
			maxIndentation = ind
		}
	}
	return maxIndentation
}
