// Package contact evaluates the contact forces and moments acting on every
// particle of a Model for one time step.
package contact

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/particle"
)

const defaultMinChunk = 64

// accumulator holds the sums of one particle for the step in progress.
type accumulator struct {
	contact r3.Vec
	elastic r3.Vec
	rigid   r3.Vec
	moment  r3.Vec

	transfers []transfer
}

func (a *accumulator) reset() {
	a.contact = r3.Vec{}
	a.elastic = r3.Vec{}
	a.rigid = r3.Vec{}
	a.moment = r3.Vec{}
	a.transfers = a.transfers[:0]
}

// transfer is the reaction a lower-id particle owes a neighbour in
// multi-stage mode.
type transfer struct {
	target  int
	force   r3.Vec
	elastic r3.Vec
	moment  r3.Vec
	// arm is the branch vector used for the neighbour stress tensor.
	arm    r3.Vec
	stress bool
}

// Engine computes contact forces over a Model in parallel, one particle per
// task, using the laws registered in its material registry.
type Engine struct {
	model     *Model
	materials *material.Registry
	damping   laws.GlobalDampingLaw
	minChunk  int
	log       *slog.Logger

	acc []accumulator
}

// NewEngine creates an engine logging under the "contact" component.
func NewEngine(model *Model, materials *material.Registry) *Engine {
	return &Engine{
		model:     model,
		materials: materials,
		minChunk:  defaultMinChunk,
		log:       slog.Default().With(slog.String("component", "contact")),
	}
}

// SetGlobalDamping sets the prototype cloned into every particle when
// global damping is enabled.
func (e *Engine) SetGlobalDamping(l laws.GlobalDampingLaw) { e.damping = l }

// SetLogger replaces the engine logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.log = l.With(slog.String("component", "contact"))
}

// SetMinChunk sets the smallest number of particles handed to a worker.
func (e *Engine) SetMinChunk(n int) {
	if n > 0 {
		e.minChunk = n
	}
}

// Model returns the bodies the engine evaluates.
func (e *Engine) Model() *Model { return e.model }

// Materials returns the registry the force laws are cloned from.
func (e *Engine) Materials() *material.Registry { return e.materials }

// InitializeParticle prepares a particle for the run: feature flags from
// the options, its own rolling friction and damping instances, and the
// stress tensors.
func (e *Engine) InitializeParticle(p *particle.Particle, ctx *dynamo.StepContext) error {
	opts := &ctx.Options
	if p.Material == nil {
		return fmt.Errorf("%w: particle %d has no material", dynamo.ErrInvalidConfig, p.ID)
	}
	if p.Node.Orientation == (quat.Number{}) {
		p.Node.Orientation = quat.Number{Real: 1}
	}

	p.Set(particle.HasRotation, opts.Rotation)
	if !opts.Rotation {
		p.Node.AngularVelocity = r3.Vec{}
	}

	p.RollingFriction = nil
	p.Set(particle.HasRollingFriction, false)
	if opts.Rotation && opts.RollingFriction {
		rf, err := e.materials.CloneRollingFriction(p.Material.ID, p.Material.ID)
		if err != nil {
			return fmt.Errorf("particle %d: %w", p.ID, err)
		}
		if rf != nil {
			p.RollingFriction = rf
			p.Set(particle.HasRollingFriction, true)
		} else {
			e.log.Debug("no rolling friction law for material", slog.Int("particle", p.ID), slog.String("material", p.Material.Name))
		}
	}

	p.GlobalDamping = nil
	p.Set(particle.HasGlobalDamping, opts.GlobalDamping && e.damping != nil)
	if p.Is(particle.HasGlobalDamping) {
		p.GlobalDamping = e.damping.Clone()
	}

	if opts.StressTensor && p.StressTensor == nil {
		p.EnableStressTensor()
	}
	p.Set(particle.HasStressTensor, opts.StressTensor)

	if len(p.History.Neighbours) != len(p.Neighbours) {
		p.SetNeighbours(p.Neighbours)
	}
	if len(p.History.Walls) != len(p.Walls) {
		p.SetWalls(p.Walls)
	}
	if len(p.History.Points) != len(p.PointConditions) {
		p.SetPointConditions(p.PointConditions)
	}
	p.RepresentativeVolume = p.Volume()
	return nil
}

// InitializeSolutionStep clears the per-step quantities of a particle.
func (e *Engine) InitializeSolutionStep(p *particle.Particle, ctx *dynamo.StepContext) {
	p.PartialRepresentativeVolume = 0
	p.Energy.Elastic = 0
	p.Energy.MaxNormalForceTimesRadius = 0
	if p.Is(particle.HasStressTensor) {
		p.StressTensor.Zero()
	}
	if p.Is(particle.HasRotation) && p.Is(particle.HasRollingFriction) && p.RollingFriction != nil {
		p.RollingFriction.InitializeSolutionStep()
	}
}

// InitializeStep runs InitializeSolutionStep on every particle and clears
// the boundary accumulators.
func (e *Engine) InitializeStep(ctx *dynamo.StepContext) {
	ps := e.model.Particles
	dynamo.ParallelFor(len(ps), e.minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			e.InitializeSolutionStep(ps[i], ctx)
		}
	})
	for _, n := range e.model.Nodes {
		n.ResetStep()
	}
	for _, pc := range e.model.Points {
		pc.ResetStep()
	}
}

// CalculateRightHandSide computes the total force and moment of one
// particle. In multi-stage mode the reactions owed to higher-id neighbours
// are only delivered by ComputeForces.
func (e *Engine) CalculateRightHandSide(p *particle.Particle, ctx *dynamo.StepContext) error {
	var acc accumulator
	if err := e.contacts(p, ctx, &acc); err != nil {
		return e.stepError(p, ctx, err)
	}
	if err := e.finalizeForces(p, ctx, &acc); err != nil {
		return e.stepError(p, ctx, err)
	}
	return nil
}

// ComputeForces evaluates every particle of the model in parallel. The
// first fatal error, by particle order, is returned.
func (e *Engine) ComputeForces(ctx *dynamo.StepContext) error {
	ps := e.model.Particles
	if cap(e.acc) < len(ps) {
		e.acc = make([]accumulator, len(ps))
	}
	e.acc = e.acc[:len(ps)]

	err := dynamo.ParallelForErr(len(ps), e.minChunk, func(i int) error {
		if err := e.contacts(ps[i], ctx, &e.acc[i]); err != nil {
			return e.stepError(ps[i], ctx, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if ctx.Options.MultiStage {
		e.collect()
	}

	return dynamo.ParallelForErr(len(ps), e.minChunk, func(i int) error {
		if err := e.finalizeForces(ps[i], ctx, &e.acc[i]); err != nil {
			return e.stepError(ps[i], ctx, err)
		}
		return nil
	})
}

// collect delivers the multi-stage reactions. It runs on one goroutine.
func (e *Engine) collect() {
	ps := e.model.Particles
	for i := range e.acc {
		for _, t := range e.acc[i].transfers {
			a := &e.acc[t.target]
			a.contact = r3.Add(a.contact, t.force)
			a.elastic = r3.Add(a.elastic, t.elastic)
			a.moment = r3.Add(a.moment, t.moment)
			if t.stress {
				addStress(ps[t.target].StressTensor, t.arm, t.force)
			}
		}
	}
}

func (e *Engine) contacts(p *particle.Particle, ctx *dynamo.StepContext, acc *accumulator) error {
	acc.reset()
	if err := e.ballToBall(p, ctx, acc); err != nil {
		return err
	}
	if err := e.ballToWalls(p, ctx, acc); err != nil {
		return err
	}
	return e.ballToPoints(p, ctx, acc)
}

// finalizeForces adds body forces to the contact sums and stores the
// totals on the node.
func (e *Engine) finalizeForces(p *particle.Particle, ctx *dynamo.StepContext, acc *accumulator) error {
	n := &p.Node

	if p.Is(particle.HasRotation) && p.Is(particle.HasRollingFriction) && !ctx.Options.MultiStage && p.RollingFriction != nil {
		state := laws.RollingState{AngularVelocity: n.AngularVelocity, Inertia: p.Inertia}
		p.RollingFriction.DoFinalOperations(state, ctx.Dt, &acc.moment)
	}

	var force, moment r3.Vec
	if !p.Is(particle.BelongsToCluster) {
		force = r3.Add(r3.Scale(p.Mass, ctx.Gravity), n.ExternalForce)
		moment = n.ExternalMoment
	}

	n.ContactForce = acc.contact
	n.ElasticForce = acc.elastic
	n.RigidElementForce = acc.rigid

	total := r3.Add(acc.contact, force)
	totalMoment := r3.Add(acc.moment, moment)

	if p.Is(particle.HasGlobalDamping) && p.GlobalDamping != nil {
		in := laws.DampingInput{
			Velocity:        n.Velocity,
			AngularVelocity: n.AngularVelocity,
			Fixed:           n.Fixed,
		}
		p.GlobalDamping.Apply(in, &total, &totalMoment)
	}

	n.TotalForce = total
	n.TotalMoment = totalMoment

	if ctx.Options.DebugChecks && (!geom.IsFinite(total) || !geom.IsFinite(totalMoment)) {
		return fmt.Errorf("%w: force %v, moment %v", dynamo.ErrNonFinite, total, totalMoment)
	}
	return nil
}

// FinalizeStep runs FinalizeSolutionStep on every particle.
func (e *Engine) FinalizeStep(ctx *dynamo.StepContext) {
	ps := e.model.Particles
	dynamo.ParallelFor(len(ps), e.minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			e.FinalizeSolutionStep(ps[i], ctx)
		}
	})
}

// FinalizeSolutionStep computes reactions, the representative volume and,
// when enabled, the averaged stress and the strain increment.
func (e *Engine) FinalizeSolutionStep(p *particle.Particle, ctx *dynamo.StepContext) {
	p.ComputeReactions()

	p.RepresentativeVolume = p.PartialRepresentativeVolume
	if v := p.Volume(); p.RepresentativeVolume <= v {
		p.RepresentativeVolume = v
	}

	if !p.Is(particle.HasStressTensor) {
		return
	}
	if ctx.Options.PrintStressTensor {
		p.RawStressTensor.Copy(p.StressTensor)
	}
	p.StressTensor.Scale(1/p.RepresentativeVolume, p.StressTensor)

	e.differentialStrain(p, ctx)
	symmetrizeAverage(p.DifferentialStrainTensor)
	p.StrainTensor.Add(p.StrainTensor, p.DifferentialStrainTensor)
	symmetrizeLargest(p.SymmStressTensor, p.StressTensor)
}

func (e *Engine) stepError(p *particle.Particle, ctx *dynamo.StepContext, err error) error {
	return &dynamo.StepError{ParticleID: p.ID, Step: ctx.Step, Time: ctx.Time, Wrapped: err}
}

// addUp combines the law output into the local total and projects the
// elastic and total forces to global axes.
func addUp(frame *geom.Frame, out *laws.Output) (local, global, globalElastic r3.Vec) {
	local = r3.Add(out.LocalElasticForce, out.ViscousForce)
	local.Z -= out.CohesiveForce
	return local, frame.ToGlobal(local), frame.ToGlobal(out.LocalElasticForce)
}
