// Package experiment builds a runnable simulation from a run configuration.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/config"
	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/integrators"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/particle"
	"github.com/san-kum/demcontact/internal/search"
	"github.com/san-kum/demcontact/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	materials *material.Registry
	model     *contact.Model
	simulator *sim.Simulator
	log       *slog.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{
		cfg: cfg,
		log: slog.Default().With(slog.String("component", "experiment")),
	}
}

// Setup validates the configuration and builds the materials, the model
// and the simulator with the default metrics.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}
	reg, err := buildMaterials(e.cfg)
	if err != nil {
		return err
	}
	e.materials = reg
	e.model = contact.NewModel()

	if err := e.buildWalls(); err != nil {
		return err
	}
	if err := e.buildPoints(); err != nil {
		return err
	}
	if err := e.buildParticles(); err != nil {
		return err
	}
	if err := e.checkPairs(); err != nil {
		return err
	}

	engine := contact.NewEngine(e.model, e.materials)
	if e.cfg.Damping.Law != "" {
		d, err := laws.NewGlobalDamping(e.cfg.Damping.Law, e.cfg.Damping.Coefficient)
		if err != nil {
			return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
		}
		engine.SetGlobalDamping(d)
	}

	e.simulator = sim.New(engine, search.New(e.cfg.SearchMargin), StepContext(e.cfg))
	e.simulator.SetSearchEvery(e.cfg.SearchEvery)
	for _, m := range DefaultMetrics() {
		e.simulator.AddMetric(m)
	}

	e.log.Info("built",
		slog.String("name", e.cfg.Name),
		slog.Int("particles", len(e.model.Particles)),
		slog.Int("walls", len(e.model.Walls)),
		slog.Int("points", len(e.model.Points)),
		slog.Int("materials", len(e.materials.Materials())),
	)
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.SimConfig())
}

// SimConfig is the step-loop configuration of the run.
func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Name:        e.cfg.Name,
		Duration:    e.cfg.Duration,
		PrintEvery:  e.cfg.PrintEvery,
		SearchEvery: e.cfg.SearchEvery,
	}
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

func (e *Experiment) Model() *contact.Model { return e.model }

func (e *Experiment) Materials() *material.Registry { return e.materials }

func (e *Experiment) Config() *config.Config { return e.cfg }

// StepContext converts the run configuration into the context of the first
// step.
func StepContext(cfg *config.Config) dynamo.StepContext {
	ctx := dynamo.DefaultStepContext()
	ctx.Dt = cfg.Dt
	ctx.Gravity = vec(cfg.Gravity)
	ctx.Dimension = cfg.Dimension
	if d := cfg.Periodic; d != nil {
		ctx.Periodic = true
		ctx.DomainMin = vec(d.Min)
		ctx.DomainMax = vec(d.Max)
	}
	o := cfg.Options
	ctx.Options = dynamo.Options{
		Rotation:                 o.Rotation,
		RollingFriction:          o.RollingFriction,
		GlobalDamping:            cfg.Damping.Law != "",
		GlobalDampingCoefficient: cfg.Damping.Coefficient,
		StressTensor:             o.StressTensor,
		PrintStressTensor:        o.PrintStressTensor,
		MultiStage:               o.MultiStage,
		CleanInitialIndentation:  o.CleanInitialIndentation,
		EnergyCalculation:        o.EnergyCalculation,
		DebugChecks:              o.DebugChecks,
	}
	return ctx
}

func vec(v config.Vec) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func buildMaterials(cfg *config.Config) (*material.Registry, error) {
	reg := material.NewRegistry()
	if cfg.MaterialLibrary != "" {
		lib, err := material.LoadINI(cfg.MaterialLibrary)
		if err != nil {
			return nil, err
		}
		reg = lib
	}
	for _, mc := range cfg.Materials {
		m := material.Material{
			ID: mc.ID, Name: mc.Name,
			Young: mc.Young, Poisson: mc.Poisson, Density: mc.Density,
		}
		if have, ok := reg.MaterialByName(m.Name); ok && *have == m {
			continue
		}
		if err := reg.AddMaterial(m); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Pairs {
		a, err := lookup(reg, p.Materials[0])
		if err != nil {
			return nil, err
		}
		b, err := lookup(reg, p.Materials[1])
		if err != nil {
			return nil, err
		}
		err = reg.SetPair(a.ID, b.ID, material.PairProperties{
			ForceLaw:        p.ForceLaw,
			RollingFriction: p.RollingFriction,
			Law:             p.Params,
			Wear:            p.Wear,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func lookup(reg *material.Registry, name string) (*material.Material, error) {
	m, ok := reg.MaterialByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown material %q", dynamo.ErrInvalidConfig, name)
	}
	return m, nil
}

func (e *Experiment) addNode(pos, velocity r3.Vec) *boundary.Node {
	n := boundary.NewNode(len(e.model.Nodes), pos)
	n.Velocity = velocity
	e.model.AddNode(n)
	return n
}

func (e *Experiment) buildWalls() error {
	for _, wc := range e.cfg.Walls {
		m, err := lookup(e.materials, wc.Material)
		if err != nil {
			return err
		}
		nodes := make([]*boundary.Node, len(wc.Nodes))
		for i, x := range wc.Nodes {
			nodes[i] = e.addNode(vec(x), vec(wc.Velocity))
		}
		w, err := boundary.NewWall(wc.ID, m, nodes...)
		if err != nil {
			return err
		}
		w.Phantom = wc.Phantom
		w.InitialOffset = wc.InitialOffset
		if err := e.model.AddWall(w); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) buildPoints() error {
	for _, pc := range e.cfg.Points {
		m, err := lookup(e.materials, pc.Material)
		if err != nil {
			return err
		}
		n := e.addNode(vec(pc.Position), vec(pc.Velocity))
		point := boundary.NewPointCondition(pc.ID, m, n)
		point.InitialOffset = pc.InitialOffset
		if err := e.model.AddPointCondition(point); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) buildParticles() error {
	nextID := 0
	for _, pc := range e.cfg.Particles {
		nextID = max(nextID, pc.ID)
	}
	specs := slices.Clone(e.cfg.Particles)
	for _, l := range e.cfg.Lattices {
		for _, pos := range Lattice(l, e.cfg.Dimension) {
			nextID++
			specs = append(specs, config.ParticleConfig{
				ID:       nextID,
				Material: l.Material,
				Radius:   l.Radius,
				Position: pos,
				Velocity: l.Velocity,
			})
		}
	}

	for _, pc := range specs {
		p, err := e.newParticle(pc)
		if err != nil {
			return err
		}
		if err := e.model.AddParticle(p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Experiment) newParticle(pc config.ParticleConfig) (*particle.Particle, error) {
	m, err := lookup(e.materials, pc.Material)
	if err != nil {
		return nil, err
	}
	p := particle.New(pc.ID, pc.Radius, m, vec(pc.Position))
	n := &p.Node
	n.Velocity = vec(pc.Velocity)
	n.AngularVelocity = vec(pc.AngularVelocity)
	n.Fixed = pc.Fixed
	if pc.Cluster > 0 {
		p.Cluster = pc.Cluster
		p.Set(particle.BelongsToCluster, true)
	}
	if e.cfg.Dimension == 2 {
		n.Velocity.Z = 0
		n.Fixed[2] = true
		n.AngularVelocity.X, n.AngularVelocity.Y = 0, 0
		n.FixedRotation[0], n.FixedRotation[1] = true, true
	}

	scheme, err := integrators.New(e.cfg.Integrator)
	if err != nil {
		return nil, err
	}
	p.TranslationalScheme = scheme
	p.RotationalScheme = scheme

	if pc.GluedToWall != 0 {
		w, ok := e.model.Wall(pc.GluedToWall)
		if !ok {
			return nil, fmt.Errorf("%w: particle %d glued to unknown wall %d", dynamo.ErrInvalidConfig, pc.ID, pc.GluedToWall)
		}
		p.SwapSchemeToGluedToWall(integrators.NewGluedToWall(w, w.ShapeFunctions(n.Position)))
	}
	return p, nil
}

// checkPairs fails when a particle material has no properties against a
// material it can touch.
func (e *Experiment) checkPairs() error {
	var grains, all []int
	add := func(list *[]int, id int) {
		if !slices.Contains(*list, id) {
			*list = append(*list, id)
		}
	}
	for _, p := range e.model.Particles {
		add(&grains, p.Material.ID)
		add(&all, p.Material.ID)
	}
	for _, w := range e.model.Walls {
		add(&all, w.Material.ID)
	}
	for _, pc := range e.model.Points {
		add(&all, pc.Material.ID)
	}
	for _, a := range grains {
		for _, b := range all {
			if !e.materials.HasPair(a, b) {
				return fmt.Errorf("%w: no properties for materials (%d, %d)", dynamo.ErrInvalidConfig, a, b)
			}
		}
	}
	return nil
}
