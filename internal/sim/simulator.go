// Package sim drives the discrete-element time loop: neighbour search,
// contact forces, time integration and diagnostics.
package sim

import (
	"context"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/particle"
	"github.com/san-kum/demcontact/internal/search"
)

type Simulator struct {
	engine    *contact.Engine
	searcher  *search.Searcher
	ctx       dynamo.StepContext
	metrics   []Metric
	observers []Observer
	log       *slog.Logger

	ready       bool
	printEvery  int
	searchEvery int
	searches    int
	stats       search.Stats
	minChunk    int
}

func New(engine *contact.Engine, searcher *search.Searcher, ctx dynamo.StepContext) *Simulator {
	return &Simulator{
		engine:      engine,
		searcher:    searcher,
		ctx:         ctx,
		metrics:     make([]Metric, 0),
		observers:   make([]Observer, 0),
		log:         slog.Default().With(slog.String("component", "sim")),
		printEvery:  1,
		searchEvery: 1,
		minChunk:    64,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Engine() *contact.Engine { return s.engine }

// Context returns the context of the next step.
func (s *Simulator) Context() dynamo.StepContext { return s.ctx }

// Stats returns the result of the latest neighbour search.
func (s *Simulator) Stats() search.Stats { return s.stats }

// Snapshot measures the current state.
func (s *Simulator) Snapshot() metrics.Snapshot {
	return metrics.Take(s.engine, &s.ctx)
}

// SetSearchEvery sets the neighbour search cadence used by Step.
func (s *Simulator) SetSearchEvery(n int) { s.searchEvery = every(n) }

// Initialize validates the step context, runs the first neighbour search
// and prepares every particle. Step calls it on first use.
func (s *Simulator) Initialize() error {
	if err := s.ctx.Validate(); err != nil {
		return err
	}
	m := s.engine.Model()
	s.search()
	for _, p := range m.Particles {
		if err := s.engine.InitializeParticle(p, &s.ctx); err != nil {
			return err
		}
	}
	s.ready = true
	s.log.Info("initialized",
		slog.Int("particles", len(m.Particles)),
		slog.Int("walls", len(m.Walls)),
		slog.Int("points", len(m.Points)),
		slog.Int("pairs", s.stats.Pairs),
	)
	return nil
}

func (s *Simulator) search() {
	s.stats = s.searcher.Update(s.engine.Model(), &s.ctx)
	s.searches++
}

// Step advances the model by one time step.
func (s *Simulator) Step() error {
	if !s.ready {
		if err := s.Initialize(); err != nil {
			return err
		}
	}
	c := &s.ctx
	if c.Step > 0 && c.Step%s.searchEvery == 0 {
		s.search()
	}

	s.engine.InitializeStep(c)
	if err := s.engine.ComputeForces(c); err != nil {
		return err
	}
	s.integrate()
	s.engine.FinalizeStep(c)

	s.ctx = c.Advance()
	return nil
}

// integrate moves the boundary nodes first so that glued particles follow
// the updated walls.
func (s *Simulator) integrate() {
	m := s.engine.Model()
	dt := s.ctx.Dt
	for _, n := range m.Nodes {
		n.Advance(dt)
	}

	ps := m.Particles
	dynamo.ParallelFor(len(ps), s.minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			p := ps[i]
			n := &p.Node
			if p.TranslationalScheme != nil {
				p.TranslationalScheme.Move(n, p.Mass, dt)
			}
			if p.Is(particle.HasRotation) && p.RotationalScheme != nil {
				p.RotationalScheme.Rotate(n, p.Inertia, dt)
			} else {
				n.DeltaRotation = r3.Vec{}
			}
			if s.ctx.Periodic {
				n.Position = wrap(n.Position, s.ctx.DomainMin, s.ctx.DomainMax)
			}
		}
	})
}

// wrap maps a position back into the periodic box.
func wrap(x, lo, hi r3.Vec) r3.Vec {
	f := func(v, a, b float64) float64 {
		l := b - a
		return v - l*math.Floor((v-a)/l)
	}
	return r3.Vec{X: f(x.X, lo.X, hi.X), Y: f(x.Y, lo.Y, hi.Y), Z: f(x.Z, lo.Z, hi.Z)}
}

// Run steps the model for cfg.Duration. On a fatal step error the partial
// result is returned with the error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s.printEvery = every(cfg.PrintEvery)
	s.searchEvery = every(cfg.SearchEvery)
	if !s.ready {
		if err := s.Initialize(); err != nil {
			return nil, err
		}
	}

	steps := int(cfg.Duration/s.ctx.Dt + 0.5)
	result := &Result{
		Name:    cfg.Name,
		Samples: make([]metrics.Snapshot, 0, steps/s.printEvery+2),
		Metrics: make(map[string]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	s.record(result)

	searches := s.searches
	defer func() {
		result.Time = s.ctx.Time
		result.Searches = s.searches - searches
		for _, m := range s.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.Step(); err != nil {
			s.log.Error("step failed", slog.Int("step", s.ctx.Step), slog.Any("err", err))
			return result, err
		}
		result.StepsTaken++

		if s.ctx.Step%s.printEvery == 0 || i == steps-1 {
			s.record(result)
		}
	}
	return result, nil
}

func (s *Simulator) record(result *Result) {
	snap := s.Snapshot()
	for _, m := range s.metrics {
		m.Observe(&snap)
	}
	for _, obs := range s.observers {
		obs.OnStep(&snap)
	}
	result.Samples = append(result.Samples, snap)
}
