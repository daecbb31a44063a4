package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/integrators"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/particle"
	"github.com/san-kum/demcontact/internal/search"
)

type world struct {
	reg   *material.Registry
	model *contact.Model
	glass *material.Material
	steel *material.Material
}

func newWorld(t *testing.T) *world {
	t.Helper()
	reg := material.NewRegistry()
	if err := reg.AddMaterial(material.Material{ID: 1, Name: "glass", Young: 1e7, Poisson: 0.25, Density: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddMaterial(material.Material{ID: 2, Name: "steel", Young: 2e11, Poisson: 0.3, Density: 7800}); err != nil {
		t.Fatal(err)
	}
	params := laws.Params{Stiffness: 1e5, TangentialRatio: 0.5, Friction: 0.5, Restitution: 0.5}
	for _, b := range []int{1, 2} {
		if err := reg.SetPair(1, b, material.PairProperties{ForceLaw: "linear", Law: params}); err != nil {
			t.Fatal(err)
		}
	}
	glass, _ := reg.Material(1)
	steel, _ := reg.Material(2)
	return &world{reg: reg, model: contact.NewModel(), glass: glass, steel: steel}
}

func (w *world) sphere(t *testing.T, id int, pos r3.Vec) *particle.Particle {
	t.Helper()
	p := particle.New(id, 0.1, w.glass, pos)
	p.TranslationalScheme = integrators.NewSymplecticEuler()
	p.RotationalScheme = p.TranslationalScheme
	if err := w.model.AddParticle(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (w *world) plate(t *testing.T, id int) *boundary.Wall {
	t.Helper()
	var nodes []*boundary.Node
	for i, x := range []r3.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}} {
		n := boundary.NewNode(i, x)
		w.model.AddNode(n)
		nodes = append(nodes, n)
	}
	wall, err := boundary.NewWall(id, w.steel, nodes...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.model.AddWall(wall); err != nil {
		t.Fatal(err)
	}
	return wall
}

func (w *world) simulator(ctx dynamo.StepContext) *Simulator {
	return New(contact.NewEngine(w.model, w.reg), search.New(0.01), ctx)
}

func stepContext() dynamo.StepContext {
	ctx := dynamo.DefaultStepContext()
	ctx.Dt = 1e-3
	return ctx
}

func TestSimulatorFreeFall(t *testing.T) {
	w := newWorld(t)
	p := w.sphere(t, 1, r3.Vec{Z: 10})
	s := w.simulator(stepContext())

	result, err := s.Run(context.Background(), Config{Duration: 0.01, PrintEvery: 5})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StepsTaken != 10 {
		t.Errorf("expected 10 steps, got %d", result.StepsTaken)
	}
	if len(result.Samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(result.Samples))
	}
	if math.Abs(result.Time-0.01) > 1e-12 {
		t.Errorf("expected time 0.01, got %g", result.Time)
	}
	if math.Abs(p.Node.Velocity.Z+0.0981) > 1e-12 {
		t.Errorf("expected vz -0.0981, got %g", p.Node.Velocity.Z)
	}
	last, _ := result.Last()
	if last.Step != 10 || last.Contacts != 0 {
		t.Errorf("unexpected final snapshot %+v", last)
	}
}

func TestSimulatorSettlesOnPlate(t *testing.T) {
	w := newWorld(t)
	p := w.sphere(t, 1, r3.Vec{Z: 0.1})
	w.plate(t, 5)
	ctx := stepContext()
	ctx.Dt = 1e-4
	s := w.simulator(ctx)
	s.AddMetric(metrics.NewWallLoad())
	s.AddMetric(metrics.NewMaxIndentation())

	result, err := s.Run(context.Background(), Config{Duration: 0.2, PrintEvery: 100})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	weight := p.Mass * 9.81
	last, _ := result.Last()
	if math.Abs(last.WallLoad-weight) > 0.01*weight {
		t.Errorf("wall load %g, want weight %g", last.WallLoad, weight)
	}
	if math.Abs(p.Node.Position.Z-(0.1-weight/1e5)) > 1e-5 {
		t.Errorf("resting height %g", p.Node.Position.Z)
	}
	if got := result.Metrics["max_indentation"]; got < weight/1e5 || got > 3*weight/1e5 {
		t.Errorf("max indentation %g", got)
	}
	if result.Metrics["wall_load"] < weight {
		t.Errorf("peak wall load %g below weight", result.Metrics["wall_load"])
	}
}

func TestSimulatorGluedParticleFollowsWall(t *testing.T) {
	w := newWorld(t)
	wall := w.plate(t, 5)
	for _, n := range wall.Nodes {
		n.Velocity = r3.Vec{Z: 1}
	}
	p := w.sphere(t, 1, r3.Vec{Z: 0.05})
	p.SwapSchemeToGluedToWall(integrators.NewGluedToWall(wall, wall.ShapeFunctions(p.Node.Position)))

	s := w.simulator(stepContext())
	result, err := s.Run(context.Background(), Config{Duration: 0.01})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if math.Abs(p.Node.Position.Z-0.06) > 1e-12 {
		t.Errorf("expected z 0.06, got %g", p.Node.Position.Z)
	}
	if p.Node.ContactForce != (r3.Vec{}) {
		t.Errorf("glued particle collided with its wall: %v", p.Node.ContactForce)
	}
	if len(result.Samples) != 11 {
		t.Errorf("expected a sample per step, got %d", len(result.Samples))
	}
}

func TestSimulatorPeriodicWrap(t *testing.T) {
	w := newWorld(t)
	p := w.sphere(t, 1, r3.Vec{X: 0.95, Y: 0.5, Z: 0.5})
	p.Node.Velocity = r3.Vec{X: 10}
	ctx := stepContext()
	ctx.Gravity = r3.Vec{}
	ctx.Periodic = true
	ctx.DomainMax = r3.Vec{X: 1, Y: 1, Z: 1}

	s := w.simulator(ctx)
	if _, err := s.Run(context.Background(), Config{Duration: 0.01}); err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Node.Position.X-0.05) > 1e-9 {
		t.Errorf("expected wrapped x 0.05, got %g", p.Node.Position.X)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	w := newWorld(t)
	w.sphere(t, 1, r3.Vec{})
	s := w.simulator(stepContext())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero duration", Config{Duration: 0}},
		{"negative duration", Config{Duration: -1.0}},
		{"negative cadence", Config{Duration: 1, PrintEvery: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Run(context.Background(), tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	ctx := stepContext()
	ctx.Dt = 0
	if _, err := w.simulator(ctx).Run(context.Background(), Config{Duration: 1}); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}
}

func TestSimulatorCancelled(t *testing.T) {
	w := newWorld(t)
	w.sphere(t, 1, r3.Vec{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := w.simulator(stepContext()).Run(ctx, Config{Duration: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 0 || len(result.Samples) != 1 {
		t.Errorf("unexpected partial result %+v", result)
	}
}

func TestSimulatorStepError(t *testing.T) {
	w := newWorld(t)
	p := w.sphere(t, 4, r3.Vec{})
	s := w.simulator(stepContext())

	p.Node.ExternalForce = r3.Vec{X: math.NaN()}
	result, err := s.Run(context.Background(), Config{Duration: 0.01})
	var stepErr *dynamo.StepError
	if !errors.As(err, &stepErr) || stepErr.ParticleID != 4 || !errors.Is(err, dynamo.ErrNonFinite) {
		t.Fatalf("expected non-finite step error, got %v", err)
	}
	if result == nil || result.StepsTaken != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

type counter struct{ n int }

func (c *counter) OnStep(*metrics.Snapshot) { c.n++ }

func TestSimulatorObserversAndMetrics(t *testing.T) {
	w := newWorld(t)
	w.sphere(t, 1, r3.Vec{})
	s := w.simulator(stepContext())
	obs := &counter{}
	s.AddObserver(obs)
	s.AddMetric(metrics.NewEnergy())

	var times []float64
	s.AddObserver(ObserverFunc(func(snap *metrics.Snapshot) { times = append(times, snap.Time) }))

	result, err := s.Run(context.Background(), Config{Duration: 0.01, PrintEvery: 2})
	if err != nil {
		t.Fatal(err)
	}
	if obs.n != 6 || len(times) != 6 {
		t.Errorf("expected 6 observations, got %d", obs.n)
	}
	if _, ok := result.Metrics["kinetic_energy"]; !ok {
		t.Error("metric not found in result")
	}
	if result.Searches != 9 {
		t.Errorf("expected a search per step, got %d", result.Searches)
	}
}

func TestBatch(t *testing.T) {
	b := NewBatch()
	for i := 0; i < 3; i++ {
		w := newWorld(t)
		w.sphere(t, 1, r3.Vec{Z: 10})
		b.Add(w.simulator(stepContext()), Config{Name: "fall", Duration: 0.001 * float64(i+1)})
	}
	results, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.StepsTaken != i+1 {
			t.Errorf("run %d: expected %d steps, got %d", i, i+1, r.StepsTaken)
		}
	}
}

func TestWrap(t *testing.T) {
	lo, hi := r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 1}
	got := wrap(r3.Vec{X: -0.25, Y: 2.5, Z: 0.5}, lo, hi)
	if math.Abs(got.X-0.75) > 1e-15 || math.Abs(got.Y-0.5) > 1e-15 || got.Z != 0.5 {
		t.Errorf("wrap = %v", got)
	}
}
