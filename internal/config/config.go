package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/demcontact/internal/integrators"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
)

const (
	DefaultDt          = 1e-5
	DefaultDuration    = 0.01
	DefaultPrintEvery  = 100
	DefaultSearchEvery = 1
	DefaultDimension   = 3
	DefaultIntegrator  = "symplectic_euler"
	DefaultMargin      = 1e-3
)

type Vec [3]float64

type Config struct {
	Name        string  `yaml:"name"`
	Dt          float64 `yaml:"dt"`
	Duration    float64 `yaml:"duration"`
	PrintEvery  int     `yaml:"print_every"`
	SearchEvery int     `yaml:"search_every"`
	Dimension   int     `yaml:"dimension"`
	Gravity     Vec     `yaml:"gravity"`
	Integrator  string  `yaml:"integrator"`
	// SearchMargin is added to the sum of radii when collecting
	// neighbour candidates.
	SearchMargin float64 `yaml:"search_margin"`

	Periodic *Domain       `yaml:"periodic,omitempty"`
	Options  OptionsConfig `yaml:"options"`
	Damping  DampingConfig `yaml:"damping"`

	// MaterialLibrary is an INI file of materials and pairs. Inline
	// materials are added to it unless identical to a library material;
	// inline pairs replace the library's.
	MaterialLibrary string           `yaml:"material_library,omitempty"`
	Materials       []MaterialConfig `yaml:"materials"`
	Pairs           []PairConfig     `yaml:"pairs"`

	Particles []ParticleConfig `yaml:"particles"`
	Lattices  []LatticeConfig  `yaml:"lattices"`
	Walls     []WallConfig     `yaml:"walls"`
	Points    []PointConfig    `yaml:"points"`
}

type Domain struct {
	Min Vec `yaml:"min"`
	Max Vec `yaml:"max"`
}

type OptionsConfig struct {
	Rotation                bool `yaml:"rotation"`
	RollingFriction         bool `yaml:"rolling_friction"`
	StressTensor            bool `yaml:"stress_tensor"`
	PrintStressTensor       bool `yaml:"print_stress_tensor"`
	MultiStage              bool `yaml:"multi_stage"`
	CleanInitialIndentation bool `yaml:"clean_initial_indentation"`
	EnergyCalculation       bool `yaml:"energy_calculation"`
	DebugChecks             bool `yaml:"debug_checks"`
}

// DampingConfig enables global damping when Law is set.
type DampingConfig struct {
	Law         string  `yaml:"law,omitempty"`
	Coefficient float64 `yaml:"coefficient"`
}

type MaterialConfig struct {
	ID      int     `yaml:"id"`
	Name    string  `yaml:"name"`
	Young   float64 `yaml:"young"`
	Poisson float64 `yaml:"poisson"`
	Density float64 `yaml:"density"`
}

type PairConfig struct {
	Materials       [2]string     `yaml:"materials"`
	ForceLaw        string        `yaml:"force_law"`
	RollingFriction string        `yaml:"rolling_friction_law,omitempty"`
	Params          laws.Params   `yaml:",inline"`
	Wear            material.Wear `yaml:"wear,omitempty"`
}

type ParticleConfig struct {
	ID              int     `yaml:"id"`
	Material        string  `yaml:"material"`
	Radius          float64 `yaml:"radius"`
	Position        Vec     `yaml:"position"`
	Velocity        Vec     `yaml:"velocity,omitempty"`
	AngularVelocity Vec     `yaml:"angular_velocity,omitempty"`
	Cluster         int     `yaml:"cluster,omitempty"`
	Fixed           [3]bool `yaml:"fixed,omitempty"`
	// GluedToWall moves the particle rigidly with the wall of this id.
	GluedToWall int `yaml:"glued_to_wall,omitempty"`
}

// LatticeConfig places Counts particles on a simple cubic lattice starting
// at Origin. Ids continue after the largest explicit particle id.
type LatticeConfig struct {
	Material string  `yaml:"material"`
	Radius   float64 `yaml:"radius"`
	Origin   Vec     `yaml:"origin"`
	Counts   [3]int  `yaml:"counts"`
	Spacing  float64 `yaml:"spacing"`
	Velocity Vec     `yaml:"velocity,omitempty"`
}

type WallConfig struct {
	ID       int    `yaml:"id"`
	Material string `yaml:"material"`
	// Nodes holds 2 (line), 3 (triangle) or 4 (quad) corners.
	Nodes    []Vec `yaml:"nodes"`
	Velocity Vec   `yaml:"velocity,omitempty"`
	Phantom  bool  `yaml:"phantom,omitempty"`
	// InitialOffset is subtracted from every indentation against the wall.
	InitialOffset float64 `yaml:"initial_offset,omitempty"`
}

type PointConfig struct {
	ID       int    `yaml:"id"`
	Material string `yaml:"material"`
	Position Vec    `yaml:"position"`
	Velocity Vec    `yaml:"velocity,omitempty"`
	// InitialOffset is subtracted from every indentation against the point.
	InitialOffset float64 `yaml:"initial_offset,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:         "default",
		Dt:           DefaultDt,
		Duration:     DefaultDuration,
		PrintEvery:   DefaultPrintEvery,
		SearchEvery:  DefaultSearchEvery,
		Dimension:    DefaultDimension,
		Gravity:      Vec{0, 0, -9.81},
		Integrator:   DefaultIntegrator,
		SearchMargin: DefaultMargin,
		Options: OptionsConfig{
			Rotation:    true,
			DebugChecks: true,
		},
		Materials: []MaterialConfig{
			{ID: 1, Name: "glass", Young: 1e7, Poisson: 0.25, Density: 2500},
			{ID: 2, Name: "steel", Young: 2.1e11, Poisson: 0.3, Density: 7850},
		},
		Pairs: []PairConfig{
			{Materials: [2]string{"glass", "glass"}, ForceLaw: "hertz", Params: laws.Params{Friction: 0.5, Restitution: 0.8}},
			{Materials: [2]string{"glass", "steel"}, ForceLaw: "hertz", Params: laws.Params{Friction: 0.3, Restitution: 0.6}},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Steps is the number of whole time steps in the run.
func (c *Config) Steps() int {
	if c.Dt <= 0 {
		return 0
	}
	return int(c.Duration/c.Dt + 0.5)
}

// Validate checks the configuration before any state is built. Material
// names are only checked when no material library is given.
func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.Dimension != 2 && c.Dimension != 3 {
		return fmt.Errorf("dimension must be 2 or 3, got %d", c.Dimension)
	}
	if c.PrintEvery < 0 || c.SearchEvery < 0 {
		return fmt.Errorf("print_every and search_every must not be negative")
	}
	if c.SearchMargin < 0 {
		return fmt.Errorf("search_margin must not be negative, got %g", c.SearchMargin)
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return err
	}
	if d := c.Periodic; d != nil {
		for i := range d.Min {
			if d.Max[i] <= d.Min[i] {
				return fmt.Errorf("periodic domain: max must exceed min on axis %d", i)
			}
		}
	}
	if c.Damping.Law != "" && !slices.Contains(laws.GlobalDampingNames(), c.Damping.Law) {
		return fmt.Errorf("unknown global damping law: %s", c.Damping.Law)
	}
	for _, p := range c.Pairs {
		if !slices.Contains(laws.ForceLawNames(), p.ForceLaw) {
			return fmt.Errorf("pair %v: unknown force law: %s", p.Materials, p.ForceLaw)
		}
		if p.RollingFriction != "" && !slices.Contains(laws.RollingFrictionNames(), p.RollingFriction) {
			return fmt.Errorf("pair %v: unknown rolling friction law: %s", p.Materials, p.RollingFriction)
		}
	}

	for _, p := range c.Particles {
		if p.Radius <= 0 {
			return fmt.Errorf("particle %d: radius must be positive", p.ID)
		}
	}
	for i, l := range c.Lattices {
		if l.Radius <= 0 {
			return fmt.Errorf("lattice %d: radius must be positive", i)
		}
		if l.Spacing < 2*l.Radius {
			return fmt.Errorf("lattice %d: spacing %g overlaps particles of radius %g", i, l.Spacing, l.Radius)
		}
	}
	for _, w := range c.Walls {
		if n := len(w.Nodes); n < 2 || n > 4 {
			return fmt.Errorf("wall %d: needs 2 to 4 nodes, got %d", w.ID, n)
		}
	}

	if c.MaterialLibrary != "" {
		return nil
	}
	return c.validateMaterials()
}

// validateMaterials checks that every body names a known material and that
// every pair of materials that can meet has properties.
func (c *Config) validateMaterials() error {
	known := make(map[string]bool, len(c.Materials))
	for _, m := range c.Materials {
		known[m.Name] = true
	}
	pairs := make(map[[2]string]bool, len(c.Pairs))
	for _, p := range c.Pairs {
		for _, name := range p.Materials {
			if !known[name] {
				return fmt.Errorf("pair %v: unknown material %q", p.Materials, name)
			}
		}
		pairs[p.Materials] = true
		pairs[[2]string{p.Materials[1], p.Materials[0]}] = true
	}

	var grains, boundaries []string
	use := func(list *[]string, kind string, id int, name string) error {
		if !known[name] {
			return fmt.Errorf("%s %d: unknown material %q", kind, id, name)
		}
		if !slices.Contains(*list, name) {
			*list = append(*list, name)
		}
		return nil
	}
	for _, p := range c.Particles {
		if err := use(&grains, "particle", p.ID, p.Material); err != nil {
			return err
		}
	}
	for i, l := range c.Lattices {
		if err := use(&grains, "lattice", i, l.Material); err != nil {
			return err
		}
	}
	for _, w := range c.Walls {
		if err := use(&boundaries, "wall", w.ID, w.Material); err != nil {
			return err
		}
	}
	for _, p := range c.Points {
		if err := use(&boundaries, "point condition", p.ID, p.Material); err != nil {
			return err
		}
	}

	for _, a := range grains {
		for _, b := range append(slices.Clone(grains), boundaries...) {
			if !pairs[[2]string{a, b}] {
				return fmt.Errorf("no pair properties for materials %q and %q", a, b)
			}
		}
	}
	return nil
}
