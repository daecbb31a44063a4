package config

import (
	"sort"

	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
)

// Preset is a named, ready to run configuration.
type Preset struct {
	Description string
	build       func() *Config
}

var presets = map[string]Preset{
	"two_spheres": {
		Description: "head-on collision of two glass spheres",
		build:       twoSpheres,
	},
	"sphere_on_plate": {
		Description: "glass sphere dropped on a worn steel plate",
		build:       sphereOnPlate,
	},
	"column": {
		Description: "damped column of spheres settling on a plate",
		build:       column,
	},
	"periodic_box": {
		Description: "two colliding layers in a periodic box, multi-stage",
		build:       periodicBox,
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	return p.build()
}

// Describe returns the description of a preset.
func Describe(name string) (string, bool) {
	p, ok := presets[name]
	return p.Description, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func twoSpheres() *Config {
	cfg := DefaultConfig()
	cfg.Name = "two_spheres"
	cfg.Dt = 1e-6
	cfg.Duration = 5e-3
	cfg.PrintEvery = 20
	cfg.Gravity = Vec{}
	cfg.Options.EnergyCalculation = true
	cfg.Particles = []ParticleConfig{
		{ID: 1, Material: "glass", Radius: 0.01, Position: Vec{-0.0105, 0, 0}, Velocity: Vec{0.5, 0, 0}},
		{ID: 2, Material: "glass", Radius: 0.01, Position: Vec{0.0105, 0, 0}, Velocity: Vec{-0.5, 0, 0}},
	}
	return cfg
}

func plate(id int, half, z float64) WallConfig {
	return WallConfig{
		ID:       id,
		Material: "steel",
		Nodes: []Vec{
			{-half, -half, z},
			{half, -half, z},
			{half, half, z},
			{-half, half, z},
		},
	}
}

func sphereOnPlate() *Config {
	cfg := DefaultConfig()
	cfg.Name = "sphere_on_plate"
	cfg.Duration = 0.1
	cfg.Pairs[1].Wear = material.Wear{
		Compute:         true,
		Severity:        1e-3,
		ImpactSeverity:  1e-3,
		BrinellHardness: 2e9,
	}
	cfg.Particles = []ParticleConfig{
		{ID: 1, Material: "glass", Radius: 0.01, Position: Vec{0, 0, 0.03}, Velocity: Vec{0.2, 0, 0}},
	}
	cfg.Walls = []WallConfig{plate(1, 0.1, 0)}
	return cfg
}

func column() *Config {
	cfg := DefaultConfig()
	cfg.Name = "column"
	cfg.Duration = 0.05
	cfg.Damping = DampingConfig{Law: "non_viscous", Coefficient: 0.3}
	cfg.Options.StressTensor = true
	cfg.Options.RollingFriction = true
	cfg.Pairs[0].RollingFriction = "constant_torque"
	cfg.Pairs[0].Params.RollingFriction = 0.01
	cfg.Lattices = []LatticeConfig{
		{Material: "glass", Radius: 0.005, Origin: Vec{0, 0, 0.0055}, Counts: [3]int{1, 1, 10}, Spacing: 0.0105},
	}
	cfg.Walls = []WallConfig{plate(1, 0.05, 0)}
	return cfg
}

func periodicBox() *Config {
	cfg := DefaultConfig()
	cfg.Name = "periodic_box"
	cfg.Duration = 0.02
	cfg.Gravity = Vec{}
	cfg.Periodic = &Domain{Min: Vec{0, 0, 0}, Max: Vec{0.1, 0.1, 0.1}}
	cfg.Options.MultiStage = true
	cfg.Options.StressTensor = true
	cfg.Pairs = []PairConfig{
		{Materials: [2]string{"glass", "glass"}, ForceLaw: "linear", Params: laws.Params{Friction: 0.4, Restitution: 0.9}},
	}
	cfg.Lattices = []LatticeConfig{
		{Material: "glass", Radius: 0.01, Origin: Vec{0.0125, 0.0125, 0.0125}, Counts: [3]int{4, 4, 2}, Spacing: 0.025, Velocity: Vec{0, 0, 0.5}},
		{Material: "glass", Radius: 0.01, Origin: Vec{0.0125, 0.0125, 0.0625}, Counts: [3]int{4, 4, 2}, Spacing: 0.025, Velocity: Vec{0, 0, -0.5}},
	}
	return cfg
}
