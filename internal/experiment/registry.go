package experiment

import (
	"fmt"

	"github.com/san-kum/demcontact/internal/config"
	"github.com/san-kum/demcontact/internal/integrators"
	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/sim"
)

// StabilityThreshold is the relative overlap above which a step counts as
// unstable.
const StabilityThreshold = 0.05

// Components lists the names accepted in run configurations, by kind.
func Components() map[string][]string {
	return map[string][]string{
		"force_laws":       laws.ForceLawNames(),
		"rolling_friction": laws.RollingFrictionNames(),
		"global_damping":   laws.GlobalDampingNames(),
		"integrators":      integrators.Names(),
		"presets":          config.ListPresets(),
	}
}

func DefaultMetrics() []sim.Metric {
	return []sim.Metric{
		metrics.NewEnergy(),
		metrics.NewEnergyDrift(),
		metrics.NewContacts(),
		metrics.NewMaxIndentation(),
		metrics.NewWallLoad(),
		metrics.NewStability(StabilityThreshold),
	}
}

// FromPreset builds the experiment of a named preset.
func FromPreset(name string) (*Experiment, error) {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	e := New(cfg)
	if err := e.Setup(); err != nil {
		return nil, err
	}
	return e, nil
}
