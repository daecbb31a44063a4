package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Options are the global feature toggles of a run.
type Options struct {
	Rotation                 bool
	RollingFriction          bool
	GlobalDamping            bool
	GlobalDampingCoefficient float64
	StressTensor             bool
	PrintStressTensor        bool
	// MultiStage makes the lower-id body of every pair the only one that
	// evaluates the contact.
	MultiStage              bool
	CleanInitialIndentation bool
	EnergyCalculation       bool
	DebugChecks             bool
}

// StepContext is the read-only input of one force evaluation.
type StepContext struct {
	Time      float64
	Dt        float64
	Step      int
	Gravity   r3.Vec
	Dimension int

	Periodic  bool
	DomainMin r3.Vec
	DomainMax r3.Vec

	Options Options
}

func DefaultStepContext() StepContext {
	return StepContext{
		Dt:        1e-5,
		Gravity:   r3.Vec{Z: -9.81},
		Dimension: 3,
		Options: Options{
			Rotation:    true,
			DebugChecks: true,
		},
	}
}

// Validate rejects contexts the engine cannot run with.
func (c *StepContext) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if c.Dimension != 2 && c.Dimension != 3 {
		return fmt.Errorf("%w: dimension must be 2 or 3, got %d", ErrInvalidConfig, c.Dimension)
	}
	if c.Periodic {
		if c.DomainMax.X <= c.DomainMin.X || c.DomainMax.Y <= c.DomainMin.Y || c.DomainMax.Z <= c.DomainMin.Z {
			return fmt.Errorf("%w: periodic domain max corner must exceed min corner", ErrInvalidConfig)
		}
	}
	if c.Options.RollingFriction && !c.Options.Rotation {
		return fmt.Errorf("%w: rolling friction requires rotation", ErrInvalidConfig)
	}
	if c.Options.PrintStressTensor && !c.Options.StressTensor {
		return fmt.Errorf("%w: printing the stress tensor requires computing it", ErrInvalidConfig)
	}
	if c.Options.GlobalDamping && (c.Options.GlobalDampingCoefficient < 0 || c.Options.GlobalDampingCoefficient > 1) {
		return fmt.Errorf("%w: global damping coefficient must be in [0, 1], got %g", ErrInvalidConfig, c.Options.GlobalDampingCoefficient)
	}
	return nil
}

// Advance returns the context of the next step.
func (c *StepContext) Advance() StepContext {
	next := *c
	next.Time += next.Dt
	next.Step++
	return next
}
