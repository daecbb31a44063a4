package sim

import (
	"fmt"

	"github.com/san-kum/demcontact/internal/metrics"
)

// Metric reduces the snapshots of a run to one value.
type Metric interface {
	Name() string
	Observe(s *metrics.Snapshot)
	Value() float64
	Reset()
}

// Observer is notified after every recorded snapshot.
type Observer interface {
	OnStep(s *metrics.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s *metrics.Snapshot)

func (f ObserverFunc) OnStep(s *metrics.Snapshot) { f(s) }

type Config struct {
	Name     string
	Duration float64
	// PrintEvery is the snapshot cadence in steps. Zero records every step.
	PrintEvery int
	// SearchEvery is the neighbour search cadence in steps. Zero searches
	// every step.
	SearchEvery int
}

type Result struct {
	Name       string
	Samples    []metrics.Snapshot
	Metrics    map[string]float64
	StepsTaken int
	Time       float64
	Searches   int
}

// Last returns the final snapshot of the run.
func (r *Result) Last() (metrics.Snapshot, bool) {
	if len(r.Samples) == 0 {
		return metrics.Snapshot{}, false
	}
	return r.Samples[len(r.Samples)-1], true
}

func (c Config) validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %g", c.Duration)
	}
	if c.PrintEvery < 0 || c.SearchEvery < 0 {
		return fmt.Errorf("cadence must not be negative")
	}
	return nil
}

func every(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
