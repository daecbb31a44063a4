// Package optim sweeps run parameters over a grid to calibrate a contact
// setup, typically the time step or the contact law coefficients.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/demcontact/internal/config"
	"github.com/san-kum/demcontact/internal/experiment"
)

// Setter applies one parameter value to a configuration.
type Setter func(cfg *config.Config, v float64)

func pairs(set func(p *config.PairConfig, v float64)) Setter {
	return func(cfg *config.Config, v float64) {
		for i := range cfg.Pairs {
			set(&cfg.Pairs[i], v)
		}
	}
}

// Params are the parameters a grid can vary. Contact law coefficients apply
// to every material pair.
var Params = map[string]Setter{
	"dt":            func(cfg *config.Config, v float64) { cfg.Dt = v },
	"search_margin": func(cfg *config.Config, v float64) { cfg.SearchMargin = v },
	"damping":       func(cfg *config.Config, v float64) { cfg.Damping.Coefficient = v },
	"friction":      pairs(func(p *config.PairConfig, v float64) { p.Params.Friction = v }),
	"restitution":   pairs(func(p *config.PairConfig, v float64) { p.Params.Restitution = v }),
	"stiffness":     pairs(func(p *config.PairConfig, v float64) { p.Params.Stiffness = v }),
}

func ParamNames() []string {
	names := make([]string, 0, len(Params))
	for k := range Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Trial is one evaluated grid point. Err is set when the run failed.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, name := range params {
		if _, ok := Params[name]; !ok {
			return nil, fmt.Errorf("unknown parameter %q (available: %v)", name, ParamNames())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("parameter %q has no values", name)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs base with every combination of the grid and returns the one
// minimising metricName, along with all trials in grid order. Failed runs
// are kept as trials but never win.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (map[string]float64, float64, []Trial, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	var trials []Trial

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(current map[string]float64) {
		t := g.evaluate(ctx, base, current, metricName)
		trials = append(trials, t)
		if t.Err == nil && t.Value < best {
			best = t.Value
			bestParams = t.Params
		}
	})
	if err != nil {
		return bestParams, best, trials, err
	}
	if bestParams == nil {
		return nil, best, trials, fmt.Errorf("no grid point completed")
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, params map[string]float64, metricName string) Trial {
	t := Trial{Params: params, Value: math.NaN()}

	cfg := clone(base)
	for name, v := range params {
		Params[name](cfg, v)
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(); err != nil {
		t.Err = err
		return t
	}
	result, err := exp.Run(ctx)
	if err != nil {
		t.Err = err
		return t
	}
	v, ok := result.Metrics[metricName]
	if !ok {
		t.Err = fmt.Errorf("run has no metric %q", metricName)
		return t
	}
	t.Value = v
	return t
}

// clone copies the parts of a configuration that setters modify.
func clone(c *config.Config) *config.Config {
	out := *c
	out.Pairs = append([]config.PairConfig(nil), c.Pairs...)
	return &out
}
