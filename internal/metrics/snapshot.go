// Package metrics derives run diagnostics from the contact model: energies,
// overlaps, contact counts and boundary loads.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/particle"
)

// Snapshot is the state of a run at the end of one step.
type Snapshot struct {
	Time float64 `json:"time"`
	Step int     `json:"step"`

	Kinetic       float64 `json:"kinetic"`
	Rotational    float64 `json:"rotational"`
	Gravitational float64 `json:"gravitational"`
	Elastic       float64 `json:"elastic"`
	Dissipated    float64 `json:"dissipated"`

	MaxIndentation     float64 `json:"max_indentation"`
	MaxWallIndentation float64 `json:"max_wall_indentation"`
	// MaxRelativeIndentation is the largest overlap divided by the radius
	// of the particle reporting it.
	MaxRelativeIndentation float64 `json:"max_relative_indentation"`

	Contacts     int `json:"contacts"`
	WallContacts int `json:"wall_contacts"`

	// WallLoad is the magnitude of the summed contact force on all walls.
	WallLoad float64 `json:"wall_load"`
	Wear     float64 `json:"wear"`
}

// Mechanical is the sum of kinetic, rotational, gravitational and stored
// elastic energy.
func (s *Snapshot) Mechanical() float64 {
	return s.Kinetic + s.Rotational + s.Gravitational + s.Elastic
}

// Take measures the model of e. It reads particle and wall state only and
// must not run concurrently with a step.
func Take(e *contact.Engine, ctx *dynamo.StepContext) Snapshot {
	m := e.Model()
	s := Snapshot{Time: ctx.Time, Step: ctx.Step}

	for _, p := range m.Particles {
		s.Kinetic += p.KineticEnergy()
		s.Rotational += p.RotationalEnergy()
		s.Gravitational += p.GravitationalEnergy(ctx.Gravity)
		s.Elastic += p.Energy.Elastic
		s.Dissipated += p.Energy.ViscodampingDissipated + p.Energy.FrictionalDissipated

		ind := math.Max(0, e.MaxBallToBallIndentation(p, ctx))
		wallInd := e.MaxBallToWallIndentation(p)
		s.MaxIndentation = math.Max(s.MaxIndentation, ind)
		s.MaxWallIndentation = math.Max(s.MaxWallIndentation, wallInd)
		s.MaxRelativeIndentation = math.Max(s.MaxRelativeIndentation, math.Max(ind, wallInd)/p.Radius)
		if wallInd > 0 {
			s.WallContacts++
		}
		s.Contacts += touching(m, ctx, p)
	}

	var load r3.Vec
	for _, w := range m.Walls {
		load = r3.Add(load, w.TotalContactForce())
	}
	s.WallLoad = r3.Norm(load)
	for _, n := range m.Nodes {
		volume, _ := n.Wear()
		s.Wear += volume
	}
	return s
}

// touching counts the overlapping neighbours of p with a larger id.
func touching(m *contact.Model, ctx *dynamo.StepContext, p *particle.Particle) int {
	count := 0
	for _, id := range p.Neighbours {
		if id == particle.NoNeighbour || id < p.ID {
			continue
		}
		other, ok := m.Particle(id)
		if !ok {
			continue
		}
		pos := other.Node.Position
		if ctx.Periodic {
			pos = geom.ClosestPeriodicImage(p.Node.Position, pos, ctx.DomainMin, ctx.DomainMax)
		}
		if r3.Norm(r3.Sub(p.Node.Position, pos)) < p.Radius+other.Radius {
			count++
		}
	}
	return count
}
