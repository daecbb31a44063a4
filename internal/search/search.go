package search

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/particle"
)

// Stats summarises one search.
type Stats struct {
	Pairs          int
	WallCandidates int
	CellSize       float64
}

// Searcher rebuilds the candidate lists of every particle. Bodies closer
// than the sum of their radii plus Margin become candidates.
type Searcher struct {
	Margin   float64
	MinChunk int

	grid *Grid
}

func New(margin float64) *Searcher {
	return &Searcher{Margin: margin, MinChunk: 64, grid: NewGrid()}
}

// Update fills the neighbour, wall and point-condition lists of every
// particle of the model.
func (s *Searcher) Update(m *contact.Model, ctx *dynamo.StepContext) Stats {
	ps := m.Particles
	var st Stats
	if len(ps) == 0 {
		return st
	}

	maxRadius := 0.0
	lo := ps[0].Node.Position
	for _, p := range ps {
		maxRadius = math.Max(maxRadius, p.Radius)
		lo = r3.Vec{X: math.Min(lo.X, p.Node.Position.X), Y: math.Min(lo.Y, p.Node.Position.Y), Z: math.Min(lo.Z, p.Node.Position.Z)}
	}
	cellSize := 2*maxRadius + s.Margin
	if cellSize <= 0 {
		cellSize = 1
	}
	st.CellSize = cellSize

	origin, size := lo, r3.Vec{}
	if ctx.Periodic {
		origin = ctx.DomainMin
		size = r3.Sub(ctx.DomainMax, ctx.DomainMin)
	}
	s.grid.Reset(cellSize, origin, size, ctx.Periodic)
	for i, p := range ps {
		s.grid.Insert(p.Node.Position, i)
	}

	pairs := make([]int, len(ps))
	walls := make([]int, len(ps))
	dynamo.ParallelFor(len(ps), s.MinChunk, func(start, end int) {
		var candidates []int
		for i := start; i < end; i++ {
			p := ps[i]
			candidates = s.neighbours(m, ctx, p, candidates[:0])
			p.SetNeighbours(keepSlots(p.Neighbours, candidates))
			pairs[i] = len(candidates)

			slots := s.wallCandidates(m, p)
			p.SetWalls(slots)
			walls[i] = len(slots)

			p.SetPointConditions(s.pointCandidates(m, p))
		}
	})
	for i := range ps {
		st.Pairs += pairs[i]
		st.WallCandidates += walls[i]
	}
	st.Pairs /= 2
	return st
}

func (s *Searcher) neighbours(m *contact.Model, ctx *dynamo.StepContext, p *particle.Particle, out []int) []int {
	s.grid.QueryAround(p.Node.Position, func(j int) bool {
		other := m.Particles[j]
		if other.ID == p.ID {
			return false
		}
		pos := other.Node.Position
		if ctx.Periodic {
			pos = geom.ClosestPeriodicImage(p.Node.Position, pos, ctx.DomainMin, ctx.DomainMax)
		}
		if r3.Norm(r3.Sub(p.Node.Position, pos)) <= p.Radius+other.Radius+s.Margin {
			out = append(out, other.ID)
		}
		return false
	})
	sort.Ints(out)
	return out
}

// keepSlots lays out the new neighbour list so that neighbours found again
// stay in their previous slot. Lost neighbours leave a NoNeighbour slot,
// new ones are appended in id order.
func keepSlots(previous, found []int) []int {
	isFound := make(map[int]bool, len(found))
	for _, id := range found {
		isFound[id] = true
	}
	out := make([]int, 0, len(previous)+len(found))
	kept := make(map[int]bool, len(previous))
	for _, id := range previous {
		if id != particle.NoNeighbour && isFound[id] && !kept[id] {
			out = append(out, id)
			kept[id] = true
			continue
		}
		out = append(out, particle.NoNeighbour)
	}
	for _, id := range found {
		if !kept[id] {
			out = append(out, id)
		}
	}
	for len(out) > 0 && out[len(out)-1] == particle.NoNeighbour {
		out = out[:len(out)-1]
	}
	return out
}

// wallCandidates selects, for every wall in reach, the feature the
// particle is closest to and encodes it as interpolation weights.
func (s *Searcher) wallCandidates(m *contact.Model, p *particle.Particle) []particle.WallSlot {
	var slots []particle.WallSlot
	reach := p.Radius + s.Margin
	for _, w := range m.Walls {
		if weights, ok := candidateWeights(w, p.Node.Position, reach); ok {
			slots = append(slots, particle.WallSlot{ID: w.ID, Weights: weights})
		}
	}
	return slots
}

func candidateWeights(w *boundary.Wall, center r3.Vec, reach float64) ([4]float64, bool) {
	var weights [4]float64
	x := w.Positions()

	if len(x) >= 3 {
		if c := geom.FacetCheck(x, center, reach); c.Exists {
			for i := range x {
				weights[i] = 1 / float64(len(x))
			}
			return weights, true
		}
	}

	best, bestDist := -1, math.Inf(1)
	edges := len(x)
	if len(x) == 2 {
		edges = 1
	}
	for i := 0; i < edges; i++ {
		j := (i + 1) % len(x)
		c, _ := geom.EdgeCheck(x[i], x[j], center, reach)
		if c.Exists && c.Distance < bestDist {
			best, bestDist = i, c.Distance
		}
	}
	if best >= 0 {
		weights[best] = 0.5
		weights[(best+1)%len(x)] = 0.5
		return weights, true
	}

	for i := range x {
		c := geom.VertexCheck(x[i], center, reach)
		if c.Exists && c.Distance < bestDist {
			best, bestDist = i, c.Distance
		}
	}
	if best >= 0 {
		weights[best] = 1
		return weights, true
	}
	return weights, false
}

func (s *Searcher) pointCandidates(m *contact.Model, p *particle.Particle) []int {
	var ids []int
	for _, pc := range m.Points {
		if r3.Norm(r3.Sub(p.Node.Position, pc.Center())) <= p.Radius+s.Margin {
			ids = append(ids, pc.ID)
		}
	}
	return ids
}
