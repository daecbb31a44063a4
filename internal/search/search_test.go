package search

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/contact"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/particle"
)

var glass = &material.Material{ID: 1, Name: "glass", Young: 1e7, Poisson: 0.25, Density: 1000}

func collect(g *Grid, pos r3.Vec) []int {
	var got []int
	g.QueryAround(pos, func(i int) bool {
		got = append(got, i)
		return false
	})
	sort.Ints(got)
	return got
}

func TestGridQueryAround(t *testing.T) {
	g := NewGrid()
	g.Reset(1, r3.Vec{}, r3.Vec{}, false)
	g.Insert(r3.Vec{X: 0.5}, 0)
	g.Insert(r3.Vec{X: 1.5}, 1)
	g.Insert(r3.Vec{X: 2.5}, 2)
	g.Insert(r3.Vec{X: -0.5, Y: -0.5, Z: -0.5}, 3)

	assert.Equal(t, []int{0, 1, 3}, collect(g, r3.Vec{X: 0.5}))
	assert.Equal(t, []int{1, 2}, collect(g, r3.Vec{X: 2.9}))

	g.Reset(1, r3.Vec{}, r3.Vec{}, false)
	assert.Empty(t, collect(g, r3.Vec{X: 0.5}))
}

func TestGridPeriodicVisitsEachCellOnce(t *testing.T) {
	g := NewGrid()
	g.Reset(0.4, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, true)
	assert.Equal(t, [3]int{2, 2, 2}, g.dims)
	assert.InDelta(t, 0.5, g.width[0], 1e-15)

	g.Insert(r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, 0)
	g.Insert(r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}, 1)
	g.Insert(r3.Vec{X: 1.1, Y: 0.1, Z: 0.1}, 2)
	assert.Equal(t, []int{0, 1, 2}, collect(g, r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}))
}

func TestKeepSlots(t *testing.T) {
	n := particle.NoNeighbour
	tests := []struct {
		name     string
		previous []int
		found    []int
		want     []int
	}{
		{"empty", nil, []int{3, 1}, []int{3, 1}},
		{"stable", []int{4, 2}, []int{2, 4}, []int{4, 2}},
		{"lost in the middle", []int{4, 2, 7}, []int{4, 7}, []int{4, n, 7}},
		{"lost at the end", []int{4, 2, 7}, []int{4}, []int{4}},
		{"new appended", []int{4, n}, []int{1, 4, 9}, []int{4, n, 1, 9}},
		{"all gone", []int{4, 2}, nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keepSlots(tt.previous, tt.found))
		})
	}
}

func model(t *testing.T, positions ...r3.Vec) *contact.Model {
	t.Helper()
	m := contact.NewModel()
	for i, pos := range positions {
		require.NoError(t, m.AddParticle(particle.New(i+1, 0.1, glass, pos)))
	}
	return m
}

func TestUpdateNeighbours(t *testing.T) {
	m := model(t, r3.Vec{}, r3.Vec{X: 0.19}, r3.Vec{X: 0.5}, r3.Vec{X: 0.2, Y: 0.01})
	ctx := dynamo.DefaultStepContext()
	st := New(0.01).Update(m, &ctx)

	p1, _ := m.Particle(1)
	p2, _ := m.Particle(2)
	p3, _ := m.Particle(3)
	assert.Equal(t, []int{2, 4}, p1.Neighbours)
	assert.Equal(t, []int{1, 4}, p2.Neighbours)
	assert.Empty(t, p3.Neighbours)
	assert.Equal(t, 3, st.Pairs)
	assert.InDelta(t, 0.21, st.CellSize, 1e-15)

	// neighbour 2 moves away, the slot survives as a placeholder
	p2.Node.Position = r3.Vec{X: 1}
	p1.History.Neighbours[1].Elastic = r3.Vec{X: 7}
	New(0.01).Update(m, &ctx)
	assert.Equal(t, []int{particle.NoNeighbour, 4}, p1.Neighbours)
	assert.Equal(t, r3.Vec{X: 7}, p1.History.Neighbours[1].Elastic)
}

func TestUpdatePeriodic(t *testing.T) {
	m := model(t, r3.Vec{X: 0.05, Y: 0.5, Z: 0.5}, r3.Vec{X: 0.9, Y: 0.5, Z: 0.5})
	ctx := dynamo.DefaultStepContext()
	ctx.Periodic = true
	ctx.DomainMax = r3.Vec{X: 1, Y: 1, Z: 1}

	New(0).Update(m, &ctx)
	p1, _ := m.Particle(1)
	assert.Equal(t, []int{2}, p1.Neighbours)

	ctx.Periodic = false
	New(0).Update(m, &ctx)
	assert.Empty(t, p1.Neighbours)
}

func TestWallCandidates(t *testing.T) {
	steel := &material.Material{ID: 2, Name: "steel", Young: 2e11, Poisson: 0.3, Density: 7800}
	w, err := boundary.NewWall(1, steel,
		boundary.NewNode(0, r3.Vec{}),
		boundary.NewNode(1, r3.Vec{X: 1}),
		boundary.NewNode(2, r3.Vec{X: 1, Y: 1}),
		boundary.NewNode(3, r3.Vec{Y: 1}),
	)
	require.NoError(t, err)

	tests := []struct {
		name string
		pos  r3.Vec
		want boundary.ContactType
	}{
		{"face", r3.Vec{X: 0.5, Y: 0.5, Z: 0.05}, boundary.Face},
		{"edge", r3.Vec{X: 0.5, Y: -0.05}, boundary.Edge},
		{"vertex", r3.Vec{X: 1.05, Y: 1.05}, boundary.Vertex},
		{"far", r3.Vec{X: 0.5, Y: 0.5, Z: 1}, boundary.NoContact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights, ok := candidateWeights(w, tt.pos, 0.1)
			assert.Equal(t, tt.want != boundary.NoContact, ok)
			assert.Equal(t, tt.want, boundary.ClassifyWeights(weights))
			if ok {
				_, typ := w.RelativeData(tt.pos, 0.1, weights)
				assert.Equal(t, tt.want, typ)
			}
		})
	}
}

func TestUpdateBoundaries(t *testing.T) {
	m := model(t, r3.Vec{X: 0.25, Y: 0.25, Z: 0.05}, r3.Vec{X: 0.5, Y: 0.5, Z: 2})
	w, err := boundary.NewWall(8, glass,
		boundary.NewNode(0, r3.Vec{}),
		boundary.NewNode(1, r3.Vec{X: 1}),
		boundary.NewNode(2, r3.Vec{Y: 1}),
	)
	require.NoError(t, err)
	require.NoError(t, m.AddWall(w))
	require.NoError(t, m.AddPointCondition(boundary.NewPointCondition(3, glass, boundary.NewNode(5, r3.Vec{X: 0.5, Y: 0.5, Z: 2.05}))))

	ctx := dynamo.DefaultStepContext()
	st := New(0).Update(m, &ctx)
	assert.Equal(t, 1, st.WallCandidates)

	low, _ := m.Particle(1)
	high, _ := m.Particle(2)
	require.Len(t, low.Walls, 1)
	assert.Equal(t, 8, low.Walls[0].ID)
	assert.Len(t, low.History.Walls, 1)
	assert.Empty(t, high.Walls)
	assert.Equal(t, []int{3}, high.PointConditions)
	assert.Len(t, high.History.Points, 1)
}
