// Package search is the broad phase that fills the neighbour and boundary
// candidate lists consumed by the contact engine.
package search

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type cellKey [3]int

// Grid is a uniform cell grid. Cell size must be at least the largest
// interaction distance so that all candidates lie in the 27 cells around
// a point. Cell slices are reused between rebuilds.
type Grid struct {
	width    [3]float64
	origin   r3.Vec
	periodic bool
	dims     [3]int
	cells    map[cellKey][]int
}

func NewGrid() *Grid {
	return &Grid{cells: make(map[cellKey][]int)}
}

// Reset empties the grid for a new cell size. In a periodic box of the
// given size the cells are widened so that a whole number fits.
func (g *Grid) Reset(cellSize float64, origin, size r3.Vec, periodic bool) {
	g.origin = origin
	g.periodic = periodic
	extent := [3]float64{size.X, size.Y, size.Z}
	for i := range g.width {
		g.width[i] = cellSize
		g.dims[i] = 0
		if periodic {
			n := int(math.Floor(extent[i] / cellSize))
			if n < 1 {
				n = 1
			}
			g.dims[i] = n
			g.width[i] = extent[i] / float64(n)
		}
	}
	for k, items := range g.cells {
		g.cells[k] = items[:0]
	}
}

func (g *Grid) key(pos r3.Vec) cellKey {
	p := [3]float64{pos.X - g.origin.X, pos.Y - g.origin.Y, pos.Z - g.origin.Z}
	var k cellKey
	for i := range k {
		k[i] = int(math.Floor(p[i] / g.width[i]))
	}
	return g.wrap(k)
}

func (g *Grid) wrap(k cellKey) cellKey {
	if !g.periodic {
		return k
	}
	for i := range k {
		k[i] %= g.dims[i]
		if k[i] < 0 {
			k[i] += g.dims[i]
		}
	}
	return k
}

func (g *Grid) Insert(pos r3.Vec, index int) {
	k := g.key(pos)
	g.cells[k] = append(g.cells[k], index)
}

// QueryAround calls fn for every item in the cells around pos. Each cell
// is visited once even when a periodic box is only one or two cells wide.
// Iteration stops when fn returns true.
func (g *Grid) QueryAround(pos r3.Vec, fn func(index int) bool) {
	c := g.key(pos)
	var visited [27]cellKey
	n := 0
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				k := g.wrap(cellKey{c[0] + dx, c[1] + dy, c[2] + dz})
				if seen(visited[:n], k) {
					continue
				}
				visited[n] = k
				n++
				for _, i := range g.cells[k] {
					if fn(i) {
						return
					}
				}
			}
		}
	}
}

func seen(keys []cellKey, k cellKey) bool {
	for _, v := range keys {
		if v == k {
			return true
		}
	}
	return false
}
