package contact

import (
	"fmt"

	"github.com/san-kum/demcontact/internal/boundary"
	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/particle"
)

// Model is the arena of bodies seen by the engine. Particles are stored
// densely and looked up by stable id.
type Model struct {
	Particles []*particle.Particle
	Walls     []*boundary.Wall
	Points    []*boundary.PointCondition
	Nodes     []*boundary.Node

	index  map[int]int
	walls  map[int]*boundary.Wall
	points map[int]*boundary.PointCondition
}

func NewModel() *Model {
	return &Model{
		index:  make(map[int]int),
		walls:  make(map[int]*boundary.Wall),
		points: make(map[int]*boundary.PointCondition),
	}
}

func (m *Model) AddParticle(p *particle.Particle) error {
	if _, ok := m.index[p.ID]; ok {
		return fmt.Errorf("%w: duplicate particle id %d", dynamo.ErrInvalidConfig, p.ID)
	}
	if p.Material == nil {
		return fmt.Errorf("%w: particle %d has no material", dynamo.ErrInvalidConfig, p.ID)
	}
	m.index[p.ID] = len(m.Particles)
	m.Particles = append(m.Particles, p)
	return nil
}

// RemoveParticle drops a particle from the arena. Neighbour slots still
// naming it are skipped until the next search.
func (m *Model) RemoveParticle(id int) bool {
	i, ok := m.index[id]
	if !ok {
		return false
	}
	last := len(m.Particles) - 1
	m.Particles[i] = m.Particles[last]
	m.index[m.Particles[i].ID] = i
	m.Particles[last] = nil
	m.Particles = m.Particles[:last]
	delete(m.index, id)
	return true
}

func (m *Model) AddNode(n *boundary.Node) {
	m.Nodes = append(m.Nodes, n)
}

func (m *Model) AddWall(w *boundary.Wall) error {
	if _, ok := m.walls[w.ID]; ok {
		return fmt.Errorf("%w: duplicate wall id %d", dynamo.ErrInvalidConfig, w.ID)
	}
	if w.Material == nil {
		return fmt.Errorf("%w: wall %d has no material", dynamo.ErrInvalidConfig, w.ID)
	}
	m.walls[w.ID] = w
	m.Walls = append(m.Walls, w)
	return nil
}

func (m *Model) AddPointCondition(pc *boundary.PointCondition) error {
	if _, ok := m.points[pc.ID]; ok {
		return fmt.Errorf("%w: duplicate point condition id %d", dynamo.ErrInvalidConfig, pc.ID)
	}
	if pc.Material == nil {
		return fmt.Errorf("%w: point condition %d has no material", dynamo.ErrInvalidConfig, pc.ID)
	}
	m.points[pc.ID] = pc
	m.Points = append(m.Points, pc)
	return nil
}

func (m *Model) Particle(id int) (*particle.Particle, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.Particles[i], true
}

// Index returns the arena position of a particle.
func (m *Model) Index(id int) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

func (m *Model) Wall(id int) (*boundary.Wall, bool) {
	w, ok := m.walls[id]
	return w, ok
}

func (m *Model) Point(id int) (*boundary.PointCondition, bool) {
	pc, ok := m.points[id]
	return pc, ok
}
