// Package particle holds the per-particle state read and written by the
// contact engine: kinematics, neighbour slots, persisted contact history,
// owned law instances and the optional stress and strain tensors.
package particle

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/laws"
	"github.com/san-kum/demcontact/internal/material"
)

// NoNeighbour marks a neighbour slot whose body was removed.
const NoNeighbour = -1

type Flag uint32

const (
	HasRotation Flag = 1 << iota
	HasRollingFriction
	HasStressTensor
	HasGlobalDamping
	// Sticky particles are glued to a wall.
	Sticky
	BelongsToCluster
	// NewEntity marks a particle injected this step.
	NewEntity
	// Blocked marks an injector holding a newly injected particle.
	Blocked
)

// Node is the kinematic record of a particle centre.
type Node struct {
	Position          r3.Vec
	Velocity          r3.Vec
	AngularVelocity   r3.Vec
	DeltaDisplacement r3.Vec
	DeltaRotation     r3.Vec
	Orientation       quat.Number

	ExternalForce  r3.Vec
	ExternalMoment r3.Vec
	// Fixed and FixedRotation mark prescribed velocity DOFs.
	Fixed         [3]bool
	FixedRotation [3]bool

	TotalForce        r3.Vec
	TotalMoment       r3.Vec
	ElasticForce      r3.Vec
	ContactForce      r3.Vec
	RigidElementForce r3.Vec
	Reaction          r3.Vec
	ReactionMoment    r3.Vec
}

// PreviousPosition is the position at the start of the step.
func (n *Node) PreviousPosition() r3.Vec {
	return r3.Sub(n.Position, n.DeltaDisplacement)
}

// WallSlot is a candidate boundary element with the interpolation weights
// of the closest point, as supplied by the neighbour search.
type WallSlot struct {
	ID      int
	Weights [4]float64
}

// Scheme advances the kinematics of a particle from its total force and
// moment.
type Scheme interface {
	Name() string
	Clone() Scheme
	Move(n *Node, mass, dt float64)
	Rotate(n *Node, inertia, dt float64)
}

// WallFollower is implemented by schemes that glue a particle to a wall.
// The particle does not collide with the wall it follows.
type WallFollower interface {
	FollowedWall() int
}

type Particle struct {
	ID       int
	Node     Node
	Radius   float64
	Mass     float64
	Inertia  float64
	Material *material.Material
	Cluster  int
	Flags    Flag

	// Neighbours holds neighbour ids, NoNeighbour for removed ones.
	Neighbours      []int
	Walls           []WallSlot
	PointConditions []int
	History         History

	RollingFriction laws.RollingFrictionLaw
	GlobalDamping   laws.GlobalDampingLaw

	TranslationalScheme Scheme
	RotationalScheme    Scheme

	StressTensor             *mat.Dense
	RawStressTensor          *mat.Dense
	SymmStressTensor         *mat.Dense
	StrainTensor             *mat.Dense
	DifferentialStrainTensor *mat.Dense

	// PartialRepresentativeVolume is accumulated from wall contacts.
	PartialRepresentativeVolume float64
	RepresentativeVolume        float64

	Energy Energy
}

// Energy is the contact energy bookkeeping of one particle.
type Energy struct {
	Elastic                float64
	ViscodampingDissipated float64
	FrictionalDissipated   float64

	// MaxNormalForceTimesRadius is the largest normal ball-to-ball force
	// of the step times the radius.
	MaxNormalForceTimesRadius float64
}

// New creates a particle of the given material at rest. Mass and inertia
// are those of a solid sphere.
func New(id int, radius float64, m *material.Material, position r3.Vec) *Particle {
	p := &Particle{
		ID:       id,
		Radius:   radius,
		Material: m,
		Cluster:  -1,
	}
	p.Node.Position = position
	p.Node.Orientation = quat.Number{Real: 1}
	p.Mass = m.Density * p.Volume()
	p.Inertia = 0.4 * p.Mass * radius * radius
	p.History.init()
	return p
}

func (p *Particle) Is(f Flag) bool { return p.Flags&f != 0 }

func (p *Particle) Set(f Flag, on bool) {
	if on {
		p.Flags |= f
		return
	}
	p.Flags &^= f
}

// Volume is the volume of the sphere.
func (p *Particle) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * p.Radius * p.Radius * p.Radius
}

// Young returns the Young's modulus of the particle material.
func (p *Particle) Young() float64 { return p.Material.Young }

// EnableStressTensor allocates the tensors tracked when stress computation
// is on.
func (p *Particle) EnableStressTensor() {
	p.Set(HasStressTensor, true)
	p.StressTensor = mat.NewDense(3, 3, nil)
	p.RawStressTensor = mat.NewDense(3, 3, nil)
	p.SymmStressTensor = mat.NewDense(3, 3, nil)
	p.StrainTensor = mat.NewDense(3, 3, nil)
	p.DifferentialStrainTensor = mat.NewDense(3, 3, nil)
}

// SetNeighbours replaces the neighbour list and carries the history over
// by id.
func (p *Particle) SetNeighbours(ids []int) {
	p.Neighbours = append(p.Neighbours[:0], ids...)
	p.History.rebuildNeighbours(p.Neighbours)
}

// SetWalls replaces the wall candidates and carries the history over by id.
func (p *Particle) SetWalls(slots []WallSlot) {
	p.Walls = append(p.Walls[:0], slots...)
	ids := make([]int, len(slots))
	for i := range slots {
		ids[i] = slots[i].ID
	}
	p.History.rebuildWalls(ids)
}

// SetPointConditions replaces the point-condition list. Point history is
// kept by position in the list.
func (p *Particle) SetPointConditions(ids []int) {
	p.PointConditions = append(p.PointConditions[:0], ids...)
	p.History.resizePoints(len(ids))
}

// FollowedWall returns the wall the particle is glued to.
func (p *Particle) FollowedWall() (int, bool) {
	if !p.Is(Sticky) {
		return 0, false
	}
	if f, ok := p.TranslationalScheme.(WallFollower); ok {
		return f.FollowedWall(), true
	}
	return 0, false
}

// SwapSchemeToGluedToWall makes the particle follow a wall.
func (p *Particle) SwapSchemeToGluedToWall(glued Scheme) {
	p.TranslationalScheme = glued
	p.RotationalScheme = glued
	p.Set(Sticky, true)
}

// ComputeReactions sets the reaction of every prescribed DOF. Moment
// reactions are only computed for rotating particles.
func (p *Particle) ComputeReactions() {
	n := &p.Node
	n.Reaction = r3.Vec{}
	if n.Fixed[0] {
		n.Reaction.X = -n.TotalForce.X
	}
	if n.Fixed[1] {
		n.Reaction.Y = -n.TotalForce.Y
	}
	if n.Fixed[2] {
		n.Reaction.Z = -n.TotalForce.Z
	}

	n.ReactionMoment = r3.Vec{}
	if !p.Is(HasRotation) {
		return
	}
	if n.FixedRotation[0] {
		n.ReactionMoment.X = -n.TotalMoment.X
	}
	if n.FixedRotation[1] {
		n.ReactionMoment.Y = -n.TotalMoment.Y
	}
	if n.FixedRotation[2] {
		n.ReactionMoment.Z = -n.TotalMoment.Z
	}
}

func (p *Particle) KineticEnergy() float64 {
	return 0.5 * p.Mass * r3.Norm2(p.Node.Velocity)
}

func (p *Particle) RotationalEnergy() float64 {
	return 0.5 * p.Inertia * r3.Norm2(p.Node.AngularVelocity)
}

// GravitationalEnergy is measured from the origin.
func (p *Particle) GravitationalEnergy(gravity r3.Vec) float64 {
	return -p.Mass * r3.Dot(gravity, p.Node.Position)
}

func (p *Particle) Momentum() r3.Vec {
	return r3.Scale(p.Mass, p.Node.Velocity)
}

func (p *Particle) AngularMomentum() r3.Vec {
	return r3.Scale(p.Inertia, p.Node.AngularVelocity)
}
