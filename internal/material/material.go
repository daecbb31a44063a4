// Package material is the property lookup of the contact engine: material
// elastic constants and the per-pair law prototypes and wear coefficients,
// keyed by the ordered pair of material ids.
//
// A Registry is filled during setup and read concurrently afterwards. It is
// never mutated during a step; callers clone law prototypes instead of
// sharing them.
package material

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/laws"
)

type Material struct {
	ID      int
	Name    string
	Young   float64
	Poisson float64
	Density float64
}

func (m *Material) Validate() error {
	if !(m.Young > 0) {
		return fmt.Errorf("%w: material %q: young's modulus must be positive", dynamo.ErrInvalidConfig, m.Name)
	}
	if m.Poisson < 0 || m.Poisson >= 0.5 {
		return fmt.Errorf("%w: material %q: poisson ratio must be in [0, 0.5)", dynamo.ErrInvalidConfig, m.Name)
	}
	if !(m.Density > 0) {
		return fmt.Errorf("%w: material %q: density must be positive", dynamo.ErrInvalidConfig, m.Name)
	}
	return nil
}

// Wear holds the abrasive wear coefficients of a particle-wall pair.
type Wear struct {
	Compute         bool    `yaml:"compute"`
	Severity        float64 `yaml:"severity"`
	ImpactSeverity  float64 `yaml:"impact_severity"`
	BrinellHardness float64 `yaml:"brinell_hardness"`
}

type PairProperties struct {
	ForceLaw        string
	RollingFriction string
	Law             laws.Params
	Wear            Wear

	forceLaw laws.ForceLaw
	rolling  laws.RollingFrictionLaw
}

// PairKey is ordered: the first id is the material of the body evaluating
// the contact.
type PairKey struct{ A, B int }

type Registry struct {
	materials map[int]*Material
	byName    map[string]int
	pairs     map[PairKey]*PairProperties
}

func NewRegistry() *Registry {
	return &Registry{
		materials: make(map[int]*Material),
		byName:    make(map[string]int),
		pairs:     make(map[PairKey]*PairProperties),
	}
}

func (r *Registry) AddMaterial(m Material) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := r.materials[m.ID]; ok {
		return fmt.Errorf("%w: duplicate material id %d", dynamo.ErrInvalidConfig, m.ID)
	}
	if m.Name != "" {
		if _, ok := r.byName[m.Name]; ok {
			return fmt.Errorf("%w: duplicate material name %q", dynamo.ErrInvalidConfig, m.Name)
		}
		r.byName[m.Name] = m.ID
	}
	r.materials[m.ID] = &m
	return nil
}

func (r *Registry) Material(id int) (*Material, bool) {
	m, ok := r.materials[id]
	return m, ok
}

func (r *Registry) MaterialByName(name string) (*Material, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.materials[id], true
}

// Materials returns the registered materials ordered by id.
func (r *Registry) Materials() []*Material {
	out := make([]*Material, 0, len(r.materials))
	for _, m := range r.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetPair registers the properties for both orders of a and b.
func (r *Registry) SetPair(a, b int, p PairProperties) error {
	if err := r.SetOrderedPair(a, b, p); err != nil {
		return err
	}
	if a != b {
		return r.SetOrderedPair(b, a, p)
	}
	return nil
}

// SetOrderedPair registers the properties used when a material a body
// evaluates a contact with a material b body.
func (r *Registry) SetOrderedPair(a, b int, p PairProperties) error {
	for _, id := range []int{a, b} {
		if _, ok := r.materials[id]; !ok {
			return fmt.Errorf("%w: pair references unknown material id %d", dynamo.ErrInvalidConfig, id)
		}
	}
	if err := validatePair(&p); err != nil {
		return fmt.Errorf("pair (%d, %d): %w", a, b, err)
	}

	law, err := laws.NewForceLaw(p.ForceLaw, p.Law)
	if err != nil {
		return fmt.Errorf("%w: pair (%d, %d): %v", dynamo.ErrInvalidConfig, a, b, err)
	}
	p.forceLaw = law
	if p.RollingFriction != "" {
		rf, err := laws.NewRollingFriction(p.RollingFriction, p.Law)
		if err != nil {
			return fmt.Errorf("%w: pair (%d, %d): %v", dynamo.ErrInvalidConfig, a, b, err)
		}
		p.rolling = rf
	}
	r.pairs[PairKey{a, b}] = &p
	return nil
}

func validatePair(p *PairProperties) error {
	l := p.Law
	switch {
	case l.Friction < 0:
		return fmt.Errorf("%w: friction must be non-negative", dynamo.ErrInvalidConfig)
	case l.Restitution < 0 || l.Restitution > 1:
		return fmt.Errorf("%w: restitution must be in [0, 1]", dynamo.ErrInvalidConfig)
	case l.Stiffness < 0 || l.TangentialRatio < 0:
		return fmt.Errorf("%w: stiffness must be non-negative", dynamo.ErrInvalidConfig)
	case l.RollingFriction < 0 || l.SurfaceEnergy < 0:
		return fmt.Errorf("%w: rolling friction and surface energy must be non-negative", dynamo.ErrInvalidConfig)
	case p.Wear.Severity < 0 || p.Wear.ImpactSeverity < 0 || p.Wear.BrinellHardness < 0:
		return fmt.Errorf("%w: wear coefficients must be non-negative", dynamo.ErrInvalidConfig)
	case math.IsNaN(l.Friction + l.Restitution + l.Stiffness):
		return fmt.Errorf("%w: NaN law parameter", dynamo.ErrInvalidConfig)
	}
	return nil
}

func (r *Registry) Pair(a, b int) (*PairProperties, error) {
	p, ok := r.pairs[PairKey{a, b}]
	if !ok {
		return nil, fmt.Errorf("%w: (%d, %d)", dynamo.ErrUnknownPair, a, b)
	}
	return p, nil
}

func (r *Registry) HasPair(a, b int) bool {
	_, ok := r.pairs[PairKey{a, b}]
	return ok
}

func (r *Registry) CloneForceLaw(a, b int) (laws.ForceLaw, error) {
	p, err := r.Pair(a, b)
	if err != nil {
		return nil, err
	}
	return p.forceLaw.Clone(), nil
}

// CloneRollingFriction returns nil when the pair has no rolling friction law.
func (r *Registry) CloneRollingFriction(a, b int) (laws.RollingFrictionLaw, error) {
	p, err := r.Pair(a, b)
	if err != nil {
		return nil, err
	}
	if p.rolling == nil {
		return nil, nil
	}
	return p.rolling.Clone(), nil
}

// RequirePairs fails if any ordered combination of ids has no properties.
func (r *Registry) RequirePairs(ids ...int) error {
	for _, a := range ids {
		for _, b := range ids {
			if !r.HasPair(a, b) {
				return fmt.Errorf("%w: no properties for materials (%d, %d)", dynamo.ErrInvalidConfig, a, b)
			}
		}
	}
	return nil
}

// Pairs returns the registered keys ordered by (A, B).
func (r *Registry) Pairs() []PairKey {
	out := make([]PairKey, 0, len(r.pairs))
	for k := range r.pairs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
