package material

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/laws"
)

const ExampleLibrary = `# Material library.
#
# Materials are referenced by name in run configurations.

[material "glass"]
ID = 1
Young = 1e7
Poisson = 0.25
Density = 2500

[material "steel"]
ID = 2
Young = 2.1e11
Poisson = 0.3
Density = 7850

# A pair section applies to both orders of its two materials.
[pair "glass glass"]
ForceLaw = hertz
Friction = 0.5
Restitution = 0.8
RollingFrictionLaw = constant_torque
RollingFriction = 0.01

[pair "glass steel"]
ForceLaw = hertz
Friction = 0.3
Restitution = 0.6
ComputeWear = true
WearSeverity = 0.001
ImpactWearSeverity = 0.001
BrinellHardness = 2e9
`

type iniMaterial struct {
	ID      int
	Young   float64
	Poisson float64
	Density float64
}

type iniPair struct {
	ForceLaw           string
	RollingFrictionLaw string

	Stiffness       float64
	TangentialRatio float64
	Friction        float64
	Restitution     float64
	SurfaceEnergy   float64
	RollingFriction float64

	ComputeWear        bool
	WearSeverity       float64
	ImpactWearSeverity float64
	BrinellHardness    float64
}

type iniLibrary struct {
	Material map[string]*iniMaterial
	Pair     map[string]*iniPair
}

// LoadINI reads a material library file.
func LoadINI(path string) (*Registry, error) {
	lib := iniLibrary{}
	if err := gcfg.ReadFileInto(&lib, path); err != nil {
		return nil, fmt.Errorf("read material library %s: %w", path, err)
	}
	return lib.registry()
}

// ParseINI reads a material library from a string.
func ParseINI(src string) (*Registry, error) {
	lib := iniLibrary{}
	if err := gcfg.ReadStringInto(&lib, src); err != nil {
		return nil, fmt.Errorf("parse material library: %w", err)
	}
	return lib.registry()
}

func (lib *iniLibrary) registry() (*Registry, error) {
	r := NewRegistry()

	names := make([]string, 0, len(lib.Material))
	for name := range lib.Material {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := lib.Material[name]
		err := r.AddMaterial(Material{
			ID: m.ID, Name: name,
			Young: m.Young, Poisson: m.Poisson, Density: m.Density,
		})
		if err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(lib.Pair))
	for k := range lib.Pair {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fields := strings.Fields(key)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: pair %q must name two materials", dynamo.ErrInvalidConfig, key)
		}
		a, ok := r.MaterialByName(fields[0])
		if !ok {
			return nil, fmt.Errorf("%w: pair %q: unknown material %q", dynamo.ErrInvalidConfig, key, fields[0])
		}
		b, ok := r.MaterialByName(fields[1])
		if !ok {
			return nil, fmt.Errorf("%w: pair %q: unknown material %q", dynamo.ErrInvalidConfig, key, fields[1])
		}
		if err := r.SetPair(a.ID, b.ID, lib.Pair[key].properties()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (p *iniPair) properties() PairProperties {
	return PairProperties{
		ForceLaw:        p.ForceLaw,
		RollingFriction: p.RollingFrictionLaw,
		Law: laws.Params{
			Stiffness:       p.Stiffness,
			TangentialRatio: p.TangentialRatio,
			Friction:        p.Friction,
			Restitution:     p.Restitution,
			SurfaceEnergy:   p.SurfaceEnergy,
			RollingFriction: p.RollingFriction,
		},
		Wear: Wear{
			Compute:         p.ComputeWear,
			Severity:        p.WearSeverity,
			ImpactSeverity:  p.ImpactWearSeverity,
			BrinellHardness: p.BrinellHardness,
		},
	}
}
