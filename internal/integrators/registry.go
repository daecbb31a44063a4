package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/demcontact/internal/particle"
)

var schemes = map[string]func() particle.Scheme{
	"symplectic_euler": func() particle.Scheme { return NewSymplecticEuler() },
	"velocity_verlet":  func() particle.Scheme { return NewVelocityVerlet() },
}

func New(name string) (particle.Scheme, error) {
	fn, ok := schemes[name]
	if !ok {
		return nil, fmt.Errorf("unknown integration scheme: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
