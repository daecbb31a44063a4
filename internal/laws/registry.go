package laws

import (
	"fmt"
	"sort"
)

var forceLaws = map[string]func(Params) ForceLaw{
	"linear": func(p Params) ForceLaw { return NewLinear(p) },
	"hertz":  func(p Params) ForceLaw { return NewHertz(p) },
}

var rollingLaws = map[string]func(Params) RollingFrictionLaw{
	"constant_torque": func(p Params) RollingFrictionLaw { return NewConstantTorque(p.RollingFriction) },
	"resistance":      func(p Params) RollingFrictionLaw { return NewResistance(p.RollingFriction) },
}

var dampingLaws = map[string]func(float64) GlobalDampingLaw{
	"non_viscous": func(c float64) GlobalDampingLaw { return NewNonViscous(c) },
	"viscous":     func(c float64) GlobalDampingLaw { return NewViscous(c) },
}

func NewForceLaw(name string, p Params) (ForceLaw, error) {
	fn, ok := forceLaws[name]
	if !ok {
		return nil, fmt.Errorf("unknown force law: %s", name)
	}
	return fn(p), nil
}

func NewRollingFriction(name string, p Params) (RollingFrictionLaw, error) {
	fn, ok := rollingLaws[name]
	if !ok {
		return nil, fmt.Errorf("unknown rolling friction law: %s", name)
	}
	return fn(p), nil
}

func NewGlobalDamping(name string, coefficient float64) (GlobalDampingLaw, error) {
	fn, ok := dampingLaws[name]
	if !ok {
		return nil, fmt.Errorf("unknown global damping law: %s", name)
	}
	return fn(coefficient), nil
}

func ForceLawNames() []string { return keys(forceLaws) }

func RollingFrictionNames() []string { return keys(rollingLaws) }

func GlobalDampingNames() []string { return keys(dampingLaws) }

func keys[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
