package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for contact-force evaluation.
var (
	// ErrCoincidentBodies indicates two centres closer than machine epsilon.
	// The pair is skipped for the step; it is never returned as fatal.
	ErrCoincidentBodies = errors.New("dynamo: coincident bodies, contact geometry undefined")

	// ErrNoContact indicates a boundary classification without contact.
	ErrNoContact = errors.New("dynamo: no contact")

	// ErrZeroHardness indicates a wear computation against a zero Brinell hardness.
	ErrZeroHardness = errors.New("dynamo: brinell hardness cannot be zero")

	// ErrZeroAreaFacet indicates a wall element with zero area in wear computation.
	ErrZeroAreaFacet = errors.New("dynamo: wall element with zero area")

	// ErrZeroLengthLine indicates a line element of zero length in wear projection.
	ErrZeroLengthLine = errors.New("dynamo: line element has zero length")

	// ErrNonFinite indicates a NaN or Inf force or moment.
	ErrNonFinite = errors.New("dynamo: non-finite force or moment")

	// ErrDegenerateMaterial indicates material parameters a force law cannot use.
	ErrDegenerateMaterial = errors.New("dynamo: degenerate material parameters")

	// ErrUnknownPair indicates a material pair missing from the property registry.
	ErrUnknownPair = errors.New("dynamo: unknown material pair")

	// ErrInvalidConfig indicates a configuration rejected before the step loop.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")
)

// StepError wraps a fatal error with the particle and step it came from.
type StepError struct {
	ParticleID int
	Step       int
	Time       float64
	Wrapped    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("particle %d, step %d (t=%.6g): %v", e.ParticleID, e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// Fatal reports whether err must abort the simulation.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrCoincidentBodies) && !errors.Is(err, ErrNoContact)
}
