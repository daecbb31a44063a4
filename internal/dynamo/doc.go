// Package dynamo provides the primitives shared by every stage of a
// discrete-element step.
//
//   - [StepContext]: immutable per-step input (time, dt, gravity, domain, toggles)
//   - [Options]: global feature switches read once per step
//   - [ParallelFor]: data-parallel loop over particles
//   - sentinel errors and [StepError]
//
// # Thread Safety
//
// A StepContext is passed by pointer into every force evaluation and must
// not be mutated while a step is in flight. ParallelFor gives no ordering
// guarantee between indices.
package dynamo
