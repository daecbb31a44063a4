// Package viz provides a terminal monitor for running contact simulations.
//
// The monitor is a Bubble Tea program:
//
//   - [Model]: steps a simulator each frame and plots its energies
//   - [Canvas]: Braille-based pixel canvas for the x-z projection of the
//     particles and walls
//   - Theme selection with 5 built-in color schemes
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Rebuild from the initial configuration
//	+/-   - Change steps per frame
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
