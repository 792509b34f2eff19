// Package fieldline traces field lines of the gradient of a scalar grid.
//
// Stages, each usable on its own:
//
//	ComputeGradient  grid -> GradientField (clamped central differences)
//	SelectSeeds      GradientField -> []grid.CellIndex (magnitude band)
//	Integrator       seeds -> []Streamline (fixed step, nearest-cell sampling)
//	FilterByLength   []Streamline -> []Streamline (closed arc-length range)
//	Encoder          []Streamline -> text document
//
// Pipeline composes them and owns file I/O. Grid and GradientField are
// read-only once built and are shared by the integration workers without
// locking; every worker writes only its own result slots.
package fieldline
