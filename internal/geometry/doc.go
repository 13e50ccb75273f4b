// Package geometry is the 2D polygon kernel used by the layout model.
//
// It provides boolean set operations (union, intersection, difference),
// boundary offsetting with mitered or rounded joins, polyline stroking for
// wall outlines, and validation of polygon well-formedness.
//
// # Robustness
//
// Boolean operations run on the Martinez-Rueda clipper from polyclip-go.
// Before clipping, all coordinates are scaled by a fixed factor (1e6) and
// rounded to integers. Integral float64 values of this magnitude are exact,
// so the clipper sees a fixed-precision grid and produces deterministic
// results even for near-degenerate inputs. Results are scaled back after.
//
// Polygons are never silently repaired: malformed input fails Validate and
// callers are expected to reject the mutation that produced it.
package geometry
