// Package layout holds the entity model for the home floor plan: rooms,
// walls, and devices, aggregated into a versioned Layout.
//
// The Model type applies structural edit operations atomically: an
// operation is staged against a deep copy, validated (geometry
// well-formedness, room overlap limits, device state shape), and only then
// committed. A failed operation leaves the layout untouched.
//
// Model is not safe for concurrent use; the sync coordinator serialises
// all access to it. Everything handed out of the package (snapshots, diffs)
// is an independent copy of the live state.
package layout
