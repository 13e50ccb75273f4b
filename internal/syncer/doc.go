// Package syncer serialises all layout mutations and keeps connected
// clients in lockstep with the version sequence.
//
// The Coordinator owns the live layout model. Edits claim the version
// they were based on; an edit whose base version no longer matches is
// rejected as stale and the client must resync from a fresh snapshot.
// Accepted edits are made durable in the version store before the
// in-memory layout advances, then the resulting diff is broadcast to
// every connected client.
//
// Device state reports flow through the same component but are an
// ephemeral overlay: they update the live model and are broadcast
// without creating a new layout version.
package syncer
