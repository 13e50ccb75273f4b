package syncer

import "errors"

var (
	// ErrStaleVersion indicates an edit based on a version the
	// coordinator has already advanced past. The client resolves it by
	// requesting a full resync, never by retrying the edit.
	ErrStaleVersion = errors.New("edit based on stale version")

	// ErrStorage indicates the version store refused the append. The
	// in-memory layout did not advance; the edit may be retried.
	ErrStorage = errors.New("version store append failed")

	// ErrNoBridge indicates a device command was submitted while no
	// device bridge is configured.
	ErrNoBridge = errors.New("no device bridge configured")

	// ErrNoChanges indicates a revert whose target equals the current
	// layout, which would produce an empty version.
	ErrNoChanges = errors.New("revert target matches current layout")
)
