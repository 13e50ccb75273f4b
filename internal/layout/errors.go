package layout

import "errors"

// Domain errors for the layout package.
//
// These can be checked with errors.Is:
//
//	if errors.Is(err, layout.ErrInvalidGeometry) {
//	    // reject the edit, state is unchanged
//	}
var (
	// ErrInvalidGeometry is returned when an operation would produce a
	// malformed boundary or violate the room overlap tolerance.
	ErrInvalidGeometry = errors.New("layout: invalid geometry")

	// ErrUnknownEntity is returned when an operation references a room,
	// wall, or device that does not exist.
	ErrUnknownEntity = errors.New("layout: unknown entity")

	// ErrDuplicateEntity is returned when adding an entity whose ID is
	// already present.
	ErrDuplicateEntity = errors.New("layout: entity already exists")

	// ErrInvalidOperation is returned for operations that are structurally
	// malformed (missing payload, unknown entity type or change kind).
	ErrInvalidOperation = errors.New("layout: invalid operation")

	// ErrInvalidDevice is returned when a device fails kind or state
	// validation.
	ErrInvalidDevice = errors.New("layout: invalid device")

	// ErrInvalidCommand is returned when a device command does not match
	// the device's kind.
	ErrInvalidCommand = errors.New("layout: invalid command")

	// ErrVersionMismatch is returned when a diff's source version does not
	// match the layout it is applied to.
	ErrVersionMismatch = errors.New("layout: diff version mismatch")
)
