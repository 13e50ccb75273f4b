package hass

import "errors"

var (
	// ErrNotConnected indicates a command was pushed while the bridge
	// has no live connection to Home Assistant.
	ErrNotConnected = errors.New("not connected to home assistant")

	// ErrAuthFailed indicates Home Assistant rejected the access token.
	// Retrying with the same token cannot succeed.
	ErrAuthFailed = errors.New("home assistant rejected access token")

	// ErrUnsupportedCommand indicates a command with no service mapping
	// for the entity's domain.
	ErrUnsupportedCommand = errors.New("no service mapping for command")
)
