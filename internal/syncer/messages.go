package syncer

import (
	"encoding/json"
	"fmt"

	"github.com/homeatlas/atlas-core/internal/layout"
)

// Sync protocol message types.
const (
	MsgHello             = "hello"
	MsgFullSync          = "full_sync"
	MsgEditRequest       = "edit_request"
	MsgDiff              = "diff"
	MsgStaleReject       = "stale_reject"
	MsgDeviceCommand     = "device_command"
	MsgDeviceStateUpdate = "device_state_update"
	MsgError             = "error"
)

// Message is the wire envelope for the sync protocol. ID is chosen by
// the client on requests and echoed back on the direct response, so a
// client can match rejections to the edit that caused them.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds a wire-ready message from a typed payload.
func Encode(msgType, id string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling %s payload: %w", msgType, err)
		}
		raw = data
	}
	data, err := json.Marshal(Message{Type: msgType, ID: id, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode unmarshals the message payload into a typed payload struct.
func (m *Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.Type, err)
	}
	return nil
}

// HelloPayload opens a sync connection. The token is optional when the
// server permits unauthenticated viewing.
type HelloPayload struct {
	Token string `json:"token,omitempty"`
}

// FullSyncPayload carries a complete layout at a single version.
type FullSyncPayload struct {
	Version uint64         `json:"version"`
	Layout  *layout.Layout `json:"layout"`
}

// EditRequestPayload is a client edit claiming the version it was
// based on.
type EditRequestPayload struct {
	BaseVersion uint64    `json:"base_version"`
	Op          layout.Op `json:"op"`
}

// DiffPayload broadcasts a committed edit to all clients.
type DiffPayload struct {
	Version uint64      `json:"version"`
	Diff    layout.Diff `json:"diff"`
}

// StaleRejectPayload tells a client its edit was based on an outdated
// version. The client must request a full resync before editing again.
type StaleRejectPayload struct {
	BaseVersion    uint64 `json:"base_version"`
	CurrentVersion uint64 `json:"current_version"`
}

// DeviceCommandPayload asks the coordinator to forward a command to a
// device through the bridge.
type DeviceCommandPayload struct {
	DeviceID string         `json:"device_id"`
	Command  string         `json:"command"`
	Data     map[string]any `json:"data,omitempty"`
}

// DeviceStateUpdatePayload broadcasts a device's new runtime state.
// State updates do not advance the layout version.
type DeviceStateUpdatePayload struct {
	DeviceID string             `json:"device_id"`
	State    layout.DeviceState `json:"state"`
}

// ErrorPayload reports a failed request back to the submitting client.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
