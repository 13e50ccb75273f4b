package hass

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/homeatlas/atlas-core/internal/layout"
)

// Home Assistant websocket message types.
const (
	typeAuthRequired = "auth_required"
	typeAuth         = "auth"
	typeAuthOK       = "auth_ok"
	typeAuthInvalid  = "auth_invalid"
	typeSubscribe    = "subscribe_events"
	typeGetStates    = "get_states"
	typeCallService  = "call_service"
	typeEvent        = "event"
	typeResult       = "result"
)

// Fixed message ids for the two startup requests. Command ids count
// upwards from commandIDBase.
const (
	subscribeID   = 1
	getStatesID   = 2
	commandIDBase = 3
)

// serverMessage is the envelope Home Assistant sends.
type serverMessage struct {
	Type    string          `json:"type"`
	ID      int64           `json:"id,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Event   *eventBody      `json:"event,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

type eventBody struct {
	EventType string    `json:"event_type"`
	Data      eventData `json:"data"`
}

type eventData struct {
	EntityID string       `json:"entity_id"`
	NewState *entityState `json:"new_state"`
}

// entityState is one entity's state as Home Assistant reports it.
type entityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// authMessage opens the handshake.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// subscribeMessage subscribes to an event stream.
type subscribeMessage struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

// requestMessage is a bare id+type request (get_states).
type requestMessage struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// callServiceMessage invokes a Home Assistant service on one entity.
type callServiceMessage struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
	Target      serviceTarget  `json:"target"`
}

type serviceTarget struct {
	EntityID string `json:"entity_id"`
}

// entityDomain returns the part of an entity id before the first dot.
func entityDomain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}

// haBrightnessMax is Home Assistant's brightness scale ceiling.
const haBrightnessMax = 255.0

// haPositionMax is Home Assistant's cover position scale ceiling.
const haPositionMax = 100.0

// translateState converts an entity's reported state into the core's
// per-kind state map. Domains the layout cannot place report ok=false.
func translateState(s *entityState) (layout.DeviceState, bool) {
	if s == nil {
		return nil, false
	}
	switch entityDomain(s.EntityID) {
	case "light":
		on := s.State == "on"
		brightness := 0.0
		if raw, ok := s.Attributes["brightness"].(float64); ok {
			brightness = raw / haBrightnessMax
		} else if on {
			brightness = 1.0
		}
		return layout.DeviceState{"on": on, "brightness": brightness}, true
	case "switch", "input_boolean":
		return layout.DeviceState{"on": s.State == "on"}, true
	case "sensor", "binary_sensor":
		state := layout.DeviceState{"value": parseSensorValue(s.State)}
		if unit, ok := s.Attributes["unit_of_measurement"].(string); ok {
			state["unit"] = unit
		}
		return state, true
	case "climate":
		state := layout.DeviceState{"mode": s.State}
		if t, ok := s.Attributes["current_temperature"].(float64); ok {
			state["temperature"] = t
		}
		if t, ok := s.Attributes["temperature"].(float64); ok {
			state["setpoint"] = t
		}
		return state, true
	case "cover":
		position := 0.0
		if raw, ok := s.Attributes["current_position"].(float64); ok {
			position = raw / haPositionMax
		} else if s.State == "open" {
			position = 1.0
		}
		return layout.DeviceState{"position": position}, true
	default:
		return nil, false
	}
}

// parseSensorValue keeps numeric sensor readings numeric and leaves
// everything else as the raw string.
func parseSensorValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// serviceForCommand maps one of the core's device commands onto a Home
// Assistant domain service and its service data.
func serviceForCommand(domain, command string, data map[string]any) (string, map[string]any, error) {
	switch domain {
	case "light":
		switch command {
		case "turn_on", "turn_off":
			return command, nil, nil
		case "set_brightness":
			brightness, ok := toFloat(data["brightness"])
			if !ok {
				return "", nil, fmt.Errorf("set_brightness needs a numeric brightness: %w", ErrUnsupportedCommand)
			}
			return "turn_on", map[string]any{"brightness": int(brightness * haBrightnessMax)}, nil
		}
	case "switch", "input_boolean":
		switch command {
		case "turn_on", "turn_off":
			return command, nil, nil
		}
	case "cover":
		switch command {
		case "open":
			return "open_cover", nil, nil
		case "close":
			return "close_cover", nil, nil
		case "set_position":
			position, ok := toFloat(data["position"])
			if !ok {
				return "", nil, fmt.Errorf("set_position needs a numeric position: %w", ErrUnsupportedCommand)
			}
			return "set_cover_position", map[string]any{"position": int(position * haPositionMax)}, nil
		}
	case "climate":
		switch command {
		case "set_temperature":
			setpoint, ok := toFloat(data["setpoint"])
			if !ok {
				return "", nil, fmt.Errorf("set_temperature needs a numeric setpoint: %w", ErrUnsupportedCommand)
			}
			return "set_temperature", map[string]any{"temperature": setpoint}, nil
		case "set_mode":
			mode, ok := data["mode"].(string)
			if !ok {
				return "", nil, fmt.Errorf("set_mode needs a mode string: %w", ErrUnsupportedCommand)
			}
			return "set_hvac_mode", map[string]any{"hvac_mode": mode}, nil
		}
	}
	return "", nil, fmt.Errorf("%s on domain %s: %w", command, domain, ErrUnsupportedCommand)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
