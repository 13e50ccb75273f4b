package layout

import (
	"fmt"

	"github.com/homeatlas/atlas-core/internal/geometry"
)

// DefaultOverlapTolerance is the default ceiling on interior overlap area
// between two rooms, in square metres. Rooms may share edges freely; any
// shared interior beyond this is rejected. Configurable via
// layout.overlap_tolerance.
const DefaultOverlapTolerance = 1e-4

// maxNameLength bounds entity names.
const maxNameLength = 128

// validateRoom checks a room in isolation.
func validateRoom(r *Room) error {
	if r.ID == "" {
		return fmt.Errorf("room id is required: %w", ErrInvalidOperation)
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("room name too long: %w", ErrInvalidOperation)
	}
	if err := geometry.Validate(r.Boundary); err != nil {
		return fmt.Errorf("room %s: %v: %w", r.ID, err, ErrInvalidGeometry)
	}
	if r.Boundary.Area() <= 0 {
		return fmt.Errorf("room %s has no area: %w", r.ID, ErrInvalidGeometry)
	}
	if r.HeightM < 0 {
		return fmt.Errorf("room %s height negative: %w", r.ID, ErrInvalidOperation)
	}
	return nil
}

// validateWall checks a wall in isolation, including that its outline can
// be derived.
func validateWall(w *Wall) error {
	if w.ID == "" {
		return fmt.Errorf("wall id is required: %w", ErrInvalidOperation)
	}
	footprint, err := w.Footprint()
	if err != nil {
		return fmt.Errorf("wall %s: %v: %w", w.ID, err, ErrInvalidGeometry)
	}
	if footprint.Area() <= 0 {
		return fmt.Errorf("wall %s outline has no area: %w", w.ID, ErrInvalidGeometry)
	}
	return nil
}

// validateDevice checks a device's kind, placement, and state shape
// against the layout it is being added to.
func validateDevice(l *Layout, d *Device) error {
	if d.ID == "" {
		return fmt.Errorf("device id is required: %w", ErrInvalidOperation)
	}
	if d.RoomID == nil && d.Anchor == nil {
		return fmt.Errorf("device %s needs an anchor point or owning room: %w", d.ID, ErrInvalidDevice)
	}
	if d.RoomID != nil && l.Room(*d.RoomID) == nil {
		return fmt.Errorf("device %s references room %s: %w", d.ID, *d.RoomID, ErrUnknownEntity)
	}
	if err := ValidateState(d.Kind, d.State); err != nil {
		return fmt.Errorf("device %s: %w", d.ID, err)
	}
	return nil
}

// validateFurniture checks a furniture piece's kind, extent, and room
// reference against the layout it is being added to.
func validateFurniture(l *Layout, f *Furniture) error {
	if f.ID == "" {
		return fmt.Errorf("furniture id is required: %w", ErrInvalidOperation)
	}
	if len(f.Name) > maxNameLength {
		return fmt.Errorf("furniture name too long: %w", ErrInvalidOperation)
	}
	valid := false
	for _, k := range AllFurnitureKinds() {
		if f.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown furniture kind %q: %w", f.Kind, ErrInvalidOperation)
	}
	if f.Size.X <= 0 || f.Size.Y <= 0 {
		return fmt.Errorf("furniture %s has no extent: %w", f.ID, ErrInvalidGeometry)
	}
	if f.RoomID != nil && l.Room(*f.RoomID) == nil {
		return fmt.Errorf("furniture %s references room %s: %w", f.ID, *f.RoomID, ErrUnknownEntity)
	}
	return nil
}

// ValidateState checks a state map against the closed field set for the
// device kind. Unknown kinds and unknown or mistyped fields are rejected.
func ValidateState(kind DeviceKind, state DeviceState) error {
	var fields map[string]func(any) bool
	switch kind {
	case KindLight:
		fields = map[string]func(any) bool{
			"on":         isBool,
			"brightness": isNumber,
		}
	case KindSwitch:
		fields = map[string]func(any) bool{
			"on": isBool,
		}
	case KindSensor:
		fields = map[string]func(any) bool{
			"value": isNumberOrString,
			"unit":  isString,
		}
	case KindClimate:
		fields = map[string]func(any) bool{
			"temperature": isNumber,
			"setpoint":    isNumber,
			"mode":        isString,
		}
	case KindCover:
		fields = map[string]func(any) bool{
			"position": isNumber,
		}
	default:
		return fmt.Errorf("unknown device kind %q: %w", kind, ErrInvalidDevice)
	}

	for k, v := range state {
		check, ok := fields[k]
		if !ok {
			return fmt.Errorf("kind %s does not carry field %q: %w", kind, k, ErrInvalidDevice)
		}
		if !check(v) {
			return fmt.Errorf("field %q has wrong type for kind %s: %w", k, kind, ErrInvalidDevice)
		}
	}
	return nil
}

// ValidateCommand checks a device command name and payload against the
// device kind. Sensors are read-only and accept no commands.
func ValidateCommand(kind DeviceKind, command string, payload map[string]any) error {
	allowed := map[DeviceKind]map[string][]string{
		KindLight:   {"turn_on": nil, "turn_off": nil, "set_brightness": {"brightness"}},
		KindSwitch:  {"turn_on": nil, "turn_off": nil},
		KindClimate: {"set_temperature": {"setpoint"}, "set_mode": {"mode"}},
		KindCover:   {"open": nil, "close": nil, "set_position": {"position"}},
		KindSensor:  {},
	}

	cmds, ok := allowed[kind]
	if !ok {
		return fmt.Errorf("unknown device kind %q: %w", kind, ErrInvalidDevice)
	}
	required, ok := cmds[command]
	if !ok {
		return fmt.Errorf("kind %s does not accept command %q: %w", kind, command, ErrInvalidCommand)
	}
	for _, field := range required {
		if _, present := payload[field]; !present {
			return fmt.Errorf("command %q requires field %q: %w", command, field, ErrInvalidCommand)
		}
	}
	return nil
}

// checkRoomOverlaps verifies that no two room interiors overlap beyond the
// tolerance. Shared edges intersect with zero area and always pass.
func checkRoomOverlaps(l *Layout, tolerance float64) error {
	for i := range l.Rooms {
		for j := i + 1; j < len(l.Rooms); j++ {
			a := geometry.Set{l.Rooms[i].Boundary}
			b := geometry.Set{l.Rooms[j].Boundary}
			if overlap := geometry.Intersection(a, b).Area(); overlap > tolerance {
				return fmt.Errorf("rooms %s and %s overlap by %g: %w",
					l.Rooms[i].ID, l.Rooms[j].ID, overlap, ErrInvalidGeometry)
			}
		}
	}
	return nil
}

func isBool(v any) bool { _, ok := v.(bool); return ok }

func isString(v any) bool { _, ok := v.(string); return ok }

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, uint64:
		return true
	default:
		return false
	}
}

func isNumberOrString(v any) bool { return isNumber(v) || isString(v) }
