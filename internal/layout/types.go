package layout

import (
	"fmt"

	"github.com/homeatlas/atlas-core/internal/geometry"
)

// Room is a floor area with a polygonal boundary and semantic attributes.
type Room struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Material string           `json:"material"`
	HeightM  float64          `json:"height_m"`
	Boundary geometry.Polygon `json:"boundary"`
}

// Clone returns an independent copy of the room.
func (r Room) Clone() Room {
	out := r
	out.Boundary = r.Boundary.Clone()
	return out
}

// Wall is a load path of the floor plan: a center-line polyline plus a
// thickness. Its filled outline is derived on demand, never stored.
type Wall struct {
	ID         string           `json:"id"`
	Centerline []geometry.Point `json:"centerline"`
	Thickness  float64          `json:"thickness"`
	Join       geometry.Join    `json:"join"`
}

// Clone returns an independent copy of the wall.
func (w Wall) Clone() Wall {
	out := w
	out.Centerline = make([]geometry.Point, len(w.Centerline))
	copy(out.Centerline, w.Centerline)
	return out
}

// Footprint derives the wall's filled polygon set by stroking the
// center-line with the wall's thickness and join style.
func (w Wall) Footprint() (geometry.Set, error) {
	join := w.Join
	if join == "" {
		join = geometry.JoinMiter
	}
	return geometry.StrokePolyline(w.Centerline, w.Thickness, join)
}

// DeviceKind is the closed set of supported device categories.
type DeviceKind string

// Device kinds.
const (
	KindLight   DeviceKind = "light"
	KindSwitch  DeviceKind = "switch"
	KindSensor  DeviceKind = "sensor"
	KindClimate DeviceKind = "climate"
	KindCover   DeviceKind = "cover"
)

// AllDeviceKinds returns all valid device kinds.
func AllDeviceKinds() []DeviceKind {
	return []DeviceKind{KindLight, KindSwitch, KindSensor, KindClimate, KindCover}
}

// DeviceState holds a device's current state as a JSON map. The allowed
// fields depend on the device kind; see ValidateState.
type DeviceState map[string]any

// Clone returns an independent copy of the state map.
func (s DeviceState) Clone() DeviceState {
	if s == nil {
		return nil
	}
	out := make(DeviceState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Device is a smart-home endpoint placed in the layout. It is anchored
// either to a fixed point or to an owning room.
type Device struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Kind     DeviceKind      `json:"kind"`
	EntityID string          `json:"entity_id"`
	RoomID   *string         `json:"room_id,omitempty"`
	Anchor   *geometry.Point `json:"anchor,omitempty"`
	State    DeviceState     `json:"state"`
}

// Clone returns an independent copy of the device.
func (d Device) Clone() Device {
	out := d
	if d.RoomID != nil {
		id := *d.RoomID
		out.RoomID = &id
	}
	if d.Anchor != nil {
		p := *d.Anchor
		out.Anchor = &p
	}
	out.State = d.State.Clone()
	return out
}

// FurnitureKind is the closed set of supported furniture categories.
type FurnitureKind string

// Furniture kinds.
const (
	FurnChair      FurnitureKind = "chair"
	FurnTable      FurnitureKind = "table"
	FurnBed        FurnitureKind = "bed"
	FurnKitchen    FurnitureKind = "kitchen"
	FurnBathroom   FurnitureKind = "bathroom"
	FurnStorage    FurnitureKind = "storage"
	FurnRug        FurnitureKind = "rug"
	FurnElectronic FurnitureKind = "electronic"
	FurnRadiator   FurnitureKind = "radiator"
	FurnMisc       FurnitureKind = "misc"
)

// AllFurnitureKinds returns all valid furniture kinds.
func AllFurnitureKinds() []FurnitureKind {
	return []FurnitureKind{
		FurnChair, FurnTable, FurnBed, FurnKitchen, FurnBathroom,
		FurnStorage, FurnRug, FurnElectronic, FurnRadiator, FurnMisc,
	}
}

// Furniture is a placed fixture: a rotated rectangle in an owning room.
// It carries no behaviour of its own but may name an external entity
// whose power draw it represents.
type Furniture struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Kind          FurnitureKind  `json:"kind"`
	RoomID        *string        `json:"room_id,omitempty"`
	Pos           geometry.Point `json:"pos"`
	Size          geometry.Point `json:"size"`
	Rotation      int            `json:"rotation"`
	Material      string         `json:"material"`
	PowerEntityID string         `json:"power_entity_id,omitempty"`
}

// Clone returns an independent copy of the furniture piece.
func (f Furniture) Clone() Furniture {
	out := f
	if f.RoomID != nil {
		id := *f.RoomID
		out.RoomID = &id
	}
	return out
}

// Footprint derives the furniture's filled outline.
func (f Furniture) Footprint() geometry.Polygon {
	return geometry.Rect(f.Pos, f.Size, f.Rotation)
}

// Layout is the aggregate of all rooms, walls, devices, and furniture,
// plus the monotonically increasing version. It is the unit of
// synchronisation.
type Layout struct {
	Version   uint64      `json:"version"`
	Rooms     []Room      `json:"rooms"`
	Walls     []Wall      `json:"walls"`
	Devices   []Device    `json:"devices"`
	Furniture []Furniture `json:"furniture"`
}

// Clone returns a deep copy, safe to hand to other goroutines.
func (l *Layout) Clone() *Layout {
	out := &Layout{Version: l.Version}
	if l.Rooms != nil {
		out.Rooms = make([]Room, len(l.Rooms))
		for i, r := range l.Rooms {
			out.Rooms[i] = r.Clone()
		}
	}
	if l.Walls != nil {
		out.Walls = make([]Wall, len(l.Walls))
		for i, w := range l.Walls {
			out.Walls[i] = w.Clone()
		}
	}
	if l.Devices != nil {
		out.Devices = make([]Device, len(l.Devices))
		for i, d := range l.Devices {
			out.Devices[i] = d.Clone()
		}
	}
	if l.Furniture != nil {
		out.Furniture = make([]Furniture, len(l.Furniture))
		for i, f := range l.Furniture {
			out.Furniture[i] = f.Clone()
		}
	}
	return out
}

// Room returns the room with the given ID, or nil.
func (l *Layout) Room(id string) *Room {
	for i := range l.Rooms {
		if l.Rooms[i].ID == id {
			return &l.Rooms[i]
		}
	}
	return nil
}

// Wall returns the wall with the given ID, or nil.
func (l *Layout) Wall(id string) *Wall {
	for i := range l.Walls {
		if l.Walls[i].ID == id {
			return &l.Walls[i]
		}
	}
	return nil
}

// Device returns the device with the given ID, or nil.
func (l *Layout) Device(id string) *Device {
	for i := range l.Devices {
		if l.Devices[i].ID == id {
			return &l.Devices[i]
		}
	}
	return nil
}

// FurnitureByID returns the furniture piece with the given ID, or nil.
func (l *Layout) FurnitureByID(id string) *Furniture {
	for i := range l.Furniture {
		if l.Furniture[i].ID == id {
			return &l.Furniture[i]
		}
	}
	return nil
}

// ShapeKind selects a construction primitive for room boundary authoring.
type ShapeKind string

// Shape kinds.
const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeTriangle  ShapeKind = "triangle"
)

// BoolAction selects how a shape operation combines with the boundary so far.
type BoolAction string

// Boolean actions.
const (
	ActionAdd      BoolAction = "add"
	ActionSubtract BoolAction = "subtract"
)

// BoundaryRecipe authors a room boundary from construction primitives
// instead of an explicit polygon: a base rectangle at Pos with Size,
// refined by a sequence of shape operations.
type BoundaryRecipe struct {
	Pos  geometry.Point `json:"pos"`
	Size geometry.Point `json:"size"`
	Ops  []ShapeOp      `json:"ops,omitempty"`
}

// ShapeOp is one step of room boundary authoring: a primitive shape merged
// into or carved out of the base rectangle.
type ShapeOp struct {
	Action   BoolAction     `json:"action"`
	Shape    ShapeKind      `json:"shape"`
	Pos      geometry.Point `json:"pos"`
	Size     geometry.Point `json:"size"`
	Rotation int            `json:"rotation"`
}

// BuildBoundary computes a room boundary from a base rectangle and a
// sequence of shape operations. The final result must be a single polygon;
// operations that split the room apart are rejected.
func BuildBoundary(pos, size geometry.Point, ops []ShapeOp) (geometry.Polygon, error) {
	result := geometry.Set{geometry.Rect(pos, size, 0)}
	for i, op := range ops {
		var shape geometry.Polygon
		switch op.Shape {
		case ShapeRectangle:
			shape = geometry.Rect(pos.Add(op.Pos), op.Size, op.Rotation)
		case ShapeCircle:
			shape = geometry.Circle(pos.Add(op.Pos), op.Size, op.Rotation)
		case ShapeTriangle:
			shape = geometry.Triangle(pos.Add(op.Pos), op.Size, op.Rotation)
		default:
			return geometry.Polygon{}, fmt.Errorf("op %d: unknown shape %q: %w", i, op.Shape, ErrInvalidOperation)
		}

		switch op.Action {
		case ActionAdd:
			result = geometry.Union(result, geometry.Set{shape})
		case ActionSubtract:
			result = geometry.Difference(result, geometry.Set{shape})
		default:
			return geometry.Polygon{}, fmt.Errorf("op %d: unknown action %q: %w", i, op.Action, ErrInvalidOperation)
		}
	}

	if len(result) != 1 {
		return geometry.Polygon{}, fmt.Errorf("boundary resolved to %d pieces: %w", len(result), ErrInvalidGeometry)
	}
	if err := geometry.Validate(result[0]); err != nil {
		return geometry.Polygon{}, fmt.Errorf("%v: %w", err, ErrInvalidGeometry)
	}
	return result[0], nil
}
