package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/homeatlas/atlas-core/internal/geometry"
)

func testRoom(id string, x, y, w, h float64) *Room {
	return &Room{
		ID:       id,
		Name:     id,
		HeightM:  2.4,
		Boundary: geometry.Rect(geometry.Point{X: x, Y: y}, geometry.Point{X: w, Y: h}, 0),
	}
}

func addRoomOp(r *Room) Op {
	return Op{Change: ChangeAdd, Entity: EntityRoom, ID: r.ID, Room: r}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	return NewModel(nil, Config{})
}

func TestStageDoesNotMutate(t *testing.T) {
	m := newTestModel(t)

	d, err := m.Stage(addRoomOp(testRoom("kitchen", 0, 0, 4, 3)))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if d.FromVersion != 0 || d.ToVersion != 1 {
		t.Fatalf("diff versions = %d -> %d, want 0 -> 1", d.FromVersion, d.ToVersion)
	}
	if m.Version() != 0 {
		t.Fatalf("Stage advanced version to %d", m.Version())
	}
	if got := len(m.Snapshot().Rooms); got != 0 {
		t.Fatalf("Stage added %d rooms to live layout", got)
	}

	if err := m.Commit(d); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if m.Version() != 1 {
		t.Fatalf("version after commit = %d, want 1", m.Version())
	}
	if m.Snapshot().Room("kitchen") == nil {
		t.Fatal("room missing after commit")
	}
}

func TestApplyRejectsOverlappingRooms(t *testing.T) {
	m := newTestModel(t)
	if _, err := m.Apply(addRoomOp(testRoom("a", 0, 0, 4, 3))); err != nil {
		t.Fatalf("add first room: %v", err)
	}

	// Deep interior overlap fails.
	if _, err := m.Apply(addRoomOp(testRoom("b", 3, 0, 4, 3))); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("overlapping room err = %v, want ErrInvalidGeometry", err)
	}
	if m.Version() != 1 {
		t.Fatalf("failed edit advanced version to %d", m.Version())
	}

	// A shared edge has zero overlap area and passes.
	if _, err := m.Apply(addRoomOp(testRoom("c", 4, 0, 4, 3))); err != nil {
		t.Fatalf("adjacent room: %v", err)
	}
}

func TestOverlapToleranceIsConfigurable(t *testing.T) {
	m := NewModel(nil, Config{OverlapTolerance: 1.0})
	if _, err := m.Apply(addRoomOp(testRoom("a", 0, 0, 4, 3))); err != nil {
		t.Fatalf("add first room: %v", err)
	}
	// 0.1 x 3 = 0.3 sq m of overlap, under the raised ceiling.
	if _, err := m.Apply(addRoomOp(testRoom("b", 3.9, 0, 4, 3))); err != nil {
		t.Fatalf("overlap within tolerance rejected: %v", err)
	}
}

func TestRemoveRoomWithAnchoredDevice(t *testing.T) {
	m := newTestModel(t)
	if _, err := m.Apply(addRoomOp(testRoom("hall", 0, 0, 4, 3))); err != nil {
		t.Fatalf("add room: %v", err)
	}
	roomID := "hall"
	dev := &Device{ID: "lamp", Kind: KindLight, EntityID: "light.hall", RoomID: &roomID}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); err != nil {
		t.Fatalf("add device: %v", err)
	}

	_, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityRoom, ID: "hall"})
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("remove room with device err = %v, want ErrUnknownEntity", err)
	}

	// Removing the device first unblocks the room.
	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityDevice, ID: "lamp"}); err != nil {
		t.Fatalf("remove device: %v", err)
	}
	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityRoom, ID: "hall"}); err != nil {
		t.Fatalf("remove room: %v", err)
	}
}

func TestDeviceNeedsAnchorOrRoom(t *testing.T) {
	m := newTestModel(t)
	dev := &Device{ID: "d1", Kind: KindSwitch, EntityID: "switch.d1"}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("unanchored device err = %v, want ErrInvalidDevice", err)
	}

	dev.Anchor = &geometry.Point{X: 1, Y: 1}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); err != nil {
		t.Fatalf("anchored device: %v", err)
	}
}

func TestDeviceUnknownRoomRejected(t *testing.T) {
	m := newTestModel(t)
	roomID := "missing"
	dev := &Device{ID: "d1", Kind: KindLight, EntityID: "light.d1", RoomID: &roomID}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("device with missing room err = %v, want ErrUnknownEntity", err)
	}
}

func TestSetDeviceState(t *testing.T) {
	m := newTestModel(t)
	anchor := geometry.Point{X: 1, Y: 1}
	dev := &Device{ID: "lamp", Kind: KindLight, EntityID: "light.lamp", Anchor: &anchor}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); err != nil {
		t.Fatalf("add device: %v", err)
	}
	before := m.Version()

	if err := m.SetDeviceState("lamp", DeviceState{"on": true, "brightness": 0.5}); err != nil {
		t.Fatalf("SetDeviceState: %v", err)
	}
	if m.Version() != before {
		t.Fatal("state update bumped the layout version")
	}
	got := m.Snapshot().Device("lamp").State
	if got["on"] != true {
		t.Fatalf("state = %v", got)
	}

	if err := m.SetDeviceState("lamp", DeviceState{"position": 0.5}); !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("wrong field err = %v, want ErrInvalidDevice", err)
	}
	if err := m.SetDeviceState("ghost", DeviceState{"on": true}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("unknown device err = %v, want ErrUnknownEntity", err)
	}
}

func TestDeviceByEntityID(t *testing.T) {
	m := newTestModel(t)
	anchor := geometry.Point{X: 0, Y: 0}
	dev := &Device{ID: "d1", Kind: KindSensor, EntityID: "sensor.temp", Anchor: &anchor}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityDevice, Device: dev}); err != nil {
		t.Fatalf("add device: %v", err)
	}
	if got := m.DeviceByEntityID("sensor.temp"); got == nil || got.ID != "d1" {
		t.Fatalf("DeviceByEntityID = %v", got)
	}
	if got := m.DeviceByEntityID("sensor.other"); got != nil {
		t.Fatalf("unexpected hit: %v", got)
	}
}

func TestValidateState(t *testing.T) {
	tests := []struct {
		name  string
		kind  DeviceKind
		state DeviceState
		ok    bool
	}{
		{"light full", KindLight, DeviceState{"on": true, "brightness": 0.7}, true},
		{"light empty", KindLight, DeviceState{}, true},
		{"light bad type", KindLight, DeviceState{"on": "yes"}, false},
		{"switch", KindSwitch, DeviceState{"on": false}, true},
		{"switch foreign field", KindSwitch, DeviceState{"brightness": 0.5}, false},
		{"sensor numeric", KindSensor, DeviceState{"value": 21.5, "unit": "C"}, true},
		{"sensor string value", KindSensor, DeviceState{"value": "wet"}, true},
		{"climate", KindClimate, DeviceState{"temperature": 20.0, "setpoint": 21.0, "mode": "heat"}, true},
		{"climate bad mode", KindClimate, DeviceState{"mode": 3}, false},
		{"cover", KindCover, DeviceState{"position": 0.3}, true},
		{"unknown kind", DeviceKind("toaster"), DeviceState{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState(tt.kind, tt.state)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		kind    DeviceKind
		command string
		payload map[string]any
		ok      bool
	}{
		{"light on", KindLight, "turn_on", nil, true},
		{"light brightness", KindLight, "set_brightness", map[string]any{"brightness": 0.4}, true},
		{"light brightness missing arg", KindLight, "set_brightness", nil, false},
		{"switch off", KindSwitch, "turn_off", nil, true},
		{"switch dim", KindSwitch, "set_brightness", map[string]any{"brightness": 0.4}, false},
		{"cover position", KindCover, "set_position", map[string]any{"position": 0.8}, true},
		{"climate setpoint", KindClimate, "set_temperature", map[string]any{"setpoint": 21.5}, true},
		{"sensor is read-only", KindSensor, "turn_on", nil, false},
		{"unknown command", KindLight, "explode", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.kind, tt.command, tt.payload)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestWallValidation(t *testing.T) {
	m := newTestModel(t)
	wall := &Wall{
		ID:         "w1",
		Centerline: []geometry.Point{{X: 0, Y: 0}, {X: 5, Y: 0}},
		Thickness:  0.2,
	}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityWall, Wall: wall}); err != nil {
		t.Fatalf("add wall: %v", err)
	}

	bad := &Wall{ID: "w2", Centerline: []geometry.Point{{X: 0, Y: 0}}, Thickness: 0.2}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityWall, Wall: bad}); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("one point wall err = %v, want ErrInvalidGeometry", err)
	}

	noWidth := &Wall{ID: "w3", Centerline: []geometry.Point{{X: 0, Y: 0}, {X: 5, Y: 0}}, Thickness: 0}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityWall, Wall: noWidth}); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("zero thickness err = %v, want ErrInvalidGeometry", err)
	}
}

func TestFurnitureLifecycle(t *testing.T) {
	m := newTestModel(t)
	if _, err := m.Apply(addRoomOp(testRoom("lounge", 0, 0, 4, 3))); err != nil {
		t.Fatalf("add room: %v", err)
	}
	roomID := "lounge"
	sofa := &Furniture{
		ID:     "sofa",
		Name:   "Sofa",
		Kind:   FurnChair,
		RoomID: &roomID,
		Pos:    geometry.Point{X: 1, Y: 1},
		Size:   geometry.Point{X: 2, Y: 0.9},
	}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityFurniture, Furniture: sofa}); err != nil {
		t.Fatalf("add furniture: %v", err)
	}
	if m.Snapshot().FurnitureByID("sofa") == nil {
		t.Fatal("furniture missing after commit")
	}

	moved := sofa.Clone()
	moved.Pos = geometry.Point{X: 2, Y: 1}
	moved.Rotation = 90
	if _, err := m.Apply(Op{Change: ChangeUpdate, Entity: EntityFurniture, Furniture: &moved}); err != nil {
		t.Fatalf("update furniture: %v", err)
	}
	got := m.Snapshot().FurnitureByID("sofa")
	if got.Pos.X != 2 || got.Rotation != 90 {
		t.Fatalf("update not applied: pos %v rotation %d", got.Pos, got.Rotation)
	}

	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityFurniture, ID: "sofa"}); err != nil {
		t.Fatalf("remove furniture: %v", err)
	}
	if m.Snapshot().FurnitureByID("sofa") != nil {
		t.Fatal("furniture still present after remove")
	}
}

func TestFurnitureValidation(t *testing.T) {
	m := newTestModel(t)

	bad := &Furniture{ID: "f1", Kind: "throne", Size: geometry.Point{X: 1, Y: 1}}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityFurniture, Furniture: bad}); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("unknown kind err = %v, want ErrInvalidOperation", err)
	}

	flat := &Furniture{ID: "f2", Kind: FurnTable}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityFurniture, Furniture: flat}); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("no extent err = %v, want ErrInvalidGeometry", err)
	}

	roomID := "missing"
	orphan := &Furniture{ID: "f3", Kind: FurnBed, RoomID: &roomID, Size: geometry.Point{X: 2, Y: 1.5}}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityFurniture, Furniture: orphan}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("missing room err = %v, want ErrUnknownEntity", err)
	}
}

func TestRemoveRoomWithFurniture(t *testing.T) {
	m := newTestModel(t)
	if _, err := m.Apply(addRoomOp(testRoom("study", 0, 0, 4, 3))); err != nil {
		t.Fatalf("add room: %v", err)
	}
	roomID := "study"
	desk := &Furniture{ID: "desk", Kind: FurnTable, RoomID: &roomID, Size: geometry.Point{X: 1.4, Y: 0.7}}
	if _, err := m.Apply(Op{Change: ChangeAdd, Entity: EntityFurniture, Furniture: desk}); err != nil {
		t.Fatalf("add furniture: %v", err)
	}

	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityRoom, ID: "study"}); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("remove room with furniture err = %v, want ErrUnknownEntity", err)
	}

	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityFurniture, ID: "desk"}); err != nil {
		t.Fatalf("remove furniture: %v", err)
	}
	if _, err := m.Apply(Op{Change: ChangeRemove, Entity: EntityRoom, ID: "study"}); err != nil {
		t.Fatalf("remove room: %v", err)
	}
}

func TestBuildBoundary(t *testing.T) {
	// 4x3 base with a 1x1 corner notch carved out. The base is centred
	// on the origin, so its corner sits at (2, 1.5).
	ops := []ShapeOp{{
		Action: ActionSubtract,
		Shape:  ShapeRectangle,
		Pos:    geometry.Point{X: 2, Y: 1.5},
		Size:   geometry.Point{X: 2, Y: 2},
	}}
	p, err := BuildBoundary(geometry.Point{}, geometry.Point{X: 4, Y: 3}, ops)
	if err != nil {
		t.Fatalf("BuildBoundary: %v", err)
	}
	if got, want := p.Area(), 11.0; math.Abs(got-want) > 1e-6 {
		t.Fatalf("area = %g, want %g", got, want)
	}
}

func TestRoomRecipeAuthorsBoundary(t *testing.T) {
	m := newTestModel(t)
	// 4x3 base centred on the origin with a 1x1 alcove attached to the
	// right edge.
	op := Op{
		Change: ChangeAdd,
		Entity: EntityRoom,
		ID:     "lounge",
		Room:   &Room{ID: "lounge", Name: "Lounge", HeightM: 2.4},
		Recipe: &BoundaryRecipe{
			Size: geometry.Point{X: 4, Y: 3},
			Ops: []ShapeOp{{
				Action: ActionAdd,
				Shape:  ShapeRectangle,
				Pos:    geometry.Point{X: 2.5, Y: 0},
				Size:   geometry.Point{X: 1, Y: 1},
			}},
		},
	}
	if _, err := m.Apply(op); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	room := m.Snapshot().Room("lounge")
	if room == nil {
		t.Fatal("room missing after commit")
	}
	if got, want := room.Boundary.Area(), 13.0; math.Abs(got-want) > 1e-6 {
		t.Fatalf("authored area = %g, want %g", got, want)
	}
}

func TestBuildBoundarySplitRejected(t *testing.T) {
	// A full-height cut through the middle splits the room in two.
	ops := []ShapeOp{{
		Action: ActionSubtract,
		Shape:  ShapeRectangle,
		Pos:    geometry.Point{},
		Size:   geometry.Point{X: 1, Y: 5},
	}}
	_, err := BuildBoundary(geometry.Point{}, geometry.Point{X: 4, Y: 3}, ops)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("split boundary err = %v, want ErrInvalidGeometry", err)
	}
}
