package layout

import (
	"fmt"
)

// Op is a single requested edit. Exactly one of Room, Wall, Device, or
// Furniture is set for add and update; remove needs only the ID. A room
// op may carry a Recipe instead of an explicit Boundary polygon.
type Op struct {
	Change ChangeKind `json:"change"`
	Entity EntityType `json:"entity"`
	ID     string     `json:"id"`

	Room      *Room           `json:"room,omitempty"`
	Wall      *Wall           `json:"wall,omitempty"`
	Device    *Device         `json:"device,omitempty"`
	Furniture *Furniture      `json:"furniture,omitempty"`
	Recipe    *BoundaryRecipe `json:"recipe,omitempty"`
}

// Config carries the model's tunable limits.
type Config struct {
	// OverlapTolerance is the maximum shared interior area, in square
	// metres, tolerated between any two rooms. Zero means use the
	// default.
	OverlapTolerance float64
}

// Model holds the live layout and stages edits against it. It is not safe
// for concurrent use; the sync coordinator serialises access.
type Model struct {
	layout    *Layout
	tolerance float64
}

// NewModel wraps an existing layout. A nil layout starts empty at
// version 0.
func NewModel(l *Layout, cfg Config) *Model {
	if l == nil {
		l = &Layout{}
	}
	tol := cfg.OverlapTolerance
	if tol == 0 {
		tol = DefaultOverlapTolerance
	}
	return &Model{layout: l, tolerance: tol}
}

// Version reports the current layout version.
func (m *Model) Version() uint64 {
	return m.layout.Version
}

// Snapshot returns a deep copy of the current layout.
func (m *Model) Snapshot() *Layout {
	return m.layout.Clone()
}

// Stage validates an edit against the current layout and builds the diff
// that would apply it. The live layout is not touched; the caller commits
// the diff once it has been made durable.
func (m *Model) Stage(op Op) (Diff, error) {
	change, err := m.buildChange(op)
	if err != nil {
		return Diff{}, err
	}

	d := Diff{
		FromVersion: m.layout.Version,
		ToVersion:   m.layout.Version + 1,
		Changes:     []EntityChange{change},
	}

	// Rehearse on a copy so cross-entity checks see the post-edit state.
	trial := m.layout.Clone()
	if err := ApplyDiff(trial, d); err != nil {
		return Diff{}, err
	}
	if err := checkRoomOverlaps(trial, m.tolerance); err != nil {
		return Diff{}, err
	}
	if err := checkOrphanedDevices(trial); err != nil {
		return Diff{}, err
	}
	if err := checkOrphanedFurniture(trial); err != nil {
		return Diff{}, err
	}
	return d, nil
}

// Commit applies a previously staged diff to the live layout.
func (m *Model) Commit(d Diff) error {
	return ApplyDiff(m.layout, d)
}

// Apply stages and immediately commits an edit. Used by callers that do
// not separate durability from application, such as replay.
func (m *Model) Apply(op Op) (Diff, error) {
	d, err := m.Stage(op)
	if err != nil {
		return Diff{}, err
	}
	if err := m.Commit(d); err != nil {
		return Diff{}, err
	}
	return d, nil
}

// Reset replaces the live layout wholesale, as happens on revert.
func (m *Model) Reset(l *Layout) {
	m.layout = l.Clone()
}

// SetDeviceState overwrites a device's runtime state without touching the
// layout version. State reports are an ephemeral overlay, not edits.
func (m *Model) SetDeviceState(id string, state DeviceState) error {
	d := m.layout.Device(id)
	if d == nil {
		return fmt.Errorf("device %s: %w", id, ErrUnknownEntity)
	}
	if err := ValidateState(d.Kind, state); err != nil {
		return err
	}
	d.State = state.Clone()
	return nil
}

// DeviceByEntityID finds the device bound to an external entity id.
func (m *Model) DeviceByEntityID(entityID string) *Device {
	for i := range m.layout.Devices {
		if m.layout.Devices[i].EntityID == entityID {
			return &m.layout.Devices[i]
		}
	}
	return nil
}

func (m *Model) buildChange(op Op) (EntityChange, error) {
	ec := EntityChange{Change: op.Change, Entity: op.Entity, ID: op.ID}

	switch op.Change {
	case ChangeAdd, ChangeUpdate:
	case ChangeRemove:
		if op.ID == "" {
			return EntityChange{}, fmt.Errorf("remove needs an id: %w", ErrInvalidOperation)
		}
		switch op.Entity {
		case EntityRoom, EntityWall, EntityDevice, EntityFurniture:
			return ec, nil
		default:
			return EntityChange{}, fmt.Errorf("unknown entity type %q: %w", op.Entity, ErrInvalidOperation)
		}
	default:
		return EntityChange{}, fmt.Errorf("unknown change kind %q: %w", op.Change, ErrInvalidOperation)
	}

	switch op.Entity {
	case EntityRoom:
		if op.Room == nil {
			return EntityChange{}, fmt.Errorf("room payload missing: %w", ErrInvalidOperation)
		}
		r := op.Room.Clone()
		if ec.ID == "" {
			ec.ID = r.ID
		}
		r.ID = ec.ID
		if op.Recipe != nil {
			boundary, err := BuildBoundary(op.Recipe.Pos, op.Recipe.Size, op.Recipe.Ops)
			if err != nil {
				return EntityChange{}, err
			}
			r.Boundary = boundary
		}
		if err := validateRoom(&r); err != nil {
			return EntityChange{}, err
		}
		r.Boundary = r.Boundary.Normalize()
		ec.Room = &r
	case EntityWall:
		if op.Wall == nil {
			return EntityChange{}, fmt.Errorf("wall payload missing: %w", ErrInvalidOperation)
		}
		w := op.Wall.Clone()
		if ec.ID == "" {
			ec.ID = w.ID
		}
		w.ID = ec.ID
		if err := validateWall(&w); err != nil {
			return EntityChange{}, err
		}
		ec.Wall = &w
	case EntityDevice:
		if op.Device == nil {
			return EntityChange{}, fmt.Errorf("device payload missing: %w", ErrInvalidOperation)
		}
		d := op.Device.Clone()
		if ec.ID == "" {
			ec.ID = d.ID
		}
		d.ID = ec.ID
		if err := validateDevice(m.layout, &d); err != nil {
			return EntityChange{}, err
		}
		ec.Device = &d
	case EntityFurniture:
		if op.Furniture == nil {
			return EntityChange{}, fmt.Errorf("furniture payload missing: %w", ErrInvalidOperation)
		}
		f := op.Furniture.Clone()
		if ec.ID == "" {
			ec.ID = f.ID
		}
		f.ID = ec.ID
		if err := validateFurniture(m.layout, &f); err != nil {
			return EntityChange{}, err
		}
		ec.Furniture = &f
	default:
		return EntityChange{}, fmt.Errorf("unknown entity type %q: %w", op.Entity, ErrInvalidOperation)
	}
	return ec, nil
}

// checkOrphanedDevices verifies every device room reference resolves after
// an edit, so removing a room also requires removing or reanchoring its
// devices first.
func checkOrphanedDevices(l *Layout) error {
	for i := range l.Devices {
		d := &l.Devices[i]
		if d.RoomID != nil && l.Room(*d.RoomID) == nil {
			return fmt.Errorf("device %s references removed room %s: %w", d.ID, *d.RoomID, ErrUnknownEntity)
		}
	}
	return nil
}

// checkOrphanedFurniture does the same for furniture room references.
func checkOrphanedFurniture(l *Layout) error {
	for i := range l.Furniture {
		f := &l.Furniture[i]
		if f.RoomID != nil && l.Room(*f.RoomID) == nil {
			return fmt.Errorf("furniture %s references removed room %s: %w", f.ID, *f.RoomID, ErrUnknownEntity)
		}
	}
	return nil
}
