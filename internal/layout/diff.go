package layout

import "fmt"

// ChangeKind is the kind of entity-level change carried in a diff.
type ChangeKind string

// Change kinds.
const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// EntityType identifies which entity collection a change targets.
type EntityType string

// Entity types.
const (
	EntityRoom      EntityType = "room"
	EntityWall      EntityType = "wall"
	EntityDevice    EntityType = "device"
	EntityFurniture EntityType = "furniture"
)

// EntityChange is one entity-level operation within a diff. Exactly one
// of Room, Wall, Device, or Furniture is set for add/update; remove
// carries only the ID.
type EntityChange struct {
	Change    ChangeKind `json:"change"`
	Entity    EntityType `json:"entity"`
	ID        string     `json:"id"`
	Room      *Room      `json:"room,omitempty"`
	Wall      *Wall      `json:"wall,omitempty"`
	Device    *Device    `json:"device,omitempty"`
	Furniture *Furniture `json:"furniture,omitempty"`
}

// Diff is an ordered list of entity changes taking a layout from
// FromVersion to ToVersion.
type Diff struct {
	FromVersion uint64         `json:"from_version"`
	ToVersion   uint64         `json:"to_version"`
	Changes     []EntityChange `json:"changes"`
}

// Clone returns an independent copy of the diff.
func (d Diff) Clone() Diff {
	out := d
	out.Changes = make([]EntityChange, len(d.Changes))
	for i, c := range d.Changes {
		cc := c
		if c.Room != nil {
			r := c.Room.Clone()
			cc.Room = &r
		}
		if c.Wall != nil {
			w := c.Wall.Clone()
			cc.Wall = &w
		}
		if c.Device != nil {
			dev := c.Device.Clone()
			cc.Device = &dev
		}
		if c.Furniture != nil {
			f := c.Furniture.Clone()
			cc.Furniture = &f
		}
		out.Changes[i] = cc
	}
	return out
}

// ApplyDiff replays a diff onto the layout. The diff's source version must
// match the layout's current version; on success the layout's version
// becomes the diff's target version.
//
// ApplyDiff trusts the diff's contents (they were validated when the diff
// was produced); it only enforces referential consistency.
func ApplyDiff(l *Layout, d Diff) error {
	if l.Version != d.FromVersion {
		return fmt.Errorf("layout at %d, diff from %d: %w", l.Version, d.FromVersion, ErrVersionMismatch)
	}
	for i, c := range d.Changes {
		if err := applyChange(l, c); err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
	}
	l.Version = d.ToVersion
	return nil
}

func applyChange(l *Layout, c EntityChange) error {
	switch c.Entity {
	case EntityRoom:
		return applyRoomChange(l, c)
	case EntityWall:
		return applyWallChange(l, c)
	case EntityDevice:
		return applyDeviceChange(l, c)
	case EntityFurniture:
		return applyFurnitureChange(l, c)
	default:
		return fmt.Errorf("entity %q: %w", c.Entity, ErrInvalidOperation)
	}
}

func applyRoomChange(l *Layout, c EntityChange) error {
	switch c.Change {
	case ChangeAdd:
		if c.Room == nil {
			return fmt.Errorf("add room without payload: %w", ErrInvalidOperation)
		}
		if l.Room(c.Room.ID) != nil {
			return fmt.Errorf("room %s: %w", c.Room.ID, ErrDuplicateEntity)
		}
		l.Rooms = append(l.Rooms, c.Room.Clone())
	case ChangeUpdate:
		if c.Room == nil {
			return fmt.Errorf("update room without payload: %w", ErrInvalidOperation)
		}
		existing := l.Room(c.Room.ID)
		if existing == nil {
			return fmt.Errorf("room %s: %w", c.Room.ID, ErrUnknownEntity)
		}
		*existing = c.Room.Clone()
	case ChangeRemove:
		for i := range l.Rooms {
			if l.Rooms[i].ID == c.ID {
				l.Rooms = append(l.Rooms[:i], l.Rooms[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("room %s: %w", c.ID, ErrUnknownEntity)
	default:
		return fmt.Errorf("change %q: %w", c.Change, ErrInvalidOperation)
	}
	return nil
}

func applyWallChange(l *Layout, c EntityChange) error {
	switch c.Change {
	case ChangeAdd:
		if c.Wall == nil {
			return fmt.Errorf("add wall without payload: %w", ErrInvalidOperation)
		}
		if l.Wall(c.Wall.ID) != nil {
			return fmt.Errorf("wall %s: %w", c.Wall.ID, ErrDuplicateEntity)
		}
		l.Walls = append(l.Walls, c.Wall.Clone())
	case ChangeUpdate:
		if c.Wall == nil {
			return fmt.Errorf("update wall without payload: %w", ErrInvalidOperation)
		}
		existing := l.Wall(c.Wall.ID)
		if existing == nil {
			return fmt.Errorf("wall %s: %w", c.Wall.ID, ErrUnknownEntity)
		}
		*existing = c.Wall.Clone()
	case ChangeRemove:
		for i := range l.Walls {
			if l.Walls[i].ID == c.ID {
				l.Walls = append(l.Walls[:i], l.Walls[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("wall %s: %w", c.ID, ErrUnknownEntity)
	default:
		return fmt.Errorf("change %q: %w", c.Change, ErrInvalidOperation)
	}
	return nil
}

func applyDeviceChange(l *Layout, c EntityChange) error {
	switch c.Change {
	case ChangeAdd:
		if c.Device == nil {
			return fmt.Errorf("add device without payload: %w", ErrInvalidOperation)
		}
		if l.Device(c.Device.ID) != nil {
			return fmt.Errorf("device %s: %w", c.Device.ID, ErrDuplicateEntity)
		}
		l.Devices = append(l.Devices, c.Device.Clone())
	case ChangeUpdate:
		if c.Device == nil {
			return fmt.Errorf("update device without payload: %w", ErrInvalidOperation)
		}
		existing := l.Device(c.Device.ID)
		if existing == nil {
			return fmt.Errorf("device %s: %w", c.Device.ID, ErrUnknownEntity)
		}
		*existing = c.Device.Clone()
	case ChangeRemove:
		for i := range l.Devices {
			if l.Devices[i].ID == c.ID {
				l.Devices = append(l.Devices[:i], l.Devices[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("device %s: %w", c.ID, ErrUnknownEntity)
	default:
		return fmt.Errorf("change %q: %w", c.Change, ErrInvalidOperation)
	}
	return nil
}

func applyFurnitureChange(l *Layout, c EntityChange) error {
	switch c.Change {
	case ChangeAdd:
		if c.Furniture == nil {
			return fmt.Errorf("add furniture without payload: %w", ErrInvalidOperation)
		}
		if l.FurnitureByID(c.Furniture.ID) != nil {
			return fmt.Errorf("furniture %s: %w", c.Furniture.ID, ErrDuplicateEntity)
		}
		l.Furniture = append(l.Furniture, c.Furniture.Clone())
	case ChangeUpdate:
		if c.Furniture == nil {
			return fmt.Errorf("update furniture without payload: %w", ErrInvalidOperation)
		}
		existing := l.FurnitureByID(c.Furniture.ID)
		if existing == nil {
			return fmt.Errorf("furniture %s: %w", c.Furniture.ID, ErrUnknownEntity)
		}
		*existing = c.Furniture.Clone()
	case ChangeRemove:
		for i := range l.Furniture {
			if l.Furniture[i].ID == c.ID {
				l.Furniture = append(l.Furniture[:i], l.Furniture[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("furniture %s: %w", c.ID, ErrUnknownEntity)
	default:
		return fmt.Errorf("change %q: %w", c.Change, ErrInvalidOperation)
	}
	return nil
}
