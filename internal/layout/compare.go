package layout

import "reflect"

// ComputeDiff builds the diff that transforms layout a into layout b.
// Entities are matched by stable ID; an entity present in both but not
// deeply equal becomes an update. The returned diff carries a's version
// as FromVersion and toVersion as its target.
func ComputeDiff(a, b *Layout, toVersion uint64) Diff {
	d := Diff{FromVersion: a.Version, ToVersion: toVersion}

	for i := range b.Rooms {
		r := b.Rooms[i].Clone()
		prev := a.Room(r.ID)
		switch {
		case prev == nil:
			d.Changes = append(d.Changes, EntityChange{Change: ChangeAdd, Entity: EntityRoom, ID: r.ID, Room: &r})
		case !reflect.DeepEqual(*prev, r):
			d.Changes = append(d.Changes, EntityChange{Change: ChangeUpdate, Entity: EntityRoom, ID: r.ID, Room: &r})
		}
	}
	for i := range a.Rooms {
		if b.Room(a.Rooms[i].ID) == nil {
			d.Changes = append(d.Changes, EntityChange{Change: ChangeRemove, Entity: EntityRoom, ID: a.Rooms[i].ID})
		}
	}

	for i := range b.Walls {
		w := b.Walls[i].Clone()
		prev := a.Wall(w.ID)
		switch {
		case prev == nil:
			d.Changes = append(d.Changes, EntityChange{Change: ChangeAdd, Entity: EntityWall, ID: w.ID, Wall: &w})
		case !reflect.DeepEqual(*prev, w):
			d.Changes = append(d.Changes, EntityChange{Change: ChangeUpdate, Entity: EntityWall, ID: w.ID, Wall: &w})
		}
	}
	for i := range a.Walls {
		if b.Wall(a.Walls[i].ID) == nil {
			d.Changes = append(d.Changes, EntityChange{Change: ChangeRemove, Entity: EntityWall, ID: a.Walls[i].ID})
		}
	}

	for i := range b.Devices {
		dev := b.Devices[i].Clone()
		prev := a.Device(dev.ID)
		switch {
		case prev == nil:
			d.Changes = append(d.Changes, EntityChange{Change: ChangeAdd, Entity: EntityDevice, ID: dev.ID, Device: &dev})
		case !reflect.DeepEqual(*prev, dev):
			d.Changes = append(d.Changes, EntityChange{Change: ChangeUpdate, Entity: EntityDevice, ID: dev.ID, Device: &dev})
		}
	}
	for i := range a.Devices {
		if b.Device(a.Devices[i].ID) == nil {
			d.Changes = append(d.Changes, EntityChange{Change: ChangeRemove, Entity: EntityDevice, ID: a.Devices[i].ID})
		}
	}

	for i := range b.Furniture {
		f := b.Furniture[i].Clone()
		prev := a.FurnitureByID(f.ID)
		switch {
		case prev == nil:
			d.Changes = append(d.Changes, EntityChange{Change: ChangeAdd, Entity: EntityFurniture, ID: f.ID, Furniture: &f})
		case !reflect.DeepEqual(*prev, f):
			d.Changes = append(d.Changes, EntityChange{Change: ChangeUpdate, Entity: EntityFurniture, ID: f.ID, Furniture: &f})
		}
	}
	for i := range a.Furniture {
		if b.FurnitureByID(a.Furniture[i].ID) == nil {
			d.Changes = append(d.Changes, EntityChange{Change: ChangeRemove, Entity: EntityFurniture, ID: a.Furniture[i].ID})
		}
	}

	return d
}
