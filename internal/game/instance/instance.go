// Package instance implements the adventure instancing engine: placement
// search, instance building, the registry and its lifecycle, and the
// persisted instance file.
package instance

import (
	"time"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/world"
)

// NoID is the nil instance id.
const NoID = -1

// Flag is a bitmask of instance lifecycle markers.
type Flag uint32

// Instance lifecycle markers.
const (
	// FlagNeedsLoad marks a shell whose interior generation was deferred
	// until first access.
	FlagNeedsLoad Flag = 1 << iota
	// FlagCompleted marks an instance finished and eligible for pruning.
	FlagCompleted
	// FlagCleanup guards deletion against re-entry.
	FlagCleanup
)

// Instance is one live, spatially-anchored realization of an adventure.
//
// Invariants: the id is unique within the registry; Rooms has fixed length
// RangeSize() from construction; every interior room's home room is the
// start room (the start room is its own home); the anchor carries the
// has-instance marker, mirrored onto its home room, while linked.
type Instance struct {
	// ID is the dense, reused instance id.
	ID int
	// AdventureVnum identifies the blueprint; Adventure is the resolved
	// template, nil when the blueprint no longer exists.
	AdventureVnum int
	Adventure     *adventure.Adventure
	// Location is the anchor room: the world entrance. Nil while pending.
	Location *world.Room
	// FakeLoc is the displayed location for roaming instances.
	// Defaults to the anchor.
	FakeLoc *world.Room
	// Start is the first generated interior room; home room of the rest.
	Start *world.Room
	// Rooms holds the interior rooms, indexed by template vnum offset.
	// Entries may be nil where the template range has holes.
	Rooms []*world.Room
	// Rule is a snapshot of the linking rule used to build this instance,
	// independent of later edits to the template.
	Rule *adventure.LinkRule
	// Rotation is the cardinal direction the instance was built facing.
	Rotation world.Direction
	// EntryDir is the resolved direction of the anchor link, or DirNone.
	EntryDir world.Direction
	// Level is the scale level; 0 = unscaled.
	Level int
	// Created and LastReset are lifecycle timestamps.
	Created   time.Time
	LastReset time.Time
	// Flags holds lifecycle markers.
	Flags Flag
	// MobCounts maps mob vnum to the live count tagged to this instance.
	MobCounts map[int]int

	// Raw room ids held between codec load and renumbering.
	rawLoc   world.RoomID
	rawStart world.RoomID
	rawFake  world.RoomID
	rawRooms []world.RoomID
}

// HasFlag reports whether any bit of f is set.
func (i *Instance) HasFlag(f Flag) bool {
	return i.Flags&f != 0
}

// SetFlag sets the bits of f.
func (i *Instance) SetFlag(f Flag) {
	i.Flags |= f
}

// ClearFlag clears the bits of f.
func (i *Instance) ClearFlag(f Flag) {
	i.Flags &^= f
}

// RoomForTemplate returns the live interior room generated from the given
// room template vnum, or nil. Portals and scripts use this to target the
// instance's local copy of a room.
func (i *Instance) RoomForTemplate(vnum int) *world.Room {
	if i.Adventure == nil || vnum < i.Adventure.Start || vnum > i.Adventure.End {
		return nil
	}
	idx := vnum - i.Adventure.Start
	if idx >= len(i.Rooms) {
		// Pending shells have no room slots yet.
		return nil
	}
	return i.Rooms[idx]
}

// DisplayedLocation returns the room the instance presents itself at: the
// fake location when roaming, otherwise the anchor.
func (i *Instance) DisplayedLocation() *world.Room {
	if i.FakeLoc != nil {
		return i.FakeLoc
	}
	return i.Location
}
