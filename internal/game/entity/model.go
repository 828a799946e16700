// Package entity tracks live mobs, objects, vehicles, and players, and the
// prototypes they spawn from.
package entity

import (
	"github.com/emberforge/mud/internal/game/world"
)

// NoInstance marks an entity not owned by any adventure instance.
const NoInstance = -1

// MobProto is the prototype a live mob spawns from.
type MobProto struct {
	// Vnum uniquely identifies the prototype.
	Vnum int
	// Name is the display name.
	Name string
	// Triggers lists script trigger names fired on load.
	Triggers []string
}

// ObjectProto is the prototype a live object spawns from.
type ObjectProto struct {
	// Vnum uniquely identifies the prototype.
	Vnum int
	// Name is the display name.
	Name string
	// Portal marks the object as a room-to-room portal.
	Portal bool
	// PortalTarget is the room template vnum a portal leads to; instances
	// remap it to the local room at spawn time.
	PortalTarget int
}

// VehicleProto is the prototype a live vehicle spawns from.
type VehicleProto struct {
	// Vnum uniquely identifies the prototype.
	Vnum int
	// Name is the display name.
	Name string
}

// Mob is a live NPC.
type Mob struct {
	// UID uniquely identifies this runtime instance.
	UID string
	// Vnum is the source prototype's vnum.
	Vnum int
	// Name is copied from the prototype.
	Name string
	// RoomID is the room this mob currently occupies.
	RoomID world.RoomID
	// InstanceID tags the mob with its owning adventure instance, or NoInstance.
	InstanceID int
	// ScaleLevel is the level the mob was scaled to; 0 = unscaled.
	ScaleLevel int
	// Fighting reports whether the mob is mid-combat; extraction is
	// deferred while true.
	Fighting bool
	// extractPending marks a mob whose removal was deferred by combat.
	extractPending bool
}

// Object is a live item on the ground.
type Object struct {
	// UID uniquely identifies this runtime instance.
	UID string
	// Vnum is the source prototype's vnum.
	Vnum int
	// Name is copied from the prototype.
	Name string
	// RoomID is the room this object lies in.
	RoomID world.RoomID
	// Portal and PortalTarget mirror the prototype; PortalTarget holds a
	// live room id once an instance remaps it.
	Portal       bool
	PortalTarget world.RoomID
	// ScaleLevel is the level the object was scaled to; 0 = unscaled.
	ScaleLevel int
}

// Vehicle is a live vehicle parked in a room.
type Vehicle struct {
	// UID uniquely identifies this runtime instance.
	UID string
	// Vnum is the source prototype's vnum.
	Vnum int
	// Name is copied from the prototype.
	Name string
	// RoomID is the room this vehicle is parked in.
	RoomID world.RoomID
	// ScaleLevel is the level the vehicle was scaled to; 0 = unscaled.
	ScaleLevel int
}

// Player is a connected player character.
type Player struct {
	// UID uniquely identifies the player.
	UID string
	// Name is the character name.
	Name string
	// RoomID is the room the player occupies.
	RoomID world.RoomID
	// Immortal marks staff characters excluded from player limits.
	Immortal bool
}
