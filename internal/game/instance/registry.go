package instance

import (
	"math"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/world"
)

// nextID allocates an instance id: one past the current maximum, falling
// back to a linear scan for the lowest free id if the counter would
// overflow. Ids of deleted instances become reusable.
func (e *Engine) nextID() int {
	top := -1
	for _, inst := range e.instances {
		if inst.ID > top {
			top = inst.ID
		}
	}
	if top < math.MaxInt32 {
		return top + 1
	}
	used := make(map[int]bool, len(e.instances))
	for _, inst := range e.instances {
		used[inst.ID] = true
	}
	for id := 0; ; id++ {
		if !used[id] {
			return id
		}
	}
}

// Instances returns a snapshot of the live registry in registration order.
// Callers may delete instances while iterating the snapshot.
func (e *Engine) Instances() []*Instance {
	out := make([]*Instance, len(e.instances))
	copy(out, e.instances)
	return out
}

// ByID returns the instance with the given id, or nil.
func (e *Engine) ByID(id int) *Instance {
	for _, inst := range e.instances {
		if inst.ID == id {
			return inst
		}
	}
	return nil
}

// ByRoom returns the instance a room belongs to: interior rooms map through
// the room index, anchors and fake locations through their markers.
func (e *Engine) ByRoom(room *world.Room) *Instance {
	if room == nil {
		return nil
	}
	if inst, ok := e.roomIndex[room.Vnum]; ok {
		return inst
	}
	if !room.HasAnyFlag(world.RoomHasInstance | world.RoomFakeInstance) {
		return nil
	}
	for _, inst := range e.instances {
		if inst.Location == room || inst.FakeLoc == room {
			return inst
		}
	}
	return nil
}

// ByMob returns the instance a mob belongs to, preferring its tag and
// falling back to the room it stands in.
func (e *Engine) ByMob(mob *entity.Mob) *Instance {
	if mob == nil {
		return nil
	}
	if mob.InstanceID != entity.NoInstance {
		if inst := e.ByID(mob.InstanceID); inst != nil {
			return inst
		}
	}
	return e.ByRoom(e.world.RoomByID(mob.RoomID))
}

// CountLive returns the number of live, non-completed instances of an
// adventure.
func (e *Engine) CountLive(advVnum int) int {
	count := 0
	for _, inst := range e.instances {
		if inst.AdventureVnum == advVnum && !inst.HasFlag(FlagCompleted) {
			count++
		}
	}
	return count
}

// NearestToAdventure returns the live instance of an adventure whose
// displayed location is closest to from, with the distance. Returns nil
// when no instance has a resolvable location.
func (e *Engine) NearestToAdventure(advVnum int, from *world.Room) (*Instance, float64) {
	var best *Instance
	bestDist := math.Inf(1)
	for _, inst := range e.instances {
		if inst.AdventureVnum != advVnum || inst.HasFlag(FlagCompleted) {
			continue
		}
		loc := inst.DisplayedLocation()
		if loc == nil {
			continue
		}
		d := e.world.Distance(from, loc)
		if d < bestDist {
			best = inst
			bestDist = d
		}
	}
	return best, bestDist
}

// NearestRoomTemplate returns the live interior room generated from a room
// template, across all instances, closest to from.
func (e *Engine) NearestRoomTemplate(templateVnum int, from *world.Room) *world.Room {
	var best *world.Room
	bestDist := math.Inf(1)
	for _, inst := range e.instances {
		room := inst.RoomForTemplate(templateVnum)
		if room == nil {
			continue
		}
		d := e.world.Distance(from, room)
		if d < bestDist {
			best = room
			bestDist = d
		}
	}
	return best
}

// CountMobs returns the live count of a mob vnum tagged to the instance.
func (e *Engine) CountMobs(inst *Instance, vnum int) int {
	return inst.MobCounts[vnum]
}

// CountObjects returns the live count of an object vnum inside the
// instance's interior rooms.
func (e *Engine) CountObjects(inst *Instance, vnum int) int {
	count := 0
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		for _, obj := range e.entities.ObjectsInRoom(room.Vnum) {
			if obj.Vnum == vnum {
				count++
			}
		}
	}
	return count
}

// CountVehicles returns the live count of a vehicle vnum inside the
// instance's interior rooms.
func (e *Engine) CountVehicles(inst *Instance, vnum int) int {
	count := 0
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		for _, v := range e.entities.VehiclesInRoom(room.Vnum) {
			if v.Vnum == vnum {
				count++
			}
		}
	}
	return count
}

// CountPlayers returns the number of players inside the instance's interior
// rooms. Immortals are skipped unless includeImmortals; excludeUID skips one
// player, for "anyone here but me" checks.
func (e *Engine) CountPlayers(inst *Instance, includeImmortals bool, excludeUID string) int {
	count := 0
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		for _, p := range e.entities.PlayersInRoom(room.Vnum) {
			if p.UID == excludeUID {
				continue
			}
			if p.Immortal && !includeImmortals {
				continue
			}
			count++
		}
	}
	return count
}

// CanEnter reports whether a player may enter the instance: the adventure's
// player limit must not be exceeded. Immortals always pass.
func (e *Engine) CanEnter(player *entity.Player, inst *Instance) bool {
	if player.Immortal {
		return true
	}
	adv := inst.Adventure
	if adv == nil || adv.PlayerLimit <= 0 {
		return true
	}
	return e.CountPlayers(inst, false, player.UID) < adv.PlayerLimit
}

// ScaleConstraints returns the effective level and the clamped bounds that
// apply to an entity in a room: the owning instance's lock if scaled, and
// the adventure's min/max (0 = unbounded).
func (e *Engine) ScaleConstraints(room *world.Room) (level, min, max int) {
	inst := e.ByRoom(room)
	if inst == nil {
		return 0, 0, 0
	}
	if inst.Adventure != nil {
		min = inst.Adventure.MinLevel
		max = inst.Adventure.MaxLevel
	}
	return inst.Level, min, max
}

// instanceCap returns the effective instance limit for an adventure,
// scaled by world size relative to the reference size unless scaling is
// disabled or the adventure opts out. Never scales below one.
func (e *Engine) instanceCap(adv *adventure.Adventure) int {
	limit := adv.MaxInstances
	if limit <= 0 {
		return 0
	}
	if !e.cfg.WorldSizeScaling || adv.HasFlag(adventure.IgnoresWorldSize) {
		return limit
	}
	scaled := limit * e.world.MapSize() / e.cfg.ReferenceWorldSize
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// remove drops an instance from the registry and the room index.
func (e *Engine) remove(inst *Instance) {
	for i, other := range e.instances {
		if other == inst {
			e.instances = append(e.instances[:i], e.instances[i+1:]...)
			break
		}
	}
	for vnum, owner := range e.roomIndex {
		if owner == inst {
			delete(e.roomIndex, vnum)
		}
	}
}
