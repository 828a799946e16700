package instance

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/world"
)

// Random-exit search tunables.
const (
	// randomExitTries is the random probe budget for resolving a random
	// exit direction; the first half is restricted to cardinal directions.
	randomExitTries = 24
)

// exitKey identifies a wired template exit for back-link recursion.
type exitKey struct {
	from, to int
	dir      world.Direction
}

// BuildAt creates a new instance of an adventure anchored at loc, using the
// given rule. facing is the direction a new structure faces, or DirNone.
//
// Precondition: loc was returned by FindLocation for the same rule.
// Postcondition: The instance is registered with a fresh id; unless the
// adventure delays loading, its interior rooms exist and have been reset
// once. The registry is saved by the caller.
func (e *Engine) BuildAt(adv *adventure.Adventure, rule *adventure.LinkRule,
	loc *world.Room, facing world.Direction) (*Instance, error) {
	if loc == nil {
		return nil, fmt.Errorf("instance: no location to build adventure %d at", adv.Vnum)
	}
	now := e.now()
	inst := &Instance{
		ID:            e.nextID(),
		AdventureVnum: adv.Vnum,
		Adventure:     adv,
		Location:      loc,
		FakeLoc:       loc,
		Rule:          rule.Clone(),
		Rotation:      e.chooseRotation(adv, rule),
		EntryDir:      world.DirNone,
		Created:       now,
		LastReset:     now,
		MobCounts:     make(map[int]int),
	}
	e.instances = append(e.instances, inst)

	// Clear non-player occupants off the anchor before it changes.
	for _, mob := range e.entities.MobsInRoom(loc.Vnum) {
		e.extractMob(nil, mob)
	}

	e.raiseAnchor(inst, rule, loc, facing)
	loc.SetFlag(world.RoomHasInstance)
	loc.Home().SetFlag(world.RoomHasInstance)

	// Shell instances get their interior on first access instead.
	if adv.HasFlag(adventure.DelayLoad) && len(e.entities.PlayersInRoom(loc.Vnum)) == 0 {
		inst.SetFlag(FlagNeedsLoad)
		e.logger.Debug("built delayed instance shell",
			zap.Int("instance", inst.ID), zap.Int("adventure", adv.Vnum))
		return inst, nil
	}

	if err := e.instantiate(inst); err != nil {
		e.Delete(inst)
		return nil, err
	}
	e.resetInstance(inst, now)
	e.logger.Info("built instance",
		zap.Int("instance", inst.ID),
		zap.Int("adventure", adv.Vnum),
		zap.Int("anchor", int(loc.Vnum)))
	return inst, nil
}

// ForceLoad generates the interior of a pending shell instance, typically
// because a player reached its anchor.
//
// Postcondition: The needs-load marker is cleared; on failure the instance
// is deleted and an error returned.
func (e *Engine) ForceLoad(inst *Instance) error {
	if !inst.HasFlag(FlagNeedsLoad) {
		return nil
	}
	inst.ClearFlag(FlagNeedsLoad)
	if err := e.instantiate(inst); err != nil {
		e.Delete(inst)
		return err
	}
	e.resetInstance(inst, e.now())
	e.save()
	return nil
}

// chooseRotation picks the instance's facing. Rotatable adventures whose
// rule leaves the entry direction to chance face a random cardinal;
// everything else is built facing north, so an explicit rule direction
// comes out of the anchor unrotated.
func (e *Engine) chooseRotation(adv *adventure.Adventure, rule *adventure.LinkRule) world.Direction {
	if adv.HasFlag(adventure.Rotatable) && rule.Dir == world.DirRandom {
		return world.Direction(e.rng.Intn(world.NumSimpleDirs))
	}
	return world.North
}

// raiseAnchor prepares the anchor room: for new-building rules it erects
// the structure and, when closed, carves the entrance exit toward the
// direction the rule enters from.
func (e *Engine) raiseAnchor(inst *Instance, rule *adventure.LinkRule,
	loc *world.Room, facing world.Direction) {
	switch rule.Type {
	case adventure.LinkBuildingNew, adventure.LinkPortalBuildingNew:
	default:
		return
	}
	proto := e.world.BuildingProto(rule.Value)
	if proto == nil {
		e.logger.Warn("instance anchor references unknown building",
			zap.Int("instance", inst.ID), zap.Int("building", rule.Value))
		return
	}
	e.world.DisassociateBuilding(loc)
	e.world.ConstructBuilding(loc, proto)
	loc.SetFlag(world.RoomTemporary)
	if facing != world.DirNone && loc.IsClosed() {
		if outside := e.world.Shift(loc, facing); outside != nil {
			e.world.CreateExit(loc, outside, facing, false)
			e.world.SetEntrance(loc, facing.Opposite())
		}
	}
}

// instantiate generates the interior rooms and wires every exit, the anchor
// link included.
func (e *Engine) instantiate(inst *Instance) error {
	adv := inst.Adventure
	templates := e.store.RoomTemplatesIn(adv.Start, adv.End)
	if len(templates) == 0 {
		return fmt.Errorf("instance: adventure %d has no room templates", adv.Vnum)
	}
	inst.Rooms = make([]*world.Room, adv.RangeSize())

	anchorMap := e.world.MapRoom(inst.Location)
	sector := e.world.SectorByID(e.cfg.DefaultSector)
	for _, tmpl := range templates {
		var room *world.Room
		if inst.Start == nil {
			room = e.world.CreateRoom(nil)
			if anchorMap != nil {
				room.Island = anchorMap.Island
				room.MapLoc = anchorMap.Vnum
			}
			inst.Start = room
		} else {
			room = e.world.CreateRoom(inst.Start)
		}
		room.TemplateVnum = tmpl.Vnum
		room.Sector = sector
		room.Triggers = append([]string(nil), tmpl.Triggers...)
		room.Flags |= tmpl.BaseAffects | world.RoomUnclaimable
		inst.Rooms[tmpl.Vnum-adv.Start] = room
		e.roomIndex[room.Vnum] = inst
	}

	e.linkAnchor(inst)

	// Fixed exits first so random ones only claim leftover directions.
	visited := make(map[exitKey]bool)
	for _, pass := range []bool{false, true} {
		for _, room := range inst.Rooms {
			if room == nil {
				continue
			}
			tmpl := e.store.RoomTemplate(room.TemplateVnum)
			if tmpl == nil {
				continue
			}
			for _, ex := range tmpl.Exits {
				if (ex.Dir == world.DirRandom) != pass {
					continue
				}
				e.instantiateExit(inst, room, ex, visited)
			}
		}
	}
	for _, room := range inst.Rooms {
		if room != nil {
			e.world.SortExits(room)
		}
	}
	return nil
}

// linkAnchor joins the anchor room to the start room: direction rules get
// an exit pair, portal rules get a linked portal object pair.
func (e *Engine) linkAnchor(inst *Instance) {
	rule := inst.Rule
	loc := inst.Location
	start := inst.Start
	if rule == nil || loc == nil || start == nil {
		return
	}
	switch rule.Type {
	case adventure.LinkBuildingExisting, adventure.LinkBuildingNew:
		dir := rule.Dir
		if dir == world.DirRandom {
			dir = e.resolveRandomExit(inst.Adventure, loc, start)
		} else if dir >= 0 {
			dir = dir.Rotate(inst.Rotation)
		}
		if dir == world.DirNone {
			e.logger.Warn("no free direction to link instance entrance",
				zap.Int("instance", inst.ID))
			return
		}
		e.world.CreateExit(loc, start, dir, true)
		e.world.SortExits(loc)
		inst.EntryDir = dir
	case adventure.LinkPortalWorld, adventure.LinkPortalBuildingExisting,
		adventure.LinkPortalBuildingNew, adventure.LinkPortalCrop:
		e.spawnPortal(inst, rule.PortalIn, loc, start)
		e.spawnPortal(inst, rule.PortalOut, start, loc)
	}
}

// spawnPortal loads one side of a portal pair and points it at the target
// room.
func (e *Engine) spawnPortal(inst *Instance, vnum int, room, target *world.Room) {
	if vnum <= 0 {
		return
	}
	obj, err := e.entities.SpawnObject(vnum, room.Vnum)
	if err != nil {
		e.logger.Warn("failed to spawn instance portal",
			zap.Int("instance", inst.ID), zap.Int("object", vnum), zap.Error(err))
		return
	}
	obj.Portal = true
	obj.PortalTarget = target.Vnum
}

// instantiateExit wires one declared exit into the live graph, then tries
// to wire the target's declared back-link so paired passages come up
// together. The visited set bounds the recursion.
func (e *Engine) instantiateExit(inst *Instance, room *world.Room,
	tmpl *adventure.ExitTemplate, visited map[exitKey]bool) {
	key := exitKey{from: room.TemplateVnum, to: tmpl.Target, dir: tmpl.Dir}
	if visited[key] {
		return
	}
	visited[key] = true

	target := inst.RoomForTemplate(tmpl.Target)
	if target == nil {
		e.logger.Warn("exit template targets missing room",
			zap.Int("instance", inst.ID),
			zap.Int("from", room.TemplateVnum),
			zap.Int("to", tmpl.Target))
		return
	}
	dir := tmpl.Dir
	if dir == world.DirRandom {
		dir = e.resolveRandomExit(inst.Adventure, room, target)
	} else {
		dir = dir.Rotate(inst.Rotation)
	}
	if dir == world.DirNone {
		return
	}
	e.world.CreateExit(room, target, dir, false)
	if ex := room.FindExit(dir); ex != nil {
		ex.Flags = tmpl.Flags
		ex.Keyword = tmpl.Keyword
	}

	// Fixed back-links only; random ones wait for the random pass so they
	// never claim a direction a fixed exit needs.
	targetTmpl := e.store.RoomTemplate(target.TemplateVnum)
	if targetTmpl == nil {
		return
	}
	for _, back := range targetTmpl.Exits {
		if back.Target == room.TemplateVnum && back.Dir != world.DirRandom {
			e.instantiateExit(inst, target, back, visited)
		}
	}
}

// resolveRandomExit picks a direction for a random exit from room to
// target. Unless the adventure allows confusing randoms, a usable reverse
// direction must exist at the target, or the target must already point
// back. Random cardinal probes come first, then any direction, then
// deterministic scans, and finally any free direction one-way.
func (e *Engine) resolveRandomExit(adv *adventure.Adventure, room, target *world.Room) world.Direction {
	if room == nil || target == nil {
		return world.DirNone
	}
	needReverse := !adv.HasFlag(adventure.ConfusingRandoms)

	// An existing back-link at the target dictates the direction outright.
	for _, back := range target.Exits {
		if back.To != room.Vnum {
			continue
		}
		dir := back.Dir.Opposite()
		if room.FindExit(dir) == nil {
			return dir
		}
		needReverse = false
		break
	}

	usable := func(dir world.Direction) bool {
		if room.FindExit(dir) != nil {
			return false
		}
		return !needReverse || target.FindExit(dir.Opposite()) == nil
	}

	for try := 0; try < randomExitTries; try++ {
		span := world.NumSimpleDirs
		if try >= randomExitTries/2 {
			span = world.NumDirs
		}
		dir := world.Direction(e.rng.Intn(span))
		if usable(dir) {
			return dir
		}
	}
	for dir := world.Direction(0); int(dir) < world.NumDirs; dir++ {
		if usable(dir) {
			return dir
		}
	}
	// Last resort: any free direction, one-way.
	for dir := world.Direction(0); int(dir) < world.NumDirs; dir++ {
		if room.FindExit(dir) == nil {
			return dir
		}
	}
	return world.DirNone
}

// extractMob removes a mob from the world on behalf of an instance,
// keeping the owning instance's counts in step. inst may be nil for mobs
// not owned by any instance.
func (e *Engine) extractMob(inst *Instance, mob *entity.Mob) {
	// A mob standing here may be tagged to another instance; its owner's
	// counts are the ones to keep in step.
	if mob.InstanceID != entity.NoInstance && (inst == nil || inst.ID != mob.InstanceID) {
		inst = e.ByID(mob.InstanceID)
	}
	if e.entities.ExtractMob(mob.UID) {
		if inst != nil && inst.MobCounts != nil {
			if n := inst.MobCounts[mob.Vnum]; n > 1 {
				inst.MobCounts[mob.Vnum] = n - 1
			} else {
				delete(inst.MobCounts, mob.Vnum)
			}
		}
	}
}

// NoteMobDeath updates instance bookkeeping when a tagged mob dies outside
// the engine (combat, scripts).
func (e *Engine) NoteMobDeath(mob *entity.Mob) {
	if mob.InstanceID == entity.NoInstance {
		return
	}
	inst := e.ByID(mob.InstanceID)
	if inst == nil || inst.MobCounts == nil {
		return
	}
	if n := inst.MobCounts[mob.Vnum]; n > 1 {
		inst.MobCounts[mob.Vnum] = n - 1
	} else {
		delete(inst.MobCounts, mob.Vnum)
	}
}
