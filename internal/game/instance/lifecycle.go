package instance

import (
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/world"
	"github.com/emberforge/mud/internal/scripting"
)

// Generate attempts to spawn one new instance, round-robining across
// adventure templates via a persistent cursor. At most one adventure is
// tried per call; the cursor wraps once when the end of the list is
// reached.
//
// Postcondition: Returns the new instance, or nil when nothing was built.
func (e *Engine) Generate() *Instance {
	advs := e.store.Adventures()
	for pass := 0; pass < 2; pass++ {
		for _, adv := range advs {
			if adv.Vnum <= e.genCursor {
				continue
			}
			if !e.canInstance(adv) {
				continue
			}
			e.genCursor = adv.Vnum
			rules := adv.LocationRules()
			if len(rules) == 0 {
				return nil
			}
			rule := rules[e.rng.Intn(len(rules))]
			loc, facing, ok := e.FindLocation(adv, rule)
			if !ok {
				return nil
			}
			inst, err := e.BuildAt(adv, rule, loc, facing)
			if err != nil {
				e.logger.Error("failed to build instance",
					zap.Int("adventure", adv.Vnum), zap.Error(err))
				return nil
			}
			e.save()
			return inst
		}
		e.genCursor = -1
	}
	return nil
}

// canInstance reports whether an adventure may gain another instance right
// now.
func (e *Engine) canInstance(adv *adventure.Adventure) bool {
	if adv.HasFlag(adventure.InDevelopment) {
		return false
	}
	if adv.Start < 0 || adv.End < adv.Start {
		return false
	}
	if e.store.RoomTemplate(adv.Start) == nil {
		return false
	}
	if e.CountLive(adv.Vnum) >= e.instanceCap(adv) {
		return false
	}
	if rule := adv.RuleOfType(adventure.LinkEventRunning); rule != nil {
		if e.events == nil || !e.events.IsRunning(rule.Value) {
			return false
		}
	}
	return true
}

// ResetAll runs due resets across the registry.
//
// Postcondition: Instances whose interval elapsed have re-rolled their
// spawn tables; the file is saved once if anything reset.
func (e *Engine) ResetAll() {
	now := e.now()
	any := false
	for _, inst := range e.Instances() {
		adv := inst.Adventure
		if adv == nil || inst.HasFlag(FlagCompleted) || adv.ResetMinutes <= 0 {
			continue
		}
		if now.Before(inst.LastReset.Add(time.Duration(adv.ResetMinutes) * time.Minute)) {
			continue
		}
		if adv.HasFlag(adventure.EmptyResetOnly) && e.CountPlayers(inst, true, "") > 0 {
			continue
		}
		e.resetInstance(inst, now)
		any = true
	}
	if any {
		e.save()
	}
}

// Reset forces one instance's reset immediately, ignoring the interval.
func (e *Engine) Reset(inst *Instance) {
	e.resetInstance(inst, e.now())
	e.save()
}

// resetInstance fires reset triggers and re-rolls every room's spawn
// table, honoring per-vnum limits. Pending shells only refresh their
// timestamp.
func (e *Engine) resetInstance(inst *Instance, now time.Time) {
	inst.LastReset = now
	if inst.HasFlag(FlagNeedsLoad) {
		return
	}
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		e.fireTriggers(room.Triggers, scripting.TriggerReset, scripting.Payload{
			InstanceID: inst.ID,
			RoomID:     int(room.Vnum),
		})
		tmpl := e.store.RoomTemplate(room.TemplateVnum)
		if tmpl == nil {
			continue
		}
		for _, spawn := range tmpl.Spawns {
			if e.rng.Intn(10001) > spawn.Percent {
				continue
			}
			e.runSpawn(inst, room, spawn)
		}
	}
}

// runSpawn executes one spawn table row in a room, respecting the row's
// live-count limit within the instance.
func (e *Engine) runSpawn(inst *Instance, room *world.Room, spawn *adventure.SpawnEntry) {
	switch spawn.Kind {
	case adventure.SpawnMob:
		if e.CountMobs(inst, spawn.Vnum) >= spawn.Limit {
			return
		}
		proto := e.entities.MobProto(spawn.Vnum)
		if proto == nil {
			return
		}
		mob, err := e.entities.SpawnMob(spawn.Vnum, room.Vnum)
		if err != nil {
			return
		}
		mob.InstanceID = inst.ID
		if inst.Level > 0 {
			mob.ScaleLevel = inst.Level
		}
		inst.MobCounts[spawn.Vnum]++
		e.fireTriggers(proto.Triggers, scripting.TriggerLoad, scripting.Payload{
			InstanceID: inst.ID,
			RoomID:     int(room.Vnum),
			EntityUID:  mob.UID,
			Vnum:       mob.Vnum,
		})
	case adventure.SpawnObject:
		if e.CountObjects(inst, spawn.Vnum) >= spawn.Limit {
			return
		}
		proto := e.entities.ObjectProto(spawn.Vnum)
		if proto == nil {
			return
		}
		obj, err := e.entities.SpawnObject(spawn.Vnum, room.Vnum)
		if err != nil {
			return
		}
		if inst.Level > 0 {
			obj.ScaleLevel = inst.Level
		}
		// Portals declared against template vnums lead to this instance's
		// own copy of the room.
		if proto.Portal {
			if target := inst.RoomForTemplate(proto.PortalTarget); target != nil {
				obj.PortalTarget = target.Vnum
			} else {
				obj.PortalTarget = world.NoRoom
			}
		}
	case adventure.SpawnVehicle:
		if e.CountVehicles(inst, spawn.Vnum) >= spawn.Limit {
			return
		}
		if e.entities.VehicleProto(spawn.Vnum) == nil {
			return
		}
		v, err := e.entities.SpawnVehicle(spawn.Vnum, room.Vnum)
		if err != nil {
			return
		}
		if inst.Level > 0 {
			v.ScaleLevel = inst.Level
		}
	}
}

// ScaleTo locks the instance to a level, clamped to the adventure's band.
// Mobs whose scale differs are rescaled; objects and vehicles that already
// carry a nonzero scale are left untouched.
//
// Postcondition: Returns the effective level after clamping.
func (e *Engine) ScaleTo(inst *Instance, level int) int {
	if adv := inst.Adventure; adv != nil {
		if adv.MinLevel > 0 && level < adv.MinLevel {
			level = adv.MinLevel
		}
		if adv.MaxLevel > 0 && level > adv.MaxLevel {
			level = adv.MaxLevel
		}
	}
	inst.Level = level
	for _, mob := range e.entities.AllMobs() {
		if mob.InstanceID == inst.ID && mob.ScaleLevel != level {
			mob.ScaleLevel = level
		}
	}
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		for _, obj := range e.entities.ObjectsInRoom(room.Vnum) {
			if obj.ScaleLevel == 0 {
				obj.ScaleLevel = level
			}
		}
		for _, v := range e.entities.VehiclesInRoom(room.Vnum) {
			if v.ScaleLevel == 0 {
				v.ScaleLevel = level
			}
		}
	}
	e.save()
	return level
}

// LockLevel scales the instance owning a room to the given level if it is
// still unscaled, typically on first player entry.
//
// Postcondition: Returns the instance's effective level, or 0 when the
// room belongs to no instance.
func (e *Engine) LockLevel(room *world.Room, level int) int {
	inst := e.ByRoom(room)
	if inst == nil {
		return 0
	}
	if inst.Level > 0 {
		return inst.Level
	}
	return e.ScaleTo(inst, level)
}

// SetFakeLoc moves a roaming instance's displayed location. Passing nil
// resets it to the anchor.
//
// Postcondition: Fake-location markers are consistent across any instances
// sharing rooms; interior rooms adopt the new location's island and map
// identity.
func (e *Engine) SetFakeLoc(inst *Instance, room *world.Room) {
	if room == nil {
		room = inst.Location
	}
	old := inst.FakeLoc
	if old == room {
		return
	}
	inst.FakeLoc = room
	if old != nil && old != inst.Location {
		e.dropFakeMarker(old)
	}
	if room != nil && room != inst.Location {
		room.SetFlag(world.RoomFakeInstance)
	}
	e.propagateMapIdentity(inst)
	e.save()
}

// dropFakeMarker clears the fake-instance marker unless another live
// instance still displays itself there.
func (e *Engine) dropFakeMarker(room *world.Room) {
	for _, other := range e.instances {
		if other.FakeLoc == room && other.FakeLoc != other.Location {
			return
		}
	}
	room.ClearFlag(world.RoomFakeInstance)
}

// propagateMapIdentity pushes the displayed location's island and map tile
// onto every interior room, so spatial queries and weather track the
// instance's apparent position.
func (e *Engine) propagateMapIdentity(inst *Instance) {
	mapLoc := e.world.MapRoom(inst.DisplayedLocation())
	if mapLoc == nil {
		return
	}
	for _, room := range inst.Rooms {
		if room == nil {
			continue
		}
		room.Island = mapLoc.Island
		room.MapLoc = mapLoc.Vnum
	}
}

// MarkCompleted flags an instance as finished; pruning removes it once it
// empties out.
func (e *Engine) MarkCompleted(inst *Instance) {
	if inst.HasFlag(FlagCompleted) {
		return
	}
	inst.SetFlag(FlagCompleted)
	e.save()
}

// Delete tears an instance down: evacuates players, destroys vehicles,
// unlinks the anchor, disposes of tagged mobs, expires bound quests, and
// deletes the interior rooms.
//
// Deletion is re-entry-guarded and suppresses instance-file writes for its
// duration; callers save afterward.
func (e *Engine) Delete(inst *Instance) {
	if inst.HasFlag(FlagCleanup) {
		return
	}
	inst.SetFlag(FlagCleanup)

	wasSuppressed := e.saveWait
	e.saveWait = true
	defer func() { e.saveWait = wasSuppressed }()

	adv := inst.Adventure
	if loc := inst.Location; loc != nil {
		// Vehicles cannot survive their garage; players can walk out.
		for _, room := range inst.Rooms {
			if room == nil {
				continue
			}
			for _, v := range e.entities.VehiclesInRoom(room.Vnum) {
				e.entities.ExtractVehicle(v.UID)
			}
			for _, p := range e.entities.PlayersInRoom(room.Vnum) {
				if err := e.entities.MovePlayer(p.UID, loc.Vnum); err != nil {
					e.logger.Error("failed to evacuate player",
						zap.String("player", p.UID), zap.Error(err))
				}
			}
		}
		e.unlinkAnchor(inst, loc)
	}

	if inst.FakeLoc != nil && inst.FakeLoc != inst.Location {
		e.dropFakeMarker(inst.FakeLoc)
	}

	if expired := e.quests.ExpireInstance(inst.ID); expired > 0 {
		e.logger.Debug("expired instance quests",
			zap.Int("instance", inst.ID), zap.Int("count", expired))
	}

	for _, mob := range e.entities.AllMobs() {
		if mob.InstanceID != inst.ID {
			continue
		}
		if adv != nil && adv.HasFlag(adventure.NoMobCleanup) {
			mob.InstanceID = entity.NoInstance
			continue
		}
		e.extractMob(inst, mob)
	}
	e.entities.DrainPendingMobs()

	hadRooms := false
	for i, room := range inst.Rooms {
		if room == nil {
			continue
		}
		for _, obj := range e.entities.ObjectsInRoom(room.Vnum) {
			e.entities.ExtractObject(obj.UID)
		}
		for _, mob := range e.entities.MobsInRoom(room.Vnum) {
			e.extractMob(inst, mob)
		}
		if err := e.world.DeleteRoom(room); err != nil {
			e.logger.Error("failed to delete instance room",
				zap.Int("instance", inst.ID), zap.Int("room", int(room.Vnum)), zap.Error(err))
		}
		delete(e.roomIndex, room.Vnum)
		inst.Rooms[i] = nil
		hadRooms = true
	}
	if hadRooms {
		e.world.CheckAllExits()
	}
	inst.Start = nil
	inst.MobCounts = nil
	inst.Rule = nil

	e.remove(inst)
	e.logger.Info("deleted instance",
		zap.Int("instance", inst.ID), zap.Int("adventure", inst.AdventureVnum))
}

// unlinkAnchor restores the anchor room: fires the adventure's cleanup
// triggers exactly once, removes a temporary structure, and clears the
// instance markers.
func (e *Engine) unlinkAnchor(inst *Instance, loc *world.Room) {
	if adv := inst.Adventure; adv != nil {
		e.fireTriggers(adv.CleanupTriggers, scripting.TriggerCleanup, scripting.Payload{
			InstanceID: inst.ID,
			RoomID:     int(loc.Vnum),
			Vnum:       adv.Vnum,
		})
	}
	if ex := loc.FindExit(inst.EntryDir); ex != nil && inst.Start != nil && ex.To == inst.Start.Vnum {
		// The interior-side exit goes away with the rooms; drop the
		// anchor's counterpart now.
		kept := loc.Exits[:0]
		for _, other := range loc.Exits {
			if other != ex {
				kept = append(kept, other)
			}
		}
		loc.Exits = kept
	}
	if loc.HasFlag(world.RoomTemporary) {
		// The carved doorway exit goes away with the structure.
		loc.Exits = nil
		e.world.DisassociateBuilding(loc)
	}
	loc.ClearFlag(world.RoomHasInstance)
	loc.Home().ClearFlag(world.RoomHasInstance)
}

// Prune deletes instances that have no business running: structurally
// broken, completed, past a time limit, or tied to an event no longer
// running. Occupied instances are spared, as are those with tagged mobs
// still fighting when the adventure asks for that check. A final sweep
// deletes orphaned adventure rooms no live instance owns.
func (e *Engine) Prune() {
	now := e.now()
	any := false
	for _, inst := range e.Instances() {
		if !e.shouldPrune(inst, now) {
			continue
		}
		e.Delete(inst)
		any = true
	}
	if e.sweepOrphanRooms() {
		any = true
	}
	if any {
		e.save()
	}
}

func (e *Engine) shouldPrune(inst *Instance, now time.Time) bool {
	adv := inst.Adventure
	doomed := false
	switch {
	case inst.HasFlag(FlagCompleted):
		doomed = true
	case adv == nil || inst.Location == nil:
		doomed = true
	case !inst.HasFlag(FlagNeedsLoad) && inst.Start == nil:
		doomed = true
	}
	if !doomed && adv != nil {
		if rule := ruleSnapshotOrTemplate(inst, adv, adventure.LinkTimeLimit); rule != nil {
			if now.After(inst.Created.Add(time.Duration(rule.Value) * time.Minute)) {
				doomed = true
			}
		}
		if rule := adv.RuleOfType(adventure.LinkEventRunning); rule != nil {
			if e.events == nil || !e.events.IsRunning(rule.Value) {
				doomed = true
			}
		}
	}
	if !doomed {
		return false
	}
	if e.CountPlayers(inst, true, "") > 0 {
		return false
	}
	if adv != nil && adv.HasFlag(adventure.CheckOutsideFight) {
		for _, mob := range e.entities.AllMobs() {
			if mob.InstanceID == inst.ID && mob.Fighting {
				return false
			}
		}
	}
	return true
}

// ruleSnapshotOrTemplate prefers the instance's snapshotted rule when it is
// of the wanted type, falling back to the template's current rules.
func ruleSnapshotOrTemplate(inst *Instance, adv *adventure.Adventure, t adventure.LinkType) *adventure.LinkRule {
	if inst.Rule != nil && inst.Rule.Type == t {
		return inst.Rule
	}
	return adv.RuleOfType(t)
}

// sweepOrphanRooms deletes adventure-generated rooms no live instance
// claims, a defense against crashes between room creation and registry
// persistence.
func (e *Engine) sweepOrphanRooms() bool {
	var orphans []*world.Room
	for _, room := range e.world.InteriorRooms() {
		if room.IsAdventure() && e.roomIndex[room.Vnum] == nil {
			orphans = append(orphans, room)
		}
	}
	if len(orphans) == 0 {
		return false
	}
	e.saveWait = true
	for _, room := range orphans {
		e.logger.Warn("deleting orphaned adventure room",
			zap.Int("room", int(room.Vnum)), zap.Int("template", room.TemplateVnum))
		for _, obj := range e.entities.ObjectsInRoom(room.Vnum) {
			e.entities.ExtractObject(obj.UID)
		}
		for _, mob := range e.entities.MobsInRoom(room.Vnum) {
			e.extractMob(nil, mob)
		}
		if err := e.world.DeleteRoom(room); err != nil {
			e.logger.Error("failed to delete orphaned room",
				zap.Int("room", int(room.Vnum)), zap.Error(err))
		}
	}
	e.world.CheckAllExits()
	e.saveWait = false
	return true
}

// DeleteAll removes every live instance of an adventure, returning how
// many were deleted.
func (e *Engine) DeleteAll(advVnum int) int {
	count := 0
	for _, inst := range e.Instances() {
		if inst.AdventureVnum == advVnum {
			e.Delete(inst)
			count++
		}
	}
	if count > 0 {
		e.save()
	}
	return count
}
