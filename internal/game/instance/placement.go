package instance

import (
	"time"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/world"
)

// Placement search tunables.
const (
	// randomProbes is how many random land tiles a new-building search tries.
	randomProbes = 500
	// facingProbes is how many random adjacent directions a facing
	// requirement tries before giving up on a tile.
	facingProbes = 10
)

// FindLocation searches the world for an anchor location satisfying a
// linking rule. Returns the chosen room, the facing direction for new
// buildings (DirNone when the rule has no facing requirement), and whether
// a location was found.
//
// Existing-target searches scan every candidate and keep a uniform random
// one; new-building searches probe random land tiles up to a fixed budget.
func (e *Engine) FindLocation(adv *adventure.Adventure, rule *adventure.LinkRule) (*world.Room, world.Direction, bool) {
	now := e.now()
	switch rule.Type {
	case adventure.LinkBuildingExisting, adventure.LinkPortalBuildingExisting:
		return e.findExisting(adv, rule, now, func(room *world.Room) bool {
			return room.Building != nil && room.Building.Vnum == rule.Value && room.BuildingComplete
		})
	case adventure.LinkPortalWorld:
		return e.findExisting(adv, rule, now, func(room *world.Room) bool {
			return room.Sector != nil && room.Sector.ID == rule.Sector
		})
	case adventure.LinkPortalCrop:
		return e.findExisting(adv, rule, now, func(room *world.Room) bool {
			return room.Sector != nil && room.Sector.Crop == rule.Crop && rule.Crop != ""
		})
	case adventure.LinkBuildingNew, adventure.LinkPortalBuildingNew:
		return e.findBuildSite(adv, rule, now)
	default:
		return nil, world.DirNone, false
	}
}

// findExisting scans all rooms for matches, validates each, and keeps one
// uniformly at random (reservoir of size one).
func (e *Engine) findExisting(adv *adventure.Adventure, rule *adventure.LinkRule,
	now time.Time, match func(*world.Room) bool) (*world.Room, world.Direction, bool) {
	var found *world.Room
	numFound := 0
	for _, room := range e.world.AllRooms() {
		if !match(room) {
			continue
		}
		if !e.validateLocation(adv, rule, room, now) || !e.validateLimits(adv, room) {
			continue
		}
		if e.rng.Intn(numFound+1) == 0 || found == nil {
			found = room
		}
		numFound++
	}
	if found == nil {
		return nil, world.DirNone, false
	}
	return found, world.DirNone, true
}

// findBuildSite probes random land tiles looking for somewhere a new anchor
// structure can be erected. When the rule requires a facing terrain, a few
// random adjacent directions are tried per tile; the facing direction must
// differ from the rule's own entry direction.
func (e *Engine) findBuildSite(adv *adventure.Adventure, rule *adventure.LinkRule,
	now time.Time) (*world.Room, world.Direction, bool) {
	proto := e.world.BuildingProto(rule.Value)
	if proto == nil {
		return nil, world.DirNone, false
	}
	for probe := 0; probe < randomProbes; probe++ {
		loc := e.world.RandomLandTile()
		if loc == nil {
			continue
		}
		if loc.Building != nil || loc.IsClosed() {
			continue
		}
		if !e.world.CanBuildOn(loc, rule.BuildOn) {
			continue
		}
		if !e.validateLocation(adv, rule, loc, now) || !e.validateLimits(adv, loc) {
			continue
		}
		if rule.BuildFacing == 0 {
			return loc, world.DirNone, true
		}
		for try := 0; try < facingProbes; try++ {
			dir := world.Direction(e.rng.Intn(world.NumDirs))
			if dir == rule.Dir {
				continue
			}
			facing := e.world.Shift(loc, dir)
			if facing == nil || !e.world.CanBuildOn(facing, rule.BuildFacing) {
				continue
			}
			return loc, dir, true
		}
	}
	return nil, world.DirNone, false
}

// validateLocation applies the shared eligibility checks to a candidate
// anchor room.
func (e *Engine) validateLocation(adv *adventure.Adventure, rule *adventure.LinkRule,
	loc *world.Room, now time.Time) bool {
	home := loc.Home()

	// Claimed land is off-limits unless the rule opts in; city-only rules
	// imply claimed land.
	claimedOK := rule.HasFlag(adventure.LinkClaimedOK | adventure.LinkCityOnly | adventure.LinkClaimedOnly)
	if home.Owner != world.NoEmpire && !claimedOK {
		return false
	}
	if rule.HasFlag(adventure.LinkClaimedOnly) && home.Owner == world.NoEmpire {
		return false
	}

	mapLoc := e.world.MapRoom(loc)
	if rule.HasFlag(adventure.LinkCityOnly) {
		if home.Owner == world.NoEmpire || mapLoc == nil ||
			!e.empires.InCity(home.Owner, mapLoc.Coords) {
			return false
		}
	}
	if rule.HasFlag(adventure.LinkNoCity) && home.Owner != world.NoEmpire &&
		mapLoc != nil && e.empires.InCity(home.Owner, mapLoc.Coords) {
		return false
	}

	// An owning empire must not have gone dark. This keeps fresh content
	// out of abandoned settlements.
	if home.Owner != world.NoEmpire &&
		e.empires.IsEmpty(home.Owner, time.Duration(e.cfg.EmpireEmptinessDays)*24*time.Hour, now) {
		return false
	}

	if loc.HasAnyFlag(world.RoomUnclaimable|world.RoomDismantling|world.RoomHasInstance) ||
		home.HasAnyFlag(world.RoomUnclaimable|world.RoomDismantling|world.RoomHasInstance) {
		return false
	}

	// New closed buildings must not blockade an existing building's doorway.
	if rule.Type == adventure.LinkBuildingNew || rule.Type == adventure.LinkPortalBuildingNew {
		if proto := e.world.BuildingProto(rule.Value); proto != nil && !proto.Open {
			if e.world.IsEntrance(loc) {
				return false
			}
		}
	}

	// Never build on top of a player.
	if len(e.entities.PlayersInRoom(loc.Vnum)) > 0 {
		return false
	}

	return e.validateIsland(adv, rule, mapLoc)
}

// validateIsland applies island and continent policy to the candidate's
// map location.
func (e *Engine) validateIsland(adv *adventure.Adventure, rule *adventure.LinkRule,
	mapLoc *world.Room) bool {
	var isl *world.Island
	if mapLoc != nil {
		isl = mapLoc.Island
	}

	if rule.HasFlag(adventure.LinkContinentOnly) && (isl == nil || !isl.Continent) {
		return false
	}
	if rule.HasFlag(adventure.LinkNoContinent) && isl != nil && isl.Continent {
		return false
	}

	// Newbie-exclusive adventures only ever land on newbie islands.
	if adv.HasFlag(adventure.NewbieOnly) {
		return isl != nil && isl.Newbie
	}
	if adv.HasFlag(adventure.IgnoresIslandLevels) {
		return true
	}
	if isl == nil || isl.Continent {
		return true
	}

	if isl.Newbie {
		if adv.HasFlag(adventure.NoNewbie) {
			return false
		}
		if adv.MinLevel > e.cfg.NewbieLevelCap {
			return false
		}
		return true
	}

	// The adventure's level band must overlap the island's, within
	// tolerance. Zero bounds are open-ended.
	const tolerance = 50
	if isl.MinLevel > 0 && adv.MaxLevel > 0 && adv.MaxLevel < isl.MinLevel-tolerance {
		return false
	}
	if isl.MaxLevel > 0 && adv.MinLevel > 0 && adv.MinLevel > isl.MaxLevel+tolerance {
		return false
	}
	return true
}

// validateLimits applies the secondary limiter rules (distance from other
// instances of the same adventure) to a candidate location.
func (e *Engine) validateLimits(adv *adventure.Adventure, loc *world.Room) bool {
	for _, rule := range adv.LinkRules {
		if rule.Type != adventure.LinkNotNearSelf {
			continue
		}
		for _, inst := range e.instances {
			if inst.AdventureVnum != adv.Vnum || inst.HasFlag(FlagCompleted) {
				continue
			}
			other := inst.DisplayedLocation()
			if other == nil {
				continue
			}
			if e.world.Distance(loc, other) <= float64(rule.Value) {
				return false
			}
		}
	}
	return true
}
