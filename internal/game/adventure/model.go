// Package adventure provides the read-only template store: adventure
// blueprints, room templates, spawn tables, and linking rules.
package adventure

import (
	"fmt"

	"github.com/emberforge/mud/internal/game/world"
)

// Flag is a bitmask of adventure behavior flags.
type Flag uint32

// Adventure behavior flags.
const (
	// Rotatable lets instances be built facing a random cardinal direction.
	Rotatable Flag = 1 << iota
	// ConfusingRandoms drops the back-link requirement for random exits.
	ConfusingRandoms
	// IgnoresWorldSize exempts the adventure from world-size cap scaling.
	IgnoresWorldSize
	// InDevelopment blocks instancing entirely.
	InDevelopment
	// NewbieOnly restricts placement to newbie islands.
	NewbieOnly
	// NoNewbie forbids placement on newbie islands.
	NoNewbie
	// IgnoresIslandLevels skips the island level-band overlap check.
	IgnoresIslandLevels
	// CheckOutsideFight defers pruning while any owned mob fights anywhere.
	CheckOutsideFight
	// NoMobCleanup leaves tagged mobs alive (disassociated) on deletion.
	NoMobCleanup
	// DelayLoad defers interior generation until first access.
	DelayLoad
	// EmptyResetOnly skips resets while players are inside.
	EmptyResetOnly
)

var flagNames = map[string]Flag{
	"rotatable":             Rotatable,
	"confusing-randoms":     ConfusingRandoms,
	"ignores-world-size":    IgnoresWorldSize,
	"in-development":        InDevelopment,
	"newbie-only":           NewbieOnly,
	"no-newbie":             NoNewbie,
	"ignores-island-levels": IgnoresIslandLevels,
	"check-outside-fight":   CheckOutsideFight,
	"no-mob-cleanup":        NoMobCleanup,
	"delay-load":            DelayLoad,
	"empty-reset-only":      EmptyResetOnly,
}

// ParseFlags resolves a list of flag names into a mask.
//
// Postcondition: Returns an error naming the first unknown flag.
func ParseFlags(names []string) (Flag, error) {
	var mask Flag
	for _, n := range names {
		f, ok := flagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown adventure flag %q", n)
		}
		mask |= f
	}
	return mask, nil
}

// LinkType classifies a linking rule.
type LinkType int

// Linking rule types. The first six are location rules; the rest are
// pure limiters.
const (
	LinkBuildingExisting LinkType = iota
	LinkBuildingNew
	LinkPortalWorld
	LinkPortalBuildingExisting
	LinkPortalBuildingNew
	LinkPortalCrop
	LinkTimeLimit
	LinkNotNearSelf
	LinkEventRunning
)

var linkTypeNames = map[string]LinkType{
	"building-existing":        LinkBuildingExisting,
	"building-new":             LinkBuildingNew,
	"portal-world":             LinkPortalWorld,
	"portal-building-existing": LinkPortalBuildingExisting,
	"portal-building-new":      LinkPortalBuildingNew,
	"portal-crop":              LinkPortalCrop,
	"time-limit":               LinkTimeLimit,
	"not-near-self":            LinkNotNearSelf,
	"event-running":            LinkEventRunning,
}

// ParseLinkType resolves a rule type name.
func ParseLinkType(name string) (LinkType, bool) {
	t, ok := linkTypeNames[name]
	return t, ok
}

// String returns the rule type's canonical name.
func (t LinkType) String() string {
	for name, lt := range linkTypeNames {
		if lt == t {
			return name
		}
	}
	return "unknown"
}

// LinkFlag is a bitmask of linking rule placement policies.
type LinkFlag uint32

// Linking rule policy flags.
const (
	// LinkCityOnly requires an owned home room inside a city.
	LinkCityOnly LinkFlag = 1 << iota
	// LinkNoCity forbids placement inside a city.
	LinkNoCity
	// LinkClaimedOnly requires the location to have an owner.
	LinkClaimedOnly
	// LinkClaimedOK permits claimed locations (default policy forbids them).
	LinkClaimedOK
	// LinkContinentOnly restricts placement to continents.
	LinkContinentOnly
	// LinkNoContinent forbids placement on continents.
	LinkNoContinent
)

var linkFlagNames = map[string]LinkFlag{
	"city-only":      LinkCityOnly,
	"no-city":        LinkNoCity,
	"claimed-only":   LinkClaimedOnly,
	"claimed-ok":     LinkClaimedOK,
	"continent-only": LinkContinentOnly,
	"no-continent":   LinkNoContinent,
}

// ParseLinkFlags resolves a list of policy flag names into a mask.
func ParseLinkFlags(names []string) (LinkFlag, error) {
	var mask LinkFlag
	for _, n := range names {
		f, ok := linkFlagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown link flag %q", n)
		}
		mask |= f
	}
	return mask, nil
}

// LinkRule is one typed policy describing how/where/whether an adventure
// may be anchored.
type LinkRule struct {
	// Type classifies the rule.
	Type LinkType
	// Value is the rule parameter: a building vnum for building rules, a
	// time limit in minutes for LinkTimeLimit, a tile radius for
	// LinkNotNearSelf, an event id for LinkEventRunning.
	Value int
	// Sector is the target sector id for LinkPortalWorld rules.
	Sector string
	// Crop is the target crop for LinkPortalCrop rules.
	Crop string
	// Dir is the preferred entry direction; may be DirRandom.
	Dir world.Direction
	// BuildOn is the terrain mask a new structure's tile must match.
	BuildOn world.TerrainFlag
	// BuildFacing is the terrain mask an adjacent tile must match, if any.
	BuildFacing world.TerrainFlag
	// PortalIn and PortalOut are the object vnums of the linked portal
	// pair for portal rules; zero means no portal object on that side.
	PortalIn  int
	PortalOut int
	// Flags holds placement policy flags.
	Flags LinkFlag
}

// LocationRule reports whether this rule can produce an anchor location.
// The remaining types are pure limiters.
func (r *LinkRule) LocationRule() bool {
	switch r.Type {
	case LinkBuildingExisting, LinkBuildingNew, LinkPortalWorld,
		LinkPortalBuildingExisting, LinkPortalBuildingNew, LinkPortalCrop:
		return true
	}
	return false
}

// HasFlag reports whether any bit of f is set.
func (r *LinkRule) HasFlag(f LinkFlag) bool {
	return r.Flags&f != 0
}

// Clone returns an independent copy of the rule. Instances snapshot their
// rule at build time so later template edits don't affect them.
func (r *LinkRule) Clone() *LinkRule {
	cp := *r
	return &cp
}

// SpawnKind classifies a spawn table entry.
type SpawnKind int

// Spawn entry kinds.
const (
	SpawnMob SpawnKind = iota
	SpawnObject
	SpawnVehicle
)

var spawnKindNames = map[string]SpawnKind{
	"mob":     SpawnMob,
	"object":  SpawnObject,
	"vehicle": SpawnVehicle,
}

// ParseSpawnKind resolves a spawn kind name.
func ParseSpawnKind(name string) (SpawnKind, bool) {
	k, ok := spawnKindNames[name]
	return k, ok
}

// SpawnEntry is one row of a room template's spawn table.
type SpawnEntry struct {
	// Kind selects mob, object, or vehicle.
	Kind SpawnKind
	// Vnum is the entity prototype to spawn.
	Vnum int
	// Percent is the spawn chance in hundredths of a percent (0-10000).
	Percent int
	// Limit caps the live count of this vnum within one instance; a zero
	// limit disables the row.
	Limit int
}

// ExitTemplate declares a passage between two room templates.
type ExitTemplate struct {
	// Target is the destination room template vnum.
	Target int
	// Dir is the template-relative direction; may be DirRandom.
	Dir world.Direction
	// Flags carries door markers copied onto the live exit.
	Flags world.ExitFlag
	// Keyword is the door keyword, if any.
	Keyword string
}

// RoomTemplate is the blueprint for one interior room.
type RoomTemplate struct {
	// Vnum uniquely identifies the template.
	Vnum int
	// Name is the display name.
	Name string
	// BaseAffects are room flags applied to every instantiated copy.
	BaseAffects world.RoomFlag
	// Exits lists declared passages in template order.
	Exits []*ExitTemplate
	// Spawns is the ordered spawn table.
	Spawns []*SpawnEntry
	// Triggers lists script trigger names attached at instantiation.
	Triggers []string
}

// Adventure is the blueprint for an instanced zone.
type Adventure struct {
	// Vnum uniquely identifies the adventure.
	Vnum int
	// Name is the display name.
	Name string
	// Start and End bound the contiguous room template vnum range.
	Start int
	End   int
	// Flags holds behavior flags.
	Flags Flag
	// MinLevel and MaxLevel bound the scaling band; zero = unbounded.
	MinLevel int
	MaxLevel int
	// MaxInstances caps concurrent live instances (before world-size scaling).
	MaxInstances int
	// PlayerLimit caps simultaneous players inside; zero = unlimited.
	PlayerLimit int
	// ResetMinutes is the reset interval; <= 0 disables resets.
	ResetMinutes int
	// LinkRules is the ordered linking rule list.
	LinkRules []*LinkRule
	// CleanupTriggers fire once when an instance's entrance is unlinked.
	CleanupTriggers []string
}

// HasFlag reports whether any bit of f is set.
func (a *Adventure) HasFlag(f Flag) bool {
	return a.Flags&f != 0
}

// RangeSize returns the room template range length, the fixed interior
// room slot count of every instance.
func (a *Adventure) RangeSize() int {
	return a.End - a.Start + 1
}

// RuleOfType returns the first linking rule of the given type, or nil.
func (a *Adventure) RuleOfType(t LinkType) *LinkRule {
	for _, r := range a.LinkRules {
		if r.Type == t {
			return r
		}
	}
	return nil
}

// LocationRules returns the subset of linking rules able to produce an
// anchor location, in declaration order.
func (a *Adventure) LocationRules() []*LinkRule {
	var out []*LinkRule
	for _, r := range a.LinkRules {
		if r.LocationRule() {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks blueprint invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first
// violation. A malformed range is permanently ineligible for instancing.
func (a *Adventure) Validate() error {
	if a.Vnum < 0 {
		return fmt.Errorf("adventure vnum must be >= 0, got %d", a.Vnum)
	}
	if a.Name == "" {
		return fmt.Errorf("adventure %d: name must not be empty", a.Vnum)
	}
	if a.Start < 0 || a.End < a.Start {
		return fmt.Errorf("adventure %d: invalid template range [%d, %d]", a.Vnum, a.Start, a.End)
	}
	if a.MaxInstances < 1 {
		return fmt.Errorf("adventure %d: max_instances must be >= 1, got %d", a.Vnum, a.MaxInstances)
	}
	if a.MinLevel < 0 || a.MaxLevel < 0 {
		return fmt.Errorf("adventure %d: levels must be >= 0", a.Vnum)
	}
	if a.MaxLevel > 0 && a.MinLevel > a.MaxLevel {
		return fmt.Errorf("adventure %d: min_level %d exceeds max_level %d", a.Vnum, a.MinLevel, a.MaxLevel)
	}
	return nil
}
