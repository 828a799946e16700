// Package world provides the live world graph: map tiles, interior rooms,
// exits, islands, sectors, and buildings.
package world

import "fmt"

// RoomID is a room's unique numeric id (vnum). Map tiles occupy the dense
// range [0, width*height); interior rooms are allocated above that.
type RoomID int

// NoRoom is the nil room id.
const NoRoom RoomID = -1

// Direction is a compass direction index.
type Direction int

// The eight map directions, in canonical exit-sort order.
// The first four are the "simple" cardinal directions.
const (
	North Direction = iota
	East
	South
	West
	Northeast
	Southeast
	Southwest
	Northwest
)

// Direction sentinels.
const (
	// DirNone means no direction was chosen or none is applicable.
	DirNone Direction = -1
	// DirRandom asks the builder to resolve a direction from free slots.
	DirRandom Direction = -2
)

// NumSimpleDirs is the count of cardinal directions.
const NumSimpleDirs = 4

// NumDirs is the count of all map directions.
const NumDirs = 8

var dirNames = [NumDirs]string{
	"north", "east", "south", "west",
	"northeast", "southeast", "southwest", "northwest",
}

// String returns the lowercase direction name, or "none"/"random" for sentinels.
func (d Direction) String() string {
	switch {
	case d == DirNone:
		return "none"
	case d == DirRandom:
		return "random"
	case d >= 0 && int(d) < NumDirs:
		return dirNames[d]
	default:
		return "invalid"
	}
}

// ParseDirection resolves a direction name, including the "random" sentinel.
//
// Postcondition: Returns (dir, true) on a known name, or (DirNone, false).
func ParseDirection(name string) (Direction, bool) {
	if name == "random" {
		return DirRandom, true
	}
	for i, n := range dirNames {
		if n == name {
			return Direction(i), true
		}
	}
	return DirNone, false
}

// Opposite returns the reverse direction. Sentinels map to themselves.
func (d Direction) Opposite() Direction {
	switch {
	case d >= 0 && d < NumSimpleDirs:
		return (d + 2) % NumSimpleDirs
	case d >= NumSimpleDirs && int(d) < NumDirs:
		return (d-NumSimpleDirs+2)%NumSimpleDirs + NumSimpleDirs
	default:
		return d
	}
}

// Rotate remaps a template-relative direction into world space for an
// instance built facing rotation. Rotation must be a cardinal direction;
// North is the identity. Sentinels pass through unchanged.
func (d Direction) Rotate(rotation Direction) Direction {
	if rotation < 0 || rotation >= NumSimpleDirs {
		return d
	}
	switch {
	case d >= 0 && d < NumSimpleDirs:
		return (d + rotation) % NumSimpleDirs
	case d >= NumSimpleDirs && int(d) < NumDirs:
		return (d-NumSimpleDirs+rotation)%NumSimpleDirs + NumSimpleDirs
	default:
		return d
	}
}

// TerrainFlag is a bitmask of terrain categories a sector belongs to.
// Linking rules use these masks for build-on and build-facing requirements.
type TerrainFlag uint32

// Terrain categories.
const (
	TerrainOcean TerrainFlag = 1 << iota
	TerrainPlains
	TerrainGrass
	TerrainForest
	TerrainDesert
	TerrainMountain
	TerrainRiver
	TerrainCrop
)

var terrainNames = map[string]TerrainFlag{
	"ocean":    TerrainOcean,
	"plains":   TerrainPlains,
	"grass":    TerrainGrass,
	"forest":   TerrainForest,
	"desert":   TerrainDesert,
	"mountain": TerrainMountain,
	"river":    TerrainRiver,
	"crop":     TerrainCrop,
}

// ParseTerrain resolves a space-separated list of terrain names into a mask.
//
// Postcondition: Unknown names are ignored; an empty list yields 0.
func ParseTerrain(names []string) TerrainFlag {
	var mask TerrainFlag
	for _, n := range names {
		mask |= terrainNames[n]
	}
	return mask
}

// Sector describes the terrain of a tile or interior room.
type Sector struct {
	// ID is the sector's unique name.
	ID string
	// Terrain is the terrain category mask for build-rule matching.
	Terrain TerrainFlag
	// Crop is the crop grown here, if any. Empty means no crop.
	Crop string
}

// IsLand reports whether this sector can host random placement probes.
func (s *Sector) IsLand() bool {
	return s != nil && s.Terrain&TerrainOcean == 0
}

// Island is a contiguous landmass record used by placement eligibility.
type Island struct {
	// ID uniquely identifies the island.
	ID int
	// Continent marks a large landmass exempt from island level bands.
	Continent bool
	// Newbie marks a starting island restricted to newbie-eligible content.
	Newbie bool
	// MinLevel and MaxLevel bound the island's content level band.
	// Zero means unbounded on that side.
	MinLevel int
	MaxLevel int
}

// Building describes a constructed structure occupying a tile.
type Building struct {
	// Vnum uniquely identifies the building type.
	Vnum int
	// Name is the display name.
	Name string
	// Open means the building has no interior barrier and needs no entrance.
	Open bool
}

// RoomFlag is a bitmask of room state markers.
type RoomFlag uint32

// Room state markers.
const (
	// RoomUnclaimable forbids empire claims; set on instanced interiors.
	RoomUnclaimable RoomFlag = 1 << iota
	// RoomDismantling marks a building being torn down.
	RoomDismantling
	// RoomHasInstance marks the anchor (and its home room) of a live instance.
	RoomHasInstance
	// RoomFakeInstance marks a room some instance currently displays itself at.
	RoomFakeInstance
	// RoomTemporary marks an anchor structure the engine built and must remove.
	RoomTemporary
	// RoomDark suppresses natural light.
	RoomDark
	// RoomSilent blocks speech and sound.
	RoomSilent
	// RoomNoTeleport blocks teleport entry and exit.
	RoomNoTeleport
)

// Room flags room templates may apply to their instantiated copies.
var roomFlagNames = map[string]RoomFlag{
	"unclaimable": RoomUnclaimable,
	"dark":        RoomDark,
	"silent":      RoomSilent,
	"no-teleport": RoomNoTeleport,
}

// ParseRoomFlags resolves a list of room flag names into a mask.
//
// Postcondition: Returns an error naming the first unknown flag.
func ParseRoomFlags(names []string) (RoomFlag, error) {
	var mask RoomFlag
	for _, n := range names {
		f, ok := roomFlagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown room flag %q", n)
		}
		mask |= f
	}
	return mask, nil
}

// Coords is a map tile position.
type Coords struct {
	X, Y int
}

// ExitFlag is a bitmask of door markers on an exit.
type ExitFlag uint32

// Exit door markers.
const (
	// ExitDoor marks a door that can be opened and closed.
	ExitDoor ExitFlag = 1 << iota
	// ExitClosed starts the door closed.
	ExitClosed
	// ExitHidden hides the exit from a casual look.
	ExitHidden
)

var exitFlagNames = map[string]ExitFlag{
	"door":   ExitDoor,
	"closed": ExitClosed,
	"hidden": ExitHidden,
}

// ParseExitFlags resolves a list of exit flag names into a mask.
//
// Postcondition: Returns an error naming the first unknown flag.
func ParseExitFlags(names []string) (ExitFlag, error) {
	var mask ExitFlag
	for _, n := range names {
		f, ok := exitFlagNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown exit flag %q", n)
		}
		mask |= f
	}
	return mask, nil
}

// Exit is a passage leading out of a room.
type Exit struct {
	// Dir is the compass direction of the exit.
	Dir Direction
	// To is the destination room id.
	To RoomID
	// Flags carries door markers copied from the exit template.
	Flags ExitFlag
	// Keyword is the door keyword, if any.
	Keyword string
}

// NoEmpire is the nil empire id.
const NoEmpire = -1

// NoTemplate marks a room not generated from a room template.
const NoTemplate = -1

// Room is one node of the world graph: a map tile or an interior room.
type Room struct {
	// Vnum uniquely identifies the room.
	Vnum RoomID
	// Coords is the map position; meaningful only for map tiles.
	Coords Coords
	// Sector is the current terrain; OriginalSector is restored when a
	// temporary structure is removed.
	Sector         *Sector
	OriginalSector *Sector
	// Island is the landmass record; interior rooms inherit it from their
	// instance's anchor or fake location.
	Island *Island
	// Building is the structure on this tile, if any.
	Building *Building
	// BuildingComplete reports whether construction has finished.
	BuildingComplete bool
	// Entrance is the direction a closed building's doorway faces.
	Entrance Direction
	// Flags holds room state markers.
	Flags RoomFlag
	// Owner is the claiming empire's id, or NoEmpire.
	Owner int
	// HomeRoom points at the room this one belongs to (an instance's start
	// room for interiors, a building's lead tile otherwise). Nil = self.
	HomeRoom *Room
	// TemplateVnum is the room template this room was generated from, or
	// NoTemplate for persistent-world rooms.
	TemplateVnum int
	// Triggers is the script trigger list attached at instantiation.
	Triggers []string
	// Exits is the outgoing exit list, kept in canonical direction order.
	Exits []*Exit
	// MapLoc is the map tile this room resolves to for spatial queries.
	// Interior rooms inherit it from the anchor or fake location.
	MapLoc RoomID
}

// Home returns the room's home room, or the room itself.
func (r *Room) Home() *Room {
	if r.HomeRoom != nil {
		return r.HomeRoom
	}
	return r
}

// IsAdventure reports whether this room was generated from a room template.
func (r *Room) IsAdventure() bool {
	return r.TemplateVnum != NoTemplate
}

// HasFlag reports whether all bits of f are set.
func (r *Room) HasFlag(f RoomFlag) bool {
	return r.Flags&f == f
}

// HasAnyFlag reports whether any bit of f is set.
func (r *Room) HasAnyFlag(f RoomFlag) bool {
	return r.Flags&f != 0
}

// SetFlag sets the bits of f.
func (r *Room) SetFlag(f RoomFlag) {
	r.Flags |= f
}

// ClearFlag clears the bits of f.
func (r *Room) ClearFlag(f RoomFlag) {
	r.Flags &^= f
}

// FindExit returns the exit in the given direction, or nil.
func (r *Room) FindExit(dir Direction) *Exit {
	for _, e := range r.Exits {
		if e.Dir == dir {
			return e
		}
	}
	return nil
}

// IsClosed reports whether the room's building blocks open map movement,
// requiring a carved entrance exit.
func (r *Room) IsClosed() bool {
	return r.Building != nil && !r.Building.Open
}
