package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Manager owns the live world graph and provides room/exit primitives.
//
// Structural mutation (room creation/deletion, exit wiring) is driven from
// the single game pulse goroutine; the lock serializes reads from other
// subsystems against those mutations.
type Manager struct {
	mu        sync.RWMutex
	width     int
	height    int
	rooms     map[RoomID]*Room
	sectors   map[string]*Sector
	islands   map[int]*Island
	buildings map[int]*Building

	nextInterior RoomID
	rng          *rand.Rand
}

// NewManager creates a world of width x height ocean tiles.
//
// Precondition: width and height must be >= 1.
// Postcondition: Every map tile exists with the "ocean" sector and no island.
func NewManager(width, height int, seed int64) *Manager {
	ocean := &Sector{ID: "ocean", Terrain: TerrainOcean}
	m := &Manager{
		width:        width,
		height:       height,
		rooms:        make(map[RoomID]*Room, width*height),
		sectors:      map[string]*Sector{"ocean": ocean},
		islands:      make(map[int]*Island),
		buildings:    make(map[int]*Building),
		nextInterior: RoomID(width * height),
		rng:          rand.New(rand.NewSource(seed)),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			vnum := RoomID(y*width + x)
			m.rooms[vnum] = &Room{
				Vnum:           vnum,
				Coords:         Coords{X: x, Y: y},
				Sector:         ocean,
				OriginalSector: ocean,
				Owner:          NoEmpire,
				Entrance:       DirNone,
				TemplateVnum:   NoTemplate,
				MapLoc:         vnum,
			}
		}
	}
	return m
}

// MapSize returns the number of map tiles.
func (m *Manager) MapSize() int {
	return m.width * m.height
}

// RegisterSector adds a sector definition, replacing any previous one.
func (m *Manager) RegisterSector(s *Sector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectors[s.ID] = s
}

// SectorByID returns a registered sector, or nil.
func (m *Manager) SectorByID(id string) *Sector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sectors[id]
}

// RegisterIsland adds an island record, replacing any previous one.
func (m *Manager) RegisterIsland(i *Island) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.islands[i.ID] = i
}

// RegisterBuilding adds a building prototype, replacing any previous one.
func (m *Manager) RegisterBuilding(b *Building) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildings[b.Vnum] = b
}

// BuildingProto returns a registered building prototype, or nil.
func (m *Manager) BuildingProto(vnum int) *Building {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buildings[vnum]
}

// RoomByID returns the room with the given vnum, or nil.
func (m *Manager) RoomByID(id RoomID) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// TileAt returns the map tile at (x, y), or nil when out of bounds.
func (m *Manager) TileAt(x, y int) *Room {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return nil
	}
	return m.RoomByID(RoomID(y*m.width + x))
}

// Shift returns the map tile adjacent to room in the given direction, or nil.
//
// Precondition: room must be a map tile (interior rooms have no neighbors).
func (m *Manager) Shift(room *Room, dir Direction) *Room {
	if room == nil || int(room.Vnum) >= m.width*m.height {
		return nil
	}
	dx, dy := dirOffset(dir)
	return m.TileAt(room.Coords.X+dx, room.Coords.Y+dy)
}

func dirOffset(dir Direction) (int, int) {
	switch dir {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	case Northeast:
		return 1, -1
	case Southeast:
		return 1, 1
	case Southwest:
		return -1, 1
	case Northwest:
		return -1, -1
	default:
		return 0, 0
	}
}

// RandomLandTile returns one uniformly random non-ocean map tile, or nil if
// the draw landed on ocean. Callers probe repeatedly.
func (m *Manager) RandomLandTile() *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[RoomID(m.rng.Intn(m.width*m.height))]
	if room == nil || !room.Sector.IsLand() {
		return nil
	}
	return room
}

// AllRooms returns a snapshot of every room, map and interior, in vnum order.
// The snapshot is safe to iterate while rooms are deleted.
func (m *Manager) AllRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vnum < out[j].Vnum })
	return out
}

// InteriorRooms returns a snapshot of all non-map rooms in vnum order.
func (m *Manager) InteriorRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := RoomID(m.width * m.height)
	var out []*Room
	for id, r := range m.rooms {
		if id >= limit {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vnum < out[j].Vnum })
	return out
}

// CreateRoom allocates a new interior room with home as its home room.
//
// Postcondition: The room exists in the graph with a fresh vnum above the map
// range; its island and map identity are inherited from home when non-nil.
func (m *Manager) CreateRoom(home *Room) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := &Room{
		Vnum:         m.nextInterior,
		Owner:        NoEmpire,
		Entrance:     DirNone,
		TemplateVnum: NoTemplate,
		HomeRoom:     home,
		MapLoc:       NoRoom,
	}
	m.nextInterior++
	if home != nil {
		room.Island = home.Island
		room.MapLoc = home.MapLoc
	}
	m.rooms[room.Vnum] = room
	return room
}

// DeleteRoom removes an interior room from the graph.
//
// The caller must follow any batch of deletions with CheckAllExits to drop
// dangling exits. Map tiles are never deleted.
//
// Postcondition: Returns an error when room is nil or a map tile.
func (m *Manager) DeleteRoom(room *Room) error {
	if room == nil {
		return fmt.Errorf("world: delete of nil room")
	}
	if int(room.Vnum) < m.width*m.height {
		return fmt.Errorf("world: room %d is a map tile and cannot be deleted", room.Vnum)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, room.Vnum)
	return nil
}

// CreateExit wires an exit from one room to another, replacing any exit
// already occupying the direction. When bidirectional, the reverse exit is
// wired at the destination too.
//
// Precondition: from and to must be live rooms; dir must be a real direction.
func (m *Manager) CreateExit(from, to *Room, dir Direction, bidirectional bool) {
	if from == nil || to == nil || dir < 0 || int(dir) >= NumDirs {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wireExit(from, to, dir)
	if bidirectional {
		m.wireExit(to, from, dir.Opposite())
	}
}

func (m *Manager) wireExit(from, to *Room, dir Direction) {
	if ex := from.FindExit(dir); ex != nil {
		ex.To = to.Vnum
		return
	}
	from.Exits = append(from.Exits, &Exit{Dir: dir, To: to.Vnum})
}

// SortExits puts a room's exit list into canonical direction order.
func (m *Manager) SortExits(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(room.Exits, func(i, j int) bool {
		return room.Exits[i].Dir < room.Exits[j].Dir
	})
}

// CheckAllExits removes every exit pointing at a room no longer in the
// graph. Must run after any batch of room deletions.
func (m *Manager) CheckAllExits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		kept := room.Exits[:0]
		for _, ex := range room.Exits {
			if _, ok := m.rooms[ex.To]; ok {
				kept = append(kept, ex)
			}
		}
		room.Exits = kept
	}
}

// ConstructBuilding replaces whatever occupies the tile with the given
// building, completed immediately.
//
// Postcondition: The tile reports IsClosed per the building's Open flag;
// the previous sector is preserved in OriginalSector for restoration.
func (m *Manager) ConstructBuilding(room *Room, bld *Building) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.OriginalSector == nil {
		room.OriginalSector = room.Sector
	}
	room.Building = bld
	room.BuildingComplete = true
	room.Entrance = DirNone
}

// DisassociateBuilding removes a structure from a tile, restoring its
// original terrain.
func (m *Manager) DisassociateBuilding(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Building = nil
	room.BuildingComplete = false
	room.Entrance = DirNone
	room.Sector = room.OriginalSector
	room.ClearFlag(RoomTemporary)
}

// SetEntrance records the direction a closed building's doorway faces.
func (m *Manager) SetEntrance(room *Room, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.Entrance = dir
}

// IsEntrance reports whether the tile sits directly outside a closed
// building's doorway, making it ineligible to host another entrance.
func (m *Manager) IsEntrance(room *Room) bool {
	if room == nil {
		return false
	}
	for dir := Direction(0); int(dir) < NumDirs; dir++ {
		neighbor := m.Shift(room, dir)
		if neighbor == nil || neighbor.Building == nil || neighbor.Building.Open {
			continue
		}
		if neighbor.Entrance != DirNone && m.Shift(neighbor, neighbor.Entrance) == room {
			return true
		}
	}
	return false
}

// CanBuildOn reports whether the tile's terrain matches the rule mask and
// nothing is already constructed there.
func (m *Manager) CanBuildOn(room *Room, mask TerrainFlag) bool {
	if room == nil || room.Building != nil || mask == 0 {
		return false
	}
	return room.Sector != nil && room.Sector.Terrain&mask != 0
}

// MapRoom resolves a room to the map tile it presents as: itself for map
// tiles, the inherited map identity for interiors.
func (m *Manager) MapRoom(room *Room) *Room {
	if room == nil {
		return nil
	}
	if int(room.Vnum) < m.width*m.height {
		return room
	}
	if room.MapLoc == NoRoom {
		return nil
	}
	return m.RoomByID(room.MapLoc)
}

// Distance returns the straight-line distance in tiles between the map
// locations of two rooms. Rooms with no map identity are infinitely far.
func (m *Manager) Distance(a, b *Room) float64 {
	ma, mb := m.MapRoom(a), m.MapRoom(b)
	if ma == nil || mb == nil {
		return math.Inf(1)
	}
	dx := float64(ma.Coords.X - mb.Coords.X)
	dy := float64(ma.Coords.Y - mb.Coords.Y)
	return math.Hypot(dx, dy)
}
