package world_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/mud/internal/game/world"
)

func newTestWorld() *world.Manager {
	m := world.NewManager(10, 10, 1)
	m.RegisterSector(&world.Sector{ID: "grass", Terrain: world.TerrainGrass})
	return m
}

// makeLand turns every tile into grass so random probes always succeed.
func makeLand(m *world.Manager) {
	grass := m.SectorByID("grass")
	for _, room := range m.AllRooms() {
		room.Sector = grass
		room.OriginalSector = grass
	}
}

// --- geometry ---

func TestManager_TileAt_Bounds(t *testing.T) {
	m := newTestWorld()
	assert.NotNil(t, m.TileAt(0, 0))
	assert.NotNil(t, m.TileAt(9, 9))
	assert.Nil(t, m.TileAt(10, 0))
	assert.Nil(t, m.TileAt(-1, 0))
}

func TestManager_Shift_EdgesReturnNil(t *testing.T) {
	m := newTestWorld()
	corner := m.TileAt(0, 0)
	assert.Nil(t, m.Shift(corner, world.West))
	assert.Nil(t, m.Shift(corner, world.North))
	assert.NotNil(t, m.Shift(corner, world.South))
	assert.NotNil(t, m.Shift(corner, world.East))
}

func TestManager_Shift_RoundTrip(t *testing.T) {
	m := newTestWorld()
	mid := m.TileAt(5, 5)
	for d := world.Direction(0); int(d) < world.NumDirs; d++ {
		n := m.Shift(mid, d)
		require.NotNil(t, n)
		assert.Same(t, mid, m.Shift(n, d.Opposite()))
	}
}

func TestManager_RandomLandTile_AllOceanReturnsNil(t *testing.T) {
	m := newTestWorld()
	assert.Nil(t, m.RandomLandTile())
}

func TestManager_RandomLandTile_FindsLand(t *testing.T) {
	m := newTestWorld()
	makeLand(m)
	tile := m.RandomLandTile()
	require.NotNil(t, tile)
	assert.True(t, tile.Sector.IsLand())
}

// --- interior rooms ---

func TestManager_CreateRoom_AllocatesAboveMapRange(t *testing.T) {
	m := newTestWorld()
	r := m.CreateRoom(nil)
	assert.GreaterOrEqual(t, int(r.Vnum), m.MapSize())
	assert.Same(t, r, m.RoomByID(r.Vnum))
}

func TestManager_CreateRoom_InheritsHomeIdentity(t *testing.T) {
	m := newTestWorld()
	home := m.CreateRoom(nil)
	home.Island = &world.Island{ID: 3}
	home.MapLoc = 42

	r := m.CreateRoom(home)
	assert.Same(t, home, r.HomeRoom)
	assert.Same(t, home.Island, r.Island)
	assert.Equal(t, world.RoomID(42), r.MapLoc)
}

func TestManager_DeleteRoom_RejectsMapTiles(t *testing.T) {
	m := newTestWorld()
	err := m.DeleteRoom(m.TileAt(0, 0))
	assert.Error(t, err)
}

func TestManager_DeleteRoom_RemovesInterior(t *testing.T) {
	m := newTestWorld()
	r := m.CreateRoom(nil)
	require.NoError(t, m.DeleteRoom(r))
	assert.Nil(t, m.RoomByID(r.Vnum))
}

// --- exits ---

func TestManager_CreateExit_Bidirectional(t *testing.T) {
	m := newTestWorld()
	a := m.CreateRoom(nil)
	b := m.CreateRoom(nil)

	m.CreateExit(a, b, world.East, true)

	require.NotNil(t, a.FindExit(world.East))
	assert.Equal(t, b.Vnum, a.FindExit(world.East).To)
	require.NotNil(t, b.FindExit(world.West))
	assert.Equal(t, a.Vnum, b.FindExit(world.West).To)
}

func TestManager_CreateExit_ReplacesSameDirection(t *testing.T) {
	m := newTestWorld()
	a := m.CreateRoom(nil)
	b := m.CreateRoom(nil)
	c := m.CreateRoom(nil)

	m.CreateExit(a, b, world.North, false)
	m.CreateExit(a, c, world.North, false)

	assert.Len(t, a.Exits, 1)
	assert.Equal(t, c.Vnum, a.FindExit(world.North).To)
}

func TestManager_CheckAllExits_DropsDangling(t *testing.T) {
	m := newTestWorld()
	a := m.CreateRoom(nil)
	b := m.CreateRoom(nil)
	m.CreateExit(a, b, world.South, true)

	require.NoError(t, m.DeleteRoom(b))
	m.CheckAllExits()

	assert.Nil(t, a.FindExit(world.South))
}

// --- buildings ---

func TestManager_ConstructBuilding_PreservesOriginalSector(t *testing.T) {
	m := newTestWorld()
	makeLand(m)
	tile := m.TileAt(3, 3)
	grass := tile.Sector

	m.ConstructBuilding(tile, &world.Building{Vnum: 100, Name: "tower"})
	require.True(t, tile.BuildingComplete)

	m.DisassociateBuilding(tile)
	assert.Nil(t, tile.Building)
	assert.Same(t, grass, tile.Sector)
}

func TestManager_IsEntrance_DetectsClosedDoorway(t *testing.T) {
	m := newTestWorld()
	makeLand(m)
	bld := m.TileAt(4, 4)
	m.ConstructBuilding(bld, &world.Building{Vnum: 100, Name: "tower"})
	// Doorway faces south: the tile south of the building is its entrance.
	m.SetEntrance(bld, world.South)

	assert.True(t, m.IsEntrance(m.TileAt(4, 5)))
	assert.False(t, m.IsEntrance(m.TileAt(4, 3)))
}

func TestManager_CanBuildOn_MatchesTerrainMask(t *testing.T) {
	m := newTestWorld()
	makeLand(m)
	tile := m.TileAt(2, 2)

	assert.True(t, m.CanBuildOn(tile, world.TerrainGrass))
	assert.False(t, m.CanBuildOn(tile, world.TerrainMountain))

	m.ConstructBuilding(tile, &world.Building{Vnum: 1})
	assert.False(t, m.CanBuildOn(tile, world.TerrainGrass))
}

// --- distance ---

func TestManager_Distance_UsesMapIdentity(t *testing.T) {
	m := newTestWorld()
	a := m.TileAt(0, 0)
	b := m.TileAt(3, 4)
	assert.InDelta(t, 5.0, m.Distance(a, b), 0.001)

	interior := m.CreateRoom(nil)
	interior.MapLoc = b.Vnum
	assert.InDelta(t, 5.0, m.Distance(a, interior), 0.001)
}

func TestManager_Distance_NoMapIdentityIsInfinite(t *testing.T) {
	m := newTestWorld()
	interior := m.CreateRoom(nil)
	assert.True(t, m.Distance(m.TileAt(0, 0), interior) > 1e9)
}
