package world_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/emberforge/mud/internal/game/world"
)

// --- Direction ---

func TestDirection_Opposite_Cardinals(t *testing.T) {
	assert.Equal(t, world.South, world.North.Opposite())
	assert.Equal(t, world.West, world.East.Opposite())
	assert.Equal(t, world.North, world.South.Opposite())
	assert.Equal(t, world.East, world.West.Opposite())
}

func TestDirection_Opposite_Diagonals(t *testing.T) {
	assert.Equal(t, world.Southwest, world.Northeast.Opposite())
	assert.Equal(t, world.Northwest, world.Southeast.Opposite())
}

func TestDirection_Opposite_Sentinels(t *testing.T) {
	assert.Equal(t, world.DirNone, world.DirNone.Opposite())
	assert.Equal(t, world.DirRandom, world.DirRandom.Opposite())
}

func TestDirection_Rotate_NorthIsIdentity(t *testing.T) {
	for d := world.Direction(0); int(d) < world.NumDirs; d++ {
		assert.Equal(t, d, d.Rotate(world.North))
	}
}

func TestDirection_Rotate_EastTurnsNorthToEast(t *testing.T) {
	assert.Equal(t, world.East, world.North.Rotate(world.East))
	assert.Equal(t, world.South, world.East.Rotate(world.East))
	assert.Equal(t, world.Southeast, world.Northeast.Rotate(world.East))
}

func TestDirection_Rotate_SentinelsPassThrough(t *testing.T) {
	assert.Equal(t, world.DirRandom, world.DirRandom.Rotate(world.East))
	assert.Equal(t, world.DirNone, world.DirNone.Rotate(world.South))
}

func TestDirection_Rotate_OppositeCommutes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := world.Direction(rapid.IntRange(0, world.NumDirs-1).Draw(t, "dir"))
		rot := world.Direction(rapid.IntRange(0, world.NumSimpleDirs-1).Draw(t, "rot"))
		assert.Equal(t, d.Opposite().Rotate(rot), d.Rotate(rot).Opposite())
	})
}

func TestParseDirection_KnownNames(t *testing.T) {
	d, ok := world.ParseDirection("northeast")
	assert.True(t, ok)
	assert.Equal(t, world.Northeast, d)

	d, ok = world.ParseDirection("random")
	assert.True(t, ok)
	assert.Equal(t, world.DirRandom, d)
}

func TestParseDirection_Unknown(t *testing.T) {
	_, ok := world.ParseDirection("up")
	assert.False(t, ok)
}

// --- Room ---

func TestRoom_Home_DefaultsToSelf(t *testing.T) {
	r := &world.Room{Vnum: 5}
	assert.Same(t, r, r.Home())

	home := &world.Room{Vnum: 4}
	r.HomeRoom = home
	assert.Same(t, home, r.Home())
}

func TestRoom_IsClosed(t *testing.T) {
	r := &world.Room{}
	assert.False(t, r.IsClosed())

	r.Building = &world.Building{Vnum: 1, Open: true}
	assert.False(t, r.IsClosed())

	r.Building = &world.Building{Vnum: 2}
	assert.True(t, r.IsClosed())
}

func TestSector_IsLand(t *testing.T) {
	assert.False(t, (*world.Sector)(nil).IsLand())
	assert.False(t, (&world.Sector{Terrain: world.TerrainOcean}).IsLand())
	assert.True(t, (&world.Sector{Terrain: world.TerrainForest}).IsLand())
}
