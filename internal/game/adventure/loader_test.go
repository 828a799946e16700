package adventure_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/world"
)

const sampleAdventure = `
adventure:
  vnum: 100
  name: Goblin Warren
  start: 1000
  end: 1002
  flags: [rotatable, delay-load]
  min_level: 10
  max_level: 40
  max_instances: 3
  player_limit: 4
  reset_minutes: 30
  cleanup_triggers: [warren_collapse]
  link_rules:
    - type: building-new
      value: 5000
      dir: south
      build_on: [plains, grass]
      build_facing: [grass]
    - type: time-limit
      value: 120
    - type: not-near-self
      value: 20
room_templates:
  - vnum: 1000
    name: Warren Mouth
    exits:
      - target: 1001
        dir: north
  - vnum: 1001
    name: Dug Tunnel
    exits:
      - target: 1000
        dir: south
        flags: [door, closed]
        keyword: trapdoor
      - target: 1002
        dir: random
    spawns:
      - kind: mob
        vnum: 200
        percent: 75.5
        limit: 2
  - vnum: 1002
    name: Broodmother Den
    base_affects: [dark, silent]
    triggers: [brood_awaken]
`

// --- LoadBytes ---

func TestStore_LoadBytes_ParsesAdventure(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	adv := s.Adventure(100)
	require.NotNil(t, adv)
	assert.Equal(t, "Goblin Warren", adv.Name)
	assert.True(t, adv.HasFlag(adventure.Rotatable))
	assert.True(t, adv.HasFlag(adventure.DelayLoad))
	assert.Equal(t, 3, adv.RangeSize())
	assert.Len(t, adv.LinkRules, 3)
	assert.Equal(t, []string{"warren_collapse"}, adv.CleanupTriggers)
}

func TestStore_LoadBytes_ParsesLinkRules(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	adv := s.Adventure(100)
	rule := adv.RuleOfType(adventure.LinkBuildingNew)
	require.NotNil(t, rule)
	assert.Equal(t, 5000, rule.Value)
	assert.Equal(t, world.South, rule.Dir)
	assert.Equal(t, world.TerrainPlains|world.TerrainGrass, rule.BuildOn)
	assert.Equal(t, world.TerrainGrass, rule.BuildFacing)

	limit := adv.RuleOfType(adventure.LinkTimeLimit)
	require.NotNil(t, limit)
	assert.Equal(t, 120, limit.Value)
	assert.False(t, limit.LocationRule())
}

func TestStore_LoadBytes_SpawnPercentInHundredths(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	tmpl := s.RoomTemplate(1001)
	require.NotNil(t, tmpl)
	require.Len(t, tmpl.Spawns, 1)
	assert.Equal(t, adventure.SpawnMob, tmpl.Spawns[0].Kind)
	assert.Equal(t, 7550, tmpl.Spawns[0].Percent)
	assert.Equal(t, 2, tmpl.Spawns[0].Limit)
}

func TestStore_LoadBytes_RandomExitDirection(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	tmpl := s.RoomTemplate(1001)
	require.Len(t, tmpl.Exits, 2)
	assert.Equal(t, world.South, tmpl.Exits[0].Dir)
	assert.Equal(t, world.DirRandom, tmpl.Exits[1].Dir)
}

func TestStore_LoadBytes_RoomAffectsAndDoorFlags(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	den := s.RoomTemplate(1002)
	require.NotNil(t, den)
	assert.Equal(t, world.RoomDark|world.RoomSilent, den.BaseAffects)

	tunnel := s.RoomTemplate(1001)
	require.Len(t, tunnel.Exits, 2)
	assert.Equal(t, world.ExitDoor|world.ExitClosed, tunnel.Exits[0].Flags)
	assert.Equal(t, "trapdoor", tunnel.Exits[0].Keyword)
	assert.Zero(t, tunnel.Exits[1].Flags)
}

func TestStore_LoadBytes_UnknownRoomAffectFails(t *testing.T) {
	s := adventure.NewStore()
	err := s.LoadBytes([]byte(`
adventure:
  vnum: 1
  name: Broken
  start: 10
  end: 10
  max_instances: 1
room_templates:
  - vnum: 10
    name: Cell
    base_affects: [haunted]
`))
	assert.ErrorContains(t, err, "haunted")
}

func TestStore_LoadBytes_UnknownExitFlagFails(t *testing.T) {
	s := adventure.NewStore()
	err := s.LoadBytes([]byte(`
adventure:
  vnum: 1
  name: Broken
  start: 10
  end: 11
  max_instances: 1
room_templates:
  - vnum: 10
    name: Cell
    exits:
      - target: 11
        dir: north
        flags: [bricked]
`))
	assert.ErrorContains(t, err, "bricked")
}

func TestStore_LoadBytes_UnknownFlagFails(t *testing.T) {
	s := adventure.NewStore()
	err := s.LoadBytes([]byte(`
adventure:
  vnum: 1
  name: Broken
  start: 10
  end: 10
  max_instances: 1
  flags: [shiny]
`))
	assert.ErrorContains(t, err, "shiny")
}

func TestStore_LoadBytes_InvalidRangeFails(t *testing.T) {
	s := adventure.NewStore()
	err := s.LoadBytes([]byte(`
adventure:
  vnum: 1
  name: Inverted
  start: 20
  end: 10
  max_instances: 1
`))
	assert.Error(t, err)
}

// --- LoadDir ---

func TestStore_LoadDir_LoadsAllYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warren.yaml"), []byte(sampleAdventure), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	s := adventure.NewStore()
	count, err := s.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, s.Adventures(), 1)
}

// --- Store queries ---

func TestStore_RoomTemplatesIn_SortedAndBounded(t *testing.T) {
	s := adventure.NewStore()
	require.NoError(t, s.LoadBytes([]byte(sampleAdventure)))

	templates := s.RoomTemplatesIn(1000, 1002)
	require.Len(t, templates, 3)
	assert.Equal(t, 1000, templates[0].Vnum)
	assert.Equal(t, 1002, templates[2].Vnum)

	assert.Empty(t, s.RoomTemplatesIn(2000, 2010))
}
