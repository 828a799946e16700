package instance_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/config"
	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/empire"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/instance"
	"github.com/emberforge/mud/internal/game/quest"
	"github.com/emberforge/mud/internal/game/world"
)

// helpers

type fixture struct {
	cfg      config.InstancingConfig
	world    *world.Manager
	store    *adventure.Store
	entities *entity.Manager
	empires  *empire.Manager
	quests   *quest.Tracker
	engine   *instance.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := world.NewManager(10, 10, 1)
	grass := &world.Sector{ID: "grass", Terrain: world.TerrainGrass}
	w.RegisterSector(grass)
	w.RegisterSector(&world.Sector{ID: "adventure"})
	for _, room := range w.AllRooms() {
		room.Sector = grass
		room.OriginalSector = grass
	}
	w.RegisterBuilding(&world.Building{Vnum: 500, Name: "shrine"})
	w.RegisterBuilding(&world.Building{Vnum: 501, Name: "camp", Open: true})

	ents := entity.NewManager()
	ents.RegisterMobProto(&entity.MobProto{Vnum: 200, Name: "goblin"})
	ents.RegisterObjectProto(&entity.ObjectProto{Vnum: 300, Name: "chest"})
	ents.RegisterObjectProto(&entity.ObjectProto{Vnum: 310, Name: "shimmering portal", Portal: true, PortalTarget: 1002})
	ents.RegisterVehicleProto(&entity.VehicleProto{Vnum: 400, Name: "cart"})

	f := &fixture{
		cfg: config.InstancingConfig{
			File:                filepath.Join(t.TempDir(), "instances.db"),
			ReferenceWorldSize:  w.MapSize(),
			WorldSizeScaling:    true,
			EmpireEmptinessDays: 30,
			NewbieLevelCap:      25,
			DefaultSector:       "adventure",
			GenerateInterval:    time.Minute,
			ResetInterval:       time.Minute,
			PruneInterval:       time.Minute,
		},
		world:    w,
		store:    adventure.NewStore(),
		entities: ents,
		empires:  empire.NewManager(),
		quests:   quest.NewTracker(),
	}
	f.engine = newEngineWithConfig(f)
	return f
}

// newEngineWithConfig rebuilds the engine after a test tweaks f.cfg.
func newEngineWithConfig(f *fixture) *instance.Engine {
	return instance.NewEngine(f.cfg, f.world, f.store, f.entities, f.empires, f.quests, nil, zap.NewNop(), 7)
}

// addShrine constructs the anchor building used by building-existing rules.
func (f *fixture) addShrine(t *testing.T, x, y int) *world.Room {
	t.Helper()
	tile := f.world.TileAt(x, y)
	require.NotNil(t, tile)
	f.world.ConstructBuilding(tile, &world.Building{Vnum: 500, Name: "shrine"})
	return tile
}

// basicAdventure registers a three-room warren anchored at an existing
// shrine, with fixed exits forming a corridor.
func (f *fixture) basicAdventure(t *testing.T, flags adventure.Flag) *adventure.Adventure {
	t.Helper()
	adv := &adventure.Adventure{
		Vnum:         100,
		Name:         "Goblin Warren",
		Start:        1000,
		End:          1002,
		Flags:        flags,
		MinLevel:     10,
		MaxLevel:     40,
		MaxInstances: 2,
		ResetMinutes: 30,
		LinkRules: []*adventure.LinkRule{
			{Type: adventure.LinkBuildingExisting, Value: 500, Dir: world.North},
		},
	}
	require.NoError(t, f.store.AddAdventure(adv))
	require.NoError(t, f.store.AddRoomTemplate(&adventure.RoomTemplate{
		Vnum: 1000, Name: "Warren Mouth",
		Exits:  []*adventure.ExitTemplate{{Target: 1001, Dir: world.East}},
		Spawns: []*adventure.SpawnEntry{{Kind: adventure.SpawnMob, Vnum: 200, Percent: 10000, Limit: 2}},
	}))
	require.NoError(t, f.store.AddRoomTemplate(&adventure.RoomTemplate{
		Vnum: 1001, Name: "Dug Tunnel",
		Exits: []*adventure.ExitTemplate{
			{Target: 1000, Dir: world.West},
			{Target: 1002, Dir: world.North},
		},
	}))
	require.NoError(t, f.store.AddRoomTemplate(&adventure.RoomTemplate{
		Vnum: 1002, Name: "Broodmother Den",
		Exits: []*adventure.ExitTemplate{{Target: 1001, Dir: world.South}},
	}))
	return adv
}

// buildOne places and builds a single instance via the first linking rule.
func (f *fixture) buildOne(t *testing.T, adv *adventure.Adventure) *instance.Instance {
	t.Helper()
	rule := adv.LinkRules[0]
	loc, facing, ok := f.engine.FindLocation(adv, rule)
	require.True(t, ok, "no anchor location found")
	inst, err := f.engine.BuildAt(adv, rule, loc, facing)
	require.NoError(t, err)
	return inst
}

// --- BuildAt ---

func TestEngine_BuildAt_CreatesInteriorAndAnchorLink(t *testing.T) {
	f := newFixture(t)
	shrine := f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, 0)

	inst := f.buildOne(t, adv)

	require.NotNil(t, inst.Start)
	assert.Equal(t, 1000, inst.Start.TemplateVnum)
	assert.Same(t, shrine, inst.Location)
	assert.True(t, shrine.HasFlag(world.RoomHasInstance))

	// Anchor link is two-way on the rule's direction.
	assert.Equal(t, world.North, inst.EntryDir)
	require.NotNil(t, shrine.FindExit(world.North))
	assert.Equal(t, inst.Start.Vnum, shrine.FindExit(world.North).To)
	require.NotNil(t, inst.Start.FindExit(world.South))
	assert.Equal(t, shrine.Vnum, inst.Start.FindExit(world.South).To)

	// Interior rooms are homed on the start room and unclaimable.
	den := inst.RoomForTemplate(1002)
	require.NotNil(t, den)
	assert.Same(t, inst.Start, den.Home())
	assert.True(t, den.HasFlag(world.RoomUnclaimable))
	assert.Equal(t, "adventure", den.Sector.ID)
}

func TestEngine_BuildAt_WiresDeclaredExitPairs(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, 0)

	inst := f.buildOne(t, adv)

	mouth := inst.RoomForTemplate(1000)
	tunnel := inst.RoomForTemplate(1001)
	den := inst.RoomForTemplate(1002)

	require.NotNil(t, mouth.FindExit(world.East))
	assert.Equal(t, tunnel.Vnum, mouth.FindExit(world.East).To)
	require.NotNil(t, tunnel.FindExit(world.West))
	assert.Equal(t, mouth.Vnum, tunnel.FindExit(world.West).To)
	require.NotNil(t, tunnel.FindExit(world.North))
	assert.Equal(t, den.Vnum, tunnel.FindExit(world.North).To)
	require.NotNil(t, den.FindExit(world.South))
	assert.Equal(t, tunnel.Vnum, den.FindExit(world.South).To)
}

func TestEngine_BuildAt_AppliesTemplateAffectsAndExitFlags(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, 0)
	f.store.RoomTemplate(1002).BaseAffects = world.RoomDark
	grate := f.store.RoomTemplate(1001).Exits[1]
	grate.Flags = world.ExitDoor | world.ExitClosed
	grate.Keyword = "grate"

	inst := f.buildOne(t, adv)

	den := inst.RoomForTemplate(1002)
	assert.True(t, den.HasFlag(world.RoomDark))

	tunnel := inst.RoomForTemplate(1001)
	ex := tunnel.FindExit(world.North)
	require.NotNil(t, ex)
	assert.Equal(t, world.ExitDoor|world.ExitClosed, ex.Flags)
	assert.Equal(t, "grate", ex.Keyword)
}

func TestEngine_BuildAt_SnapshotsRule(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, 0)

	inst := f.buildOne(t, adv)

	require.NotNil(t, inst.Rule)
	assert.NotSame(t, adv.LinkRules[0], inst.Rule)
	adv.LinkRules[0].Value = 999
	assert.Equal(t, 500, inst.Rule.Value)
}

func TestEngine_BuildAt_ResetsOnce(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, 0)

	inst := f.buildOne(t, adv)

	mobs := f.entities.MobsInRoom(inst.Start.Vnum)
	require.NotEmpty(t, mobs)
	assert.Equal(t, inst.ID, mobs[0].InstanceID)
	assert.Equal(t, len(mobs), f.engine.CountMobs(inst, 200))
}

// --- ids ---

func TestEngine_BuildAt_IDsUniqueAndReusable(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 2, 2)
	f.addShrine(t, 7, 7)
	adv := f.basicAdventure(t, 0)

	a := f.buildOne(t, adv)
	b := f.buildOne(t, adv)
	assert.NotEqual(t, a.ID, b.ID)

	// Deleting the highest id frees it for the next build.
	top := b.ID
	f.engine.Delete(b)
	c := f.buildOne(t, adv)
	assert.Equal(t, top, c.ID)
}

// --- rotation ---

func TestEngine_BuildAt_ExplicitRuleDirectionBuildsUnrotated(t *testing.T) {
	f := newFixture(t)
	shrine := f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, adventure.Rotatable)
	adv.LinkRules[0].Dir = world.East

	inst := f.buildOne(t, adv)

	// A rule that names its direction pins the layout: the entry comes out
	// of the anchor exactly where the rule says it does.
	assert.Equal(t, world.North, inst.Rotation)
	assert.Equal(t, world.East, inst.EntryDir)
	require.NotNil(t, shrine.FindExit(world.East))
	assert.Equal(t, inst.Start.Vnum, shrine.FindExit(world.East).To)

	// Interior exits keep their declared directions.
	mouth := inst.RoomForTemplate(1000)
	tunnel := inst.RoomForTemplate(1001)
	require.NotNil(t, mouth.FindExit(world.East))
	assert.Equal(t, tunnel.Vnum, mouth.FindExit(world.East).To)
}

func TestEngine_BuildAt_RandomEntryRotatesTemplateExits(t *testing.T) {
	f := newFixture(t)
	adv := f.basicAdventure(t, adventure.Rotatable)
	adv.LinkRules[0] = &adventure.LinkRule{
		Type: adventure.LinkPortalWorld, Sector: "grass",
		PortalIn: 310, PortalOut: 310, Dir: world.DirRandom,
	}

	inst := f.buildOne(t, adv)

	require.GreaterOrEqual(t, int(inst.Rotation), 0)
	require.Less(t, int(inst.Rotation), world.NumSimpleDirs)

	// Declared exits turn with the instance and their pairs stay opposite.
	mouth := inst.RoomForTemplate(1000)
	tunnel := inst.RoomForTemplate(1001)
	dir := world.East.Rotate(inst.Rotation)
	require.NotNil(t, mouth.FindExit(dir))
	assert.Equal(t, tunnel.Vnum, mouth.FindExit(dir).To)
	require.NotNil(t, tunnel.FindExit(dir.Opposite()))
	assert.Equal(t, mouth.Vnum, tunnel.FindExit(dir.Opposite()).To)
}

// --- random exits ---

func TestEngine_BuildAt_RandomExitsStayPaired(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := &adventure.Adventure{
		Vnum: 101, Name: "Twisting Cave", Start: 2000, End: 2001,
		MaxInstances: 1,
		LinkRules: []*adventure.LinkRule{
			{Type: adventure.LinkBuildingExisting, Value: 500, Dir: world.North},
		},
	}
	require.NoError(t, f.store.AddAdventure(adv))
	require.NoError(t, f.store.AddRoomTemplate(&adventure.RoomTemplate{
		Vnum: 2000, Name: "Cave Mouth",
		Exits: []*adventure.ExitTemplate{{Target: 2001, Dir: world.DirRandom}},
	}))
	require.NoError(t, f.store.AddRoomTemplate(&adventure.RoomTemplate{
		Vnum: 2001, Name: "Winding Dark",
		Exits: []*adventure.ExitTemplate{{Target: 2000, Dir: world.DirRandom}},
	}))

	inst := f.buildOne(t, adv)

	mouth := inst.RoomForTemplate(2000)
	dark := inst.RoomForTemplate(2001)
	var forward *world.Exit
	for _, ex := range mouth.Exits {
		if ex.To == dark.Vnum {
			forward = ex
		}
	}
	require.NotNil(t, forward, "random exit was not wired")
	back := dark.FindExit(forward.Dir.Opposite())
	require.NotNil(t, back, "random exit has no reverse")
	assert.Equal(t, mouth.Vnum, back.To)
}

// --- delayed load ---

func TestEngine_BuildAt_DelayLoadBuildsShell(t *testing.T) {
	f := newFixture(t)
	shrine := f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, adventure.DelayLoad)

	inst := f.buildOne(t, adv)

	assert.True(t, inst.HasFlag(instance.FlagNeedsLoad))
	assert.Nil(t, inst.Start)
	assert.Empty(t, f.world.InteriorRooms())
	assert.True(t, shrine.HasFlag(world.RoomHasInstance))
}

func TestInstance_RoomForTemplate_NilOnPendingShell(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, adventure.DelayLoad)
	inst := f.buildOne(t, adv)

	// The shell has no room slots yet; lookups report the rooms missing
	// instead of reaching past the empty slice.
	assert.Nil(t, inst.RoomForTemplate(1000))
	assert.Nil(t, inst.RoomForTemplate(1002))
}

func TestEngine_ForceLoad_GeneratesInterior(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, adventure.DelayLoad)
	inst := f.buildOne(t, adv)

	require.NoError(t, f.engine.ForceLoad(inst))

	assert.False(t, inst.HasFlag(instance.FlagNeedsLoad))
	require.NotNil(t, inst.Start)
	assert.Len(t, f.world.InteriorRooms(), 3)
	// The shell reset on load.
	assert.NotEmpty(t, f.entities.MobsInRoom(inst.Start.Vnum))
}

func TestEngine_Prune_SparesPendingShells(t *testing.T) {
	f := newFixture(t)
	f.addShrine(t, 5, 5)
	adv := f.basicAdventure(t, adventure.DelayLoad)
	inst := f.buildOne(t, adv)

	f.engine.Prune()

	assert.Same(t, inst, f.engine.ByID(inst.ID))
}

// --- new buildings ---

func TestEngine_BuildAt_NewBuildingRaisesAnchor(t *testing.T) {
	f := newFixture(t)
	adv := f.basicAdventure(t, 0)
	adv.LinkRules[0] = &adventure.LinkRule{
		Type: adventure.LinkBuildingNew, Value: 500, Dir: world.North,
		BuildOn: world.TerrainGrass, BuildFacing: world.TerrainGrass,
	}

	rule := adv.LinkRules[0]
	loc, facing, ok := f.engine.FindLocation(adv, rule)
	require.True(t, ok)
	require.NotEqual(t, world.DirNone, facing)
	require.NotEqual(t, rule.Dir, facing)

	inst, err := f.engine.BuildAt(adv, rule, loc, facing)
	require.NoError(t, err)

	require.NotNil(t, loc.Building)
	assert.Equal(t, 500, loc.Building.Vnum)
	assert.True(t, loc.BuildingComplete)
	assert.True(t, loc.HasFlag(world.RoomTemporary))
	// Doorway faces the validated tile; the entrance is its reverse.
	assert.Equal(t, facing.Opposite(), loc.Entrance)
	require.NotNil(t, loc.FindExit(facing))

	// Tearing down restores the tile.
	f.engine.Delete(inst)
	assert.Nil(t, loc.Building)
	assert.Equal(t, "grass", loc.Sector.ID)
	assert.False(t, loc.HasFlag(world.RoomTemporary))
	assert.False(t, loc.HasFlag(world.RoomHasInstance))
	assert.Empty(t, loc.Exits)
}

// --- portals ---

func TestEngine_BuildAt_PortalRuleSpawnsLinkedPair(t *testing.T) {
	f := newFixture(t)
	adv := f.basicAdventure(t, 0)
	adv.LinkRules[0] = &adventure.LinkRule{
		Type: adventure.LinkPortalWorld, Sector: "grass",
		PortalIn: 310, PortalOut: 310,
	}

	inst := f.buildOne(t, adv)

	require.NotNil(t, inst.Start)
	outer := f.entities.ObjectsInRoom(inst.Location.Vnum)
	require.Len(t, outer, 1)
	assert.Equal(t, inst.Start.Vnum, outer[0].PortalTarget)

	inner := f.entities.ObjectsInRoom(inst.Start.Vnum)
	require.Len(t, inner, 1)
	assert.Equal(t, inst.Location.Vnum, inner[0].PortalTarget)
}
