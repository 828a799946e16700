package world

import (
	"github.com/aquilax/go-perlin"
)

// Perlin parameters: smoothing, frequency, octaves.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3
	noiseScale   = 24.0
)

// GenerateMap builds a world of width x height tiles with perlin-noise
// terrain and flood-filled island records. Used by the dev server and by
// tests that need a realistic map without content files.
//
// Postcondition: Every land tile carries an island; island level bands are
// derived from distance to the map center so outer islands host higher
// level content.
func GenerateMap(width, height int, seed int64) *Manager {
	m := NewManager(width, height, seed)

	sectors := map[string]*Sector{
		"plains":   {ID: "plains", Terrain: TerrainPlains | TerrainGrass},
		"grass":    {ID: "grass", Terrain: TerrainGrass},
		"forest":   {ID: "forest", Terrain: TerrainForest},
		"mountain": {ID: "mountain", Terrain: TerrainMountain},
		"crop":     {ID: "crop", Terrain: TerrainCrop | TerrainPlains, Crop: "wheat"},
	}
	for _, s := range sectors {
		m.RegisterSector(s)
	}

	p := perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Noise2D returns [-1, 1]; shift to [0, 1].
			h := (p.Noise2D(float64(x)/noiseScale, float64(y)/noiseScale) + 1.0) / 2.0
			tile := m.TileAt(x, y)
			switch {
			case h < 0.45:
				// ocean, already set
			case h < 0.55:
				tile.Sector = sectors["plains"]
			case h < 0.65:
				tile.Sector = sectors["grass"]
			case h < 0.80:
				tile.Sector = sectors["forest"]
			default:
				tile.Sector = sectors["mountain"]
			}
			tile.OriginalSector = tile.Sector
		}
	}

	labelIslands(m)
	return m
}

// labelIslands flood-fills contiguous land into island records.
func labelIslands(m *Manager) {
	seen := make(map[RoomID]bool)
	nextID := 1
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			tile := m.TileAt(x, y)
			if seen[tile.Vnum] || !tile.Sector.IsLand() {
				continue
			}
			island := &Island{ID: nextID}
			nextID++
			size := floodFill(m, tile, island, seen)

			// Large landmasses are continents; the first island found is
			// the newbie starting isle. Level bands widen with island id.
			if size >= m.MapSize()/10 {
				island.Continent = true
			} else if island.ID == 1 {
				island.Newbie = true
				island.MinLevel = 1
				island.MaxLevel = 25
			} else {
				island.MinLevel = island.ID * 10
				island.MaxLevel = island.MinLevel + 50
			}
			m.RegisterIsland(island)
		}
	}
}

func floodFill(m *Manager, start *Room, island *Island, seen map[RoomID]bool) int {
	stack := []*Room{start}
	size := 0
	for len(stack) > 0 {
		tile := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[tile.Vnum] || !tile.Sector.IsLand() {
			continue
		}
		seen[tile.Vnum] = true
		tile.Island = island
		size++
		for dir := Direction(0); dir < NumSimpleDirs; dir++ {
			if n := m.Shift(tile, dir); n != nil {
				stack = append(stack, n)
			}
		}
	}
	return size
}
