package adventure

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emberforge/mud/internal/game/world"
)

// yamlAdventureFile is the top-level YAML structure for adventure files.
type yamlAdventureFile struct {
	Adventure     yamlAdventure      `yaml:"adventure"`
	RoomTemplates []yamlRoomTemplate `yaml:"room_templates"`
}

// yamlAdventure is the YAML representation of an adventure blueprint.
type yamlAdventure struct {
	Vnum            int            `yaml:"vnum"`
	Name            string         `yaml:"name"`
	Start           int            `yaml:"start"`
	End             int            `yaml:"end"`
	Flags           []string       `yaml:"flags"`
	MinLevel        int            `yaml:"min_level"`
	MaxLevel        int            `yaml:"max_level"`
	MaxInstances    int            `yaml:"max_instances"`
	PlayerLimit     int            `yaml:"player_limit"`
	ResetMinutes    int            `yaml:"reset_minutes"`
	CleanupTriggers []string       `yaml:"cleanup_triggers"`
	LinkRules       []yamlLinkRule `yaml:"link_rules"`
}

// yamlLinkRule is the YAML representation of a linking rule.
type yamlLinkRule struct {
	Type        string   `yaml:"type"`
	Value       int      `yaml:"value"`
	Sector      string   `yaml:"sector"`
	Crop        string   `yaml:"crop"`
	Dir         string   `yaml:"dir"`
	BuildOn     []string `yaml:"build_on"`
	BuildFacing []string `yaml:"build_facing"`
	PortalIn    int      `yaml:"portal_in"`
	PortalOut   int      `yaml:"portal_out"`
	Flags       []string `yaml:"flags"`
}

// yamlRoomTemplate is the YAML representation of a room template.
type yamlRoomTemplate struct {
	Vnum        int         `yaml:"vnum"`
	Name        string      `yaml:"name"`
	BaseAffects []string    `yaml:"base_affects"`
	Triggers    []string    `yaml:"triggers"`
	Exits       []yamlExit  `yaml:"exits"`
	Spawns      []yamlSpawn `yaml:"spawns"`
}

// yamlExit is the YAML representation of an exit template.
type yamlExit struct {
	Target  int      `yaml:"target"`
	Dir     string   `yaml:"dir"`
	Flags   []string `yaml:"flags"`
	Keyword string   `yaml:"keyword"`
}

// yamlSpawn is the YAML representation of a spawn table entry.
type yamlSpawn struct {
	Kind    string  `yaml:"kind"`
	Vnum    int     `yaml:"vnum"`
	Percent float64 `yaml:"percent"`
	Limit   int     `yaml:"limit"`
}

// LoadFile reads one adventure YAML file into the store.
//
// Precondition: path must point to a valid YAML adventure file.
// Postcondition: The adventure and its room templates are registered, or a
// non-nil error is returned and the store is unchanged for this file.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading adventure file %s: %w", path, err)
	}
	if err := s.LoadBytes(data); err != nil {
		return fmt.Errorf("loading adventure from %s: %w", path, err)
	}
	return nil
}

// LoadBytes parses one adventure definition from YAML bytes into the store.
func (s *Store) LoadBytes(data []byte) error {
	var file yamlAdventureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing adventure YAML: %w", err)
	}

	adv, err := convertYAMLAdventure(file.Adventure)
	if err != nil {
		return err
	}
	if err := s.AddAdventure(adv); err != nil {
		return err
	}

	for _, yt := range file.RoomTemplates {
		tmpl, err := convertYAMLRoomTemplate(yt)
		if err != nil {
			return err
		}
		if err := s.AddRoomTemplate(tmpl); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir loads every adventure YAML file in a directory.
//
// Postcondition: Returns the number of adventures loaded, or the first
// error encountered.
func (s *Store) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading adventure directory %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		if err := s.LoadFile(filepath.Join(dir, name)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func convertYAMLAdventure(ya yamlAdventure) (*Adventure, error) {
	flags, err := ParseFlags(ya.Flags)
	if err != nil {
		return nil, fmt.Errorf("adventure %d: %w", ya.Vnum, err)
	}

	adv := &Adventure{
		Vnum:            ya.Vnum,
		Name:            ya.Name,
		Start:           ya.Start,
		End:             ya.End,
		Flags:           flags,
		MinLevel:        ya.MinLevel,
		MaxLevel:        ya.MaxLevel,
		MaxInstances:    ya.MaxInstances,
		PlayerLimit:     ya.PlayerLimit,
		ResetMinutes:    ya.ResetMinutes,
		CleanupTriggers: ya.CleanupTriggers,
	}

	for i, yr := range ya.LinkRules {
		rule, err := convertYAMLLinkRule(yr)
		if err != nil {
			return nil, fmt.Errorf("adventure %d: link rule %d: %w", ya.Vnum, i, err)
		}
		adv.LinkRules = append(adv.LinkRules, rule)
	}
	return adv, nil
}

func convertYAMLLinkRule(yr yamlLinkRule) (*LinkRule, error) {
	t, ok := ParseLinkType(yr.Type)
	if !ok {
		return nil, fmt.Errorf("unknown rule type %q", yr.Type)
	}
	flags, err := ParseLinkFlags(yr.Flags)
	if err != nil {
		return nil, err
	}
	dir := world.DirNone
	if yr.Dir != "" {
		d, ok := world.ParseDirection(yr.Dir)
		if !ok {
			return nil, fmt.Errorf("unknown direction %q", yr.Dir)
		}
		dir = d
	}
	return &LinkRule{
		Type:        t,
		Value:       yr.Value,
		Sector:      yr.Sector,
		Crop:        yr.Crop,
		Dir:         dir,
		BuildOn:     world.ParseTerrain(yr.BuildOn),
		BuildFacing: world.ParseTerrain(yr.BuildFacing),
		PortalIn:    yr.PortalIn,
		PortalOut:   yr.PortalOut,
		Flags:       flags,
	}, nil
}

func convertYAMLRoomTemplate(yt yamlRoomTemplate) (*RoomTemplate, error) {
	affects, err := world.ParseRoomFlags(yt.BaseAffects)
	if err != nil {
		return nil, fmt.Errorf("room template %d: %w", yt.Vnum, err)
	}
	tmpl := &RoomTemplate{
		Vnum:        yt.Vnum,
		Name:        yt.Name,
		BaseAffects: affects,
		Triggers:    yt.Triggers,
	}
	for i, ye := range yt.Exits {
		dir, ok := world.ParseDirection(ye.Dir)
		if !ok {
			return nil, fmt.Errorf("room template %d: exit %d: unknown direction %q", yt.Vnum, i, ye.Dir)
		}
		flags, err := world.ParseExitFlags(ye.Flags)
		if err != nil {
			return nil, fmt.Errorf("room template %d: exit %d: %w", yt.Vnum, i, err)
		}
		tmpl.Exits = append(tmpl.Exits, &ExitTemplate{
			Target:  ye.Target,
			Dir:     dir,
			Flags:   flags,
			Keyword: ye.Keyword,
		})
	}
	for i, ys := range yt.Spawns {
		kind, ok := ParseSpawnKind(ys.Kind)
		if !ok {
			return nil, fmt.Errorf("room template %d: spawn %d: unknown kind %q", yt.Vnum, i, ys.Kind)
		}
		if ys.Percent < 0 || ys.Percent > 100 {
			return nil, fmt.Errorf("room template %d: spawn %d: percent must be 0-100, got %v", yt.Vnum, i, ys.Percent)
		}
		tmpl.Spawns = append(tmpl.Spawns, &SpawnEntry{
			Kind: kind,
			Vnum: ys.Vnum,
			// stored in hundredths so spawn rolls compare against 0-10000
			Percent: int(math.Round(ys.Percent * 100)),
			Limit:   ys.Limit,
		})
	}
	return tmpl, nil
}
