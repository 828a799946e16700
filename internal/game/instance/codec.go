package instance

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/world"
)

// The instance file is line-oriented. Each record is:
//
//	#<id>
//	<adventure> <location> <start> <flags> <fake-location>
//	<level> <created-unix> <last-reset-unix>
//	D <rotation> <entry-dir>
//	L <rule fields>
//	R <room vnum>        (repeated, slot order)
//	S
//
// and the file ends with a lone "$". Room references are raw vnums
// resolved in a second phase after the whole file parses.

// letterFlags encodes a bitmask as lowercase letters, one per set bit
// ('a' = bit 0), or "0" when empty. The inverse of parseLetterFlags.
func letterFlags(bits uint64) string {
	if bits == 0 {
		return "0"
	}
	var sb strings.Builder
	for i := 0; i < 64; i++ {
		if bits&(1<<i) != 0 {
			sb.WriteByte(byte('a' + i))
		}
	}
	return sb.String()
}

func parseLetterFlags(s string) uint64 {
	var bits uint64
	for _, c := range s {
		if c >= 'a' && c <= 'z' {
			bits |= 1 << (c - 'a')
		}
	}
	return bits
}

func roomRef(room *world.Room) int {
	if room == nil {
		return int(world.NoRoom)
	}
	return int(room.Vnum)
}

// Save writes the whole registry to the configured instance file via a
// temp file and rename, so a crash never leaves a truncated file behind.
func (e *Engine) Save() error {
	path := e.cfg.File
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create instance file directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp instance file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, inst := range e.instances {
		writeInstance(w, inst)
	}
	fmt.Fprintln(w, "$")
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write instance file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close instance file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace instance file: %w", err)
	}
	return nil
}

func writeInstance(w *bufio.Writer, inst *Instance) {
	fmt.Fprintf(w, "#%d\n", inst.ID)
	fmt.Fprintf(w, "%d %d %d %s %d\n",
		inst.AdventureVnum,
		roomRef(inst.Location),
		roomRef(inst.Start),
		letterFlags(uint64(inst.Flags)),
		roomRef(inst.FakeLoc))
	fmt.Fprintf(w, "%d %d %d\n",
		inst.Level, inst.Created.Unix(), inst.LastReset.Unix())
	fmt.Fprintf(w, "D %d %d\n", int(inst.Rotation), int(inst.EntryDir))
	if r := inst.Rule; r != nil {
		fmt.Fprintf(w, "L %d %d %s %s %d %d %d %d %d %s\n",
			int(r.Type), r.Value,
			orDash(r.Sector), orDash(r.Crop),
			int(r.Dir), uint32(r.BuildOn), uint32(r.BuildFacing),
			r.PortalIn, r.PortalOut,
			letterFlags(uint64(r.Flags)))
	}
	for _, room := range inst.Rooms {
		if room != nil {
			fmt.Fprintf(w, "R %d\n", int(room.Vnum))
		}
	}
	fmt.Fprintln(w, "S")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// Load reads the instance file and restores the registry in two phases:
// parse every record into detached instances, then renumber to resolve
// room references against the live world. A missing file is an empty
// registry; a corrupt file is a fatal error, since silently dropping
// records would strand their rooms forever.
func (e *Engine) Load() error {
	f, err := os.Open(e.cfg.File)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open instance file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	readLine := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line++
		return strings.TrimRight(sc.Text(), "\r\n"), true
	}

	var loaded []*Instance
	for {
		text, ok := readLine()
		if !ok {
			return fmt.Errorf("instance file truncated before terminator at line %d", line)
		}
		if text == "" {
			continue
		}
		if text == "$" {
			break
		}
		if !strings.HasPrefix(text, "#") {
			return fmt.Errorf("instance file line %d: expected record start, got %q", line, text)
		}
		id, err := strconv.Atoi(text[1:])
		if err != nil {
			return fmt.Errorf("instance file line %d: bad instance id %q", line, text[1:])
		}
		inst, err := e.parseInstance(id, readLine, &line)
		if err != nil {
			return err
		}
		loaded = append(loaded, inst)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read instance file: %w", err)
	}

	e.instances = loaded
	e.renumber()
	e.logger.Info("loaded instances",
		zap.Int("count", len(e.instances)), zap.String("file", e.cfg.File))
	return nil
}

func (e *Engine) parseInstance(id int, readLine func() (string, bool), line *int) (*Instance, error) {
	inst := &Instance{
		ID:       id,
		Rotation: world.North,
		EntryDir: world.DirNone,
		rawLoc:   world.NoRoom,
		rawStart: world.NoRoom,
		rawFake:  world.NoRoom,
	}

	text, ok := readLine()
	if !ok {
		return nil, fmt.Errorf("instance %d: truncated record", id)
	}
	fields := strings.Fields(text)
	if len(fields) != 5 {
		return nil, fmt.Errorf("instance %d line %d: expected 5 fields, got %d", id, *line, len(fields))
	}
	nums, err := atoiAll(fields[0], fields[1], fields[2], fields[4])
	if err != nil {
		return nil, fmt.Errorf("instance %d line %d: %w", id, *line, err)
	}
	inst.AdventureVnum = nums[0]
	inst.rawLoc = world.RoomID(nums[1])
	inst.rawStart = world.RoomID(nums[2])
	inst.Flags = Flag(parseLetterFlags(fields[3]))
	inst.rawFake = world.RoomID(nums[3])
	// A half-finished teardown must not resurrect mid-cleanup.
	inst.ClearFlag(FlagCleanup)

	text, ok = readLine()
	if !ok {
		return nil, fmt.Errorf("instance %d: truncated record", id)
	}
	fields = strings.Fields(text)
	if len(fields) != 3 {
		return nil, fmt.Errorf("instance %d line %d: expected 3 fields, got %d", id, *line, len(fields))
	}
	nums, err = atoiAll(fields[0], fields[1], fields[2])
	if err != nil {
		return nil, fmt.Errorf("instance %d line %d: %w", id, *line, err)
	}
	inst.Level = nums[0]
	inst.Created = time.Unix(int64(nums[1]), 0)
	inst.LastReset = time.Unix(int64(nums[2]), 0)

	for {
		text, ok = readLine()
		if !ok {
			return nil, fmt.Errorf("instance %d: truncated record", id)
		}
		if text == "" {
			continue
		}
		switch text[0] {
		case 'S':
			return inst, nil
		case 'D':
			fields = strings.Fields(text[1:])
			if len(fields) != 2 {
				return nil, fmt.Errorf("instance %d line %d: malformed direction line", id, *line)
			}
			nums, err = atoiAll(fields[0], fields[1])
			if err != nil {
				return nil, fmt.Errorf("instance %d line %d: %w", id, *line, err)
			}
			inst.Rotation = world.Direction(nums[0])
			inst.EntryDir = world.Direction(nums[1])
		case 'L':
			rule, err := parseRuleLine(text[1:])
			if err != nil {
				return nil, fmt.Errorf("instance %d line %d: %w", id, *line, err)
			}
			inst.Rule = rule
		case 'R':
			vnum, err := strconv.Atoi(strings.TrimSpace(text[1:]))
			if err != nil {
				return nil, fmt.Errorf("instance %d line %d: bad room reference", id, *line)
			}
			inst.rawRooms = append(inst.rawRooms, world.RoomID(vnum))
		default:
			return nil, fmt.Errorf("instance %d line %d: unknown line %q", id, *line, text)
		}
	}
}

func parseRuleLine(text string) (*adventure.LinkRule, error) {
	fields := strings.Fields(text)
	if len(fields) != 10 {
		return nil, fmt.Errorf("malformed rule line: expected 10 fields, got %d", len(fields))
	}
	nums, err := atoiAll(fields[0], fields[1], fields[4], fields[5], fields[6], fields[7], fields[8])
	if err != nil {
		return nil, err
	}
	return &adventure.LinkRule{
		Type:        adventure.LinkType(nums[0]),
		Value:       nums[1],
		Sector:      dashEmpty(fields[2]),
		Crop:        dashEmpty(fields[3]),
		Dir:         world.Direction(nums[2]),
		BuildOn:     world.TerrainFlag(nums[3]),
		BuildFacing: world.TerrainFlag(nums[4]),
		PortalIn:    nums[5],
		PortalOut:   nums[6],
		Flags:       adventure.LinkFlag(parseLetterFlags(fields[9])),
	}, nil
}

func atoiAll(fields ...string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad numeric field %q", f)
		}
		out[i] = n
	}
	return out, nil
}

// renumber resolves every loaded instance's raw room references against
// the live world, rebuilds the room index and markers, recomputes mob
// counts, and deletes instances whose world no longer exists.
func (e *Engine) renumber() {
	for _, room := range e.world.AllRooms() {
		room.ClearFlag(world.RoomFakeInstance)
	}

	e.roomIndex = make(map[world.RoomID]*Instance)
	e.saveWait = true
	for _, inst := range e.Instances() {
		inst.Adventure = e.store.Adventure(inst.AdventureVnum)
		inst.Location = e.world.RoomByID(inst.rawLoc)
		inst.Start = e.world.RoomByID(inst.rawStart)
		inst.FakeLoc = e.world.RoomByID(inst.rawFake)
		inst.MobCounts = make(map[int]int)

		if adv := inst.Adventure; adv != nil {
			inst.Rooms = make([]*world.Room, adv.RangeSize())
			for _, vnum := range inst.rawRooms {
				room := e.world.RoomByID(vnum)
				if room == nil || !room.IsAdventure() {
					continue
				}
				slot := room.TemplateVnum - adv.Start
				if slot < 0 || slot >= len(inst.Rooms) {
					continue
				}
				inst.Rooms[slot] = room
				e.roomIndex[room.Vnum] = inst
			}
		} else {
			// No blueprint to slot against; keep the rooms claimed so the
			// teardown below sweeps them instead of stranding them.
			for _, vnum := range inst.rawRooms {
				if room := e.world.RoomByID(vnum); room != nil {
					inst.Rooms = append(inst.Rooms, room)
					e.roomIndex[room.Vnum] = inst
				}
			}
		}
		inst.rawRooms = nil

		broken := inst.Adventure == nil || inst.Location == nil ||
			(!inst.HasFlag(FlagNeedsLoad) && inst.Start == nil)
		if broken {
			e.logger.Warn("dropping unresolvable instance",
				zap.Int("instance", inst.ID), zap.Int("adventure", inst.AdventureVnum))
			e.Delete(inst)
			continue
		}

		if inst.FakeLoc == nil {
			inst.FakeLoc = inst.Location
		}
		inst.Location.SetFlag(world.RoomHasInstance)
		inst.Location.Home().SetFlag(world.RoomHasInstance)
		if inst.FakeLoc != inst.Location {
			inst.FakeLoc.SetFlag(world.RoomFakeInstance)
		}
		e.propagateMapIdentity(inst)

		for _, mob := range e.entities.AllMobs() {
			if mob.InstanceID == inst.ID {
				inst.MobCounts[mob.Vnum]++
			}
		}
	}
	e.saveWait = false
}
