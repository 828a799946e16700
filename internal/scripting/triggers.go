package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// TriggerKind names the engine event a trigger fires on.
type TriggerKind string

// Trigger kinds fired by the instancing engine.
const (
	// TriggerLoad fires when a room or entity is first generated.
	TriggerLoad TriggerKind = "load"
	// TriggerReset fires at the start of each room reset pass.
	TriggerReset TriggerKind = "reset"
	// TriggerCleanup fires exactly once when an instance's entrance is unlinked.
	TriggerCleanup TriggerKind = "adventure-cleanup"
)

// Payload is the event context handed to a trigger as a Lua table.
type Payload struct {
	// InstanceID is the owning instance id, or -1.
	InstanceID int
	// RoomID is the room the event concerns, or -1.
	RoomID int
	// EntityUID is the runtime id of the entity the event concerns, if any.
	EntityUID string
	// Vnum is the prototype or adventure vnum the event concerns, if any.
	Vnum int
}

// TriggerManager owns a single sandboxed LState and dispatches named
// trigger functions defined by world scripts.
//
// The engine fires triggers from the single game pulse goroutine; the lock
// serializes any other callers against it.
type TriggerManager struct {
	mu        sync.Mutex
	state     *lua.LState
	instLimit int
	logger    *zap.Logger
}

// NewTriggerManager creates a TriggerManager with no scripts loaded.
// Firing a trigger before LoadDir is a silent no-op.
//
// Precondition: logger must be non-nil.
func NewTriggerManager(logger *zap.Logger) *TriggerManager {
	return &TriggerManager{logger: logger}
}

// LoadDir creates the sandboxed VM and executes every *.lua file in
// scriptDir in lexicographic order. Scripts define global functions named
// after the triggers that room templates and adventures reference.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: The VM is ready for Fire; returns error on Lua load failure.
func (m *TriggerManager) LoadDir(scriptDir string, instLimit int) error {
	L := NewSandboxedState(instLimit)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.state != nil {
		m.state.Close()
	}
	m.state = L
	m.instLimit = instLimit
	m.mu.Unlock()
	return nil
}

// Fire calls the named global trigger function with (kind, payload table).
// Missing functions and a missing VM are silent no-ops. Lua runtime errors
// are logged at Warn level and never propagated.
func (m *TriggerManager) Fire(trigger string, kind TriggerKind, p Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L := m.state
	if L == nil || trigger == "" {
		return
	}

	fn := L.GetGlobal(trigger)
	if fn == lua.LNil {
		return
	}

	// Fresh opcode budget per invocation.
	limit := m.instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := newCountingContext(limit)
	defer cancel()
	L.SetContext(ctx)

	tbl := L.NewTable()
	L.SetField(tbl, "instance", lua.LNumber(p.InstanceID))
	L.SetField(tbl, "room", lua.LNumber(p.RoomID))
	L.SetField(tbl, "entity", lua.LString(p.EntityUID))
	L.SetField(tbl, "vnum", lua.LNumber(p.Vnum))

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(string(kind)), tbl); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("trigger", trigger),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// Close releases the VM.
func (m *TriggerManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}
