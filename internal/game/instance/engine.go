package instance

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/config"
	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/empire"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/quest"
	"github.com/emberforge/mud/internal/game/world"
	"github.com/emberforge/mud/internal/scripting"
)

// EventChecker reports whether a world event is currently running. Linking
// rules can tie instance generation and survival to an event.
type EventChecker interface {
	IsRunning(eventID int) bool
}

// Engine owns the instance registry and all instancing operations.
//
// The engine is not goroutine-safe. All mutation happens from the game
// pulse goroutine; the save-suppression and generation cursor state below
// is explicit engine state rather than hidden globals for that reason.
type Engine struct {
	cfg      config.InstancingConfig
	world    *world.Manager
	store    *adventure.Store
	entities *entity.Manager
	empires  *empire.Manager
	quests   *quest.Tracker
	triggers *scripting.TriggerManager
	events   EventChecker
	logger   *zap.Logger
	rng      *rand.Rand
	clock    func() time.Time

	instances []*Instance
	// roomIndex maps interior room vnums to their owning instance.
	roomIndex map[world.RoomID]*Instance
	// genCursor is the last adventure vnum the generator handled, so
	// periodic generation round-robins across templates.
	genCursor int
	// saveWait suppresses instance-file writes during bulk deletes.
	saveWait bool
}

// NewEngine builds an instancing engine over the given world and stores.
//
// Precondition: w, store, entities, empires, quests, and logger are non-nil.
// Postcondition: the registry is empty; call Load to restore persisted
// instances.
func NewEngine(cfg config.InstancingConfig, w *world.Manager, store *adventure.Store,
	entities *entity.Manager, empires *empire.Manager, quests *quest.Tracker,
	triggers *scripting.TriggerManager, logger *zap.Logger, seed int64) *Engine {
	return &Engine{
		cfg:       cfg,
		world:     w,
		store:     store,
		entities:  entities,
		empires:   empires,
		quests:    quests,
		triggers:  triggers,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
		clock:     time.Now,
		roomIndex: make(map[world.RoomID]*Instance),
		genCursor: -1,
	}
}

// SetEventChecker wires the world-event limiter used by event-bound rules.
func (e *Engine) SetEventChecker(ec EventChecker) {
	e.events = ec
}

// SetClock overrides the engine time source.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

func (e *Engine) now() time.Time {
	return e.clock()
}

// save writes the instance file unless suppressed, logging failures.
func (e *Engine) save() {
	if e.saveWait {
		return
	}
	if err := e.Save(); err != nil {
		e.logger.Error("failed to save instances", zap.Error(err))
	}
}

// fireTriggers runs the named script hooks for a trigger kind, if a script
// manager is wired.
func (e *Engine) fireTriggers(names []string, kind scripting.TriggerKind, payload scripting.Payload) {
	if e.triggers == nil {
		return
	}
	for _, name := range names {
		e.triggers.Fire(name, kind, payload)
	}
}
