// Package main provides the game server binary: it loads content, restores
// persisted adventure instances, and runs the instancing pulse loop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/mud/internal/config"
	"github.com/emberforge/mud/internal/game/adventure"
	"github.com/emberforge/mud/internal/game/empire"
	"github.com/emberforge/mud/internal/game/entity"
	"github.com/emberforge/mud/internal/game/instance"
	"github.com/emberforge/mud/internal/game/quest"
	"github.com/emberforge/mud/internal/game/world"
	"github.com/emberforge/mud/internal/observability"
	"github.com/emberforge/mud/internal/scripting"
	"github.com/emberforge/mud/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	adventuresDir := flag.String("adventures", "content/adventures", "path to adventure YAML files directory")
	scriptDir := flag.String("scripts", "content/scripts", "directory of Lua trigger scripts; empty = scripting disabled")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.Int("world_width", cfg.World.Width),
		zap.Int("world_height", cfg.World.Height),
	)

	// Generate the world map.
	mapStart := time.Now()
	worldMgr := world.GenerateMap(cfg.World.Width, cfg.World.Height, cfg.World.Seed)
	worldMgr.RegisterSector(&world.Sector{ID: cfg.Instancing.DefaultSector})
	logger.Info("world generated",
		zap.Int("tiles", worldMgr.MapSize()),
		zap.Duration("elapsed", time.Since(mapStart)),
	)

	// Load adventure templates.
	store := adventure.NewStore()
	advStart := time.Now()
	count, err := store.LoadDir(*adventuresDir)
	if err != nil {
		logger.Fatal("loading adventures", zap.Error(err))
	}
	logger.Info("adventures loaded",
		zap.Int("count", count),
		zap.Duration("elapsed", time.Since(advStart)),
	)

	entities := entity.NewManager()
	registerDevPrototypes(entities)
	empires := empire.NewManager()
	quests := quest.NewTracker()

	// Initialise scripting.
	var triggers *scripting.TriggerManager
	if *scriptDir != "" {
		if info, statErr := os.Stat(*scriptDir); statErr == nil && info.IsDir() {
			triggers = scripting.NewTriggerManager(logger)
			if err := triggers.LoadDir(*scriptDir, scripting.DefaultInstructionLimit); err != nil {
				logger.Fatal("loading trigger scripts", zap.Error(err))
			}
			defer triggers.Close()
			logger.Info("trigger scripts loaded", zap.String("dir", *scriptDir))
		} else {
			logger.Warn("script directory not found, scripting disabled",
				zap.String("dir", *scriptDir))
		}
	}

	engine := instance.NewEngine(cfg.Instancing, worldMgr, store, entities,
		empires, quests, triggers, logger, cfg.World.Seed)
	if err := engine.Load(); err != nil {
		logger.Fatal("loading instances", zap.Error(err))
	}

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	// The engine is not goroutine-safe; generation, resets, and pruning
	// all run on the pulse loop's single goroutine.
	pulse := server.NewPulse(logger)
	pulse.Every("generate", cfg.Instancing.GenerateInterval, func() {
		if inst := engine.Generate(); inst != nil {
			logger.Debug("generated instance", zap.Int("instance", inst.ID))
		}
	})
	pulse.Every("reset", cfg.Instancing.ResetInterval, engine.ResetAll)
	pulse.Every("prune", cfg.Instancing.PruneInterval, engine.Prune)
	pulse.OnStop(func() {
		if err := engine.Save(); err != nil {
			logger.Error("final instance save failed", zap.Error(err))
		}
	})

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("instancing", pulse)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// registerDevPrototypes seeds the prototypes the bundled dev content
// references. A full deployment loads these from world data files.
func registerDevPrototypes(entities *entity.Manager) {
	entities.RegisterMobProto(&entity.MobProto{Vnum: 9200, Name: "a goblin digger"})
	entities.RegisterMobProto(&entity.MobProto{Vnum: 9201, Name: "the goblin chieftain"})
	entities.RegisterObjectProto(&entity.ObjectProto{Vnum: 9300, Name: "a mushroom cache"})
	entities.RegisterObjectProto(&entity.ObjectProto{
		Vnum: 9000, Name: "a gnawed burrow entrance", Portal: true, PortalTarget: 9100,
	})
	entities.RegisterObjectProto(&entity.ObjectProto{
		Vnum: 9001, Name: "a shaft of daylight", Portal: true,
	})
}
