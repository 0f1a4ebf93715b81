package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/simworld/server/internal/config"
	"github.com/simworld/server/internal/core/event"
	coresys "github.com/simworld/server/internal/core/system"
	"github.com/simworld/server/internal/data"
	"github.com/simworld/server/internal/handler"
	"github.com/simworld/server/internal/introspect"
	"github.com/simworld/server/internal/mutation"
	gonet "github.com/simworld/server/internal/net"
	"github.com/simworld/server/internal/net/packet"
	"github.com/simworld/server/internal/persist"
	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/scripting"
	"github.com/simworld/server/internal/sim"
	"github.com/simworld/server/internal/system"
	"github.com/simworld/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, runID uuid.UUID) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              simworld  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      entity and plugin lifecycle server   \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(run %s)\033[0m\n\n", serverName, runID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("SIMWORLD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	switch cfg.Debug.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	runID := uuid.New()
	log = log.With(zap.String("run_id", runID.String()))
	printBanner(cfg.Server.Name, runID)

	// 3. Load the world description
	printSection("world")
	desc, err := data.LoadWorldFile(cfg.World.File)
	if err != nil {
		return fmt.Errorf("world file: %w", err)
	}
	store := world.NewStore(log)
	if err := store.Open(desc); err != nil {
		return fmt.Errorf("open world: %w", err)
	}
	printStat("models", store.Count())
	printStat("world plugins", len(desc.Plugins))
	printOK(fmt.Sprintf("world %q opened", desc.Name))
	fmt.Println()

	// 4. Physics engine
	printSection("physics")
	settings := physics.NewSettings(cfg.Physics.Engine, physics.Values{
		MaxStepSize:        cfg.Physics.MaxStepSize,
		RealTimeUpdateRate: cfg.Physics.RealTimeUpdateRate,
		RealTimeFactor:     cfg.Physics.RealTimeFactor,
		Gravity:            physics.Vector3(cfg.Physics.Gravity),
		MagneticField:      physics.Vector3(cfg.Physics.MagneticField),
		WindLinearVelocity: physics.Vector3(cfg.Physics.WindLinearVelocity),
	}, log)
	engine, closeEngine, err := newEngine(cfg.Physics, log)
	if err != nil {
		return fmt.Errorf("physics engine: %w", err)
	}
	defer closeEngine()
	printOK(fmt.Sprintf("engine %s, step %gs", engine.Type(), cfg.Physics.MaxStepSize))
	fmt.Println()

	// 5. Systems
	bus := event.NewBus()
	queue := mutation.NewQueue(cfg.World.MaxPending)
	runner := coresys.NewRunner(log)
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewPhysicsSystem(store, engine, settings, log))
	runner.Register(system.NewClockSystem(store.Clock(), settings))
	runner.Register(system.NewCleanupSystem(store, log))

	// 6. Optional persistence
	var persistence *system.PersistenceSystem
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("migrations at version %d", version))

		snapshots := persist.NewSnapshotRepo(db, runID)
		saved, err := snapshots.Count(ctx, store.WorldName())
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		printOK(fmt.Sprintf("last snapshot of %s holds %d models", store.WorldName(), saved))
		log.Info("previous model snapshot",
			zap.String("world", store.WorldName()),
			zap.Int("models", saved),
		)
		fmt.Println()

		persistence = system.NewPersistenceSystem(store, bus,
			snapshots,
			persist.NewJournalRepo(db, runID),
			cfg.Database.SaveInterval, log)
		runner.Register(persistence)
		persistence.Start()
	}

	// 7. Controller
	plugins := introspect.NewService(store, log)
	ctl := sim.New(sim.Options{
		Store:    store,
		Queue:    queue,
		Bus:      bus,
		Runner:   runner,
		Settings: settings,
		Plugins:  plugins,
		MinTick:  cfg.World.MinTick,
		RunID:    runID,
		Log:      log,
	})

	// 8. Control server
	sessions := gonet.NewSessionStore()
	deps := &handler.Deps{
		Config:   cfg,
		Log:      log,
		Queue:    ctl,
		Plugins:  plugins,
		Physics:  settings,
		Sessions: sessions,
		World:    desc.Name,
	}
	pktReg := packet.NewRegistry(log)
	handler.RegisterAll(pktReg, deps)
	handler.SubscribeRejections(bus, deps)

	netServer, err := gonet.NewServer(cfg.Network, pktReg, sessions, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	netServer.SetGreeting(handler.Greeting(deps))
	go netServer.AcceptLoop()

	// 9. Start step loop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("step loop running (rate %g Hz)", cfg.Physics.RealTimeUpdateRate))
	fmt.Println()

	err = ctl.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("step loop stopped", zap.Error(err))
	}

	log.Info("shutting down")
	netServer.Shutdown()
	if persistence != nil {
		// final snapshot is taken before the world closes
		persistence.Stop()
	}
	ctl.Close()
	log.Info("server stopped",
		zap.Uint64("iterations", store.Clock().Iterations()),
		zap.Duration("sim_time", store.Clock().SimTime()),
	)
	return nil
}

// newEngine builds the configured physics engine and its cleanup func.
func newEngine(cfg config.PhysicsConfig, log *zap.Logger) (physics.Engine, func(), error) {
	switch cfg.Engine {
	case "", "null":
		return physics.Null{}, func() {}, nil
	case "lua":
		eng, err := scripting.NewEngine(cfg.ScriptsDir, log)
		if err != nil {
			return nil, nil, err
		}
		return eng, eng.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
