package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/spawnkeep/internal/catalog"
	"github.com/udisondev/spawnkeep/internal/command"
	"github.com/udisondev/spawnkeep/internal/config"
	"github.com/udisondev/spawnkeep/internal/db"
	"github.com/udisondev/spawnkeep/internal/difficulty"
	"github.com/udisondev/spawnkeep/internal/display"
	"github.com/udisondev/spawnkeep/internal/session"
	"github.com/udisondev/spawnkeep/internal/snapshot"
	"github.com/udisondev/spawnkeep/internal/spawn"
	"github.com/udisondev/spawnkeep/internal/world"
)

const ConfigPath = "config/spawnkeep.yaml"

// shutdownTimeout bounds the final snapshot write after the loops stop.
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("SPAWNKEEP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("spawnkeep starting", "log_level", cfg.LogLevel, "worlds", cfg.Worlds)

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	w := world.New(cfg.Worlds...)
	codec := spawn.NewCodec(catalog.Default(), cfg.Spawn.MaxPerEntry)

	// Labels go to the log unless display is disabled; a renderer
	// integration replaces this with its own spawn.Display.
	var disp spawn.Display = display.Noop{}
	if cfg.DisplayLabels {
		disp = display.NewLog()
	}

	reg := spawn.NewRegistry(codec, store, spawn.Deps{
		Factory:                world.NewFactory(w),
		World:                  w,
		Delays:                 difficulty.New(cfg.Spawn.RespawnCooldown),
		Display:                disp,
		DefaultCapacity:        cfg.Spawn.DefaultCapacity,
		DefaultDetectionRadius: cfg.Spawn.DefaultDetectionRadius,
	}, spawn.Config{
		TickInterval:         cfg.Spawn.TickInterval,
		PersistInterval:      cfg.Spawn.PersistInterval,
		SweepInterval:        cfg.Spawn.SweepInterval,
		GroupRebuildInterval: cfg.Spawn.GroupRebuildInterval,
	})

	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("loading spawners: %w", err)
	}

	sessions := session.NewManager(reg, codec, cfg.Session.IdleTimeout)

	// The handler is the ingress surface: whatever front-end embeds the
	// daemon feeds operator text into handler.Handle.
	handler := command.NewHandler(sessions)
	command.RegisterAll(handler, reg, sessions)
	slog.Info("operator commands registered", "count", handler.CommandCount())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := reg.Run(gctx); err != nil {
			return fmt.Errorf("spawn registry: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := sessions.Run(gctx); err != nil {
			return fmt.Errorf("session manager: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon error: %w", err)
	}

	// The loops are stopped; flush one last snapshot on a fresh context.
	persistCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := reg.PersistAll(persistCtx); err != nil {
		return fmt.Errorf("saving final snapshot: %w", err)
	}
	slog.Info("final snapshot saved", "count", reg.Count())

	return nil
}

// openStore picks the snapshot backend: PostgreSQL when a database host is
// configured, the YAML file store otherwise.
func openStore(ctx context.Context, st config.Storage) (spawn.Store, func(), error) {
	if !st.UsesDatabase() {
		slog.Info("using file snapshot store", "path", st.SnapshotPath)
		return snapshot.NewFileStore(st.SnapshotPath), func() {}, nil
	}

	dsn := st.Database.DSN()
	database, err := db.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.RunMigrations(ctx, dsn); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("using database snapshot store",
		"host", st.Database.Host,
		"dbname", st.Database.DBName)

	return db.NewSpawnerRepository(database.Pool()), database.Close, nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
