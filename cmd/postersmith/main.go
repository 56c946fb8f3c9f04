package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/postersmith/postersmith/internal/config"
	"github.com/postersmith/postersmith/internal/library"
	"github.com/postersmith/postersmith/internal/progress"
	"github.com/postersmith/postersmith/internal/render"
	"github.com/postersmith/postersmith/internal/runner"
	"github.com/postersmith/postersmith/internal/server"
	"github.com/postersmith/postersmith/internal/settings"
	"github.com/postersmith/postersmith/pkg/database"
	"github.com/postersmith/postersmith/pkg/events"
	"github.com/postersmith/postersmith/pkg/interfaces"
	"github.com/postersmith/postersmith/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the bootstrap config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Logger.Level,
		Development: cfg.Logger.Development,
		FilePath:    cfg.Logger.FilePath,
	})
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("postersmith starting",
		interfaces.String("listen_addr", cfg.Server.ListenAddr),
		interfaces.String("database", cfg.Database.Driver))

	dbCfg := database.DefaultConfig()
	dbCfg.Driver = cfg.Database.Driver
	dbCfg.Path = cfg.Database.Path
	dbCfg.DSN = cfg.Database.DSN
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatal("Failed to open database", interfaces.Error(err))
	}

	settingsRepo, err := settings.NewRepository(db)
	if err != nil {
		log.Fatal("Failed to migrate settings store", interfaces.Error(err))
	}
	settingsSvc := settings.NewService(settingsRepo, log)

	cache, err := library.NewRepository(db)
	if err != nil {
		log.Fatal("Failed to migrate movie cache", interfaces.Error(err))
	}

	// Keep tokens out of the teed log file once settings are known.
	if committed, err := settingsSvc.Current(context.Background()); err == nil {
		log.RedactSecrets(committed.Plex.Token, committed.TMDb.APIKey)
	}

	bus := events.NewInMemoryEventBus(log)
	tracker := progress.NewTracker(clockwork.NewRealClock())
	tracker.SetNotify(func(snap progress.Snapshot) {
		bus.PublishAsync(context.Background(), server.NewProgressEvent(snap))
	})

	if err := os.MkdirAll(cfg.Output.Root, 0o755); err != nil {
		log.Fatal("Failed to create output root", interfaces.Error(err))
	}

	runnerSvc := runner.NewService(
		tracker,
		settingsSvc,
		cache,
		render.NewHTTPRenderer(log),
		runner.DefaultFactories(log),
		cfg.Output.Root,
		log,
	)

	srv := server.New(server.Deps{
		Logger:    log,
		Tracker:   tracker,
		Runner:    runnerSvc,
		Settings:  settingsSvc,
		Cache:     cache,
		Factories: runner.DefaultFactories(log),
		Bus:       bus,
		Webhook:   cfg.Webhook,
		LogPath:   cfg.Logger.FilePath,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("HTTP server failed", interfaces.Error(err))
	case sig := <-sigCh:
		log.Info("Shutting down", interfaces.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown did not complete cleanly", interfaces.Error(err))
	}
	if err := bus.Stop(); err != nil {
		log.Error("Event bus drain failed", interfaces.Error(err))
	}
	log.Info("postersmith stopped")
}
