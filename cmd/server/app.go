package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lexiconlabs/ankibridge/internal/config"
	"github.com/lexiconlabs/ankibridge/internal/platform/ankiconnect"
	"github.com/lexiconlabs/ankibridge/internal/platform/logger"
	"github.com/lexiconlabs/ankibridge/internal/platform/postgres"
	"github.com/lexiconlabs/ankibridge/internal/service"
	"github.com/lexiconlabs/ankibridge/internal/service/auth"
	"github.com/lexiconlabs/ankibridge/internal/store"
	"github.com/lexiconlabs/ankibridge/internal/worker"
)

// application holds the assembled dependencies of the running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	db          *sql.DB
	cardStore   store.CardStore
	cardService service.CardService
	jwtService  auth.JWTService
	syncWorker  *worker.SyncWorker
}

// initializeApp loads configuration and wires up the application
// components: logging, database, stores, services, and the sync worker.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("anki_connect_url", cfg.Anki.ConnectURL))

	db, err := setupAppDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := postgres.MigrateUp(db); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	cardStore := postgres.NewPostgresCardStore(db, log)

	cardService, err := service.NewCardService(cardStore, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create card service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	ankiClient := ankiconnect.NewClient(ankiconnect.Config{
		URL:        cfg.Anki.ConnectURL,
		DeckPrefix: cfg.Anki.DeckPrefix,
		Timeout:    cfg.Anki.Timeout,
	}, log)

	syncWorker := worker.NewSyncWorker(cardStore, ankiClient, worker.SyncWorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		MaxBackoff:   cfg.Worker.MaxBackoff,
	}, log)

	return &application{
		config:      cfg,
		logger:      log,
		db:          db,
		cardStore:   cardStore,
		cardService: cardService,
		jwtService:  jwtService,
		syncWorker:  syncWorker,
	}, nil
}

// cleanup releases application resources in reverse dependency order.
func (app *application) cleanup() {
	app.syncWorker.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection",
			slog.String("error", err.Error()))
	}
}
