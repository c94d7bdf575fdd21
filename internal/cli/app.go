package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/metrics"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

// app is everything a command needs, opened from the global flags
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.Storage
	recorder *metrics.Recorder
	service  *service.ReconcileService
}

// LoadConfig resolves the config. An explicit --config must load; otherwise
// config.yaml is tried before the environment.
func (f *GlobalFlags) LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	if f.DBPath != "" {
		cfg.Storage.DatabasePath = f.DBPath
	}
	if f.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	return cfg, nil
}

// open builds the app. Logs go to logOut, never to the command's stdout.
func (f *GlobalFlags) open(logOut io.Writer, system string) (*app, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLoggerTo(logOut, cfg.Observability.Logging).With("system", system)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	recorder := metrics.NewRecorder()
	svc, err := service.NewReconcileService(cfg, store, recorder, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		recorder: recorder,
		service:  svc,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
