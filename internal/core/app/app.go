package app

import (
	"context"

	"pybundle/internal/core/config"
	"pybundle/internal/core/ports"
)

// App carries what every run shares: the base configuration. Runs never
// mutate it; inline overrides are merged into a per-run copy.
type App struct {
	Config *config.Config
}

func New(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	return &App{Config: cfg}
}

func (a *App) BundleService() ports.BundleService {
	return NewBundleService(a)
}

func (a *App) Close(ctx context.Context) error {
	return nil
}
