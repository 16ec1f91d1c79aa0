// Package internal contains core application functionality
package internal

import (
	"context"
	"fmt"

	"github.com/karloscodes/cartridge"

	"linblog/internal/analytics"
	"linblog/internal/config"
	"linblog/internal/database"
	"linblog/internal/jobs"
	"linblog/internal/pageviews"
	"linblog/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the blog analytics components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	GeoIP     *geoip.Resolver
	Jobs      *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// country lookup is optional; a missing database leaves it disabled
	resolver := geoip.Open(cfg.GeoDBPath, logger)
	geoip.SetDefault(resolver)

	scheduler, err := jobs.NewScheduler(dbManager, resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      NewServerConfig(),
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		GeoIP:       resolver,
		Jobs:        scheduler,
	}, nil
}

// Analytics returns the analytics service bound to the application database.
func (a *Application) Analytics() *analytics.Service {
	var countries pageviews.CountryResolver
	if a.GeoIP != nil {
		countries = a.GeoIP
	}
	return analytics.NewGormService(a.DBManager.GetConnection(), countries,
		analytics.WithWorkers(config.GetConfig().DashboardWorkers))
}

// Shutdown stops the server and workers, then releases the GeoLite database.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Application.Shutdown(ctx)
	if a.GeoIP != nil {
		if closeErr := a.GeoIP.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
