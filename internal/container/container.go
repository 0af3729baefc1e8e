package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"gocorr/adapters/postgres"
	"gocorr/app"
	"gocorr/internal/api"
	"gocorr/internal/config"
	"gocorr/internal/metrics"
	"gocorr/internal/migration"
	"gocorr/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger zerolog.Logger

	// Infrastructure
	DB      *sqlx.DB
	Metrics *metrics.Registry

	// Repositories (data access layer); nil when persistence is disabled
	ResultRepo ports.ResultRepository

	// Application
	Service *app.CorrelationService
	Handler *api.CorrelationHandler
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
	}, nil
}

// InitWithDatabase checks the connection, brings the schema up to date and
// enables result persistence.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	c.ResultRepo = postgres.NewResultRepository(db)
	c.Logger.Info().Str("component", "container").Msg("Result persistence enabled")
	return nil
}

// Build wires the correlation service and HTTP handler. It must run after
// InitWithDatabase when persistence is wanted.
func (c *Container) Build() *Container {
	c.Service = app.NewCorrelationService(c.Logger, c.Metrics, app.ServiceOptions{
		Profile:    c.Config.Profiling.Enabled,
		Repository: c.ResultRepo,
	})
	c.Handler = api.NewCorrelationHandler(c.Service, c.ResultRepo, c.Config.Params(), c.Logger)
	return c
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
