// Package container provides dependency injection.
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/database/factory"
	"github.com/satishbabariya/dbdelta/internal/adapters/storage"
	"github.com/satishbabariya/dbdelta/internal/adapters/telemetry"
	"github.com/satishbabariya/dbdelta/internal/config"
	"github.com/satishbabariya/dbdelta/internal/core/migration/differ"
	"github.com/satishbabariya/dbdelta/internal/core/migration/history"
	"github.com/satishbabariya/dbdelta/internal/core/migration/introspector"
	"github.com/satishbabariya/dbdelta/internal/core/migration/planner"
	"github.com/satishbabariya/dbdelta/internal/debug"
	"github.com/satishbabariya/dbdelta/internal/service"
)

// Container holds all application dependencies.
type Container struct {
	config *config.Config

	// Adapters
	storage   storage.Storage
	telemetry telemetry.Telemetry
	connect   service.Connector

	// The target database is connected on first use so that commands which only touch the
	// migration directory work without one.
	mu        sync.Mutex
	dbAdapter database.Adapter

	// Services
	directory   *history.Directory
	diffService *service.DiffService
}

// Option customizes a container.
type Option func(*Container)

// WithStorage replaces the migration file store.
func WithStorage(s storage.Storage) Option {
	return func(c *Container) { c.storage = s }
}

// WithConnector replaces how database descriptors are connected.
func WithConnector(connect service.Connector) Option {
	return func(c *Container) { c.connect = connect }
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	c := &Container{config: cfg, connect: factory.Connect}
	for _, opt := range opts {
		opt(c)
	}

	if c.storage == nil {
		store, err := storage.NewStorage(&storage.Config{Type: string(storage.TypeFilesystem), BasePath: "."}, config.AppFs)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		c.storage = store
	}

	telCfg := &telemetry.Config{Type: string(telemetry.TypeNoop)}
	if cfg.MetricsTextfile != "" {
		telCfg = &telemetry.Config{Type: string(telemetry.TypePrometheus), Textfile: cfg.MetricsTextfile}
	}
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}
	c.telemetry = tel

	c.directory = history.NewDirectory(c.storage, cfg.MigrationsDir)
	c.diffService = service.NewDiffService(
		c.connect,
		introspector.New,
		differ.NewSnapshotDiffer(),
		planner.NewDependencyPlanner(),
		c.telemetry,
	)
	return c, nil
}

// Config returns the resolved configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Directory returns the migration directory.
func (c *Container) Directory() *history.Directory {
	return c.directory
}

// Telemetry returns the metrics sink.
func (c *Container) Telemetry() telemetry.Telemetry {
	return c.telemetry
}

// DiffService returns the diff service.
func (c *Container) DiffService() *service.DiffService {
	return c.diffService
}

// Database connects to the configured target database on first call.
func (c *Container) Database(ctx context.Context) (database.Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dbAdapter != nil {
		return c.dbAdapter, nil
	}
	if c.config.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured: set database_url or DATABASE_URL")
	}
	db, err := c.connect(ctx, c.config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.dbAdapter = db
	return db, nil
}

// MigrationService returns a migration service bound to the target database. With requireDB
// false and no database configured, the service can still create migration files.
func (c *Container) MigrationService(ctx context.Context, requireDB bool) (*service.MigrationService, error) {
	var db database.Adapter
	if requireDB || c.config.DatabaseURL != "" {
		var err error
		if db, err = c.Database(ctx); err != nil {
			return nil, err
		}
	}
	return service.NewMigrationService(db, c.directory, c.diffService, c.telemetry), nil
}

// Close cleans up resources.
func (c *Container) Close(ctx context.Context) error {
	if err := c.telemetry.Close(ctx); err != nil {
		debug.Warn("failed to write metrics", "error", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dbAdapter != nil {
		err := c.dbAdapter.Disconnect(ctx)
		c.dbAdapter = nil
		return err
	}
	return nil
}
