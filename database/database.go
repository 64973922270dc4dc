package database

import (
	"context"
	"fmt"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/database/postgres"
	"github.com/ameyrk/skystore/database/sqlite"
)

// Config holds the configuration for connecting to a credential store backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// AutoMigrate runs migrations on connect
	AutoMigrate bool `mapstructure:"auto_migrate"`
	// Tables holds configurable table names
	Tables skystore.Tables `mapstructure:"tables"`
}

// Database is a connected credential store backend.
type Database interface {
	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
	// Migrate creates required tables.
	Migrate(ctx context.Context) error
	// Validate checks that the schema matches the expected structure.
	Validate(ctx context.Context) error
	// Users returns the user repository.
	Users() skystore.UserRepo
	// FileRecords returns the file record repository.
	FileRecords() skystore.FileRecordRepo
	// Close releases the underlying connection.
	Close() error
}

// Connect establishes a connection to the configured backend. Table names
// are validated before connecting. When AutoMigrate is set the schema is
// created and validated before the Database is returned.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	var (
		db  Database
		err error
	)

	switch cfg.Type {
	case "sqlite":
		db, err = sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.DSN, cfg.Tables)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
