// Package database provides a unified interface for connecting to credential
// and audit-record backends.
//
// The package supports multiple database backends (PostgreSQL and SQLite) and
// handles connection management, migrations, and schema validation.
//
// # Supported Backends
//
//   - PostgreSQL: Production-ready backend using pgx connection pool
//   - SQLite: Lightweight backend suitable for development and single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type:        "sqlite",
//	    DSN:         "skystore.db",
//	    AutoMigrate: true,
//	    Tables: skystore.Tables{
//	        Users:       "skystore_users",
//	        FileRecords: "skystore_file_records",
//	    },
//	}
//
//	db, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	users := db.Users()
//	records := db.FileRecords()
//
// The Connect function automatically:
//   - Opens the database connection and pings it
//   - Runs schema migrations when AutoMigrate is set
//   - Validates the schema
//   - Returns a ready-to-use Database
//
// # Subpackages
//
// The database package contains backend-specific implementations:
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
