package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/database/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
)

// getSharedTestDatabase returns a shared database pool for all tests.
// Reusing one container keeps the suite fast; table names provide the
// isolation.
func getSharedTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		t.Cleanup(func() {
			if testPool != nil {
				testPool.Close()
			}
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %s", err)
			}
		})

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			t.Fatalf("could not connect to database: %v", err)
		}

		testPool = pool
	})

	return testPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// dropTable drops the specified table for test cleanup.
func dropTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quotedTable)
	_, err := pool.Exec(ctx, sql)
	return err
}

// getDSN extracts the DSN from the pool config.
func getDSN(pool *pgxpool.Pool) string {
	return pool.Config().ConnString()
}

// setupTestRepos creates repositories with unique table names for test
// isolation.
func setupTestRepos(t *testing.T) (skystore.UserRepo, skystore.FileRecordRepo, func()) {
	t.Helper()

	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	suffix := getRandomString(t)
	tables := skystore.Tables{
		Users:       fmt.Sprintf("users_%s", suffix),
		FileRecords: fmt.Sprintf("file_records_%s", suffix),
	}

	db, err := postgres.Connect(ctx, getDSN(pool), tables)
	require.NoError(t, err, "failed to connect")

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	cleanup := func() {
		_ = db.Close()
		_ = dropTable(ctx, pool, tables.FileRecords)
		_ = dropTable(ctx, pool, tables.Users)
	}

	return db.Users(), db.FileRecords(), cleanup
}

// newTestUser returns a user value with unique identity fields, ready for
// Create.
func newTestUser(t *testing.T) skystore.User {
	t.Helper()

	suffix := getRandomString(t)
	return skystore.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@example.com", suffix),
		Username:     suffix,
		PasswordHash: []byte("$2a$04$fakehashfortests"),
		IsActive:     true,
	}
}
