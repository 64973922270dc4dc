package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/database/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// setupTestRepos creates repositories with unique table names for test
// isolation, backed by an in-memory database.
func setupTestRepos(t *testing.T) (skystore.UserRepo, skystore.FileRecordRepo, func()) {
	t.Helper()

	ctx := context.Background()

	suffix := getRandomString(t)
	tables := skystore.Tables{
		Users:       fmt.Sprintf("users_%s", suffix),
		FileRecords: fmt.Sprintf("file_records_%s", suffix),
	}

	// A named shared-cache memory database keeps every pooled connection
	// pointed at the same schema.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", suffix)
	db, err := sqlite.Connect(ctx, dsn, tables)
	require.NoError(t, err, "failed to connect")

	err = db.Migrate(ctx)
	require.NoError(t, err, "failed to migrate")

	cleanup := func() {
		_ = db.Close()
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
