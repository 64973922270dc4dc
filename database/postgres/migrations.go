package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func createUsersTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexEmail := pgx.Identifier{fmt.Sprintf("idx_%s_email", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash BYTEA NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (email)
		WHERE (is_active);
	`,
		quotedTable,
		indexEmail, quotedTable,
	)

	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func createFileRecordsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexUploadedBy := pgx.Identifier{fmt.Sprintf("idx_%s_uploaded_by", tableName)}.Sanitize()
	indexList := pgx.Identifier{fmt.Sprintf("idx_%s_list", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			provider TEXT NOT NULL,
			object_key TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			uploaded_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (uploaded_by, created_at, id);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at, id);
	`,
		quotedTable,
		indexUploadedBy, quotedTable,
		indexList, quotedTable,
	)

	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("create file records table: %w", err)
	}
	return nil
}
