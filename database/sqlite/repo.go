// Package sqlite implements the repository interfaces using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ameyrk/skystore"
	"github.com/google/uuid"
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type userRepo struct {
	db        *sql.DB
	tableName string
}

const userColumns = "id, email, username, is_active, is_superuser, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (skystore.User, error) {
	var u skystore.User
	var idStr string
	var isActive, isSuperuser int
	var createdAt, updatedAt string

	err := row.Scan(&idStr, &u.Email, &u.Username, &isActive, &isSuperuser, &createdAt, &updatedAt)
	if err != nil {
		return skystore.User{}, err
	}

	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return skystore.User{}, fmt.Errorf("parse uuid: %w", err)
	}

	u.IsActive = isActive != 0
	u.IsSuperuser = isSuperuser != 0

	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return skystore.User{}, fmt.Errorf("parse created_at: %w", err)
	}

	u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return skystore.User{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *userRepo) Create(ctx context.Context, user skystore.User) (skystore.User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, email, username, password_hash, is_active, is_superuser, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.tableName)

	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(), user.Email, user.Username, user.PasswordHash,
		boolToInt(user.IsActive), boolToInt(user.IsSuperuser), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return skystore.User{}, fmt.Errorf("create user: %w", skystore.ErrAlreadyExists)
		}
		return skystore.User{}, fmt.Errorf("create user: %w", err)
	}

	out := user
	out.PasswordHash = nil
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	out.UpdatedAt = out.CreatedAt

	return out, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (skystore.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, userColumns, r.tableName)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return skystore.User{}, skystore.ErrNotFound
		}
		return skystore.User{}, fmt.Errorf("get by id: %w", err)
	}

	return u, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (skystore.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE email = LOWER(?)`, userColumns, r.tableName)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return skystore.User{}, skystore.ErrNotFound
		}
		return skystore.User{}, fmt.Errorf("find by email: %w", err)
	}

	return u, nil
}

func (r *userRepo) GetPasswordHash(ctx context.Context, id uuid.UUID) ([]byte, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT password_hash FROM %s WHERE id = ?`, r.tableName)

	var hash []byte
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, skystore.ErrNotFound
		}
		return nil, fmt.Errorf("get password hash: %w", err)
	}

	return hash, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id uuid.UUID, username string) (skystore.User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET username = ?, updated_at = ? WHERE id = ?`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, username, now, id.String())
	if err != nil {
		if isUniqueViolation(err) {
			return skystore.User{}, fmt.Errorf("update profile: %w", skystore.ErrAlreadyExists)
		}
		return skystore.User{}, fmt.Errorf("update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return skystore.User{}, fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return skystore.User{}, fmt.Errorf("update profile: %w", skystore.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *userRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET password_hash = ?, updated_at = ? WHERE id = ?`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, hash, now, id.String())
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set password hash: %w", skystore.ErrNotFound)
	}

	return nil
}

func (r *userRepo) Disable(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, now, id.String())
	if err != nil {
		return fmt.Errorf("disable: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("disable: %w", skystore.ErrNotFound)
	}

	return nil
}

func (r *userRepo) SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) (skystore.User, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET is_superuser = ?, updated_at = ? WHERE id = ?`, r.tableName)

	result, err := r.db.ExecContext(ctx, query, boolToInt(superuser), now, id.String())
	if err != nil {
		return skystore.User{}, fmt.Errorf("set superuser: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return skystore.User{}, fmt.Errorf("set superuser: %w", err)
	}
	if affected == 0 {
		return skystore.User{}, fmt.Errorf("set superuser: %w", skystore.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *userRepo) List(ctx context.Context, limit int, cursor string) ([]skystore.User, string, error) {
	c, err := skystore.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}

	var query string
	var args []any

	if cursor == "" {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT %s FROM %s ORDER BY created_at, id LIMIT ?`, userColumns, r.tableName)
		args = []any{limit + 1}
	} else {
		query = fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`SELECT %s FROM %s
			WHERE (created_at, id) > (?, ?)
			ORDER BY created_at, id LIMIT ?`, userColumns, r.tableName)
		args = []any{c.CreatedAt.UTC().Format(time.RFC3339Nano), c.ID.String(), limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]skystore.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list users: scan: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list users: rows: %w", err)
	}

	var nextCursor string
	if len(users) > limit {
		// Cursor points to the last item of the current page
		last := users[limit-1]
		nextCursor = skystore.EncodeCursor(last.CreatedAt, last.ID)
		users = users[:limit]
	}

	return users, nextCursor, nil
}

type fileRecordRepo struct {
	db        *sql.DB
	tableName string
}

func (r *fileRecordRepo) Insert(ctx context.Context, rec skystore.FileRecord) (skystore.FileRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, provider, object_key, content_type, size_bytes, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.tableName)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.Provider, rec.Key, rec.ContentType, rec.SizeBytes, rec.UploadedBy.String(), now,
	)
	if err != nil {
		return skystore.FileRecord{}, fmt.Errorf("insert file record: %w", err)
	}

	out := rec
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)

	return out, nil
}

func (r *fileRecordRepo) List(ctx context.Context, q skystore.ListQuery) (skystore.ListResult, error) {
	cursor, err := skystore.DecodeCursor(q.Cursor)
	if err != nil {
		return skystore.ListResult{}, fmt.Errorf("list file records: %w", err)
	}

	escapedPrefix := skystore.EscapeLikePattern(q.KeyPrefix)

	conditions := []string{`object_key LIKE ? || '%' ESCAPE '\'`}
	args := []any{escapedPrefix}

	if q.UploadedBy != uuid.Nil {
		conditions = append(conditions, "uploaded_by = ?")
		args = append(args, q.UploadedBy.String())
	}

	if q.Cursor != "" {
		conditions = append(conditions, "(created_at, id) > (?, ?)")
		args = append(args, cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	}

	args = append(args, q.Limit+1)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT id, provider, object_key, content_type, size_bytes, uploaded_by, created_at
		FROM %s
		WHERE %s
		ORDER BY created_at, id
		LIMIT ?`, r.tableName, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return skystore.ListResult{}, fmt.Errorf("list file records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]skystore.FileRecord, 0, q.Limit)
	for rows.Next() {
		var rec skystore.FileRecord
		var idStr, uploadedByStr, createdAt string

		if err := rows.Scan(&idStr, &rec.Provider, &rec.Key, &rec.ContentType, &rec.SizeBytes, &uploadedByStr, &createdAt); err != nil {
			return skystore.ListResult{}, fmt.Errorf("list file records: scan: %w", err)
		}

		rec.ID, err = uuid.Parse(idStr)
		if err != nil {
			return skystore.ListResult{}, fmt.Errorf("list file records: parse uuid: %w", err)
		}

		rec.UploadedBy, err = uuid.Parse(uploadedByStr)
		if err != nil {
			return skystore.ListResult{}, fmt.Errorf("list file records: parse uploaded_by: %w", err)
		}

		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return skystore.ListResult{}, fmt.Errorf("list file records: parse created_at: %w", err)
		}

		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return skystore.ListResult{}, fmt.Errorf("list file records: rows: %w", err)
	}

	var nextCursor string
	if len(items) > q.Limit {
		// Cursor points to the last item of the current page
		last := items[q.Limit-1]
		nextCursor = skystore.EncodeCursor(last.CreatedAt, last.ID)
		items = items[:q.Limit]
	}

	return skystore.ListResult{Items: items, NextCursor: nextCursor}, nil
}
