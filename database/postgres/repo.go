// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ameyrk/skystore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables is an alias for skystore.Tables for package compatibility.
type Tables = skystore.Tables

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type userRepo struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewUserRepo builds a user repository over an existing pool.
func NewUserRepo(pool *pgxpool.Pool, tables Tables) (*userRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &userRepo{pool: pool, tableName: tables.Users}, nil
}

func (r *userRepo) Create(ctx context.Context, user skystore.User) (skystore.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, username, password_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, email, username, is_active, is_superuser, created_at, updated_at
	`, r.tableName)

	var u skystore.User
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.IsActive, user.IsSuperuser,
	).Scan(&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return skystore.User{}, fmt.Errorf("create user: %w", skystore.ErrAlreadyExists)
		}
		return skystore.User{}, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (skystore.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, username, is_active, is_superuser, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tableName)

	var u skystore.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skystore.User{}, skystore.ErrNotFound
		}
		return skystore.User{}, fmt.Errorf("get by id: %w", err)
	}

	return u, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (skystore.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, username, is_active, is_superuser, created_at, updated_at
		FROM %s
		WHERE email = LOWER($1)
	`, r.tableName)

	var u skystore.User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skystore.User{}, skystore.ErrNotFound
		}
		return skystore.User{}, fmt.Errorf("find by email: %w", err)
	}

	return u, nil
}

func (r *userRepo) GetPasswordHash(ctx context.Context, id uuid.UUID) ([]byte, error) {
	query := fmt.Sprintf(`
		SELECT password_hash
		FROM %s
		WHERE id = $1
	`, r.tableName)

	var hash []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, skystore.ErrNotFound
		}
		return nil, fmt.Errorf("get password hash: %w", err)
	}

	return hash, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id uuid.UUID, username string) (skystore.User, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET username = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, username, is_active, is_superuser, created_at, updated_at
	`, r.tableName)

	var u skystore.User
	err := r.pool.QueryRow(ctx, query, id, username).Scan(
		&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skystore.User{}, fmt.Errorf("update profile: %w", skystore.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return skystore.User{}, fmt.Errorf("update profile: %w", skystore.ErrAlreadyExists)
		}
		return skystore.User{}, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("set password hash: %w", skystore.ErrNotFound)
	}

	return nil
}

func (r *userRepo) Disable(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
	`, r.tableName)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("disable: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("disable: %w", skystore.ErrNotFound)
	}

	return nil
}

func (r *userRepo) SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) (skystore.User, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_superuser = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, username, is_active, is_superuser, created_at, updated_at
	`, r.tableName)

	var u skystore.User
	err := r.pool.QueryRow(ctx, query, id, superuser).Scan(
		&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skystore.User{}, fmt.Errorf("set superuser: %w", skystore.ErrNotFound)
		}
		return skystore.User{}, fmt.Errorf("set superuser: %w", err)
	}

	return u, nil
}

func (r *userRepo) List(ctx context.Context, limit int, cursor string) ([]skystore.User, string, error) {
	c, err := skystore.DecodeCursor(cursor)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}

	var query string
	var args []any

	if cursor == "" {
		query = fmt.Sprintf(`
			SELECT id, email, username, is_active, is_superuser, created_at, updated_at
			FROM %s
			ORDER BY created_at, id
			LIMIT $1
		`, r.tableName)
		args = []any{limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT id, email, username, is_active, is_superuser, created_at, updated_at
			FROM %s
			WHERE (created_at, id) > ($1, $2)
			ORDER BY created_at, id
			LIMIT $3
		`, r.tableName)
		args = []any{c.CreatedAt, c.ID, limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]skystore.User, 0, limit)
	for rows.Next() {
		var u skystore.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt); err != nil {
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
	pool      *pgxpool.Pool
	tableName string
}

// NewFileRecordRepo builds a file record repository over an existing pool.
func NewFileRecordRepo(pool *pgxpool.Pool, tables Tables) (*fileRecordRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new file record repo: %w", err)
	}

	return &fileRecordRepo{pool: pool, tableName: tables.FileRecords}, nil
}

func (r *fileRecordRepo) Insert(ctx context.Context, rec skystore.FileRecord) (skystore.FileRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, provider, object_key, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, provider, object_key, content_type, size_bytes, uploaded_by, created_at
	`, r.tableName)

	var out skystore.FileRecord
	err := r.pool.QueryRow(ctx, query,
		rec.ID, rec.Provider, rec.Key, rec.ContentType, rec.SizeBytes, rec.UploadedBy,
	).Scan(&out.ID, &out.Provider, &out.Key, &out.ContentType, &out.SizeBytes, &out.UploadedBy, &out.CreatedAt)
	if err != nil {
		return skystore.FileRecord{}, fmt.Errorf("insert file record: %w", err)
	}

	return out, nil
}

func (r *fileRecordRepo) List(ctx context.Context, q skystore.ListQuery) (skystore.ListResult, error) {
	cursor, err := skystore.DecodeCursor(q.Cursor)
	if err != nil {
		return skystore.ListResult{}, fmt.Errorf("list file records: %w", err)
	}

	escapedPrefix := skystore.EscapeLikePattern(q.KeyPrefix)

	conditions := []string{"object_key LIKE $1 || '%'"}
	args := []any{escapedPrefix}

	if q.UploadedBy != uuid.Nil {
		args = append(args, q.UploadedBy)
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", len(args)))
	}

	if q.Cursor != "" {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) > ($%d, $%d)", len(args)-1, len(args)))
	}

	args = append(args, q.Limit+1)

	query := fmt.Sprintf(`
		SELECT id, provider, object_key, content_type, size_bytes, uploaded_by, created_at
		FROM %s
		WHERE %s
		ORDER BY created_at, id
		LIMIT $%d
	`, r.tableName, strings.Join(conditions, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return skystore.ListResult{}, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	items := make([]skystore.FileRecord, 0, q.Limit)
	for rows.Next() {
		var rec skystore.FileRecord
		if err := rows.Scan(&rec.ID, &rec.Provider, &rec.Key, &rec.ContentType, &rec.SizeBytes, &rec.UploadedBy, &rec.CreatedAt); err != nil {
			return skystore.ListResult{}, fmt.Errorf("list file records: scan: %w", err)
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
