package skystore

import (
	"context"

	"github.com/google/uuid"
)

// UserRepo defines the credential store the core depends on.
// Implementations must handle concurrent access safely.
//
// All methods accept a context for cancellation and timeout control.
type UserRepo interface {
	// Create persists a new user. Returns ErrAlreadyExists when the email
	// or username is taken.
	Create(ctx context.Context, user User) (User, error)

	// GetByID retrieves a user by ID. Returns ErrNotFound when no such
	// user exists.
	GetByID(ctx context.Context, id uuid.UUID) (User, error)

	// FindByEmail retrieves a user by their login identifier. The lookup
	// is case-insensitive; emails are stored lowercased. Returns
	// ErrNotFound when no such user exists.
	FindByEmail(ctx context.Context, email string) (User, error)

	// GetPasswordHash returns the stored password hash for a user.
	// The hash never crosses any other boundary.
	GetPasswordHash(ctx context.Context, id uuid.UUID) ([]byte, error)

	// UpdateProfile changes mutable profile fields (username).
	UpdateProfile(ctx context.Context, id uuid.UUID, username string) (User, error)

	// SetPasswordHash replaces a user's password hash.
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash []byte) error

	// Disable soft-deletes a user by clearing is_active. The row is kept;
	// physical deletion is out of scope.
	Disable(ctx context.Context, id uuid.UUID) error

	// SetSuperuser grants or revokes superuser access.
	SetSuperuser(ctx context.Context, id uuid.UUID, superuser bool) (User, error)

	// List retrieves a paginated list of users. Superuser-only at the
	// HTTP boundary.
	List(ctx context.Context, limit int, cursor string) ([]User, string, error)
}

// FileRecordRepo persists the audit rows written after successful uploads.
type FileRecordRepo interface {
	// Insert stores a new file record.
	Insert(ctx context.Context, rec FileRecord) (FileRecord, error)

	// List retrieves a paginated list of records matching the query.
	List(ctx context.Context, q ListQuery) (ListResult, error)
}
