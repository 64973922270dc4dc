package skystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength is the longest accepted password; bcrypt ignores
	// bytes past 72, so longer inputs are rejected rather than silently
	// truncated.
	MaxPasswordLength = 72
)

// dummyHash is compared against when the identifier is unknown so that the
// unknown-identifier and wrong-password paths do the same amount of work.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("skystore-dummy-password"), bcrypt.DefaultCost)

// Authenticator verifies credentials against the user repo and manages the
// password lifecycle. It is stateless apart from its collaborators and safe
// for concurrent use.
type Authenticator struct {
	users      UserRepo
	bcryptCost int
}

// NewAuthenticator creates an authenticator. A cost of 0 selects
// bcrypt.DefaultCost.
func NewAuthenticator(users UserRepo, bcryptCost int) (*Authenticator, error) {
	if users == nil {
		return nil, fmt.Errorf("new authenticator: %w: user repo cannot be nil", ErrInvalidInput)
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("new authenticator: %w: bcrypt cost out of range", ErrInvalidInput)
	}
	return &Authenticator{users: users, bcryptCost: bcryptCost}, nil
}

// NormalizeEmail lowercases and trims a login identifier. Email uniqueness
// is case-insensitive; everything stores and looks up the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new active user with a bcrypt password hash.
func (a *Authenticator) Register(ctx context.Context, email, username, password string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}

	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)

	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("register: %w: invalid email", ErrInvalidInput)
	}
	if username == "" {
		return User{}, fmt.Errorf("register: %w: username cannot be empty", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("register: hash password: %w", err)
	}

	user, err := a.users.Create(ctx, User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}

	user.PasswordHash = nil
	return user, nil
}

// Authenticate verifies an identifier and password, returning the user on
// success. Unknown identifier, wrong password, and disabled account all
// fail with ErrInvalidCredentials; a dummy bcrypt comparison runs on the
// unknown-identifier path so the failures are indistinguishable by timing.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}

	email = NormalizeEmail(email)

	user, lookupErr := a.users.FindByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return User{}, fmt.Errorf("authenticate: %w", lookupErr)
	}

	hash := dummyHash
	if lookupErr == nil {
		stored, err := a.users.GetPasswordHash(ctx, user.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("authenticate: %w", err)
		}
		if err == nil {
			hash = stored
		}
	}

	compareErr := bcrypt.CompareHashAndPassword(hash, []byte(password))

	if lookupErr != nil || compareErr != nil || !user.IsActive {
		return User{}, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}

	user.PasswordHash = nil
	return user, nil
}

// ChangePassword replaces a user's password after verifying the current one.
func (a *Authenticator) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := validatePassword(next); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	stored, err := a.users.GetPasswordHash(ctx, id)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(stored, []byte(current)); err != nil {
		return fmt.Errorf("change password: %w", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.bcryptCost)
	if err != nil {
		return fmt.Errorf("change password: hash password: %w", err)
	}

	if err := a.users.SetPasswordHash(ctx, id, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidInput, MaxPasswordLength)
	}
	return nil
}
