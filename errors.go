package skystore

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for both unknown identifiers and
	// wrong passwords so callers cannot tell the two apart
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists is returned when a unique constraint would be violated
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnknownProvider is returned when no adapter is registered under the requested name
	ErrUnknownProvider = errors.New("unknown storage provider")
	// ErrBackendUnavailable is returned when a storage backend cannot be
	// reached or refuses our credentials; callers may retry
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	// ErrQuotaExceeded is returned when a backend rejects a write for
	// capacity or billing reasons; not retryable without intervention
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrUnsupportedOperation is returned when a backend cannot delegate the requested operation
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
)

// Token verification failure kinds. The HTTP layer collapses all of them into
// a generic unauthorized response; the distinct kinds exist for server-side logging.
var (
	// ErrTokenMalformed is returned when a token cannot be parsed into its fields
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when a token's expiry is in the past
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature is returned when a token's signature does not verify
	ErrTokenSignature = errors.New("token signature invalid")
)
