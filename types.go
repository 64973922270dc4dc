package skystore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an account identity. PasswordHash never leaves the database
// layer; User values returned to callers have it zeroed.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsSuperuser  bool      `json:"is_superuser"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Operation is the single scoped action a delegated URL grants.
type Operation string

const (
	OpDownloadRead Operation = "download-read"
	OpUploadWrite  Operation = "upload-write"
)

func (o Operation) IsValid() bool {
	switch o {
	case OpDownloadRead, OpUploadWrite:
		return true
	default:
		return false
	}
}

func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.IsValid() {
		return "", fmt.Errorf("invalid operation: %s (valid operations: download-read, upload-write): %w", s, ErrInvalidInput)
	}
	return op, nil
}

// ObjectRequest describes one storage call. It is built per request and
// never persisted.
type ObjectRequest struct {
	Key         string
	ContentType string
	Operation   Operation
	Expiry      time.Duration
}

// ObjectRef identifies an object stored on a backend.
type ObjectRef struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	URL      string `json:"url,omitempty"`
}

// DelegatedURL is a provider-signed URL granting one operation on one key
// for a bounded time. ExpiresAt matches the expiry the backend embedded in
// its own signature.
type DelegatedURL struct {
	URL       string    `json:"url"`
	Operation Operation `json:"operation"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileRecord is the audit row written after a successful upload.
type FileRecord struct {
	ID          uuid.UUID `json:"id"`
	Provider    string    `json:"provider"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListQuery selects a page of file records.
type ListQuery struct {
	UploadedBy uuid.UUID
	KeyPrefix  string
	Limit      int
	Cursor     string
}

// ListResult is one page of file records.
type ListResult struct {
	Items      []FileRecord `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Tables holds configurable table names so multiple deployments can share
// one database.
type Tables struct {
	Users       string `mapstructure:"users"`
	FileRecords string `mapstructure:"file_records"`
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	for _, name := range []string{t.Users, t.FileRecords} {
		if name == "" {
			return fmt.Errorf("validate tables: table name cannot be empty")
		}
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
		}
	}
	return nil
}
