package client

import (
	"time"

	"github.com/ameyrk/skystore"
)

// LoginResult is the token grant returned by a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	Key         string // defaults to the file's base name
	ContentType string // optional, auto-detected if empty
}

// DelegateOptions configures a delegated-URL request.
type DelegateOptions struct {
	Key           string
	Operation     skystore.Operation
	ExpirySeconds int // 0 uses the server default
}

// ListOptions configures a list operation.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}
