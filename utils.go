package skystore

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxKeyLength is the longest object key accepted by the gateway. Both
// backends allow 1024-byte keys; the shared limit keys stay portable.
const MaxKeyLength = 1024

// IsValidKey validates that a string is acceptable as an object key on
// every configured backend. It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/") and does not end with "/"
//   - does not exceed MaxKeyLength bytes
//   - does not contain ".." (path traversal) or "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments
//   - does not contain null bytes, control characters, DEL, or whitespace
//
// Returns true if the key is valid, false otherwise.
func IsValidKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if len(k) > MaxKeyLength {
		return false
	}

	if k[0] == '/' {
		return false
	}

	if strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "..") {
		return false
	}

	if strings.Contains(k, "//") {
		return false
	}

	if strings.ContainsAny(k, `\?#~`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}

	for _, r := range k {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Cursor represents pagination cursor data for file record listings.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// EncodeCursor encodes cursor data to a base64 string for pagination.
func EncodeCursor(createdAt time.Time, id uuid.UUID) string {
	data := createdAt.Format(time.RFC3339Nano) + "|" + id.String()
	return base64.URLEncoding.EncodeToString([]byte(data))
}

// DecodeCursor decodes a pagination cursor string back to cursor data.
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("decode cursor: invalid format")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid timestamp: %w", err)
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid id: %w", err)
	}

	return Cursor{CreatedAt: createdAt, ID: id}, nil
}

// EscapeLikePattern escapes LIKE wildcards (%, _, \) so prefixes match literally.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}
