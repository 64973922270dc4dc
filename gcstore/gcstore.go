// Package gcstore implements the skystore.Provider interface for Google
// Cloud Storage.
package gcstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ameyrk/skystore"
)

// maxSignedURLExpiry is the longest validity V4 signed URLs support.
const maxSignedURLExpiry = 7 * 24 * time.Hour

// Config contains configuration for the GCS adapter.
type Config struct {
	Bucket          string
	CredentialsFile string // Optional: service account JSON key path
	// GoogleAccessID and PrivateKeyFile override signing identity when the
	// ambient credentials cannot sign (e.g. workload identity without the
	// iam.serviceAccounts.signBlob permission).
	GoogleAccessID string
	PrivateKeyFile string
}

// Store adapts Google Cloud Storage to the skystore.Provider interface.
// It is safe for concurrent use.
type Store struct {
	bucket     string
	accessID   string
	privateKey []byte
	now        func() time.Time

	// seams for tests; default to the real client
	newWriter func(ctx context.Context, key, contentType string) io.WriteCloser
	signURL   func(key string, opts *storage.SignedURLOptions) (string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used to compute delegated-URL expiries.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWriterFunc overrides object writer creation. Useful for testing.
func WithWriterFunc(fn func(ctx context.Context, key, contentType string) io.WriteCloser) Option {
	return func(s *Store) { s.newWriter = fn }
}

// WithSignFunc overrides URL signing. Useful for testing.
func WithSignFunc(fn func(key string, opts *storage.SignedURLOptions) (string, error)) Option {
	return func(s *Store) { s.signURL = fn }
}

// New creates a GCS adapter from the given configuration.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("new gcs store: %w: bucket is required", skystore.ErrInvalidInput)
	}

	s := &Store{
		bucket:   cfg.Bucket,
		accessID: cfg.GoogleAccessID,
		now:      time.Now,
	}

	if cfg.PrivateKeyFile != "" {
		key, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("new gcs store: read private key: %w", err)
		}
		s.privateKey = key
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.newWriter == nil || s.signURL == nil {
		var clientOpts []option.ClientOption
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}

		client, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("new gcs store: %w", err)
		}

		bucket := client.Bucket(cfg.Bucket)
		if s.newWriter == nil {
			s.newWriter = func(ctx context.Context, key, contentType string) io.WriteCloser {
				w := bucket.Object(key).NewWriter(ctx)
				w.ContentType = contentType
				return w
			}
		}
		if s.signURL == nil {
			s.signURL = bucket.SignedURL
		}
	}

	return s, nil
}

// Name returns the provider selector for this adapter.
func (s *Store) Name() string { return "gcp" }

// Upload streams content to the bucket under the given key through a
// chunked object writer; the payload is never buffered whole. Cancelling
// ctx aborts the in-flight backend write and discards the partial object.
func (s *Store) Upload(ctx context.Context, key string, content io.Reader, contentType string) (skystore.ObjectRef, error) {
	w := s.newWriter(ctx, key, contentType)

	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return skystore.ObjectRef{}, fmt.Errorf("gcs upload %q: %w", key, translateError(err))
	}

	// The final chunk is flushed on Close; upload errors surface here.
	if err := w.Close(); err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("gcs upload %q: %w", key, translateError(err))
	}

	return skystore.ObjectRef{
		Provider: s.Name(),
		Bucket:   s.bucket,
		Key:      key,
		URL:      fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key),
	}, nil
}

// DelegateURL mints a V4 signed URL granting one operation on one key.
// The returned ExpiresAt matches the Expires timestamp the signature
// embeds.
func (s *Store) DelegateURL(_ context.Context, key string, op skystore.Operation, expiry time.Duration) (skystore.DelegatedURL, error) {
	if expiry <= 0 || expiry > maxSignedURLExpiry {
		return skystore.DelegatedURL{}, fmt.Errorf("gcs delegate %q: %w: expiry must be in (0, %s]", key, skystore.ErrInvalidInput, maxSignedURLExpiry)
	}

	var method string
	switch op {
	case skystore.OpDownloadRead:
		method = http.MethodGet
	case skystore.OpUploadWrite:
		method = http.MethodPut
	default:
		return skystore.DelegatedURL{}, fmt.Errorf("gcs delegate %q: %w: %s", key, skystore.ErrUnsupportedOperation, op)
	}

	expiresAt := s.now().UTC().Add(expiry)

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  method,
		Expires: expiresAt,
	}
	if s.accessID != "" {
		opts.GoogleAccessID = s.accessID
	}
	if len(s.privateKey) > 0 {
		opts.PrivateKey = s.privateKey
	}

	u, err := s.signURL(key, opts)
	if err != nil {
		return skystore.DelegatedURL{}, fmt.Errorf("gcs delegate %q: %w", key, translateError(err))
	}

	return skystore.DelegatedURL{
		URL:       u,
		Operation: op,
		ExpiresAt: expiresAt,
	}, nil
}

// translateError maps client and transport failures into the shared
// taxonomy so no provider-specific error type crosses the adapter boundary.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", skystore.ErrBackendUnavailable)
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: object does not exist", skystore.ErrNotFound)
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: bucket does not exist", skystore.ErrBackendUnavailable)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %s", skystore.ErrNotFound, apiErr.Message)
		case apiErr.Code == http.StatusBadRequest:
			return fmt.Errorf("%w: %s", skystore.ErrInvalidInput, apiErr.Message)
		case apiErr.Code == http.StatusForbidden && hasReason(apiErr, "quotaExceeded", "accountDisabled", "billingNotEnabled"):
			return fmt.Errorf("%w: %s", skystore.ErrQuotaExceeded, apiErr.Message)
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", skystore.ErrQuotaExceeded, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s", skystore.ErrBackendUnavailable, apiErr.Message)
		}
	}

	// Anything else is a transport-level failure. Wrap with %w so causes
	// like http.MaxBytesError from a capped request body stay matchable.
	return fmt.Errorf("%w: %w", skystore.ErrBackendUnavailable, err)
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, e := range apiErr.Errors {
		for _, r := range reasons {
			if strings.EqualFold(e.Reason, r) {
				return true
			}
		}
	}
	return false
}
