package skystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Provider is the uniform capability set implemented once per storage
// backend. Implementations translate their backend's error taxonomy into
// the shared kinds; callers above this interface never see a
// provider-specific error type.
type Provider interface {
	// Name returns the provider selector this adapter registers under.
	Name() string

	// Upload streams content to the backend under the given key. It must
	// not buffer the entire payload in memory when the backend API
	// supports streaming. If the caller's context is cancelled mid-upload
	// the in-flight backend call is aborted, not completed silently.
	//
	// Failure kinds: ErrBackendUnavailable on network/auth failure to the
	// provider, ErrInvalidInput if the key fails backend naming
	// constraints, ErrQuotaExceeded if the backend rejects for
	// capacity/billing reasons.
	Upload(ctx context.Context, key string, content io.Reader, contentType string) (ObjectRef, error)

	// DelegateURL asks the backend to mint a signed, time-boxed URL
	// granting exactly one operation on exactly one key, without issuing
	// standing credentials.
	//
	// Failure kinds: ErrUnsupportedOperation if the backend cannot
	// delegate the operation, ErrInvalidInput if the duration exceeds the
	// backend's maximum, ErrBackendUnavailable on network/auth failure.
	DelegateURL(ctx context.Context, key string, op Operation, expiry time.Duration) (DelegatedURL, error)
}

// GatewayConfig holds configuration options for the storage gateway.
type GatewayConfig struct {
	// MaxDelegationTTL bounds requested delegated-URL lifetimes.
	MaxDelegationTTL time.Duration
	// RequestTimeout bounds every outbound provider call (default: 30s).
	RequestTimeout time.Duration
	// AllowedContentTypes limits uploads; empty permits all types.
	AllowedContentTypes []string
}

// Gateway dispatches storage calls to a named provider adapter. The
// provider map is built once at startup and read-only thereafter; the
// gateway owns no objects and carries no per-request state.
type Gateway struct {
	providers      map[string]Provider
	records        FileRecordRepo
	maxDelegation  time.Duration
	requestTimeout time.Duration
	allowedTypes   []string
	logger         *slog.Logger
}

// NewGateway creates a gateway over the given adapters. records may be nil
// to disable upload audit rows.
func NewGateway(providers []Provider, records FileRecordRepo, cfg GatewayConfig, logger *slog.Logger) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("new gateway: %w: at least one provider is required", ErrInvalidInput)
	}
	if cfg.MaxDelegationTTL <= 0 {
		return nil, fmt.Errorf("new gateway: %w: max delegation ttl must be positive", ErrInvalidInput)
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p.Name() == "" {
			return nil, fmt.Errorf("new gateway: %w: provider name cannot be empty", ErrInvalidInput)
		}
		if _, dup := m[p.Name()]; dup {
			return nil, fmt.Errorf("new gateway: %w: duplicate provider %q", ErrInvalidInput, p.Name())
		}
		m[p.Name()] = p
	}

	return &Gateway{
		providers:      m,
		records:        records,
		maxDelegation:  cfg.MaxDelegationTTL,
		requestTimeout: requestTimeout,
		allowedTypes:   cfg.AllowedContentTypes,
		logger:         logger,
	}, nil
}

// Select returns the adapter registered under the given name.
func (g *Gateway) Select(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("select provider %q: %w", name, ErrUnknownProvider)
	}
	return p, nil
}

// Providers returns the registered provider names.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Upload validates the request, streams content to the selected provider,
// and records an audit row for the uploading user. Uploads are not
// idempotent and are never retried here; retries are the caller's call.
// A record-insert failure after a successful backend write is logged, not
// surfaced, since the object is already stored.
func (g *Gateway) Upload(ctx context.Context, providerName string, req ObjectRequest, content io.Reader, uploadedBy uuid.UUID) (ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return ObjectRef{}, fmt.Errorf("upload: %w", err)
	}

	p, err := g.Select(providerName)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("upload: %w", err)
	}

	if !IsValidKey(req.Key) {
		return ObjectRef{}, fmt.Errorf("upload %q: %w: invalid key", req.Key, ErrInvalidInput)
	}
	if req.ContentType == "" {
		return ObjectRef{}, fmt.Errorf("upload %q: %w: content type cannot be empty", req.Key, ErrInvalidInput)
	}
	if len(g.allowedTypes) > 0 && !slices.Contains(g.allowedTypes, req.ContentType) {
		return ObjectRef{}, fmt.Errorf("upload %q: %w: content type %s not allowed", req.Key, ErrInvalidInput, req.ContentType)
	}

	counted := &countingReader{r: content}

	callCtx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	ref, err := p.Upload(callCtx, req.Key, counted, req.ContentType)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("upload %q: %w", req.Key, ensureKind(err))
	}

	if g.records != nil {
		_, recErr := g.records.Insert(ctx, FileRecord{
			ID:          uuid.New(),
			Provider:    providerName,
			Key:         req.Key,
			ContentType: req.ContentType,
			SizeBytes:   counted.n,
			UploadedBy:  uploadedBy,
			CreatedAt:   time.Now().UTC(),
		})
		if recErr != nil {
			g.logger.Error("file record insert failed",
				"provider", providerName, "key", req.Key, "err", recErr)
		}
	}

	return ref, nil
}

// DelegateURL validates the request locally and asks the selected provider
// for a signed URL. Out-of-range expiry values are rejected before any
// backend round-trip.
func (g *Gateway) DelegateURL(ctx context.Context, providerName string, req ObjectRequest) (DelegatedURL, error) {
	if err := ctx.Err(); err != nil {
		return DelegatedURL{}, fmt.Errorf("delegate url: %w", err)
	}

	p, err := g.Select(providerName)
	if err != nil {
		return DelegatedURL{}, fmt.Errorf("delegate url: %w", err)
	}

	if !IsValidKey(req.Key) {
		return DelegatedURL{}, fmt.Errorf("delegate url %q: %w: invalid key", req.Key, ErrInvalidInput)
	}
	if !req.Operation.IsValid() {
		return DelegatedURL{}, fmt.Errorf("delegate url %q: %w: invalid operation", req.Key, ErrInvalidInput)
	}
	if req.Expiry <= 0 || req.Expiry > g.maxDelegation {
		return DelegatedURL{}, fmt.Errorf("delegate url %q: %w: expiry must be in (0, %s]", req.Key, ErrInvalidInput, g.maxDelegation)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	u, err := p.DelegateURL(callCtx, req.Key, req.Operation, req.Expiry)
	if err != nil {
		return DelegatedURL{}, fmt.Errorf("delegate url %q: %w", req.Key, ensureKind(err))
	}

	return u, nil
}

// ListFiles returns a page of upload audit rows.
func (g *Gateway) ListFiles(ctx context.Context, q ListQuery) (ListResult, error) {
	if g.records == nil {
		return ListResult{}, nil
	}

	result, err := g.records.List(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list files: %w", err)
	}
	return result, nil
}

// taxonomy lists every error kind an adapter may surface.
var taxonomy = []error{
	ErrInvalidInput,
	ErrUnknownProvider,
	ErrBackendUnavailable,
	ErrQuotaExceeded,
	ErrUnsupportedOperation,
	ErrNotFound,
	ErrUnauthorized,
}

// ensureKind guarantees nothing below the gateway is surfaced raw: errors
// outside the shared taxonomy are wrapped as internal.
func ensureKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// countingReader counts bytes as they stream through to the backend so the
// audit row can record the size without buffering.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
