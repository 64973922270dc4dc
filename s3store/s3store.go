// Package s3store implements the skystore.Provider interface for Amazon S3
// and S3-compatible backends.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/ameyrk/skystore"
)

// maxPresignExpiry is the longest validity SigV4 presigned URLs support.
const maxPresignExpiry = 7 * 24 * time.Hour

// Client is the subset of the S3 API the adapter uses. Satisfied by
// *s3.Client; mock implementations are used in tests.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner mints presigned requests. Satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config contains configuration for the S3 adapter.
type Config struct {
	Bucket         string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string // Optional: for S3-compatible services
	ForcePathStyle bool   // For S3-compatible services like MinIO
}

// Store adapts Amazon S3 to the skystore.Provider interface.
// It is safe for concurrent use.
type Store struct {
	client    Client
	presigner Presigner
	bucket    string
	region    string
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClient sets a pre-configured S3 client. Useful for testing with mocks.
func WithClient(c Client) Option {
	return func(s *Store) { s.client = c }
}

// WithPresigner sets a pre-configured presign client.
func WithPresigner(p Presigner) Option {
	return func(s *Store) { s.presigner = p }
}

// WithNow overrides the clock used to compute delegated-URL expiries.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an S3 adapter from the given configuration.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("new s3 store: %w: bucket and region are required", skystore.ErrInvalidInput)
	}

	s := &Store{
		bucket: cfg.Bucket,
		region: cfg.Region,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		awsOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, fmt.Errorf("new s3 store: load aws config: %w", err)
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
		s.client = client
		if s.presigner == nil {
			s.presigner = s3.NewPresignClient(client)
		}
	}

	if s.presigner == nil {
		return nil, fmt.Errorf("new s3 store: %w: presigner is required with a custom client", skystore.ErrInvalidInput)
	}

	return s, nil
}

// Name returns the provider selector for this adapter.
func (s *Store) Name() string { return "aws" }

// Upload streams content to the bucket under the given key. The reader is
// handed to the SDK as-is so the payload is never buffered whole; if ctx
// is cancelled the SDK aborts the in-flight request.
func (s *Store) Upload(ctx context.Context, key string, content io.Reader, contentType string) (skystore.ObjectRef, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("s3 upload %q: %w", key, translateError(err))
	}

	return skystore.ObjectRef{
		Provider: s.Name(),
		Bucket:   s.bucket,
		Key:      key,
		URL:      fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
	}, nil
}

// DelegateURL mints a SigV4 presigned URL granting one operation on one
// key. The returned ExpiresAt matches the expiry embedded in the URL's
// X-Amz-Expires parameter.
func (s *Store) DelegateURL(ctx context.Context, key string, op skystore.Operation, expiry time.Duration) (skystore.DelegatedURL, error) {
	if expiry <= 0 || expiry > maxPresignExpiry {
		return skystore.DelegatedURL{}, fmt.Errorf("s3 delegate %q: %w: expiry must be in (0, %s]", key, skystore.ErrInvalidInput, maxPresignExpiry)
	}

	issuedAt := s.now().UTC()

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch op {
	case skystore.OpDownloadRead:
		req, err = s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expiry))
	case skystore.OpUploadWrite:
		req, err = s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(expiry))
	default:
		return skystore.DelegatedURL{}, fmt.Errorf("s3 delegate %q: %w: %s", key, skystore.ErrUnsupportedOperation, op)
	}
	if err != nil {
		return skystore.DelegatedURL{}, fmt.Errorf("s3 delegate %q: %w", key, translateError(err))
	}

	return skystore.DelegatedURL{
		URL:       req.URL,
		Operation: op,
		ExpiresAt: issuedAt.Add(expiry),
	}, nil
}

// translateError maps SDK and transport failures into the shared taxonomy
// so no provider-specific error type crosses the adapter boundary.
func translateError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: request timed out", skystore.ErrBackendUnavailable)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey":
			return fmt.Errorf("%w: %s", skystore.ErrNotFound, apiErr.ErrorMessage())
		case "KeyTooLongError", "InvalidObjectName", "InvalidArgument":
			return fmt.Errorf("%w: %s", skystore.ErrInvalidInput, apiErr.ErrorMessage())
		case "QuotaExceeded", "EntityTooLarge", "AccountProblem", "InvalidPayer":
			return fmt.Errorf("%w: %s", skystore.ErrQuotaExceeded, apiErr.ErrorMessage())
		case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "SlowDown", "ServiceUnavailable", "InternalError":
			return fmt.Errorf("%w: %s", skystore.ErrBackendUnavailable, apiErr.ErrorMessage())
		default:
			return fmt.Errorf("%w: %s: %s", skystore.ErrBackendUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
	}

	// Anything else is a transport-level failure. Wrap with %w so causes
	// like http.MaxBytesError from a capped request body stay matchable.
	return fmt.Errorf("%w: %w", skystore.ErrBackendUnavailable, err)
}
