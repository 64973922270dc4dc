package gcstore_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/gcstore"
)

// fakeWriter captures writes and fails on demand.
type fakeWriter struct {
	buf      bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func newStore(t *testing.T, w io.WriteCloser, sign func(key string, opts *storage.SignedURLOptions) (string, error), now func() time.Time) *gcstore.Store {
	t.Helper()

	if sign == nil {
		sign = func(string, *storage.SignedURLOptions) (string, error) {
			return "https://signed.example/", nil
		}
	}
	opts := []gcstore.Option{
		gcstore.WithWriterFunc(func(ctx context.Context, key, contentType string) io.WriteCloser {
			return w
		}),
		gcstore.WithSignFunc(sign),
	}
	if now != nil {
		opts = append(opts, gcstore.WithNow(now))
	}

	store, err := gcstore.New(context.Background(), gcstore.Config{Bucket: "test-bucket"}, opts...)
	require.NoError(t, err)
	return store
}

func TestNew(t *testing.T) {
	t.Run("missing bucket", func(t *testing.T) {
		_, err := gcstore.New(context.Background(), gcstore.Config{})
		assert.ErrorIs(t, err, skystore.ErrInvalidInput)
	})

	t.Run("missing private key file", func(t *testing.T) {
		_, err := gcstore.New(context.Background(), gcstore.Config{
			Bucket:         "test-bucket",
			PrivateKeyFile: "/does/not/exist.pem",
		})
		assert.Error(t, err)
	})
}

func TestStore_Name(t *testing.T) {
	store := newStore(t, &fakeWriter{}, nil, nil)
	assert.Equal(t, "gcp", store.Name())
}

func TestStore_Upload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		w := &fakeWriter{}
		store := newStore(t, w, nil, nil)

		ref, err := store.Upload(context.Background(), "docs/report.pdf", strings.NewReader("content"), "application/pdf")
		require.NoError(t, err)

		assert.Equal(t, "gcp", ref.Provider)
		assert.Equal(t, "test-bucket", ref.Bucket)
		assert.Equal(t, "docs/report.pdf", ref.Key)
		assert.Equal(t, "https://storage.googleapis.com/test-bucket/docs/report.pdf", ref.URL)
		assert.Equal(t, "content", w.buf.String())
		assert.True(t, w.closed)
	})

	t.Run("write failure translated", func(t *testing.T) {
		w := &fakeWriter{writeErr: &googleapi.Error{Code: http.StatusForbidden, Message: "forbidden"}}
		store := newStore(t, w, nil, nil)

		_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
		assert.ErrorIs(t, err, skystore.ErrBackendUnavailable)
		assert.True(t, w.closed, "writer is closed even when a write fails")
	})

	t.Run("read failure keeps its cause", func(t *testing.T) {
		w := &fakeWriter{}
		store := newStore(t, w, nil, nil)

		content := iotest.ErrReader(&http.MaxBytesError{Limit: 8})
		_, err := store.Upload(context.Background(), "k", content, "text/plain")
		assert.ErrorIs(t, err, skystore.ErrBackendUnavailable)

		var maxBytesErr *http.MaxBytesError
		assert.ErrorAs(t, err, &maxBytesErr)
	})

	t.Run("close failure translated", func(t *testing.T) {
		w := &fakeWriter{closeErr: &googleapi.Error{Code: http.StatusNotFound, Message: "no such bucket"}}
		store := newStore(t, w, nil, nil)

		_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
		assert.ErrorIs(t, err, skystore.ErrNotFound)
	})

	t.Run("context cancelled passes through", func(t *testing.T) {
		w := &fakeWriter{writeErr: fmt.Errorf("upload: %w", context.Canceled)}
		store := newStore(t, w, nil, nil)

		_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStore_DelegateURL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedNow := func() time.Time { return now }

	t.Run("download", func(t *testing.T) {
		var gotKey string
		var gotOpts *storage.SignedURLOptions
		sign := func(key string, opts *storage.SignedURLOptions) (string, error) {
			gotKey, gotOpts = key, opts
			return "https://signed.example/get", nil
		}

		store := newStore(t, &fakeWriter{}, sign, fixedNow)
		du, err := store.DelegateURL(context.Background(), "docs/report.pdf", skystore.OpDownloadRead, time.Hour)
		require.NoError(t, err)

		assert.Equal(t, "https://signed.example/get", du.URL)
		assert.Equal(t, skystore.OpDownloadRead, du.Operation)
		assert.Equal(t, now.Add(time.Hour), du.ExpiresAt)
		assert.Equal(t, "docs/report.pdf", gotKey)
		assert.Equal(t, http.MethodGet, gotOpts.Method)
		assert.Equal(t, storage.SigningSchemeV4, gotOpts.Scheme)
		assert.Equal(t, now.Add(time.Hour), gotOpts.Expires)
	})

	t.Run("upload", func(t *testing.T) {
		var gotOpts *storage.SignedURLOptions
		sign := func(key string, opts *storage.SignedURLOptions) (string, error) {
			gotOpts = opts
			return "https://signed.example/put", nil
		}

		store := newStore(t, &fakeWriter{}, sign, fixedNow)
		du, err := store.DelegateURL(context.Background(), "k", skystore.OpUploadWrite, 15*time.Minute)
		require.NoError(t, err)

		assert.Equal(t, skystore.OpUploadWrite, du.Operation)
		assert.Equal(t, http.MethodPut, gotOpts.Method)
		assert.Equal(t, now.Add(15*time.Minute), du.ExpiresAt)
	})

	t.Run("zero expiry", func(t *testing.T) {
		called := false
		sign := func(string, *storage.SignedURLOptions) (string, error) {
			called = true
			return "", nil
		}

		store := newStore(t, &fakeWriter{}, sign, fixedNow)
		_, err := store.DelegateURL(context.Background(), "k", skystore.OpDownloadRead, 0)
		assert.ErrorIs(t, err, skystore.ErrInvalidInput)
		assert.False(t, called)
	})

	t.Run("expiry beyond v4 limit", func(t *testing.T) {
		store := newStore(t, &fakeWriter{}, nil, fixedNow)

		_, err := store.DelegateURL(context.Background(), "k", skystore.OpDownloadRead, 7*24*time.Hour+time.Second)
		assert.ErrorIs(t, err, skystore.ErrInvalidInput)
	})

	t.Run("unsupported operation", func(t *testing.T) {
		store := newStore(t, &fakeWriter{}, nil, fixedNow)

		_, err := store.DelegateURL(context.Background(), "k", skystore.Operation("delete"), time.Hour)
		assert.ErrorIs(t, err, skystore.ErrUnsupportedOperation)
	})

	t.Run("signing failure translated", func(t *testing.T) {
		sign := func(string, *storage.SignedURLOptions) (string, error) {
			return "", errors.New("private key retrieval failed")
		}

		store := newStore(t, &fakeWriter{}, sign, fixedNow)
		_, err := store.DelegateURL(context.Background(), "k", skystore.OpDownloadRead, time.Hour)
		assert.ErrorIs(t, err, skystore.ErrBackendUnavailable)
	})
}

func TestErrorTranslation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"object not exist", storage.ErrObjectNotExist, skystore.ErrNotFound},
		{"bucket not exist", storage.ErrBucketNotExist, skystore.ErrBackendUnavailable},
		{"api not found", &googleapi.Error{Code: http.StatusNotFound, Message: "gone"}, skystore.ErrNotFound},
		{"api bad request", &googleapi.Error{Code: http.StatusBadRequest, Message: "bad"}, skystore.ErrInvalidInput},
		{
			"quota exceeded",
			&googleapi.Error{
				Code:   http.StatusForbidden,
				Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
			},
			skystore.ErrQuotaExceeded,
		},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, skystore.ErrQuotaExceeded},
		{"plain forbidden", &googleapi.Error{Code: http.StatusForbidden, Message: "denied"}, skystore.ErrBackendUnavailable},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable}, skystore.ErrBackendUnavailable},
		{"transport failure", errors.New("dial tcp: connection refused"), skystore.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{writeErr: tt.err}
			store := newStore(t, w, nil, nil)

			_, err := store.Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
