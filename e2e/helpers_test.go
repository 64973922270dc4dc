package e2e_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/client"
	"github.com/ameyrk/skystore/database"
	skystorehttp "github.com/ameyrk/skystore/http"
	"github.com/ameyrk/skystore/s3store"
)

const testTokenSecret = "e2e-secret-0123456789abcdef01234567"

// memoryBackend is an in-memory stand-in for the S3 API. It satisfies
// both the client and presigner seams of the S3 adapter.
type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: make(map[string][]byte)}
}

func (b *memoryBackend) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *memoryBackend) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://signed.example/get/%s", *params.Key),
		Method: "GET",
	}, nil
}

func (b *memoryBackend) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://signed.example/put/%s", *params.Key),
		Method: "PUT",
	}, nil
}

// object returns a stored object's content, or nil.
func (b *memoryBackend) object(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[key]
}

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

// testStack is a full in-process deployment: sqlite database, token
// service, gateway over an in-memory backend, and the HTTP router.
type testStack struct {
	server  *httptest.Server
	backend *memoryBackend
	db      database.Database
}

func startStack(t *testing.T) *testStack {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	suffix := getRandomString(t)

	db, err := database.Connect(ctx, database.Config{
		Type:        "sqlite",
		DSN:         fmt.Sprintf("file:%s?mode=memory&cache=shared", suffix),
		AutoMigrate: true,
		Tables: skystore.Tables{
			Users:       fmt.Sprintf("users_%s", suffix),
			FileRecords: fmt.Sprintf("file_records_%s", suffix),
		},
	})
	require.NoError(t, err, "connect database")
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := skystore.NewTokenService(skystore.TokenConfig{
		Secret:    testTokenSecret,
		TTL:       30 * time.Minute,
		Algorithm: "HS256",
	})
	require.NoError(t, err, "token service")

	auth, err := skystore.NewAuthenticator(db.Users(), bcrypt.MinCost)
	require.NoError(t, err, "authenticator")

	backend := newMemoryBackend()
	store, err := s3store.New(ctx, s3store.Config{
		Bucket: "e2e-bucket",
		Region: "us-east-1",
	}, s3store.WithClient(backend), s3store.WithPresigner(backend))
	require.NoError(t, err, "s3 store")

	gateway, err := skystore.NewGateway([]skystore.Provider{store}, db.FileRecords(), skystore.GatewayConfig{
		MaxDelegationTTL: time.Hour,
	}, logger)
	require.NoError(t, err, "gateway")

	handler := skystorehttp.NewHandler(&skystorehttp.HandlerConfig{
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
	}, gateway, auth, tokens, db.Users())

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &testStack{server: server, backend: backend, db: db}
}

// newClient returns an API client pointed at the stack.
func (s *testStack) newClient(t *testing.T) *client.Client {
	t.Helper()

	c, err := client.New(&client.Profile{Endpoint: s.server.URL})
	require.NoError(t, err, "client")
	return c
}

// registerAndLogin provisions an account and returns a logged-in client.
func (s *testStack) registerAndLogin(t *testing.T) (*client.Client, skystore.User) {
	t.Helper()

	ctx := context.Background()
	c := s.newClient(t)

	suffix := getRandomString(t)
	email := fmt.Sprintf("%s@example.com", suffix)

	user, err := c.Register(ctx, email, suffix, "s3cretpass")
	require.NoError(t, err, "register")

	_, err = c.Login(ctx, email, "s3cretpass")
	require.NoError(t, err, "login")

	return c, user
}
