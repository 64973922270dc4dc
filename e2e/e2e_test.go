package e2e_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/client"
)

func TestE2E_AuthLifecycle(t *testing.T) {
	stack := startStack(t)
	ctx := context.Background()

	c := stack.newClient(t)
	suffix := getRandomString(t)
	email := fmt.Sprintf("%s@example.com", suffix)

	t.Run("register", func(t *testing.T) {
		user, err := c.Register(ctx, email, suffix, "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, email, user.Email)
		assert.True(t, user.IsActive)
		assert.False(t, user.IsSuperuser)
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		_, err := c.Register(ctx, email, getRandomString(t), "s3cretpass")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "already_exists", apiErr.Code)
	})

	t.Run("login with wrong password rejected", func(t *testing.T) {
		_, err := c.Login(ctx, email, "wrongpass99")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_credentials", apiErr.Code)
	})

	t.Run("login and whoami", func(t *testing.T) {
		result, err := c.Login(ctx, email, "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, "bearer", result.TokenType)
		assert.True(t, result.ExpiresAt.After(time.Now()))

		user, err := c.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, email, user.Email)
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		fresh := stack.newClient(t)
		_, err := fresh.Login(ctx, strings.ToUpper(email), "s3cretpass")
		assert.NoError(t, err)
	})

	t.Run("password change invalidates old password", func(t *testing.T) {
		require.NoError(t, c.ChangePassword(ctx, "s3cretpass", "newsecret99"))

		fresh := stack.newClient(t)
		_, err := fresh.Login(ctx, email, "s3cretpass")
		require.Error(t, err)

		_, err = fresh.Login(ctx, email, "newsecret99")
		assert.NoError(t, err)
	})
}

func TestE2E_UnauthorizedAccess(t *testing.T) {
	stack := startStack(t)
	ctx := context.Background()

	t.Run("protected routes require a token", func(t *testing.T) {
		c := stack.newClient(t)

		_, err := c.Me(ctx)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.StatusCode)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		c, err := client.New(&client.Profile{
			Endpoint: stack.server.URL,
			Token:    "not-a-real-token",
		})
		require.NoError(t, err)

		_, err = c.Me(ctx)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.StatusCode)
		assert.Equal(t, "unauthorized", apiErr.Code)
	})
}

func TestE2E_UploadAndList(t *testing.T) {
	stack := startStack(t)
	ctx := context.Background()

	c, user := stack.registerAndLogin(t)

	t.Run("providers", func(t *testing.T) {
		providers, err := c.Providers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"aws"}, providers)
	})

	t.Run("upload reaches the backend", func(t *testing.T) {
		ref, err := c.UploadReader(ctx, "docs/report.txt", strings.NewReader("report body"), "text/plain")
		require.NoError(t, err)

		assert.Equal(t, "aws", ref.Provider)
		assert.Equal(t, "e2e-bucket", ref.Bucket)
		assert.Equal(t, "docs/report.txt", ref.Key)
		assert.Equal(t, []byte("report body"), stack.backend.object("docs/report.txt"))
	})

	t.Run("upload records are listed", func(t *testing.T) {
		_, err := c.UploadReader(ctx, "docs/second.txt", strings.NewReader("more"), "text/plain")
		require.NoError(t, err)
		_, err = c.UploadReader(ctx, "images/photo.png", strings.NewReader("png"), "image/png")
		require.NoError(t, err)

		result, err := c.ListFiles(ctx, client.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, result.Items, 3)
		for _, item := range result.Items {
			assert.Equal(t, user.ID, item.UploadedBy)
		}

		filtered, err := c.ListFiles(ctx, client.ListOptions{Prefix: "docs/"})
		require.NoError(t, err)
		assert.Len(t, filtered.Items, 2)
	})

	t.Run("listing is scoped per user", func(t *testing.T) {
		other, _ := stack.registerAndLogin(t)

		result, err := other.ListFiles(ctx, client.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.Items)
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := c.ListFiles(ctx, client.ListOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, first.Items, 2)
		require.NotEmpty(t, first.NextCursor)

		second, err := c.ListFiles(ctx, client.ListOptions{Limit: 2, Cursor: first.NextCursor})
		require.NoError(t, err)
		assert.Len(t, second.Items, 1)
		assert.Empty(t, second.NextCursor)
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		_, err := c.UploadReader(ctx, "../escape", strings.NewReader("x"), "text/plain")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.StatusCode)
	})

	t.Run("upload over the size limit rejected", func(t *testing.T) {
		oversized := strings.NewReader(strings.Repeat("x", (1<<20)+1))
		_, err := c.UploadReader(ctx, "docs/huge.bin", oversized, "application/octet-stream")

		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 413, apiErr.StatusCode)
		assert.Equal(t, "payload_too_large", apiErr.Code)
		assert.Nil(t, stack.backend.object("docs/huge.bin"))
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		other, err := client.New(&client.Profile{
			Endpoint: stack.server.URL,
			Token:    c.Token(),
			Provider: "azure",
		})
		require.NoError(t, err)

		_, err = other.UploadReader(ctx, "k", strings.NewReader("x"), "text/plain")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "unknown_provider", apiErr.Code)
	})
}

func TestE2E_DelegatedURLs(t *testing.T) {
	stack := startStack(t)
	ctx := context.Background()

	c, _ := stack.registerAndLogin(t)

	t.Run("download url", func(t *testing.T) {
		du, err := c.DelegateURL(ctx, client.DelegateOptions{
			Key:           "docs/report.txt",
			Operation:     skystore.OpDownloadRead,
			ExpirySeconds: 600,
		})
		require.NoError(t, err)

		assert.Equal(t, "https://signed.example/get/docs/report.txt", du.URL)
		assert.Equal(t, skystore.OpDownloadRead, du.Operation)
		assert.WithinDuration(t, time.Now().Add(600*time.Second), du.ExpiresAt, 10*time.Second)
	})

	t.Run("upload url", func(t *testing.T) {
		du, err := c.DelegateURL(ctx, client.DelegateOptions{
			Key:       "incoming/new.bin",
			Operation: skystore.OpUploadWrite,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://signed.example/put/incoming/new.bin", du.URL)
	})

	t.Run("expiry above gateway cap rejected", func(t *testing.T) {
		_, err := c.DelegateURL(ctx, client.DelegateOptions{
			Key:           "k",
			Operation:     skystore.OpDownloadRead,
			ExpirySeconds: 2 * 60 * 60,
		})
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.StatusCode)
	})
}

func TestE2E_DisabledAccount(t *testing.T) {
	stack := startStack(t)
	ctx := context.Background()

	c := stack.newClient(t)
	suffix := getRandomString(t)
	email := fmt.Sprintf("%s@example.com", suffix)

	user, err := c.Register(ctx, email, suffix, "s3cretpass")
	require.NoError(t, err)

	_, err = c.Login(ctx, email, "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, stack.db.Users().Disable(ctx, user.ID))

	_, err = c.Login(ctx, email, "s3cretpass")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_credentials", apiErr.Code, "disabled accounts fail like bad credentials")
}
