package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ameyrk/skystore"
)

const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultProvider is used when a profile names no provider.
	DefaultProvider = "aws"
)

// Client performs operations against a skystore server.
type Client struct {
	endpoint   string
	token      string
	provider   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a new Client from a profile.
func New(profile *Profile, opts ...Option) (*Client, error) {
	if profile == nil {
		return nil, ErrConfigRequired
	}
	if profile.Endpoint == "" {
		return nil, ErrEndpointRequired
	}

	provider := profile.Provider
	if provider == "" {
		provider = DefaultProvider
	}

	c := &Client{
		endpoint:   strings.TrimSuffix(profile.Endpoint, "/"),
		token:      profile.Token,
		provider:   provider,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Token returns the bearer token currently in use. Empty before login.
func (c *Client) Token() string { return c.token }

// Register creates an account on the server.
func (c *Client) Register(ctx context.Context, email, username, password string) (skystore.User, error) {
	var user skystore.User
	err := c.postJSON(ctx, "/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, &user)
	if err != nil {
		return skystore.User{}, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Login exchanges credentials for a bearer token. The token is retained
// for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	err := c.postJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}

	c.token = result.AccessToken
	return result, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (skystore.User, error) {
	var user skystore.User
	if err := c.getJSON(ctx, "/users/me", nil, &user); err != nil {
		return skystore.User{}, fmt.Errorf("me: %w", err)
	}
	return user, nil
}

// ChangePassword rotates the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	err := c.postJSON(ctx, "/users/me/password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// Providers returns the provider selectors the server has configured.
func (c *Client) Providers(ctx context.Context) ([]string, error) {
	var resp struct {
		Providers []string `json:"providers"`
	}
	if err := c.getJSON(ctx, "/storage/providers", nil, &resp); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	return resp.Providers, nil
}

// Upload streams a local file to the server under the given key.
func (c *Client) Upload(ctx context.Context, opts UploadOptions) (skystore.ObjectRef, error) {
	if opts.LocalPath == "" {
		return skystore.ObjectRef{}, fmt.Errorf("upload: %w", ErrEmptyPath)
	}

	file, err := os.Open(opts.LocalPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	key := opts.Key
	if key == "" {
		key = filepath.Base(opts.LocalPath)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(opts.LocalPath)
	}

	return c.UploadReader(ctx, key, file, contentType)
}

// UploadReader streams content to the server under the given key.
func (c *Client) UploadReader(ctx context.Context, key string, content io.Reader, contentType string) (skystore.ObjectRef, error) {
	if c.token == "" {
		return skystore.ObjectRef{}, fmt.Errorf("upload %q: %w", key, ErrNotLoggedIn)
	}

	target := fmt.Sprintf("%s/storage/%s/objects/%s", c.endpoint, c.provider, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, content)
	if err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return skystore.ObjectRef{}, parseServerError(resp.StatusCode, body)
	}

	var ref skystore.ObjectRef
	if err := json.Unmarshal(body, &ref); err != nil {
		return skystore.ObjectRef{}, fmt.Errorf("parse response: %w", err)
	}

	return ref, nil
}

// DelegateURL asks the server for a provider-signed URL granting one
// operation on one key.
func (c *Client) DelegateURL(ctx context.Context, opts DelegateOptions) (skystore.DelegatedURL, error) {
	if opts.Key == "" {
		return skystore.DelegatedURL{}, fmt.Errorf("delegate: %w", ErrEmptyPath)
	}

	query := url.Values{}
	query.Set("op", string(opts.Operation))
	if opts.ExpirySeconds > 0 {
		query.Set("expiry", strconv.Itoa(opts.ExpirySeconds))
	}

	var du skystore.DelegatedURL
	path := fmt.Sprintf("/storage/%s/objects/%s", c.provider, opts.Key)
	if err := c.getJSON(ctx, path, query, &du); err != nil {
		return skystore.DelegatedURL{}, fmt.Errorf("delegate %q: %w", opts.Key, err)
	}

	return du, nil
}

// ListFiles returns one page of the caller's upload records.
func (c *Client) ListFiles(ctx context.Context, opts ListOptions) (skystore.ListResult, error) {
	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var result skystore.ListResult
	if err := c.getJSON(ctx, "/storage/files", query, &result); err != nil {
		return skystore.ListResult{}, fmt.Errorf("list files: %w", err)
	}

	return result, nil
}

// postJSON sends a JSON body and decodes a JSON response into out. A nil
// out discards the response body.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseServerError(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

// detectContentType guesses content type from the file extension.
func detectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
