package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ameyrk/skystore"
)

// StorageService is the gateway surface the handlers depend on.
type StorageService interface {
	Upload(ctx context.Context, provider string, req skystore.ObjectRequest, content io.Reader, uploadedBy uuid.UUID) (skystore.ObjectRef, error)
	DelegateURL(ctx context.Context, provider string, req skystore.ObjectRequest) (skystore.DelegatedURL, error)
	ListFiles(ctx context.Context, q skystore.ListQuery) (skystore.ListResult, error)
	Providers() []string
}

// AuthService verifies and manages credentials.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (skystore.User, error)
	Authenticate(ctx context.Context, email, password string) (skystore.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
}

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	Issue(subject uuid.UUID, now time.Time) (skystore.Token, error)
	Verify(tokenString string, now time.Time) (uuid.UUID, error)
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	// MaxUploadBytes caps request bodies on the upload route.
	MaxUploadBytes int64
	// DefaultDelegationTTL is used when the expiry query parameter is absent.
	DefaultDelegationTTL time.Duration
	CORS                 CORSConfig
	Logger               *slog.Logger
	// Now is the clock used for token issue/verify; nil means time.Now.
	Now func() time.Time
}

// Handler provides HTTP handlers for authentication, user management, and
// storage operations.
type Handler struct {
	config  HandlerConfig
	storage StorageService
	auth    AuthService
	tokens  TokenService
	users   skystore.UserRepo
}

// NewHandler creates a new Handler with the given configuration and services.
func NewHandler(config *HandlerConfig, storage StorageService, auth AuthService, tokens TokenService, users skystore.UserRepo) *Handler {
	cfg := *config
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultDelegationTTL <= 0 {
		cfg.DefaultDelegationTTL = 15 * time.Minute
	}

	return &Handler{
		config:  cfg,
		storage: storage,
		auth:    auth,
		tokens:  tokens,
		users:   users,
	}
}

// Router returns an http.Handler with all routes configured. Auth routes
// are public; everything else sits behind the bearer middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(h.config.Logger))

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	bearer := BearerAuth(h.tokens, h.config.Logger, h.config.Now)

	r.Group(func(r chi.Router) {
		r.Use(bearer)

		r.Get("/users/me", h.handleMe)
		r.Patch("/users/me", h.handleUpdateMe)
		r.Delete("/users/me", h.handleDisableMe)
		r.Post("/users/me/password", h.handleChangePassword)
		r.Get("/users", h.handleListUsers)

		r.Get("/storage/providers", h.handleProviders)
		r.Get("/storage/files", h.handleListFiles)
		r.Post("/storage/{provider}/objects/*", h.handleUpload)
		r.Get("/storage/{provider}/objects/*", h.handleDelegateURL)
	})

	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, h.config.Now())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.String,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), subject)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, user)
}

type updateMeRequest struct {
	Username string `json:"username"`
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if req.Username == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Username cannot be empty")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), subject, req.Username)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleDisableMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	if err := h.users.Disable(r.Context(), subject); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), subject, req.CurrentPassword, req.NewPassword); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type listUsersResponse struct {
	Items      []skystore.User `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	caller, err := h.users.GetByID(r.Context(), subject)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if !caller.IsSuperuser {
		WriteError(w, http.StatusForbidden, "forbidden", "Superuser access required")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")

	users, nextCursor, err := h.users.List(r.Context(), limit, cursor)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, listUsersResponse{Items: users, NextCursor: nextCursor})
}

type providersResponse struct {
	Providers []string `json:"providers"`
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, providersResponse{Providers: h.storage.Providers()})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	provider := chi.URLParam(r, "provider")
	key := chi.URLParam(r, "*")

	if !skystore.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid object key")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Content-Type header is required")
		return
	}

	body := r.Body
	if h.config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}

	ref, err := h.storage.Upload(r.Context(), provider, skystore.ObjectRequest{
		Key:         key,
		ContentType: contentType,
	}, body, subject)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body exceeds upload limit")
			return
		}
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, ref)
}

func (h *Handler) handleDelegateURL(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	key := chi.URLParam(r, "*")

	if !skystore.IsValidKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid_key", "Invalid object key")
		return
	}

	op, err := skystore.ParseOperation(r.URL.Query().Get("op"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_operation", "Operation must be download-read or upload-write")
		return
	}

	expiry := h.config.DefaultDelegationTTL
	if raw := r.URL.Query().Get("expiry"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid_expiry", "Expiry must be a positive number of seconds")
			return
		}
		expiry = time.Duration(seconds) * time.Second
	}

	u, err := h.storage.DelegateURL(r.Context(), provider, skystore.ObjectRequest{
		Key:       key,
		Operation: op,
		Expiry:    expiry,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	subject, ok := SubjectFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	query := skystore.ListQuery{
		UploadedBy: subject,
		KeyPrefix:  r.URL.Query().Get("prefix"),
		Limit:      parseLimit(r.URL.Query().Get("limit")),
		Cursor:     r.URL.Query().Get("cursor"),
	}

	// Superusers may list records across all uploaders.
	if r.URL.Query().Get("all") == "true" {
		caller, err := h.users.GetByID(r.Context(), subject)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		if !caller.IsSuperuser {
			WriteError(w, http.StatusForbidden, "forbidden", "Superuser access required")
			return
		}
		query.UploadedBy = uuid.Nil
	}

	result, err := h.storage.ListFiles(r.Context(), query)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func parseLimit(raw string) int {
	limit := 100
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = max(1, min(1000, parsed))
		}
	}
	return limit
}
