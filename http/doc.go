// Package http provides the HTTP server for the skystore storage gateway.
//
// This package implements a JSON API for account management, bearer-token
// authentication, and provider-dispatched storage operations.
//
// # Features
//
//   - Bearer-token authentication (signed expiring tokens)
//   - User registration, profile, and password lifecycle
//   - Streaming uploads dispatched to a named storage provider
//   - Delegated (pre-signed) URL issuance scoped to one key and one operation
//   - Upload audit listing with cursor pagination
//   - JSON error responses mapped from the shared error taxonomy
//   - Configurable CORS support
//
// # Authentication
//
// Routes under /users and /storage require an Authorization: Bearer header.
// The BearerAuth middleware verifies the token, injects the subject ID into
// the request context, and collapses every verification failure into the
// same generic unauthorized response. The precise failure kind is logged
// server-side with the request's correlation id.
//
// # Usage
//
// Create a handler with HandlerConfig and the collaborating services:
//
//	cfg := http.HandlerConfig{
//	    MaxUploadBytes:       32 << 20,
//	    DefaultDelegationTTL: 15 * time.Minute,
//	}
//	handler := http.NewHandler(&cfg, gateway, authenticator, tokenService, users)
//	router := handler.Router()
//	http.ListenAndServe(":8080", router)
//
// # Routes
//
//	POST   /auth/register                      register a new account (public)
//	POST   /auth/login                         exchange credentials for a token (public)
//	GET    /users/me                           current account
//	PATCH  /users/me                           update profile
//	DELETE /users/me                           disable account
//	POST   /users/me/password                  change password
//	GET    /users                              list accounts (superuser)
//	GET    /storage/providers                  configured provider names
//	GET    /storage/files                      caller's upload records
//	POST   /storage/{provider}/objects/{key}   upload an object
//	GET    /storage/{provider}/objects/{key}   mint a delegated URL (?op=&expiry=)
package http
