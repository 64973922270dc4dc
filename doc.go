// Package skystore provides token-gated access to interchangeable cloud
// object-storage backends with time-limited access delegation.
//
// The core combines four pieces:
//
//   - TokenService: issues and verifies signed, expiring bearer tokens
//     (HS256) with no server-side session state
//   - Authenticator: password verification against a pluggable credential
//     store, hardened against identifier enumeration
//   - Provider: the uniform adapter interface implemented per backend
//     (see the s3store and gcstore packages)
//   - Gateway: selects an adapter by name, validates requests, and keeps
//     every backend error inside one shared taxonomy
//
// # Delegated access
//
// DelegateURL returns a provider-signed URL granting a single scoped
// operation (download-read or upload-write) on one key for a bounded
// time, without sharing standing credentials. The gateway rejects expiry
// durations outside (0, MaxDelegationTTL] before any backend round-trip,
// and the returned ExpiresAt always matches what the backend embedded in
// its own signature.
//
// # Example Usage
//
//	gw, err := skystore.NewGateway([]skystore.Provider{s3, gcs}, records, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ref, err := gw.Upload(ctx, "aws", req, r.Body, userID)
//	u, err := gw.DelegateURL(ctx, "gcp", req)
//
// See the http package for the REST API, the database package for the
// credential store backends, and cmd/skystore for the server binary.
package skystore
