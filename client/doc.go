// Package client is a Go client for the skystore HTTP API.
//
// A Client is built from a Profile, which carries the server endpoint, a
// bearer token from a previous login, and the preferred storage provider.
// Profiles can be stored in a config file holding several named entries:
//
//	cfg, err := client.LoadConfigFile(path)
//	profile, err := cfg.GetProfile("staging")
//	c, err := client.New(profile)
//
// Authentication is a two-step flow: Register once, then Login to obtain
// a bearer token. Login retains the token on the Client; persist it back
// into the profile to reuse it across runs:
//
//	result, err := c.Login(ctx, email, password)
//	profile.Token = result.AccessToken
//	err = cfg.Save(path)
//
// Uploads stream through the server; downloads go directly to the storage
// backend via a delegated URL obtained from DelegateURL.
package client
