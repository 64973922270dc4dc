// Package config loads and validates skystore configuration.
//
// Configuration is merged from four sources, highest precedence first:
//
//  1. CLI flags (bound through a pflag.FlagSet)
//  2. Environment variables prefixed with SKYSTORE_ (dots become underscores,
//     e.g. SKYSTORE_DATABASE_DSN)
//  3. YAML config files (later files override earlier ones)
//  4. Built-in defaults
//
// The merged result is unmarshalled into Config and validated with
// go-playground/validator. At least one storage provider must be enabled.
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
