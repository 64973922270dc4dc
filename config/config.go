package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ameyrk/skystore/database"
	skystorehttp "github.com/ameyrk/skystore/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for skystore.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Token    TokenConfig             `mapstructure:"token"`
	Auth     AuthConfig              `mapstructure:"auth"`
	Storage  StorageConfig           `mapstructure:"storage"`
	Database database.Config         `mapstructure:"database"`
	CORS     skystorehttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig               `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	TLSCertFile     string `mapstructure:"tls_cert_file"`
	TLSKeyFile      string `mapstructure:"tls_key_file"`
	MaxUploadSize   int64  `mapstructure:"max_upload_size" validate:"min=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=1"`
}

// TokenConfig holds bearer-token configuration.
type TokenConfig struct {
	// Secret signs and verifies tokens. Never logged.
	Secret     string `mapstructure:"secret" validate:"required,min=32"`
	TTLMinutes int    `mapstructure:"ttl_minutes" validate:"required,min=1"`
	Algorithm  string `mapstructure:"algorithm" validate:"omitempty,oneof=HS256"`
}

// AuthConfig holds password-hashing configuration.
type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"min=0,max=31"`
}

// StorageConfig holds storage gateway configuration.
type StorageConfig struct {
	// MaxDelegationTTL bounds delegated URL lifetimes, in seconds.
	MaxDelegationTTL int `mapstructure:"max_delegation_ttl" validate:"required,min=1"`
	// DefaultDelegationTTL applies when a request omits expiry, in seconds.
	DefaultDelegationTTL int `mapstructure:"default_delegation_ttl" validate:"required,min=1"`
	// RequestTimeout bounds outbound provider calls, in seconds.
	RequestTimeout int `mapstructure:"request_timeout" validate:"min=1"`
	// AllowedContentTypes limits uploads; empty permits all types.
	AllowedContentTypes []string  `mapstructure:"allowed_content_types"`
	AWS                 AWSConfig `mapstructure:"aws"`
	GCP                 GCPConfig `mapstructure:"gcp"`
}

// AWSConfig holds the S3-compatible provider configuration.
type AWSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region" validate:"required_if=Enabled true"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// GCPConfig holds the GCS-compatible provider configuration.
type GCPConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	CredentialsFile string `mapstructure:"credentials_file"`
	GoogleAccessID  string `mapstructure:"google_access_id"`
	PrivateKeyFile  string `mapstructure:"private_key_file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"port":         "server.port",
	"tls-cert":     "server.tls_cert_file",
	"tls-key":      "server.tls_key_file",
	"token-secret": "token.secret",
	"log-level":    "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_upload_size", 32<<20)
	v.SetDefault("server.shutdown_timeout", 30) // seconds

	v.SetDefault("token.ttl_minutes", 30)
	v.SetDefault("token.algorithm", "HS256")

	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("storage.max_delegation_ttl", 3600)    // seconds
	v.SetDefault("storage.default_delegation_ttl", 900) // seconds
	v.SetDefault("storage.request_timeout", 30)         // seconds
	v.SetDefault("storage.allowed_content_types", []string{})
	v.SetDefault("storage.aws.region", "us-east-1")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "skystore.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.users", "skystore_users")
	v.SetDefault("database.tables.file_records", "skystore_file_records")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("SKYSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if !cfg.Storage.AWS.Enabled && !cfg.Storage.GCP.Enabled {
		return nil, errors.New("validate config: at least one storage provider must be enabled")
	}

	return &cfg, nil
}
