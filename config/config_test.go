package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameyrk/skystore/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes yaml content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// minimalConfig is the smallest valid configuration: a token secret and
// one enabled provider. Everything else comes from defaults.
const minimalConfig = `
token:
  secret: "0123456789abcdef0123456789abcdef"
storage:
  aws:
    enabled: true
    region: us-east-1
    bucket: test-bucket
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load([]string{writeConfig(t, minimalConfig)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, 30, cfg.Server.ShutdownTimeout)
	assert.Equal(t, testSecret, cfg.Token.Secret)
	assert.Equal(t, 30, cfg.Token.TTLMinutes)
	assert.Equal(t, "HS256", cfg.Token.Algorithm)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 3600, cfg.Storage.MaxDelegationTTL)
	assert.Equal(t, 900, cfg.Storage.DefaultDelegationTTL)
	assert.Equal(t, 30, cfg.Storage.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "skystore.db", cfg.Database.DSN)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "skystore_users", cfg.Database.Tables.Users)
	assert.Equal(t, "skystore_file_records", cfg.Database.Tables.FileRecords)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  max_upload_size: 1048576
token:
  secret: "0123456789abcdef0123456789abcdef"
  ttl_minutes: 60
storage:
  max_delegation_ttl: 7200
  allowed_content_types:
    - image/png
    - image/jpeg
  aws:
    enabled: true
    region: eu-west-1
    bucket: uploads
    endpoint: http://localhost:9000
    force_path_style: true
  gcp:
    enabled: true
    bucket: uploads-gcs
database:
  type: postgres
  dsn: postgres://localhost/skystore
  tables:
    users: custom_users
    file_records: custom_records
log:
  level: debug
  format: json
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadSize)
	assert.Equal(t, 60, cfg.Token.TTLMinutes)
	assert.Equal(t, 7200, cfg.Storage.MaxDelegationTTL)
	assert.Equal(t, []string{"image/png", "image/jpeg"}, cfg.Storage.AllowedContentTypes)
	assert.True(t, cfg.Storage.AWS.Enabled)
	assert.Equal(t, "eu-west-1", cfg.Storage.AWS.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.AWS.Endpoint)
	assert.True(t, cfg.Storage.AWS.ForcePathStyle)
	assert.True(t, cfg.Storage.GCP.Enabled)
	assert.Equal(t, "uploads-gcs", cfg.Storage.GCP.Bucket)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "custom_users", cfg.Database.Tables.Users)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	base := writeConfig(t, minimalConfig)
	override := writeConfig(t, `
server:
  port: 9000
log:
  level: warn
`)

	cfg, err := config.Load([]string{base, override}, nil)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)

	// Preserved values from base
	assert.Equal(t, testSecret, cfg.Token.Secret)
	assert.True(t, cfg.Storage.AWS.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SKYSTORE_SERVER_PORT", "7070")
	t.Setenv("SKYSTORE_LOG_LEVEL", "error")

	cfg, err := config.Load([]string{writeConfig(t, minimalConfig)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_FlagOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("db-type", "", "")
	flags.String("db-dsn", "", "")
	require.NoError(t, flags.Parse([]string{"--port=6060", "--db-type=postgres", "--db-dsn=postgres://localhost/flagdb"}))

	cfg, err := config.Load([]string{writeConfig(t, minimalConfig)}, flags)
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/flagdb", cfg.Database.DSN)
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 1234, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load([]string{writeConfig(t, minimalConfig)}, flags)
	require.NoError(t, err)

	// Flag defaults do not override config defaults.
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"missing token secret",
			`
storage:
  aws:
    enabled: true
    region: us-east-1
    bucket: b
`,
		},
		{
			"short token secret",
			`
token:
  secret: tooshort
storage:
  aws:
    enabled: true
    region: us-east-1
    bucket: b
`,
		},
		{
			"invalid port",
			minimalConfig + `
server:
  port: 99999
`,
		},
		{
			"invalid log level",
			minimalConfig + `
log:
  level: loud
`,
		},
		{
			"unsupported algorithm",
			`
token:
  secret: "0123456789abcdef0123456789abcdef"
  algorithm: RS256
storage:
  aws:
    enabled: true
    region: us-east-1
    bucket: b
`,
		},
		{
			"enabled provider missing bucket",
			`
token:
  secret: "0123456789abcdef0123456789abcdef"
storage:
  gcp:
    enabled: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load([]string{writeConfig(t, tt.content)}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoad_NoProviderEnabled(t *testing.T) {
	_, err := config.Load([]string{writeConfig(t, `
token:
  secret: "0123456789abcdef0123456789abcdef"
`)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one storage provider")
}

func TestContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		cfg := &config.Config{}
		ctx := config.WithContext(context.Background(), cfg)

		got, err := config.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, cfg, got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := config.FromContext(context.Background())
		assert.Error(t, err)
	})
}
