package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ameyrk/skystore/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "skystore",
	Short:   "Storage gateway with delegated URL issuance",
	Long: `Skystore is a storage gateway that fronts S3-compatible and
GCS-compatible backends behind one authenticated API, streaming uploads
and minting scoped, time-boxed delegated URLs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: SKYSTORE_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: skystore.db, env: SKYSTORE_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("token-secret", "", "token signing secret (env: SKYSTORE_TOKEN_SECRET)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default: info)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var configFiles []string
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		configFiles = append(configFiles, configFile)
	}
	return config.Load(configFiles, cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
