package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/config"
	"github.com/ameyrk/skystore/database"
	"github.com/ameyrk/skystore/gcstore"
	skystorehttp "github.com/ameyrk/skystore/http"
	"github.com/ameyrk/skystore/s3store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the skystore HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8000, "HTTP server port")
	serveCmd.Flags().String("tls-cert", "", "TLS certificate file (enables TLS together with --tls-key)")
	serveCmd.Flags().String("tls-key", "", "TLS private key file")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database", "type", cfg.Database.Type)

	tokens, err := skystore.NewTokenService(skystore.TokenConfig{
		Secret:    cfg.Token.Secret,
		TTL:       time.Duration(cfg.Token.TTLMinutes) * time.Minute,
		Algorithm: cfg.Token.Algorithm,
	})
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	auth, err := skystore.NewAuthenticator(db.Users(), cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}

	providers, err := buildProviders(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	gateway, err := skystore.NewGateway(providers, db.FileRecords(), skystore.GatewayConfig{
		MaxDelegationTTL:    time.Duration(cfg.Storage.MaxDelegationTTL) * time.Second,
		RequestTimeout:      time.Duration(cfg.Storage.RequestTimeout) * time.Second,
		AllowedContentTypes: cfg.Storage.AllowedContentTypes,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	handlerConfig := skystorehttp.HandlerConfig{
		MaxUploadBytes:       cfg.Server.MaxUploadSize,
		DefaultDelegationTTL: time.Duration(cfg.Storage.DefaultDelegationTTL) * time.Second,
		CORS:                 cfg.CORS,
		Logger:               slog.Default(),
	}

	handler := skystorehttp.NewHandler(&handlerConfig, gateway, auth, tokens, db.Users())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	useTLS := cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != ""

	slog.Info("starting server", "addr", addr, "tls", useTLS, "providers", gateway.Providers())

	if useTLS {
		err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func buildProviders(ctx context.Context, cfg config.StorageConfig) ([]skystore.Provider, error) {
	var providers []skystore.Provider

	if cfg.AWS.Enabled {
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:         cfg.AWS.Bucket,
			Region:         cfg.AWS.Region,
			AccessKeyID:    cfg.AWS.AccessKeyID,
			SecretKey:      cfg.AWS.SecretAccessKey,
			Endpoint:       cfg.AWS.Endpoint,
			ForcePathStyle: cfg.AWS.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 provider: %w", err)
		}
		providers = append(providers, store)
	}

	if cfg.GCP.Enabled {
		store, err := gcstore.New(ctx, gcstore.Config{
			Bucket:          cfg.GCP.Bucket,
			CredentialsFile: cfg.GCP.CredentialsFile,
			GoogleAccessID:  cfg.GCP.GoogleAccessID,
			PrivateKeyFile:  cfg.GCP.PrivateKeyFile,
		})
		if err != nil {
			return nil, fmt.Errorf("create gcs provider: %w", err)
		}
		providers = append(providers, store)
	}

	return providers, nil
}
