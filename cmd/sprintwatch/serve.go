package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/config"
	"github.com/verte-zerg/sprintwatch/internal/server"
	"github.com/verte-zerg/sprintwatch/internal/session"
)

var (
	serveAddr     string
	serveEnvFiles []string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&serveEnvFiles, "env-file", nil, ".env files to load (default: ./.env)")
	return cmd
}

type serveSettings struct {
	addr  string
	token auth.TokenConfig
}

// resolveServeSettings reads listen and token settings from flags,
// environment and the config file, in that order.
func resolveServeSettings(cmd *cobra.Command, fileCfg config.FileConfig) (serveSettings, error) {
	addr := serveAddr
	applyStringConfig(cmd, "addr", &addr, envValue(config.EnvAddr), fileCfg.Server.Addr)

	var fileSecret string
	if fileCfg.Server.Secret != nil {
		fileSecret = *fileCfg.Server.Secret
	}
	secret := config.EnvOr(config.EnvSecret, fileSecret)
	if secret == "" {
		return serveSettings{}, fmt.Errorf("token secret is not set (use $%s or [server] secret)", config.EnvSecret)
	}

	issuer := defaultIssuer
	if fileCfg.Server.Issuer != nil {
		issuer = *fileCfg.Server.Issuer
	}

	ttlStr := defaultTokenTTL
	if fileCfg.Server.TokenTTL != nil {
		ttlStr = *fileCfg.Server.TokenTTL
	}
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return serveSettings{}, fmt.Errorf("invalid token-ttl %q: %w", ttlStr, err)
	}
	ttl = config.EnvDuration(config.EnvTokenTTL, ttl)
	if ttl <= 0 {
		return serveSettings{}, fmt.Errorf("token ttl must be positive")
	}

	return serveSettings{
		addr:  addr,
		token: auth.TokenConfig{Secret: secret, Issuer: issuer, TTL: ttl},
	}, nil
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(serveEnvFiles...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	fileCfg, err := resolvePaths(cmd)
	if err != nil {
		return err
	}
	settings, err := resolveServeSettings(cmd, fileCfg)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	slog.Info("opened database", "path", dbPath)

	users, err := auth.LoadProvider(credentialsPath)
	if err != nil {
		return err
	}
	tokens, err := auth.NewIssuer(settings.token)
	if err != nil {
		return err
	}

	api := server.New(st, users, tokens, session.NewRegistry(nil))
	srv := &http.Server{
		Addr:         settings.addr,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", settings.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
