package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"devflow/internal/auth"
	"devflow/internal/comments"
	"devflow/internal/config"
	"devflow/internal/hierarchy"
	"devflow/internal/membership"
	"devflow/internal/notify"
	"devflow/internal/server"
	"devflow/internal/storage/sqlstore"
	"devflow/internal/tasks"
	"devflow/internal/users"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg, logger)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().String("db", "data/devflow.db", "Database path (sqlite3) or DSN (postgres)")
	cmd.Flags().String("static", "web/dist", "Directory with built frontend")
	return cmd
}

// newServer wires every service onto one store.
func newServer(cfg *config.Config, store *sqlstore.Store, logger *slog.Logger) (*server.Server, error) {
	issuer, err := auth.NewIssuer(auth.TokenConfig{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hub := notify.NewHub(cfg.Push.Buffer, logger)
	notifications := notify.NewService(store, hub, logger)
	bus := notify.NewBus(logger)
	bus.Subscribe(notifications.HandleEvent)

	return server.New(server.Services{
		Auth:          auth.NewService(store, issuer, logger),
		Users:         users.NewService(store, logger),
		Hierarchy:     hierarchy.NewService(store, time.Now, logger),
		Membership:    membership.NewService(store, logger),
		Tasks:         tasks.NewService(store, bus, logger),
		Comments:      comments.NewService(store, bus, logger),
		Notifications: notifications,
		Hub:           hub,
		DB:            store,
	}, server.Options{
		StaticDir:   cfg.HTTP.StaticDir,
		Development: cfg.IsDevelopment(),
	}, logger), nil
}

func runServer(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("DevFlow backend", slog.String("version", Version), slog.String("env", cfg.Env))

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)
	srv, err := newServer(cfg, store, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer.RegisterOnShutdown(srv.CloseStreams)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", slog.String("addr", httpServer.Addr), slog.String("db", store.Driver()))
	if err := serve(ctx, httpServer, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// serve runs httpServer until ctx is done, then shuts it down gracefully. A
// listener failure is returned immediately.
func serve(ctx context.Context, httpServer *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	return nil
}
