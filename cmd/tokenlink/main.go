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

	"github.com/jonboulle/clockwork"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/tokenlink/internal/adapter/driven/gateway"
	githubadapter "github.com/ericfisherdev/tokenlink/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/tokenlink/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/tokenlink/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/tokenlink/internal/adapter/driving/web"
	"github.com/ericfisherdev/tokenlink/internal/application"
	"github.com/ericfisherdev/tokenlink/internal/config"
	"github.com/ericfisherdev/tokenlink/internal/domain/port/driven"
)

// transitionsKept bounds the persisted transition history.
const transitionsKept = 500

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"data_dir", cfg.DataDir,
		"service", cfg.Service,
		"reconnect_delay", cfg.ReconnectDelay,
		"max_retries", cfg.MaxRetries,
		"encrypted", cfg.SecretKey != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.Open(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	clock := clockwork.NewRealClock()
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.EncryptionKey())
	transitionLog := sqliteadapter.NewTransitionRepo(db, transitionsKept)

	client, err := newSessionClient(cfg, clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			slog.Error("error closing session client", "error", closeErr)
		}
	}()

	gate := webhandler.NewGate(logger)

	// 6. Create the session manager and start its loop.
	policy := application.Policy{MaxRetries: cfg.MaxRetries, ReconnectDelay: cfg.ReconnectDelay}
	manager := application.NewSessionManager(credentialStore, client, gate, transitionLog, clock, policy, logger)

	managerDone := make(chan error, 1)
	go func() { managerDone <- manager.Run(ctx) }()
	manager.Start()

	statusSvc := application.NewStatusService(manager, transitionLog, manager.Policy())

	// 7. Create HTTP handlers and register routes.
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(manager, statusSvc, logger))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(gate, manager, statusSvc, logger))

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 8. Log startup complete.
	slog.Info("tokenlink started",
		"listen_addr", cfg.ListenAddr,
		"data_dir", cfg.DataDir,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	if err := <-managerDone; err != nil {
		slog.Error("session manager error", "error", err)
	}

	// 11. Log shutdown complete.
	slog.Info("shutdown complete")
	return nil
}

// newSessionClient builds the SessionClient selected by TOKENLINK_SERVICE.
func newSessionClient(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (driven.SessionClient, error) {
	switch cfg.Service {
	case config.ServiceGateway:
		return gateway.NewClient(cfg.GatewayURL, clock, logger), nil
	case config.ServiceGitHub:
		client, err := githubadapter.NewClient(cfg.GitHubAPIURL, cfg.HealthInterval, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("create github client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown session service %q", cfg.Service)
	}
}
