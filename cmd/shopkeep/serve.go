// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/auth/memstore"
	"github.com/shopkeep/shopkeep/internal/auth/postgres"
	"github.com/shopkeep/shopkeep/internal/auth/redisstore"
	"github.com/shopkeep/shopkeep/internal/config"
	"github.com/shopkeep/shopkeep/internal/httpapi"
	"github.com/shopkeep/shopkeep/internal/logging"
	"github.com/shopkeep/shopkeep/internal/mail"
	"github.com/shopkeep/shopkeep/internal/observability"
	"github.com/shopkeep/shopkeep/internal/store"
	"github.com/shopkeep/shopkeep/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server which handles registration, login,
password reset and user lookups, plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

func applyServeDefaults(deps *ServeDeps) {
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, url string) (DatabasePool, error) {
			return store.Connect(ctx, url)
		}
	}
	if deps.RedisFactory == nil {
		deps.RedisFactory = func(ctx context.Context, url string) (redis.UniversalClient, error) {
			return redisstore.Connect(ctx, url)
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.NotifierFactory == nil {
		deps.NotifierFactory = mail.New
	}
	if deps.HTTPServerFactory == nil {
		deps.HTTPServerFactory = func(cfg httpapi.ServerConfig, handler http.Handler, logger *slog.Logger) HTTPServer {
			return httpapi.NewServer(cfg, handler, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checker, observability.WithLogger(logger))
		}
	}
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	applyServeDefaults(deps)
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(logging.Options{
		Service: "shopkeep",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("starting shopkeep",
		"mode", cfg.Mode,
		"http_addr", cfg.HTTP.Addr,
		"users_store", cfg.Store.Users,
		"codes_store", cfg.Store.Codes,
		"mail_provider", cfg.Mail.Provider)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pingers []observability.Pinger

	var pool DatabasePool
	if cfg.NeedsDatabase() {
		if cfg.Database.AutoMigrate {
			if err := runAutoMigrate(deps, cfg.Database.URL, logger); err != nil {
				return err
			}
		}
		var err error
		pool, err = deps.PoolFactory(ctx, cfg.Database.URL)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		defer pool.Close()
		pingers = append(pingers, pool)
		logger.Info("connected to database")
	}

	var users auth.UserRepository
	switch cfg.Store.Users {
	case config.StorePostgres:
		users = postgres.NewUserRepository(pool)
	default:
		logger.Warn("using in-memory user store; accounts are lost on restart")
		users = memstore.NewUserRepository()
	}

	var codes auth.OneTimeCodeRepository
	switch cfg.Store.Codes {
	case config.StorePostgres:
		codes = postgres.NewOneTimeCodeRepository(pool)
	case config.StoreRedis:
		client, err := deps.RedisFactory(ctx, cfg.Redis.URL)
		if err != nil {
			return oops.Code("REDIS_CONNECT_FAILED").With("operation", "connect to redis").Wrap(err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		codes, err = redisstore.NewOneTimeCodeStore(client,
			redisstore.WithPrefix(cfg.Redis.Prefix),
			redisstore.WithRetention(cfg.Redis.Retention))
		if err != nil {
			return err
		}
		pingers = append(pingers, redisPinger{client: client})
		logger.Info("connected to redis")
	default:
		codes = memstore.NewOneTimeCodeRepository()
	}

	var obsServer ObservabilityServer
	var registerer prometheus.Registerer = prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, observability.PingChecker(pingers...), logger)
		registerer = obsServer.Registerer()
	}

	api, err := buildAPI(cfg, users, codes, deps, registerer, logger)
	if err != nil {
		return err
	}

	httpServer := deps.HTTPServerFactory(httpapi.ServerConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, api.Handler(), logger)

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	httpErrChan, err := httpServer.Start()
	if err != nil {
		stopServers(cfg, logger, nil, obsServer)
		return oops.Code("SERVE_FAILED").With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Shopkeep API started on " + httpServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServers(cfg, logger, httpServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires the auth services into the HTTP API.
func buildAPI(
	cfg config.Config,
	users auth.UserRepository,
	codes auth.OneTimeCodeRepository,
	deps *ServeDeps,
	registerer prometheus.Registerer,
	logger *slog.Logger,
) (*httpapi.API, error) {
	var hasherOpts []auth.HasherOption
	if cfg.Auth.LegacyPassphrase != "" {
		legacy, err := auth.NewLegacyCipher(cfg.Auth.LegacyPassphrase)
		if err != nil {
			return nil, err
		}
		hasherOpts = append(hasherOpts, auth.WithLegacyCipher(legacy))
	}
	hasher := auth.NewArgon2idHasher(hasherOpts...)

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret,
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithTokenIssuer(cfg.Auth.TokenIssuer))
	if err != nil {
		return nil, err
	}

	notifier, err := deps.NotifierFactory(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	metrics := auth.NewMetrics(registerer)
	svcOpts := []auth.ServiceOption{auth.WithLogger(logger), auth.WithMetrics(metrics)}

	authSvc, err := auth.NewAuthService(users, hasher, issuer, svcOpts...)
	if err != nil {
		return nil, err
	}
	resetSvc, err := auth.NewPasswordResetService(users, codes, notifier, hasher, auth.ResetConfig{
		CodeValidity:         cfg.Reset.CodeValidity,
		RequireCodeOnConfirm: cfg.Reset.RequireCodeOnConfirm,
	}, svcOpts...)
	if err != nil {
		return nil, err
	}
	authn, err := auth.NewAuthenticator(issuer)
	if err != nil {
		return nil, err
	}

	return httpapi.New(httpapi.Dependencies{
		Auth:          authSvc,
		Reset:         resetSvc,
		Authenticator: authn,
		Users:         users,
		Logger:        logger,
		Metrics:       httpapi.NewMetrics(registerer),
		TokenHeader:   cfg.Auth.TokenHeader,
	})
}

// runAutoMigrate applies pending migrations before the pool is opened.
func runAutoMigrate(deps *ServeDeps, url string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close migrator", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// stopServers shuts down whichever servers were started.
func stopServers(cfg config.Config, logger *slog.Logger, httpServer HTTPServer, obsServer ObservabilityServer) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping http server", "error", err)
		}
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels the context when a server fails.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
