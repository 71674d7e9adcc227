// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/auth/postgres"
	"github.com/shopkeep/shopkeep/internal/config"
	"github.com/shopkeep/shopkeep/internal/httpapi"
	"github.com/shopkeep/shopkeep/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string) (DatabasePool, error)

	// RedisFactory connects to Redis.
	// Default: redisstore.Connect
	RedisFactory func(ctx context.Context, url string) (redis.UniversalClient, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (AutoMigrator, error)

	// NotifierFactory builds the mail sender.
	// Default: mail.New
	NotifierFactory func(cfg config.MailConfig, logger *slog.Logger) (auth.Notifier, error)

	// HTTPServerFactory creates the API server.
	// Default: httpapi.NewServer
	HTTPServerFactory func(cfg httpapi.ServerConfig, handler http.Handler, logger *slog.Logger) HTTPServer

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// DatabasePool is the subset of *pgxpool.Pool used by serve.
type DatabasePool interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// AutoMigrator is the subset of store.Migrator used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// HTTPServer wraps the methods used from httpapi.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registerer() prometheus.Registerer
}

// redisPinger adapts a redis client to observability.Pinger.
type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
