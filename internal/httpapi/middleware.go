// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/logging"
)

// Header names.
const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"
	DefaultTokenHeader  = "token"
)

const (
	identityKey     = "shopkeep.identity"
	maxRequestIDLen = 128
	unmatchedRoute  = "unmatched"
)

// requestID propagates or assigns a request id and stores it on the request context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs one line per request after it completes.
func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", route(c),
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP())
	}
}

// recovery turns handler panics into 500 responses.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "handler panic",
			"route", route(c),
			"panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			ErrorResponse{Error: "internal server error", Code: codeInternal})
	})
}

func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// Metrics records HTTP request counts and latencies.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers HTTP metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopkeep_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopkeep_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(m.Requests, m.Duration)
	return m
}

func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r := route(c)
		m.Requests.WithLabelValues(c.Request.Method, r, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(c.Request.Method, r).Observe(time.Since(start).Seconds())
	}
}

// requirePolicy authenticates the caller and evaluates policy against the :id path parameter.
func (a *API) requirePolicy(policy auth.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.authn.Authenticate(a.credential(c))
		if err != nil {
			abortWithError(c, a.logger, err)
			return
		}
		if err := auth.Authorize(identity, policy, c.Param("id")).Err(); err != nil {
			a.logger.InfoContext(c.Request.Context(), "request forbidden",
				"user_id", identity.UserID.String(),
				"policy", policy.String(),
				"route", route(c))
			abortWithError(c, a.logger, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// credential reads the configured token header, falling back to Authorization.
func (a *API) credential(c *gin.Context) string {
	if v := c.GetHeader(a.tokenHeader); v != "" {
		return v
	}
	return c.GetHeader(AuthorizationHeader)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func parseUserID(raw string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_NOT_FOUND").With("id", raw).Wrap(auth.ErrNotFound)
	}
	return id, nil
}
