// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package httpapi exposes the auth services over HTTP with gin.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// Dependencies are the collaborators of the HTTP API.
type Dependencies struct {
	Auth          *auth.Service
	Reset         *auth.PasswordResetService
	Authenticator *auth.Authenticator
	Users         auth.UserRepository

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
	// TokenHeader carries the credential. Defaults to DefaultTokenHeader;
	// the Authorization header is always accepted as a fallback.
	TokenHeader string
}

// API holds the HTTP handlers.
type API struct {
	auth        *auth.Service
	reset       *auth.PasswordResetService
	authn       *auth.Authenticator
	users       auth.UserRepository
	logger      *slog.Logger
	metrics     *Metrics
	tokenHeader string
}

// New creates an API.
func New(deps Dependencies) (*API, error) {
	if deps.Auth == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("auth service is required")
	}
	if deps.Reset == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("password reset service is required")
	}
	if deps.Authenticator == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if deps.Users == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("users repository is required")
	}
	a := &API{
		auth:        deps.Auth,
		reset:       deps.Reset,
		authn:       deps.Authenticator,
		users:       deps.Users,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		tokenHeader: deps.TokenHeader,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.tokenHeader == "" {
		a.tokenHeader = DefaultTokenHeader
	}
	return a, nil
}

// Handler builds the gin engine serving every route.
func (a *API) Handler() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(recovery(a.logger), requestID(), accessLog(a.logger))
	if a.metrics != nil {
		r.Use(a.metrics.middleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is running")
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "ROUTE_NOT_FOUND"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", a.register)
		authGroup.POST("/login", a.login)
		authGroup.POST("/forgot-password", a.forgotPassword)
		authGroup.POST("/verify-otp", a.verifyOTP)
		authGroup.POST("/reset-password", a.resetPassword)
	}

	users := api.Group("/users")
	{
		users.GET("", a.requirePolicy(auth.PolicyAdminOnly), a.listUsers)
		users.GET("/me", a.requirePolicy(auth.PolicyAuthenticated), a.me)
		users.GET("/:id", a.requirePolicy(auth.PolicySelfOrAdmin), a.getUser)
	}

	return r
}
