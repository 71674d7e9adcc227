// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// ServiceOption configures Service and PasswordResetService.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) ServiceOption {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithNow overrides the time source used for code creation and expiry.
func WithNow(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		o.now = now
	}
}

func applyOptions(opts []ServiceOption) serviceOptions {
	o := serviceOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Service provides registration and login.
type Service struct {
	users   UserRepository
	hasher  PasswordHasher
	tokens  *TokenIssuer
	logger  *slog.Logger
	metrics *Metrics
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}
	o := applyOptions(opts)
	if o.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger cannot be nil")
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput holds the fields accepted by Register.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

// Register creates a user with a hashed credential.
// Returns an error wrapping ErrConflict if the username or email is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	switch {
	case in.Username == "":
		s.metrics.record("register", OutcomeFailure)
		return nil, oops.Code("AUTH_VALIDATION").Wrap(required("username"))
	case in.Email == "":
		s.metrics.record("register", OutcomeFailure)
		return nil, oops.Code("AUTH_VALIDATION").Wrap(required("email"))
	case in.Password == "":
		s.metrics.record("register", OutcomeFailure)
		return nil, oops.Code("AUTH_VALIDATION").Wrap(required("password"))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.record("register", OutcomeError)
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(in.Username, in.Email, hash, in.IsAdmin)
	if err != nil {
		s.metrics.record("register", OutcomeFailure)
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.record("register", OutcomeFailure)
			return nil, oops.Code("USER_CONFLICT").
				With("username", in.Username).
				Wrap(err)
		}
		s.metrics.record("register", OutcomeError)
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist user").
			With("username", in.Username).
			Wrap(err)
	}

	s.metrics.record("register", OutcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "is_admin", user.IsAdmin)
	return user, nil
}

// Login authenticates a user and issues an access token.
// Uses constant-time operations to prevent timing-based username enumeration.
func (s *Service) Login(ctx context.Context, username, password string) (*User, string, error) {
	if username == "" {
		s.metrics.record("login", OutcomeFailure)
		return nil, "", oops.Code("AUTH_VALIDATION").Wrap(required("username"))
	}
	if password == "" {
		s.metrics.record("login", OutcomeFailure)
		return nil, "", oops.Code("AUTH_VALIDATION").Wrap(required("password"))
	}

	user, lookupErr := s.users.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			s.metrics.record("login", OutcomeError)
			return nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			s.metrics.record("login", OutcomeFailure)
			return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		s.metrics.record("login", OutcomeError)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	// If user doesn't exist OR password invalid, return same error
	if !userExists || !valid {
		s.metrics.record("login", OutcomeFailure)
		return nil, "", oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeCredential(ctx, user, password)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.metrics.record("login", OutcomeError)
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.metrics.record("login", OutcomeSuccess)
	return user, token, nil
}

// upgradeCredential rehashes a legacy credential. Login succeeds regardless.
func (s *Service) upgradeCredential(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort credential upgrade failed",
			"user_id", user.ID.String(),
			"operation", "hash",
			"error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "best-effort credential upgrade failed",
			"user_id", user.ID.String(),
			"operation", "update_password",
			"error", err)
		return
	}
	user.PasswordHash = newHash
	s.logger.InfoContext(ctx, "credential upgraded", "user_id", user.ID.String())
}
