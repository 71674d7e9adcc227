// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	TokenExpiry       = 72 * time.Hour // 3 days
	MinTokenSecretLen = 16
)

// Claims are the signed contents of an access token.
type Claims struct {
	UserID  string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens with a single injected secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		t.ttl = ttl
	}
}

// WithTokenIssuer sets the iss claim written and required on verification.
func WithTokenIssuer(issuer string) TokenOption {
	return func(t *TokenIssuer) {
		t.issuer = issuer
	}
}

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		t.now = now
	}
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_SECRET_EMPTY").Errorf("token secret cannot be empty")
	}
	t := &TokenIssuer{
		secret: []byte(secret),
		ttl:    TokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.ttl <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").With("ttl", t.ttl.String()).Errorf("token ttl must be positive")
	}
	return t, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue returns a signed token carrying the user's id and admin flag.
func (t *TokenIssuer) Issue(user *User) (string, error) {
	if user == nil || user.ID.Compare(ulid.ULID{}) == 0 {
		return "", oops.Code("TOKEN_ISSUE_FAILED").Errorf("user ID cannot be zero")
	}

	now := t.now()
	claims := Claims{
		UserID:  user.ID.String(),
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure wraps ErrInvalidToken.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return nil, oops.Code(code).With("reason", err.Error()).Wrap(ErrInvalidToken)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	if _, err := ulid.Parse(claims.UserID); err != nil {
		return nil, oops.Code("TOKEN_INVALID").With("reason", "malformed subject").Wrap(ErrInvalidToken)
	}
	return claims, nil
}
