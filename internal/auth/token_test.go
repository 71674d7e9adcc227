// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/pkg/errutil"
)

const testSecret = "test-secret-0123456789"

func newTestUser(t *testing.T, username string, isAdmin bool) *auth.User {
	t.Helper()
	user, err := auth.NewUser(username, username+"@x.com", "$argon2id$hash", isAdmin)
	require.NoError(t, err)
	return user
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer("")
		assert.Nil(t, issuer)
		errutil.AssertErrorCode(t, err, "TOKEN_SECRET_EMPTY")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer(testSecret, auth.WithTokenTTL(0))
		assert.Nil(t, issuer)
		errutil.AssertErrorCode(t, err, "TOKEN_TTL_INVALID")
	})

	t.Run("defaults to three days", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer(testSecret)
		require.NoError(t, err)
		assert.Equal(t, 72*time.Hour, issuer.TTL())
	})
}

func TestTokenIssuer_IssueVerify(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	issuer, err := auth.NewTokenIssuer(testSecret, auth.WithClock(clock.Now))
	require.NoError(t, err)

	t.Run("claims carry id and admin flag", func(t *testing.T) {
		for _, admin := range []bool{false, true} {
			user := newTestUser(t, "alice", admin)
			token, err := issuer.Issue(user)
			require.NoError(t, err)

			claims, err := issuer.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, user.ID.String(), claims.UserID)
			assert.Equal(t, admin, claims.IsAdmin)
			assert.Equal(t, clock.Now().Add(auth.TokenExpiry).Unix(), claims.ExpiresAt.Unix())
		}
	})

	t.Run("rejects zero user", func(t *testing.T) {
		_, err := issuer.Issue(&auth.User{})
		errutil.AssertErrorCode(t, err, "TOKEN_ISSUE_FAILED")
	})
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fixedClock{t: issued}
	issuer, err := auth.NewTokenIssuer(testSecret, auth.WithClock(clock.Now))
	require.NoError(t, err)

	token, err := issuer.Issue(newTestUser(t, "alice", false))
	require.NoError(t, err)

	clock.t = issued.Add(3*24*time.Hour - time.Second)
	_, err = issuer.Verify(token)
	require.NoError(t, err, "token must be accepted one second before expiry")

	clock.t = issued.Add(3*24*time.Hour + time.Second)
	_, err = issuer.Verify(token)
	require.Error(t, err, "token must be rejected one second after expiry")
	errutil.AssertErrorCode(t, err, "TOKEN_EXPIRED")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenIssuer_VerifyRejects(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSecret)
	require.NoError(t, err)
	other, err := auth.NewTokenIssuer("another-secret-0123456789")
	require.NoError(t, err)

	user := newTestUser(t, "alice", false)
	forged, err := other.Issue(user)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  user.ID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "not-a-ulid",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": user.ID.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	valid, err := issuer.Issue(user)
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", forged},
		{"alg none", noneToken},
		{"malformed subject", badSubject},
		{"missing expiry", noExpiry},
		{"tampered payload", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.Verify(tt.token)
			assert.Nil(t, claims)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestTokenIssuer_Issuer(t *testing.T) {
	a, err := auth.NewTokenIssuer(testSecret, auth.WithTokenIssuer("shopkeep"))
	require.NoError(t, err)
	b, err := auth.NewTokenIssuer(testSecret, auth.WithTokenIssuer("elsewhere"))
	require.NoError(t, err)

	token, err := b.Issue(newTestUser(t, "alice", false))
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
