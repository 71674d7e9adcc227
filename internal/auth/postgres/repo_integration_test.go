// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/internal/auth/postgres"
)

func createUser(t *testing.T, repo *postgres.UserRepository, username, email string) *auth.User {
	t.Helper()
	ctx := context.Background()
	user, err := auth.NewUser(username, email, "$argon2id$hash", false)
	require.NoError(t, err)
	user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)
	user.UpdatedAt = user.CreatedAt
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	})
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("round trip", func(t *testing.T) {
		user := createUser(t, repo, "int_alice", "int_alice@x.com")

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Username, byID.Username)
		assert.True(t, user.CreatedAt.Equal(byID.CreatedAt))

		byEmail, err := repo.GetByEmail(ctx, "INT_ALICE@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		_, err = repo.GetByUsername(ctx, "INT_ALICE")
		assert.ErrorIs(t, err, auth.ErrNotFound, "usernames are exact")
	})

	t.Run("duplicate username and email conflict", func(t *testing.T) {
		createUser(t, repo, "int_dup", "int_dup@x.com")

		again, err := auth.NewUser("int_dup", "other@x.com", "h", false)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, again), auth.ErrConflict)

		sameEmail, err := auth.NewUser("int_dup2", "INT_DUP@x.com", "h", false)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, sameEmail), auth.ErrConflict)
	})

	t.Run("update password", func(t *testing.T) {
		user := createUser(t, repo, "int_pw", "int_pw@x.com")
		require.NoError(t, repo.UpdatePassword(ctx, user.ID, "$argon2id$new"))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", got.PasswordHash)
	})
}

func TestOneTimeCodeRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewOneTimeCodeRepository(testPool)
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM one_time_codes WHERE email = $1`, "int_code@x.com")
	})

	first := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, &auth.OneTimeCode{Email: "int_code@x.com", Code: "111111", CreatedAt: first}))
	require.NoError(t, repo.Upsert(ctx, &auth.OneTimeCode{Email: "INT_CODE@x.com", Code: "222222", CreatedAt: first.Add(time.Minute)}))

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT COUNT(*) FROM one_time_codes WHERE email = $1`, "int_code@x.com").Scan(&count))
	assert.Equal(t, 1, count, "one row per email")

	got, err := repo.Latest(ctx, "int_code@x.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)

	require.NoError(t, repo.Delete(ctx, "int_code@x.com"))
	_, err = repo.Latest(ctx, "int_code@x.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
