// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// OneTimeCodeRepository implements auth.OneTimeCodeRepository using PostgreSQL.
// The table holds at most one row per email.
type OneTimeCodeRepository struct {
	pool Pool
}

// NewOneTimeCodeRepository creates a new OneTimeCodeRepository.
func NewOneTimeCodeRepository(pool Pool) *OneTimeCodeRepository {
	return &OneTimeCodeRepository{pool: pool}
}

// Upsert stores code, replacing any existing code for the same email.
func (r *OneTimeCodeRepository) Upsert(ctx context.Context, code *auth.OneTimeCode) error {
	email := auth.NormalizeEmail(code.Email)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO one_time_codes (email, code, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, created_at = EXCLUDED.created_at
	`, email, code.Code, code.CreatedAt)
	if err != nil {
		return oops.Code("CODE_UPSERT_FAILED").
			With("operation", "upsert one_time_code").
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Latest returns the code stored for email.
func (r *OneTimeCodeRepository) Latest(ctx context.Context, email string) (*auth.OneTimeCode, error) {
	email = auth.NormalizeEmail(email)
	row := r.pool.QueryRow(ctx, `
		SELECT email, code, created_at
		FROM one_time_codes
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, email)

	var code auth.OneTimeCode
	err := row.Scan(&code.Email, &code.Code, &code.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "get latest one_time_code").
			With("email", email).
			Wrap(err)
	}
	return &code, nil
}

// Delete removes any code stored for email. Deleting a missing code is not an error.
func (r *OneTimeCodeRepository) Delete(ctx context.Context, email string) error {
	email = auth.NormalizeEmail(email)
	if _, err := r.pool.Exec(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email); err != nil {
		return oops.Code("CODE_DELETE_FAILED").
			With("operation", "delete one_time_code").
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.OneTimeCodeRepository = (*OneTimeCodeRepository)(nil)
