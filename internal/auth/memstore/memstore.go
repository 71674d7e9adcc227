// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package memstore provides in-memory implementations of auth repositories
// for development mode and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.UserRepository        = (*UserRepository)(nil)
	_ auth.OneTimeCodeRepository = (*OneTimeCodeRepository)(nil)
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[ulid.ULID]auth.User
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[ulid.ULID]auth.User)}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return oops.Code("USER_CONFLICT").
				With("constraint", "users_username_key").
				Wrap(auth.ErrConflict)
		}
		if strings.EqualFold(u.Email, user.Email) {
			return oops.Code("USER_CONFLICT").
				With("constraint", "users_email_key").
				Wrap(auth.ErrConflict)
		}
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find("username", username, func(u *auth.User) bool { return u.Username == username })
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	email = strings.TrimSpace(email)
	return r.find("email", email, func(u *auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepository) find(field, value string, match func(*auth.User) bool) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
}

// UpdatePassword replaces the stored credential for a user.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// List returns users ordered by creation time.
func (r *UserRepository) List(_ context.Context, limit, offset int) ([]*auth.User, error) {
	r.mu.RLock()
	all := make([]*auth.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, &u)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Compare(all[j].ID) < 0
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*auth.User{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// OneTimeCodeRepository implements auth.OneTimeCodeRepository in memory.
type OneTimeCodeRepository struct {
	mu    sync.RWMutex
	codes map[string]auth.OneTimeCode
}

// NewOneTimeCodeRepository creates an empty OneTimeCodeRepository.
func NewOneTimeCodeRepository() *OneTimeCodeRepository {
	return &OneTimeCodeRepository{codes: make(map[string]auth.OneTimeCode)}
}

// Upsert stores the code, replacing any existing code for the same email.
func (r *OneTimeCodeRepository) Upsert(_ context.Context, code *auth.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[auth.NormalizeEmail(code.Email)] = *code
	return nil
}

// Latest returns the code for an email.
func (r *OneTimeCodeRepository) Latest(_ context.Context, email string) (*auth.OneTimeCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codes[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("CODE_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return &c, nil
}

// Delete removes any code for an email.
func (r *OneTimeCodeRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, auth.NormalizeEmail(email))
	return nil
}

// Len returns the number of stored codes.
func (r *OneTimeCodeRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codes)
}
