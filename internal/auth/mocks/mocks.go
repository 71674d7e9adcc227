// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.UserRepository        = (*MockUserRepository)(nil)
	_ auth.OneTimeCodeRepository = (*MockOneTimeCodeRepository)(nil)
	_ auth.PasswordHasher        = (*MockPasswordHasher)(nil)
	_ auth.Notifier              = (*MockNotifier)(nil)
)

// cleanup is the subset of testing.TB used to register expectation checks.
type cleanup interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository that asserts its expectations on cleanup.
func NewMockUserRepository(t cleanup) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	args := m.Called(ctx, limit, offset)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

func userOrNil(v any) *auth.User {
	u, _ := v.(*auth.User)
	return u
}

// MockOneTimeCodeRepository is a mock auth.OneTimeCodeRepository.
type MockOneTimeCodeRepository struct {
	mock.Mock
}

// NewMockOneTimeCodeRepository creates a MockOneTimeCodeRepository that asserts its expectations on cleanup.
func NewMockOneTimeCodeRepository(t cleanup) *MockOneTimeCodeRepository {
	m := &MockOneTimeCodeRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOneTimeCodeRepository) Upsert(ctx context.Context, code *auth.OneTimeCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockOneTimeCodeRepository) Latest(ctx context.Context, email string) (*auth.OneTimeCode, error) {
	args := m.Called(ctx, email)
	code, _ := args.Get(0).(*auth.OneTimeCode)
	return code, args.Error(1)
}

func (m *MockOneTimeCodeRepository) Delete(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t cleanup) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockNotifier is a mock auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a MockNotifier that asserts its expectations on cleanup.
func NewMockNotifier(t cleanup) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) Send(ctx context.Context, msg auth.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
