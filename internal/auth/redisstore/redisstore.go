// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package redisstore provides a Redis-backed one-time code repository.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/shopkeep/shopkeep/internal/auth"
)

// DefaultPrefix namespaces code keys when no prefix is configured.
const DefaultPrefix = "shopkeep:otp"

const (
	fieldCode      = "code"
	fieldCreatedAt = "created_at"
)

// Compile-time interface check.
var _ auth.OneTimeCodeRepository = (*OneTimeCodeStore)(nil)

// OneTimeCodeStore implements auth.OneTimeCodeRepository with one hash per email.
type OneTimeCodeStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// Option configures a OneTimeCodeStore.
type Option func(*OneTimeCodeStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *OneTimeCodeStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets a TTL on stored codes. It must exceed the code validity
// window; expiry is still decided on read.
func WithRetention(d time.Duration) Option {
	return func(s *OneTimeCodeStore) {
		s.retention = d
	}
}

// NewOneTimeCodeStore creates a new OneTimeCodeStore.
func NewOneTimeCodeStore(client redis.UniversalClient, opts ...Option) (*OneTimeCodeStore, error) {
	if client == nil {
		return nil, oops.Code("CODE_STORE_INVALID").Errorf("redis client is required")
	}
	s := &OneTimeCodeStore{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention < 0 {
		return nil, oops.Code("CODE_STORE_INVALID").Errorf("retention cannot be negative")
	}
	return s, nil
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "parse redis url").Wrap(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping redis").Wrap(err)
	}
	return client, nil
}

func (s *OneTimeCodeStore) key(email string) string {
	return s.prefix + ":" + auth.NormalizeEmail(email)
}

// Upsert replaces any stored code for the email.
func (s *OneTimeCodeStore) Upsert(ctx context.Context, code *auth.OneTimeCode) error {
	key := s.key(code.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldCode, code.Code,
			fieldCreatedAt, strconv.FormatInt(code.CreatedAt.UTC().UnixNano(), 10))
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return oops.Code("CODE_UPSERT_FAILED").
			With("operation", "upsert code").
			With("email", auth.NormalizeEmail(code.Email)).
			Wrap(err)
	}
	return nil
}

// Latest returns the stored code for the email.
func (s *OneTimeCodeStore) Latest(ctx context.Context, email string) (*auth.OneTimeCode, error) {
	email = auth.NormalizeEmail(email)
	fields, err := s.client.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "get latest code").
			With("email", email).
			Wrap(err)
	}
	if len(fields) == 0 {
		return nil, oops.Code("CODE_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}

	nanos, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, oops.Code("CODE_GET_FAILED").
			With("operation", "parse created_at").
			With("email", email).
			Wrap(err)
	}
	return &auth.OneTimeCode{
		Email:     email,
		Code:      fields[fieldCode],
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}

// Delete removes any stored code for the email.
func (s *OneTimeCodeStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return oops.Code("CODE_DELETE_FAILED").
			With("operation", "delete code").
			With("email", auth.NormalizeEmail(email)).
			Wrap(err)
	}
	return nil
}
