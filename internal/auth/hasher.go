// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2Params are the cost settings recorded in an argon2id PHC string.
type argon2Params struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
	keyLen  uint32
}

// currentArgon2 follows the OWASP argon2id baseline. Stored hashes weaker
// than this report NeedsUpgrade.
var currentArgon2 = argon2Params{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

const argon2SaltLen = 16

// weakerThan reports whether p costs less than want in memory, time or output size.
func (p argon2Params) weakerThan(want argon2Params) bool {
	return p.memory < want.memory || p.time < want.time || p.keyLen < want.keyLen
}

// argon2Hash is a decoded "$argon2id$v=19$m=..,t=..,p=..$<salt>$<key>" credential.
type argon2Hash struct {
	params argon2Params
	salt   []byte
	key    []byte
}

func (a argon2Hash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.params.memory, a.params.time, a.params.threads,
		b64.EncodeToString(a.salt), b64.EncodeToString(a.key))
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").Errorf(format, args...)
}

// parseArgon2Hash decodes a PHC string produced by Hash.
func parseArgon2Hash(encoded string) (argon2Hash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return argon2Hash{}, invalidHash("invalid hash format")
	}
	algo, version, cost, salt, key := fields[1], fields[2], fields[3], fields[4], fields[5]

	if algo != "argon2id" {
		return argon2Hash{}, invalidHash("unsupported hash algorithm: %s", algo)
	}

	var v int
	if _, err := fmt.Sscanf(version, "v=%d", &v); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").With("field", "version").Wrap(err)
	}
	if v != argon2.Version {
		return argon2Hash{}, invalidHash("unsupported argon2 version %d", v)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(cost, "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").With("field", "params").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return argon2Hash{}, invalidHash("threads value %d outside 1..255", threads)
	}

	h := argon2Hash{params: argon2Params{memory: memory, time: iterations, threads: uint8(threads)}}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(salt); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").With("field", "salt").Wrap(err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(key); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").With("field", "key").Wrap(err)
	}
	if len(h.key) == 0 || len(h.key) > 1<<10 {
		return argon2Hash{}, invalidHash("invalid hash key length: %d", len(h.key))
	}
	h.params.keyLen = uint32(len(h.key))
	return h, nil
}

// derive computes the argon2id key of password under these params and salt.
func (a argon2Hash) derive(password string) []byte {
	p := a.params
	return argon2.IDKey([]byte(password), a.salt, p.time, p.memory, p.threads, p.keyLen)
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be upgraded to argon2id.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
// Verify also accepts bcrypt hashes and, when a LegacyCipher is configured,
// legacy encrypted credentials. Both report NeedsUpgrade.
type Argon2idHasher struct {
	legacy *LegacyCipher
}

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithLegacyCipher lets Verify accept credentials sealed by c.
func WithLegacyCipher(c *LegacyCipher) HasherOption {
	return func(h *Argon2idHasher) {
		h.legacy = c
	}
}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher(opts ...HasherOption) *Argon2idHasher {
	h := &Argon2idHasher{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash produces an argon2id PHC string for password with a fresh salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	enc := argon2Hash{params: currentArgon2, salt: make([]byte, argon2SaltLen)}
	if _, err := rand.Read(enc.salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	enc.key = enc.derive(password)
	return enc.String(), nil
}

// Verify checks password against an argon2id, bcrypt or legacy credential.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case isBcryptHash(encodedHash):
		return verifyBcrypt(password, encodedHash)
	case IsLegacyCiphertext(encodedHash):
		return h.verifyLegacy(password, encodedHash)
	}

	stored, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(stored.derive(password), stored.key) == 1, nil
}

// NeedsUpgrade reports whether hash is not argon2id, or is argon2id with
// weaker parameters than Hash uses today.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	if !strings.HasPrefix(hash, "$argon2id$") {
		return true
	}
	stored, err := parseArgon2Hash(hash)
	if err != nil {
		return true
	}
	return stored.params.weakerThan(currentArgon2)
}

func (h *Argon2idHasher) verifyLegacy(password, encoded string) (bool, error) {
	if h.legacy == nil {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("legacy credential found but no legacy secret configured")
	}
	plain, err := h.legacy.Decrypt(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(password)) == 1, nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, oops.Code("AUTH_INVALID_HASH").With("format", "bcrypt").Wrap(err)
}
