// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopkeep/shopkeep/internal/auth"
)

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("different passwords produce different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash("password1")
		require.NoError(t, err)
		hash2, err := hasher.Hash("password2")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.Error(t, err)
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid hash format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "not-a-valid-hash")
		assert.Error(t, err)
	})

	t.Run("wrong algorithm returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported hash algorithm")
	})

	t.Run("invalid version format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid parameters format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$invalid$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid salt base64 returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid hash base64 returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!")
		assert.Error(t, err)
	})

	t.Run("threads overflow returns error", func(t *testing.T) {
		// threads=256 exceeds uint8 max (255)
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "threads value")
	})

	t.Run("zero threads returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("unknown argon2 version returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported argon2 version")
	})
}

// encodeArgon2id builds a PHC string with explicit cost settings.
func encodeArgon2id(password string, memory, iterations uint32, threads uint8) string {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte(password), salt, iterations, memory, threads, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, memory, iterations, threads,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(key))
}

func TestArgon2idParameterUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("weaker memory cost verifies and needs upgrade", func(t *testing.T) {
		weak := encodeArgon2id("pw1", 8*1024, 1, 1)
		ok, err := hasher.Verify("pw1", weak)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, hasher.NeedsUpgrade(weak))
	})

	t.Run("current cost does not need upgrade", func(t *testing.T) {
		assert.False(t, hasher.NeedsUpgrade(encodeArgon2id("pw1", 64*1024, 1, 4)))
	})

	t.Run("stronger cost does not need upgrade", func(t *testing.T) {
		assert.False(t, hasher.NeedsUpgrade(encodeArgon2id("pw1", 64*1024, 2, 4)))
	})

	t.Run("malformed argon2id needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("$argon2id$garbage"))
	})
}

func TestVerifyBcryptUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	// This is a valid bcrypt hash for testing upgrade detection
	bcryptHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"

	t.Run("detects bcrypt hash needing upgrade", func(t *testing.T) {
		needsUpgrade := hasher.NeedsUpgrade(bcryptHash)
		assert.True(t, needsUpgrade)
	})

	t.Run("argon2id hash does not need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})
}

func TestVerifyBcrypt(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := hasher.Verify("legacy-pass", string(hash))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password fails without error", func(t *testing.T) {
		ok, err := hasher.Verify("nope", string(hash))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("truncated hash returns error", func(t *testing.T) {
		_, err := hasher.Verify("legacy-pass", "$2a$10$short")
		assert.Error(t, err)
	})
}

func TestVerifyLegacyCiphertext(t *testing.T) {
	cipher, err := auth.NewLegacyCipher("pass-sec")
	require.NoError(t, err)
	sealed, err := cipher.Encrypt("pw1")
	require.NoError(t, err)

	t.Run("verifies with configured cipher", func(t *testing.T) {
		hasher := auth.NewArgon2idHasher(auth.WithLegacyCipher(cipher))
		ok, err := hasher.Verify("pw1", sealed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hasher.Verify("pw2", sealed)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, hasher.NeedsUpgrade(sealed))
	})

	t.Run("errors without configured cipher", func(t *testing.T) {
		hasher := auth.NewArgon2idHasher()
		_, err := hasher.Verify("pw1", sealed)
		assert.Error(t, err)
	})

	t.Run("errors with wrong secret", func(t *testing.T) {
		other, err := auth.NewLegacyCipher("different")
		require.NoError(t, err)
		hasher := auth.NewArgon2idHasher(auth.WithLegacyCipher(other))
		ok, err := hasher.Verify("pw1", sealed)
		if err == nil {
			// A wrong key can decrypt to garbage with valid padding by chance.
			assert.False(t, ok)
		}
	})
}

func TestHash_NeverStoresPlaintext(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	hash, err := hasher.Hash("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", hash)
	assert.NotContains(t, hash, "pw1")

	ok, err := hasher.Verify("pw1", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}
