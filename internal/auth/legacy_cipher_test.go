// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeep/shopkeep/internal/auth"
	"github.com/shopkeep/shopkeep/pkg/errutil"
)

// Envelopes produced by `openssl enc -aes-256-cbc -md md5 -pass pass:pass-sec -a`,
// the same format the previous store wrote.
var legacyVectors = []string{
	"U2FsdGVkX18BAgMEBQYHCIYyaTzVuMHyoMrNWg1xexY=",
	"U2FsdGVkX1+mW0jgYZUVZdzrMC4anHvSbm++/0mTvDs=",
}

func TestNewLegacyCipher_EmptyPassphrase(t *testing.T) {
	c, err := auth.NewLegacyCipher("")
	assert.Nil(t, c)
	errutil.AssertErrorCode(t, err, "AUTH_LEGACY_SECRET_EMPTY")
}

func TestLegacyCipher_DecryptKnownVectors(t *testing.T) {
	c, err := auth.NewLegacyCipher("pass-sec")
	require.NoError(t, err)

	for _, v := range legacyVectors {
		assert.True(t, auth.IsLegacyCiphertext(v))
		plain, err := c.Decrypt(v)
		require.NoError(t, err)
		assert.Equal(t, "pw1", plain)
	}
}

func TestLegacyCipher_RoundTrip(t *testing.T) {
	c, err := auth.NewLegacyCipher("pass-sec")
	require.NoError(t, err)

	for _, plain := range []string{"pw1", "exactly16bytes!!", "a much longer password with spaces and ünïcode"} {
		sealed, err := c.Encrypt(plain)
		require.NoError(t, err)
		assert.True(t, auth.IsLegacyCiphertext(sealed))
		assert.NotContains(t, sealed, plain)

		got, err := c.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestLegacyCipher_SaltIsRandom(t *testing.T) {
	c, err := auth.NewLegacyCipher("pass-sec")
	require.NoError(t, err)

	a, err := c.Encrypt("pw1")
	require.NoError(t, err)
	b, err := c.Encrypt("pw1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLegacyCipher_DecryptMalformed(t *testing.T) {
	c, err := auth.NewLegacyCipher("pass-sec")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "U2FsdGVkX1***"},
		{"header only", "U2FsdGVkX18BAgMEBQYHCA=="},
		{"missing header", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.input)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
		})
	}
}
