// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // G501: EVP_BytesToKey is defined over MD5
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/samber/oops"
)

const (
	legacySaltHeader = "Salted__"
	legacySaltLen    = 8
	legacyKeyLen     = 32
	legacyPrefix     = "U2FsdGVkX1" // base64 of "Salted__"
)

// LegacyCipher reads and writes the passphrase based AES-256-CBC envelope
// ("Salted__" + salt + ciphertext, base64) used by credentials imported from
// the previous store. New credentials are never written with it.
type LegacyCipher struct {
	passphrase []byte
}

// NewLegacyCipher creates a LegacyCipher for the given passphrase.
func NewLegacyCipher(passphrase string) (*LegacyCipher, error) {
	if passphrase == "" {
		return nil, oops.Code("AUTH_LEGACY_SECRET_EMPTY").Errorf("legacy cipher passphrase cannot be empty")
	}
	return &LegacyCipher{passphrase: []byte(passphrase)}, nil
}

// IsLegacyCiphertext reports whether value looks like a legacy envelope.
func IsLegacyCiphertext(value string) bool {
	return strings.HasPrefix(value, legacyPrefix)
}

// Encrypt seals plaintext with a random salt.
func (c *LegacyCipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, legacySaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key, iv := evpBytesToKey(c.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", oops.Code("AUTH_LEGACY_ENCRYPT_FAILED").Wrap(err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	envelope := make([]byte, 0, len(legacySaltHeader)+legacySaltLen+len(out))
	envelope = append(envelope, legacySaltHeader...)
	envelope = append(envelope, salt...)
	envelope = append(envelope, out...)
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a legacy envelope and returns the plaintext.
func (c *LegacyCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", oops.Code("AUTH_INVALID_HASH").With("format", "legacy").Wrap(err)
	}

	headerLen := len(legacySaltHeader) + legacySaltLen
	if len(raw) < headerLen+aes.BlockSize || !bytes.HasPrefix(raw, []byte(legacySaltHeader)) {
		return "", oops.Code("AUTH_INVALID_HASH").With("format", "legacy").Errorf("malformed legacy envelope")
	}

	body := raw[headerLen:]
	if len(body)%aes.BlockSize != 0 {
		return "", oops.Code("AUTH_INVALID_HASH").With("format", "legacy").Errorf("ciphertext is not block aligned")
	}

	key, iv := evpBytesToKey(c.passphrase, raw[len(legacySaltHeader):headerLen])
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", oops.Code("AUTH_LEGACY_DECRYPT_FAILED").Wrap(err)
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	plain, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok {
		// Wrong passphrase shows up as bad padding.
		return "", oops.Code("AUTH_LEGACY_DECRYPT_FAILED").Errorf("invalid padding")
	}
	return string(plain), nil
}

// evpBytesToKey derives an AES-256 key and IV the way OpenSSL does with MD5 and one round.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < legacyKeyLen+aes.BlockSize {
		h := md5.New() //nolint:gosec // G401: required for compatibility
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:legacyKeyLen], derived[legacyKeyLen : legacyKeyLen+aes.BlockSize]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
