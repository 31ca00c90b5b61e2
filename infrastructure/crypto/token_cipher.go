package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12 // 96-bit nonce for AES-GCM
	requiredKeyLength = 32 // AES-256
	sep               = "|" // base64(nonce)|base64(ciphertext)
)

// TokenCipher encrypts credential token fields at rest with AES-256-GCM.
// The key comes from configuration at startup; there is no ambient key state.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a base64-encoded 32-byte key.
func NewTokenCipher(keyB64 string) (*TokenCipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyB64))
	if err != nil {
		if key, err = base64.RawStdEncoding.DecodeString(strings.TrimSpace(keyB64)); err != nil {
			return nil, fmt.Errorf("decode encryption key: %w", err)
		}
	}
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("encryption key must decode to %d bytes, got %d", requiredKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Encrypt returns base64(nonce)|base64(ciphertext).
func (c *TokenCipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := c.aead.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. It fails on any tampering, truncation or wrong key.
func (c *TokenCipher) Decrypt(encoded string) ([]byte, error) {
	parts := strings.Split(encoded, sep)
	if len(parts) != 2 {
		return nil, errors.New("invalid format: expected base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return nil, fmt.Errorf("invalid nonce: expected %d bytes, got %d", nonceSizeGCM, len(nonce))
	}
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return pt, nil
}
