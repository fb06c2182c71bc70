// Package fieldcrypt encrypts individual string fields with AES-256-GCM and
// derives the deterministic email hash used for lookups.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32
	ivSize  = 12
	tagSize = 16
)

var (
	// ErrInvalidKey indicates the configured key is missing or not 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (base64, hex, or raw)")
	// ErrTamperOrKeyMismatch indicates a stored value failed authentication.
	ErrTamperOrKeyMismatch = errors.New("ciphertext tampered or key mismatch")
)

// Cipher seals and opens field values. Stored form is base64(iv || tag || ciphertext).
type Cipher struct {
	aead cipher.AEAD
}

// ParseKey decodes the configured secret, trying base64, then hex, then raw
// bytes. raw is not trimmed: spaces in a raw key are key material.
func ParseKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, ErrInvalidKey
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := hex.DecodeString(raw); err == nil && len(b) == KeySize {
		return b, nil
	}
	if len(raw) == KeySize {
		return []byte(raw), nil
	}
	return nil, ErrInvalidKey
}

// New builds a Cipher for a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV. Empty input is returned unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, ivSize+tagSize+len(body))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, body...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt. Empty input is returned unchanged.
func (c *Cipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: malformed payload", ErrTamperOrKeyMismatch)
	}
	if len(data) < ivSize+tagSize {
		return "", fmt.Errorf("%w: payload too short", ErrTamperOrKeyMismatch)
	}
	iv := data[:ivSize]
	tag := data[ivSize : ivSize+tagSize]
	body := data[ivSize+tagSize:]

	sealed := make([]byte, 0, len(body)+tagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)
	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrTamperOrKeyMismatch
	}
	return string(plain), nil
}
