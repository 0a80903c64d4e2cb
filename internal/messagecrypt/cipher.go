// Package messagecrypt encrypts private message content at rest.
//
// Values are sealed with AES-256-GCM under a key derived from the configured
// secret and stored as "enc:v1:" followed by base64(nonce || ciphertext).
// Values without that prefix are treated as legacy plaintext.
package messagecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	envelopePrefix = "enc:v1:"
	keyInfo        = "quad/messagecrypt/v1"
	keySize        = 32
)

var (
	// ErrEmptyKey is returned when no secret is configured.
	ErrEmptyKey = errors.New("messagecrypt: empty encryption key")
	// ErrCiphertext is returned for malformed or unauthenticated envelopes.
	ErrCiphertext = errors.New("messagecrypt: invalid ciphertext")
)

// Cipher seals and opens message strings. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-256 key from secret with HKDF-SHA256.
func NewCipher(secret string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptyKey
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive message key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init message cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init message cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// IsSealed reports whether s carries the encryption envelope.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, envelopePrefix)
}

// Encrypt seals plain. Empty input and input that is already a valid
// envelope for this key are returned unchanged.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return plain, nil
	}
	if IsSealed(plain) {
		if _, err := c.Decrypt(plain); err == nil {
			return plain, nil
		}
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed value. Input without the envelope is returned as-is.
func (c *Cipher) Decrypt(s string) (string, error) {
	if !IsSealed(s) {
		return s, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, envelopePrefix))
	if err != nil {
		return "", ErrCiphertext
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrCiphertext
	}

	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plain), nil
}
