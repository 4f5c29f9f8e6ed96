// Package secrets encrypts sensitive configuration values (API keys and
// tokens) before they are written to the database. Values are sealed with
// AES-256-GCM and stored as "iv:ciphertext:tag" with each segment hex
// encoded, so existing rows written by earlier deployments stay readable.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be exactly 32 bytes")
	// ErrMalformedCiphertext is returned when a stored value does not match
	// the iv:ciphertext:tag layout.
	ErrMalformedCiphertext = errors.New("malformed encrypted value")
)

// Cipher seals and opens configuration values with a single symmetric key.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the iv:ciphertext:tag hex encoding.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the auth tag to the ciphertext; split it back out so the
	// stored format keeps the tag as its own segment.
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(ct),
		hex.EncodeToString(tag)), nil
}

// Decrypt opens a value produced by Encrypt. Tampered or truncated values
// fail authentication and return an error.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformedCiphertext
	}

	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypting value: %w", err)
	}

	return string(plaintext), nil
}
