// Package crypto encrypts account passwords kept in the record store.
// This is part of the Functional Core - all functions are pure with no I/O
// beyond reading nonces from crypto/rand.
//
// Passwords are encrypted at rest using AES-256-GCM with a key derived from
// the platform master secret via Argon2id.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyTooShort is returned when the encryption key is too short.
	ErrKeyTooShort = errors.New("encryption key must be at least 32 bytes")

	// ErrEmptySecret is returned when deriving a key from an empty secret.
	ErrEmptySecret = errors.New("master secret is empty")

	// ErrInvalidCiphertext is returned when the ciphertext cannot hold a nonce.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptionFailed is returned on a wrong key or corrupted data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// Key Derivation
// =============================================================================

const (
	KeySize = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey derives a 32-byte AES-256 key from a secret and salt with Argon2id.
// The result is deterministic so the same configuration always opens old records.
func DeriveKey(secret, salt string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return argon2.IDKey([]byte(secret), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}

// =============================================================================
// AES-256-GCM Encryption
// =============================================================================

// Encrypt encrypts plaintext using AES-256-GCM.
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) < KeySize {
		return nil, ErrKeyTooShort
	}
	block, err := aes.NewCipher(key[:KeySize])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
