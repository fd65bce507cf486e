// Package crypto seals values that must live in the database but must never
// be readable out of it, specifically the GitHub OAuth tokens the repository
// authorization broker stores. A leaked row must not yield a usable token,
// and a tampered row must fail closed rather than decrypt to garbage, so the
// cipher is AES-256-GCM: confidentiality and authenticated integrity in one
// primitive. The master key arrives via the environment and never touches
// configuration files.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength     = 32
	minSaltLength = 16
	// minIterations is the floor under which a configured PBKDF2 count is
	// replaced by the secure default.
	minIterations     = 10000
	defaultIterations = 100000
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext fails base64 decoding or is too short to contain a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when AES-GCM authentication fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when a derivation salt is under 16 bytes.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
)

// TokenCipher seals and opens token material. The AEAD is constructed once at
// build time; a TokenCipher is safe for concurrent use.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a cipher over a 32-byte master key
func NewTokenCipher(masterKey []byte) (*TokenCipher, error) {
	if len(masterKey) != keyLength {
		return nil, ErrKeyLengthInvalid
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{aead: aead}, nil
}

// DeriveTokenCipher builds a cipher from a passphrase via PBKDF2-SHA256.
// Intended for tooling; the server takes a raw key from the environment.
func DeriveTokenCipher(passphrase string, salt []byte, iterations int) (*TokenCipher, error) {
	if len(salt) < minSaltLength {
		return nil, ErrSaltTooShort
	}
	if iterations < minIterations {
		iterations = defaultIterations
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLength, sha256.New)
	return NewTokenCipher(key)
}

// Seal encrypts plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext). The empty string passes through unchanged so
// absent tokens stay absent.
func (tc *TokenCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, tc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := tc.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts a value produced by Seal
func (tc *TokenCipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	if len(raw) < tc.aead.NonceSize() {
		return "", ErrCiphertextCorrupted
	}

	nonce, ciphertext := raw[:tc.aead.NonceSize()], raw[tc.aead.NonceSize():]
	plaintext, err := tc.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// GenerateKey creates a cryptographically secure random 32-byte key
func GenerateKey() ([]byte, error) {
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a random salt, padding short requests up to the
// 16-byte minimum.
func GenerateSalt(length int) ([]byte, error) {
	if length < minSaltLength {
		length = minSaltLength
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
