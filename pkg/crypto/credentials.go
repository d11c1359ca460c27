// Package crypto seals secret bundles at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the sealing key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when a sealed value cannot be opened.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// Sealer encrypts and authenticates secret payloads. The associated data binds a
// ciphertext to the vault key it was stored under, so entries cannot be swapped.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a sealer from a key string. A base64 value that decodes to
// exactly 32 bytes is used as the key; anything else is treated as a passphrase
// and hashed with SHA-256.
func NewSealer(keyInput string) (*Sealer, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	key := deriveKey(keyInput)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

func deriveKey(keyInput string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(keyInput); err == nil && len(decoded) == 32 {
		return decoded
	}
	hash := sha256.Sum256([]byte(keyInput))
	return hash[:]
}

// Seal returns base64(nonce || ciphertext || tag) for plaintext bound to aad.
func (s *Sealer) Seal(plaintext []byte, aad string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, plaintext, []byte(aad))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any tampering, a wrong key or a different aad yields ErrDecryptionFailed.
func (s *Sealer) Open(sealed string, aad string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}

	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize+s.gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], []byte(aad))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return plaintext, nil
}
