package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Salt size in bytes
	KeySize      = 32     // AES-256 key size
	SecretSize   = 32     // Device secret size
	NonceSize    = 12     // GCM nonce size
	TagSize      = 16     // GCM authentication tag size
	DefaultIters = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidKey        = errors.New("invalid key size")
)

// KDF derives the vault key from the device secret
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a KDF with a random salt. Non-positive iterations fall back to DefaultIters.
func NewKDF(iterations int) (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if iterations <= 0 {
		iterations = DefaultIters
	}

	return &KDF{
		Salt:       salt,
		Iterations: iterations,
	}, nil
}

// DeriveKey derives an encryption key from a secret
func (k *KDF) DeriveKey(secret []byte) []byte {
	return pbkdf2.Key(secret, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Encryptor seals and opens values with AES-256-GCM
type Encryptor struct {
	key  []byte
	aead cipher.AEAD
}

// NewEncryptor creates an encryptor for a KeySize key. The key is copied.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	owned := append([]byte(nil), key...)

	block, err := aes.NewCipher(owned)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{key: owned, aead: gcm}, nil
}

// Seal encrypts plaintext bound to label. Output is nonce || ciphertext || tag.
func (e *Encryptor) Seal(plaintext, label []byte) ([]byte, error) {
	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	copy(out, nonce)
	return e.aead.Seal(out, nonce, plaintext, label), nil
}

// Open decrypts a value produced by Seal with the same label
func (e *Encryptor) Open(sealed, label []byte) ([]byte, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := e.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], label)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Destroy clears the encryptor's key copy from memory
func (e *Encryptor) Destroy() {
	ClearBytes(e.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
