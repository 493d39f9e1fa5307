package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/illarion/pinlock/internal/crypto"
)

// SecureBucket stores values in the secrets bucket sealed with AES-256-GCM.
// Each value is bound to its key as associated data.
type SecureBucket struct {
	s   *Storage
	enc *crypto.Encryptor
}

// NewSecureBucket derives the vault key from secret and the KDF parameters
// kept in the config bucket. The parameters are created on first use with
// the given iteration count; later opens reuse the stored ones.
func NewSecureBucket(s *Storage, secret []byte, iterations int) (*SecureBucket, error) {
	kdf, err := loadKDF(s, iterations)
	if err != nil {
		return nil, err
	}

	key := kdf.DeriveKey(secret)
	defer crypto.ClearBytes(key)

	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	return &SecureBucket{s: s, enc: enc}, nil
}

func loadKDF(s *Storage, iterations int) (*crypto.KDF, error) {
	salt, err := s.GetSalt()
	if err == nil {
		iters, err := s.GetIterations()
		if err != nil {
			return nil, fmt.Errorf("failed to read iterations: %w", err)
		}
		return &crypto.KDF{Salt: salt, Iterations: int(iters)}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	kdf, err := crypto.NewKDF(iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to create KDF: %w", err)
	}
	if err := s.SetKDF(kdf.Salt, kdf.Iterations); err != nil {
		return nil, fmt.Errorf("failed to store KDF parameters: %w", err)
	}
	return kdf, nil
}

// Get opens the value stored under key. A value that fails authentication
// (wrong device secret, tampering) is reported as crypto.ErrAuthFailed.
func (b *SecureBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sealed, err := b.s.Get(SecretsBucket, key)
	if err != nil {
		return nil, err
	}
	plain, err := b.enc.Open(sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return plain, nil
}

// Set seals value and stores it under key
func (b *SecureBucket) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sealed, err := b.enc.Seal(value, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", key, err)
	}
	return b.s.Put(SecretsBucket, key, sealed)
}

// Delete removes key
func (b *SecureBucket) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.s.Delete(SecretsBucket, key)
}

// Close destroys the vault key
func (b *SecureBucket) Close() error {
	b.enc.Destroy()
	return nil
}
