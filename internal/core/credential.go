package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/illarion/pinlock/internal/crypto"
	"github.com/illarion/pinlock/internal/storage"
)

const credentialKey = "pin"

// SecureStore is a key-value store that keeps values confidential at rest.
// Get and Delete report storage.ErrNotFound for missing keys.
type SecureStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CredentialStore keeps the single PIN of this installation
type CredentialStore struct {
	store  SecureStore
	logger *slog.Logger
}

// NewCredentialStore returns a CredentialStore over store
func NewCredentialStore(store SecureStore, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CredentialStore{store: store, logger: logger}
}

// SavePin overwrites any existing credential
func (c *CredentialStore) SavePin(ctx context.Context, pin string) error {
	if !ValidPin(pin) {
		return ErrInvalidPin
	}
	value := []byte(pin)
	defer crypto.ClearBytes(value)

	if err := c.store.Set(ctx, credentialKey, value); err != nil {
		c.logger.Error("failed to save pin", "error", err)
		return fmt.Errorf("failed to save pin: %w", err)
	}
	c.logger.Info("pin saved")
	return nil
}

// VerifyPin reports whether input equals the stored credential. A missing
// credential verifies nothing and is not an error; storage failures are.
func (c *CredentialStore) VerifyPin(ctx context.Context, input string) (bool, error) {
	stored, err := c.store.Get(ctx, credentialKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		c.logger.Error("failed to read pin", "error", err)
		return false, fmt.Errorf("failed to read pin: %w", err)
	}
	defer crypto.ClearBytes(stored)

	candidate := []byte(input)
	defer crypto.ClearBytes(candidate)
	return crypto.ConstantTimeCompare(stored, candidate), nil
}

// RemovePin deletes the credential. Removing a missing credential is a no-op.
func (c *CredentialStore) RemovePin(ctx context.Context) error {
	err := c.store.Delete(ctx, credentialKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.logger.Error("failed to remove pin", "error", err)
		return fmt.Errorf("failed to remove pin: %w", err)
	}
	c.logger.Info("pin removed")
	return nil
}

// HasPin reports whether a credential is stored
func (c *CredentialStore) HasPin(ctx context.Context) (bool, error) {
	stored, err := c.store.Get(ctx, credentialKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read pin: %w", err)
	}
	crypto.ClearBytes(stored)
	return true, nil
}
