// Package keyring keeps pinlock secrets in the OS keyring (macOS Keychain,
// Windows Credential Manager, Secret Service on Linux).
package keyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/illarion/pinlock/internal/crypto"
	"github.com/illarion/pinlock/internal/storage"
	"github.com/zalando/go-keyring"
)

const serviceName = "pinlock"

// Store is a secure key-value store backed by the OS keyring. Entries are
// scoped to one installation so two state files never share a credential.
type Store struct {
	installID string
}

// NewStore returns a Store for the given installation
func NewStore(installID string) *Store {
	return &Store{installID: installID}
}

func (s *Store) user(key string) string {
	return s.installID + ":" + key
}

// Get retrieves the value for key, storage.ErrNotFound if absent
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	encoded, err := keyring.Get(serviceName, s.user(key))
	if err != nil {
		return nil, mapErr(err)
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode keyring entry %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := keyring.Set(serviceName, s.user(key), base64.StdEncoding.EncodeToString(value)); err != nil {
		return fmt.Errorf("failed to write keyring entry %s: %w", key, err)
	}
	return nil
}

// Delete removes key, storage.ErrNotFound if absent
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(keyring.Delete(serviceName, s.user(key)))
}

// DeviceSecret returns the installation's device secret, creating it on
// first use. The vault backend derives its encryption key from it.
func DeviceSecret(installID string) ([]byte, error) {
	store := NewStore(installID)
	ctx := context.Background()

	secret, err := store.Get(ctx, "device")
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read device secret: %w", err)
	}

	secret, err = crypto.GenerateRandom(crypto.SecretSize)
	if err != nil {
		return nil, err
	}
	if err := store.Set(ctx, "device", secret); err != nil {
		crypto.ClearBytes(secret)
		return nil, fmt.Errorf("failed to save device secret: %w", err)
	}
	return secret, nil
}

// HasDeviceSecret reports whether a device secret exists for the installation
func HasDeviceSecret(installID string) bool {
	_, err := keyring.Get(serviceName, NewStore(installID).user("device"))
	return err == nil
}

func mapErr(err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return storage.ErrNotFound
	}
	return err
}
