package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/illarion/pinlock/internal/storage"
)

const settingsKey = "lock_settings"

// Factor selects which proofs unlock the gate
type Factor string

const (
	FactorPIN       Factor = "pin"
	FactorBiometric Factor = "biometric"
	FactorBoth      Factor = "both"
)

// ParseFactor parses a factor name
func ParseFactor(s string) (Factor, error) {
	f := Factor(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFactor, s)
	}
	return f, nil
}

// Valid reports whether f is a known factor
func (f Factor) Valid() bool {
	switch f {
	case FactorPIN, FactorBiometric, FactorBoth:
		return true
	}
	return false
}

// UsesBiometric reports whether a biometric prompt may stand in for the PIN
func (f Factor) UsesBiometric() bool {
	return f == FactorBiometric || f == FactorBoth
}

// LockSettings are the non-sensitive lock preferences
type LockSettings struct {
	Enabled bool   `json:"enabled"`
	Factor  Factor `json:"factor"`
}

// DefaultSettings is the opt-in default: lock disabled, PIN factor
func DefaultSettings() LockSettings {
	return LockSettings{Enabled: false, Factor: FactorPIN}
}

// PlainStore is a key-value store for non-sensitive values.
// Get reports storage.ErrNotFound for missing keys.
type PlainStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// SettingsStore persists LockSettings
type SettingsStore struct {
	store  PlainStore
	creds  *CredentialStore
	logger *slog.Logger
}

// NewSettingsStore returns a SettingsStore. creds is cleared along with the settings.
func NewSettingsStore(store PlainStore, creds *CredentialStore, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SettingsStore{store: store, creds: creds, logger: logger}
}

// Get returns the stored settings or DefaultSettings when none are stored.
// Unreadable settings are an error, never a silent "disabled".
func (s *SettingsStore) Get(ctx context.Context) (LockSettings, error) {
	data, err := s.store.Get(ctx, settingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return LockSettings{}, fmt.Errorf("failed to read lock settings: %w", err)
	}

	var settings LockSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return LockSettings{}, fmt.Errorf("%w: %v", ErrSettingsCorrupt, err)
	}
	if !settings.Factor.Valid() {
		return LockSettings{}, fmt.Errorf("%w: factor %q", ErrSettingsCorrupt, settings.Factor)
	}
	return settings, nil
}

// Save stores settings
func (s *SettingsStore) Save(ctx context.Context, settings LockSettings) error {
	if !settings.Factor.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFactor, settings.Factor)
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal lock settings: %w", err)
	}
	if err := s.store.Set(ctx, settingsKey, data); err != nil {
		s.logger.Error("failed to save lock settings", "error", err)
		return fmt.Errorf("failed to save lock settings: %w", err)
	}
	s.logger.Info("lock settings saved", "enabled", settings.Enabled, "factor", settings.Factor)
	return nil
}

// Clear resets settings to the default and removes the PIN. Settings go
// first: a failed PIN removal then leaves a disabled lock with a stale PIN
// (overwritten by the next setup) rather than an enabled lock without one.
func (s *SettingsStore) Clear(ctx context.Context) error {
	if err := s.Save(ctx, DefaultSettings()); err != nil {
		return err
	}
	return s.creds.RemovePin(ctx)
}

// SetFactor changes the factor of an enabled lock. Biometric factors need
// an available biometric gateway.
func (s *SettingsStore) SetFactor(ctx context.Context, factor Factor, bio BiometricGateway) error {
	if !factor.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFactor, factor)
	}
	settings, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return ErrNotEnabled
	}
	if factor.UsesBiometric() && (bio == nil || !bio.Available(ctx)) {
		return ErrBiometricUnavailable
	}
	settings.Factor = factor
	return s.Save(ctx, settings)
}
