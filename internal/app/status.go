package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/illarion/pinlock/internal/biometric"
	"github.com/illarion/pinlock/internal/config"
	"github.com/illarion/pinlock/internal/core"
	"github.com/illarion/pinlock/internal/keyring"
	"github.com/illarion/pinlock/internal/security"
	"github.com/illarion/pinlock/internal/storage"
)

var errReadOnly = errors.New("status is read-only")

// Status is what `pinlock status` reports. Reading it needs no PIN.
type Status struct {
	Settings           core.LockSettings
	HasPin             bool
	BiometricAvailable bool
	BiometricType      biometric.Type
	Backend            string
	Path               string
	Initialized        bool
	InstallID          string
	// DeviceSecret is set when the vault backend finds its keyring entry
	DeviceSecret bool
	State        *storage.Info
}

// Inspect collects the lock state without verifying anything. Unlike Open
// it creates neither the state file nor the install id nor a device secret,
// so a missing secret is reported instead of replaced.
func Inspect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Status, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sensors, err := Sensors(cfg)
	if err != nil {
		return nil, err
	}
	gateway := biometric.NewGateway(logger, sensors...)

	st := &Status{
		Settings:           core.DefaultSettings(),
		BiometricAvailable: gateway.Available(ctx),
		Backend:            cfg.SecureBackend,
	}
	st.BiometricType, _ = gateway.FactorType(ctx)

	dir, err := security.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	st.Path, err = dir.Resolve(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("invalid state file: %w", err)
	}
	if _, err := dir.Stat(cfg.StateFile); errors.Is(err, os.ErrNotExist) {
		return st, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat state file: %w", err)
	}

	store, err := storage.Open(st.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	st.Initialized, err = store.IsInitialized()
	if err != nil || !st.Initialized {
		return st, err
	}

	st.State, err = store.Info()
	if err != nil {
		return nil, err
	}
	st.InstallID, err = store.GetInstallID()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	var secrets core.SecureStore
	switch cfg.SecureBackend {
	case config.BackendVault:
		secrets = sealedBucket{store}
		st.DeviceSecret = st.InstallID != "" && keyring.HasDeviceSecret(st.InstallID)
	case config.BackendKeyring:
		secrets = keyring.NewStore(st.InstallID)
	default:
		return nil, fmt.Errorf("%w: secure_backend %q", config.ErrInvalidConfig, cfg.SecureBackend)
	}

	creds := core.NewCredentialStore(secrets, logger)
	st.Settings, err = core.NewSettingsStore(storage.NewPlainBucket(store), creds, logger).Get(ctx)
	if err != nil {
		return nil, err
	}
	if st.InstallID != "" || cfg.SecureBackend == config.BackendVault {
		st.HasPin, err = creds.HasPin(ctx)
		if err != nil {
			return nil, err
		}
	}
	return st, nil
}

// sealedBucket hands out sealed secrets as stored. Presence checks work
// without the device secret; nothing is ever opened or written.
type sealedBucket struct {
	s *storage.Storage
}

func (b sealedBucket) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.s.Get(storage.SecretsBucket, key)
}

func (sealedBucket) Set(context.Context, string, []byte) error { return errReadOnly }

func (sealedBucket) Delete(context.Context, string) error { return errReadOnly }
