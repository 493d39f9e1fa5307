// Package app assembles the pinlock services from configuration: the state
// file, the secure backend, the lock stores and the biometric gateway.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"strings"

	"github.com/illarion/pinlock/internal/biometric"
	"github.com/illarion/pinlock/internal/config"
	"github.com/illarion/pinlock/internal/core"
	"github.com/illarion/pinlock/internal/crypto"
	"github.com/illarion/pinlock/internal/keyring"
	"github.com/illarion/pinlock/internal/security"
	"github.com/illarion/pinlock/internal/storage"
)

// App owns every long-lived resource of a pinlock process
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	InstallID   string
	Credentials *core.CredentialStore
	Settings    *core.SettingsStore
	Biometric   *biometric.Gateway

	dir   *security.StateDir
	store *storage.Storage
	vault *storage.SecureBucket
}

// Open opens the state file under cfg.DataDir and wires the stores. The
// caller must Close the returned App.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dir, err := security.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := dir.CheckPermissions(); err != nil {
		logger.Warn("data directory permissions are too open", "error", err)
	}

	path, err := dir.Resolve(cfg.StateFile)
	if err != nil {
		dir.Close()
		return nil, fmt.Errorf("invalid state file: %w", err)
	}

	store, err := storage.Open(path)
	if err != nil {
		dir.Close()
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, dir: dir, store: store}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("state file opened", "path", path, "backend", cfg.SecureBackend)
	return a, nil
}

func (a *App) wire() error {
	if err := a.store.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize state file: %w", err)
	}
	id, err := a.store.GetOrCreateInstallID()
	if err != nil {
		return err
	}
	a.InstallID = id

	var secure core.SecureStore
	switch a.Config.SecureBackend {
	case config.BackendKeyring:
		secure = keyring.NewStore(id)
	case config.BackendVault:
		secret, err := keyring.DeviceSecret(id)
		if err != nil {
			return err
		}
		defer crypto.ClearBytes(secret)

		a.vault, err = storage.NewSecureBucket(a.store, secret, a.Config.KDFIterations)
		if err != nil {
			return err
		}
		secure = a.vault
	default:
		return fmt.Errorf("%w: secure_backend %q", config.ErrInvalidConfig, a.Config.SecureBackend)
	}

	sensors, err := Sensors(a.Config)
	if err != nil {
		return err
	}

	a.Credentials = core.NewCredentialStore(secure, a.Logger)
	a.Settings = core.NewSettingsStore(storage.NewPlainBucket(a.store), a.Credentials, a.Logger)
	a.Biometric = biometric.NewGateway(a.Logger, sensors...)
	return nil
}

// Sensors builds the configured biometric sensors
func Sensors(cfg *config.Config) ([]biometric.Sensor, error) {
	sensors := make([]biometric.Sensor, 0, len(cfg.Biometric.Sensors))
	for i, sc := range cfg.Biometric.Sensors {
		kind, err := biometric.ParseType(sc.Type)
		if err != nil {
			return nil, fmt.Errorf("biometric sensor %d: %w", i, err)
		}
		if sc.Driver == config.DriverFprintd {
			if kind != biometric.Fingerprint {
				return nil, fmt.Errorf("biometric sensor %d: fprintd only reads fingerprints", i)
			}
			name := sc.User
			if name == "" {
				current, err := user.Current()
				if err != nil {
					return nil, fmt.Errorf("biometric sensor %d: failed to look up user: %w", i, err)
				}
				name = current.Username
			}
			sensors = append(sensors, biometric.Fprintd(name))
			continue
		}
		cmd, err := biometric.NewCommand(kind, sc.AvailableCmd, sc.VerifyCmd)
		if err != nil {
			return nil, fmt.Errorf("biometric sensor %d: %w", i, err)
		}
		sensors = append(sensors, cmd)
	}
	return sensors, nil
}

// Deps returns the services the lock controllers need
func (a *App) Deps() core.Deps {
	return core.Deps{
		Credentials: a.Credentials,
		Settings:    a.Settings,
		Biometric:   a.Biometric,
		Logger:      a.Logger,
	}
}

// Policy returns the configured lockout thresholds
func (a *App) Policy() core.LockoutPolicy {
	return core.LockoutPolicy{MaxAttempts: a.Config.MaxAttempts, Cooldown: a.Config.Cooldown}
}

// Storage exposes the state file for maintenance commands
func (a *App) Storage() *storage.Storage {
	return a.store
}

// Close releases the vault key, the state file and the directory handle
func (a *App) Close() error {
	var errs []error
	if a.vault != nil {
		errs = append(errs, a.vault.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.dir != nil {
		errs = append(errs, a.dir.Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from log_level and log_format
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("%w: log_level %q", config.ErrInvalidConfig, cfg.LogLevel)
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
