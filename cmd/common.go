package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/illarion/pinlock/internal/app"
	"github.com/illarion/pinlock/internal/config"
	"github.com/illarion/pinlock/internal/core"
	"github.com/illarion/pinlock/internal/crypto"
	"github.com/illarion/pinlock/internal/security"
	"github.com/illarion/pinlock/internal/storage"
)

// Exit codes
const (
	ExitOK        = 0
	ExitError     = 1
	ExitCancelled = 2
)

// LoadConfig loads configuration and builds the logger, exiting on error
func LoadConfig(configFile string) (*config.Config, *slog.Logger) {
	cfg, err := config.Load(configFile)
	if err != nil {
		HandleError(err)
	}
	logger, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		HandleError(err)
	}
	return cfg, logger
}

// OpenApp loads configuration and opens the state file, exiting on error
func OpenApp(configFile string) *app.App {
	cfg, logger := LoadConfig(configFile)
	a, err := app.Open(cfg, logger)
	if err != nil {
		HandleError(err)
	}
	return a
}

// HandleError handles common errors consistently
func HandleError(err error) {
	switch {
	case errors.Is(err, core.ErrNotEnabled):
		fmt.Fprintf(os.Stderr, "Error: the lock is not enabled\n")
		fmt.Fprintf(os.Stderr, "Run 'pinlock setup' first\n")
	case errors.Is(err, core.ErrAlreadyEnabled):
		fmt.Fprintf(os.Stderr, "Error: the lock is already enabled\n")
		fmt.Fprintf(os.Stderr, "Use 'pinlock change' or 'pinlock disable'\n")
	case errors.Is(err, core.ErrBiometricUnavailable):
		fmt.Fprintf(os.Stderr, "Error: no enrolled biometric sensor found\n")
		fmt.Fprintf(os.Stderr, "Configure biometric.sensors or use --factor pin\n")
	case errors.Is(err, core.ErrSettingsCorrupt):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "The lock state is unknown; refusing to continue\n")
	case errors.Is(err, core.ErrCredentialMissing):
		fmt.Fprintf(os.Stderr, "Error: the lock is enabled but no PIN is stored\n")
	case errors.Is(err, crypto.ErrAuthFailed):
		fmt.Fprintf(os.Stderr, "Error: the stored PIN cannot be opened\n")
		fmt.Fprintf(os.Stderr, "The device secret in the OS keyring is missing or was replaced\n")
	case errors.Is(err, storage.ErrLocked):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Another pinlock process is running\n")
	case errors.Is(err, security.ErrPathEscapes), errors.Is(err, security.ErrAbsolutePath):
		fmt.Fprintf(os.Stderr, "Error: state_file must be a relative path inside data_dir: %s\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(ExitError)
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
