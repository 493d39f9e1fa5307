package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/illarion/pinlock/internal/app"
	"github.com/illarion/pinlock/internal/config"
)

// Status shows the lock state. It never asks for the PIN and creates
// nothing, neither in the data directory nor in the keyring.
func Status(ctx context.Context, configFile string) {
	cfg, logger := LoadConfig(configFile)

	st, err := app.Inspect(ctx, cfg, logger)
	if err != nil {
		HandleError(err)
	}

	if st.Settings.Enabled {
		fmt.Printf("Lock: enabled (factor: %s)\n", st.Settings.Factor)
	} else {
		fmt.Println("Lock: disabled")
		fmt.Println("Run 'pinlock setup' to enable it")
	}

	if st.HasPin {
		fmt.Println("PIN: stored")
	} else {
		fmt.Println("PIN: not stored")
	}

	switch {
	case st.BiometricAvailable:
		fmt.Printf("Biometric: available (%s)\n", st.BiometricType)
	case st.BiometricType != "":
		fmt.Printf("Biometric: %s sensor without enrollment\n", st.BiometricType)
	default:
		fmt.Println("Biometric: not available")
	}

	fmt.Printf("\nSecure backend: %s\n", st.Backend)
	if !st.Initialized {
		fmt.Printf("State file: %s (not created yet)\n", st.Path)
		return
	}
	if st.Backend == config.BackendVault {
		if st.DeviceSecret {
			fmt.Println("Device secret: stored in keyring")
		} else {
			fmt.Println("Device secret: missing")
		}
	}
	fmt.Printf("State file: %s (%s)\n", st.Path, formatSize(st.State.Size))
	fmt.Printf("Install ID: %s\n", st.InstallID)
	if !st.State.Modified.IsZero() {
		fmt.Printf("Last modified: %s\n", st.State.Modified.Format(time.RFC3339))
	}
}
