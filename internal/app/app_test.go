package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/illarion/pinlock/internal/biometric"
	"github.com/illarion/pinlock/internal/config"
	"github.com/illarion/pinlock/internal/core"
	"github.com/illarion/pinlock/internal/crypto"
	"github.com/illarion/pinlock/internal/keyring"
	"github.com/illarion/pinlock/internal/security"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:       filepath.Join(t.TempDir(), "pinlock"),
		StateFile:     "pinlock.db",
		SecureBackend: backend,
		KDFIterations: 1000,
		MaxAttempts:   3,
		Cooldown:      30 * time.Second,
		LogLevel:      "debug",
		LogFormat:     "text",
	}
}

func enableLock(t *testing.T, a *App, pin string) {
	t.Helper()
	ctx := context.Background()
	w, err := core.OpenWizard(ctx, core.ModeSetup, a.Deps(), core.WizardOptions{})
	require.NoError(t, err)

	var ev *core.Event
	for _, p := range []string{pin, pin} {
		for i := 0; i < len(p); i++ {
			_, ev, err = w.Transition(ctx, core.Digit(p[i]))
			require.NoError(t, err)
		}
	}
	require.NotNil(t, ev)
	require.Equal(t, core.ActionEnabled, ev.Action)
}

func TestOpen_PersistsAcrossRestarts(t *testing.T) {
	for _, backend := range []string{config.BackendVault, config.BackendKeyring} {
		t.Run(backend, func(t *testing.T) {
			gokeyring.MockInit()
			ctx := context.Background()
			cfg := testConfig(t, backend)

			a, err := Open(cfg, nil)
			require.NoError(t, err)
			id := a.InstallID
			require.NotEmpty(t, id)
			enableLock(t, a, "2580")
			require.NoError(t, a.Close())

			a, err = Open(cfg, nil)
			require.NoError(t, err)
			defer a.Close()

			assert.Equal(t, id, a.InstallID)
			settings, err := a.Settings.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, core.LockSettings{Enabled: true, Factor: core.FactorPIN}, settings)

			ok, err := a.Credentials.VerifyPin(ctx, "2580")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestOpen_VaultNeedsDeviceSecret(t *testing.T) {
	gokeyring.MockInit()
	ctx := context.Background()
	cfg := testConfig(t, config.BackendVault)

	a, err := Open(cfg, nil)
	require.NoError(t, err)
	enableLock(t, a, "1111")
	require.NoError(t, a.Close())

	// A fresh keyring means a new device secret; sealed values no longer open
	gokeyring.MockInit()
	a, err = Open(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Credentials.VerifyPin(ctx, "1111")
	assert.ErrorIs(t, err, crypto.ErrAuthFailed)
}

func TestOpen_KeyringFailure(t *testing.T) {
	gokeyring.MockInitWithError(assert.AnError)
	_, err := Open(testConfig(t, config.BackendVault), nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpen_RejectsEscapingStateFile(t *testing.T) {
	gokeyring.MockInit()
	cfg := testConfig(t, config.BackendVault)
	cfg.StateFile = "../outside.db"

	_, err := Open(cfg, nil)
	assert.ErrorIs(t, err, security.ErrPathEscapes)
}

func TestOpen_Sensors(t *testing.T) {
	gokeyring.MockInit()
	cfg := testConfig(t, config.BackendKeyring)
	cfg.Biometric.Sensors = []config.Sensor{
		{Type: "face", VerifyCmd: []string{"pinlock-no-such-verifier"}},
	}

	a, err := Open(cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.False(t, a.Biometric.Available(context.Background()))

	cfg.Biometric.Sensors[0].Type = "voice"
	_, err = Sensors(cfg)
	assert.Error(t, err)
}

func TestSensors_Fprintd(t *testing.T) {
	cfg := testConfig(t, config.BackendKeyring)
	cfg.Biometric.Sensors = []config.Sensor{
		{Type: "fingerprint", Driver: config.DriverFprintd, User: "alice"},
		{Type: "face", VerifyCmd: []string{"true"}},
	}

	sensors, err := Sensors(cfg)
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	assert.Equal(t, biometric.Fingerprint, sensors[0].Type())
	assert.Equal(t, biometric.Fprintd("alice"), sensors[0])
	assert.Equal(t, biometric.Face, sensors[1].Type())

	cfg.Biometric.Sensors[0].Type = "face"
	_, err = Sensors(cfg)
	assert.Error(t, err)
}

func TestInspect_WithoutStateFile(t *testing.T) {
	gokeyring.MockInit()
	cfg := testConfig(t, config.BackendVault)

	st, err := Inspect(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, st.Initialized)
	assert.False(t, st.Settings.Enabled)
	assert.False(t, st.HasPin)
	assert.Nil(t, st.State)
	assert.Equal(t, cfg.StateFile, filepath.Base(st.Path))

	_, err = os.Stat(st.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInspect(t *testing.T) {
	for _, backend := range []string{config.BackendVault, config.BackendKeyring} {
		t.Run(backend, func(t *testing.T) {
			gokeyring.MockInit()
			ctx := context.Background()
			cfg := testConfig(t, backend)

			a, err := Open(cfg, nil)
			require.NoError(t, err)
			id := a.InstallID
			require.NoError(t, a.Close())

			st, err := Inspect(ctx, cfg, nil)
			require.NoError(t, err)
			assert.True(t, st.Initialized)
			assert.False(t, st.Settings.Enabled)
			assert.False(t, st.HasPin)
			assert.False(t, st.BiometricAvailable)
			assert.Equal(t, id, st.InstallID)
			assert.Equal(t, backend == config.BackendVault, st.DeviceSecret)

			a, err = Open(cfg, nil)
			require.NoError(t, err)
			enableLock(t, a, "1234")
			require.NoError(t, a.Close())

			st, err = Inspect(ctx, cfg, nil)
			require.NoError(t, err)
			assert.True(t, st.Settings.Enabled)
			assert.True(t, st.HasPin)
			assert.Equal(t, backend == config.BackendVault, st.State.VaultKey)
		})
	}
}

func TestInspect_MissingDeviceSecretIsNotRecreated(t *testing.T) {
	gokeyring.MockInit()
	ctx := context.Background()
	cfg := testConfig(t, config.BackendVault)

	a, err := Open(cfg, nil)
	require.NoError(t, err)
	id := a.InstallID
	enableLock(t, a, "1234")
	require.NoError(t, a.Close())

	gokeyring.MockInit()
	st, err := Inspect(ctx, cfg, nil)
	require.NoError(t, err)
	assert.False(t, st.DeviceSecret)
	assert.True(t, st.HasPin)
	assert.Equal(t, 1, st.State.Secrets)
	assert.False(t, keyring.HasDeviceSecret(id))
}

func TestPolicy(t *testing.T) {
	gokeyring.MockInit()
	cfg := testConfig(t, config.BackendKeyring)
	cfg.MaxAttempts = 5
	cfg.Cooldown = time.Minute

	a, err := Open(cfg, nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, core.LockoutPolicy{MaxAttempts: 5, Cooldown: time.Minute}, a.Policy())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{LogLevel: "info", LogFormat: "json"}

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "flow", "unlock")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"flow":"unlock"`)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg, &buf)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
