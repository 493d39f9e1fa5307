package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStore_DefaultWhenAbsent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, LockSettings{Enabled: false, Factor: FactorPIN}, f.settings(t))
}

func TestSettingsStore_SaveAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	want := LockSettings{Enabled: true, Factor: FactorBoth}
	require.NoError(t, f.deps.Settings.Save(ctx, want))
	assert.Equal(t, want, f.settings(t))
	assert.JSONEq(t, `{"enabled":true,"factor":"both"}`, string(f.plain.data[settingsKey]))
}

func TestSettingsStore_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{enabled"},
		{"unknown factor", `{"enabled":true,"factor":"retina"}`},
		{"missing factor", `{"enabled":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.plain.data[settingsKey] = []byte(tt.raw)

			_, err := f.deps.Settings.Get(context.Background())
			assert.ErrorIs(t, err, ErrSettingsCorrupt)
		})
	}
}

func TestSettingsStore_SaveRejectsUnknownFactor(t *testing.T) {
	f := newFixture(t)
	err := f.deps.Settings.Save(context.Background(), LockSettings{Enabled: true, Factor: "retina"})
	assert.ErrorIs(t, err, ErrUnknownFactor)
}

func TestSettingsStore_ClearRemovesPin(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)

	require.NoError(t, f.deps.Settings.Clear(context.Background()))
	assert.Equal(t, DefaultSettings(), f.settings(t))
	assert.False(t, f.verify(t, "1234"))
}

func TestSettingsStore_ClearResetsSettingsFirst(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	f.secure.deleteErr = errDiskFull

	err := f.deps.Settings.Clear(context.Background())
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, f.settings(t).Enabled)
}

func TestSettingsStore_ClearStopsOnSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	f.plain.setErr = errDiskFull

	err := f.deps.Settings.Clear(context.Background())
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, f.settings(t).Enabled)
	assert.True(t, f.verify(t, "1234"))
}

func TestSettingsStore_SetFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled lock", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.deps.Settings.SetFactor(ctx, FactorPIN, f.bio), ErrNotEnabled)
	})

	t.Run("biometric unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.enable(t, "1234", FactorPIN)
		assert.ErrorIs(t, f.deps.Settings.SetFactor(ctx, FactorBoth, f.bio), ErrBiometricUnavailable)
		assert.ErrorIs(t, f.deps.Settings.SetFactor(ctx, FactorBiometric, nil), ErrBiometricUnavailable)
	})

	t.Run("unknown factor", func(t *testing.T) {
		f := newFixture(t)
		f.enable(t, "1234", FactorPIN)
		assert.ErrorIs(t, f.deps.Settings.SetFactor(ctx, "retina", f.bio), ErrUnknownFactor)
	})

	t.Run("biometric available", func(t *testing.T) {
		f := newFixture(t)
		f.enable(t, "1234", FactorPIN)
		f.bio.available = true
		require.NoError(t, f.deps.Settings.SetFactor(ctx, FactorBiometric, f.bio))
		assert.Equal(t, LockSettings{Enabled: true, Factor: FactorBiometric}, f.settings(t))

		require.NoError(t, f.deps.Settings.SetFactor(ctx, FactorPIN, nil))
		assert.Equal(t, FactorPIN, f.settings(t).Factor)
	})
}

func TestParseFactor(t *testing.T) {
	f, err := ParseFactor("both")
	require.NoError(t, err)
	assert.Equal(t, FactorBoth, f)
	assert.True(t, f.UsesBiometric())
	assert.False(t, FactorPIN.UsesBiometric())

	_, err = ParseFactor("PIN")
	assert.ErrorIs(t, err, ErrUnknownFactor)
}
