package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/pinlock/internal/schedule"
)

func startGate(t *testing.T, f *fixture, sched *schedule.Manual, opts ...GateOption) gateStepper {
	t.Helper()
	g := newTestGate(f, sched, opts...)
	t.Cleanup(g.Close)
	_, ev, err := g.Start(context.Background())
	require.NoError(t, err)
	require.Nil(t, ev)
	return gateStepper{g}
}

func TestGate_UnlockFirstTry(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	s := startGate(t, f, schedule.NewManual())

	unlocks := 0
	for i := 0; i < 3; i++ {
		if ev := s.step(t, Digit("1234"[i])); ev != nil {
			unlocks++
		}
	}
	ev := s.step(t, Digit('4'))
	require.NotNil(t, ev)
	assert.Equal(t, EventUnlocked, ev.Kind)
	unlocks++

	st := s.g.State()
	assert.True(t, st.Unlocked)
	assert.Equal(t, 0, st.FailedAttempts)
	assert.Equal(t, 1, unlocks)

	// No second unlock event
	_, ev, err := s.g.Transition(context.Background(), Digit('1'))
	assert.ErrorIs(t, err, ErrFlowFinished)
	assert.Nil(t, ev)
}

func TestGate_WrongPinMessages(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	s := startGate(t, f, schedule.NewManual())

	assert.Nil(t, typePin(t, s, "0000"))
	st := s.g.State()
	assert.Equal(t, 1, st.FailedAttempts)
	assert.Equal(t, 0, st.Entered)
	assert.Equal(t, "Wrong PIN. 2 attempt(s) left", st.Message)

	assert.Nil(t, typePin(t, s, "1111"))
	assert.Equal(t, "Wrong PIN. 1 attempt(s) left", s.g.State().Message)

	// A correct PIN resets the counter
	require.NotNil(t, typePin(t, s, "1234"))
	assert.Equal(t, 0, s.g.State().FailedAttempts)
	assert.Empty(t, s.g.State().Message)
}

func TestGate_CooldownAfterThreeFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	sched := schedule.NewManual()
	s := startGate(t, f, sched)

	for i := 0; i < 3; i++ {
		assert.Nil(t, typePin(t, s, "0000"))
	}
	st := s.g.State()
	assert.Equal(t, 3, st.FailedAttempts)
	assert.Equal(t, 30, st.CooldownRemaining)
	assert.Equal(t, "Too many attempts. Try again in 30s", st.Message)
	assert.Equal(t, 1, sched.Active())

	prev := st.CooldownRemaining
	for i := 0; i < 29; i++ {
		_, _, err := s.g.Transition(ctx, Digit('1'))
		assert.ErrorIs(t, err, ErrCooldownActive)
		assert.Equal(t, 0, s.g.State().Entered)

		sched.Tick()
		cur := s.g.State().CooldownRemaining
		assert.Less(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, 1, prev)
	assert.Equal(t, "Too many attempts. Try again in 1s", s.g.State().Message)

	sched.Tick()
	st = s.g.State()
	assert.Equal(t, 0, st.CooldownRemaining)
	assert.Equal(t, 0, st.FailedAttempts)
	assert.Empty(t, st.Message)
	assert.Equal(t, 0, sched.Active())

	// Fresh set of attempts, then a normal unlock
	assert.Nil(t, typePin(t, s, "0000"))
	assert.Equal(t, "Wrong PIN. 2 attempt(s) left", s.g.State().Message)
	require.NotNil(t, typePin(t, s, "1234"))
}

func TestGate_ListenerSeesEveryTick(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	sched := schedule.NewManual()

	var seen []int
	s := startGate(t, f, sched,
		WithPolicy(LockoutPolicy{MaxAttempts: 2, Cooldown: 3 * time.Second}),
		WithListener(func(st GateState) { seen = append(seen, st.CooldownRemaining) }),
	)

	typePin(t, s, "0000")
	typePin(t, s, "0000")
	assert.Equal(t, 3, s.g.State().CooldownRemaining)

	for i := 0; i < 5; i++ {
		sched.Tick()
	}
	assert.Equal(t, []int{2, 1, 0}, seen)
}

func TestGate_CloseStopsTick(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	sched := schedule.NewManual()

	ticks := 0
	g := newTestGate(f, sched, WithListener(func(GateState) { ticks++ }))
	_, _, err := g.Start(context.Background())
	require.NoError(t, err)
	s := gateStepper{g}
	for i := 0; i < 3; i++ {
		typePin(t, s, "9999")
	}
	sched.Tick()
	require.Equal(t, 1, ticks)

	g.Close()
	g.Close()
	assert.Equal(t, 0, sched.Active())
	sched.Tick()
	assert.Equal(t, 1, ticks)
	assert.Equal(t, 29, g.State().CooldownRemaining)

	_, _, err = g.Transition(context.Background(), Digit('1'))
	assert.ErrorIs(t, err, ErrGateClosed)
	_, _, err = g.Start(context.Background())
	assert.ErrorIs(t, err, ErrGateClosed)
}

func TestGate_StaleTickIgnored(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	sched := schedule.NewManual()
	s := startGate(t, f, sched)

	for i := 0; i < 3; i++ {
		typePin(t, s, "9999")
	}

	// A tick captured before close must not touch state afterwards
	s.g.mu.Lock()
	gen := s.g.gen
	s.g.mu.Unlock()
	s.g.Close()
	s.g.tick(gen)
	assert.Equal(t, 30, s.g.State().CooldownRemaining)
}

func TestGate_StartWithBiometric(t *testing.T) {
	tests := []struct {
		factor    Factor
		available bool
		succeed   bool
		calls     int
		unlocked  bool
	}{
		{FactorPIN, true, true, 0, false},
		{FactorBiometric, true, true, 1, true},
		{FactorBoth, true, true, 1, true},
		{FactorBoth, true, false, 1, false},
		{FactorBoth, false, true, 0, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s/available=%v/succeed=%v", tt.factor, tt.available, tt.succeed)
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.enable(t, "1234", tt.factor)
			f.bio.available = tt.available
			f.bio.succeed = tt.succeed

			g := newTestGate(f, schedule.NewManual())
			defer g.Close()
			st, ev, err := g.Start(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.calls, f.bio.calls)
			assert.Equal(t, tt.unlocked, st.Unlocked)
			assert.Equal(t, tt.unlocked, ev != nil)
			// Automatic failures show nothing
			assert.Empty(t, st.Message)
		})
	}
}

func TestGate_BiometricDuringCooldown(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorBoth)
	f.bio.available = true
	sched := schedule.NewManual()
	s := startGate(t, f, sched)

	for i := 0; i < 3; i++ {
		typePin(t, s, "0000")
	}
	require.Equal(t, 30, s.g.State().CooldownRemaining)
	assert.True(t, s.g.State().BiometricAllowed)

	f.bio.succeed = true
	ev := s.step(t, UseBiometric())
	require.NotNil(t, ev)
	assert.Equal(t, EventUnlocked, ev.Kind)

	st := s.g.State()
	assert.True(t, st.Unlocked)
	assert.Equal(t, 0, st.CooldownRemaining)
	assert.Equal(t, 0, sched.Active())
}

func TestGate_BiometricNotAllowed(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	f.bio.available = true
	s := startGate(t, f, schedule.NewManual())

	_, _, err := s.g.Transition(context.Background(), UseBiometric())
	assert.ErrorIs(t, err, ErrBiometricUnavailable)
	assert.Equal(t, 0, f.bio.calls)
}

func TestGate_StartPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("not started", func(t *testing.T) {
		f := newFixture(t)
		g := newTestGate(f, schedule.NewManual())
		_, _, err := g.Transition(ctx, Digit('1'))
		assert.ErrorIs(t, err, ErrGateNotStarted)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := newTestGate(f, schedule.NewManual()).Start(ctx)
		assert.ErrorIs(t, err, ErrNotEnabled)
	})

	t.Run("missing credential", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.deps.Settings.Save(ctx, LockSettings{Enabled: true, Factor: FactorPIN}))
		_, _, err := newTestGate(f, schedule.NewManual()).Start(ctx)
		assert.ErrorIs(t, err, ErrCredentialMissing)
	})

	t.Run("corrupt settings", func(t *testing.T) {
		f := newFixture(t)
		f.plain.data[settingsKey] = []byte(`{"enabled":"yes"}`)
		_, _, err := newTestGate(f, schedule.NewManual()).Start(ctx)
		assert.ErrorIs(t, err, ErrSettingsCorrupt)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newFixture(t)
		f.plain.getErr = errDiskFull
		_, _, err := newTestGate(f, schedule.NewManual()).Start(ctx)
		assert.ErrorIs(t, err, errDiskFull)
	})
}

func TestGate_VerifyFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	s := startGate(t, f, schedule.NewManual())

	typePin(t, s, "123")
	f.secure.getErr = errDiskFull
	st, ev, err := s.g.Transition(ctx, Digit('4'))
	assert.ErrorIs(t, err, errDiskFull)
	assert.Nil(t, ev)
	assert.Equal(t, 3, st.Entered)
	assert.Equal(t, 0, st.FailedAttempts)

	f.secure.getErr = nil
	_, ev, err = s.g.Transition(ctx, Digit('4'))
	require.NoError(t, err)
	require.NotNil(t, ev)
}

func TestGate_Backspace(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "1234", FactorPIN)
	s := startGate(t, f, schedule.NewManual())

	typePin(t, s, "12")
	s.step(t, Backspace())
	assert.Equal(t, 1, s.g.State().Entered)
	require.NotNil(t, typePin(t, s, "234"))
}

func TestLockoutPolicy_CooldownSeconds(t *testing.T) {
	assert.Equal(t, 30, DefaultLockoutPolicy().cooldownSeconds())
	assert.Equal(t, 2, LockoutPolicy{Cooldown: 1500 * time.Millisecond}.cooldownSeconds())
	assert.Equal(t, 1, LockoutPolicy{Cooldown: 0}.cooldownSeconds())
}
