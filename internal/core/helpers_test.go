package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/illarion/pinlock/internal/schedule"
	"github.com/illarion/pinlock/internal/storage"
)

var errDiskFull = errors.New("disk full")

// memStore satisfies both SecureStore and PlainStore
type memStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	getErr    error
	setErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.data[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.data, key)
	return nil
}

type fakeBiometric struct {
	available bool
	succeed   bool
	calls     int
}

func (f *fakeBiometric) Available(context.Context) bool {
	return f.available
}

func (f *fakeBiometric) Authenticate(context.Context, string) bool {
	f.calls++
	return f.succeed
}

type fixture struct {
	secure *memStore
	plain  *memStore
	bio    *fakeBiometric
	deps   Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		secure: newMemStore(),
		plain:  newMemStore(),
		bio:    &fakeBiometric{},
	}
	creds := NewCredentialStore(f.secure, nil)
	f.deps = Deps{
		Credentials: creds,
		Settings:    NewSettingsStore(f.plain, creds, nil),
		Biometric:   f.bio,
	}
	return f
}

// enable stores pin and enabled settings directly
func (f *fixture) enable(t *testing.T, pin string, factor Factor) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.deps.Credentials.SavePin(ctx, pin))
	require.NoError(t, f.deps.Settings.Save(ctx, LockSettings{Enabled: true, Factor: factor}))
}

func (f *fixture) settings(t *testing.T) LockSettings {
	t.Helper()
	s, err := f.deps.Settings.Get(context.Background())
	require.NoError(t, err)
	return s
}

func (f *fixture) verify(t *testing.T, pin string) bool {
	t.Helper()
	ok, err := f.deps.Credentials.VerifyPin(context.Background(), pin)
	require.NoError(t, err)
	return ok
}

type stepper interface {
	step(t *testing.T, in Input) *Event
}

type wizardStepper struct{ w *Wizard }

func (s wizardStepper) step(t *testing.T, in Input) *Event {
	t.Helper()
	_, ev, err := s.w.Transition(context.Background(), in)
	require.NoError(t, err)
	return ev
}

type gateStepper struct{ g *Gate }

func (s gateStepper) step(t *testing.T, in Input) *Event {
	t.Helper()
	_, ev, err := s.g.Transition(context.Background(), in)
	require.NoError(t, err)
	return ev
}

// typePin feeds each digit and returns the event of the last one
func typePin(t *testing.T, s stepper, pin string) *Event {
	t.Helper()
	var ev *Event
	for i := 0; i < len(pin); i++ {
		ev = s.step(t, Digit(pin[i]))
	}
	return ev
}

func newTestGate(f *fixture, sched *schedule.Manual, opts ...GateOption) *Gate {
	return NewGate(f.deps, append([]GateOption{WithScheduler(sched)}, opts...)...)
}
