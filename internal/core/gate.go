package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/illarion/pinlock/internal/schedule"
)

const tickInterval = time.Second

// LockoutPolicy bounds PIN guessing at the gate
type LockoutPolicy struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// DefaultLockoutPolicy allows 3 attempts followed by a 30 second pause
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: 3, Cooldown: 30 * time.Second}
}

func (p LockoutPolicy) cooldownSeconds() int {
	secs := int((p.Cooldown + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// GateState is a snapshot of the unlock gate
type GateState struct {
	Entered           int
	FailedAttempts    int
	CooldownRemaining int
	Message           string
	BiometricAllowed  bool
	Unlocked          bool
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithPolicy overrides the lockout thresholds
func WithPolicy(p LockoutPolicy) GateOption {
	return func(g *Gate) {
		if p.MaxAttempts > 0 {
			g.policy.MaxAttempts = p.MaxAttempts
		}
		if p.Cooldown > 0 {
			g.policy.Cooldown = p.Cooldown
		}
	}
}

// WithScheduler replaces the cron-backed cooldown ticker
func WithScheduler(s schedule.Scheduler) GateOption {
	return func(g *Gate) { g.sched = s }
}

// WithListener receives a snapshot after every cooldown tick. It is called
// from the scheduler goroutine without the gate lock held.
func WithListener(fn func(GateState)) GateOption {
	return func(g *Gate) { g.listener = fn }
}

func WithBiometricReason(reason string) GateOption {
	return func(g *Gate) { g.reason = reason }
}

// Gate blocks the host until the user proves identity. Inputs come from one
// goroutine; cooldown ticks arrive from the scheduler and are serialized by mu.
type Gate struct {
	deps     Deps
	logger   *slog.Logger
	policy   LockoutPolicy
	sched    schedule.Scheduler
	listener func(GateState)
	reason   string

	mu       sync.Mutex
	started  bool
	closed   bool
	unlocked bool
	bioOK    bool
	entered  pinBuffer
	failed   int
	cooldown int
	message  string
	stopTick func()
	gen      int
}

// NewGate creates a gate. Call Start before feeding inputs.
func NewGate(deps Deps, opts ...GateOption) *Gate {
	g := &Gate{
		deps:   deps,
		logger: deps.logger().With("flow", "unlock"),
		policy: DefaultLockoutPolicy(),
		reason: defaultBiometricReason,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.sched == nil {
		g.sched = schedule.NewCron()
	}
	return g
}

// Start loads the settings and, when the factor allows it, prompts for a
// biometric once. A failed prompt is silent and leaves PIN entry open.
func (g *Gate) Start(ctx context.Context) (GateState, *Event, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return GateState{}, nil, ErrGateClosed
	}
	if g.started {
		defer g.mu.Unlock()
		return g.snapshot(), nil, nil
	}

	settings, err := g.deps.Settings.Get(ctx)
	if err != nil {
		g.mu.Unlock()
		return GateState{}, nil, err
	}
	if !settings.Enabled {
		g.mu.Unlock()
		return GateState{}, nil, ErrNotEnabled
	}
	hasPin, err := g.deps.Credentials.HasPin(ctx)
	if err != nil {
		g.mu.Unlock()
		return GateState{}, nil, err
	}
	if !hasPin {
		g.mu.Unlock()
		g.logger.Error("lock enabled without a stored pin")
		return GateState{}, nil, ErrCredentialMissing
	}

	g.started = true
	g.bioOK = settings.Factor.UsesBiometric() && g.deps.biometricAvailable(ctx)
	g.logger.Info("gate started", "factor", settings.Factor, "biometric", g.bioOK)
	if !g.bioOK {
		defer g.mu.Unlock()
		return g.snapshot(), nil, nil
	}
	g.mu.Unlock()

	return g.authenticate(ctx)
}

// State returns the current snapshot
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Transition applies one input. EventUnlocked is returned exactly once.
func (g *Gate) Transition(ctx context.Context, in Input) (GateState, *Event, error) {
	g.mu.Lock()
	if err := g.usableLocked(); err != nil {
		defer g.mu.Unlock()
		return g.snapshot(), nil, err
	}

	switch in.Kind {
	case InputBiometric:
		if !g.bioOK {
			defer g.mu.Unlock()
			return g.snapshot(), nil, ErrBiometricUnavailable
		}
		g.mu.Unlock()
		return g.authenticate(ctx)

	case InputBackspace:
		defer g.mu.Unlock()
		g.entered.pop()
		return g.snapshot(), nil, nil

	case InputDigit:
		defer g.mu.Unlock()
		if !in.validDigit() {
			return g.snapshot(), nil, ErrInvalidInput
		}
		if g.cooldown > 0 {
			return g.snapshot(), nil, ErrCooldownActive
		}
		g.entered.push(in.Digit)
		if !g.entered.full() {
			return g.snapshot(), nil, nil
		}
		ev, err := g.verifyLocked(ctx)
		if err != nil {
			g.entered.pop()
			return g.snapshot(), nil, err
		}
		return g.snapshot(), ev, nil
	}

	defer g.mu.Unlock()
	return g.snapshot(), nil, ErrInvalidInput
}

// Close stops the cooldown tick. Ticks that fire afterwards are ignored.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	g.stopTickLocked()
	g.entered.clear()
}

func (g *Gate) usableLocked() error {
	switch {
	case g.closed:
		return ErrGateClosed
	case !g.started:
		return ErrGateNotStarted
	case g.unlocked:
		return ErrFlowFinished
	}
	return nil
}

func (g *Gate) verifyLocked(ctx context.Context) (*Event, error) {
	ok, err := g.deps.Credentials.VerifyPin(ctx, g.entered.String())
	if err != nil {
		return nil, err
	}
	g.entered.clear()
	if ok {
		g.logger.Info("unlocked with pin")
		return g.unlockLocked(), nil
	}

	g.failed++
	g.logger.Warn("wrong pin", "failed_attempts", g.failed, "max_attempts", g.policy.MaxAttempts)
	if g.failed >= g.policy.MaxAttempts {
		g.startCooldownLocked()
		return nil, nil
	}
	g.message = fmt.Sprintf("Wrong PIN. %d attempt(s) left", g.policy.MaxAttempts-g.failed)
	return nil, nil
}

// authenticate runs one biometric prompt without holding the lock; the
// prompt may block for as long as the user takes.
func (g *Gate) authenticate(ctx context.Context) (GateState, *Event, error) {
	ok := g.deps.Biometric.Authenticate(ctx, g.reason)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return g.snapshot(), nil, ErrGateClosed
	}
	if g.unlocked {
		return g.snapshot(), nil, nil
	}
	if !ok {
		g.logger.Info("biometric authentication failed")
		return g.snapshot(), nil, nil
	}
	g.logger.Info("unlocked with biometric")
	return g.snapshot(), g.unlockLocked(), nil
}

func (g *Gate) unlockLocked() *Event {
	g.stopTickLocked()
	g.entered.clear()
	g.failed = 0
	g.cooldown = 0
	g.message = ""
	g.unlocked = true
	return &Event{Kind: EventUnlocked}
}

func (g *Gate) startCooldownLocked() {
	g.cooldown = g.policy.cooldownSeconds()
	g.message = cooldownMessage(g.cooldown)
	g.logger.Warn("too many attempts, cooldown started", "seconds", g.cooldown)

	g.stopTickLocked()
	gen := g.gen
	g.stopTick = g.sched.Every(tickInterval, func() { g.tick(gen) })
}

func (g *Gate) stopTickLocked() {
	g.gen++
	if g.stopTick != nil {
		g.stopTick()
		g.stopTick = nil
	}
}

func (g *Gate) tick(gen int) {
	g.mu.Lock()
	if g.closed || gen != g.gen || g.cooldown == 0 {
		g.mu.Unlock()
		return
	}

	g.cooldown--
	if g.cooldown == 0 {
		g.failed = 0
		g.message = ""
		g.stopTickLocked()
		g.logger.Info("cooldown ended")
	} else {
		g.message = cooldownMessage(g.cooldown)
	}
	state := g.snapshot()
	listener := g.listener
	g.mu.Unlock()

	if listener != nil {
		listener(state)
	}
}

func (g *Gate) snapshot() GateState {
	return GateState{
		Entered:           g.entered.len(),
		FailedAttempts:    g.failed,
		CooldownRemaining: g.cooldown,
		Message:           g.message,
		BiometricAllowed:  g.bioOK && !g.unlocked && !g.closed,
		Unlocked:          g.unlocked,
	}
}

func cooldownMessage(secs int) string {
	return fmt.Sprintf("Too many attempts. Try again in %ds", secs)
}
