package core

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	MsgPinMismatch     = "PINs don't match"
	MsgWrongCurrentPin = "Wrong current PIN"
	MsgWrongPin        = "Wrong PIN"
)

const defaultBiometricReason = "Unlock pinlock"

// Mode selects the administrative flow a Wizard drives
type Mode int

const (
	ModeSetup Mode = iota
	ModeChange
	ModeDisable
)

func (m Mode) String() string {
	switch m {
	case ModeSetup:
		return "setup"
	case ModeChange:
		return "change"
	case ModeDisable:
		return "disable"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Step is the prompt a Wizard currently shows
type Step int

const (
	StepChoose Step = iota
	StepConfirm
	StepVerifyOld
	StepChooseNew
	StepConfirmNew
	StepVerifyDisable
)

// Prompt returns the text a host shows for the step
func (s Step) Prompt() string {
	switch s {
	case StepChoose:
		return "Choose a 4-digit PIN"
	case StepConfirm:
		return "Confirm your PIN"
	case StepVerifyOld:
		return "Enter your current PIN"
	case StepChooseNew:
		return "Choose a new PIN"
	case StepConfirmNew:
		return "Confirm your new PIN"
	case StepVerifyDisable:
		return "Enter your PIN to disable the lock"
	}
	return ""
}

// Deps are the services shared by Wizard and Gate
type Deps struct {
	Credentials *CredentialStore
	Settings    *SettingsStore
	Biometric   BiometricGateway
	Logger      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d Deps) biometricAvailable(ctx context.Context) bool {
	return d.Biometric != nil && d.Biometric.Available(ctx)
}

// WizardOptions tune a Wizard
type WizardOptions struct {
	// Factor saved by setup. Empty means FactorPIN.
	Factor          Factor
	BiometricReason string
}

// WizardState is a snapshot of a Wizard. Entered counts digits without
// exposing them.
type WizardState struct {
	Mode             Mode
	Step             Step
	Entered          int
	Error            string
	BiometricAllowed bool
	Done             bool
}

// Wizard drives the setup, change and disable flows.
// It is not safe for concurrent use.
type Wizard struct {
	deps   Deps
	logger *slog.Logger
	mode   Mode
	factor Factor
	reason string

	step    Step
	pending pinBuffer
	current pinBuffer
	message string
	bioOK   bool
	done    bool
}

// OpenWizard starts a flow. Setup requires a disabled lock; change and
// disable require an enabled one.
func OpenWizard(ctx context.Context, mode Mode, deps Deps, opts WizardOptions) (*Wizard, error) {
	settings, err := deps.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	w := &Wizard{
		deps:   deps,
		logger: deps.logger().With("flow", mode.String()),
		mode:   mode,
		reason: opts.BiometricReason,
	}
	if w.reason == "" {
		w.reason = defaultBiometricReason
	}

	switch mode {
	case ModeSetup:
		if settings.Enabled {
			return nil, ErrAlreadyEnabled
		}
		w.factor = opts.Factor
		if w.factor == "" {
			w.factor = FactorPIN
		}
		if !w.factor.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFactor, w.factor)
		}
		if w.factor.UsesBiometric() && !deps.biometricAvailable(ctx) {
			return nil, ErrBiometricUnavailable
		}
		w.step = StepChoose
	case ModeChange, ModeDisable:
		if !settings.Enabled {
			return nil, ErrNotEnabled
		}
		w.factor = settings.Factor
		w.bioOK = settings.Factor.UsesBiometric() && deps.biometricAvailable(ctx)
		w.step = StepVerifyOld
		if mode == ModeDisable {
			w.step = StepVerifyDisable
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, mode)
	}

	w.logger.Info("wizard opened")
	return w, nil
}

// State returns the current snapshot
func (w *Wizard) State() WizardState {
	return WizardState{
		Mode:             w.mode,
		Step:             w.step,
		Entered:          w.current.len(),
		Error:            w.message,
		BiometricAllowed: w.biometricStep(),
		Done:             w.done,
	}
}

func (w *Wizard) biometricStep() bool {
	return !w.done && w.bioOK && (w.step == StepVerifyOld || w.step == StepVerifyDisable)
}

// Transition applies one input. A non-nil event means the flow ended.
// Storage failures are returned with the state as it was before the input.
func (w *Wizard) Transition(ctx context.Context, in Input) (WizardState, *Event, error) {
	if w.done {
		return w.State(), nil, ErrFlowFinished
	}

	switch in.Kind {
	case InputCancel:
		w.finish()
		w.logger.Info("wizard cancelled")
		return w.State(), &Event{Kind: EventCancelled}, nil

	case InputBackspace:
		w.current.pop()
		return w.State(), nil, nil

	case InputBiometric:
		return w.biometric(ctx)

	case InputDigit:
		if !in.validDigit() {
			return w.State(), nil, ErrInvalidInput
		}
		w.message = ""
		w.current.push(in.Digit)
		if !w.current.full() {
			return w.State(), nil, nil
		}
		ev, err := w.submit(ctx)
		if err != nil {
			w.current.pop()
			return w.State(), nil, err
		}
		return w.State(), ev, nil
	}
	return w.State(), nil, ErrInvalidInput
}

func (w *Wizard) biometric(ctx context.Context) (WizardState, *Event, error) {
	if !w.biometricStep() {
		return w.State(), nil, ErrBiometricUnavailable
	}
	if !w.deps.Biometric.Authenticate(ctx, w.reason) {
		// Failure falls back to PIN entry without a message.
		w.logger.Info("biometric verification failed")
		return w.State(), nil, nil
	}

	w.message = ""
	w.current.clear()
	if w.step == StepVerifyOld {
		w.step = StepChooseNew
		return w.State(), nil, nil
	}
	ev, err := w.disable(ctx)
	return w.State(), ev, err
}

func (w *Wizard) submit(ctx context.Context) (*Event, error) {
	switch w.step {
	case StepChoose, StepChooseNew:
		w.pending = w.current
		w.current.clear()
		w.step++
		return nil, nil

	case StepConfirm, StepConfirmNew:
		if !w.pending.equal(&w.current) {
			w.logger.Info("pin confirmation mismatch")
			w.message = MsgPinMismatch
			w.pending.clear()
			w.current.clear()
			w.step--
			return nil, nil
		}
		if err := w.deps.Credentials.SavePin(ctx, w.current.String()); err != nil {
			return nil, err
		}
		if w.mode == ModeChange {
			w.finish()
			w.logger.Info("pin changed")
			return &Event{Kind: EventCompleted, Action: ActionChanged}, nil
		}
		if err := w.deps.Settings.Save(ctx, LockSettings{Enabled: true, Factor: w.factor}); err != nil {
			return nil, err
		}
		w.finish()
		w.logger.Info("lock enabled", "factor", w.factor)
		return &Event{Kind: EventCompleted, Action: ActionEnabled}, nil

	case StepVerifyOld:
		ok, err := w.deps.Credentials.VerifyPin(ctx, w.current.String())
		if err != nil {
			return nil, err
		}
		w.current.clear()
		if !ok {
			w.logger.Info("wrong current pin")
			w.message = MsgWrongCurrentPin
			return nil, nil
		}
		w.step = StepChooseNew
		return nil, nil

	case StepVerifyDisable:
		ok, err := w.deps.Credentials.VerifyPin(ctx, w.current.String())
		if err != nil {
			return nil, err
		}
		if !ok {
			w.current.clear()
			w.logger.Info("wrong pin")
			w.message = MsgWrongPin
			return nil, nil
		}
		return w.disable(ctx)
	}
	return nil, fmt.Errorf("%w: step %d", ErrInvalidInput, w.step)
}

func (w *Wizard) disable(ctx context.Context) (*Event, error) {
	if err := w.deps.Settings.Clear(ctx); err != nil {
		return nil, err
	}
	w.finish()
	w.logger.Info("lock disabled")
	return &Event{Kind: EventCompleted, Action: ActionDisabled}, nil
}

func (w *Wizard) finish() {
	w.pending.clear()
	w.current.clear()
	w.message = ""
	w.done = true
}
