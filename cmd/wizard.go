package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/illarion/pinlock/internal/core"
)

// Setup enables the lock with a new PIN
func Setup(ctx context.Context, configFile string, factor string) {
	f, err := core.ParseFactor(factor)
	if err != nil {
		HandleError(err)
	}
	runWizard(ctx, configFile, core.ModeSetup, f, "Lock enabled")
}

// Change replaces the PIN
func Change(ctx context.Context, configFile string) {
	runWizard(ctx, configFile, core.ModeChange, "", "PIN changed")
}

// Disable turns the lock off and deletes the PIN
func Disable(ctx context.Context, configFile string) {
	runWizard(ctx, configFile, core.ModeDisable, "", "Lock disabled")
}

func runWizard(ctx context.Context, configFile string, mode core.Mode, factor core.Factor, done string) {
	a := OpenApp(configFile)
	defer a.Close()

	w, err := core.OpenWizard(ctx, mode, a.Deps(), core.WizardOptions{
		Factor:          factor,
		BiometricReason: a.Config.Biometric.Reason,
	})
	if err != nil {
		HandleError(err)
	}

	pad := NewPad(os.Stdin, os.Stdout, a.Config.SubmitDelay)
	ev, err := driveWizard(ctx, w, pad)
	pad.Stop()
	if err != nil {
		HandleError(err)
	}

	if ev.Kind == core.EventCancelled {
		pad.Println("Cancelled")
		os.Exit(ExitCancelled)
	}
	pad.Println(done)
}

// driveWizard feeds key presses to w until it emits an event
func driveWizard(ctx context.Context, w *core.Wizard, pad *Pad) (*core.Event, error) {
	if err := pad.Start(); err != nil {
		return nil, err
	}
	renderWizard(pad, w.State(), "")

	for {
		in, err := pad.Read()
		if err != nil {
			return nil, err
		}

		var (
			st core.WizardState
			ev *core.Event
		)
		switch {
		case in.Kind == core.InputBiometric:
			pad.Suspend(func() { st, ev, err = w.Transition(ctx, in) })
		case in.Kind == core.InputDigit && w.State().Entered == core.PinLength-1:
			pad.Settle(w.State().Step.Prompt())
			st, ev, err = w.Transition(ctx, in)
		default:
			st, ev, err = w.Transition(ctx, in)
		}

		if errors.Is(err, core.ErrBiometricUnavailable) {
			renderWizard(pad, st, "Biometric is not available here")
			continue
		}
		if err != nil {
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
		renderWizard(pad, st, "")
	}
}

func renderWizard(pad *Pad, st core.WizardState, hint string) {
	msg := st.Error
	if hint != "" {
		msg = hint
	} else if msg == "" && st.BiometricAllowed {
		msg = "(b: biometric)"
	}
	pad.Render(st.Step.Prompt(), st.Entered, msg)
}
