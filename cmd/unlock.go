package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/illarion/pinlock/internal/app"
	"github.com/illarion/pinlock/internal/core"
)

const unlockPrompt = "Enter PIN"

// Unlock runs the unlock gate. It exits 0 once the user proves identity and
// 2 if the user gives up. A disabled lock passes immediately.
func Unlock(ctx context.Context, configFile string) {
	a := OpenApp(configFile)
	defer a.Close()

	settings, err := a.Settings.Get(ctx)
	if err != nil {
		HandleError(err)
	}
	if !settings.Enabled {
		fmt.Println("Lock is not enabled")
		return
	}

	ok, err := passGate(ctx, a, NewPad(os.Stdin, os.Stdout, a.Config.SubmitDelay))
	if err != nil {
		HandleError(err)
	}
	if !ok {
		os.Exit(ExitCancelled)
	}
}

// Factor switches the lock factor after passing the gate
func Factor(ctx context.Context, configFile string, factor string) {
	f, err := core.ParseFactor(factor)
	if err != nil {
		HandleError(err)
	}

	a := OpenApp(configFile)
	defer a.Close()

	ok, err := passGate(ctx, a, NewPad(os.Stdin, os.Stdout, a.Config.SubmitDelay))
	if err != nil {
		HandleError(err)
	}
	if !ok {
		os.Exit(ExitCancelled)
	}

	if err := a.Settings.SetFactor(ctx, f, a.Biometric); err != nil {
		HandleError(err)
	}
	fmt.Printf("Lock factor set to %s\n", f)
}

// passGate mounts the unlock gate on the terminal. It reports false when
// the user cancels.
func passGate(ctx context.Context, a *app.App, pad *Pad) (bool, error) {
	gate := core.NewGate(a.Deps(),
		core.WithPolicy(a.Policy()),
		core.WithBiometricReason(a.Config.Biometric.Reason),
		core.WithListener(func(st core.GateState) { renderGate(pad, st) }),
	)
	defer gate.Close()

	// The automatic biometric prompt runs before raw mode
	st, ev, err := gate.Start(ctx)
	if err != nil {
		return false, err
	}
	if ev != nil {
		pad.Println("Unlocked")
		return true, nil
	}

	if err := pad.Start(); err != nil {
		return false, err
	}
	defer pad.Stop()
	renderGate(pad, st)

	for {
		in, err := pad.Read()
		if err != nil {
			return false, err
		}
		if in.Kind == core.InputCancel {
			pad.Println("Cancelled")
			return false, nil
		}

		switch {
		case in.Kind == core.InputBiometric:
			pad.Suspend(func() { st, ev, err = gate.Transition(ctx, in) })
		case in.Kind == core.InputDigit && settles(gate.State()):
			pad.Settle(unlockPrompt)
			st, ev, err = gate.Transition(ctx, in)
		default:
			st, ev, err = gate.Transition(ctx, in)
		}

		switch {
		case errors.Is(err, core.ErrCooldownActive), errors.Is(err, core.ErrBiometricUnavailable):
		case err != nil:
			return false, err
		case ev != nil:
			pad.Println("Unlocked")
			return true, nil
		}
		renderGate(pad, st)
	}
}

func settles(st core.GateState) bool {
	return st.CooldownRemaining == 0 && st.Entered == core.PinLength-1
}

func renderGate(pad *Pad, st core.GateState) {
	msg := st.Message
	if msg == "" && st.BiometricAllowed {
		msg = "(b: biometric, q: quit)"
	}
	pad.Render(unlockPrompt, st.Entered, msg)
}
