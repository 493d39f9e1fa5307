package core

import (
	"context"
	"fmt"
)

// InputKind enumerates user inputs accepted by the controllers
type InputKind int

const (
	InputDigit InputKind = iota
	InputBackspace
	InputCancel
	InputBiometric
)

// Input is one key press or action from the host
type Input struct {
	Kind  InputKind
	Digit byte
}

// Digit returns a digit input. d is an ASCII character '0'..'9'.
func Digit(d byte) Input {
	return Input{Kind: InputDigit, Digit: d}
}

func Backspace() Input {
	return Input{Kind: InputBackspace}
}

func Cancel() Input {
	return Input{Kind: InputCancel}
}

func UseBiometric() Input {
	return Input{Kind: InputBiometric}
}

// String never includes the digit value.
func (in Input) String() string {
	switch in.Kind {
	case InputDigit:
		return "digit"
	case InputBackspace:
		return "backspace"
	case InputCancel:
		return "cancel"
	case InputBiometric:
		return "biometric"
	}
	return fmt.Sprintf("input(%d)", int(in.Kind))
}

func (in Input) validDigit() bool {
	return in.Kind == InputDigit && in.Digit >= '0' && in.Digit <= '9'
}

// BiometricGateway is the biometric capability used by the controllers
type BiometricGateway interface {
	Available(ctx context.Context) bool
	Authenticate(ctx context.Context, reason string) bool
}

// EventKind is the kind of terminal event a controller emits
type EventKind int

const (
	EventCompleted EventKind = iota
	EventCancelled
	EventUnlocked
)

func (k EventKind) String() string {
	switch k {
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventUnlocked:
		return "unlocked"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Action is what a completed wizard did
type Action string

const (
	ActionEnabled  Action = "enabled"
	ActionChanged  Action = "changed"
	ActionDisabled Action = "disabled"
)

// Event is emitted once when a flow ends
type Event struct {
	Kind   EventKind
	Action Action
}
