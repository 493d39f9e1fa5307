package core

import "errors"

var (
	ErrInvalidPin           = errors.New("pin must be exactly 4 digits")
	ErrUnknownFactor        = errors.New("unknown lock factor")
	ErrSettingsCorrupt      = errors.New("lock settings are corrupt")
	ErrAlreadyEnabled       = errors.New("lock already enabled")
	ErrNotEnabled           = errors.New("lock not enabled")
	ErrCredentialMissing    = errors.New("lock enabled but no pin stored")
	ErrBiometricUnavailable = errors.New("biometric authentication not available")
	ErrFlowFinished         = errors.New("flow already finished")
	ErrGateNotStarted       = errors.New("unlock gate not started")
	ErrGateClosed           = errors.New("unlock gate closed")
	ErrCooldownActive       = errors.New("pin entry paused, cooldown active")
	ErrInvalidInput         = errors.New("invalid input")
)
