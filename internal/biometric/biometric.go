package biometric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Type is a biometric modality
type Type string

const (
	Fingerprint Type = "fingerprint"
	Face        Type = "face"
	Iris        Type = "iris"
)

var (
	ErrUnknownType = errors.New("unknown biometric type")
	ErrNotVerified = errors.New("biometric verification failed")
	ErrNoSensor    = errors.New("no usable biometric sensor")
)

// ParseType parses a configured modality name
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Fingerprint, Face, Iris:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) priority() int {
	switch t {
	case Fingerprint:
		return 0
	case Face:
		return 1
	case Iris:
		return 2
	}
	return 3
}

// Sensor is one platform biometric capability
type Sensor interface {
	Type() Type
	// Present reports whether the hardware exists.
	Present(ctx context.Context) bool
	// Enrolled reports whether the user enrolled at least one biometric.
	Enrolled(ctx context.Context) bool
	// Verify prompts once and returns nil only on explicit success.
	Verify(ctx context.Context, reason string) error
}

// Gateway selects among sensors by priority
type Gateway struct {
	sensors []Sensor
	logger  *slog.Logger
}

// NewGateway returns a gateway over sensors. With no sensors it reports
// biometrics as unavailable.
func NewGateway(logger *slog.Logger, sensors ...Sensor) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sorted := append([]Sensor(nil), sensors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type().priority() < sorted[j].Type().priority()
	})
	return &Gateway{sensors: sorted, logger: logger}
}

// Unavailable returns a gateway for hosts without biometric hardware
func Unavailable() *Gateway {
	return NewGateway(nil)
}

func (g *Gateway) usable(ctx context.Context) (Sensor, bool) {
	for _, s := range g.sensors {
		if s.Present(ctx) && s.Enrolled(ctx) {
			return s, true
		}
	}
	return nil, false
}

// Available is true only if some sensor is present and has an enrollment
func (g *Gateway) Available(ctx context.Context) bool {
	_, ok := g.usable(ctx)
	return ok
}

// FactorType returns the highest-priority modality the hardware supports
func (g *Gateway) FactorType(ctx context.Context) (Type, bool) {
	for _, s := range g.sensors {
		if s.Present(ctx) {
			return s.Type(), true
		}
	}
	return "", false
}

// Authenticate prompts on the highest-priority usable sensor. It returns
// true only on explicit success.
func (g *Gateway) Authenticate(ctx context.Context, reason string) bool {
	s, ok := g.usable(ctx)
	if !ok {
		g.logger.Debug("biometric authentication skipped", "error", ErrNoSensor)
		return false
	}
	if err := s.Verify(ctx, reason); err != nil {
		g.logger.Debug("biometric authentication failed", "type", s.Type(), "error", err)
		return false
	}
	g.logger.Info("biometric authentication succeeded", "type", s.Type())
	return true
}
