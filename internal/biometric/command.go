package biometric

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command is a Sensor backed by external programs, for example fprintd on
// Linux (fprintd-list / fprintd-verify) or howdy for face unlock.
type Command struct {
	kind         Type
	availableCmd []string
	verifyCmd    []string

	// Prompt output of the verifier goes here (stderr by default).
	Output io.Writer
}

// NewCommand creates a sensor. verifyCmd must exit 0 only on a successful
// match. availableCmd, when set, must exit 0 only if an enrollment exists.
func NewCommand(kind Type, availableCmd, verifyCmd []string) (*Command, error) {
	if _, err := ParseType(string(kind)); err != nil {
		return nil, err
	}
	if len(verifyCmd) == 0 {
		return nil, errors.New("verify command is empty")
	}
	return &Command{
		kind:         kind,
		availableCmd: availableCmd,
		verifyCmd:    verifyCmd,
		Output:       os.Stderr,
	}, nil
}

// Type returns the sensor modality
func (c *Command) Type() Type {
	return c.kind
}

// Present checks the verifier program is installed
func (c *Command) Present(_ context.Context) bool {
	_, err := exec.LookPath(c.verifyCmd[0])
	return err == nil
}

// Enrolled runs the availability probe; without one, presence implies enrollment
func (c *Command) Enrolled(ctx context.Context) bool {
	if len(c.availableCmd) == 0 {
		return c.Present(ctx)
	}
	cmd := exec.CommandContext(ctx, c.availableCmd[0], c.availableCmd[1:]...)
	return cmd.Run() == nil
}

// Verify runs the verifier with the reason in PINLOCK_BIOMETRIC_REASON
func (c *Command) Verify(ctx context.Context, reason string) error {
	cmd := exec.CommandContext(ctx, c.verifyCmd[0], c.verifyCmd[1:]...)
	cmd.Env = append(os.Environ(), "PINLOCK_BIOMETRIC_REASON="+reason)
	cmd.Stdin = os.Stdin
	cmd.Stdout = c.Output
	cmd.Stderr = c.Output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotVerified, err)
	}
	return nil
}

// Fprintd returns a fingerprint sensor driven by the fprintd command line
// tools for the given user.
func Fprintd(user string) *Command {
	c, _ := NewCommand(Fingerprint, []string{"fprintd-list", user}, []string{"fprintd-verify", user})
	return c
}
