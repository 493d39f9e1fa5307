package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/illarion/pinlock/internal/core"
)

// Pad reads single key presses and renders the PIN prompt on one line.
// On a terminal it switches to raw mode so digits are not echoed; otherwise
// it reads bytes as they come, which keeps it scriptable.
type Pad struct {
	in          *bufio.Reader
	out         io.Writer
	fd          int
	tty         bool
	submitDelay time.Duration

	mu    sync.Mutex
	saved *term.State
}

// NewPad creates a pad over in and out
func NewPad(in io.Reader, out io.Writer, submitDelay time.Duration) *Pad {
	p := &Pad{in: bufio.NewReader(in), out: out, fd: -1, submitDelay: submitDelay}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Start enters raw mode on a terminal
func (p *Pad) Start() error {
	if !p.tty {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved != nil {
		return nil
	}
	state, err := term.MakeRaw(p.fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	p.saved = state
	return nil
}

// Stop restores the terminal and ends the prompt line
func (p *Pad) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved != nil {
		term.Restore(p.fd, p.saved)
		p.saved = nil
	}
	fmt.Fprint(p.out, "\r\n")
}

// Suspend restores cooked mode while fn runs; external biometric
// verifiers expect a normal terminal.
func (p *Pad) Suspend(fn func()) {
	p.mu.Lock()
	raw := p.saved != nil
	p.mu.Unlock()

	if raw {
		p.Stop()
		defer p.Start()
	}
	fn()
}

// Read returns the next input. Keys that map to no input are skipped.
// End of input reads as Cancel.
func (p *Pad) Read() (core.Input, error) {
	for {
		b, err := p.in.ReadByte()
		if errors.Is(err, io.EOF) {
			return core.Cancel(), nil
		}
		if err != nil {
			return core.Input{}, fmt.Errorf("failed to read key: %w", err)
		}
		if in, ok := keyInput(b); ok {
			return in, nil
		}
	}
}

func keyInput(b byte) (core.Input, bool) {
	switch {
	case b >= '0' && b <= '9':
		return core.Digit(b), true
	case b == 127 || b == 8:
		return core.Backspace(), true
	case b == 3 || b == 27 || b == 'q':
		return core.Cancel(), true
	case b == 'b':
		return core.UseBiometric(), true
	}
	return core.Input{}, false
}

// Render redraws the prompt line. It may be called from the cooldown ticker.
func (p *Pad) Render(prompt string, entered int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dots := strings.Repeat("*", entered) + strings.Repeat("-", core.PinLength-entered)
	line := fmt.Sprintf("%s [%s]", prompt, dots)
	if message != "" {
		line += "  " + message
	}
	fmt.Fprintf(p.out, "\r\x1b[K%s", line)
}

// Println writes a full line, ending the prompt line first
func (p *Pad) Println(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r\x1b[K%s\r\n", msg)
}

// Settle shows the completed entry for a moment before it is submitted
func (p *Pad) Settle(prompt string) {
	if p.submitDelay <= 0 {
		return
	}
	p.Render(prompt, core.PinLength, "")
	time.Sleep(p.submitDelay)
}
