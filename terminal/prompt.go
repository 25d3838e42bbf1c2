package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when no terminal is available to prompt on.
var ErrNotInteractive = errors.New("no interactive terminal available to read a secret")

// PromptOptions configures a PasswordPrompter.
type PromptOptions struct {
	// In is the terminal secrets are read from, os.Stdin when nil.
	In *os.File
	// Out receives the prompt text, os.Stderr when nil.
	Out io.Writer
	// NonInteractive refuses every prompt.
	NonInteractive bool
}

// PasswordPrompter reads secrets from a terminal with echo disabled.
type PasswordPrompter struct {
	in             *os.File
	out            io.Writer
	nonInteractive bool

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

func NewPasswordPrompter(opts PromptOptions) *PasswordPrompter {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	return &PasswordPrompter{
		in:             in,
		out:            out,
		nonInteractive: opts.NonInteractive,
		isTerminal:     term.IsTerminal,
		readPassword:   term.ReadPassword,
	}
}

// ReadSecret writes prompt and reads one line without echo. The returned
// slice belongs to the caller, who should wipe it after use.
// The read itself cannot be interrupted; ctx is only checked before prompting.
func (p *PasswordPrompter) ReadSecret(ctx context.Context, prompt string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fd := int(p.in.Fd())
	if p.nonInteractive || !p.isTerminal(fd) {
		return nil, ErrNotInteractive
	}

	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return nil, errors.Wrap(err, "failed to write prompt")
	}
	secret, err := p.readPassword(fd)
	// The terminal swallowed the user's Enter key.
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read secret from terminal")
	}
	return secret, nil
}
