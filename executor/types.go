package executor

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Prompter asks the operator for a secret without echoing it.
type Prompter interface {
	ReadSecret(ctx context.Context, prompt string) ([]byte, error)
}

// Runner is the privileged execution facility handed to every consumer.
type Runner interface {
	// EnsureCredential returns nil once a validated credential is cached,
	// prompting for and validating one if needed.
	EnsureCredential(ctx context.Context) error
	// RunPrivileged runs one command with elevated privileges. It never
	// spawns anything when no credential can be established.
	RunPrivileged(ctx context.Context, req CommandRequest) CommandResult
	// InvalidateCredential drops the cached credential; the next call prompts again.
	InvalidateCredential()
	Authenticated() bool
	// Target identifies the machine commands run on.
	Target() string
}

// CommandRequest is one privileged invocation. Args never include the
// elevation binary; Input is written to the process after the credential line.
type CommandRequest struct {
	Args  []string
	Input []byte
}

// NewRequest builds a request without extra input.
func NewRequest(args ...string) CommandRequest {
	return CommandRequest{Args: args}
}

// String renders the argv for logs. Input is never included.
func (r CommandRequest) String() string {
	return strings.Join(r.Args, " ")
}

// Validate rejects empty commands, empty tokens and requests that try to
// elevate themselves.
func (r CommandRequest) Validate(elevationBinary string) error {
	if len(r.Args) == 0 {
		return errors.New("command has no tokens")
	}
	for i, a := range r.Args {
		if a == "" {
			return errors.Errorf("token %d is empty", i)
		}
	}
	if r.Args[0] == elevationBinary {
		return errors.Errorf("command must not start with the elevation binary %q", elevationBinary)
	}
	return nil
}

// CommandResult is the outcome of one privileged invocation.
// Stdout and Stderr are never nil. Err is set when the command did not run
// to completion (authentication, spawn, timeout, cancellation or an invalid
// request); a command that ran and exited non-zero has Err == nil.
type CommandResult struct {
	Success  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	Err      error
}

// AsError returns nil for a successful result, Err when the command did not
// run, and a KindCommandFailed *Error for a non-zero exit.
func (r CommandResult) AsError() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Success {
		return nil
	}
	return &Error{
		Kind:     KindCommandFailed,
		ExitCode: r.ExitCode,
		Stderr:   strings.TrimSpace(string(r.Stderr)),
	}
}

func (r CommandResult) StdoutString() string {
	return string(r.Stdout)
}

func (r CommandResult) StderrString() string {
	return string(r.Stderr)
}

func failedResult(err error, started time.Time) CommandResult {
	return CommandResult{
		ExitCode: -1,
		Stdout:   []byte{},
		Stderr:   []byte{},
		Duration: time.Since(started),
		Err:      err,
	}
}
