package executor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies why a privileged operation did not succeed.
type Kind int

const (
	// KindAuthenticationFailed: the secret did not validate and was not cached.
	KindAuthenticationFailed Kind = iota + 1
	// KindPromptUnavailable: no interactive channel to ask for the secret.
	KindPromptUnavailable
	// KindSpawnFailed: the elevation or target binary could not be started.
	KindSpawnFailed
	// KindCommandFailed: the process ran and exited non-zero.
	KindCommandFailed
	// KindTimeout: the command outlived its deadline and was killed.
	KindTimeout
	// KindCancelled: the caller cancelled and the process was killed.
	KindCancelled
	// KindInvalidRequest: the request was rejected before anything ran.
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindPromptUnavailable:
		return "prompt unavailable"
	case KindSpawnFailed:
		return "spawn failed"
	case KindCommandFailed:
		return "command failed"
	case KindTimeout:
		return "timed out"
	case KindCancelled:
		return "cancelled"
	case KindInvalidRequest:
		return "invalid request"
	default:
		return "unknown"
	}
}

// Error is the typed failure of a privileged operation.
type Error struct {
	Kind Kind
	// Command is the target command line without the elevation prefix.
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Command != "" {
		fmt.Fprintf(&b, " (%s)", e.Command)
	}
	if e.Kind == KindCommandFailed {
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, command string, err error) *Error {
	return &Error{Kind: kind, Command: command, ExitCode: -1, Err: err}
}

// IsKind reports whether err, or any error it wraps, is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsAuthFailure reports whether err means no validated credential is available.
// A missing prompt channel counts as an authentication failure.
func IsAuthFailure(err error) bool {
	return IsKind(err, KindAuthenticationFailed) || IsKind(err, KindPromptUnavailable)
}
