// Package runtimetest provides in-memory Runtime and Runner implementations
// for testing tasks and steps without spawning processes.
package runtimetest

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/runtime"
)

// Runner records every request. Input is copied before it is recorded.
type Runner struct {
	mu sync.Mutex

	// Handler decides the result of a request. Nil means success with empty output.
	Handler func(req executor.CommandRequest) executor.CommandResult
	// AuthErr, when set, fails EnsureCredential and every RunPrivileged.
	AuthErr  error
	TargetID string

	requests      []executor.CommandRequest
	ensureCalls   int
	authenticated bool
}

var _ executor.Runner = (*Runner)(nil)

func (r *Runner) EnsureCredential(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureCalls++
	if r.AuthErr != nil {
		return r.AuthErr
	}
	r.authenticated = true
	return nil
}

func (r *Runner) RunPrivileged(ctx context.Context, req executor.CommandRequest) executor.CommandResult {
	if err := r.EnsureCredential(ctx); err != nil {
		return executor.CommandResult{ExitCode: -1, Stdout: []byte{}, Stderr: []byte{}, Err: err}
	}

	r.mu.Lock()
	r.requests = append(r.requests, executor.CommandRequest{
		Args:  append([]string(nil), req.Args...),
		Input: append([]byte(nil), req.Input...),
	})
	handler := r.Handler
	r.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return Success("")
}

func (r *Runner) InvalidateCredential() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticated = false
}

func (r *Runner) Authenticated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authenticated
}

func (r *Runner) Target() string {
	if r.TargetID == "" {
		return common.LocalHostname
	}
	return r.TargetID
}

// Requests returns the recorded requests in order.
func (r *Runner) Requests() []executor.CommandRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.CommandRequest(nil), r.requests...)
}

// Argvs returns the argv of every recorded request.
func (r *Runner) Argvs() [][]string {
	var out [][]string
	for _, req := range r.Requests() {
		out = append(out, req.Args)
	}
	return out
}

// Success builds a successful result with stdout.
func Success(stdout string) executor.CommandResult {
	return executor.CommandResult{Success: true, Stdout: []byte(stdout), Stderr: []byte{}, Duration: time.Millisecond}
}

// Failure builds a result for a command that exited with code.
func Failure(code int, stderr string) executor.CommandResult {
	return executor.CommandResult{ExitCode: code, Stdout: []byte{}, Stderr: []byte(stderr), Duration: time.Millisecond}
}

// Runtime is a runtime.Runtime over a fake Runner.
type Runtime struct {
	Cfg       *config.AppConfig
	R         *Runner
	Output    bytes.Buffer
	Log       *logrus.Entry
	closed    bool
	sessionID string
}

var _ runtime.Runtime = (*Runtime)(nil)

// NewRuntime returns a runtime with default config whose logs are discarded.
func NewRuntime() *Runtime {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	return &Runtime{
		Cfg:       config.Default(),
		R:         &Runner{},
		Log:       logrus.NewEntry(l),
		sessionID: uuid.NewString(),
	}
}

func (rt *Runtime) SessionID() string { return rt.sessionID }
func (rt *Runtime) Config() *config.AppConfig { return rt.Cfg }
func (rt *Runtime) Runner() executor.Runner { return rt.R }
func (rt *Runtime) Verbose() bool { return rt.Cfg.Log.Verbose }
func (rt *Runtime) IgnoreError() bool { return rt.Cfg.IgnoreErrors }
func (rt *Runtime) Out() io.Writer { return &rt.Output }
func (rt *Runtime) Logger() *logrus.Entry { return rt.Log }
func (rt *Runtime) Closed() bool { return rt.closed }

func (rt *Runtime) RunnerFor(host *connector.Host) (executor.Runner, error) {
	return rt.R, nil
}

func (rt *Runtime) Close() error {
	rt.closed = true
	return nil
}
