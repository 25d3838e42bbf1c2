package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/cache"
	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/logger"
	"github.com/mensylisir/xmadmin/util"
)

const (
	DefaultElevationBinary = "sudo"
	DefaultCommandTimeout  = 10 * time.Minute
)

// DefaultElevationArgs make sudo read the secret from stdin, ignore its own
// timestamp cache (so the secret line is always consumed by sudo and never
// reaches the target command) and print no prompt into the captured stderr.
var DefaultElevationArgs = []string{"-S", "-k", "-p", ""}

// DefaultValidateCommand is the no-op run to check a secret.
var DefaultValidateCommand = []string{"true"}

// DefaultNoPasswordArgs make sudo fail instead of asking for a password,
// ignoring its timestamp cache.
var DefaultNoPasswordArgs = []string{"-n", "-k"}

// Options configures a PrivilegedExecutor.
type Options struct {
	Binary          string
	Args            []string
	ValidateCommand []string
	// NoPasswordArgs make the binary fail rather than read a secret. When
	// set, the validate command first runs with them and an empty stdin;
	// if it succeeds no secret is asked for, and commands run with these
	// arguments and only their own input on stdin. Empty skips the check.
	NoPasswordArgs []string
	// Prompt is shown when asking for the secret. Empty selects
	// "[<binary>] password for <target>: ".
	Prompt string
	// CommandTimeout bounds each spawned process. Zero disables it.
	CommandTimeout time.Duration
	// CredentialTTL expires the cached credential. Zero keeps it for the session.
	CredentialTTL time.Duration
	Logger        *logrus.Entry
}

// DefaultOptions returns sudo-based options with the default timeout.
func DefaultOptions() Options {
	return Options{
		Binary:          DefaultElevationBinary,
		Args:            append([]string(nil), DefaultElevationArgs...),
		ValidateCommand: append([]string(nil), DefaultValidateCommand...),
		NoPasswordArgs:  append([]string(nil), DefaultNoPasswordArgs...),
		CommandTimeout:  DefaultCommandTimeout,
	}
}

var _ Runner = (*PrivilegedExecutor)(nil)

// PrivilegedExecutor runs commands through an elevation binary on one
// connector, prompting for the secret once and replaying it on stdin.
//
// The mutex serializes the check, prompt, validate and cache sequence so
// concurrent callers never prompt twice. The secret is copied out under the
// lock, so invalidation never mutates a request already in flight.
type PrivilegedExecutor struct {
	mu          sync.Mutex
	conn        connector.Connector
	prompter    Prompter
	opts        Options
	credentials *cache.Cache[string, []byte]
	log         *logrus.Entry

	// checked is set once the no-password check ran; passwordless records
	// that it succeeded.
	checked      bool
	passwordless bool

	// evicted, when set, is called after an evicted secret was wiped.
	evicted func()
}

func NewPrivilegedExecutor(conn connector.Connector, prompter Prompter, opts Options) *PrivilegedExecutor {
	opts.Binary = util.FirstNonEmpty(opts.Binary, DefaultElevationBinary)
	if opts.Args == nil {
		opts.Args = append([]string(nil), DefaultElevationArgs...)
	}
	if len(opts.ValidateCommand) == 0 {
		opts.ValidateCommand = append([]string(nil), DefaultValidateCommand...)
	}
	opts.Prompt = util.FirstNonEmpty(opts.Prompt, fmt.Sprintf("[%s] password for %s: ", opts.Binary, conn.ID()))
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logger.Log.Logger)
	}

	e := &PrivilegedExecutor{
		conn:     conn,
		prompter: prompter,
		opts:     opts,
		log:      log.WithField(common.HostName, conn.ID()),
	}
	cacheOpts := []cache.Option[string, []byte]{
		cache.WithDefaultTTL[string, []byte](opts.CredentialTTL),
		cache.WithOnEvict(e.wipe),
	}
	if opts.CredentialTTL > 0 {
		// An expired secret is wiped within a second even if nobody asks for it again.
		cacheOpts = append(cacheOpts, cache.WithJanitorInterval[string, []byte](min(opts.CredentialTTL, time.Second)))
	}
	e.credentials = cache.NewCache[string, []byte](cacheOpts...)
	return e
}

func (e *PrivilegedExecutor) wipe(_ string, secret []byte) {
	util.Wipe(secret)
	if e.evicted != nil {
		e.evicted()
	}
}

func (e *PrivilegedExecutor) Target() string {
	return e.conn.ID()
}

func (e *PrivilegedExecutor) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.passwordless || e.credentials.Has(e.conn.ID())
}

func (e *PrivilegedExecutor) EnsureCredential(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	secret, err := e.credentialLocked(ctx)
	util.Wipe(secret)
	return err
}

func (e *PrivilegedExecutor) InvalidateCredential() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.credentials.Delete(e.conn.ID())
	e.checked, e.passwordless = false, false
	e.log.Debug("cached credential invalidated")
}

// Close wipes every cached credential. The connector is left open.
func (e *PrivilegedExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.credentials.Close()
	e.checked, e.passwordless = false, false
	return nil
}

// credentialLocked returns a private copy of the validated secret,
// prompting and validating first when none is cached. A nil secret with a
// nil error means the target needs no secret at all.
func (e *PrivilegedExecutor) credentialLocked(ctx context.Context) ([]byte, error) {
	key := e.conn.ID()
	if cached, ok := e.credentials.Get(key); ok {
		return append([]byte(nil), cached...), nil
	}
	if !e.checked && len(e.opts.NoPasswordArgs) > 0 {
		code, _, err := e.spawn(ctx, CommandRequest{Args: e.opts.ValidateCommand}, nil)
		if err != nil {
			return nil, err
		}
		e.checked = true
		e.passwordless = code == 0
		if e.passwordless {
			e.log.Info("no password is needed for privileged commands")
		}
	}
	if e.passwordless {
		return nil, nil
	}

	secret, err := e.prompter.ReadSecret(ctx, e.opts.Prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(KindCancelled, "", ctxErr)
		}
		e.log.WithError(err).Error("cannot ask for the elevation password")
		return nil, newError(KindPromptUnavailable, "", err)
	}
	if len(secret) == 0 {
		e.log.Error("authentication failed: empty password")
		return nil, newError(KindAuthenticationFailed, "", errors.New("empty password"))
	}

	validate := CommandRequest{Args: e.opts.ValidateCommand}
	code, stderr, err := e.spawn(ctx, validate, secret)
	if err != nil {
		util.Wipe(secret)
		return nil, err
	}
	if code != 0 {
		util.Wipe(secret)
		e.log.WithField("exitCode", code).Error("authentication failed: the password was rejected")
		authErr := newError(KindAuthenticationFailed, "", nil)
		authErr.ExitCode = code
		authErr.Stderr = string(bytes.TrimSpace(stderr))
		return nil, authErr
	}

	e.credentials.Set(key, secret)
	e.log.Debug("credential validated and cached")
	return append([]byte(nil), secret...), nil
}

func (e *PrivilegedExecutor) RunPrivileged(ctx context.Context, req CommandRequest) CommandResult {
	started := time.Now()
	if err := req.Validate(e.opts.Binary); err != nil {
		return failedResult(newError(KindInvalidRequest, req.String(), err), started)
	}

	e.mu.Lock()
	secret, err := e.credentialLocked(ctx)
	e.mu.Unlock()
	if err != nil {
		return failedResult(err, started)
	}
	defer util.Wipe(secret)

	log := e.log.WithField(common.CommandName, req.String())
	log.Debug("running privileged command")

	var stdout, stderr bytes.Buffer
	code, err := e.spawnTo(ctx, req, secret, &stdout, &stderr)
	result := CommandResult{
		Success:  err == nil && code == 0,
		ExitCode: code,
		Stdout:   nonNil(stdout.Bytes()),
		Stderr:   nonNil(stderr.Bytes()),
		Duration: time.Since(started),
		Err:      err,
	}
	if err != nil {
		result.ExitCode = -1
		log.WithError(err).Warn("privileged command did not complete")
	} else if code != 0 {
		log.WithField("exitCode", code).Debug("privileged command exited non-zero")
	}
	return result
}

func (e *PrivilegedExecutor) spawn(ctx context.Context, req CommandRequest, secret []byte) (int, []byte, error) {
	var stderr bytes.Buffer
	code, err := e.spawnTo(ctx, req, secret, io.Discard, &stderr)
	return code, stderr.Bytes(), err
}

// spawnTo runs <binary> <args...> <req.Args...> with secret, a newline and
// req.Input on stdin. A nil secret runs <binary> <no-password args...>
// <req.Args...> with req.Input alone. The returned error is always an *Error.
func (e *PrivilegedExecutor) spawnTo(ctx context.Context, req CommandRequest, secret []byte, stdout, stderr io.Writer) (int, error) {
	runCtx := ctx
	if e.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.CommandTimeout)
		defer cancel()
	}

	elevationArgs := e.opts.Args
	stdin := io.MultiReader(bytes.NewReader(secret), bytes.NewReader([]byte{'\n'}), bytes.NewReader(req.Input))
	if secret == nil {
		elevationArgs = e.opts.NoPasswordArgs
		stdin = bytes.NewReader(req.Input)
	}

	argv := make([]string, 0, 1+len(elevationArgs)+len(req.Args))
	argv = append(argv, e.opts.Binary)
	argv = append(argv, elevationArgs...)
	argv = append(argv, req.Args...)

	code, err := e.conn.PExec(runCtx, argv, stdin, stdout, stderr)
	if err == nil {
		return code, nil
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return -1, newError(KindTimeout, req.String(), err)
	case runCtx.Err() != nil:
		return -1, newError(KindCancelled, req.String(), err)
	default:
		return -1, newError(KindSpawnFailed, req.String(), err)
	}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
