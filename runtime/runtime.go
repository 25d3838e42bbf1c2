package runtime

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/logger"
	"github.com/mensylisir/xmadmin/util"
)

// Options for creating a new Session. Zero fields select the defaults.
type Options struct {
	Dialer   connector.Dialer
	Prompter executor.Prompter
	Out      io.Writer
	Log      *logger.XMLog
}

type hostResources struct {
	conn connector.Connector
	exec *executor.PrivilegedExecutor
}

// Session implements Runtime. One session holds at most one cached
// credential per host.
type Session struct {
	id       string
	cfg      *config.AppConfig
	out      io.Writer
	log      *logrus.Entry
	dialer   connector.Dialer
	prompter executor.Prompter
	primary  executor.Runner

	hostResourcesLock sync.Mutex
	hostResources     map[string]hostResources
	closed            bool
}

var _ Runtime = (*Session)(nil)

// NewSession connects to the configured target and prepares its runner.
func NewSession(cfg *config.AppConfig, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("runtime: config cannot be nil")
	}
	if opts.Prompter == nil {
		return nil, errors.New("runtime: prompter cannot be nil")
	}
	if opts.Dialer == nil {
		opts.Dialer = connector.NewDialer()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = logger.Log
	}

	id := uuid.NewString()
	s := &Session{
		id:            id,
		cfg:           cfg,
		out:           opts.Out,
		log:           opts.Log.ForSession(id),
		dialer:        opts.Dialer,
		prompter:      opts.Prompter,
		hostResources: make(map[string]hostResources),
	}

	target, err := cfg.ResolveTarget()
	if err != nil {
		return nil, err
	}
	primary, err := s.RunnerFor(target)
	if err != nil {
		return nil, err
	}
	s.primary = primary
	s.log.WithField(common.HostName, primary.Target()).Debug("session started")
	return s, nil
}

func (s *Session) SessionID() string {
	return s.id
}

func (s *Session) Config() *config.AppConfig {
	return s.cfg
}

func (s *Session) Runner() executor.Runner {
	return s.primary
}

func (s *Session) Verbose() bool {
	return s.cfg.Log.Verbose
}

func (s *Session) IgnoreError() bool {
	return s.cfg.IgnoreErrors
}

func (s *Session) Out() io.Writer {
	return s.out
}

func (s *Session) Logger() *logrus.Entry {
	return s.log
}

func (s *Session) RunnerFor(host *connector.Host) (executor.Runner, error) {
	hostID := common.LocalHostname
	if host != nil {
		hostID = host.ID()
	}

	s.hostResourcesLock.Lock()
	if s.closed {
		s.hostResourcesLock.Unlock()
		return nil, errors.New("runtime: session is closed")
	}
	res, found := s.hostResources[hostID]
	s.hostResourcesLock.Unlock()
	if found {
		return res.exec, nil
	}

	// Dialing may take a while, so it runs unlocked.
	conn, err := s.dialer.Dial(host)
	if err != nil {
		return nil, errors.Wrapf(err, "runtime: failed to connect to %s", hostID)
	}
	opts := s.cfg.ExecutorOptions()
	opts.Logger = s.log
	newExec := executor.NewPrivilegedExecutor(conn, s.prompter, opts)

	s.hostResourcesLock.Lock()
	defer s.hostResourcesLock.Unlock()

	// Another goroutine may have connected while we were unlocked.
	if res, found = s.hostResources[hostID]; found || s.closed {
		_ = newExec.Close()
		_ = conn.Close()
		if s.closed {
			return nil, errors.New("runtime: session is closed")
		}
		return res.exec, nil
	}
	s.hostResources[hostID] = hostResources{conn: conn, exec: newExec}
	return newExec, nil
}

func (s *Session) Close() error {
	s.hostResourcesLock.Lock()
	defer s.hostResourcesLock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for id, res := range s.hostResources {
		if err := res.exec.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to wipe credentials of %s", id))
		}
		if err := res.conn.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to close connection to %s", id))
		}
	}
	s.hostResources = nil
	s.log.Debug("session closed")
	return util.CombineErrors(errs...)
}
