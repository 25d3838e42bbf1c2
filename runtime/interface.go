package runtime

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
)

// Runtime is the execution context handed to tasks and steps.
type Runtime interface {
	// SessionID identifies this session in every log line.
	SessionID() string
	Config() *config.AppConfig

	// Runner returns the privileged runner of the session's target.
	Runner() executor.Runner

	// RunnerFor returns the privileged runner of host, nil meaning this
	// machine. Runners and their connectors are cached per host.
	RunnerFor(host *connector.Host) (executor.Runner, error)

	Verbose() bool
	IgnoreError() bool

	// Out receives user-facing progress lines.
	Out() io.Writer
	Logger() *logrus.Entry

	// Close wipes every cached credential and closes every connector.
	Close() error
}
