package connector

import (
	"context"
	"io"
)

// Connector spawns processes on one target machine.
//
// PExec runs argv to completion, streaming stdin to the process and its
// output to stdout and stderr. A process that ran and exited non-zero is
// reported through exitCode with a nil error; err is set only when the
// process could not be started or observed (including context cancellation).
type Connector interface {
	ID() string
	PExec(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) (exitCode int, err error)
	Close() error
}

// Dialer opens connectors for configured hosts.
type Dialer interface {
	// Dial returns a connector for host. A nil host means the local machine.
	Dial(host *Host) (Connector, error)
}
