package connector

import (
	"context"
	"io"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmadmin/common"
)

var _ Connector = (*LocalConnector)(nil)

// LocalConnector runs processes on the current machine.
type LocalConnector struct{}

func NewLocalConnector() *LocalConnector {
	return &LocalConnector{}
}

func (l *LocalConnector) ID() string {
	return common.LocalHostname
}

func (l *LocalConnector) PExec(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, errors.New("no command given")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, errors.Wrapf(ctxErr, "command %s interrupted", argv[0])
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.Wrapf(err, "failed to run %s", argv[0])
}

func (l *LocalConnector) Close() error {
	return nil
}
