package step

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/runtime"
)

// Step represents an individual unit of work within a Task.
type Step interface {
	// Name returns the short name of the step.
	Name() string

	// Description returns a human-readable description of what the step does.
	Description() string

	// Init performs any validation required before execution.
	Init(rt runtime.Runtime, logger *logrus.Entry) error

	// Execute performs the primary action of the step.
	// It returns an output string (e.g., command output), a boolean indicating success,
	// and an error if the execution failed.
	// The logger entry is pre-configured with step context.
	Execute(ctx context.Context, rt runtime.Runtime, logger *logrus.Entry) (output string, success bool, err error)

	// Post runs after Execute whatever its outcome and receives its error.
	Post(rt runtime.Runtime, logger *logrus.Entry, executeErr error) error
}
