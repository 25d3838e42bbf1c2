package task

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/runtime"
)

// Task is a named sequence of steps run against the session's target.
type Task interface {
	// Name returns the unique name of the task.
	Name() string

	// Description provides a human-readable summary of what the task does.
	Description() string

	Init(rt runtime.Runtime, logger *logrus.Entry) error

	// Execute runs the task's steps and returns an error if the task failed.
	Execute(ctx context.Context, rt runtime.Runtime, logger *logrus.Entry) error

	Post(rt runtime.Runtime, logger *logrus.Entry, executeErr error) error
}
