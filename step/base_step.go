package step

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/runtime"
)

// BaseStep provides common fields and default method implementations for steps.
type BaseStep struct {
	StepName        string
	StepDescription string
}

// NewBaseStep is a helper constructor for initializing common BaseStep fields.
func NewBaseStep(name, description string) BaseStep {
	return BaseStep{
		StepName:        name,
		StepDescription: description,
	}
}

func (bs *BaseStep) Name() string {
	return bs.StepName
}

func (bs *BaseStep) Description() string {
	return bs.StepDescription
}

// Init checks the runtime. Concrete steps call it before their own checks.
func (bs *BaseStep) Init(rt runtime.Runtime, logger *logrus.Entry) error {
	if rt == nil {
		return errors.Errorf("runtime cannot be nil for step '%s'", bs.StepName)
	}
	if rt.Runner() == nil {
		return errors.Errorf("no privileged runner in runtime for step '%s'", bs.StepName)
	}
	return nil
}

// Execute must be overridden by concrete steps.
func (bs *BaseStep) Execute(ctx context.Context, rt runtime.Runtime, logger *logrus.Entry) (output string, success bool, err error) {
	logger.Warnf("BaseStep.Execute called directly for step [%s]", bs.StepName)
	return "", false, errors.Errorf("Execute not implemented for step '%s'", bs.StepName)
}

// Post is a no-op.
func (bs *BaseStep) Post(rt runtime.Runtime, logger *logrus.Entry, executeErr error) error {
	return nil
}
