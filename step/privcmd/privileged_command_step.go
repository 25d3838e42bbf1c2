package privcmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/step"
	"github.com/mensylisir/xmadmin/util"
)

// PrivilegedCommandStep runs one command through the runtime's privileged runner.
type PrivilegedCommandStep struct {
	step.BaseStep
	Request executor.CommandRequest
	// SensitiveInput marks Input as a secret: it is wiped in Post.
	SensitiveInput bool

	result executor.CommandResult
}

// NewPrivilegedCommandStep creates a step running args without extra input.
func NewPrivilegedCommandStep(name, description string, args ...string) *PrivilegedCommandStep {
	return &PrivilegedCommandStep{
		BaseStep: step.NewBaseStep(name, description),
		Request:  executor.NewRequest(args...),
	}
}

// NewPrivilegedInputStep creates a step writing input to the command after
// the credential line. Secret input is wiped once the step has run.
func NewPrivilegedInputStep(name, description string, input []byte, sensitive bool, args ...string) *PrivilegedCommandStep {
	return &PrivilegedCommandStep{
		BaseStep:       step.NewBaseStep(name, description),
		Request:        executor.CommandRequest{Args: args, Input: input},
		SensitiveInput: sensitive,
	}
}

func (s *PrivilegedCommandStep) Init(rt runtime.Runtime, log *logrus.Entry) error {
	if err := s.BaseStep.Init(rt, log); err != nil {
		return err
	}
	if err := s.Request.Validate(rt.Config().Elevation.Binary); err != nil {
		return errors.Wrapf(err, "invalid command for step %s", s.Name())
	}
	log.Debugf("Initialized privileged command step %s: %s", s.Name(), s.Request)
	return nil
}

// Execute runs the command. Output is the command's stdout. A non-zero exit
// is returned as a KindCommandFailed error.
func (s *PrivilegedCommandStep) Execute(ctx context.Context, rt runtime.Runtime, log *logrus.Entry) (output string, success bool, err error) {
	log = log.WithField(common.CommandName, s.Request.String())
	s.result = rt.Runner().RunPrivileged(ctx, s.Request)
	stdout := s.result.StdoutString()

	if err := s.result.AsError(); err != nil {
		log.WithField("exitCode", s.result.ExitCode).Debugf("stderr: %s", strings.TrimSpace(s.result.StderrString()))
		return stdout, false, err
	}
	log.Debugf("Command finished in %s", s.result.Duration)
	return stdout, true, nil
}

func (s *PrivilegedCommandStep) Post(rt runtime.Runtime, log *logrus.Entry, executeErr error) error {
	if s.SensitiveInput {
		util.Wipe(s.Request.Input)
	}
	return nil
}

// Result returns the outcome of the last Execute.
func (s *PrivilegedCommandStep) Result() executor.CommandResult {
	return s.result
}

func (s *PrivilegedCommandStep) String() string {
	return fmt.Sprintf("%s(%s)", s.Name(), s.Request)
}

var _ step.Step = (*PrivilegedCommandStep)(nil)
