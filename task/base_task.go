package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/step"
	xmtime "github.com/mensylisir/xmadmin/time"
	"github.com/mensylisir/xmadmin/util"
)

// ErrStepSkipped is handed to the Post of a step that never ran.
var ErrStepSkipped = errors.New("step skipped")

// StepResult records the outcome of one step of the last Execute.
type StepResult struct {
	Name     string
	State    common.OperationState
	Output   string
	Err      error
	Duration time.Duration
}

// BaseTask provides a basic implementation for the Task interface.
// It can be embedded in concrete task implementations.
type BaseTask struct {
	name        string
	description string
	steps       []step.Step
	results     []StepResult
	// posted[i] is set once steps[i].Post has been called.
	posted []bool
}

// NewBaseTask creates a new BaseTask.
// Steps should be added via AddStep or SetSteps.
func NewBaseTask(name, description string) BaseTask {
	return BaseTask{
		name:        name,
		description: description,
		steps:       make([]step.Step, 0),
	}
}

func (bt *BaseTask) Name() string {
	return bt.name
}

func (bt *BaseTask) Description() string {
	return bt.description
}

// Steps returns a copy of the list of steps in the task.
func (bt *BaseTask) Steps() []step.Step {
	s := make([]step.Step, len(bt.steps))
	copy(s, bt.steps)
	return s
}

func (bt *BaseTask) AddStep(s step.Step) {
	bt.steps = append(bt.steps, s)
}

func (bt *BaseTask) SetSteps(steps []step.Step) {
	bt.steps = make([]step.Step, len(steps))
	copy(bt.steps, steps)
}

// Results returns the step outcomes of the last Execute.
func (bt *BaseTask) Results() []StepResult {
	r := make([]StepResult, len(bt.results))
	copy(r, bt.results)
	return r
}

// Init initializes all added steps.
func (bt *BaseTask) Init(rt runtime.Runtime, log *logrus.Entry) error {
	if len(bt.steps) == 0 {
		return errors.Errorf("no steps defined for task %s", bt.Name())
	}
	for i, s := range bt.steps {
		stepLog := log.WithField(common.StepName, s.Name())
		if err := s.Init(rt, stepLog); err != nil {
			return errors.Wrapf(err, "failed to initialize step %s (index %d) in task %s", s.Name(), i, bt.Name())
		}
	}
	log.Debugf("All %d steps for task %s initialized.", len(bt.steps), bt.Name())
	return nil
}

// Execute runs all steps sequentially. Post runs for every step, including
// those skipped after a halt.
// The first failure stops the task unless the runtime ignores errors;
// an authentication failure always stops it.
func (bt *BaseTask) Execute(ctx context.Context, rt runtime.Runtime, log *logrus.Entry) error {
	log.Infof("Executing task: %s (%s)", bt.Name(), bt.Description())
	out := rt.Out()

	bt.results = make([]StepResult, 0, len(bt.steps))
	bt.posted = make([]bool, len(bt.steps))
	var stepErrors []string
	halted := false

	for i, currentStep := range bt.steps {
		if halted {
			bt.results = append(bt.results, StepResult{Name: currentStep.Name(), State: common.StateSkipped})
			skipLog := log.WithField(common.StepName, currentStep.Name())
			if err := bt.postStep(i, rt, skipLog, ErrStepSkipped); err != nil {
				skipLog.Warnf("Error during Post of skipped step %s: %v", currentStep.Name(), err)
			}
			continue
		}

		stepLog := log.WithFields(logrus.Fields{
			common.StepName: currentStep.Name(),
			"step_index":    fmt.Sprintf("%d/%d", i+1, len(bt.steps)),
		})
		fmt.Fprintf(out, "===> Executing Step: %s (%s)\n", currentStep.Name(), currentStep.Description())

		started := time.Now()
		stepOutput, stepSuccess, stepErr := currentStep.Execute(ctx, rt, stepLog)
		if stepErr == nil && !stepSuccess {
			stepErr = errors.Errorf("step %s reported failure", currentStep.Name())
		}
		if stepOutput != "" {
			stepLog.Debugf("Step execution output:\n%s", stepOutput)
		}

		postErr := bt.postStep(i, rt, stepLog, stepErr)
		if postErr != nil {
			stepLog.Errorf("Error during Post-Execute for step %s: %v", currentStep.Name(), postErr)
		}

		res := StepResult{
			Name:     currentStep.Name(),
			State:    common.StateSuccess,
			Output:   stepOutput,
			Duration: time.Since(started),
		}
		if stepErr == nil && postErr == nil {
			stepLog.Infof("Step %s completed in %s.", currentStep.Name(), xmtime.ShortDur(res.Duration))
			bt.results = append(bt.results, res)
			continue
		}

		res.State = common.StateFailed
		res.Err = stepErr
		var detail string
		switch {
		case stepErr == nil:
			res.Err = errors.Wrap(postErr, "post-execute error")
			detail = res.Err.Error()
		case postErr != nil:
			detail = fmt.Sprintf("%v; post-execute error: %v", stepErr, postErr)
		default:
			detail = stepErr.Error()
		}
		bt.results = append(bt.results, res)
		stepErrors = append(stepErrors, fmt.Sprintf("step %s: %s", currentStep.Name(), detail))
		stepLog.Errorf("Step %s failed: %s", currentStep.Name(), detail)

		switch {
		case executor.IsAuthFailure(stepErr):
			log.Errorf("Task %s halted: no valid credential.", bt.Name())
			halted = true
		case !rt.IgnoreError():
			log.Errorf("Task %s halted at step %s.", bt.Name(), currentStep.Name())
			halted = true
		default:
			log.Warnf("Step %s failed but errors are ignored. Continuing task execution.", currentStep.Name())
		}
	}

	bt.printSummary(rt)

	if len(stepErrors) == 0 {
		log.Infof("Task %s completed successfully.", bt.Name())
		return nil
	}
	if halted || !rt.IgnoreError() {
		return &Error{Task: bt.Name(), Err: bt.firstError(), Details: stepErrors}
	}
	log.Warnf("Task %s completed with ignored errors: %s", bt.Name(), strings.Join(stepErrors, "; "))
	return nil
}

func (bt *BaseTask) firstError() error {
	for _, r := range bt.results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

func (bt *BaseTask) printSummary(rt runtime.Runtime) {
	out := rt.Out()
	fmt.Fprintf(out, "--- Task Execution Summary for '%s' ---\n", bt.Name())
	for _, r := range bt.results {
		switch r.State {
		case common.StateSuccess:
			fmt.Fprintf(out, "Step '%s': SUCCEEDED (%s)\n", r.Name, xmtime.ShortDur(r.Duration.Round(time.Millisecond)))
		case common.StateFailed:
			fmt.Fprintf(out, "Step '%s': FAILED (Error: %v)\n", r.Name, r.Err)
		default:
			fmt.Fprintf(out, "Step '%s': %s\n", r.Name, strings.ToUpper(r.State.String()))
		}
	}
}

// Post calls Post on every step that has not been post-processed yet, so a
// task that failed Init, or never ran, still releases its steps' input.
// rt may be nil when the task never reached a runtime.
func (bt *BaseTask) Post(rt runtime.Runtime, log *logrus.Entry, executeErr error) error {
	var errs []error
	for i, s := range bt.steps {
		if err := bt.postStep(i, rt, log.WithField(common.StepName, s.Name()), executeErr); err != nil {
			errs = append(errs, errors.Wrapf(err, "post of step %s", s.Name()))
		}
	}
	return util.CombineErrors(errs...)
}

func (bt *BaseTask) postStep(i int, rt runtime.Runtime, log *logrus.Entry, err error) error {
	for len(bt.posted) < len(bt.steps) {
		bt.posted = append(bt.posted, false)
	}
	if bt.posted[i] {
		return nil
	}
	bt.posted[i] = true
	return bt.steps[i].Post(rt, log, err)
}

// Error is returned by Execute when a task fails. It wraps the first step error.
type Error struct {
	Task    string
	Err     error
	Details []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.Task, strings.Join(e.Details, "; "))
}

func (e *Error) Unwrap() error {
	return e.Err
}
