package process

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task"
)

const (
	MinNice = -20
	MaxNice = 19
)

// Signal selects how a process is stopped.
type Signal string

const (
	SignalTerm Signal = "TERM"
	SignalKill Signal = "KILL"
)

// ProcessTask runs one privileged process-control command.
type ProcessTask struct {
	task.BaseTask
}

func validatePID(pid int) error {
	if pid <= 1 {
		return errors.Errorf("refusing to signal pid %d", pid)
	}
	return nil
}

// NewSignalTask sends SIGTERM or SIGKILL to pid.
func NewSignalTask(pid int, sig Signal) (*ProcessTask, error) {
	if err := validatePID(pid); err != nil {
		return nil, err
	}
	if sig != SignalTerm && sig != SignalKill {
		return nil, errors.Errorf("unsupported signal %q, use TERM or KILL", sig)
	}
	p := strconv.Itoa(pid)
	t := &ProcessTask{BaseTask: task.NewBaseTask("signal-process", "Send SIG"+string(sig)+" to process "+p)}
	t.AddStep(privcmd.NewPrivilegedCommandStep("kill", "Signal process "+p, "kill", "-"+string(sig), p))
	return t, nil
}

// NewReniceTask sets the nice value of pid to priority.
func NewReniceTask(pid, priority int) (*ProcessTask, error) {
	if pid <= 0 {
		return nil, errors.Errorf("invalid pid %d", pid)
	}
	if priority < MinNice || priority > MaxNice {
		return nil, errors.Errorf("priority %d out of range %d to %d", priority, MinNice, MaxNice)
	}
	p := strconv.Itoa(pid)
	t := &ProcessTask{BaseTask: task.NewBaseTask("renice-process", "Set priority of process "+p)}
	t.AddStep(privcmd.NewPrivilegedCommandStep("renice", "Renice process "+p+" to "+strconv.Itoa(priority),
		"renice", "-n", strconv.Itoa(priority), "-p", p))
	return t, nil
}
