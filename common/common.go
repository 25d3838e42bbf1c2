package common

import (
	"io/fs"
)

const (
	AppName = "xmadmin"
	// ConfigDirName is created under the operator's home directory.
	ConfigDirName  = ".xmadmin"
	ConfigFileName = "config.yaml"
)

// Log field keys. The formatter prints them in this order.
const (
	SessionName = "Session"
	HostName    = "Host"
	TaskName    = "Task"
	StepName    = "Step"
	CommandName = "Command"
)

const (
	// FileMode0755 represents rwxr-xr-x
	FileMode0755 fs.FileMode = 0755
	// FileMode0644 represents rw-r--r--
	FileMode0644 fs.FileMode = 0644
	// FileMode0600 represents rw-------
	FileMode0600 fs.FileMode = 0600
	// FileMode0700 represents rwx------
	FileMode0700 fs.FileMode = 0700
)

const (
	DefaultSSHPort    = 22
	LocalHostname     = "localhost"
	DefaultResolvConf = "/etc/resolv.conf"
)

// OperationState tracks a step or task through its lifecycle.
type OperationState int

const (
	StatePending OperationState = iota // 0
	StateRunning                       // 1
	StateSuccess                       // 2
	StateFailed                        // 3
	StateSkipped                       // 4
)

func (s OperationState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateSuccess:
		return "Success"
	case StateFailed:
		return "Failed"
	case StateSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}
