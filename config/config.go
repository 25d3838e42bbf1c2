package config

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmadmin/connector"
)

// AppConfig is the top-level configuration of the tool.
type AppConfig struct {
	Log       LogSpec       `yaml:"log"`
	Elevation ElevationSpec `yaml:"elevation"`
	// Target names the host in Hosts that commands run on. Empty or
	// "localhost" runs them on this machine.
	Target         string           `yaml:"target,omitempty"`
	Hosts          []connector.Host `yaml:"hosts,omitempty"`
	IgnoreErrors   bool             `yaml:"ignoreErrors,omitempty"`
	NonInteractive bool             `yaml:"nonInteractive,omitempty"`
}

// LogSpec configures the logger.
type LogSpec struct {
	Level   string `yaml:"level,omitempty"` // e.g., debug, info, warn
	Dir     string `yaml:"dir,omitempty"`   // enables the rotating file sink
	Verbose bool   `yaml:"verbose,omitempty"`
}

// ElevationSpec configures how privileged commands are run.
type ElevationSpec struct {
	Binary          string        `yaml:"binary,omitempty"`
	Args            []string      `yaml:"args,omitempty"`
	ValidateCommand []string      `yaml:"validateCommand,omitempty"`
	NoPasswordArgs  []string      `yaml:"noPasswordArgs,omitempty"` // [] disables the no-password check
	Prompt          string        `yaml:"prompt,omitempty"`
	CommandTimeout  *Duration     `yaml:"commandTimeout,omitempty"` // nil means the default, 0 disables
	CredentialTTL   time.Duration `yaml:"credentialTTL,omitempty"`
}

// Duration is a time.Duration that can tell "unset" apart from zero once
// wrapped in a pointer.
type Duration struct {
	time.Duration
}

// UnmarshalYAML accepts Go duration strings such as "90s" or "10m", and a bare 0.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	td, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q at line %d", value.Value, value.Line)
	}
	d.Duration = td
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// NewDuration returns a pointer suitable for ElevationSpec.CommandTimeout.
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}
