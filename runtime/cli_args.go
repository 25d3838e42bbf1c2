package runtime

import (
	"time"

	"github.com/mensylisir/xmadmin/config"
)

// CliArgs holds command-line arguments that override the config file.
// These are passed from the cobra command execution logic.
type CliArgs struct {
	ConfigPath string
	LogLevel   string
	LogDir     string
	Verbose    bool
	Host       string
	// Timeout overrides elevation.commandTimeout when TimeoutSet is true.
	Timeout        time.Duration
	TimeoutSet     bool
	IgnoreErr      bool
	NonInteractive bool
	// Interactive allows prompting where detection would refuse it, such
	// as a terminal inside a CI job. It is not part of the config file.
	Interactive bool
}

// NewCliArgs creates a new instance of CliArgs with default values.
func NewCliArgs() *CliArgs {
	return &CliArgs{}
}

// Apply overrides cfg with every argument that was given.
func (a *CliArgs) Apply(cfg *config.AppConfig) {
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	if a.LogDir != "" {
		cfg.Log.Dir = a.LogDir
	}
	if a.Verbose {
		cfg.Log.Verbose = true
	}
	if a.Host != "" {
		cfg.Target = a.Host
	}
	if a.TimeoutSet {
		cfg.Elevation.CommandTimeout = config.NewDuration(a.Timeout)
	}
	if a.IgnoreErr {
		cfg.IgnoreErrors = true
	}
	if a.NonInteractive {
		cfg.NonInteractive = true
	}
}

// LoadConfig loads the config file named by ConfigPath (or the default one),
// applies the overrides and validates the result.
func (a *CliArgs) LoadConfig() (*config.AppConfig, error) {
	cfg, err := config.NewLoader(a.ConfigPath).Load()
	if err != nil {
		return nil, err
	}
	a.Apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
