package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
)

const (
	DefaultLogLevel = "info"
)

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults fills every unset field in place.
func SetDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Elevation.Binary == "" {
		cfg.Elevation.Binary = executor.DefaultElevationBinary
	}
	if cfg.Elevation.Args == nil {
		cfg.Elevation.Args = append([]string(nil), executor.DefaultElevationArgs...)
	}
	if len(cfg.Elevation.ValidateCommand) == 0 {
		cfg.Elevation.ValidateCommand = append([]string(nil), executor.DefaultValidateCommand...)
	}
	if cfg.Elevation.NoPasswordArgs == nil {
		cfg.Elevation.NoPasswordArgs = append([]string(nil), executor.DefaultNoPasswordArgs...)
	}
	if cfg.Elevation.CommandTimeout == nil {
		cfg.Elevation.CommandTimeout = NewDuration(executor.DefaultCommandTimeout)
	}
	for i := range cfg.Hosts {
		if cfg.Hosts[i].Port == 0 {
			cfg.Hosts[i].Port = common.DefaultSSHPort
		}
	}
}

// Validate checks a defaulted configuration.
func Validate(cfg *AppConfig) error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return errors.Wrap(err, "config validation failed: log.level")
	}
	if strings.TrimSpace(cfg.Elevation.Binary) == "" {
		return errors.New("config validation failed: elevation.binary cannot be empty")
	}
	if cfg.Elevation.CommandTimeout != nil && cfg.Elevation.CommandTimeout.Duration < 0 {
		return errors.Errorf("config validation failed: elevation.commandTimeout must not be negative, got %s", cfg.Elevation.CommandTimeout.Duration)
	}
	if cfg.Elevation.CredentialTTL < 0 {
		return errors.Errorf("config validation failed: elevation.credentialTTL must not be negative, got %s", cfg.Elevation.CredentialTTL)
	}

	seen := make(map[string]bool, len(cfg.Hosts))
	for i := range cfg.Hosts {
		h := &cfg.Hosts[i]
		if err := h.Validate(); err != nil {
			return errors.Wrapf(err, "config validation failed: hosts[%d]", i)
		}
		if seen[h.Name] {
			return errors.Errorf("config validation failed: duplicate host name '%s'", h.Name)
		}
		seen[h.Name] = true
	}
	if _, err := cfg.ResolveTarget(); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// ResolveTarget returns the host commands run on, or nil for this machine.
func (c *AppConfig) ResolveTarget() (*connector.Host, error) {
	if c.Target == "" || c.Target == common.LocalHostname {
		return nil, nil
	}
	for i := range c.Hosts {
		if c.Hosts[i].Name == c.Target {
			h := c.Hosts[i]
			return &h, nil
		}
	}
	return nil, errors.Errorf("target host '%s' is not defined in hosts", c.Target)
}

// LogLevel returns the parsed log level, info if it cannot be parsed.
func (c *AppConfig) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ExecutorOptions converts the elevation section into executor options.
func (c *AppConfig) ExecutorOptions() executor.Options {
	opts := executor.DefaultOptions()
	if c.Elevation.Binary != "" {
		opts.Binary = c.Elevation.Binary
	}
	if c.Elevation.Args != nil {
		opts.Args = append([]string(nil), c.Elevation.Args...)
	}
	if len(c.Elevation.ValidateCommand) > 0 {
		opts.ValidateCommand = append([]string(nil), c.Elevation.ValidateCommand...)
	}
	if c.Elevation.NoPasswordArgs != nil {
		opts.NoPasswordArgs = append([]string(nil), c.Elevation.NoPasswordArgs...)
	}
	if c.Elevation.CommandTimeout != nil {
		opts.CommandTimeout = c.Elevation.CommandTimeout.Duration
	}
	opts.Prompt = c.Elevation.Prompt
	opts.CredentialTTL = c.Elevation.CredentialTTL
	return opts
}
