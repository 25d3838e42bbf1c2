package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/util"
)

// Loader handles loading, defaulting and validating the AppConfig.
type Loader struct {
	filePath string
	explicit bool
}

// NewLoader creates a loader for filePath. An empty path selects
// ~/.xmadmin/config.yaml, which may be absent.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		explicit: filePath != "",
	}
}

// DefaultPath returns ~/.xmadmin/config.yaml.
func DefaultPath() (string, error) {
	home, err := util.Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, common.ConfigDirName, common.ConfigFileName), nil
}

// Path returns the file the loader reads.
func (l *Loader) Path() (string, error) {
	if l.filePath != "" {
		return util.ExpandHome(l.filePath)
	}
	return DefaultPath()
}

// Load reads the configuration file and returns it defaulted and validated.
// A missing default file yields the defaults; an explicit path must name a
// regular file.
func (l *Loader) Load() (*AppConfig, error) {
	path, err := l.Path()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve config file path")
	}
	if l.explicit && !util.FileExists(path) {
		return nil, errors.Errorf("failed to read config file '%s': not found or not a regular file", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !l.explicit {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "failed to read config file '%s'", path)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config file '%s'", path)
	}
	return cfg, nil
}

// Parse decodes YAML content, rejecting unknown fields, then applies defaults
// and validates the result. Empty content yields the defaults.
func Parse(content []byte) (*AppConfig, error) {
	cfg := &AppConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to unmarshal config YAML")
	}

	SetDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
