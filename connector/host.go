package connector

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmadmin/common"
)

// Host describes a remote machine reached over SSH.
type Host struct {
	Name           string        `yaml:"name,omitempty" json:"name,omitempty"`
	Address        string        `yaml:"address,omitempty" json:"address,omitempty"`
	Port           int           `yaml:"port,omitempty" json:"port,omitempty"`
	User           string        `yaml:"user,omitempty" json:"user,omitempty"`
	Password       string        `yaml:"password,omitempty" json:"password,omitempty"`
	PrivateKey     string        `yaml:"privateKey,omitempty" json:"privateKey,omitempty"`
	PrivateKeyPath string        `yaml:"privateKeyPath,omitempty" json:"privateKeyPath,omitempty"`
	AgentSocket    string        `yaml:"agentSocket,omitempty" json:"agentSocket,omitempty"`
	KnownHostsPath string        `yaml:"knownHostsPath,omitempty" json:"knownHostsPath,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Bastion        string        `yaml:"bastion,omitempty" json:"bastion,omitempty"`
	BastionPort    int           `yaml:"bastionPort,omitempty" json:"bastionPort,omitempty"`
	BastionUser    string        `yaml:"bastionUser,omitempty" json:"bastionUser,omitempty"`
}

// Validate checks the fields required to open an SSH connection.
func (h *Host) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return errors.New("host name cannot be empty")
	}
	if strings.TrimSpace(h.Address) == "" {
		return errors.Errorf("host address cannot be empty for host '%s'", h.Name)
	}
	if h.Port < 0 || h.Port > 65535 {
		return errors.Errorf("invalid port number %d for host '%s'", h.Port, h.Name)
	}
	if strings.TrimSpace(h.User) == "" {
		return errors.Errorf("user cannot be empty for host '%s'", h.Name)
	}
	hasPassword := strings.TrimSpace(h.Password) != ""
	hasPrivateKey := strings.TrimSpace(h.PrivateKey) != ""
	hasPrivateKeyPath := strings.TrimSpace(h.PrivateKeyPath) != ""
	hasAgent := strings.TrimSpace(h.AgentSocket) != ""
	if !hasPassword && !hasPrivateKey && !hasPrivateKeyPath && !hasAgent {
		return errors.Errorf("authentication method (password, privateKey, privateKeyPath or agentSocket) must be provided for host '%s'", h.Name)
	}
	return nil
}

// ID identifies the host as user@address:port. Credentials are cached under it.
func (h *Host) ID() string {
	port := h.Port
	if port == 0 {
		port = common.DefaultSSHPort
	}
	return fmt.Sprintf("%s@%s:%d", h.User, h.Address, port)
}

// SSHConfig converts the host into connection parameters.
func (h *Host) SSHConfig() Config {
	return Config{
		Username:       h.User,
		Password:       h.Password,
		Address:        h.Address,
		Port:           h.Port,
		PrivateKey:     h.PrivateKey,
		KeyFile:        h.PrivateKeyPath,
		AgentSocket:    h.AgentSocket,
		KnownHostsFile: h.KnownHostsPath,
		Timeout:        h.Timeout,
		Bastion:        h.Bastion,
		BastionPort:    h.BastionPort,
		BastionUser:    h.BastionUser,
	}
}
