package connector

import (
	"github.com/pkg/errors"
)

type defaultDialer struct{}

// NewDialer returns a Dialer that opens a LocalConnector for a nil host
// and an SSHConnector otherwise.
func NewDialer() Dialer {
	return &defaultDialer{}
}

func (d *defaultDialer) Dial(host *Host) (Connector, error) {
	if host == nil {
		return NewLocalConnector(), nil
	}
	if err := host.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid host")
	}
	return NewSSHConnector(host.SSHConfig())
}

var _ Dialer = (*defaultDialer)(nil)
