package connector

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmadmin/common"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX userland")
	}
}

func TestLocalConnector_ID(t *testing.T) {
	assert.Equal(t, common.LocalHostname, NewLocalConnector().ID())
	assert.NoError(t, NewLocalConnector().Close())
}

func TestLocalConnector_PExec(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name       string
		argv       []string
		stdin      string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{name: "success", argv: []string{"true"}, wantCode: 0},
		{name: "non-zero exit", argv: []string{"false"}, wantCode: 1},
		{name: "stdin is streamed", argv: []string{"cat"}, stdin: "secret\npayload", wantStdout: "secret\npayload"},
		{name: "stderr is separate", argv: []string{"sh", "-c", "echo out; echo err >&2; exit 3"}, wantCode: 3, wantStdout: "out\n", wantStderr: "err\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code, err := NewLocalConnector().PExec(context.Background(), tt.argv, strings.NewReader(tt.stdin), &stdout, &stderr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStdout, stdout.String())
			assert.Equal(t, tt.wantStderr, stderr.String())
		})
	}
}

func TestLocalConnector_PExec_SpawnFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code, err := NewLocalConnector().PExec(context.Background(), []string{"/nonexistent/xmadmin-binary"}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, -1, code)

	_, err = NewLocalConnector().PExec(context.Background(), nil, nil, &stdout, &stderr)
	require.Error(t, err)
}

func TestLocalConnector_PExec_ContextCancelled(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	var stdout, stderr bytes.Buffer
	code, err := NewLocalConnector().PExec(ctx, []string{"sleep", "5"}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestDialer_Local(t *testing.T) {
	c, err := NewDialer().Dial(nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalConnector{}, c)
}

func TestDialer_InvalidHost(t *testing.T) {
	_, err := NewDialer().Dial(&Host{Name: "web1", Address: "10.0.0.1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user cannot be empty")
}

func TestHost_Validate(t *testing.T) {
	tests := []struct {
		name    string
		host    Host
		wantErr string
	}{
		{"valid password", Host{Name: "a", Address: "10.0.0.1", User: "root", Password: "x"}, ""},
		{"valid agent", Host{Name: "a", Address: "10.0.0.1", User: "root", AgentSocket: "env:SSH_AUTH_SOCK"}, ""},
		{"missing name", Host{Address: "10.0.0.1", User: "root", Password: "x"}, "host name cannot be empty"},
		{"missing address", Host{Name: "a", User: "root", Password: "x"}, "host address cannot be empty"},
		{"bad port", Host{Name: "a", Address: "10.0.0.1", Port: 70000, User: "root", Password: "x"}, "invalid port number"},
		{"no auth", Host{Name: "a", Address: "10.0.0.1", User: "root"}, "authentication method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.host.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHost_IDAndSSHConfig(t *testing.T) {
	h := &Host{Name: "db", Address: "10.0.0.7", User: "ops", PrivateKeyPath: "~/.ssh/id_ed25519", KnownHostsPath: "~/.ssh/known_hosts"}
	assert.Equal(t, "ops@10.0.0.7:22", h.ID())

	h.Port = 2222
	assert.Equal(t, "ops@10.0.0.7:2222", h.ID())

	cfg := h.SSHConfig()
	assert.Equal(t, "ops", cfg.Username)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, "~/.ssh/id_ed25519", cfg.KeyFile)
	assert.Equal(t, "~/.ssh/known_hosts", cfg.KnownHostsFile)
}
