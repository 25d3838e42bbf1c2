package runtime

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/logger"
)

type mockConnector struct {
	id     string
	mu     sync.Mutex
	closed bool
}

func (mc *mockConnector) ID() string { return mc.id }

func (mc *mockConnector) PExec(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	_, _ = io.Copy(io.Discard, stdin)
	return 0, nil
}

func (mc *mockConnector) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.closed = true
	return nil
}

func (mc *mockConnector) isClosed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.closed
}

type mockDialer struct {
	mu    sync.Mutex
	dials int
	conns []*mockConnector
	fail  error
}

func (d *mockDialer) Dial(host *connector.Host) (connector.Connector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	d.dials++
	id := "localhost"
	if host != nil {
		id = host.ID()
	}
	c := &mockConnector{id: id}
	d.conns = append(d.conns, c)
	return c, nil
}

type staticPrompter struct{}

func (staticPrompter) ReadSecret(ctx context.Context, prompt string) ([]byte, error) {
	return []byte("correct123"), nil
}

func quietLog(t *testing.T) *logger.XMLog {
	t.Helper()
	l, err := logger.New(logger.Options{Level: logrus.DebugLevel, Output: io.Discard})
	require.NoError(t, err)
	return l
}

func TestNewSession_Local(t *testing.T) {
	dialer := &mockDialer{}
	var out bytes.Buffer
	s, err := NewSession(config.Default(), Options{Dialer: dialer, Prompter: staticPrompter{}, Out: &out, Log: quietLog(t)})
	require.NoError(t, err)
	defer s.Close()

	_, err = uuid.Parse(s.SessionID())
	assert.NoError(t, err, "session ids are UUIDs")
	assert.Equal(t, "localhost", s.Runner().Target())
	assert.Equal(t, 1, dialer.dials)
	assert.Same(t, &out, s.Out())
	assert.False(t, s.IgnoreError())
	assert.Equal(t, s.SessionID(), s.Logger().Data["Session"])
}

func TestNewSession_RemoteTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Hosts = []connector.Host{{Name: "web1", Address: "10.0.0.5", Port: 22, User: "admin", Password: "x"}}
	cfg.Target = "web1"

	s, err := NewSession(cfg, Options{Dialer: &mockDialer{}, Prompter: staticPrompter{}, Log: quietLog(t)})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "admin@10.0.0.5:22", s.Runner().Target())
}

func TestNewSession_Errors(t *testing.T) {
	_, err := NewSession(nil, Options{Prompter: staticPrompter{}})
	assert.Error(t, err)

	_, err = NewSession(config.Default(), Options{})
	assert.Error(t, err)

	cfg := config.Default()
	cfg.Target = "ghost"
	_, err = NewSession(cfg, Options{Dialer: &mockDialer{}, Prompter: staticPrompter{}, Log: quietLog(t)})
	assert.Error(t, err)

	_, err = NewSession(config.Default(), Options{Dialer: &mockDialer{fail: errors.New("refused")}, Prompter: staticPrompter{}, Log: quietLog(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestRunnerFor_Caching(t *testing.T) {
	dialer := &mockDialer{}
	s, err := NewSession(config.Default(), Options{Dialer: dialer, Prompter: staticPrompter{}, Log: quietLog(t)})
	require.NoError(t, err)
	defer s.Close()

	host := &connector.Host{Name: "db1", Address: "10.0.0.6", User: "ops", Password: "x"}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.RunnerFor(host)
			assert.NoError(t, err)
			assert.Equal(t, "ops@10.0.0.6:22", r.Target())
		}()
	}
	wg.Wait()

	r1, err := s.RunnerFor(host)
	require.NoError(t, err)
	r2, err := s.RunnerFor(host)
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	local, err := s.RunnerFor(nil)
	require.NoError(t, err)
	assert.Same(t, s.Runner(), local)

	closedDuplicates := 0
	for _, c := range dialer.conns {
		if c.isClosed() {
			closedDuplicates++
		}
	}
	assert.Equal(t, dialer.dials-2, closedDuplicates, "connections that lost the race are closed")
}

func TestSession_CloseWipesAndCloses(t *testing.T) {
	dialer := &mockDialer{}
	s, err := NewSession(config.Default(), Options{Dialer: dialer, Prompter: staticPrompter{}, Log: quietLog(t)})
	require.NoError(t, err)

	require.NoError(t, s.Runner().EnsureCredential(context.Background()))
	assert.True(t, s.Runner().Authenticated())

	runner := s.Runner()
	require.NoError(t, s.Close())
	assert.False(t, runner.Authenticated())
	assert.True(t, dialer.conns[0].isClosed())
	require.NoError(t, s.Close(), "closing twice is a no-op")

	_, err = s.RunnerFor(nil)
	assert.Error(t, err)
}

func TestCliArgs_Apply(t *testing.T) {
	cfg := config.Default()
	cfg.Hosts = []connector.Host{{Name: "web1", Address: "10.0.0.5", Port: 22, User: "admin", Password: "x"}}

	args := &CliArgs{
		LogLevel:       "debug",
		LogDir:         "/tmp/logs",
		Verbose:        true,
		Host:           "web1",
		Timeout:        30 * time.Second,
		TimeoutSet:     true,
		IgnoreErr:      true,
		NonInteractive: true,
	}
	args.Apply(cfg)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/logs", cfg.Log.Dir)
	assert.True(t, cfg.Log.Verbose)
	assert.Equal(t, "web1", cfg.Target)
	assert.Equal(t, 30*time.Second, cfg.Elevation.CommandTimeout.Duration)
	assert.True(t, cfg.IgnoreErrors)
	assert.True(t, cfg.NonInteractive)
	require.NoError(t, config.Validate(cfg))
}

func TestCliArgs_ApplyLeavesUnsetValues(t *testing.T) {
	cfg := config.Default()
	NewCliArgs().Apply(cfg)
	assert.Equal(t, config.Default(), cfg)
}

func TestCliArgs_LoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := (&CliArgs{ConfigPath: path, LogLevel: "error"}).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level, "flags override the file")

	_, err = (&CliArgs{ConfigPath: path, Host: "ghost"}).LoadConfig()
	assert.Error(t, err, "an unknown --host is rejected")

	_, err = (&CliArgs{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}).LoadConfig()
	assert.Error(t, err)
}
