package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmadmin/config"
	"github.com/mensylisir/xmadmin/connector"
	"github.com/mensylisir/xmadmin/executor"
	"github.com/mensylisir/xmadmin/logger"
	"github.com/mensylisir/xmadmin/runtime"
	"github.com/mensylisir/xmadmin/runtime/runtimetest"
	"github.com/mensylisir/xmadmin/step/privcmd"
	"github.com/mensylisir/xmadmin/task/user"
)

const testConfig = `hosts:
  - {name: web1, address: 192.168.1.10, user: admin, password: p}
`

type scriptedPrompter struct {
	mu      sync.Mutex
	answers []string
	prompts []string
}

func (p *scriptedPrompter) ReadSecret(ctx context.Context, prompt string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if len(p.answers) == 0 {
		return nil, io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return []byte(a), nil
}

// hostRuntime hands out a separate runner for every remote host.
type hostRuntime struct {
	*runtimetest.Runtime
	hosts map[string]*runtimetest.Runner
}

func (h *hostRuntime) RunnerFor(host *connector.Host) (executor.Runner, error) {
	if host == nil {
		return h.R, nil
	}
	if h.hosts == nil {
		h.hosts = map[string]*runtimetest.Runner{}
	}
	r, ok := h.hosts[host.Name]
	if !ok {
		r = &runtimetest.Runner{TargetID: host.ID()}
		h.hosts[host.Name] = r
	}
	return r, nil
}

type testApp struct {
	*App
	rt       *hostRuntime
	prompter *scriptedPrompter
	cfg      *config.AppConfig
	sessions int
	out      bytes.Buffer
	errOut   bytes.Buffer
	cfgPath  string
}

func newTestApp(t *testing.T, answers ...string) *testApp {
	t.Helper()
	prev := logger.Log
	t.Cleanup(func() { logger.Log = prev })

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o600))

	ta := &testApp{
		rt:       &hostRuntime{Runtime: runtimetest.NewRuntime()},
		prompter: &scriptedPrompter{answers: answers},
		cfgPath:  cfgPath,
	}
	ta.App = &App{
		Out:      &ta.out,
		Err:      &ta.errOut,
		Prompter: ta.prompter,
		NewRuntime: func(cfg *config.AppConfig, p executor.Prompter) (runtime.Runtime, error) {
			ta.sessions++
			ta.cfg = cfg
			ta.rt.Cfg = cfg
			return ta.rt, nil
		},
	}
	return ta
}

func (ta *testApp) run(args ...string) error {
	return ta.Run(context.Background(), append([]string{"--config", ta.cfgPath}, args...))
}

func TestUserAdd_WithPassword(t *testing.T) {
	ta := newTestApp(t, "s3cret-pw", "s3cret-pw")

	require.NoError(t, ta.run("user", "add", "alice", "--ask-password"))

	reqs := ta.rt.R.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"useradd", "-m", "-s", "/bin/bash", "alice"}, reqs[0].Args)
	assert.Equal(t, []string{"chpasswd"}, reqs[1].Args)
	assert.Equal(t, "alice:s3cret-pw\n", string(reqs[1].Input))
	assert.Equal(t, []string{"New password: ", "Retype new password: "}, ta.prompter.prompts)
}

func TestUserAdd_PasswordMismatchRunsNothing(t *testing.T) {
	ta := newTestApp(t, "one-password", "another-password")

	err := ta.run("user", "add", "alice", "-p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwords do not match")
	assert.Empty(t, ta.rt.R.Requests())
	assert.Zero(t, ta.sessions)
}

func TestUserAdd_InvalidNameNeverPrompts(t *testing.T) {
	ta := newTestApp(t, "x", "x")

	require.Error(t, ta.run("user", "add", "Bad Name", "-p"))
	assert.Empty(t, ta.prompter.prompts)
	assert.Zero(t, ta.sessions)
}

func TestRunTask_SessionFailureWipesSecrets(t *testing.T) {
	ta := newTestApp(t)
	ta.NewRuntime = func(*config.AppConfig, executor.Prompter) (runtime.Runtime, error) {
		return nil, errors.New("connection refused")
	}
	tk, err := user.NewChangePasswordTask("alice", []byte("n3w-pass"))
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	args := runtime.NewCliArgs()
	args.ConfigPath = ta.cfgPath
	err = ta.runTask(cmd, args, tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	chpasswd, ok := tk.Steps()[0].(*privcmd.PrivilegedCommandStep)
	require.True(t, ok)
	assert.Equal(t, make([]byte, len("alice:n3w-pass\n")), chpasswd.Request.Input)
}

func TestUserMod(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("user", "mod", "bob", "--expire", "never", "--lock"))
	assert.Equal(t, [][]string{
		{"usermod", "-e", "-1", "bob"},
		{"usermod", "-L", "bob"},
	}, ta.rt.R.Argvs())

	err := ta.run("user", "mod", "bob", "--lock", "--unlock")
	require.Error(t, err)
}

func TestUserSetGroups(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("user", "setgroups", "bob", "wheel,docker", "audio", "docker"))
	assert.Equal(t, [][]string{{"usermod", "-G", "wheel,docker,audio", "bob"}}, ta.rt.R.Argvs())
}

func TestProcCommands(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("proc", "renice", "4242", "-n", "-5"))
	require.NoError(t, ta.run("proc", "kill", "4242", "--force"))
	assert.Equal(t, [][]string{
		{"renice", "-n", "-5", "-p", "4242"},
		{"kill", "-KILL", "4242"},
	}, ta.rt.R.Argvs())

	require.Error(t, ta.run("proc", "kill", "1"))
	require.Error(t, ta.run("proc", "kill", "abc"))
	require.Error(t, ta.run("proc", "renice", "4242"), "priority is required")
	assert.Len(t, ta.rt.R.Requests(), 2)
}

func TestNetCommands(t *testing.T) {
	ta := newTestApp(t, "wifi-pass-123")

	require.NoError(t, ta.run("net", "wifi-connect", "home"))
	require.NoError(t, ta.run("net", "dns", "1.1.1.1,8.8.8.8"))
	require.NoError(t, ta.run("net", "link", "eth0", "up"))

	reqs := ta.rt.R.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{"nmcli", "--ask", "device", "wifi", "connect", "home"}, reqs[0].Args)
	assert.Equal(t, "wifi-pass-123\n", string(reqs[0].Input))
	assert.Equal(t, "nameserver 1.1.1.1\nnameserver 8.8.8.8\n", string(reqs[1].Input))
	assert.Equal(t, []string{"ip", "link", "set", "eth0", "up"}, reqs[2].Args)

	require.Error(t, ta.run("net", "link", "eth0", "sideways"))
}

func TestNetQueryCommands(t *testing.T) {
	ta := newTestApp(t)
	ta.rt.R.Handler = func(req executor.CommandRequest) executor.CommandResult {
		if req.Args[0] == "ping" && req.Args[3] == "10.9.9.9" {
			res := runtimetest.Failure(1, "")
			res.Stdout = []byte("100% packet loss\n")
			return res
		}
		return runtimetest.Success(req.String() + " output\n")
	}

	require.NoError(t, ta.run("net", "wifi-scan"))
	require.NoError(t, ta.run("net", "saved"))
	require.NoError(t, ta.run("net", "wifi-password"))
	require.NoError(t, ta.run("net", "status"))
	require.NoError(t, ta.run("net", "ping"))
	require.NoError(t, ta.run("net", "ping", "example.com"))
	assert.Equal(t, [][]string{
		{"nmcli", "device", "wifi", "list", "--rescan", "yes"},
		{"nmcli", "connection", "show"},
		{"nmcli", "device", "wifi", "show-password"},
		{"nmcli", "device", "status"},
		{"ping", "-c", "4", "8.8.8.8"},
		{"ping", "-c", "4", "example.com"},
	}, ta.rt.R.Argvs())
	assert.Contains(t, ta.out.String(), "nmcli connection show output\n")
	assert.Contains(t, ta.out.String(), "ping -c 4 example.com output\n")

	err := ta.run("net", "ping", "10.9.9.9")
	require.Error(t, err)
	assert.Contains(t, ta.out.String(), "100% packet loss")

	require.Error(t, ta.run("net", "ping", "--", "-f"))
	assert.Len(t, ta.rt.R.Requests(), 7)
}

func TestNetWifiConnect_Open(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("net", "wifi-connect", "cafe", "--open"))
	assert.Equal(t, [][]string{{"nmcli", "device", "wifi", "connect", "cafe"}}, ta.rt.R.Argvs())
	assert.Empty(t, ta.prompter.prompts)
}

func TestRun_PrintsOutputAndExitCode(t *testing.T) {
	ta := newTestApp(t)
	ta.rt.R.Handler = func(req executor.CommandRequest) executor.CommandResult {
		if req.Args[0] == "false" {
			return runtimetest.Failure(1, "nope\n")
		}
		return runtimetest.Success("listing\n")
	}

	require.NoError(t, ta.run("run", "ls", "-l", "/root"))
	assert.Equal(t, []string{"ls", "-l", "/root"}, ta.rt.R.Argvs()[0])
	assert.Equal(t, "listing\n", ta.out.String())

	err := ta.run("run", "false")
	require.Error(t, err)
	assert.True(t, executor.IsKind(err, executor.KindCommandFailed))
	assert.Contains(t, ta.errOut.String(), "nope")

	require.Error(t, ta.run("run", "sudo", "id"))
	assert.Len(t, ta.rt.R.Requests(), 2)
}

func TestAuthCommands(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("auth", "status"))
	assert.Contains(t, ta.out.String(), "localhost: not authenticated")

	require.NoError(t, ta.run("auth", "check"))
	assert.Contains(t, ta.out.String(), "Privileged access confirmed on localhost")
	assert.True(t, ta.rt.R.Authenticated())

	require.NoError(t, ta.run("auth", "forget"))
	assert.False(t, ta.rt.R.Authenticated())
	assert.Equal(t, 1, ta.sessions)
}

func TestAuthCheck_Failure(t *testing.T) {
	ta := newTestApp(t)
	ta.rt.R.AuthErr = &executor.Error{Kind: executor.KindAuthenticationFailed}

	err := ta.run("auth", "check")
	require.Error(t, err)
	assert.True(t, executor.IsAuthFailure(err))
}

func TestGlobalFlags(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.run("--timeout", "0", "--ignore-errors", "auth", "status"))
	require.NotNil(t, ta.cfg.Elevation.CommandTimeout)
	assert.Zero(t, ta.cfg.Elevation.CommandTimeout.Duration)
	assert.True(t, ta.cfg.IgnoreErrors)

	bad := newTestApp(t)
	err := bad.run("--host", "nosuch", "auth", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuch")
}

func TestInteractiveFlag(t *testing.T) {
	t.Setenv("CI", "true")
	cfg := config.Default()

	assert.False(t, interactive(cfg, &runtime.CliArgs{}), "CI refuses prompts")
	assert.True(t, interactive(cfg, &runtime.CliArgs{Interactive: true}))

	cfg.NonInteractive = true
	assert.True(t, interactive(cfg, &runtime.CliArgs{Interactive: true}), "the flag overrides the config file")

	ta := newTestApp(t)
	err := ta.run("--interactive", "--non-interactive", "auth", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used together")
	assert.Zero(t, ta.sessions)
}

type scriptedLines struct {
	lines   []string
	history []string
	closed  bool
}

func (s *scriptedLines) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func (s *scriptedLines) AppendHistory(item string) { s.history = append(s.history, item) }
func (s *scriptedLines) Close() error { s.closed = true; return nil }

func TestShell_ReusesSession(t *testing.T) {
	ta := newTestApp(t)
	lines := &scriptedLines{lines: []string{
		"auth check",
		"",
		"# comment",
		"user groupadd devs",
		"bogus",
		`user mod carol --full-name "Carol Smith"`,
		"--host web1 proc kill 4242",
		"shell",
		"exit",
		"user groupdel devs",
	}}
	ta.NewLineReader = func() LineReader { return lines }

	require.NoError(t, ta.run("shell"))

	assert.Equal(t, 1, ta.sessions)
	assert.True(t, lines.closed)
	assert.Equal(t, [][]string{
		{"groupadd", "devs"},
		{"chfn", "-f", "Carol Smith", "carol"},
	}, ta.rt.R.Argvs())
	require.Contains(t, ta.rt.hosts, "web1")
	assert.Equal(t, [][]string{{"kill", "-TERM", "4242"}}, ta.rt.hosts["web1"].Argvs())

	errs := ta.errOut.String()
	assert.Contains(t, errs, `unknown command "bogus"`)
	assert.Contains(t, errs, "already inside a shell")
	assert.NotContains(t, lines.history, "")
	assert.Contains(t, lines.history, "exit")
	assert.Equal(t, []string{"user groupdel devs"}, lines.lines)
}

func TestShellPrompt(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.run("auth", "status"))
	assert.Equal(t, "xmadmin@localhost$ ", ta.shellPrompt())

	require.NoError(t, ta.rt.R.EnsureCredential(context.Background()))
	assert.Equal(t, "xmadmin@localhost# ", ta.shellPrompt())
}

func TestCompleter(t *testing.T) {
	complete := completer(NewRootCmd(&App{}))

	assert.Equal(t, []string{"user "}, complete("us"))
	assert.Equal(t, []string{"user groupadd ", "user groupdel "}, complete("user group"))
	assert.Contains(t, complete("net "), "net wifi-connect ")
	assert.Nil(t, complete("nosuch "))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a,b", " c ", ","}))
	assert.Nil(t, splitList(nil))
}
