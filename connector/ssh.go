package connector

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mensylisir/xmadmin/common"
	"github.com/mensylisir/xmadmin/logger"
	"github.com/mensylisir/xmadmin/util"
)

// Config holds SSH connection parameters.
type Config struct {
	Username       string
	Password       string
	Address        string
	Port           int
	PrivateKey     string
	KeyFile        string
	AgentSocket    string
	KnownHostsFile string
	Timeout        time.Duration
	Bastion        string
	BastionPort    int
	BastionUser    string
}

const (
	socketEnvPrefix       = "env:"
	defaultConnectTimeout = 30 * time.Second
)

var _ Connector = (*SSHConnector)(nil)

// SSHConnector runs processes on a remote machine over one SSH client.
// Every PExec opens its own session; no PTY is requested so stdin reaches
// the process unmodified and stderr stays separate from stdout.
type SSHConnector struct {
	mu        sync.Mutex
	sshclient *ssh.Client
	config    Config

	agentSocketConn net.Conn
}

func NewSSHConnector(cfg Config) (*SSHConnector, error) {
	var err error
	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate ssh connection parameters")
	}

	conn := &SSHConnector{config: cfg}
	authMethods, err := conn.authMethods()
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(cfg)
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, err
	}

	sshClientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Timeout:         cfg.Timeout,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	targetHost := cfg.Address
	targetPort := cfg.Port
	if cfg.Bastion != "" {
		targetHost = cfg.Bastion
		targetPort = cfg.BastionPort
		sshClientConfig.User = cfg.BastionUser
	}
	endpoint := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))

	client, err := ssh.Dial("tcp", endpoint, sshClientConfig)
	if err != nil {
		conn.cleanupAgentSocket()
		return nil, errors.Wrapf(err, "could not establish connection to %s", endpoint)
	}

	if cfg.Bastion != "" {
		endpointBehindBastion := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
		connToTarget, dialErr := client.Dial("tcp", endpointBehindBastion)
		if dialErr != nil {
			_ = client.Close()
			conn.cleanupAgentSocket()
			return nil, errors.Wrapf(dialErr, "could not establish connection to target %s via bastion", endpointBehindBastion)
		}

		targetSSHConfig := &ssh.ClientConfig{
			User:            cfg.Username,
			Timeout:         cfg.Timeout,
			Auth:            authMethods,
			HostKeyCallback: hostKeyCallback,
		}
		ncc, chans, reqs, clientConnErr := ssh.NewClientConn(connToTarget, endpointBehindBastion, targetSSHConfig)
		if clientConnErr != nil {
			_ = connToTarget.Close()
			_ = client.Close()
			conn.cleanupAgentSocket()
			return nil, errors.Wrapf(clientConnErr, "failed to create SSH client connection to %s via bastion", endpointBehindBastion)
		}
		client = ssh.NewClient(ncc, chans, reqs)
	}

	conn.sshclient = client
	return conn, nil
}

func (c *SSHConnector) authMethods() ([]ssh.AuthMethod, error) {
	cfg := c.config
	authMethods := make([]ssh.AuthMethod, 0)

	if len(cfg.Password) > 0 {
		authMethods = append(authMethods, ssh.Password(cfg.Password))
	}

	if len(cfg.PrivateKey) > 0 {
		signer, parseErr := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if parseErr != nil {
			return nil, errors.Wrap(parseErr, "the given SSH key could not be parsed")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(cfg.AgentSocket) > 0 {
		addr := cfg.AgentSocket
		if strings.HasPrefix(cfg.AgentSocket, socketEnvPrefix) {
			envName := strings.TrimPrefix(cfg.AgentSocket, socketEnvPrefix)
			if envAddr := os.Getenv(envName); len(envAddr) > 0 {
				addr = envAddr
			} else {
				logger.Log.Warnf("SSH agent environment variable %s not set, using %q as the socket path", envName, addr)
			}
		}

		var dialErr error
		c.agentSocketConn, dialErr = net.Dial("unix", addr)
		if dialErr != nil {
			return nil, errors.Wrapf(dialErr, "could not open SSH agent socket %q", addr)
		}

		agentClient := agent.NewClient(c.agentSocketConn)
		signers, signersErr := agentClient.Signers()
		if signersErr != nil {
			c.cleanupAgentSocket()
			return nil, errors.Wrap(signersErr, "error when creating signer for SSH agent")
		}
		authMethods = append(authMethods, ssh.PublicKeys(signers...))
	}
	return authMethods, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsFile == "" {
		logger.Log.WithField(common.HostName, cfg.Address).
			Warn("no known_hosts file configured, the remote host key will not be verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path, err := util.ExpandHome(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load known_hosts file %q", path)
	}
	return callback, nil
}

func (c *SSHConnector) cleanupAgentSocket() {
	if c.agentSocketConn != nil {
		_ = c.agentSocketConn.Close()
		c.agentSocketConn = nil
	}
}

func validateConfig(cfg Config) (Config, error) {
	if len(cfg.Username) == 0 {
		return cfg, errors.New("no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errors.New("no address specified for SSH connection")
	}
	if len(cfg.Password) == 0 && len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) == 0 && len(cfg.AgentSocket) == 0 {
		return cfg, errors.New("must specify at least one of password, private key, keyfile or agent socket")
	}

	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) > 0 {
		keyFile, err := util.ExpandHome(cfg.KeyFile)
		if err != nil {
			return cfg, err
		}
		content, err := os.ReadFile(keyFile)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read keyfile %q", cfg.KeyFile)
		}
		cfg.PrivateKey = string(content)
	}

	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.Bastion != "" {
		if cfg.BastionPort <= 0 {
			cfg.BastionPort = common.DefaultSSHPort
		}
		if cfg.BastionUser == "" {
			cfg.BastionUser = cfg.Username
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConnectTimeout
	}
	return cfg, nil
}

// ID identifies the remote account as user@address:port.
func (c *SSHConnector) ID() string {
	return fmt.Sprintf("%s@%s:%d", c.config.Username, c.config.Address, c.config.Port)
}

func (c *SSHConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sshErr, agentErr error
	if c.sshclient != nil {
		sshErr = c.sshclient.Close()
		c.sshclient = nil
	}
	if c.agentSocketConn != nil {
		agentErr = c.agentSocketConn.Close()
		c.agentSocketConn = nil
	}
	if sshErr != nil {
		sshErr = errors.Wrap(sshErr, "ssh close error")
	}
	if agentErr != nil {
		agentErr = errors.Wrap(agentErr, "agent socket close error")
	}
	return util.CombineErrors(sshErr, agentErr)
}

func (c *SSHConnector) newSession(ctx context.Context) (*ssh.Session, error) {
	c.mu.Lock()
	client := c.sshclient
	c.mu.Unlock()

	if client == nil {
		return nil, errors.New("ssh connection is closed or not initialized")
	}

	type result struct {
		sess *ssh.Session
		err  error
	}
	sessionDone := make(chan result, 1)
	go func() {
		s, e := client.NewSession()
		sessionDone <- result{s, e}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-sessionDone; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "failed to create ssh session")
	case r := <-sessionDone:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "failed to create ssh session")
		}
		return r.sess, nil
	}
}

// PExec joins argv with shell quoting, since the remote side hands the
// command line to the login shell.
func (c *SSHConnector) PExec(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, errors.New("no command given")
	}
	sess, err := c.newSession(ctx)
	if err != nil {
		return -1, err
	}
	defer sess.Close()

	sess.Stdin = stdin
	sess.Stdout = stdout
	sess.Stderr = stderr

	cmdLine := shellquote.Join(argv...)
	if err := sess.Start(cmdLine); err != nil {
		return -1, errors.Wrapf(err, "failed to start command %s", argv[0])
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- sess.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		return -1, errors.Wrapf(ctx.Err(), "command %s interrupted", argv[0])

	case err = <-waitDone:
		if err == nil {
			return 0, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.Wrapf(err, "command %s did not report an exit status", argv[0])
	}
}
