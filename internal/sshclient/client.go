package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// ShellEscape escapes a string for safe single-quoted inclusion in a shell command.
// It wraps s in single quotes and escapes any existing single quotes.
func ShellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Options describes a destination host.
type Options struct {
	Host       string
	Port       string
	User       string
	Password   string
	PrivateKey string // path to a private key file
	JumpHost   string // [user@]host[:port], reached with the same credentials
}

// SSHClient represents an SSH client connection
type SSHClient struct {
	client   *ssh.Client
	jump     *ssh.Client
	config   *ssh.ClientConfig
	host     string
	port     string
	jumpHost string
}

// Result is the outcome of a remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// NewSSHClient creates a new SSH client. If a password is provided it is
// used as the first auth method; a private key is added after it. At least
// one auth method must be configured.
func NewSSHClient(opts Options) (*SSHClient, error) {
	var authMethods []ssh.AuthMethod

	if opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(opts.Password))
	}

	if opts.PrivateKey != "" {
		key, err := os.ReadFile(opts.PrivateKey)
		if err != nil {
			// Password auth can still carry the connection.
			if len(authMethods) == 0 {
				return nil, fmt.Errorf("unable to read private key: %v", err)
			}
		} else {
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				if len(authMethods) == 0 {
					return nil, fmt.Errorf("unable to parse private key: %v", err)
				}
			} else {
				authMethods = append(authMethods, ssh.PublicKeys(signer))
			}
		}
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication method configured (provide password or privateKey)")
	}

	port := opts.Port
	if port == "" {
		port = "22"
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	return &SSHClient{
		config:   config,
		host:     opts.Host,
		port:     port,
		jumpHost: opts.JumpHost,
	}, nil
}

// parseJumpHost splits [user@]host[:port] into host and port.
func (c *SSHClient) parseJumpHost(jumpHost string) (string, string) {
	if at := strings.LastIndex(jumpHost, "@"); at >= 0 {
		jumpHost = jumpHost[at+1:]
	}
	if host, port, err := net.SplitHostPort(jumpHost); err == nil {
		return host, port
	}
	return jumpHost, "22"
}

// jumpUser returns the user embedded in the jump host spec, if any.
func (c *SSHClient) jumpUser() string {
	if at := strings.LastIndex(c.jumpHost, "@"); at >= 0 {
		return c.jumpHost[:at]
	}
	return c.config.User
}

// Connect establishes the SSH connection, hopping through the jump host when
// one is configured.
func (c *SSHClient) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, c.port)

	if c.jumpHost == "" {
		conn, err := c.dial(ctx, addr)
		if err != nil {
			return err
		}
		sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, c.config)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to dial: %v", err)
		}
		c.client = ssh.NewClient(sshConn, chans, reqs)
		return nil
	}

	jh, jp := c.parseJumpHost(c.jumpHost)
	jumpAddr := net.JoinHostPort(jh, jp)
	jumpConfig := *c.config
	jumpConfig.User = c.jumpUser()

	conn, err := c.dial(ctx, jumpAddr)
	if err != nil {
		return err
	}
	jumpConn, chans, reqs, err := ssh.NewClientConn(conn, jumpAddr, &jumpConfig)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to dial jump host %s: %v", jumpAddr, err)
	}
	c.jump = ssh.NewClient(jumpConn, chans, reqs)

	inner, err := c.jump.Dial("tcp", addr)
	if err != nil {
		_ = c.jump.Close()
		return fmt.Errorf("failed to reach %s through jump host: %v", addr, err)
	}
	targetConn, chans, reqs, err := ssh.NewClientConn(inner, addr, c.config)
	if err != nil {
		_ = inner.Close()
		_ = c.jump.Close()
		return fmt.Errorf("failed to dial: %v", err)
	}
	c.client = ssh.NewClient(targetConn, chans, reqs)
	return nil
}

func (c *SSHClient) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.config.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %v", err)
	}
	return conn, nil
}

// Close closes the SSH connection
func (c *SSHClient) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	if c.jump != nil {
		if jerr := c.jump.Close(); err == nil {
			err = jerr
		}
	}
	return err
}

// Run executes cmd on the remote host and collects its output. A non-zero
// exit status is reported in the Result, not as an error. Cancelling ctx
// signals the remote process and closes the session.
func (c *SSHClient) Run(ctx context.Context, cmd string) (*Result, error) {
	if c.client == nil {
		return nil, fmt.Errorf("SSH client not connected")
	}
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("failed to start command: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return nil, ctx.Err()
	case err = <-done:
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("command failed: %v", err)
		}
		res.ExitCode = exitErr.ExitStatus()
	}
	return res, nil
}
