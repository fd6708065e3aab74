package backends

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHShell runs commands on a remote host over SSH. Each Run opens its own
// connection.
type SSHShell struct {
	addr      string
	config    ssh.ClientConfig
	signers   []ssh.Signer
	agentSock string
	dialer    net.Dialer
}

// SSHSettings describe how to reach and authenticate to the remote host.
type SSHSettings struct {
	Server     string
	Port       int
	User       string
	KnownHosts string
	// KeyFile is an optional private key; the ssh-agent at SSH_AUTH_SOCK is
	// always tried as well
	KeyFile string
	Timeout time.Duration
}

// NewSSHShell builds a shell from settings. Host keys are verified against
// the known_hosts file.
func NewSSHShell(settings SSHSettings) (*SSHShell, error) {
	hostKeys, err := knownhosts.New(settings.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", settings.KnownHosts, err)
	}

	var signers []ssh.Signer
	if settings.KeyFile != "" {
		pem, err := os.ReadFile(settings.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh key %s: %w", settings.KeyFile, err)
		}
		signers = append(signers, signer)
	}
	agentSock := os.Getenv("SSH_AUTH_SOCK")
	if len(signers) == 0 && agentSock == "" {
		return nil, errors.New("no ssh credentials: set SSH_AUTH_SOCK or configure ssh_key")
	}

	return &SSHShell{
		addr: net.JoinHostPort(settings.Server, strconv.Itoa(settings.Port)),
		config: ssh.ClientConfig{
			User:            settings.User,
			HostKeyCallback: hostKeys,
			Timeout:         settings.Timeout,
		},
		signers:   signers,
		agentSock: agentSock,
		dialer:    net.Dialer{Timeout: settings.Timeout},
	}, nil
}

// clientConfig returns the config for one connection. The returned closer
// releases the ssh-agent connection, if one was opened.
func (s *SSHShell) clientConfig(ctx context.Context) (*ssh.ClientConfig, func(), error) {
	config := s.config
	closer := func() {}

	if len(s.signers) > 0 {
		config.Auth = append(config.Auth, ssh.PublicKeys(s.signers...))
	}
	if s.agentSock != "" {
		conn, err := s.dialer.DialContext(ctx, "unix", s.agentSock)
		switch {
		case err == nil:
			config.Auth = append(config.Auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closer = func() { _ = conn.Close() }
		case len(s.signers) == 0:
			return nil, closer, fmt.Errorf("failed to reach ssh-agent: %w", err)
		}
	}
	return &config, closer, nil
}

// Run implements RemoteShell. A non-zero exit status of the remote command
// is not an error; callers inspect the output.
func (s *SSHShell) Run(ctx context.Context, cmd string) (string, error) {
	config, closeAgent, err := s.clientConfig(ctx)
	if err != nil {
		return "", err
	}
	defer closeAgent()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return "", err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, s.addr, config)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	out, err := session.Output(cmd)
	var exitErr *ssh.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return string(out), err
	}
	return string(out), nil
}

func defaultKnownHosts() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func defaultSSHUser() string {
	for _, name := range []string{"USER", "USERNAME", "LOGNAME"} {
		if u := os.Getenv(name); u != "" {
			return u
		}
	}
	return "root"
}
