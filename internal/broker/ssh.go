package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultSSHPort is the OpenSSH listener port.
const DefaultSSHPort = 22

// sshRunner holds one SSH connection to a host. SSH sessions are
// single-shot, so each Run opens a session on the shared connection.
type sshRunner struct {
	conn  *ssh.Client
	shell string
}

// NewSSHRunner dials a host's SSH server. Key authentication is
// preferred when a key is configured; password authentication is the
// fallback.
func NewSSHRunner(hc HostConfig) (Runner, error) {
	var auth []ssh.AuthMethod
	if len(hc.SSHKey) > 0 {
		signer, err := ssh.ParsePrivateKey(hc.SSHKey)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if hc.Password != "" {
		auth = append(auth, ssh.Password(hc.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials for %s", hc.Address)
	}

	config := &ssh.ClientConfig{
		User:            hc.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	port := hc.Port
	if port == 0 {
		port = DefaultSSHPort
	}

	addr := net.JoinHostPort(hc.Address, strconv.Itoa(port))
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	return &sshRunner{conn: conn, shell: hc.Shell}, nil
}

func (r *sshRunner) Run(ctx context.Context, script string) (string, string, int, error) {
	session, err := r.conn.NewSession()
	if err != nil {
		return "", "", 0, fmt.Errorf("unable to create SSH session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(shellCommandLine(r.shell, script))
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		<-done
		return "", "", 0, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdoutBuf.String(), stderrBuf.String(), exitErr.ExitStatus(), nil
		}
		return "", "", 0, fmt.Errorf("ssh execution: %w", err)
	}
	return stdoutBuf.String(), stderrBuf.String(), 0, nil
}

func (r *sshRunner) Close() error {
	return r.conn.Close()
}
