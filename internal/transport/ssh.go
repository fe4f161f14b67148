// Package transport implements the remote run collaborator pinned in
// spec.md §6: run(command, sudo) -> {stdout, stderr, returncode}. The
// original implementation (original_source/src/blockwart/node.py) dials
// out with paramiko's SSHClient and opens one exec channel per command;
// this is the same shape over golang.org/x/crypto/ssh.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"
)

// Result is the outcome of one remote command.
type Result struct {
	Stdout     []byte
	Stderr     []byte
	ReturnCode int
}

// Runner is the narrow interface items depend on to talk to a remote
// host. It is the only contract between an Item implementation and how
// commands actually reach the machine being configured.
type Runner interface {
	Run(ctx context.Context, command string, sudo bool) (*Result, error)
}

// SSHRunner is a Runner backed by a single persistent SSH connection,
// mirroring node.py's cached_property _ssh_client: one client, reused
// for every command the node apply issues.
type SSHRunner struct {
	client *ssh.Client
}

// Dial opens an SSH connection to addr (host:port) using config and
// returns a Runner bound to it. config.Timeout bounds the TCP dial;
// zero means no timeout.
func Dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*SSHRunner, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, fmt.Errorf("transport: handshake with %s: %w", addr, err)
	}
	return &SSHRunner{client: ssh.NewClient(c, chans, reqs)}, nil
}

// Run executes command over a fresh session on the shared connection.
// When sudo is true the command is prefixed with "sudo ", matching
// node.py's run(). Callers are responsible for shell-quoting any
// user-controlled fragment of command via ShellQuote before calling Run.
func (r *SSHRunner) Run(ctx context.Context, command string, sudo bool) (*Result, error) {
	if sudo {
		command = "sudo " + command
	}

	session, err := r.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("transport: open session: %w", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case runErr := <-done:
		result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			result.ReturnCode = exitErr.ExitStatus()
			return result, nil
		}
		if runErr != nil {
			return nil, fmt.Errorf("transport: run %q: %w", command, runErr)
		}
		return result, nil
	}
}

// Close releases the underlying SSH connection.
func (r *SSHRunner) Close() error {
	return r.client.Close()
}
