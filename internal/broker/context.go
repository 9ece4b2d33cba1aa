package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Transport selects how commands reach a host.
type Transport string

const (
	// TransportLocal runs commands in-process on the engine machine.
	TransportLocal Transport = "local"
	// TransportWinRM runs commands over WinRM with NTLM authentication.
	TransportWinRM Transport = "winrm"
	// TransportSSH runs commands over SSH.
	TransportSSH Transport = "ssh"
)

// HostConfig carries everything needed to open a session to one host.
type HostConfig struct {
	Transport Transport
	Address   string
	Port      int
	User      string
	Password  string
	UseTLS    bool
	Insecure  bool
	SSHKey    []byte
	Shell     string
}

// CredentialSource resolves a host name to its session configuration.
// Hosts the engine has no explicit configuration for should be given a
// sensible default rather than an error, so discovered cluster nodes
// are reachable too.
type CredentialSource func(host string) HostConfig

// Result is the raw outcome of a successfully executed command.
type Result struct {
	Stdout string
	Stderr string
}

// Empty reports whether the command produced no standard output. With
// lookups run under SilentlyContinue, empty output is how the platform
// says "no such object".
func (r *Result) Empty() bool {
	return strings.TrimSpace(r.Stdout) == ""
}

// Decode unmarshals the command's JSON output into v.
func (r *Result) Decode(v any) error {
	text := strings.TrimSpace(strings.TrimPrefix(r.Stdout, "\uFEFF"))
	if text == "" {
		return fmt.Errorf("no output to decode")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decoding command output: %w", err)
	}
	return nil
}

// ExecutionContext executes commands against hosts, running in-process
// for the local machine and over a cached session per remote host.
// Sessions are established lazily on first use and live until Close.
type ExecutionContext struct {
	localHost string
	creds     CredentialSource
	dial      func(hc HostConfig) (Runner, error)

	mu       sync.Mutex
	sessions map[string]Runner
}

// Option adjusts ExecutionContext construction.
type Option func(*ExecutionContext)

// WithDialer replaces the transport dialer. Tests use this to hand the
// context fake runners.
func WithDialer(dial func(hc HostConfig) (Runner, error)) Option {
	return func(e *ExecutionContext) { e.dial = dial }
}

// NewExecutionContext builds a context that treats localHost as the
// in-process machine. An empty localHost falls back to os.Hostname.
func NewExecutionContext(localHost string, creds CredentialSource, opts ...Option) *ExecutionContext {
	if localHost == "" {
		localHost, _ = os.Hostname()
	}
	e := &ExecutionContext{
		localHost: localHost,
		creds:     creds,
		dial:      dialTransport,
		sessions:  make(map[string]Runner),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsLocal reports whether host names the engine machine itself.
// Comparison is case-insensitive on the short (undotted) name, so
// "HV1" matches "hv1.example.com".
func (e *ExecutionContext) IsLocal(host string) bool {
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	return strings.EqualFold(shortName(host), shortName(e.localHost))
}

// Invoke runs cmd on host and classifies the outcome. A session that
// cannot be established or that breaks mid-command surfaces as
// ErrSessionUnavailable; a command the host rejected surfaces as a
// *CommandError. Stdout from successful commands is returned verbatim.
func (e *ExecutionContext) Invoke(ctx context.Context, host string, cmd *Command) (*Result, error) {
	runner, key, err := e.runner(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionUnavailable, host, err)
	}

	script := "$ProgressPreference = 'SilentlyContinue'; " + cmd.String()
	stdout, stderr, exitCode, err := runner.Run(ctx, script)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		e.evict(key)
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionUnavailable, host, err)
	}

	if exitCode != 0 || strings.TrimSpace(stderr) != "" {
		return nil, &CommandError{
			Host:     host,
			Op:       cmd.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
		}
	}
	return &Result{Stdout: stdout, Stderr: stderr}, nil
}

// Close tears down every cached session.
func (e *ExecutionContext) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for key, r := range e.sessions {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session for %s: %w", key, err))
		}
		delete(e.sessions, key)
	}
	return errors.Join(errs...)
}

func (e *ExecutionContext) runner(host string) (Runner, string, error) {
	key := strings.ToLower(shortName(host))
	if e.IsLocal(host) {
		key = "(local)"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.sessions[key]; ok {
		return r, key, nil
	}

	hc := e.hostConfig(host)
	r, err := e.dial(hc)
	if err != nil {
		return nil, key, err
	}
	e.sessions[key] = r
	return r, key, nil
}

func (e *ExecutionContext) hostConfig(host string) HostConfig {
	var hc HostConfig
	if e.creds != nil {
		hc = e.creds(host)
	}
	if e.IsLocal(host) {
		hc.Transport = TransportLocal
	}
	if hc.Transport == "" {
		hc.Transport = TransportWinRM
	}
	if hc.Address == "" {
		hc.Address = host
	}
	return hc
}

func (e *ExecutionContext) evict(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.sessions[key]; ok {
		_ = r.Close()
		delete(e.sessions, key)
	}
}

func dialTransport(hc HostConfig) (Runner, error) {
	switch hc.Transport {
	case TransportLocal:
		return NewLocalRunner(hc.Shell), nil
	case TransportWinRM:
		return NewWinRMRunner(hc)
	case TransportSSH:
		return NewSSHRunner(hc)
	default:
		return nil, fmt.Errorf("unknown transport %q", hc.Transport)
	}
}

func shortName(host string) string {
	name, _, _ := strings.Cut(host, ".")
	return name
}
