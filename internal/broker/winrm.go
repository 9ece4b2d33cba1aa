package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/masterzen/winrm"
)

// DefaultWinRMPort is the plain-HTTP WinRM listener port.
const DefaultWinRMPort = 5985

// DefaultWinRMPortTLS is the HTTPS WinRM listener port.
const DefaultWinRMPortTLS = 5986

// winrmRunner wraps an authenticated WinRM client for one host. The
// client carries the NTLM-negotiated transport, so keeping it cached
// avoids re-authenticating for every command.
type winrmRunner struct {
	client *winrm.Client
	shell  string
}

// NewWinRMRunner connects to a host's WinRM listener using NTLM
// authentication.
func NewWinRMRunner(hc HostConfig) (Runner, error) {
	port := hc.Port
	if port == 0 {
		port = DefaultWinRMPort
		if hc.UseTLS {
			port = DefaultWinRMPortTLS
		}
	}

	endpoint := winrm.NewEndpoint(hc.Address, port, hc.UseTLS, hc.Insecure, nil, nil, nil, 60*time.Second)
	params := winrm.NewParameters("PT60S", "en-US", 153600)
	params.TransportDecorator = func() winrm.Transporter { return &winrm.ClientNTLM{} }

	client, err := winrm.NewClientWithParameters(endpoint, hc.User, hc.Password, params)
	if err != nil {
		return nil, fmt.Errorf("creating winrm client for %s: %w", hc.Address, err)
	}
	return &winrmRunner{client: client, shell: hc.Shell}, nil
}

func (r *winrmRunner) Run(ctx context.Context, script string) (string, string, int, error) {
	stdout, stderr, code, err := r.client.RunWithContextWithString(ctx, shellCommandLine(r.shell, script), "")
	if err != nil {
		return "", "", 0, fmt.Errorf("winrm execution: %w", err)
	}
	return stdout, stderr, code, nil
}

func (r *winrmRunner) Close() error { return nil }
