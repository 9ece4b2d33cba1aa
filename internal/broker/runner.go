package broker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"unicode/utf16"
)

// Runner executes one PowerShell script on a single host and reports
// what the host said. Implementations are cached per host by the
// ExecutionContext; Run may be called many times before Close.
type Runner interface {
	Run(ctx context.Context, script string) (stdout, stderr string, exitCode int, err error)
	Close() error
}

// DefaultShell is used when a host configuration does not name one.
const DefaultShell = "powershell"

// encodedCommand base64-encodes a script as UTF-16LE for use with the
// shell's -EncodedCommand flag. Encoding sidesteps every quoting and
// escaping difference between transports.
func encodedCommand(script string) string {
	units := utf16.Encode([]rune(script))
	raw := make([]byte, 0, len(units)*2)
	for _, u := range units {
		raw = append(raw, byte(u), byte(u>>8))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// shellCommandLine builds the full command line a remote transport
// submits to run a script.
func shellCommandLine(shell, script string) string {
	if shell == "" {
		shell = DefaultShell
	}
	return fmt.Sprintf("%s -NoProfile -NonInteractive -EncodedCommand %s", shell, encodedCommand(script))
}

// localRunner executes scripts in-process on the engine machine.
type localRunner struct {
	shell string
}

// NewLocalRunner returns a Runner that invokes the named shell binary
// directly, without any remote transport.
func NewLocalRunner(shell string) Runner {
	if shell == "" {
		shell = DefaultShell
	}
	return &localRunner{shell: shell}
}

func (r *localRunner) Run(ctx context.Context, script string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-NoProfile", "-NonInteractive", "-EncodedCommand", encodedCommand(script))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		return "", "", 0, fmt.Errorf("starting %s: %w", r.shell, err)
	}
	return stdout.String(), stderr.String(), 0, nil
}

func (r *localRunner) Close() error { return nil }
