package broker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionUnavailable indicates a session to a host could not be
// established or broke mid-operation. Callers check with errors.Is;
// the wrapped form carries the host and underlying cause.
var ErrSessionUnavailable = errors.New("session unavailable")

// CommandError reports a command that reached the host but failed
// there. The original stderr and exit code travel with the error so
// nothing the platform said is lost.
type CommandError struct {
	Host     string
	Op       string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = "no error output"
	}
	return fmt.Sprintf("%s failed on %s (exit %d): %s", e.Op, e.Host, e.ExitCode, detail)
}
