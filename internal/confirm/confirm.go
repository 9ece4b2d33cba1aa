// Package confirm models destructive-action confirmation as an
// injectable policy. Callers that would otherwise prompt a human ask
// the policy instead, and the safe default is to refuse.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Policy decides whether a destructive step may proceed.
type Policy interface {
	Confirm(prompt string) bool
}

// Deny refuses every request. Non-interactive runs use this unless the
// operator explicitly approves destruction up front.
type Deny struct{}

// Confirm always returns false.
func (Deny) Confirm(string) bool { return false }

// Approve accepts every request. This backs the --yes flag.
type Approve struct{}

// Confirm always returns true.
func (Approve) Confirm(string) bool { return true }

// Interactive prompts on Out and reads a line from In. Only "y" or
// "yes" (case-insensitive) approve; anything else, including a read
// failure, denies.
type Interactive struct {
	out    io.Writer
	reader *bufio.Reader
}

// NewInteractive returns a policy that prompts on out and reads
// answers from in.
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{
		out:    out,
		reader: bufio.NewReader(in),
	}
}

// Confirm prompts and reads one line.
func (i *Interactive) Confirm(prompt string) bool {
	fmt.Fprintf(i.out, "%s [y/N]: ", prompt)

	line, err := i.reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
