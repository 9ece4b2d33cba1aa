package hyperv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// ErrNotFound indicates the queried object does not exist on the host.
// Callers check with errors.Is; the wrapped form names the object.
var ErrNotFound = errors.New("not found")

// Invoker executes one command against one host. Satisfied by
// *broker.ExecutionContext.
type Invoker interface {
	Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error)
}

// Gateway issues Hyper-V, failover-cluster, and host-filesystem
// operations. It is stateless; all state lives on the hosts and in the
// broker's session cache.
type Gateway struct {
	exec Invoker
}

// New returns a Gateway executing through exec.
func New(exec Invoker) *Gateway {
	return &Gateway{exec: exec}
}

// silently marks a lookup so a missing object yields empty output
// instead of an error record.
func silently(cmd *broker.Command) *broker.Command {
	return cmd.Param("ErrorAction", broker.Literal("SilentlyContinue"))
}

// strictly marks a mutation so any platform error terminates the
// pipeline and reaches us via stderr and the exit code.
func strictly(cmd *broker.Command) *broker.Command {
	return cmd.Param("ErrorAction", broker.Literal("Stop"))
}

// lookup runs a query and reports ErrNotFound for empty output. The
// what argument names the object for the error message.
func (g *Gateway) lookup(ctx context.Context, host string, cmd *broker.Command, what string) (*broker.Result, error) {
	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("%s on %s: %w", what, host, ErrNotFound)
	}
	return res, nil
}

// mutate runs a state-changing command, discarding output.
func (g *Gateway) mutate(ctx context.Context, host string, cmd *broker.Command) error {
	_, err := g.exec.Invoke(ctx, host, cmd)
	return err
}

// decodeList decodes output that may be a JSON array or, when the
// pipeline produced a single object, a bare JSON object.
func decodeList[T any](res *broker.Result) ([]T, error) {
	var list []T
	if err := res.Decode(&list); err == nil {
		return list, nil
	}
	var one T
	if err := res.Decode(&one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
