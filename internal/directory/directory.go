// Package directory manages computer objects in Active Directory. All
// commands run on the domain controller itself through the execution
// broker.
package directory

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// Invoker executes one command against one host. Satisfied by
// *broker.ExecutionContext.
type Invoker interface {
	Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error)
}

// Computer is one computer object in the directory.
type Computer struct {
	Name              string `json:"Name"`
	DistinguishedName string `json:"DistinguishedName"`
}

// Gateway issues directory operations.
type Gateway struct {
	exec Invoker
}

// New returns a Gateway executing through exec.
func New(exec Invoker) *Gateway {
	return &Gateway{exec: exec}
}

// FindComputer looks up a computer object by name. Returns nil when no
// object exists.
func (g *Gateway) FindComputer(ctx context.Context, server, name string) (*Computer, error) {
	cmd := broker.New("Get-ADComputer").
		Param("Filter", fmt.Sprintf(`Name -eq "%s"`, name)).
		Param("ErrorAction", broker.Literal("SilentlyContinue")).
		Project("Name=[string]$_.Name",
			"DistinguishedName=[string]$_.DistinguishedName").
		JSON(2)

	res, err := g.exec.Invoke(ctx, server, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	computers, err := decodeList[Computer](res)
	if err != nil {
		return nil, err
	}
	return &computers[0], nil
}

// RemoveComputer deletes a computer object by distinguished name,
// including any child objects other systems hung off it.
func (g *Gateway) RemoveComputer(ctx context.Context, server, distinguishedName string) error {
	script := fmt.Sprintf("Remove-ADObject -Identity %s -Recursive -Confirm:$false -ErrorAction Stop",
		broker.Quote(distinguishedName))
	_, err := g.exec.Invoke(ctx, server, broker.Script(script))
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
