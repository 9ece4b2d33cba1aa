// Package dhcp manages address reservations on Windows DHCP servers.
// All commands run on the DHCP server itself through the execution
// broker, so the server only needs to be reachable like any other
// managed host.
package dhcp

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

// Reservation is one DHCPv4 reservation in a scope.
type Reservation struct {
	IPAddress   string `json:"IPAddress"`
	ClientID    string `json:"ClientId"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
}

// Gateway issues DHCP server operations.
type Gateway struct {
	exec Invoker
}

// New returns a Gateway executing through exec.
func New(exec Invoker) *Gateway {
	return &Gateway{exec: exec}
}

// Reservations lists every reservation in a scope.
func (g *Gateway) Reservations(ctx context.Context, server, scope string) ([]Reservation, error) {
	cmd := broker.New("Get-DhcpServerv4Reservation").
		Param("ScopeId", scope).
		Param("ErrorAction", broker.Literal("SilentlyContinue")).
		Project("IPAddress=[string]$_.IPAddress",
			"ClientId=[string]$_.ClientId",
			"Name=[string]$_.Name",
			"Description=[string]$_.Description").
		JSON(2)

	res, err := g.exec.Invoke(ctx, server, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[Reservation](res)
}

// AddReservation creates a reservation in a scope.
func (g *Gateway) AddReservation(ctx context.Context, server, scope string, r Reservation) error {
	cmd := broker.New("Add-DhcpServerv4Reservation").
		Param("ScopeId", scope).
		Param("IPAddress", r.IPAddress).
		Param("ClientId", r.ClientID).
		Param("Name", r.Name)
	if r.Description != "" {
		cmd.Param("Description", r.Description)
	}
	cmd.Param("ErrorAction", broker.Literal("Stop"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// RemoveReservation deletes the reservation holding an address.
func (g *Gateway) RemoveReservation(ctx context.Context, server, scope, ip string) error {
	cmd := broker.New("Remove-DhcpServerv4Reservation").
		Param("ScopeId", scope).
		Param("IPAddress", ip).
		Param("ErrorAction", broker.Literal("Stop"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// RouterOption reads the router (option 3) value set on a reserved
// address. Returns "" when the option is not set on the reservation.
func (g *Gateway) RouterOption(ctx context.Context, server, ip string) (string, error) {
	cmd := broker.New("Get-DhcpServerv4OptionValue").
		Param("ReservedIP", ip).
		Param("OptionId", 3).
		Param("ErrorAction", broker.Literal("SilentlyContinue")).
		Project("Value=[string]($_.Value | Select-Object -First 1)").
		JSON(1)

	res, err := g.exec.Invoke(ctx, server, cmd)
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return "", nil
	}
	var row struct {
		Value string `json:"Value"`
	}
	if err := res.Decode(&row); err != nil {
		return "", fmt.Errorf("failed to decode router option for %s: %w", ip, err)
	}
	return row.Value, nil
}

// SetRouterOption sets the router (option 3) value on a reserved
// address.
func (g *Gateway) SetRouterOption(ctx context.Context, server, ip, router string) error {
	cmd := broker.New("Set-DhcpServerv4OptionValue").
		Param("ReservedIP", ip).
		Param("Router", router).
		Param("ErrorAction", broker.Literal("Stop"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// ScopeFailover reports the name of the failover relationship a scope
// participates in, or "" for a scope without a partner.
func (g *Gateway) ScopeFailover(ctx context.Context, server, scope string) (string, error) {
	cmd := broker.New("Get-DhcpServerv4Failover").
		Param("ScopeId", scope).
		Param("ErrorAction", broker.Literal("SilentlyContinue")).
		Project("Name=[string]$_.Name").
		JSON(1)

	res, err := g.exec.Invoke(ctx, server, cmd)
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return "", nil
	}
	var row struct {
		Name string `json:"Name"`
	}
	if err := res.Decode(&row); err != nil {
		return "", fmt.Errorf("failed to decode failover for scope %s: %w", scope, err)
	}
	return row.Name, nil
}

// ReplicateScope forces failover replication of a scope to its
// partner. Call only after writes to a scope with a relationship.
func (g *Gateway) ReplicateScope(ctx context.Context, server, scope string) error {
	cmd := broker.New("Invoke-DhcpServerv4FailoverReplication").
		Param("ScopeId", scope).
		Switch("Force").
		Param("ErrorAction", broker.Literal("Stop"))
	_, err := g.exec.Invoke(ctx, server, cmd)
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
