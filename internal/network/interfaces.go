package network

import (
	"context"

	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/hyperv"
)

// gateway defines the hypervisor operations needed for adapter
// reconciliation. This wraps operations from *hyperv.Gateway to allow
// for testing.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// NetworkAdapters lists the network adapters attached to a VM
	NetworkAdapters(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error)

	// AddNetworkAdapter adds a named adapter with device naming enabled
	AddNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error

	// RemoveNetworkAdapter removes every adapter with the given name
	RemoveNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error

	// ConnectAdapter binds an adapter to a virtual switch
	ConnectAdapter(ctx context.Context, host, vmName, adapterName, switchName string) error

	// DisconnectAdapter unbinds an adapter from its switch
	DisconnectAdapter(ctx context.Context, host, vmName, adapterName string) error

	// ConfigureAdapter applies adapter properties in one call
	ConfigureAdapter(ctx context.Context, host string, req hyperv.ConfigureAdapterRequest) error

	// AdapterVlan reads the VLAN configuration of one adapter
	AdapterVlan(ctx context.Context, host, vmName, adapterName string) (*hyperv.VlanSettings, error)

	// SetAdapterVlan applies a VLAN mode
	SetAdapterVlan(ctx context.Context, host string, req hyperv.VlanRequest) error

	// AdapterIsolation reads the isolation configuration of one adapter
	AdapterIsolation(ctx context.Context, host, vmName, adapterName string) (*hyperv.IsolationSettings, error)

	// SetAdapterIsolation applies an isolation mode
	SetAdapterIsolation(ctx context.Context, host string, req hyperv.IsolationRequest) error

	// HostNetworkInfo reads per-host platform settings, including the
	// MAC pool bounds used to seed the address counter
	HostNetworkInfo(ctx context.Context, host string) (*hyperv.HostInfo, error)
}

// addressService defines the DHCP reservation operations needed for
// address management.
//
// In production, this is satisfied by *dhcp.Gateway.
// In tests, this is satisfied by mock implementations.
type addressService interface {
	// Reservations lists every reservation in a scope
	Reservations(ctx context.Context, server, scope string) ([]dhcp.Reservation, error)

	// AddReservation creates a reservation in a scope
	AddReservation(ctx context.Context, server, scope string, r dhcp.Reservation) error

	// RemoveReservation deletes the reservation holding an address
	RemoveReservation(ctx context.Context, server, scope, ip string) error

	// RouterOption reads the router option of a reserved address
	RouterOption(ctx context.Context, server, ip string) (string, error)

	// SetRouterOption sets the router option of a reserved address
	SetRouterOption(ctx context.Context, server, ip, router string) error

	// ScopeFailover names the failover relationship of a scope, "" if none
	ScopeFailover(ctx context.Context, server, scope string) (string, error)

	// ReplicateScope forces replication of a scope to its partner
	ReplicateScope(ctx context.Context, server, scope string) error
}

// macAllocator hands out MAC addresses from the per-host counter
// store.
//
// In production, this is satisfied by *macpool.Store.
// In tests, this is satisfied by mock implementations.
type macAllocator interface {
	// Next allocates the next free MAC for a host, seeding on first use
	Next(host string, seed func() (string, error)) (string, error)
}
