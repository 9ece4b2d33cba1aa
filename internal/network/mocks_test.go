package network

import (
	"context"
	"sync"

	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/hyperv"
)

// mockGateway is a mock implementation of the gateway interface.
type mockGateway struct {
	mu sync.Mutex

	networkAdaptersFunc  func(host, vmName string) ([]hyperv.NetAdapter, error)
	adapterVlanFunc      func(vmName, adapterName string) (*hyperv.VlanSettings, error)
	adapterIsolationFunc func(vmName, adapterName string) (*hyperv.IsolationSettings, error)
	hostNetworkInfoFunc  func(host string) (*hyperv.HostInfo, error)

	addAdapterErr    error
	removeAdapterErr error
	connectErr       error
	disconnectErr    error
	configureErr     error
	setVlanErr       error
	setIsolationErr  error

	addAdapterCalls    []string // format: "vm/adapter"
	removeAdapterCalls []string // format: "vm/adapter"
	connectCalls       []string // format: "vm/adapter/switch"
	disconnectCalls    []string // format: "vm/adapter"
	configureCalls     []hyperv.ConfigureAdapterRequest
	setVlanCalls       []hyperv.VlanRequest
	setIsolationCalls  []hyperv.IsolationRequest
	hostInfoCalls      int
}

// newMockGateway creates a mockGateway with sensible defaults:
//   - networkAdaptersFunc: returns one converged adapter named "eth0"
//     on switch "LAN" with static MAC 00155D0A0B0C
//   - adapterVlanFunc: returns untagged
//   - adapterIsolationFunc: returns no isolation
//   - hostNetworkInfoFunc: returns MAC pool 00155D0A0B00-00155D0A0BFF
//   - all mutations succeed
func newMockGateway() *mockGateway {
	return &mockGateway{
		networkAdaptersFunc: func(host, vmName string) ([]hyperv.NetAdapter, error) {
			return []hyperv.NetAdapter{{
				Name:         "eth0",
				SwitchName:   "LAN",
				MacAddress:   "00155D0A0B0C",
				DeviceNaming: true,
			}}, nil
		},
		adapterVlanFunc: func(vmName, adapterName string) (*hyperv.VlanSettings, error) {
			return &hyperv.VlanSettings{OperationMode: hyperv.VlanModeUntagged}, nil
		},
		adapterIsolationFunc: func(vmName, adapterName string) (*hyperv.IsolationSettings, error) {
			return &hyperv.IsolationSettings{IsolationMode: hyperv.IsolationNone}, nil
		},
		hostNetworkInfoFunc: func(host string) (*hyperv.HostInfo, error) {
			return &hyperv.HostInfo{
				Name:              host,
				MacAddressMinimum: "00155D0A0B00",
				MacAddressMaximum: "00155D0A0BFF",
			}, nil
		},
	}
}

func (m *mockGateway) NetworkAdapters(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.networkAdaptersFunc(host, vmName)
}

func (m *mockGateway) AddNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addAdapterCalls = append(m.addAdapterCalls, vmName+"/"+adapterName)
	return m.addAdapterErr
}

func (m *mockGateway) RemoveNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAdapterCalls = append(m.removeAdapterCalls, vmName+"/"+adapterName)
	return m.removeAdapterErr
}

func (m *mockGateway) ConnectAdapter(ctx context.Context, host, vmName, adapterName, switchName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls = append(m.connectCalls, vmName+"/"+adapterName+"/"+switchName)
	return m.connectErr
}

func (m *mockGateway) DisconnectAdapter(ctx context.Context, host, vmName, adapterName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls = append(m.disconnectCalls, vmName+"/"+adapterName)
	return m.disconnectErr
}

func (m *mockGateway) ConfigureAdapter(ctx context.Context, host string, req hyperv.ConfigureAdapterRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configureCalls = append(m.configureCalls, req)
	return m.configureErr
}

func (m *mockGateway) AdapterVlan(ctx context.Context, host, vmName, adapterName string) (*hyperv.VlanSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapterVlanFunc(vmName, adapterName)
}

func (m *mockGateway) SetAdapterVlan(ctx context.Context, host string, req hyperv.VlanRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVlanCalls = append(m.setVlanCalls, req)
	return m.setVlanErr
}

func (m *mockGateway) AdapterIsolation(ctx context.Context, host, vmName, adapterName string) (*hyperv.IsolationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapterIsolationFunc(vmName, adapterName)
}

func (m *mockGateway) SetAdapterIsolation(ctx context.Context, host string, req hyperv.IsolationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setIsolationCalls = append(m.setIsolationCalls, req)
	return m.setIsolationErr
}

func (m *mockGateway) HostNetworkInfo(ctx context.Context, host string) (*hyperv.HostInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostInfoCalls++
	return m.hostNetworkInfoFunc(host)
}

// mutationCount totals the mutating gateway calls recorded so far.
func (m *mockGateway) mutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.addAdapterCalls) + len(m.removeAdapterCalls) +
		len(m.connectCalls) + len(m.disconnectCalls) +
		len(m.configureCalls) + len(m.setVlanCalls) + len(m.setIsolationCalls)
}

// mockAddressService is a mock implementation of the addressService
// interface.
type mockAddressService struct {
	mu sync.Mutex

	reservationsFunc  func(server, scope string) ([]dhcp.Reservation, error)
	routerOptionFunc  func(server, ip string) (string, error)
	scopeFailoverFunc func(server, scope string) (string, error)

	addErr       error
	removeErr    error
	setRouterErr error
	replicateErr error

	addCalls       []dhcp.Reservation
	removeCalls    []string // format: "scope/ip"
	setRouterCalls []string // format: "ip=router"
	replicateCalls []string // format: "server/scope"
}

// newMockAddressService creates a mockAddressService with sensible
// defaults:
//   - reservationsFunc: returns no reservations
//   - routerOptionFunc: returns no router option
//   - scopeFailoverFunc: returns no failover relationship
//   - all mutations succeed
func newMockAddressService() *mockAddressService {
	return &mockAddressService{
		reservationsFunc: func(server, scope string) ([]dhcp.Reservation, error) {
			return nil, nil
		},
		routerOptionFunc: func(server, ip string) (string, error) {
			return "", nil
		},
		scopeFailoverFunc: func(server, scope string) (string, error) {
			return "", nil
		},
	}
}

func (m *mockAddressService) Reservations(ctx context.Context, server, scope string) ([]dhcp.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservationsFunc(server, scope)
}

func (m *mockAddressService) AddReservation(ctx context.Context, server, scope string, r dhcp.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls = append(m.addCalls, r)
	return m.addErr
}

func (m *mockAddressService) RemoveReservation(ctx context.Context, server, scope, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, scope+"/"+ip)
	return m.removeErr
}

func (m *mockAddressService) RouterOption(ctx context.Context, server, ip string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routerOptionFunc(server, ip)
}

func (m *mockAddressService) SetRouterOption(ctx context.Context, server, ip, router string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRouterCalls = append(m.setRouterCalls, ip+"="+router)
	return m.setRouterErr
}

func (m *mockAddressService) ScopeFailover(ctx context.Context, server, scope string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scopeFailoverFunc(server, scope)
}

func (m *mockAddressService) ReplicateScope(ctx context.Context, server, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicateCalls = append(m.replicateCalls, server+"/"+scope)
	return m.replicateErr
}

// writeCount totals the mutating DHCP calls recorded so far.
func (m *mockAddressService) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.addCalls) + len(m.removeCalls) + len(m.setRouterCalls) + len(m.replicateCalls)
}

// mockAllocator is a mock implementation of the macAllocator
// interface.
type mockAllocator struct {
	mu sync.Mutex

	nextFunc func(host string, seed func() (string, error)) (string, error)

	nextCalls []string // hosts
}

// newMockAllocator creates a mockAllocator with sensible defaults:
//   - nextFunc: returns 00155D0A0B63 without consulting the seed
func newMockAllocator() *mockAllocator {
	return &mockAllocator{
		nextFunc: func(host string, seed func() (string, error)) (string, error) {
			return "00155D0A0B63", nil
		},
	}
}

func (m *mockAllocator) Next(host string, seed func() (string, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCalls = append(m.nextCalls, host)
	return m.nextFunc(host, seed)
}
