package compute

import (
	"context"
	"sync"

	"github.com/jbweber/croft/internal/hyperv"
)

// mockGateway is a mock implementation of the gateway interface for
// testing.
type mockGateway struct {
	mu sync.Mutex

	// Configurable behavior
	createVMFunc             func(ctx context.Context, host string, req hyperv.CreateVMRequest) (*hyperv.VM, error)
	networkAdaptersFunc      func(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error)
	removeNetworkAdapterFunc func(ctx context.Context, host, vmName, adapterName string) error
	setProcessorFunc         func(ctx context.Context, host string, req hyperv.ProcessorRequest) error
	setMemoryFunc            func(ctx context.Context, host string, req hyperv.MemoryRequest) error
	getSystemSettingsFunc    func(ctx context.Context, host, name string, generation int) (*hyperv.SystemSettings, error)
	applySystemSettingsFunc  func(ctx context.Context, host, name string, generation int, s hyperv.SystemSettings) error
	getSecuritySettingsFunc  func(ctx context.Context, host, name string) (*hyperv.SecuritySettings, error)
	setLocalKeyProtectorFunc func(ctx context.Context, host, name string) error
	enableTPMFunc            func(ctx context.Context, host, name string) error

	// Call tracking
	createVMCalls             []hyperv.CreateVMRequest
	networkAdaptersCalls      []string
	removeNetworkAdapterCalls []string // format: "vm/adapter"
	setProcessorCalls         []hyperv.ProcessorRequest
	setMemoryCalls            []hyperv.MemoryRequest
	getSystemSettingsCalls    []string
	applySystemSettingsCalls  []hyperv.SystemSettings
	getSecuritySettingsCalls  []string
	setLocalKeyProtectorCalls []string
	enableTPMCalls            []string
}

// newMockGateway creates a mock gateway with default behavior: creation
// succeeds and yields a powered-off VM carrying the platform default
// adapter, settings reads return fresh-VM state, and every mutation
// succeeds.
func newMockGateway() *mockGateway {
	return &mockGateway{
		// Default: create succeeds, VM is off
		createVMFunc: func(ctx context.Context, host string, req hyperv.CreateVMRequest) (*hyperv.VM, error) {
			return &hyperv.VM{
				Name:           req.Name,
				ID:             "00000000-0000-0000-0000-000000000001",
				State:          hyperv.StateOff,
				Path:           req.Path,
				Generation:     req.Generation,
				ProcessorCount: 1,
				MemoryStartup:  req.MemoryStartupBytes,
			}, nil
		},
		// Default: one platform default adapter
		networkAdaptersFunc: func(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error) {
			return []hyperv.NetAdapter{{Name: "Network Adapter", DynamicMac: true}}, nil
		},
		// Default: remove succeeds
		removeNetworkAdapterFunc: func(ctx context.Context, host, vmName, adapterName string) error {
			return nil
		},
		// Default: processor set succeeds
		setProcessorFunc: func(ctx context.Context, host string, req hyperv.ProcessorRequest) error {
			return nil
		},
		// Default: memory set succeeds
		setMemoryFunc: func(ctx context.Context, host string, req hyperv.MemoryRequest) error {
			return nil
		},
		// Default: fresh-VM firmware state (secure boot on, console unlocked)
		getSystemSettingsFunc: func(ctx context.Context, host, name string, generation int) (*hyperv.SystemSettings, error) {
			return &hyperv.SystemSettings{SecureBootEnabled: generation == 2}, nil
		},
		// Default: apply succeeds
		applySystemSettingsFunc: func(ctx context.Context, host, name string, generation int, s hyperv.SystemSettings) error {
			return nil
		},
		// Default: no TPM, no key protector
		getSecuritySettingsFunc: func(ctx context.Context, host, name string) (*hyperv.SecuritySettings, error) {
			return &hyperv.SecuritySettings{}, nil
		},
		// Default: key protector creation succeeds
		setLocalKeyProtectorFunc: func(ctx context.Context, host, name string) error {
			return nil
		},
		// Default: TPM enable succeeds
		enableTPMFunc: func(ctx context.Context, host, name string) error {
			return nil
		},
	}
}

func (m *mockGateway) CreateVM(ctx context.Context, host string, req hyperv.CreateVMRequest) (*hyperv.VM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVMCalls = append(m.createVMCalls, req)
	return m.createVMFunc(ctx, host, req)
}

func (m *mockGateway) NetworkAdapters(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.networkAdaptersCalls = append(m.networkAdaptersCalls, vmName)
	return m.networkAdaptersFunc(ctx, host, vmName)
}

func (m *mockGateway) RemoveNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeNetworkAdapterCalls = append(m.removeNetworkAdapterCalls, vmName+"/"+adapterName)
	return m.removeNetworkAdapterFunc(ctx, host, vmName, adapterName)
}

func (m *mockGateway) SetProcessor(ctx context.Context, host string, req hyperv.ProcessorRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setProcessorCalls = append(m.setProcessorCalls, req)
	return m.setProcessorFunc(ctx, host, req)
}

func (m *mockGateway) SetMemory(ctx context.Context, host string, req hyperv.MemoryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMemoryCalls = append(m.setMemoryCalls, req)
	return m.setMemoryFunc(ctx, host, req)
}

func (m *mockGateway) GetSystemSettings(ctx context.Context, host, name string, generation int) (*hyperv.SystemSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getSystemSettingsCalls = append(m.getSystemSettingsCalls, name)
	return m.getSystemSettingsFunc(ctx, host, name, generation)
}

func (m *mockGateway) ApplySystemSettings(ctx context.Context, host, name string, generation int, s hyperv.SystemSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applySystemSettingsCalls = append(m.applySystemSettingsCalls, s)
	return m.applySystemSettingsFunc(ctx, host, name, generation, s)
}

func (m *mockGateway) GetSecuritySettings(ctx context.Context, host, name string) (*hyperv.SecuritySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getSecuritySettingsCalls = append(m.getSecuritySettingsCalls, name)
	return m.getSecuritySettingsFunc(ctx, host, name)
}

func (m *mockGateway) SetLocalKeyProtector(ctx context.Context, host, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocalKeyProtectorCalls = append(m.setLocalKeyProtectorCalls, name)
	return m.setLocalKeyProtectorFunc(ctx, host, name)
}

func (m *mockGateway) EnableTPM(ctx context.Context, host, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enableTPMCalls = append(m.enableTPMCalls, name)
	return m.enableTPMFunc(ctx, host, name)
}
