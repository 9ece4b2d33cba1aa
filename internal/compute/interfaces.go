package compute

import (
	"context"

	"github.com/jbweber/croft/internal/hyperv"
)

// gateway defines the hypervisor operations needed for compute
// reconciliation. This wraps operations from *hyperv.Gateway to allow
// for testing.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// CreateVM creates a VM object and returns its live view
	CreateVM(ctx context.Context, host string, req hyperv.CreateVMRequest) (*hyperv.VM, error)

	// NetworkAdapters lists the network adapters attached to a VM
	NetworkAdapters(ctx context.Context, host, vmName string) ([]hyperv.NetAdapter, error)

	// RemoveNetworkAdapter removes one named adapter from a VM
	RemoveNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error

	// SetProcessor applies CPU count and topology settings
	SetProcessor(ctx context.Context, host string, req hyperv.ProcessorRequest) error

	// SetMemory applies the memory policy
	SetMemory(ctx context.Context, host string, req hyperv.MemoryRequest) error

	// GetSystemSettings reads the diffable firmware and console state
	GetSystemSettings(ctx context.Context, host, name string, generation int) (*hyperv.SystemSettings, error)

	// ApplySystemSettings writes firmware and console state back
	ApplySystemSettings(ctx context.Context, host, name string, generation int, s hyperv.SystemSettings) error

	// GetSecuritySettings reads virtual TPM and key protector state
	GetSecuritySettings(ctx context.Context, host, name string) (*hyperv.SecuritySettings, error)

	// SetLocalKeyProtector creates a local key protector on a VM
	SetLocalKeyProtector(ctx context.Context, host, name string) error

	// EnableTPM turns the virtual TPM on
	EnableTPM(ctx context.Context, host, name string) error
}
