package compute

import (
	"context"
	"fmt"
	"log"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/hyperv"
)

// Reconciler drives the compute and firmware state of VMs toward their
// desired records.
type Reconciler struct {
	gw gateway
}

// NewReconciler creates a Reconciler backed by the given hypervisor
// gateway.
func NewReconciler(gw gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

// EnsureVM converges the VM shell on the given host. A nil live view
// means the VM does not exist anywhere and is created at the desired
// path. Processor and memory settings are applied on every pass;
// firmware settings are diffed first and written back only when a field
// differs. Returns the live view, freshly created or as passed in.
func (r *Reconciler) EnsureVM(ctx context.Context, host string, desired *v1alpha1.DesiredVM, live *hyperv.VM) (*hyperv.VM, error) {
	if live == nil {
		created, err := r.createVM(ctx, host, desired)
		if err != nil {
			return nil, err
		}
		live = created
	}

	if err := r.ensureProcessor(ctx, host, desired); err != nil {
		return nil, err
	}
	if err := r.ensureMemory(ctx, host, desired); err != nil {
		return nil, err
	}
	if err := r.ensureSystemSettings(ctx, host, desired); err != nil {
		return nil, err
	}
	if desired.TPMEnabled {
		if err := r.ensureTPM(ctx, host, desired.Name); err != nil {
			return nil, err
		}
	}

	return live, nil
}

// createVM creates the VM object and strips the default adapter the
// platform adds to every new VM. Adapter state belongs to the network
// reconciler; a fresh VM must start with none.
func (r *Reconciler) createVM(ctx context.Context, host string, desired *v1alpha1.DesiredVM) (*hyperv.VM, error) {
	log.Printf("Creating VM '%s' on %s...", desired.Name, host)
	vm, err := r.gw.CreateVM(ctx, host, hyperv.CreateVMRequest{
		Name:               desired.Name,
		Path:               desired.Path,
		Generation:         desired.Generation,
		MemoryStartupBytes: desired.Memory.StartupBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VM '%s': %w", desired.Name, err)
	}
	vm.Host = host

	adapters, err := r.gw.NetworkAdapters(ctx, host, desired.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list default adapters: %w", err)
	}
	for _, a := range adapters {
		log.Printf("Removing default adapter '%s' from '%s'...", a.Name, desired.Name)
		if err := r.gw.RemoveNetworkAdapter(ctx, host, desired.Name, a.Name); err != nil {
			return nil, fmt.Errorf("failed to remove default adapter '%s': %w", a.Name, err)
		}
	}

	return vm, nil
}

// ensureProcessor applies the CPU count unconditionally. Set-VMProcessor
// is idempotent, so diffing first buys nothing. Disabling SMT pins the
// topology to one hardware thread per core.
func (r *Reconciler) ensureProcessor(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	req := hyperv.ProcessorRequest{
		VMName: desired.Name,
		Count:  desired.ProcessorCount,
	}
	if desired.SMTDisabled {
		one := 1
		req.HwThreadCountPerCore = &one
	}
	if err := r.gw.SetProcessor(ctx, host, req); err != nil {
		return fmt.Errorf("failed to set processor configuration: %w", err)
	}
	return nil
}

// ensureMemory applies the memory policy. With dynamic memory the
// startup bytes bound the effective range: a minimum above startup is
// pulled down to it and a maximum below startup pushed up, so the
// platform never rejects the triple.
func (r *Reconciler) ensureMemory(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	minBytes, maxBytes := desired.Memory.EffectiveBounds()
	req := hyperv.MemoryRequest{
		VMName:       desired.Name,
		StartupBytes: desired.Memory.StartupBytes,
		Dynamic:      desired.Memory.Dynamic(),
		MinimumBytes: minBytes,
		MaximumBytes: maxBytes,
	}
	if err := r.gw.SetMemory(ctx, host, req); err != nil {
		return fmt.Errorf("failed to set memory configuration: %w", err)
	}
	return nil
}

// desiredSystemSettings returns the firmware policy for a VM: numlock
// on for generation 1 BIOS, secure boot on for generation 2 firmware,
// and the console locked when a session disconnects. Fields the policy
// has no opinion on keep their current value so the diff stays quiet.
func desiredSystemSettings(generation int, current hyperv.SystemSettings) hyperv.SystemSettings {
	want := current
	if generation == 1 {
		want.NumLockEnabled = true
	} else {
		want.SecureBootEnabled = true
	}
	want.LockOnDisconnect = true
	return want
}

// ensureSystemSettings reads the firmware state as one settings object,
// diffs it against the policy and writes back only when a field
// differs. Firmware writes are slow and noisy in the platform event
// log, so a clean diff skips the write entirely.
func (r *Reconciler) ensureSystemSettings(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	current, err := r.gw.GetSystemSettings(ctx, host, desired.Name, desired.Generation)
	if err != nil {
		return fmt.Errorf("failed to read system settings: %w", err)
	}
	want := desiredSystemSettings(desired.Generation, *current)
	if want == *current {
		return nil
	}
	log.Printf("Updating system settings for '%s'...", desired.Name)
	if err := r.gw.ApplySystemSettings(ctx, host, desired.Name, desired.Generation, want); err != nil {
		return fmt.Errorf("failed to apply system settings: %w", err)
	}
	return nil
}

// ensureTPM enables the virtual TPM. A key protector is created first
// unless the VM already carries a real one; both checks make repeat
// passes no-ops.
func (r *Reconciler) ensureTPM(ctx context.Context, host, name string) error {
	sec, err := r.gw.GetSecuritySettings(ctx, host, name)
	if err != nil {
		return fmt.Errorf("failed to read security settings: %w", err)
	}
	if !sec.HasKeyProtector {
		log.Printf("Creating local key protector for '%s'...", name)
		if err := r.gw.SetLocalKeyProtector(ctx, host, name); err != nil {
			return fmt.Errorf("failed to set key protector: %w", err)
		}
	}
	if !sec.TpmEnabled {
		log.Printf("Enabling virtual TPM for '%s'...", name)
		if err := r.gw.EnableTPM(ctx, host, name); err != nil {
			return fmt.Errorf("failed to enable virtual TPM: %w", err)
		}
	}
	return nil
}
