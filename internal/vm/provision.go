package vm

import (
	"context"
	"fmt"
	"log"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/cluster"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/report"
)

// ProvisionOptions carry the operator's provisioning flags into the
// pass.
type ProvisionOptions struct {
	// SkipProvisioning builds the hardware but leaves OS deployment
	// alone.
	SkipProvisioning bool

	// SkipStart leaves stopped VMs stopped.
	SkipStart bool

	// ForceRestart restarts VMs that are already running. For a
	// running VM this is destructive and goes through the confirmation
	// policy.
	ForceRestart bool
}

// provisionOne converges a single VM: placement, compute, disks,
// adapters, cluster registration, OS deployment, power state.
func (e *Engine) provisionOne(ctx context.Context, pass *report.Pass, desired *v1alpha1.DesiredVM, opts ProvisionOptions) error {
	topo, live, err := e.locate(ctx, desired)
	if err != nil {
		return err
	}
	if live == nil && desired.Host == "" {
		return fmt.Errorf("VM %q does not exist and its record pins no host to create it on", desired.Name)
	}

	// An existing VM is converged where it actually runs; placement
	// only applies to creation.
	host := desired.Host
	if live != nil {
		host = live.Host
	}

	vm, err := e.deps.Compute.EnsureVM(ctx, host, desired, live)
	if err != nil {
		return err
	}

	for _, disk := range desired.Disks {
		if err := e.deps.Disks.EnsureDisk(ctx, host, vm.Name, disk); err != nil {
			return err
		}
	}

	for _, adapter := range desired.NetworkAdapters {
		if _, err := e.deps.Network.EnsureAdapter(ctx, host, vm.Name, adapter); err != nil {
			return err
		}
	}

	var group *hyperv.ClusterGroup
	if topo.Clustered() && !desired.DoNotCluster {
		group, err = e.deps.Cluster.EnsureMembership(ctx, host, vm, desired)
		if err != nil {
			return err
		}
	}

	if !opts.SkipProvisioning && desired.OSDeployment != nil {
		if e.deps.Deploy == nil {
			pass.Warn("record requests OS deployment but no deployment backend is configured")
		} else if err := e.deps.Deploy.Provision(ctx, host, desired); err != nil {
			return err
		}
	}

	if group != nil {
		// Power state of a clustered VM is group state.
		return e.deps.Cluster.EnsureStarted(ctx, host, group, cluster.StartOptions{
			SkipStart:    opts.SkipStart,
			ForceRestart: opts.ForceRestart,
		})
	}
	return e.ensureRunning(ctx, pass, host, vm, opts)
}

// ensureRunning converges the power state of a standalone VM.
func (e *Engine) ensureRunning(ctx context.Context, pass *report.Pass, host string, vm *hyperv.VM, opts ProvisionOptions) error {
	if vm.State != stateRunning {
		if opts.SkipStart {
			log.Printf("Skipping start of '%s'", vm.Name)
			return nil
		}
		log.Printf("Starting '%s'...", vm.Name)
		if err := e.deps.Gateway.Start(ctx, host, vm.Name); err != nil {
			return fmt.Errorf("failed to start '%s': %w", vm.Name, err)
		}
		return nil
	}

	if !opts.ForceRestart {
		return nil
	}
	if !e.deps.Confirm.Confirm(fmt.Sprintf("Restart running VM '%s' on %s?", vm.Name, host)) {
		pass.Warn("restart of running VM '%s' declined", vm.Name)
		return nil
	}
	log.Printf("Restarting '%s'...", vm.Name)
	if err := e.deps.Gateway.Stop(ctx, host, vm.Name, false); err != nil {
		return fmt.Errorf("failed to stop '%s': %w", vm.Name, err)
	}
	if err := e.deps.Gateway.Start(ctx, host, vm.Name); err != nil {
		return fmt.Errorf("failed to start '%s': %w", vm.Name, err)
	}
	return nil
}

// stateRunning is the power state FindVM reports for a running VM.
const stateRunning = "Running"
