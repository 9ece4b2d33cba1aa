package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/confirm"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/osdeploy"
	"github.com/jbweber/croft/internal/report"
	"github.com/jbweber/croft/internal/retry"
	"github.com/jbweber/croft/internal/store"
	"github.com/jbweber/croft/internal/topology"
)

// ErrPrecondition indicates the environment refuses an operation, such
// as a network-boot server running in a mode this engine must not
// touch.
var ErrPrecondition = osdeploy.ErrPrecondition

// NetworkCleanup names the external systems decommission may scrub VM
// traces from. Empty fields disable the corresponding cleanup.
type NetworkCleanup struct {
	// DNSServer and DNSZone locate the forward zone records were
	// registered in.
	DNSServer string
	DNSZone   string

	// DirectoryServer is the domain controller holding the computer
	// object.
	DirectoryServer string
}

// Deps are the collaborators an Engine drives. Gateway, Topology,
// Compute, Disks, Network and Cluster are required; the rest may be
// nil, disabling the corresponding step.
type Deps struct {
	Gateway  gateway
	Topology resolver
	Compute  computeReconciler
	Disks    diskReconciler
	Network  adapterReconciler
	Cluster  clusterController

	// Deploy runs OS deployment strategies. Nil skips OS provisioning
	// even for records that request it.
	Deploy provisioner

	// DHCP, DNS and Directory serve the optional network-object
	// cleanup of decommission.
	DHCP      addressService
	DNS       nameService
	Directory directoryService
	Cleanup   NetworkCleanup

	// Confirm gates the destructive decisions: restarting a running
	// VM, powering off for decommission, shrinking disks.
	Confirm confirm.Policy

	// Wait paces the snapshot merge wait during decommission.
	Wait retry.Policy

	// DefaultHost seeds topology discovery for records that do not
	// pin a host.
	DefaultHost string
}

// Engine runs provisioning and decommission passes over a declarative
// store.
type Engine struct {
	deps Deps
}

// NewEngine creates an Engine from its collaborators.
func NewEngine(deps Deps) *Engine {
	if deps.Confirm == nil {
		deps.Confirm = confirm.Deny{}
	}
	return &Engine{deps: deps}
}

// Provision converges every named VM onto its desired record, one pass
// per name. Failures abort the failing pass only; the returned run
// report carries every outcome.
func (e *Engine) Provision(ctx context.Context, st *store.Store, names []string, opts ProvisionOptions) *report.Run {
	run := &report.Run{}
	for _, name := range names {
		pass := run.Begin(name)
		desired, err := st.Get(name)
		if err != nil {
			pass.Skip(err)
			continue
		}
		pass.End(e.provisionOne(ctx, pass, desired, opts))
	}
	return run
}

// Decommission tears every named VM down, one pass per name.
func (e *Engine) Decommission(ctx context.Context, st *store.Store, names []string, opts DecommissionOptions) *report.Run {
	run := &report.Run{}
	for _, name := range names {
		pass := run.Begin(name)
		desired, err := st.Get(name)
		if err != nil {
			pass.Skip(err)
			continue
		}
		pass.End(e.decommissionOne(ctx, pass, desired, opts))
	}
	return run
}

// locate discovers the topology around the record's host and searches
// it for the VM. The live VM is nil when nothing matched; ambiguity is
// an error, never guessed away.
func (e *Engine) locate(ctx context.Context, desired *v1alpha1.DesiredVM) (*topology.Topology, *hyperv.VM, error) {
	seed := desired.Host
	if seed == "" {
		seed = e.deps.DefaultHost
	}
	if seed == "" {
		return nil, nil, fmt.Errorf("record %q names no host and no default host is configured", desired.Name)
	}

	topo, err := e.deps.Topology.Discover(ctx, seed)
	if err != nil {
		return nil, nil, err
	}

	live, err := e.deps.Topology.Resolve(ctx, topo, desired.Name)
	if err != nil {
		if errors.Is(err, hyperv.ErrNotFound) {
			return topo, nil, nil
		}
		return nil, nil, err
	}
	return topo, live, nil
}
