package vm

import (
	"context"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/cluster"
	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/directory"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/topology"
)

// gateway defines the hypervisor operations the engine calls directly,
// outside of any reconciler: power state, snapshot cleanup and the
// file-level teardown of decommission.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// Start powers a VM on
	Start(ctx context.Context, host, name string) error

	// Stop powers a VM off, hard when turnOff is set
	Stop(ctx context.Context, host, name string, turnOff bool) error

	// RemoveVM deletes a VM's configuration, leaving its disks behind
	RemoveVM(ctx context.Context, host, name string) error

	// RemoveAllSnapshots deletes every snapshot including children
	RemoveAllSnapshots(ctx context.Context, host, vmName string) error

	// MergeInProgress reports whether snapshot disks are still merging
	MergeInProgress(ctx context.Context, host, vmName string) (bool, error)

	// HardDiskDrives lists the hard-drive attachments of a VM
	HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)

	// GetVHD inspects a disk image file on the host
	GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)

	// DismountVHD unmounts a mounted disk image
	DismountVHD(ctx context.Context, host, path string) error

	// SharedVolumes lists the cluster shared volumes and their owners
	SharedVolumes(ctx context.Context, host string) ([]hyperv.SharedVolume, error)

	// MoveSharedVolume moves CSV ownership to a node
	MoveSharedVolume(ctx context.Context, host, volumeName, targetNode string) error

	// DeleteFile deletes a file on the host
	DeleteFile(ctx context.Context, host, path string) error

	// DeleteDirectoryIfEmpty removes a directory only when empty
	DeleteDirectoryIfEmpty(ctx context.Context, host, path string) error
}

// resolver locates VMs across standalone hosts and clusters.
//
// In production, this is satisfied by *topology.Resolver.
type resolver interface {
	Discover(ctx context.Context, host string) (*topology.Topology, error)
	Resolve(ctx context.Context, topo *topology.Topology, vmName string) (*hyperv.VM, error)
}

// computeReconciler converges the VM object itself.
//
// In production, this is satisfied by *compute.Reconciler.
type computeReconciler interface {
	EnsureVM(ctx context.Context, host string, desired *v1alpha1.DesiredVM, live *hyperv.VM) (*hyperv.VM, error)
}

// diskReconciler converges one virtual disk.
//
// In production, this is satisfied by *disks.Reconciler.
type diskReconciler interface {
	EnsureDisk(ctx context.Context, host, vmName string, disk v1alpha1.DesiredDisk) error
}

// adapterReconciler converges one network adapter.
//
// In production, this is satisfied by *network.Reconciler.
type adapterReconciler interface {
	EnsureAdapter(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) (*hyperv.NetAdapter, error)
}

// clusterController converges failover-cluster registration and group
// power state.
//
// In production, this is satisfied by *cluster.Reconciler.
type clusterController interface {
	EnsureMembership(ctx context.Context, host string, vm *hyperv.VM, desired *v1alpha1.DesiredVM) (*hyperv.ClusterGroup, error)
	EnsureStarted(ctx context.Context, host string, group *hyperv.ClusterGroup, opts cluster.StartOptions) error
	RemoveMembership(ctx context.Context, host string, vm *hyperv.VM) error
}

// provisioner runs and reverses the OS deployment strategy.
//
// In production, this is satisfied by *osdeploy.Dispatcher.
type provisioner interface {
	Provision(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error
	Deprovision(ctx context.Context, host, vmName string, dep *v1alpha1.DesiredOSDeployment) error
}

// addressService removes and replicates DHCP reservations on
// decommission.
//
// In production, this is satisfied by *dhcp.Gateway.
type addressService interface {
	Reservations(ctx context.Context, server, scope string) ([]dhcp.Reservation, error)
	RemoveReservation(ctx context.Context, server, scope, ip string) error
	ScopeFailover(ctx context.Context, server, scope string) (string, error)
	ReplicateScope(ctx context.Context, server, scope string) error
}

// nameService removes DNS records on decommission.
//
// In production, this is satisfied by *dns.Gateway.
type nameService interface {
	RemoveRecords(ctx context.Context, server, zone, name, recordType string) error
}

// directoryService removes computer objects on decommission.
//
// In production, this is satisfied by *directory.Gateway.
type directoryService interface {
	FindComputer(ctx context.Context, server, name string) (*directory.Computer, error)
	RemoveComputer(ctx context.Context, server, distinguishedName string) error
}
