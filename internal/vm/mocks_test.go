package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/cluster"
	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/directory"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/topology"
)

// mockGateway is a mock implementation of the gateway interface for
// testing.
type mockGateway struct {
	// Configurable behavior
	startFunc           func(ctx context.Context, host, name string) error
	stopFunc            func(ctx context.Context, host, name string, turnOff bool) error
	removeVMFunc        func(ctx context.Context, host, name string) error
	mergeFunc           func(ctx context.Context, host, vmName string) (bool, error)
	hardDiskDrivesFunc  func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)
	getVHDFunc          func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)
	sharedVolumesFunc   func(ctx context.Context, host string) ([]hyperv.SharedVolume, error)
	deleteFileFunc      func(ctx context.Context, host, path string) error
	deleteDirectoryFunc func(ctx context.Context, host, path string) error

	// Call tracking
	startCalls      []string
	stopCalls       []string // format: "name:turnOff"
	removeVMCalls   []string
	snapshotCalls   []string
	mergeChecks     int
	dismountCalls   []string
	moveVolumeCalls []string // format: "volume->node"
	deleteFileCalls []string
	deleteDirCalls  []string
}

func newMockGateway() *mockGateway {
	m := &mockGateway{}
	m.startFunc = func(ctx context.Context, host, name string) error { return nil }
	m.stopFunc = func(ctx context.Context, host, name string, turnOff bool) error { return nil }
	m.removeVMFunc = func(ctx context.Context, host, name string) error { return nil }
	m.mergeFunc = func(ctx context.Context, host, vmName string) (bool, error) { return false, nil }
	m.hardDiskDrivesFunc = func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
		return []hyperv.DiskDrive{{Path: `D:\hyperv\web-01\boot.vhdx`, ControllerType: "SCSI"}}, nil
	}
	m.getVHDFunc = func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
		return &hyperv.VHDInfo{Path: path, Size: 40 << 30}, nil
	}
	m.sharedVolumesFunc = func(ctx context.Context, host string) ([]hyperv.SharedVolume, error) { return nil, nil }
	m.deleteFileFunc = func(ctx context.Context, host, path string) error { return nil }
	m.deleteDirectoryFunc = func(ctx context.Context, host, path string) error { return nil }
	return m
}

func (m *mockGateway) Start(ctx context.Context, host, name string) error {
	m.startCalls = append(m.startCalls, name)
	return m.startFunc(ctx, host, name)
}

func (m *mockGateway) Stop(ctx context.Context, host, name string, turnOff bool) error {
	m.stopCalls = append(m.stopCalls, fmt.Sprintf("%s:%t", name, turnOff))
	return m.stopFunc(ctx, host, name, turnOff)
}

func (m *mockGateway) RemoveVM(ctx context.Context, host, name string) error {
	m.removeVMCalls = append(m.removeVMCalls, name)
	return m.removeVMFunc(ctx, host, name)
}

func (m *mockGateway) RemoveAllSnapshots(ctx context.Context, host, vmName string) error {
	m.snapshotCalls = append(m.snapshotCalls, vmName)
	return nil
}

func (m *mockGateway) MergeInProgress(ctx context.Context, host, vmName string) (bool, error) {
	m.mergeChecks++
	return m.mergeFunc(ctx, host, vmName)
}

func (m *mockGateway) HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
	return m.hardDiskDrivesFunc(ctx, host, vmName)
}

func (m *mockGateway) GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
	return m.getVHDFunc(ctx, host, path)
}

func (m *mockGateway) DismountVHD(ctx context.Context, host, path string) error {
	m.dismountCalls = append(m.dismountCalls, path)
	return nil
}

func (m *mockGateway) SharedVolumes(ctx context.Context, host string) ([]hyperv.SharedVolume, error) {
	return m.sharedVolumesFunc(ctx, host)
}

func (m *mockGateway) MoveSharedVolume(ctx context.Context, host, volumeName, targetNode string) error {
	m.moveVolumeCalls = append(m.moveVolumeCalls, volumeName+"->"+targetNode)
	return nil
}

func (m *mockGateway) DeleteFile(ctx context.Context, host, path string) error {
	m.deleteFileCalls = append(m.deleteFileCalls, path)
	return m.deleteFileFunc(ctx, host, path)
}

func (m *mockGateway) DeleteDirectoryIfEmpty(ctx context.Context, host, path string) error {
	m.deleteDirCalls = append(m.deleteDirCalls, path)
	return m.deleteDirectoryFunc(ctx, host, path)
}

// mockResolver is a mock implementation of the resolver interface.
type mockResolver struct {
	discoverFunc func(ctx context.Context, host string) (*topology.Topology, error)
	resolveFunc  func(ctx context.Context, topo *topology.Topology, vmName string) (*hyperv.VM, error)

	discoverCalls []string
}

func newMockResolver() *mockResolver {
	m := &mockResolver{}
	m.discoverFunc = func(ctx context.Context, host string) (*topology.Topology, error) {
		return &topology.Topology{Nodes: []string{host}}, nil
	}
	m.resolveFunc = func(ctx context.Context, topo *topology.Topology, vmName string) (*hyperv.VM, error) {
		return nil, fmt.Errorf("VM %q: %w", vmName, hyperv.ErrNotFound)
	}
	return m
}

func (m *mockResolver) Discover(ctx context.Context, host string) (*topology.Topology, error) {
	m.discoverCalls = append(m.discoverCalls, host)
	return m.discoverFunc(ctx, host)
}

func (m *mockResolver) Resolve(ctx context.Context, topo *topology.Topology, vmName string) (*hyperv.VM, error) {
	return m.resolveFunc(ctx, topo, vmName)
}

// mockCompute is a mock implementation of the computeReconciler
// interface.
type mockCompute struct {
	ensureVMFunc func(ctx context.Context, host string, desired *v1alpha1.DesiredVM, live *hyperv.VM) (*hyperv.VM, error)

	ensureVMCalls []string // format: "host/name"
}

func newMockCompute() *mockCompute {
	return &mockCompute{
		ensureVMFunc: func(ctx context.Context, host string, desired *v1alpha1.DesiredVM, live *hyperv.VM) (*hyperv.VM, error) {
			if live != nil {
				return live, nil
			}
			return &hyperv.VM{Name: desired.Name, ID: "new-id", State: "Off", Host: host}, nil
		},
	}
}

func (m *mockCompute) EnsureVM(ctx context.Context, host string, desired *v1alpha1.DesiredVM, live *hyperv.VM) (*hyperv.VM, error) {
	m.ensureVMCalls = append(m.ensureVMCalls, host+"/"+desired.Name)
	return m.ensureVMFunc(ctx, host, desired, live)
}

// mockDisks is a mock implementation of the diskReconciler interface.
type mockDisks struct {
	ensureDiskFunc func(ctx context.Context, host, vmName string, disk v1alpha1.DesiredDisk) error

	ensureDiskCalls []string
}

func newMockDisks() *mockDisks {
	return &mockDisks{
		ensureDiskFunc: func(ctx context.Context, host, vmName string, disk v1alpha1.DesiredDisk) error { return nil },
	}
}

func (m *mockDisks) EnsureDisk(ctx context.Context, host, vmName string, disk v1alpha1.DesiredDisk) error {
	m.ensureDiskCalls = append(m.ensureDiskCalls, disk.Path)
	return m.ensureDiskFunc(ctx, host, vmName, disk)
}

// mockNetwork is a mock implementation of the adapterReconciler
// interface.
type mockNetwork struct {
	ensureAdapterFunc func(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) (*hyperv.NetAdapter, error)

	ensureAdapterCalls []string
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{
		ensureAdapterFunc: func(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) (*hyperv.NetAdapter, error) {
			return &hyperv.NetAdapter{Name: desired.Name}, nil
		},
	}
}

func (m *mockNetwork) EnsureAdapter(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) (*hyperv.NetAdapter, error) {
	m.ensureAdapterCalls = append(m.ensureAdapterCalls, desired.Name)
	return m.ensureAdapterFunc(ctx, host, vmName, desired)
}

// mockCluster is a mock implementation of the clusterController
// interface.
type mockCluster struct {
	ensureMembershipFunc func(ctx context.Context, host string, vm *hyperv.VM, desired *v1alpha1.DesiredVM) (*hyperv.ClusterGroup, error)
	ensureStartedFunc    func(ctx context.Context, host string, group *hyperv.ClusterGroup, opts cluster.StartOptions) error

	membershipCalls []string
	startedCalls    []cluster.StartOptions
	removeCalls     []string
}

func newMockCluster() *mockCluster {
	return &mockCluster{
		ensureMembershipFunc: func(ctx context.Context, host string, vm *hyperv.VM, desired *v1alpha1.DesiredVM) (*hyperv.ClusterGroup, error) {
			return &hyperv.ClusterGroup{Name: vm.Name, State: hyperv.GroupOffline, OwnerNode: host}, nil
		},
		ensureStartedFunc: func(ctx context.Context, host string, group *hyperv.ClusterGroup, opts cluster.StartOptions) error {
			return nil
		},
	}
}

func (m *mockCluster) EnsureMembership(ctx context.Context, host string, vm *hyperv.VM, desired *v1alpha1.DesiredVM) (*hyperv.ClusterGroup, error) {
	m.membershipCalls = append(m.membershipCalls, vm.Name)
	return m.ensureMembershipFunc(ctx, host, vm, desired)
}

func (m *mockCluster) EnsureStarted(ctx context.Context, host string, group *hyperv.ClusterGroup, opts cluster.StartOptions) error {
	m.startedCalls = append(m.startedCalls, opts)
	return m.ensureStartedFunc(ctx, host, group, opts)
}

func (m *mockCluster) RemoveMembership(ctx context.Context, host string, vm *hyperv.VM) error {
	m.removeCalls = append(m.removeCalls, vm.Name)
	return nil
}

// mockDeploy is a mock implementation of the provisioner interface.
type mockDeploy struct {
	provisionFunc func(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error

	provisionCalls   []string
	deprovisionCalls []string
}

func newMockDeploy() *mockDeploy {
	return &mockDeploy{
		provisionFunc: func(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error { return nil },
	}
}

func (m *mockDeploy) Provision(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	m.provisionCalls = append(m.provisionCalls, desired.Name)
	return m.provisionFunc(ctx, host, desired)
}

func (m *mockDeploy) Deprovision(ctx context.Context, host, vmName string, dep *v1alpha1.DesiredOSDeployment) error {
	m.deprovisionCalls = append(m.deprovisionCalls, vmName)
	return nil
}

// mockDHCP is a mock implementation of the addressService interface.
type mockDHCP struct {
	reservationsFunc func(ctx context.Context, server, scope string) ([]dhcp.Reservation, error)
	failoverFunc     func(ctx context.Context, server, scope string) (string, error)

	removeCalls    []string // format: "scope/ip"
	replicateCalls []string
}

func newMockDHCP() *mockDHCP {
	return &mockDHCP{
		reservationsFunc: func(ctx context.Context, server, scope string) ([]dhcp.Reservation, error) { return nil, nil },
		failoverFunc:     func(ctx context.Context, server, scope string) (string, error) { return "", nil },
	}
}

func (m *mockDHCP) Reservations(ctx context.Context, server, scope string) ([]dhcp.Reservation, error) {
	return m.reservationsFunc(ctx, server, scope)
}

func (m *mockDHCP) RemoveReservation(ctx context.Context, server, scope, ip string) error {
	m.removeCalls = append(m.removeCalls, scope+"/"+ip)
	return nil
}

func (m *mockDHCP) ScopeFailover(ctx context.Context, server, scope string) (string, error) {
	return m.failoverFunc(ctx, server, scope)
}

func (m *mockDHCP) ReplicateScope(ctx context.Context, server, scope string) error {
	m.replicateCalls = append(m.replicateCalls, scope)
	return nil
}

// mockDNS is a mock implementation of the nameService interface.
type mockDNS struct {
	removeFunc func(ctx context.Context, server, zone, name, recordType string) error

	removeCalls []string // format: "zone/name/type"
}

func newMockDNS() *mockDNS {
	return &mockDNS{
		removeFunc: func(ctx context.Context, server, zone, name, recordType string) error { return nil },
	}
}

func (m *mockDNS) RemoveRecords(ctx context.Context, server, zone, name, recordType string) error {
	m.removeCalls = append(m.removeCalls, zone+"/"+name+"/"+recordType)
	return m.removeFunc(ctx, server, zone, name, recordType)
}

// mockDirectory is a mock implementation of the directoryService
// interface.
type mockDirectory struct {
	findFunc func(ctx context.Context, server, name string) (*directory.Computer, error)

	removeCalls []string
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		findFunc: func(ctx context.Context, server, name string) (*directory.Computer, error) { return nil, nil },
	}
}

func (m *mockDirectory) FindComputer(ctx context.Context, server, name string) (*directory.Computer, error) {
	return m.findFunc(ctx, server, name)
}

func (m *mockDirectory) RemoveComputer(ctx context.Context, server, distinguishedName string) error {
	m.removeCalls = append(m.removeCalls, distinguishedName)
	return nil
}
