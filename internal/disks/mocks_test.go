package disks

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/croft/internal/hyperv"
)

// mockGateway is a mock implementation of the gateway interface for
// testing.
type mockGateway struct {
	mu sync.Mutex

	// Configurable behavior
	getVHDFunc              func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)
	createVHDFunc           func(ctx context.Context, host string, req hyperv.CreateVHDRequest) error
	hardDiskDrivesFunc      func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)
	attachDiskFunc          func(ctx context.Context, host string, req hyperv.AttachDiskRequest) error
	detachDiskFunc          func(ctx context.Context, host, vmName, controllerType string, controllerNumber, controllerLocation int) error
	scsiControllerCountFunc func(ctx context.Context, host, vmName string) (int, error)
	addScsiControllerFunc   func(ctx context.Context, host, vmName string) error

	// Call tracking
	getVHDCalls              []string
	createVHDCalls           []hyperv.CreateVHDRequest
	hardDiskDrivesCalls      []string
	attachDiskCalls          []hyperv.AttachDiskRequest
	detachDiskCalls          []string // format: "vm/type/number:location"
	scsiControllerCountCalls []string
	addScsiControllerCalls   []string
}

// newMockGateway creates a mock gateway with default behavior: the VM
// has no drives and one SCSI controller, no image files exist, and
// every mutation succeeds.
func newMockGateway() *mockGateway {
	return &mockGateway{
		// Default: image does not exist
		getVHDFunc: func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
			return nil, fmt.Errorf("virtual disk %q on %s: %w", path, host, hyperv.ErrNotFound)
		},
		// Default: create succeeds
		createVHDFunc: func(ctx context.Context, host string, req hyperv.CreateVHDRequest) error {
			return nil
		},
		// Default: no drives attached
		hardDiskDrivesFunc: func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
			return nil, nil
		},
		// Default: attach succeeds
		attachDiskFunc: func(ctx context.Context, host string, req hyperv.AttachDiskRequest) error {
			return nil
		},
		// Default: detach succeeds
		detachDiskFunc: func(ctx context.Context, host, vmName, controllerType string, controllerNumber, controllerLocation int) error {
			return nil
		},
		// Default: one SCSI controller
		scsiControllerCountFunc: func(ctx context.Context, host, vmName string) (int, error) {
			return 1, nil
		},
		// Default: add succeeds
		addScsiControllerFunc: func(ctx context.Context, host, vmName string) error {
			return nil
		},
	}
}

func (m *mockGateway) GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getVHDCalls = append(m.getVHDCalls, path)
	return m.getVHDFunc(ctx, host, path)
}

func (m *mockGateway) CreateVHD(ctx context.Context, host string, req hyperv.CreateVHDRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createVHDCalls = append(m.createVHDCalls, req)
	return m.createVHDFunc(ctx, host, req)
}

func (m *mockGateway) HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hardDiskDrivesCalls = append(m.hardDiskDrivesCalls, vmName)
	return m.hardDiskDrivesFunc(ctx, host, vmName)
}

func (m *mockGateway) AttachDisk(ctx context.Context, host string, req hyperv.AttachDiskRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachDiskCalls = append(m.attachDiskCalls, req)
	return m.attachDiskFunc(ctx, host, req)
}

func (m *mockGateway) DetachDisk(ctx context.Context, host, vmName, controllerType string, controllerNumber, controllerLocation int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachDiskCalls = append(m.detachDiskCalls, fmt.Sprintf("%s/%s/%d:%d", vmName, controllerType, controllerNumber, controllerLocation))
	return m.detachDiskFunc(ctx, host, vmName, controllerType, controllerNumber, controllerLocation)
}

func (m *mockGateway) ScsiControllerCount(ctx context.Context, host, vmName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scsiControllerCountCalls = append(m.scsiControllerCountCalls, vmName)
	return m.scsiControllerCountFunc(ctx, host, vmName)
}

func (m *mockGateway) AddScsiController(ctx context.Context, host, vmName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addScsiControllerCalls = append(m.addScsiControllerCalls, vmName)
	return m.addScsiControllerFunc(ctx, host, vmName)
}
