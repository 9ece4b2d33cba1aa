package osdeploy

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/sccm"
	"github.com/jbweber/croft/internal/wds"
)

// mockGateway is a mock implementation of the gateway interface for
// testing.
type mockGateway struct {
	mu sync.Mutex

	// Configurable behavior
	dvdDrivesFunc           func(ctx context.Context, host, vmName string) ([]hyperv.DvdDrive, error)
	addDvdDriveFunc         func(ctx context.Context, host string, req hyperv.AddDvdRequest) error
	setDvdMediaFunc         func(ctx context.Context, host, vmName string, controllerNumber, controllerLocation int, path string) error
	setFirstBootDvdFunc     func(ctx context.Context, host, vmName string, generation, controllerNumber, controllerLocation int) error
	scsiControllerCountFunc func(ctx context.Context, host, vmName string) (int, error)
	addScsiControllerFunc   func(ctx context.Context, host, vmName string) error
	hardDiskDrivesFunc      func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)
	getVHDFunc              func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)
	copyFileFunc            func(ctx context.Context, host, src, dst string) error
	mountVHDFunc            func(ctx context.Context, host, path string) (string, error)
	dismountVHDFunc         func(ctx context.Context, host, path string) error
	ensureDirectoryFunc     func(ctx context.Context, host, path string) error
	writeFileBytesFunc      func(ctx context.Context, host, path string, data []byte) error
	biosGUIDFunc            func(ctx context.Context, host, name string) (string, error)

	// Call tracking
	addDvdDriveCalls     []hyperv.AddDvdRequest
	setDvdMediaCalls     []string // format: "number:location=path"
	setFirstBootCalls    []string // format: "number:location"
	addScsiCalls         []string
	copyFileCalls        []string // format: "src->dst"
	mountCalls           []string
	dismountCalls        []string
	writeFileCalls       map[string][]byte
	ensureDirectoryCalls []string
}

// newMockGateway creates a mock gateway with default behavior: the VM
// has no DVD drives, one SCSI controller, a boot disk at 0:0, and a
// stable firmware identity; every mutation succeeds.
func newMockGateway() *mockGateway {
	m := &mockGateway{writeFileCalls: map[string][]byte{}}

	// Default: no DVD drives until one is added
	m.dvdDrivesFunc = func(ctx context.Context, host, vmName string) ([]hyperv.DvdDrive, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		drives := make([]hyperv.DvdDrive, 0, len(m.addDvdDriveCalls))
		for i, req := range m.addDvdDriveCalls {
			drives = append(drives, hyperv.DvdDrive{Path: req.Path, ControllerNumber: 0, ControllerLocation: i + 1})
		}
		return drives, nil
	}
	m.addDvdDriveFunc = func(ctx context.Context, host string, req hyperv.AddDvdRequest) error { return nil }
	m.setDvdMediaFunc = func(ctx context.Context, host, vmName string, n, l int, path string) error { return nil }
	m.setFirstBootDvdFunc = func(ctx context.Context, host, vmName string, g, n, l int) error { return nil }
	m.scsiControllerCountFunc = func(ctx context.Context, host, vmName string) (int, error) { return 1, nil }
	m.addScsiControllerFunc = func(ctx context.Context, host, vmName string) error { return nil }
	m.hardDiskDrivesFunc = func(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
		return []hyperv.DiskDrive{{Path: `D:\hyperv\web-01\boot.vhdx`, ControllerType: "SCSI"}}, nil
	}
	m.getVHDFunc = func(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
		return &hyperv.VHDInfo{Path: path, Size: 40 << 30}, nil
	}
	m.copyFileFunc = func(ctx context.Context, host, src, dst string) error { return nil }
	m.mountVHDFunc = func(ctx context.Context, host, path string) (string, error) { return "F", nil }
	m.dismountVHDFunc = func(ctx context.Context, host, path string) error { return nil }
	m.ensureDirectoryFunc = func(ctx context.Context, host, path string) error { return nil }
	m.writeFileBytesFunc = func(ctx context.Context, host, path string, data []byte) error { return nil }
	m.biosGUIDFunc = func(ctx context.Context, host, name string) (string, error) {
		return "A7C2D7E0-1111-2222-3333-444455556666", nil
	}
	return m
}

func (m *mockGateway) DvdDrives(ctx context.Context, host, vmName string) ([]hyperv.DvdDrive, error) {
	return m.dvdDrivesFunc(ctx, host, vmName)
}

func (m *mockGateway) AddDvdDrive(ctx context.Context, host string, req hyperv.AddDvdRequest) error {
	m.mu.Lock()
	m.addDvdDriveCalls = append(m.addDvdDriveCalls, req)
	m.mu.Unlock()
	return m.addDvdDriveFunc(ctx, host, req)
}

func (m *mockGateway) SetDvdMedia(ctx context.Context, host, vmName string, controllerNumber, controllerLocation int, path string) error {
	m.mu.Lock()
	m.setDvdMediaCalls = append(m.setDvdMediaCalls, fmt.Sprintf("%d:%d=%s", controllerNumber, controllerLocation, path))
	m.mu.Unlock()
	return m.setDvdMediaFunc(ctx, host, vmName, controllerNumber, controllerLocation, path)
}

func (m *mockGateway) SetFirstBootDvd(ctx context.Context, host, vmName string, generation, controllerNumber, controllerLocation int) error {
	m.mu.Lock()
	m.setFirstBootCalls = append(m.setFirstBootCalls, fmt.Sprintf("%d:%d", controllerNumber, controllerLocation))
	m.mu.Unlock()
	return m.setFirstBootDvdFunc(ctx, host, vmName, generation, controllerNumber, controllerLocation)
}

func (m *mockGateway) ScsiControllerCount(ctx context.Context, host, vmName string) (int, error) {
	return m.scsiControllerCountFunc(ctx, host, vmName)
}

func (m *mockGateway) AddScsiController(ctx context.Context, host, vmName string) error {
	m.mu.Lock()
	m.addScsiCalls = append(m.addScsiCalls, vmName)
	m.mu.Unlock()
	return m.addScsiControllerFunc(ctx, host, vmName)
}

func (m *mockGateway) HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error) {
	return m.hardDiskDrivesFunc(ctx, host, vmName)
}

func (m *mockGateway) GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error) {
	return m.getVHDFunc(ctx, host, path)
}

func (m *mockGateway) CopyFile(ctx context.Context, host, src, dst string) error {
	m.mu.Lock()
	m.copyFileCalls = append(m.copyFileCalls, src+"->"+dst)
	m.mu.Unlock()
	return m.copyFileFunc(ctx, host, src, dst)
}

func (m *mockGateway) MountVHD(ctx context.Context, host, path string) (string, error) {
	m.mu.Lock()
	m.mountCalls = append(m.mountCalls, path)
	m.mu.Unlock()
	return m.mountVHDFunc(ctx, host, path)
}

func (m *mockGateway) DismountVHD(ctx context.Context, host, path string) error {
	m.mu.Lock()
	m.dismountCalls = append(m.dismountCalls, path)
	m.mu.Unlock()
	return m.dismountVHDFunc(ctx, host, path)
}

func (m *mockGateway) EnsureDirectory(ctx context.Context, host, path string) error {
	m.mu.Lock()
	m.ensureDirectoryCalls = append(m.ensureDirectoryCalls, path)
	m.mu.Unlock()
	return m.ensureDirectoryFunc(ctx, host, path)
}

func (m *mockGateway) WriteFileBytes(ctx context.Context, host, path string, data []byte) error {
	m.mu.Lock()
	m.writeFileCalls[path] = data
	m.mu.Unlock()
	return m.writeFileBytesFunc(ctx, host, path, data)
}

func (m *mockGateway) BiosGUID(ctx context.Context, host, name string) (string, error) {
	return m.biosGUIDFunc(ctx, host, name)
}

// mockBootService is a mock implementation of the bootService
// interface for testing.
type mockBootService struct {
	standaloneModeFunc func(ctx context.Context, server string) (bool, error)
	createDeviceFunc   func(ctx context.Context, server string, req wds.DeviceRequest) error

	createCalls       []wds.DeviceRequest
	removeByIDCalls   []string
	removeByNameCalls []string
}

func newMockBootService() *mockBootService {
	return &mockBootService{
		standaloneModeFunc: func(ctx context.Context, server string) (bool, error) { return true, nil },
		createDeviceFunc:   func(ctx context.Context, server string, req wds.DeviceRequest) error { return nil },
	}
}

func (m *mockBootService) StandaloneMode(ctx context.Context, server string) (bool, error) {
	return m.standaloneModeFunc(ctx, server)
}

func (m *mockBootService) CreateDevice(ctx context.Context, server string, req wds.DeviceRequest) error {
	m.createCalls = append(m.createCalls, req)
	return m.createDeviceFunc(ctx, server, req)
}

func (m *mockBootService) RemoveDeviceByID(ctx context.Context, server, deviceID string) error {
	m.removeByIDCalls = append(m.removeByIDCalls, deviceID)
	return nil
}

func (m *mockBootService) RemoveDeviceByName(ctx context.Context, server, deviceName string) error {
	m.removeByNameCalls = append(m.removeByNameCalls, deviceName)
	return nil
}

// mockDeviceService is a mock implementation of the deviceService
// interface for testing.
type mockDeviceService struct {
	findByNameFunc   func(ctx context.Context, server, name string) (*sccm.Device, error)
	findByGUIDFunc   func(ctx context.Context, server, guid string) (*sccm.Device, error)
	importDeviceFunc func(ctx context.Context, server, name, guid string) error
	inCollectionFunc func(ctx context.Context, server, collection, deviceName string) (bool, error)

	importCalls       []string // format: "name/guid"
	variableCalls     []string // format: "device/name=value"
	addCollectionCall []string // format: "collection/resourceID"
	inCollectionCalls []string
	clearPXECalls     []int
	removeCalls       []int
}

func newMockDeviceService() *mockDeviceService {
	return &mockDeviceService{
		// Default: no record exists, then the imported one appears
		findByNameFunc: func(ctx context.Context, server, name string) (*sccm.Device, error) { return nil, nil },
		findByGUIDFunc: func(ctx context.Context, server, guid string) (*sccm.Device, error) { return nil, nil },
		importDeviceFunc: func(ctx context.Context, server, name, guid string) error {
			return nil
		},
		// Default: membership is visible right away
		inCollectionFunc: func(ctx context.Context, server, collection, deviceName string) (bool, error) {
			return true, nil
		},
	}
}

func (m *mockDeviceService) FindDeviceByName(ctx context.Context, server, name string) (*sccm.Device, error) {
	return m.findByNameFunc(ctx, server, name)
}

func (m *mockDeviceService) FindDeviceByGUID(ctx context.Context, server, guid string) (*sccm.Device, error) {
	return m.findByGUIDFunc(ctx, server, guid)
}

func (m *mockDeviceService) ImportDevice(ctx context.Context, server, name, guid string) error {
	m.importCalls = append(m.importCalls, name+"/"+guid)
	return m.importDeviceFunc(ctx, server, name, guid)
}

func (m *mockDeviceService) SetDeviceVariable(ctx context.Context, server, deviceName, varName, value string) error {
	m.variableCalls = append(m.variableCalls, fmt.Sprintf("%s/%s=%s", deviceName, varName, value))
	return nil
}

func (m *mockDeviceService) AddToCollection(ctx context.Context, server, collection string, resourceID int) error {
	m.addCollectionCall = append(m.addCollectionCall, fmt.Sprintf("%s/%d", collection, resourceID))
	return nil
}

func (m *mockDeviceService) InCollection(ctx context.Context, server, collection, deviceName string) (bool, error) {
	m.inCollectionCalls = append(m.inCollectionCalls, collection+"/"+deviceName)
	return m.inCollectionFunc(ctx, server, collection, deviceName)
}

func (m *mockDeviceService) ClearPXEFlag(ctx context.Context, server string, resourceID int) error {
	m.clearPXECalls = append(m.clearPXECalls, resourceID)
	return nil
}

func (m *mockDeviceService) RemoveDevice(ctx context.Context, server string, resourceID int) error {
	m.removeCalls = append(m.removeCalls, resourceID)
	return nil
}

// mockStager is a mock implementation of the stager interface for
// testing.
type mockStager struct {
	writeFileFunc func(ctx context.Context, host, share, path string, data []byte) error

	writes map[string][]byte // key: host/share/path
}

func newMockStager() *mockStager {
	return &mockStager{
		writeFileFunc: func(ctx context.Context, host, share, path string, data []byte) error { return nil },
		writes:        map[string][]byte{},
	}
}

func (m *mockStager) WriteFile(ctx context.Context, host, share, path string, data []byte) error {
	m.writes[host+"/"+share+"/"+path] = data
	return m.writeFileFunc(ctx, host, share, path, data)
}
