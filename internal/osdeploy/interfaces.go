package osdeploy

import (
	"context"

	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/sccm"
	"github.com/jbweber/croft/internal/wds"
)

// gateway defines the hypervisor operations needed for OS provisioning.
// This wraps operations from *hyperv.Gateway to allow for testing.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// DvdDrives lists the DVD attachments of a VM
	DvdDrives(ctx context.Context, host, vmName string) ([]hyperv.DvdDrive, error)

	// AddDvdDrive adds a DVD drive, optionally with media inserted
	AddDvdDrive(ctx context.Context, host string, req hyperv.AddDvdRequest) error

	// SetDvdMedia inserts media into an existing DVD drive
	SetDvdMedia(ctx context.Context, host, vmName string, controllerNumber, controllerLocation int, path string) error

	// SetFirstBootDvd makes a DVD drive the first boot device
	SetFirstBootDvd(ctx context.Context, host, vmName string, generation, controllerNumber, controllerLocation int) error

	// ScsiControllerCount counts the SCSI controllers of a VM
	ScsiControllerCount(ctx context.Context, host, vmName string) (int, error)

	// AddScsiController adds one SCSI controller
	AddScsiController(ctx context.Context, host, vmName string) error

	// HardDiskDrives lists the hard-drive attachments of a VM
	HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)

	// GetVHD inspects a disk image file on the host
	GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)

	// CopyFile copies a file on the host, overwriting the destination
	CopyFile(ctx context.Context, host, src, dst string) error

	// MountVHD mounts a disk image and returns its volume drive letter
	MountVHD(ctx context.Context, host, path string) (string, error)

	// DismountVHD unmounts a mounted disk image
	DismountVHD(ctx context.Context, host, path string) error

	// EnsureDirectory creates a directory path on the host
	EnsureDirectory(ctx context.Context, host, path string) error

	// WriteFileBytes writes a small file on the host
	WriteFileBytes(ctx context.Context, host, path string, data []byte) error

	// BiosGUID reads the firmware identity of a VM
	BiosGUID(ctx context.Context, host, name string) (string, error)
}

// bootService defines the network-boot collaborator operations.
//
// In production, this is satisfied by *wds.Gateway.
// In tests, this is satisfied by mock implementations.
type bootService interface {
	// StandaloneMode reports whether the server runs standalone
	StandaloneMode(ctx context.Context, server string) (bool, error)

	// CreateDevice pre-stages a client registration
	CreateDevice(ctx context.Context, server string, req wds.DeviceRequest) error

	// RemoveDeviceByID removes the registration holding a device id
	RemoveDeviceByID(ctx context.Context, server, deviceID string) error

	// RemoveDeviceByName removes the registration holding a device name
	RemoveDeviceByName(ctx context.Context, server, deviceName string) error
}

// deviceService defines the device-management collaborator operations.
//
// In production, this is satisfied by *sccm.Gateway.
// In tests, this is satisfied by mock implementations.
type deviceService interface {
	// FindDeviceByName looks a device up by record name
	FindDeviceByName(ctx context.Context, server, name string) (*sccm.Device, error)

	// FindDeviceByGUID looks a device up by SMBIOS GUID
	FindDeviceByGUID(ctx context.Context, server, guid string) (*sccm.Device, error)

	// ImportDevice creates a device record for a name and GUID
	ImportDevice(ctx context.Context, server, name, guid string) error

	// SetDeviceVariable sets a named variable on a device
	SetDeviceVariable(ctx context.Context, server, deviceName, varName, value string) error

	// AddToCollection adds a device to a collection
	AddToCollection(ctx context.Context, server, collection string, resourceID int) error

	// InCollection reports collection membership visibility
	InCollection(ctx context.Context, server, collection, deviceName string) (bool, error)

	// ClearPXEFlag clears a pending network-boot deployment
	ClearPXEFlag(ctx context.Context, server string, resourceID int) error

	// RemoveDevice deletes a device record
	RemoveDevice(ctx context.Context, server string, resourceID int) error
}

// stager pushes rendered artifacts to hosts over SMB.
//
// In production, this is satisfied by *transfer.Client.
// In tests, this is satisfied by mock implementations.
type stager interface {
	// WriteFile writes data to a share-relative path on a host
	WriteFile(ctx context.Context, host, share, path string, data []byte) error
}
