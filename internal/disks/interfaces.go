package disks

import (
	"context"

	"github.com/jbweber/croft/internal/hyperv"
)

// gateway defines the hypervisor operations needed for disk
// reconciliation. This wraps operations from *hyperv.Gateway to allow
// for testing.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// GetVHD reads the metadata of a virtual disk file
	GetVHD(ctx context.Context, host, path string) (*hyperv.VHDInfo, error)

	// CreateVHD creates a new virtual disk file
	CreateVHD(ctx context.Context, host string, req hyperv.CreateVHDRequest) error

	// HardDiskDrives lists the hard-drive attachments of a VM
	HardDiskDrives(ctx context.Context, host, vmName string) ([]hyperv.DiskDrive, error)

	// AttachDisk adds a hard-drive attachment on the SCSI controller
	AttachDisk(ctx context.Context, host string, req hyperv.AttachDiskRequest) error

	// DetachDisk removes the attachment at one controller position
	DetachDisk(ctx context.Context, host, vmName, controllerType string, controllerNumber, controllerLocation int) error

	// ScsiControllerCount reports how many SCSI controllers the VM has
	ScsiControllerCount(ctx context.Context, host, vmName string) (int, error)

	// AddScsiController adds one SCSI controller to the VM
	AddScsiController(ctx context.Context, host, vmName string) error
}
