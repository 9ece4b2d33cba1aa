package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// GetVHD reads the metadata of a virtual disk file.
func (g *Gateway) GetVHD(ctx context.Context, host, path string) (*VHDInfo, error) {
	cmd := silently(broker.New("Get-VHD").Param("Path", path)).
		Project("Path", "Size=[int64]$_.Size", "Attached=$_.Attached").JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("virtual disk %q", path))
	if err != nil {
		return nil, err
	}
	infos, err := decodeList[VHDInfo](res)
	if err != nil {
		return nil, err
	}
	return &infos[0], nil
}

// CreateVHDRequest describes a new dynamically-expanding disk file.
type CreateVHDRequest struct {
	Path      string
	SizeBytes int64
}

// CreateVHD creates the disk file. The parent directory must exist.
func (g *Gateway) CreateVHD(ctx context.Context, host string, req CreateVHDRequest) error {
	cmd := strictly(broker.New("New-VHD").
		Param("Path", req.Path).
		Param("SizeBytes", req.SizeBytes).
		Switch("Dynamic")).
		PipeRaw("Out-Null")
	return g.mutate(ctx, host, cmd)
}

// HardDiskDrives lists the hard-drive attachments of a VM.
func (g *Gateway) HardDiskDrives(ctx context.Context, host, vmName string) ([]DiskDrive, error) {
	cmd := silently(broker.New("Get-VMHardDiskDrive").Param("VMName", vmName)).
		Project("Path",
			"ControllerType=[string]$_.ControllerType",
			"ControllerNumber=[int]$_.ControllerNumber",
			"ControllerLocation=[int]$_.ControllerLocation").
		JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[DiskDrive](res)
}

// AttachDiskRequest attaches an existing disk file. Nil controller
// fields let the platform pick the first free slot.
type AttachDiskRequest struct {
	VMName             string
	Path               string
	ControllerNumber   *int
	ControllerLocation *int
}

// AttachDisk adds a hard-drive attachment on the SCSI controller.
func (g *Gateway) AttachDisk(ctx context.Context, host string, req AttachDiskRequest) error {
	cmd := broker.New("Add-VMHardDiskDrive").
		Param("VMName", req.VMName).
		Param("ControllerType", broker.Literal("SCSI")).
		Param("Path", req.Path)
	if req.ControllerNumber != nil {
		cmd.Param("ControllerNumber", *req.ControllerNumber)
	}
	if req.ControllerLocation != nil {
		cmd.Param("ControllerLocation", *req.ControllerLocation)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// DetachDisk removes the hard-drive attachment at one slot. The disk
// file is untouched.
func (g *Gateway) DetachDisk(ctx context.Context, host, vmName, controllerType string, controllerNumber, controllerLocation int) error {
	cmd := strictly(broker.New("Remove-VMHardDiskDrive").
		Param("VMName", vmName).
		Param("ControllerType", broker.Literal(controllerType)).
		Param("ControllerNumber", controllerNumber).
		Param("ControllerLocation", controllerLocation))
	return g.mutate(ctx, host, cmd)
}

// ScsiControllerCount reports how many SCSI controllers a VM has.
func (g *Gateway) ScsiControllerCount(ctx context.Context, host, vmName string) (int, error) {
	cmd := silently(broker.New("Get-VMScsiController").Param("VMName", vmName)).
		Pipe("Measure-Object").
		Project("Count=[int]$_.Count").JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return 0, err
	}
	if res.Empty() {
		return 0, nil
	}
	rows, err := decodeList[struct {
		Count int `json:"Count"`
	}](res)
	if err != nil {
		return 0, err
	}
	return rows[0].Count, nil
}

// AddScsiController adds one SCSI controller to a VM.
func (g *Gateway) AddScsiController(ctx context.Context, host, vmName string) error {
	cmd := strictly(broker.New("Add-VMScsiController").Param("VMName", vmName))
	return g.mutate(ctx, host, cmd)
}

// MountVHD attaches a disk file to the host and returns the drive
// letter of its first mountable volume.
func (g *Gateway) MountVHD(ctx context.Context, host, path string) (string, error) {
	script := fmt.Sprintf(
		"$letter = Mount-VHD -Path %s -Passthru -ErrorAction Stop | Get-Disk | Get-Partition | Where-Object { $_.DriveLetter } | Select-Object -First 1 -ExpandProperty DriveLetter; [pscustomobject]@{ DriveLetter = [string]$letter } | ConvertTo-Json -Compress",
		broker.Quote(path))

	res, err := g.lookup(ctx, host, broker.Script(script), fmt.Sprintf("mounted volume of %q", path))
	if err != nil {
		return "", err
	}
	var row struct {
		DriveLetter string `json:"DriveLetter"`
	}
	if err := res.Decode(&row); err != nil {
		return "", err
	}
	if row.DriveLetter == "" {
		return "", fmt.Errorf("no mountable volume in %q on %s", path, host)
	}
	return row.DriveLetter, nil
}

// DismountVHD detaches a mounted disk file from the host.
func (g *Gateway) DismountVHD(ctx context.Context, host, path string) error {
	cmd := strictly(broker.New("Dismount-VHD").Param("Path", path))
	return g.mutate(ctx, host, cmd)
}
