package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// DvdDrives lists the DVD attachments of a VM.
func (g *Gateway) DvdDrives(ctx context.Context, host, vmName string) ([]DvdDrive, error) {
	cmd := silently(broker.New("Get-VMDvdDrive").Param("VMName", vmName)).
		Project("Path",
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
	return decodeList[DvdDrive](res)
}

// AddDvdRequest adds a DVD drive, optionally with media inserted. Nil
// controller fields let the platform pick a free slot.
type AddDvdRequest struct {
	VMName             string
	Path               string
	ControllerNumber   *int
	ControllerLocation *int
}

// AddDvdDrive adds a DVD drive to a VM.
func (g *Gateway) AddDvdDrive(ctx context.Context, host string, req AddDvdRequest) error {
	cmd := broker.New("Add-VMDvdDrive").Param("VMName", req.VMName)
	if req.ControllerNumber != nil {
		cmd.Param("ControllerNumber", *req.ControllerNumber)
	}
	if req.ControllerLocation != nil {
		cmd.Param("ControllerLocation", *req.ControllerLocation)
	}
	if req.Path != "" {
		cmd.Param("Path", req.Path)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// SetDvdMedia inserts media into an existing DVD drive. An empty path
// ejects.
func (g *Gateway) SetDvdMedia(ctx context.Context, host, vmName string, controllerNumber, controllerLocation int, path string) error {
	cmd := broker.New("Set-VMDvdDrive").
		Param("VMName", vmName).
		Param("ControllerNumber", controllerNumber).
		Param("ControllerLocation", controllerLocation)
	if path == "" {
		cmd.Param("Path", broker.Literal("$null"))
	} else {
		cmd.Param("Path", path)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// SetFirstBootDvd makes the DVD drive at the given slot the first boot
// device. Generation 1 VMs boot from CD via BIOS startup order instead
// of a specific device handle.
func (g *Gateway) SetFirstBootDvd(ctx context.Context, host, vmName string, generation, controllerNumber, controllerLocation int) error {
	if generation == 1 {
		cmd := strictly(broker.New("Set-VMBios").
			Param("VMName", vmName).
			Param("StartupOrder", broker.Literal("@('CD','IDE','LegacyNetworkAdapter','Floppy')")))
		return g.mutate(ctx, host, cmd)
	}

	script := fmt.Sprintf(
		"$dvd = Get-VMDvdDrive -VMName %s -ErrorAction Stop | Where-Object { $_.ControllerNumber -eq %d -and $_.ControllerLocation -eq %d }; Set-VMFirmware -VMName %s -FirstBootDevice $dvd -ErrorAction Stop",
		broker.Quote(vmName), controllerNumber, controllerLocation, broker.Quote(vmName))
	return g.mutate(ctx, host, broker.Script(script))
}
