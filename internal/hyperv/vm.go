package hyperv

import (
	"context"
	"fmt"
	"strings"

	"github.com/jbweber/croft/internal/broker"
)

var vmFields = []string{
	"Name",
	"Id=[string]$_.Id",
	"State=[string]$_.State",
	"Path",
	"Generation=[int]$_.Generation",
	"ProcessorCount=[int]$_.ProcessorCount",
	"DynamicMemoryEnabled=$_.DynamicMemoryEnabled",
	"MemoryStartup=[int64]$_.MemoryStartup",
	"MemoryMinimum=[int64]$_.MemoryMinimum",
	"MemoryMaximum=[int64]$_.MemoryMaximum",
}

// FindVM looks a VM up by name on one host.
func (g *Gateway) FindVM(ctx context.Context, host, name string) (*VM, error) {
	cmd := silently(broker.New("Get-VM").Param("Name", name)).
		Project(vmFields...).JSON(3)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("VM %q", name))
	if err != nil {
		return nil, err
	}
	vms, err := decodeList[VM](res)
	if err != nil {
		return nil, err
	}
	vm := vms[0]
	vm.Host = host
	return &vm, nil
}

// CreateVMRequest describes a new VM object. The platform creates it
// with no disks; a default network adapter appears and is removed by
// the compute reconciler.
type CreateVMRequest struct {
	Name               string
	Path               string
	Generation         int
	MemoryStartupBytes int64
}

// CreateVM creates a VM object and returns its live view.
func (g *Gateway) CreateVM(ctx context.Context, host string, req CreateVMRequest) (*VM, error) {
	cmd := strictly(broker.New("New-VM").
		Param("Name", req.Name).
		Param("Path", req.Path).
		Param("Generation", req.Generation).
		Param("MemoryStartupBytes", req.MemoryStartupBytes).
		Switch("NoVHD")).
		Project(vmFields...).JSON(3)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	vms, err := decodeList[VM](res)
	if err != nil {
		return nil, err
	}
	vm := vms[0]
	vm.Host = host
	return &vm, nil
}

// RemoveVM deletes a VM object. Attached disk files are not touched.
func (g *Gateway) RemoveVM(ctx context.Context, host, name string) error {
	cmd := strictly(broker.New("Remove-VM").Param("Name", name).Switch("Force"))
	return g.mutate(ctx, host, cmd)
}

// ProcessorRequest sets CPU topology. A nil HwThreadCountPerCore keeps
// the platform's SMT inheritance; 1 disables SMT for the VM.
type ProcessorRequest struct {
	VMName               string
	Count                int
	HwThreadCountPerCore *int
}

// SetProcessor applies CPU settings.
func (g *Gateway) SetProcessor(ctx context.Context, host string, req ProcessorRequest) error {
	cmd := broker.New("Set-VMProcessor").
		Param("VMName", req.VMName).
		Param("Count", req.Count)
	if req.HwThreadCountPerCore != nil {
		cmd.Param("HwThreadCountPerCore", *req.HwThreadCountPerCore)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// MemoryRequest sets the memory policy. Minimum and Maximum are only
// meaningful when Dynamic is true.
type MemoryRequest struct {
	VMName       string
	StartupBytes int64
	Dynamic      bool
	MinimumBytes int64
	MaximumBytes int64
}

// SetMemory applies the memory policy.
func (g *Gateway) SetMemory(ctx context.Context, host string, req MemoryRequest) error {
	cmd := broker.New("Set-VMMemory").
		Param("VMName", req.VMName).
		Param("DynamicMemoryEnabled", req.Dynamic).
		Param("StartupBytes", req.StartupBytes)
	if req.Dynamic {
		cmd.Param("MinimumBytes", req.MinimumBytes).
			Param("MaximumBytes", req.MaximumBytes)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// Start powers a VM on.
func (g *Gateway) Start(ctx context.Context, host, name string) error {
	cmd := strictly(broker.New("Start-VM").Param("Name", name))
	return g.mutate(ctx, host, cmd)
}

// Stop powers a VM off through guest shutdown. With turnOff the VM is
// halted immediately without involving the guest.
func (g *Gateway) Stop(ctx context.Context, host, name string, turnOff bool) error {
	cmd := broker.New("Stop-VM").Param("Name", name).Switch("Force")
	if turnOff {
		cmd.Switch("TurnOff")
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// BiosGUID reads the firmware identity the guest reports to deployment
// systems. Returned without the braces the platform wraps it in.
func (g *Gateway) BiosGUID(ctx context.Context, host, name string) (string, error) {
	filter := fmt.Sprintf("ElementName='%s' AND VirtualSystemType='Microsoft:Hyper-V:System:Realized'",
		strings.ReplaceAll(name, "'", `\'`))
	cmd := silently(broker.New("Get-CimInstance").
		Param("Namespace", `root\virtualization\v2`).
		Param("ClassName", "Msvm_VirtualSystemSettingData").
		Param("Filter", filter)).
		Project("BIOSGUID=$_.BIOSGUID").JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("firmware identity of VM %q", name))
	if err != nil {
		return "", err
	}
	rows, err := decodeList[struct {
		BIOSGUID string `json:"BIOSGUID"`
	}](res)
	if err != nil {
		return "", err
	}
	guid := strings.Trim(rows[0].BIOSGUID, "{}")
	if guid == "" {
		return "", fmt.Errorf("firmware identity of VM %q on %s: %w", name, host, ErrNotFound)
	}
	return strings.ToUpper(guid), nil
}

// HostNetworkInfo reads the host's platform settings, including its
// dynamic MAC allocation range.
func (g *Gateway) HostNetworkInfo(ctx context.Context, host string) (*HostInfo, error) {
	cmd := broker.New("Get-VMHost").
		Project("Name", "MacAddressMinimum", "MacAddressMaximum").JSON(2)

	res, err := g.lookup(ctx, host, cmd, "host settings")
	if err != nil {
		return nil, err
	}
	infos, err := decodeList[HostInfo](res)
	if err != nil {
		return nil, err
	}
	return &infos[0], nil
}
