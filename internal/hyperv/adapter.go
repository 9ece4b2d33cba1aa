package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

var adapterFields = []string{
	"Name",
	"Id=[string]$_.Id",
	"SwitchName=[string]$_.SwitchName",
	"MacAddress=[string]$_.MacAddress",
	"DynamicMacAddressEnabled=$_.DynamicMacAddressEnabled",
	"DeviceNaming=($_.DeviceNaming -eq 'On')",
	"MacAddressSpoofing=($_.MacAddressSpoofing -eq 'On')",
	"AllowTeaming=($_.AllowTeaming -eq 'On')",
	"Connected=$_.Connected",
}

// NetworkAdapters lists the network adapters of a VM.
func (g *Gateway) NetworkAdapters(ctx context.Context, host, vmName string) ([]NetAdapter, error) {
	cmd := silently(broker.New("Get-VMNetworkAdapter").Param("VMName", vmName)).
		Project(adapterFields...).JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[NetAdapter](res)
}

// AddNetworkAdapter adds a named adapter with device naming enabled so
// the guest can correlate it.
func (g *Gateway) AddNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error {
	cmd := strictly(broker.New("Add-VMNetworkAdapter").
		Param("VMName", vmName).
		Param("Name", adapterName).
		Param("DeviceNaming", broker.Literal("On")))
	return g.mutate(ctx, host, cmd)
}

// RemoveNetworkAdapter removes every adapter with the given name.
func (g *Gateway) RemoveNetworkAdapter(ctx context.Context, host, vmName, adapterName string) error {
	cmd := strictly(broker.New("Remove-VMNetworkAdapter").
		Param("VMName", vmName).
		Param("Name", adapterName))
	return g.mutate(ctx, host, cmd)
}

// ConnectAdapter binds an adapter to a virtual switch.
func (g *Gateway) ConnectAdapter(ctx context.Context, host, vmName, adapterName, switchName string) error {
	cmd := strictly(broker.New("Connect-VMNetworkAdapter").
		Param("VMName", vmName).
		Param("Name", adapterName).
		Param("SwitchName", switchName))
	return g.mutate(ctx, host, cmd)
}

// DisconnectAdapter unbinds an adapter from its switch.
func (g *Gateway) DisconnectAdapter(ctx context.Context, host, vmName, adapterName string) error {
	cmd := strictly(broker.New("Disconnect-VMNetworkAdapter").
		Param("VMName", vmName).
		Param("Name", adapterName))
	return g.mutate(ctx, host, cmd)
}

// ConfigureAdapterRequest adjusts adapter properties. Nil pointers
// leave the corresponding property alone; an empty StaticMac leaves
// MAC assignment untouched.
type ConfigureAdapterRequest struct {
	VMName       string
	AdapterName  string
	StaticMac    string
	DeviceNaming *bool
	MacSpoofing  *bool
	AllowTeaming *bool
}

// ConfigureAdapter applies adapter properties in one call.
func (g *Gateway) ConfigureAdapter(ctx context.Context, host string, req ConfigureAdapterRequest) error {
	cmd := broker.New("Set-VMNetworkAdapter").
		Param("VMName", req.VMName).
		Param("Name", req.AdapterName)
	if req.StaticMac != "" {
		cmd.Param("StaticMacAddress", req.StaticMac)
	}
	if req.DeviceNaming != nil {
		cmd.Param("DeviceNaming", onOff(*req.DeviceNaming))
	}
	if req.MacSpoofing != nil {
		cmd.Param("MacAddressSpoofing", onOff(*req.MacSpoofing))
	}
	if req.AllowTeaming != nil {
		cmd.Param("AllowTeaming", onOff(*req.AllowTeaming))
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// AdapterVlan reads the VLAN configuration of one adapter.
func (g *Gateway) AdapterVlan(ctx context.Context, host, vmName, adapterName string) (*VlanSettings, error) {
	cmd := silently(broker.New("Get-VMNetworkAdapterVlan").
		Param("VMName", vmName).
		Param("VMNetworkAdapterName", adapterName)).
		Project("OperationMode=[string]$_.OperationMode",
			"AccessVlanId=[int]$_.AccessVlanId",
			"NativeVlanId=[int]$_.NativeVlanId",
			"AllowedVlanIdList=[int[]]$_.AllowedVlanIdList").
		JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("VLAN settings of adapter %q on VM %q", adapterName, vmName))
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[VlanSettings](res)
	if err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// VlanRequest sets the VLAN mode of one adapter. Fields beyond the
// mode's requirements are ignored.
type VlanRequest struct {
	VMName         string
	AdapterName    string
	Mode           string
	AccessVlanID   int
	NativeVlanID   int
	AllowedVlanIDs []int
}

// SetAdapterVlan applies a VLAN mode.
func (g *Gateway) SetAdapterVlan(ctx context.Context, host string, req VlanRequest) error {
	cmd := broker.New("Set-VMNetworkAdapterVlan").
		Param("VMName", req.VMName).
		Param("VMNetworkAdapterName", req.AdapterName)

	switch req.Mode {
	case VlanModeAccess:
		cmd.Switch("Access").Param("VlanId", req.AccessVlanID)
	case VlanModeTrunk:
		cmd.Switch("Trunk").
			Param("NativeVlanId", req.NativeVlanID).
			Param("AllowedVlanIdList", req.AllowedVlanIDs)
	default:
		cmd.Switch("Untagged")
	}
	return g.mutate(ctx, host, strictly(cmd))
}

// AdapterIsolation reads the isolation configuration of one adapter.
func (g *Gateway) AdapterIsolation(ctx context.Context, host, vmName, adapterName string) (*IsolationSettings, error) {
	cmd := silently(broker.New("Get-VMNetworkAdapterIsolation").
		Param("VMName", vmName).
		Param("VMNetworkAdapterName", adapterName)).
		Project("IsolationMode=[string]$_.IsolationMode",
			"DefaultIsolationID=[int]$_.DefaultIsolationID").
		JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("isolation settings of adapter %q on VM %q", adapterName, vmName))
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[IsolationSettings](res)
	if err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// IsolationRequest sets the isolation mode of one adapter.
type IsolationRequest struct {
	VMName             string
	AdapterName        string
	Mode               string
	DefaultIsolationID int
}

// SetAdapterIsolation applies an isolation mode. VLAN isolation keeps
// untagged guest traffic flowing and tags it with the default ID.
func (g *Gateway) SetAdapterIsolation(ctx context.Context, host string, req IsolationRequest) error {
	cmd := broker.New("Set-VMNetworkAdapterIsolation").
		Param("VMName", req.VMName).
		Param("VMNetworkAdapterName", req.AdapterName).
		Param("IsolationMode", broker.Literal(req.Mode))
	if req.Mode == IsolationVlan {
		cmd.Param("AllowUntaggedTraffic", true).
			Param("DefaultIsolationID", req.DefaultIsolationID)
	}
	return g.mutate(ctx, host, strictly(cmd))
}

func onOff(v bool) broker.Literal {
	if v {
		return broker.Literal("On")
	}
	return broker.Literal("Off")
}
