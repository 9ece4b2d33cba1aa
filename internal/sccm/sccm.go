// Package sccm manages device records on a Configuration Manager site
// server: import, collection membership, device variables and removal.
// All commands run on the site server through the execution broker.
//
// Provider cmdlets only work from inside the site drive, so every
// pipeline is wrapped in a preamble that loads the console module and
// changes into it.
package sccm

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// Invoker executes one command against one host. Satisfied by
// *broker.ExecutionContext.
type Invoker interface {
	Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error)
}

// Device is one device record on the site.
type Device struct {
	Name       string `json:"Name"`
	ResourceID int    `json:"ResourceID"`
	SMBIOSGUID string `json:"SMBIOSGUID"`
	IsClient   bool   `json:"IsClient"`
}

// Gateway issues site server operations scoped to one site code.
type Gateway struct {
	exec Invoker
	site string
}

// New returns a Gateway executing through exec against the given
// three-character site code.
func New(exec Invoker, siteCode string) *Gateway {
	return &Gateway{exec: exec, site: siteCode}
}

// scoped wraps a pipeline in the site drive preamble. The console
// module location comes from the environment the console installer
// sets up on the site server.
func (g *Gateway) scoped(pipeline string) *broker.Command {
	preamble := fmt.Sprintf(
		`Import-Module (Join-Path (Split-Path $env:SMS_ADMIN_UI_PATH) 'ConfigurationManager.psd1') -ErrorAction Stop; Set-Location %s -ErrorAction Stop`,
		broker.Quote(g.site+":"))
	return broker.Script(preamble + "; " + pipeline)
}

// deviceProjection renders device records to the JSON shape Device
// decodes. WMI reports client presence as a nullable integer.
const deviceProjection = `ForEach-Object { [pscustomobject]@{ Name = $_.Name; ResourceID = [int]$_.ResourceID; SMBIOSGUID = [string]$_.SMBIOSGUID; IsClient = [bool]$_.IsClient } } | ConvertTo-Json -Depth 2 -Compress`

// FindDeviceByName looks a device up by its record name. A missing
// device returns nil without error; name lookups feed a search, not a
// requirement.
func (g *Gateway) FindDeviceByName(ctx context.Context, server, name string) (*Device, error) {
	pipeline := fmt.Sprintf(`Get-CMDevice -Name %s -Fast -ErrorAction SilentlyContinue | %s`,
		broker.Quote(name), deviceProjection)
	return g.findDevice(ctx, server, pipeline)
}

// FindDeviceByGUID looks a device up by its SMBIOS GUID. A missing
// device returns nil without error.
func (g *Gateway) FindDeviceByGUID(ctx context.Context, server, guid string) (*Device, error) {
	pipeline := fmt.Sprintf(`Get-CMDevice -Fast -ErrorAction SilentlyContinue | Where-Object { $_.SMBIOSGUID -eq %s } | %s`,
		broker.Quote(guid), deviceProjection)
	return g.findDevice(ctx, server, pipeline)
}

func (g *Gateway) findDevice(ctx context.Context, server, pipeline string) (*Device, error) {
	res, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	devices, err := decodeList[Device](res)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, nil
	}
	return &devices[0], nil
}

// ImportDevice creates a device record binding a name to a SMBIOS
// GUID, so the machine is recognized when it first network-boots.
func (g *Gateway) ImportDevice(ctx context.Context, server, name, guid string) error {
	pipeline := fmt.Sprintf(`Import-CMComputerInformation -ComputerName %s -SMBiosGuid %s -ErrorAction Stop`,
		broker.Quote(name), broker.Quote(guid))
	_, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	return err
}

// SetDeviceVariable sets a named variable on a device, replacing any
// existing value. Task sequences read these during deployment.
func (g *Gateway) SetDeviceVariable(ctx context.Context, server, deviceName, varName, value string) error {
	device, variable, val := broker.Quote(deviceName), broker.Quote(varName), broker.Quote(value)
	pipeline := fmt.Sprintf(
		`if (Get-CMDeviceVariable -DeviceName %s -VariableName %s -ErrorAction SilentlyContinue) { Set-CMDeviceVariable -DeviceName %s -VariableName %s -NewVariableValue %s -ErrorAction Stop } else { New-CMDeviceVariable -DeviceName %s -VariableName %s -VariableValue %s -ErrorAction Stop }`,
		device, variable, device, variable, val, device, variable, val)
	_, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	return err
}

// AddToCollection adds a device to a collection by direct membership
// rule and nudges a membership update so the device shows up without
// waiting for the schedule.
func (g *Gateway) AddToCollection(ctx context.Context, server, collection string, resourceID int) error {
	pipeline := fmt.Sprintf(
		`Add-CMDeviceCollectionDirectMembershipRule -CollectionName %s -ResourceId %d -ErrorAction Stop; Invoke-CMCollectionUpdate -Name %s -ErrorAction Stop`,
		broker.Quote(collection), resourceID, broker.Quote(collection))
	_, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	return err
}

// InCollection reports whether the device is visible as a member of
// the collection. Membership evaluation is asynchronous on the site,
// so callers poll this.
func (g *Gateway) InCollection(ctx context.Context, server, collection, deviceName string) (bool, error) {
	pipeline := fmt.Sprintf(
		`[pscustomobject]@{ Member = [bool](Get-CMCollectionMember -CollectionName %s -Name %s -ErrorAction SilentlyContinue) } | ConvertTo-Json -Compress`,
		broker.Quote(collection), broker.Quote(deviceName))
	res, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	if err != nil {
		return false, err
	}
	var row struct {
		Member bool `json:"Member"`
	}
	if err := res.Decode(&row); err != nil {
		return false, err
	}
	return row.Member, nil
}

// ClearPXEFlag clears a pending network-boot deployment on a device so
// it can boot into a fresh task sequence.
func (g *Gateway) ClearPXEFlag(ctx context.Context, server string, resourceID int) error {
	pipeline := fmt.Sprintf(`Get-CMDevice -ResourceId %d -Fast -ErrorAction Stop | Clear-CMPxeDeployment -ErrorAction Stop`, resourceID)
	_, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	return err
}

// RemoveDevice deletes a device record. Absent records are not an
// error.
func (g *Gateway) RemoveDevice(ctx context.Context, server string, resourceID int) error {
	pipeline := fmt.Sprintf(
		`$d = Get-CMDevice -ResourceId %d -Fast -ErrorAction SilentlyContinue; if ($d) { Remove-CMDevice -InputObject $d -Force -ErrorAction Stop }`,
		resourceID)
	_, err := g.exec.Invoke(ctx, server, g.scoped(pipeline))
	return err
}

// decodeList tolerates the platform's JSON collapsing a single-element
// list into a bare object.
func decodeList[T any](res *broker.Result) ([]T, error) {
	var list []T
	if err := res.Decode(&list); err == nil {
		return list, nil
	}
	var one T
	if err := res.Decode(&one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
