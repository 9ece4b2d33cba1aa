// Package wds manages pre-staged client registrations on Windows
// Deployment Services servers. All commands run on the deployment
// server itself through the execution broker.
package wds

import (
	"context"
	"fmt"
	"strings"

	"github.com/jbweber/croft/internal/broker"
)

// UnattendShare is the share exposing the WDS remote-installation
// root.
const UnattendShare = "REMINST"

// UnattendDir is the directory under the remote-installation root
// holding per-client unattend files.
const UnattendDir = "WdsClientUnattend"

// Invoker executes one command against one host. Satisfied by
// *broker.ExecutionContext.
type Invoker interface {
	Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error)
}

// DeviceRequest describes a pre-staged client registration.
type DeviceRequest struct {
	// ID is the SMBIOS GUID the client will network-boot with.
	ID string

	// Name is the device name, doubling as the computer name.
	Name string

	// AnswerFile is the unattend path relative to the
	// remote-installation root, e.g. `WdsClientUnattend\web-01.xml`.
	AnswerFile string

	// BootImage optionally pins a boot image path.
	BootImage string
}

// Gateway issues deployment server operations.
type Gateway struct {
	exec Invoker
}

// New returns a Gateway executing through exec.
func New(exec Invoker) *Gateway {
	return &Gateway{exec: exec}
}

// StandaloneMode reports whether the deployment server runs in
// standalone mode. Pre-staging through the server's own device store
// only works standalone; directory-integrated servers keep
// registrations in Active Directory.
func (g *Gateway) StandaloneMode(ctx context.Context, server string) (bool, error) {
	res, err := g.exec.Invoke(ctx, server, broker.Script("wdsutil /Get-Server /Show:Config"))
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "standalone") {
			continue
		}
		return strings.Contains(lower, "yes") || strings.Contains(lower, "enabled"), nil
	}
	return false, fmt.Errorf("could not determine the operational mode of %s", server)
}

// CreateDevice pre-stages a client registration.
func (g *Gateway) CreateDevice(ctx context.Context, server string, req DeviceRequest) error {
	cmd := broker.New("New-WdsClient").
		Param("DeviceID", req.ID).
		Param("DeviceName", req.Name)
	if req.AnswerFile != "" {
		cmd.Param("WdsClientUnattend", req.AnswerFile)
	}
	if req.BootImage != "" {
		cmd.Param("BootImagePath", req.BootImage)
	}
	cmd.Param("ErrorAction", broker.Literal("Stop")).PipeRaw("Out-Null")
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// RemoveDeviceByID removes the registration holding a device id.
// Absent registrations are not an error.
func (g *Gateway) RemoveDeviceByID(ctx context.Context, server, deviceID string) error {
	cmd := broker.New("Remove-WdsClient").
		Param("DeviceID", deviceID).
		Param("ErrorAction", broker.Literal("SilentlyContinue"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// RemoveDeviceByName removes the registration holding a device name.
// Absent registrations are not an error.
func (g *Gateway) RemoveDeviceByName(ctx context.Context, server, deviceName string) error {
	cmd := broker.New("Remove-WdsClient").
		Param("DeviceName", deviceName).
		Param("ErrorAction", broker.Literal("SilentlyContinue"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}
