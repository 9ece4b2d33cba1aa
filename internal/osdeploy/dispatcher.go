// Package osdeploy routes a VM to its OS provisioning strategy. The
// desired record selects exactly one method: boot media attachment,
// network-boot client registration, device-collection enrollment, or
// disk-image injection with answer-file templating.
package osdeploy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/naming"
	"github.com/jbweber/croft/internal/retry"
	"github.com/jbweber/croft/internal/sccm"
	"github.com/jbweber/croft/internal/transfer"
	"github.com/jbweber/croft/internal/wds"
)

// ErrPrecondition indicates the environment refuses the selected
// strategy, such as a network-boot server running in a mode whose
// client records this engine must not touch.
var ErrPrecondition = errors.New("precondition failed")

// Credentials are the secrets substituted into rendered answer files.
type Credentials struct {
	AdminPassword string
	JoinUsername  string
	JoinPassword  string
}

// Dispatcher runs the provisioning strategy a desired record selects.
type Dispatcher struct {
	gw      gateway
	boot    bootService
	devices deviceService
	smb     stager
	poll    retry.Policy
	creds   Credentials
}

// NewDispatcher creates a Dispatcher. The retry policy paces the
// collection-visibility polls of the device-management path.
func NewDispatcher(gw gateway, boot bootService, devices deviceService, smb stager, poll retry.Policy, creds Credentials) *Dispatcher {
	return &Dispatcher{gw: gw, boot: boot, devices: devices, smb: smb, poll: poll, creds: creds}
}

// Provision runs the strategy selected by the desired record. The VM
// must already exist on host: every method keys off state compute
// reconciliation established, such as the firmware identity.
func (d *Dispatcher) Provision(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	dep := desired.OSDeployment
	switch dep.Method {
	case v1alpha1.MethodISO:
		return d.ensureISO(ctx, host, desired, dep.ISO)
	case v1alpha1.MethodWDS:
		return d.ensureWDS(ctx, host, desired, dep.WDS)
	case v1alpha1.MethodSCCM:
		return d.ensureSCCM(ctx, host, desired, dep.SCCM)
	case v1alpha1.MethodVHD:
		return d.ensureVHD(ctx, host, desired, dep.VHD)
	default:
		return fmt.Errorf("unknown deployment method %q", dep.Method)
	}
}

// Deprovision removes the registrations the strategy created on
// external systems. Media-based methods leave nothing behind beyond
// the VM itself.
func (d *Dispatcher) Deprovision(ctx context.Context, host, vmName string, dep *v1alpha1.DesiredOSDeployment) error {
	switch dep.Method {
	case v1alpha1.MethodWDS:
		return d.removeBootClient(ctx, host, vmName, dep.WDS.Server)
	case v1alpha1.MethodSCCM:
		return d.removeDeviceRecord(ctx, host, vmName, dep.SCCM.Server)
	default:
		return nil
	}
}

// ensureISO attaches the installation image as the first boot device,
// and when the record carries an answer-file template, generates an
// autounattend ISO and attaches it as a second DVD so setup runs
// hands-off.
func (d *Dispatcher) ensureISO(ctx context.Context, host string, desired *v1alpha1.DesiredVM, iso *v1alpha1.ISODeployment) error {
	drive, err := d.ensureMedia(ctx, host, desired, iso.FilePath)
	if err != nil {
		return err
	}
	if err := d.gw.SetFirstBootDvd(ctx, host, desired.Name, desired.Generation, drive.ControllerNumber, drive.ControllerLocation); err != nil {
		return fmt.Errorf("failed to set first boot device: %w", err)
	}

	if iso.AnswerFile == "" {
		return nil
	}

	rendered, err := d.renderTemplate(iso.AnswerFile, desired.Name, "", "")
	if err != nil {
		return err
	}
	image, err := BuildAnswerISO(rendered)
	if err != nil {
		return err
	}

	target := naming.WindowsJoin(desired.Path, desired.Name, "autounattend.iso")
	share, rel, err := transfer.AdminShare(target)
	if err != nil {
		return fmt.Errorf("answer media path: %w", err)
	}
	log.Printf("Staging answer media to \\\\%s\\%s\\%s...", host, share, rel)
	if err := d.smb.WriteFile(ctx, host, share, rel, image); err != nil {
		return err
	}
	if _, err := d.ensureMedia(ctx, host, desired, target); err != nil {
		return err
	}
	return nil
}

// ensureMedia makes sure a DVD drive carries the given image: an
// already-correct drive is left alone, an empty drive gets the media
// inserted, and with no drive free one is added, growing the SCSI
// controller supply when a fresh generation 2 VM has none.
func (d *Dispatcher) ensureMedia(ctx context.Context, host string, desired *v1alpha1.DesiredVM, path string) (*hyperv.DvdDrive, error) {
	drives, err := d.gw.DvdDrives(ctx, host, desired.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list DVD drives: %w", err)
	}
	for i := range drives {
		if strings.EqualFold(drives[i].Path, path) {
			return &drives[i], nil
		}
	}
	for i := range drives {
		if drives[i].Path != "" {
			continue
		}
		log.Printf("Inserting %s into DVD drive %d:%d of '%s'...", path, drives[i].ControllerNumber, drives[i].ControllerLocation, desired.Name)
		if err := d.gw.SetDvdMedia(ctx, host, desired.Name, drives[i].ControllerNumber, drives[i].ControllerLocation, path); err != nil {
			return nil, fmt.Errorf("failed to insert media: %w", err)
		}
		drives[i].Path = path
		return &drives[i], nil
	}

	if desired.Generation == 2 {
		count, err := d.gw.ScsiControllerCount(ctx, host, desired.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to count SCSI controllers: %w", err)
		}
		if count == 0 {
			log.Printf("Adding SCSI controller to '%s'...", desired.Name)
			if err := d.gw.AddScsiController(ctx, host, desired.Name); err != nil {
				return nil, fmt.Errorf("failed to add SCSI controller: %w", err)
			}
		}
	}

	log.Printf("Adding DVD drive with %s to '%s'...", path, desired.Name)
	if err := d.gw.AddDvdDrive(ctx, host, hyperv.AddDvdRequest{VMName: desired.Name, Path: path}); err != nil {
		return nil, fmt.Errorf("failed to add DVD drive: %w", err)
	}

	drives, err = d.gw.DvdDrives(ctx, host, desired.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list DVD drives: %w", err)
	}
	for i := range drives {
		if strings.EqualFold(drives[i].Path, path) {
			return &drives[i], nil
		}
	}
	return nil, fmt.Errorf("DVD drive with %s not found after adding it", path)
}

// ensureWDS pre-stages the VM as a network-boot client. The server
// must run standalone; a directory-integrated server owns its client
// records through the directory and this engine keeps its hands off.
func (d *Dispatcher) ensureWDS(ctx context.Context, host string, desired *v1alpha1.DesiredVM, w *v1alpha1.WDSDeployment) error {
	standalone, err := d.boot.StandaloneMode(ctx, w.Server)
	if err != nil {
		return fmt.Errorf("failed to read the mode of %s: %w", w.Server, err)
	}
	if !standalone {
		return fmt.Errorf("network-boot server %s is directory-integrated: %w", w.Server, ErrPrecondition)
	}

	guid, err := d.firmwareGUID(ctx, host, desired.Name)
	if err != nil {
		return err
	}

	if w.Template != "" {
		rendered, err := d.renderTemplate(w.Template, desired.Name, "", "")
		if err != nil {
			return err
		}
		log.Printf("Staging answer file to \\\\%s\\%s\\%s...", w.Server, wds.UnattendShare, w.AnswerFile)
		if err := d.smb.WriteFile(ctx, w.Server, wds.UnattendShare, w.AnswerFile, rendered); err != nil {
			return err
		}
	}

	// A stale registration under either key shadows the new one, so
	// both are cleared before registering.
	if err := d.boot.RemoveDeviceByID(ctx, w.Server, guid); err != nil {
		return fmt.Errorf("failed to remove client registration by id: %w", err)
	}
	if err := d.boot.RemoveDeviceByName(ctx, w.Server, desired.Name); err != nil {
		return fmt.Errorf("failed to remove client registration by name: %w", err)
	}

	log.Printf("Registering '%s' (%s) on %s...", desired.Name, guid, w.Server)
	err = d.boot.CreateDevice(ctx, w.Server, wds.DeviceRequest{
		ID:         guid,
		Name:       desired.Name,
		AnswerFile: w.AnswerFile,
	})
	if err != nil {
		return fmt.Errorf("failed to register network-boot client: %w", err)
	}
	return nil
}

// ensureSCCM imports the VM as a device record and enrolls it into the
// requested collections, waiting out the site's asynchronous
// membership evaluation.
func (d *Dispatcher) ensureSCCM(ctx context.Context, host string, desired *v1alpha1.DesiredVM, s *v1alpha1.SCCMDeployment) error {
	guid, err := d.firmwareGUID(ctx, host, desired.Name)
	if err != nil {
		return err
	}

	device, err := d.usableDevice(ctx, s.Server, desired.Name, guid)
	if err != nil {
		return err
	}

	if device == nil {
		log.Printf("Importing device record for '%s' (%s) on %s...", desired.Name, guid, s.Server)
		if err := d.devices.ImportDevice(ctx, s.Server, desired.Name, guid); err != nil {
			return fmt.Errorf("failed to import device record: %w", err)
		}
		device, err = d.waitForDevice(ctx, s.Server, desired.Name)
		if err != nil {
			return err
		}
	} else {
		// Reused records can carry a stale boot deployment from a
		// previous install.
		if err := d.devices.ClearPXEFlag(ctx, s.Server, device.ResourceID); err != nil {
			return fmt.Errorf("failed to clear pending network-boot state: %w", err)
		}
	}

	if s.Domain != "" {
		if err := d.devices.SetDeviceVariable(ctx, s.Server, device.Name, "OSDDomainName", s.Domain); err != nil {
			return fmt.Errorf("failed to set domain variable: %w", err)
		}
	}
	if s.OUPath != "" {
		if err := d.devices.SetDeviceVariable(ctx, s.Server, device.Name, "OSDDomainOUName", s.OUPath); err != nil {
			return fmt.Errorf("failed to set OU variable: %w", err)
		}
	}

	for _, collection := range s.Collections {
		if err := d.enroll(ctx, s.Server, collection, device); err != nil {
			return err
		}
	}
	return nil
}

// usableDevice searches for an existing device record, first by name,
// then by firmware identity. Records with an active client or a
// conflicting identity are warned about and never reused.
func (d *Dispatcher) usableDevice(ctx context.Context, server, name, guid string) (*sccm.Device, error) {
	device, err := d.devices.FindDeviceByName(ctx, server, name)
	if err != nil {
		return nil, fmt.Errorf("failed to search devices by name: %w", err)
	}
	if device != nil {
		switch {
		case device.IsClient:
			log.Printf("Warning: device '%s' already has an active client, not reusing it", device.Name)
		case device.SMBIOSGUID != "" && !strings.EqualFold(device.SMBIOSGUID, guid):
			log.Printf("Warning: device '%s' carries identity %s instead of %s, not reusing it", device.Name, device.SMBIOSGUID, guid)
		default:
			return device, nil
		}
	}

	device, err = d.devices.FindDeviceByGUID(ctx, server, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to search devices by identity: %w", err)
	}
	if device != nil {
		switch {
		case device.IsClient:
			log.Printf("Warning: device with identity %s already has an active client, not reusing it", guid)
		case !strings.EqualFold(device.Name, name):
			log.Printf("Warning: identity %s belongs to device '%s', not '%s', not reusing it", guid, device.Name, name)
		default:
			return device, nil
		}
	}
	return nil, nil
}

// waitForDevice polls until a freshly imported record becomes visible
// and yields its resource id.
func (d *Dispatcher) waitForDevice(ctx context.Context, server, name string) (*sccm.Device, error) {
	var device *sccm.Device
	err := d.poll.Do(ctx, func(ctx context.Context) (bool, error) {
		found, err := d.devices.FindDeviceByName(ctx, server, name)
		if err != nil {
			return false, err
		}
		device = found
		return found != nil, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("device record for '%s' did not appear on %s", name, server)
	}
	if err != nil {
		return nil, fmt.Errorf("failed waiting for device record: %w", err)
	}
	return device, nil
}

// enroll adds the device to one collection and waits for membership to
// become visible before moving on; deployments targeted at the
// collection only reach members.
func (d *Dispatcher) enroll(ctx context.Context, server, collection string, device *sccm.Device) error {
	member, err := d.devices.InCollection(ctx, server, collection, device.Name)
	if err != nil {
		return fmt.Errorf("failed to check membership in '%s': %w", collection, err)
	}
	if member {
		return nil
	}

	log.Printf("Adding device '%s' to collection '%s'...", device.Name, collection)
	if err := d.devices.AddToCollection(ctx, server, collection, device.ResourceID); err != nil {
		return fmt.Errorf("failed to add device to '%s': %w", collection, err)
	}

	err = d.poll.Do(ctx, func(ctx context.Context) (bool, error) {
		return d.devices.InCollection(ctx, server, collection, device.Name)
	})
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("device '%s' did not become visible in collection '%s'", device.Name, collection)
	}
	if err != nil {
		return fmt.Errorf("failed waiting for membership in '%s': %w", collection, err)
	}
	return nil
}

// ensureVHD overwrites the VM's boot disk with a prepared image and
// injects the rendered answer file into it.
func (d *Dispatcher) ensureVHD(ctx context.Context, host string, desired *v1alpha1.DesiredVM, v *v1alpha1.VHDDeployment) error {
	drives, err := d.gw.HardDiskDrives(ctx, host, desired.Name)
	if err != nil {
		return fmt.Errorf("failed to list disk drives: %w", err)
	}
	var boot *hyperv.DiskDrive
	for i := range drives {
		if drives[i].ControllerNumber == v.Controller() && drives[i].ControllerLocation == v.Location() {
			boot = &drives[i]
			break
		}
	}
	if boot == nil {
		return fmt.Errorf("no boot disk attached at %d:%d of '%s'", v.Controller(), v.Location(), desired.Name)
	}

	src, err := d.gw.GetVHD(ctx, host, v.SourcePath)
	if err != nil {
		return fmt.Errorf("failed to inspect source image %s: %w", v.SourcePath, err)
	}
	current, err := d.gw.GetVHD(ctx, host, boot.Path)
	if err != nil && !errors.Is(err, hyperv.ErrNotFound) {
		return fmt.Errorf("failed to inspect boot disk %s: %w", boot.Path, err)
	}
	if current != nil && current.Size > src.Size {
		log.Printf("Warning: boot disk %s (%d bytes) is larger than image %s (%d bytes); the copy shrinks it", boot.Path, current.Size, v.SourcePath, src.Size)
	}

	log.Printf("Copying image %s over %s...", v.SourcePath, boot.Path)
	if err := d.gw.CopyFile(ctx, host, v.SourcePath, boot.Path); err != nil {
		return fmt.Errorf("failed to copy image over boot disk: %w", err)
	}

	if v.AnswerFile == "" {
		return nil
	}

	rendered, err := d.renderTemplate(v.AnswerFile, desired.Name, v.Domain, v.OUPath)
	if err != nil {
		return err
	}

	letter, err := d.gw.MountVHD(ctx, host, boot.Path)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", boot.Path, err)
	}

	injectErr := d.inject(ctx, host, letter, rendered)
	if err := d.gw.DismountVHD(ctx, host, boot.Path); err != nil {
		if injectErr == nil {
			return fmt.Errorf("failed to dismount %s: %w", boot.Path, err)
		}
		log.Printf("Warning: failed to dismount %s: %v", boot.Path, err)
	}
	return injectErr
}

// inject writes the rendered answer file where setup looks for it on
// first boot.
func (d *Dispatcher) inject(ctx context.Context, host, letter string, rendered []byte) error {
	dir := letter + `:\Windows\Panther`
	if err := d.gw.EnsureDirectory(ctx, host, dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	target := dir + `\unattend.xml`
	log.Printf("Injecting answer file at %s...", target)
	if err := d.gw.WriteFileBytes(ctx, host, target, rendered); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// renderTemplate loads a local template and substitutes the values
// available for this VM.
func (d *Dispatcher) renderTemplate(path, computerName, joinDomain, machineOU string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer-file template: %w", err)
	}
	rendered := RenderAnswerFile(string(data), AnswerFileValues{
		ComputerName:  computerName,
		AdminPassword: d.creds.AdminPassword,
		JoinUsername:  d.creds.JoinUsername,
		JoinPassword:  d.creds.JoinPassword,
		JoinDomain:    joinDomain,
		MachineOU:     machineOU,
	})
	return []byte(rendered), nil
}

// firmwareGUID reads and validates the identity provisioning systems
// correlate the machine by.
func (d *Dispatcher) firmwareGUID(ctx context.Context, host, vmName string) (string, error) {
	guid, err := d.gw.BiosGUID(ctx, host, vmName)
	if err != nil {
		return "", fmt.Errorf("failed to read firmware identity of '%s': %w", vmName, err)
	}
	parsed, err := uuid.Parse(guid)
	if err != nil {
		return "", fmt.Errorf("firmware identity of '%s' is not a GUID: %w", vmName, err)
	}
	return strings.ToUpper(parsed.String()), nil
}

// removeBootClient clears the network-boot registration under both of
// its keys.
func (d *Dispatcher) removeBootClient(ctx context.Context, host, vmName, server string) error {
	guid, err := d.firmwareGUID(ctx, host, vmName)
	if err != nil {
		// With the VM already gone there is no identity left to match;
		// the name registration still gets cleared.
		log.Printf("Warning: %v; removing the registration by name only", err)
	} else {
		if err := d.boot.RemoveDeviceByID(ctx, server, guid); err != nil {
			return fmt.Errorf("failed to remove client registration by id: %w", err)
		}
	}
	log.Printf("Removing network-boot registration of '%s' from %s...", vmName, server)
	if err := d.boot.RemoveDeviceByName(ctx, server, vmName); err != nil {
		return fmt.Errorf("failed to remove client registration by name: %w", err)
	}
	return nil
}

// removeDeviceRecord deletes the device record matching the VM by name
// or, when the VM still exists, by firmware identity.
func (d *Dispatcher) removeDeviceRecord(ctx context.Context, host, vmName, server string) error {
	removed := map[int]bool{}

	device, err := d.devices.FindDeviceByName(ctx, server, vmName)
	if err != nil {
		return fmt.Errorf("failed to search devices by name: %w", err)
	}
	if device != nil {
		log.Printf("Removing device record '%s' from %s...", device.Name, server)
		if err := d.devices.RemoveDevice(ctx, server, device.ResourceID); err != nil {
			return fmt.Errorf("failed to remove device record: %w", err)
		}
		removed[device.ResourceID] = true
	}

	guid, err := d.firmwareGUID(ctx, host, vmName)
	if err != nil {
		return nil
	}
	device, err = d.devices.FindDeviceByGUID(ctx, server, guid)
	if err != nil {
		return fmt.Errorf("failed to search devices by identity: %w", err)
	}
	if device != nil && !removed[device.ResourceID] {
		log.Printf("Removing device record '%s' (%s) from %s...", device.Name, guid, server)
		if err := d.devices.RemoveDevice(ctx, server, device.ResourceID); err != nil {
			return fmt.Errorf("failed to remove device record: %w", err)
		}
	}
	return nil
}
