// Package disks converges the hard-drive attachments of a VM: backing
// image files, SCSI controller supply, and attachment positions.
// Image contents are never resized or replaced here; an existing file
// of the wrong size needs operator consent to be used at all.
package disks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/confirm"
	"github.com/jbweber/croft/internal/hyperv"
)

// scsiLocations is the number of attachment locations one SCSI
// controller offers.
const scsiLocations = 64

// Reconciler drives the disk attachments of VMs toward their desired
// records.
type Reconciler struct {
	gw      gateway
	confirm confirm.Policy

	// Preserve reattaches a disk evicted from a claimed position at
	// the next free location on the same controller instead of leaving
	// it detached.
	Preserve bool
}

// NewReconciler creates a Reconciler backed by the given hypervisor
// gateway. The confirmation policy decides whether differently-sized
// existing images may be attached.
func NewReconciler(gw gateway, policy confirm.Policy) *Reconciler {
	return &Reconciler{gw: gw, confirm: policy}
}

// EnsureDisk converges one desired disk: the backing image exists, the
// addressed SCSI controller exists, and the image is attached at the
// desired position. A desired record without an explicit position
// accepts the disk wherever it is already attached, and leaves fresh
// placement to the platform.
func (r *Reconciler) EnsureDisk(ctx context.Context, host, vmName string, disk v1alpha1.DesiredDisk) error {
	drives, err := r.gw.HardDiskDrives(ctx, host, vmName)
	if err != nil {
		return fmt.Errorf("failed to list disk drives: %w", err)
	}

	attached := findDrive(drives, disk.Path)
	if attached != nil && placementSatisfied(attached, disk) {
		return nil
	}

	if attached == nil {
		if err := r.ensureImage(ctx, host, disk); err != nil {
			return err
		}
	} else {
		// Same image at the wrong position: detach before reattaching
		// at the right one. The file itself is left alone.
		log.Printf("Moving disk %s off %s %d:%d...", disk.Path, attached.ControllerType, attached.ControllerNumber, attached.ControllerLocation)
		if err := r.gw.DetachDisk(ctx, host, vmName, attached.ControllerType, attached.ControllerNumber, attached.ControllerLocation); err != nil {
			return fmt.Errorf("failed to detach %s: %w", disk.Path, err)
		}
		drives = removeDrive(drives, attached)
	}

	if disk.ControllerNumber != nil {
		if err := r.ensureControllers(ctx, host, vmName, disk.Controller()); err != nil {
			return err
		}
		if disk.ControllerLocation != nil {
			if err := r.evictOccupant(ctx, host, vmName, drives, disk); err != nil {
				return err
			}
		}
	}

	log.Printf("Attaching disk %s to '%s'...", disk.Path, vmName)
	err = r.gw.AttachDisk(ctx, host, hyperv.AttachDiskRequest{
		VMName:             vmName,
		Path:               disk.Path,
		ControllerNumber:   disk.ControllerNumber,
		ControllerLocation: disk.ControllerLocation,
	})
	if err != nil {
		return fmt.Errorf("failed to attach %s: %w", disk.Path, err)
	}
	return nil
}

// ensureImage creates the backing image when absent. An existing image
// of a different size is attached unchanged only with operator
// consent; data is never resized or replaced.
func (r *Reconciler) ensureImage(ctx context.Context, host string, disk v1alpha1.DesiredDisk) error {
	info, err := r.gw.GetVHD(ctx, host, disk.Path)
	if errors.Is(err, hyperv.ErrNotFound) {
		log.Printf("Creating disk image %s (%d bytes)...", disk.Path, disk.SizeBytes)
		if err := r.gw.CreateVHD(ctx, host, hyperv.CreateVHDRequest{Path: disk.Path, SizeBytes: disk.SizeBytes}); err != nil {
			return fmt.Errorf("failed to create %s: %w", disk.Path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", disk.Path, err)
	}

	if info.Size == disk.SizeBytes {
		return nil
	}
	prompt := fmt.Sprintf("Image %s already exists with size %d bytes (desired %d). Attach it unchanged?", disk.Path, info.Size, disk.SizeBytes)
	if !r.confirm.Confirm(prompt) {
		return fmt.Errorf("image %s has size %d bytes, want %d; not attaching without confirmation", disk.Path, info.Size, disk.SizeBytes)
	}
	log.Printf("Warning: attaching existing image %s with size %d bytes (desired %d)", disk.Path, info.Size, disk.SizeBytes)
	return nil
}

// ensureControllers adds SCSI controllers until the addressed
// controller number exists. Controllers are only ever added.
func (r *Reconciler) ensureControllers(ctx context.Context, host, vmName string, number int) error {
	count, err := r.gw.ScsiControllerCount(ctx, host, vmName)
	if err != nil {
		return fmt.Errorf("failed to count SCSI controllers: %w", err)
	}
	for count <= number {
		log.Printf("Adding SCSI controller %d to '%s'...", count, vmName)
		if err := r.gw.AddScsiController(ctx, host, vmName); err != nil {
			return fmt.Errorf("failed to add SCSI controller: %w", err)
		}
		count++
	}
	return nil
}

// evictOccupant frees an explicitly addressed position held by a
// different disk. With Preserve the evicted disk is reattached at the
// next free location on the same controller; otherwise it stays
// detached, its image untouched.
func (r *Reconciler) evictOccupant(ctx context.Context, host, vmName string, drives []hyperv.DiskDrive, disk v1alpha1.DesiredDisk) error {
	occupant := driveAt(drives, disk.Controller(), disk.Location())
	if occupant == nil || strings.EqualFold(occupant.Path, disk.Path) {
		return nil
	}

	log.Printf("Evicting %s from %d:%d of '%s'...", occupant.Path, occupant.ControllerNumber, occupant.ControllerLocation, vmName)
	if err := r.gw.DetachDisk(ctx, host, vmName, occupant.ControllerType, occupant.ControllerNumber, occupant.ControllerLocation); err != nil {
		return fmt.Errorf("failed to detach %s: %w", occupant.Path, err)
	}
	if !r.Preserve {
		return nil
	}

	free, ok := nextFreeLocation(drives, disk.Controller(), disk.Location())
	if !ok {
		return fmt.Errorf("no free location on controller %d to preserve %s", disk.Controller(), occupant.Path)
	}
	log.Printf("Reattaching preserved disk %s at %d:%d...", occupant.Path, disk.Controller(), free)
	err := r.gw.AttachDisk(ctx, host, hyperv.AttachDiskRequest{
		VMName:             vmName,
		Path:               occupant.Path,
		ControllerNumber:   intPtr(disk.Controller()),
		ControllerLocation: intPtr(free),
	})
	if err != nil {
		return fmt.Errorf("failed to reattach preserved disk %s: %w", occupant.Path, err)
	}
	return nil
}

// findDrive returns the attachment carrying the given image path.
// Windows paths compare case-insensitively.
func findDrive(drives []hyperv.DiskDrive, path string) *hyperv.DiskDrive {
	for i := range drives {
		if strings.EqualFold(drives[i].Path, path) {
			return &drives[i]
		}
	}
	return nil
}

// driveAt returns the attachment at one SCSI controller position.
func driveAt(drives []hyperv.DiskDrive, number, location int) *hyperv.DiskDrive {
	for i := range drives {
		d := &drives[i]
		if strings.EqualFold(d.ControllerType, "SCSI") && d.ControllerNumber == number && d.ControllerLocation == location {
			return d
		}
	}
	return nil
}

// removeDrive drops one attachment from a snapshot of the drive list.
func removeDrive(drives []hyperv.DiskDrive, gone *hyperv.DiskDrive) []hyperv.DiskDrive {
	out := make([]hyperv.DiskDrive, 0, len(drives))
	for i := range drives {
		if &drives[i] == gone {
			continue
		}
		out = append(out, drives[i])
	}
	return out
}

// placementSatisfied reports whether an existing attachment honors the
// desired position. Unset fields accept any position.
func placementSatisfied(d *hyperv.DiskDrive, disk v1alpha1.DesiredDisk) bool {
	if disk.ControllerNumber != nil && d.ControllerNumber != *disk.ControllerNumber {
		return false
	}
	if disk.ControllerLocation != nil && d.ControllerLocation != *disk.ControllerLocation {
		return false
	}
	return true
}

// nextFreeLocation finds the lowest unoccupied location on a SCSI
// controller, treating the claimed location as taken.
func nextFreeLocation(drives []hyperv.DiskDrive, controller, claimed int) (int, bool) {
	used := map[int]bool{claimed: true}
	for _, d := range drives {
		if strings.EqualFold(d.ControllerType, "SCSI") && d.ControllerNumber == controller {
			used[d.ControllerLocation] = true
		}
	}
	for loc := 0; loc < scsiLocations; loc++ {
		if !used[loc] {
			return loc, true
		}
	}
	return 0, false
}

func intPtr(v int) *int { return &v }
