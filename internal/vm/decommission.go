package vm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/dns"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/naming"
	"github.com/jbweber/croft/internal/report"
	"github.com/jbweber/croft/internal/retry"
)

// DecommissionOptions carry the operator's teardown flags into the
// pass.
type DecommissionOptions struct {
	// PreserveDrives leaves the disk image files in place.
	PreserveDrives bool

	// RemoveNetworkObjects also scrubs DHCP reservations, the
	// directory computer object and DNS records.
	RemoveNetworkObjects bool

	// Force powers running VMs off without confirmation.
	Force bool
}

// decommissionOne tears a single VM down, reversing the provisioning
// order: snapshots, cluster registration, deployment registrations,
// power, the VM object, its disks and directories, and optionally the
// network objects around it.
func (e *Engine) decommissionOne(ctx context.Context, pass *report.Pass, desired *v1alpha1.DesiredVM, opts DecommissionOptions) error {
	topo, live, err := e.locate(ctx, desired)
	if err != nil {
		return err
	}

	if live == nil {
		// Nothing to tear down on the hypervisor; external traces may
		// still exist.
		pass.Warn("VM '%s' does not exist, cleaning up external registrations only", desired.Name)
		host := desired.Host
		if host == "" {
			host = e.deps.DefaultHost
		}
		if err := e.deprovision(ctx, host, desired); err != nil {
			return err
		}
		return e.removeNetworkObjects(ctx, pass, desired, opts)
	}
	host := live.Host

	if err := e.clearSnapshots(ctx, host, live.Name); err != nil {
		return err
	}

	if topo.Clustered() {
		if err := e.deps.Cluster.RemoveMembership(ctx, host, live); err != nil {
			return err
		}
	}

	if err := e.deprovision(ctx, host, desired); err != nil {
		return err
	}

	if live.State == stateRunning {
		if !opts.Force && !e.deps.Confirm.Confirm(fmt.Sprintf("Power off running VM '%s' on %s?", live.Name, host)) {
			return fmt.Errorf("VM '%s' is running and powering it off was declined", live.Name)
		}
		log.Printf("Powering off '%s'...", live.Name)
		if err := e.deps.Gateway.Stop(ctx, host, live.Name, true); err != nil {
			return fmt.Errorf("failed to power off '%s': %w", live.Name, err)
		}
	}

	// The attachment list disappears with the VM, so capture it first.
	drives, err := e.deps.Gateway.HardDiskDrives(ctx, host, live.Name)
	if err != nil {
		return fmt.Errorf("failed to list disks of '%s': %w", live.Name, err)
	}

	log.Printf("Removing VM '%s'...", live.Name)
	if err := e.deps.Gateway.RemoveVM(ctx, host, live.Name); err != nil {
		return fmt.Errorf("failed to remove '%s': %w", live.Name, err)
	}

	if !opts.PreserveDrives {
		for _, drive := range drives {
			if err := e.deleteDrive(ctx, pass, host, drive.Path); err != nil {
				return err
			}
		}
	}

	if desired.Path != "" {
		dir := naming.WindowsJoin(desired.Path, desired.Name)
		if err := e.deps.Gateway.DeleteDirectoryIfEmpty(ctx, host, dir); err != nil {
			pass.Warn("failed to remove directory %s: %v", dir, err)
		}
	}

	return e.removeNetworkObjects(ctx, pass, desired, opts)
}

// clearSnapshots removes every snapshot and waits the resulting disk
// merge out; deleting image files mid-merge corrupts them.
func (e *Engine) clearSnapshots(ctx context.Context, host, vmName string) error {
	if err := e.deps.Gateway.RemoveAllSnapshots(ctx, host, vmName); err != nil {
		return fmt.Errorf("failed to remove snapshots of '%s': %w", vmName, err)
	}

	err := e.deps.Wait.Do(ctx, func(ctx context.Context) (bool, error) {
		merging, err := e.deps.Gateway.MergeInProgress(ctx, host, vmName)
		if err != nil {
			return false, err
		}
		if merging {
			log.Printf("Waiting for snapshot merge of '%s'...", vmName)
		}
		return !merging, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("snapshot merge of '%s' did not finish", vmName)
	}
	if err != nil {
		return fmt.Errorf("failed waiting for snapshot merge of '%s': %w", vmName, err)
	}
	return nil
}

// deprovision reverses the external OS deployment registrations.
func (e *Engine) deprovision(ctx context.Context, host string, desired *v1alpha1.DesiredVM) error {
	if desired.OSDeployment == nil || e.deps.Deploy == nil {
		return nil
	}
	return e.deps.Deploy.Deprovision(ctx, host, desired.Name, desired.OSDeployment)
}

// deleteDrive deletes one disk image, dismounting it first when it is
// mounted and pulling CSV ownership local before deleting from shared
// storage.
func (e *Engine) deleteDrive(ctx context.Context, pass *report.Pass, host, path string) error {
	info, err := e.deps.Gateway.GetVHD(ctx, host, path)
	if err != nil {
		if errors.Is(err, hyperv.ErrNotFound) {
			pass.Warn("disk %s is already gone", path)
			return nil
		}
		return fmt.Errorf("failed to inspect disk %s: %w", path, err)
	}
	if info.Attached {
		if err := e.deps.Gateway.DismountVHD(ctx, host, path); err != nil {
			return fmt.Errorf("failed to dismount %s: %w", path, err)
		}
	}

	if err := e.ensureVolumeLocal(ctx, host, path); err != nil {
		return err
	}

	log.Printf("Deleting disk %s...", path)
	if err := e.deps.Gateway.DeleteFile(ctx, host, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// ensureVolumeLocal moves the owning node of a cluster shared volume
// to the host the deletion runs on. Deleting through a non-owning node
// trips file-lock redirection.
func (e *Engine) ensureVolumeLocal(ctx context.Context, host, path string) error {
	if !strings.HasPrefix(strings.ToLower(path), `c:\clusterstorage\`) {
		return nil
	}

	volumes, err := e.deps.Gateway.SharedVolumes(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to list shared volumes: %w", err)
	}
	node := shortHost(host)
	for _, vol := range volumes {
		if vol.Path == "" || !strings.HasPrefix(strings.ToLower(path), strings.ToLower(vol.Path)+`\`) {
			continue
		}
		if strings.EqualFold(shortHost(vol.OwnerNode), node) {
			return nil
		}
		log.Printf("Moving shared volume '%s' to %s...", vol.Name, node)
		if err := e.deps.Gateway.MoveSharedVolume(ctx, host, vol.Name, node); err != nil {
			return fmt.Errorf("failed to move shared volume '%s': %w", vol.Name, err)
		}
		return nil
	}
	return nil
}

// removeNetworkObjects scrubs the DHCP reservations, the directory
// computer object and the DNS records the VM accumulated. Individual
// failures here degrade to warnings; the VM itself is already gone.
func (e *Engine) removeNetworkObjects(ctx context.Context, pass *report.Pass, desired *v1alpha1.DesiredVM, opts DecommissionOptions) error {
	if !opts.RemoveNetworkObjects {
		return nil
	}

	if e.deps.DHCP != nil {
		for _, adapter := range desired.NetworkAdapters {
			if !adapter.ReservesAddress() {
				continue
			}
			if err := e.removeReservations(ctx, pass, adapter); err != nil {
				return err
			}
		}
	}

	if e.deps.Directory != nil && e.deps.Cleanup.DirectoryServer != "" {
		if err := e.removeComputerObject(ctx, pass, desired.Name); err != nil {
			return err
		}
	}

	if e.deps.DNS != nil && e.deps.Cleanup.DNSServer != "" && e.deps.Cleanup.DNSZone != "" {
		e.removeRecords(ctx, pass, desired)
	}
	return nil
}

// removeReservations deletes every reservation the adapter could have
// created, matching by address and by client id. Both can match at
// once, deleting two reservations; a half-cleaned scope from a
// previous run looks exactly like that.
func (e *Engine) removeReservations(ctx context.Context, pass *report.Pass, adapter v1alpha1.DesiredNetworkAdapter) error {
	reservations, err := e.deps.DHCP.Reservations(ctx, adapter.DHCPServer, adapter.DHCPScope)
	if err != nil {
		return fmt.Errorf("failed to list reservations in scope %s: %w", adapter.DHCPScope, err)
	}

	clientID := adapterClientID(adapter)
	removed := false
	for _, r := range reservations {
		byIP := adapter.IPAddress != "" && r.IPAddress == adapter.IPAddress
		byID := clientID != "" && strings.EqualFold(r.ClientID, clientID)
		if !byIP && !byID {
			continue
		}
		log.Printf("Removing reservation %s (%s) from scope %s...", r.IPAddress, r.ClientID, adapter.DHCPScope)
		if err := e.deps.DHCP.RemoveReservation(ctx, adapter.DHCPServer, adapter.DHCPScope, r.IPAddress); err != nil {
			return fmt.Errorf("failed to remove reservation %s: %w", r.IPAddress, err)
		}
		removed = true
	}
	if !removed {
		return nil
	}

	partner, err := e.deps.DHCP.ScopeFailover(ctx, adapter.DHCPServer, adapter.DHCPScope)
	if err != nil {
		pass.Warn("failed to check failover of scope %s: %v", adapter.DHCPScope, err)
		return nil
	}
	if partner == "" {
		return nil
	}
	if err := e.deps.DHCP.ReplicateScope(ctx, adapter.DHCPServer, adapter.DHCPScope); err != nil {
		pass.Warn("failed to replicate scope %s: %v", adapter.DHCPScope, err)
	}
	return nil
}

// adapterClientID derives the DHCP client id the adapter would have
// reserved under, from its explicit MAC or the one derived from its
// address. Empty when neither is known.
func adapterClientID(adapter v1alpha1.DesiredNetworkAdapter) string {
	mac := adapter.MACAddress
	if mac == "" && adapter.MACPrefix != "" && adapter.IPAddress != "" {
		derived, err := naming.MACFromIP(adapter.MACPrefix, adapter.IPAddress)
		if err != nil {
			return ""
		}
		mac = derived
	}
	if mac == "" {
		return ""
	}
	id, err := naming.ClientIDFromMAC(mac)
	if err != nil {
		return ""
	}
	return id
}

// removeComputerObject deletes the directory computer object, if one
// exists.
func (e *Engine) removeComputerObject(ctx context.Context, pass *report.Pass, name string) error {
	computer, err := e.deps.Directory.FindComputer(ctx, e.deps.Cleanup.DirectoryServer, name)
	if err != nil {
		return fmt.Errorf("failed to look up computer object %q: %w", name, err)
	}
	if computer == nil {
		return nil
	}
	log.Printf("Removing computer object %s...", computer.DistinguishedName)
	if err := e.deps.Directory.RemoveComputer(ctx, e.deps.Cleanup.DirectoryServer, computer.DistinguishedName); err != nil {
		return fmt.Errorf("failed to remove computer object %q: %w", name, err)
	}
	return nil
}

// removeRecords clears the forward record and the reverse records of
// every address the VM held. Record cleanup is best-effort.
func (e *Engine) removeRecords(ctx context.Context, pass *report.Pass, desired *v1alpha1.DesiredVM) {
	server, zone := e.deps.Cleanup.DNSServer, e.deps.Cleanup.DNSZone
	if err := e.deps.DNS.RemoveRecords(ctx, server, zone, desired.Name, "A"); err != nil {
		pass.Warn("failed to remove A records of %s: %v", desired.Name, err)
	}

	for _, adapter := range desired.NetworkAdapters {
		if adapter.IPAddress == "" {
			continue
		}
		ptrZone, ptrName, err := dns.PtrZone(adapter.IPAddress)
		if err != nil {
			pass.Warn("failed to derive reverse zone of %s: %v", adapter.IPAddress, err)
			continue
		}
		if err := e.deps.DNS.RemoveRecords(ctx, server, ptrZone, ptrName, "PTR"); err != nil {
			pass.Warn("failed to remove PTR record of %s: %v", adapter.IPAddress, err)
		}
	}
}

// shortHost folds a host name to the short form cluster node names
// use.
func shortHost(host string) string {
	short, _, _ := strings.Cut(host, ".")
	return short
}
