// Package network converges the network adapters of a VM: adapter
// existence, device naming, MAC assignment, switch binding, VLAN and
// isolation configuration, and the DHCP reservation an adapter's
// address is pinned by.
//
// Every mutation is diff-gated: converging an already-correct adapter
// issues no platform writes.
package network

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/naming"
)

// Reconciler converges VM network adapters and their DHCP
// reservations.
type Reconciler struct {
	gw   gateway
	dhcp addressService
	macs macAllocator
}

// NewReconciler creates a Reconciler from a hypervisor gateway, a DHCP
// service and a MAC allocator.
func NewReconciler(gw gateway, dhcpSvc addressService, macs macAllocator) *Reconciler {
	return &Reconciler{gw: gw, dhcp: dhcpSvc, macs: macs}
}

// EnsureAdapter converges a single desired adapter and returns its
// final state. The adapter is created when missing; duplicates under
// the same name are removed and recreated as one. Properties, switch
// binding, VLAN configuration and the DHCP reservation are each
// converged independently so an interrupted earlier pass is repaired
// rather than repeated.
func (r *Reconciler) EnsureAdapter(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) (*hyperv.NetAdapter, error) {
	current, err := r.ensureExists(ctx, host, vmName, desired.Name)
	if err != nil {
		return nil, err
	}

	if err := r.ensureProperties(ctx, host, vmName, desired, current); err != nil {
		return nil, err
	}
	if err := r.ensureSwitch(ctx, host, vmName, desired, current); err != nil {
		return nil, err
	}
	if err := r.ensureVlan(ctx, host, vmName, desired); err != nil {
		return nil, err
	}
	if desired.ReservesAddress() {
		if err := r.ensureReservation(ctx, vmName, desired, current.MacAddress); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// ensureExists resolves the adapter by name, creating it when missing.
// Multiple adapters under one name are an ambiguous state nothing
// downstream can address, so all of them are removed and a single
// adapter recreated.
func (r *Reconciler) ensureExists(ctx context.Context, host, vmName, name string) (*hyperv.NetAdapter, error) {
	adapters, err := r.gw.NetworkAdapters(ctx, host, vmName)
	if err != nil {
		return nil, fmt.Errorf("failed to list network adapters: %w", err)
	}
	matches := byName(adapters, name)

	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		log.Printf("Warning: found %d adapters named '%s' on '%s', removing all and recreating", len(matches), name, vmName)
		if err := r.gw.RemoveNetworkAdapter(ctx, host, vmName, name); err != nil {
			return nil, fmt.Errorf("failed to remove duplicate adapters '%s': %w", name, err)
		}
	default:
		log.Printf("Adding network adapter '%s' to '%s'...", name, vmName)
	}

	if err := r.gw.AddNetworkAdapter(ctx, host, vmName, name); err != nil {
		return nil, fmt.Errorf("failed to add network adapter '%s': %w", name, err)
	}

	adapters, err = r.gw.NetworkAdapters(ctx, host, vmName)
	if err != nil {
		return nil, fmt.Errorf("failed to list network adapters: %w", err)
	}
	matches = byName(adapters, name)
	if len(matches) != 1 {
		return nil, fmt.Errorf("expected one adapter named '%s' after creation, found %d", name, len(matches))
	}
	return matches[0], nil
}

// ensureProperties converges device naming, the MAC address and the
// spoofing and teaming flags in a single platform call. Device naming
// is always turned on so the guest can identify adapters by name.
func (r *Reconciler) ensureProperties(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter, current *hyperv.NetAdapter) error {
	req := hyperv.ConfigureAdapterRequest{VMName: vmName, AdapterName: desired.Name}
	changed := false

	if !current.DeviceNaming {
		req.DeviceNaming = boolPtr(true)
		changed = true
	}
	if desired.MACSpoofing != current.MacSpoofing {
		req.MacSpoofing = boolPtr(desired.MACSpoofing)
		changed = true
	}
	if desired.AllowTeaming != current.AllowTeaming {
		req.AllowTeaming = boolPtr(desired.AllowTeaming)
		changed = true
	}

	mac, err := r.desiredMAC(ctx, host, desired, current)
	if err != nil {
		return err
	}
	if mac != "" {
		log.Printf("Pinning adapter '%s' to MAC %s...", desired.Name, mac)
		req.StaticMac = mac
		changed = true
	}

	if !changed {
		return nil
	}
	if err := r.gw.ConfigureAdapter(ctx, host, req); err != nil {
		return fmt.Errorf("failed to configure adapter '%s': %w", desired.Name, err)
	}

	if mac != "" {
		current.MacAddress = mac
		current.DynamicMac = false
	}
	if req.DeviceNaming != nil {
		current.DeviceNaming = true
	}
	if req.MacSpoofing != nil {
		current.MacSpoofing = *req.MacSpoofing
	}
	if req.AllowTeaming != nil {
		current.AllowTeaming = *req.AllowTeaming
	}
	return nil
}

// desiredMAC picks the MAC to pin the adapter to, or "" to leave it
// untouched. Precedence: an explicit MAC, then derivation from prefix
// and IP address, then, only while the adapter still carries the
// platform null MAC, an allocation from the per-host counter. An
// already-static non-null MAC with no desired override stays as it is.
func (r *Reconciler) desiredMAC(ctx context.Context, host string, desired v1alpha1.DesiredNetworkAdapter, current *hyperv.NetAdapter) (string, error) {
	switch {
	case desired.MACAddress != "":
		want, err := naming.NormalizeMAC(desired.MACAddress)
		if err != nil {
			return "", fmt.Errorf("adapter '%s': %w", desired.Name, err)
		}
		if strings.EqualFold(current.MacAddress, want) && !current.DynamicMac {
			return "", nil
		}
		return want, nil

	case desired.MACPrefix != "" && desired.IPAddress != "":
		want, err := naming.MACFromIP(desired.MACPrefix, desired.IPAddress)
		if err != nil {
			return "", fmt.Errorf("adapter '%s': %w", desired.Name, err)
		}
		if strings.EqualFold(current.MacAddress, want) && !current.DynamicMac {
			return "", nil
		}
		return want, nil

	case naming.IsNullMAC(current.MacAddress):
		want, err := r.macs.Next(host, func() (string, error) {
			info, err := r.gw.HostNetworkInfo(ctx, host)
			if err != nil {
				return "", fmt.Errorf("failed to read host network info: %w", err)
			}
			return info.MacAddressMinimum, nil
		})
		if err != nil {
			return "", fmt.Errorf("adapter '%s': %w", desired.Name, err)
		}
		return want, nil

	default:
		return "", nil
	}
}

// ensureSwitch converges the switch binding. An empty desired switch
// name means disconnected.
func (r *Reconciler) ensureSwitch(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter, current *hyperv.NetAdapter) error {
	switch {
	case desired.SwitchName == "" && current.SwitchName != "":
		log.Printf("Disconnecting adapter '%s'...", desired.Name)
		if err := r.gw.DisconnectAdapter(ctx, host, vmName, desired.Name); err != nil {
			return fmt.Errorf("failed to disconnect adapter '%s': %w", desired.Name, err)
		}
		current.SwitchName = ""

	case desired.SwitchName != "" && !strings.EqualFold(current.SwitchName, desired.SwitchName):
		log.Printf("Connecting adapter '%s' to switch '%s'...", desired.Name, desired.SwitchName)
		if err := r.gw.ConnectAdapter(ctx, host, vmName, desired.Name, desired.SwitchName); err != nil {
			return fmt.Errorf("failed to connect adapter '%s' to switch '%s': %w", desired.Name, desired.SwitchName, err)
		}
		current.SwitchName = desired.SwitchName
	}
	return nil
}

// byName selects adapters by display name. The platform treats adapter
// names case-insensitively.
func byName(adapters []hyperv.NetAdapter, name string) []*hyperv.NetAdapter {
	var matches []*hyperv.NetAdapter
	for i := range adapters {
		if strings.EqualFold(adapters[i].Name, name) {
			matches = append(matches, &adapters[i])
		}
	}
	return matches
}

func boolPtr(v bool) *bool {
	return &v
}
