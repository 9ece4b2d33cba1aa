package network

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/hyperv"
)

// vlanPlan is the pair of platform settings one desired VLAN mode maps
// to. Tagging and isolation are separate platform surfaces and are
// converged separately.
type vlanPlan struct {
	vlan      hyperv.VlanSettings
	isolation hyperv.IsolationSettings
}

// planVlan maps a desired adapter to platform VLAN settings. The
// degenerate combinations carry no usable tagging information and are
// normalized to untagged with a warning: access or isolation mode with
// VLAN id 0, and a trunk with neither a native id nor an allowed list.
func planVlan(a v1alpha1.DesiredNetworkAdapter) vlanPlan {
	id := 0
	if a.VLANID != nil {
		id = *a.VLANID
	}

	switch a.VLANMode {
	case v1alpha1.VLANModeAccess:
		if id == 0 {
			log.Printf("Warning: adapter '%s' requests access mode without a VLAN id, leaving it untagged", a.Name)
			break
		}
		return vlanPlan{
			vlan:      hyperv.VlanSettings{OperationMode: hyperv.VlanModeAccess, AccessVlanID: id},
			isolation: hyperv.IsolationSettings{IsolationMode: hyperv.IsolationNone},
		}

	case v1alpha1.VLANModeIsolation:
		if id == 0 {
			log.Printf("Warning: adapter '%s' requests isolation mode without a VLAN id, leaving it untagged", a.Name)
			break
		}
		return vlanPlan{
			vlan:      hyperv.VlanSettings{OperationMode: hyperv.VlanModeUntagged},
			isolation: hyperv.IsolationSettings{IsolationMode: hyperv.IsolationVlan, DefaultIsolationID: id},
		}

	case v1alpha1.VLANModeTrunk:
		if id == 0 && len(a.VLANIDList) == 0 {
			log.Printf("Warning: adapter '%s' requests trunk mode without a native id or allowed list, leaving it untagged", a.Name)
			break
		}
		allowed := append([]int(nil), a.VLANIDList...)
		sort.Ints(allowed)
		return vlanPlan{
			vlan:      hyperv.VlanSettings{OperationMode: hyperv.VlanModeTrunk, NativeVlanID: id, AllowedVlanIDs: allowed},
			isolation: hyperv.IsolationSettings{IsolationMode: hyperv.IsolationNone},
		}
	}

	return vlanPlan{
		vlan:      hyperv.VlanSettings{OperationMode: hyperv.VlanModeUntagged},
		isolation: hyperv.IsolationSettings{IsolationMode: hyperv.IsolationNone},
	}
}

// ensureVlan converges the tagging and isolation configuration of an
// adapter against the planned settings.
func (r *Reconciler) ensureVlan(ctx context.Context, host, vmName string, desired v1alpha1.DesiredNetworkAdapter) error {
	plan := planVlan(desired)

	current, err := r.gw.AdapterVlan(ctx, host, vmName, desired.Name)
	if err != nil {
		return fmt.Errorf("failed to read VLAN settings of '%s': %w", desired.Name, err)
	}
	if !vlanEqual(*current, plan.vlan) {
		log.Printf("Setting adapter '%s' to VLAN mode %s...", desired.Name, plan.vlan.OperationMode)
		err := r.gw.SetAdapterVlan(ctx, host, hyperv.VlanRequest{
			VMName:         vmName,
			AdapterName:    desired.Name,
			Mode:           plan.vlan.OperationMode,
			AccessVlanID:   plan.vlan.AccessVlanID,
			NativeVlanID:   plan.vlan.NativeVlanID,
			AllowedVlanIDs: plan.vlan.AllowedVlanIDs,
		})
		if err != nil {
			return fmt.Errorf("failed to set VLAN mode of '%s': %w", desired.Name, err)
		}
	}

	isolation, err := r.gw.AdapterIsolation(ctx, host, vmName, desired.Name)
	if err != nil {
		return fmt.Errorf("failed to read isolation settings of '%s': %w", desired.Name, err)
	}
	if !isolationEqual(*isolation, plan.isolation) {
		log.Printf("Setting adapter '%s' to isolation mode %s...", desired.Name, plan.isolation.IsolationMode)
		err := r.gw.SetAdapterIsolation(ctx, host, hyperv.IsolationRequest{
			VMName:             vmName,
			AdapterName:        desired.Name,
			Mode:               plan.isolation.IsolationMode,
			DefaultIsolationID: plan.isolation.DefaultIsolationID,
		})
		if err != nil {
			return fmt.Errorf("failed to set isolation mode of '%s': %w", desired.Name, err)
		}
	}
	return nil
}

// vlanEqual compares the fields relevant to the wanted operation mode.
// Stale ids left over under other modes do not matter.
func vlanEqual(current, want hyperv.VlanSettings) bool {
	if !strings.EqualFold(current.OperationMode, want.OperationMode) {
		return false
	}
	switch want.OperationMode {
	case hyperv.VlanModeAccess:
		return current.AccessVlanID == want.AccessVlanID
	case hyperv.VlanModeTrunk:
		if current.NativeVlanID != want.NativeVlanID {
			return false
		}
		return intsEqual(sortedInts(current.AllowedVlanIDs), want.AllowedVlanIDs)
	default:
		return true
	}
}

// isolationEqual compares isolation settings, ignoring the default id
// unless VLAN isolation is wanted.
func isolationEqual(current, want hyperv.IsolationSettings) bool {
	if !strings.EqualFold(current.IsolationMode, want.IsolationMode) {
		return false
	}
	if want.IsolationMode == hyperv.IsolationVlan {
		return current.DefaultIsolationID == want.DefaultIsolationID
	}
	return true
}

func sortedInts(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
