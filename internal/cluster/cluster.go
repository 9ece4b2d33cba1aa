// Package cluster converges a VM's failover-cluster registration:
// resource group existence, failover priority, affinity-rule
// membership and the preferred owner node. It also carries the
// post-registration start decision for clustered VMs, where power
// state is group state.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/hyperv"
)

// Reconciler converges cluster group registration for VMs on
// clustered hosts.
type Reconciler struct {
	gw gateway
}

// NewReconciler creates a Reconciler from a hypervisor gateway.
func NewReconciler(gw gateway) *Reconciler {
	return &Reconciler{gw: gw}
}

// StartOptions carries the operator's start flags into the group
// state decision.
type StartOptions struct {
	// SkipStart leaves offline groups offline.
	SkipStart bool

	// ForceRestart stops and restarts groups that are already online.
	ForceRestart bool
}

// EnsureMembership registers the VM as a cluster resource group when
// it is not one yet, then converges priority, affinity-rule membership
// and the preferred owner. Groups are matched by VM id, never by name.
func (r *Reconciler) EnsureMembership(ctx context.Context, host string, vm *hyperv.VM, desired *v1alpha1.DesiredVM) (*hyperv.ClusterGroup, error) {
	group, err := r.gw.GroupForVM(ctx, host, vm.ID)
	if errors.Is(err, hyperv.ErrNotFound) {
		log.Printf("Registering '%s' in the cluster...", vm.Name)
		group, err = r.gw.AddVMToCluster(ctx, host, vm.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cluster group for '%s': %w", vm.Name, err)
	}

	if p := desired.ClusterPriority; p != nil && group.Priority != *p {
		log.Printf("Setting cluster group '%s' priority to %d...", group.Name, *p)
		if err := r.gw.SetGroupPriority(ctx, host, group.Name, *p); err != nil {
			return nil, fmt.Errorf("failed to set priority of group '%s': %w", group.Name, err)
		}
		group.Priority = *p
	}

	for _, rule := range desired.AffinityRules {
		if err := r.ensureAffinity(ctx, host, rule, group.Name); err != nil {
			return nil, err
		}
	}

	if err := r.ensurePreferredOwner(ctx, host, group.Name); err != nil {
		return nil, err
	}
	return group, nil
}

// EnsureStarted applies the start decision to a registered group.
// Offline groups are started unless SkipStart; online groups are only
// touched when ForceRestart, in which case the cluster picks the node
// to restart on.
func (r *Reconciler) EnsureStarted(ctx context.Context, host string, group *hyperv.ClusterGroup, opts StartOptions) error {
	switch {
	case group.State != hyperv.GroupOnline:
		if opts.SkipStart {
			log.Printf("Skipping start of cluster group '%s'", group.Name)
			return nil
		}
		log.Printf("Starting cluster group '%s'...", group.Name)
		if err := r.gw.StartGroup(ctx, host, group.Name); err != nil {
			return fmt.Errorf("failed to start group '%s': %w", group.Name, err)
		}
		group.State = hyperv.GroupOnline

	case opts.ForceRestart:
		log.Printf("Restarting cluster group '%s'...", group.Name)
		if err := r.gw.StopGroup(ctx, host, group.Name); err != nil {
			return fmt.Errorf("failed to stop group '%s': %w", group.Name, err)
		}
		if err := r.gw.StartGroup(ctx, host, group.Name); err != nil {
			return fmt.Errorf("failed to start group '%s': %w", group.Name, err)
		}
	}
	return nil
}

// RemoveMembership takes the VM's resource group offline and deletes
// its cluster registration. The VM object itself survives. A VM that
// was never registered is not an error.
func (r *Reconciler) RemoveMembership(ctx context.Context, host string, vm *hyperv.VM) error {
	group, err := r.gw.GroupForVM(ctx, host, vm.ID)
	if errors.Is(err, hyperv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve cluster group for '%s': %w", vm.Name, err)
	}

	if group.State == hyperv.GroupOnline {
		log.Printf("Taking cluster group '%s' offline...", group.Name)
		if err := r.gw.StopGroup(ctx, host, group.Name); err != nil {
			return fmt.Errorf("failed to stop group '%s': %w", group.Name, err)
		}
	}
	log.Printf("Removing cluster group '%s'...", group.Name)
	if err := r.gw.RemoveGroup(ctx, host, group.Name); err != nil {
		return fmt.Errorf("failed to remove group '%s': %w", group.Name, err)
	}
	return nil
}

// ensureAffinity adds the group to a named affinity rule. Rules that
// do not exist are skipped with a warning, never created: affinity
// rules describe cluster policy this engine does not own.
func (r *Reconciler) ensureAffinity(ctx context.Context, host, ruleName, groupName string) error {
	rule, err := r.gw.GetAffinityRule(ctx, host, ruleName)
	if errors.Is(err, hyperv.ErrNotFound) {
		log.Printf("Warning: affinity rule '%s' does not exist, skipping", ruleName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read affinity rule '%s': %w", ruleName, err)
	}

	for _, g := range rule.Groups {
		if strings.EqualFold(g, groupName) {
			return nil
		}
	}
	log.Printf("Adding group '%s' to affinity rule '%s'...", groupName, ruleName)
	if err := r.gw.AddToAffinityRule(ctx, host, ruleName, groupName); err != nil {
		return fmt.Errorf("failed to add group '%s' to affinity rule '%s': %w", groupName, ruleName, err)
	}
	return nil
}

// ensurePreferredOwner pins the group's preferred owner list to the
// node it currently runs on. Preference steers placement; every node
// stays eligible for failover.
func (r *Reconciler) ensurePreferredOwner(ctx context.Context, host, groupName string) error {
	node := nodeName(host)

	owners, err := r.gw.PreferredOwners(ctx, host, groupName)
	if err != nil {
		return fmt.Errorf("failed to read preferred owners of '%s': %w", groupName, err)
	}
	if len(owners) == 1 && strings.EqualFold(nodeName(owners[0]), node) {
		return nil
	}

	log.Printf("Setting preferred owner of '%s' to %s...", groupName, node)
	if err := r.gw.SetPreferredOwners(ctx, host, groupName, []string{node}); err != nil {
		return fmt.Errorf("failed to set preferred owner of '%s': %w", groupName, err)
	}
	return nil
}

// nodeName folds a host name to the short form cluster node names use.
func nodeName(host string) string {
	short, _, _ := strings.Cut(host, ".")
	return short
}
