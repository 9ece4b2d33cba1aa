package cluster

import (
	"context"

	"github.com/jbweber/croft/internal/hyperv"
)

// gateway defines the failover-cluster operations needed for group
// reconciliation. This wraps operations from *hyperv.Gateway to allow
// for testing.
//
// In production, this is satisfied by *hyperv.Gateway directly.
// In tests, this is satisfied by mock implementations.
type gateway interface {
	// GroupForVM finds the resource group owning a VM by its unique id
	GroupForVM(ctx context.Context, host, vmID string) (*hyperv.ClusterGroup, error)

	// AddVMToCluster registers a VM as a clustered role
	AddVMToCluster(ctx context.Context, host, vmName string) (*hyperv.ClusterGroup, error)

	// SetGroupPriority sets a group's failover priority
	SetGroupPriority(ctx context.Context, host, groupName string, priority int) error

	// GetAffinityRule looks up an affinity rule by name
	GetAffinityRule(ctx context.Context, host, name string) (*hyperv.AffinityRule, error)

	// AddToAffinityRule adds a group to an existing affinity rule
	AddToAffinityRule(ctx context.Context, host, ruleName, groupName string) error

	// PreferredOwners lists a group's preferred owner nodes in order
	PreferredOwners(ctx context.Context, host, groupName string) ([]string, error)

	// SetPreferredOwners replaces a group's preferred owner list
	SetPreferredOwners(ctx context.Context, host, groupName string, owners []string) error

	// StartGroup brings a cluster group online
	StartGroup(ctx context.Context, host, groupName string) error

	// StopGroup takes a cluster group offline
	StopGroup(ctx context.Context, host, groupName string) error

	// RemoveGroup deletes a group's cluster registration
	RemoveGroup(ctx context.Context, host, groupName string) error
}
