package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

var groupFields = []string{
	"Name",
	"State=[string]$_.State",
	"OwnerNode=[string]$_.OwnerNode",
	"Priority=[int]$_.Priority",
}

// ClusterName reports the failover cluster a host belongs to, or empty
// for a standalone host.
func (g *Gateway) ClusterName(ctx context.Context, host string) (string, error) {
	cmd := silently(broker.New("Get-Cluster")).Project("Name").JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return "", nil
	}
	rows, err := decodeList[struct {
		Name string `json:"Name"`
	}](res)
	if err != nil {
		return "", err
	}
	return rows[0].Name, nil
}

// ClusterNodes lists the members of the host's cluster.
func (g *Gateway) ClusterNodes(ctx context.Context, host string) ([]ClusterNode, error) {
	cmd := strictly(broker.New("Get-ClusterNode")).
		Project("Name", "State=[string]$_.State").JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	return decodeList[ClusterNode](res)
}

// GroupForVM finds the cluster resource group owning a VM by its
// unique id.
func (g *Gateway) GroupForVM(ctx context.Context, host, vmID string) (*ClusterGroup, error) {
	script := fmt.Sprintf(
		"Get-ClusterResource -ErrorAction SilentlyContinue | Where-Object { $_.ResourceType -eq 'Virtual Machine' } | Where-Object { [string]($_ | Get-ClusterParameter -Name VmID).Value -eq %s } | ForEach-Object { $_.OwnerGroup } | ForEach-Object { [pscustomobject]@{ Name = $_.Name; State = [string]$_.State; OwnerNode = [string]$_.OwnerNode; Priority = [int]$_.Priority } } | ConvertTo-Json -Compress",
		broker.Quote(vmID))

	res, err := g.lookup(ctx, host, broker.Script(script), fmt.Sprintf("cluster group for VM id %s", vmID))
	if err != nil {
		return nil, err
	}
	groups, err := decodeList[ClusterGroup](res)
	if err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// AddVMToCluster registers a VM as a clustered role and returns the
// new group.
func (g *Gateway) AddVMToCluster(ctx context.Context, host, vmName string) (*ClusterGroup, error) {
	cmd := strictly(broker.New("Add-ClusterVirtualMachineRole").Param("VMName", vmName)).
		Project(groupFields...).JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("cluster role for VM %q", vmName))
	if err != nil {
		return nil, err
	}
	groups, err := decodeList[ClusterGroup](res)
	if err != nil {
		return nil, err
	}
	return &groups[0], nil
}

// SetGroupPriority sets a group's failover priority.
func (g *Gateway) SetGroupPriority(ctx context.Context, host, groupName string, priority int) error {
	script := fmt.Sprintf("(Get-ClusterGroup -Name %s -ErrorAction Stop).Priority = %d",
		broker.Quote(groupName), priority)
	return g.mutate(ctx, host, broker.Script(script))
}

// GetAffinityRule looks up an affinity rule by name.
func (g *Gateway) GetAffinityRule(ctx context.Context, host, name string) (*AffinityRule, error) {
	cmd := silently(broker.New("Get-ClusterAffinityRule").Param("Name", name)).
		Project("Name", "Groups=[string[]]$_.Groups").JSON(2)

	res, err := g.lookup(ctx, host, cmd, fmt.Sprintf("affinity rule %q", name))
	if err != nil {
		return nil, err
	}
	rules, err := decodeList[AffinityRule](res)
	if err != nil {
		return nil, err
	}
	return &rules[0], nil
}

// AddToAffinityRule adds a group to an existing affinity rule.
func (g *Gateway) AddToAffinityRule(ctx context.Context, host, ruleName, groupName string) error {
	cmd := strictly(broker.New("Add-ClusterGroupToAffinityRule").
		Param("Name", ruleName).
		Param("Groups", groupName))
	return g.mutate(ctx, host, cmd)
}

// PreferredOwners lists a group's preferred owner nodes in order.
func (g *Gateway) PreferredOwners(ctx context.Context, host, groupName string) ([]string, error) {
	script := fmt.Sprintf(
		"[pscustomobject]@{ Owners = [string[]]((Get-ClusterOwnerNode -Group %s -ErrorAction Stop).OwnerNodes | ForEach-Object { [string]$_ }) } | ConvertTo-Json -Compress",
		broker.Quote(groupName))

	res, err := g.exec.Invoke(ctx, host, broker.Script(script))
	if err != nil {
		return nil, err
	}
	var row struct {
		Owners StringList `json:"Owners"`
	}
	if err := res.Decode(&row); err != nil {
		return nil, err
	}
	return row.Owners, nil
}

// SetPreferredOwners replaces a group's preferred owner list.
func (g *Gateway) SetPreferredOwners(ctx context.Context, host, groupName string, owners []string) error {
	cmd := strictly(broker.New("Set-ClusterOwnerNode").
		Param("Group", groupName).
		Param("Owners", owners))
	return g.mutate(ctx, host, cmd)
}

// StartGroup brings a cluster group online.
func (g *Gateway) StartGroup(ctx context.Context, host, groupName string) error {
	cmd := strictly(broker.New("Start-ClusterGroup").Param("Name", groupName)).
		PipeRaw("Out-Null")
	return g.mutate(ctx, host, cmd)
}

// StopGroup takes a cluster group offline.
func (g *Gateway) StopGroup(ctx context.Context, host, groupName string) error {
	cmd := strictly(broker.New("Stop-ClusterGroup").Param("Name", groupName)).
		PipeRaw("Out-Null")
	return g.mutate(ctx, host, cmd)
}

// RemoveGroup deletes a cluster group and its resources. The VM object
// itself survives; only the cluster registration goes away.
func (g *Gateway) RemoveGroup(ctx context.Context, host, groupName string) error {
	cmd := strictly(broker.New("Remove-ClusterGroup").
		Param("Name", groupName).
		Switch("RemoveResources").
		Switch("Force"))
	return g.mutate(ctx, host, cmd)
}

// SharedVolumes lists the cluster shared volumes with their mount
// paths.
func (g *Gateway) SharedVolumes(ctx context.Context, host string) ([]SharedVolume, error) {
	cmd := silently(broker.New("Get-ClusterSharedVolume")).
		Project("Name",
			"OwnerNode=[string]$_.OwnerNode",
			"Path=[string]$_.SharedVolumeInfo.FriendlyVolumeName").
		JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[SharedVolume](res)
}

// MoveSharedVolume transfers ownership of a shared volume to a node.
func (g *Gateway) MoveSharedVolume(ctx context.Context, host, volumeName, targetNode string) error {
	cmd := strictly(broker.New("Move-ClusterSharedVolume").
		Param("Name", volumeName).
		Param("Node", targetNode)).
		PipeRaw("Out-Null")
	return g.mutate(ctx, host, cmd)
}
