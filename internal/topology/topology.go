// Package topology locates VMs across standalone hosts and failover
// clusters. Given a candidate host it determines cluster membership,
// fans a VM search out across member nodes, and refuses to guess when
// more than one node claims the same VM name.
package topology

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jbweber/croft/internal/hyperv"
)

// ErrAmbiguous indicates a VM name matched on more than one host.
// Never auto-resolved; an operator has to de-duplicate by hand.
var ErrAmbiguous = errors.New("multiple VMs matched")

// Gateway is the slice of the hypervisor gateway the resolver needs.
type Gateway interface {
	ClusterName(ctx context.Context, host string) (string, error)
	ClusterNodes(ctx context.Context, host string) ([]hyperv.ClusterNode, error)
	FindVM(ctx context.Context, host, name string) (*hyperv.VM, error)
}

// Topology describes what a candidate host turned out to be. A
// standalone host has an empty ClusterName and itself as the only
// search node.
type Topology struct {
	ClusterName string
	Nodes       []string
}

// Clustered reports whether the host belongs to a failover cluster.
func (t *Topology) Clustered() bool { return t.ClusterName != "" }

// Resolver discovers topology and locates VMs. Derived per invocation
// and never cached; cluster membership can change between runs.
type Resolver struct {
	gw Gateway
}

// NewResolver returns a Resolver searching through gw.
func NewResolver(gw Gateway) *Resolver {
	return &Resolver{gw: gw}
}

// Discover determines whether host stands alone or belongs to a
// cluster, and which nodes are worth searching. Nodes that are not up
// are skipped with a warning rather than failing the whole resolve.
func (r *Resolver) Discover(ctx context.Context, host string) (*Topology, error) {
	clusterName, err := r.gw.ClusterName(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("determining cluster membership of %s: %w", host, err)
	}
	if clusterName == "" {
		return &Topology{Nodes: []string{host}}, nil
	}

	nodes, err := r.gw.ClusterNodes(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("enumerating nodes of cluster %s: %w", clusterName, err)
	}

	topo := &Topology{ClusterName: clusterName}
	for _, n := range nodes {
		if n.State != "Up" {
			log.Printf("Warning: skipping cluster node %s in state %s", n.Name, n.State)
			continue
		}
		topo.Nodes = append(topo.Nodes, n.Name)
	}
	if len(topo.Nodes) == 0 {
		return nil, fmt.Errorf("cluster %s has no nodes available to search", clusterName)
	}
	return topo, nil
}

// Resolve searches every node of topo for a VM by name. Zero matches
// return hyperv.ErrNotFound; exactly one returns the VM homed to the
// node that actually holds it; several return ErrAmbiguous without
// having mutated anything.
func (r *Resolver) Resolve(ctx context.Context, topo *Topology, vmName string) (*hyperv.VM, error) {
	var matches []*hyperv.VM
	for _, node := range topo.Nodes {
		vm, err := r.gw.FindVM(ctx, node, vmName)
		if err != nil {
			if errors.Is(err, hyperv.ErrNotFound) {
				continue
			}
			return nil, err
		}
		matches = append(matches, vm)
	}

	switch len(matches) {
	case 0:
		if topo.Clustered() {
			return nil, fmt.Errorf("VM %q in cluster %s: %w", vmName, topo.ClusterName, hyperv.ErrNotFound)
		}
		return nil, fmt.Errorf("VM %q on %s: %w", vmName, topo.Nodes[0], hyperv.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		hosts := make([]string, 0, len(matches))
		for _, m := range matches {
			hosts = append(hosts, m.Host)
		}
		return nil, fmt.Errorf("VM %q found on %s: %w", vmName, strings.Join(hosts, ", "), ErrAmbiguous)
	}
}
