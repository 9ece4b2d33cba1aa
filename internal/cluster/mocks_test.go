package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbweber/croft/internal/hyperv"
)

// mockGateway is a mock implementation of the gateway interface.
type mockGateway struct {
	mu sync.Mutex

	groupForVMFunc      func(host, vmID string) (*hyperv.ClusterGroup, error)
	addVMToClusterFunc  func(host, vmName string) (*hyperv.ClusterGroup, error)
	getAffinityRuleFunc func(host, name string) (*hyperv.AffinityRule, error)
	preferredOwnersFunc func(host, groupName string) ([]string, error)

	setPriorityErr   error
	addToAffinityErr error
	setOwnersErr     error
	startGroupErr    error
	stopGroupErr     error
	removeGroupErr   error

	addVMCalls         []string // VM names
	setPriorityCalls   []string // format: "group=priority"
	addToAffinityCalls []string // format: "rule/group"
	setOwnersCalls     []string // format: "group=owner,owner"
	startGroupCalls    []string // group names
	stopGroupCalls     []string // group names
	removeGroupCalls   []string // group names
}

// newMockGateway creates a mockGateway with sensible defaults:
//   - groupForVMFunc: returns an online group "web-01" on hv-01 with
//     priority 2000
//   - addVMToClusterFunc: returns a newly registered offline group
//   - getAffinityRuleFunc: returns a rule already containing "web-01"
//   - preferredOwnersFunc: returns hv-01 as the sole owner
//   - all mutations succeed
func newMockGateway() *mockGateway {
	return &mockGateway{
		groupForVMFunc: func(host, vmID string) (*hyperv.ClusterGroup, error) {
			return &hyperv.ClusterGroup{
				Name:      "web-01",
				State:     hyperv.GroupOnline,
				OwnerNode: "hv-01",
				Priority:  2000,
			}, nil
		},
		addVMToClusterFunc: func(host, vmName string) (*hyperv.ClusterGroup, error) {
			return &hyperv.ClusterGroup{
				Name:      vmName,
				State:     hyperv.GroupOffline,
				OwnerNode: "hv-01",
				Priority:  2000,
			}, nil
		},
		getAffinityRuleFunc: func(host, name string) (*hyperv.AffinityRule, error) {
			return &hyperv.AffinityRule{Name: name, Groups: hyperv.StringList{"web-01"}}, nil
		},
		preferredOwnersFunc: func(host, groupName string) ([]string, error) {
			return []string{"hv-01"}, nil
		},
	}
}

func (m *mockGateway) GroupForVM(ctx context.Context, host, vmID string) (*hyperv.ClusterGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupForVMFunc(host, vmID)
}

func (m *mockGateway) AddVMToCluster(ctx context.Context, host, vmName string) (*hyperv.ClusterGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addVMCalls = append(m.addVMCalls, vmName)
	return m.addVMToClusterFunc(host, vmName)
}

func (m *mockGateway) SetGroupPriority(ctx context.Context, host, groupName string, priority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPriorityCalls = append(m.setPriorityCalls, fmt.Sprintf("%s=%d", groupName, priority))
	return m.setPriorityErr
}

func (m *mockGateway) GetAffinityRule(ctx context.Context, host, name string) (*hyperv.AffinityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAffinityRuleFunc(host, name)
}

func (m *mockGateway) AddToAffinityRule(ctx context.Context, host, ruleName, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addToAffinityCalls = append(m.addToAffinityCalls, ruleName+"/"+groupName)
	return m.addToAffinityErr
}

func (m *mockGateway) PreferredOwners(ctx context.Context, host, groupName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preferredOwnersFunc(host, groupName)
}

func (m *mockGateway) SetPreferredOwners(ctx context.Context, host, groupName string, owners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	joined := ""
	for i, o := range owners {
		if i > 0 {
			joined += ","
		}
		joined += o
	}
	m.setOwnersCalls = append(m.setOwnersCalls, groupName+"="+joined)
	return m.setOwnersErr
}

func (m *mockGateway) StartGroup(ctx context.Context, host, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startGroupCalls = append(m.startGroupCalls, groupName)
	return m.startGroupErr
}

func (m *mockGateway) StopGroup(ctx context.Context, host, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopGroupCalls = append(m.stopGroupCalls, groupName)
	return m.stopGroupErr
}

func (m *mockGateway) RemoveGroup(ctx context.Context, host, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeGroupCalls = append(m.removeGroupCalls, groupName)
	return m.removeGroupErr
}
