package main

import (
	"os"
	"path/filepath"

	"github.com/jbweber/croft/internal/broker"
	"github.com/jbweber/croft/internal/cluster"
	"github.com/jbweber/croft/internal/compute"
	"github.com/jbweber/croft/internal/config"
	"github.com/jbweber/croft/internal/confirm"
	"github.com/jbweber/croft/internal/dhcp"
	"github.com/jbweber/croft/internal/directory"
	"github.com/jbweber/croft/internal/disks"
	"github.com/jbweber/croft/internal/dns"
	"github.com/jbweber/croft/internal/hyperv"
	"github.com/jbweber/croft/internal/macpool"
	"github.com/jbweber/croft/internal/network"
	"github.com/jbweber/croft/internal/osdeploy"
	"github.com/jbweber/croft/internal/sccm"
	"github.com/jbweber/croft/internal/topology"
	"github.com/jbweber/croft/internal/transfer"
	"github.com/jbweber/croft/internal/vm"
	"github.com/jbweber/croft/internal/wds"
)

// buildEngine wires the reconciliation engine from the configuration.
// The returned cleanup tears down every broker session the run opened.
func buildEngine(cfg *config.Config, assumeYes bool) (*vm.Engine, func()) {
	exec := broker.NewExecutionContext("", cfg.CredentialSource())
	gw := hyperv.New(exec)

	var policy confirm.Policy
	if assumeYes {
		policy = confirm.Approve{}
	} else {
		policy = confirm.NewInteractive(os.Stdin, os.Stderr)
	}

	joinUser, joinPassword := cfg.JoinCredential()
	dispatcher := osdeploy.NewDispatcher(
		gw,
		wds.New(exec),
		sccm.New(exec, cfg.SiteCode()),
		transfer.New(cfg.SMBCredential()),
		cfg.RetryPolicy(),
		osdeploy.Credentials{
			AdminPassword: cfg.AdminPassword(),
			JoinUsername:  joinUser,
			JoinPassword:  joinPassword,
		},
	)

	dhcpGw := dhcp.New(exec)
	dnsServer, dnsZone := cfg.DNSTarget()

	engine := vm.NewEngine(vm.Deps{
		Gateway:  gw,
		Topology: topology.NewResolver(gw),
		Compute:  compute.NewReconciler(gw),
		Disks:    disks.NewReconciler(gw, policy),
		Network:  network.NewReconciler(gw, dhcpGw, macpool.NewStore(filepath.Join(cfg.StateDir, "macpool"))),
		Cluster:  cluster.NewReconciler(gw),
		Deploy:   dispatcher,

		DHCP:      dhcpGw,
		DNS:       dns.New(exec),
		Directory: directory.New(exec),
		Cleanup: vm.NetworkCleanup{
			DNSServer:       dnsServer,
			DNSZone:         dnsZone,
			DirectoryServer: cfg.DirectoryServer(),
		},

		Confirm:     policy,
		Wait:        cfg.RetryPolicy(),
		DefaultHost: cfg.DefaultHost,
	})

	cleanup := func() { _ = exec.Close() }
	return engine, cleanup
}
