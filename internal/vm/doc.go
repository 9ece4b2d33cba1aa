// Package vm orchestrates full provisioning and decommission passes.
//
// This package ties the low-level reconcilers (topology, compute, disks,
// network, cluster, osdeploy) together into the two high-level
// operations operators invoke:
//   - Provision: converge a set of VMs onto their desired records
//   - Decommission: tear a set of VMs down, reversing provisioning
//
// Error Handling:
//
// Passes run sequentially, one VM at a time. A failure aborts that VM's
// pass and the engine moves on to the next name; the run report carries
// every outcome so the caller can fail the process when any pass did.
// Non-fatal findings surface as warnings on the pass instead of
// aborting it.
//
// Context Support:
//
// All operations accept a context.Context for cancellation support. A
// cancelled context aborts the current pass at its next remote call.
package vm
