// Package hyperv is the typed gateway to a Hyper-V host and, when the
// host is clustered, its failover cluster. Every operation renders one
// PowerShell pipeline through the broker and decodes the JSON the host
// returns into plain structs.
//
// Lookups run with ErrorAction SilentlyContinue and translate empty
// output into ErrNotFound; mutations run with ErrorAction Stop so any
// platform complaint surfaces as a *broker.CommandError.
package hyperv
