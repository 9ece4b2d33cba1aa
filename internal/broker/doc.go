// Package broker executes PowerShell pipelines on hypervisor and
// infrastructure hosts. It decides whether a host is the local machine
// or a remote one, caches one session per remote host, and renders
// typed commands into identical pipeline text regardless of where they
// run.
//
// The broker knows nothing about virtual machines. Higher layers build
// commands with New/Script and hand them to an ExecutionContext; the
// broker returns raw stdout for the caller to decode.
package broker
