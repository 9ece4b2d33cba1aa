package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// Snapshots lists the checkpoints of a VM.
func (g *Gateway) Snapshots(ctx context.Context, host, vmName string) ([]Snapshot, error) {
	cmd := silently(broker.New("Get-VMSnapshot").Param("VMName", vmName)).
		Project("Name", "Id=[string]$_.Id").JSON(2)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[Snapshot](res)
}

// RemoveAllSnapshots deletes every checkpoint of a VM, children
// included. The platform merges the differencing disks afterwards;
// callers wait on MergeInProgress before touching the disk files.
func (g *Gateway) RemoveAllSnapshots(ctx context.Context, host, vmName string) error {
	cmd := silently(broker.New("Get-VMSnapshot").Param("VMName", vmName)).
		Pipe("Remove-VMSnapshot").Param("ErrorAction", broker.Literal("Stop"))
	return g.mutate(ctx, host, cmd)
}

// MergeInProgress reports whether any attached disk is still a
// differencing file, which is how a pending post-snapshot merge shows
// up.
func (g *Gateway) MergeInProgress(ctx context.Context, host, vmName string) (bool, error) {
	script := fmt.Sprintf(
		"[pscustomobject]@{ Merging = [bool](Get-VMHardDiskDrive -VMName %s -ErrorAction SilentlyContinue | Where-Object { $_.Path -like '*.avhdx' }) } | ConvertTo-Json -Compress",
		broker.Quote(vmName))

	res, err := g.exec.Invoke(ctx, host, broker.Script(script))
	if err != nil {
		return false, err
	}
	var row struct {
		Merging bool `json:"Merging"`
	}
	if err := res.Decode(&row); err != nil {
		return false, err
	}
	return row.Merging, nil
}
