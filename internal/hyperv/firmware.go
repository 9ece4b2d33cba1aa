package hyperv

import (
	"context"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// GetSystemSettings reads the diffable firmware and console settings
// for a VM. The script reads the generation-appropriate firmware
// source; the other generation's field stays at its zero value.
func (g *Gateway) GetSystemSettings(ctx context.Context, host, name string, generation int) (*SystemSettings, error) {
	quoted := broker.Quote(name)

	var firmware string
	if generation == 1 {
		firmware = fmt.Sprintf("$numlock = (Get-VMBios -VMName %s).NumLockEnabled; $secure = $false", quoted)
	} else {
		firmware = fmt.Sprintf("$numlock = $false; $secure = ((Get-VMFirmware -VMName %s).SecureBoot -eq 'On')", quoted)
	}

	script := fmt.Sprintf(
		"%s; $vm = Get-VM -Name %s; [pscustomobject]@{ NumLockEnabled = [bool]$numlock; SecureBootEnabled = [bool]$secure; LockOnDisconnect = ($vm.LockOnDisconnect -eq 'On') } | ConvertTo-Json -Compress",
		firmware, quoted)

	res, err := g.lookup(ctx, host, broker.Script(script), fmt.Sprintf("system settings of VM %q", name))
	if err != nil {
		return nil, err
	}
	var settings SystemSettings
	if err := res.Decode(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ApplySystemSettings pushes the whole settings object back. Callers
// diff first; this always writes every generation-relevant field.
func (g *Gateway) ApplySystemSettings(ctx context.Context, host, name string, generation int, s SystemSettings) error {
	quoted := broker.Quote(name)

	var parts []string
	if generation == 1 {
		numlock := "-EnableNumLock"
		if !s.NumLockEnabled {
			numlock = "-DisableNumLock"
		}
		parts = append(parts, fmt.Sprintf("Set-VMBios -VMName %s %s -ErrorAction Stop", quoted, numlock))
	} else {
		secure := "On"
		if !s.SecureBootEnabled {
			secure = "Off"
		}
		parts = append(parts, fmt.Sprintf("Set-VMFirmware -VMName %s -EnableSecureBoot %s -ErrorAction Stop", quoted, secure))
	}

	lock := "On"
	if !s.LockOnDisconnect {
		lock = "Off"
	}
	parts = append(parts, fmt.Sprintf("Set-VM -Name %s -LockOnDisconnect %s -ErrorAction Stop", quoted, lock))

	script := parts[0] + "; " + parts[1]
	return g.mutate(ctx, host, broker.Script(script))
}

// GetSecuritySettings reads virtual TPM state. A protector blob longer
// than four bytes is a real key protector; anything shorter is the
// placeholder present on unconfigured VMs.
func (g *Gateway) GetSecuritySettings(ctx context.Context, host, name string) (*SecuritySettings, error) {
	quoted := broker.Quote(name)
	script := fmt.Sprintf(
		"$s = Get-VMSecurity -VMName %s; $kp = Get-VMKeyProtector -VMName %s -ErrorAction SilentlyContinue; [pscustomobject]@{ TpmEnabled = [bool]$s.TpmEnabled; HasKeyProtector = ($null -ne $kp -and $kp.Length -gt 4) } | ConvertTo-Json -Compress",
		quoted, quoted)

	res, err := g.lookup(ctx, host, broker.Script(script), fmt.Sprintf("security settings of VM %q", name))
	if err != nil {
		return nil, err
	}
	var settings SecuritySettings
	if err := res.Decode(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SetLocalKeyProtector installs a new local key protector on a VM.
func (g *Gateway) SetLocalKeyProtector(ctx context.Context, host, name string) error {
	cmd := strictly(broker.New("Set-VMKeyProtector").
		Param("VMName", name).
		Switch("NewLocalKeyProtector"))
	return g.mutate(ctx, host, cmd)
}

// EnableTPM turns the virtual TPM on. Requires a key protector.
func (g *Gateway) EnableTPM(ctx context.Context, host, name string) error {
	cmd := strictly(broker.New("Enable-VMTPM").Param("VMName", name))
	return g.mutate(ctx, host, cmd)
}
