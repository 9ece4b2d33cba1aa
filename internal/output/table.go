package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jbweber/croft/api/v1alpha1"
)

// TableFormatter formats store entries as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatVM formats a single store entry as a table row.
func (f *TableFormatter) FormatVM(vm *v1alpha1.DesiredVM) (string, error) {
	return f.FormatVMList([]*v1alpha1.DesiredVM{vm})
}

// FormatVMList formats a list of store entries as a table.
func (f *TableFormatter) FormatVMList(vms []*v1alpha1.DesiredVM) (string, error) {
	if len(vms) == 0 {
		return "No VMs in store\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tHOST\tCPU\tMEMORY\tGEN\tDISKS\tADAPTERS\tDEPLOY")
	}

	for _, vm := range vms {
		host := vm.Host
		if host == "" {
			host = "-"
		}

		memory := formatBytes(vm.Memory.StartupBytes)
		if vm.Memory.Dynamic() {
			lo, hi := vm.Memory.EffectiveBounds()
			memory = fmt.Sprintf("%s (%s-%s)", memory, formatBytes(lo), formatBytes(hi))
		}

		deploy := "-"
		if vm.OSDeployment != nil {
			deploy = string(vm.OSDeployment.Method)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
			vm.Name, host, vm.ProcessorCount, memory, vm.Generation,
			len(vm.Disks), len(vm.NetworkAdapters), deploy)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatBytes renders a byte count in the binary unit operators write
// store entries in.
func formatBytes(b int64) string {
	const (
		mib = int64(1) << 20
		gib = int64(1) << 30
		tib = int64(1) << 40
	)
	switch {
	case b >= tib && b%tib == 0:
		return fmt.Sprintf("%dTiB", b/tib)
	case b >= gib && b%gib == 0:
		return fmt.Sprintf("%dGiB", b/gib)
	case b >= mib && b%mib == 0:
		return fmt.Sprintf("%dMiB", b/mib)
	default:
		return fmt.Sprintf("%dB", b)
	}
}
