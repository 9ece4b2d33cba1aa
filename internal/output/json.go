package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/croft/api/v1alpha1"
)

// JSONFormatter formats store entries as JSON.
type JSONFormatter struct{}

// FormatVM formats a single store entry as a one-entry store document.
func (f *JSONFormatter) FormatVM(vm *v1alpha1.DesiredVM) (string, error) {
	return f.FormatVMList([]*v1alpha1.DesiredVM{vm})
}

// FormatVMList formats a list of store entries as a name-keyed store
// document. Keys marshal in sorted order, so the output is stable.
func (f *JSONFormatter) FormatVMList(vms []*v1alpha1.DesiredVM) (string, error) {
	if len(vms) == 0 {
		return "{}\n", nil
	}

	data, err := json.MarshalIndent(keyed(vms), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal store entries to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
