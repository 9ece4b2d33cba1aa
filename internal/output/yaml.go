package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/croft/api/v1alpha1"
)

// YAMLFormatter formats store entries as YAML.
type YAMLFormatter struct{}

// FormatVM formats a single store entry as a one-entry document.
func (f *YAMLFormatter) FormatVM(vm *v1alpha1.DesiredVM) (string, error) {
	return f.FormatVMList([]*v1alpha1.DesiredVM{vm})
}

// FormatVMList formats a list of store entries as a name-keyed
// document, the YAML rendition of the store form.
func (f *YAMLFormatter) FormatVMList(vms []*v1alpha1.DesiredVM) (string, error) {
	if len(vms) == 0 {
		return "{}\n", nil
	}

	data, err := yaml.Marshal(keyed(vms))
	if err != nil {
		return "", fmt.Errorf("failed to marshal store entries to YAML: %w", err)
	}
	return string(data), nil
}
