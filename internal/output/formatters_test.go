package output

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/croft/api/v1alpha1"
)

func sampleVMs() []*v1alpha1.DesiredVM {
	min := int64(1 << 30)
	max := int64(8 << 30)
	return []*v1alpha1.DesiredVM{
		{
			Name:           "web-01",
			Host:           "hv-01",
			Path:           `D:\hyperv`,
			ProcessorCount: 2,
			Generation:     2,
			Memory: v1alpha1.MemorySpec{
				StartupBytes: 2 << 30,
				MinimumBytes: &min,
				MaximumBytes: &max,
			},
			Disks: []v1alpha1.DesiredDisk{
				{Path: `D:\hyperv\web-01\boot.vhdx`, SizeBytes: 40 << 30},
			},
			NetworkAdapters: []v1alpha1.DesiredNetworkAdapter{
				{Name: "lan"}, {Name: "backup"},
			},
			OSDeployment: &v1alpha1.DesiredOSDeployment{
				Method: v1alpha1.MethodISO,
				ISO:    &v1alpha1.ISODeployment{FilePath: `C:\isos\ws2022.iso`},
			},
		},
		{
			Name:           "db-01",
			Path:           `C:\ClusterStorage\Volume1`,
			ProcessorCount: 8,
			Generation:     2,
			Memory:         v1alpha1.MemorySpec{StartupBytes: 16 << 30},
		},
	}
}

func TestTableFormatter(t *testing.T) {
	f := &TableFormatter{}
	out, err := f.FormatVMList(sampleVMs())
	if err != nil {
		t.Fatalf("FormatVMList() unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("Expected a header row, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "web-01") || !strings.Contains(lines[1], "ISO") {
		t.Errorf("Expected the web-01 row with its method, got %q", lines[1])
	}
	// Dynamic memory shows its bounds.
	if !strings.Contains(lines[1], "2GiB (1GiB-8GiB)") {
		t.Errorf("Expected dynamic memory bounds, got %q", lines[1])
	}
	// No host and no deployment render as dashes.
	if !strings.Contains(lines[2], "-") || !strings.Contains(lines[2], "16GiB") {
		t.Errorf("Expected the db-01 row with placeholders, got %q", lines[2])
	}
}

func TestTableFormatterNoHeaders(t *testing.T) {
	f := &TableFormatter{NoHeaders: true}
	out, err := f.FormatVMList(sampleVMs())
	if err != nil {
		t.Fatalf("FormatVMList() unexpected error: %v", err)
	}
	if strings.Contains(out, "NAME") {
		t.Errorf("Expected no header row, got:\n%s", out)
	}
}

func TestTableFormatterEmpty(t *testing.T) {
	f := &TableFormatter{}
	out, err := f.FormatVMList(nil)
	if err != nil {
		t.Fatalf("FormatVMList() unexpected error: %v", err)
	}
	if out != "No VMs in store\n" {
		t.Errorf("Expected the empty message, got %q", out)
	}
}

func TestJSONFormatterRoundTrips(t *testing.T) {
	f := &JSONFormatter{}
	out, err := f.FormatVMList(sampleVMs())
	if err != nil {
		t.Fatalf("FormatVMList() unexpected error: %v", err)
	}

	// Output is the store document form: name-keyed entries.
	var doc map[string]*v1alpha1.DesiredVM
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(doc))
	}
	web, ok := doc["web-01"]
	if !ok {
		t.Fatal("Expected a web-01 key")
	}
	if web.ProcessorCount != 2 || web.OSDeployment == nil || web.OSDeployment.Method != v1alpha1.MethodISO {
		t.Errorf("web-01 entry did not round-trip: %+v", web)
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := &YAMLFormatter{}
	out, err := f.FormatVMList(sampleVMs())
	if err != nil {
		t.Fatalf("FormatVMList() unexpected error: %v", err)
	}

	var doc map[string]map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(doc))
	}
	if doc["web-01"]["host"] != "hv-01" {
		t.Errorf("Expected web-01 host, got %v", doc["web-01"]["host"])
	}
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []Format{FormatTable, FormatYAML, FormatJSON} {
		if _, err := NewFormatter(Options{Format: format}); err != nil {
			t.Errorf("NewFormatter(%s) unexpected error: %v", format, err)
		}
	}
	if _, err := NewFormatter(Options{Format: "xml"}); err == nil {
		t.Error("NewFormatter(xml) expected an error")
	}
}

func TestValidateFormat(t *testing.T) {
	for _, format := range []string{"table", "yaml", "json"} {
		if err := ValidateFormat(format); err != nil {
			t.Errorf("ValidateFormat(%s) unexpected error: %v", format, err)
		}
	}
	if err := ValidateFormat("csv"); err == nil {
		t.Error("ValidateFormat(csv) expected an error")
	}
}
