package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbweber/croft/api/v1alpha1"
)

const sampleStore = `{
  "vm1": {
    "host": "hv1",
    "path": "D:\\Hyper-V",
    "processorCount": 4,
    "memory": {"startupBytes": 4294967296},
    "disks": [
      {"path": "D:\\Hyper-V\\vm1\\vm1.vhdx", "sizeBytes": 107374182400}
    ],
    "networkAdapters": [
      {"name": "eth0", "switchName": "external"}
    ],
    "osDeployment": {"method": "ISO", "filePath": "C:\\isos\\ws2022.iso"}
  },
  "VM2": {
    "path": "C:\\ClusterStorage\\Volume1",
    "processorCount": 2,
    "memory": {"startupBytes": 2147483648, "minimumBytes": 1073741824, "maximumBytes": 8589934592},
    "generation": 2
  }
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleStore))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", s.Len())
	}

	vm, err := s.Get("vm1")
	if err != nil {
		t.Fatalf("Get(vm1) unexpected error: %v", err)
	}
	if vm.Name != "vm1" {
		t.Errorf("Expected name filled from key, got %q", vm.Name)
	}
	if vm.Host != "hv1" {
		t.Errorf("Expected host 'hv1', got %q", vm.Host)
	}
	if vm.Generation != 2 {
		t.Errorf("Expected generation defaulted to 2, got %d", vm.Generation)
	}
	if len(vm.Disks) != 1 || vm.Disks[0].SizeBytes != 100<<30 {
		t.Errorf("Unexpected disks: %+v", vm.Disks)
	}
	if vm.OSDeployment == nil || vm.OSDeployment.Method != v1alpha1.MethodISO {
		t.Errorf("Unexpected deployment: %+v", vm.OSDeployment)
	}
	if vm.NetworkAdapters[0].VLANMode != v1alpha1.VLANModeUntagged {
		t.Errorf("Expected VLAN mode defaulted to Untagged, got %q", vm.NetworkAdapters[0].VLANMode)
	}
}

func TestParseNormalizesKeys(t *testing.T) {
	s, err := Parse([]byte(sampleStore))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	// "VM2" is stored and found lowercase.
	vm, err := s.Get("Vm2")
	if err != nil {
		t.Fatalf("Get(Vm2) unexpected error: %v", err)
	}
	if vm.Name != "vm2" {
		t.Errorf("Expected lowercase name 'vm2', got %q", vm.Name)
	}

	if got := s.Names(); len(got) != 2 || got[0] != "vm1" || got[1] != "vm2" {
		t.Errorf("Names() = %v, want [vm1 vm2]", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "malformed json",
			input:   `{"vm1": `,
			wantErr: "failed to parse JSON",
		},
		{
			name:    "null entry",
			input:   `{"vm1": null}`,
			wantErr: "entry is null",
		},
		{
			name:    "invalid entry",
			input:   `{"vm1": {"path": "D:\\vms", "processorCount": 0, "memory": {"startupBytes": 1}}}`,
			wantErr: `vm "vm1"`,
		},
		{
			name: "duplicate names by case",
			input: `{
				"vm1": {"path": "D:\\vms", "processorCount": 1, "memory": {"startupBytes": 1073741824}},
				"VM1": {"path": "D:\\vms", "processorCount": 1, "memory": {"startupBytes": 1073741824}}
			}`,
			wantErr: "duplicate entry",
		},
		{
			name:    "unknown deployment method",
			input:   `{"vm1": {"path": "D:\\vms", "processorCount": 1, "memory": {"startupBytes": 1073741824}, "osDeployment": {"method": "PXE"}}}`,
			wantErr: "unknown method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	s, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	_, err = s.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, err := Parse([]byte(sampleStore))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	first, _ := s.Get("vm1")
	first.NetworkAdapters[0].SwitchName = "changed"

	second, _ := s.Get("vm1")
	if second.NetworkAdapters[0].SwitchName != "external" {
		t.Error("Get() returned shared state between calls")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")
	if err := os.WriteFile(path, []byte(sampleStore), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", s.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read store") {
		t.Errorf("Load() error = %q, want read failure", err)
	}
}
