package hyperv

import "encoding/json"

// Power states reported by the platform.
const (
	StateRunning = "Running"
	StateOff     = "Off"
)

// Cluster group states reported by the platform.
const (
	GroupOnline  = "Online"
	GroupOffline = "Offline"
)

// VLAN operation modes reported on an adapter.
const (
	VlanModeUntagged = "Untagged"
	VlanModeAccess   = "Access"
	VlanModeTrunk    = "Trunk"
)

// Isolation modes reported on an adapter.
const (
	IsolationNone = "None"
	IsolationVlan = "Vlan"
)

// VM is the live view of a virtual machine on one host. Host is filled
// in by the caller that located the VM; everything else comes from the
// platform.
type VM struct {
	Name           string `json:"Name"`
	ID             string `json:"Id"`
	State          string `json:"State"`
	Path           string `json:"Path"`
	Generation     int    `json:"Generation"`
	ProcessorCount int    `json:"ProcessorCount"`
	DynamicMemory  bool   `json:"DynamicMemoryEnabled"`
	MemoryStartup  int64  `json:"MemoryStartup"`
	MemoryMinimum  int64  `json:"MemoryMinimum"`
	MemoryMaximum  int64  `json:"MemoryMaximum"`
	Host           string `json:"-"`
}

// IsRunning reports whether the VM is powered on.
func (v *VM) IsRunning() bool { return v.State == StateRunning }

// SystemSettings is the diffable firmware and console state of a VM.
// Which fields matter depends on generation: NumLock is generation 1
// BIOS state, SecureBoot is generation 2 firmware state.
type SystemSettings struct {
	NumLockEnabled    bool `json:"NumLockEnabled"`
	SecureBootEnabled bool `json:"SecureBootEnabled"`
	LockOnDisconnect  bool `json:"LockOnDisconnect"`
}

// SecuritySettings reports virtual TPM state. HasKeyProtector is true
// only when a real key protector is configured, not the placeholder an
// unconfigured VM carries.
type SecuritySettings struct {
	TpmEnabled      bool `json:"TpmEnabled"`
	HasKeyProtector bool `json:"HasKeyProtector"`
}

// VHDInfo describes a virtual disk file on a host.
type VHDInfo struct {
	Path     string `json:"Path"`
	Size     int64  `json:"Size"`
	Attached bool   `json:"Attached"`
}

// DiskDrive is one hard-drive attachment on a VM.
type DiskDrive struct {
	Path               string `json:"Path"`
	ControllerType     string `json:"ControllerType"`
	ControllerNumber   int    `json:"ControllerNumber"`
	ControllerLocation int    `json:"ControllerLocation"`
}

// DvdDrive is one DVD attachment on a VM. Path is empty when no media
// is inserted.
type DvdDrive struct {
	Path               string `json:"Path"`
	ControllerNumber   int    `json:"ControllerNumber"`
	ControllerLocation int    `json:"ControllerLocation"`
}

// NetAdapter is the live view of one network adapter.
type NetAdapter struct {
	Name         string `json:"Name"`
	ID           string `json:"Id"`
	SwitchName   string `json:"SwitchName"`
	MacAddress   string `json:"MacAddress"`
	DynamicMac   bool   `json:"DynamicMacAddressEnabled"`
	DeviceNaming bool   `json:"DeviceNaming"`
	MacSpoofing  bool   `json:"MacAddressSpoofing"`
	AllowTeaming bool   `json:"AllowTeaming"`
	Connected    bool   `json:"Connected"`
}

// VlanSettings is the live VLAN configuration of one adapter.
type VlanSettings struct {
	OperationMode  string  `json:"OperationMode"`
	AccessVlanID   int     `json:"AccessVlanId"`
	NativeVlanID   int     `json:"NativeVlanId"`
	AllowedVlanIDs IntList `json:"AllowedVlanIdList"`
}

// IsolationSettings is the live isolation configuration of one adapter.
type IsolationSettings struct {
	IsolationMode      string `json:"IsolationMode"`
	DefaultIsolationID int    `json:"DefaultIsolationID"`
}

// Snapshot is one checkpoint of a VM.
type Snapshot struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

// ClusterNode is one member of a failover cluster.
type ClusterNode struct {
	Name  string `json:"Name"`
	State string `json:"State"`
}

// ClusterGroup is the cluster resource group owning a VM.
type ClusterGroup struct {
	Name      string `json:"Name"`
	State     string `json:"State"`
	OwnerNode string `json:"OwnerNode"`
	Priority  int    `json:"Priority"`
}

// AffinityRule is a cluster affinity rule and its member groups.
type AffinityRule struct {
	Name   string     `json:"Name"`
	Groups StringList `json:"Groups"`
}

// SharedVolume is one cluster shared volume.
type SharedVolume struct {
	Name      string `json:"Name"`
	OwnerNode string `json:"OwnerNode"`
	Path      string `json:"Path"`
}

// HostInfo carries per-host platform settings the engine reads.
type HostInfo struct {
	Name              string `json:"Name"`
	MacAddressMinimum string `json:"MacAddressMinimum"`
	MacAddressMaximum string `json:"MacAddressMaximum"`
}

// IntList tolerates the platform's JSON collapsing a single-element
// array into a bare value.
type IntList []int

// UnmarshalJSON accepts an array, a single number, or null.
func (l *IntList) UnmarshalJSON(b []byte) error {
	var list []int
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var one int
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = []int{one}
	return nil
}

// StringList tolerates the platform's JSON collapsing a single-element
// array into a bare value.
type StringList []string

// UnmarshalJSON accepts an array, a single string, or null.
func (l *StringList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*l = []string{one}
	return nil
}
