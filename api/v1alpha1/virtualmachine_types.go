// Package v1alpha1 defines the schema of the declarative VM store: one
// DesiredVM entry per machine, keyed by VM name in a single JSON document.
//
// The reconciliation engine treats these types as read-only input. Editing
// the store is the job of external tooling; croft only loads, normalizes,
// and validates it.
package v1alpha1

// VLANMode selects the tagging discipline applied to an adapter's traffic.
type VLANMode string

const (
	// VLANModeUntagged passes traffic without any VLAN tag.
	VLANModeUntagged VLANMode = "Untagged"

	// VLANModeAccess tags all traffic with a single VLAN id.
	VLANModeAccess VLANMode = "Access"

	// VLANModeTrunk allows a list of VLAN ids with an optional native id
	// for untagged frames.
	VLANModeTrunk VLANMode = "Trunk"

	// VLANModeIsolation places the adapter in VLAN-based isolation with a
	// default isolation id, allowing untagged traffic through.
	VLANModeIsolation VLANMode = "Isolation"
)

// DeploymentMethod discriminates the OS provisioning strategy for a VM.
type DeploymentMethod string

const (
	// MethodISO attaches a boot image to the VM's DVD drive.
	MethodISO DeploymentMethod = "ISO"

	// MethodWDS registers the VM as a network-boot client on a WDS server.
	MethodWDS DeploymentMethod = "WDS"

	// MethodSCCM imports the VM as a device record and enrolls it into
	// deployment collections.
	MethodSCCM DeploymentMethod = "SCCM"

	// MethodVHD copies a prepared disk image over the VM's boot disk and
	// injects an answer file.
	MethodVHD DeploymentMethod = "VHD"
)

// DesiredVM is one machine entry in the declarative store.
//
// The store document is a JSON object whose top-level keys are VM names;
// Name is filled in by the loader from the key and is not serialized with
// the entry itself.
type DesiredVM struct {
	// Name is the VM name, which doubles as the guest computer name.
	Name string `json:"-" yaml:"-"`

	// Host is the target host for placement. Empty means "locate the VM
	// wherever it already runs, do not place it anywhere new".
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Path is the base directory for the VM's configuration files on the
	// host, e.g. "D:\Hyper-V" or "C:\ClusterStorage\Volume1".
	Path string `json:"path" yaml:"path"`

	// ProcessorCount is the number of virtual processors.
	ProcessorCount int `json:"processorCount" yaml:"processorCount"`

	// SMTDisabled limits the VM to one hardware thread per core.
	SMTDisabled bool `json:"smtDisabled,omitempty" yaml:"smtDisabled,omitempty"`

	// Memory is the memory policy, static or dynamic.
	Memory MemorySpec `json:"memory" yaml:"memory"`

	// Generation is the VM generation, 1 or 2. Defaults to 2.
	Generation int `json:"generation,omitempty" yaml:"generation,omitempty"`

	// TPMEnabled requests a virtual TPM. Generation 2 only.
	TPMEnabled bool `json:"tpmEnabled,omitempty" yaml:"tpmEnabled,omitempty"`

	// DoNotCluster keeps the VM out of the failover cluster even when its
	// host is a cluster member.
	DoNotCluster bool `json:"doNotCluster,omitempty" yaml:"doNotCluster,omitempty"`

	// ClusterPriority is the failover priority of the VM's cluster group.
	// Valid values: 0 (no auto start), 1000 (low), 2000 (medium),
	// 3000 (high). Nil leaves the current priority alone.
	ClusterPriority *int `json:"clusterPriority,omitempty" yaml:"clusterPriority,omitempty"`

	// AffinityRules names the cluster affinity rules the VM's group should
	// belong to. Rules that do not exist on the cluster are skipped with a
	// warning, never created.
	AffinityRules []string `json:"affinityRules,omitempty" yaml:"affinityRules,omitempty"`

	// Disks are the virtual disks to attach, in order.
	Disks []DesiredDisk `json:"disks,omitempty" yaml:"disks,omitempty"`

	// NetworkAdapters are the network adapters to configure, in order.
	NetworkAdapters []DesiredNetworkAdapter `json:"networkAdapters,omitempty" yaml:"networkAdapters,omitempty"`

	// OSDeployment selects how the guest OS gets installed. Nil means the
	// engine only builds the hardware.
	OSDeployment *DesiredOSDeployment `json:"osDeployment,omitempty" yaml:"osDeployment,omitempty"`
}

// MemorySpec is the memory policy for a VM.
//
// If both MinimumBytes and MaximumBytes are set, dynamic memory is enabled
// and the startup value bounds the effective range (see EffectiveBounds).
// With neither set the VM gets static memory of StartupBytes.
type MemorySpec struct {
	// StartupBytes is the memory assigned at VM start.
	StartupBytes int64 `json:"startupBytes" yaml:"startupBytes"`

	// MinimumBytes is the dynamic memory floor.
	MinimumBytes *int64 `json:"minimumBytes,omitempty" yaml:"minimumBytes,omitempty"`

	// MaximumBytes is the dynamic memory ceiling.
	MaximumBytes *int64 `json:"maximumBytes,omitempty" yaml:"maximumBytes,omitempty"`
}

// Dynamic reports whether dynamic memory is requested.
func (m *MemorySpec) Dynamic() bool {
	return m.MinimumBytes != nil && m.MaximumBytes != nil
}

// EffectiveBounds returns the dynamic memory range that will actually be
// applied. Out-of-range inputs are clamped rather than rejected: the floor
// can never exceed StartupBytes and the ceiling can never fall below it, so
// min <= startup <= max always holds.
func (m *MemorySpec) EffectiveBounds() (minBytes, maxBytes int64) {
	minBytes = m.StartupBytes
	maxBytes = m.StartupBytes
	if m.MinimumBytes != nil && *m.MinimumBytes < minBytes {
		minBytes = *m.MinimumBytes
	}
	if m.MaximumBytes != nil && *m.MaximumBytes > maxBytes {
		maxBytes = *m.MaximumBytes
	}
	return minBytes, maxBytes
}

// DesiredDisk is one virtual disk attachment.
type DesiredDisk struct {
	// Path is the full path of the disk image file on the host.
	Path string `json:"path" yaml:"path"`

	// SizeBytes is the size the image file is created with. An existing
	// image of a different size is never resized or replaced without
	// operator consent.
	SizeBytes int64 `json:"sizeBytes" yaml:"sizeBytes"`

	// ControllerNumber is the SCSI controller to attach to. Nil leaves
	// placement to the platform (first free location on controller 0).
	ControllerNumber *int `json:"controllerNumber,omitempty" yaml:"controllerNumber,omitempty"`

	// ControllerLocation is the location (LUN) on the controller. Nil
	// leaves placement to the platform.
	ControllerLocation *int `json:"controllerLocation,omitempty" yaml:"controllerLocation,omitempty"`
}

// DesiredNetworkAdapter is one network adapter of a VM.
//
// The adapter name is the identity the reconciler keys on; it must be
// unique within the VM.
type DesiredNetworkAdapter struct {
	// Name is the adapter name, also pushed into the guest via device
	// naming.
	Name string `json:"name" yaml:"name"`

	// SwitchName is the virtual switch to connect to. Empty means the
	// adapter stays (or becomes) disconnected.
	SwitchName string `json:"switchName,omitempty" yaml:"switchName,omitempty"`

	// VLANMode selects the tagging discipline. Defaults to Untagged.
	VLANMode VLANMode `json:"vlanMode,omitempty" yaml:"vlanMode,omitempty"`

	// VLANID is the access VLAN id, the trunk native id, or the default
	// isolation id, depending on VLANMode.
	VLANID *int `json:"vlanId,omitempty" yaml:"vlanId,omitempty"`

	// VLANIDList is the list of allowed VLAN ids in Trunk mode.
	VLANIDList []int `json:"vlanIdList,omitempty" yaml:"vlanIdList,omitempty"`

	// MACAddress pins the adapter to an explicit static MAC. Accepts
	// common separator styles; normalized to bare uppercase hex.
	MACAddress string `json:"macAddress,omitempty" yaml:"macAddress,omitempty"`

	// IPAddress is the address the adapter will use. Combined with
	// MACPrefix it derives a static MAC; combined with DHCPScope it keys
	// the address reservation.
	IPAddress string `json:"ipAddress,omitempty" yaml:"ipAddress,omitempty"`

	// MACPrefix is a 4-hex-digit prefix for MAC derivation from IPAddress.
	MACPrefix string `json:"macPrefix,omitempty" yaml:"macPrefix,omitempty"`

	// MACSpoofing allows the guest to send frames from other MACs.
	MACSpoofing bool `json:"macSpoofing,omitempty" yaml:"macSpoofing,omitempty"`

	// AllowTeaming allows the adapter to participate in guest NIC teaming.
	AllowTeaming bool `json:"allowTeaming,omitempty" yaml:"allowTeaming,omitempty"`

	// DHCPServer is the DHCP host that owns the reservation scope.
	DHCPServer string `json:"dhcpServer,omitempty" yaml:"dhcpServer,omitempty"`

	// DHCPScope is the scope id to place a reservation in. Empty disables
	// reservation management for this adapter.
	DHCPScope string `json:"dhcpScope,omitempty" yaml:"dhcpScope,omitempty"`

	// Router is the gateway address set as the reservation's router
	// option when missing.
	Router string `json:"router,omitempty" yaml:"router,omitempty"`
}

// ReservesAddress reports whether the adapter manages a DHCP reservation.
func (a *DesiredNetworkAdapter) ReservesAddress() bool {
	return a.DHCPScope != ""
}

// DeepCopy creates a deep copy of DesiredVM.
func (in *DesiredVM) DeepCopy() *DesiredVM {
	if in == nil {
		return nil
	}
	out := new(DesiredVM)
	*out = *in

	out.Memory = *in.Memory.DeepCopy()

	if in.ClusterPriority != nil {
		p := *in.ClusterPriority
		out.ClusterPriority = &p
	}

	if in.AffinityRules != nil {
		out.AffinityRules = make([]string, len(in.AffinityRules))
		copy(out.AffinityRules, in.AffinityRules)
	}

	if in.Disks != nil {
		out.Disks = make([]DesiredDisk, len(in.Disks))
		for i := range in.Disks {
			out.Disks[i] = *in.Disks[i].DeepCopy()
		}
	}

	if in.NetworkAdapters != nil {
		out.NetworkAdapters = make([]DesiredNetworkAdapter, len(in.NetworkAdapters))
		for i := range in.NetworkAdapters {
			out.NetworkAdapters[i] = *in.NetworkAdapters[i].DeepCopy()
		}
	}

	if in.OSDeployment != nil {
		out.OSDeployment = in.OSDeployment.DeepCopy()
	}

	return out
}

// DeepCopy creates a deep copy of MemorySpec.
func (in *MemorySpec) DeepCopy() *MemorySpec {
	if in == nil {
		return nil
	}
	out := new(MemorySpec)
	*out = *in
	if in.MinimumBytes != nil {
		v := *in.MinimumBytes
		out.MinimumBytes = &v
	}
	if in.MaximumBytes != nil {
		v := *in.MaximumBytes
		out.MaximumBytes = &v
	}
	return out
}

// DeepCopy creates a deep copy of DesiredDisk.
func (in *DesiredDisk) DeepCopy() *DesiredDisk {
	if in == nil {
		return nil
	}
	out := new(DesiredDisk)
	*out = *in
	if in.ControllerNumber != nil {
		n := *in.ControllerNumber
		out.ControllerNumber = &n
	}
	if in.ControllerLocation != nil {
		l := *in.ControllerLocation
		out.ControllerLocation = &l
	}
	return out
}

// DeepCopy creates a deep copy of DesiredNetworkAdapter.
func (in *DesiredNetworkAdapter) DeepCopy() *DesiredNetworkAdapter {
	if in == nil {
		return nil
	}
	out := new(DesiredNetworkAdapter)
	*out = *in
	if in.VLANID != nil {
		id := *in.VLANID
		out.VLANID = &id
	}
	if in.VLANIDList != nil {
		out.VLANIDList = make([]int, len(in.VLANIDList))
		copy(out.VLANIDList, in.VLANIDList)
	}
	return out
}
