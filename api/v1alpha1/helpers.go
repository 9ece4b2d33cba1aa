package v1alpha1

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

// macReplacer strips the separator styles commonly pasted into the store.
var macReplacer = strings.NewReplacer(":", "", "-", "", ".", "", " ", "")

// Normalize sanitizes user input to consistent formats.
// This is called automatically by the store loader before validation.
func (vm *DesiredVM) Normalize() {
	// VM names double as guest computer names and are matched
	// case-insensitively everywhere, so store them lowercase.
	vm.Name = strings.ToLower(strings.TrimSpace(vm.Name))
	vm.Host = strings.TrimSpace(vm.Host)

	if vm.Generation == 0 {
		vm.Generation = 2
	}

	for i := range vm.NetworkAdapters {
		vm.NetworkAdapters[i].normalize()
	}

	if d := vm.OSDeployment; d != nil {
		switch d.Method {
		case MethodWDS:
			if d.WDS != nil {
				d.WDS.Server = strings.TrimSpace(d.WDS.Server)
			}
		case MethodSCCM:
			if d.SCCM != nil {
				d.SCCM.Server = strings.TrimSpace(d.SCCM.Server)
			}
		}
	}
}

func (a *DesiredNetworkAdapter) normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.IPAddress = strings.TrimSpace(a.IPAddress)
	a.DHCPServer = strings.TrimSpace(a.DHCPServer)
	a.DHCPScope = strings.TrimSpace(a.DHCPScope)
	a.Router = strings.TrimSpace(a.Router)

	// Canonicalize the VLAN mode case-insensitively; unknown values are
	// left alone for Validate to report.
	switch {
	case a.VLANMode == "":
		a.VLANMode = VLANModeUntagged
	case strings.EqualFold(string(a.VLANMode), string(VLANModeUntagged)):
		a.VLANMode = VLANModeUntagged
	case strings.EqualFold(string(a.VLANMode), string(VLANModeAccess)):
		a.VLANMode = VLANModeAccess
	case strings.EqualFold(string(a.VLANMode), string(VLANModeTrunk)):
		a.VLANMode = VLANModeTrunk
	case strings.EqualFold(string(a.VLANMode), string(VLANModeIsolation)):
		a.VLANMode = VLANModeIsolation
	}

	// MACs are compared and stored as bare uppercase hex.
	a.MACAddress = strings.ToUpper(macReplacer.Replace(strings.TrimSpace(a.MACAddress)))
	a.MACPrefix = strings.ToUpper(strings.TrimSpace(a.MACPrefix))
}

// Validate checks the entry for errors.
// Does not validate host resources (switches, paths, images) - only shape.
func (vm *DesiredVM) Validate() error {
	if vm.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Names must survive as DNS labels and guest computer names.
	namePattern := `^[a-z0-9][a-z0-9-]*[a-z0-9]$`
	if len(vm.Name) == 1 {
		namePattern = `^[a-z0-9]$`
	}
	matched, err := regexp.MatchString(namePattern, vm.Name)
	if err != nil {
		return fmt.Errorf("name validation error: %w", err)
	}
	if !matched {
		return fmt.Errorf("name must start and end with alphanumeric characters and contain only alphanumeric or hyphens, got %q", vm.Name)
	}
	if len(vm.Name) > 15 {
		return fmt.Errorf("name must be 15 characters or fewer to be usable as a computer name, got %q", vm.Name)
	}

	if vm.Path == "" {
		return fmt.Errorf("path is required")
	}
	if !windowsPathPattern.MatchString(vm.Path) {
		return fmt.Errorf("path must be a drive-letter or UNC path, got %q", vm.Path)
	}

	if vm.ProcessorCount <= 0 {
		return fmt.Errorf("processorCount must be > 0, got %d", vm.ProcessorCount)
	}

	if err := vm.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}

	if vm.Generation != 1 && vm.Generation != 2 {
		return fmt.Errorf("generation must be 1 or 2, got %d", vm.Generation)
	}
	if vm.TPMEnabled && vm.Generation != 2 {
		return fmt.Errorf("tpmEnabled requires generation 2")
	}

	if p := vm.ClusterPriority; p != nil {
		switch *p {
		case 0, 1000, 2000, 3000:
		default:
			return fmt.Errorf("clusterPriority must be 0, 1000, 2000 or 3000, got %d", *p)
		}
	}

	pathsSeen := make(map[string]bool)
	for i, disk := range vm.Disks {
		if err := disk.Validate(); err != nil {
			return fmt.Errorf("disks[%d]: %w", i, err)
		}
		// Attaching one image file twice corrupts it; paths are
		// case-insensitive on the host.
		key := strings.ToLower(disk.Path)
		if pathsSeen[key] {
			return fmt.Errorf("disks[%d]: duplicate disk path %q", i, disk.Path)
		}
		pathsSeen[key] = true
	}

	namesSeen := make(map[string]bool)
	for i, adapter := range vm.NetworkAdapters {
		if err := adapter.Validate(); err != nil {
			return fmt.Errorf("networkAdapters[%d]: %w", i, err)
		}
		key := strings.ToLower(adapter.Name)
		if namesSeen[key] {
			return fmt.Errorf("networkAdapters[%d]: duplicate adapter name %q", i, adapter.Name)
		}
		namesSeen[key] = true
	}

	if vm.OSDeployment != nil {
		if err := vm.OSDeployment.Validate(); err != nil {
			return fmt.Errorf("osDeployment: %w", err)
		}
	}

	return nil
}

var windowsPathPattern = regexp.MustCompile(`^(?:[A-Za-z]:\\|\\\\)`)

// Validate checks the memory policy.
func (m *MemorySpec) Validate() error {
	if m.StartupBytes <= 0 {
		return fmt.Errorf("startupBytes must be > 0, got %d", m.StartupBytes)
	}
	// Dynamic memory needs both bounds; a single one is almost always a
	// store-editing mistake, so reject it instead of guessing.
	if (m.MinimumBytes == nil) != (m.MaximumBytes == nil) {
		return fmt.Errorf("minimumBytes and maximumBytes must be set together")
	}
	if m.MinimumBytes != nil && *m.MinimumBytes <= 0 {
		return fmt.Errorf("minimumBytes must be > 0, got %d", *m.MinimumBytes)
	}
	if m.MaximumBytes != nil && *m.MaximumBytes <= 0 {
		return fmt.Errorf("maximumBytes must be > 0, got %d", *m.MaximumBytes)
	}
	return nil
}

// Validate checks a disk attachment.
func (d *DesiredDisk) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path is required")
	}
	if !windowsPathPattern.MatchString(d.Path) {
		return fmt.Errorf("path must be a drive-letter or UNC path, got %q", d.Path)
	}
	if d.SizeBytes <= 0 {
		return fmt.Errorf("sizeBytes must be > 0, got %d", d.SizeBytes)
	}
	if d.ControllerNumber != nil && *d.ControllerNumber < 0 {
		return fmt.Errorf("controllerNumber must be >= 0, got %d", *d.ControllerNumber)
	}
	if d.ControllerLocation != nil && *d.ControllerLocation < 0 {
		return fmt.Errorf("controllerLocation must be >= 0, got %d", *d.ControllerLocation)
	}
	return nil
}

// Controller returns the SCSI controller number, defaulting to 0.
func (d *DesiredDisk) Controller() int {
	if d.ControllerNumber == nil {
		return 0
	}
	return *d.ControllerNumber
}

// Location returns the controller location, defaulting to 0.
func (d *DesiredDisk) Location() int {
	if d.ControllerLocation == nil {
		return 0
	}
	return *d.ControllerLocation
}

// Validate checks a network adapter.
func (a *DesiredNetworkAdapter) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch a.VLANMode {
	case VLANModeUntagged, VLANModeAccess, VLANModeTrunk, VLANModeIsolation:
	default:
		return fmt.Errorf("vlanMode must be Untagged, Access, Trunk or Isolation, got %q", a.VLANMode)
	}

	if a.VLANID != nil && (*a.VLANID < 0 || *a.VLANID > 4094) {
		return fmt.Errorf("vlanId must be between 0 and 4094, got %d", *a.VLANID)
	}
	for i, id := range a.VLANIDList {
		if id < 0 || id > 4094 {
			return fmt.Errorf("vlanIdList[%d] must be between 0 and 4094, got %d", i, id)
		}
	}

	if a.MACAddress != "" && !bareMACPattern.MatchString(a.MACAddress) {
		return fmt.Errorf("macAddress must be 12 hex digits, got %q", a.MACAddress)
	}
	if a.MACPrefix != "" {
		if !macPrefixPattern.MatchString(a.MACPrefix) {
			return fmt.Errorf("macPrefix must be 4 hex digits, got %q", a.MACPrefix)
		}
		if a.IPAddress == "" {
			return fmt.Errorf("macPrefix requires ipAddress to derive a MAC from")
		}
	}

	if a.IPAddress != "" {
		ip := net.ParseIP(a.IPAddress)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("ipAddress must be a valid IPv4 address, got %q", a.IPAddress)
		}
	}

	if a.DHCPScope != "" {
		if a.DHCPServer == "" {
			return fmt.Errorf("dhcpScope requires dhcpServer")
		}
		if a.IPAddress == "" {
			return fmt.Errorf("dhcpScope requires ipAddress to reserve")
		}
	}
	if a.Router != "" && net.ParseIP(a.Router) == nil {
		return fmt.Errorf("router must be a valid IP address, got %q", a.Router)
	}

	return nil
}

var (
	bareMACPattern   = regexp.MustCompile(`^[0-9A-F]{12}$`)
	macPrefixPattern = regexp.MustCompile(`^[0-9A-F]{4}$`)
)

// Validate checks the deployment selection.
func (d *DesiredOSDeployment) Validate() error {
	switch d.Method {
	case MethodISO:
		if d.ISO == nil || d.ISO.FilePath == "" {
			return fmt.Errorf("ISO: filePath is required")
		}
	case MethodWDS:
		if d.WDS == nil || d.WDS.Server == "" {
			return fmt.Errorf("WDS: server is required")
		}
		if d.WDS.AnswerFile == "" {
			return fmt.Errorf("WDS: answerFile is required")
		}
	case MethodSCCM:
		if d.SCCM == nil || d.SCCM.Server == "" {
			return fmt.Errorf("SCCM: server is required")
		}
		for i, c := range d.SCCM.Collections {
			if strings.TrimSpace(c) == "" {
				return fmt.Errorf("SCCM: collections[%d] is empty", i)
			}
		}
	case MethodVHD:
		if d.VHD == nil || d.VHD.SourcePath == "" {
			return fmt.Errorf("VHD: sourcePath is required")
		}
		if d.VHD.ControllerNumber != nil && *d.VHD.ControllerNumber < 0 {
			return fmt.Errorf("VHD: controllerNumber must be >= 0, got %d", *d.VHD.ControllerNumber)
		}
		if d.VHD.ControllerLocation != nil && *d.VHD.ControllerLocation < 0 {
			return fmt.Errorf("VHD: controllerLocation must be >= 0, got %d", *d.VHD.ControllerLocation)
		}
	default:
		return fmt.Errorf("unknown method %q", d.Method)
	}
	return nil
}

// Controller returns the boot disk controller number, defaulting to 0.
func (v *VHDDeployment) Controller() int {
	if v.ControllerNumber == nil {
		return 0
	}
	return *v.ControllerNumber
}

// Location returns the boot disk controller location, defaulting to 0.
func (v *VHDDeployment) Location() int {
	if v.ControllerLocation == nil {
		return 0
	}
	return *v.ControllerLocation
}
