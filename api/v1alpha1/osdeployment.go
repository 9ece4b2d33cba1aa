package v1alpha1

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DesiredOSDeployment selects exactly one OS provisioning strategy.
//
// The JSON form is a flat object discriminated by a "method" field, with
// the variant's fields alongside it:
//
//	{"method": "ISO", "filePath": "C:\\isos\\ws2022.iso"}
//	{"method": "WDS", "server": "wds01", "answerFile": "WdsClientUnattend\\vm1.xml"}
//	{"method": "SCCM", "server": "cm01", "collections": ["OSD Server 2022"]}
//	{"method": "VHD", "sourcePath": "\\\\fs01\\images\\base.vhdx", "answerFile": "C:\\staging\\unattend.xml"}
//
// Exactly one of the variant pointers is non-nil after a successful parse,
// matching Method. Unknown or missing methods fail at parse time so every
// consumer downstream can switch on Method without re-validating.
type DesiredOSDeployment struct {
	Method DeploymentMethod

	ISO  *ISODeployment
	WDS  *WDSDeployment
	SCCM *SCCMDeployment
	VHD  *VHDDeployment
}

// ISODeployment boots the VM from an attached image file.
type ISODeployment struct {
	// FilePath is the host path of the ISO image.
	FilePath string `json:"filePath" yaml:"filePath"`

	// AnswerFile is a local unattend template rendered into an
	// autounattend ISO and attached as a second DVD, so the installer
	// on the boot image runs hands-off. Empty attaches the image alone.
	AnswerFile string `json:"answerFile,omitempty" yaml:"answerFile,omitempty"`
}

// WDSDeployment registers the VM as a pre-staged network-boot client.
type WDSDeployment struct {
	// Server is the WDS host name. The server must run in standalone
	// mode; directory-integrated servers manage their own client records.
	Server string `json:"server" yaml:"server"`

	// AnswerFile is the unattend file path the client registration points
	// at, relative to the WDS remote-install root.
	AnswerFile string `json:"answerFile" yaml:"answerFile"`

	// Template is a local unattend template rendered and staged to the
	// server's remote-installation share at AnswerFile before the
	// client is registered. Empty assumes the answer file is already in
	// place on the server.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
}

// SCCMDeployment imports the VM as a device and enrolls it into the named
// deployment collections.
type SCCMDeployment struct {
	// Server is the SCCM site server host name.
	Server string `json:"server" yaml:"server"`

	// Collections are the device collections the VM is added to. The
	// enrollment waits for the device to become visible in each one.
	Collections []string `json:"collections,omitempty" yaml:"collections,omitempty"`

	// Domain is stored as a device variable for the task sequence to
	// consume. Empty skips the variable.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// OUPath is stored as a device variable for the task sequence to
	// consume. Empty skips the variable.
	OUPath string `json:"ouPath,omitempty" yaml:"ouPath,omitempty"`
}

// VHDDeployment copies a prepared disk image over the VM's boot disk and
// optionally injects an answer file into it.
type VHDDeployment struct {
	// SourcePath is the image copied over the boot disk.
	SourcePath string `json:"sourcePath" yaml:"sourcePath"`

	// ControllerNumber locates the boot disk to overwrite.
	// Nil defaults to controller 0.
	ControllerNumber *int `json:"controllerNumber,omitempty" yaml:"controllerNumber,omitempty"`

	// ControllerLocation locates the boot disk to overwrite.
	// Nil defaults to location 0.
	ControllerLocation *int `json:"controllerLocation,omitempty" yaml:"controllerLocation,omitempty"`

	// AnswerFile is the unattend template injected into the copied image.
	// Empty skips injection.
	AnswerFile string `json:"answerFile,omitempty" yaml:"answerFile,omitempty"`

	// Domain is the domain to join during unattended setup. Substituted
	// into the answer file together with the domain-join credential.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// OUPath is the OU the computer account is created in during the
	// unattended domain join.
	OUPath string `json:"ouPath,omitempty" yaml:"ouPath,omitempty"`
}

// UnmarshalJSON decodes the flat discriminated form, rejecting unknown or
// missing methods.
func (d *DesiredOSDeployment) UnmarshalJSON(data []byte) error {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	*d = DesiredOSDeployment{}
	switch {
	case strings.EqualFold(probe.Method, string(MethodISO)):
		d.Method = MethodISO
		d.ISO = &ISODeployment{}
		return json.Unmarshal(data, d.ISO)
	case strings.EqualFold(probe.Method, string(MethodWDS)):
		d.Method = MethodWDS
		d.WDS = &WDSDeployment{}
		return json.Unmarshal(data, d.WDS)
	case strings.EqualFold(probe.Method, string(MethodSCCM)):
		d.Method = MethodSCCM
		d.SCCM = &SCCMDeployment{}
		return json.Unmarshal(data, d.SCCM)
	case strings.EqualFold(probe.Method, string(MethodVHD)):
		d.Method = MethodVHD
		d.VHD = &VHDDeployment{}
		return json.Unmarshal(data, d.VHD)
	case probe.Method == "":
		return fmt.Errorf("osDeployment: method is required")
	default:
		return fmt.Errorf("osDeployment: unknown method %q (want ISO, WDS, SCCM or VHD)", probe.Method)
	}
}

// MarshalJSON re-emits the flat discriminated form.
func (d DesiredOSDeployment) MarshalJSON() ([]byte, error) {
	v, err := d.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// MarshalYAML emits the same flat form for YAML output.
func (d DesiredOSDeployment) MarshalYAML() (interface{}, error) {
	return d.wire()
}

func (d DesiredOSDeployment) wire() (interface{}, error) {
	switch d.Method {
	case MethodISO:
		if d.ISO == nil {
			return nil, fmt.Errorf("osDeployment: method %s without variant data", d.Method)
		}
		return struct {
			Method         DeploymentMethod `json:"method" yaml:"method"`
			*ISODeployment `yaml:",inline"`
		}{d.Method, d.ISO}, nil
	case MethodWDS:
		if d.WDS == nil {
			return nil, fmt.Errorf("osDeployment: method %s without variant data", d.Method)
		}
		return struct {
			Method         DeploymentMethod `json:"method" yaml:"method"`
			*WDSDeployment `yaml:",inline"`
		}{d.Method, d.WDS}, nil
	case MethodSCCM:
		if d.SCCM == nil {
			return nil, fmt.Errorf("osDeployment: method %s without variant data", d.Method)
		}
		return struct {
			Method          DeploymentMethod `json:"method" yaml:"method"`
			*SCCMDeployment `yaml:",inline"`
		}{d.Method, d.SCCM}, nil
	case MethodVHD:
		if d.VHD == nil {
			return nil, fmt.Errorf("osDeployment: method %s without variant data", d.Method)
		}
		return struct {
			Method         DeploymentMethod `json:"method" yaml:"method"`
			*VHDDeployment `yaml:",inline"`
		}{d.Method, d.VHD}, nil
	default:
		return nil, fmt.Errorf("osDeployment: unknown method %q", d.Method)
	}
}

// DeepCopy creates a deep copy of DesiredOSDeployment.
func (in *DesiredOSDeployment) DeepCopy() *DesiredOSDeployment {
	if in == nil {
		return nil
	}
	out := new(DesiredOSDeployment)
	out.Method = in.Method

	if in.ISO != nil {
		iso := *in.ISO
		out.ISO = &iso
	}

	if in.WDS != nil {
		wds := *in.WDS
		out.WDS = &wds
	}

	if in.SCCM != nil {
		out.SCCM = new(SCCMDeployment)
		*out.SCCM = *in.SCCM
		if in.SCCM.Collections != nil {
			out.SCCM.Collections = make([]string, len(in.SCCM.Collections))
			copy(out.SCCM.Collections, in.SCCM.Collections)
		}
	}

	if in.VHD != nil {
		out.VHD = new(VHDDeployment)
		*out.VHD = *in.VHD
		if in.VHD.ControllerNumber != nil {
			n := *in.VHD.ControllerNumber
			out.VHD.ControllerNumber = &n
		}
		if in.VHD.ControllerLocation != nil {
			l := *in.VHD.ControllerLocation
			out.VHD.ControllerLocation = &l
		}
	}

	return out
}
