// Package naming provides infrastructure-level naming conventions for
// virtual machine resources. This includes MAC address normalization and
// calculation from IP, DHCP client ID derivation, and Windows path
// construction for files that live on the hypervisor side.
//
// These naming rules are version-independent and shared across all
// API versions.
package naming

import (
	"fmt"
	"net"
	"strings"
)

// NullMAC is the all-zero address the platform reports for a dynamic
// adapter that has never been started.
const NullMAC = "000000000000"

// NormalizeMAC canonicalizes a MAC address to the bare uppercase hex
// form the hypervisor expects ("00155D0A0B0C"). Colons, dashes and dots
// are accepted as separators on input.
func NormalizeMAC(mac string) (string, error) {
	cleaned := strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	if len(cleaned) != 12 {
		return "", fmt.Errorf("invalid MAC address: %s", mac)
	}
	for _, r := range cleaned {
		if !isHexDigit(r) {
			return "", fmt.Errorf("invalid MAC address: %s", mac)
		}
	}
	return strings.ToUpper(cleaned), nil
}

// MACFromIP calculates a deterministic MAC address from a two-octet
// prefix and an IPv4 address. The prefix contributes the first four hex
// digits and the IP octets the remaining eight.
//
// Example: prefix "beef", IP 10.55.22.22 → MAC BEEF0A371616
func MACFromIP(prefix, ip string) (string, error) {
	cleaned := strings.NewReplacer(":", "", "-", "", ".", "").Replace(prefix)
	if len(cleaned) != 4 {
		return "", fmt.Errorf("invalid MAC prefix: %s", prefix)
	}
	for _, r := range cleaned {
		if !isHexDigit(r) {
			return "", fmt.Errorf("invalid MAC prefix: %s", prefix)
		}
	}

	// Parse IP (handles both "10.1.2.3" and "10.1.2.3/24")
	ipStr := ip
	if strings.Contains(ip, "/") {
		ipAddr, _, err := net.ParseCIDR(ip)
		if err != nil {
			return "", fmt.Errorf("invalid IP/CIDR: %w", err)
		}
		ipStr = ipAddr.String()
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return "", fmt.Errorf("invalid IP address: %s", ipStr)
	}

	// Get IPv4 representation
	ipv4 := parsedIP.To4()
	if ipv4 == nil {
		return "", fmt.Errorf("not an IPv4 address: %s", ipStr)
	}

	return strings.ToUpper(fmt.Sprintf("%s%02x%02x%02x%02x",
		cleaned, ipv4[0], ipv4[1], ipv4[2], ipv4[3])), nil
}

// NextMAC returns the address one past mac, incrementing only the low
// byte. The address space deliberately does not carry into the upper
// bytes: once the low byte reaches 0xFF the pool is exhausted and an
// error is returned.
func NextMAC(mac string) (string, error) {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return "", err
	}

	var low byte
	if _, err := fmt.Sscanf(normalized[10:], "%02X", &low); err != nil {
		return "", fmt.Errorf("invalid MAC address: %s", mac)
	}
	if low == 0xFF {
		return "", fmt.Errorf("MAC pool exhausted at %s", normalized)
	}

	return fmt.Sprintf("%s%02X", normalized[:10], low+1), nil
}

// IsNullMAC reports whether mac is the platform's all-zero placeholder
// address. Malformed input is not a null MAC.
func IsNullMAC(mac string) bool {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return false
	}
	return normalized == NullMAC
}

// ClientIDFromMAC derives the DHCP client ID for a MAC address.
// Format: dash-separated lowercase hex pairs (e.g., "00-15-5d-0a-0b-0c")
func ClientIDFromMAC(mac string) (string, error) {
	normalized, err := NormalizeMAC(mac)
	if err != nil {
		return "", err
	}

	lower := strings.ToLower(normalized)
	pairs := make([]string, 0, 6)
	for i := 0; i < len(lower); i += 2 {
		pairs = append(pairs, lower[i:i+2])
	}
	return strings.Join(pairs, "-"), nil
}

// WindowsJoin joins path elements with backslashes for use on a
// hypervisor host. Drive-rooted ("C:\") and UNC ("\\server\share")
// first elements keep their prefix intact.
func WindowsJoin(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for i, e := range elem {
		if i == 0 {
			e = strings.TrimRight(e, `\`)
		} else {
			e = strings.Trim(e, `\`)
		}
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, `\`)
}

// WindowsParent returns the directory containing path, using backslash
// separators. The parent of a drive root is the drive root itself.
func WindowsParent(path string) string {
	trimmed := strings.TrimRight(path, `\`)
	i := strings.LastIndex(trimmed, `\`)
	if i <= 0 {
		return trimmed
	}
	parent := trimmed[:i]
	if strings.HasSuffix(parent, ":") {
		parent += `\`
	}
	return parent
}

// WindowsBase returns the last element of a backslash-separated path.
func WindowsBase(path string) string {
	trimmed := strings.TrimRight(path, `\`)
	i := strings.LastIndex(trimmed, `\`)
	if i < 0 {
		return trimmed
	}
	return trimmed[i+1:]
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
