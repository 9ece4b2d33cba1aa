// Package config holds the engine configuration: the hosts croft may
// talk to, how to authenticate against them, and runtime defaults.
//
// Secrets never live in the file itself; password fields name
// environment variables that are resolved when a session is opened.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/croft/internal/broker"
	"github.com/jbweber/croft/internal/retry"
)

// Config is the engine configuration, normally loaded from
// /etc/croft/config.yaml.
type Config struct {
	// StateDir holds engine-owned mutable state such as the per-host MAC
	// counters. Defaults to /var/lib/croft.
	StateDir string `yaml:"state_dir,omitempty"`

	// StorePath is the default declarative store document; the --store
	// flag overrides it.
	StorePath string `yaml:"store,omitempty"`

	// Shell is the PowerShell binary to run for local execution
	// (powershell.exe or pwsh). Empty uses the broker default.
	Shell string `yaml:"shell,omitempty"`

	// DefaultHost anchors topology discovery for store entries that do
	// not name a host. Empty means the local machine.
	DefaultHost string `yaml:"default_host,omitempty"`

	// Hosts lists the hosts with explicit session configuration. Hosts
	// discovered at runtime (cluster nodes) that are not listed here get
	// WinRM with default settings.
	Hosts []HostEntry `yaml:"hosts,omitempty"`

	// SCCM configures the device-management collaborator.
	SCCM *SCCMConfig `yaml:"sccm,omitempty"`

	// Network configures the directory and name-resolution servers used
	// when decommissioning removes a VM's network objects.
	Network *NetworkConfig `yaml:"network,omitempty"`

	// AnswerFile configures the credentials substituted into unattend
	// files during VHD provisioning.
	AnswerFile *AnswerFileConfig `yaml:"answer_file,omitempty"`

	// SMB configures the share credentials used to stage answer files.
	SMB *SMBConfig `yaml:"smb,omitempty"`

	// Retry overrides the bounded-backoff defaults used for polling
	// loops (collection visibility, disk-merge completion).
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// HostEntry is the session configuration for one host.
type HostEntry struct {
	// Name is the host name as it appears in the store and in cluster
	// node enumeration. Matching is case-insensitive on the short name.
	Name string `yaml:"name"`

	// Address overrides the network address to dial. Defaults to Name.
	Address string `yaml:"address,omitempty"`

	// Transport is one of "local", "winrm", "ssh". Defaults to winrm.
	Transport string `yaml:"transport,omitempty"`

	// Port overrides the transport's default port.
	Port int `yaml:"port,omitempty"`

	// UseTLS enables HTTPS for WinRM.
	UseTLS bool `yaml:"use_tls,omitempty"`

	// Insecure skips certificate verification for WinRM over TLS.
	Insecure bool `yaml:"insecure,omitempty"`

	// Username authenticates the session, e.g. "CORP\\provisioner".
	Username string `yaml:"username,omitempty"`

	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env,omitempty"`

	// SSHKeyFile is a private key file for SSH transport. Parsed at load
	// time so a bad key fails fast instead of mid-run.
	SSHKeyFile string `yaml:"ssh_key_file,omitempty"`

	// sshKey is the loaded key material, populated by Load.
	sshKey []byte
}

// SCCMConfig configures the device-management collaborator.
type SCCMConfig struct {
	// SiteCode is the three-character site code the provider commands
	// are scoped to, e.g. "P01".
	SiteCode string `yaml:"site_code"`
}

// NetworkConfig names the servers holding a VM's directory and DNS
// registrations.
type NetworkConfig struct {
	// DirectoryServer is the domain controller where computer objects
	// are removed.
	DirectoryServer string `yaml:"directory_server,omitempty"`

	// DNSServer is the name server where address records are removed.
	DNSServer string `yaml:"dns_server,omitempty"`

	// DNSZone is the forward lookup zone holding VM address records.
	DNSZone string `yaml:"dns_zone,omitempty"`
}

// AnswerFileConfig names the credentials substituted into unattend files.
type AnswerFileConfig struct {
	// AdminPasswordEnv names the environment variable holding the local
	// administrator password.
	AdminPasswordEnv string `yaml:"admin_password_env,omitempty"`

	// JoinUsername is the account used for unattended domain join.
	JoinUsername string `yaml:"join_username,omitempty"`

	// JoinPasswordEnv names the environment variable holding the domain
	// join password.
	JoinPasswordEnv string `yaml:"join_password_env,omitempty"`
}

// SMBConfig is the share credential used to stage files over SMB.
type SMBConfig struct {
	// Domain is the account domain, empty for local accounts.
	Domain string `yaml:"domain,omitempty"`

	// Username authenticates against the share.
	Username string `yaml:"username,omitempty"`

	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// RetryConfig overrides the polling backoff defaults.
type RetryConfig struct {
	Attempts       int `yaml:"attempts,omitempty"`
	InitialSeconds int `yaml:"initial_seconds,omitempty"`
	MaxSeconds     int `yaml:"max_seconds,omitempty"`
}

// Default returns the configuration used when no config file exists:
// local execution only, default state locations.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Load reads, normalizes and validates the configuration at path, and
// loads any referenced SSH key material.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.loadKeys(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Normalize sanitizes user input to consistent formats.
// This is called automatically by Load before validation.
func (c *Config) Normalize() {
	if c.StateDir == "" {
		c.StateDir = "/var/lib/croft"
	}
	if c.StorePath == "" {
		c.StorePath = "/etc/croft/store.json"
	}
	c.DefaultHost = strings.TrimSpace(c.DefaultHost)

	for i := range c.Hosts {
		c.Hosts[i].Name = strings.TrimSpace(c.Hosts[i].Name)
		c.Hosts[i].Transport = strings.ToLower(strings.TrimSpace(c.Hosts[i].Transport))
	}

	if c.SCCM != nil {
		c.SCCM.SiteCode = strings.ToUpper(strings.TrimSpace(c.SCCM.SiteCode))
	}

	if c.Network != nil {
		c.Network.DirectoryServer = strings.TrimSpace(c.Network.DirectoryServer)
		c.Network.DNSServer = strings.TrimSpace(c.Network.DNSServer)
		c.Network.DNSZone = strings.TrimSpace(c.Network.DNSZone)
	}
}

// Validate checks the configuration for errors.
// Does not check that hosts are reachable - only config structure.
func (c *Config) Validate() error {
	namesSeen := make(map[string]bool)
	for i, h := range c.Hosts {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("hosts[%d]: %w", i, err)
		}
		// Host matching folds to the lowercase short name, so "HV1" and
		// "hv1.corp.example.com" would both claim the same sessions.
		key := strings.ToLower(shortName(h.Name))
		if namesSeen[key] {
			return fmt.Errorf("hosts[%d]: duplicate host %q", i, h.Name)
		}
		namesSeen[key] = true
	}

	if c.SCCM != nil {
		if !siteCodePattern.MatchString(c.SCCM.SiteCode) {
			return fmt.Errorf("sccm.site_code must be 3 alphanumeric characters, got %q", c.SCCM.SiteCode)
		}
	}

	if c.Network != nil && c.Network.DNSServer != "" && c.Network.DNSZone == "" {
		return fmt.Errorf("network.dns_zone is required when network.dns_server is set")
	}

	if c.Retry != nil {
		if c.Retry.Attempts < 0 {
			return fmt.Errorf("retry.attempts must be >= 0, got %d", c.Retry.Attempts)
		}
		if c.Retry.InitialSeconds < 0 || c.Retry.MaxSeconds < 0 {
			return fmt.Errorf("retry delays must be >= 0")
		}
	}

	return nil
}

var siteCodePattern = regexp.MustCompile(`^[A-Z0-9]{3}$`)

// Validate checks a host entry.
func (h *HostEntry) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch h.Transport {
	case "", "local", "winrm", "ssh":
	default:
		return fmt.Errorf("transport must be local, winrm or ssh, got %q", h.Transport)
	}
	if h.Port < 0 || h.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", h.Port)
	}
	if h.SSHKeyFile != "" && h.Transport != "ssh" {
		return fmt.Errorf("ssh_key_file is only valid with the ssh transport")
	}
	return nil
}

// loadKeys reads and parses every referenced SSH private key.
func (c *Config) loadKeys() error {
	for i := range c.Hosts {
		h := &c.Hosts[i]
		if h.SSHKeyFile == "" {
			continue
		}
		data, err := os.ReadFile(h.SSHKeyFile)
		if err != nil {
			return fmt.Errorf("hosts[%d]: failed to read ssh key: %w", i, err)
		}
		if _, err := ssh.ParsePrivateKey(data); err != nil {
			return fmt.Errorf("hosts[%d]: %s is not a valid SSH private key: %w", i, h.SSHKeyFile, err)
		}
		h.sshKey = data
	}
	return nil
}

// CredentialSource adapts the configuration for the execution broker.
// Hosts without an entry (typically cluster nodes discovered at runtime)
// fall back to WinRM against the host name with no explicit credentials.
func (c *Config) CredentialSource() broker.CredentialSource {
	return func(host string) broker.HostConfig {
		h := c.hostByName(host)
		if h == nil {
			return broker.HostConfig{Shell: c.Shell}
		}
		return broker.HostConfig{
			Transport: broker.Transport(h.Transport),
			Address:   h.Address,
			Port:      h.Port,
			User:      h.Username,
			Password:  getenv(h.PasswordEnv),
			UseTLS:    h.UseTLS,
			Insecure:  h.Insecure,
			SSHKey:    h.sshKey,
			Shell:     c.Shell,
		}
	}
}

func (c *Config) hostByName(host string) *HostEntry {
	want := strings.ToLower(shortName(host))
	for i := range c.Hosts {
		if strings.ToLower(shortName(c.Hosts[i].Name)) == want {
			return &c.Hosts[i]
		}
	}
	return nil
}

// RetryPolicy returns the backoff policy for polling loops, applying the
// configured overrides on top of the defaults.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	if c.Retry == nil {
		return p
	}
	if c.Retry.Attempts > 0 {
		p.Attempts = c.Retry.Attempts
	}
	if c.Retry.InitialSeconds > 0 {
		p.Initial = time.Duration(c.Retry.InitialSeconds) * time.Second
	}
	if c.Retry.MaxSeconds > 0 {
		p.Max = time.Duration(c.Retry.MaxSeconds) * time.Second
	}
	return p
}

// AdminPassword resolves the local administrator password for answer
// files, or empty if unconfigured.
func (c *Config) AdminPassword() string {
	if c.AnswerFile == nil {
		return ""
	}
	return getenv(c.AnswerFile.AdminPasswordEnv)
}

// JoinCredential resolves the domain-join account for answer files.
func (c *Config) JoinCredential() (user, password string) {
	if c.AnswerFile == nil {
		return "", ""
	}
	return c.AnswerFile.JoinUsername, getenv(c.AnswerFile.JoinPasswordEnv)
}

// SMBCredential resolves the share-staging account.
func (c *Config) SMBCredential() (domain, user, password string) {
	if c.SMB == nil {
		return "", "", ""
	}
	return c.SMB.Domain, c.SMB.Username, getenv(c.SMB.PasswordEnv)
}

// SiteCode returns the SCCM site code, or empty if unconfigured.
func (c *Config) SiteCode() string {
	if c.SCCM == nil {
		return ""
	}
	return c.SCCM.SiteCode
}

// DirectoryServer returns the domain controller for computer-object
// cleanup, or empty if unconfigured.
func (c *Config) DirectoryServer() string {
	if c.Network == nil {
		return ""
	}
	return c.Network.DirectoryServer
}

// DNSTarget returns the name server and forward zone for record
// cleanup, both empty if unconfigured.
func (c *Config) DNSTarget() (server, zone string) {
	if c.Network == nil {
		return "", ""
	}
	return c.Network.DNSServer, c.Network.DNSZone
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func shortName(host string) string {
	name, _, _ := strings.Cut(host, ".")
	return name
}
