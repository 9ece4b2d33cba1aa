// Package transfer stages small artifacts onto remote hosts over SMB:
// rendered answer files and generated media that a later broker command
// consumes from a host-local path. Bulk data stays out; disk images are
// copied host-side instead.
package transfer

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/hirochachacha/go-smb2"
)

// Client pushes files to SMB shares with one fixed credential.
type Client struct {
	domain   string
	user     string
	password string
}

// New returns a Client authenticating with the given account. Domain
// is empty for local accounts.
func New(domain, user, password string) *Client {
	return &Client{domain: domain, user: user, password: password}
}

// WriteFile writes data to path on the named share of host, creating
// parent directories as needed. Path is share-relative with backslash
// separators.
func (c *Client) WriteFile(ctx context.Context, host, share, path string, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, "445"))
	if err != nil {
		return fmt.Errorf("failed to reach SMB on %s: %w", host, err)
	}
	defer conn.Close()

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     c.user,
			Password: c.password,
			Domain:   c.domain,
		},
	}
	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		return fmt.Errorf("SMB session with %s failed: %w", host, err)
	}
	defer session.Logoff()

	fs, err := session.Mount(share)
	if err != nil {
		return fmt.Errorf("failed to mount \\\\%s\\%s: %w", host, share, err)
	}
	defer fs.Umount()

	if dir := parentDir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s on \\\\%s\\%s: %w", dir, host, share, err)
		}
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s on \\\\%s\\%s: %w", path, host, share, err)
	}
	return nil
}

var driveLetterPattern = regexp.MustCompile(`^([A-Za-z]):\\`)

// AdminShare maps a host-local drive path to its administrative share
// and the share-relative remainder, so "C:\staging\a.xml" becomes
// ("C$", "staging\a.xml").
func AdminShare(path string) (share, rel string, err error) {
	m := driveLetterPattern.FindStringSubmatch(path)
	if m == nil {
		return "", "", fmt.Errorf("not a drive-letter path: %q", path)
	}
	rel = strings.TrimPrefix(path, m[0])
	if rel == "" {
		return "", "", fmt.Errorf("path %q has no file component", path)
	}
	return strings.ToUpper(m[1]) + "$", rel, nil
}

// parentDir returns the backslash-separated parent of a share-relative
// path, "" when the path sits in the share root.
func parentDir(path string) string {
	idx := strings.LastIndex(path, `\`)
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}
