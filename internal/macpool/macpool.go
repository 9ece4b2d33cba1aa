// Package macpool persists per-host MAC address counters so adapters
// created across engine runs never collide. Each host gets one JSON
// sidecar file in the state directory holding the next free address;
// allocation reads it, hands the value out, and writes the incremented
// value back.
//
// The read-increment-write cycle is not compare-and-swap: the engine's
// sequential, single-run-per-store model is the concurrency contract.
package macpool

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbweber/croft/internal/naming"
)

// Store allocates MAC addresses from per-host counter files under dir.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at the given state directory. The
// directory is created on first allocation.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// counterFile is the persisted shape of one host's counter.
type counterFile struct {
	Host    string `json:"host"`
	NextMAC string `json:"nextMac"`
}

// Next hands out the next free MAC for a host and advances the
// persisted counter. On the first allocation for a host the counter is
// seeded by calling seed, usually with the host's MAC pool minimum.
//
// When the counter's low byte has reached 0xFF the pool is exhausted:
// Next fails without handing out an address and without writing.
func (s *Store) Next(host string, seed func() (string, error)) (string, error) {
	path := s.path(host)

	var cf counterFile
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		start, err := seed()
		if err != nil {
			return "", fmt.Errorf("failed to seed MAC counter for %s: %w", host, err)
		}
		normalized, err := naming.NormalizeMAC(start)
		if err != nil {
			return "", fmt.Errorf("bad MAC counter seed for %s: %w", host, err)
		}
		cf = counterFile{Host: host, NextMAC: normalized}
	case err != nil:
		return "", fmt.Errorf("failed to read MAC counter for %s: %w", host, err)
	default:
		if err := json.Unmarshal(data, &cf); err != nil {
			return "", fmt.Errorf("corrupt MAC counter file %s: %w", path, err)
		}
	}

	allocated := cf.NextMAC
	advanced, err := naming.NextMAC(allocated)
	if err != nil {
		return "", fmt.Errorf("MAC counter for %s: %w", host, err)
	}
	cf.NextMAC = advanced

	out, err := json.MarshalIndent(&cf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode MAC counter for %s: %w", host, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write MAC counter for %s: %w", host, err)
	}

	return allocated, nil
}

// path maps a host name to its counter file. Host names fold to their
// lowercase short name so "HV-01" and "hv-01.corp.example.com" share a
// counter.
func (s *Store) path(host string) string {
	short := strings.ToLower(host)
	if name, _, found := strings.Cut(short, "."); found {
		short = name
	}
	return filepath.Join(s.dir, "macpool-"+short+".json")
}
