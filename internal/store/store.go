// Package store loads the declarative VM store: a single JSON document
// whose top-level keys are VM names.
//
// The store is read-only input to the engine. Entries are normalized and
// validated on load so every consumer downstream can trust the shapes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
)

// ErrNotFound is returned by Get for names with no store entry.
var ErrNotFound = errors.New("not found in store")

// Store holds the parsed store document, keyed by lowercase VM name.
type Store struct {
	vms map[string]*v1alpha1.DesiredVM
}

// Load reads and parses the store document at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", path, err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}
	return s, nil
}

// Parse parses a store document from JSON bytes.
//
// Every entry is normalized and validated; the first invalid entry fails
// the whole load, because a run against a half-trusted store is worse
// than no run at all.
func Parse(data []byte) (*Store, error) {
	var raw map[string]*v1alpha1.DesiredVM
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	s := &Store{vms: make(map[string]*v1alpha1.DesiredVM, len(raw))}
	for name, vm := range raw {
		if vm == nil {
			return nil, fmt.Errorf("vm %q: entry is null", name)
		}

		// The key is the authoritative name; entries never carry one.
		vm.Name = name
		vm.Normalize()
		if err := vm.Validate(); err != nil {
			return nil, fmt.Errorf("vm %q: %w", name, err)
		}

		if _, ok := s.vms[vm.Name]; ok {
			return nil, fmt.Errorf("vm %q: duplicate entry (names are case-insensitive)", name)
		}
		s.vms[vm.Name] = vm
	}

	return s, nil
}

// Get returns a deep copy of the named entry, so callers can mutate their
// working state without touching the store. The lookup is case-insensitive.
func (s *Store) Get(name string) (*v1alpha1.DesiredVM, error) {
	vm, ok := s.vms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("vm %q: %w", name, ErrNotFound)
	}
	return vm.DeepCopy(), nil
}

// Names returns all entry names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.vms))
	for name := range s.vms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.vms)
}
