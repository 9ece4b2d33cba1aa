package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbweber/croft/api/v1alpha1"
)

// Add inserts a new entry. The entry is normalized and validated the
// same way Parse would; an existing entry under the same name is an
// error, never silently replaced.
func (s *Store) Add(vm *v1alpha1.DesiredVM) error {
	if vm == nil {
		return fmt.Errorf("entry is nil")
	}
	vm.Normalize()
	if err := vm.Validate(); err != nil {
		return fmt.Errorf("vm %q: %w", vm.Name, err)
	}
	if _, ok := s.vms[vm.Name]; ok {
		return fmt.Errorf("vm %q: already in store", vm.Name)
	}
	s.vms[vm.Name] = vm
	return nil
}

// Remove deletes the named entry. The lookup is case-insensitive.
func (s *Store) Remove(name string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := s.vms[key]; !ok {
		return fmt.Errorf("vm %q: %w", name, ErrNotFound)
	}
	delete(s.vms, key)
	return nil
}

// Save writes the store document back to path. The write goes through
// a temporary file in the same directory and renames over the target,
// so a crash mid-write never leaves a truncated store behind.
func (s *Store) Save(path string) error {
	data, err := json.MarshalIndent(s.vms, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".store-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary store: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace store %s: %w", path, err)
	}
	return nil
}
