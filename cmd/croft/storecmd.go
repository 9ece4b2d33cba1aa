package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/output"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Edit the declarative store",
	Long: `Edit the declarative store document.

The store is a single JSON document whose top-level keys are VM names.
Entries are validated on every edit; an invalid entry never reaches
the file.`,
}

func init() {
	storeCmd.AddCommand(storeAddCmd)
	storeCmd.AddCommand(storeRemoveCmd)
	storeCmd.AddCommand(storeShowCmd)

	storeShowCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	storeShowCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")
}

var storeAddCmd = &cobra.Command{
	Use:   "add <entries.json|entries.yaml>",
	Short: "Add entries to the store",
	Long: `Add VM entries from a file to the store document.

The file is a name-keyed document in JSON or YAML, the same shape
"croft list -o json" and "croft list -o yaml" emit. Every entry is
normalized and validated before the store is written; a name that is
already present fails the whole add.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := readEntries(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%s contains no entries", args[0])
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, path, err := loadStore(cfg)
		if err != nil {
			return err
		}

		for name, vm := range entries {
			if vm == nil {
				return fmt.Errorf("vm %q: entry is null", name)
			}
			vm.Name = name
			if err := st.Add(vm); err != nil {
				return fmt.Errorf("vm %q: %w", name, err)
			}
		}

		if err := st.Save(path); err != nil {
			return err
		}
		fmt.Printf("Added %d entries to %s\n", len(entries), path)
		return nil
	},
}

// readEntries parses a name-keyed entry document, accepting JSON and
// YAML.
func readEntries(path string) (map[string]*v1alpha1.DesiredVM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries map[string]*v1alpha1.DesiredVM
	if jsonErr := json.Unmarshal(data, &entries); jsonErr == nil {
		return entries, nil
	}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s is neither a JSON nor a YAML entry document: %w", path, err)
	}
	return entries, nil
}

var storeRemoveCmd = &cobra.Command{
	Use:   "remove NAME...",
	Short: "Remove entries from the store",
	Long: `Remove the named entries from the store document.

Removing an entry does not touch the VM itself; use decommission to
tear a VM down.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, path, err := loadStore(cfg)
		if err != nil {
			return err
		}

		for _, name := range args {
			if err := st.Remove(name); err != nil {
				return err
			}
		}

		if err := st.Save(path); err != nil {
			return err
		}
		fmt.Printf("Removed %d entries from %s\n", len(args), path)
		return nil
	},
}

var storeShowCmd = &cobra.Command{
	Use:   "show <vm-name>",
	Short: "Show one store entry",
	Long: `Show a single store entry.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Name-keyed YAML document
  -o json   Name-keyed JSON document`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, _, err := loadStore(cfg)
		if err != nil {
			return err
		}

		vm, err := st.Get(args[0])
		if err != nil {
			return err
		}

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatVM(vm)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}
