package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/croft/api/v1alpha1"
	"github.com/jbweber/croft/internal/output"
	"github.com/jbweber/croft/internal/store"
)

var (
	outputFormat string
	noHeaders    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the VMs in the store",
	Long: `List every VM record in the store document.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Name-keyed YAML document
  -o json   Name-keyed JSON document

The json and yaml forms are store documents themselves and can be fed
back through "croft store add".`,
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

		formatter, err := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if err != nil {
			return err
		}

		result, err := formatter.FormatVMList(storeEntries(st))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, yaml, json)")
	listCmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit headers in table output")
}

// storeEntries returns every record in the store, in name order.
func storeEntries(st *store.Store) []*v1alpha1.DesiredVM {
	names := st.Names()
	vms := make([]*v1alpha1.DesiredVM, 0, len(names))
	for _, name := range names {
		vm, err := st.Get(name)
		if err != nil {
			continue
		}
		vms = append(vms, vm)
	}
	return vms
}
