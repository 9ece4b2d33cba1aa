package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/croft/internal/broker"
	"github.com/jbweber/croft/internal/hyperv"
)

var checkHostCmd = &cobra.Command{
	Use:   "check-host HOST",
	Short: "Check connectivity and topology of a host",
	Long: `Open a session to a host and report what the engine would see:
the platform settings, cluster membership, and the search nodes a
reconciliation pass against this host would consider.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Checking host %s...\n", host)

		exec := broker.NewExecutionContext("", cfg.CredentialSource())
		defer func() {
			if closeErr := exec.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close sessions: %v\n", closeErr)
			}
		}()

		ctx := context.Background()
		gw := hyperv.New(exec)

		info, err := gw.HostNetworkInfo(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to read host settings: %w", err)
		}

		fmt.Println("✓ Session established")
		fmt.Printf("✓ Host name: %s\n", info.Name)
		fmt.Printf("✓ Dynamic MAC range: %s - %s\n", info.MacAddressMinimum, info.MacAddressMaximum)

		clusterName, err := gw.ClusterName(ctx, host)
		if err != nil {
			return fmt.Errorf("failed to determine cluster membership: %w", err)
		}

		if clusterName == "" {
			fmt.Println("✓ Standalone host (no failover cluster)")
		} else {
			fmt.Printf("✓ Member of cluster: %s\n", clusterName)
			nodes, err := gw.ClusterNodes(ctx, host)
			if err != nil {
				return fmt.Errorf("failed to list cluster nodes: %w", err)
			}
			for _, node := range nodes {
				fmt.Printf("  - %s (%s)\n", node.Name, node.State)
			}
		}

		fmt.Println("\nHost check successful!")
		return nil
	},
}
