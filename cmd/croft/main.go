package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbweber/croft/internal/config"
	"github.com/jbweber/croft/internal/store"
	"github.com/jbweber/croft/internal/vm"
)

var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "/etc/croft/config.yaml"

var (
	configPath string
	storePath  string
)

// errPassFailed marks a run where at least one VM pass failed. The
// summary already told the user; main only has to exit non-zero.
var errPassFailed = errors.New("one or more passes failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errPassFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "croft",
	Short: "Croft - declarative Hyper-V VM provisioning",
	Long: `Croft reconciles virtual machines on Hyper-V hosts and failover
clusters against a declarative store document.

Each named VM is converged in its own pass: compute, disks, network
adapters, cluster membership, OS provisioning and power state. A
failing pass is reported and the run moves on to the next name.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "engine configuration file")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "declarative store document (overrides the configured path)")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(decommissionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(checkHostCmd)
}

// loadConfig reads the engine configuration. A missing file at the
// default path means "run with defaults"; a missing file the user
// asked for explicitly is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// loadStore opens the store document, honoring the --store override.
func loadStore(cfg *config.Config) (*store.Store, string, error) {
	path := storePath
	if path == "" {
		path = cfg.StorePath
	}
	st, err := store.Load(path)
	if err != nil {
		return nil, "", err
	}
	return st, path, nil
}

// gatherNames returns the VM names a command should operate on: the
// positional arguments, or one name per stdin line when none are given.
func gatherNames(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var names []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read names from stdin: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no VM names given (pass them as arguments or pipe them on stdin)")
	}
	return names, nil
}

var (
	skipProvisioning bool
	skipStart        bool
	forceRestart     bool
	provisionYes     bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision [NAME...]",
	Short: "Converge VMs onto their desired records",
	Long: `Converge the named VMs onto their records in the store document.

Each name gets its own reconciliation pass: the VM is created when
missing, its hardware and network adapters are diffed and repaired,
cluster membership is ensured, OS provisioning runs for records that
request it, and the VM is brought to its desired power state.

Names may also be piped on stdin, one per line. The exit code is
non-zero when any pass failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := gatherNames(args)
		if err != nil {
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

		engine, cleanup := buildEngine(cfg, provisionYes)
		defer cleanup()

		run := engine.Provision(context.Background(), st, names, vm.ProvisionOptions{
			SkipProvisioning: skipProvisioning,
			SkipStart:        skipStart,
			ForceRestart:     forceRestart,
		})
		fmt.Print(run.Summary())
		if run.Failed() {
			return errPassFailed
		}
		return nil
	},
}

var (
	preserveDrives       bool
	removeNetworkObjects bool
	decommissionForce    bool
	decommissionYes      bool
)

var decommissionCmd = &cobra.Command{
	Use:   "decommission [NAME...]",
	Short: "Tear VMs down",
	Long: `Tear the named VMs down, reversing provisioning.

This will, per VM:
- Remove snapshots and wait for disk merges to finish
- Remove the cluster role, if clustered
- Remove OS-provisioning registrations
- Power the VM off (confirmed unless --force)
- Delete the VM and its disk images
- Prune the now-empty VM directory

With --remove-network-objects the VM's DHCP reservations, directory
computer object and DNS records are removed as well.

Names may also be piped on stdin, one per line. The exit code is
non-zero when any pass failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := gatherNames(args)
		if err != nil {
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

		engine, cleanup := buildEngine(cfg, decommissionYes)
		defer cleanup()

		run := engine.Decommission(context.Background(), st, names, vm.DecommissionOptions{
			PreserveDrives:       preserveDrives,
			RemoveNetworkObjects: removeNetworkObjects,
			Force:                decommissionForce,
		})
		fmt.Print(run.Summary())
		if run.Failed() {
			return errPassFailed
		}
		return nil
	},
}

func init() {
	provisionCmd.Flags().BoolVar(&skipProvisioning, "skip-provisioning", false, "build the hardware but skip OS provisioning")
	provisionCmd.Flags().BoolVar(&skipStart, "skip-start", false, "leave stopped VMs stopped")
	provisionCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "restart VMs that are already running")
	provisionCmd.Flags().BoolVar(&provisionYes, "yes", false, "answer yes to every confirmation prompt")

	decommissionCmd.Flags().BoolVar(&preserveDrives, "preserve-hard-drives", false, "leave disk image files in place")
	decommissionCmd.Flags().BoolVar(&removeNetworkObjects, "remove-network-objects", false, "also remove DHCP reservations, the computer object and DNS records")
	decommissionCmd.Flags().BoolVar(&decommissionForce, "force", false, "power running VMs off without confirmation")
	decommissionCmd.Flags().BoolVar(&decommissionYes, "yes", false, "answer yes to every confirmation prompt")
}
