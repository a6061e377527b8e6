package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/dragon/internal/config"
	"github.com/jbweber/dragon/internal/engine"
	"github.com/jbweber/dragon/internal/imageref"
	"github.com/jbweber/dragon/internal/output"
	"github.com/jbweber/dragon/internal/record"
	"github.com/jbweber/dragon/internal/terminal"
	"github.com/jbweber/dragon/internal/tools"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	verbosity  int

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dragon",
	Short: "Dragon - WSL2 VM lifecycle tool",
	Long: `Dragon manages WSL2 virtual machines built from container images.

It tracks each named VM against its source repository in a registry,
checks for newer image tags, and upgrades VMs in place while keeping
the previous VM around until its replacement is confirmed.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case verbosity >= 2:
			logrus.SetLevel(logrus.TraceLevel)
		case verbosity == 1:
			logrus.SetLevel(logrus.DebugLevel)
		default:
			logrus.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildEngine assembles the engine from the loaded configuration.
func buildEngine() *engine.Engine {
	store := record.NewStore(cfg.StateFile)
	registry := tools.NewRegistry(cfg.AzPath, cfg.RegistryTimeout)
	docker := tools.NewDocker(cfg.DockerPath, cfg.MaterializeTimeout)
	wsl := tools.NewWSL(cfg.WSLPath, cfg.InstallRoot, cfg.MaterializeTimeout)
	toolset := tools.NewToolset(docker, wsl, cfg.ScratchDir)
	return engine.NewEngine(store, registry, toolset)
}

// registerProfile records a Windows Terminal profile for the VM. A
// missing settings path disables registration; a registration failure
// is reported but does not fail the command, the VM itself is fine.
func registerProfile(res *engine.Result) {
	if cfg.TerminalSettings == "" {
		return
	}
	w := terminal.NewProfileWriter(cfg.TerminalSettings)
	if err := w.Register(res.TerminalProfileID, res.Name, res.ConnectCommand); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to register terminal profile for %s: %v\n", res.Name, err)
		return
	}
	fmt.Printf("✓ Terminal profile registered for %s\n", res.Name)
}

var newCmd = &cobra.Command{
	Use:   "new <name> <image:tag>",
	Short: "Create a VM from a container image",
	Long: `Create a new WSL2 VM from a tagged container image.

The image is pulled, exported, and imported as a WSL2 distribution.
A record is kept so the VM can later be checked for newer tags and
upgraded.

Example:
  dragon new dev myregistry.azurecr.io/team/devbox:2024.06`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		ref, err := imageref.Parse(args[1])
		if err != nil {
			return err
		}
		if ref.Tag == "" {
			return fmt.Errorf("image reference %s must carry a tag", args[1])
		}

		res, err := buildEngine().New(context.Background(), name, ref, ref.Tag)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}

		fmt.Printf("✓ VM %s created\n", res.VMIdentifier)
		registerProfile(res)
		fmt.Printf("Connect with: %s\n", res.ConnectCommand)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Check the registry for newer image tags",
	Long: `Query the registry for the newest tag of each tracked image and
record it. No VM is touched; run "dragon upgrade" to act on what
update finds.

With a name only that record is checked, otherwise all records are.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng := buildEngine()

		if len(args) == 1 {
			tag, err := eng.Update(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", args[0], err)
			}
			fmt.Printf("✓ %s: latest tag is %s\n", args[0], tag)
			return nil
		}

		if err := eng.UpdateAll(ctx); err != nil {
			return fmt.Errorf("failed to update some records: %w", err)
		}
		fmt.Println("✓ All records updated")
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [name]",
	Short: "Upgrade VMs to their latest known tag",
	Long: `Bring VMs up to the latest tag recorded by "dragon update".

When the latest tag differs from the running one, a new VM is built
from it and the old VM is removed only after the new one is confirmed
present. When the tags match the VM is rebuilt in place.

With a name only that VM is upgraded, otherwise all are.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng := buildEngine()

		if len(args) == 1 {
			res, err := eng.Upgrade(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to upgrade %s: %w", args[0], err)
			}
			fmt.Printf("✓ VM %s upgraded\n", res.VMIdentifier)
			registerProfile(res)
			return nil
		}

		results, err := eng.UpgradeAll(ctx)
		for _, res := range results {
			fmt.Printf("✓ VM %s upgraded\n", res.VMIdentifier)
			registerProfile(res)
		}
		if err != nil {
			return fmt.Errorf("failed to upgrade some records: %w", err)
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a VM and its record",
	Long: `Unregister the VM and delete its record.

A VM that is already gone is treated as removed; the record is
deleted either way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := buildEngine().Remove(context.Background(), name); err != nil {
			if errors.Is(err, tools.ErrVMBusy) {
				return fmt.Errorf("VM for %s is in use, stop it and retry: %w", name, err)
			}
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		fmt.Printf("✓ %s removed\n", name)
		return nil
	},
}

var (
	listOutput    string
	listNoHeaders bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked VMs",
	Long: `List all tracked VMs with their current and latest known tags.

Shows records from the store only; it does not query the registry or
the VM inventory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(listOutput); err != nil {
			return err
		}

		doc, err := record.NewStore(cfg.StateFile).Load()
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}

		records := make([]*record.Record, 0, len(doc.Records))
		for _, r := range doc.Records {
			records = append(records, r)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

		f, err := output.NewFormatter(output.Options{
			Format:    output.Format(listOutput),
			NoHeaders: listNoHeaders,
		})
		if err != nil {
			return err
		}

		out, err := f.FormatRecords(records)
		if err != nil {
			return fmt.Errorf("failed to format records: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Report drift between records and the VM inventory",
	Long: `Compare the record store against the actual WSL2 distribution list.

Reports VMs that a record expects but the inventory lacks, and leftover
VMs the inventory carries that no record expects. Drift is reported
only; nothing is created or deleted.

With a name the report is limited to that record.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(statusOutput); err != nil {
			return err
		}

		items, err := buildEngine().Drift(context.Background())
		if err != nil {
			return fmt.Errorf("failed to compute drift: %w", err)
		}

		if len(args) == 1 {
			filtered := items[:0]
			for _, item := range items {
				if item.Name == args[0] {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}

		f, err := output.NewFormatter(output.Options{Format: output.Format(statusOutput)})
		if err != nil {
			return err
		}

		out, err := f.FormatDrift(items)
		if err != nil {
			return fmt.Errorf("failed to format drift report: %w", err)
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format (table, yaml, json)")
	listCmd.Flags().BoolVar(&listNoHeaders, "no-headers", false, "omit table headers")

	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format (table, yaml, json)")
}
