package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EngrMohsinAzam/OwlCoin/internal/artifact"
	"github.com/EngrMohsinAzam/OwlCoin/internal/deployer"
	"github.com/EngrMohsinAzam/OwlCoin/internal/journal"
	"github.com/EngrMohsinAzam/OwlCoin/internal/module"
)

// planFlags are shared by deploy and plan.
type planFlags struct {
	parametersFile string
	assignments    []string
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.parametersFile, "parameters", "p", "", "parameters file (JSON or YAML) keyed by module id")
	cmd.Flags().StringArrayVar(&f.assignments, "param", nil, "parameter override as name=value or Module.name=value (repeatable)")
}

// parameters merges the parameters file with --param overrides. Module keys
// are resolved through the registry, so aliases and ids are interchangeable.
func (f *planFlags) parameters(moduleID string) (module.Parameters, error) {
	params := module.Parameters{}
	if f.parametersFile != "" {
		loaded, err := module.LoadParameters(f.parametersFile)
		if err != nil {
			return nil, err
		}
		if params, err = registry.Canonicalize(loaded); err != nil {
			return nil, err
		}
	}
	for _, s := range f.assignments {
		mod, name, value, err := module.ParseAssignment(s, moduleID)
		if err != nil {
			return nil, err
		}
		d, err := registry.Lookup(mod)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", s, err)
		}
		if d.ID != moduleID {
			return nil, fmt.Errorf("%w: %q targets %s, not %s", module.ErrUnknownParameter, s, d.ID, moduleID)
		}
		params.Set(d.ID, name, value)
	}
	return params, nil
}

// buildPlan evaluates the named module against the flags.
func (f *planFlags) buildPlan(name string) (*module.Plan, error) {
	d, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	params, err := f.parameters(d.ID)
	if err != nil {
		return nil, err
	}
	return module.Build(d, params)
}

func (a *app) deployCmd() *cobra.Command {
	var (
		flags     planFlags
		artifacts string
		reset     bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <module>",
		Short: "Deploy a module to the selected network",
		Long: `Deploy a module's contracts to the selected network.

Futures already recorded in the journal for the target chain are skipped
unless --reset is given. The in-process hardhat network is never journaled.

Examples:
  owlctl deploy OwlCoinModule
  owlctl deploy OwlCoinModule --network bscTestnet
  owlctl deploy OwlPresaleModule -n bscTestnet --param owlToken=0x5FbDB2315678afecb367f032d93F642f64180aa3
  owlctl deploy OwlPresaleModule -n bsc --parameters ignition/parameters.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Network and credentials are checked before the module is evaluated.
			resolved, err := a.resolveNetwork()
			if err != nil {
				return err
			}

			plan, err := flags.buildPlan(args[0])
			if err != nil {
				return err
			}

			if artifacts == "" {
				artifacts = a.cfg.Artifacts
			}

			backend, err := a.dial(ctx, resolved, a.logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			var store journal.Store
			if !resolved.Simulated {
				store, err = journal.Open(a.cfg.Journal)
				if err != nil {
					return err
				}
				defer store.Close()
			}

			d := deployer.New(deployer.Config{
				Network:   resolved,
				Backend:   backend,
				Artifacts: artifact.NewDirectory(artifacts),
				Journal:   store,
				Reset:     reset,
				Logger:    a.logger,
			})

			result, err := d.Deploy(ctx, plan)
			if err != nil {
				a.logger.Error("deployment failed",
					slog.String("module", plan.ModuleID),
					slog.String("error", err.Error()),
				)
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, result)
			}

			fmt.Fprintf(out, "%s %s deployed to %s (chain %d)\n\n",
				colorGreen(out, "✓"), colorBold(out, result.ModuleID), result.Network, result.ChainID)

			skipped := make(map[string]bool, len(result.Skipped))
			for _, id := range result.Skipped {
				skipped[id] = true
			}

			t := newTable(out, "Future", "Address", "Tx", "Block", "Status")
			for _, rec := range result.Contracts {
				status := "deployed"
				if skipped[rec.FutureID] {
					status = "journal"
				}
				_ = t.Append([]string{
					rec.FutureID,
					rec.Address,
					rec.TxHash,
					strconv.FormatUint(rec.BlockNumber, 10),
					status,
				})
			}
			if err := t.Render(); err != nil {
				return err
			}

			if resolved.Simulated {
				fmt.Fprintf(out, "\n%s %s is in-process; these contracts are gone when owlctl exits.\n",
					colorYellow(out, "ℹ"), result.Network)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&artifacts, "artifacts", "", "compiled artifacts directory (default from config, \"artifacts\")")
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the journal of the target chain before deploying")

	return cmd
}

func (a *app) planCmd() *cobra.Command {
	var flags planFlags

	cmd := &cobra.Command{
		Use:   "plan <module>",
		Short: "Show the contracts a module would deploy",
		Long: `Evaluate a module and print its parameters and constructor arguments.
No network is contacted.

Examples:
  owlctl plan OwlPresaleModule
  owlctl plan OwlPresaleModule --param price=1000000000000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := flags.buildPlan(args[0])
			if err != nil {
				return err
			}

			summary := plan.Describe()
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, summary)
			}

			fmt.Fprintf(out, "Module: %s\n\n", colorBold(out, summary.Module))

			if len(summary.Parameters) > 0 {
				t := newTable(out, "Parameter", "Value", "Source")
				for _, p := range summary.Parameters {
					source := "default"
					if p.Overridden {
						source = "override"
					}
					_ = t.Append([]string{p.Name, formatValue(p.Value), source})
				}
				if err := t.Render(); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}

			t := newTable(out, "Future", "Contract", "Args")
			for _, f := range summary.Futures {
				_ = t.Append([]string{f.ID, f.Contract, formatArgs(f.Args)})
			}
			return t.Render()
		},
	}

	flags.register(cmd)
	return cmd
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return "-"
	}
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}

// formatValue renders a parameter value the way it would appear in a
// parameters file.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
