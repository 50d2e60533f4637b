package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/EngrMohsinAzam/OwlCoin/internal/journal"
)

func (a *app) deploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "Inspect the deployment journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded deployments",
		Long: `List contracts recorded in the journal. With --network, only the chain
of that network is shown.

Examples:
  owlctl deployments list
  owlctl deployments list --network bscTestnet`,
		RunE: a.runDeploymentsList,
	})

	return cmd
}

func (a *app) runDeploymentsList(cmd *cobra.Command, _ []string) error {
	var chainID int64
	if a.networkName != "" {
		table, err := a.cfg.NetworkTable()
		if err != nil {
			return err
		}
		p, err := table.Lookup(a.networkName)
		if err != nil {
			return err
		}
		if p.ChainID == 0 {
			return fmt.Errorf("network %q has no chain_id configured; list all deployments instead", p.Name)
		}
		chainID = p.ChainID
	}

	store, err := journal.Open(a.cfg.Journal)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), chainID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		return printJSON(out, map[string]any{
			"deployments": records,
			"count":       len(records),
		})
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No deployments found")
		return nil
	}

	t := newTable(out, "Chain", "Future", "Address", "Block", "Deployed")
	for _, r := range records {
		_ = t.Append([]string{
			strconv.FormatInt(r.ChainID, 10),
			r.FutureID,
			r.Address,
			strconv.FormatUint(r.BlockNumber, 10),
			r.DeployedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return t.Render()
}
