package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
	"github.com/EngrMohsinAzam/OwlCoin/internal/signer"
)

func (a *app) networksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Inspect configured networks",
		Long: `Network profiles are built in (bsc, bscTestnet, sepolia, hardhat,
localhost) and can be overridden or extended under "networks:" in owlctl.yaml.

Examples:
  owlctl networks list
  owlctl networks show bscTestnet`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all networks",
		RunE:  a.runNetworksList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [name]",
		Short: "Show a network profile and its accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runNetworksShow,
	})

	return cmd
}

func (a *app) runNetworksList(cmd *cobra.Command, _ []string) error {
	table, err := a.cfg.NetworkTable()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		profiles := make([]network.Profile, 0, len(table))
		for _, name := range table.Names() {
			profiles = append(profiles, table[name])
		}
		return printJSON(out, map[string]any{
			"networks": profiles,
			"default":  a.cfg.DefaultNetwork,
		})
	}

	t := newTable(out, "Name", "Chain ID", "URL", "Gas", "Gas Price", "Timeout")
	for _, name := range table.Names() {
		p := table[name]
		if name == a.cfg.DefaultNetwork {
			name += " *"
		}
		url := p.URL
		if p.Simulated {
			url = "(in-process)"
		}
		_ = t.Append([]string{
			name,
			formatChainID(p.ChainID),
			url,
			formatGas(p.GasLimit),
			formatGasPrice(p.GasPrice),
			formatTimeout(p),
		})
	}
	return t.Render()
}

func (a *app) runNetworksShow(cmd *cobra.Command, args []string) error {
	table, err := a.cfg.NetworkTable()
	if err != nil {
		return err
	}

	name := a.selectedNetwork()
	if len(args) > 0 {
		name = args[0]
	}
	p, err := table.Lookup(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		return printJSON(out, map[string]any{
			"network":  p,
			"accounts": a.accounts(io.Discard, p),
		})
	}

	accounts := a.accounts(out, p)
	fmt.Fprintf(out, "Name:       %s\n", p.Name)
	fmt.Fprintf(out, "Chain ID:   %s\n", formatChainID(p.ChainID))
	if p.Simulated {
		fmt.Fprintf(out, "URL:        (in-process)\n")
	} else {
		fmt.Fprintf(out, "URL:        %s\n", p.URL)
	}
	fmt.Fprintf(out, "Gas:        %s\n", formatGas(p.GasLimit))
	fmt.Fprintf(out, "Gas Price:  %s\n", formatGasPrice(p.GasPrice))
	fmt.Fprintf(out, "Timeout:    %s\n", formatTimeout(p))
	fmt.Fprintf(out, "Accounts:\n")
	for _, acc := range accounts {
		fmt.Fprintf(out, "  %-16s %s  %s\n", acc.Variable, acc.Key, acc.Address)
	}
	return nil
}

type accountView struct {
	Variable string `json:"variable"`
	Key      string `json:"key"`
	Address  string `json:"address,omitempty"`
}

// accounts lists the signing accounts of p with their keys masked.
func (a *app) accounts(w io.Writer, p network.Profile) []accountView {
	var out []accountView
	for _, ref := range p.Accounts {
		key, _ := a.env(ref)
		view := accountView{Variable: ref, Key: maskSecret(key)}
		if s, err := signer.NewLocalSigner(key, p.ChainID); err == nil {
			view.Address = s.Address().Hex()
		} else if key != "" {
			view.Address = colorRed(w, "(invalid key)")
		}
		out = append(out, view)
	}
	if len(out) == 0 && p.UseDevAccounts {
		for i, key := range network.DevAccountKeys {
			s, err := signer.NewLocalSigner(key, p.ChainID)
			if err != nil {
				continue
			}
			out = append(out, accountView{
				Variable: fmt.Sprintf("(dev #%d)", i),
				Key:      maskSecret(key),
				Address:  s.Address().Hex(),
			})
		}
	}
	return out
}

func formatChainID(id int64) string {
	if id == 0 {
		return "(from node)"
	}
	return strconv.FormatInt(id, 10)
}

func formatGas(gas uint64) string {
	if gas == 0 {
		return "estimate"
	}
	return strconv.FormatUint(gas, 10)
}

func formatGasPrice(wei uint64) string {
	if wei == 0 {
		return "node"
	}
	if wei%1_000_000_000 == 0 {
		return fmt.Sprintf("%d gwei", wei/1_000_000_000)
	}
	return fmt.Sprintf("%d wei", wei)
}

func formatTimeout(p network.Profile) string {
	if p.Timeout == 0 {
		return "none"
	}
	return p.Timeout.String()
}
