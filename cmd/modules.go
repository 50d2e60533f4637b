package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/EngrMohsinAzam/OwlCoin/internal/module"
)

func (a *app) modulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect deployment modules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List deployable modules",
		RunE:  a.runModulesList,
	})

	return cmd
}

type moduleView struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Contracts   []string `json:"contracts"`
	Parameters  []string `json:"parameters,omitempty"`
}

func (a *app) runModulesList(cmd *cobra.Command, _ []string) error {
	var views []moduleView
	for _, d := range registry.All() {
		view := moduleView{ID: d.ID, Description: d.Description}
		if plan, err := module.Build(d, nil); err == nil {
			for _, f := range plan.Futures {
				view.Contracts = append(view.Contracts, f.Contract)
			}
			for _, p := range plan.Parameters {
				view.Parameters = append(view.Parameters, p.Name)
			}
		}
		views = append(views, view)
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		return printJSON(out, map[string]any{"modules": views})
	}

	t := newTable(out, "Module", "Contracts", "Parameters", "Description")
	for _, v := range views {
		params := strings.Join(v.Parameters, ", ")
		if params == "" {
			params = "-"
		}
		_ = t.Append([]string{v.ID, strings.Join(v.Contracts, ", "), params, v.Description})
	}
	return t.Render()
}
