package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// credentialVars are read from the environment and never stored in config.
var credentialVars = []string{"PRIVATE_KEY", "ALCHEMY_API_KEY"}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect CLI configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE:  a.runConfigShow,
	})

	return cmd
}

func (a *app) runConfigShow(cmd *cobra.Command, _ []string) error {
	credentials := make(map[string]string, len(credentialVars))
	for _, name := range credentialVars {
		val, _ := a.env(name)
		credentials[name] = maskSecret(val)
	}

	out := cmd.OutOrStdout()
	if a.jsonOut {
		return printJSON(out, map[string]any{
			"config":      a.cfg,
			"network":     a.selectedNetwork(),
			"credentials": credentials,
		})
	}

	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Fprint(out, string(data))

	fmt.Fprintf(out, "\nSelected network: %s\n", a.selectedNetwork())
	fmt.Fprintln(out, "Credentials:")
	for _, name := range credentialVars {
		fmt.Fprintf(out, "  %-16s %s\n", name, credentials[name])
	}
	if a.cfg.File == "" {
		fmt.Fprintf(out, "Config File:      %s\n", colorYellow(out, "(none)"))
	}
	return nil
}
