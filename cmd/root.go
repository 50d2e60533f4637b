// Package cmd implements the owlctl command line.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/EngrMohsinAzam/OwlCoin/internal/chain"
	"github.com/EngrMohsinAzam/OwlCoin/internal/config"
	"github.com/EngrMohsinAzam/OwlCoin/internal/deployer"
	"github.com/EngrMohsinAzam/OwlCoin/internal/network"
	"github.com/EngrMohsinAzam/OwlCoin/internal/owl"
)

// Version is set at build time.
var Version = "dev"

// app carries global flags and the state loaded before a command runs.
type app struct {
	cfgFile     string
	envFile     string
	networkName string
	logLevel    string
	jsonOut     bool

	cfg    *config.Config
	logger *slog.Logger

	// env and dial are replaced in tests.
	env  network.Env
	dial func(ctx context.Context, r *network.Resolved, logger *slog.Logger) (chain.Backend, error)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{env: network.OSEnv, dial: chain.Dial}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "owlctl",
		Short: "Deploy the OwlCoin token and OwlPresale contracts",
		Long: `owlctl deploys the OwlCoin token and the OwlPresale contract to
BNB Smart Chain, Sepolia or a local development chain.

Configuration (in order of priority):
  1. Command-line flags (--network, --log-level)
  2. Environment variables (OWL_NETWORK, OWL_LOG_LEVEL, ...), also read from .env
  3. Config file (./owlctl.yaml or ~/.owlctl.yaml)

Signing keys and API keys are read from the environment only:
  PRIVATE_KEY       deployer private key
  ALCHEMY_API_KEY   Alchemy key used by the sepolia network

Get started:
  $ owlctl networks list
  $ owlctl plan OwlPresaleModule --param owlToken=0x...
  $ owlctl deploy OwlCoinModule --network bscTestnet`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./owlctl.yaml or ~/.owlctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file loaded into the environment (default is .env)")
	rootCmd.PersistentFlags().StringVarP(&a.networkName, "network", "n", "", "network to use (or OWL_NETWORK)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "output in JSON format")

	rootCmd.AddCommand(a.deployCmd())
	rootCmd.AddCommand(a.planCmd())
	rootCmd.AddCommand(a.networksCmd())
	rootCmd.AddCommand(a.modulesCmd())
	rootCmd.AddCommand(a.deploymentsCmd())
	rootCmd.AddCommand(a.configCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "owlctl version %s\n", Version)
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// initConfig loads configuration and builds the logger.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{File: a.cfgFile, EnvFile: a.envFile})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	}
	a.logger = slog.New(handler)
	return nil
}

// selectedNetwork returns --network, falling back to the configured default.
func (a *app) selectedNetwork() string {
	if a.networkName != "" {
		return a.networkName
	}
	return a.cfg.DefaultNetwork
}

// resolveNetwork selects and resolves the network. It performs no RPC.
func (a *app) resolveNetwork() (*network.Resolved, error) {
	table, err := a.cfg.NetworkTable()
	if err != nil {
		return nil, err
	}
	return table.Resolve(a.selectedNetwork(), a.env)
}

var registry = owl.Registry()

// Output helpers

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", colorRed(w, "Error:"), err.Error())

	var cfgErr *network.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Variable != "" {
		fmt.Fprintf(w, "  Set %s in the environment or in .env\n", cfgErr.Variable)
	}
	if errors.Is(err, deployer.ErrArgsChanged) {
		fmt.Fprintln(w, "  Run deploy again with --reset to redeploy with the new arguments")
	}
}

// newTable creates a table writing to w.
func newTable(w io.Writer, columns ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.Header(header...)
	return t
}

// Terminal colors. Escape codes are only written when w is a terminal.

func colorRed(w io.Writer, s string) string    { return colorize(w, "\033[31m", s) }
func colorGreen(w io.Writer, s string) string  { return colorize(w, "\033[32m", s) }
func colorYellow(w io.Writer, s string) string { return colorize(w, "\033[33m", s) }
func colorBold(w io.Writer, s string) string   { return colorize(w, "\033[1m", s) }

func colorize(w io.Writer, code, s string) string {
	if !isTTY(w) {
		return s
	}
	return code + s + "\033[0m"
}

// isTTY reports whether w is a character device.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// maskSecret masks a credential for display.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 12 {
		return "****"
	}
	return s[:6] + "..." + s[len(s)-4:]
}
