package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenmigration/config"
	"tokenmigration/observability"
	"tokenmigration/solprogram"
)

var (
	// Global flags
	configFile string
	network    string
	projectID  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "migratectl",
	Short: "Inspect token migrations and build unsigned migration transactions",
	Long: `migratectl reads a token migration project's on-chain state, reports user
balances and claim eligibility, and builds unsigned transactions for a wallet to sign.
It never holds keys and never submits transactions.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "network override (mainnet-beta, devnet, localnet)")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "project ID")
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	if cfg, err = config.Load(configFile); err != nil {
		return err
	}
	if network != "" {
		cfg.Network = network
	}
	if logger, err = cfg.NewLogger(); err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	return nil
}

// newClient connects to the configured network. metrics may be nil.
func newClient(metrics *observability.Metrics) (*solprogram.MigrationClient, error) {
	return cfg.Resolver().NewClient(cfg.Network, cfg.ClientOptions(logger, metrics)...)
}

func requireProject() error {
	if projectID == "" {
		return fmt.Errorf("--project is required")
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if e := solprogram.NormalizeError(err); e.Code != solprogram.CodeUnknown {
			fmt.Fprintf(os.Stderr, "Error [%s, retryable=%t]: %v\n", e.Code, e.Retryable, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
