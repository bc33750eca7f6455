// Command fbuddy-rag runs the F-Buddy retrieval service and its operator
// tooling.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fbuddy/rag/config"
	"github.com/fbuddy/rag/internal/app"
	"github.com/fbuddy/rag/internal/logger"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "fbuddy-rag",
	Short:         "F-Buddy finance assistant retrieval service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.SetVerbose(verbose || cfg.Log.Verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml or ~/.fbuddy-rag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// openServices builds the provider handles for one command run.
func openServices(ctx context.Context) (*app.Services, error) {
	s, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
