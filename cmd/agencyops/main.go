// agencyops: project, task and billing tracker served over MCP
//
// A stdio MCP server for small agencies: client projects with ordered
// phases and tasks, blocked-by dependencies, energy-based estimates and
// milestone billing, stored in a local SQLite database.
//
// Usage:
//
//	agencyops serve      # Start MCP server (stdio transport)
//	agencyops estimate   # Print estimates for an energy level
//	agencyops config     # Print the effective configuration
//	agencyops migrate    # Create or upgrade the database
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/agencyops/internal/config"
	agencyserver "github.com/HendryAvila/agencyops/internal/server"
)

var flagConfig string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agencyops",
		Short: "Project, task and billing tracker served over MCP",
		Long: `agencyops tracks client projects, their phases and tasks, the
dependencies between tasks, effort estimates and milestone billing.
AI coding tools drive it through the Model Context Protocol over stdio.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $AGENCYOPS_HOME/agencyops.yaml or ~/.agencyops/agencyops.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(estimateCmd())
	root.AddCommand(configCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(versionCmd())
	return root
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	// stdout belongs to the MCP transport.
	return cfg, cfg.NewLogger(os.Stderr), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdin/stdout. Add it to your AI tool's MCP config:

  {
    "mcpServers": {
      "agencyops": {
        "command": "agencyops",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			s, cleanup, err := agencyserver.New(withContext(cmd), cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			// ServeStdio handles SIGINT/SIGTERM itself.
			if err := server.ServeStdio(s); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agencyops v%s\n", agencyserver.Version)
		},
	}
}

// withContext returns cmd's context, or a background one when cobra ran
// without ExecuteContext.
func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
