package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/agencyops/internal/store"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.File != "" {
				fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
			} else {
				fmt.Fprintln(out, "# no config file found, showing defaults")
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			return enc.Close()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			// Open runs the migrations.
			s, err := store.Open(cfg.StoreConfig())
			if err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return fmt.Errorf("closing store: %w", err)
			}
			logger.Info("schema up to date", "db", cfg.DBPath())
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s\n", cfg.DBPath())
			return nil
		},
	}
}
