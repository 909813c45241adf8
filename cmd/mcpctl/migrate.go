package main

import (
	"fmt"

	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply every embedded SQL migration that is not yet recorded in
schema_migrations. Each migration runs in its own transaction.

Examples:
  mcpctl migrate
  DATABASE_URL=postgres://localhost/mcp mcpctl migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := store.OpenPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := store.Migrate(ctx, pool)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			return nil
		},
	}
}
