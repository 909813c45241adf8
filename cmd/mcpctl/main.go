package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayerhssb/mcpSystem/internal/config"
	"github.com/ayerhssb/mcpSystem/internal/store"
	"github.com/ayerhssb/mcpSystem/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var envDir string

func main() {
	rootCmd := &cobra.Command{
		Use:     "mcpctl",
		Short:   "Operator tooling for the MCP wallet service",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(filepath.Join(envDir, ".env")); err != nil {
				log.Println("No .env file found, using environment variables")
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&envDir, "config-dir", ".", "directory holding the optional .env file")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(pendingCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// environment is what every subcommand needs: config, a logger and storage.
type environment struct {
	cfg   config.Config
	log   *zap.SugaredLogger
	repo  store.Repository
	close func()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(envDir)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg.LogDevelopment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	repo, closeRepo, err := store.Open(ctx, store.OpenOptions{
		Driver:      cfg.StorageDriver,
		DatabaseURL: cfg.DatabaseURL,
		AutoMigrate: cfg.AutoMigrate,
	}, logr)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: logr, repo: repo, close: func() {
		closeRepo()
		_ = logr.Sync()
	}}, nil
}
