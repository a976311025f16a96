// Package main provides the keiba command line: backtests, live
// recommendations and the HTTP API server.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/takashi5144/keiba-3/internal/config"
	"github.com/takashi5144/keiba-3/internal/database"
	"github.com/takashi5144/keiba-3/internal/logger"
	"github.com/takashi5144/keiba-3/internal/repository"
	"github.com/takashi5144/keiba-3/internal/strategy"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	repos      *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(backtestCmd, serveCmd, recommendCmd, racesCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "keiba",
	Short:         "Horse racing betting strategy engine",
	Long:          `Sizes and selects win bets from model probabilities, replays them over historical races and serves live recommendations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if repos == nil {
			return
		}
		if err := repos.Close(); err != nil {
			appLog.WithError(err).Error("Failed to close storage")
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keiba %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	config.LoadDotEnv()

	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	secretsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := config.LoadSecretsFromAWS(secretsCtx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"storage":     cfg.Storage.Driver,
		"version":     Version,
	}).Debug("Configuration loaded")

	if cfg.UsesPostgres() {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		repos, err = repository.NewRepositories(db)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to initialize repositories: %w", err)
		}
		return nil
	}

	var err error
	repos, err = repository.NewSQLiteRepositories(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return nil
}

func newSelector() (*strategy.Selector, error) {
	sc, err := strategy.FromConfig(&cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return strategy.NewSelector(sc, appLog)
}
