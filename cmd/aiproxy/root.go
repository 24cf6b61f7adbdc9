package main

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/mono-ai/aiproxy/internal/app"
	"github.com/mono-ai/aiproxy/internal/config"
	"github.com/mono-ai/aiproxy/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Build metadata, set with -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "aiproxy",
		Short:         "LLM API gateway with channel failover and balance metering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigPath, "config file")

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return config.Config{}, err
		}
		if errSetup := logging.Setup(cfg.Log); errSetup != nil {
			return config.Config{}, errSetup
		}
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.WithError(err).Error("load config failed")
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if errRun := app.RunServer(ctx, cfg); errRun != nil {
				log.WithError(errRun).Error("server exited")
				return errRun
			}
			return nil
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				log.WithError(err).Error("load config failed")
				return err
			}
			if errMigrate := app.Migrate(cmd.Context(), cfg); errMigrate != nil {
				log.WithError(errMigrate).Error("migrate failed")
				return errMigrate
			}
			log.Info("migrate completed")
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Run: func(cmd *cobra.Command, _ []string) {
			goVersion := fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit: %s\nBuilt At: %s\nGo Version: %s\n", Version, Commit, BuildTime, goVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
	return rootCmd
}
