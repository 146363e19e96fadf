// Package cli implements the uptimeprobe subcommands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amartya2002/uptime-probe/config"
	"github.com/amartya2002/uptime-probe/logging"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "uptimeprobe",
		Short: "Probe an HTTP endpoint and report its uptime",
		Long:  "uptimeprobe polls one HTTP endpoint, logs every outcome to SQLite and reports count-based and time-weighted uptime.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("db", "", "Path to the SQLite request log (default from DB_PATH)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error, none (default from LOG_LEVEL)")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("uptimeprobe version %s\n", version))

	root.AddCommand(NewMonitorCmd())
	root.AddCommand(NewReportCmd())
	root.AddCommand(NewClearCmd())
	root.AddCommand(NewReproCmd())
	root.AddCommand(NewServeCmd())
	return root
}

// app is the per-invocation configuration and logger.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, exitError(ExitConfig, "%v", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, exitError(ExitConfig, "%v", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
