package main

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-dashboard-auth/internal/config"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
	logger     *glog.BaseLogger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dashboard",
		Short:         "Agreements dashboard session and identity service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = newLogger(cfg.Log.Level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yaml)")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newCreateAdminCommand(opts),
		newConfigCommand(opts),
	)

	return cmd
}

func newLogger(level string) *glog.BaseLogger {
	levelOpt := glog.WithLevel(glog.Info)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		levelOpt = glog.WithLevel(glog.Trace)
	case "debug":
		levelOpt = glog.WithLevel(glog.Debug)
	case "warn", "warning":
		levelOpt = glog.WithLevel(glog.Warn)
	case "error":
		levelOpt = glog.WithLevel(glog.Error)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		levelOpt,
		glog.WithName("dashboard"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}
