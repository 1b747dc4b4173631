package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/internal/config"
)

type globalFlags struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "formflow",
		Short:         "Render, validate and route front-end form submissions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			flags.v = config.New(flags.configFile)
			_ = flags.v.BindPFlag("log.level", cmd.Flags().Lookup("log-level"))
			_ = flags.v.BindPFlag("forms.dir", cmd.Flags().Lookup("forms"))
		},
	}
	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default ./formflow.yaml, env FORMFLOW_*)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("forms", "forms", "directory holding the form definitions")

	cmd.AddCommand(newServeCommand(flags), newFillCommand(flags), newListCommand(flags))
	return cmd
}

func (g *globalFlags) load() (config.Config, *zap.SugaredLogger, error) {
	cfg, err := config.Load(g.v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}
