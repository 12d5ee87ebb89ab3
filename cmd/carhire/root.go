package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/config"
	"github.com/AntonStoeckl/dynamic-collections-go/logging"
)

// cli carries what the persistent pre-run prepared for the subcommands.
type cli struct {
	configSource string
	cfg          *config.Config
	logger       *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "carhire",
		Short:         "Car hire backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configSource, "config", "c", "",
		"YAML config file or inline YAML; CARHIRE_* environment variables override it")

	rootCmd.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newSeedCommand(c),
		newHashPasswordCommand(c),
		newVersionCommand(),
	)

	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), c.configSource, nil)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)

	c.cfg = cfg
	c.logger = logger

	return nil
}
