// Package cmd provides the command-line interface for itch.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/itch/config"
)

var (
	configPath string
	envFiles   []string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "itch",
	Short: "itch judges block programs by scheduling inputs against them.",
	Long: `itch runs a project on a virtual stage, drives it with the ` +
		`events of a judging plan and checks the execution log against the ` +
		`tests of the plan.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	flags.StringSliceVar(&envFiles, "env", nil, "environment files to load (default .env)")
	flags.StringVar(&logLevel, "log-level", "", "overrides the configured log level")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// setup loads the configuration, applies the flags of cmd and creates the
// logger shared by the subcommands.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	atexit.Register(func() { _ = logger.Sync() })

	return cfg, logger, nil
}
