package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/logging"
)

// cli is the state shared by every subcommand once flags are parsed.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	dataDir    string

	opts   *config.Config
	logger *slog.Logger
}

func rootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "handsign",
		Short:         "Hand gesture collection and classification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML config file (default $HANDSIGN_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "Directory holding the database and datasets")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.initialize(cmd)
	}

	rootCmd.AddCommand(
		runCommand(c),
		trainCommand(c),
		exportCommand(c),
		sessionsCommand(c),
	)
	return rootCmd
}

// initialize loads configuration, applies flag overrides and sets up logging.
func (c *cli) initialize(cmd *cobra.Command) error {
	opts, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		opts.LogLevel = c.logLevel
	}
	if flags.Changed("log-format") {
		opts.LogFormat = c.logFormat
	}
	if flags.Changed("data-dir") {
		// The database follows the data dir unless it was set explicitly.
		if opts.DBPath == filepath.Join(opts.DataDir, "handsign.db") {
			opts.DBPath = filepath.Join(c.dataDir, "handsign.db")
		}
		opts.DataDir = c.dataDir
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	logger, err := logging.Setup(os.Stderr, opts.LogLevel, opts.LogFormat)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	c.opts = opts
	c.logger = logger
	return nil
}
