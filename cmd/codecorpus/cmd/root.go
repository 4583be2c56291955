// Package cmd provides the CLI commands for codecorpus.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/codecorpus/internal/config"
	"github.com/Aman-CERP/codecorpus/internal/logging"
	"github.com/Aman-CERP/codecorpus/pkg/version"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	debug      bool
	logFile    string
	configPath string

	loggingCleanup func()
}

// NewRootCmd creates the root command for the codecorpus CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "codecorpus",
		Short: "Build a retrieval corpus from a C++ source tree",
		Long: `codecorpus walks a C++ source tree, splits files into overlapping chunks,
embeds every chunk and writes two aligned artifacts: a vector index and the
chunk metadata. Record i of the metadata describes vector i of the index.

Run 'codecorpus index <dir>' to build a corpus and 'codecorpus search' to
query it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codecorpus version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.codecorpus/logs/")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Write the run log to this file")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: <root>/.codecorpus.yaml)")

	cmd.PersistentPreRunE = opts.startLogging
	cmd.PersistentPostRunE = opts.stopLogging

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the slog default. Without --debug or --log-file
// the run log is dropped; progress and warnings still reach the terminal.
func (o *rootOptions) startLogging(_ *cobra.Command, _ []string) error {
	if !o.debug && o.logFile == "" {
		slog.SetDefault(logging.Discard())
		return nil
	}

	cfg := logging.DefaultConfig()
	if o.debug {
		cfg.Level = "debug"
	}
	if o.logFile != "" {
		cfg.FilePath = o.logFile
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug_logging_enabled",
		slog.String("log_file", cfg.FilePath),
		slog.String("version", version.Short()))
	return nil
}

func (o *rootOptions) stopLogging(_ *cobra.Command, _ []string) error {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return nil
}

// useConfigLogging switches to the file named in the config when no flag
// chose a destination.
func (o *rootOptions) useConfigLogging(cfg *config.Config) error {
	if o.debug || o.logFile != "" || cfg.Logging.File == "" {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads the config for root, honoring --config.
func (o *rootOptions) loadConfig(root string) (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath, false)
	}
	return config.Load(root)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
