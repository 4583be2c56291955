package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codecorpus/configs"
	"github.com/Aman-CERP/codecorpus/internal/config"
	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the project configuration",
		Long: `Manage the project configuration file (.codecorpus.yaml).

Configuration precedence (lowest to highest):
  1. Defaults (the stockfish-lines preset)
  2. Preset named in the project config
  3. Project config (.codecorpus.yaml)
  4. Environment variables (CODECORPUS_*, OLLAMA_HOST, OPENAI_*), after .env
  5. Command flags`,
		Example: `  # Create .codecorpus.yaml in the current directory
  codecorpus config init

  # Show the effective configuration
  codecorpus config show

  # List chunking presets
  codecorpus config presets

  # Print an annotated config with every key
  codecorpus config example > .codecorpus.yaml`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPresetsCmd())
	cmd.AddCommand(newConfigExampleCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		preset string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create .codecorpus.yaml",
		Long: `Write the default configuration to <dir>/.codecorpus.yaml.

An existing file is kept unless --force is given; with --force it is backed
up next to the new file first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runConfigInit(cmd, dir, preset, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&preset, "preset", config.DefaultPreset, "Chunking preset to write")

	return cmd
}

func runConfigInit(cmd *cobra.Command, dir, preset string, force bool) error {
	path := filepath.Join(dir, config.ProjectConfigName)

	if _, err := os.Stat(path); err == nil {
		if !force {
			return cerrors.New(cerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("config file already exists: %s", path), nil).
				WithSuggestion("Use --force to overwrite")
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		if backup != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backed up existing config to %s\n", backup)
		}
	}

	cfg := config.NewConfig()
	if err := cfg.ApplyPreset(preset); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Show the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg, err := root.loadConfig(dir)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List chunking presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tUNIT\tSIZE\tOVERLAP\tDESCRIPTION")
			for _, p := range config.Presets() {
				name := p.Name
				if name == config.DefaultPreset {
					name += " (default)"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", name, p.Unit, p.ChunkSize, p.Overlap, p.Description)
			}
			return w.Flush()
		},
	}
}

func newConfigExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Print an annotated configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), configs.ProjectConfigTemplate)
			return err
		},
	}
}
