package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/preflight"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput   bool
		verbose      bool
		skipEmbedder bool
		f            indexFlags
	)

	cmd := &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Check that an index run can succeed",
		Long: `Run the preflight checks for 'codecorpus index' without building anything:
the source root, both output directories, free disk space, the open file
limit and one probe request to the configured embedder.

Takes the same artifact and embedding flags as index.`,
		Example: `  # Check the current directory with the project config
  codecorpus doctor

  # Check an Ollama setup before a long run
  codecorpus doctor src --model ollama:nomic-embed-text`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg, err := root.loadConfig(dir)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Paths.RootDir = dir
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
				preflight.WithSkipEmbedder(skipEmbedder))
			results := checker.RunAll(cmd.Context(), cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return cerrors.New(cerrors.ErrCodePreflightFailed,
					fmt.Sprintf("preflight failed for %s", cfg.Paths.RootDir), nil).
					WithSuggestion("Fix the FAIL entries above and run 'codecorpus doctor' again")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	flags.BoolVar(&skipEmbedder, "skip-embedder", false, "Do not contact the embedding provider")
	flags.StringVar(&f.indexOut, "index-out", "", "Index artifact path")
	flags.StringVar(&f.metadataOut, "metadata-out", "", "Metadata artifact path")
	flags.StringVar(&f.model, "model", "", "Embedding model id")
	flags.StringVar(&f.provider, "provider", "", "Embedding provider: auto, static, ollama or openai")

	return cmd
}
