package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/index"
	"github.com/Aman-CERP/codecorpus/internal/store"
	"github.com/Aman-CERP/codecorpus/internal/ui"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	var (
		deep         bool
		jsonOutput   bool
		noColor      bool
		indexPath    string
		metadataPath string
		sourceRoot   string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the index and metadata line up",
		Long: `Load both artifacts and check that the metadata has one record per
index vector, that record ids are their positions and that stored
embeddings match the index width.

--deep also re-chunks the source files with the recorded policy and checks
that the stored chunks are unchanged and rebuild every file exactly.

Exits non-zero when any issue is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := root.loadConfig(".")
			if err != nil {
				return err
			}
			format, err := store.ParseMetadataFormat(cfg.Output.MetadataFormat)
			if err != nil {
				return err
			}
			opts := index.CheckOptions{
				IndexPath:    cfg.Output.IndexPath,
				MetadataPath: cfg.Output.MetadataPath,
				Format:       format,
				Deep:         deep,
				RootDir:      sourceRoot,
			}
			if indexPath != "" {
				opts.IndexPath = indexPath
			}
			if metadataPath != "" {
				opts.MetadataPath = metadataPath
			}

			result, err := index.NewConsistencyChecker(opts).Check(ctx)
			if err != nil {
				return err
			}

			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			info := result.StatusInfo(opts)
			if jsonOutput {
				err = renderer.RenderJSON(info)
			} else {
				err = renderer.Render(info)
			}
			if err != nil {
				return err
			}

			if !result.Consistent() {
				return cerrors.New(cerrors.ErrCodeArtifactMismatch,
					fmt.Sprintf("corpus is inconsistent: %d issue(s)", len(result.Inconsistencies)), nil).
					WithSuggestion("Rebuild the corpus with 'codecorpus index'")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deep, "deep", false, "Re-chunk the sources and check the round trip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&indexPath, "index", "", "Index artifact (default: output.index_path)")
	cmd.Flags().StringVar(&metadataPath, "metadata", "", "Metadata artifact (default: output.metadata_path)")
	cmd.Flags().StringVar(&sourceRoot, "root", "", "Source root for --deep (default: the root recorded at build time)")

	return cmd
}
