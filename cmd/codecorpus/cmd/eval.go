package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/codecorpus/internal/errors"
	"github.com/Aman-CERP/codecorpus/internal/validation"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		strict     bool
		corpusOpts corpusFlags
	)

	cmd := &cobra.Command{
		Use:   "eval <queries.yaml>",
		Short: "Measure retrieval quality against expected files",
		Long: `Run every query in a YAML file against the corpus and report which
queries found one of their expected files in the top K results.

  k: 5
  queries:
    - id: Q1
      query: "transposition table resize"
      expected: ["src/tt.cpp"]
  negative:
    - id: N1
      query: ""

Prints the hit rate and mean reciprocal rank. With --strict any miss makes
the command fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			queries, err := validation.LoadQueries(args[0])
			if err != nil {
				return err
			}

			corpus, err := corpusOpts.open(ctx, root)
			if err != nil {
				return err
			}
			defer func() { _ = corpus.Close() }()

			report, err := validation.NewValidator(corpus).Run(ctx, queries)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				writeReport(cmd.OutOrStdout(), report)
			}

			if strict && !report.AllPassed() {
				return cerrors.New(cerrors.ErrCodeInternal,
					fmt.Sprintf("%d of %d queries missed", report.Total-report.Passed+report.NegTotal-report.NegPassed,
						report.Total+report.NegTotal), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any query misses")
	corpusOpts.register(cmd)

	return cmd
}

func writeReport(w io.Writer, r *validation.Report) {
	for _, tr := range r.Results {
		status := "PASS"
		if !tr.Passed {
			status = "MISS"
		}
		detail := ""
		switch {
		case tr.Error != "":
			detail = "error: " + tr.Error
		case tr.Negative:
			detail = "negative"
		case tr.Passed:
			detail = fmt.Sprintf("rank %d", tr.MatchedAt+1)
		case len(tr.TopResults) > 0:
			detail = "got " + tr.TopResults[0]
		}
		_, _ = fmt.Fprintf(w, "[%s] %s %q %s\n", status, tr.Spec.ID, tr.Spec.Query, detail)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Hit rate@%d: %d/%d (%.1f%%)  MRR: %.3f\n",
		r.K, r.Passed, r.Total, r.HitRate()*100, r.MRR)
	if r.NegTotal > 0 {
		_, _ = fmt.Fprintf(w, "Negative: %d/%d handled\n", r.NegPassed, r.NegTotal)
	}
}
