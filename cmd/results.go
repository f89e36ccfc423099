package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/report"
	"github.com/spigell/matchai/internal/repository"
)

var resultsCmd = &cobra.Command{
	Use:   "results [candidate-hash]",
	Short: "Show stored match results (default: latest run of the latest candidate)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		results(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.Flags().Bool("all", false, "show every stored run instead of the latest one")
	resultsCmd.Flags().String("run", "", "show a specific run id")
	resultsCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}

func results(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	hash := ""
	if len(args) == 1 {
		hash = args[0]
	}
	candidate, err := comps.profiles.Lookup(ctx, hash)
	if err != nil {
		logger.Fatal("resolving candidate", zap.String("candidate_hash", hash), zap.Error(err))
	}

	stored, err := comps.repo.Results(ctx, candidate.Hash)
	if err != nil {
		logger.Fatal("loading results", zap.Error(err))
	}

	all, _ := cmd.Flags().GetBool("all")
	runID, _ := cmd.Flags().GetString("run")
	if !all {
		if runID == "" && len(stored) > 0 {
			runID = stored[0].RunID
		}
		stored = selectRun(stored, runID)
	}

	format, _ := cmd.Flags().GetString("format")
	if format == formatJSON {
		if err := printJSON(cmd.OutOrStdout(), stored); err != nil {
			logger.Fatal("printing results", zap.Error(err))
		}
		return
	}

	if runID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", runID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Results(stored))
}

// selectRun keeps the results of one run. Results arrive newest run first.
func selectRun(results []repository.MatchResult, runID string) []repository.MatchResult {
	out := make([]repository.MatchResult, 0, len(results))
	for _, r := range results {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out
}
