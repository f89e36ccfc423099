package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/careers"
	"github.com/spigell/matchai/internal/ingest"
	"github.com/spigell/matchai/internal/jobs"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [batch-file]",
	Short: "Ingest job postings from a YAML/JSON batch file, or from the careers API of stored companies",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ingestJobs(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("from-api", false, "fetch open positions of every stored company instead of reading a file")
}

func ingestJobs(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, config, comps := prepare(ctx)
	defer comps.Close()

	fromAPI, _ := cmd.Flags().GetBool("from-api")
	if len(args) == 0 && !fromAPI {
		logger.Fatal("nothing to ingest", zap.String("hint", "pass a batch file or --from-api"))
	}

	var (
		stats ingest.Stats
		err   error
	)
	if fromAPI {
		stats, err = comps.ingest.IngestCompanies(ctx, careers.New(config.Careers, logger))
	} else {
		var records []map[string]any
		records, err = jobs.LoadBatch(args[0])
		if err != nil {
			logger.Fatal("loading batch file", zap.String("file", args[0]), zap.Error(err))
		}
		stats, err = comps.ingest.IngestRecords(ctx, records)
	}
	if err != nil {
		logger.Fatal("ingestion aborted", append(stats.Fields(), zap.Error(err))...)
	}

	logger.Info("ingestion finished", stats.Fields()...)
	if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
		logger.Fatal("printing stats", zap.Error(err))
	}
}
