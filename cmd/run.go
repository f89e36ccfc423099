package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/careers"
	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/utils"
)

const defaultInterval = 24 * time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest from the careers API and match the latest candidate, repeating on a schedule",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("once", false, "run a single cycle and exit")
	runCmd.Flags().Duration("interval", 0, "time between cycles (default from schedule.interval, then 24h)")
	runCmd.Flags().Bool("skip-ingest", false, "only match, do not fetch new positions")
}

// run is the scheduled pipeline: every cycle fetches positions, then matches and stores results.
func run(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, config, comps := prepare(ctx)
	defer comps.Close()

	logger.Info("starting the matchai", zap.String("version", version))

	once, _ := cmd.Flags().GetBool("once")
	skipIngest, _ := cmd.Flags().GetBool("skip-ingest")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = config.Schedule.Interval
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	source := careers.New(config.Careers, logger)

	for cycle := 1; ; cycle++ {
		log := logger.With(zap.Int("cycle", cycle))

		if err := runCycle(ctx, log, comps, source, config.Schedule.Location, skipIngest); err != nil {
			if failure.IsConfiguration(err) {
				log.Fatal("cycle aborted", zap.Error(err))
			}
			log.Error("cycle failed", zap.Error(err))
		}

		if once {
			return
		}

		log.Info("waiting for the next cycle", zap.Duration("interval", interval))
		if err := utils.WaitFor(ctx, interval); err != nil {
			logger.Info("exiting", zap.String("reason", "interrupted"))
			return
		}
	}
}

func runCycle(ctx context.Context, logger *zap.Logger, comps *components, source *careers.Client, location string, skipIngest bool) error {
	if !skipIngest {
		stats, err := comps.ingest.IngestCompanies(ctx, source)
		if err != nil {
			return err
		}
		logger.Info("ingestion finished", append(stats.Fields(),
			zap.Int("companies_processed", stats.CompaniesProcessed),
			zap.Int("jobs_fetched", stats.Fetched),
		)...)
	}

	candidate, err := comps.profiles.Lookup(ctx, "")
	if err != nil {
		return errors.Join(errors.New("no candidate to match, upload a CV first"), err)
	}

	rep, err := comps.matcher.Match(ctx, matching.Request{Candidate: candidate, Location: location})
	if err != nil {
		return err
	}

	log := runLogger(logger, rep)
	log.Info("cycle finished",
		zap.String("outcome", string(rep.Outcome)),
		zap.Int("results", len(rep.Results)),
		zap.Int("explanation_failures", rep.ExplanationFailures()),
	)

	if comps.notifier != nil {
		// Results are already stored, a failed mail does not fail the cycle.
		if _, err := comps.notifier.Notify(ctx, rep); err != nil {
			log.Warn("mailing results failed", zap.Error(err))
		}
	}
	return nil
}
