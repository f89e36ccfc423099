package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/report"
	"github.com/spigell/matchai/internal/repository"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what is stored: jobs, companies, locations and whether a CV is uploaded",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		info(cmd)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("format", "o", formatTable, "output format: table or json")
}

func info(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	logger, _, comps := prepare(ctx)
	defer comps.Close()

	o, err := overview(ctx, comps)
	if err != nil {
		logger.Fatal("collecting statistics", zap.Error(err))
	}

	format, _ := cmd.Flags().GetString("format")
	if format == formatJSON {
		if err := printJSON(cmd.OutOrStdout(), o); err != nil {
			logger.Fatal("printing statistics", zap.Error(err))
		}
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Info(o))
}

func overview(ctx context.Context, comps *components) (report.Overview, error) {
	o := report.Overview{
		Storage: strings.ToLower(orDefault(comps.cfg.Storage.Backend, "memory")),
		Vectors: strings.ToLower(orDefault(comps.cfg.Storage.Vectors, "memory")),
	}

	var err error
	if o.Stats, err = comps.repo.JobStats(ctx); err != nil {
		return o, err
	}

	companies, err := comps.repo.Companies(ctx)
	if err != nil {
		return o, err
	}
	o.Sources = len(companies)

	latest, err := comps.repo.LatestCandidate(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return o, err
	default:
		o.Candidate = latest.Hash
	}
	return o, nil
}
