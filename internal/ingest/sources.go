package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/jobs"
)

// Source returns the open positions of a company as untyped records.
type Source interface {
	Positions(ctx context.Context, company *jobs.Company) ([]map[string]any, error)
}

// IngestCompanies pulls positions for every stored company and ingests them as one batch. A
// company whose fetch fails is recorded and skipped.
func (c *Coordinator) IngestCompanies(ctx context.Context, source Source) (Stats, error) {
	companies, err := c.repo.Companies(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list companies: %w", err)
	}

	r := newRun()
	var records []map[string]any
	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}

		positions, err := source.Positions(ctx, company)
		if err != nil {
			r.summary.Add(failure.FromCall(failure.KindSource, company.UID, err))
			c.logger.Warn("fetch company positions failed", zap.String("company_uid", company.UID), zap.Error(err))
			continue
		}
		r.stats.CompaniesProcessed++
		r.stats.Fetched += len(positions)

		for _, record := range positions {
			if _, ok := record["company_uid"]; !ok {
				record["company_uid"] = company.UID
			}
			if _, ok := record["company_name"]; !ok && company.Name != "" {
				record["company_name"] = company.Name
			}
			records = append(records, record)
		}
		c.logger.Info("fetched company positions",
			zap.String("company_uid", company.UID),
			zap.Int("positions", len(positions)),
		)
	}

	decoded, errs := jobs.Decode(records)
	r.stats.Received = len(records)
	for _, err := range errs {
		r.validationFailed(err)
	}
	return c.ingest(ctx, r, decoded)
}
