// Package careers pulls open positions from the Comeet careers API.
package careers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/jobs"
)

const (
	apiURL        = "https://www.comeet.co"
	positionsPath = "/careers-api/2.0/company/{uid}/positions"
	userAgent     = "spigell/matchai"
)

type Config struct {
	APIURL     string        `mapstructure:"api_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = apiURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(time.Second).
		SetLogger(logger.Sugar()).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= 500
		})

	return &Client{http: httpClient, logger: logger}
}

// Positions returns the open positions of company with their details, normalized to job records.
func (c *Client) Positions(ctx context.Context, company *jobs.Company) ([]map[string]any, error) {
	if company == nil {
		return nil, errors.New("company is required")
	}
	if strings.TrimSpace(company.Token) == "" {
		return nil, fmt.Errorf("company %s has no api token", company.UID)
	}

	var positions []map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("uid", company.UID).
		SetQueryParams(map[string]string{
			"token":   company.Token,
			"status":  "open",
			"details": "true",
		}).
		SetResult(&positions).
		Get(positionsPath)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get positions: bad status: %s", resp.Status())
	}

	c.logger.Debug("got positions from careers api",
		zap.String("company_uid", company.UID),
		zap.Int("positions", len(positions)),
	)

	out := make([]map[string]any, 0, len(positions))
	for _, position := range positions {
		out = append(out, Normalize(position))
	}
	return out, nil
}

type location struct {
	Name    string `mapstructure:"name"`
	City    string `mapstructure:"city"`
	Country string `mapstructure:"country"`
}

// Normalize maps a careers API position onto the job record layout: the position name becomes
// the title and a location object becomes its city, or its name when the city is empty.
func Normalize(position map[string]any) map[string]any {
	out := make(map[string]any, len(position)+1)
	for k, v := range position {
		out[k] = v
	}

	if _, ok := out["title"]; !ok {
		if name, ok := out["name"]; ok {
			out["title"] = name
		}
	}

	if raw, ok := out["location"].(map[string]any); ok {
		var loc location
		if err := mapstructure.WeakDecode(raw, &loc); err == nil {
			switch {
			case strings.TrimSpace(loc.City) != "":
				out["location"] = loc.City
			case strings.TrimSpace(loc.Name) != "":
				out["location"] = loc.Name
			default:
				out["location"] = loc.Country
			}
		}
	}
	return out
}
