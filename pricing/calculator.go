package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

// serviceKeyFor maps the service names a recommendation uses to pricing
// API service codes. Unknown names fall back to the raw name so new
// services still resolve once the pricing source knows them.
var serviceKeyMap = map[string]string{
	"EC2":         "AmazonEC2",
	"RDS":         "AmazonRDS",
	"S3":          "AmazonS3",
	"Lambda":      "AWSLambda",
	"DynamoDB":    "AmazonDynamoDB",
	"CloudFront":  "AmazonCloudFront",
	"ELB":         "AWSELB",
	"ElastiCache": "AmazonElastiCache",
}

func serviceKeyFor(name string) string {
	if key, ok := serviceKeyMap[strings.TrimSpace(name)]; ok {
		return key
	}
	return strings.TrimSpace(name)
}

// CalculatorConfig sets the defaults used when a recommendation carries no
// region of its own.
type CalculatorConfig struct {
	DefaultRegion string `envconfig:"DEFAULT_REGION" split_words:"true" default:"us-east-1"`
	Currency      string `envconfig:"CURRENCY" split_words:"true" default:"USD"`
}

// Calculator prices a recommendation by resolving each service through the
// cache chain and summing monthly costs.
type Calculator struct {
	cache *Cache
	cfg   CalculatorConfig
	now   func() time.Time
}

func NewCalculator(cache *Cache, cfg CalculatorConfig) (*Calculator, error) {
	if cache == nil {
		return nil, errors.New("pricing: cache is required")
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "us-east-1"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Calculator{cache: cache, cfg: cfg, now: time.Now}, nil
}

// Estimate prices every service of the recommendation. Services the chain
// cannot price are skipped with a log line; only when no service can be
// priced at all does the estimate fail with ErrPricingUnavailable.
func (c *Calculator) Estimate(ctx context.Context, rec *contractx.Recommendation, region string) (*contractx.CostEstimate, error) {
	if rec == nil || len(rec.Services) == 0 {
		return nil, fmt.Errorf("%w: recommendation has no services", contractx.ErrValidation)
	}
	if strings.TrimSpace(region) == "" {
		region = c.cfg.DefaultRegion
	}

	estimate := &contractx.CostEstimate{
		Currency: c.cfg.Currency,
		Source:   contractx.CostSourceAPI,
	}
	now := c.now().UTC()
	window := c.cache.window
	var lastErr error

	for _, svc := range rec.Services {
		key := serviceKeyFor(svc.Name)
		entry, err := c.cache.Get(ctx, key, region)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("service", svc.Name).Str("region", region).
				Msg("service could not be priced")
			continue
		}

		estimate.Breakdown = append(estimate.Breakdown, contractx.CostBreakdownItem{
			ServiceName: svc.Name,
			ServiceKey:  key,
			Region:      region,
			MonthlyCost: entry.Amount,
			Unit:        entry.Unit,
			Source:      string(entry.Source),
			FetchedAt:   entry.FetchedAt,
		})
		estimate.TotalMonthly += entry.Amount

		if entry.Source == SourceCache {
			estimate.Source = contractx.CostSourceCache
		}
		if !entry.Fresh(now, window) {
			estimate.Stale = true
		}
		if estimate.OldestFetch.IsZero() || entry.FetchedAt.Before(estimate.OldestFetch) {
			estimate.OldestFetch = entry.FetchedAt
		}
	}

	if len(estimate.Breakdown) == 0 {
		if lastErr != nil && errors.Is(lastErr, contractx.ErrPricingUnavailable) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: no service could be priced: %v", contractx.ErrPricingUnavailable, lastErr)
	}
	return estimate, nil
}
