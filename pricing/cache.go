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

const defaultFreshnessWindow = 24 * time.Hour

// CacheConfig tunes the two-tier cache.
type CacheConfig struct {
	FreshnessWindow time.Duration `envconfig:"FRESHNESS_WINDOW" split_words:"true" default:"24h"`
	SourceTimeout   time.Duration `envconfig:"SOURCE_TIMEOUT" split_words:"true" default:"15s"`
}

// Cache is an ordered fallback chain: fast tier, durable tier, external
// source, then stale-entry rescue. The fast tier is strictly a cache of
// the durable tier; a source fetch writes the durable tier before the
// fast tier so the two never skew.
type Cache struct {
	fast    Tier
	durable Tier
	source  Source
	window  time.Duration
	timeout time.Duration
	now     func() time.Time
}

func NewCache(fast, durable Tier, source Source, cfg CacheConfig) (*Cache, error) {
	if fast == nil || durable == nil {
		return nil, errors.New("pricing: both cache tiers are required")
	}
	if source == nil {
		return nil, errors.New("pricing: source is required")
	}
	window := cfg.FreshnessWindow
	if window <= 0 {
		window = defaultFreshnessWindow
	}
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Cache{
		fast:    fast,
		durable: durable,
		source:  source,
		window:  window,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// WithClock overrides the cache's time source. Test hook.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	if now != nil {
		c.now = now
	}
	return c
}

// Get resolves a price through the fallback chain. Stale entries are still
// returned when the source is down, tagged source=cache with their
// original FetchedAt so the caller can disclose staleness. When neither
// tier has anything and the source fails, ErrPricingUnavailable is
// returned; a price is never fabricated.
func (c *Cache) Get(ctx context.Context, serviceKey, region string) (*CostEntry, error) {
	if strings.TrimSpace(serviceKey) == "" || strings.TrimSpace(region) == "" {
		return nil, ErrInvalidKey
	}
	now := c.now().UTC()

	fastEntry, err := c.fast.Get(ctx, serviceKey, region)
	if err == nil && fastEntry.Fresh(now, c.window) {
		return tagged(fastEntry, SourceCache), nil
	}
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		log.Warn().Err(err).Str("service_key", serviceKey).Msg("fast tier read failed")
	}

	durableEntry, err := c.durable.Get(ctx, serviceKey, region)
	if err == nil && durableEntry.Fresh(now, c.window) {
		if putErr := c.fast.Put(ctx, durableEntry); putErr != nil {
			log.Warn().Err(putErr).Str("service_key", serviceKey).Msg("fast tier promote failed")
		}
		return tagged(durableEntry, SourceCache), nil
	}
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		log.Warn().Err(err).Str("service_key", serviceKey).Msg("durable tier read failed")
	}

	fetched, fetchErr := c.fetchAndStore(ctx, serviceKey, region)
	if fetchErr == nil {
		return fetched, nil
	}
	log.Warn().Err(fetchErr).Str("service_key", serviceKey).Str("region", region).
		Msg("pricing source fetch failed, falling back to stale entries")

	// Stale beats absent: prefer the newest entry either tier still holds.
	if stale := newest(fastEntry, durableEntry); stale != nil {
		return tagged(stale, SourceCache), nil
	}

	return nil, fmt.Errorf("%w: %s in %s: %v", contractx.ErrPricingUnavailable, serviceKey, region, fetchErr)
}

// Refresh unconditionally fetches from the source and writes through both
// tiers. A failure leaves existing entries untouched.
func (c *Cache) Refresh(ctx context.Context, serviceKey, region string) error {
	if strings.TrimSpace(serviceKey) == "" || strings.TrimSpace(region) == "" {
		return ErrInvalidKey
	}
	_, err := c.fetchAndStore(ctx, serviceKey, region)
	return err
}

// fetchAndStore calls the source and writes both tiers. The durable tier
// is written first; if that write fails the fast tier is left alone, so
// the fast tier never holds data the durable tier lacks.
func (c *Cache) fetchAndStore(ctx context.Context, serviceKey, region string) (*CostEntry, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	amount, unit, err := c.source.FetchPrice(callCtx, serviceKey, region)
	if err != nil {
		return nil, err
	}

	entry := &CostEntry{
		ServiceKey: serviceKey,
		Region:     region,
		Amount:     amount,
		Unit:       unit,
		FetchedAt:  c.now().UTC(),
		Source:     SourceAPI,
	}

	if err := c.durable.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("pricing: durable tier write: %w", err)
	}
	if err := c.fast.Put(ctx, entry); err != nil {
		log.Warn().Err(err).Str("service_key", serviceKey).Msg("fast tier write failed")
	}
	return entry, nil
}

func tagged(entry *CostEntry, src EntrySource) *CostEntry {
	out := *entry
	out.Source = src
	return &out
}

func newest(a, b *CostEntry) *CostEntry {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.FetchedAt.After(b.FetchedAt):
		return a
	default:
		return b
	}
}
