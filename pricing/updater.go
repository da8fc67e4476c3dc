package pricing

import (
	"context"
	"errors"
	"sync"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// CatalogEntry is one (service, region) pair the scheduled updater keeps
// warm.
type CatalogEntry struct {
	ServiceKey string
	Region     string
}

// DefaultCatalog covers the services recommendations most commonly
// include, priced for the default region.
func DefaultCatalog(region string) []CatalogEntry {
	if region == "" {
		region = "us-east-1"
	}
	keys := []string{"AmazonEC2", "AmazonRDS", "AmazonS3", "AWSLambda", "AmazonDynamoDB"}
	catalog := make([]CatalogEntry, 0, len(keys))
	for _, key := range keys {
		catalog = append(catalog, CatalogEntry{ServiceKey: key, Region: region})
	}
	return catalog
}

// UpdaterConfig sets the refresh schedule. The default runs daily at 03:00.
type UpdaterConfig struct {
	Schedule string `envconfig:"SCHEDULE" split_words:"true" default:"0 3 * * *"`
}

// UpdateResult counts one refresh pass.
type UpdateResult struct {
	Updated int
	Failed  int
}

// Updater periodically refreshes the catalog through the cache's
// write-through path. Refresh failures are logged and never evict
// existing entries.
type Updater struct {
	cache    *Cache
	catalog  []CatalogEntry
	schedule string

	mu   sync.Mutex
	cron *rcron.Cron
}

func NewUpdater(cache *Cache, catalog []CatalogEntry, cfg UpdaterConfig) (*Updater, error) {
	if cache == nil {
		return nil, errors.New("pricing: cache is required")
	}
	if len(catalog) == 0 {
		return nil, errors.New("pricing: catalog is empty")
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	return &Updater{
		cache:    cache,
		catalog:  catalog,
		schedule: schedule,
	}, nil
}

// RunOnce refreshes every catalog entry and reports how many succeeded.
func (u *Updater) RunOnce(ctx context.Context) UpdateResult {
	var result UpdateResult
	for _, entry := range u.catalog {
		if err := u.cache.Refresh(ctx, entry.ServiceKey, entry.Region); err != nil {
			result.Failed++
			log.Warn().Err(err).Str("service_key", entry.ServiceKey).Str("region", entry.Region).
				Msg("pricing refresh failed")
			continue
		}
		result.Updated++
	}
	log.Info().Int("updated", result.Updated).Int("failed", result.Failed).
		Msg("pricing refresh pass completed")
	return result
}

// Start registers the cron job and begins the schedule. Stop cancels it.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cron != nil {
		return errors.New("pricing: updater already started")
	}

	c := rcron.New()
	if _, err := c.AddFunc(u.schedule, func() {
		u.RunOnce(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	u.cron = c
	log.Info().Str("schedule", u.schedule).Int("catalog", len(u.catalog)).
		Msg("pricing updater started")

	go func() {
		<-ctx.Done()
		u.Stop()
	}()
	return nil
}

func (u *Updater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cron != nil {
		u.cron.Stop()
		u.cron = nil
	}
}
