// Package pricing provides the two-tier cost cache in front of the
// external pricing source, plus the calculator and scheduled updater built
// on top of it.
package pricing

import (
	"context"
	"errors"
	"time"
)

// EntrySource labels whether a cost entry was just fetched from the
// pricing source or served from a cache tier.
type EntrySource string

const (
	SourceAPI   EntrySource = "api"
	SourceCache EntrySource = "cache"
)

// CostEntry is one cached price record. Entries are never deleted early,
// only superseded by a newer fetch for the same (serviceKey, region).
type CostEntry struct {
	ServiceKey string      `json:"service_key"`
	Region     string      `json:"region"`
	Amount     float64     `json:"amount"`
	Unit       string      `json:"unit"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Source     EntrySource `json:"source"`
}

// Fresh reports whether the entry is within the freshness window at now.
func (e *CostEntry) Fresh(now time.Time, window time.Duration) bool {
	return e != nil && now.Sub(e.FetchedAt) <= window
}

// Tier is one cache level in the fallback chain.
type Tier interface {
	Get(ctx context.Context, serviceKey, region string) (*CostEntry, error)
	Put(ctx context.Context, entry *CostEntry) error
}

// Source is the external pricing API boundary.
type Source interface {
	FetchPrice(ctx context.Context, serviceKey, region string) (amount float64, unit string, err error)
}

var (
	ErrEntryNotFound = errors.New("pricing entry not found")
	ErrNilEntry      = errors.New("pricing entry is nil")
	ErrInvalidKey    = errors.New("service key and region are required")
)

func entryKey(serviceKey, region string) string {
	return serviceKey + "|" + region
}
