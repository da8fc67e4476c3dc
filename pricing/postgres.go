package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// costEntryRow is the durable-tier row. One row per (service_key, region);
// a newer fetch supersedes the row in place.
type costEntryRow struct {
	bun.BaseModel `bun:"table:pricing_entries,alias:pe"`

	ServiceKey string    `bun:"service_key,pk"`
	Region     string    `bun:"region,pk"`
	Amount     float64   `bun:"amount,notnull"`
	Unit       string    `bun:"unit,notnull"`
	FetchedAt  time.Time `bun:"fetched_at,notnull"`
}

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// NewPostgresDB opens a bun DB over the pgdriver connector.
func NewPostgresDB(cfg PostgresConfig) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("pricing: postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// PostgresTier is the durable tier backed by Postgres.
type PostgresTier struct {
	db *bun.DB
}

func NewPostgresTier(db *bun.DB) (*PostgresTier, error) {
	if db == nil {
		return nil, errors.New("pricing: bun db is required")
	}
	return &PostgresTier{db: db}, nil
}

// EnsureSchema creates the pricing table if it does not exist.
func (t *PostgresTier) EnsureSchema(ctx context.Context) error {
	_, err := t.db.NewCreateTable().
		Model((*costEntryRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pricing: create pricing_entries table: %w", err)
	}
	return nil
}

func (t *PostgresTier) Get(ctx context.Context, serviceKey, region string) (*CostEntry, error) {
	row := new(costEntryRow)
	err := t.db.NewSelect().
		Model(row).
		Where("pe.service_key = ?", serviceKey).
		Where("pe.region = ?", region).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("pricing: select entry: %w", err)
	}
	return &CostEntry{
		ServiceKey: row.ServiceKey,
		Region:     row.Region,
		Amount:     row.Amount,
		Unit:       row.Unit,
		FetchedAt:  row.FetchedAt,
		Source:     SourceCache,
	}, nil
}

func (t *PostgresTier) Put(ctx context.Context, entry *CostEntry) error {
	if entry == nil {
		return ErrNilEntry
	}
	row := &costEntryRow{
		ServiceKey: entry.ServiceKey,
		Region:     entry.Region,
		Amount:     entry.Amount,
		Unit:       entry.Unit,
		FetchedAt:  entry.FetchedAt.UTC(),
	}
	_, err := t.db.NewInsert().
		Model(row).
		On("CONFLICT (service_key, region) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Set("unit = EXCLUDED.unit").
		Set("fetched_at = EXCLUDED.fetched_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pricing: upsert entry: %w", err)
	}
	return nil
}
