package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/cloudcraft-labs/archadvisor/agent/contract"
)

type stubSource struct {
	amount float64
	unit   string
	err    error
	calls  int
}

func (s *stubSource) FetchPrice(ctx context.Context, serviceKey, region string) (float64, string, error) {
	s.calls++
	if s.err != nil {
		return 0, "", s.err
	}
	return s.amount, s.unit, nil
}

type failingTier struct {
	getErr error
	putErr error
}

func (t *failingTier) Get(ctx context.Context, serviceKey, region string) (*CostEntry, error) {
	if t.getErr != nil {
		return nil, t.getErr
	}
	return nil, ErrEntryNotFound
}

func (t *failingTier) Put(ctx context.Context, entry *CostEntry) error {
	return t.putErr
}

func newTestCache(t *testing.T, fast, durable Tier, source Source, now time.Time) *Cache {
	t.Helper()
	c, err := NewCache(fast, durable, source, CacheConfig{})
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	return c.WithClock(func() time.Time { return now })
}

func seedEntry(t *testing.T, tier Tier, serviceKey, region string, amount float64, fetchedAt time.Time) {
	t.Helper()
	err := tier.Put(context.Background(), &CostEntry{
		ServiceKey: serviceKey,
		Region:     region,
		Amount:     amount,
		Unit:       "USD/month",
		FetchedAt:  fetchedAt,
		Source:     SourceAPI,
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestCacheGetFreshFastTier(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	source := &stubSource{amount: 99}
	seedEntry(t, fast, "AmazonEC2", "us-east-1", 42, now.Add(-time.Hour))

	c := newTestCache(t, fast, NewMemoryTier(), source, now)

	entry, err := c.Get(context.Background(), "AmazonEC2", "us-east-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Amount != 42 {
		t.Fatalf("Amount = %v, want 42", entry.Amount)
	}
	if entry.Source != SourceCache {
		t.Fatalf("Source = %v, want cache", entry.Source)
	}
	if source.calls != 0 {
		t.Fatalf("source must not be called on fast hit, got %d calls", source.calls)
	}
}

func TestCacheGetDurableHitPromotesToFast(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	durable := NewMemoryTier()
	source := &stubSource{amount: 99}
	seedEntry(t, durable, "AmazonRDS", "us-east-1", 55, now.Add(-2*time.Hour))

	c := newTestCache(t, fast, durable, source, now)

	entry, err := c.Get(context.Background(), "AmazonRDS", "us-east-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Amount != 55 || entry.Source != SourceCache {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if source.calls != 0 {
		t.Fatalf("source must not be called on durable hit, got %d", source.calls)
	}

	promoted, err := fast.Get(context.Background(), "AmazonRDS", "us-east-1")
	if err != nil {
		t.Fatalf("expected entry promoted to fast tier: %v", err)
	}
	if promoted.Amount != 55 {
		t.Fatalf("promoted Amount = %v", promoted.Amount)
	}
}

func TestCacheGetMissFetchesAndWritesBothTiers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	durable := NewMemoryTier()
	source := &stubSource{amount: 12.5, unit: "USD/month"}

	c := newTestCache(t, fast, durable, source, now)

	entry, err := c.Get(context.Background(), "AWSLambda", "eu-west-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Source != SourceAPI {
		t.Fatalf("fresh fetch must be tagged api, got %v", entry.Source)
	}
	if entry.Amount != 12.5 || !entry.FetchedAt.Equal(now) {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	for name, tier := range map[string]Tier{"fast": fast, "durable": durable} {
		got, err := tier.Get(context.Background(), "AWSLambda", "eu-west-1")
		if err != nil {
			t.Fatalf("%s tier missing entry: %v", name, err)
		}
		if got.Amount != 12.5 {
			t.Fatalf("%s tier Amount = %v", name, got.Amount)
		}
	}
}

func TestCacheGetExpiredEntryRefetches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	source := &stubSource{amount: 20}
	seedEntry(t, fast, "AmazonS3", "us-east-1", 10, now.Add(-25*time.Hour))

	c := newTestCache(t, fast, NewMemoryTier(), source, now)

	entry, err := c.Get(context.Background(), "AmazonS3", "us-east-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Amount != 20 || entry.Source != SourceAPI {
		t.Fatalf("expected refetched entry, got %+v", entry)
	}
	if source.calls != 1 {
		t.Fatalf("expected one source call, got %d", source.calls)
	}
}

func TestCacheGetStaleRescueWhenSourceDown(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	durable := NewMemoryTier()
	source := &stubSource{err: errors.New("api down")}

	staleFast := now.Add(-30 * time.Hour)
	staleDurable := now.Add(-26 * time.Hour)
	seedEntry(t, fast, "AmazonEC2", "us-east-1", 10, staleFast)
	seedEntry(t, durable, "AmazonEC2", "us-east-1", 11, staleDurable)

	c := newTestCache(t, fast, durable, source, now)

	entry, err := c.Get(context.Background(), "AmazonEC2", "us-east-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// The newer of the two stale entries wins, tagged as cache with its
	// original fetch time preserved.
	if entry.Amount != 11 {
		t.Fatalf("Amount = %v, want the newer stale entry", entry.Amount)
	}
	if entry.Source != SourceCache {
		t.Fatalf("Source = %v, want cache", entry.Source)
	}
	if !entry.FetchedAt.Equal(staleDurable) {
		t.Fatalf("FetchedAt = %v, want original %v", entry.FetchedAt, staleDurable)
	}
}

func TestCacheGetNothingAnywhere(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	source := &stubSource{err: errors.New("api down")}

	c := newTestCache(t, NewMemoryTier(), NewMemoryTier(), source, now)

	_, err := c.Get(context.Background(), "AmazonEC2", "us-east-1")
	if !errors.Is(err, contractx.ErrPricingUnavailable) {
		t.Fatalf("Get() error = %v, want ErrPricingUnavailable", err)
	}
}

func TestCacheGetInvalidKey(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCache(t, NewMemoryTier(), NewMemoryTier(), &stubSource{}, now)

	if _, err := c.Get(context.Background(), "  ", "us-east-1"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestCacheFetchSkipsFastWhenDurableWriteFails(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	durable := &failingTier{putErr: errors.New("db down")}
	source := &stubSource{amount: 30}

	c := newTestCache(t, fast, durable, source, now)

	_, err := c.Get(context.Background(), "AmazonEC2", "us-east-1")
	if err == nil {
		t.Fatal("expected error when durable write fails and nothing is cached")
	}
	if fast.Len() != 0 {
		t.Fatal("fast tier must not hold entries the durable tier lacks")
	}
}

func TestCacheRefreshWritesThrough(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fast := NewMemoryTier()
	durable := NewMemoryTier()
	source := &stubSource{amount: 5}
	// A fresh entry exists; Refresh must still hit the source.
	seedEntry(t, fast, "AmazonEC2", "us-east-1", 99, now.Add(-time.Minute))

	c := newTestCache(t, fast, durable, source, now)

	if err := c.Refresh(context.Background(), "AmazonEC2", "us-east-1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected unconditional source call, got %d", source.calls)
	}

	got, err := fast.Get(context.Background(), "AmazonEC2", "us-east-1")
	if err != nil {
		t.Fatalf("fast tier read: %v", err)
	}
	if got.Amount != 5 {
		t.Fatalf("Amount = %v, want refreshed value", got.Amount)
	}
}
