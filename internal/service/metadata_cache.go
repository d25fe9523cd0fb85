package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Lumaria/Bot-Extended/internal/domain"
)

// DefaultMetadataTTL bounds how stale a returned metadata entry may be.
const DefaultMetadataTTL = 60 * time.Second

type metadataEntry struct {
	meta      domain.MarketMetadata
	fetchedAt time.Time
}

// MetadataCache caches per-market trading metadata with a fixed TTL.
// A miss or stale hit triggers one synchronous bulk fetch of the whole
// market list; one network round trip amortized over every market, which
// is fine because metadata moves slowly. Concurrent callers may refresh
// redundantly; the refresh is idempotent and the last writer wins.
type MetadataCache struct {
	fetcher domain.MarketFetcher
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[string]metadataEntry

	now func() time.Time // stubbed in tests
}

// NewMetadataCache creates a cache over the given fetcher with the
// default 60s TTL.
func NewMetadataCache(fetcher domain.MarketFetcher, ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &MetadataCache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]metadataEntry),
		now:     time.Now,
	}
}

// Get returns fresh metadata for the market, refreshing the whole cache
// first when the entry is absent or older than the TTL.
func (c *MetadataCache) Get(ctx context.Context, market string) (domain.MarketMetadata, bool) {
	c.mu.RLock()
	entry, ok := c.entries[market]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.meta, true
	}

	c.refresh(ctx)

	c.mu.RLock()
	entry, ok = c.entries[market]
	c.mu.RUnlock()
	return entry.meta, ok
}

// List returns cached metadata sorted by descending daily volume,
// refreshing first when the cache is empty or entirely stale. Entries
// without a positive volume are excluded; topN > 0 truncates after
// sorting.
func (c *MetadataCache) List(ctx context.Context, topN int) []domain.MarketMetadata {
	if !c.anyFresh() {
		c.refresh(ctx)
	}

	c.mu.RLock()
	markets := make([]domain.MarketMetadata, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.meta.DailyVolume.IsPositive() {
			markets = append(markets, entry.meta)
		}
	}
	c.mu.RUnlock()

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].DailyVolume.GreaterThan(markets[j].DailyVolume)
	})

	if topN > 0 && len(markets) > topN {
		markets = markets[:topN]
	}
	return markets
}

func (c *MetadataCache) anyFresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	for _, entry := range c.entries {
		if now.Sub(entry.fetchedAt) < c.ttl {
			return true
		}
	}
	return false
}

// refresh performs one bulk fetch and rewrites every entry with a new
// timestamp. Fetch failures are logged, not returned: callers observe
// them as an absent entry.
func (c *MetadataCache) refresh(ctx context.Context) {
	markets, err := c.fetcher.GetMarkets(ctx)
	if err != nil {
		slog.Warn("market metadata refresh failed", slog.Any("error", err))
		return
	}

	now := c.now()
	fresh := make(map[string]metadataEntry, len(markets))
	for _, m := range markets {
		fresh[m.Name] = metadataEntry{meta: m, fetchedAt: now}
	}

	c.mu.Lock()
	c.entries = fresh
	c.mu.Unlock()

	slog.Debug("market metadata cache refreshed", slog.Int("markets", len(markets)))
}
