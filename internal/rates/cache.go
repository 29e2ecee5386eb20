package rates

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pokedan/cardwatch/backend/internal/metrics"
	"github.com/pokedan/cardwatch/backend/internal/models"
)

// Cache owns every ExchangeRate in the process. Rates live in memory and are
// persisted to sqlite keyed by currency pair so they survive restarts; a
// missing or unreadable store is a cold start, never a failure.
//
// The cache never fabricates a rate. When every provider fails it keeps the
// stale values it has and lets the caller decide via Age whether to use them.
type Cache struct {
	db        *gorm.DB
	providers []Provider
	ttl       time.Duration
	limiter   *rate.Limiter
	logger    zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	rates map[models.RatePair]models.ExchangeRate
}

// NewCache builds the cache and loads any persisted rates. db may be nil, in
// which case the cache is memory-only.
func NewCache(db *gorm.DB, providers []Provider, ttl time.Duration, logger zerolog.Logger) *Cache {
	c := &Cache{
		db:        db,
		providers: providers,
		ttl:       ttl,
		// Providers are rate-limited upstream; one burst of attempts per
		// minute is plenty for a 12 hour TTL.
		limiter: rate.NewLimiter(rate.Every(time.Minute), len(providers)+1),
		logger:  logger.With().Str("component", "rate_cache").Logger(),
		now:     time.Now,
		rates:   make(map[models.RatePair]models.ExchangeRate),
	}
	c.load()
	return c
}

// load reads persisted rates. Errors degrade to a cold cache.
func (c *Cache) load() {
	if c.db == nil {
		return
	}

	var rows []models.ExchangeRate
	if err := c.db.Find(&rows).Error; err != nil {
		c.logger.Warn().Err(err).Msg("could not load persisted rates, starting cold")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pair := range models.RequiredPairs {
		for _, row := range rows {
			if row.Pair == pair.String() && row.Value.IsPositive() {
				c.rates[pair] = row
			}
		}
	}
	if len(c.rates) > 0 {
		c.logger.Info().Int("pairs", len(c.rates)).Msg("loaded persisted exchange rates")
	}
}

// GetRate returns the cached rate for (base, quote). The boolean is false
// when no value has ever been fetched for the pair.
func (c *Cache) GetRate(base, quote string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.rates[models.RatePair{Base: base, Quote: quote}]
	if !ok {
		return decimal.Decimal{}, false
	}
	return cached.Value, true
}

// Age reports how old the cached rate for (base, quote) is.
func (c *Cache) Age(base, quote string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.rates[models.RatePair{Base: base, Quote: quote}]
	if !ok {
		return 0, false
	}
	return cached.Age(c.now()), true
}

// RefreshIfStale refreshes only when some required pair is missing or older
// than the TTL. Fresh rates cost no network calls.
func (c *Cache) RefreshIfStale(ctx context.Context) {
	if !c.needsRefresh() {
		metrics.RateRefreshTotal.WithLabelValues("skipped").Inc()
		c.observeAges()
		return
	}
	c.Refresh(ctx)
	c.observeAges()
}

// observeAges re-exports the current age of every cached pair; a gauge set
// only at store time would read fresh forever.
func (c *Cache) observeAges() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for pair, cached := range c.rates {
		metrics.RateAgeSeconds.WithLabelValues(pair.String()).Set(cached.Age(now).Seconds())
	}
}

func (c *Cache) needsRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, pair := range models.RequiredPairs {
		cached, ok := c.rates[pair]
		if !ok || cached.Age(now) > c.ttl {
			return true
		}
	}
	return false
}

// Refresh walks the provider list in order; the first complete, parseable
// rate set wins. All providers failing leaves existing rates in place and
// reports false; it never raises.
//
// The whole read-modify-persist sequence is one critical section so a
// concurrent reader can never observe a half-written rate set.
func (c *Cache) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, provider := range c.providers {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("rate refresh aborted")
			metrics.RateRefreshTotal.WithLabelValues("failed").Inc()
			return false
		}

		quotes, err := provider.FetchRates(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("rate provider failed, trying next")
			metrics.RateProviderFailures.WithLabelValues(provider.Name()).Inc()
			continue
		}

		c.store(provider.Name(), quotes)
		metrics.RateRefreshTotal.WithLabelValues("success").Inc()
		return true
	}

	c.logger.Error().Int("providers", len(c.providers)).Msg("all rate providers exhausted, keeping stale rates")
	metrics.RateRefreshTotal.WithLabelValues("failed").Inc()
	return false
}

// store replaces the in-memory set and persists it. Callers hold c.mu.
func (c *Cache) store(source string, quotes map[models.RatePair]decimal.Decimal) {
	now := c.now()
	rows := make([]models.ExchangeRate, 0, len(quotes))
	for pair, value := range quotes {
		row := models.ExchangeRate{
			Pair:      pair.String(),
			Value:     value,
			FetchedAt: now,
		}
		c.rates[pair] = row
		rows = append(rows, row)
		metrics.RateAgeSeconds.WithLabelValues(pair.String()).Set(0)
	}

	c.logger.Info().Str("provider", source).Int("pairs", len(rows)).Msg("exchange rates refreshed")

	if c.db == nil {
		return
	}

	// Upsert all pairs in one transaction: the persisted cache is replaced
	// atomically, never left half-written.
	err := c.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "fetched_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to persist exchange rates")
	}
}
