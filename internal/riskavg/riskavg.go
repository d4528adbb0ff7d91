// Package riskavg maintains the store-wide average fraud risk statistic.
//
// The average is recomputed at most once per TTL window and the result is
// persisted through system config so every instance reads the same cached
// value between recomputations.
package riskavg

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/solution25com/fraudshield/internal/order"
	"github.com/solution25com/fraudshield/internal/sysconfig"
	"github.com/solution25com/fraudshield/internal/traces"
)

// CacheTTL is how long a computed average stays valid.
const CacheTTL = 10800 * time.Second

// MaxOrders caps how many scored orders feed a single recomputation,
// newest first.
const MaxOrders = 100000

// ConfigStore is the slice of system config the cache needs.
type ConfigStore interface {
	GetFloat(ctx context.Context, key, channelID string) (float64, bool, error)
	GetInt64(ctx context.Context, key, channelID string) (int64, bool, error)
	SetFloat(ctx context.Context, key, channelID string, value float64) error
	SetInt64(ctx context.Context, key, channelID string, value int64) error
}

// OrderSource yields the scored orders the average is computed over.
type OrderSource interface {
	ListScored(ctx context.Context, limit int) ([]*order.Order, error)
}

// Cache computes and caches the overall average risk score.
type Cache struct {
	config ConfigStore
	orders OrderSource
	logger *slog.Logger

	now func() time.Time // swappable in tests
}

// NewCache creates an average-risk cache.
func NewCache(config ConfigStore, orders OrderSource, logger *slog.Logger) *Cache {
	return &Cache{
		config: config,
		orders: orders,
		logger: logger,
		now:    time.Now,
	}
}

// OverallRiskScore returns the cached average when it is still inside the
// TTL window, otherwise recomputes it from scored orders and persists the
// new value and timestamp. The cache pair is read and written at the given
// channel scope, falling back to the global value when the channel has none.
func (c *Cache) OverallRiskScore(ctx context.Context, channelID string) (float64, error) {
	cached, cachedOK, err := c.config.GetFloat(ctx, sysconfig.KeyOverallRiskScore, channelID)
	if err != nil {
		return 0, err
	}
	lastUnix, lastOK, err := c.config.GetInt64(ctx, sysconfig.KeyLastCalculationTime, channelID)
	if err != nil {
		return 0, err
	}

	if cachedOK && lastOK {
		age := c.now().Sub(time.Unix(lastUnix, 0))
		if age >= 0 && age < CacheTTL {
			return cached, nil
		}
	}

	return c.recompute(ctx, channelID)
}

// Invalidate forces the next OverallRiskScore call for the channel to
// recompute.
func (c *Cache) Invalidate(ctx context.Context, channelID string) error {
	return c.config.SetInt64(ctx, sysconfig.KeyLastCalculationTime, channelID, 0)
}

func (c *Cache) recompute(ctx context.Context, channelID string) (float64, error) {
	ctx, span := traces.StartSpan(ctx, "riskavg.recompute", traces.ChannelID(channelID))
	defer span.End()

	orders, err := c.orders.ListScored(ctx, MaxOrders)
	if err != nil {
		return 0, err
	}

	score := Average(orders)

	if err := c.config.SetFloat(ctx, sysconfig.KeyOverallRiskScore, channelID, score); err != nil {
		return 0, err
	}
	if err := c.config.SetInt64(ctx, sysconfig.KeyLastCalculationTime, channelID, c.now().Unix()); err != nil {
		return 0, err
	}

	recomputationsTotal.Inc()
	c.logger.Info("overall risk score recomputed", "score", score, "orders", len(orders))
	return score, nil
}

// Average computes the overall risk score over scored orders: the mean of
// the fraud scores averaged with the mean of the IP scores, rounded to two
// decimals. Each mean runs over the orders that carry that field, since an
// order can be scored on one axis only. A field with no values counts as a
// 0.0 mean, and no scored orders yields 0.
func Average(orders []*order.Order) float64 {
	var fraudSum, ipSum float64
	var fraudN, ipN int
	for _, o := range orders {
		if v, ok := order.FraudRiskFrom(o.CustomFields); ok {
			fraudSum += v
			fraudN++
		}
		if v, ok := order.IPRiskFrom(o.CustomFields); ok {
			ipSum += v
			ipN++
		}
	}

	var fraudMean, ipMean float64
	if fraudN > 0 {
		fraudMean = fraudSum / float64(fraudN)
	}
	if ipN > 0 {
		ipMean = ipSum / float64(ipN)
	}
	return round2((fraudMean + ipMean) / 2)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
