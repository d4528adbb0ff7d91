package riskavg

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/solution25com/fraudshield/internal/order"
	"github.com/solution25com/fraudshield/internal/sysconfig"
)

type fakeSource struct {
	orders []*order.Order
	calls  int
}

func (f *fakeSource) ListScored(ctx context.Context, limit int) ([]*order.Order, error) {
	f.calls++
	if len(f.orders) > limit {
		return f.orders[:limit], nil
	}
	return f.orders, nil
}

func scoredOrder(id string, fraud, ip float64) *order.Order {
	return &order.Order{
		ID: id,
		CustomFields: map[string]any{
			order.FieldFraudRisk:   fraud,
			order.FieldIPRiskScore: ip,
		},
	}
}

func newTestCache(src *fakeSource, now time.Time) (*Cache, *time.Time) {
	clock := now
	c := NewCache(
		sysconfig.NewService(sysconfig.NewMemoryStore()),
		src,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestAverage(t *testing.T) {
	orders := []*order.Order{
		scoredOrder("a", 10, 20),
		scoredOrder("b", 0, 100),
	}
	// mean fraud = 5, mean ip = 60, overall = 32.5
	if got := Average(orders); got != 32.5 {
		t.Errorf("expected 32.5, got %v", got)
	}
}

func TestAverageSingleFieldOrders(t *testing.T) {
	orders := []*order.Order{
		{ID: "a", CustomFields: map[string]any{order.FieldFraudRisk: 10.0}},
		scoredOrder("b", 20, 50),
	}
	// fraud mean = 15 over both orders, ip mean = 50 over the one order
	// that carries an ip score, overall = 32.5
	if got := Average(orders); got != 32.5 {
		t.Errorf("expected 32.5, got %v", got)
	}
}

func TestAverageEmpty(t *testing.T) {
	if got := Average(nil); got != 0 {
		t.Errorf("expected 0 for no orders, got %v", got)
	}
}

func TestAverageRounding(t *testing.T) {
	orders := []*order.Order{
		scoredOrder("a", 10, 0),
		scoredOrder("b", 10, 0),
		scoredOrder("c", 11, 0),
	}
	// mean fraud = 10.333..., overall = 5.166... -> 5.17
	if got := Average(orders); got != 5.17 {
		t.Errorf("expected 5.17, got %v", got)
	}
}

func TestOverallRiskScoreCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{orders: []*order.Order{scoredOrder("a", 40, 40)}}
	cache, clock := newTestCache(src, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	first, err := cache.OverallRiskScore(ctx, "")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first != 40.0 {
		t.Errorf("expected 40.0, got %v", first)
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 recomputation, got %d", src.calls)
	}

	// New orders arrive but the window has not expired, so the cached
	// value is served bit for bit.
	src.orders = append(src.orders, scoredOrder("b", 100, 100))
	*clock = clock.Add(CacheTTL - time.Second)

	second, err := cache.OverallRiskScore(ctx, "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second != first {
		t.Errorf("cached value changed: %v -> %v", first, second)
	}
	if src.calls != 1 {
		t.Errorf("recomputed inside TTL window, calls=%d", src.calls)
	}
}

func TestOverallRiskScoreRecomputesAfterTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{orders: []*order.Order{scoredOrder("a", 40, 40)}}
	cache, clock := newTestCache(src, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if _, err := cache.OverallRiskScore(ctx, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}

	src.orders = append(src.orders, scoredOrder("b", 100, 100))
	*clock = clock.Add(CacheTTL)

	got, err := cache.OverallRiskScore(ctx, "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	// mean fraud = 70, mean ip = 70, overall = 70
	if got != 70.0 {
		t.Errorf("expected 70.0 after recompute, got %v", got)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 recomputations, got %d", src.calls)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{orders: []*order.Order{scoredOrder("a", 40, 40)}}
	cache, _ := newTestCache(src, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if _, err := cache.OverallRiskScore(ctx, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := cache.Invalidate(ctx, ""); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.OverallRiskScore(ctx, ""); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected recompute after invalidate, calls=%d", src.calls)
	}
}

func TestChannelFallsBackToGlobalCache(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{orders: []*order.Order{scoredOrder("a", 40, 40)}}
	cache, _ := newTestCache(src, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	global, err := cache.OverallRiskScore(ctx, "")
	if err != nil {
		t.Fatalf("global call: %v", err)
	}

	// A channel without its own cache pair reads the global value.
	got, err := cache.OverallRiskScore(ctx, "channel-1")
	if err != nil {
		t.Fatalf("channel call: %v", err)
	}
	if got != global {
		t.Errorf("expected channel to read global cache %v, got %v", global, got)
	}
	if src.calls != 1 {
		t.Errorf("expected no extra recomputation, calls=%d", src.calls)
	}
}
