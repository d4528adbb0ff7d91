// Package events receives order lifecycle events and drives the fraud
// pipeline from them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/solution25com/fraudshield/internal/fraud"
	"github.com/solution25com/fraudshield/internal/metrics"
	"github.com/solution25com/fraudshield/internal/order"
)

// OrderPlaced is the event emitted when a storefront order is placed.
type OrderPlaced struct {
	OrderID   string `json:"orderId"`
	ChannelID string `json:"channelId"`
}

// Evaluator is the slice of the fraud service the subscriber drives.
type Evaluator interface {
	Evaluate(ctx context.Context, orderID string) (*fraud.Evaluation, error)
}

// Subscriber reacts to order placed events. Failures are logged and
// swallowed so a bad event never takes the intake loop down.
type Subscriber struct {
	evaluator Evaluator
	logger    *slog.Logger
}

// NewSubscriber creates an order placed subscriber.
func NewSubscriber(evaluator Evaluator, logger *slog.Logger) *Subscriber {
	return &Subscriber{evaluator: evaluator, logger: logger}
}

// HandleMessage parses a raw order placed payload and runs the fraud check.
func (s *Subscriber) HandleMessage(ctx context.Context, payload []byte) {
	var event OrderPlaced
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Error("malformed order placed event, skipping", "error", err)
		metrics.OrderEventsTotal.WithLabelValues("malformed").Inc()
		return
	}
	s.HandleOrderPlaced(ctx, event)
}

// HandleOrderPlaced runs the fraud check for a placed order.
func (s *Subscriber) HandleOrderPlaced(ctx context.Context, event OrderPlaced) {
	if event.OrderID == "" {
		s.logger.Error("order placed event without order id, skipping")
		metrics.OrderEventsTotal.WithLabelValues("malformed").Inc()
		return
	}

	_, err := s.evaluator.Evaluate(ctx, event.OrderID)
	switch {
	case err == nil:
		metrics.OrderEventsTotal.WithLabelValues("handled").Inc()
	case errors.Is(err, order.ErrOrderNotFound):
		s.logger.Error("order placed event for unknown order",
			"order_id", event.OrderID, "channel_id", event.ChannelID)
		metrics.OrderEventsTotal.WithLabelValues("order_not_found").Inc()
	case errors.Is(err, fraud.ErrMissingCredentials):
		// Already logged by the service, nothing to retry.
		metrics.OrderEventsTotal.WithLabelValues("handled").Inc()
	default:
		s.logger.Error("fraud check failed for placed order",
			"order_id", event.OrderID, "error", err)
		metrics.OrderEventsTotal.WithLabelValues("failed").Inc()
	}
}
