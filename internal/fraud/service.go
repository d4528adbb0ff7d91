package fraud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/solution25com/fraudshield/internal/circuitbreaker"
	"github.com/solution25com/fraudshield/internal/minfraud"
	"github.com/solution25com/fraudshield/internal/order"
	"github.com/solution25com/fraudshield/internal/retry"
	"github.com/solution25com/fraudshield/internal/statemachine"
	"github.com/solution25com/fraudshield/internal/syncutil"
	"github.com/solution25com/fraudshield/internal/sysconfig"
	"github.com/solution25com/fraudshield/internal/traces"
)

// errProviderOpen short-circuits evaluations while the provider breaker is open.
var errProviderOpen = errors.New("provider circuit open")

// Service runs the fraud evaluation pipeline.
type Service struct {
	orders  order.Store
	config  ConfigStore
	states  TransitionExecutor
	average AverageProvider
	factory ProviderFactory
	feed    Feed
	logger  *slog.Logger

	// breaker trips per provider account after repeated failures so a
	// degraded provider doesn't slow every checkout to its timeout.
	breaker *circuitbreaker.Breaker
	// evalLocks serializes evaluations of the same order. The Kafka intake
	// delivers at least once and operators can trigger re-evaluation by hand.
	evalLocks syncutil.ShardedMutex

	defaultThreshold float64
}

// NewService creates a fraud service. defaultThreshold applies when no
// per-channel threshold is configured.
func NewService(
	orders order.Store,
	config ConfigStore,
	states TransitionExecutor,
	average AverageProvider,
	factory ProviderFactory,
	feed Feed,
	defaultThreshold float64,
	logger *slog.Logger,
) *Service {
	s := &Service{
		orders:           orders,
		config:           config,
		states:           states,
		average:          average,
		factory:          factory,
		feed:             feed,
		defaultThreshold: defaultThreshold,
		breaker:          circuitbreaker.New(5, 30*time.Second),
		logger:           logger,
	}
	s.breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
		logger.Warn("provider circuit state changed",
			"account_id", key, "from", from.String(), "to", to.String())
	})
	return s
}

// Evaluate scores an order through the provider, writes the risk metadata to
// the order's custom fields, and moves the order to fraud review or fraud
// pass depending on the threshold. Provider failures write zeroed metadata
// and leave the order state alone. Transition failures are logged, recorded
// on the result, and never fail the evaluation.
func (s *Service) Evaluate(ctx context.Context, orderID string) (*Evaluation, error) {
	ctx, span := traces.StartSpan(ctx, "fraud.Evaluate", traces.OrderID(orderID))
	defer span.End()

	unlock := s.evalLocks.Lock(orderID)
	defer unlock()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	channelID := o.SalesChannelID

	accountID, licenseKey, err := s.credentials(ctx, channelID)
	if err != nil {
		s.logger.Error("provider credentials missing, skipping fraud check",
			"order_id", orderID, "channel_id", channelID)
		return nil, err
	}

	threshold := s.defaultThreshold
	if v, ok, err := s.config.GetFloat(ctx, sysconfig.KeyRiskThreshold, channelID); err == nil && ok {
		threshold = v
	}

	eval := &Evaluation{
		OrderID:   orderID,
		ChannelID: channelID,
		Threshold: threshold,
	}

	resp, provErr := s.score(ctx, accountID, licenseKey, o)

	md := &order.FraudMetadata{WarningsFactors: []string{}}
	if provErr != nil {
		s.logger.Error("provider call failed, writing zeroed risk metadata",
			"order_id", orderID, "error", provErr)
		eval.Status = StatusProviderFailed
	} else {
		overall, avgErr := s.average.OverallRiskScore(ctx, channelID)
		if avgErr != nil {
			s.logger.Warn("overall risk score unavailable", "error", avgErr)
		}
		md = &order.FraudMetadata{
			RiskScore:        resp.RiskScore,
			OverallRiskScore: overall,
			IPRiskScore:      resp.IPAddress.Risk,
			TransactionID:    resp.ID,
			TransactionURL:   minfraud.TransactionURL(accountID, resp.ID),
			WarningsFactors:  resp.WarningFactors(),
		}
		eval.RiskScore = md.RiskScore
		eval.IPRiskScore = md.IPRiskScore
		eval.OverallRiskScore = md.OverallRiskScore
		eval.TransactionID = md.TransactionID
		eval.WarningsFactors = md.WarningsFactors
	}

	if err := s.orders.UpdateCustomFields(ctx, orderID, md.Fields()); err != nil {
		return nil, err
	}

	// When the provider failed there is no real score, so the order state
	// is left untouched instead of passing it on a zero.
	if provErr == nil {
		if eval.RiskScore > threshold {
			eval.Status = StatusFlagged
			eval.Action = statemachine.ActionMarkAsFraudReview
		} else {
			eval.Status = StatusPassed
			eval.Action = statemachine.ActionMarkAsFraudPass
		}
		span.SetAttributes(traces.RiskScore(eval.RiskScore), traces.Action(eval.Action))

		if _, err := s.states.ExecuteTransition(ctx, statemachine.EntityTypeOrder, orderID, eval.Action); err != nil {
			s.logger.Error("fraud state transition failed",
				"order_id", orderID, "action", eval.Action, "error", err)
			eval.TransitionError = err.Error()
		} else if eval.Status == StatusFlagged {
			s.logger.Warn("order flagged for fraud review",
				"order_id", orderID, "risk_score", eval.RiskScore, "threshold", threshold)
		} else {
			s.logger.Info("order passed fraud check",
				"order_id", orderID, "risk_score", eval.RiskScore, "threshold", threshold)
		}
	}

	evaluationsTotal.WithLabelValues(eval.Status).Inc()
	if provErr == nil {
		riskScoreObserved.Observe(eval.RiskScore)
	}
	if s.feed != nil {
		s.feed.Broadcast("fraud.evaluated", eval)
	}
	return eval, nil
}

// score calls the provider behind the circuit breaker, retrying transient
// failures once. Authentication errors are never retried.
func (s *Service) score(ctx context.Context, accountID, licenseKey string, o *order.Order) (*minfraud.InsightsResponse, error) {
	if !s.breaker.Allow(accountID) {
		return nil, errProviderOpen
	}

	provider := s.factory(accountID, licenseKey)
	req := BuildScoreRequest(o)

	var resp *minfraud.InsightsResponse
	err := retry.Do(ctx, 2, 200*time.Millisecond, func() error {
		var callErr error
		resp, callErr = provider.Insights(ctx, req)
		if errors.Is(callErr, minfraud.ErrAuthentication) {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	if err != nil {
		s.breaker.RecordFailure(accountID)
		return nil, err
	}
	s.breaker.RecordSuccess(accountID)
	return resp, nil
}

// VerifyCredentials checks provider credentials with a canned request.
// An explicit accountID or licenseKey overrides the stored value for the
// channel, so operators can test credentials before saving them. Empty
// overrides fall back to the stored configuration per field.
func (s *Service) VerifyCredentials(ctx context.Context, channelID, accountID, licenseKey string) error {
	if accountID == "" {
		if v, ok, err := s.config.GetString(ctx, sysconfig.KeyAccountID, channelID); err == nil && ok {
			accountID = v
		}
	}
	if licenseKey == "" {
		if v, ok, err := s.config.GetString(ctx, sysconfig.KeyLicenseKey, channelID); err == nil && ok {
			licenseKey = v
		}
	}
	if accountID == "" || licenseKey == "" {
		return ErrMissingCredentials
	}
	return s.factory(accountID, licenseKey).VerifyCredentials(ctx)
}

// OrderFraud returns the stored risk metadata and current fraud state for an
// order. The state is nil when the order never entered the state machine,
// the metadata is nil when the order was never scored.
func (s *Service) OrderFraud(ctx context.Context, orderID string) (*order.FraudMetadata, *statemachine.State, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	md, _ := order.FraudMetadataFrom(o.CustomFields)

	state, err := s.states.EntityState(ctx, statemachine.EntityTypeOrder, orderID)
	if err != nil {
		if !errors.Is(err, statemachine.ErrNoEntityState) {
			return nil, nil, err
		}
		state = nil
	}
	return md, state, nil
}

// OverallRiskScore exposes the cached store-wide average for a channel.
func (s *Service) OverallRiskScore(ctx context.Context, channelID string) (float64, error) {
	return s.average.OverallRiskScore(ctx, channelID)
}

func (s *Service) credentials(ctx context.Context, channelID string) (string, string, error) {
	accountID, okA, err := s.config.GetString(ctx, sysconfig.KeyAccountID, channelID)
	if err != nil {
		return "", "", err
	}
	licenseKey, okL, err := s.config.GetString(ctx, sysconfig.KeyLicenseKey, channelID)
	if err != nil {
		return "", "", err
	}
	if !okA || !okL || accountID == "" || licenseKey == "" {
		return "", "", ErrMissingCredentials
	}
	return accountID, licenseKey, nil
}
