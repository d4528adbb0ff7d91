// Package fraud runs the order fraud evaluation pipeline: score an order
// through the minFraud provider, attach the risk metadata to the order, and
// move the order through the fraud states.
package fraud

import (
	"context"
	"errors"

	"github.com/solution25com/fraudshield/internal/minfraud"
	"github.com/solution25com/fraudshield/internal/statemachine"
)

var (
	// ErrMissingCredentials means no provider credentials are configured
	// for the order's sales channel (or globally).
	ErrMissingCredentials = errors.New("fraud: provider credentials not configured")
)

// Evaluation statuses.
const (
	// StatusFlagged means the score exceeded the threshold and the order
	// was sent to fraud review.
	StatusFlagged = "flagged"
	// StatusPassed means the score was at or below the threshold.
	StatusPassed = "passed"
	// StatusProviderFailed means the provider call failed; zeroed metadata
	// was written and the order state was left alone.
	StatusProviderFailed = "provider_failed"
)

// Evaluation is the outcome of running one order through the pipeline.
type Evaluation struct {
	OrderID          string   `json:"orderId"`
	ChannelID        string   `json:"channelId"`
	Status           string   `json:"status"`
	RiskScore        float64  `json:"riskScore"`
	IPRiskScore      float64  `json:"ipRiskScore"`
	OverallRiskScore float64  `json:"overallRiskScore"`
	Threshold        float64  `json:"threshold"`
	TransactionID    string   `json:"transactionId,omitempty"`
	WarningsFactors  []string `json:"warningsFactors,omitempty"`
	Action           string   `json:"action,omitempty"`
	TransitionError  string   `json:"transitionError,omitempty"`
}

// Provider scores transactions. *minfraud.Client satisfies this.
type Provider interface {
	Insights(ctx context.Context, req *minfraud.ScoreRequest) (*minfraud.InsightsResponse, error)
	VerifyCredentials(ctx context.Context) error
}

// ProviderFactory builds a Provider for a channel's credentials. Credentials
// are per sales channel, so the client cannot be constructed once at startup.
type ProviderFactory func(accountID, licenseKey string) Provider

// TransitionExecutor moves entities through the state machine.
// statemachine.Store satisfies this.
type TransitionExecutor interface {
	ExecuteTransition(ctx context.Context, entityType, entityID, actionName string) (*statemachine.Transition, error)
	EntityState(ctx context.Context, entityType, entityID string) (*statemachine.State, error)
}

// ConfigStore reads per-channel provider settings.
type ConfigStore interface {
	GetString(ctx context.Context, key, channelID string) (string, bool, error)
	GetFloat(ctx context.Context, key, channelID string) (float64, bool, error)
}

// AverageProvider supplies the store-wide average risk score.
type AverageProvider interface {
	OverallRiskScore(ctx context.Context, channelID string) (float64, error)
}

// Feed receives evaluation outcomes for live consumers. The realtime hub
// satisfies this.
type Feed interface {
	Broadcast(eventType string, data any)
}
