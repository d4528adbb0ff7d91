// Package order models the slice of the host order entity the fraud
// pipeline reads and writes.
//
// Orders are owned by the surrounding order subsystem; this service never
// creates or deletes them. It reads the attributes a scoring request needs
// and writes the fraud metadata fields into the order's schema-less custom
// fields, preserving whatever else lives there.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/solution25com/fraudshield/internal/pagination"
)

// ErrOrderNotFound is returned when an order ID resolves to nothing.
var ErrOrderNotFound = errors.New("order not found")

// Customer carries the buyer attributes needed for risk scoring.
type Customer struct {
	CustomerID    string `json:"customerId"`
	Email         string `json:"email"`
	RemoteAddress string `json:"remoteAddress"` // client IP at checkout
}

// Address is the billing address sent to the scoring provider.
type Address struct {
	FirstName             string `json:"firstName"`
	LastName              string `json:"lastName"`
	Company               string `json:"company,omitempty"`
	Street                string `json:"street"`
	AdditionalAddressLine string `json:"additionalAddressLine,omitempty"`
	City                  string `json:"city"`
	Zipcode               string `json:"zipcode"`
	CountryISO            string `json:"countryIso"`
	PhoneNumber           string `json:"phoneNumber,omitempty"`
}

// Order is the fraud pipeline's read model of a placed order.
type Order struct {
	ID             string         `json:"id"`
	OrderNumber    string         `json:"orderNumber"`
	SalesChannelID string         `json:"salesChannelId"`
	AmountTotal    float64        `json:"amountTotal"`
	CurrencyISO    string         `json:"currencyIso"`
	Customer       Customer       `json:"customer"`
	Billing        Address        `json:"billing"`
	CustomFields   map[string]any `json:"customFields,omitempty"`
	PlacedAt       time.Time      `json:"placedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Store persists orders. UpdateCustomFields merges additively: keys present
// in fields are upserted, everything else on the order is untouched.
type Store interface {
	Get(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	UpdateCustomFields(ctx context.Context, id string, fields map[string]any) error
	// List returns orders newest first, capped at limit.
	List(ctx context.Context, limit int, opts ...ListOption) ([]*Order, error)
	// ListScored returns orders carrying a fraud_risk or ip_risk_score
	// custom field, newest first, capped at limit.
	ListScored(ctx context.Context, limit int) ([]*Order, error)
}

// ListOption configures optional parameters for list queries.
type ListOption func(*listOpts)

type listOpts struct {
	cursor *pagination.Cursor
}

func applyListOpts(opts []ListOption) listOpts {
	var o listOpts
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithCursor filters results to orders after the given cursor position.
func WithCursor(cursor string) ListOption {
	return func(o *listOpts) {
		c, err := pagination.Decode(cursor)
		if err == nil {
			o.cursor = c
		}
	}
}
