// Package minfraud talks to the MaxMind minFraud Insights API.
package minfraud

import (
	"errors"
	"fmt"
)

// DefaultEndpoint is the production minFraud API host.
const DefaultEndpoint = "https://minfraud.maxmind.com"

const insightsPath = "/minfraud/v2.0/insights"

var (
	// ErrAuthentication means the account ID or license key was rejected.
	ErrAuthentication = errors.New("minfraud: authentication failed")
	// ErrService covers non-auth provider failures (5xx, malformed body, timeouts).
	ErrService = errors.New("minfraud: service error")
)

// Device describes the client device observed at checkout.
type Device struct {
	IPAddress string `json:"ip_address"`
}

// Event describes the transaction event being scored.
type Event struct {
	TransactionID string `json:"transaction_id,omitempty"`
	ShopID        string `json:"shop_id,omitempty"`
	Time          string `json:"time,omitempty"`
	Type          string `json:"type,omitempty"`
}

// Account identifies the customer account.
type Account struct {
	UserID      string `json:"user_id,omitempty"`
	UsernameMD5 string `json:"username_md5,omitempty"`
}

// Email identifies the customer email.
type Email struct {
	Address string `json:"address,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Billing is the billing address attached to the order.
type Billing struct {
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Company        string `json:"company,omitempty"`
	Address        string `json:"address,omitempty"`
	Address2       string `json:"address_2,omitempty"`
	City           string `json:"city,omitempty"`
	PostalCode     string `json:"postal,omitempty"`
	Country        string `json:"country,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	PhoneCountryID string `json:"phone_country_code,omitempty"`
}

// OrderInfo carries order amount and currency.
type OrderInfo struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// ScoreRequest is the Insights request body.
type ScoreRequest struct {
	Device  Device     `json:"device"`
	Event   *Event     `json:"event,omitempty"`
	Account *Account   `json:"account,omitempty"`
	Email   *Email     `json:"email,omitempty"`
	Billing *Billing   `json:"billing,omitempty"`
	Order   *OrderInfo `json:"order,omitempty"`
}

// Warning is a single minFraud input warning.
type Warning struct {
	Code    string `json:"code"`
	Warning string `json:"warning"`
	Pointer string `json:"input_pointer,omitempty"`
}

// IPAddress holds the IP-level risk from the Insights response.
type IPAddress struct {
	Risk float64 `json:"risk"`
}

// InsightsResponse is the subset of the Insights response the service uses.
type InsightsResponse struct {
	ID        string    `json:"id"`
	RiskScore float64   `json:"risk_score"`
	IPAddress IPAddress `json:"ip_address"`
	Warnings  []Warning `json:"warnings"`
}

// WarningFactors returns the human-readable warning texts from the
// response, never nil.
func (r *InsightsResponse) WarningFactors() []string {
	factors := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		factors = append(factors, w.Warning)
	}
	return factors
}

// TransactionURL builds the minFraud interactive console link for a scored
// transaction.
func TransactionURL(accountID, transactionID string) string {
	if accountID == "" || transactionID == "" {
		return ""
	}
	return fmt.Sprintf("https://www.maxmind.com/en/accounts/%s/minfraud-interactive/transactions/%s", accountID, transactionID)
}
