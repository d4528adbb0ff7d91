package fraud

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/solution25com/fraudshield/internal/minfraud"
	"github.com/solution25com/fraudshield/internal/order"
)

// fallbackIP is used when the order carries no client address.
const fallbackIP = "127.0.0.1"

// BuildScoreRequest maps an order onto a minFraud Insights request.
func BuildScoreRequest(o *order.Order) *minfraud.ScoreRequest {
	email := o.Customer.Email

	ip := o.Customer.RemoteAddress
	if ip == "" {
		ip = fallbackIP
	}

	placed := o.PlacedAt
	if placed.IsZero() {
		placed = o.CreatedAt
	}

	currency := o.CurrencyISO
	if currency == "" {
		currency = "USD"
	}

	return &minfraud.ScoreRequest{
		Device: minfraud.Device{IPAddress: ip},
		Event: &minfraud.Event{
			TransactionID: o.OrderNumber,
			ShopID:        o.SalesChannelID,
			Time:          placed.Format(time.RFC3339),
			Type:          "purchase",
		},
		Account: &minfraud.Account{
			UserID:      o.Customer.CustomerID,
			UsernameMD5: emailMD5(email),
		},
		Email: &minfraud.Email{
			Address: email,
			Domain:  emailDomain(email),
		},
		Billing: &minfraud.Billing{
			FirstName:   o.Billing.FirstName,
			LastName:    o.Billing.LastName,
			Company:     o.Billing.Company,
			Address:     o.Billing.Street,
			Address2:    o.Billing.AdditionalAddressLine,
			City:        o.Billing.City,
			PostalCode:  o.Billing.Zipcode,
			Country:     o.Billing.CountryISO,
			PhoneNumber: o.Billing.PhoneNumber,
		},
		Order: &minfraud.OrderInfo{
			Amount:   o.AmountTotal,
			Currency: currency,
		},
	}
}

// emailDomain returns the part after the last @, or "" when the address has
// none.
func emailDomain(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return email[i+1:]
}

// emailMD5 hashes the full address for the account username_md5 input.
func emailMD5(email string) string {
	if email == "" {
		return ""
	}
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}
