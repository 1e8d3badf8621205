package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is an amount in a single ISO 4217 currency.
type Price struct {
	Number   decimal.Decimal
	Currency string
}

func (p Price) String() string {
	return p.Number.StringFixed(2) + " " + p.Currency
}

type Order struct {
	ID               int64
	Total            Price
	State            string
	BillingProfileID *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
