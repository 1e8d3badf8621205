package payment

import (
	"time"

	"paytabs-commerce/internal/order"

	"github.com/shopspring/decimal"
)

// GatewayID identifies PayTabs payments in storage and callback routes.
const GatewayID = "paytabs"

// Raw PayTabs response status codes.
const (
	RespStatusApproved  = "A"
	RespStatusCancelled = "C"
)

type Payment struct {
	ID             int64
	OrderID        int64
	Gateway        string
	State          State
	Amount         order.Price
	RefundedAmount decimal.Decimal
	RemoteID       string
	RemoteState    string
	AuthorizedAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Balance is the amount still refundable.
func (p *Payment) Balance() decimal.Decimal {
	return p.Amount.Number.Sub(p.RefundedAmount)
}

// Channel is the path a callback arrived on.
type Channel string

const (
	ChannelNotify Channel = "notify"
	ChannelReturn Channel = "return"
)

// Callback is one gateway notification, normalised from either the IPN JSON
// body or the return-redirect form.
type Callback struct {
	CartID      string `json:"cart_id" validate:"required"`
	TranRef     string `json:"tran_ref" validate:"required"`
	RespStatus  string `json:"resp_status" validate:"required"`
	RespMessage string `json:"resp_message"`
	TranType    string `json:"tran_type"`
	CartAmount  string `json:"cart_amount"`

	// Fields holds every posted form field, signature included. Empty for JSON bodies.
	Fields map[string]string `json:"-"`
	// RawBody is the request body as received.
	RawBody []byte `json:"-"`
	// Signature is the value of the Signature header for IPN deliveries.
	Signature string `json:"-"`
}

type MessageLevel string

const (
	LevelStatus  MessageLevel = "status"
	LevelWarning MessageLevel = "warning"
	LevelError   MessageLevel = "error"
)

// Message is a human-readable line for the shopper on the return path.
type Message struct {
	Level MessageLevel `json:"level"`
	Text  string       `json:"text"`
}

// Outcome is the acknowledgment of one reconciled callback.
type Outcome struct {
	Committed     bool      `json:"committed"`
	PaymentID     int64     `json:"payment_id,omitempty"`
	State         string    `json:"state,omitempty"`
	Created       bool      `json:"created"`
	OrderAdvanced bool      `json:"order_advanced"`
	Messages      []Message `json:"messages"`
}

func (o *Outcome) add(level MessageLevel, text string) {
	o.Messages = append(o.Messages, Message{Level: level, Text: text})
}
