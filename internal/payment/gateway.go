package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the PayTabs collaborator consumed by the reconciler, refunds and checkout.
type Gateway interface {
	// IsValidCallback checks the callback signature against the server key.
	IsValidCallback(cb *Callback) bool
	VerifyPayment(ctx context.Context, tranRef string) (*Verification, error)
	RequestFollowUp(ctx context.Context, req FollowUpRequest) (*FollowUpResult, error)
	CreatePayPage(ctx context.Context, req PayPageRequest) (*PayPage, error)
}

// Verification is the gateway's authoritative view of a transaction.
type Verification struct {
	TranRef      string
	TranType     string
	CartID       string
	CartCurrency string
	CartAmount   string
	RespStatus   string
	RespMessage  string
}

// Follow-up transaction classification.
const (
	FollowUpRefund = "refund"
	TranClassEcom  = "ecom"
)

type FollowUpRequest struct {
	TranType    string
	TranClass   string
	CartID      string
	Currency    string
	Amount      decimal.Decimal
	Description string
	TranRef     string
}

type FollowUpResult struct {
	Success        bool
	PendingSuccess bool
	TranRef        string
	RespStatus     string
	Message        string
}

type PayPageRequest struct {
	TranType     string
	CartID       string
	Currency     string
	Amount       decimal.Decimal
	Description  string
	ReturnURL    string
	CallbackURL  string
	Lang         string
	Framed       bool
	HideShipping bool
}

type PayPage struct {
	Success     bool
	RedirectURL string
	TranRef     string
	Message     string
}
