package payment

import (
	"context"
	"time"

	"paytabs-commerce/internal/config"
	"paytabs-commerce/internal/db"
	"paytabs-commerce/internal/metrics"
	"paytabs-commerce/internal/order"

	"github.com/shopspring/decimal"
)

// Reconciler applies gateway callbacks to payments and orders.
type Reconciler interface {
	Reconcile(ctx context.Context, cb *Callback, channel Channel) (*Outcome, error)
}

// Refunder issues refund follow-ups against captured payments.
type Refunder interface {
	// Refund refunds amount, or the remaining balance when amount is nil.
	Refund(ctx context.Context, paymentID int64, amount *decimal.Decimal) (*Payment, error)
}

// Checkout starts and abandons hosted payment pages.
type Checkout interface {
	CreatePayPage(ctx context.Context, orderID int64) (*PayPage, error)
	CancelCheckout(ctx context.Context, orderID int64) (*Outcome, error)
}

type Service interface {
	Reconciler
	Refunder
	Checkout
}

type service struct {
	tx       db.Transactor
	orders   order.Repository
	payments Repository
	gateway  Gateway
	cfg      config.PayTabsConfig
	siteURL  string
	stats    *metrics.Reconciliation
	now      func() time.Time
}

func NewService(
	tx db.Transactor,
	orders order.Repository,
	payments Repository,
	gateway Gateway,
	cfg config.PayTabsConfig,
	siteURL string,
	stats *metrics.Reconciliation,
) Service {
	if stats == nil {
		stats = metrics.NewReconciliation()
	}
	return &service{
		tx:       tx,
		orders:   orders,
		payments: payments,
		gateway:  gateway,
		cfg:      cfg,
		siteURL:  siteURL,
		stats:    stats,
		now:      time.Now,
	}
}
