package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"paytabs-commerce/internal/logger"

	"go.uber.org/zap"
)

const (
	payPageLang   = "en"
	cancelMessage = "You have canceled checkout at PayTabs but may resume the checkout process here when you are ready."
)

func (s *service) CreatePayPage(ctx context.Context, orderID int64) (*PayPage, error) {
	log := logger.Layer(ctx, "service", "CreatePayPage").With(zap.Int64("order_id", orderID))

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tranType := strings.ToLower(TranTypeSale)
	if s.cfg.PayPageMode == "auth" {
		tranType = strings.ToLower(TranTypeAuth)
	}

	cartID := strconv.FormatInt(o.ID, 10)
	page, err := s.gateway.CreatePayPage(ctx, PayPageRequest{
		TranType:     tranType,
		CartID:       cartID,
		Currency:     o.Total.Currency,
		Amount:       o.Total.Number,
		Description:  "Order Number: " + cartID,
		ReturnURL:    fmt.Sprintf("%s/payment/return/%d", s.siteURL, o.ID),
		CallbackURL:  fmt.Sprintf("%s/payment/notify/%s", s.siteURL, GatewayID),
		Lang:         payPageLang,
		Framed:       s.cfg.Framed,
		HideShipping: s.cfg.HideShipping,
	})
	if err != nil {
		log.Error("Failed to create PayTabs pay page", zap.Error(err))
		return nil, &GatewayError{Op: "create pay page", TranRef: cartID, Err: err}
	}
	if !page.Success {
		log.Warn("PayTabs rejected pay page request", zap.String("message", page.Message))
		return nil, fmt.Errorf("%w: %s", ErrPayPageRejected, page.Message)
	}

	log.Info("Pay page created", zap.String("tran_ref", page.TranRef))
	return page, nil
}

func (s *service) CancelCheckout(ctx context.Context, orderID int64) (*Outcome, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	logger.Layer(ctx, "service", "CancelCheckout").Info("Shopper cancelled at PayTabs",
		zap.Int64("order_id", orderID))

	out := &Outcome{Messages: []Message{}}
	out.add(LevelError, cancelMessage)
	return out, nil
}
