package payment

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"paytabs-commerce/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const refundDescription = "refunded from store"

// Refund holds the payment row lock across the gateway call, so concurrent
// refunds of one payment are checked against the committed balance in turn.
func (s *service) Refund(ctx context.Context, paymentID int64, amount *decimal.Decimal) (*Payment, error) {
	log := logger.Layer(ctx, "service", "Refund").With(zap.Int64("payment_id", paymentID))

	var (
		updated      *Payment
		refundAmount decimal.Decimal
		accepted     bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		locked, err := s.payments.LockByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		ctx = logger.WithTranRef(ctx, locked.RemoteID)
		log := log.With(zap.String("tran_ref", locked.RemoteID))

		refundAmount, err = refundAmountFor(locked, amount)
		if err != nil {
			log.Warn("Refund rejected before contacting PayTabs", zap.Error(err))
			return &RefundPreconditionError{PaymentID: paymentID, Err: err}
		}

		res, err := s.gateway.RequestFollowUp(ctx, FollowUpRequest{
			TranType:    FollowUpRefund,
			TranClass:   TranClassEcom,
			CartID:      strconv.FormatInt(locked.OrderID, 10),
			Currency:    locked.Amount.Currency,
			Amount:      refundAmount,
			Description: refundDescription,
			TranRef:     locked.RemoteID,
		})
		if err != nil {
			log.Error("Refund request to PayTabs failed", zap.Error(err))
			s.stats.RefundsFailed.Inc()
			return &GatewayError{Op: "refund", TranRef: locked.RemoteID, Err: err}
		}

		if !res.Success {
			if res.PendingSuccess {
				log.Info("Refund pending at PayTabs", zap.String("message", res.Message))
				s.stats.RefundsPending.Inc()
				return ErrRefundPending
			}
			log.Warn("Refund declined by PayTabs", zap.String("message", res.Message))
			s.stats.RefundsDeclined.Inc()
			return &RefundDeclinedError{TranRef: locked.RemoteID, Message: res.Message}
		}
		accepted = true

		refunded := locked.RefundedAmount.Add(refundAmount)
		if refunded.GreaterThan(locked.Amount.Number) {
			return fmt.Errorf("%w: refunded total %s above amount %s",
				ErrRefundAmountExceeded, refunded, locked.Amount.Number)
		}

		state := Known(StateRefunded)
		if refunded.LessThan(locked.Amount.Number) {
			state = Known(StatePartiallyRefunded)
		}

		if err := s.payments.UpdateRefund(ctx, tx, paymentID, refunded, state); err != nil {
			return err
		}
		locked.RefundedAmount = refunded
		locked.State = state
		updated = locked
		return nil
	})
	if err != nil {
		if accepted {
			log.Error("Refund accepted by PayTabs but not persisted",
				zap.String("amount", refundAmount.String()), zap.Error(err))
		}
		return nil, err
	}

	s.stats.RefundsSucceeded.Inc()
	log.Info("Refund completed",
		zap.String("tran_ref", updated.RemoteID),
		zap.String("amount", refundAmount.String()),
		zap.String("state", updated.State.String()))
	return updated, nil
}

// refundAmountFor resolves the amount to refund, defaulting to the balance.
func refundAmountFor(p *Payment, amount *decimal.Decimal) (decimal.Decimal, error) {
	if !p.State.Refundable() {
		return decimal.Zero, ErrRefundNotAllowed
	}

	balance := p.Balance()
	if amount == nil {
		if !balance.IsPositive() {
			return decimal.Zero, ErrRefundAmountExceeded
		}
		return balance, nil
	}

	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidRefundAmount
	}
	if amount.GreaterThan(balance) {
		return decimal.Zero, ErrRefundAmountExceeded
	}
	return *amount, nil
}
