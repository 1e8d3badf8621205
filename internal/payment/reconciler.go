package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"paytabs-commerce/internal/logger"
	"paytabs-commerce/internal/metrics"
	"paytabs-commerce/internal/order"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgApproved  = "Your payment was successful to PayTabs with Transaction reference : %s"
	msgCancelled = "Your payment was Cancelled with Transaction reference : %s"
	msgOther     = "Your payment was %s with Transaction reference : %s"
)

func (s *service) Reconcile(ctx context.Context, cb *Callback, channel Channel) (*Outcome, error) {
	timer := metrics.StartTimer()
	ctx = logger.WithTranRef(ctx, cb.TranRef)
	log := logger.Layer(ctx, "service", "Reconcile").With(
		zap.String("channel", string(channel)),
		zap.String("cart_id", cb.CartID),
		zap.String("resp_status", cb.RespStatus),
	)
	s.stats.CallbacksReceived.Inc()

	// 1. Authenticity. Rejected deliveries are logged, never stored.
	out := &Outcome{Messages: []Message{}}
	if !s.gateway.IsValidCallback(cb) {
		log.Error("PayTabs callback failed authenticity check", zap.Int("body_bytes", len(cb.RawBody)))
		s.stats.CallbacksRejected.Inc()
		out.add(LevelError, ErrInvalidCallback.Error())
		return out, nil
	}
	callbackID := s.recordCallback(ctx, log, cb, channel)

	// 2-6. Verify, map, upsert, advance
	if err := s.apply(ctx, log, cb, out); err != nil {
		log.Error("Failed to reconcile callback", zap.Error(err))
		s.stats.CallbacksFailed.Inc()
		s.markCallbackFailed(ctx, log, callbackID, err)
		return nil, err
	}
	s.markCallbackProcessed(ctx, log, callbackID)

	// 7. Shopper messages
	switch cb.RespStatus {
	case RespStatusApproved:
		out.add(LevelStatus, fmt.Sprintf(msgApproved, cb.TranRef))
	case RespStatusCancelled:
		out.add(LevelError, fmt.Sprintf(msgCancelled, cb.TranRef))
	default:
		out.add(LevelWarning, fmt.Sprintf(msgOther, cb.RespMessage, cb.TranRef))
	}

	log.Info("Callback reconciled",
		zap.Int64("payment_id", out.PaymentID),
		zap.String("state", out.State),
		zap.Bool("created", out.Created),
		zap.Bool("order_advanced", out.OrderAdvanced),
		zap.Duration("duration", timer.Duration()),
	)
	return out, nil
}

func (s *service) apply(ctx context.Context, log *zap.Logger, cb *Callback, out *Outcome) error {
	orderID, err := strconv.ParseInt(cb.CartID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: cart id %q", order.ErrOrderNotFound, cb.CartID)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	s.warnOnAmountMismatch(log, cb, o)

	tranType := cb.TranType
	if cb.RespStatus == RespStatusApproved {
		v, err := s.gateway.VerifyPayment(ctx, cb.TranRef)
		if err != nil {
			return &GatewayError{Op: "verify", TranRef: cb.TranRef, Err: err}
		}
		tranType = v.TranType
	}

	state := MapStatus(cb.RespStatus, tranType, cb.RespMessage)
	if state.Is(StateUnmapped) {
		log.Warn("Approved transaction type has no payment state mapping", zap.String("tran_type", tranType))
	}

	advance := cb.RespStatus == RespStatusApproved || s.cfg.AdvanceOnAnyStatus
	target := s.cfg.CompleteOrderStatus

	var (
		saved    *Payment
		created  bool
		advanced bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		locked, err := s.orders.LockByID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		matches, err := s.payments.FindByRemote(ctx, tx, orderID, cb.TranRef, cb.RespStatus)
		if err != nil {
			return err
		}

		switch {
		case len(matches) == 0:
			p := &Payment{
				OrderID:        orderID,
				Gateway:        GatewayID,
				State:          state,
				Amount:         locked.Total,
				RefundedAmount: decimal.Zero,
				RemoteID:       cb.TranRef,
				RemoteState:    cb.RespStatus,
				AuthorizedAt:   s.now(),
			}
			if created, err = s.payments.Create(ctx, tx, p); err != nil {
				return err
			}
			saved = p
		default:
			if len(matches) > 1 {
				log.Warn("Multiple payments share one remote transaction, updating the oldest",
					zap.Int("matches", len(matches)))
			}
			saved = matches[0]
			if state.Is(StateUnmapped) {
				log.Warn("Leaving existing payment state unchanged",
					zap.Int64("payment_id", saved.ID),
					zap.String("state", saved.State.String()))
				break
			}
			if err := s.payments.UpdateState(ctx, tx, saved.ID, state); err != nil {
				return err
			}
			saved.State = state
		}

		if advance && locked.State != target {
			if err := s.orders.UpdateState(ctx, tx, orderID, target); err != nil {
				return err
			}
			advanced = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		s.stats.PaymentsCreated.Inc()
	} else {
		s.stats.PaymentsUpdated.Inc()
	}
	if advanced {
		s.stats.OrdersAdvanced.Inc()
	}

	out.Committed = true
	out.PaymentID = saved.ID
	out.State = saved.State.String()
	out.Created = created
	out.OrderAdvanced = advanced
	return nil
}

// warnOnAmountMismatch logs when the callback amount differs from the order
// total. The stored payment amount always comes from the order.
func (s *service) warnOnAmountMismatch(log *zap.Logger, cb *Callback, o *order.Order) {
	if cb.CartAmount == "" {
		return
	}
	amount, err := decimal.NewFromString(cb.CartAmount)
	if err != nil || !amount.Equal(o.Total.Number) {
		log.Warn("Callback amount does not match order total",
			zap.String("cart_amount", cb.CartAmount),
			zap.String("order_total", o.Total.String()))
	}
}

// ----------------- Callback ledger -----------------

func (s *service) recordCallback(ctx context.Context, log *zap.Logger, cb *Callback, channel Channel) int64 {
	payload := json.RawMessage(cb.RawBody)
	if !json.Valid(payload) {
		payload = json.RawMessage(`{}`)
		if len(cb.Fields) > 0 {
			if encoded, err := json.Marshal(cb.Fields); err == nil {
				payload = encoded
			}
		}
	}

	id, err := s.payments.SaveCallback(ctx, CallbackRecord{
		Channel:    channel,
		TranRef:    cb.TranRef,
		RespStatus: cb.RespStatus,
		CartID:     cb.CartID,
		Payload:    payload,
	})
	if err != nil {
		log.Warn("Failed to store callback in ledger", zap.Error(err))
		return 0
	}
	return id
}

func (s *service) markCallbackProcessed(ctx context.Context, log *zap.Logger, id int64) {
	if id == 0 {
		return
	}
	if err := s.payments.MarkCallbackProcessed(ctx, id); err != nil {
		log.Warn("Failed to mark callback processed", zap.Int64("callback_id", id), zap.Error(err))
	}
}

func (s *service) markCallbackFailed(ctx context.Context, log *zap.Logger, id int64, reason error) {
	if id == 0 {
		return
	}
	if err := s.payments.MarkCallbackFailed(ctx, id, reason.Error()); err != nil {
		log.Warn("Failed to mark callback failed", zap.Int64("callback_id", id), zap.Error(err))
	}
}
