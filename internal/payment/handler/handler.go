package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"paytabs-commerce/internal/logger"
	"paytabs-commerce/internal/order"
	"paytabs-commerce/internal/payment"
	"paytabs-commerce/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	Checkout payment.Checkout
	Refunder payment.Refunder
	framed   bool
}

func NewHandler(checkout payment.Checkout, refunder payment.Refunder, framed bool) *Handler {
	return &Handler{
		Checkout: checkout,
		Refunder: refunder,
		framed:   framed,
	}
}

type checkoutResponse struct {
	RedirectURL string `json:"redirect_url"`
	TranRef     string `json:"tran_ref,omitempty"`
	Framed      bool   `json:"framed"`
}

// CheckoutHandler serves POST /payment/checkout/{orderID}.
func (h *Handler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := utils.ParseID(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := h.Checkout.CreatePayPage(r.Context(), orderID)
	if err != nil {
		var gwErr *payment.GatewayError
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			utils.WriteJSONError(w, "order not found", http.StatusNotFound)
		case errors.Is(err, payment.ErrPayPageRejected), errors.As(err, &gwErr):
			utils.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		default:
			logger.Layer(r.Context(), "handler", "Checkout").Error("Checkout failed", zap.Error(err))
			utils.WriteJSONError(w, "failed to start checkout", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, checkoutResponse{
		RedirectURL: page.RedirectURL,
		TranRef:     page.TranRef,
		Framed:      h.framed,
	})
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type refundResponse struct {
	PaymentID      int64  `json:"payment_id"`
	State          string `json:"state"`
	RefundedAmount string `json:"refunded_amount"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
}

// RefundHandler serves POST /admin/payments/{paymentID}/refund.
func (h *Handler) RefundHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.Layer(r.Context(), "handler", "Refund")

	paymentID, err := utils.ParseID(chi.URLParam(r, "paymentID"))
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.Refunder.Refund(r.Context(), paymentID, req.Amount)
	if err != nil {
		var (
			pre      *payment.RefundPreconditionError
			declined *payment.RefundDeclinedError
			gwErr    *payment.GatewayError
		)
		switch {
		case errors.Is(err, payment.ErrPaymentNotFound):
			utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		case errors.As(err, &pre) && errors.Is(err, payment.ErrRefundNotAllowed):
			utils.WriteJSONError(w, pre.Err.Error(), http.StatusConflict)
		case errors.As(err, &pre):
			utils.WriteJSONError(w, pre.Err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, payment.ErrRefundPending):
			utils.WriteJSONError(w, err.Error(), http.StatusAccepted)
		case errors.As(err, &declined):
			utils.WriteJSONError(w, declined.Message, http.StatusUnprocessableEntity)
		case errors.As(err, &gwErr):
			utils.WriteJSONError(w, "payment gateway unavailable", http.StatusBadGateway)
		default:
			log.Error("Refund failed", zap.Error(err))
			utils.WriteJSONError(w, "failed to refund payment", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, refundResponse{
		PaymentID:      p.ID,
		State:          p.State.String(),
		RefundedAmount: p.RefundedAmount.StringFixed(2),
		Balance:        p.Balance().StringFixed(2),
		Currency:       p.Amount.Currency,
	})
}
