package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"paytabs-commerce/internal/logger"
	"paytabs-commerce/internal/order"
	"paytabs-commerce/internal/payment"
	"paytabs-commerce/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errMalformedPayload = errors.New("malformed callback payload")

// ipnPayload is the JSON body PayTabs posts to the callback URL.
type ipnPayload struct {
	TranRef    string          `json:"tran_ref"`
	CartID     string          `json:"cart_id"`
	TranType   string          `json:"tran_type"`
	CartAmount json.RawMessage `json:"cart_amount"`

	PaymentResult struct {
		ResponseStatus  string `json:"response_status"`
		ResponseMessage string `json:"response_message"`
	} `json:"payment_result"`
}

type Handler struct {
	Reconciler payment.Reconciler
	Checkout   payment.Checkout
	validate   *validator.Validate
}

func NewWebhookHandler(reconciler payment.Reconciler, checkout payment.Checkout) *Handler {
	return &Handler{
		Reconciler: reconciler,
		Checkout:   checkout,
		validate:   validator.New(),
	}
}

// NotifyHandler serves POST /payment/notify/{gateway}.
func (h *Handler) NotifyHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.Layer(r.Context(), "handler", "Notify")

	if chi.URLParam(r, "gateway") != payment.GatewayID {
		utils.WriteJSONError(w, "unknown gateway", http.StatusNotFound)
		return
	}

	cb, err := h.parseCallback(w, r)
	if err != nil {
		log.Warn("Rejected callback payload", zap.Error(err))
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.Reconciler.Reconcile(r.Context(), cb, payment.ChannelNotify)
	if err != nil {
		writeReconcileError(w, err)
		return
	}

	// Invalid authenticity is acknowledged so PayTabs stops retrying.
	status := "ok"
	if !out.Committed {
		status = "rejected"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ReturnHandler serves POST /payment/return/{orderID}.
func (h *Handler) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.Layer(r.Context(), "handler", "Return")

	orderID, err := utils.ParseID(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cb, err := h.parseCallback(w, r)
	if err != nil {
		log.Warn("Rejected return payload", zap.Error(err))
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cb.CartID != strconv.FormatInt(orderID, 10) {
		log.Warn("Return cart id does not match route order",
			zap.Int64("order_id", orderID), zap.String("cart_id", cb.CartID))
		utils.WriteJSONError(w, "cart id does not match order", http.StatusBadRequest)
		return
	}

	out, err := h.Reconciler.Reconcile(r.Context(), cb, payment.ChannelReturn)
	if err != nil {
		writeReconcileError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, out)
}

// CancelHandler serves GET /payment/cancel/{orderID}.
func (h *Handler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := utils.ParseID(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.Checkout.CancelCheckout(r.Context(), orderID)
	if err != nil {
		writeReconcileError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

// parseCallback normalises a JSON IPN body or a form-encoded return into a Callback.
func (h *Handler) parseCallback(w http.ResponseWriter, r *http.Request) (*payment.Callback, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	defer r.Body.Close()

	var cb *payment.Callback
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		cb, err = parseIPN(body)
	} else {
		cb, err = parseForm(body)
	}
	if err != nil {
		return nil, err
	}

	cb.RawBody = body
	cb.Signature = r.Header.Get("Signature")

	if err := h.validate.Struct(cb); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return cb, nil
}

func parseIPN(body []byte) (*payment.Callback, error) {
	var p ipnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}

	return &payment.Callback{
		CartID:      p.CartID,
		TranRef:     p.TranRef,
		RespStatus:  p.PaymentResult.ResponseStatus,
		RespMessage: p.PaymentResult.ResponseMessage,
		TranType:    p.TranType,
		CartAmount:  strings.Trim(string(p.CartAmount), `"`),
	}, nil
}

func parseForm(body []byte) (*payment.Callback, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}

	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}

	return &payment.Callback{
		CartID:      fields["cartId"],
		TranRef:     fields["tranRef"],
		RespStatus:  fields["respStatus"],
		RespMessage: fields["respMessage"],
		TranType:    firstField(fields, "tranType", "tran_type"),
		CartAmount:  firstField(fields, "cartAmount", "cart_amount"),
		Fields:      fields,
	}, nil
}

// firstField returns the first non-empty value among keys.
func firstField(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

func writeReconcileError(w http.ResponseWriter, err error) {
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		utils.WriteJSONError(w, "order not found", http.StatusNotFound)
	case errors.As(err, &gwErr):
		utils.WriteJSONError(w, "payment gateway unavailable", http.StatusBadGateway)
	default:
		utils.WriteJSONError(w, "failed to process payment callback", http.StatusInternalServerError)
	}
}
