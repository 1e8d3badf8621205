package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"paytabs-commerce/internal/config"
	"paytabs-commerce/internal/logger"

	"go.uber.org/zap"
)

// regionEndpoints maps a merchant region to its PayTabs API domain.
var regionEndpoints = map[string]string{
	"ARE":    "https://secure.paytabs.com/",
	"SAU":    "https://secure.paytabs.sa/",
	"OMN":    "https://secure-oman.paytabs.com/",
	"JOR":    "https://secure-jordan.paytabs.com/",
	"EGY":    "https://secure-egypt.paytabs.com/",
	"GLOBAL": "https://secure-global.paytabs.com/",
}

const (
	pathRequest = "payment/request"
	pathQuery   = "payment/query"
)

type paytabsGateway struct {
	baseURL    string
	profileID  any
	serverKey  string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

func NewPaytabsGateway(cfg config.PayTabsConfig) (Gateway, error) {
	base, ok := regionEndpoints[strings.ToUpper(cfg.Region)]
	if !ok {
		return nil, fmt.Errorf("unknown PayTabs region %q", cfg.Region)
	}

	if cfg.ServerKey == "" {
		logger.L().Warn("PayTabs server key is empty")
	}

	// PayTabs expects a numeric profile id.
	var profileID any = cfg.ProfileID
	if n, err := strconv.ParseInt(cfg.ProfileID, 10, 64); err == nil {
		profileID = n
	}

	return &paytabsGateway{
		baseURL:   base,
		profileID: profileID,
		serverKey: cfg.ServerKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type paymentResult struct {
	ResponseStatus  string `json:"response_status"`
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
}

type paytabsResponse struct {
	TranRef       string        `json:"tran_ref"`
	TranType      string        `json:"tran_type"`
	CartID        string        `json:"cart_id"`
	CartCurrency  string        `json:"cart_currency"`
	CartAmount    string        `json:"cart_amount"`
	RedirectURL   string        `json:"redirect_url"`
	PaymentResult paymentResult `json:"payment_result"`
	Code          int           `json:"code"`
	Message       string        `json:"message"`
}

// post sends body to PayTabs and decodes the response. Non-2xx answers are
// returned as errors carrying the gateway message.
func (g *paytabsGateway) post(ctx context.Context, path string, body map[string]any) (*paytabsResponse, error) {
	log := logger.FromCtx(ctx).With(zap.String("path", path))

	body["profile_id"] = g.profileID
	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to marshal PayTabs request", zap.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Authorization", g.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("PayTabs request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read paytabs response: %w", err)
	}

	var res paytabsResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Error("Failed decoding PayTabs response",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, fmt.Errorf("paytabs error: status %d: %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("PayTabs returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, fmt.Errorf("paytabs error: status %d: %s", resp.StatusCode, res.Message)
	}

	return &res, nil
}

// ----------------- VerifyPayment -----------------

func (g *paytabsGateway) VerifyPayment(ctx context.Context, tranRef string) (*Verification, error) {
	res, err := g.post(ctx, pathQuery, map[string]any{
		"tran_ref": tranRef,
	})
	if err != nil {
		return nil, err
	}

	if res.TranRef == "" {
		return nil, fmt.Errorf("paytabs error: %s", res.Message)
	}

	return &Verification{
		TranRef:      res.TranRef,
		TranType:     res.TranType,
		CartID:       res.CartID,
		CartCurrency: res.CartCurrency,
		CartAmount:   res.CartAmount,
		RespStatus:   res.PaymentResult.ResponseStatus,
		RespMessage:  res.PaymentResult.ResponseMessage,
	}, nil
}

// ----------------- RequestFollowUp -----------------

func (g *paytabsGateway) RequestFollowUp(ctx context.Context, req FollowUpRequest) (*FollowUpResult, error) {
	res, err := g.post(ctx, pathRequest, map[string]any{
		"tran_type":        req.TranType,
		"tran_class":       req.TranClass,
		"cart_id":          req.CartID,
		"cart_currency":    req.Currency,
		"cart_amount":      json.Number(req.Amount.StringFixed(2)),
		"cart_description": req.Description,
		"tran_ref":         req.TranRef,
	})
	if err != nil {
		return nil, err
	}

	status := res.PaymentResult.ResponseStatus
	msg := res.PaymentResult.ResponseMessage
	if msg == "" {
		msg = res.Message
	}

	return &FollowUpResult{
		Success:        status == RespStatusApproved,
		PendingSuccess: status == "P" || status == "H",
		TranRef:        res.TranRef,
		RespStatus:     status,
		Message:        msg,
	}, nil
}

// ----------------- CreatePayPage -----------------

func (g *paytabsGateway) CreatePayPage(ctx context.Context, req PayPageRequest) (*PayPage, error) {
	res, err := g.post(ctx, pathRequest, map[string]any{
		"tran_type":        req.TranType,
		"tran_class":       TranClassEcom,
		"cart_id":          req.CartID,
		"cart_currency":    req.Currency,
		"cart_amount":      json.Number(req.Amount.StringFixed(2)),
		"cart_description": req.Description,
		"paypage_lang":     req.Lang,
		"return":           req.ReturnURL,
		"callback":         req.CallbackURL,
		"framed":           req.Framed,
		"hide_shipping":    req.HideShipping,
	})
	if err != nil {
		return nil, err
	}

	return &PayPage{
		Success:     res.RedirectURL != "",
		RedirectURL: res.RedirectURL,
		TranRef:     res.TranRef,
		Message:     res.Message,
	}, nil
}

// ----------------- IsValidCallback -----------------

// IsValidCallback accepts either an IPN delivery, signed over the raw body in
// the Signature header, or a return redirect whose form carries a signature
// field computed over the remaining non-empty fields sorted by key.
func (g *paytabsGateway) IsValidCallback(cb *Callback) bool {
	if cb == nil || g.serverKey == "" {
		return false
	}

	if cb.Signature != "" {
		return g.signatureMatches(cb.RawBody, cb.Signature)
	}

	sig := cb.Fields["signature"]
	if sig == "" {
		return false
	}

	values := url.Values{}
	for k, v := range cb.Fields {
		if k == "signature" || v == "" {
			continue
		}
		values.Set(k, v)
	}
	return g.signatureMatches([]byte(values.Encode()), sig)
}

func (g *paytabsGateway) signatureMatches(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.serverKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
