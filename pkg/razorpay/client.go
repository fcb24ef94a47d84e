package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anupamdas/zevar-backend/pkg/config"
	pkgerrors "github.com/anupamdas/zevar-backend/pkg/errors"
	"github.com/anupamdas/zevar-backend/pkg/logger"
)

const (
	ordersPath   = "/v1/orders"
	paymentsPath = "/v1/payments"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

// Order is the gateway-side order created before the customer pays.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Payment is the gateway-side record of a payment attempt.
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Method  string `json:"method"`
}

// Captured reports whether the gateway settled the payment.
func (p Payment) Captured() bool {
	return p.Status == "captured"
}

// CreateOrderParams are the inputs for CreateOrder. Amount is in rupees and
// converted to paise on the wire.
type CreateOrderParams struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

type apiErrorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Client exposes the Razorpay REST primitives used by checkout and payment
// reconciliation, with centralized auth and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient validates the credentials and builds the HTTP wrapper.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}, nil
}

// CreateOrder registers a gateway order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	if params.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "INR"
	}

	body := map[string]any{
		"amount":   MinorUnits(params.Amount),
		"currency": currency,
		"receipt":  params.Receipt,
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, ordersPath, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment loads a payment by its gateway id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	var payment Payment
	if err := c.do(ctx, http.MethodGet, paymentsPath+"/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature HMAC over the raw body.
// It returns true when no webhook secret is configured so dev environments can
// run without one.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// MinorUnits converts a rupee amount to paise, rounding to the nearest unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapError(resp.StatusCode, raw)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var envelope apiErrorEnvelope
	description := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Description != "" {
		description = envelope.Error.Description
	}

	if status == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway resource not found").
			WithDetails(map[string]any{"description": description})
	}
	if status == http.StatusBadRequest {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway rejected request").
			WithDetails(map[string]any{"description": description})
	}

	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("razorpay responded %d", status)).
		WithDetails(map[string]any{"description": description})
}
