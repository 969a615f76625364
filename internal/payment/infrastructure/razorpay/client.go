// Package razorpay talks to a Razorpay-compatible orders API.
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
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/payment/application"
	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/apperr"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	// BreakerFailures consecutive transient failures open the breaker for
	// BreakerCooldown. Rejections do not count.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type Client struct {
	log     *slog.Logger
	cfg     Config
	http    *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("gateway breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		log: log,
		cfg: cfg,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		breaker: breaker,
	}
}

type createOrderReq struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResp struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type listResp struct {
	Count int         `json:"count"`
	Items []orderResp `json:"items"`
}

type errorResp struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, receipt string, amount int64, currency string, notes map[string]string) (application.GatewayOrder, error) {
	body, err := json.Marshal(createOrderReq{Amount: amount, Currency: currency, Receipt: receipt, Notes: notes})
	if err != nil {
		return application.GatewayOrder{}, err
	}

	var resp orderResp
	if err := c.do(ctx, http.MethodPost, "/v1/orders", bytes.NewReader(body), &resp); err != nil {
		return application.GatewayOrder{}, err
	}
	c.log.Info("gateway order created", "gateway_order_id", resp.ID, "receipt", receipt)
	return toGatewayOrder(resp), nil
}

func (c *Client) LookupByReceipt(ctx context.Context, receipt string) (application.GatewayOrder, bool, error) {
	q := url.Values{"receipt": {receipt}}
	var resp listResp
	if err := c.do(ctx, http.MethodGet, "/v1/orders?"+q.Encode(), nil, &resp); err != nil {
		return application.GatewayOrder{}, false, err
	}
	for _, it := range resp.Items {
		if it.Receipt == receipt {
			return toGatewayOrder(it), true, nil
		}
	}
	return application.GatewayOrder{}, false, nil
}

// VerifySignature checks the checkout signature, an HMAC-SHA256 of
// "<gateway order id>|<payment id>" keyed with the API secret.
func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want := Sign(c.cfg.KeySecret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}

func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// do sends one request through the breaker. An open breaker fails fast with
// a transient ErrGatewayUnavailable and nothing reaches the gateway.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Transient(fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err))
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return apperr.Transient(fmt.Errorf("%w: %w", domain.ErrNetwork, err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return apperr.Transient(fmt.Errorf("%w: read body: %w", domain.ErrNetwork, err))
	}

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return apperr.Transient(fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, res.StatusCode))
	case res.StatusCode >= 400:
		var e errorResp
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("%w: %s %s", domain.ErrGatewayRejected, e.Error.Code, e.Error.Description)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.Join(domain.ErrGatewayRejected, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func toGatewayOrder(r orderResp) application.GatewayOrder {
	return application.GatewayOrder{
		ID:       r.ID,
		Receipt:  r.Receipt,
		Amount:   r.Amount,
		Currency: r.Currency,
		Status:   r.Status,
	}
}
