// Package payments is the client for the external credit-ledger service.
// Balances are opaque decimal strings on the wire; this package never parses
// them as floats.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/config"
)

// Ledger defines the credit-ledger operations the generation flow consumes.
// Use this interface for dependency injection to enable stubbing in tests.
type Ledger interface {
	// GetBalance returns the user's current credit balance.
	GetBalance(ctx context.Context, userDID string) (decimal.Decimal, error)

	// CreateMeterEvent debits amount credits from the user for a generation.
	CreateMeterEvent(ctx context.Context, userDID string, amount decimal.Decimal, generationID string) error

	// CreatePromotionGrant issues compensating promotional credits, used to
	// refund an already-debited charge after a failed generation.
	CreatePromotionGrant(ctx context.Context, userDID string, amount decimal.Decimal, reason string) error

	// EnsureMeterPrice creates the generation metering price if it does not
	// exist yet. Idempotent; called once at startup.
	EnsureMeterPrice(ctx context.Context) error
}

// Client implements Ledger over the payment service's HTTP API.
type Client struct {
	baseURL   string
	apiKey    string
	meterName string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a ledger client from configuration.
func NewClient(cfg *config.PaymentConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		meterName: cfg.MeterName,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Named("payments"),
	}
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// GetBalance implements Ledger.
func (c *Client) GetBalance(ctx context.Context, userDID string) (decimal.Decimal, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/credits/balance?user="+url.QueryEscape(userDID), nil, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger returned non-decimal balance %q: %w", resp.Balance, err)
	}
	return balance, nil
}

type meterEventRequest struct {
	Meter    string `json:"meter"`
	UserDID  string `json:"userDid"`
	Amount   string `json:"amount"`
	EventRef string `json:"eventRef"`
}

// CreateMeterEvent implements Ledger.
func (c *Client) CreateMeterEvent(ctx context.Context, userDID string, amount decimal.Decimal, generationID string) error {
	req := meterEventRequest{
		Meter:    c.meterName,
		UserDID:  userDID,
		Amount:   amount.String(),
		EventRef: generationID,
	}
	if err := c.do(ctx, http.MethodPost, "/api/credits/meter-events", req, nil); err != nil {
		return fmt.Errorf("create meter event: %w", err)
	}

	c.logger.Info("Credits debited",
		zap.String("user_did", userDID),
		zap.String("amount", amount.String()),
		zap.String("generation_id", generationID))
	return nil
}

type promotionGrantRequest struct {
	UserDID string `json:"userDid"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason"`
}

// CreatePromotionGrant implements Ledger.
func (c *Client) CreatePromotionGrant(ctx context.Context, userDID string, amount decimal.Decimal, reason string) error {
	req := promotionGrantRequest{
		UserDID: userDID,
		Amount:  amount.String(),
		Reason:  reason,
	}
	if err := c.do(ctx, http.MethodPost, "/api/credits/grants", req, nil); err != nil {
		return fmt.Errorf("create promotion grant: %w", err)
	}

	c.logger.Info("Promotional credits granted",
		zap.String("user_did", userDID),
		zap.String("amount", amount.String()),
		zap.String("reason", reason))
	return nil
}

type meterPriceRequest struct {
	Meter string `json:"meter"`
}

// EnsureMeterPrice implements Ledger.
func (c *Client) EnsureMeterPrice(ctx context.Context) error {
	req := meterPriceRequest{Meter: c.meterName}
	if err := c.do(ctx, http.MethodPut, "/api/credits/meter-prices", req, nil); err != nil {
		return fmt.Errorf("ensure meter price: %w", err)
	}
	return nil
}

// do executes one JSON request against the ledger. Non-2xx responses are
// returned as errors carrying the ledger's error body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Ensure Client implements Ledger at compile time.
var _ Ledger = (*Client)(nil)
