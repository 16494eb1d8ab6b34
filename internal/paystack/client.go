// Package paystack talks to the Paystack transaction API and authenticates
// its webhooks.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
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
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "x-paystack-signature"

// EventChargeSuccess is the only webhook event that drives deposit completion.
const EventChargeSuccess = "charge.success"

const maxResponseBytes = 1 << 20

// Config holds gateway settings. It is copied into the client and never
// mutated afterwards.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	CallbackURL   string
	Timeout       time.Duration
}

// Client is a Paystack API client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client with a bounded request timeout.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Initialized is the gateway's answer to a payment initialization.
type Initialized struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// Verification is the gateway's view of a payment.
type Verification struct {
	Succeeded     bool           `json:"succeeded"`
	Status        string         `json:"status,omitempty"`
	Reference     string         `json:"reference,omitempty"`
	Amount        int64          `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

type initializeData struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

type verifyData struct {
	Status    string         `json:"status"`
	Reference string         `json:"reference"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	PaidAt    *time.Time     `json:"paid_at"`
	Metadata  map[string]any `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// Initialize starts a payment of amount minor units for email. Any non-2xx
// answer or an unsuccessful envelope is an error.
func (c *Client) Initialize(ctx context.Context, email string, amount int64, metadata map[string]any) (Initialized, error) {
	body, err := json.Marshal(initializeRequest{Email: email, Amount: amount, Metadata: metadata, CallbackURL: c.cfg.CallbackURL})
	if err != nil {
		return Initialized{}, err
	}
	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		c.logger.Error("paystack.initialize_failed", slog.String("error", err.Error()))
		return Initialized{}, err
	}
	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Reference == "" {
		return Initialized{}, errors.New("paystack: initialize response missing reference")
	}
	return Initialized{Reference: data.Reference, AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode}, nil
}

// Verify asks the gateway for the state of reference. Transport and decode
// failures are reported as an unsuccessful payment, never as an error.
func (c *Client) Verify(ctx context.Context, reference string) Verification {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		c.logger.Warn("paystack.verify_failed", slog.String("reference", reference), slog.String("error", err.Error()))
		return Verification{Reference: reference}
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		c.logger.Warn("paystack.verify_decode_failed", slog.String("reference", reference), slog.String("error", err.Error()))
		return Verification{Reference: reference}
	}
	return Verification{
		Succeeded:     data.Status == "success",
		Status:        data.Status,
		Reference:     data.Reference,
		Amount:        data.Amount,
		Currency:      data.Currency,
		PaidAt:        data.PaidAt,
		CustomerEmail: data.Customer.Email,
		Metadata:      data.Metadata,
	}
}

// VerifyWebhookSignature checks the hex HMAC-SHA512 of the raw payload. An
// unconfigured secret verifies nothing.
func (c *Client) VerifyWebhookSignature(raw []byte, signature string) bool {
	return VerifySignature(c.cfg.WebhookSecret, raw, signature)
}

// VerifySignature is the keyed form of VerifyWebhookSignature.
func VerifySignature(secret string, raw []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(secret, raw))
}

// Sign computes the webhook HMAC over raw.
func Sign(secret string, raw []byte) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(raw)
	return mac.Sum(nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, fmt.Errorf("paystack %s %s: read body: %w", method, path, err)
	}
	var env envelope
	_ = json.Unmarshal(payload, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return envelope{}, fmt.Errorf("paystack %s %s: status %d: %s", method, path, resp.StatusCode, env.Message)
	}
	if !env.Status || len(env.Data) == 0 {
		return envelope{}, fmt.Errorf("paystack %s %s: unsuccessful response: %s", method, path, env.Message)
	}
	return env, nil
}
