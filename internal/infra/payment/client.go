// Package payment submits presale transfers through the wallet bridge.
//
// The bridge relays a transfer request to the user's wallet and answers once
// the wallet confirms, rejects or the request expires:
//
//	POST {base}/v1/transfers {"destination","amount","valid_until"}
//	  → {"status":"confirmed|rejected|cancelled","tx_ref","message"}
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/observability"
)

// Config configures the bridge client.
type Config struct {
	BaseURL  string
	Timeout  time.Duration // whole submit, including waiting for the wallet
	ValidFor time.Duration // how long the wallet may take to sign
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:  30 * time.Second,
		ValidFor: 10 * time.Minute,
	}
}

// Client implements domain.PaymentGateway against the wallet bridge.
// It never retries: a retried transfer could be paid twice.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time
}

var _ domain.PaymentGateway = (*Client)(nil)

// New creates a bridge client.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  log.With().Str("component", "payment").Logger(),
		now:  time.Now,
	}
}

type transferRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"` // nano units, decimal string
	ValidUntil  int64  `json:"valid_until"`
}

type transferResponse struct {
	Status  string `json:"status"`
	TxRef   string `json:"tx_ref"`
	Message string `json:"message"`
}

// Submit sends amountMinor nano units to destination and waits for the
// wallet's answer. Every non-confirmed outcome maps to a domain error.
func (c *Client) Submit(ctx context.Context, destination string, amountMinor int64) (domain.PaymentReceipt, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(transferRequest{
		Destination: destination,
		Amount:      strconv.FormatInt(amountMinor, 10),
		ValidUntil:  c.now().Add(c.cfg.ValidFor).Unix(),
	})
	if err != nil {
		return domain.PaymentReceipt{}, err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/transfers"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Error().Err(err).Str("url", url).Msg("build bridge request")
		return domain.PaymentReceipt{}, c.fail("request", domain.ErrPaymentFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.PaymentReceipt{}, c.fail("timeout", domain.ErrPaymentTimeout)
		}
		c.log.Warn().Err(err).Msg("bridge unreachable")
		return domain.PaymentReceipt{}, c.fail("transport", domain.ErrPaymentFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn().Int("status", resp.StatusCode).Str("body", string(msg)).Msg("bridge error")
		return domain.PaymentReceipt{}, c.fail("bridge_error", domain.ErrPaymentFailed)
	}

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		c.log.Warn().Err(err).Int("status", resp.StatusCode).Msg("bad bridge response")
		return domain.PaymentReceipt{}, c.fail("bad_response", domain.ErrPaymentFailed)
	}

	switch strings.ToLower(tr.Status) {
	case "confirmed":
		c.log.Info().Str("tx_ref", tr.TxRef).Int64("amount_minor", amountMinor).Msg("payment confirmed")
		return domain.PaymentReceipt{Reference: tr.TxRef}, nil
	case "rejected", "cancelled", "canceled":
		c.log.Info().Str("status", tr.Status).Str("message", tr.Message).Msg("payment not approved")
		return domain.PaymentReceipt{}, c.fail("rejected", domain.ErrPaymentRejected)
	default:
		c.log.Warn().Str("status", tr.Status).Int("http_status", resp.StatusCode).Msg("unknown payment status")
		return domain.PaymentReceipt{}, c.fail("unknown_status", domain.ErrPaymentFailed)
	}
}

func (c *Client) fail(reason string, err error) error {
	observability.PaymentFailures.WithLabelValues(reason).Inc()
	return err
}
