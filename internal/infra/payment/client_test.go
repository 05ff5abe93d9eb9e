package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/spider-presale/presale/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second
	return New(cfg, zerolog.Nop())
}

func respond(status int, body transferResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// ─── Submit Tests ───────────────────────────────────────────────────────────

func TestSubmit_Confirmed(t *testing.T) {
	var got transferRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transfers" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		respond(http.StatusOK, transferResponse{Status: "confirmed", TxRef: "tx-123"})(w, r)
	})
	c.now = func() time.Time { return time.Unix(1_000, 0) }

	receipt, err := c.Submit(context.Background(), "0:treasury", 10_000_000_000)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if receipt.Reference != "tx-123" {
		t.Errorf("Reference = %q, want tx-123", receipt.Reference)
	}
	if got.Destination != "0:treasury" || got.Amount != "10000000000" {
		t.Errorf("request body = %+v", got)
	}
	if got.ValidUntil != 1_000+600 {
		t.Errorf("ValidUntil = %d, want %d", got.ValidUntil, 1_600)
	}
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"rejected", respond(http.StatusOK, transferResponse{Status: "rejected", Message: "user declined"}), domain.ErrPaymentRejected},
		{"cancelled", respond(http.StatusOK, transferResponse{Status: "cancelled"}), domain.ErrPaymentRejected},
		{"unknown status", respond(http.StatusOK, transferResponse{Status: "pending"}), domain.ErrPaymentFailed},
		{"server error", respond(http.StatusBadGateway, transferResponse{}), domain.ErrPaymentFailed},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }, domain.ErrPaymentFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Submit(context.Background(), "0:treasury", 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, domain.ErrExternal) {
				t.Errorf("err = %v should be an external failure", err)
			}
		})
	}
}

func TestSubmit_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.cfg.Timeout = 50 * time.Millisecond

	_, err := c.Submit(context.Background(), "0:treasury", 1)
	if !errors.Is(err, domain.ErrPaymentTimeout) {
		t.Errorf("err = %v, want ErrPaymentTimeout", err)
	}
}

func TestSubmit_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:1"
	c := New(cfg, zerolog.Nop())

	_, err := c.Submit(context.Background(), "0:treasury", 1)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Errorf("err = %v, want ErrPaymentFailed", err)
	}
}
