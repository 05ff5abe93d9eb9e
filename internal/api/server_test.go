package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/spider-presale/presale/internal/app/gacha"
	"github.com/spider-presale/presale/internal/app/leaderboard"
	"github.com/spider-presale/presale/internal/app/presale"
	"github.com/spider-presale/presale/internal/app/referral"
	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/domain/mock"
	"github.com/spider-presale/presale/internal/infra/observability"
	"github.com/spider-presale/presale/internal/infra/sqlite"
)

// ─── Presale API Tests ──────────────────────────────────────────────────────

const (
	treasury    = "0:treasury"
	refWallet   = "0:ref00001aaaa"
	refCode     = "0:ref000"
	buyerWallet = "0:buy00001bbbb"
	buyerCode   = "0:buy000"
)

type testAPI struct {
	handler  http.Handler
	payments *mock.MockPaymentGateway
	tracer   *observability.Tracer
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)

	cfg := sqlite.DefaultConfig(t.TempDir())
	cfg.RetryBackoff = time.Millisecond
	db, err := sqlite.OpenConfig(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	refs := referral.NewService(db, referral.DefaultConfig(), log, tracer)
	board := leaderboard.New(db, leaderboard.DefaultConfig(), log)
	engine := gacha.NewEngine(gacha.DefaultConfig(), func() float64 { return 0 })
	draws := gacha.NewService(db, engine, log, tracer)
	payments := mock.NewMockPaymentGateway(ctrl)

	pcfg := presale.DefaultConfig()
	pcfg.Receiver = treasury
	orch := presale.New(pcfg, db, payments, refs, board, log, tracer)

	srv := NewServer(Services{
		Presale:     orch,
		Referrals:   refs,
		Gacha:       draws,
		Leaderboard: board,
		Tracer:      tracer,
		Store:       db,
	}, log)
	srv.EnableMetrics()
	return &testAPI{handler: srv.Handler(), payments: payments, tracer: tracer}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := decodeBody(t, w)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %q", w.Body.String())
	}
	return e["type"].(string)
}

// bind connects the referrer and binds the buyer to it.
func (a *testAPI) bind(t *testing.T) {
	t.Helper()
	if w := a.do(t, "POST", "/api/players/connect", `{"wallet":"`+refWallet+`"}`); w.Code != http.StatusOK {
		t.Fatalf("connect: %d %s", w.Code, w.Body)
	}
	if w := a.do(t, "POST", "/api/referrals/bind", `{"wallet":"`+buyerWallet+`","referral_code":"`+refCode+`"}`); w.Code != http.StatusCreated {
		t.Fatalf("bind: %d %s", w.Code, w.Body)
	}
}

func (a *testAPI) expectPayment(minor int64) {
	a.payments.EXPECT().
		Submit(gomock.Any(), treasury, minor).
		Return(domain.PaymentReceipt{Reference: "tx-1"}, nil)
}

// ─── Health & Debug ─────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["status"] != "ok" {
		t.Errorf("body = %s", w.Body)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "presale_") {
		t.Error("presale metrics not exported")
	}
}

func TestDebugSpans(t *testing.T) {
	a := setupAPI(t)
	a.bind(t)

	w := a.do(t, "GET", "/api/debug/spans?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	spans, _ := decodeBody(t, w)["spans"].([]interface{})
	if len(spans) == 0 {
		t.Fatal("expected the bind span")
	}
	first := spans[0].(map[string]interface{})
	if first["operation"] != "referral.bind" {
		t.Errorf("operation = %v, want referral.bind", first["operation"])
	}
}

// ─── Players ────────────────────────────────────────────────────────────────

func TestConnectAndGetPlayer(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, "POST", "/api/players/connect", `{"wallet":"`+buyerWallet+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decodeBody(t, w)
	if resp["code"] != buyerCode || resp["walletAddress"] != buyerWallet {
		t.Errorf("player = %v", resp)
	}
	if resp["gachaTries"] != float64(0) {
		t.Errorf("gachaTries = %v, want 0", resp["gachaTries"])
	}

	w = a.do(t, "GET", "/api/players/"+buyerCode, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decodeBody(t, w)["code"] != buyerCode {
		t.Errorf("body = %s", w.Body)
	}
}

func TestGetPlayer_MissingReadsAsEmpty(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, "GET", "/api/players/0:nobody", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["code"] != "0:nobody" || resp["feeders"] != float64(0) {
		t.Errorf("player = %v", resp)
	}
}

func TestConnect_Errors(t *testing.T) {
	a := setupAPI(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"wallet":`, http.StatusBadRequest},
		{"missing wallet", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, "POST", "/api/players/connect", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if errorType(t, w) != "invalid_request" {
				t.Errorf("body = %s", w.Body)
			}
		})
	}
}

func TestSuiWallet(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, "PUT", "/api/players/sui-wallet", `{"wallet":"`+buyerWallet+`","sui_wallet_address":"0xabc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if decodeBody(t, w)["suiWalletAddress"] != "0xabc" {
		t.Errorf("body = %s", w.Body)
	}

	w = a.do(t, "PUT", "/api/players/sui-wallet", `{"wallet":"`+buyerWallet+`","sui_wallet_address":"abc"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ─── Referrals ──────────────────────────────────────────────────────────────

func TestBind(t *testing.T) {
	a := setupAPI(t)
	a.bind(t)

	w := a.do(t, "GET", "/api/players/"+refCode+"/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	stats := decodeBody(t, w)
	if stats["invalid_invites"] != float64(1) || stats["total_invites"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
}

func TestBind_Errors(t *testing.T) {
	a := setupAPI(t)
	a.bind(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantType string
	}{
		{"already bound", `{"wallet":"` + buyerWallet + `","referral_code":"` + refCode + `"}`, http.StatusConflict, "already_bound"},
		{"self referral", `{"wallet":"` + refWallet + `","referral_code":"` + refCode + `"}`, http.StatusBadRequest, "invalid_request"},
		{"bad format", `{"wallet":"0:other0001","referral_code":"ref"}`, http.StatusBadRequest, "invalid_request"},
		{"unknown referrer", `{"wallet":"0:other0001","referral_code":"0:zzz999"}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, "POST", "/api/referrals/bind", tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body)
			}
			if got := errorType(t, w); got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

// ─── Purchases ──────────────────────────────────────────────────────────────

func TestPurchase(t *testing.T) {
	a := setupAPI(t)
	a.bind(t)
	a.expectPayment(10_000_000_000)

	w := a.do(t, "POST", "/api/purchases", `{"wallet":"`+buyerWallet+`","amount":"10"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	resp := decodeBody(t, w)
	purchase := resp["purchase"].(map[string]interface{})
	if purchase["referrer"] != refCode {
		t.Errorf("purchase referrer = %v", purchase["referrer"])
	}
	player := resp["player"].(map[string]interface{})
	if player["spiderBalance"] != "500" || player["gachaTries"] != float64(2) {
		t.Errorf("player = %v", player)
	}

	w = a.do(t, "GET", "/api/purchases?buyer="+buyerWallet, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if list := decodeBody(t, w)["purchases"].([]interface{}); len(list) != 1 {
		t.Errorf("purchases = %d, want 1", len(list))
	}

	w = a.do(t, "GET", "/api/players/"+buyerCode+"/ledger", "")
	if entries := decodeBody(t, w)["entries"].([]interface{}); len(entries) < 2 {
		t.Errorf("ledger entries = %d, want purchase and try grant at least", len(entries))
	}
}

func TestPurchase_NumericAmount(t *testing.T) {
	a := setupAPI(t)
	a.expectPayment(50_000_000_000)

	w := a.do(t, "POST", "/api/purchases", `{"wallet":"`+buyerWallet+`","amount":50}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
}

func TestPurchase_PaymentFailure(t *testing.T) {
	a := setupAPI(t)
	a.payments.EXPECT().
		Submit(gomock.Any(), treasury, int64(10_000_000_000)).
		Return(domain.PaymentReceipt{}, domain.ErrPaymentRejected)

	w := a.do(t, "POST", "/api/purchases", `{"wallet":"`+buyerWallet+`","amount":"10"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if errorType(t, w) != "payment_failed" {
		t.Errorf("body = %s", w.Body)
	}

	w = a.do(t, "GET", "/api/players/"+buyerCode, "")
	if decodeBody(t, w)["spiderBalance"] != "0" {
		t.Errorf("balance changed after failed payment: %s", w.Body)
	}
}

func TestPurchase_InvalidAmount(t *testing.T) {
	a := setupAPI(t)
	for _, body := range []string{
		`{"wallet":"` + buyerWallet + `","amount":"0"}`,
		`{"wallet":"` + buyerWallet + `","amount":"-5"}`,
		`{"wallet":"` + buyerWallet + `"}`,
	} {
		if w := a.do(t, "POST", "/api/purchases", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestPurchases_MissingBuyer(t *testing.T) {
	a := setupAPI(t)
	if w := a.do(t, "GET", "/api/purchases", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestQuote(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, "GET", "/api/purchases/quote?amount=150", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	q := decodeBody(t, w)
	if q["spider_amount"] != "7500" || q["gacha_tries"] != float64(30) || q["eligible"] != true {
		t.Errorf("quote = %v", q)
	}

	for _, amount := range []string{"", "abc", "0", "0.0000000001"} {
		if w := a.do(t, "GET", "/api/purchases/quote?amount="+amount, ""); w.Code != http.StatusBadRequest {
			t.Errorf("amount %q: status = %d, want 400", amount, w.Code)
		}
	}
}

// ─── Gacha ──────────────────────────────────────────────────────────────────

func TestRoll(t *testing.T) {
	a := setupAPI(t)
	a.expectPayment(5_000_000_000)
	if w := a.do(t, "POST", "/api/purchases", `{"wallet":"`+buyerWallet+`","amount":"5"}`); w.Code != http.StatusCreated {
		t.Fatalf("purchase: %d %s", w.Code, w.Body)
	}

	w := a.do(t, "POST", "/api/gacha/roll", `{"wallet":"`+buyerWallet+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	res := decodeBody(t, w)
	if res["rarity"] != string(domain.RarityTryAgain) || res["tries_remaining"] != float64(0) {
		t.Errorf("draw = %v", res)
	}

	w = a.do(t, "POST", "/api/gacha/roll", `{"wallet":"`+buyerWallet+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 with no tries left", w.Code)
	}
}

func TestOdds(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, "GET", "/api/gacha/odds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decodeBody(t, w)
	if odds := resp["odds"].([]interface{}); len(odds) != 5 {
		t.Errorf("odds = %d rarities, want 5", len(odds))
	}
	if resp["rare_pity"] != float64(50) || resp["epic_pity"] != float64(100) {
		t.Errorf("pity = %v/%v", resp["rare_pity"], resp["epic_pity"])
	}
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func TestLeaderboard(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, "GET", "/api/leaderboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if top := decodeBody(t, w)["leaderboard"].([]interface{}); len(top) != 0 {
		t.Errorf("empty store should have empty board, got %d", len(top))
	}

	a.bind(t)
	a.expectPayment(10_000_000_000)
	a.do(t, "POST", "/api/purchases", `{"wallet":"`+buyerWallet+`","amount":"10"}`)

	w = a.do(t, "GET", "/api/leaderboard", "")
	top := decodeBody(t, w)["leaderboard"].([]interface{})
	if len(top) != 1 {
		t.Fatalf("leaderboard = %d entries, want 1", len(top))
	}
	e := top[0].(map[string]interface{})
	if e["referrer"] != refCode || e["rank"] != float64(1) || e["valid_invites"] != float64(1) {
		t.Errorf("entry = %v", e)
	}
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

func TestHealth_StoreDown(t *testing.T) {
	srv := NewServer(Services{Store: failingPinger{}}, zerolog.Nop())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestWriteDomainError(t *testing.T) {
	srv := NewServer(Services{}, zerolog.Nop())
	tests := []struct {
		err      error
		wantCode int
		wantType string
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_request"},
		{domain.ErrAlreadyBound, http.StatusConflict, "already_bound"},
		{domain.ErrTransient, http.StatusServiceUnavailable, "busy"},
		{domain.ErrPaymentTimeout, http.StatusBadGateway, "payment_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.writeDomainError(w, httptest.NewRequest("GET", "/", nil), tt.err)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := errorType(t, w); got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}
