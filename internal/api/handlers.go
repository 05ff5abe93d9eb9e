package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
)

// ─── Presale API ────────────────────────────────────────────────────────────
// POST /api/players/connect        ensure a player document exists
// PUT  /api/players/sui-wallet     set the token delivery address
// GET  /api/players/{code}         player document
// GET  /api/players/{code}/stats   invite bucket sizes and feeders
// GET  /api/players/{code}/ledger  audit entries, newest first
// POST /api/referrals/bind         attach a wallet to a referral code
// POST /api/purchases              buy SPIDER
// GET  /api/purchases?buyer=       purchase history
// GET  /api/purchases/quote        price an amount without buying
// POST /api/gacha/roll             spend one try
// GET  /api/gacha/odds             configured per-roll odds
// GET  /api/leaderboard            top referrers

type walletRequest struct {
	Wallet string `json:"wallet"`
}

type suiWalletRequest struct {
	Wallet           string `json:"wallet"`
	SuiWalletAddress string `json:"sui_wallet_address"`
}

type bindRequest struct {
	Wallet       string `json:"wallet"`
	ReferralCode string `json:"referral_code"`
}

type purchaseRequest struct {
	Wallet string          `json:"wallet"`
	Amount decimal.Decimal `json:"amount"` // accepts "10" or 10
}

// playerResponse adds the referral code, which is the document key.
type playerResponse struct {
	Code string `json:"code"`
	*domain.Player
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// ─── Players ────────────────────────────────────────────────────────────────

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.svc.Presale.Connect(r.Context(), req.Wallet)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Code: p.Code, Player: p})
}

func (s *Server) handleSuiWallet(w http.ResponseWriter, r *http.Request) {
	var req suiWalletRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.svc.Presale.SubmitSuiWallet(r.Context(), req.Wallet, req.SuiWalletAddress)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Code: p.Code, Player: p})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	p, err := s.svc.Presale.Player(r.Context(), code)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Code: code, Player: p})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Presale.Stats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Presale.LedgerEntries(r.Context(), chi.URLParam(r, "code"), queryLimit(r, 100))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ─── Referrals ──────────────────────────────────────────────────────────────

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.svc.Referrals.Bind(r.Context(), req.Wallet, req.ReferralCode)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ─── Purchases ──────────────────────────────────────────────────────────────

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := s.svc.Presale.Purchase(r.Context(), req.Wallet, req.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Presale.Purchases(r.Context(), r.URL.Query().Get("buyer"), queryLimit(r, 100))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Purchase{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": list})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		s.writeDomainError(w, r, domain.ErrInvalidAmount)
		return
	}
	q, err := s.svc.Presale.Quote(amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ─── Gacha ──────────────────────────────────────────────────────────────────

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Gacha.Roll(r.Context(), req.Wallet)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	cfg := s.svc.Gacha.Engine().Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"odds":      s.svc.Gacha.Odds(),
		"rare_pity": cfg.RarePity,
		"epic_pity": cfg.EpicPity,
	})
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := s.svc.Leaderboard.Top(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if top == nil {
		top = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": top})
}
