// Package api provides the HTTP server for the presale backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/spider-presale/presale/internal/app/gacha"
	"github.com/spider-presale/presale/internal/app/leaderboard"
	"github.com/spider-presale/presale/internal/app/presale"
	"github.com/spider-presale/presale/internal/app/referral"
	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/observability"
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the API exposes.
type Services struct {
	Presale     *presale.Orchestrator
	Referrals   *referral.Service
	Gacha       *gacha.Service
	Leaderboard *leaderboard.Service
	Tracer      *observability.Tracer
	Store       Pinger // optional
}

// Server is the presale HTTP API server.
type Server struct {
	svc            Services
	log            zerolog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(svc Services, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log.With().Str("component", "api").Logger()}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/debug/spans", s.handleSpans)

		r.Route("/players", func(r chi.Router) {
			r.Post("/connect", s.handleConnect)
			r.Put("/sui-wallet", s.handleSuiWallet)
			r.Get("/{code}", s.handlePlayer)
			r.Get("/{code}/stats", s.handleStats)
			r.Get("/{code}/ledger", s.handleLedger)
		})

		r.Post("/referrals/bind", s.handleBind)

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", s.handlePurchase)
			r.Get("/", s.handlePurchases)
			r.Get("/quote", s.handleQuote)
		})

		r.Route("/gacha", func(r chi.Router) {
			r.Post("/roll", s.handleRoll)
			r.Get("/odds", s.handleOdds)
		})

		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		if err := s.svc.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "ledger store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans": s.svc.Tracer.Spans(queryLimit(r, 100)),
	})
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps an error kind to its status. Domain messages are
// shown as-is; anything unclassified is hidden behind a generic one.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyBound):
		writeError(w, http.StatusConflict, "already_bound", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusServiceUnavailable, "busy", err.Error())
	case errors.Is(err, domain.ErrExternal):
		writeError(w, http.StatusBadGateway, "payment_failed", err.Error())
	default:
		s.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error, please try again")
	}
}

// ─── Middleware ─────────────────────────────────────────────────────────────

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// corsMiddleware adds CORS headers for the presale web client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
