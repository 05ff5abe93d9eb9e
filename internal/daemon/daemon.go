package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/spider-presale/presale/internal/api"
	"github.com/spider-presale/presale/internal/app/gacha"
	"github.com/spider-presale/presale/internal/app/leaderboard"
	"github.com/spider-presale/presale/internal/app/presale"
	"github.com/spider-presale/presale/internal/app/referral"
	"github.com/spider-presale/presale/internal/infra/observability"
	"github.com/spider-presale/presale/internal/infra/payment"
	"github.com/spider-presale/presale/internal/infra/sqlite"
)

// Daemon owns the store and every service built on it.
type Daemon struct {
	Config      Config
	Log         zerolog.Logger
	DB          *sqlite.DB
	Tracer      *observability.Tracer
	Referrals   *referral.Service
	Gacha       *gacha.Service
	Leaderboard *leaderboard.Service
	Presale     *presale.Orchestrator
}

// New opens the store and wires the services. Close releases the store.
func New(cfg Config) (*Daemon, error) {
	log := NewLogger(cfg.Log, os.Stderr)

	gcfg := cfg.GachaEngine()
	if err := gcfg.Validate(); err != nil {
		return nil, fmt.Errorf("gacha config: %w", err)
	}

	db, err := sqlite.OpenConfig(cfg.SQLite(log))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	refs := referral.NewService(db, cfg.Referral(), log, tracer)
	board := leaderboard.New(db, cfg.LeaderboardSettings(), log)
	draws := gacha.NewService(db, gacha.NewEngine(gcfg, gacha.DefaultRNG()), log, tracer)
	pay := payment.New(cfg.PaymentClient(), log)
	orch := presale.New(cfg.PresaleQuote(), db, pay, refs, board, log, tracer)

	return &Daemon{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Tracer:      tracer,
		Referrals:   refs,
		Gacha:       draws,
		Leaderboard: board,
		Presale:     orch,
	}, nil
}

// Close releases the store.
func (d *Daemon) Close() error {
	return d.DB.Close()
}

// Handler returns the HTTP API.
func (d *Daemon) Handler() http.Handler {
	srv := api.NewServer(api.Services{
		Presale:     d.Presale,
		Referrals:   d.Referrals,
		Gacha:       d.Gacha,
		Leaderboard: d.Leaderboard,
		Tracer:      d.Tracer,
		Store:       d.DB,
	}, d.Log)
	if d.Config.API.Metrics {
		srv.EnableMetrics()
	}
	return srv.Handler()
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	if d.Config.Payment.BridgeURL == "" {
		d.Log.Warn().Msg("payment.bridge_url is empty, purchases will fail")
	}

	hs := &http.Server{
		Addr:              d.Config.API.Addr(),
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		d.Log.Info().Str("addr", hs.Addr).Msg("presaled listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d.Log.Info().Msg("shutting down")
	return hs.Shutdown(shutdownCtx)
}
