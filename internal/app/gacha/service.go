package gacha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/observability"
)

// Service persists draws. Each roll is one store transaction, so concurrent
// rolls by the same player serialize and can never overspend tries.
type Service struct {
	store  domain.LedgerStore
	engine *Engine
	log    zerolog.Logger
	tracer *observability.Tracer
	now    func() time.Time
}

// NewService creates a gacha service.
func NewService(store domain.LedgerStore, engine *Engine, log zerolog.Logger, tracer *observability.Tracer) *Service {
	return &Service{
		store:  store,
		engine: engine,
		log:    log.With().Str("component", "gacha").Logger(),
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Engine returns the underlying draw engine.
func (s *Service) Engine() *Engine { return s.engine }

// Roll spends one try of the wallet's player and records the draw.
// A player with no tries (or no document) gets ErrInsufficientTries.
func (s *Service) Roll(ctx context.Context, wallet string) (res domain.DrawResult, err error) {
	wallet, err = domain.NormalizeWallet(wallet)
	if err != nil {
		return res, err
	}
	code := domain.ReferralCodeFromWallet(wallet)

	ctx, span := s.tracer.StartSpan(ctx, "gacha.roll", map[string]string{"code": code})
	defer func() { s.tracer.EndSpan(span, err) }()

	var out Outcome
	err = s.store.Update(ctx, func(tx domain.LedgerTx) error {
		p, err := tx.Player(code)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return domain.ErrInsufficientTries
		}
		if err != nil {
			return err
		}
		if p.GachaTries <= 0 {
			return domain.ErrInsufficientTries
		}

		now := s.now()
		out = s.engine.Draw(p.Pity())
		pity := out.Pity
		p.PityCounter = &pity
		p.GachaTries--
		if out.Rarity.IsWin() {
			p.GachaWins = append(p.GachaWins, domain.GachaWin{Rarity: out.Rarity, Timestamp: now})
		}
		p.LastUpdated = now

		res = domain.DrawResult{
			ID:             fmt.Sprintf("%s_%d", code, now.UnixNano()),
			Rarity:         out.Rarity,
			Timestamp:      now,
			Pity:           out.Forced,
			TriesRemaining: p.GachaTries,
			PityCounter:    pity,
		}
		if err := tx.SavePlayer(p); err != nil {
			return err
		}
		return tx.AppendLedger(domain.LedgerEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			Type:      domain.TxGachaSpend,
			Account:   code,
			Asset:     domain.AssetTries,
			Amount:    decimal.NewFromInt(-1),
			Reference: res.ID,
		})
	})
	if err != nil {
		return domain.DrawResult{}, err
	}

	observability.GachaDraws.WithLabelValues(string(res.Rarity)).Inc()
	if out.Forced {
		observability.PityTriggers.WithLabelValues(out.Source).Inc()
	}
	s.log.Info().
		Str("code", code).
		Str("rarity", string(res.Rarity)).
		Bool("pity", res.Pity).
		Int64("tries_left", res.TriesRemaining).
		Msg("gacha draw")
	return res, nil
}

// Odds reports the configured per-roll probabilities.
func (s *Service) Odds() []Odd { return s.engine.cfg.Odds() }
