// Package leaderboard ranks referrers by their valid and eligible invites.
// It is a pure projection over committed player documents, recomputed on
// every call.
package leaderboard

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/dsa"
)

// Config controls the leaderboard.
type Config struct {
	Size int // number of ranked entries returned
}

// DefaultConfig returns the presale page's top-10 board.
func DefaultConfig() Config {
	return Config{Size: 10}
}

// Service builds the leaderboard from the store.
type Service struct {
	store domain.LedgerStore
	cfg   Config
	log   zerolog.Logger
}

// New creates a leaderboard service.
func New(store domain.LedgerStore, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "leaderboard").Logger(),
	}
}

// Top returns the current ranking.
func (s *Service) Top(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	volume, err := s.store.ReferredVolume(ctx)
	if err != nil {
		return nil, err
	}
	entries := Build(players, volume, s.cfg.Size)
	s.log.Debug().Int("players", len(players)).Int("ranked", len(entries)).Msg("leaderboard built")
	return entries, nil
}

// Build ranks players by valid + eligible invites, then eligible, then code.
// Players with no valid or eligible invites are left out. volume maps a
// referrer code to the sum of its referees' completed purchases.
func Build(players []*domain.Player, volume map[string]decimal.Decimal, size int) []domain.LeaderboardEntry {
	top := dsa.NewTopK(size, domain.LeaderboardEntry.RanksAbove)
	for _, p := range players {
		valid := p.ValidInvites.Total
		eligible := p.EligibleInvites.Total
		if valid+eligible == 0 {
			continue
		}
		amount, ok := volume[p.Code]
		if !ok {
			amount = decimal.Zero
		}
		top.Push(domain.LeaderboardEntry{
			Referrer:        p.Code,
			ValidInvites:    valid,
			EligibleInvites: eligible,
			ReferralCount:   valid + eligible,
			TotalAmount:     amount,
		})
	}

	entries := top.Sorted()
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
