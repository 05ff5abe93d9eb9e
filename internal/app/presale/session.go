package presale

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/spider-presale/presale/internal/domain"
)

// ─── Player Sessions ────────────────────────────────────────────────────────

// Connect ensures the wallet's player document exists. It is idempotent:
// an existing document keeps every counter, only gaining defaults for
// fields older documents lack.
func (o *Orchestrator) Connect(ctx context.Context, wallet string) (*domain.Player, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	code := domain.ReferralCodeFromWallet(wallet)

	var player *domain.Player
	created := false
	err = o.store.Update(ctx, func(tx domain.LedgerTx) error {
		now := o.now()
		p, err := tx.Player(code)
		switch {
		case errors.Is(err, domain.ErrPlayerNotFound):
			p = domain.NewPlayer(wallet, now)
			created = true
		case err != nil:
			return err
		default:
			created = false
			backfill(p, wallet, now)
		}
		if err := tx.SavePlayer(p); err != nil {
			return err
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		o.log.Info().Str("code", code).Msg("player initialized")
	}
	return player, nil
}

// backfill fills fields missing from older documents and touches lastUpdated.
func backfill(p *domain.Player, wallet string, now time.Time) {
	if p.PityCounter == nil {
		p.PityCounter = &domain.PityCounter{}
	}
	if p.GachaWins == nil {
		p.GachaWins = []domain.GachaWin{}
	}
	if p.WalletAddress == "" {
		p.WalletAddress = wallet
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.LastUpdated = now
}

// Player returns the committed document for code. A missing document reads
// as the empty state.
func (o *Orchestrator) Player(ctx context.Context, code string) (*domain.Player, error) {
	p, err := o.store.GetPlayer(ctx, code)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		empty := domain.NewPlayer("", time.Time{})
		empty.Code = code
		return empty, nil
	}
	return p, err
}

// Stats returns the invite summary for code.
func (o *Orchestrator) Stats(ctx context.Context, code string) (domain.ReferralStats, error) {
	return o.referrals.Stats(ctx, code)
}

// ─── Sui Wallet ─────────────────────────────────────────────────────────────

var suiAddressFormat = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// SubmitSuiWallet records the Sui address the player's tokens will be
// delivered to, replacing any earlier one.
func (o *Orchestrator) SubmitSuiWallet(ctx context.Context, wallet, address string) (*domain.Player, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if !suiAddressFormat.MatchString(address) {
		return nil, domain.ErrInvalidSuiAddress
	}
	code := domain.ReferralCodeFromWallet(wallet)

	var player *domain.Player
	err = o.store.Update(ctx, func(tx domain.LedgerTx) error {
		now := o.now()
		p, err := tx.Player(code)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			p = domain.NewPlayer(wallet, now)
		} else if err != nil {
			return err
		}
		p.SuiWalletAddress = address
		p.LastUpdated = now
		if err := tx.SavePlayer(p); err != nil {
			return err
		}
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.log.Info().Str("code", code).Msg("sui wallet saved")
	return player, nil
}

// ─── History ────────────────────────────────────────────────────────────────

// Purchases returns the wallet's purchase history, newest first.
func (o *Orchestrator) Purchases(ctx context.Context, wallet string, limit int) ([]domain.Purchase, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	return o.store.ListPurchases(ctx, wallet, limit)
}

// LedgerEntries returns the audit trail of code, newest first.
func (o *Orchestrator) LedgerEntries(ctx context.Context, code string, limit int) ([]domain.LedgerEntry, error) {
	return o.store.LedgerEntries(ctx, code, limit)
}
