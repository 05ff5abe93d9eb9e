package referral

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/observability"
)

// Service binds referees and applies purchases to referral state.
type Service struct {
	store  domain.LedgerStore
	cfg    Config
	log    zerolog.Logger
	tracer *observability.Tracer
	now    func() time.Time
}

// NewService creates a referral service.
func NewService(store domain.LedgerStore, cfg Config, log zerolog.Logger, tracer *observability.Tracer) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		log:    log.With().Str("component", "referral").Logger(),
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the active thresholds.
func (s *Service) Config() Config { return s.cfg }

// ─── Binding ────────────────────────────────────────────────────────────────

// Bind attaches wallet to the referrer owning code. The binding record, the
// referrer's invalid bucket and the binder's document commit together.
func (s *Service) Bind(ctx context.Context, wallet, code string) (binding *domain.ReferralBinding, err error) {
	ctx, span := s.tracer.StartSpan(ctx, "referral.bind", map[string]string{"code": code})
	defer func() {
		s.tracer.EndSpan(span, err)
		observability.ReferralBinds.WithLabelValues(bindResult(err)).Inc()
	}()

	wallet, err = domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if err := domain.ValidateReferralCode(code); err != nil {
		return nil, err
	}
	ownCode := domain.ReferralCodeFromWallet(wallet)
	if strings.EqualFold(code, ownCode) {
		return nil, domain.ErrSelfReferral
	}

	err = s.store.Update(ctx, func(tx domain.LedgerTx) error {
		now := s.now()
		if _, err := tx.Binding(wallet); err == nil {
			return domain.ErrAlreadyBound
		} else if !errors.Is(err, domain.ErrBindingNotFound) {
			return err
		}

		referrer, err := tx.Player(code)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return domain.ErrReferrerNotFound
		}
		if err != nil {
			return err
		}

		binder, err := tx.Player(ownCode)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			binder = domain.NewPlayer(wallet, now)
		} else if err != nil {
			return err
		}

		b := domain.ReferralBinding{User: wallet, Referrer: code, Timestamp: now}
		if err := tx.InsertBinding(b); err != nil {
			return err
		}

		RecordInvite(referrer, wallet)
		referrer.LastUpdated = now
		if err := tx.SavePlayer(referrer); err != nil {
			return err
		}

		if binder.Referrer == "" {
			binder.Referrer = code
		}
		binder.LastUpdated = now
		if err := tx.SavePlayer(binder); err != nil {
			return err
		}
		binding = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("wallet", wallet).Str("referrer", code).Msg("referral bound")
	return binding, nil
}

func bindResult(err error) string {
	switch {
	case err == nil:
		return "bound"
	case errors.Is(err, domain.ErrAlreadyBound):
		return "already_bound"
	case errors.Is(err, domain.ErrValidation):
		return "rejected"
	default:
		return "error"
	}
}

// ─── Purchases ──────────────────────────────────────────────────────────────

// Outcome describes what one purchase did to referral state.
type Outcome struct {
	Referrer       string         `json:"referrer,omitempty"`
	Classification Classification `json:"classification"`
	Rewards        Grant          `json:"rewards"`
}

// ApplyPurchase classifies the buyer under referrerCode and distributes the
// Feeders bonus, all inside tx. The referrer document is saved here; the
// caller still owns and saves buyer. A missing referrer document is logged
// and skipped so a paid purchase is never rolled back over it.
func (s *Service) ApplyPurchase(tx domain.LedgerTx, buyer *domain.Player, referrerCode string, amount decimal.Decimal, purchaseID string, now time.Time) (Outcome, []domain.LedgerEntry, error) {
	out := Outcome{Referrer: referrerCode}
	if referrerCode == "" {
		return out, nil, nil
	}

	referrer, err := tx.Player(referrerCode)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		s.log.Warn().Str("referrer", referrerCode).Str("buyer", buyer.WalletAddress).Msg("bound referrer has no player document")
		return out, nil, nil
	}
	if err != nil {
		return out, nil, err
	}

	out.Classification = Classify(referrer, buyer.WalletAddress, amount, s.cfg.EligibleThreshold)
	var entries []domain.LedgerEntry
	out.Rewards, entries = DistributeFeeders(referrer, buyer, s.cfg.FeedersReward, purchaseID, now)

	referrer.LastUpdated = now
	if err := tx.SavePlayer(referrer); err != nil {
		return out, nil, err
	}
	return out, entries, nil
}

// ─── Views ──────────────────────────────────────────────────────────────────

// Stats returns the invite summary for code; a missing player reads as zero.
func (s *Service) Stats(ctx context.Context, code string) (domain.ReferralStats, error) {
	p, err := s.store.GetPlayer(ctx, code)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return domain.ReferralStats{Code: code}, nil
	}
	if err != nil {
		return domain.ReferralStats{}, err
	}
	return domain.StatsOf(p), nil
}
