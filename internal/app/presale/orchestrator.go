// Package presale turns confirmed payments into ledger state.
//
// A purchase runs through:
//  1. Quote: validate the amount and price it (SPIDER, tries, nano units)
//  2. Ensure the buyer's document exists
//  3. Submit the payment; no store transaction is open while waiting
//  4. One transaction: credit buyer, classify and reward the referrer,
//     write the purchase record and audit entries
//  5. Refresh the buyer, referrer and leaderboard views concurrently
package presale

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/spider-presale/presale/internal/app/leaderboard"
	"github.com/spider-presale/presale/internal/app/referral"
	"github.com/spider-presale/presale/internal/domain"
	"github.com/spider-presale/presale/internal/infra/observability"
)

// CommitTimeout bounds the ledger write that follows a confirmed payment.
const CommitTimeout = 30 * time.Second

// Orchestrator coordinates purchases and player sessions.
type Orchestrator struct {
	cfg       Config
	store     domain.LedgerStore
	payments  domain.PaymentGateway
	referrals *referral.Service
	board     *leaderboard.Service
	log       zerolog.Logger
	tracer    *observability.Tracer
	now       func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, store domain.LedgerStore, payments domain.PaymentGateway, referrals *referral.Service, board *leaderboard.Service, log zerolog.Logger, tracer *observability.Tracer) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		payments:  payments,
		referrals: referrals,
		board:     board,
		log:       log.With().Str("component", "presale").Logger(),
		tracer:    tracer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Quote prices a purchase without touching any state.
func (o *Orchestrator) Quote(amount decimal.Decimal) (domain.Quote, error) {
	return o.cfg.Quote(amount, o.referrals.Config().EligibleThreshold)
}

// PurchaseReceipt is the committed result of a purchase plus the views
// refreshed after it. View fields are nil when their refresh failed.
type PurchaseReceipt struct {
	Purchase      domain.Purchase           `json:"purchase"`
	Referral      referral.Outcome          `json:"referral"`
	Player        *domain.Player            `json:"player,omitempty"`
	ReferrerStats *domain.ReferralStats     `json:"referrer_stats,omitempty"`
	Leaderboard   []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
}

// Purchase buys amount TON worth of SPIDER for wallet. A payment failure of
// any kind returns an ErrExternal error and leaves the ledger untouched.
func (o *Orchestrator) Purchase(ctx context.Context, wallet string, amount decimal.Decimal) (receipt *PurchaseReceipt, err error) {
	wallet, err = domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	quote, err := o.Quote(amount)
	if err != nil {
		return nil, err
	}
	code := domain.ReferralCodeFromWallet(wallet)

	ctx, span := o.tracer.StartSpan(ctx, "presale.purchase", map[string]string{
		"buyer":  code,
		"amount": amount.String(),
	})
	defer func() { o.tracer.EndSpan(span, err) }()

	if _, err := o.Connect(ctx, wallet); err != nil {
		return nil, err
	}

	payCtx, paySpan := o.tracer.StartSpan(ctx, "payment.submit", nil)
	pay, err := o.payments.Submit(payCtx, o.cfg.Receiver, quote.AmountMinor)
	o.tracer.EndSpan(paySpan, err)
	if err != nil {
		o.log.Warn().Err(err).Str("buyer", code).Str("amount", amount.String()).Msg("payment failed, ledger untouched")
		return nil, err
	}

	// The payment is final; a caller hanging up must not abort the ledger write.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CommitTimeout)
	defer cancel()
	purchase, outcome, err := o.commit(commitCtx, wallet, quote, pay)
	if err != nil {
		// The payment went through but the ledger did not record it.
		o.log.Error().Err(err).
			Str("buyer", code).
			Str("payment_ref", pay.Reference).
			Str("amount", amount.String()).
			Msg("purchase paid but not committed")
		return nil, err
	}

	observability.PurchasesCompleted.Inc()
	observability.PurchaseVolume.Add(amount.InexactFloat64())
	if outcome.Classification.BecameValid {
		observability.ReferralPromotions.WithLabelValues("valid").Inc()
	}
	if outcome.Classification.BecameEligible {
		observability.ReferralPromotions.WithLabelValues("eligible").Inc()
	}
	if outcome.Rewards.Granted {
		observability.FeedersGranted.Add(float64(2 * outcome.Rewards.Amount))
	}
	o.log.Info().
		Str("purchase_id", purchase.ID).
		Str("buyer", code).
		Str("amount", amount.String()).
		Str("spider", quote.SpiderAmount.String()).
		Int64("tries", quote.GachaTries).
		Str("referrer", purchase.Referrer).
		Bool("feeders_granted", outcome.Rewards.Granted).
		Msg("purchase committed")

	receipt = &PurchaseReceipt{Purchase: purchase, Referral: outcome}
	o.refresh(ctx, receipt, code)
	return receipt, nil
}

// commit applies a confirmed payment in one store transaction.
func (o *Orchestrator) commit(ctx context.Context, wallet string, quote domain.Quote, pay domain.PaymentReceipt) (domain.Purchase, referral.Outcome, error) {
	code := domain.ReferralCodeFromWallet(wallet)
	purchaseID := uuid.NewString()

	var (
		purchase domain.Purchase
		outcome  referral.Outcome
	)
	err := o.store.Update(ctx, func(tx domain.LedgerTx) error {
		now := o.now()
		buyer, err := tx.Player(code)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			buyer = domain.NewPlayer(wallet, now)
		} else if err != nil {
			return err
		}

		var referrerCode string
		binding, err := tx.Binding(wallet)
		switch {
		case err == nil:
			referrerCode = binding.Referrer
		case !errors.Is(err, domain.ErrBindingNotFound):
			return err
		}

		buyer.SpiderBalance = buyer.SpiderBalance.Add(quote.SpiderAmount)
		buyer.GachaTries += quote.GachaTries
		buyer.LastUpdated = now

		entries := []domain.LedgerEntry{{
			ID: uuid.NewString(), Timestamp: now, Type: domain.TxPurchase,
			Account: code, Asset: domain.AssetSpider, Amount: quote.SpiderAmount, Reference: purchaseID,
		}}
		if quote.GachaTries > 0 {
			entries = append(entries, domain.LedgerEntry{
				ID: uuid.NewString(), Timestamp: now, Type: domain.TxTryGrant,
				Account: code, Asset: domain.AssetTries, Amount: decimal.NewFromInt(quote.GachaTries), Reference: purchaseID,
			})
		}

		var refEntries []domain.LedgerEntry
		outcome, refEntries, err = o.referrals.ApplyPurchase(tx, buyer, referrerCode, quote.Amount, purchaseID, now)
		if err != nil {
			return err
		}
		entries = append(entries, refEntries...)

		if err := tx.SavePlayer(buyer); err != nil {
			return err
		}
		purchase = domain.Purchase{
			ID:           purchaseID,
			Buyer:        wallet,
			Amount:       quote.Amount,
			SpiderAmount: quote.SpiderAmount,
			GachaTries:   quote.GachaTries,
			Timestamp:    now,
			Status:       domain.PurchaseCompleted,
			Referrer:     referrerCode,
			PaymentRef:   pay.Reference,
		}
		if err := tx.InsertPurchase(purchase); err != nil {
			return err
		}
		return tx.AppendLedger(entries...)
	})
	return purchase, outcome, err
}

// refresh reloads the views a purchase changed. Failures are logged only.
func (o *Orchestrator) refresh(ctx context.Context, receipt *PurchaseReceipt, code string) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := o.store.GetPlayer(gctx, code)
		if err != nil {
			return err
		}
		receipt.Player = p
		return nil
	})
	if ref := receipt.Purchase.Referrer; ref != "" {
		g.Go(func() error {
			stats, err := o.referrals.Stats(gctx, ref)
			if err != nil {
				return err
			}
			receipt.ReferrerStats = &stats
			return nil
		})
	}
	if o.board != nil {
		g.Go(func() error {
			top, err := o.board.Top(gctx)
			if err != nil {
				return err
			}
			receipt.Leaderboard = top
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.log.Warn().Err(err).Str("purchase_id", receipt.Purchase.ID).Msg("post-purchase refresh failed")
	}
}
