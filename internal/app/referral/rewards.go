package referral

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
)

// Grant is the outcome of a reward distribution.
type Grant struct {
	Granted bool  `json:"granted"`
	Amount  int64 `json:"amount"` // per side
}

// DistributeFeeders credits both parties once per (referrer, buyer) pair.
// An already-claimed pair is a silent no-op. The returned entries must be
// appended in the same transaction that saves both players.
func DistributeFeeders(referrer, buyer *domain.Player, reward int64, ref string, now time.Time) (Grant, []domain.LedgerEntry) {
	if reward <= 0 || referrer.FeedersClaimed.Contains(buyer.WalletAddress) {
		return Grant{}, nil
	}

	referrer.FeedersClaimed.Add(buyer.WalletAddress)
	referrer.Feeders += reward
	buyer.FeedersClaimed.Add(referrer.Code)
	buyer.Feeders += reward

	amount := decimal.NewFromInt(reward)
	entries := []domain.LedgerEntry{
		{
			ID: uuid.NewString(), Timestamp: now, Type: domain.TxFeedersBonus,
			Account: referrer.Code, Asset: domain.AssetFeeders, Amount: amount, Reference: ref,
		},
		{
			ID: uuid.NewString(), Timestamp: now, Type: domain.TxFeedersBonus,
			Account: buyer.Code, Asset: domain.AssetFeeders, Amount: amount, Reference: ref,
		},
	}
	return Grant{Granted: true, Amount: reward}, entries
}
