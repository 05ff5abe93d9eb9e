// Package referral classifies referees into invite tiers, binds wallets to
// referrers and pays the one-time Feeders bonus.
package referral

import (
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
)

// Config controls tier thresholds and rewards.
type Config struct {
	EligibleThreshold decimal.Decimal // single purchase amount for the eligible tier
	FeedersReward     int64           // credited to each side once per referee
}

// DefaultConfig returns the presale's launch values.
func DefaultConfig() Config {
	return Config{
		EligibleThreshold: decimal.NewFromInt(100),
		FeedersReward:     5,
	}
}

// Classification reports which tiers a purchase moved the buyer into.
type Classification struct {
	BecameValid    bool `json:"became_valid"`
	BecameEligible bool `json:"became_eligible"`
	LeftInvalid    bool `json:"left_invalid"`
}

// Classify applies one purchase to the referrer's buckets. Every step is
// idempotent per buyer, so replaying a purchase leaves the buckets unchanged.
func Classify(referrer *domain.Player, buyer string, amount, eligibleThreshold decimal.Decimal) Classification {
	var c Classification
	if !amount.IsPositive() {
		return c
	}
	if referrer.ValidInvites.Add(buyer) {
		c.BecameValid = true
		c.LeftInvalid = referrer.InvalidInvites.Remove(buyer)
	}
	if amount.GreaterThanOrEqual(eligibleThreshold) && referrer.EligibleInvites.Add(buyer) {
		c.BecameEligible = true
	}
	return c
}

// RecordInvite registers a freshly bound referee as invalid (no purchase
// yet) unless a purchase already made it valid.
func RecordInvite(referrer *domain.Player, buyer string) {
	if !referrer.ValidInvites.Contains(buyer) {
		referrer.InvalidInvites.Add(buyer)
	}
	referrer.TotalInvites++
}
