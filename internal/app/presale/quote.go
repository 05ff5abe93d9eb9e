package presale

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
)

// MinorDecimals is the precision of the payment asset (TON nano units).
const MinorDecimals = 9

// Config controls presale pricing and the payment destination.
type Config struct {
	TokenPrice decimal.Decimal // TON per SPIDER
	TryPrice   decimal.Decimal // TON per gacha try
	Receiver   string          // treasury address payments are sent to
}

// DefaultConfig returns the launch pricing. Receiver must be set by the
// caller.
func DefaultConfig() Config {
	return Config{
		TokenPrice: decimal.RequireFromString("0.02"),
		TryPrice:   decimal.NewFromInt(5),
	}
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Quote prices a purchase of amount TON. eligibleThreshold decides whether
// the purchase promotes the buyer to the referrer's eligible tier.
func (c Config) Quote(amount, eligibleThreshold decimal.Decimal) (domain.Quote, error) {
	if !amount.IsPositive() {
		return domain.Quote{}, domain.ErrInvalidAmount
	}
	minor := amount.Shift(MinorDecimals)
	if !minor.Equal(minor.Truncate(0)) {
		return domain.Quote{}, domain.ErrAmountTooPrecise
	}
	if minor.GreaterThan(maxMinor) {
		return domain.Quote{}, domain.ErrInvalidAmount
	}

	return domain.Quote{
		Amount:       amount,
		AmountMinor:  minor.IntPart(),
		SpiderAmount: amount.Div(c.TokenPrice),
		GachaTries:   amount.Div(c.TryPrice).Floor().IntPart(),
		Eligible:     amount.GreaterThanOrEqual(eligibleThreshold),
	}, nil
}
