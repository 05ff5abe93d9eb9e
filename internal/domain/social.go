package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Identity ───────────────────────────────────────────────────────────────

// ReferralCodeLen is the number of leading wallet characters forming a code.
const ReferralCodeLen = 8

// referralCodeFormat matches raw TON address prefixes such as "0:ab12cd".
var referralCodeFormat = regexp.MustCompile(`(?i)^0:[a-z0-9]{6}$`)

// ReferralCodeFromWallet derives the referral code (and player key) of a
// wallet: its first ReferralCodeLen characters.
func ReferralCodeFromWallet(wallet string) string {
	n := 0
	for i := range wallet {
		if n == ReferralCodeLen {
			return wallet[:i]
		}
		n++
	}
	return wallet
}

// ValidateReferralCode checks the code format. No store access.
func ValidateReferralCode(code string) error {
	if !referralCodeFormat.MatchString(code) {
		return ErrInvalidReferralCode
	}
	return nil
}

// NormalizeWallet trims whitespace and rejects an empty address.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return "", ErrMissingWallet
	}
	for i := 0; i < len(wallet); i++ {
		if c := wallet[i]; c < 0x21 || c > 0x7e {
			return "", ErrInvalidWallet
		}
	}
	return wallet, nil
}

// ─── Referral Types ─────────────────────────────────────────────────────────

// ReferralBinding is the immutable referee → referrer relationship.
// At most one exists per wallet.
type ReferralBinding struct {
	User      string    `json:"user"`
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

// ReferralStats is the per-player invite summary.
type ReferralStats struct {
	Code            string `json:"code"`
	InvalidInvites  int    `json:"invalid_invites"`
	ValidInvites    int    `json:"valid_invites"`
	EligibleInvites int    `json:"eligible_invites"`
	TotalInvites    int    `json:"total_invites"`
	Feeders         int64  `json:"feeders"`
}

// StatsOf summarizes a player's buckets by set size.
func StatsOf(p *Player) ReferralStats {
	return ReferralStats{
		Code:            p.Code,
		InvalidInvites:  p.InvalidInvites.Referrals.Len(),
		ValidInvites:    p.ValidInvites.Referrals.Len(),
		EligibleInvites: p.EligibleInvites.Referrals.Len(),
		TotalInvites:    p.TotalInvites,
		Feeders:         p.Feeders,
	}
}

// ─── Leaderboard Types ──────────────────────────────────────────────────────

// LeaderboardEntry is one referrer's position on the invite leaderboard.
type LeaderboardEntry struct {
	Rank            int             `json:"rank"`
	Referrer        string          `json:"referrer"`
	ValidInvites    int             `json:"valid_invites"`
	EligibleInvites int             `json:"eligible_invites"`
	ReferralCount   int             `json:"referral_count"` // valid + eligible
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// RanksAbove reports whether e orders strictly before o:
// referral count desc, then eligible desc, then code asc.
func (e LeaderboardEntry) RanksAbove(o LeaderboardEntry) bool {
	if e.ReferralCount != o.ReferralCount {
		return e.ReferralCount > o.ReferralCount
	}
	if e.EligibleInvites != o.EligibleInvites {
		return e.EligibleInvites > o.EligibleInvites
	}
	return e.Referrer < o.Referrer
}
