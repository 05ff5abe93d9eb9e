// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture. It depends on nothing
// but value libraries.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Player Document ────────────────────────────────────────────────────────
// One document per referral code. JSON field names match the documents the
// presale page has always stored, so existing data decodes unchanged.

// Player is the ledger document for one wallet.
type Player struct {
	Code             string          `json:"-"`
	Version          int64           `json:"-"` // store-managed, for compare-and-swap
	WalletAddress    string          `json:"walletAddress"`
	SpiderBalance    decimal.Decimal `json:"spiderBalance"`
	Feeders          int64           `json:"feeders"`
	FeedersClaimed   AddressSet      `json:"feedersClaimed"`
	TotalInvites     int             `json:"totalInvites"`
	InvalidInvites   InviteBucket    `json:"invalidInvites"`
	ValidInvites     InviteBucket    `json:"validInvites"`
	EligibleInvites  InviteBucket    `json:"eligibleInvites"`
	Referrer         string          `json:"referrer,omitempty"`
	GachaTries       int64           `json:"gachaTries"`
	GachaWins        []GachaWin      `json:"gachaWins"`
	PityCounter      *PityCounter    `json:"pityCounter,omitempty"`
	SuiWalletAddress string          `json:"suiWalletAddress,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// NewPlayer returns the empty state created on first wallet connection.
func NewPlayer(wallet string, now time.Time) *Player {
	return &Player{
		Code:          ReferralCodeFromWallet(wallet),
		WalletAddress: wallet,
		SpiderBalance: decimal.Zero,
		GachaWins:     []GachaWin{},
		PityCounter:   &PityCounter{},
		CreatedAt:     now,
		LastUpdated:   now,
	}
}

// Pity returns the pity counter, treating a missing one as zero.
func (p *Player) Pity() PityCounter {
	if p.PityCounter == nil {
		return PityCounter{}
	}
	return *p.PityCounter
}

// Clone returns a deep copy safe to mutate independently.
func (p *Player) Clone() *Player {
	c := *p
	c.FeedersClaimed = p.FeedersClaimed.Clone()
	c.InvalidInvites = p.InvalidInvites.Clone()
	c.ValidInvites = p.ValidInvites.Clone()
	c.EligibleInvites = p.EligibleInvites.Clone()
	c.GachaWins = append([]GachaWin(nil), p.GachaWins...)
	if p.PityCounter != nil {
		pc := *p.PityCounter
		c.PityCounter = &pc
	}
	return &c
}

// ─── Invite Buckets ─────────────────────────────────────────────────────────

// InviteBucket is one referral tier: a count plus the referee set.
// Total is kept equal to the set size on every mutation.
type InviteBucket struct {
	Total     int        `json:"total"`
	Referrals AddressSet `json:"referrals"`
}

// Contains reports whether the referee is in this tier.
func (b *InviteBucket) Contains(addr string) bool {
	return b.Referrals.Contains(addr)
}

// Len returns the number of referees in this tier.
func (b *InviteBucket) Len() int { return b.Referrals.Len() }

// Items returns the referees in insertion order.
func (b *InviteBucket) Items() []string { return b.Referrals.Items() }

// Add puts the referee in this tier. Returns false if already present.
func (b *InviteBucket) Add(addr string) bool {
	ok := b.Referrals.Add(addr)
	b.Total = b.Referrals.Len()
	return ok
}

// Remove takes the referee out of this tier. Returns false if absent.
func (b *InviteBucket) Remove(addr string) bool {
	ok := b.Referrals.Remove(addr)
	b.Total = b.Referrals.Len()
	return ok
}

// Clone returns an independent copy.
func (b InviteBucket) Clone() InviteBucket {
	return InviteBucket{Total: b.Total, Referrals: b.Referrals.Clone()}
}
