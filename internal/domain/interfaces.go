package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// LedgerTx is the view of the store inside one atomic transaction.
// Reads observe writes made earlier in the same transaction.
type LedgerTx interface {
	// Player returns ErrPlayerNotFound when the document does not exist.
	Player(code string) (*Player, error)

	// SavePlayer inserts (Version == 0) or compare-and-swaps the document.
	// A lost race returns ErrVersionConflict. On success p.Version advances.
	SavePlayer(p *Player) error

	// Binding returns ErrBindingNotFound when the wallet is unbound.
	Binding(wallet string) (*ReferralBinding, error)

	// InsertBinding returns ErrAlreadyBound if the wallet already has one.
	InsertBinding(b ReferralBinding) error

	InsertPurchase(p Purchase) error
	AppendLedger(entries ...LedgerEntry) error
}

// LedgerStore is the transactional document store behind the presale.
type LedgerStore interface {
	// Update runs fn in one all-or-nothing transaction. Conflicts are
	// retried by re-running fn; exhaustion returns ErrTransient.
	Update(ctx context.Context, fn func(tx LedgerTx) error) error

	GetPlayer(ctx context.Context, code string) (*Player, error)
	ListPlayers(ctx context.Context) ([]*Player, error)
	GetBinding(ctx context.Context, wallet string) (*ReferralBinding, error)
	ListPurchases(ctx context.Context, buyer string, limit int) ([]Purchase, error)

	// ReferredVolume sums completed purchase amounts per referrer code.
	ReferredVolume(ctx context.Context) (map[string]decimal.Decimal, error)

	LedgerEntries(ctx context.Context, account string, limit int) ([]LedgerEntry, error)
}

// PaymentReceipt is the collaborator's confirmation of a transfer.
type PaymentReceipt struct {
	Reference string `json:"reference"`
}

//go:generate mockgen -source=interfaces.go -destination=mock/payment.go -package=mock PaymentGateway

// PaymentGateway submits a transfer to the presale treasury.
// Any error means the payment did not happen; callers must not credit.
type PaymentGateway interface {
	Submit(ctx context.Context, destination string, amountMinor int64) (PaymentReceipt, error)
}
