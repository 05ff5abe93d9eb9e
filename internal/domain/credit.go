package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Purchase Types ─────────────────────────────────────────────────────────

// PurchaseStatus is the lifecycle state of a purchase record.
type PurchaseStatus string

const (
	PurchaseCompleted PurchaseStatus = "completed"
)

// Purchase is an immutable append-only purchase record.
type Purchase struct {
	ID           string          `json:"id"`
	Buyer        string          `json:"buyer"`
	Amount       decimal.Decimal `json:"amount"`
	SpiderAmount decimal.Decimal `json:"spiderAmount"`
	GachaTries   int64           `json:"gachaTries"`
	Timestamp    time.Time       `json:"timestamp"`
	Status       PurchaseStatus  `json:"status"`
	Referrer     string          `json:"referrer,omitempty"`
	PaymentRef   string          `json:"paymentRef,omitempty"`
}

// Quote is what a purchase of Amount buys.
type Quote struct {
	Amount       decimal.Decimal `json:"amount"`
	AmountMinor  int64           `json:"amount_minor"` // nano units sent to the payment collaborator
	SpiderAmount decimal.Decimal `json:"spider_amount"`
	GachaTries   int64           `json:"gacha_tries"`
	Eligible     bool            `json:"eligible"` // counts as an eligible invite for the referrer
}

// ─── Audit Ledger Types ─────────────────────────────────────────────────────
// Every balance change is mirrored by an entry written in the same
// transaction, so balances can be reconciled against history.

// TransactionType is the business reason for a ledger entry.
type TransactionType string

const (
	TxPurchase     TransactionType = "PURCHASE"
	TxTryGrant     TransactionType = "TRY_GRANT"
	TxFeedersBonus TransactionType = "FEEDERS_BONUS"
	TxGachaSpend   TransactionType = "GACHA_SPEND"
)

// Asset is the balance a ledger entry moves.
type Asset string

const (
	AssetSpider  Asset = "SPIDER"
	AssetFeeders Asset = "FEEDERS"
	AssetTries   Asset = "TRIES"
)

// LedgerEntry is a single row in the audit ledger. Amount is signed.
type LedgerEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	Account   string          `json:"account"` // referral code
	Asset     Asset           `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"` // purchase id, draw id, counterparty
}
