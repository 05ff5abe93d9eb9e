package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/domain"
)

// Fixed-width so TEXT columns sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ─── Transaction View ───────────────────────────────────────────────────────

// ledgerTx implements domain.LedgerTx over one *sql.Tx.
type ledgerTx struct {
	ctx context.Context
	tx  *sql.Tx
	now func() time.Time
}

var _ domain.LedgerTx = (*ledgerTx)(nil)

func (t *ledgerTx) Player(code string) (*domain.Player, error) {
	return loadPlayer(t.ctx, t.tx, code)
}

// SavePlayer inserts a new document (Version 0) or swaps the stored one if
// its version still matches. The in-memory Version only advances on success.
func (t *ledgerTx) SavePlayer(p *domain.Player) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", p.Code, err)
	}
	now := formatTime(t.now())

	var res sql.Result
	if p.Version == 0 {
		res, err = t.tx.ExecContext(t.ctx, `
			INSERT INTO players (code, wallet, doc, version, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(code) DO NOTHING
		`, p.Code, p.WalletAddress, string(doc), now, now)
	} else {
		res, err = t.tx.ExecContext(t.ctx, `
			UPDATE players SET doc = ?, wallet = ?, version = version + 1, updated_at = ?
			WHERE code = ? AND version = ?
		`, string(doc), p.WalletAddress, now, p.Code, p.Version)
	}
	if err != nil {
		return fmt.Errorf("save player %s: %w", p.Code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	p.Version++
	return nil
}

func (t *ledgerTx) Binding(wallet string) (*domain.ReferralBinding, error) {
	return loadBinding(t.ctx, t.tx, wallet)
}

func (t *ledgerTx) InsertBinding(b domain.ReferralBinding) error {
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO referral_bindings (wallet, referrer, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(wallet) DO NOTHING
	`, b.User, b.Referrer, formatTime(b.Timestamp))
	if err != nil {
		return fmt.Errorf("insert binding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyBound
	}
	return nil
}

func (t *ledgerTx) InsertPurchase(p domain.Purchase) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO purchases (id, buyer, amount, spider_amount, gacha_tries, referrer, status, payment_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Buyer, p.Amount.String(), p.SpiderAmount.String(), p.GachaTries,
		p.Referrer, string(p.Status), p.PaymentRef, formatTime(p.Timestamp))
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (t *ledgerTx) AppendLedger(entries ...domain.LedgerEntry) error {
	for _, e := range entries {
		_, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO ledger_entries (id, created_at, type, account, asset, amount, reference)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, formatTime(e.Timestamp), string(e.Type), e.Account, string(e.Asset), e.Amount.String(), e.Reference)
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
	}
	return nil
}

// ─── Player Documents ───────────────────────────────────────────────────────

func loadPlayer(ctx context.Context, q querier, code string) (*domain.Player, error) {
	var doc string
	var version int64
	err := q.QueryRowContext(ctx, `SELECT doc, version FROM players WHERE code = ?`, code).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", code, err)
	}
	return decodePlayer(code, doc, version)
}

func decodePlayer(code, doc string, version int64) (*domain.Player, error) {
	var p domain.Player
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", code, err)
	}
	p.Code = code
	p.Version = version
	return &p, nil
}

// GetPlayer reads one committed document.
func (db *DB) GetPlayer(ctx context.Context, code string) (*domain.Player, error) {
	return loadPlayer(ctx, db.db, code)
}

// ListPlayers returns every document ordered by code.
func (db *DB) ListPlayers(ctx context.Context) ([]*domain.Player, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT code, doc, version FROM players ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Player
	for rows.Next() {
		var code, doc string
		var version int64
		if err := rows.Scan(&code, &doc, &version); err != nil {
			return nil, err
		}
		p, err := decodePlayer(code, doc, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ─── Bindings ───────────────────────────────────────────────────────────────

func loadBinding(ctx context.Context, q querier, wallet string) (*domain.ReferralBinding, error) {
	var referrer, createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT referrer, created_at FROM referral_bindings WHERE wallet = ?
	`, wallet).Scan(&referrer, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBindingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load binding: %w", err)
	}
	return &domain.ReferralBinding{User: wallet, Referrer: referrer, Timestamp: parseTime(createdAt)}, nil
}

// GetBinding reads the wallet's binding.
func (db *DB) GetBinding(ctx context.Context, wallet string) (*domain.ReferralBinding, error) {
	return loadBinding(ctx, db.db, wallet)
}

// ─── Purchases ──────────────────────────────────────────────────────────────

// ListPurchases returns purchases newest first. An empty buyer lists all.
func (db *DB) ListPurchases(ctx context.Context, buyer string, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, buyer, amount, spider_amount, gacha_tries, referrer, status, payment_ref, created_at
		FROM purchases
		WHERE ? = '' OR buyer = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, buyer, buyer, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		var amount, spider, status, createdAt string
		if err := rows.Scan(&p.ID, &p.Buyer, &amount, &spider, &p.GachaTries,
			&p.Referrer, &status, &p.PaymentRef, &createdAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("purchase %s amount: %w", p.ID, err)
		}
		if p.SpiderAmount, err = decimal.NewFromString(spider); err != nil {
			return nil, fmt.Errorf("purchase %s spider amount: %w", p.ID, err)
		}
		p.Status = domain.PurchaseStatus(status)
		p.Timestamp = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReferredVolume sums completed purchase amounts per referrer code.
// Amounts are summed as decimals, not by SQLite's float SUM.
func (db *DB) ReferredVolume(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT referrer, amount FROM purchases
		WHERE referrer != '' AND status = ?
	`, string(domain.PurchaseCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var referrer, amount string
		if err := rows.Scan(&referrer, &amount); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("referred amount: %w", err)
		}
		out[referrer] = out[referrer].Add(d)
	}
	return out, rows.Err()
}

// ─── Audit Ledger ───────────────────────────────────────────────────────────

// LedgerEntries returns an account's audit entries newest first.
func (db *DB) LedgerEntries(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, created_at, type, account, asset, amount, reference
		FROM ledger_entries
		WHERE account = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var createdAt, typ, asset, amount string
		if err := rows.Scan(&e.ID, &createdAt, &typ, &e.Account, &asset, &amount, &e.Reference); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, err)
		}
		e.Timestamp = parseTime(createdAt)
		e.Type = domain.TransactionType(typ)
		e.Asset = domain.Asset(asset)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domain.LedgerStore = (*DB)(nil)
