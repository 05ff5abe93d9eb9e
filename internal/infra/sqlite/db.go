// Package sqlite is the transactional document store behind the presale.
// Player documents are JSON blobs guarded by a version column; every
// correctness-critical write goes through DB.Update.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spider-presale/presale/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "presale.db"

// Config configures the store.
type Config struct {
	Dir          string
	MaxAttempts  int           // attempts per Update before ErrTransient
	RetryBackoff time.Duration // multiplied by the attempt number
	Logger       zerolog.Logger

	// OnConflict is called once per retried attempt. Optional.
	OnConflict func()
}

// DefaultConfig returns production defaults rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		MaxAttempts:  5,
		RetryBackoff: 20 * time.Millisecond,
		Logger:       zerolog.Nop(),
	}
}

// DB wraps the SQLite connection pool.
type DB struct {
	db  *sql.DB
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

// Open opens (or creates) the store in dir with default settings.
func Open(dir string) (*DB, error) {
	return OpenConfig(DefaultConfig(dir))
}

// OpenConfig opens the store and applies the schema.
func OpenConfig(cfg Config) (*DB, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, FileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db := &DB{
		db:  sqlDB,
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "store").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		// One JSON document per referral code
		`CREATE TABLE IF NOT EXISTS players (
			code       TEXT PRIMARY KEY,
			wallet     TEXT NOT NULL,
			doc        TEXT NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		// Immutable referee → referrer bindings
		`CREATE TABLE IF NOT EXISTS referral_bindings (
			wallet     TEXT PRIMARY KEY,
			referrer   TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_referrer ON referral_bindings(referrer)`,

		// Append-only purchase records
		`CREATE TABLE IF NOT EXISTS purchases (
			id            TEXT PRIMARY KEY,
			buyer         TEXT NOT NULL,
			amount        TEXT NOT NULL,
			spider_amount TEXT NOT NULL,
			gacha_tries   INTEGER NOT NULL DEFAULT 0,
			referrer      TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			payment_ref   TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_buyer ON purchases(buyer, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_referrer ON purchases(referrer)`,

		// Audit ledger mirroring every balance change
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			type       TEXT NOT NULL,
			account    TEXT NOT NULL,
			asset      TEXT NOT NULL,
			amount     TEXT NOT NULL,
			reference  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account, created_at)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// Update runs fn inside one BEGIN IMMEDIATE transaction. A version conflict
// or SQLITE_BUSY rolls back and re-runs fn from scratch with linear backoff;
// after MaxAttempts the caller gets domain.ErrTransient, as it does when ctx
// ends first. Any other error from fn rolls back and is returned unchanged.
func (db *DB) Update(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= db.cfg.MaxAttempts; attempt++ {
		err := db.updateOnce(ctx, fn)
		if err == nil {
			return nil
		}
		var de *domain.Error
		if ctx.Err() != nil && !errors.As(err, &de) {
			db.log.Warn().Err(err).Msg("transaction abandoned")
			return domain.ErrTransient
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		if db.cfg.OnConflict != nil {
			db.cfg.OnConflict()
		}
		db.log.Debug().Err(err).Int("attempt", attempt).Msg("transaction conflict, retrying")

		if attempt == db.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.ErrTransient
		case <-time.After(db.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	db.log.Warn().Err(lastErr).Int("attempts", db.cfg.MaxAttempts).Msg("transaction retries exhausted")
	return domain.ErrTransient
}

func (db *DB) updateOnce(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	tx := &ledgerTx{ctx: ctx, tx: sqlTx, now: db.now}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		sqlTx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// isRetryable reports whether err is a lost CAS or a locked database.
func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
