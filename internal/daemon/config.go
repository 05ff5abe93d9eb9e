// Package daemon loads configuration and wires the presale services together.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/spider-presale/presale/internal/app/gacha"
	"github.com/spider-presale/presale/internal/app/leaderboard"
	"github.com/spider-presale/presale/internal/app/presale"
	"github.com/spider-presale/presale/internal/app/referral"
	"github.com/spider-presale/presale/internal/infra/observability"
	"github.com/spider-presale/presale/internal/infra/payment"
	"github.com/spider-presale/presale/internal/infra/sqlite"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config is the full presaled configuration (presale.toml).
type Config struct {
	API         APIConfig         `toml:"api"`
	Store       StoreConfig       `toml:"store"`
	Log         LogConfig         `toml:"log"`
	Payment     PaymentConfig     `toml:"payment"`
	Presale     PresaleConfig     `toml:"presale"`
	Gacha       GachaConfig       `toml:"gacha"`
	Leaderboard LeaderboardConfig `toml:"leaderboard"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig controls the ledger database.
type StoreConfig struct {
	Dir          string `toml:"dir"`
	MaxAttempts  int    `toml:"max_attempts"`
	RetryBackoff string `toml:"retry_backoff"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// PaymentConfig controls the wallet bridge.
type PaymentConfig struct {
	BridgeURL string `toml:"bridge_url"`
	Receiver  string `toml:"receiver"`
	Timeout   string `toml:"timeout"`
	ValidFor  string `toml:"valid_for"`
}

// PresaleConfig holds pricing and referral rewards. Amounts are decimal
// strings so they never pass through float64.
type PresaleConfig struct {
	TokenPrice        string `toml:"token_price"`
	TryPrice          string `toml:"try_price"`
	EligibleThreshold string `toml:"eligible_threshold"`
	FeedersReward     int64  `toml:"feeders_reward"`
}

// GachaConfig holds pity thresholds and cumulative roll bands.
type GachaConfig struct {
	RarePity      int     `toml:"rare_pity"`
	EpicPity      int     `toml:"epic_pity"`
	TryAgainBelow float64 `toml:"try_again_below"`
	CommonBelow   float64 `toml:"common_below"`
	UncommonBelow float64 `toml:"uncommon_below"`
	RareBelow     float64 `toml:"rare_below"`
}

// LeaderboardConfig controls the ranking size.
type LeaderboardConfig struct {
	Size int `toml:"size"`
}

// DefaultConfig returns the launch configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8787,
			Metrics: true,
		},
		Store: StoreConfig{
			Dir:          defaultDataDir(),
			MaxAttempts:  5,
			RetryBackoff: "20ms",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Payment: PaymentConfig{
			Timeout:  "30s",
			ValidFor: "10m",
		},
		Presale: PresaleConfig{
			TokenPrice:        "0.02",
			TryPrice:          "5",
			EligibleThreshold: "100",
			FeedersReward:     5,
		},
		Gacha: GachaConfig{
			RarePity:      50,
			EpicPity:      100,
			TryAgainBelow: 95,
			CommonBelow:   98.999,
			UncommonBelow: 99.999935,
			RareBelow:     99.999945,
		},
		Leaderboard: LeaderboardConfig{Size: 10},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".presale"
	}
	return filepath.Join(home, ".presale")
}

// ─── Loading ────────────────────────────────────────────────────────────────

// LoadConfig layers the TOML file at path (if it exists) over the defaults,
// then applies PRESALE_* environment overrides. A .env file in the working
// directory is loaded first; variables already set win over it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PRESALE_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"PRESALE_API_HOST":           &cfg.API.Host,
		"PRESALE_STORE_DIR":          &cfg.Store.Dir,
		"PRESALE_STORE_RETRY":        &cfg.Store.RetryBackoff,
		"PRESALE_LOG_LEVEL":          &cfg.Log.Level,
		"PRESALE_LOG_FORMAT":         &cfg.Log.Format,
		"PRESALE_BRIDGE_URL":         &cfg.Payment.BridgeURL,
		"PRESALE_RECEIVER":           &cfg.Payment.Receiver,
		"PRESALE_PAYMENT_TIMEOUT":    &cfg.Payment.Timeout,
		"PRESALE_TOKEN_PRICE":        &cfg.Presale.TokenPrice,
		"PRESALE_TRY_PRICE":          &cfg.Presale.TryPrice,
		"PRESALE_ELIGIBLE_THRESHOLD": &cfg.Presale.EligibleThreshold,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PRESALE_API_PORT":           &cfg.API.Port,
		"PRESALE_STORE_MAX_ATTEMPTS": &cfg.Store.MaxAttempts,
		"PRESALE_LEADERBOARD_SIZE":   &cfg.Leaderboard.Size,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("PRESALE_API_METRICS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRESALE_API_METRICS: %w", err)
		}
		cfg.API.Metrics = b
	}
	return nil
}

// ─── Validation ─────────────────────────────────────────────────────────────

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	var errs []error

	for name, v := range map[string]string{
		"presale.token_price":        c.Presale.TokenPrice,
		"presale.try_price":          c.Presale.TryPrice,
		"presale.eligible_threshold": c.Presale.EligibleThreshold,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a decimal", name, v))
			continue
		}
		if !d.IsPositive() {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}
	if c.Presale.FeedersReward < 0 {
		errs = append(errs, fmt.Errorf("presale.feeders_reward must not be negative"))
	}

	g := c.Gacha
	if g.RarePity <= 0 || g.EpicPity <= 0 {
		errs = append(errs, fmt.Errorf("gacha pity thresholds must be positive"))
	}
	bounds := []float64{0, g.TryAgainBelow, g.CommonBelow, g.UncommonBelow, g.RareBelow, 100}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] {
			errs = append(errs, fmt.Errorf("gacha bands must be non-decreasing within [0,100]"))
			break
		}
	}

	for name, v := range map[string]string{
		"store.retry_backoff": c.Store.RetryBackoff,
		"payment.timeout":     c.Payment.Timeout,
		"payment.valid_for":   c.Payment.ValidFor,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Store.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("store.max_attempts must be positive"))
	}
	if c.Leaderboard.Size <= 0 {
		errs = append(errs, fmt.Errorf("leaderboard.size must be positive"))
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ─── Typed Accessors ────────────────────────────────────────────────────────
// Validate has already checked these parse; zero values are never returned
// for a validated Config.

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Backoff returns the parsed retry backoff.
func (c StoreConfig) Backoff() time.Duration { return mustDuration(c.RetryBackoff) }

// TimeoutDuration returns the parsed payment timeout.
func (c PaymentConfig) TimeoutDuration() time.Duration { return mustDuration(c.Timeout) }

// ValidForDuration returns the parsed signing window.
func (c PaymentConfig) ValidForDuration() time.Duration { return mustDuration(c.ValidFor) }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ─── Service Configs ────────────────────────────────────────────────────────

// SQLite returns the store settings.
func (c Config) SQLite(log zerolog.Logger) sqlite.Config {
	cfg := sqlite.DefaultConfig(expandHome(c.Store.Dir))
	cfg.MaxAttempts = c.Store.MaxAttempts
	cfg.RetryBackoff = c.Store.Backoff()
	cfg.Logger = log
	cfg.OnConflict = observability.StoreConflicts.Inc
	return cfg
}

// PaymentClient returns the wallet bridge settings.
func (c Config) PaymentClient() payment.Config {
	return payment.Config{
		BaseURL:  c.Payment.BridgeURL,
		Timeout:  c.Payment.TimeoutDuration(),
		ValidFor: c.Payment.ValidForDuration(),
	}
}

// Referral returns the classifier settings.
func (c Config) Referral() referral.Config {
	return referral.Config{
		EligibleThreshold: decimal.RequireFromString(c.Presale.EligibleThreshold),
		FeedersReward:     c.Presale.FeedersReward,
	}
}

// PresaleQuote returns the pricing settings.
func (c Config) PresaleQuote() presale.Config {
	return presale.Config{
		TokenPrice: decimal.RequireFromString(c.Presale.TokenPrice),
		TryPrice:   decimal.RequireFromString(c.Presale.TryPrice),
		Receiver:   c.Payment.Receiver,
	}
}

// GachaEngine returns the draw settings.
func (c Config) GachaEngine() gacha.Config {
	return gacha.Config{
		RarePity: c.Gacha.RarePity,
		EpicPity: c.Gacha.EpicPity,
		Bands: gacha.Bands{
			TryAgainBelow: c.Gacha.TryAgainBelow,
			CommonBelow:   c.Gacha.CommonBelow,
			UncommonBelow: c.Gacha.UncommonBelow,
			RareBelow:     c.Gacha.RareBelow,
		},
	}
}

// LeaderboardSettings returns the ranking settings.
func (c Config) LeaderboardSettings() leaderboard.Config {
	return leaderboard.Config{Size: c.Leaderboard.Size}
}

func expandHome(dir string) string {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

// ─── Logging ────────────────────────────────────────────────────────────────

// NewLogger builds the process logger from [log].
func NewLogger(c LogConfig, w io.Writer) zerolog.Logger {
	if strings.EqualFold(c.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "presaled").Logger()
}
