// Package gacha implements the dual-pity gacha draw and its persistence.
//
// A draw bumps both pity counters, then:
//  1. epic counter at EpicPity forces an epic and resets both counters
//  2. rare counter at RarePity forces a rare and resets the rare counter
//  3. otherwise a uniform roll in [0,100) is mapped through cumulative bands
package gacha

import (
	"fmt"
	"math/rand/v2"

	"github.com/spider-presale/presale/internal/domain"
)

// RandomSource returns a uniform value in [0,1).
type RandomSource func() float64

// DefaultRNG is the process-wide generator.
func DefaultRNG() RandomSource { return rand.Float64 }

// Bands are cumulative upper bounds (exclusive) on a [0,100) roll.
// Whatever lies at or above RareBelow is epic.
type Bands struct {
	TryAgainBelow float64 `json:"try_again_below"`
	CommonBelow   float64 `json:"common_below"`
	UncommonBelow float64 `json:"uncommon_below"`
	RareBelow     float64 `json:"rare_below"`
}

// Config controls pity thresholds and the roll bands.
type Config struct {
	RarePity int   `json:"rare_pity"`
	EpicPity int   `json:"epic_pity"`
	Bands    Bands `json:"bands"`
}

// DefaultConfig returns the live presale odds.
func DefaultConfig() Config {
	return Config{
		RarePity: 50,
		EpicPity: 100,
		Bands: Bands{
			TryAgainBelow: 95,
			CommonBelow:   98.999,
			UncommonBelow: 99.999935,
			RareBelow:     99.999945,
		},
	}
}

// Validate checks that pity thresholds are positive and the bands partition
// [0,100) in order.
func (c Config) Validate() error {
	if c.RarePity <= 0 || c.EpicPity <= 0 {
		return fmt.Errorf("pity thresholds must be positive (rare=%d, epic=%d)", c.RarePity, c.EpicPity)
	}
	b := c.Bands
	bounds := []float64{0, b.TryAgainBelow, b.CommonBelow, b.UncommonBelow, b.RareBelow, 100}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] {
			return fmt.Errorf("gacha bands must be non-decreasing within [0,100]: %v", bounds[1:5])
		}
	}
	return nil
}

// Classify maps a roll in [0,100) onto a rarity.
func (b Bands) Classify(roll float64) domain.Rarity {
	switch {
	case roll < b.TryAgainBelow:
		return domain.RarityTryAgain
	case roll < b.CommonBelow:
		return domain.RarityCommon
	case roll < b.UncommonBelow:
		return domain.RarityUncommon
	case roll < b.RareBelow:
		return domain.RarityRare
	default:
		return domain.RarityEpic
	}
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine is the pure draw function. It holds no per-player state.
type Engine struct {
	cfg Config
	rng RandomSource
}

// NewEngine creates an engine. A nil rng uses DefaultRNG.
func NewEngine(cfg Config, rng RandomSource) *Engine {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Outcome is one draw's result and the counters after it.
type Outcome struct {
	Rarity domain.Rarity
	Pity   domain.PityCounter
	Forced bool   // decided by a pity counter, not the roll
	Source string // "epic_pity", "rare_pity" or "roll"
}

// Draw performs one draw from the given counters.
func (e *Engine) Draw(pity domain.PityCounter) Outcome {
	pity.Rare++
	pity.Epic++

	if pity.Epic >= e.cfg.EpicPity {
		return Outcome{Rarity: domain.RarityEpic, Pity: domain.PityCounter{}, Forced: true, Source: "epic_pity"}
	}
	if pity.Rare >= e.cfg.RarePity {
		pity.Rare = 0
		return Outcome{Rarity: domain.RarityRare, Pity: pity, Forced: true, Source: "rare_pity"}
	}

	r := e.cfg.Bands.Classify(e.rng() * 100)
	switch r {
	case domain.RarityEpic:
		pity = domain.PityCounter{}
	case domain.RarityRare:
		pity.Rare = 0
	}
	return Outcome{Rarity: r, Pity: pity, Source: "roll"}
}

// ─── Odds & Simulation ──────────────────────────────────────────────────────

// Odd is the configured probability of one rarity, in percent.
type Odd struct {
	Rarity  domain.Rarity `json:"rarity"`
	Percent float64       `json:"percent"`
}

// Odds reports the per-roll probability of each rarity, ignoring pity.
func (c Config) Odds() []Odd {
	b := c.Bands
	return []Odd{
		{domain.RarityTryAgain, b.TryAgainBelow},
		{domain.RarityCommon, b.CommonBelow - b.TryAgainBelow},
		{domain.RarityUncommon, b.UncommonBelow - b.CommonBelow},
		{domain.RarityRare, b.RareBelow - b.UncommonBelow},
		{domain.RarityEpic, 100 - b.RareBelow},
	}
}

// SimulationReport summarizes an in-memory run of consecutive draws.
type SimulationReport struct {
	Draws        int                   `json:"draws"`
	Counts       map[domain.Rarity]int `json:"counts"`
	RarePityHits int                   `json:"rare_pity_hits"`
	EpicPityHits int                   `json:"epic_pity_hits"`
	MaxRareGap   int                   `json:"max_rare_gap"` // longest run without rare-or-better
	MaxEpicGap   int                   `json:"max_epic_gap"`
}

// Rate returns the observed share of r in percent.
func (s SimulationReport) Rate(r domain.Rarity) float64 {
	if s.Draws == 0 {
		return 0
	}
	return float64(s.Counts[r]) * 100 / float64(s.Draws)
}

// Simulate runs n consecutive draws for a single fresh player. Nothing is
// persisted.
func (e *Engine) Simulate(n int) SimulationReport {
	rep := SimulationReport{Counts: make(map[domain.Rarity]int, len(domain.Rarities))}
	var pity domain.PityCounter
	for i := 0; i < n; i++ {
		out := e.Draw(pity)
		// counters before reset equal the gap length
		if out.Rarity == domain.RarityRare || out.Rarity == domain.RarityEpic {
			rep.MaxRareGap = max(rep.MaxRareGap, pity.Rare+1)
		}
		if out.Rarity == domain.RarityEpic {
			rep.MaxEpicGap = max(rep.MaxEpicGap, pity.Epic+1)
		}
		switch out.Source {
		case "rare_pity":
			rep.RarePityHits++
		case "epic_pity":
			rep.EpicPityHits++
		}
		rep.Counts[out.Rarity]++
		pity = out.Pity
		rep.Draws++
	}
	return rep
}
