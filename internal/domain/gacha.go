package domain

import "time"

// ─── Gacha Types ────────────────────────────────────────────────────────────

// Rarity is the outcome tier of a gacha draw.
type Rarity string

const (
	RarityTryAgain Rarity = "tryAgain"
	RarityCommon   Rarity = "common"
	RarityUncommon Rarity = "uncommon"
	RarityRare     Rarity = "rare"
	RarityEpic     Rarity = "epic"
)

// Rarities lists every tier from the lowest band to the highest.
var Rarities = []Rarity{RarityTryAgain, RarityCommon, RarityUncommon, RarityRare, RarityEpic}

// IsWin reports whether the rarity is recorded in the win log.
func (r Rarity) IsWin() bool { return r != RarityTryAgain }

// GachaWin is one entry of a player's append-only win log.
type GachaWin struct {
	Rarity    Rarity    `json:"rarity"`
	Timestamp time.Time `json:"timestamp"`
}

// PityCounter counts consecutive draws since the last rare-or-better (Rare)
// and since the last epic (Epic).
type PityCounter struct {
	Rare int `json:"rare"`
	Epic int `json:"epic"`
}

// DrawResult describes one committed draw.
type DrawResult struct {
	ID             string      `json:"id"`
	Rarity         Rarity      `json:"rarity"`
	Timestamp      time.Time   `json:"timestamp"`
	Pity           bool        `json:"pity"` // outcome forced by a pity counter
	TriesRemaining int64       `json:"tries_remaining"`
	PityCounter    PityCounter `json:"pity_counter"`
}
