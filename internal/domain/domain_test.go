package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ─── AddressSet Tests ───────────────────────────────────────────────────────

func TestAddressSet_AddContainsRemove(t *testing.T) {
	var s AddressSet
	if !s.Add("a") {
		t.Fatal("first Add should report new")
	}
	if s.Add("a") {
		t.Error("second Add should report duplicate")
	}
	s.Add("b")
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if !s.Contains("b") {
		t.Error("Contains(b) = false")
	}
	if !s.Remove("a") {
		t.Error("Remove(a) = false")
	}
	if s.Remove("a") {
		t.Error("second Remove(a) should report absent")
	}
	if got := s.Items(); len(got) != 1 || got[0] != "b" {
		t.Errorf("Items() = %v, want [b]", got)
	}
}

func TestAddressSet_Union(t *testing.T) {
	s := NewAddressSet("a", "b")
	added := s.Union(NewAddressSet("b", "c", "d"))
	if added != 2 {
		t.Errorf("Union added %d, want 2", added)
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}

func TestAddressSet_JSON(t *testing.T) {
	var empty AddressSet
	data, err := json.Marshal(empty)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty set encodes as %s, want []", data)
	}

	var s AddressSet
	if err := json.Unmarshal([]byte(`["x","y","x"]`), &s); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("duplicates not collapsed: Len() = %d", s.Len())
	}

	var null AddressSet
	if err := json.Unmarshal([]byte(`null`), &null); err != nil {
		t.Fatalf("Unmarshal(null) error: %v", err)
	}
	if null.Len() != 0 {
		t.Errorf("null decodes to %d items", null.Len())
	}
}

func TestAddressSet_CloneIsIndependent(t *testing.T) {
	s := NewAddressSet("a")
	c := s.Clone()
	c.Add("b")
	if s.Contains("b") {
		t.Error("mutating clone leaked into original")
	}
}

// ─── Player Tests ───────────────────────────────────────────────────────────

func TestNewPlayer_EmptyState(t *testing.T) {
	p := NewPlayer("0:ab12cd34ef", fixedNow)
	if p.Code != "0:ab12cd" {
		t.Errorf("Code = %q, want 0:ab12cd", p.Code)
	}
	if !p.SpiderBalance.IsZero() || p.Feeders != 0 || p.GachaTries != 0 {
		t.Error("new player should have zero balances")
	}
	if p.PityCounter == nil || *p.PityCounter != (PityCounter{}) {
		t.Error("new player should have zeroed pity counter")
	}
	if p.Version != 0 {
		t.Errorf("Version = %d, want 0", p.Version)
	}
}

func TestInviteBucket_TotalTracksSet(t *testing.T) {
	var b InviteBucket
	b.Add("a")
	b.Add("a")
	b.Add("b")
	if b.Total != 2 {
		t.Errorf("Total = %d, want 2", b.Total)
	}
	b.Remove("a")
	b.Remove("zzz")
	if b.Total != 1 {
		t.Errorf("Total = %d, want 1", b.Total)
	}
}

func TestPlayer_JSONRoundTripKeepsFieldNames(t *testing.T) {
	p := NewPlayer("0:ab12cd34", fixedNow)
	p.ValidInvites.Add("0:ff00ff00")
	p.FeedersClaimed.Add("0:ff00ff00")

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"walletAddress", "spiderBalance", "feedersClaimed", "validInvites", "pityCounter", "gachaWins"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("encoded player missing %q", field)
		}
	}

	var back Player
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.ValidInvites.Contains("0:ff00ff00") || back.ValidInvites.Total != 1 {
		t.Errorf("validInvites lost: %+v", back.ValidInvites)
	}
}

func TestPlayer_Pity_MissingCounter(t *testing.T) {
	p := &Player{}
	if p.Pity() != (PityCounter{}) {
		t.Error("missing pity counter should read as zero")
	}
}

func TestPlayer_CloneIsDeep(t *testing.T) {
	p := NewPlayer("0:ab12cd34", fixedNow)
	c := p.Clone()
	c.ValidInvites.Add("x")
	c.PityCounter.Rare = 7
	c.GachaWins = append(c.GachaWins, GachaWin{Rarity: RarityRare})

	if p.ValidInvites.Contains("x") || p.PityCounter.Rare != 0 || len(p.GachaWins) != 0 {
		t.Error("clone shares state with original")
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrSelfReferral, ErrValidation},
		{ErrAlreadyBound, ErrValidation},
		{ErrInsufficientTries, ErrValidation},
		{ErrTransient, ErrConflict},
		{ErrPaymentRejected, ErrExternal},
		{ErrPlayerNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("%v should be of kind %v", tt.err, tt.kind)
			}
		})
	}
}

func TestRarity_IsWin(t *testing.T) {
	if RarityTryAgain.IsWin() {
		t.Error("tryAgain is not a win")
	}
	for _, r := range Rarities[1:] {
		if !r.IsWin() {
			t.Errorf("%s should be a win", r)
		}
	}
}

func TestInviteBucket_LenItems(t *testing.T) {
	var b InviteBucket
	b.Add("0:a")
	b.Add("0:b")
	b.Add("0:a")
	if b.Len() != 2 || b.Total != 2 {
		t.Errorf("Len() = %d, Total = %d, want 2/2", b.Len(), b.Total)
	}
	if got := b.Items(); len(got) != 2 || got[0] != "0:a" || got[1] != "0:b" {
		t.Errorf("Items() = %v, want [0:a 0:b]", got)
	}
}
