package domain

import "encoding/json"

// AddressSet is an insertion-ordered set of wallet addresses or referral codes.
// It serializes as a JSON array and collapses duplicates when decoded, so a
// stored document can never count the same address twice.
type AddressSet struct {
	items []string
	index map[string]struct{}
}

// NewAddressSet builds a set from the given addresses, dropping duplicates.
func NewAddressSet(addrs ...string) AddressSet {
	var s AddressSet
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Contains reports whether addr is in the set.
func (s *AddressSet) Contains(addr string) bool {
	_, ok := s.index[addr]
	return ok
}

// Add inserts addr. Returns false if it was already present.
func (s *AddressSet) Add(addr string) bool {
	if s.Contains(addr) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[addr] = struct{}{}
	s.items = append(s.items, addr)
	return true
}

// Remove deletes addr. Returns false if it was not present.
func (s *AddressSet) Remove(addr string) bool {
	if !s.Contains(addr) {
		return false
	}
	delete(s.index, addr)
	for i, a := range s.items {
		if a == addr {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of addresses.
func (s *AddressSet) Len() int { return len(s.items) }

// Items returns a copy of the addresses in insertion order.
func (s *AddressSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Union adds every address of other. Returns how many were new.
func (s *AddressSet) Union(other AddressSet) int {
	added := 0
	for _, a := range other.items {
		if s.Add(a) {
			added++
		}
	}
	return added
}

// MarshalJSON encodes the set as an array ([] when empty, never null).
func (s AddressSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON decodes an array, collapsing duplicates.
func (s *AddressSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewAddressSet(raw...)
	return nil
}

// Clone returns an independent copy.
func (s AddressSet) Clone() AddressSet {
	return NewAddressSet(s.items...)
}
