package entity

import "sort"

// AddressesByToken maps a token id to the addresses watched for it.
type AddressesByToken map[string][]string

// Clone returns a deep copy.
func (a AddressesByToken) Clone() AddressesByToken {
	out := make(AddressesByToken, len(a))
	for tokenID, addresses := range a {
		out[tokenID] = append([]string(nil), addresses...)
	}
	return out
}

// Contains reports whether address is watched for tokenID.
func (a AddressesByToken) Contains(tokenID, address string) bool {
	normalized := NormalizeAddress(address)
	for _, candidate := range a[tokenID] {
		if NormalizeAddress(candidate) == normalized {
			return true
		}
	}
	return false
}

// Len returns the number of (token, address) pairs.
func (a AddressesByToken) Len() int {
	n := 0
	for _, addresses := range a {
		n += len(addresses)
	}
	return n
}

// WatchSpec maps a module type to the token/address pairs that module must watch.
type WatchSpec map[string]AddressesByToken

// Modules returns the module types in w, sorted.
func (w WatchSpec) Modules() []string {
	out := make([]string, 0, len(w))
	for source := range w {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of (token, address) pairs across all modules.
func (w WatchSpec) Len() int {
	n := 0
	for _, byToken := range w {
		n += byToken.Len()
	}
	return n
}
