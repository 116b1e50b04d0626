package value

import (
	"fmt"
	"sort"
	"strings"
)

// Asset identifies a token class. The reserved empty pair denotes the
// ledger's base currency.
type Asset struct {
	PolicyID string // hex-encoded policy script hash, empty for the base coin
	Name     string // hex-encoded asset name, empty for the base coin
}

func (a Asset) IsCoin() bool {
	return a.PolicyID == "" && a.Name == ""
}

func (a Asset) String() string {
	if a.IsCoin() {
		return "coin"
	}
	return fmt.Sprintf("%s.%s", a.PolicyID, a.Name)
}

type Entry struct {
	Asset
	Quantity int64
}

// Value is a multi-asset amount: an ordered list of asset/quantity pairs.
// Values are always kept in canonical order (policy ascending, then name
// ascending, base coin first) with zero-quantity entries dropped, so
// comparing two Values entry by entry is a comparison of canonical forms,
// never of insertion order.
type Value []Entry

// New builds a canonical Value from the given entries. Entries sharing the
// same asset are summed; zero quantities are dropped.
func New(entries ...Entry) Value {
	merged := make(map[Asset]int64)
	for _, e := range entries {
		merged[e.Asset] += e.Quantity
	}
	v := make(Value, 0, len(merged))
	for asset, qty := range merged {
		if qty == 0 {
			continue
		}
		v = append(v, Entry{Asset: asset, Quantity: qty})
	}
	sort.Slice(v, func(i, j int) bool {
		if v[i].PolicyID != v[j].PolicyID {
			return v[i].PolicyID < v[j].PolicyID
		}
		return v[i].Name < v[j].Name
	})
	return v
}

// FromCoin builds a Value holding only base currency.
func FromCoin(quantity int64) Value {
	return New(Entry{Quantity: quantity})
}

// Coin returns the base-currency quantity.
func (v Value) Coin() int64 {
	for _, e := range v {
		if e.IsCoin() {
			return e.Quantity
		}
	}
	return 0
}

// QuantityOf returns the quantity held for the given asset, zero if absent.
func (v Value) QuantityOf(policyID, name string) int64 {
	for _, e := range v {
		if e.PolicyID == policyID && e.Name == name {
			return e.Quantity
		}
	}
	return 0
}

// WithoutCoin returns the non-base-currency portion of the value.
func (v Value) WithoutCoin() Value {
	out := make(Value, 0, len(v))
	for _, e := range v {
		if !e.IsCoin() {
			out = append(out, e)
		}
	}
	return out
}

// UnderPolicy returns the entries minted or held under the given policy.
func (v Value) UnderPolicy(policyID string) []Entry {
	entries := make([]Entry, 0)
	for _, e := range v {
		if e.PolicyID == policyID {
			entries = append(entries, e)
		}
	}
	return entries
}

// Add merges two values into a new canonical Value.
func (v Value) Add(other Value) Value {
	entries := make([]Entry, 0, len(v)+len(other))
	entries = append(entries, v...)
	entries = append(entries, other...)
	return New(entries...)
}

// Equal reports whether both values hold exactly the same entries in the
// same order. Both sides being canonical, this is value equality.
func (v Value) Equal(other Value) bool {
	if len(v) != len(other) {
		return false
	}
	for i, e := range v {
		if e != other[i] {
			return false
		}
	}
	return true
}

func (v Value) IsZero() bool {
	return len(v) == 0
}

func (v Value) String() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s:%d", e.Asset, e.Quantity))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
