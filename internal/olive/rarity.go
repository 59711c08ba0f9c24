package olive

import (
	"errors"
	"fmt"
	"math"
)

// Rarity is the display label attached to a sampled table entry.
type Rarity string

const (
	Common   Rarity = "Common"
	Uncommon Rarity = "Uncommon"
	Rare     Rarity = "Rare"
	VeryRare Rarity = "Very Rare"
)

// Rarities lists every label from most to least common.
var Rarities = [...]Rarity{Common, Uncommon, Rare, VeryRare}

// Rank orders rarities; unknown labels rank 0, Common ranks 1.
func (r Rarity) Rank() int {
	for i, v := range Rarities {
		if v == r {
			return i + 1
		}
	}
	return 0
}

// Overall returns the rarer of the two labels.
func Overall(count, typ Rarity) Rarity {
	if typ.Rank() > count.Rank() {
		return typ
	}
	return count
}

const weightTolerance = 1e-9

// ErrWeightSum is returned by Validate when the weights do not add up to 1.
var ErrWeightSum = errors.New("rarity table weights do not sum to 1")

// RarityEntry is one row of a RarityTable: a key, its probability and the
// label shown to users.
type RarityEntry[K comparable] struct {
	Key         K       `json:"key"`
	Weight      float64 `json:"weight"`
	Rarity      Rarity  `json:"rarity"`
	DisplayName string  `json:"displayName,omitempty"`
}

// Percentage is the published drop rate, round(weight*100).
func (e RarityEntry[K]) Percentage() int {
	return int(math.Round(e.Weight * 100))
}

// RarityTable is an ordered weighted table. Entry order is significant:
// sampling walks the entries in definition order, so it decides which
// entry wins at cumulative boundaries.
type RarityTable[K comparable] struct {
	Entries  []RarityEntry[K]
	Fallback K
}

// Sample selects the first entry whose cumulative weight reaches r.
// When rounding leaves the cumulative sum short of r, the fallback entry
// is returned.
func (t RarityTable[K]) Sample(r float64) RarityEntry[K] {
	cumulative := 0.0
	for _, e := range t.Entries {
		cumulative += e.Weight
		if r <= cumulative {
			return e
		}
	}
	e, _ := t.Lookup(t.Fallback)
	return e
}

// Lookup finds the entry for key.
func (t RarityTable[K]) Lookup(key K) (RarityEntry[K], bool) {
	for _, e := range t.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return RarityEntry[K]{}, false
}

// Sum adds up every entry weight.
func (t RarityTable[K]) Sum() float64 {
	sum := 0.0
	for _, e := range t.Entries {
		sum += e.Weight
	}
	return sum
}

// Keys returns the entry keys in table order.
func (t RarityTable[K]) Keys() []K {
	out := make([]K, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, e.Key)
	}
	return out
}

// Validate checks that the weights sum to 1 within tolerance and that the
// fallback key exists.
func (t RarityTable[K]) Validate() error {
	if math.Abs(t.Sum()-1) > weightTolerance {
		return fmt.Errorf("%w: got %.12f", ErrWeightSum, t.Sum())
	}
	if _, ok := t.Lookup(t.Fallback); !ok {
		return fmt.Errorf("fallback key %v is not in the table", t.Fallback)
	}
	return nil
}
