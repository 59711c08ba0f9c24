package olive

import (
	"fmt"
	"math"
)

// Colors are the three fills chosen for one branch.
type Colors struct {
	Olive  string `json:"olive"`
	Branch string `json:"branch"`
	Leaf   string `json:"leaf"`
}

// RarityInfo carries the labels and published percentages of the count and
// type that were rolled.
type RarityInfo struct {
	Count           Rarity `json:"count"`
	Type            Rarity `json:"type"`
	CountPercentage int    `json:"countPercentage"`
	TypePercentage  int    `json:"typePercentage"`
}

// Overall is the rarer of the count and type labels.
func (r RarityInfo) Overall() Rarity {
	return Overall(r.Count, r.Type)
}

// BranchArtifact is one generated botanical signature.
type BranchArtifact struct {
	SVG        string     `json:"svg"`
	Colors     Colors     `json:"colors"`
	OliveCount int        `json:"oliveCount"`
	OliveType  string     `json:"oliveType"`
	Rarity     RarityInfo `json:"rarity"`
	ID         float64    `json:"id"`
}

// ShortID is the last six digits of the integer part of the id, zero padded.
func (a BranchArtifact) ShortID() string {
	whole := int64(math.Floor(a.ID))
	if whole < 0 {
		whole = -whole
	}
	return fmt.Sprintf("%06d", whole%1_000_000)
}
