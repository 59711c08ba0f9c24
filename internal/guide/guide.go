// Package guide publishes the olive rarity tables as JSON and as an HTML page.
package guide

import (
	"strings"

	"galway/internal/olive"
)

// sampleOliveCount is how many olives the per-type sample renderings carry.
const sampleOliveCount = 3

type CountRow struct {
	Olives     int          `json:"olives"`
	Rarity     olive.Rarity `json:"rarity"`
	Percentage int          `json:"percentage"`
	Weight     float64      `json:"weight"`
}

type TypeRow struct {
	Key        olive.OliveType `json:"key"`
	Name       string          `json:"name"`
	Rarity     olive.Rarity    `json:"rarity"`
	Percentage int             `json:"percentage"`
	Weight     float64         `json:"weight"`
	Colors     []string        `json:"colors"`
	SampleSVG  string          `json:"sampleSvg"`
}

// Guide is the rarity reference derived from the generator tables.
type Guide struct {
	Counts       []CountRow          `json:"counts"`
	Types        []TypeRow           `json:"types"`
	BranchColors []olive.ColorFamily `json:"branchColors"`
	LeafColors   []olive.ColorFamily `json:"leafColors"`
	Background   string              `json:"background"`
	Rarities     []olive.Rarity      `json:"rarities"`
}

// Build reads the exported tables; nothing here restates a weight or colour.
func Build() Guide {
	g := Guide{
		BranchColors: olive.BranchColors,
		LeafColors:   olive.LeafColors,
		Background:   olive.BackgroundColor,
		Rarities:     olive.Rarities[:],
	}
	for _, e := range olive.CountTable.Entries {
		g.Counts = append(g.Counts, CountRow{
			Olives:     e.Key,
			Rarity:     e.Rarity,
			Percentage: e.Percentage(),
			Weight:     e.Weight,
		})
	}

	branch := firstColor(olive.BranchColors)
	leaf := firstColor(olive.LeafColors)
	for _, e := range olive.TypeTable.Entries {
		family := olive.OliveColors[e.Key]
		row := TypeRow{
			Key:        e.Key,
			Name:       e.DisplayName,
			Rarity:     e.Rarity,
			Percentage: e.Percentage(),
			Weight:     e.Weight,
			Colors:     family.Colors,
		}
		if len(family.Colors) > 0 {
			row.SampleSVG = olive.Render(
				olive.Colors{Olive: family.Colors[0], Branch: branch, Leaf: leaf},
				olive.OlivePositions[:sampleOliveCount],
			)
		}
		g.Types = append(g.Types, row)
	}
	return g
}

func firstColor(families []olive.ColorFamily) string {
	for _, f := range families {
		if len(f.Colors) > 0 {
			return f.Colors[0]
		}
	}
	return ""
}

// rarityClass turns "Very Rare" into "rarity-very-rare".
func rarityClass(r olive.Rarity) string {
	return "rarity-" + strings.ReplaceAll(strings.ToLower(string(r)), " ", "-")
}
