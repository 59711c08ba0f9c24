package olive

// OliveType keys the olive colour families.
type OliveType string

const (
	GreenOlives  OliveType = "greenOlives"
	BlackOlives  OliveType = "blackOlives"
	BrownOlives  OliveType = "brownOlives"
	PurpleOlives OliveType = "purpleOlives"
	RipeMixed    OliveType = "ripeMixed"
)

// BackgroundColor fills the 70x70 canvas behind every branch.
const BackgroundColor = "#fcfcfc"

// ColorFamily is a named set of interchangeable hex colours.
type ColorFamily struct {
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

// Contains reports whether color is one of the family's colours.
func (f ColorFamily) Contains(color string) bool {
	for _, c := range f.Colors {
		if c == color {
			return true
		}
	}
	return false
}

// CountTable weighs how many olives grow on a branch.
var CountTable = RarityTable[int]{
	Entries: []RarityEntry[int]{
		{Key: 1, Weight: 0.33, Rarity: Common},
		{Key: 2, Weight: 0.28, Rarity: Common},
		{Key: 3, Weight: 0.19, Rarity: Uncommon},
		{Key: 4, Weight: 0.12, Rarity: Rare},
		{Key: 5, Weight: 0.08, Rarity: VeryRare},
	},
	Fallback: 1,
}

// TypeTable weighs the olive colour family.
var TypeTable = RarityTable[OliveType]{
	Entries: []RarityEntry[OliveType]{
		{Key: GreenOlives, Weight: 0.30, Rarity: Common, DisplayName: "Green Olives"},
		{Key: BlackOlives, Weight: 0.25, Rarity: Common, DisplayName: "Black Olives"},
		{Key: BrownOlives, Weight: 0.20, Rarity: Uncommon, DisplayName: "Brown Olives"},
		{Key: PurpleOlives, Weight: 0.15, Rarity: Rare, DisplayName: "Purple Olives"},
		{Key: RipeMixed, Weight: 0.10, Rarity: VeryRare, DisplayName: "Mixed Ripe Olives"},
	},
	Fallback: GreenOlives,
}

// OliveColors lists the olive fills for each type.
var OliveColors = map[OliveType]ColorFamily{
	GreenOlives:  {Name: string(GreenOlives), Colors: []string{"#6B8E23", "#808000", "#9ACD32", "#7CFC00", "#ADFF2F"}},
	BlackOlives:  {Name: string(BlackOlives), Colors: []string{"#2F2F2F", "#404040", "#1C1C1C", "#36454F", "#28282B"}},
	BrownOlives:  {Name: string(BrownOlives), Colors: []string{"#8B4513", "#A0522D", "#CD853F", "#D2691E", "#BC9A6A"}},
	PurpleOlives: {Name: string(PurpleOlives), Colors: []string{"#663399", "#4B0082", "#800080", "#9932CC", "#8B008B"}},
	RipeMixed:    {Name: string(RipeMixed), Colors: []string{"#6B8E23", "#2F2F2F", "#663399", "#8B4513"}},
}

// BranchColors are the stem and branch families; one colour is drawn per branch.
var BranchColors = []ColorFamily{
	{Name: "youngBranch", Colors: []string{"#8FBC8F", "#90EE90", "#98FB98", "#7CFC00"}},
	{Name: "matureBranch", Colors: []string{"#556B2F", "#6B8E23", "#808000", "#9ACD32"}},
	{Name: "brownBranch", Colors: []string{"#8B7355", "#A0522D", "#CD853F", "#DEB887"}},
	{Name: "silverBranch", Colors: []string{"#C0C0C0", "#D3D3D3", "#DCDCDC", "#F5F5F5"}},
}

// LeafColors are the leaf families; one colour is drawn per branch.
var LeafColors = []ColorFamily{
	{Name: "freshLeaves", Colors: []string{"#228B22", "#32CD32", "#00FF00", "#7CFC00"}},
	{Name: "matureLeaves", Colors: []string{"#006400", "#228B22", "#2E8B57", "#3CB371"}},
	{Name: "silverLeaves", Colors: []string{"#9ACD32", "#C0C0C0", "#D3D3D3", "#E6E6FA"}},
	{Name: "dryLeaves", Colors: []string{"#6B8E23", "#808000", "#BDB76B", "#F0E68C"}},
}

// InPalette reports whether color belongs to any of the families.
func InPalette(families []ColorFamily, color string) bool {
	for _, f := range families {
		if f.Contains(color) {
			return true
		}
	}
	return false
}

// TypeByDisplayName maps "Green Olives" back to its table key.
func TypeByDisplayName(name string) (OliveType, bool) {
	for _, e := range TypeTable.Entries {
		if e.DisplayName == name {
			return e.Key, true
		}
	}
	return "", false
}
