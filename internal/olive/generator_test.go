package olive

import (
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

type seqSource struct {
	vals []float64
	i    int
}

func (s *seqSource) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestTables_WeightsSumToOne(t *testing.T) {
	assert.NoError(t, CountTable.Validate())
	assert.NoError(t, TypeTable.Validate())
	assert.InDelta(t, 1.0, CountTable.Sum(), 1e-9)
	assert.InDelta(t, 1.0, TypeTable.Sum(), 1e-9)
}

func TestTables_EveryTypeHasColours(t *testing.T) {
	for _, e := range TypeTable.Entries {
		fam, ok := OliveColors[e.Key]
		require.True(t, ok, "missing colours for %s", e.Key)
		assert.GreaterOrEqual(t, len(fam.Colors), 4)
		assert.LessOrEqual(t, len(fam.Colors), 5)
		assert.NotEmpty(t, e.DisplayName)
	}
}

func TestGenerate_SourceAtZero(t *testing.T) {
	g := NewGenerator(fixedSource(0), WithClock(fixedNow))
	b := g.Generate()

	assert.Equal(t, 1, b.OliveCount)
	assert.Equal(t, "Green Olives", b.OliveType)
	assert.Equal(t, RarityInfo{Count: Common, Type: Common, CountPercentage: 33, TypePercentage: 30}, b.Rarity)
	assert.Equal(t, Colors{Olive: "#6B8E23", Branch: "#8FBC8F", Leaf: "#228B22"}, b.Colors)

	// Fisher-Yates with j=0 every step rotates slot 1 to the front.
	assert.Contains(t, b.SVG, `<rect x="40" y="42" width="4" height="4" fill="#6B8E23"/>`)
	assert.Equal(t, float64(fixedNow().UnixMilli()), b.ID)
}

func TestGenerate_SourceNearOne(t *testing.T) {
	g := NewGenerator(fixedSource(0.999999), WithClock(fixedNow))
	b := g.Generate()

	assert.Equal(t, 5, b.OliveCount)
	assert.Equal(t, "Mixed Ripe Olives", b.OliveType)
	assert.Equal(t, VeryRare, b.Rarity.Count)
	assert.Equal(t, VeryRare, b.Rarity.Type)
	assert.Equal(t, 8, b.Rarity.CountPercentage)
	assert.Equal(t, 10, b.Rarity.TypePercentage)
	assert.Equal(t, Colors{Olive: "#8B4513", Branch: "#F5F5F5", Leaf: "#F0E68C"}, b.Colors)
	for _, p := range OlivePositions {
		assert.Contains(t, b.SVG, `x="`+strconv.Itoa(p.X)+`" y="`+strconv.Itoa(p.Y)+`" width="4" height="4"`)
	}
}

func TestSample_FallbackWhenCumulativeFallsShort(t *testing.T) {
	short := RarityTable[int]{
		Entries: []RarityEntry[int]{
			{Key: 7, Weight: 0.5, Rarity: Common},
			{Key: 9, Weight: 0.4, Rarity: Rare},
		},
		Fallback: 7,
	}
	assert.Equal(t, 7, short.Sample(0.95).Key)
	assert.Equal(t, 9, short.Sample(0.6).Key)
	assert.True(t, errors.Is(short.Validate(), ErrWeightSum))

	past := math.Nextafter(CountTable.Sum(), 2)
	assert.Equal(t, 1, CountTable.Sample(past).Key)
	assert.Equal(t, GreenOlives, TypeTable.Sample(math.Nextafter(TypeTable.Sum(), 2)).Key)
}

func TestSample_BoundaryBelongsToEarlierEntry(t *testing.T) {
	assert.Equal(t, 1, CountTable.Sample(0.33).Key)
	assert.Equal(t, 2, CountTable.Sample(0.3300001).Key)
}

func TestGenerate_FallbackThroughGenerator(t *testing.T) {
	counts := RarityTable[int]{
		Entries:  []RarityEntry[int]{{Key: 2, Weight: 0.5, Rarity: Common}, {Key: 4, Weight: 0.3, Rarity: Rare}},
		Fallback: 4,
	}
	types := RarityTable[OliveType]{
		Entries:  []RarityEntry[OliveType]{{Key: BlackOlives, Weight: 0.5, Rarity: Common, DisplayName: "Black Olives"}},
		Fallback: PurpleOlives,
	}
	types.Entries = append(types.Entries, RarityEntry[OliveType]{Key: PurpleOlives, Weight: 0.1, Rarity: Rare, DisplayName: "Purple Olives"})

	g := NewGenerator(fixedSource(0.99), WithTables(counts, types), WithClock(fixedNow))
	b := g.Generate()
	assert.Equal(t, 4, b.OliveCount)
	assert.Equal(t, "Purple Olives", b.OliveType)
	assert.Equal(t, 30, b.Rarity.CountPercentage)
	assert.Equal(t, 10, b.Rarity.TypePercentage)
}

func TestGenerate_Distribution(t *testing.T) {
	const trials = 100_000
	g := NewSeeded(42)

	counts := map[int]int{}
	types := map[string]int{}
	for range trials {
		b := g.Generate()
		counts[b.OliveCount]++
		types[b.OliveType]++
	}

	for _, e := range CountTable.Entries {
		got := float64(counts[e.Key]) / trials
		assert.InDelta(t, e.Weight, got, 0.015, "count %d", e.Key)
	}
	for _, e := range TypeTable.Entries {
		got := float64(types[e.DisplayName]) / trials
		assert.InDelta(t, e.Weight, got, 0.015, "type %s", e.Key)
	}
}

func TestGenerate_StructuralValidity(t *testing.T) {
	for _, mode := range []ShuffleMode{ShuffleUniform, ShuffleComparator} {
		g := NewSeeded(7, WithShuffle(mode))
		for range 2_000 {
			b := g.Generate()

			require.GreaterOrEqual(t, b.OliveCount, 1)
			require.LessOrEqual(t, b.OliveCount, 5)

			key, ok := TypeByDisplayName(b.OliveType)
			require.True(t, ok, "unknown olive type %q", b.OliveType)
			assert.True(t, OliveColors[key].Contains(b.Colors.Olive))
			assert.True(t, InPalette(BranchColors, b.Colors.Branch))
			assert.True(t, InPalette(LeafColors, b.Colors.Leaf))

			countEntry, _ := CountTable.Lookup(b.OliveCount)
			typeEntry, _ := TypeTable.Lookup(key)
			assert.Equal(t, countEntry.Percentage(), b.Rarity.CountPercentage)
			assert.Equal(t, typeEntry.Percentage(), b.Rarity.TypePercentage)
			assert.Equal(t, countEntry.Rarity, b.Rarity.Count)
			assert.Equal(t, typeEntry.Rarity, b.Rarity.Type)

			rects, olives := countRects(t, b.SVG, b.Colors.Olive)
			assert.Equal(t, SkeletonRects+b.OliveCount, rects)
			assert.Equal(t, b.OliveCount, olives)
		}
	}
}

func TestGenerate_OlivePositionsAreDistinct(t *testing.T) {
	g := NewSeeded(99, WithShuffle(ShuffleComparator))
	for range 500 {
		pts := g.positions(5)
		seen := map[Point]bool{}
		for _, p := range pts {
			assert.False(t, seen[p], "duplicate position %v", p)
			seen[p] = true
		}
		assert.Len(t, seen, 5)
	}
}

func TestGenerate_IndependentCalls(t *testing.T) {
	g := NewSeeded(1)
	a := g.Generate()
	aCopy := a
	b := g.Generate()

	assert.Equal(t, aCopy, a)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, [5]Point{{20, 32}, {40, 42}, {26, 49}, {48, 35}, {22, 45}}, OlivePositions)
}

func TestGenerateN(t *testing.T) {
	assert.Len(t, NewSeeded(3).GenerateN(3), 3)
	assert.Empty(t, NewSeeded(3).GenerateN(0))
}

func TestSeqSourceDrivesDrawOrder(t *testing.T) {
	// count, type, olive colour, branch family, branch colour, leaf family,
	// leaf colour, then four shuffle draws and the id fraction.
	src := &seqSource{vals: []float64{0.5, 0.6, 0.5, 0.1, 0.3, 0.3, 0.6, 0, 0, 0, 0, 0.25}}
	b := NewGenerator(src, WithClock(fixedNow)).Generate()
	assert.Equal(t, 2, b.OliveCount)
	assert.Equal(t, "Brown Olives", b.OliveType)
	assert.Equal(t, "#CD853F", b.Colors.Olive)
	assert.Equal(t, "#90EE90", b.Colors.Branch)
	assert.Equal(t, "#2E8B57", b.Colors.Leaf)
	assert.Equal(t, float64(fixedNow().UnixMilli())+0.25, b.ID)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "234567", BranchArtifact{ID: 1_701_234_567.42}.ShortID())
	assert.Equal(t, "000042", BranchArtifact{ID: 42.9}.ShortID())
}

func TestOverallRarity(t *testing.T) {
	assert.Equal(t, Rare, Overall(Common, Rare))
	assert.Equal(t, VeryRare, Overall(VeryRare, Uncommon))
	assert.Equal(t, Common, RarityInfo{Count: Common, Type: Common}.Overall())
	assert.Equal(t, 0, Rarity("Legendary").Rank())
}

func countRects(t *testing.T, svg, olive string) (total, olives int) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(svg))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "svg":
			sawRoot = true
		case "rect":
			total++
			attrs := map[string]string{}
			for _, a := range se.Attr {
				attrs[a.Name.Local] = a.Value
			}
			if attrs["width"] == "4" && attrs["height"] == "4" {
				assert.Equal(t, olive, attrs["fill"])
				olives++
			}
		}
	}
	require.True(t, sawRoot, "missing <svg> root")
	return total, olives
}

func TestDefault_UsesLockedSourceSafeForConcurrentUse(t *testing.T) {
	g := Default(WithShuffle(ShuffleComparator))
	_, ok := g.src.(*lockedSource)
	require.True(t, ok, "Default source is %T", g.src)
	assert.Equal(t, ShuffleComparator, g.shuffle)

	var wg sync.WaitGroup
	out := make([]BranchArtifact, 16)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = g.Generate()
		}(i)
	}
	wg.Wait()
	for _, b := range out {
		assert.GreaterOrEqual(t, b.OliveCount, 1)
		assert.LessOrEqual(t, b.OliveCount, 5)
	}
}
