package olive

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// Source yields uniform values in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// ShuffleMode selects how olive positions are permuted before the first
// OliveCount slots are taken.
type ShuffleMode string

const (
	// ShuffleUniform is a Fisher-Yates shuffle.
	ShuffleUniform ShuffleMode = "uniform"
	// ShuffleComparator sorts with a random comparator. It is biased and
	// exists only to reproduce the legacy front-end output.
	ShuffleComparator ShuffleMode = "comparator"
)

// ParseShuffleMode accepts "uniform", "comparator" or the empty string,
// which means uniform.
func ParseShuffleMode(s string) (ShuffleMode, bool) {
	switch ShuffleMode(s) {
	case ShuffleUniform, "":
		return ShuffleUniform, true
	case ShuffleComparator:
		return ShuffleComparator, true
	}
	return "", false
}

// Generator produces BranchArtifacts from the count and type tables. It is
// safe for concurrent use when its Source is.
type Generator struct {
	src     Source
	now     func() time.Time
	shuffle ShuffleMode
	counts  RarityTable[int]
	types   RarityTable[OliveType]
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used for branch ids.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithShuffle picks the olive placement shuffle. The empty mode is ignored.
func WithShuffle(mode ShuffleMode) Option {
	return func(g *Generator) {
		if mode != "" {
			g.shuffle = mode
		}
	}
}

// WithTables swaps the weight tables, mostly for exercising the fallback path.
func WithTables(counts RarityTable[int], types RarityTable[OliveType]) Option {
	return func(g *Generator) {
		g.counts = counts
		g.types = types
	}
}

// NewGenerator draws every random value from src. Callers sharing a
// Generator across goroutines must pass a source that is safe for that.
func NewGenerator(src Source, opts ...Option) *Generator {
	g := &Generator{
		src:     src,
		now:     time.Now,
		shuffle: ShuffleUniform,
		counts:  CountTable,
		types:   TypeTable,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeeded builds a generator with a deterministic, lock-guarded source.
func NewSeeded(seed uint64, opts ...Option) *Generator {
	src := &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	return NewGenerator(src, opts...)
}

// Default builds a generator over a time-seeded, mutex-guarded source, so
// it can be shared by concurrent handlers.
func Default(opts ...Option) *Generator {
	return NewSeeded(uint64(time.Now().UnixNano()), opts...)
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// Generate produces a new branch. It never fails.
func (g *Generator) Generate() BranchArtifact {
	count := g.counts.Sample(g.src.Float64())
	typ := g.types.Sample(g.src.Float64())

	colors := Colors{
		Olive:  g.pick(OliveColors[typ.Key].Colors),
		Branch: g.pickFamily(BranchColors),
		Leaf:   g.pickFamily(LeafColors),
	}
	olives := g.positions(count.Key)

	return BranchArtifact{
		SVG:        Render(colors, olives),
		Colors:     colors,
		OliveCount: count.Key,
		OliveType:  typ.DisplayName,
		Rarity: RarityInfo{
			Count:           count.Rarity,
			Type:            typ.Rarity,
			CountPercentage: count.Percentage(),
			TypePercentage:  typ.Percentage(),
		},
		ID: float64(g.now().UnixMilli()) + g.src.Float64(),
	}
}

// GenerateN is a convenience for callers that offer several candidates.
func (g *Generator) GenerateN(n int) []BranchArtifact {
	out := make([]BranchArtifact, 0, n)
	for range n {
		out = append(out, g.Generate())
	}
	return out
}

func (g *Generator) index(n int) int {
	i := int(g.src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (g *Generator) pick(colors []string) string {
	if len(colors) == 0 {
		return BackgroundColor
	}
	return colors[g.index(len(colors))]
}

func (g *Generator) pickFamily(families []ColorFamily) string {
	if len(families) == 0 {
		return BackgroundColor
	}
	return g.pick(families[g.index(len(families))].Colors)
}

func (g *Generator) positions(n int) []Point {
	if n < 0 {
		n = 0
	}
	if n > len(OlivePositions) {
		n = len(OlivePositions)
	}
	pts := OlivePositions
	s := pts[:]

	switch g.shuffle {
	case ShuffleComparator:
		sort.Slice(s, func(i, j int) bool {
			return 0.5-g.src.Float64() < 0
		})
	default:
		for i := len(s) - 1; i > 0; i-- {
			j := g.index(i + 1)
			s[i], s[j] = s[j], s[i]
		}
	}

	out := make([]Point, n)
	copy(out, s[:n])
	return out
}
