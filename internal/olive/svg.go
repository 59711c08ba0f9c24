package olive

import (
	"fmt"
	"strings"
)

// Point is a canvas coordinate in the 70x70 view box.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// OlivePositions are the candidate olive slots on the branch skeleton.
var OlivePositions = [5]Point{
	{X: 20, Y: 32}, {X: 40, Y: 42}, {X: 26, Y: 49},
	{X: 48, Y: 35}, {X: 22, Y: 45},
}

type rect struct {
	x, y, w, h int
}

var (
	stemRect    = rect{33, 20, 4, 30}
	branchRects = [3]rect{{24, 27, 12, 4}, {34, 37, 12, 4}, {24, 44, 12, 4}}
	leafRects   = [6]rect{
		{18, 25, 8, 4}, {20, 29, 8, 4}, {42, 35, 8, 4},
		{44, 39, 8, 4}, {18, 42, 8, 4}, {20, 46, 8, 4},
	}
)

const oliveSize = 4

// Render draws the branch skeleton in the given colours with one 4x4 olive
// per position.
func Render(c Colors, olives []Point) string {
	var b strings.Builder
	b.WriteString(`<svg width="100%" height="100%" viewBox="0 0 70 70" fill="none" xmlns="http://www.w3.org/2000/svg">` + "\n")
	fmt.Fprintf(&b, `<rect width="70" height="70" fill="%s"/>`+"\n", BackgroundColor)

	b.WriteString("<!-- Main Stem -->\n")
	writeRect(&b, stemRect, c.Branch)
	b.WriteString("<!-- Branches -->\n")
	for _, r := range branchRects {
		writeRect(&b, r, c.Branch)
	}
	b.WriteString("<!-- Leaves -->\n")
	for _, r := range leafRects {
		writeRect(&b, r, c.Leaf)
	}
	b.WriteString("<!-- Olives -->\n")
	for _, p := range olives {
		writeRect(&b, rect{p.X, p.Y, oliveSize, oliveSize}, c.Olive)
	}
	b.WriteString("</svg>")
	return b.String()
}

func writeRect(b *strings.Builder, r rect, fill string) {
	fmt.Fprintf(b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`+"\n", r.x, r.y, r.w, r.h, fill)
}

// SkeletonRects is the number of rectangles drawn regardless of olive count:
// background, stem, branches and leaves.
const SkeletonRects = 1 + 1 + len(branchRects) + len(leafRects)
