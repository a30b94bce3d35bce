package omr

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Index answers nearest-bubble queries over a fixed set of bubbles.
//
// Sheets carry tens to a few hundred bubbles, so every query is a linear scan.
// When two bubbles are equally close the one that comes first in the input wins.
type Index struct {
	bubbles []Bubble
}

// NewIndex creates an index over a copy of the given bubbles
func NewIndex(bubbles []Bubble) *Index {
	b := make([]Bubble, len(bubbles))
	copy(b, bubbles)
	return &Index{bubbles: b}
}

// Len returns the number of indexed bubbles
func (ix *Index) Len() int {
	return len(ix.bubbles)
}

// Bubbles returns a copy of the indexed bubbles in input order
func (ix *Index) Bubbles() []Bubble {
	out := make([]Bubble, len(ix.bubbles))
	copy(out, ix.bubbles)
	return out
}

// Nearest returns the bubble closest to q and its distance.
// ok is false when the index is empty.
func (ix *Index) Nearest(q orb.Point) (b Bubble, dist float64, ok bool) {
	return ix.nearest(q, nil)
}

// NearestExcept is like Nearest but ignores bubbles located exactly at skip.
func (ix *Index) NearestExcept(q orb.Point, skip Point) (b Bubble, dist float64, ok bool) {
	return ix.nearest(q, &skip)
}

func (ix *Index) nearest(q orb.Point, skip *Point) (Bubble, float64, bool) {
	var best Bubble
	bestDist := 0.0
	found := false

	for _, b := range ix.bubbles {
		if skip != nil && b.Point == *skip {
			continue
		}
		d := planar.Distance(b.orb(), q)
		// strict comparison keeps the first of equally distant bubbles
		if !found || d < bestDist {
			best, bestDist, found = b, d, true
		}
	}

	return best, bestDist, found
}
