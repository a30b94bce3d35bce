package omr

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// FindOrigin returns the bubble closest to the top-left corner of the image.
func FindOrigin(ix *Index) (Bubble, error) {
	b, _, ok := ix.Nearest(orb.Point{0, 0})
	if !ok {
		return Bubble{}, fmt.Errorf("find origin: %w", ErrEmptyInput)
	}
	return b, nil
}

// EstimateSpacing measures the column and row pitch from the origin's direct
// neighbours, then probes past the last column of the first row for a second
// answer set.
//
// The pitches are single measurements, not averages. The set probe starts
// 3 radii beyond where the next column would be and accepts a bubble within
// one column pitch of that target.
func EstimateSpacing(ix *Index, origin Bubble, n int, radius float64) (Spacing, error) {
	var sp Spacing

	right, _, err := FindNext(ix, origin.Point, 2*radius, Right, NoLimit)
	if err != nil {
		return sp, fmt.Errorf("column pitch: %w", gridIncomplete(err))
	}
	sp.Right = Distance(origin.Point, right.Point)

	down, _, err := FindNext(ix, origin.Point, 2*radius, Down, NoLimit)
	if err != nil {
		return sp, fmt.Errorf("row pitch: %w", gridIncomplete(err))
	}
	sp.Down = Distance(origin.Point, down.Point)

	if sp.Right == 0 || sp.Down == 0 {
		return sp, fmt.Errorf("spacing %vx%v: %w", sp.Right, sp.Down, ErrDegenerateShape)
	}

	last := right
	for i := 0; i < n-2; i++ {
		last, _, err = FindNext(ix, last.Point, sp.Right, Right, NoLimit)
		if err != nil {
			return sp, fmt.Errorf("column %d of first row: %w", i+2, gridIncomplete(err))
		}
	}

	next, ok, err := FindNext(ix, last.Point, sp.Right+3*radius, Right, sp.Right)
	if err != nil {
		return sp, err
	}
	if ok {
		sp.Set = Distance(origin.Point, next.Point)
		sp.HasSet = sp.Set > 0
	}

	return sp, nil
}

func gridIncomplete(err error) error {
	if errors.Is(err, ErrEmptyInput) {
		return ErrGridIncomplete
	}
	return err
}
