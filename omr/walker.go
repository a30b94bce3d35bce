package omr

import (
	"fmt"
	"math"
)

// NoLimit disables the distance bound of FindNext.
var NoLimit = math.Inf(1)

// FindNext looks for the bubble nearest to cur shifted by dist in direction dir.
// The bubble sitting exactly at cur is never returned.
//
// With a finite maxDist a candidate further than maxDist from the shifted
// target is reported as not found (ok=false, nil error); that is how the walker
// detects the end of a row, a set or the grid. With NoLimit the nearest
// candidate is always accepted and an index without candidates is an error.
func FindNext(ix *Index, cur Point, dist float64, dir Direction, maxDist float64) (Bubble, bool, error) {
	target := cur.orb()
	switch dir {
	case Right:
		target[0] += dist
	case Down:
		target[1] += dist
	default:
		return Bubble{}, false, fmt.Errorf("unknown direction %v", dir)
	}

	b, d, ok := ix.NearestExcept(target, cur)
	if !ok {
		if math.IsInf(maxDist, 1) {
			return Bubble{}, false, fmt.Errorf("step %v from (%d,%d): %w", dir, cur.X, cur.Y, ErrEmptyInput)
		}
		return Bubble{}, false, nil
	}
	if d > maxDist {
		return Bubble{}, false, nil
	}
	return b, true, nil
}

// Evaluation is the outcome of a grid walk.
type Evaluation struct {
	Matrix  AnswerMatrix `json:"matrix"`
	Spacing Spacing      `json:"spacing"`
	Origin  Bubble       `json:"origin"`
	// Rows holds the visited bubbles per question, in question order.
	Rows [][]Bubble `json:"rows"`
}

// Evaluate infers the grid from the measured bubbles and returns the classified answers.
// n is the number of answer boxes per question and radius the sampling radius.
func Evaluate(bubbles []Bubble, n int, radius float64, th Thresholds) (AnswerMatrix, error) {
	ev, err := Walk(bubbles, n, radius, th)
	if err != nil {
		return nil, err
	}
	return ev.Matrix, nil
}

// Walk estimates the grid spacing from the bubble closest to the image origin and
// walks the grid set by set, row by row. Bubbles that cannot be reached by
// bounded steps are left out of the result.
func Walk(bubbles []Bubble, n int, radius float64, th Thresholds) (*Evaluation, error) {
	if n < 2 {
		return nil, fmt.Errorf("%d answers per question: %w", n, ErrInvalidLayout)
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("radius %v: %w", radius, ErrInvalidLayout)
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	ix := NewIndex(bubbles)
	origin, err := FindOrigin(ix)
	if err != nil {
		return nil, err
	}
	spacing, err := EstimateSpacing(ix, origin, n, radius)
	if err != nil {
		return nil, err
	}

	w := &walker{ix: ix, n: n, radius: radius, spacing: spacing, th: th, budget: ix.Len()}
	ev := &Evaluation{Spacing: spacing, Origin: origin}

	setStart := origin
	for {
		set, rows, err := w.evalSet(setStart)
		if err != nil {
			return nil, err
		}
		ev.Matrix = append(ev.Matrix, set)
		ev.Rows = append(ev.Rows, rows...)

		if !spacing.HasSet {
			break
		}
		next, ok, err := FindNext(ix, setStart.Point, spacing.Set, Right, radius)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := w.spend(); err != nil {
			return nil, err
		}
		setStart = next
	}

	return ev, nil
}

type walker struct {
	ix      *Index
	n       int
	radius  float64
	spacing Spacing
	th      Thresholds
	budget  int
}

// spend guards against walks that revisit bubbles forever on degenerate spacings.
// A well-formed grid never takes more steps than there are bubbles.
func (w *walker) spend() error {
	w.budget--
	if w.budget < 0 {
		return fmt.Errorf("walk exceeded %d steps (spacing %+v): %w", w.ix.Len(), w.spacing, ErrDegenerateShape)
	}
	return nil
}

func (w *walker) evalRow(start Bubble) (Row, []Bubble, error) {
	row := make(Row, 0, w.n)
	visited := make([]Bubble, 0, w.n)

	cur := start
	row = append(row, w.th.Classify(cur.Ratio))
	visited = append(visited, cur)

	for i := 1; i < w.n; i++ {
		next, _, err := FindNext(w.ix, cur.Point, w.spacing.Right, Right, NoLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("row at (%d,%d), column %d: %w", start.X, start.Y, i, ErrGridIncomplete)
		}
		cur = next
		row = append(row, w.th.Classify(cur.Ratio))
		visited = append(visited, cur)
	}

	return row, visited, nil
}

func (w *walker) evalSet(start Bubble) (AnswerSet, [][]Bubble, error) {
	var set AnswerSet
	var rows [][]Bubble

	rowStart := start
	for {
		row, visited, err := w.evalRow(rowStart)
		if err != nil {
			return nil, nil, err
		}
		set = append(set, row)
		rows = append(rows, visited)

		next, ok, err := FindNext(w.ix, rowStart.Point, w.spacing.Down, Down, w.spacing.Right/2)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return set, rows, nil
		}
		if err := w.spend(); err != nil {
			return nil, nil, err
		}
		rowStart = next
	}
}
