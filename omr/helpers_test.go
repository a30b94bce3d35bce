package omr

import (
	"image"
	"image/color"
	"image/draw"
)

// ---------------------------------------------------------------------------
// bubble grids
// ---------------------------------------------------------------------------

// gridLayout places bubbles on a regular grid of answer sets.
type gridLayout struct {
	sets, cols, rows int
	origin           Point
	right, down, set int
}

func (g gridLayout) at(s, r, c int) Point {
	return Point{
		X: g.origin.X + s*g.set + c*g.right,
		Y: g.origin.Y + r*g.down,
	}
}

// bubbles returns one bubble per grid position with the ratio chosen by ratio,
// in set, row, column order.
func (g gridLayout) bubbles(ratio func(s, r, c int) int) []Bubble {
	var out []Bubble
	for s := 0; s < g.sets; s++ {
		for r := 0; r < g.rows; r++ {
			for c := 0; c < g.cols; c++ {
				out = append(out, Bubble{Point: g.at(s, r, c), Ratio: ratio(s, r, c)})
			}
		}
	}
	return out
}

// emptyMatrix returns a matrix of the layout's shape with every box empty
func (g gridLayout) emptyMatrix() AnswerMatrix {
	m := make(AnswerMatrix, g.sets)
	for s := range m {
		m[s] = make(AnswerSet, g.rows)
		for r := range m[s] {
			m[s][r] = make(Row, g.cols)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// synthetic sheet photos
// ---------------------------------------------------------------------------

// Sheet geometry: 40px boxes with a 2px outline, 60px apart, the first box
// at (20,20) and the next answer set 320px to the right of the previous one.
const (
	sheetMargin  = 20
	sheetBox     = 40
	sheetOutline = 2
	sheetPitch   = 60
	sheetSet     = 320
)

// sheetConfig is the pipeline tuned for drawSheet images
func sheetConfig() *Config {
	cfg := DefaultConfig()
	cfg.Pipeline.BlurRadius = 0
	return cfg
}

// drawSheet renders an answer matrix as a black on white sheet. Checked boxes
// get a 20x20 square in their middle, corrected boxes are filled completely.
func drawSheet(m AnswerMatrix) *image.Gray {
	rows, cols := 0, 0
	for _, set := range m {
		rows = max(rows, len(set))
		for _, row := range set {
			cols = max(cols, len(row))
		}
	}

	w := 2*sheetMargin + (len(m)-1)*sheetSet + (cols-1)*sheetPitch + sheetBox
	h := 2*sheetMargin + (rows-1)*sheetPitch + sheetBox
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	black := image.NewUniform(color.Gray{})
	fill := func(x0, y0, x1, y1 int) {
		draw.Draw(img, image.Rect(x0, y0, x1, y1), black, image.Point{}, draw.Src)
	}

	for s, set := range m {
		for r, row := range set {
			for c, mark := range row {
				x := sheetMargin + s*sheetSet + c*sheetPitch
				y := sheetMargin + r*sheetPitch

				fill(x, y, x+sheetBox, y+sheetOutline)
				fill(x, y+sheetBox-sheetOutline, x+sheetBox, y+sheetBox)
				fill(x, y, x+sheetOutline, y+sheetBox)
				fill(x+sheetBox-sheetOutline, y, x+sheetBox, y+sheetBox)

				switch mark {
				case MarkChecked:
					fill(x+10, y+10, x+30, y+30)
				case MarkCorrected:
					fill(x, y, x+sheetBox, y+sheetBox)
				}
			}
		}
	}
	return img
}

// sheetMatrix is the two-set, four-answer, three-question sheet used by the pipeline tests
func sheetMatrix() AnswerMatrix {
	return AnswerMatrix{
		{
			{MarkChecked, MarkEmpty, MarkEmpty, MarkEmpty},
			{MarkEmpty, MarkEmpty, MarkCorrected, MarkChecked},
			{MarkEmpty, MarkEmpty, MarkEmpty, MarkEmpty},
		},
		{
			{MarkEmpty, MarkChecked, MarkEmpty, MarkEmpty},
			{MarkEmpty, MarkEmpty, MarkEmpty, MarkEmpty},
			{MarkCorrected, MarkEmpty, MarkEmpty, MarkChecked},
		},
	}
}
