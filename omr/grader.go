package omr

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

// Result is one graded sheet.
type Result struct {
	ID       string       `json:"id"`
	Source   string       `json:"source,omitempty"` // file, URL or station the sheet came from
	GradedAt time.Time    `json:"gradedAt"`
	Answers  AnswerMatrix `json:"answers"`
	// Selected lists the checked box indexes per question in question order.
	Selected [][]int    `json:"selected"`
	Spacing  Spacing    `json:"spacing"`
	Radius   int        `json:"radius"`
	Boxes    int        `json:"boxes"` // boxes left after duplicate removal
	Origin   Bubble     `json:"origin"`
	Bubbles  [][]Bubble `json:"bubbles"`
	Score    *Score     `json:"score,omitempty"`

	// Image is the sheet photo, kept for overlay rendering.
	Image image.Image `json:"-"`
}

// Grade compares the result with an answer key and records the score.
func (r *Result) Grade(key AnswerMatrix) (Score, error) {
	score, err := Compare(r.Answers, key)
	if err != nil {
		return Score{}, err
	}
	r.Score = &score
	return score, nil
}

// Grader runs the full pipeline from a sheet photo to a graded result.
type Grader struct {
	cfg *Config
}

// NewGrader creates a grader. A nil config selects DefaultConfig.
func NewGrader(cfg *Config) *Grader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Grader{cfg: cfg}
}

// Config returns the configuration the grader was created with
func (g *Grader) Config() *Config {
	return g.cfg
}

// GradeImage finds the answer boxes on a sheet photo and evaluates them.
// n is the number of boxes per question.
func (g *Grader) GradeImage(img image.Image, n int) (*Result, error) {
	p := g.cfg.Pipeline

	bin := Binarize(img, p)
	boxes := FindBoxes(FindShapes(bin), p)
	centroids := Centroids(boxes)
	if len(centroids) == 0 {
		return nil, fmt.Errorf("no answer boxes found: %w", ErrEmptyInput)
	}

	avg, err := AverageRadius(centroids)
	if err != nil {
		return nil, err
	}
	radius := int(avg)
	if radius <= 0 {
		return nil, fmt.Errorf("box radius %.2f: %w", avg, ErrDegenerateShape)
	}

	centroids = Dedupe(centroids, float64(radius), p.DedupOrder)
	bubbles := Measure(bin, centroids, radius)

	ev, err := Walk(bubbles, n, float64(radius), g.cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("evaluating %d boxes: %w", len(bubbles), err)
	}

	questions := ev.Matrix.Questions()
	selected := make([][]int, len(questions))
	for i, q := range questions {
		selected[i] = q.Selected()
	}

	return &Result{
		ID:       uuid.NewString(),
		GradedAt: time.Now(),
		Answers:  ev.Matrix,
		Selected: selected,
		Spacing:  ev.Spacing,
		Radius:   radius,
		Boxes:    len(centroids),
		Origin:   ev.Origin,
		Bubbles:  ev.Rows,
		Image:    img,
	}, nil
}
