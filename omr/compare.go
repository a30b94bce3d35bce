package omr

import "fmt"

// Score is the result of comparing an evaluated sheet with a reference.
type Score struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// String formats the score as "correct/total"
func (s Score) String() string {
	return fmt.Sprintf("%d/%d", s.Correct, s.Total)
}

// Compare counts the questions whose rows carry identical marks in both matrices.
//
// Questions are matched in flattened order (set by set, top to bottom). A
// question is correct only when every box matches, so a multi-select answer
// must match exactly.
func Compare(a, b AnswerMatrix) (Score, error) {
	qa, qb := a.Questions(), b.Questions()
	if len(qa) != len(qb) {
		return Score{}, fmt.Errorf("%d questions vs %d: %w", len(qa), len(qb), ErrShapeMismatch)
	}
	if len(qa) == 0 {
		return Score{}, fmt.Errorf("compare: %w", ErrEmptyInput)
	}

	score := Score{Total: len(qa)}
	for i := range qa {
		if len(qa[i]) != len(qb[i]) {
			return Score{}, fmt.Errorf("question %d has %d boxes vs %d: %w", i+1, len(qa[i]), len(qb[i]), ErrShapeMismatch)
		}
		if qa[i].Equal(qb[i]) {
			score.Correct++
		}
	}
	score.Percent = float64(score.Correct) / float64(score.Total) * 100
	return score, nil
}
