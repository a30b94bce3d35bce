package omr

import "fmt"

// Thresholds holds the fill ratios (percent of dark pixels) at which a box
// counts as checked or corrected.
type Thresholds struct {
	Checked   int `yaml:"checked" json:"checked"`
	Corrected int `yaml:"corrected" json:"corrected"`
}

// DefaultThresholds returns the thresholds used for pencil-marked sheets
func DefaultThresholds() Thresholds {
	return Thresholds{Checked: 20, Corrected: 50}
}

// Validate rejects thresholds outside [0,100] and a corrected threshold below the checked one.
func (t Thresholds) Validate() error {
	if t.Checked < 0 || t.Checked > 100 {
		return fmt.Errorf("checked threshold %d out of range [0,100]", t.Checked)
	}
	if t.Corrected < 0 || t.Corrected > 100 {
		return fmt.Errorf("corrected threshold %d out of range [0,100]", t.Corrected)
	}
	if t.Corrected < t.Checked {
		return fmt.Errorf("corrected threshold %d below checked threshold %d", t.Corrected, t.Checked)
	}
	return nil
}

// Classify maps a fill ratio to a mark. The corrected threshold is tested first,
// so a higher ratio never yields a lower mark.
func (t Thresholds) Classify(ratio int) Mark {
	switch {
	case ratio >= t.Corrected:
		return MarkCorrected
	case ratio >= t.Checked:
		return MarkChecked
	default:
		return MarkEmpty
	}
}
