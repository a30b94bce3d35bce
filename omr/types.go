package omr

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is an integer pixel coordinate. (0,0) is the top-left of the image.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) orb() orb.Point {
	return orb.Point{float64(p.X), float64(p.Y)}
}

// Distance returns the Euclidean distance between two points
func Distance(p, q Point) float64 {
	return planar.Distance(p.orb(), q.orb())
}

// Centroid is the center of a detected box together with the shape it was computed from.
// The shape is only needed for the radius estimate.
type Centroid struct {
	Point
	Shape *Shape `json:"-"`
}

// Bubble is a centroid with its measured fill ratio (percent of dark pixels, 0-100).
type Bubble struct {
	Point
	Ratio int `json:"ratio"`
}

// Mark is the classified state of a single answer box.
// The numeric order is meaningful: empty < checked < corrected.
type Mark int

const (
	MarkEmpty Mark = iota
	MarkChecked
	MarkCorrected
)

var markNames = [...]string{"empty", "checked", "corrected"}

func (m Mark) String() string {
	if m < MarkEmpty || m > MarkCorrected {
		return fmt.Sprintf("Mark(%d)", int(m))
	}
	return markNames[m]
}

// MarshalText encodes the mark by name so stored results stay readable
func (m Mark) MarshalText() ([]byte, error) {
	if m < MarkEmpty || m > MarkCorrected {
		return nil, fmt.Errorf("invalid mark %d", int(m))
	}
	return []byte(markNames[m]), nil
}

// UnmarshalText parses a mark name
func (m *Mark) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range markNames {
		if s == name {
			*m = Mark(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mark %q", s)
}

// Row holds the marks of one question, one per answer box from left to right.
type Row []Mark

// Selected returns the indexes of the boxes that are checked. Corrected boxes
// count as withdrawn answers and are not included.
func (r Row) Selected() []int {
	selected := []int{}
	for i, m := range r {
		if m == MarkChecked {
			selected = append(selected, i)
		}
	}
	return selected
}

// Equal reports whether two rows carry the same marks
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// AnswerSet is one block of questions, rows ordered top to bottom.
type AnswerSet []Row

// AnswerMatrix is the full evaluation of a sheet: answer sets from left to right.
type AnswerMatrix []AnswerSet

// Questions flattens the matrix into question order (set by set, top to bottom).
func (m AnswerMatrix) Questions() []Row {
	var rows []Row
	for _, set := range m {
		rows = append(rows, set...)
	}
	return rows
}

// QuestionCount returns the total number of rows across all sets
func (m AnswerMatrix) QuestionCount() int {
	total := 0
	for _, set := range m {
		total += len(set)
	}
	return total
}

// Direction of a grid step.
type Direction int

const (
	Right Direction = iota // +x
	Down                   // +y
)

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Down:
		return "down"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Spacing holds the grid pitches inferred from the bubble positions.
type Spacing struct {
	Right  float64 `json:"right"`  // distance between horizontally adjacent bubbles
	Down   float64 `json:"down"`   // distance between vertically adjacent bubbles
	Set    float64 `json:"set"`    // distance between the origins of adjacent answer sets
	HasSet bool    `json:"hasSet"` // false for single-set layouts
}

// PipelineConfig tunes the image stages that turn a photo into measured bubbles.
type PipelineConfig struct {
	Threshold      uint8      `yaml:"threshold" json:"threshold"`           // gray level at or above which a pixel turns white
	BlurRadius     float64    `yaml:"blurRadius" json:"blurRadius"`         // Gaussian blur radius, 0 disables
	MinBoxArea     float64    `yaml:"minBoxArea" json:"minBoxArea"`         // smallest contour area accepted as a box
	MinCircularity float64    `yaml:"minCircularity" json:"minCircularity"` // exclusive
	MaxCircularity float64    `yaml:"maxCircularity" json:"maxCircularity"` // exclusive
	DedupOrder     DedupOrder `yaml:"dedupOrder,omitempty" json:"dedupOrder,omitempty"`
}

// OverlayConfig controls the rendered evaluation images.
type OverlayConfig struct {
	CheckedColor   string  `yaml:"checkedColor" json:"checkedColor"`
	CorrectedColor string  `yaml:"correctedColor" json:"correctedColor"`
	Thickness      int     `yaml:"thickness" json:"thickness"`                       // circle outline width in pixels
	Resolution     float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"` // grid PNG DPI, 0 maps one sheet pixel to one output pixel
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// StationConfig describes a scanning station publishing sheet photos over MQTT.
type StationConfig struct {
	ID      string `yaml:"id" json:"id"`
	Topic   string `yaml:"topic" json:"topic"`
	Answers int    `yaml:"answers,omitempty" json:"answers,omitempty"` // overrides Config.Answers
	Key     string `yaml:"key,omitempty" json:"key,omitempty"`         // path to a stored answer key
}

// Config is the unified configuration file
type Config struct {
	Answers    int             `yaml:"answers" json:"answers"` // boxes per question
	Thresholds Thresholds      `yaml:"thresholds" json:"thresholds"`
	Pipeline   PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Overlay    OverlayConfig   `yaml:"overlay" json:"overlay"`
	MQTT       MQTTConfig      `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Stations   []StationConfig `yaml:"stations,omitempty" json:"stations,omitempty"`
	History    int             `yaml:"history,omitempty" json:"history,omitempty"` // results kept in memory by the service
}

// AnswersFor returns the number of boxes per question for a station
func (c *Config) AnswersFor(stationID string) int {
	for _, s := range c.Stations {
		if s.ID == stationID && s.Answers > 0 {
			return s.Answers
		}
	}
	return c.Answers
}
