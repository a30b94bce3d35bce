package omr

import "errors"

var (
	// ErrEmptyInput is returned when an operation needs at least one point and got none.
	ErrEmptyInput = errors.New("empty input")

	// ErrGridIncomplete is returned when a mandatory grid step finds no bubble at all.
	ErrGridIncomplete = errors.New("grid incomplete")

	// ErrShapeMismatch is returned when two answer matrices cannot be compared.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDegenerateShape is returned for zero spacings and zero-area contours.
	ErrDegenerateShape = errors.New("degenerate shape")

	// ErrInvalidLayout is returned for unusable layout parameters (answers per question, radius).
	ErrInvalidLayout = errors.New("invalid layout")
)
