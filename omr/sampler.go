package omr

import "image"

// FillRatio returns the percentage of black pixels in the square
// [center-radius, center+radius) on both axes, truncated to an integer.
// The square is clipped to the image; a square entirely outside yields 0.
func FillRatio(bin *image.Gray, center Point, radius int) int {
	r := image.Rect(center.X-radius, center.Y-radius, center.X+radius, center.Y+radius).Intersect(bin.Bounds())
	total := r.Dx() * r.Dy()
	if total == 0 {
		return 0
	}

	black := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := bin.PixOffset(r.Min.X, y)
		for _, v := range bin.Pix[off : off+r.Dx()] {
			if v == 0 {
				black++
			}
		}
	}
	return black * 100 / total
}

// Measure samples the fill ratio around every centroid.
func Measure(bin *image.Gray, centroids []Centroid, radius int) []Bubble {
	bubbles := make([]Bubble, len(centroids))
	for i, c := range centroids {
		bubbles[i] = Bubble{Point: c.Point, Ratio: FillRatio(bin, c.Point, radius)}
	}
	return bubbles
}
