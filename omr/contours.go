package omr

import (
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Shape is the traced outer boundary of one connected dark region.
type Shape struct {
	Ring      orb.Ring  // closed, pixel coordinates
	Area      float64   // polygon area of Ring
	Perimeter float64   // length of Ring
	Bound     orb.Bound // pixel bounding box (inclusive)
	Pixels    int       // number of dark pixels in the region
}

// Circularity returns 4πA/P², 1 for a perfect circle and about 0.785 for a square.
func (s *Shape) Circularity() float64 {
	return Circularity(s.Area, s.Perimeter)
}

// Circularity of a closed curve. A zero perimeter yields 0 instead of dividing by it.
func Circularity(area, perimeter float64) float64 {
	if perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// simplifyTolerance removes single-pixel stair steps from traced boundaries.
const simplifyTolerance = 0.5

// FindShapes labels the 8-connected dark regions (value 0) of a binary image
// and traces the outer boundary of each. Shapes are returned in raster order of
// their top-left pixel.
func FindShapes(bin *image.Gray) []*Shape {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	dark := func(x, y int) bool {
		return bin.Pix[y*bin.Stride+x] == 0
	}

	labels := make([]int, w*h)
	var shapes []*Shape
	label := 0
	stack := make([]int, 0, 256)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y*w+x] != 0 || !dark(x, y) {
				continue
			}
			label++

			// flood fill the region
			pixels := 0
			stack = append(stack[:0], y*w+x)
			labels[y*w+x] = label
			for len(stack) > 0 {
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels++
				px, py := idx%w, idx/w
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := px+dx, py+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if labels[n] == 0 && dark(nx, ny) {
							labels[n] = label
							stack = append(stack, n)
						}
					}
				}
			}

			ring := traceBoundary(labels, w, h, label, x, y, pixels)
			for i := range ring {
				ring[i][0] += float64(b.Min.X)
				ring[i][1] += float64(b.Min.Y)
			}
			shapes = append(shapes, newShape(ring, pixels))
		}
	}

	return shapes
}

func newShape(ring orb.Ring, pixels int) *Shape {
	if len(ring) > 4 {
		if s, ok := simplify.DouglasPeucker(simplifyTolerance).Simplify(ring.Clone()).(orb.Ring); ok && len(s) >= 4 {
			ring = s
		}
	}
	return &Shape{
		Ring:      ring,
		Area:      math.Abs(planar.Area(ring)),
		Perimeter: planar.Length(ring),
		Bound:     ring.Bound(),
		Pixels:    pixels,
	}
}

// clockwise with y pointing down: E, SE, S, SW, W, NW, N, NE
var (
	mooreDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	mooreDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

func mooreIndex(dx, dy int) int {
	for i := range 8 {
		if mooreDX[i] == dx && mooreDY[i] == dy {
			return i
		}
	}
	return 0
}

// traceBoundary follows the outer boundary of a labelled region clockwise with
// Moore-neighbour tracing, starting at its first pixel in raster order (sx,sy).
// Collinear points are dropped as they are found. The returned ring is closed.
func traceBoundary(labels []int, w, h, label, sx, sy, pixels int) orb.Ring {
	inside := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	ring := make(orb.Ring, 0, 64)
	add := func(x, y int) {
		p := orb.Point{float64(x), float64(y)}
		if n := len(ring); n >= 2 && straight(ring[n-2], ring[n-1], p) {
			ring = ring[:n-1]
		}
		ring = append(ring, p)
	}

	// step finds the next boundary pixel clockwise from the backtrack pixel.
	step := func(cx, cy, bx, by int) (nx, ny, nbx, nby int, ok bool) {
		start := mooreIndex(bx-cx, by-cy)
		px, py := bx, by
		for k := 1; k <= 8; k++ {
			i := (start + k) % 8
			tx, ty := cx+mooreDX[i], cy+mooreDY[i]
			if inside(tx, ty) {
				return tx, ty, px, py, true
			}
			px, py = tx, ty
		}
		return 0, 0, 0, 0, false
	}

	add(sx, sy)
	// the pixel west of the first raster pixel is never part of the region
	fx, fy, bx, by, ok := step(sx, sy, sx-1, sy)
	if !ok {
		return orb.Ring{{float64(sx), float64(sy)}, {float64(sx), float64(sy)}}
	}

	cx, cy := fx, fy
	maxSteps := 4*pixels + 8
	for steps := 0; steps < maxSteps; steps++ {
		add(cx, cy)
		nx, ny, nbx, nby, _ := step(cx, cy, bx, by)
		// stop once the first move is about to repeat
		if cx == sx && cy == sy && nx == fx && ny == fy {
			break
		}
		cx, cy, bx, by = nx, ny, nbx, nby
	}

	// the last point added is the start pixel again; fix up collinearity across the seam
	if n := len(ring); n > 1 && ring[n-1] == ring[0] {
		ring = ring[:n-1]
	}
	if n := len(ring); n >= 3 {
		if straight(ring[n-1], ring[0], ring[1]) {
			ring = ring[1:]
		}
	}
	return append(ring, ring[0])
}

// straight reports whether b lies on the way from a to c. Spikes that turn back
// on themselves are kept.
func straight(a, b, c orb.Point) bool {
	v1x, v1y := b[0]-a[0], b[1]-a[1]
	v2x, v2y := c[0]-b[0], c[1]-b[1]
	return v1x*v2y-v1y*v2x == 0 && v1x*v2x+v1y*v2y > 0
}

// FindBoxes keeps the shapes that look like answer boxes: a circularity strictly
// between the configured bounds and a minimum area.
func FindBoxes(shapes []*Shape, cfg PipelineConfig) []*Shape {
	var boxes []*Shape
	for _, s := range shapes {
		c := s.Circularity()
		if c > cfg.MinCircularity && c < cfg.MaxCircularity && s.Area >= cfg.MinBoxArea {
			boxes = append(boxes, s)
		}
	}
	return boxes
}

// Centroids computes the area centroid of every shape, truncated to whole pixels.
// Shapes without area have no centroid and are skipped.
func Centroids(shapes []*Shape) []Centroid {
	centroids := make([]Centroid, 0, len(shapes))
	for _, s := range shapes {
		if s.Area == 0 {
			continue
		}
		c, _ := planar.CentroidArea(s.Ring)
		centroids = append(centroids, Centroid{
			Point: Point{X: int(c[0]), Y: int(c[1])},
			Shape: s,
		})
	}
	return centroids
}
