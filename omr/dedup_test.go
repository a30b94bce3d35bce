package omr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(cs []Centroid) []Point {
	out := make([]Point, len(cs))
	for i, c := range cs {
		out[i] = c.Point
	}
	return out
}

func TestDedupe_DiscoveryOrder(t *testing.T) {
	in := []Centroid{
		{Point: Point{X: 100, Y: 100}},
		{Point: Point{X: 101, Y: 99}},
		{Point: Point{X: 400, Y: 400}},
	}

	got := Dedupe(in, 5, DedupDiscovery)

	want := []Point{{X: 100, Y: 100}, {X: 400, Y: 400}}
	if diff := cmp.Diff(want, points(got)); diff != "" {
		t.Errorf("Dedupe() mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, in, 3, "input must not be modified")
	assert.Equal(t, Point{X: 101, Y: 99}, in[1].Point)
}

func TestDedupe_RowMajorOrder(t *testing.T) {
	in := []Centroid{
		{Point: Point{X: 100, Y: 100}},
		{Point: Point{X: 101, Y: 99}},
		{Point: Point{X: 400, Y: 400}},
	}

	// (101,99) sorts first, so it represents the cluster
	got := Dedupe(in, 5, DedupRowMajor)

	want := []Point{{X: 101, Y: 99}, {X: 400, Y: 400}}
	if diff := cmp.Diff(want, points(got)); diff != "" {
		t.Errorf("Dedupe() mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupe_RowMajorIsOrderIndependent(t *testing.T) {
	a := []Centroid{
		{Point: Point{X: 50, Y: 10}},
		{Point: Point{X: 10, Y: 10}},
		{Point: Point{X: 12, Y: 11}},
		{Point: Point{X: 10, Y: 50}},
	}
	b := []Centroid{a[3], a[2], a[1], a[0]}

	assert.Equal(t, points(Dedupe(a, 5, DedupRowMajor)), points(Dedupe(b, 5, DedupRowMajor)))
}

func TestDedupe_RadiusIsInclusive(t *testing.T) {
	in := []Centroid{
		{Point: Point{X: 0, Y: 0}},
		{Point: Point{X: 3, Y: 4}},
	}
	assert.Len(t, Dedupe(in, 5, DedupDiscovery), 1)
	assert.Len(t, Dedupe(in, 4.99, DedupDiscovery), 2)
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []Centroid{
		{Point: Point{X: 10, Y: 10}},
		{Point: Point{X: 14, Y: 10}},
		{Point: Point{X: 18, Y: 10}},
		{Point: Point{X: 22, Y: 10}},
		{Point: Point{X: 60, Y: 60}},
		{Point: Point{X: 61, Y: 62}},
	}

	for _, order := range []DedupOrder{DedupDiscovery, DedupRowMajor} {
		t.Run(string(order), func(t *testing.T) {
			once := Dedupe(in, 5, order)
			twice := Dedupe(once, 5, order)
			assert.Equal(t, points(once), points(twice))
		})
	}
}

func TestDedupe_Empty(t *testing.T) {
	assert.Empty(t, Dedupe(nil, 5, DedupRowMajor))
}

func TestParseDedupOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    DedupOrder
		wantErr bool
	}{
		{"", DedupRowMajor, false},
		{"row-major", DedupRowMajor, false},
		{" Discovery ", DedupDiscovery, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDedupOrder(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAverageRadius(t *testing.T) {
	shape := func(minX, minY float64) *Shape {
		return &Shape{Bound: orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{minX + 20, minY + 20}}}
	}
	cs := []Centroid{
		{Point: Point{X: 13, Y: 14}, Shape: shape(10, 10)}, // 5
		{Point: Point{X: 60, Y: 8}, Shape: shape(60, 0)},   // 8
		{Point: Point{X: 1, Y: 1}},                         // ignored
	}

	got, err := AverageRadius(cs)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, got, 1e-9)
}

func TestAverageRadius_NoShapes(t *testing.T) {
	_, err := AverageRadius([]Centroid{{Point: Point{X: 1, Y: 1}}})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = AverageRadius(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
