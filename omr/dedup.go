package omr

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// DedupOrder selects the iteration order of the greedy duplicate filter.
// The first centroid of a cluster in this order is the one that survives.
type DedupOrder string

const (
	// DedupDiscovery keeps the order in which the contours were found.
	DedupDiscovery DedupOrder = "discovery"
	// DedupRowMajor sorts centroids top to bottom, then left to right (stable).
	DedupRowMajor DedupOrder = "row-major"
)

// ParseDedupOrder parses a config value. An empty string selects row-major.
func ParseDedupOrder(s string) (DedupOrder, error) {
	switch DedupOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupRowMajor:
		return DedupRowMajor, nil
	case DedupDiscovery:
		return DedupDiscovery, nil
	}
	return "", fmt.Errorf("unknown dedup order %q (want %q or %q)", s, DedupRowMajor, DedupDiscovery)
}

// Dedupe collapses centroids lying within radius of each other into one.
//
// Centroids are visited in the given order; a centroid is kept unless a kept
// centroid lies within radius (inclusive). The input slice is not modified.
// Applying Dedupe twice with the same radius gives the same result as once.
func Dedupe(centroids []Centroid, radius float64, order DedupOrder) []Centroid {
	ordered := make([]Centroid, len(centroids))
	copy(ordered, centroids)

	if order == DedupRowMajor {
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Y != ordered[j].Y {
				return ordered[i].Y < ordered[j].Y
			}
			return ordered[i].X < ordered[j].X
		})
	}

	kept := make([]Centroid, 0, len(ordered))
	for _, c := range ordered {
		duplicate := false
		for _, k := range kept {
			if Distance(c.Point, k.Point) <= radius {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, c)
		}
	}
	return kept
}

// AverageRadius estimates the bubble radius as the mean distance from each
// centroid to the top-left corner of its shape's bounding box.
// Centroids without a shape are ignored.
func AverageRadius(centroids []Centroid) (float64, error) {
	dists := make([]float64, 0, len(centroids))
	for _, c := range centroids {
		if c.Shape == nil {
			continue
		}
		corner := Point{X: int(c.Shape.Bound.Min[0]), Y: int(c.Shape.Bound.Min[1])}
		dists = append(dists, Distance(c.Point, corner))
	}
	if len(dists) == 0 {
		return 0, fmt.Errorf("average radius: %w", ErrEmptyInput)
	}
	return stat.Mean(dists, nil), nil
}
