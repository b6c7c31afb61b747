// Package feature reduces a blob to the single 3D point that represents
// the tracked subject for one tick.
package feature

import (
	"image"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/depth"
	"github.com/banshee-data/headosc/internal/segment"
)

// Point is a feature point: pixel x, y and the calibrated depth z.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Selector picks the feature point of a blob. ok is false when the policy
// has no candidate, which the caller treats as no detection.
type Selector interface {
	Select(frame *depth.Frame, blob segment.Blob) (p Point, ok bool)
}

// Interpolated reports a point part-way between the blob centroid and the
// highest boundary point near the centroid column. With the default
// fraction this lands roughly on a head.
type Interpolated struct {
	// Band is the half-width of the column around the centroid that the
	// highest point must fall in.
	Band float64
	// Fraction is the interpolation weight of the highest point.
	Fraction float64
}

// Select implements Selector. It always returns a candidate.
func (s Interpolated) Select(frame *depth.Frame, blob segment.Blob) (Point, bool) {
	p, _ := s.SelectWithHighest(frame, blob)
	return p, true
}

// SelectWithHighest returns the feature point together with the highest
// boundary point it was interpolated towards.
func (s Interpolated) SelectWithHighest(frame *depth.Frame, blob segment.Blob) (Point, image.Point) {
	c := blob.Centroid
	h := Highest(blob.Boundary, c.X, s.Band)
	f := s.Fraction
	x := c.X*(1-f) + float64(h.X)*f
	y := c.Y*(1-f) + float64(h.Y)*f
	return Point{X: x, Y: y, Z: frame.DistanceAt(int(x), int(y))}, h
}

// Highest returns the boundary point with the smallest y among those whose
// x lies in [cx-band, cx+band]. The first such point in trace order wins
// ties. When no point qualifies the result is the origin.
func Highest(boundary []image.Point, cx, band float64) image.Point {
	var best image.Point
	found := false
	for _, p := range boundary {
		x := float64(p.X)
		if x < cx-band || x > cx+band {
			continue
		}
		if !found || p.Y < best.Y {
			best = p
			found = true
		}
	}
	return best
}

// NearestPixel reports the smallest raw sample inside the blob's bounding
// box, the point closest to an overhead sensor.
type NearestPixel struct {
	// MaxValue is an exclusive upper bound on candidate samples.
	MaxValue int
}

// Select implements Selector.
func (s NearestPixel) Select(frame *depth.Frame, blob segment.Blob) (Point, bool) {
	pt, ok := Nearest(frame, blob.BoundingBox, s.MaxValue)
	if !ok {
		return Point{}, false
	}
	return Point{
		X: float64(pt.X),
		Y: float64(pt.Y),
		Z: frame.DistanceAt(pt.X, pt.Y),
	}, true
}

// Nearest scans box (clipped to the frame) in row-major order for the
// first pixel holding the smallest sample below maxValue.
func Nearest(frame *depth.Frame, box segment.Rect, maxValue int) (image.Point, bool) {
	r := box.Image().Intersect(frame.Bounds())
	var best image.Point
	bestVal := maxValue
	found := false
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			v := int(frame.At(x, y))
			if v < maxValue && v < bestVal {
				best = image.Pt(x, y)
				bestVal = v
				found = true
			}
		}
	}
	return best, found
}

// ForConfig returns the selector named by cfg.Policy. Anything other than
// the nearest policy selects Interpolated.
func ForConfig(cfg config.TrackerConfig) Selector {
	if cfg.Policy == config.PolicyNearest {
		return NearestPixel{MaxValue: cfg.NearestMaxValue}
	}
	return Interpolated{Band: cfg.HighestPointBand, Fraction: cfg.InterpolationFraction}
}
