package segment

import (
	"fmt"
	"image"
	"strings"

	"github.com/banshee-data/headosc/internal/depth"
)

// Point is a real-valued pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned integer box (x, y, width, height).
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Image converts the box into an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Blob is one connected foreground region of a single frame. Blobs have no
// identity across frames.
type Blob struct {
	Centroid    Point
	BoundingBox Rect
	// Boundary is the ordered outer contour trace. It is owned by the Blob.
	Boundary []image.Point
	// Area is the pixel count.
	Area int
}

// Polarity fixes which side of the threshold is foreground.
type Polarity int

const (
	// PolarityBelow marks samples at or below the threshold as foreground:
	// near objects have small depth values in a near-clipped scene.
	PolarityBelow Polarity = iota
	// PolarityAbove marks samples strictly above the threshold as
	// foreground, the convention of brightness-coded depth images.
	PolarityAbove
)

// Foreground applies the polarity to one sample.
func (p Polarity) Foreground(v uint16, threshold int) bool {
	if p == PolarityAbove {
		return int(v) > threshold
	}
	return int(v) <= threshold
}

func (p Polarity) String() string {
	if p == PolarityAbove {
		return "above"
	}
	return "below"
}

// ParsePolarity accepts "below" (or "") and "above".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "below":
		return PolarityBelow, nil
	case "above":
		return PolarityAbove, nil
	default:
		return PolarityBelow, fmt.Errorf("unknown foreground polarity %q: expected below or above", s)
	}
}

// Params are the per-tick segmentation settings.
type Params struct {
	Threshold int
	Polarity  Polarity
	AreaMin   int
	AreaMax   int
	// MaxBlobs truncates the ordered result. Zero keeps every blob.
	MaxBlobs int
}

// Segmenter extracts area-filtered blobs from a frame. The result order is
// deterministic for a given frame: largest area first, equal areas in
// raster discovery order. An empty result means no detection.
type Segmenter interface {
	Segment(frame *depth.Frame, p Params) []Blob
}
