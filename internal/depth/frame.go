package depth

import "image"

// DistanceFunc resolves the real-world depth at an in-bounds pixel.
// Implementations come from the sensor calibration and may return a
// sentinel (for example 0 for a sensor hole); callers pass it through.
type DistanceFunc func(x, y int) float64

// Frame is one width×height grid of non-negative depth samples in
// row-major order. The pipeline owns a frame for a single tick and never
// mutates it.
type Frame struct {
	Width  int
	Height int
	Pix    []uint16

	// Distance is the calibrated lookup. When nil the raw sample value is
	// used as the distance.
	Distance DistanceFunc
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint16, width*height),
	}
}

// Bounds returns the frame rectangle in pixel coordinates.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// At returns the raw sample at (x, y). Out-of-bounds reads return 0.
func (f *Frame) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Pix[y*f.Width+x]
}

// Set writes the raw sample at (x, y). Out-of-bounds writes are ignored.
func (f *Frame) Set(x, y int, v uint16) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	f.Pix[y*f.Width+x] = v
}

// Fill sets every sample to v.
func (f *Frame) Fill(v uint16) {
	for i := range f.Pix {
		f.Pix[i] = v
	}
}

// FillRect sets every sample inside r (clipped to the frame) to v.
func (f *Frame) FillRect(r image.Rectangle, v uint16) {
	r = r.Intersect(f.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := f.Pix[y*f.Width : (y+1)*f.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = v
		}
	}
}

// DistanceAt resolves the depth at (x, y) through the calibrated lookup.
func (f *Frame) DistanceAt(x, y int) float64 {
	if f.Distance != nil {
		return f.Distance(x, y)
	}
	return float64(f.At(x, y))
}

// LinearDistance returns a lookup that maps raw samples in [0, maxRaw]
// linearly onto [near, far]. It approximates the calibrated lookup of an
// 8-bit quantized depth image whose range was clipped to [near, far].
func LinearDistance(f *Frame, maxRaw uint16, near, far float64) DistanceFunc {
	if maxRaw == 0 {
		maxRaw = 1
	}
	return func(x, y int) float64 {
		v := float64(f.At(x, y))
		return near + (far-near)*v/float64(maxRaw)
	}
}
