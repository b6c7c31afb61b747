// Package transform maps a feature point from sensor coordinates into the
// emitted coordinate space.
package transform

import (
	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/feature"
)

// Point is an adjusted feature point, ready for emission.
type Point = feature.Point

// Axis holds the per-axis flags and scale factor.
type Axis struct {
	Normalize bool
	Scale     bool
	Amount    float64
}

// Params fixes the sensor domain of each axis and its adjustments.
type Params struct {
	Width    float64
	Height   float64
	NearClip float64
	FarClip  float64

	X, Y, Z Axis
}

// FromConfig builds Params from a tracker configuration. The x and y
// domains default to the configured sensor size; use WithFrame to bind
// them to the frame actually processed.
func FromConfig(cfg config.TrackerConfig) Params {
	return Params{
		Width:    float64(cfg.Sensor.Width),
		Height:   float64(cfg.Sensor.Height),
		NearClip: cfg.NearClip,
		FarClip:  cfg.FarClip,
		X:        Axis{Normalize: cfg.NormalizeX, Scale: cfg.ScaleX, Amount: cfg.ScaleXAmt},
		Y:        Axis{Normalize: cfg.NormalizeY, Scale: cfg.ScaleY, Amount: cfg.ScaleYAmt},
		Z:        Axis{Normalize: cfg.NormalizeZ, Scale: cfg.ScaleZ, Amount: cfg.ScaleZAmt},
	}
}

// WithFrame returns p with the x and y domains set to a width×height frame.
func (p Params) WithFrame(width, height int) Params {
	p.Width = float64(width)
	p.Height = float64(height)
	return p
}

// Apply normalizes then scales each axis whose flags are set. x is
// normalized over [0, Width], y over [0, Height] and z over
// [NearClip, FarClip]; results are not clamped.
func Apply(p Point, params Params) Point {
	return Point{
		X: params.X.apply(p.X, 0, params.Width),
		Y: params.Y.apply(p.Y, 0, params.Height),
		Z: params.Z.apply(p.Z, params.NearClip, params.FarClip),
	}
}

func (a Axis) apply(v, lo, hi float64) float64 {
	if a.Normalize {
		v = normalize(v, lo, hi)
	}
	if a.Scale {
		v *= a.Amount
	}
	return v
}

// normalize maps [lo, hi] onto [0, 1]. An empty domain maps to 0.
func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
