package depth

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/banshee-data/headosc/internal/timeutil"
)

// Synthetic scene sample values. Small values are near the sensor.
const (
	SyntheticBackground uint16 = 255
	SyntheticBody       uint16 = 120
	SyntheticHead       uint16 = 100
)

// SyntheticSource renders a deterministic scene: one figure, a body with
// a narrower head on top, walking back and forth in front of a far wall.
// It stands in for a depth camera in demos and tests.
type SyntheticSource struct {
	Width  int
	Height int
	Near   float64
	Far    float64

	// Period is the number of frames for one full left-right-left walk.
	Period int

	step int
}

// NewSyntheticSource creates a scene of the given size whose lookup maps
// samples into [near, far].
func NewSyntheticSource(width, height int, near, far float64) *SyntheticSource {
	return &SyntheticSource{
		Width:  width,
		Height: height,
		Near:   near,
		Far:    far,
		Period: 300,
	}
}

// FigureAt returns the body and head rectangles for frame step n.
func (s *SyntheticSource) FigureAt(n int) (body, head image.Rectangle) {
	bodyW := s.Width / 8
	bodyH := s.Height / 2
	headW := bodyW / 2
	headH := s.Height / 10

	period := s.Period
	if period <= 0 {
		period = 1
	}
	phase := float64(n%period) / float64(period)
	travel := float64(s.Width - bodyW)
	left := int(travel * (1 - math.Cos(2*math.Pi*phase)) / 2)

	bottom := s.Height - s.Height/10
	body = image.Rect(left, bottom-bodyH, left+bodyW, bottom)
	headLeft := left + (bodyW-headW)/2
	head = image.Rect(headLeft, body.Min.Y-headH, headLeft+headW, body.Min.Y)
	return body, head
}

// Next renders the next frame of the scene.
func (s *SyntheticSource) Next() *Frame {
	f := NewFrame(s.Width, s.Height)
	f.Fill(SyntheticBackground)
	body, head := s.FigureAt(s.step)
	f.FillRect(body, SyntheticBody)
	f.FillRect(head, SyntheticHead)
	f.Distance = LinearDistance(f, SyntheticBackground, s.Near, s.Far)
	s.step++
	return f
}

// Run publishes a new frame into mb every interval until ctx is done.
func (s *SyntheticSource) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration, mb *Mailbox) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			mb.Publish(s.Next())
		}
	}
}
