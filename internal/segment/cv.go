//go:build gocv
// +build gocv

package segment

import (
	"image"

	"github.com/banshee-data/headosc/internal/depth"
	"gocv.io/x/gocv"
)

// CVSegmenter fulfils the Segmenter contract with OpenCV: connected
// components with stats for area, box and centroid, and an external
// contour per label for the boundary. Only available with the 'gocv'
// build tag.
type CVSegmenter struct{}

// NewCVSegmenter returns a CVSegmenter.
func NewCVSegmenter() *CVSegmenter {
	return &CVSegmenter{}
}

// Segment implements Segmenter.
func (s *CVSegmenter) Segment(frame *depth.Frame, p Params) []Blob {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil
	}
	w, h := frame.Width, frame.Height

	bin := make([]byte, w*h)
	for i, v := range frame.Pix {
		if p.Polarity.Foreground(v, p.Threshold) {
			bin[i] = 255
		}
	}
	mask, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, bin)
	if err != nil {
		return nil
	}
	defer mask.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	var blobs []Blob
	// Label 0 is the background.
	for l := 1; l < n; l++ {
		area := int(stats.GetIntAt(l, int(gocv.CCStatArea)))
		if area < p.AreaMin || area > p.AreaMax {
			continue
		}
		box := Rect{
			X:      int(stats.GetIntAt(l, int(gocv.CCStatLeft))),
			Y:      int(stats.GetIntAt(l, int(gocv.CCStatTop))),
			Width:  int(stats.GetIntAt(l, int(gocv.CCStatWidth))),
			Height: int(stats.GetIntAt(l, int(gocv.CCStatHeight))),
		}
		blobs = append(blobs, Blob{
			Centroid: Point{
				X: centroids.GetDoubleAt(l, 0),
				Y: centroids.GetDoubleAt(l, 1),
			},
			BoundingBox: box,
			Boundary:    labelContour(labels, box, int32(l)),
			Area:        area,
		})
	}
	return order(blobs, p.MaxBlobs)
}

// labelContour extracts the external contour of one label inside its box.
func labelContour(labels gocv.Mat, box Rect, label int32) []image.Point {
	bin := make([]byte, box.Width*box.Height)
	for y := 0; y < box.Height; y++ {
		for x := 0; x < box.Width; x++ {
			if labels.GetIntAt(box.Y+y, box.X+x) == label {
				bin[y*box.Width+x] = 255
			}
		}
	}
	m, err := gocv.NewMatFromBytes(box.Height, box.Width, gocv.MatTypeCV8U, bin)
	if err != nil {
		return nil
	}
	defer m.Close()

	contours := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() == 0 {
		return nil
	}
	pts := contours.At(0).ToPoints()
	out := make([]image.Point, len(pts))
	for i, pt := range pts {
		out[i] = pt.Add(image.Pt(box.X, box.Y))
	}
	return out
}
