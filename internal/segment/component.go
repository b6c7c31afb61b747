package segment

import (
	"image"
	"sort"

	"github.com/banshee-data/headosc/internal/depth"
)

// Moore neighbourhood in clockwise order (image coordinates, y down),
// starting from the west neighbour.
var neighbours = [8]image.Point{
	{-1, 0},  // W
	{-1, -1}, // NW
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
}

func neighbourIndex(d image.Point) int {
	for i, n := range neighbours {
		if n == d {
			return i
		}
	}
	return 0
}

// ComponentSegmenter is the pure-Go Segmenter: 8-connected component
// labelling followed by a Moore-neighbour boundary trace of each
// qualifying region.
type ComponentSegmenter struct{}

// NewComponentSegmenter returns a ComponentSegmenter.
func NewComponentSegmenter() *ComponentSegmenter {
	return &ComponentSegmenter{}
}

// region accumulates per-label statistics during the labelling scan.
type region struct {
	label      int32
	start      image.Point
	area       int
	sumX, sumY int
	minX, minY int
	maxX, maxY int
}

// Segment implements Segmenter.
func (s *ComponentSegmenter) Segment(frame *depth.Frame, p Params) []Blob {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil
	}
	w, h := frame.Width, frame.Height
	labels := make([]int32, w*h)
	fg := func(i int) bool {
		return p.Polarity.Foreground(frame.Pix[i], p.Threshold)
	}

	var regions []region
	var stack []int
	next := int32(1)

	for i := 0; i < w*h; i++ {
		if labels[i] != 0 || !fg(i) {
			continue
		}
		r := region{
			label: next,
			start: image.Pt(i%w, i/w),
			minX:  w,
			minY:  h,
			maxX:  -1,
			maxY:  -1,
		}
		labels[i] = next
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := j%w, j/w
			r.area++
			r.sumX += x
			r.sumY += y
			r.minX = min(r.minX, x)
			r.minY = min(r.minY, y)
			r.maxX = max(r.maxX, x)
			r.maxY = max(r.maxY, y)
			for _, d := range neighbours {
				nx, ny := x+d.X, y+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				k := ny*w + nx
				if labels[k] == 0 && fg(k) {
					labels[k] = next
					stack = append(stack, k)
				}
			}
		}
		regions = append(regions, r)
		next++
	}

	blobs := make([]Blob, 0, len(regions))
	for _, r := range regions {
		if r.area < p.AreaMin || r.area > p.AreaMax {
			continue
		}
		blobs = append(blobs, Blob{
			Centroid: Point{
				X: float64(r.sumX) / float64(r.area),
				Y: float64(r.sumY) / float64(r.area),
			},
			BoundingBox: Rect{
				X:      r.minX,
				Y:      r.minY,
				Width:  r.maxX - r.minX + 1,
				Height: r.maxY - r.minY + 1,
			},
			Boundary: traceBoundary(labels, w, h, r),
			Area:     r.area,
		})
	}
	return order(blobs, p.MaxBlobs)
}

// order sorts largest area first, keeping discovery order for ties, and
// applies the MaxBlobs cap.
func order(blobs []Blob, maxBlobs int) []Blob {
	sort.SliceStable(blobs, func(i, j int) bool {
		return blobs[i].Area > blobs[j].Area
	})
	if maxBlobs > 0 && len(blobs) > maxBlobs {
		blobs = blobs[:maxBlobs]
	}
	return blobs
}

// traceBoundary walks the outer contour of region r clockwise from its
// first raster pixel and stops when the walk would repeat its first move.
func traceBoundary(labels []int32, w, h int, r region) []image.Point {
	inside := func(q image.Point) bool {
		return q.X >= 0 && q.Y >= 0 && q.X < w && q.Y < h && labels[q.Y*w+q.X] == r.label
	}
	// step finds the next contour pixel clockwise from the backtrack
	// position and returns it with the new backtrack position.
	step := func(cur, back image.Point) (image.Point, image.Point, bool) {
		d0 := neighbourIndex(back.Sub(cur))
		for i := 1; i <= 8; i++ {
			d := (d0 + i) % 8
			n := cur.Add(neighbours[d])
			if inside(n) {
				return n, cur.Add(neighbours[(d+7)%8]), true
			}
		}
		return cur, back, false
	}

	start := r.start
	boundary := []image.Point{start}
	// The first raster pixel never has a foreground west neighbour.
	next, back, ok := step(start, start.Add(neighbours[0]))
	if !ok {
		return boundary
	}
	second := next

	limit := 4*r.area + 8
	for n := 0; n < limit; n++ {
		cur := next
		if cur == start {
			nn, nb, _ := step(cur, back)
			if nn == second {
				break
			}
			boundary = append(boundary, cur)
			next, back = nn, nb
			continue
		}
		boundary = append(boundary, cur)
		next, back, _ = step(cur, back)
	}
	return boundary
}
