package monitoring

import (
	"sync"

	"github.com/banshee-data/headosc/internal/pipeline"
)

// History keeps the most recent emitted results for the admin views. It
// is a pipeline.Observer.
type History struct {
	mu    sync.Mutex
	buf   []pipeline.Result
	next  int
	count int
}

// NewHistory returns a History holding up to size results.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{buf: make([]pipeline.Result, size)}
}

// Observe implements pipeline.Observer.
func (h *History) Observe(res pipeline.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Boundary slices are not needed for the trace views.
	res.Blob.Boundary = nil
	h.buf[h.next] = res
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Results returns the held results, oldest first.
func (h *History) Results() []pipeline.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]pipeline.Result, 0, h.count)
	start := (h.next - h.count + len(h.buf)) % len(h.buf)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

// Observers fans one result out to several observers.
type Observers []pipeline.Observer

// Observe implements pipeline.Observer.
func (o Observers) Observe(res pipeline.Result) {
	for _, obs := range o {
		obs.Observe(res)
	}
}
