package pipeline

import (
	"context"
	"time"

	"github.com/banshee-data/headosc/internal/timeutil"
)

// Runner drives Pipeline.Tick from a clock on a single goroutine.
type Runner struct {
	Pipeline *Pipeline
	Clock    timeutil.Clock
	// Interval is the tick period.
	Interval time.Duration
	// SummaryEvery logs a counter summary every that many ticks. Zero
	// disables the summary.
	SummaryEvery uint64
}

// IntervalForRate converts a frame rate in Hz to a tick period.
func IntervalForRate(hz float64) time.Duration {
	if hz <= 0 {
		hz = 30
	}
	return time.Duration(float64(time.Second) / hz)
}

// Run ticks until ctx is cancelled. A tick that overruns the period delays
// the next one; ticks are never run concurrently.
func (r *Runner) Run(ctx context.Context) error {
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(r.Interval)
	defer ticker.Stop()

	opsf("tracking at %s per tick", r.Interval)
	var n uint64
	for {
		select {
		case <-ctx.Done():
			st := r.Pipeline.Stats()
			opsf("stopped after %d ticks, %d frames, %d emitted", st.Ticks, st.Frames, st.Emitted)
			return ctx.Err()
		case <-ticker.C():
			r.Pipeline.Tick()
			n++
			if r.SummaryEvery > 0 && n%r.SummaryEvery == 0 {
				st := r.Pipeline.Stats()
				diagf("ticks=%d frames=%d emitted=%d no_blob=%d no_candidate=%d",
					st.Ticks, st.Frames, st.Emitted, st.NoBlob, st.NoCandidate)
			}
		}
	}
}
