package pipeline

import (
	"image"
	"sync/atomic"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/depth"
	"github.com/banshee-data/headosc/internal/feature"
	"github.com/banshee-data/headosc/internal/osc"
	"github.com/banshee-data/headosc/internal/segment"
	"github.com/banshee-data/headosc/internal/transform"
)

// State is a step of the per-tick state machine.
type State int

const (
	AwaitFrame State = iota
	Segment
	SelectFeature
	Transform
	Emit
)

func (s State) String() string {
	switch s {
	case AwaitFrame:
		return "await_frame"
	case Segment:
		return "segment"
	case SelectFeature:
		return "select_feature"
	case Transform:
		return "transform"
	case Emit:
		return "emit"
	default:
		return "unknown"
	}
}

// Result describes how far one frame got through the pipeline. Stopped is
// the state whose guard failed, or Emit when a point was produced.
type Result struct {
	Stopped State
	// Qualifying counts the blobs that passed the area filter; Blobs is
	// the count left after the max_blobs cap.
	Qualifying int
	Blobs      int
	Blob       segment.Blob
	// Highest is the boundary point the interpolated policy used. It is
	// nil for the nearest policy.
	Highest *image.Point
	Feature feature.Point
	Point   transform.Point
}

// SegmentParams derives segmentation settings from cfg. An unrecognised
// foreground polarity falls back to below.
func SegmentParams(cfg config.TrackerConfig) segment.Params {
	pol, _ := segment.ParsePolarity(cfg.Foreground)
	return segment.Params{
		Threshold: cfg.Threshold,
		Polarity:  pol,
		AreaMin:   cfg.AreaMin,
		AreaMax:   cfg.AreaMax,
		MaxBlobs:  cfg.MaxBlobs,
	}
}

// Process runs one frame through segmentation, feature selection and the
// coordinate transform. ok is false when there is nothing to emit; the
// returned Result still records where processing stopped.
func Process(frame *depth.Frame, cfg config.TrackerConfig, seg segment.Segmenter) (Result, bool) {
	params := SegmentParams(cfg)
	maxBlobs := params.MaxBlobs
	params.MaxBlobs = 0
	blobs := seg.Segment(frame, params)
	res := Result{Stopped: Segment, Qualifying: len(blobs)}
	if maxBlobs > 0 && len(blobs) > maxBlobs {
		blobs = blobs[:maxBlobs]
	}
	res.Blobs = len(blobs)
	if len(blobs) == 0 {
		return res, false
	}
	res.Blob = blobs[0]

	res.Stopped = SelectFeature
	var (
		fp feature.Point
		ok bool
	)
	switch sel := feature.ForConfig(cfg).(type) {
	case feature.Interpolated:
		var h image.Point
		fp, h = sel.SelectWithHighest(frame, res.Blob)
		res.Highest = &h
		ok = true
	default:
		fp, ok = sel.Select(frame, res.Blob)
	}
	if !ok {
		return res, false
	}
	res.Feature = fp

	tp := transform.FromConfig(cfg).WithFrame(frame.Width, frame.Height)
	res.Point = transform.Apply(fp, tp)
	res.Stopped = Emit
	return res, true
}

// Observer is told about every emitted point. It runs on the tick
// goroutine and must not block.
type Observer interface {
	Observe(res Result)
}

// Stats is a point-in-time copy of the pipeline counters.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Frames      uint64 `json:"frames"`
	NoBlob      uint64 `json:"no_blob"`
	NoCandidate uint64 `json:"no_candidate"`
	Emitted     uint64 `json:"emitted"`
}

// Pipeline binds the frame gate, live configuration, segmenter and sink.
type Pipeline struct {
	source   depth.Source
	store    *config.Store
	seg      segment.Segmenter
	sink     osc.Sink
	observer Observer

	ticks, frames, noBlob, noCandidate, emitted atomic.Uint64
	last                                        atomic.Pointer[Result]
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithSegmenter replaces the default ComponentSegmenter.
func WithSegmenter(seg segment.Segmenter) Option {
	return func(p *Pipeline) { p.seg = seg }
}

// WithObserver attaches an observer of emitted points.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New returns a Pipeline reading frames from source and settings from
// store, emitting to sink.
func New(source depth.Source, store *config.Store, sink osc.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: source,
		store:  store,
		seg:    segment.NewComponentSegmenter(),
		sink:   sink,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick runs one pass of the state machine and returns the state at which
// it stopped. At most one message is emitted per tick.
func (p *Pipeline) Tick() State {
	p.ticks.Add(1)
	cfg := p.store.Snapshot()

	if !p.source.IsFrameNew() {
		return AwaitFrame
	}
	frame := p.source.Frame()
	if frame == nil {
		return AwaitFrame
	}
	p.frames.Add(1)

	res, ok := Process(frame, cfg, p.seg)
	if !ok {
		switch res.Stopped {
		case Segment:
			p.noBlob.Add(1)
		case SelectFeature:
			p.noCandidate.Add(1)
		}
		tracef("frame %d: stopped at %s (blobs=%d)", p.frames.Load(), res.Stopped, res.Blobs)
		return res.Stopped
	}

	osc.NewEmitter(cfg.Address, p.sink).Emit(res.Point)
	p.emitted.Add(1)
	p.last.Store(&res)
	if p.observer != nil {
		p.observer.Observe(res)
	}
	tracef("frame %d: %s [%.3f %.3f %.3f] area=%d", p.frames.Load(), cfg.Address, res.Point.X, res.Point.Y, res.Point.Z, res.Blob.Area)
	return Emit
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Ticks:       p.ticks.Load(),
		Frames:      p.frames.Load(),
		NoBlob:      p.noBlob.Load(),
		NoCandidate: p.noCandidate.Load(),
		Emitted:     p.emitted.Load(),
	}
}

// Last returns the most recent emitted result, if any.
func (p *Pipeline) Last() (Result, bool) {
	r := p.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// LogConfigChanges reports every configuration replacement on the diag
// stream.
func LogConfigChanges(store *config.Store) {
	store.OnChange(func(old, updated config.TrackerConfig) {
		diagf("config changed: policy=%s threshold=%d->%d area=[%d,%d] address=%s osc=%s",
			updated.Policy, old.Threshold, updated.Threshold, updated.AreaMin, updated.AreaMax,
			updated.Address, updated.OSC.Addr())
	})
}
